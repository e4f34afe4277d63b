package graph

import (
	"fmt"

	"github.com/tetherworks/tether/pkg/tagio"
)

// RefList references an ordered list of entities with no sub-element
// paths.
type RefList struct {
	base
	targets []*Entity
}

// NewRefList creates a RefList named name on owner.
func NewRefList(owner *Entity, name string, scope Scope) *RefList {
	r := &RefList{}
	r.init(owner, name, scope)
	owner.addProperty(r)
	return r
}

// Kind implements Property.
func (r *RefList) Kind() Kind { return KindRefList }

// Values returns the referenced entities in order.
func (r *RefList) Values() []*Entity {
	return append([]*Entity(nil), r.targets...)
}

// SetValues replaces the list. Nil entries are rejected.
func (r *RefList) SetValues(targets []*Entity) error {
	for _, t := range targets {
		if t == nil {
			return fmt.Errorf("%w: nil entry", ErrInvalidReference)
		}
		if err := checkTarget(r.owner, t); err != nil {
			return err
		}
	}
	return r.setValues(append([]*Entity(nil), targets...))
}

func (r *RefList) setValues(targets []*Entity) error {
	if err := r.beginChange(r); err != nil {
		return err
	}
	for _, t := range r.targets {
		r.detachTarget(t)
	}
	r.targets = targets
	for _, t := range r.targets {
		r.attachTarget(t)
	}
	r.endChange(r)
	return nil
}

// Collect implements Property.
func (r *RefList) Collect(targets []*Entity, subs *[]string, all bool) []*Entity {
	if !all && r.scope == ScopeHidden {
		return targets
	}
	for _, t := range r.targets {
		if subs != nil {
			*subs = append(*subs, "")
		}
		targets = append(targets, t)
	}
	return targets
}

// PointsTo implements Property.
func (r *RefList) PointsTo(target *Entity, sub string) bool {
	if sub != "" {
		return false
	}
	for _, t := range r.targets {
		if t == target {
			return true
		}
	}
	return false
}

// Break implements Property.
func (r *RefList) Break(target *Entity, clear bool) {
	if clear && r.owner == target {
		_ = r.setValues(nil)
		return
	}
	kept := r.targets[:0:0]
	for _, t := range r.targets {
		if t != target {
			kept = append(kept, t)
		}
	}
	if len(kept) != len(r.targets) {
		_ = r.setValues(kept)
	}
}

// AdjustPromoted implements Property. Entries inside avoid are dropped.
func (r *RefList) AdjustPromoted(avoid map[*Entity]bool) bool {
	kept := r.targets[:0:0]
	for _, t := range r.targets {
		if !avoid[t] {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(r.targets) {
		return false
	}
	return r.setValues(kept) == nil
}

// CopyOnReplace implements Property. An entry already holding newTarget
// while another entry gets replaced is dropped, so the replacement takes
// over its position without duplication.
func (r *RefList) CopyOnReplace(parent, oldTarget, newTarget *Entity) (Property, error) {
	var next []*Entity
	copied, found := false, false
	for i, t := range r.targets {
		repl, _, ok := tryReplaceRef(r.owner, t, parent, oldTarget, newTarget, "")
		switch {
		case ok:
			found = true
			if !copied {
				copied = true
				next = append(next, r.targets[:i]...)
			}
			next = append(next, repl)
		case t == newTarget:
			if !copied {
				copied = true
				next = append(next, r.targets[:i]...)
			}
		case copied:
			next = append(next, t)
		}
	}
	if !found {
		return nil, nil
	}
	return &RefList{targets: next}, nil
}

// CopyOnRelabel implements Property.
func (r *RefList) CopyOnRelabel(target *Entity, ref, newLabel string) Property {
	return nil
}

// CopyOnImport implements Property.
func (r *RefList) CopyOnImport(nameMap map[string]string) (Property, error) {
	var next []*Entity
	for i, t := range r.targets {
		repl, changed, err := tryImportTarget(t, nameMap)
		if err != nil {
			return nil, err
		}
		if changed && next == nil {
			next = make([]*Entity, i, len(r.targets))
			copy(next, r.targets[:i])
		}
		if next != nil {
			next = append(next, repl)
		}
	}
	if next == nil {
		return nil, nil
	}
	return &RefList{targets: next}, nil
}

// Copy implements Property.
func (r *RefList) Copy() Property {
	return &RefList{targets: append([]*Entity(nil), r.targets...)}
}

// Paste implements Property.
func (r *RefList) Paste(src Property) error {
	o, ok := src.(*RefList)
	if !ok {
		return fmt.Errorf("%w: %s into %s", ErrIncompatiblePaste, src.Kind(), r.Kind())
	}
	return r.SetValues(o.targets)
}

// Same implements Property.
func (r *RefList) Same(other Property) bool {
	o, ok := other.(*RefList)
	if !ok || len(o.targets) != len(r.targets) {
		return false
	}
	for i, t := range r.targets {
		if o.targets[i] != t {
			return false
		}
	}
	return true
}

// Save implements Property.
func (r *RefList) Save(w *tagio.Writer) {
	attrs := []tagio.Attr{tagio.String("name", r.name)}
	attrs = appendScope(attrs, r.scope)
	attrs = append(attrs, tagio.Int("count", len(r.targets)))
	w.Start("RefList", attrs...)
	for _, t := range r.targets {
		value := ""
		if t.Attached() {
			value = t.ExportName()
		}
		w.Empty("Ref", tagio.String("value", value))
	}
	w.End("RefList")
}

// Restore implements Property.
func (r *RefList) Restore(rd *tagio.Reader, rep *Report) error {
	rec, err := rd.Element("RefList")
	if err != nil {
		return err
	}
	return r.restoreRecord(rd, rec, rep)
}

func (r *RefList) restoreRecord(rd *tagio.Reader, rec *tagio.Record, rep *Report) error {
	r.scope = restoreScope(rec)
	count := rec.IntAttr("count")
	for _, t := range r.targets {
		r.detachTarget(t)
	}
	r.targets = nil
	for i := 0; i < count; i++ {
		item, err := rd.Element("Ref")
		if err != nil {
			return err
		}
		name := rd.MapName(item.Attr("value"))
		if name == "" {
			continue
		}
		target := r.owner.container.Entity(name)
		if target == nil {
			rep.Warnf(r, "referenced entity %q not found, entry dropped", name)
			continue
		}
		if target == r.owner {
			rep.Warnf(r, "reference to owning entity %q dropped", name)
			continue
		}
		r.targets = append(r.targets, target)
		r.attachTarget(target)
	}
	return rd.End("RefList")
}

// UpdateElementReference implements Property.
func (r *RefList) UpdateElementReference(feature *Entity, reverse, notify bool, rep *Report) bool {
	return false
}

// AfterRestore implements Property.
func (r *RefList) AfterRestore(rep *Report) {}

// OnContainerRestored implements Property.
func (r *RefList) OnContainerRestored(c *Container, rep *Report) {}

// Unbind implements Property.
func (r *RefList) Unbind() {
	for _, t := range r.targets {
		r.detachTarget(t)
	}
	r.targets = nil
	r.unbind(r)
}
