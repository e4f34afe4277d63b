package graph

import (
	"fmt"

	"github.com/tetherworks/tether/pkg/tagio"
)

// Ref references a single entity with no sub-element path.
type Ref struct {
	base
	target *Entity
}

// NewRef creates a Ref named name on owner.
func NewRef(owner *Entity, name string, scope Scope) *Ref {
	r := &Ref{}
	r.init(owner, name, scope)
	owner.addProperty(r)
	return r
}

// Kind implements Property.
func (r *Ref) Kind() Kind { return KindRef }

// Value returns the referenced entity, or nil.
func (r *Ref) Value() *Entity { return r.target }

// SetValue points the reference at target. A nil target clears it.
func (r *Ref) SetValue(target *Entity) error {
	if err := checkTarget(r.owner, target); err != nil {
		return err
	}
	if target == r.target {
		return nil
	}
	if err := r.beginChange(r); err != nil {
		return err
	}
	r.detachTarget(r.target)
	r.target = target
	r.attachTarget(target)
	r.endChange(r)
	return nil
}

// Collect implements Property.
func (r *Ref) Collect(targets []*Entity, subs *[]string, all bool) []*Entity {
	if r.target == nil || (!all && r.scope == ScopeHidden) {
		return targets
	}
	if subs != nil {
		*subs = append(*subs, "")
	}
	return append(targets, r.target)
}

// PointsTo implements Property.
func (r *Ref) PointsTo(target *Entity, sub string) bool {
	return r.target != nil && r.target == target && sub == ""
}

// Break implements Property.
func (r *Ref) Break(target *Entity, clear bool) {
	if r.target == target || (clear && r.owner == target) {
		r.setQuietBreak()
	}
}

func (r *Ref) setQuietBreak() {
	if r.target == nil {
		return
	}
	if err := r.beginChange(r); err != nil {
		return
	}
	r.detachTarget(r.target)
	r.target = nil
	r.endChange(r)
}

// AdjustPromoted implements Property. A plain reference has no path to
// reroute through, so a target inside avoid cannot be fixed here.
func (r *Ref) AdjustPromoted(avoid map[*Entity]bool) bool {
	return false
}

// CopyOnReplace implements Property.
func (r *Ref) CopyOnReplace(parent, oldTarget, newTarget *Entity) (Property, error) {
	next, _, ok := tryReplaceRef(r.owner, r.target, parent, oldTarget, newTarget, "")
	if !ok {
		return nil, nil
	}
	return &Ref{target: next}, nil
}

// CopyOnRelabel implements Property. A plain reference carries no label
// text.
func (r *Ref) CopyOnRelabel(target *Entity, ref, newLabel string) Property {
	return nil
}

// CopyOnImport implements Property.
func (r *Ref) CopyOnImport(nameMap map[string]string) (Property, error) {
	next, changed, err := tryImportTarget(r.target, nameMap)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, nil
	}
	return &Ref{target: next}, nil
}

// Copy implements Property.
func (r *Ref) Copy() Property {
	return &Ref{target: r.target}
}

// Paste implements Property.
func (r *Ref) Paste(src Property) error {
	o, ok := src.(*Ref)
	if !ok {
		return fmt.Errorf("%w: %s into %s", ErrIncompatiblePaste, src.Kind(), r.Kind())
	}
	return r.SetValue(o.target)
}

// Same implements Property.
func (r *Ref) Same(other Property) bool {
	o, ok := other.(*Ref)
	return ok && o.target == r.target
}

// Save implements Property.
func (r *Ref) Save(w *tagio.Writer) {
	value := ""
	if r.target != nil && r.target.Attached() {
		value = r.target.ExportName()
	}
	attrs := []tagio.Attr{tagio.String("name", r.name)}
	attrs = appendScope(attrs, r.scope)
	attrs = append(attrs, tagio.String("value", value))
	w.Empty("Ref", attrs...)
}

// Restore implements Property.
func (r *Ref) Restore(rd *tagio.Reader, rep *Report) error {
	rec, err := rd.Element("Ref")
	if err != nil {
		return err
	}
	return r.restoreRecord(rd, rec, rep)
}

func (r *Ref) restoreRecord(rd *tagio.Reader, rec *tagio.Record, rep *Report) error {
	r.scope = restoreScope(rec)
	r.restoreValue(rd.MapName(rec.Attr("value")), rep)
	return nil
}

func (r *Ref) restoreValue(name string, rep *Report) {
	r.detachTarget(r.target)
	r.target = nil
	if name == "" {
		return
	}
	target := r.owner.container.Entity(name)
	if target == nil {
		rep.Warnf(r, "referenced entity %q not found, reference detached", name)
		return
	}
	if target == r.owner {
		rep.Warnf(r, "reference to owning entity %q dropped", name)
		return
	}
	r.target = target
	r.attachTarget(target)
}

// UpdateElementReference implements Property. A plain reference has no
// element component.
func (r *Ref) UpdateElementReference(feature *Entity, reverse, notify bool, rep *Report) bool {
	return false
}

// AfterRestore implements Property.
func (r *Ref) AfterRestore(rep *Report) {}

// OnContainerRestored implements Property.
func (r *Ref) OnContainerRestored(c *Container, rep *Report) {}

// Unbind implements Property.
func (r *Ref) Unbind() {
	r.detachTarget(r.target)
	r.target = nil
	r.unbind(r)
}
