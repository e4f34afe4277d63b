package graph

import (
	"fmt"

	"github.com/tetherworks/tether/pkg/graph/subpath"
	"github.com/tetherworks/tether/pkg/tagio"
)

// SubRefList references an ordered list of (entity, sub path) pairs. The
// same entity may appear in several entries with different paths.
type SubRefList struct {
	base
	targets []*Entity
	subs    []string
	shadows []Shadow
}

// NewSubRefList creates a SubRefList named name on owner.
func NewSubRefList(owner *Entity, name string, scope Scope) *SubRefList {
	r := &SubRefList{}
	r.init(owner, name, scope)
	owner.addProperty(r)
	return r
}

// Kind implements Property.
func (r *SubRefList) Kind() Kind { return KindSubRefList }

// Values returns the referenced entities in entry order.
func (r *SubRefList) Values() []*Entity {
	return append([]*Entity(nil), r.targets...)
}

// Subs returns the stored sub paths, parallel to Values.
func (r *SubRefList) Subs() []string {
	return append([]string(nil), r.subs...)
}

// ResolvedSubs returns each entry's path in its freshest encoding.
func (r *SubRefList) ResolvedSubs() []string {
	out := make([]string, len(r.subs))
	for i, sub := range r.subs {
		out[i] = resolvedSub(sub, r.shadows[i])
	}
	return out
}

// SetValues replaces the entries. A nil subs keeps every path empty;
// otherwise subs must parallel targets.
func (r *SubRefList) SetValues(targets []*Entity, subs []string) error {
	if subs != nil && len(subs) != len(targets) {
		return fmt.Errorf("%w: %d targets, %d subs", ErrLengthMismatch, len(targets), len(subs))
	}
	for _, t := range targets {
		if t == nil {
			return fmt.Errorf("%w: nil entry", ErrInvalidReference)
		}
		if err := checkTarget(r.owner, t); err != nil {
			return err
		}
	}
	if subs == nil {
		subs = make([]string, len(targets))
	}
	return r.setValues(append([]*Entity(nil), targets...), append([]string(nil), subs...))
}

func (r *SubRefList) setValues(targets []*Entity, subs []string) error {
	if err := r.beginChange(r); err != nil {
		return err
	}
	for _, t := range r.targets {
		r.detachTarget(t)
	}
	r.clearLabels(r)
	r.targets = targets
	r.subs = subs
	r.shadows = make([]Shadow, len(subs))
	for i, t := range r.targets {
		r.attachTarget(t)
		r.registerLabels(r, r.subs[i])
	}
	r.endChange(r)
	return nil
}

// Collect implements Property.
func (r *SubRefList) Collect(targets []*Entity, subs *[]string, all bool) []*Entity {
	if !all && r.scope == ScopeHidden {
		return targets
	}
	for i, t := range r.targets {
		if subs != nil {
			*subs = append(*subs, resolvedSub(r.subs[i], r.shadows[i]))
		}
		targets = append(targets, t)
	}
	return targets
}

// PointsTo implements Property.
func (r *SubRefList) PointsTo(target *Entity, sub string) bool {
	for i, t := range r.targets {
		if t != target {
			continue
		}
		if sub == "" || r.subs[i] == sub || resolvedSub(r.subs[i], r.shadows[i]) == sub {
			return true
		}
	}
	return false
}

// Break implements Property.
func (r *SubRefList) Break(target *Entity, clear bool) {
	if clear && r.owner == target {
		_ = r.setValues(nil, nil)
		return
	}
	var targets []*Entity
	var subs []string
	for i, t := range r.targets {
		if t != target {
			targets = append(targets, t)
			subs = append(subs, r.subs[i])
		}
	}
	if len(targets) != len(r.targets) {
		_ = r.setValues(targets, subs)
	}
}

// AdjustPromoted implements Property. Entries targeting an entity inside
// avoid reroute through their path's leading segment; an entry that
// cannot reroute leaves the whole property unchanged.
func (r *SubRefList) AdjustPromoted(avoid map[*Entity]bool) bool {
	changed := false
	targets := append([]*Entity(nil), r.targets...)
	subs := append([]string(nil), r.subs...)
	for i, t := range r.targets {
		if t == nil || !avoid[t] {
			continue
		}
		it := subpath.NewIter(r.subs[i])
		seg, ok := it.Next()
		if !ok {
			return false
		}
		next := t.child(seg)
		if next == nil || avoid[next] {
			return false
		}
		targets[i] = next
		subs[i] = r.subs[i][seg.End+1:]
		changed = true
	}
	if !changed {
		return false
	}
	return r.setValues(targets, subs) == nil
}

// CopyOnReplace implements Property. A replacement landing on a (target,
// sub) pair that already exists in the list takes over the duplicate's
// position instead of appearing twice.
func (r *SubRefList) CopyOnReplace(parent, oldTarget, newTarget *Entity) (Property, error) {
	var targets []*Entity
	var subs []string
	var replaced []int
	found := false
	for i, t := range r.targets {
		next, sub, ok := tryReplaceRef(r.owner, t, parent, oldTarget, newTarget, r.subs[i])
		if ok {
			if !found {
				found = true
				targets = append(targets, r.targets[:i]...)
				subs = append(subs, r.subs[:i]...)
			}
			if next == newTarget {
				for j := 0; j < len(targets); {
					if targets[j] == next && subs[j] == sub {
						targets = append(targets[:j], targets[j+1:]...)
						subs = append(subs[:j], subs[j+1:]...)
					} else {
						j++
					}
				}
				replaced = append(replaced, len(targets))
			}
			targets = append(targets, next)
			subs = append(subs, sub)
			continue
		}
		if !found {
			continue
		}
		if t == newTarget {
			dup := false
			for _, p := range replaced {
				if p < len(subs) && subs[p] == r.subs[i] {
					dup = true
					break
				}
			}
			if dup {
				continue
			}
		}
		targets = append(targets, t)
		subs = append(subs, r.subs[i])
	}
	if !found {
		return nil, nil
	}
	return &SubRefList{targets: targets, subs: subs, shadows: make([]Shadow, len(subs))}, nil
}

// CopyOnRelabel implements Property.
func (r *SubRefList) CopyOnRelabel(target *Entity, ref, newLabel string) Property {
	var targets []*Entity
	var subs []string
	changed := false
	for i, t := range r.targets {
		sub, schanged := relabelSub(t, target, r.subs[i], ref, newLabel)
		if schanged && !changed {
			changed = true
			targets = append([]*Entity(nil), r.targets[:i]...)
			subs = append([]string(nil), r.subs[:i]...)
		}
		if changed {
			targets = append(targets, t)
			subs = append(subs, sub)
		}
	}
	if !changed {
		return nil
	}
	return &SubRefList{targets: targets, subs: subs, shadows: make([]Shadow, len(subs))}
}

// CopyOnImport implements Property.
func (r *SubRefList) CopyOnImport(nameMap map[string]string) (Property, error) {
	var targets []*Entity
	var subs []string
	changed := false
	for i, t := range r.targets {
		next, tchanged, err := tryImportTarget(t, nameMap)
		if err != nil {
			return nil, err
		}
		sub, schanged := tryImportSub(nameMap, r.subs[i])
		if (tchanged || schanged) && !changed {
			changed = true
			targets = append([]*Entity(nil), r.targets[:i]...)
			subs = append([]string(nil), r.subs[:i]...)
		}
		if changed {
			targets = append(targets, next)
			subs = append(subs, sub)
		}
	}
	if !changed {
		return nil, nil
	}
	return &SubRefList{targets: targets, subs: subs, shadows: make([]Shadow, len(subs))}, nil
}

// Copy implements Property.
func (r *SubRefList) Copy() Property {
	return &SubRefList{
		targets: append([]*Entity(nil), r.targets...),
		subs:    append([]string(nil), r.subs...),
		shadows: append([]Shadow(nil), r.shadows...),
	}
}

// Paste implements Property.
func (r *SubRefList) Paste(src Property) error {
	o, ok := src.(*SubRefList)
	if !ok {
		return fmt.Errorf("%w: %s into %s", ErrIncompatiblePaste, src.Kind(), r.Kind())
	}
	return r.SetValues(o.targets, o.subs)
}

// Same implements Property.
func (r *SubRefList) Same(other Property) bool {
	o, ok := other.(*SubRefList)
	if !ok || len(o.targets) != len(r.targets) {
		return false
	}
	for i, t := range r.targets {
		if o.targets[i] != t || o.subs[i] != r.subs[i] {
			return false
		}
	}
	return true
}

// Save implements Property.
func (r *SubRefList) Save(w *tagio.Writer) {
	head := []tagio.Attr{tagio.String("name", r.name)}
	head = appendScope(head, r.scope)
	head = append(head, tagio.Int("count", len(r.targets)))
	w.Start("SubRefList", head...)
	for i, t := range r.targets {
		attrs := make([]tagio.Attr, 0, 4)
		value := ""
		if t.Attached() {
			value = t.ExportName()
		}
		attrs = append(attrs, tagio.String("target", value))
		attrs = append(attrs, tagio.String("value", exportSubName(t, r.subs[i])))
		if sh := r.shadows[i]; sh.Old != "" && sh.Old != r.subs[i] {
			attrs = append(attrs, tagio.String("shadow", exportSubName(t, sh.Old)))
		}
		if sh := r.shadows[i]; sh.New != "" && sh.New != r.subs[i] {
			attrs = append(attrs, tagio.String("shadowed", exportSubName(t, sh.New)))
		}
		w.Empty("Entry", attrs...)
	}
	w.End("SubRefList")
}

// Restore implements Property.
func (r *SubRefList) Restore(rd *tagio.Reader, rep *Report) error {
	rec, err := rd.Element("SubRefList")
	if err != nil {
		return err
	}
	return r.restoreRecord(rd, rec, rep)
}

func (r *SubRefList) restoreRecord(rd *tagio.Reader, rec *tagio.Record, rep *Report) error {
	r.scope = restoreScope(rec)
	count := rec.IntAttr("count")

	for _, t := range r.targets {
		r.detachTarget(t)
	}
	r.clearLabels(r)
	r.targets = nil
	r.subs = nil
	r.shadows = nil

	for i := 0; i < count; i++ {
		item, err := rd.Element("Entry")
		if err != nil {
			return err
		}
		name := rd.MapName(item.Attr("target"))
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
		sub, shadow := restoreSub(rd, item)
		r.targets = append(r.targets, target)
		r.subs = append(r.subs, sub)
		r.shadows = append(r.shadows, shadow)
		r.attachTarget(target)
		r.registerLabels(r, sub)
	}
	return rd.End("SubRefList")
}

// UpdateElementReference implements Property.
func (r *SubRefList) UpdateElementReference(feature *Entity, reverse, notify bool, rep *Report) bool {
	g := changeGuard{b: &r.base, p: r, notify: notify}
	changed := false
	for i := range r.subs {
		if r.resolveElementSub(r, &g, feature, r.targets[i], &r.subs[i], &r.shadows[i], reverse, rep) {
			changed = true
		}
	}
	g.close()
	return changed
}

// AfterRestore implements Property.
func (r *SubRefList) AfterRestore(rep *Report) {
	for i, sub := range r.subs {
		next := restoreLabelReference(r.targets[i], sub)
		if next != sub {
			r.unregisterLabels(r, sub)
			r.registerLabels(r, next)
			r.subs[i] = next
		}
	}
	r.UpdateElementReference(nil, true, false, rep)
}

// OnContainerRestored implements Property.
func (r *SubRefList) OnContainerRestored(c *Container, rep *Report) {}

// Unbind implements Property.
func (r *SubRefList) Unbind() {
	for _, t := range r.targets {
		r.detachTarget(t)
	}
	r.targets = nil
	r.subs = nil
	r.shadows = nil
	r.unbind(r)
}
