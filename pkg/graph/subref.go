package graph

import (
	"fmt"

	"github.com/tetherworks/tether/pkg/graph/subpath"
	"github.com/tetherworks/tether/pkg/tagio"
)

// SubRef references one entity together with a list of sub-element paths
// into it. Each path carries a shadow pair that survives element renames.
type SubRef struct {
	base
	target  *Entity
	subs    []string
	shadows []Shadow
}

// NewSubRef creates a SubRef named name on owner.
func NewSubRef(owner *Entity, name string, scope Scope) *SubRef {
	r := &SubRef{}
	r.init(owner, name, scope)
	owner.addProperty(r)
	return r
}

// Kind implements Property.
func (r *SubRef) Kind() Kind { return KindSubRef }

// Value returns the referenced entity, or nil.
func (r *SubRef) Value() *Entity { return r.target }

// Subs returns the stored sub-element paths.
func (r *SubRef) Subs() []string {
	return append([]string(nil), r.subs...)
}

// ResolvedSubs returns each path in its freshest encoding: the shadow's
// content name when set, else its positional name, else the stored path.
func (r *SubRef) ResolvedSubs() []string {
	out := make([]string, len(r.subs))
	for i, sub := range r.subs {
		out[i] = resolvedSub(sub, r.shadows[i])
	}
	return out
}

// Shadows returns the shadow pairs, parallel to Subs.
func (r *SubRef) Shadows() []Shadow {
	return append([]Shadow(nil), r.shadows...)
}

// SetValue points the reference at target with the given sub paths.
// Shadow pairs reset and are re-derived by the next resolution pass.
func (r *SubRef) SetValue(target *Entity, subs ...string) error {
	if err := checkTarget(r.owner, target); err != nil {
		return err
	}
	if target == nil && len(subs) > 0 {
		return fmt.Errorf("%w: subs without a target", ErrInvalidReference)
	}
	return r.setValue(target, append([]string(nil), subs...))
}

func (r *SubRef) setValue(target *Entity, subs []string) error {
	if err := r.beginChange(r); err != nil {
		return err
	}
	r.detachTarget(r.target)
	r.clearLabels(r)
	r.target = target
	r.subs = subs
	r.shadows = make([]Shadow, len(subs))
	for _, sub := range subs {
		r.registerLabels(r, sub)
	}
	r.attachTarget(target)
	r.endChange(r)
	return nil
}

// Collect implements Property.
func (r *SubRef) Collect(targets []*Entity, subs *[]string, all bool) []*Entity {
	if r.target == nil || (!all && r.scope == ScopeHidden) {
		return targets
	}
	if subs == nil {
		return append(targets, r.target)
	}
	if len(r.subs) == 0 {
		*subs = append(*subs, "")
		return append(targets, r.target)
	}
	for i, sub := range r.subs {
		*subs = append(*subs, resolvedSub(sub, r.shadows[i]))
		targets = append(targets, r.target)
	}
	return targets
}

// PointsTo implements Property.
func (r *SubRef) PointsTo(target *Entity, sub string) bool {
	if r.target == nil || r.target != target {
		return false
	}
	if sub == "" {
		return true
	}
	for i, s := range r.subs {
		if s == sub || resolvedSub(s, r.shadows[i]) == sub {
			return true
		}
	}
	return false
}

// Break implements Property.
func (r *SubRef) Break(target *Entity, clear bool) {
	if r.target == target || (clear && r.owner == target) {
		_ = r.setValue(nil, nil)
	}
}

// AdjustPromoted implements Property. When the target sits inside avoid,
// the reference reroutes to the entity named by the shared leading
// segment of every sub path, dropping that segment. Reports false when
// the paths do not share a usable leading segment.
func (r *SubRef) AdjustPromoted(avoid map[*Entity]bool) bool {
	if r.target == nil || !avoid[r.target] {
		return false
	}
	next, subs := promoteThroughHead(r.target, r.subs, avoid)
	if next == nil {
		return false
	}
	return r.setValue(next, subs) == nil
}

// promoteThroughHead finds the entity named by the common first segment
// of subs within target and strips that segment from each path.
func promoteThroughHead(target *Entity, subs []string, avoid map[*Entity]bool) (*Entity, []string) {
	if len(subs) == 0 {
		return nil, nil
	}
	var head *Entity
	out := make([]string, len(subs))
	for i, sub := range subs {
		it := subpath.NewIter(sub)
		seg, ok := it.Next()
		if !ok {
			return nil, nil
		}
		next := target.child(seg)
		if next == nil || avoid[next] {
			return nil, nil
		}
		if head == nil {
			head = next
		} else if head != next {
			return nil, nil
		}
		out[i] = sub[seg.End+1:]
	}
	return head, out
}

// CopyOnReplace implements Property. Sub path positions resolve within
// the stored target when deciding whether a segment names oldTarget.
func (r *SubRef) CopyOnReplace(parent, oldTarget, newTarget *Entity) (Property, error) {
	next, subs, ok := tryReplaceRefSubs(r.owner, r.target, parent, oldTarget, newTarget, r.subs)
	if !ok {
		return nil, nil
	}
	return &SubRef{target: next, subs: subs, shadows: make([]Shadow, len(subs))}, nil
}

// CopyOnRelabel implements Property.
func (r *SubRef) CopyOnRelabel(target *Entity, ref, newLabel string) Property {
	subs := updateSubs(r.subs, func(sub string) (string, bool) {
		return relabelSub(r.target, target, sub, ref, newLabel)
	})
	if subs == nil {
		return nil
	}
	return &SubRef{target: r.target, subs: subs, shadows: make([]Shadow, len(subs))}
}

// CopyOnImport implements Property.
func (r *SubRef) CopyOnImport(nameMap map[string]string) (Property, error) {
	next, tchanged, err := tryImportTarget(r.target, nameMap)
	if err != nil {
		return nil, err
	}
	subs := updateSubs(r.subs, func(sub string) (string, bool) {
		return tryImportSub(nameMap, sub)
	})
	if !tchanged && subs == nil {
		return nil, nil
	}
	if subs == nil {
		subs = append([]string(nil), r.subs...)
	}
	return &SubRef{target: next, subs: subs, shadows: make([]Shadow, len(subs))}, nil
}

// Copy implements Property.
func (r *SubRef) Copy() Property {
	return &SubRef{
		target:  r.target,
		subs:    append([]string(nil), r.subs...),
		shadows: append([]Shadow(nil), r.shadows...),
	}
}

// Paste implements Property.
func (r *SubRef) Paste(src Property) error {
	o, ok := src.(*SubRef)
	if !ok {
		return fmt.Errorf("%w: %s into %s", ErrIncompatiblePaste, src.Kind(), r.Kind())
	}
	return r.SetValue(o.target, o.subs...)
}

// Same implements Property.
func (r *SubRef) Same(other Property) bool {
	o, ok := other.(*SubRef)
	if !ok || o.target != r.target || len(o.subs) != len(r.subs) {
		return false
	}
	for i, sub := range r.subs {
		if o.subs[i] != sub {
			return false
		}
	}
	return true
}

// Save implements Property.
func (r *SubRef) Save(w *tagio.Writer) {
	value := ""
	if r.target != nil && r.target.Attached() {
		value = r.target.ExportName()
	}
	attrs := []tagio.Attr{tagio.String("name", r.name)}
	attrs = appendScope(attrs, r.scope)
	attrs = append(attrs,
		tagio.String("value", value),
		tagio.Int("count", len(r.subs)))
	w.Start("SubRef", attrs...)
	for i, sub := range r.subs {
		saveSub(w, r.target, sub, r.shadows[i])
	}
	w.End("SubRef")
}

// Restore implements Property.
func (r *SubRef) Restore(rd *tagio.Reader, rep *Report) error {
	rec, err := rd.Element("SubRef")
	if err != nil {
		return err
	}
	return r.restoreRecord(rd, rec, rep)
}

func (r *SubRef) restoreRecord(rd *tagio.Reader, rec *tagio.Record, rep *Report) error {
	r.scope = restoreScope(rec)
	count := rec.IntAttr("count")

	r.detachTarget(r.target)
	r.clearLabels(r)
	r.target = nil
	r.subs = nil
	r.shadows = nil

	name := rd.MapName(rec.Attr("value"))
	var target *Entity
	switch {
	case name == "":
	case r.owner.container.Entity(name) == nil:
		rep.Warnf(r, "referenced entity %q not found, reference detached", name)
	case r.owner.container.Entity(name) == r.owner:
		rep.Warnf(r, "reference to owning entity %q dropped", name)
	default:
		target = r.owner.container.Entity(name)
	}

	for i := 0; i < count; i++ {
		item, err := rd.Element("Sub")
		if err != nil {
			return err
		}
		sub, shadow := restoreSub(rd, item)
		if target == nil {
			continue
		}
		r.subs = append(r.subs, sub)
		r.shadows = append(r.shadows, shadow)
		r.registerLabels(r, sub)
	}
	r.target = target
	r.attachTarget(target)
	return rd.End("SubRef")
}

// UpdateElementReference implements Property.
func (r *SubRef) UpdateElementReference(feature *Entity, reverse, notify bool, rep *Report) bool {
	g := changeGuard{b: &r.base, p: r, notify: notify}
	changed := false
	for i := range r.subs {
		if r.resolveElementSub(r, &g, feature, r.target, &r.subs[i], &r.shadows[i], reverse, rep) {
			changed = true
		}
	}
	g.close()
	return changed
}

// AfterRestore implements Property.
func (r *SubRef) AfterRestore(rep *Report) {
	r.restoreDeferredLabels(r.target)
	r.UpdateElementReference(nil, true, false, rep)
}

func (r *SubRef) restoreDeferredLabels(target *Entity) {
	for i, sub := range r.subs {
		next := restoreLabelReference(target, sub)
		if next != sub {
			r.unregisterLabels(r, sub)
			r.registerLabels(r, next)
			r.subs[i] = next
		}
	}
}

// OnContainerRestored implements Property.
func (r *SubRef) OnContainerRestored(c *Container, rep *Report) {}

// Unbind implements Property.
func (r *SubRef) Unbind() {
	r.detachTarget(r.target)
	r.target = nil
	r.subs = nil
	r.shadows = nil
	r.unbind(r)
}

// resolvedSub returns the freshest usable encoding of sub.
func resolvedSub(sub string, shadow Shadow) string {
	if shadow.New != "" {
		return shadow.New
	}
	if shadow.Old != "" && !subpath.IsMissing(shadow.Old) {
		return shadow.Old
	}
	return sub
}

func saveSub(w *tagio.Writer, target *Entity, sub string, shadow Shadow) {
	attrs := make([]tagio.Attr, 0, 3)
	attrs = append(attrs, tagio.String("value", exportSubName(target, sub)))
	if shadow.Old != "" && shadow.Old != sub {
		attrs = append(attrs, tagio.String("shadow", exportSubName(target, shadow.Old)))
	}
	if shadow.New != "" && shadow.New != sub {
		attrs = append(attrs, tagio.String("shadowed", exportSubName(target, shadow.New)))
	}
	w.Empty("Sub", attrs...)
}

func restoreSub(rd *tagio.Reader, rec *tagio.Record) (string, Shadow) {
	mapName := func(name string) string { return rd.MapName(name) }
	if !rd.Mapping() {
		mapName = nil
	}
	sub := importSubName(mapName, rec.Attr("value"))
	shadow := Shadow{
		Old: importSubName(mapName, rec.Attr("shadow")),
		New: importSubName(mapName, rec.Attr("shadowed")),
	}
	// A shadow half omitted on save because it equaled the stored sub
	// defaults back to it, so the pair is complete without a resolver
	// pass. Deferred-label subs wait for the label rewrite first.
	if !subpath.HasDeferredLabel(sub) {
		if subpath.IsMapped(sub) {
			if shadow.New == "" {
				shadow.New = sub
			}
		} else if shadow.Old == "" && !subpath.IsMissing(sub) {
			shadow.Old = sub
		}
	}
	return sub, shadow
}
