package graph

import (
	"fmt"

	"github.com/tetherworks/tether/pkg/tagio"
)

// XRef references one entity that may live in another container,
// addressed by file path and entity name. While the external container
// is not loaded the reference stays detached but keeps its symbolic
// name, and attaches as soon as the container appears.
type XRef struct {
	base
	parent Property

	target  *Entity
	subs    []string
	shadows []Shadow

	info       *docInfo
	path       string
	targetName string
	stamp      string
	partial    bool
}

// NewXRef creates an XRef named name on owner.
func NewXRef(owner *Entity, name string, scope Scope) *XRef {
	r := &XRef{}
	r.init(owner, name, scope)
	owner.addProperty(r)
	return r
}

// newListXRef creates an unnamed element owned by list's owner.
func newListXRef(list *XRefList) *XRef {
	r := &XRef{parent: list}
	r.init(list.owner, "", list.scope)
	return r
}

// Kind implements Property.
func (r *XRef) Kind() Kind { return KindXRef }

// prop returns the property identity used for notifications: the
// aggregating list when this reference is one of its elements.
func (r *XRef) prop() Property {
	if r.parent != nil {
		return r.parent
	}
	return r
}

func (r *XRef) listBatching() bool {
	l, ok := r.parent.(*XRefList)
	return ok && l.batch > 0
}

func (r *XRef) beginEdit() error {
	if r.listBatching() {
		if r.busy {
			return fmt.Errorf("%w: %s", ErrReentrantMutation, propertyName(r))
		}
		r.busy = true
		return nil
	}
	return r.beginChange(r.prop())
}

func (r *XRef) endEdit() {
	if r.listBatching() {
		r.busy = false
		return
	}
	r.endChange(r.prop())
}

// Value returns the referenced entity, or nil while detached.
func (r *XRef) Value() *Entity { return r.target }

// Path returns the external container path, or "" for a same-container
// reference.
func (r *XRef) Path() string { return r.path }

// TargetName returns the referenced entity's name. It survives
// detachment, so a closed external container can be reopened and the
// reference reattached.
func (r *XRef) TargetName() string {
	if r.target != nil {
		return r.target.Name()
	}
	return r.targetName
}

// Subs returns the stored sub-element paths.
func (r *XRef) Subs() []string {
	return append([]string(nil), r.subs...)
}

// ResolvedSubs returns each path in its freshest encoding.
func (r *XRef) ResolvedSubs() []string {
	out := make([]string, len(r.subs))
	for i, sub := range r.subs {
		out[i] = resolvedSub(sub, r.shadows[i])
	}
	return out
}

// Shadows returns the shadow pairs, parallel to Subs.
func (r *XRef) Shadows() []Shadow {
	return append([]Shadow(nil), r.shadows...)
}

// SetValue points the reference at a loaded entity, same-container or
// external. External targets require their container to have a save
// location.
func (r *XRef) SetValue(target *Entity, subs ...string) error {
	if target == nil {
		return r.clearValue()
	}
	if target == r.owner {
		return fmt.Errorf("%w: %s", ErrSelfReference, r.owner.FullName())
	}
	if !target.Attached() || target.PendingDestroy() {
		return fmt.Errorf("%w: %s", ErrInvalidReference, target.FullName())
	}
	if target.Container() == r.owner.Container() {
		return r.set(target, "", "", nil, append([]string(nil), subs...))
	}
	if !r.sess.allowExternal {
		return fmt.Errorf("%w: %s targets %s", ErrExternalDenied, r.owner.FullName(), target.FullName())
	}
	path := target.Container().FilePath()
	if path == "" {
		return fmt.Errorf("%w: container %q", ErrContainerNotSaved, target.Container().Name())
	}
	info, err := r.sess.acquireDocInfo(r.owner.Container(), path, target.Name(), r)
	if err != nil {
		return err
	}
	return r.setInfo(target, path, target.Name(), info, append([]string(nil), subs...))
}

// SetExternal points the reference into the container at path, loaded or
// not. An unloaded container leaves the reference pending; it attaches
// when the container is opened or saved under that path.
func (r *XRef) SetExternal(path, targetName string, subs ...string) error {
	if !r.sess.allowExternal {
		return fmt.Errorf("%w: %s", ErrExternalDenied, r.owner.FullName())
	}
	info, err := r.sess.acquireDocInfo(r.owner.Container(), path, targetName, r)
	if err != nil {
		return err
	}
	var target *Entity
	if info.container != nil {
		target = info.container.Entity(targetName)
	}
	if target == r.owner {
		info.release(r)
		return fmt.Errorf("%w: %s", ErrSelfReference, r.owner.FullName())
	}
	return r.setInfo(target, path, targetName, info, append([]string(nil), subs...))
}

func (r *XRef) clearValue() error {
	return r.set(nil, "", "", nil, nil)
}

func (r *XRef) set(target *Entity, path, targetName string, info *docInfo, subs []string) error {
	if err := r.beginEdit(); err != nil {
		if info != nil && info != r.info {
			info.release(r)
		}
		return err
	}
	if r.info != nil && r.info != info {
		r.info.release(r)
	}
	r.detachTarget(r.target)
	r.clearLabels(r)
	r.target = target
	r.subs = subs
	r.shadows = make([]Shadow, len(subs))
	r.info = info
	r.path = path
	r.targetName = targetName
	r.stamp = ""
	r.partial = false
	if info != nil && info.container != nil {
		r.stamp = info.stamp
		r.partial = info.container.Partial()
	}
	for _, sub := range subs {
		r.registerLabels(r, sub)
	}
	r.attachTarget(target)
	r.endEdit()
	return nil
}

func (r *XRef) setInfo(target *Entity, path, targetName string, info *docInfo, subs []string) error {
	return r.set(target, path, targetName, info, subs)
}

// detachContainer drops the resolved target while keeping the symbolic
// name, as when the external container closes.
func (r *XRef) detachContainer() {
	if r.target == nil {
		return
	}
	if err := r.beginEdit(); err != nil {
		return
	}
	r.targetName = r.target.Name()
	r.detachTarget(r.target)
	r.target = nil
	r.endEdit()
}

// CheckRestore reports whether the external target survived the last
// restore cycle and whether its file changed underneath it.
func (r *XRef) CheckRestore() RestoreStatus {
	if r.path == "" {
		return RestoreOK
	}
	if r.target == nil || r.info == nil || r.info.container == nil {
		return RestoreMissing
	}
	if r.info.isModified() {
		return RestoreStampChanged
	}
	if r.stamp != "" && r.stamp != r.info.container.Stamp() {
		return RestoreStampChanged
	}
	return RestoreOK
}

// Collect implements Property. A detached external reference has no
// entity to report.
func (r *XRef) Collect(targets []*Entity, subs *[]string, all bool) []*Entity {
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
func (r *XRef) PointsTo(target *Entity, sub string) bool {
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
func (r *XRef) Break(target *Entity, clear bool) {
	if r.target == target || (clear && r.owner == target) {
		_ = r.clearValue()
	}
}

// AdjustPromoted implements Property.
func (r *XRef) AdjustPromoted(avoid map[*Entity]bool) bool {
	if r.target == nil || !avoid[r.target] {
		return false
	}
	next, subs := promoteThroughHead(r.target, r.subs, avoid)
	if next == nil {
		return false
	}
	return r.SetValue(next, subs...) == nil
}

// CopyOnReplace implements Property.
func (r *XRef) CopyOnReplace(parent, oldTarget, newTarget *Entity) (Property, error) {
	next, subs, ok := tryReplaceRefSubs(r.owner, r.target, parent, oldTarget, newTarget, r.subs)
	if !ok {
		return nil, nil
	}
	return r.detachedCopy(next, subs), nil
}

// CopyOnRelabel implements Property.
func (r *XRef) CopyOnRelabel(target *Entity, ref, newLabel string) Property {
	subs := updateSubs(r.subs, func(sub string) (string, bool) {
		return relabelSub(r.target, target, sub, ref, newLabel)
	})
	if subs == nil {
		return nil
	}
	return r.detachedCopy(r.target, subs)
}

// CopyOnImport implements Property. The external path is container
// metadata and never remaps; only same-container targets and sub path
// segments do.
func (r *XRef) CopyOnImport(nameMap map[string]string) (Property, error) {
	next := r.target
	tchanged := false
	if r.path == "" {
		var err error
		next, tchanged, err = tryImportTarget(r.target, nameMap)
		if err != nil {
			return nil, err
		}
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
	return r.detachedCopy(next, subs), nil
}

func (r *XRef) detachedCopy(target *Entity, subs []string) *XRef {
	return &XRef{
		target:     target,
		subs:       subs,
		shadows:    make([]Shadow, len(subs)),
		path:       r.path,
		targetName: r.TargetName(),
		stamp:      r.stamp,
		partial:    r.partial,
	}
}

// Copy implements Property.
func (r *XRef) Copy() Property {
	c := r.detachedCopy(r.target, append([]string(nil), r.subs...))
	c.shadows = append([]Shadow(nil), r.shadows...)
	return c
}

// Paste implements Property.
func (r *XRef) Paste(src Property) error {
	o, ok := src.(*XRef)
	if !ok {
		return fmt.Errorf("%w: %s into %s", ErrIncompatiblePaste, src.Kind(), r.Kind())
	}
	if o.target != nil {
		return r.SetValue(o.target, o.subs...)
	}
	if o.path != "" {
		return r.SetExternal(o.path, o.targetName, o.subs...)
	}
	return r.clearValue()
}

// Same implements Property.
func (r *XRef) Same(other Property) bool {
	o, ok := other.(*XRef)
	if !ok || o.target != r.target || o.path != r.path ||
		o.TargetName() != r.TargetName() || len(o.subs) != len(r.subs) {
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
func (r *XRef) Save(w *tagio.Writer) {
	w.Start("XRef", r.saveAttrs(true)...)
	for i, sub := range r.subs {
		saveSub(w, r.target, sub, r.shadows[i])
	}
	w.End("XRef")
}

func (r *XRef) saveAttrs(named bool) []tagio.Attr {
	attrs := make([]tagio.Attr, 0, 6)
	if named {
		attrs = append(attrs, tagio.String("name", r.name))
		attrs = appendScope(attrs, r.scope)
	}
	value := r.TargetName()
	if r.target != nil && r.target.Attached() {
		value = r.target.ExportName()
	}
	attrs = append(attrs, tagio.String("value", value))
	if r.path != "" {
		attrs = append(attrs, tagio.String("file", r.path))
		stamp := r.stamp
		if r.info != nil && r.info.container != nil {
			stamp = r.info.container.Stamp()
		}
		if stamp != "" {
			attrs = append(attrs, tagio.String("stamp", stamp))
		}
		if r.externalPartial() {
			attrs = append(attrs, tagio.Int("partial", 1))
		}
	}
	attrs = append(attrs, tagio.Int("count", len(r.subs)))
	return attrs
}

func (r *XRef) externalPartial() bool {
	if r.info != nil && r.info.container != nil {
		return r.info.container.Partial()
	}
	return r.partial
}

// Restore implements Property.
func (r *XRef) Restore(rd *tagio.Reader, rep *Report) error {
	rec, err := rd.Element("XRef")
	if err != nil {
		return err
	}
	if err := r.restoreRecord(rd, rec, rep); err != nil {
		return err
	}
	return rd.End("XRef")
}

func (r *XRef) restoreRecord(rd *tagio.Reader, rec *tagio.Record, rep *Report) error {
	if rec.Has("scope") {
		r.scope = restoreScope(rec)
	}
	count := rec.IntAttr("count")

	if r.info != nil {
		r.info.release(r)
		r.info = nil
	}
	r.detachTarget(r.target)
	r.clearLabels(r)
	r.target = nil
	r.subs = nil
	r.shadows = nil

	r.path = rec.Attr("file")
	r.stamp = rec.Attr("stamp")
	r.partial = rec.IntAttr("partial") != 0
	name := rec.Attr("value")
	if r.path == "" {
		name = rd.MapName(name)
	}
	r.targetName = name

	for i := 0; i < count; i++ {
		item, err := rd.Element("Sub")
		if err != nil {
			return err
		}
		sub, shadow := restoreSub(rd, item)
		r.subs = append(r.subs, sub)
		r.shadows = append(r.shadows, shadow)
		r.registerLabels(r, sub)
	}

	if r.path == "" && name != "" {
		target := r.owner.container.Entity(name)
		switch {
		case target == nil:
			rep.Warnf(r, "referenced entity %q not found, reference detached", name)
		case target == r.owner:
			rep.Warnf(r, "reference to owning entity %q dropped", name)
			r.targetName = ""
		default:
			r.target = target
			r.attachTarget(target)
		}
	}
	return nil
}

// UpdateElementReference implements Property.
func (r *XRef) UpdateElementReference(feature *Entity, reverse, notify bool, rep *Report) bool {
	g := changeGuard{b: &r.base, p: r.prop(), notify: notify && !r.listBatching()}
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
func (r *XRef) AfterRestore(rep *Report) {
	if r.path == "" {
		r.restoreDeferredLabels()
		r.UpdateElementReference(nil, true, false, rep)
		return
	}
	info, err := r.sess.acquireDocInfo(r.owner.Container(), r.path, r.targetName, r)
	if err != nil {
		rep.Errorf(r, "external container %q unavailable: %v", r.path, err)
		return
	}
	r.info = info
	if info.container != nil {
		r.attachExternal(info.container, rep)
	}
}

// OnContainerRestored implements Property.
func (r *XRef) OnContainerRestored(c *Container, rep *Report) {
	if r.path == "" || r.info == nil || r.info.container != c {
		return
	}
	r.attachExternal(c, rep)
}

// pendingAttach reports whether restoring c would swap this reference's
// value.
func (r *XRef) pendingAttach(c *Container) bool {
	if r.path == "" || r.info == nil || r.info.container != c {
		return false
	}
	target := c.Entity(r.targetName)
	return target != nil && target != r.target
}

func (r *XRef) attachExternal(c *Container, rep *Report) {
	target := c.Entity(r.targetName)
	if target == nil {
		if c.Partial() && r.sess.loader != nil {
			r.sess.loader.RequestPendingLoad(r.info.key, r.targetName, false)
		}
		rep.Warnf(r, "entity %q not found in %q, reference stays detached", r.targetName, r.path)
		return
	}
	if r.target == target {
		return
	}
	if err := r.beginEdit(); err != nil {
		rep.Errorf(r, "%v", err)
		return
	}
	r.detachTarget(r.target)
	r.target = target
	r.partial = c.Partial()
	r.attachTarget(target)
	r.restoreDeferredLabels()
	r.endEdit()
	r.UpdateElementReference(nil, true, false, rep)
}

func (r *XRef) restoreDeferredLabels() {
	for i, sub := range r.subs {
		next := restoreLabelReference(r.target, sub)
		if next != sub {
			r.unregisterLabels(r, sub)
			r.registerLabels(r, next)
			r.subs[i] = next
		}
	}
}

// Unbind implements Property.
func (r *XRef) Unbind() {
	if r.info != nil {
		r.info.release(r)
		r.info = nil
	}
	r.detachTarget(r.target)
	r.target = nil
	r.subs = nil
	r.shadows = nil
	r.unbind(r)
}
