package graph

import (
	"fmt"

	"github.com/tetherworks/tether/pkg/tagio"
)

// XRefEntry describes one element of an XRefList: either a loaded
// target, or a (path, name) pair into a container that may not be
// loaded yet.
type XRefEntry struct {
	Target     *Entity
	Path       string
	TargetName string
	Subs       []string
}

// XRefList references an ordered list of possibly-external entities.
// Each element behaves like an XRef; change notifications are batched
// and fire once for the whole list.
type XRefList struct {
	base
	refs  []*XRef
	batch int
}

// NewXRefList creates an XRefList named name on owner.
func NewXRefList(owner *Entity, name string, scope Scope) *XRefList {
	r := &XRefList{}
	r.init(owner, name, scope)
	owner.addProperty(r)
	return r
}

// Kind implements Property.
func (l *XRefList) Kind() Kind { return KindXRefList }

// Entries returns the current elements. Detached externals report their
// symbolic names with a nil Target.
func (l *XRefList) Entries() []XRefEntry {
	out := make([]XRefEntry, len(l.refs))
	for i, c := range l.refs {
		out[i] = XRefEntry{
			Target:     c.target,
			Path:       c.path,
			TargetName: c.TargetName(),
			Subs:       c.Subs(),
		}
	}
	return out
}

// Refs returns the elements themselves, for per-element inspection such
// as CheckRestore.
func (l *XRefList) Refs() []*XRef {
	return append([]*XRef(nil), l.refs...)
}

// SetEntries replaces the list. The new value is built completely
// before the old one is torn down, so a failing entry leaves the list
// unchanged.
func (l *XRefList) SetEntries(entries []XRefEntry) error {
	next := make([]*XRef, 0, len(entries))
	fail := func(err error) error {
		for _, c := range next {
			c.Unbind()
		}
		return err
	}
	l.batch++
	for _, en := range entries {
		child := newListXRef(l)
		var err error
		switch {
		case en.Target != nil:
			err = child.SetValue(en.Target, en.Subs...)
		case en.Path != "":
			err = child.SetExternal(en.Path, en.TargetName, en.Subs...)
		default:
			err = fmt.Errorf("%w: entry has neither target nor path", ErrInvalidReference)
		}
		if err != nil {
			child.Unbind()
			l.batch--
			return fail(err)
		}
		next = append(next, child)
	}
	l.batch--
	if err := l.beginChange(l); err != nil {
		return fail(err)
	}
	l.batch++
	for _, c := range l.refs {
		c.Unbind()
	}
	l.refs = next
	l.batch--
	l.endChange(l)
	return nil
}

// Collect implements Property.
func (l *XRefList) Collect(targets []*Entity, subs *[]string, all bool) []*Entity {
	if !all && l.scope == ScopeHidden {
		return targets
	}
	for _, c := range l.refs {
		targets = c.Collect(targets, subs, all)
	}
	return targets
}

// PointsTo implements Property.
func (l *XRefList) PointsTo(target *Entity, sub string) bool {
	for _, c := range l.refs {
		if c.PointsTo(target, sub) {
			return true
		}
	}
	return false
}

// Break implements Property. Elements whose reference was cleared are
// removed from the list.
func (l *XRefList) Break(target *Entity, clear bool) {
	hit := false
	for _, c := range l.refs {
		if c.target == target || (clear && l.owner == target) {
			hit = true
			break
		}
	}
	if !hit {
		return
	}
	if err := l.beginChange(l); err != nil {
		return
	}
	l.batch++
	kept := l.refs[:0:0]
	for _, c := range l.refs {
		c.Break(target, clear)
		if c.target == nil && c.path == "" {
			c.Unbind()
			continue
		}
		kept = append(kept, c)
	}
	l.refs = kept
	l.batch--
	l.endChange(l)
}

// AdjustPromoted implements Property.
func (l *XRefList) AdjustPromoted(avoid map[*Entity]bool) bool {
	changed := false
	l.batch++
	for _, c := range l.refs {
		if c.AdjustPromoted(avoid) {
			changed = true
		}
	}
	l.batch--
	if changed {
		l.sess.notifyChanged(l)
	}
	return changed
}

// copyOnEach builds a copy of the list by running transform over each
// element, or returns nil when no element changed.
func (l *XRefList) copyOnEach(transform func(*XRef) (Property, error)) (Property, error) {
	var next []*XRef
	for i, c := range l.refs {
		repl, err := transform(c)
		if err != nil {
			return nil, err
		}
		if repl != nil && next == nil {
			next = make([]*XRef, i, len(l.refs))
			for j, prev := range l.refs[:i] {
				next[j] = prev.Copy().(*XRef)
			}
		}
		if next != nil {
			if repl != nil {
				next = append(next, repl.(*XRef))
			} else {
				next = append(next, c.Copy().(*XRef))
			}
		}
	}
	if next == nil {
		return nil, nil
	}
	return &XRefList{refs: next}, nil
}

// CopyOnReplace implements Property.
func (l *XRefList) CopyOnReplace(parent, oldTarget, newTarget *Entity) (Property, error) {
	return l.copyOnEach(func(c *XRef) (Property, error) {
		return c.CopyOnReplace(parent, oldTarget, newTarget)
	})
}

// CopyOnRelabel implements Property.
func (l *XRefList) CopyOnRelabel(target *Entity, ref, newLabel string) Property {
	p, _ := l.copyOnEach(func(c *XRef) (Property, error) {
		return c.CopyOnRelabel(target, ref, newLabel), nil
	})
	return p
}

// CopyOnImport implements Property.
func (l *XRefList) CopyOnImport(nameMap map[string]string) (Property, error) {
	return l.copyOnEach(func(c *XRef) (Property, error) {
		return c.CopyOnImport(nameMap)
	})
}

// Copy implements Property.
func (l *XRefList) Copy() Property {
	next := make([]*XRef, len(l.refs))
	for i, c := range l.refs {
		next[i] = c.Copy().(*XRef)
	}
	return &XRefList{refs: next}
}

// Paste implements Property.
func (l *XRefList) Paste(src Property) error {
	o, ok := src.(*XRefList)
	if !ok {
		return fmt.Errorf("%w: %s into %s", ErrIncompatiblePaste, src.Kind(), l.Kind())
	}
	return l.SetEntries(o.Entries())
}

// Same implements Property.
func (l *XRefList) Same(other Property) bool {
	o, ok := other.(*XRefList)
	if !ok || len(o.refs) != len(l.refs) {
		return false
	}
	for i, c := range l.refs {
		if !c.Same(o.refs[i]) {
			return false
		}
	}
	return true
}

// Save implements Property.
func (l *XRefList) Save(w *tagio.Writer) {
	attrs := []tagio.Attr{tagio.String("name", l.name)}
	attrs = appendScope(attrs, l.scope)
	attrs = append(attrs, tagio.Int("count", len(l.refs)))
	w.Start("XRefList", attrs...)
	for _, c := range l.refs {
		w.Start("XRef", c.saveAttrs(false)...)
		for i, sub := range c.subs {
			saveSub(w, c.target, sub, c.shadows[i])
		}
		w.End("XRef")
	}
	w.End("XRefList")
}

// Restore implements Property.
func (l *XRefList) Restore(rd *tagio.Reader, rep *Report) error {
	rec, err := rd.Element("XRefList")
	if err != nil {
		return err
	}
	return l.restoreRecord(rd, rec, rep)
}

func (l *XRefList) restoreRecord(rd *tagio.Reader, rec *tagio.Record, rep *Report) error {
	l.scope = restoreScope(rec)
	count := rec.IntAttr("count")

	l.batch++
	for _, c := range l.refs {
		c.Unbind()
	}
	l.refs = nil
	for i := 0; i < count; i++ {
		item, err := rd.Element("XRef")
		if err != nil {
			l.batch--
			return err
		}
		child := newListXRef(l)
		if err := child.restoreRecord(rd, item, rep); err != nil {
			l.batch--
			return err
		}
		if err := rd.End("XRef"); err != nil {
			l.batch--
			return err
		}
		l.refs = append(l.refs, child)
	}
	l.batch--
	return rd.End("XRefList")
}

// UpdateElementReference implements Property.
func (l *XRefList) UpdateElementReference(feature *Entity, reverse, notify bool, rep *Report) bool {
	changed := false
	l.batch++
	for _, c := range l.refs {
		if c.UpdateElementReference(feature, reverse, false, rep) {
			changed = true
		}
	}
	l.batch--
	if changed && notify {
		l.sess.notifyChanged(l)
		l.sess.notifyReferenceUpdated(l)
	}
	return changed
}

// AfterRestore implements Property.
func (l *XRefList) AfterRestore(rep *Report) {
	l.batch++
	for _, c := range l.refs {
		c.AfterRestore(rep)
	}
	l.batch--
}

// OnContainerRestored implements Property. Entries into c attach as one
// group under a single change notification.
func (l *XRefList) OnContainerRestored(c *Container, rep *Report) {
	changing := false
	for _, ref := range l.refs {
		if ref.pendingAttach(c) {
			changing = true
			break
		}
	}
	if changing {
		if err := l.beginChange(l); err != nil {
			rep.Errorf(l, "%v", err)
			return
		}
	}
	l.batch++
	for _, ref := range l.refs {
		ref.OnContainerRestored(c, rep)
	}
	l.batch--
	if changing {
		l.endChange(l)
	}
}

// Unbind implements Property.
func (l *XRefList) Unbind() {
	for _, c := range l.refs {
		c.Unbind()
	}
	l.refs = nil
	l.unbind(l)
}
