package graph

import (
	"fmt"

	"github.com/tetherworks/tether/pkg/graph/subpath"
	"github.com/tetherworks/tether/pkg/tagio"
)

// Kind identifies a reference property variant.
type Kind int

const (
	KindRef Kind = iota
	KindRefList
	KindSubRef
	KindSubRefList
	KindXRef
	KindXRefList
)

// String returns the codec tag for the kind.
func (k Kind) String() string {
	switch k {
	case KindRef:
		return "Ref"
	case KindRefList:
		return "RefList"
	case KindSubRef:
		return "SubRef"
	case KindSubRefList:
		return "SubRefList"
	case KindXRef:
		return "XRef"
	case KindXRefList:
		return "XRefList"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Property is the behavior shared by every reference property variant.
// All methods are cooperative single-threaded, like the rest of the
// session.
type Property interface {
	// Name returns the property's name within its owner, or "" for a
	// list element.
	Name() string
	// Owner returns the owning entity, nil once the property is
	// unbound.
	Owner() *Entity
	// Scope returns the property's reference scope.
	Scope() Scope
	// Kind returns the variant tag.
	Kind() Kind

	// Collect appends the referenced entities to targets and, when
	// subs is non-nil, the corresponding sub-element paths (resolved
	// new names where available). Hidden-scope references are reported
	// only when all is set.
	Collect(targets []*Entity, subs *[]string, all bool) []*Entity
	// PointsTo reports whether the property references target, and,
	// when sub is non-empty, whether one of its paths equals sub
	// (either the stored or the resolved spelling).
	PointsTo(target *Entity, sub string) bool
	// Break removes every reference to target. With clear set,
	// references are removed even when target owns this property.
	Break(target *Entity, clear bool)
	// AdjustPromoted rewrites references to any entity in avoid so
	// they route through the entity's new enclosing context, and
	// reports whether anything changed. Variants that cannot reroute
	// return false and leave the value alone.
	AdjustPromoted(avoid map[*Entity]bool) bool

	// CopyOnReplace returns a copy of the property with references to
	// oldTarget replaced by newTarget, rerooted under parent where the
	// stored paths travel through it. A nil return means the property
	// holds no reference that the replacement affects.
	CopyOnReplace(parent, oldTarget, newTarget *Entity) (Property, error)
	// CopyOnRelabel returns a copy with label tokens matching ref
	// ("$old.") rewritten to newLabel, when an occurrence structurally
	// resolves to target. Nil means no occurrence resolved.
	CopyOnRelabel(target *Entity, ref, newLabel string) Property
	// CopyOnImport returns a copy with entity names translated through
	// nameMap, or nil when nothing mapped. A mapped name that resolves
	// to no entity is a hard error.
	CopyOnImport(nameMap map[string]string) (Property, error)

	// Copy returns a detached deep copy for transfer buffers.
	Copy() Property
	// Paste assigns src's value into this property. Kind mismatch
	// returns ErrIncompatiblePaste.
	Paste(src Property) error
	// Same reports whether other holds an identical value.
	Same(other Property) bool

	// Save writes the property's persisted record.
	Save(w *tagio.Writer)
	// Restore reads the persisted record written by Save.
	Restore(r *tagio.Reader, rep *Report) error

	// UpdateElementReference re-resolves element references against
	// feature's current naming and reports whether the stored value
	// changed. A nil feature re-resolves against every referenced
	// entity.
	UpdateElementReference(feature *Entity, reverse, notify bool, rep *Report) bool
	// AfterRestore runs the first resolution pass once the owning
	// container finished loading.
	AfterRestore(rep *Report)
	// OnContainerRestored completes deferred cross-container fixups
	// when another container becomes available.
	OnContainerRestored(c *Container, rep *Report)

	// Unbind drops every registration the property holds and clears
	// its value. After Unbind the property is inert.
	Unbind()
}

// base carries the bookkeeping common to all variants: identity,
// reentrancy guard, and registry membership.
type base struct {
	sess  *Session
	owner *Entity
	name  string
	scope Scope

	busy bool

	labels   map[string]int
	elements map[EntityID]struct{}
}

func (b *base) init(owner *Entity, name string, scope Scope) {
	b.sess = owner.sess
	b.owner = owner
	b.name = name
	b.scope = scope
}

func (b *base) Name() string   { return b.name }
func (b *base) Owner() *Entity { return b.owner }
func (b *base) Scope() Scope   { return b.scope }

// beginChange enters a mutation. Mutating a property from inside its
// own change notification is rejected.
func (b *base) beginChange(p Property) error {
	if b.busy {
		return fmt.Errorf("%w: %s", ErrReentrantMutation, propertyName(p))
	}
	b.busy = true
	b.sess.notifyAboutToChange(p)
	return nil
}

func (b *base) endChange(p Property) {
	b.sess.notifyChanged(p)
	b.busy = false
}

// registerLabels records p under every "$label." token in sub. Tokens
// are reference-counted so paths sharing a label unregister cleanly.
func (b *base) registerLabels(p Property, sub string) {
	var buf []string
	for _, label := range subpath.Labels(buf, sub) {
		if b.labels == nil {
			b.labels = make(map[string]int)
		}
		if b.labels[label] == 0 {
			b.sess.registerLabel(label, p)
		}
		b.labels[label]++
	}
}

func (b *base) unregisterLabels(p Property, sub string) {
	var buf []string
	for _, label := range subpath.Labels(buf, sub) {
		if n := b.labels[label]; n > 1 {
			b.labels[label] = n - 1
		} else if n == 1 {
			delete(b.labels, label)
			b.sess.unregisterLabel(label, p)
		}
	}
}

func (b *base) clearLabels(p Property) {
	for label := range b.labels {
		b.sess.unregisterLabel(label, p)
	}
	b.labels = nil
}

// registerElementEntity records p as depending on geo's element naming.
func (b *base) registerElementEntity(p Property, geo *Entity) {
	if geo == nil {
		return
	}
	if _, ok := b.elements[geo.id]; ok {
		return
	}
	if b.elements == nil {
		b.elements = make(map[EntityID]struct{})
	}
	b.elements[geo.id] = struct{}{}
	b.sess.registerElementRef(geo, p)
}

func (b *base) clearElementEntities(p Property) {
	for id := range b.elements {
		b.sess.unregisterElementRef(id, p)
	}
	b.elements = nil
}

// unbind drops all registry membership and detaches from the owner.
func (b *base) unbind(p Property) {
	b.clearLabels(p)
	b.clearElementEntities(p)
	b.owner = nil
}

func appendScope(attrs []tagio.Attr, s Scope) []tagio.Attr {
	if s != ScopeNormal {
		attrs = append(attrs, tagio.Int("scope", int(s)))
	}
	return attrs
}

func restoreScope(rec *tagio.Record) Scope {
	return Scope(rec.IntAttr("scope"))
}

// attachTarget adds the owner to target's backlinks, honoring scope.
func (b *base) attachTarget(target *Entity) {
	if target == nil || b.owner == nil {
		return
	}
	if b.scope == ScopeHidden {
		return
	}
	target.addBacklink(b.owner)
}

// detachTarget removes the owner from target's backlinks. Removal is
// skipped while the owner is being destroyed: the destroy sweep owns
// the teardown and a stale id is harmless.
func (b *base) detachTarget(target *Entity) {
	if target == nil || b.owner == nil {
		return
	}
	if b.scope == ScopeHidden {
		return
	}
	if b.owner.destroying {
		return
	}
	target.removeBacklink(b.owner)
}

func checkTarget(owner, target *Entity) error {
	if target == nil {
		return nil
	}
	if target == owner {
		return fmt.Errorf("%w: %s", ErrSelfReference, owner.FullName())
	}
	if !target.Attached() || target.PendingDestroy() {
		return fmt.Errorf("%w: %s", ErrInvalidReference, target.FullName())
	}
	if target.Container() != owner.Container() {
		return fmt.Errorf("%w: %s targets %s", ErrExternalDenied, owner.FullName(), target.FullName())
	}
	return nil
}
