package graph

import (
	"sort"

	"github.com/tetherworks/tether/pkg/graph/subpath"
)

// EntityID is a stable arena identifier for an entity. Backlink sets and
// registries store ids, never pointers: a destroyed entity's id simply
// stops resolving.
type EntityID uint64

// Element is one named topological sub-part of an entity. Name is the
// positional encoding; Mapped, when present, is the content-derived
// encoding (prefixed with ';').
type Element struct {
	Name   string
	Mapped string
}

// Entity is a node in the object graph: uniquely named within its
// container, optionally labeled, optionally carrying elements and child
// entities for sub path resolution.
type Entity struct {
	sess      *Session
	container *Container
	id        EntityID
	name      string
	label     string

	destroying bool
	attached   bool
	restoring  bool

	exporting  bool
	exportName string

	children     []*Entity
	elements     []Element
	elementCache map[string][]string

	backlinks map[EntityID]int
	props     []Property

	touched int
}

// ID returns the entity's arena id.
func (e *Entity) ID() EntityID { return e.id }

// Name returns the container-unique internal name.
func (e *Entity) Name() string { return e.name }

// Label returns the human-readable label, which is not required unique.
func (e *Entity) Label() string { return e.label }

// Container returns the owning container.
func (e *Entity) Container() *Container { return e.container }

// Session returns the owning session.
func (e *Entity) Session() *Session { return e.sess }

// Attached reports whether the entity still belongs to a container.
func (e *Entity) Attached() bool { return e != nil && e.attached && !e.destroying }

// PendingDestroy reports whether destruction of the entity has begun.
// Graph operations consult this before touching cross-entity state.
func (e *Entity) PendingDestroy() bool { return e.destroying }

// FullName returns "<container>#<name>" for diagnostics.
func (e *Entity) FullName() string {
	if e == nil {
		return "?"
	}
	if e.container == nil {
		return e.name
	}
	return e.container.name + "#" + e.name
}

// Touched returns how many times a post-change hook fired for a property
// owned by this entity.
func (e *Entity) Touched() int { return e.touched }

// Touch marks the entity modified without changing any property value.
func (e *Entity) Touch() { e.touched++ }

// SetLabel renames the entity's label and propagates the rename to every
// registered reference property whose "$<oldLabel>." occurrence
// structurally resolves to this entity.
func (e *Entity) SetLabel(label string) {
	if label == e.label {
		return
	}
	updates := e.sess.UpdateLabelReferences(e, label)
	for _, u := range updates {
		// The copies were produced against the old value; installing
		// them swaps the patched text in.
		_ = u.Property.Paste(u.Replacement)
	}
	e.sess.relabelEntity(e, label)
}

// SetExporting enters export mode: ExportName returns name until
// ClearExporting is called.
func (e *Entity) SetExporting(name string) {
	e.exporting = true
	e.exportName = name
}

// ClearExporting leaves export mode.
func (e *Entity) ClearExporting() {
	e.exporting = false
	e.exportName = ""
}

// Exporting reports whether the entity is currently being exported.
func (e *Entity) Exporting() bool { return e.exporting }

// ExportName returns the export-stable name while exporting, otherwise
// the internal name.
func (e *Entity) ExportName() string {
	if e.exporting && e.exportName != "" {
		return e.exportName
	}
	return e.name
}

// AddChild appends a sub-entity for sub path resolution. A child may
// belong to a different container (cross-container assemblies).
func (e *Entity) AddChild(child *Entity) {
	e.children = append(e.children, child)
}

// RemoveChild removes a sub-entity.
func (e *Entity) RemoveChild(child *Entity) {
	for i, c := range e.children {
		if c == child {
			e.children = append(e.children[:i], e.children[i+1:]...)
			return
		}
	}
}

// Children returns the ordered sub-entities.
func (e *Entity) Children() []*Entity { return e.children }

// SubObject resolves the entity chain of a sub path: each complete
// '.'-terminated segment names a child by internal name, or by label when
// written "$<label>". The trailing element token is ignored. An empty
// path resolves to the entity itself; nil when any segment fails.
func (e *Entity) SubObject(path string) *Entity {
	cur := e
	it := subpath.NewIter(path)
	for seg, ok := it.Next(); ok; seg, ok = it.Next() {
		if cur == nil {
			return nil
		}
		cur = cur.child(seg)
	}
	return cur
}

func (e *Entity) child(seg subpath.Segment) *Entity {
	name := seg.Name()
	for _, c := range e.children {
		if seg.IsLabel() {
			if c.label == name {
				return c
			}
		} else if c.name == name {
			return c
		}
	}
	// A label segment may redundantly name the entity it follows, as in
	// "A.$Box." where A itself carries the label Box. Deferred markers
	// written for such segments resolve the same way by internal name.
	if seg.IsLabel() && e.label == name {
		return e
	}
	if seg.IsDeferredLabel() && e.name == name {
		return e
	}
	return nil
}

// AddElement registers a topological element on the entity. mapped may be
// empty when no content-derived encoding exists; otherwise it must carry
// the ';' prefix.
func (e *Entity) AddElement(name, mapped string) {
	e.elements = append(e.elements, Element{Name: name, Mapped: mapped})
}

// SetElements replaces the entire element table, as after a recompute.
func (e *Entity) SetElements(elements []Element) {
	e.elements = elements
}

// Elements returns the current element table.
func (e *Entity) Elements() []Element { return e.elements }

// SetElementCache records geometry-search candidates for a no longer
// present element name, consulted by TableResolver.SearchElementCache.
func (e *Entity) SetElementCache(oldElement string, candidates ...string) {
	if e.elementCache == nil {
		e.elementCache = make(map[string][]string)
	}
	e.elementCache[oldElement] = candidates
}

// Properties returns the reference properties owned by this entity in
// creation order.
func (e *Entity) Properties() []Property {
	return e.props
}

// Property returns the named reference property, or nil.
func (e *Entity) Property(name string) Property {
	for _, p := range e.props {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

func (e *Entity) addProperty(p Property) {
	e.props = append(e.props, p)
}

// addBacklink records one reference from a property of owner. Counts are
// per reference, so an owner referencing through several properties stays
// in the set until the last one drops. Never called for hidden-scope
// references.
func (e *Entity) addBacklink(owner *Entity) {
	if e.backlinks == nil {
		e.backlinks = make(map[EntityID]int)
	}
	e.backlinks[owner.id]++
}

// removeBacklink drops one reference from a property of owner.
func (e *Entity) removeBacklink(owner *Entity) {
	if n := e.backlinks[owner.id]; n > 1 {
		e.backlinks[owner.id] = n - 1
	} else {
		delete(e.backlinks, owner.id)
	}
}

// Backlinks returns the owners of non-hidden reference properties that
// currently target this entity, sorted by name. Ids that no longer
// resolve (destroyed owners) are skipped.
func (e *Entity) Backlinks() []*Entity {
	out := make([]*Entity, 0, len(e.backlinks))
	for id := range e.backlinks {
		if owner := e.sess.entity(id); owner != nil {
			out = append(out, owner)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
