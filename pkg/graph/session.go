package graph

import (
	"fmt"
	"log/slog"
	"sort"
)

// Session is the process-scoped context for one independent graph
// instance: the entity arena, the containers, and the cross-cutting
// registries (label references, element backlinks, external container
// descriptors). Multiple sessions never share state.
type Session struct {
	logger   *slog.Logger
	resolver ElementResolver
	loader   LoadRequester
	watcher  *StalenessWatcher

	// OnAboutToChange fires before a reference property's value swap.
	OnAboutToChange func(Property)
	// OnChanged fires after a reference property's value swap.
	OnChanged func(Property)
	// OnReferenceUpdated fires when shadow resolution rewired a
	// property's resolved elements; hosts use it to mark dependents
	// touched.
	OnReferenceUpdated func(Property)

	allowExternal bool

	nextID     EntityID
	arena      map[EntityID]*Entity
	containers map[string]*Container

	labelRefs   map[string]map[Property]struct{}
	elementRefs map[EntityID]map[Property]struct{}
	docInfos    map[string]*docInfo
}

// NewSession creates an empty session logging through slog.Default.
func NewSession() *Session {
	return &Session{
		logger:        slog.Default(),
		allowExternal: true,
		arena:         make(map[EntityID]*Entity),
		containers:    make(map[string]*Container),
		labelRefs:     make(map[string]map[Property]struct{}),
		elementRefs:   make(map[EntityID]map[Property]struct{}),
		docInfos:      make(map[string]*docInfo),
	}
}

// SetLogger replaces the session logger.
func (s *Session) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// SetResolver installs the geometry-naming capability used by element
// shadow resolution. Without a resolver, shadows are left untouched.
func (s *Session) SetResolver(r ElementResolver) { s.resolver = r }

// SetLoadRequester installs the host callback for queueing pending
// external container loads.
func (s *Session) SetLoadRequester(l LoadRequester) { s.loader = l }

// SetAllowExternal controls whether external reference properties may
// target entities outside their owner's container. Enabled by default;
// non-external variants always reject cross-container targets.
func (s *Session) SetAllowExternal(allow bool) { s.allowExternal = allow }

func (s *Session) allocID() EntityID {
	s.nextID++
	return s.nextID
}

func (s *Session) entity(id EntityID) *Entity {
	return s.arena[id]
}

// NewContainer creates a named container. Returns ErrNameTaken when the
// name is in use.
func (s *Session) NewContainer(name string) (*Container, error) {
	if name == "" {
		return nil, ErrInvalidName
	}
	if _, ok := s.containers[name]; ok {
		return nil, fmt.Errorf("%w: container %q", ErrNameTaken, name)
	}
	c := newContainer(s, name)
	s.containers[name] = c
	return c, nil
}

// Container returns the named container, or nil.
func (s *Session) Container(name string) *Container {
	return s.containers[name]
}

// Containers returns the open containers sorted by name.
func (s *Session) Containers() []*Container {
	out := make([]*Container, 0, len(s.containers))
	for _, c := range s.containers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// BreakLinks clears every reference to target held by properties of the
// given owners. With clear set, references owned by target itself are
// cleared too.
func (s *Session) BreakLinks(target *Entity, owners []*Entity, clear bool) {
	for _, owner := range owners {
		for _, p := range append([]Property(nil), owner.props...) {
			p.Break(target, clear)
		}
	}
}

// label registry

func (s *Session) registerLabel(label string, p Property) {
	set := s.labelRefs[label]
	if set == nil {
		set = make(map[Property]struct{})
		s.labelRefs[label] = set
	}
	set[p] = struct{}{}
}

func (s *Session) unregisterLabel(label string, p Property) {
	if set, ok := s.labelRefs[label]; ok {
		delete(set, p)
		if len(set) == 0 {
			delete(s.labelRefs, label)
		}
	}
}

// LabelUpdate pairs a registered property with its copy-on-write
// replacement produced by a label rename.
type LabelUpdate struct {
	Property    Property
	Replacement Property
}

// UpdateLabelReferences computes, for every property registered under
// obj's current label, a copy with "$<oldLabel>." occurrences that
// structurally resolve to obj rewritten to "$<newLabel>.". Properties
// with no resolving occurrence yield no update.
func (s *Session) UpdateLabelReferences(obj *Entity, newLabel string) []LabelUpdate {
	if obj == nil || !obj.Attached() {
		return nil
	}
	set := s.labelRefs[obj.label]
	if len(set) == 0 {
		return nil
	}
	ref := "$" + obj.label + "."

	// Snapshot: CopyOnRelabel may call out through hooks that mutate
	// the registry.
	props := make([]Property, 0, len(set))
	for p := range set {
		props = append(props, p)
	}
	sort.Slice(props, func(i, j int) bool {
		return propertyName(props[i]) < propertyName(props[j])
	})

	var updates []LabelUpdate
	for _, p := range props {
		if p.Owner() == nil {
			continue
		}
		if replacement := p.CopyOnRelabel(obj, ref, newLabel); replacement != nil {
			updates = append(updates, LabelUpdate{Property: p, Replacement: replacement})
		}
	}
	return updates
}

func (s *Session) relabelEntity(e *Entity, label string) {
	e.label = label
}

// element-backlink registry

func (s *Session) registerElementRef(geo *Entity, p Property) {
	set := s.elementRefs[geo.id]
	if set == nil {
		set = make(map[Property]struct{})
		s.elementRefs[geo.id] = set
	}
	set[p] = struct{}{}
}

func (s *Session) unregisterElementRef(id EntityID, p Property) {
	if set, ok := s.elementRefs[id]; ok {
		delete(set, p)
		if len(set) == 0 {
			delete(s.elementRefs, id)
		}
	}
}

// ElementReferences returns the properties whose element resolution
// depends on feature's element naming.
func (s *Session) ElementReferences(feature *Entity) []Property {
	set := s.elementRefs[feature.id]
	out := make([]Property, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return propertyName(out[i]) < propertyName(out[j])
	})
	return out
}

// UpdateElementReferences re-resolves every property registered against
// feature's element naming, as after a recompute changed its topology.
// reverse selects the restore-time migration mode.
func (s *Session) UpdateElementReferences(feature *Entity, reverse bool) *Report {
	rep := s.NewReport()
	if feature == nil || !feature.Attached() {
		return rep
	}
	for _, p := range s.ElementReferences(feature) {
		if p.Owner() == nil {
			continue
		}
		p.UpdateElementReference(feature, reverse, true, rep)
	}
	return rep
}

func (s *Session) notifyAboutToChange(p Property) {
	if s.OnAboutToChange != nil {
		s.OnAboutToChange(p)
	}
}

func (s *Session) notifyChanged(p Property) {
	if owner := p.Owner(); owner != nil {
		owner.touched++
	}
	if s.OnChanged != nil {
		s.OnChanged(p)
	}
}

func (s *Session) notifyReferenceUpdated(p Property) {
	if s.OnReferenceUpdated != nil {
		s.OnReferenceUpdated(p)
	}
}
