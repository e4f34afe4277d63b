package graph

import (
	"strings"

	"github.com/tetherworks/tether/pkg/graph/subpath"
)

// Shadow is the dual encoding of one element reference: Old holds the
// legacy positional form, New the content-derived form. Either side may
// be empty. Both sides are complete sub paths, not bare element tokens.
type Shadow struct {
	Old string
	New string
}

// Empty reports whether neither encoding is set.
func (s Shadow) Empty() bool {
	return s.Old == "" && s.New == ""
}

// ResolvedElement is the result of resolving a sub path against an
// entity's current element naming.
type ResolvedElement struct {
	// Shadow holds the freshly derived encoding pair for the resolved
	// element. Old carries the missing-element marker when the element
	// is gone.
	Shadow Shadow
	// Element is the trailing positional element token.
	Element string
	// Geometry is the entity whose element naming the sub path lands on.
	Geometry *Entity
}

// ElementResolver is the geometry-naming capability consumed by shadow
// resolution. The engine never computes element names itself.
type ElementResolver interface {
	// ResolveElement resolves sub against e's current element naming.
	// It returns nil when the entity chain in sub does not resolve.
	ResolveElement(e *Entity, sub string) *ResolvedElement

	// SearchElementCache searches e's cached element index for elements
	// geometrically matching the no-longer-present oldElement, best
	// candidates first.
	SearchElementCache(e *Entity, oldElement string) []string
}

// LoadRequester is the host capability used to queue not-yet-open
// external containers for loading. A load may be partial, keyed by the
// target entity name.
type LoadRequester interface {
	RequestPendingLoad(path, targetName string, allowPartial bool)
}

// TableResolver resolves element references against the element tables
// carried on entities (AddElement, SetElementCache). Hosts with a real
// geometry engine supply their own ElementResolver instead.
type TableResolver struct{}

// ResolveElement implements ElementResolver over the entity element table.
func (TableResolver) ResolveElement(e *Entity, sub string) *ResolvedElement {
	prefix, token := subpath.Split(sub)
	geo := e.SubObject(prefix)
	if geo == nil {
		return nil
	}
	if token == "" {
		return &ResolvedElement{Geometry: geo}
	}
	if token[0] == subpath.MissingPrefix {
		token = token[1:]
	}
	if strings.IndexByte(token, subpath.MappedPrefix) == 0 {
		for _, el := range geo.elements {
			if el.Mapped == token {
				return &ResolvedElement{
					Shadow:   shadowFor(prefix, el),
					Element:  el.Name,
					Geometry: geo,
				}
			}
		}
	} else {
		for _, el := range geo.elements {
			if el.Name == token {
				return &ResolvedElement{
					Shadow:   shadowFor(prefix, el),
					Element:  el.Name,
					Geometry: geo,
				}
			}
		}
	}
	// Element chain resolved but the element itself is gone.
	return &ResolvedElement{
		Shadow:   Shadow{Old: prefix + string(subpath.MissingPrefix) + token},
		Element:  token,
		Geometry: geo,
	}
}

func shadowFor(prefix string, el Element) Shadow {
	s := Shadow{Old: prefix + el.Name}
	if el.Mapped != "" {
		s.New = prefix + el.Mapped
	}
	return s
}

// SearchElementCache implements ElementResolver over the per-entity
// search index populated with SetElementCache.
func (TableResolver) SearchElementCache(e *Entity, oldElement string) []string {
	return e.elementCache[oldElement]
}
