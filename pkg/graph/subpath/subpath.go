// Package subpath provides zero-copy walking of sub-element path strings.
//
// A sub path is a '.'-separated chain of entity names ending in an
// optional element token, e.g. "Body.Sketch.Edge3". A segment written as
// "$Box." refers to an entity by label rather than internal name, and a
// segment written as "Box@." is a deferred label marker: the whole prior
// segment is a label to be resolved after restore, once the owning entity
// is loaded.
package subpath

import "strings"

// Name prefixes on element tokens.
const (
	// MappedPrefix marks a content-derived (geometry hash) element name.
	MappedPrefix = ';'
	// MissingPrefix marks an element name that could not be resolved.
	MissingPrefix = '?'
)

// Segment is one '.'-terminated component of a sub path.
type Segment struct {
	// Text is the segment without its trailing separator.
	Text string
	// Start and End delimit the segment within the original path,
	// excluding the trailing '.'.
	Start, End int
}

// IsLabel reports whether the segment references an entity by label.
func (s Segment) IsLabel() bool {
	return len(s.Text) > 0 && s.Text[0] == '$'
}

// IsDeferredLabel reports whether the segment carries the '@' marker that
// defers label resolution to restore time.
func (s Segment) IsDeferredLabel() bool {
	return len(s.Text) > 0 && s.Text[len(s.Text)-1] == '@'
}

// Name returns the entity name or label text with markers stripped.
func (s Segment) Name() string {
	t := s.Text
	if len(t) > 0 && t[0] == '$' {
		t = t[1:]
	}
	if len(t) > 0 && t[len(t)-1] == '@' {
		t = t[:len(t)-1]
	}
	return t
}

// Iter walks the '.'-separated segments of a sub path without copying.
// The trailing element token (the text after the last separator) is not
// produced by Next; read it with Element.
type Iter struct {
	path string
	pos  int
}

// NewIter returns an iterator over the segments of path.
func NewIter(path string) *Iter {
	return &Iter{path: path}
}

// Next returns the next segment. ok is false once only the trailing
// element token (or nothing) remains.
func (it *Iter) Next() (seg Segment, ok bool) {
	rel := strings.IndexByte(it.path[it.pos:], '.')
	if rel < 0 {
		return Segment{}, false
	}
	dot := it.pos + rel
	seg = Segment{Text: it.path[it.pos:dot], Start: it.pos, End: dot}
	it.pos = dot + 1
	return seg, true
}

// Rest returns the unconsumed remainder of the path.
func (it *Iter) Rest() string {
	return it.path[it.pos:]
}

// Element returns the trailing element token of path: the text after the
// last separator, or the whole path when it has no separator.
func Element(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Prefix returns everything up to and including the last separator, or ""
// when path has no separator.
func Prefix(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[:i+1]
	}
	return ""
}

// Split returns Prefix and Element in one call.
func Split(path string) (prefix, element string) {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[:i+1], path[i+1:]
	}
	return "", path
}

// IsMapped reports whether name (or the element token of a longer path)
// uses the content-derived encoding.
func IsMapped(name string) bool {
	el := Element(name)
	return len(el) > 0 && el[0] == MappedPrefix
}

// IsMissing reports whether name carries the missing-element marker.
func IsMissing(name string) bool {
	el := Element(name)
	return len(el) > 0 && el[0] == MissingPrefix
}

// Labels appends every "$<label>." token found in path to dst and returns
// the result. Only a '$' opening a segment counts; one embedded in an
// entity name does not. Tokens lacking a closing separator are ignored.
func Labels(dst []string, path string) []string {
	for pos := 0; ; {
		i := strings.IndexByte(path[pos:], '$')
		if i < 0 {
			return dst
		}
		i += pos
		pos = i + 1
		if i > 0 && path[i-1] != '.' {
			continue
		}
		dot := strings.IndexByte(path[pos:], '.')
		if dot < 0 {
			return dst
		}
		dst = append(dst, path[pos:pos+dot])
		pos += dot + 1
	}
}

// HasDeferredLabel reports whether any segment of path carries the '@'
// deferred-label marker.
func HasDeferredLabel(path string) bool {
	it := NewIter(path)
	for seg, ok := it.Next(); ok; seg, ok = it.Next() {
		if seg.IsDeferredLabel() {
			return true
		}
	}
	return false
}
