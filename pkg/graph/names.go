package graph

import (
	"strings"

	"github.com/tetherworks/tether/pkg/graph/subpath"
)

// exportSubName rewrites sub for serialization while its referenced
// entities export under stable names. Name segments of an exporting
// entity become the export name; "$Label." segments whose labeled entity
// is exporting become "<exportName>@." deferred markers, since labels do
// not survive an export and must be re-derived after restore.
func exportSubName(first *Entity, sub string) string {
	if first == nil || sub == "" {
		return sub
	}
	var out strings.Builder
	ctx := first
	last := 0
	it := subpath.NewIter(sub)
	for seg, ok := it.Next(); ok; seg, ok = it.Next() {
		next := ctx.child(seg)
		if next == nil {
			break
		}
		switch {
		case next.Exporting() && seg.IsLabel():
			out.WriteString(sub[last:seg.Start])
			out.WriteString(next.ExportName())
			out.WriteByte('@')
			last = seg.End
		case next.Exporting() && next.ExportName() != seg.Text:
			out.WriteString(sub[last:seg.Start])
			out.WriteString(next.ExportName())
			last = seg.End
		}
		ctx = next
	}
	if out.Len() == 0 {
		return sub
	}
	out.WriteString(sub[last:])
	return out.String()
}

// importSubName rewrites every import-eligible name segment of sub
// through mapName. Label segments and the trailing element token are
// left alone. Returns sub unchanged when nothing mapped.
func importSubName(mapName func(string) string, sub string) string {
	if mapName == nil || sub == "" {
		return sub
	}
	var out strings.Builder
	last := 0
	it := subpath.NewIter(sub)
	for seg, ok := it.Next(); ok; seg, ok = it.Next() {
		if seg.IsLabel() || seg.IsDeferredLabel() {
			continue
		}
		if mapped := mapName(seg.Text); mapped != seg.Text {
			out.WriteString(sub[last:seg.Start])
			out.WriteString(mapped)
			last = seg.End
		}
	}
	if out.Len() == 0 {
		return sub
	}
	out.WriteString(sub[last:])
	return out.String()
}

// restoreLabelReference converts "<name>@." deferred markers written by
// exportSubName back into "$<label>." segments using the named entity's
// current label. Markers whose entity cannot be found yet are left for a
// later pass.
func restoreLabelReference(first *Entity, sub string) string {
	if first == nil || !subpath.HasDeferredLabel(sub) {
		return sub
	}
	var out strings.Builder
	ctx := first
	last := 0
	it := subpath.NewIter(sub)
	for seg, ok := it.Next(); ok; seg, ok = it.Next() {
		next := ctx.child(seg)
		if next == nil {
			break
		}
		if seg.IsDeferredLabel() {
			out.WriteString(sub[last:seg.Start])
			out.WriteByte('$')
			out.WriteString(next.Label())
			last = seg.End
		}
		ctx = next
	}
	if out.Len() == 0 {
		return sub
	}
	out.WriteString(sub[last:])
	return out.String()
}
