package graph

import (
	"fmt"
	"strings"
)

// updateSubs runs patch over each sub and returns the patched slice, or
// nil when nothing changed. The unchanged prefix is copied lazily only
// once a change is found.
func updateSubs(subs []string, patch func(string) (string, bool)) []string {
	var out []string
	for i, sub := range subs {
		next, changed := patch(sub)
		switch {
		case changed && out == nil:
			out = make([]string, i, len(subs))
			copy(out, subs[:i])
			out = append(out, next)
		case changed:
			out = append(out, next)
		case out != nil:
			out = append(out, sub)
		}
	}
	return out
}

// tryReplaceRef computes the replacement of oldT by newT at one
// reference position. A direct-target match replaces only when the
// stated parent is the property's owner. A position already holding
// newT swaps the two, covering the case of exchanging two inputs of
// the same consumer. Otherwise the sub path is walked position by
// position: a segment resolving to oldT is rewritten when the segment
// before it (or the target itself, for the first) is parent; label
// segments stay label segments under newT's label. ok is false when
// the reference does not participate.
func tryReplaceRef(owner, target, parent, oldT, newT *Entity, sub string) (*Entity, string, bool) {
	if target == nil {
		return nil, "", false
	}
	if target == oldT {
		if owner == parent {
			return newT, sub, true
		}
		return nil, "", false
	}
	if target == newT {
		return tryReplaceRef(owner, target, parent, newT, oldT, sub)
	}
	if sub == "" {
		return nil, "", false
	}
	prev, prevPos := target, 0
	pos := strings.IndexByte(sub, '.')
	for pos >= 0 {
		end := pos + 1
		pos = nextDot(sub, end)
		if end < len(sub) && sub[end] == '.' {
			continue
		}
		sobj := target.SubObject(sub[:end])
		if sobj == nil {
			break
		}
		switch {
		case sobj == oldT:
			if prev != parent {
				return nil, "", false
			}
			repl := newT.Name()
			if sub[prevPos] == '$' {
				repl = "$" + newT.Label()
			}
			return target, sub[:prevPos] + repl + sub[end-1:], true
		case sobj == newT:
			return tryReplaceRef(owner, target, parent, newT, oldT, sub)
		case prev == parent:
			return nil, "", false
		}
		prev, prevPos = sobj, end
	}
	return nil, "", false
}

func nextDot(s string, from int) int {
	if i := strings.IndexByte(s[from:], '.'); i >= 0 {
		return from + i
	}
	return -1
}

// tryReplaceRefSubs applies tryReplaceRef across a target with several
// sub paths. A direct-target replacement carries all subs unchanged;
// otherwise subs patch individually and unmatched ones are kept. ok is
// false when no position participated.
func tryReplaceRefSubs(owner, target, parent, oldT, newT *Entity, subs []string) (*Entity, []string, bool) {
	if target == nil {
		return nil, nil, false
	}
	if next, _, ok := tryReplaceRef(owner, target, parent, oldT, newT, ""); ok {
		return next, append([]string(nil), subs...), true
	}
	var out []string
	found := false
	for i, sub := range subs {
		if _, patched, ok := tryReplaceRef(owner, target, parent, oldT, newT, sub); ok {
			if !found {
				found = true
				out = append(out, subs[:i]...)
			}
			out = append(out, patched)
		} else if found {
			out = append(out, sub)
		}
	}
	if !found {
		return nil, nil, false
	}
	return target, out, true
}

// relabelSub rewrites occurrences of ref ("$<oldLabel>.") in sub to
// "$<newLabel>." when the occurrence, taken as a path prefix from first,
// structurally resolves to target. Textual matches that do not resolve
// are left alone.
func relabelSub(first, target *Entity, sub, ref, newLabel string) (string, bool) {
	var out strings.Builder
	last, pos := 0, 0
	changed := false
	for {
		i := strings.Index(sub[pos:], ref)
		if i < 0 {
			break
		}
		i += pos
		if i > 0 && sub[i-1] != '.' {
			pos = i + 1
			continue
		}
		if first == nil || first.SubObject(sub[:i+len(ref)]) != target {
			pos = i + len(ref)
			continue
		}
		out.WriteString(sub[last:i])
		out.WriteByte('$')
		out.WriteString(newLabel)
		out.WriteByte('.')
		last = i + len(ref)
		pos = last
		changed = true
	}
	if !changed {
		return sub, false
	}
	out.WriteString(sub[last:])
	return out.String(), true
}

// tryImportTarget remaps a direct target through nameMap, resolving the
// mapped name in the target's own container. A name present in the map
// but absent from the container is a hard error: the import produced an
// incomplete graph.
func tryImportTarget(target *Entity, nameMap map[string]string) (*Entity, bool, error) {
	if target == nil {
		return nil, false, nil
	}
	mapped, ok := nameMap[target.Name()]
	if !ok || mapped == target.Name() {
		return target, false, nil
	}
	imp := target.Container().Entity(mapped)
	if imp == nil {
		return nil, false, fmt.Errorf("%w: imported name %q", ErrEntityNotFound, mapped)
	}
	return imp, true, nil
}

// tryImportSub remaps the import-eligible segments of sub.
func tryImportSub(nameMap map[string]string, sub string) (string, bool) {
	next := importSubName(func(name string) string {
		if mapped, ok := nameMap[name]; ok {
			return mapped
		}
		return name
	}, sub)
	return next, next != sub
}
