package graph

import (
	"github.com/tetherworks/tether/pkg/graph/subpath"
)

// changeGuard lazily opens a change notification the first time a
// resolution pass mutates the property, and closes it when the pass
// finishes. Passes that change nothing never notify.
type changeGuard struct {
	b      *base
	p      Property
	notify bool
	open   bool
}

func (g *changeGuard) mark(rep *Report) bool {
	if !g.notify || g.open {
		return true
	}
	if err := g.b.beginChange(g.p); err != nil {
		rep.Errorf(g.p, "%v", err)
		g.notify = false
		return false
	}
	g.open = true
	return true
}

func (g *changeGuard) close() {
	if g.open {
		g.b.endChange(g.p)
		g.b.sess.notifyReferenceUpdated(g.p)
	}
}

// resolveElementSub re-resolves one (sub, shadow) pair against target's
// current element naming and patches both in place. Returns whether
// anything changed.
//
// The order is fixed: resolve through the shadow's content name when
// present, else the positional name, else the stored sub; register the
// resolved geometry in the element-backlink registry; on a missing
// element in reverse mode (or when the resolved geometry is the feature
// being updated) search the element cache by the old name and re-resolve
// on a hit; a still-missing element keeps the stored sub visible and
// only records the marker in the shadow; otherwise adopt the fresh pair
// and rewrite the sub, fully for mapped encodings, trailing component
// only for positional ones. A positional patch whose prefix diverges
// from the resolved name falls back to the full resolved name.
func (b *base) resolveElementSub(p Property, g *changeGuard, feature, target *Entity, sub *string, shadow *Shadow, reverse bool, rep *Report) bool {
	if target == nil || !target.Attached() || b.sess.resolver == nil {
		return false
	}
	if subpath.Element(*sub) == "" && shadow.Empty() {
		return false
	}

	ref := *sub
	if shadow.New != "" {
		ref = shadow.New
	} else if shadow.Old != "" {
		ref = shadow.Old
	}
	res := b.sess.resolver.ResolveElement(target, ref)
	if res == nil && ref != *sub {
		ref = *sub
		res = b.sess.resolver.ResolveElement(target, ref)
	}
	if res == nil {
		rep.Warnf(p, "cannot resolve %q against %s", *sub, target.FullName())
		return false
	}

	geo := res.Geometry
	if geo == nil {
		geo = target
	}
	b.registerElementEntity(p, geo)
	if res.Element == "" && res.Shadow.Empty() {
		return false
	}

	missing := subpath.IsMissing(res.Shadow.Old)
	if missing && (reverse || (feature != nil && feature == geo)) {
		old := subpath.Element(shadow.Old)
		if old == "" {
			old = subpath.Element(*sub)
		}
		if len(old) > 0 && old[0] == subpath.MissingPrefix {
			old = old[1:]
		}
		for _, cand := range b.sess.resolver.SearchElementCache(geo, old) {
			retry := b.sess.resolver.ResolveElement(target, subpath.Prefix(ref)+cand)
			if retry != nil && !subpath.IsMissing(retry.Shadow.Old) && retry.Element != "" {
				b.sess.logger.Warn("element reference recovered from cache",
					"property", propertyName(p),
					"old", old,
					"new", cand)
				res = retry
				missing = false
				break
			}
		}
	}

	if missing {
		rep.Warnf(p, "missing element %q in %s", subpath.Element(*sub), geo.FullName())
		if *shadow == res.Shadow {
			return false
		}
		if !g.mark(rep) {
			return false
		}
		// The stored sub stays visible for later repair; only the
		// shadow records the marker.
		*shadow = res.Shadow
		return true
	}

	newSub := *sub
	if subpath.IsMapped(*sub) {
		if res.Shadow.New != "" {
			newSub = res.Shadow.New
		}
	} else if res.Shadow.Old != "" && subpath.Element(*sub) != res.Element {
		if subpath.Prefix(*sub) == subpath.Prefix(res.Shadow.Old) {
			newSub = subpath.Prefix(*sub) + res.Element
		} else {
			// Resolution moved the element to a different slot than the
			// stored prefix expects; a partial patch would splice
			// mismatched paths.
			newSub = res.Shadow.Old
		}
	}

	if *shadow == res.Shadow && newSub == *sub {
		return false
	}
	if !g.mark(rep) {
		return false
	}
	*shadow = res.Shadow
	if newSub != *sub {
		b.unregisterLabels(p, *sub)
		b.registerLabels(p, newSub)
		*sub = newSub
	}
	return true
}
