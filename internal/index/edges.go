package index

import (
	"github.com/tetherworks/tether/pkg/graph"
)

// collectEdges walks every container in sess and flattens each reference
// property into edges, one per (target, sub) pair.
func collectEdges(sess *graph.Session) []Edge {
	var out []Edge
	for _, c := range sess.Containers() {
		for _, e := range c.Entities() {
			for _, p := range e.Properties() {
				out = append(out, propertyEdges(c, e, p)...)
			}
		}
	}
	return out
}

func propertyEdges(c *graph.Container, e *graph.Entity, p graph.Property) []Edge {
	head := Edge{
		Container: c.Name(),
		Owner:     e.Name(),
		Property:  p.Name(),
		Kind:      p.Kind().String(),
	}
	switch r := p.(type) {
	case *graph.XRef:
		return xrefEdges(head, r)
	case *graph.XRefList:
		var out []Edge
		for _, child := range r.Refs() {
			out = append(out, xrefEdges(head, child)...)
		}
		return out
	}

	var subs []string
	targets := p.Collect(nil, &subs, true)
	out := make([]Edge, 0, len(targets))
	for i, t := range targets {
		edge := head
		edge.TargetContainer = t.Container().Name()
		edge.Target = t.Name()
		edge.Sub = subs[i]
		edge.Resolved = true
		out = append(out, edge)
	}
	return out
}

// xrefEdges flattens one possibly-external reference. A detached
// reference still records its symbolic target name and path.
func xrefEdges(head Edge, r *graph.XRef) []Edge {
	name := r.TargetName()
	if name == "" {
		return nil
	}
	edge := head
	edge.Target = name
	edge.ExternalPath = r.Path()
	if t := r.Value(); t != nil {
		edge.TargetContainer = t.Container().Name()
		edge.Resolved = true
	}
	subs := r.ResolvedSubs()
	if len(subs) == 0 {
		return []Edge{edge}
	}
	out := make([]Edge, 0, len(subs))
	for _, sub := range subs {
		next := edge
		next.Sub = sub
		out = append(out, next)
	}
	return out
}
