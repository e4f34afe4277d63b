package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetherworks/tether/pkg/graph/subpath"
)

func TestElementResolutionDerivesShadow(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")
	box := newTestEntity(t, c, "Box")
	box.AddElement("Face1", ";g1")

	p := NewSubRef(owner, "Pick", ScopeNormal)
	require.NoError(t, p.SetValue(box, "Face1"))

	rep := sess.NewReport()
	assert.True(t, p.UpdateElementReference(nil, false, true, rep))
	assert.Equal(t, []Shadow{{Old: "Face1", New: ";g1"}}, p.Shadows())
	assert.Equal(t, []string{"Face1"}, p.Subs())
	assert.False(t, rep.HasWarnings())

	t.Run("second run is idempotent", func(t *testing.T) {
		assert.False(t, p.UpdateElementReference(nil, false, true, sess.NewReport()))
	})
}

func TestElementResolutionFollowsRename(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")
	box := newTestEntity(t, c, "Box")
	box.AddElement("Face1", ";g1")

	p := NewSubRef(owner, "Pick", ScopeNormal)
	require.NoError(t, p.SetValue(box, "Face1"))
	require.True(t, p.UpdateElementReference(nil, false, true, sess.NewReport()))

	// The recompute reorders the positional names; the content name is
	// unchanged and carries the reference over.
	box.SetElements([]Element{{Name: "Face2", Mapped: ";g1"}})

	rep := sess.NewReport()
	assert.True(t, p.UpdateElementReference(box, false, true, rep))
	assert.Equal(t, []string{"Face2"}, p.Subs())
	assert.Equal(t, []Shadow{{Old: "Face2", New: ";g1"}}, p.Shadows())
	assert.False(t, rep.HasWarnings())
}

func TestElementResolutionMappedSubStaysMapped(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")
	box := newTestEntity(t, c, "Box")
	box.AddElement("Face1", ";g1")

	p := NewSubRef(owner, "Pick", ScopeNormal)
	require.NoError(t, p.SetValue(box, ";g1"))

	require.True(t, p.UpdateElementReference(nil, false, true, sess.NewReport()))
	assert.Equal(t, []string{";g1"}, p.Subs())

	box.SetElements([]Element{{Name: "Face7", Mapped: ";g1"}})
	require.True(t, p.UpdateElementReference(nil, false, true, sess.NewReport()))
	assert.Equal(t, []string{";g1"}, p.Subs(), "mapped encoding stays mapped")
	assert.Equal(t, []Shadow{{Old: "Face7", New: ";g1"}}, p.Shadows())
}

func TestElementResolutionMissingElement(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")
	box := newTestEntity(t, c, "Box")
	box.AddElement("Face1", ";g1")

	p := NewSubRef(owner, "Pick", ScopeNormal)
	require.NoError(t, p.SetValue(box, "Face1"))
	require.True(t, p.UpdateElementReference(nil, false, true, sess.NewReport()))

	box.SetElements(nil)

	rep := sess.NewReport()
	assert.True(t, p.UpdateElementReference(box, false, true, rep))
	assert.Equal(t, []string{"Face1"}, p.Subs(), "visible value kept for repair")
	assert.True(t, subpath.IsMissing(p.Shadows()[0].Old))
	assert.True(t, rep.HasWarnings())
}

func TestElementResolutionCacheRecovery(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")
	box := newTestEntity(t, c, "Box")
	box.AddElement("Face1", ";g1")

	p := NewSubRef(owner, "Pick", ScopeNormal)
	require.NoError(t, p.SetValue(box, "Face1"))
	require.True(t, p.UpdateElementReference(nil, false, true, sess.NewReport()))

	box.SetElements(nil)
	require.True(t, p.UpdateElementReference(box, false, true, sess.NewReport()))
	require.True(t, subpath.IsMissing(p.Shadows()[0].Old))

	// The replacement geometry carries a new name; the search index maps
	// the lost content name to it.
	box.SetElements([]Element{{Name: "Face9", Mapped: ";g9"}})
	box.SetElementCache(";g1", "Face9")

	rep := sess.NewReport()
	assert.True(t, p.UpdateElementReference(nil, true, true, rep))
	assert.Equal(t, []string{"Face9"}, p.Subs())
	assert.Equal(t, []Shadow{{Old: "Face9", New: ";g9"}}, p.Shadows())
}

func TestElementResolutionPrefixDivergenceFallsBack(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")
	tools := newTestEntity(t, c, "Tools")
	a := newTestEntity(t, c, "A")
	b := newTestEntity(t, c, "B")
	tools.AddChild(a)
	tools.AddChild(b)
	a.AddElement("Face1", "")
	b.AddElement("Face2", ";g1")

	p := NewSubRef(owner, "Pick", ScopeNormal)
	require.NoError(t, p.SetValue(tools, "A.Face1"))

	// Simulate an earlier resolution that moved the element under B.
	p.shadows[0] = Shadow{New: "B.;g1"}

	require.True(t, p.UpdateElementReference(nil, false, true, sess.NewReport()))
	assert.Equal(t, []string{"B.Face2"}, p.Subs(),
		"diverging prefixes take the full resolved name, not a splice")
}

func TestSessionUpdateElementReferences(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")
	box := newTestEntity(t, c, "Box")
	box.AddElement("Face1", ";g1")

	p := NewSubRef(owner, "Pick", ScopeNormal)
	require.NoError(t, p.SetValue(box, "Face1"))
	require.True(t, p.UpdateElementReference(nil, false, true, sess.NewReport()))

	var updated []string
	sess.OnReferenceUpdated = func(prop Property) {
		updated = append(updated, propertyName(prop))
	}

	box.SetElements([]Element{{Name: "Face3", Mapped: ";g1"}})
	sess.UpdateElementReferences(box, false)

	assert.Equal(t, []string{"Face3"}, p.Subs())
	assert.Equal(t, []string{"Main#Owner.Pick"}, updated)
}
