package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLabelRewritesLabelSubs(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")
	asm := newTestEntity(t, c, "Assembly")
	part := newTestEntity(t, c, "Part")
	part.SetLabel("Box")
	asm.AddChild(part)
	part.AddElement("Face1", ";g1")

	p := NewSubRef(owner, "Pick", ScopeNormal)
	require.NoError(t, p.SetValue(asm, "$Box.Face1"))

	part.SetLabel("Cube")

	assert.Equal(t, []string{"$Cube.Face1"}, p.Subs())
	assert.Equal(t, "Cube", part.Label())

	t.Run("rename chains through the re-registered label", func(t *testing.T) {
		part.SetLabel("Lid")
		assert.Equal(t, []string{"$Lid.Face1"}, p.Subs())
	})
}

func TestSetLabelLeavesTextualMatchesAlone(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")

	asm := newTestEntity(t, c, "Assembly")
	part := newTestEntity(t, c, "Part")
	part.SetLabel("Box")
	asm.AddChild(part)

	other := newTestEntity(t, c, "Other")
	twin := newTestEntity(t, c, "Twin")
	twin.SetLabel("Box")
	other.AddChild(twin)

	p := NewSubRef(owner, "A", ScopeNormal)
	require.NoError(t, p.SetValue(asm, "$Box.Face1"))
	q := NewSubRef(owner, "B", ScopeNormal)
	require.NoError(t, q.SetValue(other, "$Box.Face1"))

	// Only the occurrence that structurally resolves to the renamed
	// entity is rewritten; the same text under another parent is a
	// different entity.
	part.SetLabel("Cube")

	assert.Equal(t, []string{"$Cube.Face1"}, p.Subs())
	assert.Equal(t, []string{"$Box.Face1"}, q.Subs())
}

func TestUpdateLabelReferencesProducesCopies(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")
	asm := newTestEntity(t, c, "Assembly")
	part := newTestEntity(t, c, "Part")
	part.SetLabel("Box")
	asm.AddChild(part)

	p := NewSubRef(owner, "Pick", ScopeNormal)
	require.NoError(t, p.SetValue(asm, "$Box.Face1"))

	updates := sess.UpdateLabelReferences(part, "Cube")
	require.Len(t, updates, 1)
	assert.Same(t, Property(p), updates[0].Property)

	repl, ok := updates[0].Replacement.(*SubRef)
	require.True(t, ok)
	assert.Equal(t, []string{"$Cube.Face1"}, repl.Subs())
	assert.Equal(t, []string{"$Box.Face1"}, p.Subs(), "original untouched until Paste")
}

func TestLabelRegistryCleanup(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")
	asm := newTestEntity(t, c, "Assembly")
	part := newTestEntity(t, c, "Part")
	part.SetLabel("Box")
	asm.AddChild(part)

	p := NewSubRef(owner, "Pick", ScopeNormal)
	require.NoError(t, p.SetValue(asm, "$Box.Face1"))
	require.NoError(t, p.SetValue(asm, "Part.Face1"))

	assert.Empty(t, sess.UpdateLabelReferences(part, "Cube"),
		"old label stays untracked after the sub moved to a name segment")
}

func TestSelfLabelSegment(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")
	asm := newTestEntity(t, c, "Assembly")
	a := newTestEntity(t, c, "A")
	a.SetLabel("Box")
	asm.AddChild(a)
	a.AddElement("Face1", ";g1")

	// "A.$Box." names A twice: once by name, once redundantly by its
	// own label.
	p := NewSubRef(owner, "Pick", ScopeNormal)
	require.NoError(t, p.SetValue(asm, "A.$Box.Face1"))

	a.SetLabel("Cube")
	assert.Equal(t, []string{"A.$Cube.Face1"}, p.Subs())
}

func TestExportSubNameRewritesExportingSegments(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	asm := newTestEntity(t, c, "Assembly")
	part := newTestEntity(t, c, "Part")
	part.SetLabel("Box")
	asm.AddChild(part)

	part.SetExporting("Part001")
	defer part.ClearExporting()

	assert.Equal(t, "Part001.Face1", exportSubName(asm, "Part.Face1"))
	assert.Equal(t, "Part001@.Face1", exportSubName(asm, "$Box.Face1"),
		"label segments defer to restore time under the export name")
	assert.Equal(t, "Other.Face1", exportSubName(asm, "Other.Face1"),
		"unresolvable heads pass through")
}

func TestRestoreLabelReference(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	asm := newTestEntity(t, c, "Assembly")
	part := newTestEntity(t, c, "Part001")
	part.SetLabel("Box")
	asm.AddChild(part)

	assert.Equal(t, "$Box.Face1", restoreLabelReference(asm, "Part001@.Face1"))
	assert.Equal(t, "Gone@.Face1", restoreLabelReference(asm, "Gone@.Face1"),
		"markers for entities not loaded yet are kept for a later pass")
}
