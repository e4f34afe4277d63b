package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefBacklinks(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")
	first := newTestEntity(t, c, "First")
	second := newTestEntity(t, c, "Second")

	p := NewRef(owner, "Link", ScopeNormal)

	require.NoError(t, p.SetValue(first))
	assert.Equal(t, []string{"Owner"}, backlinkNames(first))
	assert.True(t, p.PointsTo(first, ""))

	t.Run("swap moves the backlink", func(t *testing.T) {
		require.NoError(t, p.SetValue(second))
		assert.Empty(t, backlinkNames(first))
		assert.Equal(t, []string{"Owner"}, backlinkNames(second))
	})

	t.Run("clear removes it", func(t *testing.T) {
		require.NoError(t, p.SetValue(nil))
		assert.Empty(t, backlinkNames(second))
		assert.Nil(t, p.Value())
	})
}

func TestHiddenScopeKeepsNoBacklink(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")
	target := newTestEntity(t, c, "Target")

	p := NewRef(owner, "Hint", ScopeHidden)
	require.NoError(t, p.SetValue(target))

	assert.Empty(t, backlinkNames(target))
	assert.Equal(t, target, p.Value())
}

func TestCollectOmitsHiddenScope(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")
	box := newTestEntity(t, c, "Box")

	p := NewRef(owner, "Hint", ScopeHidden)
	require.NoError(t, p.SetValue(box))
	assert.Empty(t, p.Collect(nil, nil, false))
	assert.Equal(t, []*Entity{box}, p.Collect(nil, nil, true))

	q := NewSubRef(owner, "Pick", ScopeHidden)
	require.NoError(t, q.SetValue(box, "Face1"))
	assert.Empty(t, q.Collect(nil, nil, false))
	assert.Len(t, q.Collect(nil, nil, true), 1)

	l := NewRefList(owner, "Deps", ScopeHidden)
	require.NoError(t, l.SetValues([]*Entity{box}))
	assert.Empty(t, l.Collect(nil, nil, false))
	assert.Len(t, l.Collect(nil, nil, true), 1)
}

func TestBacklinkSurvivesSiblingProperty(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")
	target := newTestEntity(t, c, "Target")

	a := NewRef(owner, "A", ScopeNormal)
	b := NewRef(owner, "B", ScopeNormal)
	require.NoError(t, a.SetValue(target))
	require.NoError(t, b.SetValue(target))
	assert.Equal(t, []string{"Owner"}, backlinkNames(target))

	require.NoError(t, a.SetValue(nil))
	assert.Equal(t, []string{"Owner"}, backlinkNames(target),
		"second property still references the target")

	require.NoError(t, b.SetValue(nil))
	assert.Empty(t, backlinkNames(target))
}

func TestSetValueRejections(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	other := newTestContainer(t, sess, "Other")
	owner := newTestEntity(t, c, "Owner")
	target := newTestEntity(t, c, "Target")
	foreign := newTestEntity(t, other, "Foreign")

	p := NewRef(owner, "Link", ScopeNormal)

	t.Run("self reference", func(t *testing.T) {
		assert.ErrorIs(t, p.SetValue(owner), ErrSelfReference)
	})

	t.Run("cross container", func(t *testing.T) {
		assert.ErrorIs(t, p.SetValue(foreign), ErrExternalDenied)
	})

	t.Run("destroyed target", func(t *testing.T) {
		c.RemoveEntity(target)
		assert.ErrorIs(t, p.SetValue(target), ErrInvalidReference)
	})
}

func TestRemoveEntityBreaksIncomingReferences(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")
	target := newTestEntity(t, c, "Target")
	keep := newTestEntity(t, c, "Keep")

	p := NewRef(owner, "Link", ScopeNormal)
	l := NewRefList(owner, "List", ScopeNormal)
	require.NoError(t, p.SetValue(target))
	require.NoError(t, l.SetValues([]*Entity{target, keep}))

	c.RemoveEntity(target)

	assert.Nil(t, p.Value())
	assert.Equal(t, []*Entity{keep}, l.Values())
	assert.False(t, target.Attached())
	assert.Nil(t, c.Entity("Target"))
}

func TestRemoveEntityUnbindsOutgoingReferences(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")
	target := newTestEntity(t, c, "Target")

	p := NewRef(owner, "Link", ScopeNormal)
	require.NoError(t, p.SetValue(target))

	c.RemoveEntity(owner)

	assert.Empty(t, backlinkNames(target))
	assert.Nil(t, p.Owner())
}

func TestReentrantMutationRejected(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")
	target := newTestEntity(t, c, "Target")

	p := NewRef(owner, "Link", ScopeNormal)

	var hookErr error
	sess.OnChanged = func(changed Property) {
		hookErr = p.SetValue(nil)
	}
	require.NoError(t, p.SetValue(target))
	assert.ErrorIs(t, hookErr, ErrReentrantMutation)
	assert.Equal(t, target, p.Value())
}

func TestRefListValues(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")
	a := newTestEntity(t, c, "A")
	b := newTestEntity(t, c, "B")

	l := NewRefList(owner, "List", ScopeNormal)
	require.NoError(t, l.SetValues([]*Entity{b, a, b}))

	assert.Equal(t, []*Entity{b, a, b}, l.Values(), "order and duplicates preserved")
	assert.True(t, l.PointsTo(a, ""))
	assert.False(t, l.PointsTo(a, "Face1"))

	l.Break(b, false)
	assert.Equal(t, []*Entity{a}, l.Values())
	assert.Empty(t, backlinkNames(b))
	assert.Equal(t, []string{"Owner"}, backlinkNames(a))
}

func TestBreakLinksSweep(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	target := newTestEntity(t, c, "Target")
	first := newTestEntity(t, c, "First")
	second := newTestEntity(t, c, "Second")

	p1 := NewRef(first, "Link", ScopeNormal)
	p2 := NewSubRef(second, "Pick", ScopeNormal)
	require.NoError(t, p1.SetValue(target))
	require.NoError(t, p2.SetValue(target, "Face1"))

	sess.BreakLinks(target, target.Backlinks(), false)

	assert.Nil(t, p1.Value())
	assert.Nil(t, p2.Value())
	assert.Empty(t, backlinkNames(target))
}

func TestTouchedOnChange(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")
	target := newTestEntity(t, c, "Target")

	p := NewRef(owner, "Link", ScopeNormal)
	before := owner.Touched()
	require.NoError(t, p.SetValue(target))
	assert.Greater(t, owner.Touched(), before)
}
