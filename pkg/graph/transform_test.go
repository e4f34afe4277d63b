package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyOnReplaceSubHead(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")
	asm := newTestEntity(t, c, "Assembly")
	sketch := newTestEntity(t, c, "Sketch")
	sketch2 := newTestEntity(t, c, "Sketch2")
	asm.AddChild(sketch)
	asm.AddChild(sketch2)

	p := NewSubRef(owner, "Pick", ScopeNormal)
	require.NoError(t, p.SetValue(asm, "Sketch.Edge3"))

	copy, err := p.CopyOnReplace(asm, sketch, sketch2)
	require.NoError(t, err)
	require.NotNil(t, copy)
	repl := copy.(*SubRef)
	assert.Same(t, asm, repl.Value())
	assert.Equal(t, []string{"Sketch2.Edge3"}, repl.Subs())
	assert.Equal(t, []string{"Sketch.Edge3"}, p.Subs(), "copy-on-write leaves the original")
}

func TestCopyOnReplaceUnrelatedParent(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")

	asm := newTestEntity(t, c, "Assembly")
	sketch := newTestEntity(t, c, "Sketch")
	asm.AddChild(sketch)

	other := newTestEntity(t, c, "Other")
	stranger := newTestEntity(t, c, "Stranger")
	decoy := newTestEntity(t, c, "Sketch9")
	other.AddChild(decoy)

	p := NewSubRef(owner, "Pick", ScopeNormal)
	require.NoError(t, p.SetValue(other, "Sketch9.Edge1"))

	// The head segment does not resolve to the entity being swapped
	// out, so the reference does not participate.
	copy, err := p.CopyOnReplace(other, sketch, stranger)
	require.NoError(t, err)
	assert.Nil(t, copy)
}

func TestCopyOnReplaceLabelHead(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")
	asm := newTestEntity(t, c, "Assembly")
	a := newTestEntity(t, c, "A")
	a.SetLabel("Base")
	b := newTestEntity(t, c, "B")
	b.SetLabel("Mirror")
	asm.AddChild(a)
	asm.AddChild(b)

	p := NewSubRef(owner, "Pick", ScopeNormal)
	require.NoError(t, p.SetValue(asm, "$Base.Face1"))

	copy, err := p.CopyOnReplace(asm, a, b)
	require.NoError(t, err)
	require.NotNil(t, copy)
	assert.Equal(t, []string{"$Mirror.Face1"}, copy.(*SubRef).Subs(),
		"label segments stay label segments under the new target's label")
}

func TestCopyOnReplaceDirectTarget(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")
	a := newTestEntity(t, c, "A")
	b := newTestEntity(t, c, "B")

	p := NewRef(owner, "Dep", ScopeNormal)
	require.NoError(t, p.SetValue(a))

	copy, err := p.CopyOnReplace(owner, a, b)
	require.NoError(t, err)
	require.NotNil(t, copy)
	assert.Same(t, b, copy.(*Ref).Value())

	t.Run("parent other than the owner yields nil", func(t *testing.T) {
		stranger := newTestEntity(t, c, "Stranger")
		copy, err := p.CopyOnReplace(stranger, a, b)
		require.NoError(t, err)
		assert.Nil(t, copy)
	})

	t.Run("position holding the new target swaps the two", func(t *testing.T) {
		q := NewRef(owner, "Dep2", ScopeNormal)
		require.NoError(t, q.SetValue(b))
		copy, err := q.CopyOnReplace(owner, a, b)
		require.NoError(t, err)
		require.NotNil(t, copy)
		assert.Same(t, a, copy.(*Ref).Value())
	})

	t.Run("uninvolved reference yields nil", func(t *testing.T) {
		q := NewRef(owner, "Dep3", ScopeNormal)
		require.NoError(t, q.SetValue(b))
		copy, err := q.CopyOnReplace(owner, a, newTestEntity(t, c, "C"))
		require.NoError(t, err)
		assert.Nil(t, copy)
	})
}

func TestCopyOnReplaceListSwap(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")
	a := newTestEntity(t, c, "A")
	b := newTestEntity(t, c, "B")

	p := NewRefList(owner, "Deps", ScopeNormal)
	require.NoError(t, p.SetValues([]*Entity{b, a}))

	copy, err := p.CopyOnReplace(owner, a, b)
	require.NoError(t, err)
	require.NotNil(t, copy)
	targets := copy.(*RefList).Collect(nil, nil, true)
	assert.Equal(t, []*Entity{a, b}, targets)
}

func TestCopyOnReplaceDeepPosition(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")
	asm := newTestEntity(t, c, "Assembly")
	body := newTestEntity(t, c, "Body")
	sketch := newTestEntity(t, c, "Sketch")
	sketch2 := newTestEntity(t, c, "Sketch2")
	asm.AddChild(body)
	body.AddChild(sketch)
	body.AddChild(sketch2)

	p := NewSubRef(owner, "Pick", ScopeNormal)
	require.NoError(t, p.SetValue(asm, "Body.Sketch.Edge3"))

	copy, err := p.CopyOnReplace(body, sketch, sketch2)
	require.NoError(t, err)
	require.NotNil(t, copy)
	assert.Equal(t, []string{"Body.Sketch2.Edge3"}, copy.(*SubRef).Subs())

	t.Run("wrong enclosing position yields nil", func(t *testing.T) {
		copy, err := p.CopyOnReplace(asm, sketch, sketch2)
		require.NoError(t, err)
		assert.Nil(t, copy)
	})
}

func TestUpdateSubsLaziness(t *testing.T) {
	subs := []string{"a", "b", "c"}

	assert.Nil(t, updateSubs(subs, func(s string) (string, bool) {
		return s, false
	}))

	out := updateSubs(subs, func(s string) (string, bool) {
		if s == "b" {
			return "B", true
		}
		return s, false
	})
	assert.Equal(t, []string{"a", "B", "c"}, out)
	assert.Equal(t, []string{"a", "b", "c"}, subs)
}

func TestCopyOnImport(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")
	body := newTestEntity(t, c, "Body")
	body001 := newTestEntity(t, c, "Body001")
	sketch001 := newTestEntity(t, c, "Sketch001")
	body001.AddChild(sketch001)

	p := NewSubRef(owner, "Pick", ScopeNormal)
	require.NoError(t, p.SetValue(body, "Sketch.Edge3"))

	t.Run("maps target and segments, not the element", func(t *testing.T) {
		copy, err := p.CopyOnImport(map[string]string{
			"Body":   "Body001",
			"Sketch": "Sketch001",
			"Edge3":  "Edge9",
		})
		require.NoError(t, err)
		require.NotNil(t, copy)
		repl := copy.(*SubRef)
		assert.Same(t, body001, repl.Value())
		assert.Equal(t, []string{"Sketch001.Edge3"}, repl.Subs())
	})

	t.Run("unmapped reference yields nil", func(t *testing.T) {
		copy, err := p.CopyOnImport(map[string]string{"Else": "Else001"})
		require.NoError(t, err)
		assert.Nil(t, copy)
	})

	t.Run("mapped but absent target is a hard error", func(t *testing.T) {
		_, err := p.CopyOnImport(map[string]string{"Body": "Body999"})
		assert.ErrorIs(t, err, ErrEntityNotFound)
	})
}

func TestCopyPaste(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")
	box := newTestEntity(t, c, "Box")

	p := NewSubRef(owner, "Src", ScopeNormal)
	require.NoError(t, p.SetValue(box, "Face1"))

	q := NewSubRef(owner, "Dst", ScopeNormal)
	require.NoError(t, q.Paste(p.Copy()))
	assert.Same(t, box, q.Value())
	assert.Equal(t, []string{"Face1"}, q.Subs())
	assert.True(t, p.Same(q))

	t.Run("kind mismatch rejected", func(t *testing.T) {
		r := NewRef(owner, "Plain", ScopeNormal)
		assert.ErrorIs(t, r.Paste(p.Copy()), ErrIncompatiblePaste)
	})
}

func TestAdjustPromoted(t *testing.T) {
	sess := newTestSession(t)
	c := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, c, "Owner")
	group := newTestEntity(t, c, "Group")
	body := newTestEntity(t, c, "Body")
	group.AddChild(body)

	avoid := map[*Entity]bool{group: true}

	t.Run("reroutes through the shared head", func(t *testing.T) {
		p := NewSubRef(owner, "A", ScopeNormal)
		require.NoError(t, p.SetValue(group, "Body.Face1", "Body.Face2"))
		assert.True(t, p.AdjustPromoted(avoid))
		assert.Same(t, body, p.Value())
		assert.Equal(t, []string{"Face1", "Face2"}, p.Subs())
	})

	t.Run("divergent heads leave the value unchanged", func(t *testing.T) {
		other := newTestEntity(t, c, "Other")
		group.AddChild(other)
		p := NewSubRef(owner, "B", ScopeNormal)
		require.NoError(t, p.SetValue(group, "Body.Face1", "Other.Face1"))
		assert.False(t, p.AdjustPromoted(avoid))
		assert.Same(t, group, p.Value())
	})

	t.Run("head inside the avoid set fails", func(t *testing.T) {
		p := NewSubRef(owner, "C", ScopeNormal)
		require.NoError(t, p.SetValue(group, "Body.Face1"))
		assert.False(t, p.AdjustPromoted(map[*Entity]bool{group: true, body: true}))
	})

	t.Run("target outside the avoid set is untouched", func(t *testing.T) {
		p := NewSubRef(owner, "D", ScopeNormal)
		require.NoError(t, p.SetValue(body, "Face1"))
		assert.False(t, p.AdjustPromoted(avoid))
	})
}
