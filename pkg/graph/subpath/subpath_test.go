package subpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIter(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		segments []string
		element  string
	}{
		{
			name:     "plain chain with element",
			path:     "Body.Sketch.Edge3",
			segments: []string{"Body", "Sketch"},
			element:  "Edge3",
		},
		{
			name:     "label segment",
			path:     "Body.$Pad.Face1",
			segments: []string{"Body", "$Pad"},
			element:  "Face1",
		},
		{
			name:     "deferred label segment",
			path:     "Body.Pad@.Face1",
			segments: []string{"Body", "Pad@"},
			element:  "Face1",
		},
		{
			name:     "no separator",
			path:     "Face1",
			segments: nil,
			element:  "Face1",
		},
		{
			name:     "trailing separator no element",
			path:     "Body.",
			segments: []string{"Body"},
			element:  "",
		},
		{
			name:     "empty",
			path:     "",
			segments: nil,
			element:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := NewIter(tt.path)
			var got []string
			for seg, ok := it.Next(); ok; seg, ok = it.Next() {
				got = append(got, seg.Text)
				assert.Equal(t, tt.path[seg.Start:seg.End], seg.Text)
			}
			assert.Equal(t, tt.segments, got)
			assert.Equal(t, tt.element, Element(tt.path))
		})
	}
}

func TestSegmentKinds(t *testing.T) {
	it := NewIter("Body.$Pad.Tool@.Face1")

	seg, ok := it.Next()
	assert.True(t, ok)
	assert.False(t, seg.IsLabel())
	assert.Equal(t, "Body", seg.Name())

	seg, ok = it.Next()
	assert.True(t, ok)
	assert.True(t, seg.IsLabel())
	assert.Equal(t, "Pad", seg.Name())

	seg, ok = it.Next()
	assert.True(t, ok)
	assert.True(t, seg.IsDeferredLabel())
	assert.Equal(t, "Tool", seg.Name())

	_, ok = it.Next()
	assert.False(t, ok)
	assert.Equal(t, "Face1", it.Rest())
}

func TestSplit(t *testing.T) {
	prefix, element := Split("Body.Sketch.Edge3")
	assert.Equal(t, "Body.Sketch.", prefix)
	assert.Equal(t, "Edge3", element)

	prefix, element = Split("Edge3")
	assert.Equal(t, "", prefix)
	assert.Equal(t, "Edge3", element)
}

func TestMarkers(t *testing.T) {
	assert.True(t, IsMapped("Body.;g1a2b"))
	assert.True(t, IsMapped(";g1a2b"))
	assert.False(t, IsMapped("Body.Edge3"))
	assert.True(t, IsMissing("Body.?Edge3"))
	assert.False(t, IsMissing("Body.Edge3"))
}

func TestLabels(t *testing.T) {
	tests := []struct {
		name string
		path string
		want []string
	}{
		{name: "single", path: "Body.$Pad.Face1", want: []string{"Pad"}},
		{name: "multiple", path: "$A.$B.Edge1", want: []string{"A", "B"}},
		{name: "unterminated ignored", path: "Body.$Pad", want: nil},
		{name: "none", path: "Body.Face1", want: nil},
		{name: "embedded marker ignored", path: "A$B.Face1", want: nil},
		{name: "embedded then real", path: "A$B.$Pad.Face1", want: []string{"Pad"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Labels(nil, tt.path))
		})
	}
}

func TestHasDeferredLabel(t *testing.T) {
	assert.True(t, HasDeferredLabel("Body.Pad@.Face1"))
	assert.False(t, HasDeferredLabel("Body.$Pad.Face1"))
	assert.False(t, HasDeferredLabel("Face1"))
}
