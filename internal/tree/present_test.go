package tree

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *Tree {
	ts := 42
	return &Tree{
		AllNodes: map[int]*Node{
			0: {ID: 0, Text: "leaf zero", Timestamp: &ts},
			1: {ID: 1, Text: "leaf one"},
			2: {ID: 2, Text: "leaf two"},
			3: {ID: 3, Text: "summary of zero and one", Children: []int{1, 0}},
		},
		LeafIDs:    []int{0, 1, 2},
		RootIDs:    []int{3, 2},
		NumLayers:  2,
		LayerNodes: map[int][]int{0: {0, 1, 2}, 1: {3}},
	}
}

func TestPresent_StructureAndOrdering(t *testing.T) {
	forest := Present(sampleTree())
	require.Len(t, forest, 2)

	// Roots in ascending id order.
	assert.Equal(t, "2", forest[0].ID)
	assert.Equal(t, "3", forest[1].ID)

	section := forest[1]
	assert.Equal(t, "section", section.Type)
	require.Len(t, section.Children, 2)
	// Children sorted ascending regardless of stored order.
	assert.Equal(t, "0", section.Children[0].ID)
	assert.Equal(t, "1", section.Children[1].ID)
	assert.Equal(t, "leaf", section.Children[0].Type)

	// Standalone root with no children presents as a leaf.
	assert.Equal(t, "leaf", forest[0].Type)
	assert.Equal(t, "leaf two", forest[0].FullText)
}

func TestPresent_TimestampsSurvive(t *testing.T) {
	forest := Present(sampleTree())
	leafZero := forest[1].Children[0]
	require.NotNil(t, leafZero.Timestamp)
	assert.Equal(t, 42, *leafZero.Timestamp)
	assert.Nil(t, forest[0].Timestamp)
}

func TestPresent_LabelTruncation(t *testing.T) {
	long := strings.Repeat("楼", 150) + "\nsecond line"
	tr := &Tree{
		AllNodes:   map[int]*Node{0: {ID: 0, Text: long}},
		LeafIDs:    []int{0},
		RootIDs:    []int{0},
		NumLayers:  1,
		LayerNodes: map[int][]int{0: {0}},
	}
	forest := Present(tr)
	require.Len(t, forest, 1)

	label := forest[0].Label
	assert.Equal(t, labelRunes, len([]rune(label)), "label truncates at the rune limit")
	assert.NotContains(t, label, "\n", "newlines flatten to spaces")
	assert.Equal(t, long, forest[0].FullText, "full text is untouched")
}

func TestPresent_Empty(t *testing.T) {
	assert.Empty(t, Present(nil))
	assert.Empty(t, Present(&Tree{}))
}

func TestPresent_SharedChildMemoized(t *testing.T) {
	tr := &Tree{
		AllNodes: map[int]*Node{
			0: {ID: 0, Text: "shared leaf"},
			1: {ID: 1, Text: "parent a", Children: []int{0}},
			2: {ID: 2, Text: "parent b", Children: []int{0}},
		},
		LeafIDs:    []int{0},
		RootIDs:    []int{1, 2},
		NumLayers:  2,
		LayerNodes: map[int][]int{0: {0}, 1: {1, 2}},
	}
	forest := Present(tr)
	require.Len(t, forest, 2)
	assert.Same(t, forest[0].Children[0], forest[1].Children[0])
}
