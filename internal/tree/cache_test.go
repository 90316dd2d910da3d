package tree

import (
	"encoding/json"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := OpenCache("", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCache_SaveLoadRoundTrip(t *testing.T) {
	c := openTestCache(t)
	original := sampleTree()

	require.NoError(t, c.Save("doc-1", original))

	loaded, found, err := c.Load("doc-1")
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, original.LeafIDs, loaded.LeafIDs)
	assert.Equal(t, original.RootIDs, loaded.RootIDs)
	assert.Equal(t, original.NumLayers, loaded.NumLayers)
	require.Len(t, loaded.AllNodes, len(original.AllNodes))
	for id, node := range original.AllNodes {
		got := loaded.AllNodes[id]
		require.NotNil(t, got, "node %d", id)
		assert.Equal(t, node.Text, got.Text)
		assert.Equal(t, node.Children, got.Children)
		assert.Equal(t, node.Timestamp, got.Timestamp)
	}
	require.NoError(t, loaded.Validate())
}

func TestCache_LoadMissing(t *testing.T) {
	c := openTestCache(t)
	tr, found, err := c.Load("nope")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, tr)
}

func TestCache_Delete(t *testing.T) {
	c := openTestCache(t)
	require.NoError(t, c.Save("doc-1", sampleTree()))
	require.NoError(t, c.Delete("doc-1"))

	_, found, err := c.Load("doc-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_CorruptEntryDiscarded(t *testing.T) {
	c := openTestCache(t)

	// Write garbage directly under the document key.
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(treeKey("doc-bad"), []byte("{not a tree"))
	})
	require.NoError(t, err)

	_, _, err = c.Load("doc-bad")
	require.ErrorIs(t, err, ErrCorruptEntry)

	// The entry is gone, so a second load reports a clean miss.
	_, found, err := c.Load("doc-bad")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_StructurallyInvalidEntryDiscarded(t *testing.T) {
	c := openTestCache(t)

	// Valid JSON, but the root id does not resolve.
	broken := &Tree{
		AllNodes:   map[int]*Node{0: {ID: 0, Text: "x"}},
		LeafIDs:    []int{0},
		RootIDs:    []int{99},
		NumLayers:  1,
		LayerNodes: map[int][]int{0: {0}},
	}
	payload, err := json.Marshal(broken)
	require.NoError(t, err)
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(treeKey("doc-broken"), payload)
	})
	require.NoError(t, err)

	_, _, err = c.Load("doc-broken")
	assert.ErrorIs(t, err, ErrCorruptEntry)
}
