package tree

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuwen-dev/studyforge/internal/ai"
	"github.com/liuwen-dev/studyforge/internal/ai/mock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRetry() ai.RetryPolicy {
	return ai.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond}
}

func buildChunks(n int) []Chunk {
	chunks := make([]Chunk, n)
	for i := range chunks {
		chunks[i] = Chunk{Text: fmt.Sprintf("chunk %d talks about subject %d", i, i)}
	}
	return chunks
}

func TestBuilder_SingleChunk(t *testing.T) {
	b := NewBuilder(&mock.Embedder{}, &mock.Summarizer{}, testRetry(), DefaultBuildConfig(), testLogger())

	tr, err := b.Build(context.Background(), buildChunks(1))
	require.NoError(t, err)

	assert.Equal(t, []int{0}, tr.LeafIDs)
	assert.Equal(t, []int{0}, tr.RootIDs)
	assert.Equal(t, 1, tr.NumLayers)
	assert.NotEmpty(t, tr.Node(0).Embedding, "roots must be embedded")
}

func TestBuilder_Empty(t *testing.T) {
	b := NewBuilder(&mock.Embedder{}, &mock.Summarizer{}, testRetry(), DefaultBuildConfig(), testLogger())
	_, err := b.Build(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoChunks)
}

func TestBuilder_ReducesLayerBelow(t *testing.T) {
	cfg := DefaultBuildConfig()
	b := NewBuilder(&mock.Embedder{}, &mock.Summarizer{}, testRetry(), cfg, testLogger())

	tr, err := b.Build(context.Background(), buildChunks(20))
	require.NoError(t, err)

	assert.Len(t, tr.LeafIDs, 20)
	assert.Less(t, len(tr.RootIDs), 20, "every pass must shrink the working set")
	assert.Greater(t, tr.NumLayers, 1)
	assert.LessOrEqual(t, tr.NumLayers, cfg.MaxLayers)
	require.NoError(t, tr.Validate())

	// Every root carries an embedding so traversal can score it.
	for _, id := range tr.RootIDs {
		assert.NotEmpty(t, tr.Node(id).Embedding, "root %d", id)
	}
	// Leaves keep their original text.
	for i, id := range tr.LeafIDs {
		assert.Equal(t, fmt.Sprintf("chunk %d talks about subject %d", i, i), tr.Node(id).Text)
	}
}

func TestBuilder_SimilarLeavesCluster(t *testing.T) {
	// Identical vectors for all leaves: one pass merges groups of
	// MaxGroupSize and the summarizer is exercised.
	same := []float32{1, 0, 0, 0}
	emb := &mock.Embedder{Vectors: map[string][]float32{}}
	chunks := buildChunks(10)
	for _, c := range chunks {
		emb.Vectors[c.Text] = same
	}

	sum := &mock.Summarizer{}
	cfg := DefaultBuildConfig()
	b := NewBuilder(emb, sum, testRetry(), cfg, testLogger())

	tr, err := b.Build(context.Background(), chunks)
	require.NoError(t, err)
	require.NoError(t, tr.Validate())

	assert.Greater(t, sum.Calls, 0, "summarizer must run for merged groups")
	// 10 leaves with group cap 5 reduce to 2 summaries in one pass.
	assert.Len(t, tr.LayerNodes[1], 2)
	assert.Equal(t, []int{10, 11}, tr.RootIDs)

	// Parents hold summary text, not raw leaf text.
	for _, id := range tr.RootIDs {
		assert.Contains(t, tr.Node(id).Text, "summary[")
	}
}

func TestBuilder_DissimilarLeavesStillReduce(t *testing.T) {
	// Orthogonal vectors never pass the similarity threshold, so the
	// consecutive-run fallback has to make progress instead.
	emb := &mock.Embedder{Vectors: map[string][]float32{}}
	chunks := buildChunks(8)
	for i, c := range chunks {
		vec := make([]float32, 8)
		vec[i] = 1
		emb.Vectors[c.Text] = vec
	}

	cfg := DefaultBuildConfig()
	b := NewBuilder(emb, &mock.Summarizer{}, testRetry(), cfg, testLogger())

	tr, err := b.Build(context.Background(), chunks)
	require.NoError(t, err)
	require.NoError(t, tr.Validate())
	assert.LessOrEqual(t, len(tr.RootIDs), cfg.MaxRootNodes)
}

func TestBuilder_Deterministic(t *testing.T) {
	build := func() *Tree {
		b := NewBuilder(&mock.Embedder{}, &mock.Summarizer{}, testRetry(), DefaultBuildConfig(), testLogger())
		tr, err := b.Build(context.Background(), buildChunks(15))
		require.NoError(t, err)
		return tr
	}
	a, b := build(), build()

	assert.Equal(t, a.RootIDs, b.RootIDs)
	assert.Equal(t, a.NumLayers, b.NumLayers)
	require.Equal(t, len(a.AllNodes), len(b.AllNodes))
	for id, node := range a.AllNodes {
		other := b.AllNodes[id]
		require.NotNil(t, other, "node %d", id)
		assert.Equal(t, node.Text, other.Text, "node %d", id)
		assert.Equal(t, node.Children, other.Children, "node %d", id)
	}
}

func TestBuilder_EmbedErrorPropagates(t *testing.T) {
	emb := &mock.Embedder{Err: fmt.Errorf("embedding service down")}
	b := NewBuilder(emb, &mock.Summarizer{}, testRetry(), DefaultBuildConfig(), testLogger())

	_, err := b.Build(context.Background(), buildChunks(10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding service down")
}

func TestConsecutiveGroups(t *testing.T) {
	groups := consecutiveGroups([]int{4, 1, 3, 2, 0, 5, 6}, 3)
	assert.Equal(t, [][]int{{0, 1, 2}, {3, 4, 5}, {6}}, groups)
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"empty", nil, []float32{1}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1}, 0},
		{"zero magnitude", []float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Cosine(tt.a, tt.b), 1e-6)
		})
	}
}
