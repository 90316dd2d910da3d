package retrieve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/liuwen-dev/studyforge/internal/ai"
	"github.com/liuwen-dev/studyforge/internal/tree"
)

// ErrNoLeaves is returned when a flat index is built over a tree whose
// leaves carry no embeddings.
var ErrNoLeaves = errors.New("retrieve: no embedded leaves to index")

// FlatIndex is a brute-force cosine index over all leaf embeddings of
// one tree. It is built once per tree and reused across topic queries.
type FlatIndex struct {
	ids      []int
	texts    []string
	vectors  [][]float32
	embedder ai.Embedder
	retry    ai.RetryPolicy
	topN     int
}

// NewFlatIndex indexes the tree's leaves. Leaves without embeddings are
// skipped; an index over zero leaves is an error.
func NewFlatIndex(t *tree.Tree, embedder ai.Embedder, retry ai.RetryPolicy, topN int) (*FlatIndex, error) {
	if topN <= 0 {
		topN = 10
	}
	idx := &FlatIndex{embedder: embedder, retry: retry, topN: topN}
	for _, leaf := range t.Leaves() {
		if len(leaf.Embedding) == 0 {
			continue
		}
		idx.ids = append(idx.ids, leaf.ID)
		idx.texts = append(idx.texts, leaf.Text)
		idx.vectors = append(idx.vectors, leaf.Embedding)
	}
	if len(idx.ids) == 0 {
		return nil, ErrNoLeaves
	}
	return idx, nil
}

// Retrieve returns the concatenated text of the top-N leaves most
// similar to the topic, for use as generation context.
func (f *FlatIndex) Retrieve(ctx context.Context, topic string) (string, error) {
	var qVec []float32
	err := f.retry.Do(ctx, func() error {
		var embErr error
		qVec, embErr = f.embedder.EmbedText(ctx, topic)
		return embErr
	})
	if err != nil {
		return "", fmt.Errorf("embed topic: %w", err)
	}

	positions := make([]int, len(f.ids))
	for i := range positions {
		positions[i] = i
	}
	selected := topKByScore(positions, f.topN, func(pos int) float32 {
		return tree.Cosine(qVec, f.vectors[pos])
	})

	texts := make([]string, 0, len(selected))
	for _, pos := range selected {
		texts = append(texts, f.texts[pos])
	}
	return strings.Join(texts, "\n\n"), nil
}

// Size returns the number of indexed leaves.
func (f *FlatIndex) Size() int {
	return len(f.ids)
}
