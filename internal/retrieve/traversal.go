// Package retrieve implements the two retrieval modes over a built
// tree: layered top-k traversal for precise QA with source attribution,
// and flat nearest-neighbor search over all leaves for broad synthesis.
package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/liuwen-dev/studyforge/internal/ai"
	"github.com/liuwen-dev/studyforge/internal/tree"
)

// TraversalConfig bounds the layered descent.
type TraversalConfig struct {
	TopK     int // nodes selected per layer
	MaxDepth int // layers visited, root layer included
}

// DefaultTraversalConfig returns sensible defaults.
func DefaultTraversalConfig() TraversalConfig {
	return TraversalConfig{TopK: 3, MaxDepth: 6}
}

// Traversal answers questions by descending the tree layer by layer:
// the top-k nodes most similar to the question are selected per layer
// and only their children are considered next.
type Traversal struct {
	tree     *tree.Tree
	embedder ai.Embedder
	answerer ai.Answerer
	retry    ai.RetryPolicy
	cfg      TraversalConfig
	log      *slog.Logger
}

// NewTraversal creates a traversal retriever over a built tree.
func NewTraversal(t *tree.Tree, embedder ai.Embedder, answerer ai.Answerer, retry ai.RetryPolicy, cfg TraversalConfig, log *slog.Logger) *Traversal {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 6
	}
	return &Traversal{
		tree:     t,
		embedder: embedder,
		answerer: answerer,
		retry:    retry,
		cfg:      cfg,
		log:      log.With("component", "traversal-retriever"),
	}
}

// Answer runs the layered retrieval and asks the answer collaborator
// with the accumulated context. It returns the answer and the sorted
// distinct leaf ids that were actually visited.
func (r *Traversal) Answer(ctx context.Context, question string) (string, []int, error) {
	contextText, leafIDs, err := r.Collect(ctx, question)
	if err != nil {
		return "", nil, err
	}

	var answer string
	err = r.retry.Do(ctx, func() error {
		var ansErr error
		answer, ansErr = r.answerer.Answer(ctx, contextText, question)
		return ansErr
	})
	if err != nil {
		return "", nil, fmt.Errorf("answer question: %w", err)
	}
	return answer, leafIDs, nil
}

// Collect performs the descent and returns the accumulated context text
// plus the sorted distinct visited leaf ids.
func (r *Traversal) Collect(ctx context.Context, question string) (string, []int, error) {
	var qVec []float32
	err := r.retry.Do(ctx, func() error {
		var embErr error
		qVec, embErr = r.embedder.EmbedText(ctx, question)
		return embErr
	})
	if err != nil {
		return "", nil, fmt.Errorf("embed question: %w", err)
	}

	current := slices.Clone(r.tree.RootIDs)
	slices.Sort(current)

	var contexts []string
	leafSet := make(map[int]bool)

	for depth := 0; depth < r.cfg.MaxDepth && len(current) > 0; depth++ {
		selected := topKByScore(current, r.cfg.TopK, func(id int) float32 {
			return tree.Cosine(qVec, r.tree.Node(id).Embedding)
		})

		nextSet := make(map[int]bool)
		for _, id := range selected {
			node := r.tree.Node(id)
			contexts = append(contexts, node.Text)
			if node.IsLeaf() {
				leafSet[id] = true
				continue
			}
			for _, child := range node.Children {
				nextSet[child] = true
			}
		}
		current = sortedKeys(nextSet)
	}

	leafIDs := sortedKeys(leafSet)
	r.log.Debug("traversal complete", "context_nodes", len(contexts), "leaves", len(leafIDs))
	return strings.Join(contexts, "\n\n"), leafIDs, nil
}

// topKByScore selects up to k ids with the highest scores. Ties resolve
// to the lowest id because candidates are scanned in ascending order
// and the sort is stable.
func topKByScore(ids []int, k int, score func(int) float32) []int {
	type scored struct {
		id    int
		score float32
	}
	ordered := slices.Clone(ids)
	slices.Sort(ordered)
	all := make([]scored, 0, len(ordered))
	for _, id := range ordered {
		all = append(all, scored{id: id, score: score(id)})
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].score > all[j].score
	})
	if k > len(all) {
		k = len(all)
	}
	out := make([]int, 0, k)
	for _, s := range all[:k] {
		out = append(out, s.id)
	}
	return out
}

func sortedKeys(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
