package tree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/liuwen-dev/studyforge/internal/ai"
)

// ErrNoChunks is returned when a build is attempted over empty input.
var ErrNoChunks = errors.New("tree: no chunks to build from")

// BuildConfig holds the tree construction constants.
type BuildConfig struct {
	MaxLayers           int     // maximum layer count, leaves included
	MaxRootNodes        int     // stop reducing once a layer is this small
	MaxGroupSize        int     // cluster size cap
	SimilarityThreshold float32 // minimum cosine similarity to join a cluster
	SummaryTokens       int     // max token budget passed to the summarizer
	EmbedWorkers        int     // embedding pool size
}

// DefaultBuildConfig returns sensible defaults.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		MaxLayers:           5,
		MaxRootNodes:        5,
		MaxGroupSize:        5,
		SimilarityThreshold: 0.5,
		SummaryTokens:       500,
		EmbedWorkers:        4,
	}
}

// Builder constructs summarization trees bottom-up from leaf chunks.
type Builder struct {
	embedder   ai.Embedder
	summarizer ai.Summarizer
	retry      ai.RetryPolicy
	cfg        BuildConfig
	log        *slog.Logger
}

// NewBuilder creates a builder with explicit collaborator injection.
func NewBuilder(embedder ai.Embedder, summarizer ai.Summarizer, retry ai.RetryPolicy, cfg BuildConfig, log *slog.Logger) *Builder {
	if cfg.MaxLayers <= 0 {
		cfg.MaxLayers = 5
	}
	if cfg.MaxRootNodes <= 0 {
		cfg.MaxRootNodes = 5
	}
	if cfg.MaxGroupSize < 2 {
		cfg.MaxGroupSize = 5
	}
	if cfg.EmbedWorkers <= 0 {
		cfg.EmbedWorkers = 4
	}
	if cfg.SummaryTokens <= 0 {
		cfg.SummaryTokens = 500
	}
	return &Builder{
		embedder:   embedder,
		summarizer: summarizer,
		retry:      retry,
		cfg:        cfg,
		log:        log.With("component", "tree-builder"),
	}
}

// Build assembles a tree from leaf chunks. Layer 0 is the chunks in
// input order with dense ids from 0; each pass embeds the working set,
// clusters it by embedding similarity, summarizes multi-member groups
// into new parent nodes and promotes singletons unchanged. Passes stop
// once the working set fits MaxRootNodes or the layer budget is spent;
// whatever remains becomes the root set.
func (b *Builder) Build(ctx context.Context, chunks []Chunk) (*Tree, error) {
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	t := &Tree{
		AllNodes:   make(map[int]*Node, len(chunks)),
		LayerNodes: make(map[int][]int),
	}
	for i, chunk := range chunks {
		node := &Node{ID: i, Text: chunk.Text, Timestamp: chunk.Timestamp}
		t.AllNodes[i] = node
		t.LeafIDs = append(t.LeafIDs, i)
		t.LayerNodes[0] = append(t.LayerNodes[0], i)
	}

	current := slices.Clone(t.LeafIDs)
	nextID := len(chunks)
	layer := 0

	for len(current) > b.cfg.MaxRootNodes && layer+1 < b.cfg.MaxLayers {
		if err := b.embedMissing(ctx, t, current); err != nil {
			return nil, err
		}

		groups := b.clusterByID(t, current)
		if maxGroupLen(groups) < 2 {
			// No similarity merge possible on this pass. Group
			// consecutive runs instead so reduction always makes
			// progress toward a root set.
			groups = consecutiveGroups(current, b.cfg.MaxGroupSize)
		}

		var next []int
		for _, group := range groups {
			if len(group) == 1 {
				next = append(next, group[0])
				continue
			}
			summary, err := b.summarizeGroup(ctx, t, group)
			if err != nil {
				return nil, fmt.Errorf("summarize layer %d: %w", layer+1, err)
			}
			parent := &Node{ID: nextID, Text: summary, Children: slices.Clone(group)}
			t.AllNodes[nextID] = parent
			t.LayerNodes[layer+1] = append(t.LayerNodes[layer+1], nextID)
			next = append(next, nextID)
			nextID++
		}

		b.log.Debug("layer reduced", "layer", layer+1,
			"from", len(current), "to", len(next))
		current = next
		layer++
	}

	// Roots need embeddings for traversal even when no further pass
	// clusters them.
	if err := b.embedMissing(ctx, t, current); err != nil {
		return nil, err
	}

	slices.Sort(current)
	t.RootIDs = current
	t.NumLayers = len(t.LayerNodes)

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("built tree failed validation: %w", err)
	}
	b.log.Info("tree built", "leaves", len(t.LeafIDs),
		"nodes", len(t.AllNodes), "layers", t.NumLayers, "roots", len(t.RootIDs))
	return t, nil
}

// embedMissing fills in embeddings for the given working set using a
// bounded worker pool.
func (b *Builder) embedMissing(ctx context.Context, t *Tree, ids []int) error {
	var pending []*Node
	for _, id := range ids {
		if node := t.AllNodes[id]; len(node.Embedding) == 0 {
			pending = append(pending, node)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	pool, err := ants.NewPool(b.cfg.EmbedWorkers)
	if err != nil {
		return fmt.Errorf("embedding pool: %w", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, node := range pending {
		wg.Add(1)
		node := node
		submitErr := pool.Submit(func() {
			defer wg.Done()
			var vec []float32
			err := b.retry.Do(ctx, func() error {
				var embErr error
				vec, embErr = b.embedder.EmbedText(ctx, node.Text)
				return embErr
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("embed node %d: %w", node.ID, err)
				return
			}
			if err == nil {
				node.Embedding = vec
			}
		})
		if submitErr != nil {
			wg.Done()
			return fmt.Errorf("submit embedding job: %w", submitErr)
		}
	}
	wg.Wait()
	return firstErr
}

// clusterByID greedily clusters the working set by cosine similarity.
// Seeds are taken in ascending id order and candidates joined in the
// same order, so equal similarities resolve deterministically.
func (b *Builder) clusterByID(t *Tree, ids []int) [][]int {
	ordered := slices.Clone(ids)
	slices.Sort(ordered)

	assigned := make(map[int]bool, len(ordered))
	var groups [][]int
	for _, seed := range ordered {
		if assigned[seed] {
			continue
		}
		group := []int{seed}
		assigned[seed] = true
		seedVec := t.AllNodes[seed].Embedding
		for _, candidate := range ordered {
			if assigned[candidate] || len(group) >= b.cfg.MaxGroupSize {
				continue
			}
			if Cosine(seedVec, t.AllNodes[candidate].Embedding) >= b.cfg.SimilarityThreshold {
				group = append(group, candidate)
				assigned[candidate] = true
			}
		}
		groups = append(groups, group)
	}
	return groups
}

func (b *Builder) summarizeGroup(ctx context.Context, t *Tree, group []int) (string, error) {
	texts := make([]string, 0, len(group))
	for _, id := range group {
		texts = append(texts, t.AllNodes[id].Text)
	}
	var summary string
	err := b.retry.Do(ctx, func() error {
		var sumErr error
		summary, sumErr = b.summarizer.Summarize(ctx, strings.Join(texts, "\n\n"), b.cfg.SummaryTokens)
		return sumErr
	})
	return summary, err
}

func maxGroupLen(groups [][]int) int {
	max := 0
	for _, g := range groups {
		if len(g) > max {
			max = len(g)
		}
	}
	return max
}

// consecutiveGroups partitions ids into runs of up to size members,
// keeping input order.
func consecutiveGroups(ids []int, size int) [][]int {
	ordered := slices.Clone(ids)
	slices.Sort(ordered)
	var groups [][]int
	for len(ordered) > 0 {
		n := min(size, len(ordered))
		groups = append(groups, slices.Clone(ordered[:n]))
		ordered = ordered[n:]
	}
	return groups
}

// Cosine returns the cosine similarity of two vectors, 0 when either
// has no magnitude or lengths differ.
func Cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
