// Package library manages the per-document summarization trees and the
// retrieval engines built on top of them.
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/liuwen-dev/studyforge/internal/ai"
	"github.com/liuwen-dev/studyforge/internal/retrieve"
	"github.com/liuwen-dev/studyforge/internal/tree"
)

// ErrDocumentNotFound is returned when no tree exists for a document,
// neither in memory nor in the cache.
var ErrDocumentNotFound = errors.New("document not found")

// Config bundles the knobs the library passes down to chunking, tree
// construction and retrieval.
type Config struct {
	Chunk     tree.ChunkConfig
	Build     tree.BuildConfig
	Traversal retrieve.TraversalConfig
	FlatTopN  int
}

func DefaultConfig() Config {
	return Config{
		Chunk:     tree.DefaultChunkConfig(),
		Build:     tree.DefaultBuildConfig(),
		Traversal: retrieve.DefaultTraversalConfig(),
		FlatTopN:  5,
	}
}

// Library owns one Engine per document. Engines are built once and
// shared; concurrent requests for the same document collapse into a
// single cache load or build.
type Library struct {
	provider ai.Provider
	cache    *tree.Cache
	retry    ai.RetryPolicy
	cfg      Config
	log      *slog.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	engines map[string]*Engine
}

func New(provider ai.Provider, cache *tree.Cache, retry ai.RetryPolicy, cfg Config, log *slog.Logger) *Library {
	if cfg.FlatTopN <= 0 {
		cfg.FlatTopN = 5
	}
	return &Library{
		provider: provider,
		cache:    cache,
		retry:    retry,
		cfg:      cfg,
		log:      log,
		engines:  make(map[string]*Engine),
	}
}

// BuildFromText chunks plain document text, builds the tree, persists
// it and registers the engine. A document already indexed, in memory or
// in the cache, is returned as is without rebuilding.
func (l *Library) BuildFromText(ctx context.Context, docID, text string) (*Engine, error) {
	chunks := tree.ChunkText(text, l.cfg.Chunk)
	return l.buildFromChunks(ctx, docID, chunks)
}

// BuildFromSegments builds a tree from timestamped transcript segments.
func (l *Library) BuildFromSegments(ctx context.Context, docID string, segments []tree.Segment) (*Engine, error) {
	chunks := tree.ChunkSegments(segments, l.cfg.Chunk)
	return l.buildFromChunks(ctx, docID, chunks)
}

// buildFromChunks runs at most one build per document: concurrent
// calls for the same docID collapse into a single flight, and a tree
// that already exists short-circuits construction entirely.
func (l *Library) buildFromChunks(ctx context.Context, docID string, chunks []tree.Chunk) (*Engine, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document %s: no content to index", docID)
	}

	v, err, _ := l.group.Do("build:"+docID, func() (any, error) {
		l.mu.RLock()
		eng, ok := l.engines[docID]
		l.mu.RUnlock()
		if ok {
			return eng, nil
		}

		t, found, err := l.cache.Load(docID)
		if err != nil {
			// The corrupt entry is already discarded; rebuild.
			l.log.Warn("cached tree unreadable, rebuilding", "doc_id", docID, "error", err)
		}
		if !found {
			builder := tree.NewBuilder(l.provider.Embedder(), l.provider.Summarizer(), l.retry, l.cfg.Build, l.log)
			t, err = builder.Build(ctx, chunks)
			if err != nil {
				return nil, fmt.Errorf("build tree for %s: %w", docID, err)
			}
			if err := l.cache.Save(docID, t); err != nil {
				return nil, fmt.Errorf("persist tree for %s: %w", docID, err)
			}
			l.log.Info("document indexed",
				"doc_id", docID,
				"leaves", len(t.LeafIDs),
				"layers", t.NumLayers,
				"nodes", len(t.AllNodes))
		}

		eng, err = l.newEngine(docID, t)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.engines[docID] = eng
		l.mu.Unlock()
		return eng, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Engine), nil
}

// Engine returns the retrieval engine for a document, loading the tree
// from the cache on first access. Concurrent callers share one load.
func (l *Library) Engine(docID string) (*Engine, error) {
	l.mu.RLock()
	eng, ok := l.engines[docID]
	l.mu.RUnlock()
	if ok {
		return eng, nil
	}

	v, err, _ := l.group.Do("load:"+docID, func() (any, error) {
		l.mu.RLock()
		eng, ok := l.engines[docID]
		l.mu.RUnlock()
		if ok {
			return eng, nil
		}

		t, found, err := l.cache.Load(docID)
		if err != nil {
			return nil, fmt.Errorf("load tree for %s: %w", docID, err)
		}
		if !found {
			return nil, ErrDocumentNotFound
		}

		eng, err = l.newEngine(docID, t)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.engines[docID] = eng
		l.mu.Unlock()
		return eng, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Engine), nil
}

// Forget drops a document from memory and the cache.
func (l *Library) Forget(docID string) error {
	l.mu.Lock()
	delete(l.engines, docID)
	l.mu.Unlock()
	return l.cache.Delete(docID)
}

// Documents lists the doc IDs with an engine currently in memory.
func (l *Library) Documents() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.engines))
	for id := range l.engines {
		ids = append(ids, id)
	}
	return ids
}
