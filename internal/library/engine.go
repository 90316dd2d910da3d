package library

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/liuwen-dev/studyforge/internal/retrieve"
	"github.com/liuwen-dev/studyforge/internal/tree"
)

// Engine bundles everything needed to answer questions about one
// document: its tree, the layered traversal retriever and the flat
// leaf index.
type Engine struct {
	docID     string
	tree      *tree.Tree
	traversal *retrieve.Traversal
	flat      *retrieve.FlatIndex

	presentOnce sync.Once
	presented   []*tree.DocumentTreeNode
}

func (l *Library) newEngine(docID string, t *tree.Tree) (*Engine, error) {
	flat, err := retrieve.NewFlatIndex(t, l.provider.Embedder(), l.retry, l.cfg.FlatTopN)
	if err != nil {
		return nil, fmt.Errorf("flat index for %s: %w", docID, err)
	}
	return &Engine{
		docID:     docID,
		tree:      t,
		traversal: retrieve.NewTraversal(t, l.provider.Embedder(), l.provider.Answerer(), l.retry, l.cfg.Traversal, l.log),
		flat:      flat,
	}, nil
}

// DocID returns the document this engine serves.
func (e *Engine) DocID() string { return e.docID }

// Answer runs the layered traversal and returns the generated answer
// plus the IDs of the leaf nodes that supplied context.
func (e *Engine) Answer(ctx context.Context, question string) (string, []string, error) {
	answer, leafIDs, err := e.traversal.Answer(ctx, question)
	if err != nil {
		return "", nil, err
	}
	sources := make([]string, len(leafIDs))
	for i, id := range leafIDs {
		sources[i] = strconv.Itoa(id)
	}
	return answer, sources, nil
}

// Context retrieves flat leaf context for a topic without generating
// an answer. Used by the study-material prompts.
func (e *Engine) Context(ctx context.Context, topic string) (string, error) {
	return e.flat.Retrieve(ctx, topic)
}

// Outline returns the presentation tree, computed once per engine.
func (e *Engine) Outline() []*tree.DocumentTreeNode {
	e.presentOnce.Do(func() {
		e.presented = tree.Present(e.tree)
	})
	return e.presented
}

// NodeDetail is the full view of one tree node.
type NodeDetail struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	FullText  string `json:"full_text"`
	Timestamp *int   `json:"timestamp,omitempty"`
}

// Node looks up a single node by its string ID.
func (e *Engine) Node(nodeID string) (*NodeDetail, error) {
	id, err := strconv.Atoi(nodeID)
	if err != nil {
		return nil, fmt.Errorf("invalid node id %q", nodeID)
	}
	n := e.tree.Node(id)
	if n == nil {
		return nil, fmt.Errorf("node %d not found in document %s", id, e.docID)
	}
	typ := "section"
	if n.IsLeaf() {
		typ = "leaf"
	}
	return &NodeDetail{
		ID:        nodeID,
		Type:      typ,
		FullText:  n.Text,
		Timestamp: n.Timestamp,
	}, nil
}
