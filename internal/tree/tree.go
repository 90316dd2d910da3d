// Package tree implements the hierarchical summarization tree: leaf
// chunks at layer 0, with each higher layer produced by clustering and
// summarizing the layer below.
package tree

import (
	"fmt"
	"slices"
)

// Node is a single tree node stored in the arena. Children holds child
// ids; it is empty for leaves. Timestamp is the start offset in seconds
// for transcript-derived leaves, nil otherwise.
type Node struct {
	ID        int       `json:"id"`
	Text      string    `json:"text"`
	Children  []int     `json:"children,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
	Timestamp *int      `json:"timestamp,omitempty"`
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Tree is a flat id->node arena plus layer bookkeeping. Leaves form
// layer 0; LayerNodes records each node at the layer it was created on,
// so the layers partition AllNodes. RootIDs is the designated root set
// and may mix creation layers when singleton nodes were promoted.
type Tree struct {
	AllNodes   map[int]*Node `json:"all_nodes"`
	LeafIDs    []int         `json:"leaf_ids"`
	RootIDs    []int         `json:"root_ids"`
	NumLayers  int           `json:"num_layers"`
	LayerNodes map[int][]int `json:"layer_nodes"`
}

// Node returns the node with the given id, or nil.
func (t *Tree) Node(id int) *Node {
	return t.AllNodes[id]
}

// IsLeafID reports whether id names a layer-0 node.
func (t *Tree) IsLeafID(id int) bool {
	return slices.Contains(t.LeafIDs, id)
}

// Leaves returns the layer-0 nodes in ascending id order.
func (t *Tree) Leaves() []*Node {
	ids := slices.Clone(t.LeafIDs)
	slices.Sort(ids)
	leaves := make([]*Node, 0, len(ids))
	for _, id := range ids {
		leaves = append(leaves, t.AllNodes[id])
	}
	return leaves
}

// Validate checks the structural invariants: roots exist in the arena,
// leaves have no children, every child id resolves, and the layers
// partition the arena with each node appearing exactly once.
func (t *Tree) Validate() error {
	for _, id := range t.RootIDs {
		if t.AllNodes[id] == nil {
			return fmt.Errorf("root %d not in arena", id)
		}
	}
	for _, id := range t.LeafIDs {
		node := t.AllNodes[id]
		if node == nil {
			return fmt.Errorf("leaf %d not in arena", id)
		}
		if len(node.Children) > 0 {
			return fmt.Errorf("leaf %d has %d children", id, len(node.Children))
		}
	}
	for id, node := range t.AllNodes {
		for _, child := range node.Children {
			if t.AllNodes[child] == nil {
				return fmt.Errorf("node %d references missing child %d", id, child)
			}
		}
	}
	seen := make(map[int]int, len(t.AllNodes))
	for layer, ids := range t.LayerNodes {
		if layer < 0 || layer >= t.NumLayers {
			return fmt.Errorf("layer %d outside [0,%d)", layer, t.NumLayers)
		}
		for _, id := range ids {
			seen[id]++
		}
	}
	if len(seen) != len(t.AllNodes) {
		return fmt.Errorf("layers cover %d nodes, arena has %d", len(seen), len(t.AllNodes))
	}
	for id, count := range seen {
		if count != 1 {
			return fmt.Errorf("node %d appears in %d layers", id, count)
		}
		if t.AllNodes[id] == nil {
			return fmt.Errorf("layered node %d not in arena", id)
		}
	}
	return nil
}
