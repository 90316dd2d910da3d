package tree

import (
	"slices"
	"strconv"
	"strings"
)

const labelRunes = 120

// DocumentTreeNode is the read-only projection served to clients. It is
// regenerated on demand from a Tree and never persisted on its own.
type DocumentTreeNode struct {
	ID        string              `json:"id"`
	Label     string              `json:"label"`
	Type      string              `json:"type"` // "section" or "leaf"
	Children  []*DocumentTreeNode `json:"children"`
	FullText  string              `json:"full_text"`
	Timestamp *int                `json:"timestamp,omitempty"`
}

// Present converts a Tree into an ordered forest of presentation nodes.
// The transform is memoized per node id so shared traversal stays linear
// in tree size. Root order is ascending by root id.
func Present(t *Tree) []*DocumentTreeNode {
	if t == nil || len(t.AllNodes) == 0 {
		return []*DocumentTreeNode{}
	}

	memo := make(map[int]*DocumentTreeNode, len(t.AllNodes))
	var build func(id int) *DocumentTreeNode
	build = func(id int) *DocumentTreeNode {
		if cached, ok := memo[id]; ok {
			return cached
		}
		node := t.AllNodes[id]
		if node == nil {
			return nil
		}

		childIDs := slices.Clone(node.Children)
		slices.Sort(childIDs)
		children := make([]*DocumentTreeNode, 0, len(childIDs))
		for _, childID := range childIDs {
			if child := build(childID); child != nil {
				children = append(children, child)
			}
		}

		kind := "leaf"
		if len(children) > 0 {
			kind = "section"
		}
		out := &DocumentTreeNode{
			ID:        strconv.Itoa(id),
			Label:     makeLabel(node.Text),
			Type:      kind,
			Children:  children,
			FullText:  node.Text,
			Timestamp: node.Timestamp,
		}
		memo[id] = out
		return out
	}

	rootIDs := slices.Clone(t.RootIDs)
	slices.Sort(rootIDs)
	forest := make([]*DocumentTreeNode, 0, len(rootIDs))
	for _, id := range rootIDs {
		if node := build(id); node != nil {
			forest = append(forest, node)
		}
	}
	return forest
}

func makeLabel(text string) string {
	label := strings.ReplaceAll(text, "\n", " ")
	runes := []rune(label)
	if len(runes) > labelRunes {
		label = string(runes[:labelRunes])
	}
	return label
}
