package nsm

import (
	"cmp"
	"fmt"
	"slices"
)

// Node is the structural part of a tree row.
type Node struct {
	ID  int64 `db:"id"`
	Lft int64 `db:"lft"`
	Rgt int64 `db:"rgt"`
}

// Width is the span of boundaries the node and its subtree occupy.
func (n Node) Width() int64 {
	return n.Rgt - n.Lft + 1
}

// IsLeaf reports whether the node has no descendants.
func (n Node) IsLeaf() bool {
	return n.Rgt == n.Lft+1
}

// Position is an insertion boundary inside a parent.
type Position struct {
	Lft int64 `db:"lft"`
	Rgt int64 `db:"rgt"`
}

// IsDescendant reports whether b lies strictly inside a.
func IsDescendant(b, a Node) bool {
	return a.Lft < b.Lft && b.Lft < a.Rgt
}

// Shift applies the BeforeInsertChild update to a copy of nodes.
func Shift(nodes []Node, parentRgt, offset int64) []Node {
	out := slices.Clone(nodes)
	for i := range out {
		if out[i].Rgt < parentRgt {
			continue
		}
		if out[i].Lft > parentRgt {
			out[i].Lft += offset
		}
		out[i].Rgt += offset
	}
	return out
}

// Insert adds a leaf with the given id as the last child of parentID.
func Insert(nodes []Node, parentID, id int64) ([]Node, Node, error) {
	i := slices.IndexFunc(nodes, func(n Node) bool { return n.ID == parentID })
	if i < 0 {
		return nil, Node{}, fmt.Errorf("%w: %d", ErrNodeNotFound, parentID)
	}
	parentRgt := nodes[i].Rgt
	child := Node{ID: id, Lft: parentRgt, Rgt: parentRgt + 1}
	return append(Shift(nodes, parentRgt, 2), child), child, nil
}

// Delete drops the node with the given id and its subtree. The result has
// gaps until it is renumbered.
func Delete(nodes []Node, id int64) ([]Node, error) {
	i := slices.IndexFunc(nodes, func(n Node) bool { return n.ID == id })
	if i < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	target := nodes[i]
	return slices.DeleteFunc(slices.Clone(nodes), func(n Node) bool {
		return n.Lft >= target.Lft && n.Lft <= target.Rgt
	}), nil
}

// Renumber applies the Cleanup update to a copy of nodes: every boundary
// becomes its 1-based rank among all boundaries.
func Renumber(nodes []Node) []Node {
	seq := make([]int64, 0, len(nodes)*2)
	for _, n := range nodes {
		seq = append(seq, n.Lft, n.Rgt)
	}
	slices.Sort(seq)

	// count of boundaries <= v
	rank := func(v int64) int64 {
		i, _ := slices.BinarySearch(seq, v+1)
		return int64(i)
	}

	out := slices.Clone(nodes)
	for i := range out {
		out[i].Lft = rank(out[i].Lft)
		out[i].Rgt = rank(out[i].Rgt)
	}
	return out
}

// Dense reports whether the boundaries are exactly 1..2n.
func Dense(nodes []Node) bool {
	seen := make([]bool, len(nodes)*2+1)
	for _, n := range nodes {
		for _, v := range []int64{n.Lft, n.Rgt} {
			if v < 1 || v > int64(len(nodes)*2) || seen[v] {
				return false
			}
			seen[v] = true
		}
	}
	return true
}

// Validate checks that every interval is well formed, boundaries are unique,
// and any two intervals are either nested or disjoint.
func Validate(nodes []Node) error {
	seen := make(map[int64]int64, len(nodes)*2)
	for _, n := range nodes {
		if n.Lft >= n.Rgt {
			return fmt.Errorf("%w: node %d has lft %d >= rgt %d", ErrCorruptTree, n.ID, n.Lft, n.Rgt)
		}
		for _, v := range []int64{n.Lft, n.Rgt} {
			if other, ok := seen[v]; ok {
				return fmt.Errorf("%w: boundary %d shared by nodes %d and %d", ErrCorruptTree, v, other, n.ID)
			}
			seen[v] = n.ID
		}
	}

	var stack []Node
	for _, n := range sortByLft(nodes) {
		for len(stack) > 0 && stack[len(stack)-1].Rgt < n.Lft {
			stack = stack[:len(stack)-1]
		}
		if len(stack) > 0 && n.Rgt > stack[len(stack)-1].Rgt {
			top := stack[len(stack)-1]
			return fmt.Errorf("%w: nodes %d and %d overlap", ErrCorruptTree, top.ID, n.ID)
		}
		stack = append(stack, n)
	}
	return nil
}

// Tree is a node with its direct children, ordered by lft.
type Tree struct {
	Children []*Tree
	Node
}

// Build nests valid nodes into trees. The result lists the roots.
func Build(nodes []Node) []*Tree {
	var (
		roots []*Tree
		stack []*Tree
	)
	for _, n := range sortByLft(nodes) {
		for len(stack) > 0 && stack[len(stack)-1].Rgt < n.Lft {
			stack = stack[:len(stack)-1]
		}
		t := &Tree{Node: n}
		if len(stack) == 0 {
			roots = append(roots, t)
		} else {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, t)
		}
		stack = append(stack, t)
	}
	return roots
}

// Walk visits t and its subtree depth first. Returning false stops the walk.
func (t *Tree) Walk(fn func(t *Tree, depth int) bool) bool {
	return t.walk(fn, 0)
}

func (t *Tree) walk(fn func(*Tree, int) bool, depth int) bool {
	if !fn(t, depth) {
		return false
	}
	for _, c := range t.Children {
		if !c.walk(fn, depth+1) {
			return false
		}
	}
	return true
}

func sortByLft(nodes []Node) []Node {
	sorted := slices.Clone(nodes)
	slices.SortFunc(sorted, func(a, b Node) int {
		return cmp.Compare(a.Lft, b.Lft)
	})
	return sorted
}
