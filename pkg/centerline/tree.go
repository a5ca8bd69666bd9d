package centerline

import (
	"fmt"
	"slices"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/samber/lo"
)

// Tree is the immutable branch tree of one patient's centerline. Branch ids
// are dense indices into the tree's branch slice; branch 0 is the inlet.
type Tree struct {
	branches []Branch
	children map[int][]int

	// Dropped lists the raw path indices discarded as degenerate.
	Dropped []int
}

// New validates branches and builds a tree over them. The tree takes
// ownership of the slice. Blocking findings are returned as a *TopologyError.
func New(branches []Branch) (*Tree, error) {
	if len(branches) == 0 {
		return nil, ErrNoBranches
	}
	if errs := blocking(Validate(branches)); len(errs) > 0 {
		return nil, &TopologyError{Findings: errs}
	}
	for i := range branches {
		branches[i].ID = i
	}
	t := &Tree{branches: branches, children: make(map[int][]int)}
	for i := range branches {
		if p := branches[i].Parent; p != NoParent {
			t.children[p] = append(t.children[p], i)
		}
	}
	return t, nil
}

// Len returns the number of branches.
func (t *Tree) Len() int { return len(t.branches) }

// Branch returns the branch with the given id, or nil. The returned branch
// must not be modified.
func (t *Tree) Branch(id int) *Branch {
	if id < 0 || id >= len(t.branches) {
		return nil
	}
	return &t.branches[id]
}

// Branches returns all branches in id order. The slice must not be modified.
func (t *Tree) Branches() []Branch { return t.branches }

// Children returns the direct children of a branch in ascending id order.
func (t *Tree) Children(id int) []int { return t.children[id] }

// Parent returns the parent link of a branch, or false for roots.
func (t *Tree) Parent(id int) (ParentLink, bool) {
	b := t.Branch(id)
	if b == nil {
		return ParentLink{}, false
	}
	return b.Link()
}

// Roots returns the ids of all branches without a parent.
func (t *Tree) Roots() []int {
	return lo.FilterMap(t.branches, func(b Branch, i int) (int, bool) {
		return i, b.Parent == NoParent
	})
}

// Valid reports whether loc addresses an existing sample.
func (t *Tree) Valid(loc Location) bool {
	b := t.Branch(loc.Branch)
	return b != nil && loc.Index >= 0 && loc.Index < b.Len()
}

// Position returns the sample position at loc.
func (t *Tree) Position(loc Location) (v3.Vec, error) {
	if !t.Valid(loc) {
		return v3.Vec{}, fmt.Errorf("%w: (%s)", ErrInvalidLocation, loc)
	}
	return t.branches[loc.Branch].Points[loc.Index], nil
}

// Radius returns the inscribed sphere radius at loc.
func (t *Tree) Radius(loc Location) (float64, error) {
	if !t.Valid(loc) {
		return 0, fmt.Errorf("%w: (%s)", ErrInvalidLocation, loc)
	}
	return t.branches[loc.Branch].Radii[loc.Index], nil
}

// Ancestors returns the parent chain of a branch, nearest parent first.
func (t *Tree) Ancestors(id int) []int {
	var chain []int
	for {
		link, ok := t.Parent(id)
		if !ok {
			return chain
		}
		chain = append(chain, link.Parent)
		id = link.Parent
	}
}

// Subtree returns id and all of its descendants in breadth-first order.
func (t *Tree) Subtree(id int) []int {
	out := []int{id}
	for i := 0; i < len(out); i++ {
		out = append(out, t.children[out[i]]...)
	}
	return out
}

// InSubtree reports whether id is root or one of its descendants.
func (t *Tree) InSubtree(root, id int) bool {
	return id == root || slices.Contains(t.Ancestors(id), root)
}

// Downstream returns the descendants of a branch whose connection lies at or
// beyond index on that branch: children splitting at index or later, and all
// of their descendants. Order is breadth-first.
func (t *Tree) Downstream(loc Location) []int {
	var out []int
	for _, c := range t.children[loc.Branch] {
		if t.branches[c].Split >= loc.Index {
			out = append(out, t.Subtree(c)...)
		}
	}
	return out
}

// RootDistance returns the number of samples walked from the root to loc
// along the parent chain.
func (t *Tree) RootDistance(loc Location) int {
	d := loc.Index
	id := loc.Branch
	for {
		link, ok := t.Parent(id)
		if !ok {
			return d
		}
		d += link.Split
		id = link.Parent
	}
}
