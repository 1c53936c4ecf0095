// Package quadtree implements a spatial index: a recursively subdivided
// rectangle supporting radius queries over a particle set. Nodes live in
// a flat arena addressed by index rather than as a tree of
// pointer-linked, individually-owned structs, which avoids recursive
// destruction cost. A single node type serves both roles; its isLeaf flag
// says whether it holds particles or four child indices.
package quadtree

import (
	"github.com/pkg/errors"

	"github.com/0x5844/particle-sim/internal/geom"
	"github.com/0x5844/particle-sim/internal/particle"
)

// LeafCapacity is the maximum number of particles a node may hold before
// it subdivides into four children instead of storing them directly.
const LeafCapacity = 256

// ErrEmptyTree is returned by queries against a tree built from zero
// particles; its root box is ill-defined and forbids querying it.
var ErrEmptyTree = errors.New("quadtree: query against empty tree")

// childOrder fixes the branching order every internal node uses: top-left,
// top-right, bottom-left, bottom-right, dividing at the midpoint on each
// axis.
const (
	topLeft = iota
	topRight
	bottomLeft
	bottomRight
	numChildren
)

// node is a tagged arena entry. A leaf stores the particles that fell into
// its box; an internal node stores the arena indices of its four children,
// which are always present.
type node struct {
	box      geom.Box
	isLeaf   bool
	children [numChildren]int32
	particles []particle.Particle
}

// Tree is a quadtree built once per iteration over a particle set and
// discarded at the end of it.
type Tree struct {
	nodes []node
	root  int32
	bmin  geom.Vec2
	bmax  geom.Vec2
	empty bool
}

// Build computes the axis-aligned bounding box of ps and recursively
// partitions it into a quadtree. Cost is O(N log N) expected for
// spatially bounded data.
//
// Build with an empty ps produces a Tree whose Query always returns
// ErrEmptyTree — callers must not query it.
func Build(ps []particle.Particle) *Tree {
	if len(ps) == 0 {
		return &Tree{empty: true}
	}

	box := particle.Bounds(ps)
	t := &Tree{
		nodes: make([]node, 0, estimateNodeCount(len(ps))),
		bmin:  box.Min,
		bmax:  box.Max,
	}
	t.root = t.build(ps, box)
	return t
}

// estimateNodeCount pre-sizes the arena to avoid reallocation on the
// common case: a roughly balanced tree needs about 4/3 as many nodes as
// leaves, and leaves are about N/LeafCapacity; the estimate rounds that
// up to twice the leaf count plus a small constant.
func estimateNodeCount(n int) int {
	leaves := n/LeafCapacity + 1
	return leaves*2 + 8
}

// build partitions ps into box's four quadrants and recurses. A point on
// a split line goes to the lower-index child on that axis (coordinate <=
// midpoint), strictly greater otherwise.
func (t *Tree) build(ps []particle.Particle, box geom.Box) int32 {
	idx := int32(len(t.nodes))
	t.nodes = append(t.nodes, node{box: box})

	if len(ps) <= LeafCapacity {
		t.nodes[idx].isLeaf = true
		t.nodes[idx].particles = append([]particle.Particle(nil), ps...)
		return idx
	}

	xSplit := (box.Min.X + box.Max.X) / 2
	ySplit := (box.Min.Y + box.Max.Y) / 2

	var quadrants [numChildren][]particle.Particle
	for _, p := range ps {
		pos := p.Pos()
		switch {
		case pos.X <= xSplit && pos.Y <= ySplit:
			quadrants[topLeft] = append(quadrants[topLeft], p)
		case pos.X > xSplit && pos.Y <= ySplit:
			quadrants[topRight] = append(quadrants[topRight], p)
		case pos.X <= xSplit && pos.Y > ySplit:
			quadrants[bottomLeft] = append(quadrants[bottomLeft], p)
		default:
			quadrants[bottomRight] = append(quadrants[bottomRight], p)
		}
	}

	boxes := [numChildren]geom.Box{
		topLeft:     geom.NewBox(box.Min, geom.NewVec2(xSplit, ySplit)),
		topRight:    geom.NewBox(geom.NewVec2(xSplit, box.Min.Y), geom.NewVec2(box.Max.X, ySplit)),
		bottomLeft:  geom.NewBox(geom.NewVec2(box.Min.X, ySplit), geom.NewVec2(xSplit, box.Max.Y)),
		bottomRight: geom.NewBox(geom.NewVec2(xSplit, ySplit), box.Max),
	}

	var children [numChildren]int32
	for i := 0; i < numChildren; i++ {
		children[i] = t.build(quadrants[i], boxes[i])
	}
	// t.nodes may have been reallocated by recursive appends; re-fetch idx.
	t.nodes[idx].children = children
	return idx
}

// Query clears out and appends every particle in the tree within radius of
// position, exclusive of radius itself. The result may
// include position's own particle if it is in the tree — callers tolerate
// that because the force collaborator returns zero for a zero-distance
// pair.
func (t *Tree) Query(out []particle.Particle, position geom.Vec2, radius float64) ([]particle.Particle, error) {
	out = out[:0]
	if t.empty {
		return out, ErrEmptyTree
	}
	return t.queryNode(out, t.root, position, radius), nil
}

func (t *Tree) queryNode(out []particle.Particle, idx int32, position geom.Vec2, radius float64) []particle.Particle {
	n := &t.nodes[idx]

	if n.isLeaf {
		for _, p := range n.particles {
			if position.Distance(p.Pos()) < radius {
				out = append(out, p)
			}
		}
		return out
	}

	for _, childIdx := range n.children {
		child := &t.nodes[childIdx]
		if child.box.PointDistance(position) <= radius {
			out = t.queryNode(out, childIdx, position, radius)
		}
	}
	return out
}

// Bounds returns the root box the tree was built from. It is meaningless
// (and unused) for an empty tree.
func (t *Tree) Bounds() geom.Box {
	return geom.NewBox(t.bmin, t.bmax)
}

// IsEmpty reports whether the tree was built from zero particles.
func (t *Tree) IsEmpty() bool {
	return t.empty
}

// NodeCount returns the number of arena entries, exposed for tests that
// check the leaf/internal shape invariants.
func (t *Tree) NodeCount() int {
	return len(t.nodes)
}
