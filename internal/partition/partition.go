// Package partition assigns particles to peers by spatial locality: the
// global bounding box is carved into a square grid of cells and each cell
// is owned by exactly one peer.
package partition

import (
	"math"

	"github.com/0x5844/particle-sim/internal/geom"
	"github.com/0x5844/particle-sim/internal/particle"
)

// GridDim returns D = floor(sqrt(P)), the side length of the square grid
// of cells carved out of the global bounding box. Peers with index >=
// GridDim(p)^2 own no cell.
func GridDim(numPeers int) int {
	return int(math.Sqrt(float64(numPeers)))
}

// Grid is the partitioner's view of the current global bounding box and
// peer topology. It is rebuilt at the start of every redistribution.
type Grid struct {
	Box       geom.Box
	Dim       int
	cellWidth float64
	cellHight float64
}

// NewGrid derives the per-cell width and height from box and dim. box must
// be non-empty; a degenerate (zero-width or zero-height) box is handled by
// treating that axis as a single cell, since a box built from >=1 particle
// with identical coordinates on an axis has no meaningful subdivision.
func NewGrid(box geom.Box, dim int) Grid {
	g := Grid{Box: box, Dim: dim}

	width := box.Max.X - box.Min.X
	height := box.Max.Y - box.Min.Y
	if width <= 0 || dim <= 0 {
		g.cellWidth = 1
	} else {
		g.cellWidth = width / float64(dim)
	}
	if height <= 0 || dim <= 0 {
		g.cellHight = 1
	} else {
		g.cellHight = height / float64(dim)
	}
	return g
}

// Cell returns the (cx, cy) grid cell that owns position, clamped to
// [0, Dim-1] on each axis so a point on B's upper boundary maps to the
// last cell instead of off-grid. Cell coordinates are
// meaningless when Dim == 0 (fewer than 1 peer forms a square grid); the
// caller (Owner) never dereferences them in that case.
func (g Grid) Cell(p geom.Vec2) (cx, cy int) {
	cx = cellIndex(p.X-g.Box.Min.X, g.cellWidth, g.Dim)
	cy = cellIndex(p.Y-g.Box.Min.Y, g.cellHight, g.Dim)
	return cx, cy
}

// cellIndex floor-divides a non-negative offset by width, with a
// boundary tie-break: a point exactly on a cell split goes to the
// lower-coordinate cell, not the one starting there. Floor division alone
// would put an exact multiple of width into the *next* cell;
// decrementing on an exact hit (unless it would go below cell 0) both
// implements that tie-break and — for an offset exactly at the domain's
// far edge — reproduces the "map to the last cell" clamp from a single
// rule.
func cellIndex(offset, width float64, dim int) int {
	if dim <= 0 {
		return 0
	}
	idx := int(math.Floor(offset / width))
	if idx > 0 && offset == float64(idx)*width {
		idx--
	}
	if idx < 0 {
		return 0
	}
	if idx >= dim {
		return dim - 1
	}
	return idx
}

// Owner returns the index of the peer that owns position: cell
// (cx, cy) is owned by peer cy*Dim + cx. It returns -1 if
// Dim is zero (no peer forms a square grid, e.g. numPeers == 0).
func (g Grid) Owner(position geom.Vec2) int {
	if g.Dim <= 0 {
		return -1
	}
	cx, cy := g.Cell(position)
	return cy*g.Dim + cx
}

// Assign partitions ps into buckets by owning peer index, for all
// numPeers peers (including peers with index >= Dim^2, which always get
// an empty bucket). Particles that have drifted outside box between
// redistributions are clamped into the nearest edge cell rather than
// producing an out-of-range peer index.
func Assign(g Grid, ps []particle.Particle, numPeers int) [][]particle.Particle {
	buckets := make([][]particle.Particle, numPeers)
	if g.Dim <= 0 {
		return buckets
	}
	for _, p := range ps {
		owner := g.Owner(p.Pos())
		if owner < 0 || owner >= numPeers {
			// Only reachable if numPeers < Dim^2, which GridDim never
			// produces for a Grid built from that same numPeers; kept as
			// a defensive clamp (a clamp must contain the
			// damage to a single cell, never escape into an invalid
			// index).
			owner = numPeers - 1
		}
		buckets[owner] = append(buckets[owner], p)
	}
	return buckets
}
