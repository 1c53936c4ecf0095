// Package geom holds the 2D vector and axis-aligned box primitives shared
// by the spatial index and the partitioner.
package geom

import "math"

// Vec2 is a 2D point or displacement.
type Vec2 struct {
	X, Y float64
}

func NewVec2(x, y float64) Vec2 {
	return Vec2{X: x, Y: y}
}

func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

func (v Vec2) Scale(f float64) Vec2 {
	return Vec2{X: v.X * f, Y: v.Y * f}
}

func (v Vec2) Dot(o Vec2) float64 {
	return v.X*o.X + v.Y*o.Y
}

func (v Vec2) MagnitudeSquared() float64 {
	return v.X*v.X + v.Y*v.Y
}

func (v Vec2) Magnitude() float64 {
	return math.Sqrt(v.MagnitudeSquared())
}

func (v Vec2) Distance(o Vec2) float64 {
	return v.Sub(o).Magnitude()
}

func (v Vec2) DistanceSquared(o Vec2) float64 {
	return v.Sub(o).MagnitudeSquared()
}

// Box is a closed axis-aligned rectangle. An "empty" box (one that owns no
// particles) is represented with Min > Max on at least one axis; see
// IsEmpty.
type Box struct {
	Min, Max Vec2
}

func NewBox(min, max Vec2) Box {
	return Box{Min: min, Max: max}
}

// EmptyBox returns a box that overlaps and contains nothing, the degenerate
// publish-box for a peer with no owned particles.
func EmptyBox() Box {
	return Box{
		Min: Vec2{X: math.Inf(1), Y: math.Inf(1)},
		Max: Vec2{X: math.Inf(-1), Y: math.Inf(-1)},
	}
}

func (b Box) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y
}

func (b Box) Contains(p Vec2) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// Grow expands the box, in place semantics via the returned value, to
// include p. Callers accumulate a running bounding box this way during
// integration.
func (b Box) Grow(p Vec2) Box {
	return Box{
		Min: Vec2{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y)},
		Max: Vec2{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y)},
	}
}

// Union returns the smallest box containing both b and o. An empty operand
// is the identity element.
func (b Box) Union(o Box) Box {
	if b.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return b
	}
	return Box{
		Min: Vec2{X: math.Min(b.Min.X, o.Min.X), Y: math.Min(b.Min.Y, o.Min.Y)},
		Max: Vec2{X: math.Max(b.Max.X, o.Max.X), Y: math.Max(b.Max.Y, o.Max.Y)},
	}
}

// PointDistance returns the Euclidean distance from p to the nearest point
// of the closed box, zero if p is inside. Used by the quadtree to prune
// subtrees during radius queries.
func (b Box) PointDistance(p Vec2) float64 {
	dx := math.Max(math.Max(b.Min.X-p.X, p.X-b.Max.X), 0.0)
	dy := math.Max(math.Max(b.Min.Y-p.Y, p.Y-b.Max.Y), 0.0)
	return math.Sqrt(dx*dx + dy*dy)
}

// Overlap reports whether the minimum distance between two boxes is
// within radius: the per-axis gaps (zero on overlap) are squared and
// summed, and that squared distance is compared against radius².
func Overlap(a, b Box, radius float64) bool {
	if a.IsEmpty() || b.IsEmpty() {
		return false
	}
	dx := axisGap(a.Min.X, a.Max.X, b.Min.X, b.Max.X)
	dy := axisGap(a.Min.Y, a.Max.Y, b.Min.Y, b.Max.Y)
	return dx*dx+dy*dy <= radius*radius
}

func axisGap(aMin, aMax, bMin, bMax float64) float64 {
	if aMax < bMin {
		return bMin - aMax
	}
	if bMax < aMin {
		return aMin - bMax
	}
	return 0
}
