package geom_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/0x5844/particle-sim/internal/geom"
)

func TestVec2Arithmetic(t *testing.T) {
	a := geom.NewVec2(1, 2)
	b := geom.NewVec2(3, -1)

	assert.Equal(t, geom.NewVec2(4, 1), a.Add(b))
	assert.Equal(t, geom.NewVec2(-2, 3), a.Sub(b))
	assert.Equal(t, geom.NewVec2(2, 4), a.Scale(2))
	assert.InDelta(t, 1.0, a.Dot(b), 1e-9)
}

func TestBoxPointDistance(t *testing.T) {
	b := geom.NewBox(geom.NewVec2(0, 0), geom.NewVec2(10, 10))

	assert.Equal(t, 0.0, b.PointDistance(geom.NewVec2(5, 5)))
	assert.Equal(t, 0.0, b.PointDistance(geom.NewVec2(0, 0)))
	assert.InDelta(t, 5.0, b.PointDistance(geom.NewVec2(15, 0)), 1e-9)
	assert.InDelta(t, math.Sqrt(50), b.PointDistance(geom.NewVec2(15, 15)), 1e-9)
}

func TestBoxContains(t *testing.T) {
	b := geom.NewBox(geom.NewVec2(0, 0), geom.NewVec2(10, 10))

	assert.True(t, b.Contains(geom.NewVec2(10, 10)))
	assert.True(t, b.Contains(geom.NewVec2(0, 0)))
	assert.False(t, b.Contains(geom.NewVec2(10.1, 0)))
}

func TestBoxUnionWithEmpty(t *testing.T) {
	empty := geom.EmptyBox()
	b := geom.NewBox(geom.NewVec2(1, 1), geom.NewVec2(2, 2))

	assert.Equal(t, b, empty.Union(b))
	assert.Equal(t, b, b.Union(empty))
	assert.True(t, empty.Union(empty).IsEmpty())
}

func TestBoxGrow(t *testing.T) {
	b := geom.NewBox(geom.NewVec2(0, 0), geom.NewVec2(1, 1))
	grown := b.Grow(geom.NewVec2(-1, 5))

	assert.Equal(t, geom.NewVec2(-1, 0), grown.Min)
	assert.Equal(t, geom.NewVec2(1, 5), grown.Max)
}

func TestOverlapTouchingBoxes(t *testing.T) {
	a := geom.NewBox(geom.NewVec2(0, 0), geom.NewVec2(10, 10))
	b := geom.NewBox(geom.NewVec2(10, 0), geom.NewVec2(20, 10))

	assert.True(t, geom.Overlap(a, b, 0))
}

func TestOverlapDistantBoxes(t *testing.T) {
	a := geom.NewBox(geom.NewVec2(0, 0), geom.NewVec2(10, 10))
	b := geom.NewBox(geom.NewVec2(100, 100), geom.NewVec2(110, 110))

	assert.False(t, geom.Overlap(a, b, 5))
	assert.True(t, geom.Overlap(a, b, 200))
}

func TestOverlapEmptyBoxNeverOverlaps(t *testing.T) {
	a := geom.EmptyBox()
	b := geom.NewBox(geom.NewVec2(0, 0), geom.NewVec2(1, 1))

	assert.False(t, geom.Overlap(a, b, 1e9))
	assert.False(t, geom.Overlap(b, a, 1e9))
}

func TestOverlapDiagonalGapUsesBothAxes(t *testing.T) {
	// A transcription bug ports one axis test against the wrong rectangle
	// (b1.max.y >= b1.min.y instead of b2.min.y); that bug would treat this
	// pair as overlapping on Y regardless of gap. The correct box-to-box
	// test must not.
	a := geom.NewBox(geom.NewVec2(0, 0), geom.NewVec2(1, 1))
	b := geom.NewBox(geom.NewVec2(3, 3), geom.NewVec2(4, 4))

	assert.False(t, geom.Overlap(a, b, 1))
	assert.True(t, geom.Overlap(a, b, math.Sqrt(8)))
}
