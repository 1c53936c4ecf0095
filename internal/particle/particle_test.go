package particle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x5844/particle-sim/internal/geom"
	"github.com/0x5844/particle-sim/internal/particle"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := particle.Particle{ID: 42, Mass: 1.5, PosX: 3.25, PosY: -2.0, VelX: 0.5, VelY: -0.5}

	buf := particle.Encode(nil, p)
	require.Len(t, buf, particle.Size)

	got, err := particle.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestDecodeShortBuffer(t *testing.T) {
	_, err := particle.Decode(make([]byte, particle.Size-1))
	assert.ErrorIs(t, err, particle.ErrShortBuffer)
}

func TestEncodeAllDecodeAll(t *testing.T) {
	ps := []particle.Particle{
		{ID: 1, Mass: 1, PosX: 0, PosY: 0, VelX: 0, VelY: 0},
		{ID: 2, Mass: 2, PosX: 1, PosY: -1, VelX: 0.1, VelY: 0.2},
	}

	buf := particle.EncodeAll(ps)
	assert.Len(t, buf, particle.Size*len(ps))

	decoded, err := particle.DecodeAll(buf)
	require.NoError(t, err)
	assert.Equal(t, ps, decoded)
}

func TestDecodeAllRejectsMisalignedBuffer(t *testing.T) {
	_, err := particle.DecodeAll(make([]byte, particle.Size+1))
	assert.Error(t, err)
}

func TestBounds(t *testing.T) {
	ps := []particle.Particle{
		{ID: 1, PosX: -1, PosY: 5},
		{ID: 2, PosX: 4, PosY: -2},
	}

	box := particle.Bounds(ps)
	assert.Equal(t, geom.NewVec2(-1, -2), box.Min)
	assert.Equal(t, geom.NewVec2(4, 5), box.Max)
}

func TestBoundsEmpty(t *testing.T) {
	assert.True(t, particle.Bounds(nil).IsEmpty())
}
