// Package particle defines the Particle record and its
// little-endian wire codec, the single source of truth for
// how a Particle is laid out as bytes when it is the payload of the
// collective transport.
package particle

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/0x5844/particle-sim/internal/geom"
)

// Size is the fixed on-wire size of one Particle record: id (int32), mass
// (float32), position.x/y (float32), velocity.x/y (float32).
const Size = 24

// Particle is a single point-mass. Id is immutable for the particle's
// lifetime and survives migration between peers.
type Particle struct {
	ID       int32
	Mass     float32
	PosX     float32
	PosY     float32
	VelX     float32
	VelY     float32
}

// StepParameters is the immutable-per-run pair of physical constants the
// force and integrator collaborators are parameterized by.
type StepParameters struct {
	CullRadius float32
	DeltaTime  float32
}

// ErrShortBuffer is returned by Decode when the source buffer is smaller
// than one Particle record.
var ErrShortBuffer = errors.New("particle: buffer shorter than one record")

// Encode appends p's 24-byte little-endian encoding to dst and returns the
// extended slice.
func Encode(dst []byte, p Particle) []byte {
	var buf [Size]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(p.ID))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(p.Mass))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(p.PosX))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(p.PosY))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(p.VelX))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(p.VelY))
	return append(dst, buf[:]...)
}

// Decode reads one Particle record from the front of src.
func Decode(src []byte) (Particle, error) {
	if len(src) < Size {
		return Particle{}, ErrShortBuffer
	}
	return Particle{
		ID:   int32(binary.LittleEndian.Uint32(src[0:4])),
		Mass: math.Float32frombits(binary.LittleEndian.Uint32(src[4:8])),
		PosX: math.Float32frombits(binary.LittleEndian.Uint32(src[8:12])),
		PosY: math.Float32frombits(binary.LittleEndian.Uint32(src[12:16])),
		VelX: math.Float32frombits(binary.LittleEndian.Uint32(src[16:20])),
		VelY: math.Float32frombits(binary.LittleEndian.Uint32(src[20:24])),
	}, nil
}

// EncodeAll encodes a whole slice of particles into one contiguous buffer,
// the shape every collective in internal/transport moves as its payload.
func EncodeAll(ps []Particle) []byte {
	buf := make([]byte, 0, len(ps)*Size)
	for _, p := range ps {
		buf = Encode(buf, p)
	}
	return buf
}

// DecodeAll decodes a contiguous buffer of whole Particle records. It
// returns an error if the buffer length is not a multiple of Size, since
// transport only ever carries whole records.
func DecodeAll(buf []byte) ([]Particle, error) {
	if len(buf)%Size != 0 {
		return nil, errors.Wrapf(ErrShortBuffer, "buffer length %d not a multiple of %d", len(buf), Size)
	}
	n := len(buf) / Size
	out := make([]Particle, n)
	for i := 0; i < n; i++ {
		p, err := Decode(buf[i*Size : (i+1)*Size])
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// Pos returns the particle's position as a geom.Vec2.
func (p Particle) Pos() geom.Vec2 {
	return geom.Vec2{X: float64(p.PosX), Y: float64(p.PosY)}
}

// Bounds returns the axis-aligned bounding box of ps, or an empty box if ps
// is empty.
func Bounds(ps []Particle) geom.Box {
	box := geom.EmptyBox()
	for _, p := range ps {
		box = box.Grow(p.Pos())
	}
	return box
}
