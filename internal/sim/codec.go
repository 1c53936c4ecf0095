package sim

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/0x5844/particle-sim/internal/geom"
)

// boxRecordSize and countRecordSize are the fixed on-wire sizes for the
// all-gathered bounds and owned-count publications the redistribution
// phase uses — the same shape as internal/halo's own
// bounds publication, kept private to this package since transport
// payloads are opaque bytes to everything above internal/particle.
const boxRecordSize = 32
const countRecordSize = 4

func encodeBox(b geom.Box) []byte {
	buf := make([]byte, 0, boxRecordSize)
	buf = appendFloat64(buf, b.Min.X)
	buf = appendFloat64(buf, b.Min.Y)
	buf = appendFloat64(buf, b.Max.X)
	buf = appendFloat64(buf, b.Max.Y)
	return buf
}

func decodeBoxes(buf []byte) ([]geom.Box, error) {
	if len(buf)%boxRecordSize != 0 {
		return nil, errors.New("sim: malformed bounds all-gather buffer")
	}
	n := len(buf) / boxRecordSize
	boxes := make([]geom.Box, n)
	for i := 0; i < n; i++ {
		rec := buf[i*boxRecordSize : (i+1)*boxRecordSize]
		boxes[i] = geom.Box{
			Min: geom.Vec2{X: readFloat64(rec[0:8]), Y: readFloat64(rec[8:16])},
			Max: geom.Vec2{X: readFloat64(rec[16:24]), Y: readFloat64(rec[24:32])},
		}
	}
	return boxes, nil
}

func encodeCount(n int) []byte {
	buf := make([]byte, countRecordSize)
	binary.LittleEndian.PutUint32(buf, uint32(n))
	return buf
}

func decodeCounts(buf []byte) ([]int, error) {
	if len(buf)%countRecordSize != 0 {
		return nil, errors.New("sim: malformed owned-count all-gather buffer")
	}
	n := len(buf) / countRecordSize
	counts := make([]int, n)
	for i := 0; i < n; i++ {
		counts[i] = int(binary.LittleEndian.Uint32(buf[i*countRecordSize : (i+1)*countRecordSize]))
	}
	return counts, nil
}

func appendFloat64(buf []byte, f float64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(f))
	return append(buf, b[:]...)
}

func readFloat64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}
