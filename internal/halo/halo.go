// Package halo implements the per-iteration halo exchange: publish
// owned-set bounds, work out which peers are within cull radius, swap
// owned-particle buffers with exactly those peers, and assemble the
// halo+local working set the spatial index is built over.
package halo

import (
	"context"
	"encoding/binary"
	"math"
	"sync"

	"github.com/pkg/errors"

	"github.com/0x5844/particle-sim/internal/geom"
	"github.com/0x5844/particle-sim/internal/particle"
	"github.com/0x5844/particle-sim/internal/transport"
)

// DefaultTag is the message tag used for halo sends/receives.
const DefaultTag = 0

// ErrOwnedCountMismatch signals that the peer counts most recently
// advertised by redistribution disagree with what a receive actually
// needs to be sized for — an invariant violation.
var ErrOwnedCountMismatch = errors.New("halo: owned count mismatch")

// Exchange runs one iteration's halo exchange for the calling peer and
// returns the local+halo working set: the local peer's own owned particles
// are always included, because the force loop queries the index for
// neighbors of local particles and a local particle must be able to see
// itself and its local neighbors.
func Exchange(
	ctx context.Context,
	group *transport.Group,
	rank int,
	owned []particle.Particle,
	ownedCounts []int,
	cullRadius float64,
) ([]particle.Particle, error) {
	localBox := particle.Bounds(owned)

	boxBuf := encodeBox(localBox)
	allBoxBytes, err := group.AllgatherFixed(ctx, rank, boxBuf)
	if err != nil {
		return nil, errors.Wrap(err, "halo: publish bounds")
	}
	allBoxes, err := decodeBoxes(allBoxBytes)
	if err != nil {
		return nil, err
	}

	if len(allBoxes) != len(ownedCounts) {
		return nil, errors.Wrapf(ErrOwnedCountMismatch, "boxes=%d counts=%d", len(allBoxes), len(ownedCounts))
	}

	neighbors := neighborsWithin(allBoxes, rank, localBox, cullRadius)

	payload := particle.EncodeAll(owned)
	received, err := exchangeWithNeighbors(ctx, group, rank, neighbors, payload, ownedCounts)
	if err != nil {
		return nil, err
	}

	working := make([]particle.Particle, 0, len(owned)+len(received))
	working = append(working, owned...)
	working = append(working, received...)
	return working, nil
}

// neighborsWithin returns every peer index (excluding rank itself) whose
// published box is within cullRadius of localBox, using a box-to-box
// minimum-distance test. A peer with an empty owned set publishes a
// degenerate box that never overlaps anyone.
func neighborsWithin(boxes []geom.Box, rank int, localBox geom.Box, cullRadius float64) []int {
	var neighbors []int
	for j, b := range boxes {
		if j == rank {
			continue
		}
		if geom.Overlap(localBox, b, cullRadius) {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}

// exchangeWithNeighbors posts one non-blocking send and one non-blocking
// receive per neighbor concurrently, then waits on all of them before
// returning the concatenation of everything received. Receive sizing
// comes from ownedCounts, the most recent redistribution's advertised
// owned counts.
func exchangeWithNeighbors(
	ctx context.Context,
	group *transport.Group,
	rank int,
	neighbors []int,
	payload []byte,
	ownedCounts []int,
) ([]particle.Particle, error) {
	sends := make([]*transport.Request, len(neighbors))
	recvs := make([]*transport.Request, len(neighbors))

	for i, j := range neighbors {
		sends[i] = group.Isend(rank, j, DefaultTag, payload)
		recvs[i] = group.Irecv(rank, j, DefaultTag)
	}

	var mu sync.Mutex
	var firstErr error
	recordErr := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for _, s := range sends {
		wg.Add(1)
		go func(s *transport.Request) {
			defer wg.Done()
			recordErr(s.Wait(ctx))
		}(s)
	}

	received := make([][]particle.Particle, len(neighbors))
	for i, r := range recvs {
		wg.Add(1)
		go func(i int, r *transport.Request, expectCount int) {
			defer wg.Done()
			if err := r.Wait(ctx); err != nil {
				recordErr(err)
				return
			}
			ps, err := particle.DecodeAll(r.Bytes())
			if err != nil {
				recordErr(err)
				return
			}
			if len(ps) != expectCount {
				recordErr(errors.Wrapf(ErrOwnedCountMismatch, "peer advertised %d, received %d", expectCount, len(ps)))
				return
			}
			received[i] = ps
		}(i, r, ownedCounts[neighbors[i]])
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	var out []particle.Particle
	for _, ps := range received {
		out = append(out, ps...)
	}
	return out, nil
}

// boxRecordSize is the fixed on-wire size of an all-gathered bounds
// publication: four float64 fields (min.x, min.y, max.x, max.y).
const boxRecordSize = 32

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
		return nil, errors.New("halo: malformed bounds all-gather buffer")
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

func appendFloat64(buf []byte, f float64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(f))
	return append(buf, b[:]...)
}

func readFloat64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}
