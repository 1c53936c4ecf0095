package halo_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x5844/particle-sim/internal/halo"
	"github.com/0x5844/particle-sim/internal/particle"
	"github.com/0x5844/particle-sim/internal/transport"
)

func runExchange(t *testing.T, group *transport.Group, owned [][]particle.Particle, cullRadius float64) [][]particle.Particle {
	t.Helper()
	n := len(owned)
	counts := make([]int, n)
	for i, ps := range owned {
		counts[i] = len(ps)
	}

	results := make([][]particle.Particle, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for rank := 0; rank < n; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			out, err := halo.Exchange(ctx, group, rank, owned[rank], counts, cullRadius)
			results[rank] = out
			errs[rank] = err
		}(rank)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("halo exchange deadlocked")
	}
	for _, err := range errs {
		require.NoError(t, err)
	}
	return results
}

func TestExchangeIncludesOwnParticlesAlways(t *testing.T) {
	group := transport.NewGroup(1)
	owned := [][]particle.Particle{
		{{ID: 1, PosX: 0, PosY: 0}, {ID: 2, PosX: 1, PosY: 1}},
	}
	results := runExchange(t, group, owned, 5)
	assert.Len(t, results[0], 2)
}

func TestExchangeBringsInNearbyPeerOnly(t *testing.T) {
	group := transport.NewGroup(3)
	// Rank 0 and rank 1 are close together; rank 2 is far away.
	owned := [][]particle.Particle{
		{{ID: 0, PosX: 0, PosY: 0}},
		{{ID: 1, PosX: 1, PosY: 0}},
		{{ID: 2, PosX: 1000, PosY: 1000}},
	}
	results := runExchange(t, group, owned, 5)

	ids0 := idSet(results[0])
	assert.Contains(t, ids0, int32(0))
	assert.Contains(t, ids0, int32(1))
	assert.NotContains(t, ids0, int32(2))

	ids2 := idSet(results[2])
	assert.Equal(t, map[int32]bool{2: true}, ids2)
}

func TestExchangeWithZeroCullRadiusOnlyKeepsOwnSet(t *testing.T) {
	group := transport.NewGroup(2)
	owned := [][]particle.Particle{
		{{ID: 0, PosX: 0, PosY: 0}},
		{{ID: 1, PosX: 10, PosY: 10}},
	}
	results := runExchange(t, group, owned, 0)
	assert.Equal(t, map[int32]bool{0: true}, idSet(results[0]))
	assert.Equal(t, map[int32]bool{1: true}, idSet(results[1]))
}

func TestExchangeHandlesEmptyOwnedSetPeer(t *testing.T) {
	group := transport.NewGroup(2)
	owned := [][]particle.Particle{
		{{ID: 0, PosX: 0, PosY: 0}},
		{}, // empty owned set: publishes a degenerate box that overlaps nothing
	}
	results := runExchange(t, group, owned, 100)
	assert.Equal(t, map[int32]bool{0: true}, idSet(results[0]))
	assert.Empty(t, results[1])
}

func idSet(ps []particle.Particle) map[int32]bool {
	out := make(map[int32]bool, len(ps))
	for _, p := range ps {
		out[p.ID] = true
	}
	return out
}
