package sim_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x5844/particle-sim/internal/geom"
	"github.com/0x5844/particle-sim/internal/particle"
	"github.com/0x5844/particle-sim/internal/sim"
	"github.com/0x5844/particle-sim/internal/transport"
)

func zeroForce(p, q particle.Particle, cullRadius float32) geom.Vec2 {
	return geom.Vec2{}
}

func eulerIntegrate(p particle.Particle, totalForce geom.Vec2, deltaTime float32) particle.Particle {
	return particle.Particle{
		ID:   p.ID,
		Mass: p.Mass,
		PosX: p.PosX + p.VelX*deltaTime,
		PosY: p.PosY + p.VelY*deltaTime,
		VelX: p.VelX,
		VelY: p.VelY,
	}
}

// runAll drives numPeers Driver instances through Load then Run
// concurrently and returns each peer's final gathered population, failing
// the test if any peer returns an error.
func runAll(t *testing.T, numPeers, numIterations int, initial []particle.Particle, params particle.StepParameters) [][]particle.Particle {
	t.Helper()
	group := transport.NewGroup(numPeers)

	results := make([][]particle.Particle, numPeers)
	errs := make([]error, numPeers)
	var wg sync.WaitGroup
	for rank := 0; rank < numPeers; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			cfg := sim.Config{
				Rank:              rank,
				NumPeers:          numPeers,
				NumIterations:     numIterations,
				RedistributeEvery: 8,
				Params:            params,
				Force:             zeroForce,
				Integrator:        eulerIntegrate,
			}
			d := sim.New(cfg, group)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			var seed []particle.Particle
			if rank == 0 {
				seed = initial
			}
			loaded, err := d.Load(ctx, seed)
			if err != nil {
				errs[rank] = err
				return
			}
			final, err := d.Run(ctx, loaded)
			results[rank] = final
			errs[rank] = err
		}(rank)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("sim run deadlocked")
	}
	for _, err := range errs {
		require.NoError(t, err)
	}
	return results
}

func TestRunSinglePeerConservesParticles(t *testing.T) {
	initial := []particle.Particle{
		{ID: 1, Mass: 1, PosX: 0, PosY: 0, VelX: 1, VelY: 0},
		{ID: 2, Mass: 1, PosX: 10, PosY: 10, VelX: 0, VelY: 1},
	}
	results := runAll(t, 1, 3, initial, particle.StepParameters{CullRadius: 5, DeltaTime: 1})
	assert.Len(t, results[0], 2)
}

func TestRunConservesParticlesAcrossMultiplePeers(t *testing.T) {
	initial := make([]particle.Particle, 0, 16)
	id := int32(0)
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			initial = append(initial, particle.Particle{ID: id, Mass: 1, PosX: float32(x) * 10, PosY: float32(y) * 10})
			id++
		}
	}

	results := runAll(t, 4, 9, initial, particle.StepParameters{CullRadius: 5, DeltaTime: 1})

	for rank, final := range results {
		ids := make(map[int32]bool, len(final))
		for _, p := range final {
			ids[p.ID] = true
		}
		assert.Len(t, ids, len(initial), "rank %d: expected conservation of all ids", rank)
	}
}

func TestRunZeroIterationsProducesInputBack(t *testing.T) {
	initial := []particle.Particle{
		{ID: 1, Mass: 1, PosX: 0, PosY: 0},
	}
	results := runAll(t, 1, 0, initial, particle.StepParameters{CullRadius: 5, DeltaTime: 1})
	assert.Len(t, results[0], 1)
	assert.Equal(t, int32(1), results[0][0].ID)
}

func TestRunSingleParticleMovesOnlyByVelocity(t *testing.T) {
	initial := []particle.Particle{
		{ID: 1, Mass: 1, PosX: 0, PosY: 0, VelX: 2, VelY: 0},
	}
	results := runAll(t, 1, 3, initial, particle.StepParameters{CullRadius: 5, DeltaTime: 1})
	require.Len(t, results[0], 1)
	assert.InDelta(t, 6, results[0][0].PosX, 1e-4) // 3 iterations * velocity 2 * dt 1
}

func TestRunWithEmptyPeerDoesNotDeadlock(t *testing.T) {
	// The two particles span their own bounding box corner to corner, so
	// the first redistribution gives one to peer 0 and one to peer 3;
	// peers 1 and 2 own nothing and must still participate in every
	// collective.
	initial := []particle.Particle{
		{ID: 1, Mass: 1, PosX: 1, PosY: 1},
		{ID: 2, Mass: 1, PosX: 2, PosY: 2},
	}
	results := runAll(t, 4, 9, initial, particle.StepParameters{CullRadius: 5, DeltaTime: 1})
	total := 0
	seen := map[int32]bool{}
	for _, final := range results[:1] {
		for _, p := range final {
			if !seen[p.ID] {
				seen[p.ID] = true
				total++
			}
		}
	}
	assert.Equal(t, len(initial), total)
}
