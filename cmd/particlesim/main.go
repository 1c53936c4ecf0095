// Command particlesim runs the distributed 2D particle simulator: it
// spawns one goroutine per peer sharing a transport.Group, wires the
// loader/saver/force/integrator/timer collaborators into internal/sim, and
// writes the coordinator's final output. It follows a familiar CLI
// binary's shape: a Config populated by flag, log.Printf/Fatalf
// diagnostics, os/signal-driven cancellation, and runtime/pprof profiling.
package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime/pprof"
	"sync"
	"syscall"

	"github.com/0x5844/particle-sim/internal/config"
	"github.com/0x5844/particle-sim/internal/dashboard"
	"github.com/0x5844/particle-sim/internal/nbody"
	"github.com/0x5844/particle-sim/internal/options"
	"github.com/0x5844/particle-sim/internal/particle"
	"github.com/0x5844/particle-sim/internal/particlefile"
	"github.com/0x5844/particle-sim/internal/rtimer"
	"github.com/0x5844/particle-sim/internal/sim"
	"github.com/0x5844/particle-sim/internal/transport"
)

// numPeers is the group size for this run. The protocol supports any P,
// but this binary runs every peer as a goroutine in one process rather
// than spawning OS processes, so P is a run parameter rather than
// something the group-communication layer discovers externally.
const numPeers = 4

func main() {
	opt, err := options.Parse(os.Args[1:])
	if err != nil {
		log.Fatalf("particlesim: invalid options: %v", err)
	}

	if opt.Quiet {
		log.SetOutput(io.Discard)
	} else if opt.Verbose {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	if opt.ProfileCPU != "" {
		f, err := os.Create(opt.ProfileCPU)
		if err != nil {
			log.Fatalf("particlesim: could not create CPU profile: %v", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatalf("particlesim: could not start CPU profile: %v", err)
		}
		defer pprof.StopCPUProfile()
	}

	tuning, err := config.Load(opt.ConfigFile)
	if err != nil {
		log.Fatalf("particlesim: could not load tuning file: %v", err)
	}

	loaded, err := particlefile.Load(opt.Input)
	if err != nil {
		log.Fatalf("particlesim: could not load input: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			log.Println("particlesim: shutting down gracefully...")
			cancel()
		case <-ctx.Done():
		}
	}()

	var dash *dashboard.Dashboard
	if opt.Dashboard {
		dash, err = dashboard.New(numPeers)
		if err != nil {
			log.Printf("particlesim: dashboard init failed, continuing without it: %v", err)
			dash = nil
		} else {
			go dash.Run()
			defer dash.Close()
		}
	}

	params := nbody.BenchmarkStepParams(opt.SpaceSize)

	group := transport.NewGroup(numPeers)
	defer group.Close()

	var timer rtimer.Timer
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
				NumIterations:     opt.NumIterations,
				RedistributeEvery: tuning.RedistributeEvery,
				Params:            params,
				Force:             nbody.ComputeForce,
				Integrator:        nbody.UpdateParticle,
			}
			if dash != nil {
				cfg.OnStatus = func(iteration, owned, halo int) {
					dash.Report(dashboard.PeerStatus{Rank: rank, Iteration: iteration, Owned: owned, Halo: halo})
				}
			}

			driver := sim.New(cfg, group)

			var seed []particle.Particle
			if rank == 0 {
				seed = loaded.Particles
			}
			population, err := driver.Load(ctx, seed)
			if err != nil {
				errs[rank] = err
				return
			}

			if err := group.Barrier(ctx, rank); err != nil {
				errs[rank] = err
				return
			}
			if rank == 0 {
				timer.Start()
			}

			final, err := driver.Run(ctx, population)
			results[rank] = final
			errs[rank] = err
		}(rank)
	}
	wg.Wait()

	for rank, err := range errs {
		if err != nil {
			log.Fatalf("particlesim: peer %d failed: %v", rank, err)
		}
	}

	elapsed := timer.Stop()
	if !opt.Quiet {
		log.Printf("particlesim: completed %d iterations across %d peers in %s", opt.NumIterations, numPeers, elapsed)
	}

	ordered := particlefile.CanonicalOrder(results[0], loaded.Order)
	if err := particlefile.Save(opt.Output, ordered); err != nil {
		log.Fatalf("particlesim: could not save output: %v", err)
	}
}
