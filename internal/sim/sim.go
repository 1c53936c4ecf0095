// Package sim implements the distributed simulation driver: the per-peer
// state machine and iteration loop that redistributes particles
// periodically, exchanges halos every iteration, builds the spatial index
// over local ∪ halo, integrates local particles one step, and gathers the
// final result for output. It depends only on the function-value
// collaborators it declares (force, integrator, status reporting), never
// on their concrete implementations in internal/nbody, internal/rtimer, or
// internal/particlefile — those are wired in only by cmd/particlesim.
package sim

import (
	"context"

	"github.com/pkg/errors"

	"github.com/0x5844/particle-sim/internal/geom"
	"github.com/0x5844/particle-sim/internal/halo"
	"github.com/0x5844/particle-sim/internal/partition"
	"github.com/0x5844/particle-sim/internal/particle"
	"github.com/0x5844/particle-sim/internal/quadtree"
	"github.com/0x5844/particle-sim/internal/transport"
)

// State names the driver's position in its lifecycle.
type State int

const (
	StateInit State = iota
	StateLoaded
	StateRunning
	StateGathering
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateLoaded:
		return "LOADED"
	case StateRunning:
		return "RUNNING"
	case StateGathering:
		return "GATHERING"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// ForceFunc computes the pairwise force particle q exerts on p, given the
// run's cull radius.
type ForceFunc func(p, q particle.Particle, cullRadius float32) geom.Vec2

// IntegratorFunc advances p by one step under the given total force and
// time step, returning a new Particle.
type IntegratorFunc func(p particle.Particle, totalForce geom.Vec2, deltaTime float32) particle.Particle

// ErrPartitionOutOfRange signals that the partitioner produced a peer
// index outside [0, numPeers) — an invariant violation, not a transient
// failure.
var ErrPartitionOutOfRange = errors.New("sim: partition produced an out-of-range peer index")

// StatusFunc, if non-nil, is called once per iteration with the driver's
// current owned/halo counts — the hook cmd/particlesim adapts to
// internal/dashboard's Report method, kept as a bare function value here
// so this package never imports internal/dashboard.
type StatusFunc func(iteration, owned, halo int)

// Config is the set of values fixed for the whole run: peer identity, the
// physical step parameters, and the tunable redistribution cadence.
type Config struct {
	Rank              int
	NumPeers          int
	NumIterations     int
	RedistributeEvery int
	Params            particle.StepParameters

	Force      ForceFunc
	Integrator IntegratorFunc
	OnStatus   StatusFunc
}

// Driver runs one peer's side of the distributed simulation.
type Driver struct {
	cfg   Config
	group *transport.Group
	state State

	owned       []particle.Particle
	ownedCounts []int
	localBox    geom.Box
	grid        partition.Grid
}

// New constructs a Driver for the given config and transport group. The
// group's size must equal cfg.NumPeers.
func New(cfg Config, group *transport.Group) *Driver {
	return &Driver{cfg: cfg, group: group, state: StateInit}
}

// State returns the driver's current state machine position.
func (d *Driver) State() State {
	return d.state
}

// Load transitions INIT -> LOADED: the coordinator (rank 0) broadcasts the
// full initial population to every peer. Every peer, including the
// coordinator, comes out of Load holding the full initial population; the
// caller is responsible for preserving the input-order id map used to
// restore canonical output order later.
func (d *Driver) Load(ctx context.Context, initial []particle.Particle) ([]particle.Particle, error) {
	if d.state != StateInit {
		return nil, errors.Errorf("sim: Load called in state %s, want %s", d.state, StateInit)
	}

	var payload []byte
	if d.cfg.Rank == 0 {
		payload = particle.EncodeAll(initial)
	}
	buf, err := d.group.Broadcast(ctx, d.cfg.Rank, 0, payload)
	if err != nil {
		return nil, errors.Wrap(err, "sim: broadcast initial population")
	}

	all, err := particle.DecodeAll(buf)
	if err != nil {
		return nil, errors.Wrap(err, "sim: decode broadcast population")
	}

	d.state = StateLoaded
	return all, nil
}

// Run executes LOADED -> RUNNING -> GATHERING and returns the final
// population once GATHERING completes. Only the caller decides whether to
// persist it; the coordinator is the conventional writer.
func (d *Driver) Run(ctx context.Context, initial []particle.Particle) ([]particle.Particle, error) {
	if d.state != StateLoaded {
		return nil, errors.Errorf("sim: Run called in state %s, want %s", d.state, StateLoaded)
	}
	d.state = StateRunning

	d.owned = initial
	d.ownedCounts = make([]int, d.cfg.NumPeers)
	d.localBox = particle.Bounds(initial)

	// The first redistribution's global box is derived directly from the
	// full initial broadcast population rather than a separate advertise
	// step.
	globalBox := particle.Bounds(initial)
	dim := partition.GridDim(d.cfg.NumPeers)
	if err := d.redistribute(ctx, globalBox, dim, true); err != nil {
		return nil, err
	}

	var scratch []particle.Particle
	for iter := 0; iter < d.cfg.NumIterations; iter++ {
		if iter > 0 && d.cfg.RedistributeEvery > 0 && iter%d.cfg.RedistributeEvery == 0 {
			if err := d.redistribute(ctx, geom.Box{}, dim, false); err != nil {
				return nil, err
			}
		}

		working, err := halo.Exchange(ctx, d.group, d.cfg.Rank, d.owned, d.ownedCounts, float64(d.cfg.Params.CullRadius))
		if err != nil {
			return nil, errors.Wrapf(err, "sim: halo exchange at iteration %d", iter)
		}
		haloCount := len(working) - len(d.owned)

		if d.cfg.OnStatus != nil {
			d.cfg.OnStatus(iter, len(d.owned), haloCount)
		}

		tree := quadtree.Build(working)
		newOwned := make([]particle.Particle, len(d.owned))
		newBox := geom.EmptyBox()

		for i, p := range d.owned {
			scratch, err = tree.Query(scratch, p.Pos(), float64(d.cfg.Params.CullRadius))
			if err != nil {
				return nil, errors.Wrapf(err, "sim: query at iteration %d", iter)
			}
			total := geom.Vec2{}
			for _, q := range scratch {
				total = total.Add(d.cfg.Force(p, q, d.cfg.Params.CullRadius))
			}
			updated := d.cfg.Integrator(p, total, d.cfg.Params.DeltaTime)
			newOwned[i] = updated
			newBox = newBox.Grow(updated.Pos())
		}

		d.owned = newOwned
		d.localBox = newBox

		if err := d.group.Barrier(ctx, d.cfg.Rank); err != nil {
			return nil, errors.Wrapf(err, "sim: end-of-iteration barrier at iteration %d", iter)
		}
	}

	d.state = StateGathering
	data, _, err := d.group.AllgatherVariable(ctx, d.cfg.Rank, particle.EncodeAll(d.owned))
	if err != nil {
		return nil, errors.Wrap(err, "sim: final gather")
	}
	final, err := particle.DecodeAll(data)
	if err != nil {
		return nil, errors.Wrap(err, "sim: decode final gather")
	}

	d.state = StateDone
	return final, nil
}

// redistribute reassigns particle ownership by current position. On the
// very first call (first=true) the global box passed in is used directly
// and the full population is already known (the initial broadcast); on
// later calls the global box is recomputed from an all-gather of local
// boxes and the full population is recovered via all-gather-variable of
// the current owned sets.
func (d *Driver) redistribute(ctx context.Context, globalBox geom.Box, dim int, first bool) error {
	if !first {
		boxBuf := encodeBox(d.localBox)
		allBoxBytes, err := d.group.AllgatherFixed(ctx, d.cfg.Rank, boxBuf)
		if err != nil {
			return errors.Wrap(err, "sim: publish local bounds for redistribution")
		}
		boxes, err := decodeBoxes(allBoxBytes)
		if err != nil {
			return err
		}
		reduced := geom.EmptyBox()
		for _, b := range boxes {
			reduced = reduced.Union(b)
		}
		globalBox = reduced

		data, _, err := d.group.AllgatherVariable(ctx, d.cfg.Rank, particle.EncodeAll(d.owned))
		if err != nil {
			return errors.Wrap(err, "sim: recover full population for redistribution")
		}
		full, err := particle.DecodeAll(data)
		if err != nil {
			return errors.Wrap(err, "sim: decode recovered population")
		}
		d.owned = full
	}

	d.grid = partition.NewGrid(globalBox, dim)
	buckets := partition.Assign(d.grid, d.owned, d.cfg.NumPeers)

	for owner := range buckets {
		if owner < 0 || owner >= d.cfg.NumPeers {
			return errors.Wrapf(ErrPartitionOutOfRange, "owner %d", owner)
		}
	}

	newOwned := buckets[d.cfg.Rank]

	countBuf := encodeCount(len(newOwned))
	allCounts, err := d.group.AllgatherFixed(ctx, d.cfg.Rank, countBuf)
	if err != nil {
		return errors.Wrap(err, "sim: publish owned counts")
	}
	counts, err := decodeCounts(allCounts)
	if err != nil {
		return err
	}

	d.owned = newOwned
	d.ownedCounts = counts
	d.localBox = particle.Bounds(newOwned)
	return nil
}
