// Package nbody supplies the pairwise force and integrator functions used
// to advance a particle population: ComputeForce, UpdateParticle, and
// BenchmarkStepParams. internal/sim depends only on function values with
// these signatures, never on this package directly.
package nbody

import (
	"github.com/0x5844/particle-sim/internal/geom"
	"github.com/0x5844/particle-sim/internal/particle"
)

// softening keeps the force magnitude finite as two particles approach
// coincidence. At exactly zero separation ComputeForce returns zero: for
// the same particle (matched by id) and for distinct particles at the
// same position alike.
const softening = 1e-6

// ComputeForce returns the pairwise force particle q exerts on p: zero if p
// and q are the same particle (matched by id) or their separation is at
// least cullRadius, otherwise a finite inverse-square repulsion directed
// from q to p.
func ComputeForce(p, q particle.Particle, cullRadius float32) geom.Vec2 {
	if p.ID == q.ID {
		return geom.Vec2{}
	}

	delta := p.Pos().Sub(q.Pos())
	dist := delta.Magnitude()
	if dist >= float64(cullRadius) {
		return geom.Vec2{}
	}

	denom := dist*dist + softening
	magnitude := float64(q.Mass) / denom
	if dist == 0 {
		return geom.Vec2{}
	}
	return delta.Scale(magnitude / dist)
}

// UpdateParticle advances p by one semi-implicit Euler step under the given
// total force and deltaTime: velocity is updated from acceleration first,
// then position from the new velocity. id and mass are carried unchanged;
// p is not aliased.
func UpdateParticle(p particle.Particle, totalForce geom.Vec2, deltaTime float32) particle.Particle {
	mass := float64(p.Mass)
	if mass == 0 {
		mass = 1
	}
	accel := totalForce.Scale(1 / mass)

	vel := geom.Vec2{X: float64(p.VelX), Y: float64(p.VelY)}
	vel = vel.Add(accel.Scale(float64(deltaTime)))

	pos := p.Pos().Add(vel.Scale(float64(deltaTime)))

	return particle.Particle{
		ID:   p.ID,
		Mass: p.Mass,
		PosX: float32(pos.X),
		PosY: float32(pos.Y),
		VelX: float32(vel.X),
		VelY: float32(vel.Y),
	}
}

// BenchmarkStepParams derives {cullRadius, deltaTime} from spaceSize.
// cullRadius scales with the space so a fixed particle count keeps
// roughly the same expected neighbor count regardless of domain size;
// deltaTime is a small fixed fraction of it so a particle cannot cross
// more than a fraction of its own interaction radius in one step.
func BenchmarkStepParams(spaceSize float64) particle.StepParameters {
	cullRadius := spaceSize / 32
	if cullRadius <= 0 {
		cullRadius = 1
	}
	return particle.StepParameters{
		CullRadius: float32(cullRadius),
		DeltaTime:  float32(cullRadius / 20),
	}
}
