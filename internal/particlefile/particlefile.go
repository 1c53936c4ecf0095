// Package particlefile loads and saves the on-disk particle format: a
// file of back-to-back 24-byte Particle records with no header. Modeled
// on phil-mansfield/gotetra's io/io.go header-prefixed binary layout, but
// simplified: this format needs no endianness flag or size word because
// the record layout is fixed and little-endian is mandated outright.
package particlefile

import (
	"os"

	"github.com/pkg/errors"

	"github.com/0x5844/particle-sim/internal/particle"
)

// ErrTruncated is returned by Load when the file size is not a whole
// number of Particle records.
var ErrTruncated = errors.New("particlefile: file size is not a multiple of the record size")

// Loaded holds a file's particles in file order plus the id -> input-index
// map needed to restore canonical output order after the run.
type Loaded struct {
	Particles []particle.Particle
	Order     map[int32]int
}

// Load reads path as a sequence of back-to-back Particle records and
// returns them in file order together with the id -> input-index map.
func Load(path string) (Loaded, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrapf(err, "particlefile: read %s", path)
	}
	if len(buf)%particle.Size != 0 {
		return Loaded{}, errors.Wrapf(ErrTruncated, "%s: %d bytes", path, len(buf))
	}

	ps, err := particle.DecodeAll(buf)
	if err != nil {
		return Loaded{}, errors.Wrapf(err, "particlefile: decode %s", path)
	}

	order := make(map[int32]int, len(ps))
	for i, p := range ps {
		order[p.ID] = i
	}
	return Loaded{Particles: ps, Order: order}, nil
}

// Save writes ps to path as a sequence of back-to-back Particle records, in
// the order given. Only the coordinator calls Save.
func Save(path string, ps []particle.Particle) error {
	buf := particle.EncodeAll(ps)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return errors.Wrapf(err, "particlefile: write %s", path)
	}
	return nil
}

// CanonicalOrder reorders gathered into the order recorded by order (the
// stable id -> input-index map from Load), for use at the driver's
// GATHERING -> DONE transition. Particles whose id was not present at load
// time (should not happen in a correct run) are appended after the
// ordered particles, in the order they were encountered.
func CanonicalOrder(gathered []particle.Particle, order map[int32]int) []particle.Particle {
	out := make([]particle.Particle, len(order))
	filled := make([]bool, len(order))
	var extra []particle.Particle

	for _, p := range gathered {
		idx, ok := order[p.ID]
		if !ok || idx < 0 || idx >= len(out) {
			extra = append(extra, p)
			continue
		}
		out[idx] = p
		filled[idx] = true
	}
	for _, ok := range filled {
		if !ok {
			// A slot was never filled — one of the gathered particles is
			// missing relative to the original input. Truncate rather
			// than return a zero-valued Particle in its place.
			return append(compactFilled(out, filled), extra...)
		}
	}
	return append(out, extra...)
}

func compactFilled(out []particle.Particle, filled []bool) []particle.Particle {
	compact := make([]particle.Particle, 0, len(out))
	for i, ok := range filled {
		if ok {
			compact = append(compact, out[i])
		}
	}
	return compact
}
