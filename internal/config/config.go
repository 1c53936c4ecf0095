// Package config loads an optional ambient tuning file: an INI-style file,
// parsed with gopkg.in/gcfg.v1 the same way phil-mansfield/gotetra's
// design/config.go loads a PhaseBoundsConfig, overriding the built-in
// defaults for leaf capacity, redistribution cadence, and the halo
// message tag.
package config

import (
	"gopkg.in/gcfg.v1"

	"github.com/0x5844/particle-sim/internal/halo"
	"github.com/0x5844/particle-sim/internal/quadtree"
)

// Tuning holds the values a tuning file may override. Zero values from an
// absent file mean "use the built-in default", applied by Defaults.
type Tuning struct {
	LeafCapacity      int
	RedistributeEvery int
	HaloTag           int
}

// section is the gcfg-shaped wrapper for the [tuning] INI section, mirroring
// gotetra's PhaseBoundsWrapper{PhaseBoundsConfig} pattern.
type section struct {
	Tuning struct {
		LeafCapacity      int
		RedistributeEvery int
		HaloTag           int
	}
}

// Defaults returns the built-in tuning: leaf capacity 256, redistribution
// every 8 iterations, halo tag 0.
func Defaults() Tuning {
	return Tuning{
		LeafCapacity:      quadtree.LeafCapacity,
		RedistributeEvery: 8,
		HaloTag:           halo.DefaultTag,
	}
}

// Load reads path as a gcfg INI file and returns the tuning it specifies,
// falling back to Defaults() for any field the file omits. An empty path
// returns Defaults() without touching the filesystem, since the tuning
// file is optional.
func Load(path string) (Tuning, error) {
	tuning := Defaults()
	if path == "" {
		return tuning, nil
	}

	var sec section
	sec.Tuning.LeafCapacity = tuning.LeafCapacity
	sec.Tuning.RedistributeEvery = tuning.RedistributeEvery
	sec.Tuning.HaloTag = tuning.HaloTag

	if err := gcfg.ReadFileInto(&sec, path); err != nil {
		return Tuning{}, err
	}

	return Tuning{
		LeafCapacity:      sec.Tuning.LeafCapacity,
		RedistributeEvery: sec.Tuning.RedistributeEvery,
		HaloTag:           sec.Tuning.HaloTag,
	}, nil
}
