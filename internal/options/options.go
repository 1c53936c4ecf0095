// Package options parses and validates the command-line surface for
// particlesim, styled directly on a parseFlags/validateConfig pair.
package options

import (
	"flag"
	"fmt"
	"os"
)

// Options is the run-level CLI surface: input/output paths, iteration
// count, and the space size used to derive StepParameters via
// nbody.BenchmarkStepParams.
type Options struct {
	Input         string
	Output        string
	NumIterations int
	SpaceSize     float64

	ConfigFile string
	Dashboard  bool
	Verbose    bool
	Quiet      bool
	ProfileCPU string
}

// Parse parses args (excluding the program name) into an Options,
// validating it before returning: a configuration error at this layer
// aborts before any collective runs.
func Parse(args []string) (*Options, error) {
	fs := flag.NewFlagSet("particlesim", flag.ContinueOnError)
	opt := &Options{}

	fs.StringVar(&opt.Input, "input", "", "input particle file (required)")
	fs.StringVar(&opt.Output, "output", "", "output particle file (required)")
	fs.IntVar(&opt.NumIterations, "iterations", 100, "number of simulation iterations")
	fs.Float64Var(&opt.SpaceSize, "space-size", 1000, "domain size used to derive cull radius and delta time")

	fs.StringVar(&opt.ConfigFile, "config", "", "optional tuning file (gcfg INI format)")
	fs.BoolVar(&opt.Dashboard, "dashboard", false, "show a live terminal dashboard while the run is in progress")
	fs.BoolVar(&opt.Verbose, "verbose", false, "verbose per-peer logging")
	fs.BoolVar(&opt.Quiet, "quiet", false, "suppress all but fatal output")
	fs.StringVar(&opt.ProfileCPU, "profile-cpu", "", "CPU profile output file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "particlesim - distributed 2D particle simulator\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s -input FILE -output FILE [OPTIONS]\n\n", os.Args[0])
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := validate(opt); err != nil {
		return nil, err
	}
	return opt, nil
}

func validate(opt *Options) error {
	if opt.Input == "" {
		return fmt.Errorf("options: -input is required")
	}
	if opt.Output == "" {
		return fmt.Errorf("options: -output is required")
	}
	if opt.NumIterations < 0 {
		return fmt.Errorf("options: -iterations must be non-negative")
	}
	if opt.SpaceSize <= 0 {
		return fmt.Errorf("options: -space-size must be positive")
	}
	if opt.Verbose && opt.Quiet {
		return fmt.Errorf("options: -verbose and -quiet are mutually exclusive")
	}
	return nil
}
