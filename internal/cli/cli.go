// Package cli handles command line interface logic
package cli

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrosim/internal/decode"
	"github.com/retroenv/retrosim/internal/detector"
	"github.com/retroenv/retrosim/internal/options"
	"github.com/retroenv/retrosim/internal/platform"
)

// ParseFlags parses command line flags and returns program and simulation options.
// Arguments following the program image are passed to the simulated program.
func ParseFlags() (options.Program, options.Simulation, error) {
	flags := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	opts := options.Program{
		SimFlags: options.SimFlags{
			Base:      options.NewNumber(0x1000),
			StackSize: options.NewNumber(platform.DefaultStackSize),
		},
	}
	readOptionFlags(flags, &opts)

	err := flags.Parse(os.Args[1:])
	args := flags.Args()
	if err != nil || (len(args) == 0 && opts.Input == "") {
		return opts, options.Simulation{}, &UsageError{flags: flags}
	}

	if opts.Input == "" {
		opts.Input = args[0]
		args = args[1:]
	}
	opts.Args = append([]string{opts.Input}, args...)

	if err := normalizeOptions(&opts); err != nil {
		return opts, options.Simulation{}, err
	}

	simOptions := options.NewSimulation(opts.SimFlags)
	if err := simOptions.Decode.Validate(); err != nil {
		return opts, options.Simulation{}, fmt.Errorf("invalid decode options: %w", err)
	}

	return opts, simOptions, nil
}

// UsageError represents an error that should show usage information
type UsageError struct {
	flags *flag.FlagSet
	msg   string
}

func (e *UsageError) Error() string {
	return e.msg
}

func (e *UsageError) ShowUsage() {
	fmt.Printf("usage: retrosim [options] <program image> [program arguments]\n\n")
	e.flags.PrintDefaults()
	fmt.Println()
}

// normalizeOptions normalizes and validates option values
func normalizeOptions(opts *options.Program) error {
	opts.Arch = strings.ToLower(opts.Arch)
	opts.Format = strings.ToLower(opts.Format)

	validFormats := []string{string(detector.ELF), string(detector.Raw)}
	if opts.Format != "" && !slices.Contains(validFormats, opts.Format) {
		return fmt.Errorf("unsupported image format: %s. Valid options: %s",
			opts.Format, strings.Join(validFormats, ", "))
	}

	if opts.StackSlots < 1 {
		return fmt.Errorf("invalid stack slot count %d", opts.StackSlots)
	}
	if opts.StackSize.Value == 0 {
		return fmt.Errorf("invalid stack slot size %d", opts.StackSize.Value)
	}
	return nil
}

func readOptionFlags(flags *flag.FlagSet, opts *options.Program) {
	flags.StringVar(&opts.Input, "i", "", "name of the program image to simulate")
	flags.StringVar(&opts.Format, "f", "", "image format (elf/raw) - if not auto-detected from the file")
	flags.StringVar(&opts.Arch, "a", "rv32i", "architecture to simulate")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debugging options for extended logging")
	flags.BoolVar(&opts.Quiet, "q", false, "perform operations quietly")
	flags.BoolVar(&opts.Stats, "stats", false, "print decode cache statistics after the simulation")
	flags.BoolVar(&opts.Dump, "dump", false, "dump the register state after the simulation")
	flags.BoolVar(&opts.Trace, "trace", false, "print every executed instruction with its address and encoding")

	flags.Var(&opts.Start, "start", "start address, defaults to the program entry")
	flags.Var(&opts.Exit, "exit", "exit address, defaults to the halt address of the architecture")
	flags.Var(&opts.Base, "base", "load address of raw images")
	flags.Uint64Var(&opts.Limit, "limit", 0, "maximum number of instructions to execute, 0 for no limit")
	flags.BoolVar(&opts.NoCache, "nocache", false, "decode every fetched instruction instead of caching it")
	flags.IntVar(&opts.Buckets, "buckets", decode.DefaultBuckets, "decode cache hash buckets, must be a power of two")
	flags.IntVar(&opts.PoolSize, "pool", decode.DefaultPoolSize, "instruction pool size of the uncached decoder")
	flags.IntVar(&opts.StackSlots, "stackslots", platform.DefaultStackSlots, "number of stack slots for forked states")
	flags.Var(&opts.StackSize, "stacksize", "size of a stack slot in bytes")
}

// PrintBanner prints application version information
func PrintBanner(logger *log.Logger, opts options.Program, version, commit, date string) {
	if opts.Quiet {
		return
	}

	logger.Info("retrosim", log.String("version", Version(version, commit)))

	if date != "" && !strings.Contains(date, "unknown") {
		logger.Info("Build", log.String("date", date))
	}
}

// Version returns the version string including the short commit hash.
func Version(version, commit string) string {
	if commit == "" {
		return version
	}
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("%s (%s)", version, commit)
}
