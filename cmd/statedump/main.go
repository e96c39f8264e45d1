// Package main implements a tool that prints the initial register state of a program image
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrosim/internal/arch"
	"github.com/retroenv/retrosim/internal/cli"
	"github.com/retroenv/retrosim/internal/config"
	"github.com/retroenv/retrosim/internal/detector"
	"github.com/retroenv/retrosim/internal/loader"
	"github.com/retroenv/retrosim/internal/options"
	"github.com/retroenv/retrosim/internal/platform"
	"github.com/retroenv/retrosim/internal/state"
)

var (
	version = "0.1.0"
	commit  = ""
)

type optionFlags struct {
	input  string
	format string
	arch   string
	base   options.Number

	fork  bool
	quiet bool
}

func main() {
	opts, args := readArguments()

	if !opts.quiet {
		printBanner()
	}

	logger := config.CreateLogger(false, true)
	if err := dumpState(logger, opts, args, os.Stdout); err != nil {
		fmt.Println(fmt.Errorf("dumping state failed: %w", err))
		os.Exit(1)
	}
}

func readArguments() (optionFlags, []string) {
	flags := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	opts := optionFlags{
		base: options.NewNumber(0x1000),
	}

	flags.StringVar(&opts.format, "f", "", "image format (elf/raw) - if not auto-detected from the file")
	flags.StringVar(&opts.arch, "a", "rv32i", "architecture of the program")
	flags.Var(&opts.base, "base", "load address of raw images")
	flags.BoolVar(&opts.fork, "fork", false, "also dump a forked state with relocated stack registers")
	flags.BoolVar(&opts.quiet, "q", false, "perform operations quietly")

	err := flags.Parse(os.Args[1:])
	args := flags.Args()

	if err != nil || len(args) == 0 {
		printBanner()
		fmt.Printf("usage: statedump [options] <program image> [program arguments]\n\n")
		flags.PrintDefaults()
		os.Exit(1)
	}
	opts.input = args[0]

	return opts, args
}

func printBanner() {
	fmt.Println("[-------------------------------------]")
	fmt.Println("[ statedump - simulator state printer ]")
	fmt.Printf("[-------------------------------------]\n\n")
	fmt.Printf("version: %s\n\n", cli.Version(version, commit))
}

func dumpState(logger *log.Logger, opts optionFlags, args []string, w io.Writer) error {
	a, err := config.CreateArchitecture(logger, opts.arch, io.Discard)
	if err != nil {
		return err
	}

	st, err := loadState(logger, opts, args, a)
	if err != nil {
		return err
	}
	defer func() { _ = st.Delete() }()

	if err := st.Dump(w); err != nil {
		return fmt.Errorf("dumping initial state: %w", err)
	}
	if !opts.fork {
		return nil
	}

	fork, err := st.Fork()
	if err != nil {
		return fmt.Errorf("forking state: %w", err)
	}
	defer func() { _ = fork.Delete() }()

	slot, _ := fork.StackSlot()
	if _, err := fmt.Fprintf(w, "\nfork in stack slot %d:\n", slot); err != nil {
		return fmt.Errorf("writing fork header: %w", err)
	}
	if err := fork.Dump(w); err != nil {
		return fmt.Errorf("dumping forked state: %w", err)
	}
	return nil
}

func loadState(logger *log.Logger, opts optionFlags, args []string, a arch.Architecture) (*state.State, error) {
	pf, err := platform.New(a.Platform())
	if err != nil {
		return nil, fmt.Errorf("creating platform: %w", err)
	}
	handle := pf.Lock()
	defer func() { _ = handle.Release() }()

	pf.SysEnv().Argv = args

	format := detector.New(logger).Detect(options.Program{
		Parameters: options.Parameters{Input: opts.input, Format: opts.format},
	})
	l := loader.New(logger, loader.Config{
		Format: format,
		Base:   opts.base.Value,
		Region: a.CodeRegion(),
	})
	if err := pf.Load(l, opts.input); err != nil {
		return nil, fmt.Errorf("loading program: %w", err)
	}

	st, err := state.New(pf, a)
	if err != nil {
		return nil, fmt.Errorf("creating state: %w", err)
	}
	return st, nil
}
