// Package options contains the program options.
package options

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/retroenv/retrosim/internal/decode"
	"github.com/retroenv/retrosim/internal/platform"
)

// Parameters contains file and target options.
type Parameters struct {
	Input  string `flag:"i" usage:"program image to simulate"`
	Format string `flag:"f" usage:"image format: elf, raw (default: auto-detect)"`
	Arch   string `flag:"a" usage:"architecture: rv32i" default:"rv32i"`
}

// Flags contains behavior options.
type Flags struct {
	Debug bool `flag:"debug" usage:"enable debug logging"`
	Quiet bool `flag:"q" usage:"quiet mode"`
	Stats bool `flag:"stats" usage:"print decode cache statistics"`
	Dump  bool `flag:"dump" usage:"dump the registers after the simulation"`
	Trace bool `flag:"trace" usage:"print every executed instruction"`
}

// SimFlags contains simulation options.
type SimFlags struct {
	Start      Number `flag:"start" usage:"start address (default: program entry)"`
	Exit       Number `flag:"exit" usage:"exit address (default: architecture halt address)"`
	Base       Number `flag:"base" usage:"load address of raw images" default:"0x1000"`
	Limit      uint64 `flag:"limit" usage:"maximum number of executed instructions, 0 for no limit"`
	NoCache    bool   `flag:"nocache" usage:"decode every instruction again instead of caching it"`
	Buckets    int    `flag:"buckets" usage:"decode cache hash buckets, power of two" default:"65536"`
	PoolSize   int    `flag:"pool" usage:"instruction pool size of the uncached decoder" default:"100"`
	StackSlots int    `flag:"stackslots" usage:"number of stack slots for forked states" default:"8"`
	StackSize  Number `flag:"stacksize" usage:"bytes per stack slot" default:"0x100000"`
}

// Program options of the simulator.
type Program struct {
	Parameters
	Flags
	SimFlags

	Args []string // arguments passed to the simulated program
}

// Simulation defines options to control the simulator.
type Simulation struct {
	Decode decode.Config
	Stack  platform.StackConfig

	Start    uint32
	HasStart bool
	Exit     uint32
	HasExit  bool
	Base     uint32
	Limit    uint64
}

// NewSimulation returns the simulation options for the given flags.
func NewSimulation(flags SimFlags) Simulation {
	cfg := decode.DefaultConfig()
	if flags.NoCache {
		cfg.Mode = decode.Uncached
	}
	if flags.Buckets != 0 {
		cfg.Buckets = flags.Buckets
	}
	if flags.PoolSize != 0 {
		cfg.PoolSize = flags.PoolSize
	}

	return Simulation{
		Decode: cfg,
		Stack: platform.StackConfig{
			Size:  flags.StackSize.Value,
			Slots: flags.StackSlots,
		},
		Start:    flags.Start.Value,
		HasStart: flags.Start.IsSet,
		Exit:     flags.Exit.Value,
		HasExit:  flags.Exit.IsSet,
		Base:     flags.Base.Value,
		Limit:    flags.Limit,
	}
}

// Number is a 32 bit unsigned command line value that accepts decimal and
// 0x prefixed hexadecimal notation. It implements flag.Value.
type Number struct {
	Value uint32
	IsSet bool
}

// NewNumber returns a number that is not marked as set.
func NewNumber(value uint32) Number {
	return Number{Value: value}
}

// String returns the hexadecimal notation of the number.
func (n *Number) String() string {
	if n == nil {
		return ""
	}
	return fmt.Sprintf("0x%X", n.Value)
}

// Set parses the value.
func (n *Number) Set(s string) error {
	value, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), 0, 32)
	if err != nil {
		return fmt.Errorf("invalid number '%s': %w", s, err)
	}
	n.Value = uint32(value)
	n.IsSet = true
	return nil
}
