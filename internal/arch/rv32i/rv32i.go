// Package rv32i provides the RV32I base integer instruction set as the
// reference architecture of the simulator.
//
// Programs run in a single little endian memory region that holds code,
// data and the stack. Environment calls are served by the syscall platform
// module which supports console output and program exit.
package rv32i

import (
	"io"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrosim/internal/arch"
	"github.com/retroenv/retrosim/internal/decode"
	"github.com/retroenv/retrosim/internal/memory"
	"github.com/retroenv/retrosim/internal/platform"
)

// Name is the architecture name used for selecting it.
const Name = "rv32i"

// HaltAddress is the address that a program returns to from its entry
// function or is parked at by the exit system call.
const HaltAddress = 0xFFFFFFF0

// memoryRegion is the index of the only memory region.
const memoryRegion = 0

// Compile-time check to ensure RV32I implements arch.Architecture.
var _ arch.Architecture = (*RV32I)(nil)

// RV32I implements the arch.Architecture interface for the RV32I base
// integer instruction set.
type RV32I struct {
	logger *log.Logger
	output io.Writer
	root   *decode.Node
}

// Option configures the architecture.
type Option func(*RV32I)

// WithOutput sets the writer receiving the console output of programs.
func WithOutput(w io.Writer) Option {
	return func(a *RV32I) {
		a.output = w
	}
}

// New returns a new RV32I architecture.
func New(logger *log.Logger, options ...Option) *RV32I {
	a := &RV32I{
		logger: logger,
		output: io.Discard,
		root:   newTrie(),
	}
	for _, option := range options {
		option(a)
	}
	return a
}

// Name returns the architecture name.
func (a *RV32I) Name() string {
	return Name
}

// Platform returns a platform configuration with one memory region, the
// default stack slots and a new syscall module.
func (a *RV32I) Platform() platform.Config {
	return platform.Config{
		Regions: []memory.Spec{{Name: "ram"}},
		Modules: []platform.Module{newSyscall(a.logger, a.output)},
		Stack: platform.StackConfig{
			Region: memoryRegion,
		},
		HaltAddress: HaltAddress,
	}
}

// CodeRegion returns the memory region instructions are fetched from.
func (a *RV32I) CodeRegion() int {
	return memoryRegion
}

// Names returns the instruction mnemonics.
func (a *RV32I) Names() arch.Names {
	return names
}
