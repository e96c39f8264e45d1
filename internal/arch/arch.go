// Package arch contains types used for multi architecture support.
// It acts as a bridge between the simulation core and the architecture
// specific register layout, decode tables and execute logic.
package arch

import (
	"fmt"

	"github.com/retroenv/retrosim/internal/decode"
	"github.com/retroenv/retrosim/internal/platform"
	"github.com/retroenv/retrosim/internal/state"
)

// Architecture contains architecture specific information.
type Architecture interface {
	state.Model
	decode.Decoder

	// Name returns the architecture name.
	Name() string
	// Execute applies the effect of a decoded instruction to the state,
	// including the program counter update.
	Execute(st *state.State, inst *decode.Instruction) error
	// Platform returns the platform configuration of the architecture.
	Platform() platform.Config
	// CodeRegion returns the index of the memory region instructions are
	// fetched from.
	CodeRegion() int
	// Names returns the instruction names used for logging.
	Names() Names
}

// Names maps instruction identities to their mnemonics.
type Names map[decode.Ident]string

// Name returns the mnemonic of an instruction identity.
func (n Names) Name(id decode.Ident) string {
	if name, ok := n[id]; ok {
		return name
	}
	return fmt.Sprintf("ident(%d)", id)
}
