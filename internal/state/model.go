package state

import (
	"errors"
	"fmt"

	"github.com/retroenv/retrosim/internal/platform"
)

// RegID is the index of a register in the declaration order of a Model.
type RegID int

// RegisterSpec declares one register of the register file.
type RegisterSpec struct {
	Name  string
	Width int // bits, 1 to 64
	Count int // elements of an array register, 0 for a scalar
}

// IsArray returns whether the register is an array register.
func (r RegisterSpec) IsArray() bool {
	return r.Count > 0
}

func (r RegisterSpec) elements() int {
	return max(r.Count, 1)
}

func (r RegisterSpec) mask() uint64 {
	if r.Width >= 64 {
		return ^uint64(0)
	}
	return 1<<r.Width - 1
}

// RegRef references a scalar register or one element of an array register.
type RegRef struct {
	Reg   RegID
	Index int
}

// Model describes the register layout and the architecture specific reset
// logic of a state.
type Model interface {
	// Registers returns the register file layout.
	Registers() []RegisterSpec
	// PCRegister returns the scalar program counter register.
	PCRegister() RegID
	// PrivateRegisters returns the registers holding addresses into the
	// stack that are relocated when a state is forked.
	PrivateRegisters() []RegRef
	// Reset sets the registers to their power on values.
	Reset(s *State)
	// FillEnv passes the system environment to the program.
	FillEnv(env *platform.SysEnv, s *State)
}

func validateModel(m Model) error {
	if m == nil {
		return errors.New("state has no register model")
	}

	regs := m.Registers()
	names := make(map[string]struct{}, len(regs))
	for i, reg := range regs {
		if reg.Name == "" {
			return fmt.Errorf("register %d has no name", i)
		}
		if _, ok := names[reg.Name]; ok {
			return fmt.Errorf("duplicate register '%s'", reg.Name)
		}
		names[reg.Name] = struct{}{}
		if reg.Width < 1 || reg.Width > 64 {
			return fmt.Errorf("register '%s' has invalid width %d", reg.Name, reg.Width)
		}
		if reg.Count < 0 {
			return fmt.Errorf("register '%s' has invalid element count %d", reg.Name, reg.Count)
		}
	}

	pc := int(m.PCRegister())
	if pc < 0 || pc >= len(regs) || regs[pc].IsArray() {
		return fmt.Errorf("program counter register %d is not a scalar register", pc)
	}

	for _, ref := range m.PrivateRegisters() {
		if int(ref.Reg) < 0 || int(ref.Reg) >= len(regs) || ref.Index < 0 || ref.Index >= regs[ref.Reg].elements() {
			return fmt.Errorf("invalid private register %d[%d]", ref.Reg, ref.Index)
		}
	}
	return nil
}
