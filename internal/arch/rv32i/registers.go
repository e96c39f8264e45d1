package rv32i

import (
	"github.com/retroenv/retrosim/internal/platform"
	"github.com/retroenv/retrosim/internal/state"
)

// Register file layout.
const (
	PC state.RegID = iota
	X
)

// ABI register numbers of the X register array.
const (
	RA = 1
	SP = 2
	A0 = 10
	A1 = 11
	A2 = 12
	A7 = 17
)

var registers = []state.RegisterSpec{
	{Name: "PC", Width: 32},
	{Name: "X", Width: 32, Count: 32},
}

// Registers returns the register file layout.
func (a *RV32I) Registers() []state.RegisterSpec {
	return registers
}

// PCRegister returns the program counter register.
func (a *RV32I) PCRegister() state.RegID {
	return PC
}

// PrivateRegisters returns the stack pointer.
func (a *RV32I) PrivateRegisters() []state.RegRef {
	return []state.RegRef{{Reg: X, Index: SP}}
}

// Reset zeroes the register file.
func (a *RV32I) Reset(s *state.State) {
	s.SetPC(0)
	for i := range 32 {
		s.SetAt(X, i, 0)
	}
}

// FillEnv passes the initial stack and the program arguments in the
// registers of the calling convention. Returning from the entry function
// jumps to the halt address.
func (a *RV32I) FillEnv(env *platform.SysEnv, s *state.State) {
	s.SetAt(X, SP, uint64(env.StackPointer))
	s.SetAt(X, A0, uint64(env.Argc()))
	s.SetAt(X, A1, uint64(env.ArgvAddress))
	s.SetAt(X, A2, uint64(env.EnvpAddress))
	s.SetAt(X, RA, uint64(env.HaltAddress))
}

func x(s *state.State, number uint32) uint32 {
	return uint32(s.GetAt(X, int(number)))
}

// setX writes a register, x0 stays hard wired to zero.
func setX(s *state.State, number, value uint32) {
	if number != 0 {
		s.SetAt(X, int(number), uint64(value))
	}
}
