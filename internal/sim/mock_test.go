package sim

import (
	"errors"

	"github.com/retroenv/retrosim/internal/arch"
	"github.com/retroenv/retrosim/internal/decode"
	"github.com/retroenv/retrosim/internal/memory"
	"github.com/retroenv/retrosim/internal/platform"
	"github.com/retroenv/retrosim/internal/state"
)

// Test instruction set:
//
//	111111.. ........ ........ ........  opX, no effect
//	000001.. ........ ........ .......0  opInc, increments the counter
//	000001.. ........ ........ .......1  opFail, fails to execute
const (
	opX decode.Ident = iota + 1
	opInc
	opFail
)

const (
	regPC state.RegID = iota
	regCounter
)

var errMockFailure = errors.New("mock failure")

var _ arch.Architecture = (*mockArch)(nil)

type mockArch struct {
	root     *decode.Node
	executed int
}

func newMockArch() *mockArch {
	alu := decode.MustNode(0x00000001).
		Set(0, decode.Leaf(opInc)).
		Set(1, decode.Leaf(opFail))

	root := decode.MustNode(0xFC000000).
		Set(0x3F, decode.Leaf(opX)).
		Set(0x01, decode.Internal(alu))

	return &mockArch{root: root}
}

func (a *mockArch) Name() string {
	return "mock"
}

func (a *mockArch) Registers() []state.RegisterSpec {
	return []state.RegisterSpec{
		{Name: "PC", Width: 32},
		{Name: "COUNTER", Width: 16},
	}
}

func (a *mockArch) PCRegister() state.RegID {
	return regPC
}

func (a *mockArch) PrivateRegisters() []state.RegRef {
	return nil
}

func (a *mockArch) Reset(*state.State) {}

func (a *mockArch) FillEnv(*platform.SysEnv, *state.State) {}

func (a *mockArch) Root() *decode.Node {
	return a.root
}

func (a *mockArch) Words() int {
	return 1
}

func (a *mockArch) Operands(decode.Ident, []uint32) ([]decode.Operand, []decode.Operand) {
	return nil, nil
}

func (a *mockArch) Execute(st *state.State, inst *decode.Instruction) error {
	a.executed++
	switch inst.Ident {
	case opInc:
		st.Set(regCounter, st.Get(regCounter)+1)
	case opFail:
		return errMockFailure
	}
	st.SetPC(inst.Address + 4)
	return nil
}

func (a *mockArch) Platform() platform.Config {
	return platform.Config{Regions: []memory.Spec{{Name: "ram"}}}
}

func (a *mockArch) CodeRegion() int {
	return 0
}

func (a *mockArch) Names() arch.Names {
	return arch.Names{opX: "x", opInc: "inc", opFail: "fail"}
}
