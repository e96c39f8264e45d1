package rv32i

import (
	"errors"
	"fmt"

	"github.com/retroenv/retrosim/internal/decode"
	"github.com/retroenv/retrosim/internal/platform"
	"github.com/retroenv/retrosim/internal/state"
)

var (
	// ErrBreakpoint is returned when an ebreak instruction is executed.
	ErrBreakpoint = errors.New("breakpoint")
	// ErrNoSyscallModule is returned for an environment call on a platform
	// without the syscall module.
	ErrNoSyscallModule = errors.New("platform has no syscall module")
)

// Execute applies the instruction to the state and advances the program
// counter.
func (a *RV32I) Execute(s *state.State, inst *decode.Instruction) error {
	pc := inst.Address
	next := pc + 4
	mem := s.Memory(memoryRegion)

	rs1 := x(s, inst.Input(0).Value)
	rs2 := x(s, inst.Input(1).Value)
	rd := inst.Output(0).Value

	switch inst.Ident {
	case Lui:
		setX(s, rd, inst.Input(0).Value)
	case Auipc:
		setX(s, rd, pc+inst.Input(0).Value)
	case Jal:
		setX(s, rd, next)
		next = pc + inst.Input(0).Value
	case Jalr:
		target := (rs1 + inst.Input(1).Value) &^ 1
		setX(s, rd, next)
		next = target

	case Beq, Bne, Blt, Bge, Bltu, Bgeu:
		if branchTaken(inst.Ident, rs1, rs2) {
			next = pc + inst.Input(2).Value
		}

	case Lb:
		setX(s, rd, uint32(int32(int8(mem.Read8(rs1+inst.Input(1).Value)))))
	case Lh:
		setX(s, rd, uint32(int32(int16(mem.Read16(rs1+inst.Input(1).Value)))))
	case Lw:
		setX(s, rd, mem.Read32(rs1+inst.Input(1).Value))
	case Lbu:
		setX(s, rd, uint32(mem.Read8(rs1+inst.Input(1).Value)))
	case Lhu:
		setX(s, rd, uint32(mem.Read16(rs1+inst.Input(1).Value)))

	case Sb:
		mem.Write8(rs1+inst.Input(2).Value, uint8(rs2))
	case Sh:
		mem.Write16(rs1+inst.Input(2).Value, uint16(rs2))
	case Sw:
		mem.Write32(rs1+inst.Input(2).Value, rs2)

	case Addi, Slti, Sltiu, Xori, Ori, Andi, Slli, Srli, Srai:
		setX(s, rd, alu(inst.Ident, rs1, inst.Input(1).Value))
	case Add, Sub, Sll, Slt, Sltu, Xor, Srl, Sra, Or, And:
		setX(s, rd, alu(inst.Ident, rs1, rs2))

	case Fence:

	case Ecall:
		m, ok := platform.ModuleAs[*Syscall](s.Platform())
		if !ok {
			return fmt.Errorf("%w at 0x%08X", ErrNoSyscallModule, pc)
		}
		m.call(s)
		return nil

	case Ebreak:
		return fmt.Errorf("%w at 0x%08X", ErrBreakpoint, pc)

	default:
		return fmt.Errorf("%w: unsupported identity %d at 0x%08X", decode.ErrIllegalInstruction, inst.Ident, pc)
	}

	s.SetPC(next)
	return nil
}

func branchTaken(id decode.Ident, a, b uint32) bool {
	switch id {
	case Beq:
		return a == b
	case Bne:
		return a != b
	case Blt:
		return int32(a) < int32(b)
	case Bge:
		return int32(a) >= int32(b)
	case Bltu:
		return a < b
	default:
		return a >= b
	}
}

func alu(id decode.Ident, a, b uint32) uint32 {
	switch id {
	case Addi, Add:
		return a + b
	case Sub:
		return a - b
	case Slti, Slt:
		if int32(a) < int32(b) {
			return 1
		}
		return 0
	case Sltiu, Sltu:
		if a < b {
			return 1
		}
		return 0
	case Xori, Xor:
		return a ^ b
	case Ori, Or:
		return a | b
	case Andi, And:
		return a & b
	case Slli, Sll:
		return a << (b & 0x1F)
	case Srli, Srl:
		return a >> (b & 0x1F)
	default: // Srai, Sra
		return uint32(int32(a) >> (b & 0x1F))
	}
}
