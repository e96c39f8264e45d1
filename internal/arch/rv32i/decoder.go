package rv32i

import (
	"github.com/retroenv/retrosim/internal/decode"
)

// newTrie builds the decode trie. The root splits on the major opcode,
// the second level on funct3 and a third level on funct7 where the
// encoding needs it.
func newTrie() *decode.Node {
	branch := funct3(map[uint32]decode.Ident{0: Beq, 1: Bne, 4: Blt, 5: Bge, 6: Bltu, 7: Bgeu})
	load := funct3(map[uint32]decode.Ident{0: Lb, 1: Lh, 2: Lw, 4: Lbu, 5: Lhu})
	store := funct3(map[uint32]decode.Ident{0: Sb, 1: Sh, 2: Sw})

	imm := funct3(map[uint32]decode.Ident{0: Addi, 2: Slti, 3: Sltiu, 4: Xori, 6: Ori, 7: Andi})
	imm.Set(1, decode.Internal(funct7(map[uint32]decode.Ident{0x00: Slli})))
	imm.Set(5, decode.Internal(funct7(map[uint32]decode.Ident{0x00: Srli, 0x20: Srai})))

	reg := decode.MustNode(maskFunct3).
		Set(0, decode.Internal(funct7(map[uint32]decode.Ident{0x00: Add, 0x20: Sub}))).
		Set(1, decode.Internal(funct7(map[uint32]decode.Ident{0x00: Sll}))).
		Set(2, decode.Internal(funct7(map[uint32]decode.Ident{0x00: Slt}))).
		Set(3, decode.Internal(funct7(map[uint32]decode.Ident{0x00: Sltu}))).
		Set(4, decode.Internal(funct7(map[uint32]decode.Ident{0x00: Xor}))).
		Set(5, decode.Internal(funct7(map[uint32]decode.Ident{0x00: Srl, 0x20: Sra}))).
		Set(6, decode.Internal(funct7(map[uint32]decode.Ident{0x00: Or}))).
		Set(7, decode.Internal(funct7(map[uint32]decode.Ident{0x00: And})))

	system := decode.MustNode(maskFunct3).
		Set(0, decode.Internal(decode.MustNode(maskBit20).
			Set(0, decode.Leaf(Ecall)).
			Set(1, decode.Leaf(Ebreak))))

	return decode.MustNode(maskOpcode).
		Set(opLui, decode.Leaf(Lui)).
		Set(opAuipc, decode.Leaf(Auipc)).
		Set(opJal, decode.Leaf(Jal)).
		Set(opJalr, decode.Internal(funct3(map[uint32]decode.Ident{0: Jalr}))).
		Set(opBranch, decode.Internal(branch)).
		Set(opLoad, decode.Internal(load)).
		Set(opStore, decode.Internal(store)).
		Set(opImm, decode.Internal(imm)).
		Set(opReg, decode.Internal(reg)).
		Set(opFence, decode.Internal(funct3(map[uint32]decode.Ident{0: Fence}))).
		Set(opSystem, decode.Internal(system))
}

func funct3(leaves map[uint32]decode.Ident) *decode.Node {
	return leafNode(maskFunct3, leaves)
}

func funct7(leaves map[uint32]decode.Ident) *decode.Node {
	return leafNode(maskFunct7, leaves)
}

func leafNode(mask uint32, leaves map[uint32]decode.Ident) *decode.Node {
	n := decode.MustNode(mask)
	for value, id := range leaves {
		n.Set(value, decode.Leaf(id))
	}
	return n
}

// Root returns the root of the decode trie.
func (a *RV32I) Root() *decode.Node {
	return a.root
}

// Words returns the number of instruction words read per fetch.
func (a *RV32I) Words() int {
	return 1
}

// Operands returns the register and immediate operands of an instruction.
//
// Inputs are ordered rs1, rs2, immediate; outputs hold rd.
func (a *RV32I) Operands(id decode.Ident, words []uint32) ([]decode.Operand, []decode.Operand) {
	w := words[0]
	rd := decode.Reg((w >> 7) & 0x1F)
	rs1 := decode.Reg((w >> 15) & 0x1F)
	rs2 := decode.Reg((w >> 20) & 0x1F)

	switch id {
	case Lui, Auipc:
		return []decode.Operand{decode.Imm(immU(w))}, []decode.Operand{rd}
	case Jal:
		return []decode.Operand{decode.Imm(immJ(w))}, []decode.Operand{rd}
	case Jalr, Lb, Lh, Lw, Lbu, Lhu, Addi, Slti, Sltiu, Xori, Ori, Andi:
		return []decode.Operand{rs1, decode.Imm(immI(w))}, []decode.Operand{rd}
	case Slli, Srli, Srai:
		return []decode.Operand{rs1, decode.Imm(int32((w >> 20) & 0x1F))}, []decode.Operand{rd}
	case Beq, Bne, Blt, Bge, Bltu, Bgeu:
		return []decode.Operand{rs1, rs2, decode.Imm(immB(w))}, nil
	case Sb, Sh, Sw:
		return []decode.Operand{rs1, rs2, decode.Imm(immS(w))}, nil
	case Add, Sub, Sll, Slt, Sltu, Xor, Srl, Sra, Or, And:
		return []decode.Operand{rs1, rs2}, []decode.Operand{rd}
	default:
		return nil, nil
	}
}

func immI(w uint32) int32 {
	return int32(w) >> 20
}

func immS(w uint32) int32 {
	return int32(w)>>25<<5 | int32((w>>7)&0x1F)
}

func immB(w uint32) int32 {
	imm := (w>>31&1)<<12 | (w>>7&1)<<11 | (w>>25&0x3F)<<5 | (w>>8&0xF)<<1
	return int32(imm<<19) >> 19
}

func immU(w uint32) int32 {
	return int32(w & 0xFFFFF000)
}

func immJ(w uint32) int32 {
	imm := (w>>31&1)<<20 | (w>>12&0xFF)<<12 | (w>>20&1)<<11 | (w>>21&0x3FF)<<1
	return int32(imm<<11) >> 11
}
