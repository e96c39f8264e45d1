package rv32i

import (
	"github.com/retroenv/retrosim/internal/arch"
	"github.com/retroenv/retrosim/internal/decode"
)

// Instruction identities.
const (
	Lui decode.Ident = iota + 1
	Auipc
	Jal
	Jalr
	Beq
	Bne
	Blt
	Bge
	Bltu
	Bgeu
	Lb
	Lh
	Lw
	Lbu
	Lhu
	Sb
	Sh
	Sw
	Addi
	Slti
	Sltiu
	Xori
	Ori
	Andi
	Slli
	Srli
	Srai
	Add
	Sub
	Sll
	Slt
	Sltu
	Xor
	Srl
	Sra
	Or
	And
	Fence
	Ecall
	Ebreak
)

// Major opcodes, bits 6:0 of the instruction word.
const (
	opLoad   = 0x03
	opFence  = 0x0F
	opImm    = 0x13
	opAuipc  = 0x17
	opStore  = 0x23
	opReg    = 0x33
	opLui    = 0x37
	opBranch = 0x63
	opJalr   = 0x67
	opJal    = 0x6F
	opSystem = 0x73
)

// Instruction word field masks.
const (
	maskOpcode = 0x0000007F
	maskFunct3 = 0x00007000
	maskFunct7 = 0xFE000000
	maskBit20  = 0x00100000
)

var names = arch.Names{
	Lui:    "lui",
	Auipc:  "auipc",
	Jal:    "jal",
	Jalr:   "jalr",
	Beq:    "beq",
	Bne:    "bne",
	Blt:    "blt",
	Bge:    "bge",
	Bltu:   "bltu",
	Bgeu:   "bgeu",
	Lb:     "lb",
	Lh:     "lh",
	Lw:     "lw",
	Lbu:    "lbu",
	Lhu:    "lhu",
	Sb:     "sb",
	Sh:     "sh",
	Sw:     "sw",
	Addi:   "addi",
	Slti:   "slti",
	Sltiu:  "sltiu",
	Xori:   "xori",
	Ori:    "ori",
	Andi:   "andi",
	Slli:   "slli",
	Srli:   "srli",
	Srai:   "srai",
	Add:    "add",
	Sub:    "sub",
	Sll:    "sll",
	Slt:    "slt",
	Sltu:   "sltu",
	Xor:    "xor",
	Srl:    "srl",
	Sra:    "sra",
	Or:     "or",
	And:    "and",
	Fence:  "fence",
	Ecall:  "ecall",
	Ebreak: "ebreak",
}
