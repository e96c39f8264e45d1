package decode

// Ident identifies an instruction of an architecture. Every architecture
// enumerates its own identities starting at 1.
type Ident uint16

// Unknown is the identity of an encoding that has not been decoded.
const Unknown Ident = 0

// OperandKind is the type of a decoded operand.
type OperandKind uint8

// Operand kinds.
const (
	NoOperand OperandKind = iota
	RegisterOperand
	ImmediateOperand
	AddressOperand
)

func (k OperandKind) String() string {
	switch k {
	case RegisterOperand:
		return "register"
	case ImmediateOperand:
		return "immediate"
	case AddressOperand:
		return "address"
	default:
		return "none"
	}
}

// Operand is a typed instruction operand. Register operands hold the
// register number, immediates hold the two's complement value.
type Operand struct {
	Kind  OperandKind
	Value uint32
}

// Reg returns a register operand.
func Reg(number uint32) Operand {
	return Operand{Kind: RegisterOperand, Value: number}
}

// Imm returns an immediate operand.
func Imm(value int32) Operand {
	return Operand{Kind: ImmediateOperand, Value: uint32(value)}
}

// Signed returns the operand value interpreted as a signed immediate.
func (o Operand) Signed() int32 {
	return int32(o.Value)
}

// Instruction is a decoded instruction. Instructions returned by a cached
// engine are shared and must be treated as read only.
type Instruction struct {
	Ident   Ident
	Address uint32
	Words   []uint32
	Inputs  []Operand
	Outputs []Operand

	slot int32 // pool slot of an uncached instruction, -1 otherwise
}

// Input returns the input operand at index i or an empty operand.
func (inst *Instruction) Input(i int) Operand {
	if i < 0 || i >= len(inst.Inputs) {
		return Operand{}
	}
	return inst.Inputs[i]
}

// Output returns the output operand at index i or an empty operand.
func (inst *Instruction) Output(i int) Operand {
	if i < 0 || i >= len(inst.Outputs) {
		return Operand{}
	}
	return inst.Outputs[i]
}
