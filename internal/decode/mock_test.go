package decode

// Test instruction set:
//
//	111111.. ........ ........ ........  opX
//	000001.. ........ ........ ......00  opAdd
//	000001.. ........ ........ ......01  opSub
//	000010.. ........ ........ ........  opLong, two words
const (
	opX Ident = iota + 1
	opAdd
	opSub
	opLong
)

type mockMemory map[uint32]uint32

func (m mockMemory) Read32(address uint32) uint32 {
	return m[address]
}

type mockDecoder struct {
	root  *Node
	words int
}

func newMockDecoder() *mockDecoder {
	alu := MustNode(0x00000003).
		Set(0, Leaf(opAdd)).
		Set(1, Leaf(opSub))

	root := MustNode(0xFC000000).
		Set(0x3F, Leaf(opX)).
		Set(0x01, Internal(alu)).
		Set(0x02, Leaf(opLong))

	return &mockDecoder{root: root, words: 1}
}

func (d *mockDecoder) Root() *Node {
	return d.root
}

func (d *mockDecoder) Words() int {
	return d.words
}

func (d *mockDecoder) Operands(id Ident, words []uint32) ([]Operand, []Operand) {
	switch id {
	case opAdd, opSub:
		return []Operand{Reg((words[0] >> 16) & 0x1F), Reg((words[0] >> 11) & 0x1F)},
			[]Operand{Reg((words[0] >> 21) & 0x1F)}
	case opLong:
		if len(words) > 1 {
			return []Operand{Imm(int32(words[1]))}, nil
		}
	}
	return nil, nil
}
