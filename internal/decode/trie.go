package decode

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/retroenv/retrogolib/set"
)

const (
	// MaxDepth is the deepest trie a decode walk follows.
	MaxDepth = 64
	// MaxFieldBits limits the number of mask bits of a single node, which
	// bounds the size of its entry table.
	MaxFieldBits = 20
)

// EntryKind tags a decode table entry.
type EntryKind uint8

// Entry kinds. The zero value marks an encoding without an instruction.
const (
	NoEntry EntryKind = iota
	LeafEntry
	InternalEntry
)

// Entry is a decode table slot: either a leaf carrying an instruction
// identity or an internal entry pointing to a child node.
type Entry struct {
	kind  EntryKind
	ident Ident
	child *Node
}

// Leaf returns an entry resolving to the given instruction identity.
func Leaf(id Ident) Entry {
	return Entry{kind: LeafEntry, ident: id}
}

// Internal returns an entry that continues decoding at child.
func Internal(child *Node) Entry {
	return Entry{kind: InternalEntry, child: child}
}

// Kind returns the entry tag.
func (e Entry) Kind() EntryKind {
	return e.kind
}

// Ident returns the identity of a leaf entry.
func (e Entry) Ident() Ident {
	return e.ident
}

// Child returns the child node of an internal entry.
func (e Entry) Child() *Node {
	return e.child
}

// Node is a decision node of the decode trie. The mask selects the bits of
// the instruction words that index the entry table.
type Node struct {
	mask  []uint32
	table []Entry
	shift int // right shift for a single contiguous field, -1 otherwise
}

// NewNode returns a node with an empty entry table sized for the mask.
// The mask holds one element per instruction word it spans.
func NewNode(mask ...uint32) (*Node, error) {
	if len(mask) == 0 {
		return nil, errors.New("decode node mask is empty")
	}

	var count int
	for _, m := range mask {
		count += bits.OnesCount32(m)
	}
	if count == 0 {
		return nil, errors.New("decode node mask selects no bits")
	}
	if count > MaxFieldBits {
		return nil, fmt.Errorf("decode node mask selects %d bits, maximum is %d", count, MaxFieldBits)
	}

	n := &Node{
		mask:  append([]uint32(nil), mask...),
		table: make([]Entry, 1<<count),
		shift: -1,
	}
	if len(mask) == 1 && contiguous(mask[0]) {
		n.shift = bits.TrailingZeros32(mask[0])
	}
	return n, nil
}

// MustNode is like NewNode but panics on an invalid mask. It is intended for
// decode tables built at package initialization.
func MustNode(mask ...uint32) *Node {
	n, err := NewNode(mask...)
	if err != nil {
		panic(err)
	}
	return n
}

// Set stores the entry for an extracted field value and returns the node.
// It panics if the value does not fit the entry table.
func (n *Node) Set(value uint32, e Entry) *Node {
	if int(value) >= len(n.table) {
		panic(fmt.Sprintf("decode: value 0x%X outside table of %d entries", value, len(n.table)))
	}
	n.table[value] = e
	return n
}

// Mask returns a copy of the node mask.
func (n *Node) Mask() []uint32 {
	return append([]uint32(nil), n.mask...)
}

// Len returns the size of the entry table.
func (n *Node) Len() int {
	return len(n.table)
}

// Entry returns the entry for an extracted field value.
func (n *Node) Entry(value uint32) Entry {
	if int(value) >= len(n.table) {
		return Entry{}
	}
	return n.table[value]
}

func (n *Node) extract(words []uint32) uint32 {
	if n.shift >= 0 {
		if len(words) == 0 {
			return 0
		}
		return (words[0] & n.mask[0]) >> n.shift
	}
	return Extract(words, n.mask)
}

// Extract concatenates the bits of words selected by mask, reading every
// word from its most significant to its least significant bit and the words
// in order. Missing words read as zero.
func Extract(words, mask []uint32) uint32 {
	var result uint32
	for i, m := range mask {
		var word uint32
		if i < len(words) {
			word = words[i]
		}

		for m != 0 {
			bit := 31 - bits.LeadingZeros32(m)
			result = result<<1 | (word>>bit)&1
			m &^= 1 << bit
		}
	}
	return result
}

// Validate checks that the trie below root is a tree of well formed nodes:
// every table matches its mask, no node is reachable twice, leaves carry a
// known identity and the depth stays within MaxDepth.
func Validate(root *Node) error {
	if root == nil {
		return errors.New("decode trie has no root")
	}
	visited := set.New[*Node]()
	return validateNode(root, 1, visited)
}

func validateNode(n *Node, depth int, visited set.Set[*Node]) error {
	if depth > MaxDepth {
		return fmt.Errorf("decode trie deeper than %d levels", MaxDepth)
	}
	if visited.Contains(n) {
		return fmt.Errorf("decode node with mask %08X is reachable more than once", n.mask)
	}
	visited.Add(n)

	var count int
	for _, m := range n.mask {
		count += bits.OnesCount32(m)
	}
	if len(n.table) != 1<<count {
		return fmt.Errorf("decode node with mask %08X has %d entries, expected %d", n.mask, len(n.table), 1<<count)
	}

	for value, e := range n.table {
		switch e.kind {
		case LeafEntry:
			if e.ident == Unknown {
				return fmt.Errorf("decode node with mask %08X has an unknown leaf at 0x%X", n.mask, value)
			}
		case InternalEntry:
			if e.child == nil {
				return fmt.Errorf("decode node with mask %08X has an empty internal entry at 0x%X", n.mask, value)
			}
			if err := validateNode(e.child, depth+1, visited); err != nil {
				return err
			}
		}
	}
	return nil
}

// contiguous reports whether the set bits of m form a single run.
func contiguous(m uint32) bool {
	if m == 0 {
		return false
	}
	m >>= bits.TrailingZeros32(m)
	return m&(m+1) == 0
}
