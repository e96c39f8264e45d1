// Package writer implements writing of executed instructions as an
// assembly like trace.
package writer

import (
	"fmt"
	"io"
	"strings"

	"github.com/retroenv/retrosim/internal/decode"
)

// NameFunc returns the mnemonic of an instruction identity.
type NameFunc func(id decode.Ident) string

// Options of the writer.
type Options struct {
	HexComments    bool // output the instruction words as comment
	OffsetComments bool // output the instruction address as comment
}

// Writer writes one line per executed instruction.
type Writer struct {
	name    NameFunc
	options Options
	writer  io.Writer
}

// New creates a new writer.
func New(name NameFunc, writer io.Writer, options Options) *Writer {
	return &Writer{
		name:    name,
		options: options,
		writer:  writer,
	}
}

// Trace writes the instruction as a code line.
func (w *Writer) Trace(inst *decode.Instruction) error {
	code := w.code(inst)
	comment := w.comment(inst)

	if comment == "" {
		if _, err := fmt.Fprintf(w.writer, "  %s\n", code); err != nil {
			return fmt.Errorf("writing line: %w", err)
		}
		return nil
	}

	if _, err := fmt.Fprintf(w.writer, "  %-30s ; %s\n", code, comment); err != nil {
		return fmt.Errorf("writing line: %w", err)
	}
	return nil
}

// code returns the mnemonic followed by the output and input operands.
func (w *Writer) code(inst *decode.Instruction) string {
	operands := make([]string, 0, len(inst.Outputs)+len(inst.Inputs))
	for _, op := range inst.Outputs {
		operands = append(operands, formatOperand(op))
	}
	for _, op := range inst.Inputs {
		operands = append(operands, formatOperand(op))
	}

	if len(operands) == 0 {
		return w.name(inst.Ident)
	}
	return fmt.Sprintf("%-8s%s", w.name(inst.Ident), strings.Join(operands, ", "))
}

func (w *Writer) comment(inst *decode.Instruction) string {
	var parts []string
	if w.options.OffsetComments {
		parts = append(parts, fmt.Sprintf("$%08X", inst.Address))
	}
	if w.options.HexComments {
		words := make([]string, len(inst.Words))
		for i, word := range inst.Words {
			words[i] = fmt.Sprintf("%08x", word)
		}
		parts = append(parts, strings.Join(words, " "))
	}
	return strings.Join(parts, "  ")
}

func formatOperand(op decode.Operand) string {
	switch op.Kind {
	case decode.RegisterOperand:
		return fmt.Sprintf("r%d", op.Value)
	case decode.ImmediateOperand:
		return fmt.Sprintf("%d", op.Signed())
	case decode.AddressOperand:
		return fmt.Sprintf("$%08X", op.Value)
	default:
		return "?"
	}
}
