package state

import (
	"bufio"
	"fmt"
	"io"
)

// Dump writes every register in declaration order to w. Scalar registers
// are written as one line, array registers as a header line followed by one
// line per element.
func (s *State) Dump(w io.Writer) error {
	if s == nil || s.values == nil {
		return ErrDeleted
	}

	buf := bufio.NewWriter(w)
	for i, spec := range s.specs {
		digits := (spec.Width + 3) / 4
		values := s.values[i]

		if !spec.IsArray() {
			if _, err := fmt.Fprintf(buf, "%s = 0x%0*X\n", spec.Name, digits, values[0]); err != nil {
				return fmt.Errorf("writing register '%s': %w", spec.Name, err)
			}
			continue
		}

		if _, err := fmt.Fprintf(buf, "%s[%d]:\n", spec.Name, spec.Count); err != nil {
			return fmt.Errorf("writing register '%s': %w", spec.Name, err)
		}
		for j, value := range values {
			if _, err := fmt.Fprintf(buf, "\t[%d] = 0x%0*X\n", j, digits, value); err != nil {
				return fmt.Errorf("writing register '%s[%d]': %w", spec.Name, j, err)
			}
		}
	}

	if err := buf.Flush(); err != nil {
		return fmt.Errorf("flushing register dump: %w", err)
	}
	return nil
}
