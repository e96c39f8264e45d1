// Package detector handles program image format detection.
package detector

import (
	"bytes"
	"debug/elf"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrosim/internal/options"
)

// Format is a program image format.
type Format string

// Supported image formats.
const (
	ELF Format = "elf"
	Raw Format = "raw"
)

// Detector handles image format detection from file contents, extensions and options.
type Detector struct {
	logger *log.Logger
}

// New creates a new format detector.
func New(logger *log.Logger) *Detector {
	return &Detector{
		logger: logger,
	}
}

// Detect determines the image format from options or file auto-detection.
// An explicitly specified format wins, otherwise the ELF magic of the file
// is checked, followed by the file extension. Unknown files are treated as
// raw images.
func (d *Detector) Detect(opts options.Program) Format {
	if opts.Format != "" {
		return Format(strings.ToLower(opts.Format))
	}

	format := d.detectFromFile(opts.Input)
	d.logger.Debug("Auto-detected image format",
		log.String("format", string(format)),
		log.String("file", opts.Input))
	return format
}

// detectFromFile determines the image format based on the file magic or extension.
func (d *Detector) detectFromFile(filename string) Format {
	if hasELFMagic(filename) {
		return ELF
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".elf":
		return ELF
	default:
		return Raw
	}
}

func hasELFMagic(filename string) bool {
	file, err := os.Open(filename)
	if err != nil {
		return false
	}
	defer func() { _ = file.Close() }()

	magic := make([]byte, len(elf.ELFMAG))
	if _, err := io.ReadFull(file, magic); err != nil {
		return false
	}
	return bytes.Equal(magic, []byte(elf.ELFMAG))
}
