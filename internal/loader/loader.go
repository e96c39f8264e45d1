// Package loader handles program image loading operations.
package loader

import (
	"fmt"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrosim/internal/detector"
	"github.com/retroenv/retrosim/internal/platform"
)

// Compile-time check to ensure Loader implements platform.Loader.
var _ platform.Loader = (*Loader)(nil)

// Config contains the loader options.
type Config struct {
	Format detector.Format
	Base   uint32 // load address of raw images
	Region int    // memory region the image is loaded into
}

// Loader opens program images from disk.
type Loader struct {
	logger *log.Logger
	cfg    Config
}

// New creates a new program loader.
func New(logger *log.Logger, cfg Config) *Loader {
	return &Loader{
		logger: logger,
		cfg:    cfg,
	}
}

// Open opens a program image of the configured format.
func (l *Loader) Open(path string) (platform.Image, error) {
	switch l.cfg.Format {
	case detector.ELF:
		img, err := openELF(l.logger, path, l.cfg.Region)
		if err != nil {
			return nil, fmt.Errorf("opening ELF image: %w", err)
		}
		return img, nil

	case detector.Raw:
		img, err := openRaw(l.logger, path, l.cfg.Base, l.cfg.Region)
		if err != nil {
			return nil, fmt.Errorf("opening raw image: %w", err)
		}
		return img, nil

	default:
		return nil, fmt.Errorf("unsupported image format '%s'", l.cfg.Format)
	}
}
