// Package config handles application configuration and setup
package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrosim/internal/arch"
	"github.com/retroenv/retrosim/internal/arch/rv32i"
)

// CreateLogger creates a logger with appropriate settings
func CreateLogger(debug, quiet bool) *log.Logger {
	cfg := log.DefaultConfig()
	if debug {
		cfg.Level = log.DebugLevel
	} else if quiet {
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}

// Architectures lists the names of the supported architectures.
var Architectures = []string{rv32i.Name}

// CreateArchitecture returns the architecture with the given name. Console
// output of simulated programs is written to output.
func CreateArchitecture(logger *log.Logger, name string, output io.Writer) (arch.Architecture, error) {
	switch strings.ToLower(name) {
	case rv32i.Name:
		return rv32i.New(logger, rv32i.WithOutput(output)), nil
	default:
		return nil, fmt.Errorf("unsupported architecture '%s'. Valid options: %s",
			name, strings.Join(Architectures, ", "))
	}
}
