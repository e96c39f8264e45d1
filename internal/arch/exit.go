package arch

import "github.com/retroenv/retrosim/internal/platform"

// ExitModule is a platform module that records the exit status of a
// simulated program.
type ExitModule interface {
	platform.Module

	// Exited returns the exit status and whether the program exited.
	Exited() (int32, bool)
}
