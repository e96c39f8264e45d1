package platform

import (
	"errors"
	"fmt"
)

// SysEnv is the system environment handed to a loaded program.
type SysEnv struct {
	Argv []string
	Envp []string

	StackPointer uint32 // initial stack pointer after the loader built the stack
	ArgvAddress  uint32
	EnvpAddress  uint32
	HaltAddress  uint32
}

// Argc returns the number of program arguments.
func (e *SysEnv) Argc() uint32 {
	return uint32(len(e.Argv))
}

// Loader opens program images.
type Loader interface {
	Open(path string) (Image, error)
}

// Image is an opened program image.
type Image interface {
	// Load copies the program segments into the platform memory.
	Load(p *Platform) error
	// Entry returns the program entry address.
	Entry() uint32
	// FillEnv builds the initial stack and fills the system environment.
	FillEnv(p *Platform, env *SysEnv) error
	// Close releases the image.
	Close() error
}

// Load loads a program into the platform memory and fills the system
// environment. On error the platform stays valid and can be destroyed
// normally.
func (p *Platform) Load(loader Loader, path string) (err error) {
	if p == nil || p.released.Load() {
		return ErrReleased
	}
	if loader == nil {
		return errors.New("no program loader")
	}

	img, err := loader.Open(path)
	if err != nil {
		return fmt.Errorf("opening program '%s': %w", path, err)
	}
	defer func() {
		if closeErr := img.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing program '%s': %w", path, closeErr)
		}
	}()

	if err := img.Load(p); err != nil {
		return fmt.Errorf("loading program '%s': %w", path, err)
	}
	p.entry = img.Entry()

	if err := img.FillEnv(p, p.env); err != nil {
		return fmt.Errorf("building program environment: %w", err)
	}
	return nil
}
