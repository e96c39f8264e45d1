// Package platform provides the shared hardware context of a simulation.
//
// A Platform owns the memory regions, the system environment and the module
// contexts that every state derived from it shares. Its lifetime is
// reference counted: every state holds one Handle and the platform is
// destroyed when the last handle is released.
package platform

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/retroenv/retrosim/internal/memory"
)

var (
	// ErrHandleReleased is returned when a platform handle is released twice.
	ErrHandleReleased = errors.New("platform handle already released")
	// ErrReleased is returned when a destroyed platform is used.
	ErrReleased = errors.New("platform already released")
	// ErrNoStackSlot is returned when every stack slot is claimed.
	ErrNoStackSlot = errors.New("no free stack slot")
)

// Config declares the resources of a platform.
type Config struct {
	Regions     []memory.Spec
	Modules     []Module
	Stack       StackConfig
	HaltAddress uint32 // address that ends a program, installed as return address
}

// Module is an architecture specific extension that keeps its own context
// in the platform.
type Module interface {
	// Name returns the module name.
	Name() string
	// Init is called once when the platform is created.
	Init(p *Platform) error
	// Destroy is called once when the platform is destroyed.
	Destroy(p *Platform)
}

// Platform is the shared hardware and software context of one or more states.
type Platform struct {
	regions []*memory.Region
	names   map[string]int
	env     *SysEnv
	modules []Module
	stack   StackConfig
	entry   uint32

	usage    atomic.Int32
	released atomic.Bool

	mu    sync.Mutex
	slots []bool
}

// New creates a platform with all declared memory regions and initialized
// modules. The new platform is not locked yet. On error everything created
// so far is released again.
func New(cfg Config) (*Platform, error) {
	if len(cfg.Regions) == 0 {
		return nil, errors.New("platform declares no memory region")
	}
	stack := cfg.Stack.withDefaults()
	if err := stack.validate(len(cfg.Regions)); err != nil {
		return nil, fmt.Errorf("invalid stack configuration: %w", err)
	}

	p := &Platform{
		names: make(map[string]int, len(cfg.Regions)),
		env:   &SysEnv{HaltAddress: cfg.HaltAddress},
		stack: stack,
		slots: make([]bool, stack.Slots),
	}

	for i, spec := range cfg.Regions {
		region, err := memory.New(spec)
		if err != nil {
			p.releaseRegions()
			return nil, fmt.Errorf("creating memory region %d: %w", i, err)
		}
		if _, ok := p.names[spec.Name]; ok {
			p.releaseRegions()
			return nil, fmt.Errorf("duplicate memory region '%s'", spec.Name)
		}
		p.names[spec.Name] = i
		p.regions = append(p.regions, region)
	}

	for _, module := range cfg.Modules {
		if err := module.Init(p); err != nil {
			p.destroyModules()
			p.releaseRegions()
			return nil, fmt.Errorf("initializing module '%s': %w", module.Name(), err)
		}
		p.modules = append(p.modules, module)
	}

	return p, nil
}

// Handle is one lock on a platform. Releasing the last handle destroys the
// platform.
type Handle struct {
	platform *Platform
	released atomic.Bool
}

// Lock acquires a new handle that keeps the platform alive until it is
// released. It returns nil for a nil or destroyed platform.
func (p *Platform) Lock() *Handle {
	if p == nil || p.released.Load() {
		return nil
	}
	p.usage.Add(1)
	return &Handle{platform: p}
}

// Platform returns the locked platform.
func (h *Handle) Platform() *Platform {
	if h == nil {
		return nil
	}
	return h.platform
}

// Release gives up the lock. Releasing the last lock runs the module
// teardown and frees the memory regions and the system environment.
func (h *Handle) Release() error {
	if h == nil {
		return nil
	}
	if !h.released.CompareAndSwap(false, true) {
		return ErrHandleReleased
	}
	return h.platform.unlock()
}

func (p *Platform) unlock() error {
	usage := p.usage.Add(-1)
	switch {
	case usage > 0:
		return nil
	case usage < 0:
		return ErrReleased
	}

	if !p.released.CompareAndSwap(false, true) {
		return ErrReleased
	}
	p.destroyModules()
	err := p.releaseRegions()
	p.env = nil
	return err
}

func (p *Platform) destroyModules() {
	for i := len(p.modules) - 1; i >= 0; i-- {
		p.modules[i].Destroy(p)
	}
	p.modules = nil
}

func (p *Platform) releaseRegions() error {
	var errs []error
	for _, region := range p.regions {
		if err := region.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Usage returns the number of held locks.
func (p *Platform) Usage() int32 {
	if p == nil {
		return 0
	}
	return p.usage.Load()
}

// Released returns whether the platform has been destroyed.
func (p *Platform) Released() bool {
	if p == nil {
		return true
	}
	return p.released.Load()
}

// Memory returns the memory region at index or nil.
func (p *Platform) Memory(index int) *memory.Region {
	if p == nil || p.released.Load() || index < 0 || index >= len(p.regions) {
		return nil
	}
	return p.regions[index]
}

// MemoryByName returns the memory region with the given name or nil.
func (p *Platform) MemoryByName(name string) *memory.Region {
	if p == nil {
		return nil
	}
	index, ok := p.names[name]
	if !ok {
		return nil
	}
	return p.Memory(index)
}

// MemoryCount returns the number of memory regions.
func (p *Platform) MemoryCount() int {
	if p == nil {
		return 0
	}
	return len(p.regions)
}

// SysEnv returns the system environment, meaningful once a program is loaded.
func (p *Platform) SysEnv() *SysEnv {
	if p == nil {
		return nil
	}
	return p.env
}

// Entry returns the program entry address.
func (p *Platform) Entry() uint32 {
	if p == nil {
		return 0
	}
	return p.entry
}

// SetEntry sets the program entry address.
func (p *Platform) SetEntry(address uint32) {
	if p != nil {
		p.entry = address
	}
}

// ModuleAs returns the first module of the platform with type T.
func ModuleAs[T Module](p *Platform) (T, bool) {
	var zero T
	if p == nil {
		return zero, false
	}
	for _, module := range p.modules {
		if m, ok := module.(T); ok {
			return m, true
		}
	}
	return zero, false
}
