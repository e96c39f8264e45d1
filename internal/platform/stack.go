package platform

import (
	"errors"
	"fmt"

	"github.com/retroenv/retrosim/internal/memory"
)

// Default stack layout values.
const (
	DefaultStackTop   = 0x7FFF0000
	DefaultStackSize  = 0x00100000
	DefaultStackSlots = 8
)

// StackConfig describes the stack slots of a platform. Slot k covers
// [Top-(k+1)*Size, Top-k*Size) of the stack memory region. Slot 0 holds
// the stack built by the program loader, forked states claim the others.
type StackConfig struct {
	Region int    // memory region index of the stack
	Top    uint32 // exclusive end address of slot 0
	Size   uint32 // bytes per slot
	Slots  int
}

func (c StackConfig) withDefaults() StackConfig {
	if c.Top == 0 {
		c.Top = DefaultStackTop
	}
	if c.Size == 0 {
		c.Size = DefaultStackSize
	}
	if c.Slots == 0 {
		c.Slots = DefaultStackSlots
	}
	return c
}

func (c StackConfig) validate(regions int) error {
	if c.Region < 0 || c.Region >= regions {
		return fmt.Errorf("stack region %d does not exist", c.Region)
	}
	if c.Slots < 0 {
		return fmt.Errorf("invalid stack slot count %d", c.Slots)
	}
	if uint64(c.Size)*uint64(c.Slots) > uint64(c.Top) {
		return errors.New("stack slots extend below address 0")
	}
	return nil
}

// Stack returns the stack configuration.
func (p *Platform) Stack() StackConfig {
	if p == nil {
		return StackConfig{}
	}
	return p.stack
}

// StackMemory returns the memory region holding the stack.
func (p *Platform) StackMemory() *memory.Region {
	if p == nil {
		return nil
	}
	return p.Memory(p.stack.Region)
}

// StackSlot returns the address range [low, high) of a stack slot.
func (p *Platform) StackSlot(slot int) (low, high uint32, ok bool) {
	if p == nil || slot < 0 || slot >= p.stack.Slots {
		return 0, 0, false
	}
	high = p.stack.Top - uint32(slot)*p.stack.Size
	return high - p.stack.Size, high, true
}

// SlotOf returns the stack slot that contains address.
func (p *Platform) SlotOf(address uint32) (int, bool) {
	if p == nil || address >= p.stack.Top {
		return 0, false
	}
	slot := int((p.stack.Top - address - 1) / p.stack.Size)
	if slot >= p.stack.Slots {
		return 0, false
	}
	return slot, true
}

// StackPointerSlot returns the stack slot of a downward growing stack
// pointer. The top of a slot is an empty stack of that slot, not of the
// slot above it.
func (p *Platform) StackPointerSlot(sp uint32) (int, bool) {
	if sp == 0 {
		return 0, false
	}
	return p.SlotOf(sp - 1)
}

// ClaimStackSlot claims a specific stack slot and reports whether it was free.
func (p *Platform) ClaimStackSlot(slot int) bool {
	if p == nil || slot < 0 || slot >= len(p.slots) {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.slots[slot] {
		return false
	}
	p.slots[slot] = true
	return true
}

// ClaimFreeStackSlot claims the lowest free stack slot.
func (p *Platform) ClaimFreeStackSlot() (int, error) {
	if p == nil {
		return 0, ErrReleased
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	for slot, claimed := range p.slots {
		if !claimed {
			p.slots[slot] = true
			return slot, nil
		}
	}
	return 0, fmt.Errorf("%w: all %d slots claimed", ErrNoStackSlot, len(p.slots))
}

// ReleaseStackSlot makes a claimed stack slot available again.
func (p *Platform) ReleaseStackSlot(slot int) {
	if p == nil || slot < 0 || slot >= len(p.slots) {
		return
	}
	p.mu.Lock()
	p.slots[slot] = false
	p.mu.Unlock()
}
