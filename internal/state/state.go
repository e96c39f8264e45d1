// Package state implements the per thread of execution register file and
// its lifecycle on top of a shared platform.
package state

import (
	"errors"
	"fmt"

	"github.com/retroenv/retrosim/internal/memory"
	"github.com/retroenv/retrosim/internal/platform"
)

var (
	// ErrNoPlatform is returned when a state is created without a platform.
	ErrNoPlatform = errors.New("state has no platform")
	// ErrDeleted is returned when a deleted state is copied or forked.
	ErrDeleted = errors.New("state is deleted")
)

const noSlot = -1

// State is a register file bound to a locked platform.
type State struct {
	handle  *platform.Handle
	model   Model
	specs   []RegisterSpec
	regions []*memory.Region
	values  [][]uint64
	pc      RegID
	slot    int
}

// New creates a state on the platform. The register file is reset, the
// program counter is set to the platform entry address and the system
// environment is passed to the program. The state claims stack slot 0 if
// no other state holds it.
func New(pf *platform.Platform, m Model) (*State, error) {
	if pf == nil {
		return nil, ErrNoPlatform
	}
	if err := validateModel(m); err != nil {
		return nil, err
	}

	handle := pf.Lock()
	if handle == nil {
		return nil, fmt.Errorf("locking platform: %w", platform.ErrReleased)
	}

	s := &State{
		handle: handle,
		model:  m,
		specs:  m.Registers(),
		pc:     m.PCRegister(),
		slot:   noSlot,
	}
	s.values = make([][]uint64, len(s.specs))
	for i, spec := range s.specs {
		s.values[i] = make([]uint64, spec.elements())
	}
	s.regions = make([]*memory.Region, pf.MemoryCount())
	for i := range s.regions {
		s.regions[i] = pf.Memory(i)
	}

	m.Reset(s)
	s.SetPC(pf.Entry())
	if env := pf.SysEnv(); env != nil {
		m.FillEnv(env, s)
	}
	if pf.ClaimStackSlot(0) {
		s.slot = 0
	}
	return s, nil
}

// Copy returns a new state on the same platform with all register values
// copied. Memory regions are shared and no stack slot is claimed.
func (s *State) Copy() (*State, error) {
	if s == nil {
		return nil, ErrDeleted
	}
	return s.duplicate()
}

// Fork returns a copy of the state that runs on its own stack slot. Private
// registers pointing into the stack slot of the source are moved to the
// same offset in the new slot and the live stack contents are copied along.
// Only the private registers are rebased: frame pointers and return
// addresses saved inside the copied frames still point into the source slot.
func (s *State) Fork() (*State, error) {
	if s == nil {
		return nil, ErrDeleted
	}
	fork, err := s.duplicate()
	if err != nil {
		return nil, err
	}

	pf := fork.Platform()
	slot, err := pf.ClaimFreeStackSlot()
	if err != nil {
		_ = fork.handle.Release()
		return nil, fmt.Errorf("forking state: %w", err)
	}
	fork.slot = slot
	fork.relocate(pf)
	return fork, nil
}

func (s *State) duplicate() (*State, error) {
	if s.values == nil {
		return nil, ErrDeleted
	}
	handle := s.Platform().Lock()
	if handle == nil {
		return nil, fmt.Errorf("locking platform: %w", platform.ErrReleased)
	}

	dup := &State{
		handle:  handle,
		model:   s.model,
		specs:   s.specs,
		regions: s.regions,
		values:  make([][]uint64, len(s.values)),
		pc:      s.pc,
		slot:    noSlot,
	}
	for i, values := range s.values {
		dup.values[i] = append([]uint64(nil), values...)
	}
	return dup, nil
}

// relocate moves every private register of the state that points into
// another stack slot into the slot of the state, copying the stack bytes
// between the register value and the top of the source slot. Register
// values are classified as stack pointers, so the top of a slot belongs to
// that slot.
func (s *State) relocate(pf *platform.Platform) {
	stack := pf.StackMemory()
	size := int64(pf.Stack().Size)

	for _, ref := range s.model.PrivateRegisters() {
		value := uint32(s.GetAt(ref.Reg, ref.Index))
		source, ok := pf.StackPointerSlot(value)
		if !ok || source == s.slot {
			continue
		}
		_, sourceTop, _ := pf.StackSlot(source)

		moved := uint32(int64(value) - int64(s.slot-source)*size)
		live := make([]byte, sourceTop-value)
		stack.ReadBytes(value, live)
		stack.WriteBytes(moved, live)

		s.SetAt(ref.Reg, ref.Index, uint64(moved))
	}
}

// Delete releases the stack slot and the platform lock of the state. The
// platform is destroyed when this was its last state.
func (s *State) Delete() error {
	if s == nil {
		return nil
	}
	if s.slot != noSlot {
		s.Platform().ReleaseStackSlot(s.slot)
		s.slot = noSlot
	}
	s.values = nil
	return s.handle.Release()
}

// Platform returns the platform of the state.
func (s *State) Platform() *platform.Platform {
	if s == nil {
		return nil
	}
	return s.handle.Platform()
}

// Model returns the register model of the state.
func (s *State) Model() Model {
	return s.model
}

// Memory returns the memory region at index or nil.
func (s *State) Memory(index int) *memory.Region {
	if s == nil || index < 0 || index >= len(s.regions) {
		return nil
	}
	return s.regions[index]
}

// StackSlot returns the claimed stack slot of the state.
func (s *State) StackSlot() (int, bool) {
	if s == nil {
		return noSlot, false
	}
	return s.slot, s.slot != noSlot
}

// Get returns the value of a scalar register or the first element of an
// array register.
func (s *State) Get(reg RegID) uint64 {
	return s.GetAt(reg, 0)
}

// Set writes a scalar register, masked to the register width.
func (s *State) Set(reg RegID, value uint64) {
	s.SetAt(reg, 0, value)
}

// GetAt returns an element of an array register. Unknown registers read as 0.
func (s *State) GetAt(reg RegID, index int) uint64 {
	if int(reg) < 0 || int(reg) >= len(s.values) || index < 0 || index >= len(s.values[reg]) {
		return 0
	}
	return s.values[reg][index]
}

// SetAt writes an element of an array register, masked to the register
// width. Writes to unknown registers are ignored.
func (s *State) SetAt(reg RegID, index int, value uint64) {
	if int(reg) < 0 || int(reg) >= len(s.values) || index < 0 || index >= len(s.values[reg]) {
		return
	}
	s.values[reg][index] = value & s.specs[reg].mask()
}

// PC returns the program counter.
func (s *State) PC() uint32 {
	return uint32(s.Get(s.pc))
}

// SetPC sets the program counter.
func (s *State) SetPC(value uint32) {
	s.Set(s.pc, uint64(value))
}

// Register returns the id of the register with the given name.
func (s *State) Register(name string) (RegID, bool) {
	for i, spec := range s.specs {
		if spec.Name == name {
			return RegID(i), true
		}
	}
	return 0, false
}
