// Package sim implements the simulation loop that fetches, decodes and
// executes instructions of one state.
package sim

import (
	"context"
	"errors"
	"fmt"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrosim/internal/arch"
	"github.com/retroenv/retrosim/internal/decode"
	"github.com/retroenv/retrosim/internal/state"
)

// ErrStepLimit is returned by Run when the step limit is reached before the
// program ended.
var ErrStepLimit = errors.New("step limit reached")

// ErrNoSimulator is returned when a nil simulator is used.
var ErrNoSimulator = errors.New("no simulator")

// Tracer receives every instruction before it is executed.
type Tracer interface {
	Trace(inst *decode.Instruction) error
}

type options struct {
	logger    *log.Logger
	tracer    Tracer
	decodeCfg decode.Config
	start     uint32
	hasStart  bool
	exit      uint32
	hasExit   bool
}

// Option configures a simulator.
type Option func(*options)

// WithStart overwrites the program counter of the state.
func WithStart(address uint32) Option {
	return func(o *options) {
		o.start = address
		o.hasStart = true
	}
}

// WithExit sets the address at which the simulation ends.
func WithExit(address uint32) Option {
	return func(o *options) {
		o.exit = address
		o.hasExit = true
	}
}

// WithDecodeConfig sets the decode engine configuration.
func WithDecodeConfig(cfg decode.Config) Option {
	return func(o *options) {
		o.decodeCfg = cfg
	}
}

// WithTracer sets a tracer that receives the executed instructions.
func WithTracer(tracer Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Simulator runs one state. It is not safe for concurrent use.
type Simulator struct {
	logger *log.Logger
	tracer Tracer
	arch   arch.Architecture
	state  *state.State
	engine *decode.Engine

	exit    uint32
	hasExit bool
	steps   uint64
}

// New creates a simulator that owns the state. The decode engine reads
// instructions from the code region of the architecture.
func New(st *state.State, a arch.Architecture, opts ...Option) (*Simulator, error) {
	if st == nil {
		return nil, errors.New("simulator has no state")
	}
	if a == nil {
		return nil, errors.New("simulator has no architecture")
	}

	o := options{decodeCfg: decode.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}

	code := st.Memory(a.CodeRegion())
	if code == nil {
		return nil, fmt.Errorf("code memory region %d does not exist", a.CodeRegion())
	}
	engine, err := decode.New(o.logger, code, a, o.decodeCfg)
	if err != nil {
		return nil, fmt.Errorf("creating decode engine: %w", err)
	}

	if o.hasStart {
		st.SetPC(o.start)
	}

	return &Simulator{
		logger:  o.logger,
		tracer:  o.tracer,
		arch:    a,
		state:   st,
		engine:  engine,
		exit:    o.exit,
		hasExit: o.hasExit,
	}, nil
}

// Next returns the decoded instruction at the program counter without
// changing the state.
func (s *Simulator) Next() (*decode.Instruction, error) {
	if s == nil {
		return nil, ErrNoSimulator
	}
	return s.engine.Fetch(s.state.PC())
}

// Step executes the instruction at the program counter. It does not check
// whether the simulation has ended.
func (s *Simulator) Step() error {
	if s == nil {
		return ErrNoSimulator
	}
	inst, err := s.Next()
	if err != nil {
		return fmt.Errorf("decoding instruction: %w", err)
	}
	defer s.engine.Free(inst)

	if s.logger != nil {
		s.logger.Debug("Executing instruction",
			log.Hex("address", inst.Address),
			log.String("instruction", s.arch.Names().Name(inst.Ident)))
	}

	if s.tracer != nil {
		if err := s.tracer.Trace(inst); err != nil {
			return fmt.Errorf("tracing instruction: %w", err)
		}
	}

	if err := s.arch.Execute(s.state, inst); err != nil {
		return fmt.Errorf("executing '%s' at 0x%08X: %w", s.arch.Names().Name(inst.Ident), inst.Address, err)
	}
	s.steps++
	return nil
}

// IsEnded returns whether an exit address is set and the program counter
// reached it.
func (s *Simulator) IsEnded() bool {
	if s == nil {
		return false
	}
	return s.hasExit && s.state.PC() == s.exit
}

// Run steps until the simulation ended, the context is canceled, the step
// limit is reached or a step fails. A limit of 0 disables the limit. It
// returns the number of executed steps.
func (s *Simulator) Run(ctx context.Context, limit uint64) (uint64, error) {
	if s == nil {
		return 0, ErrNoSimulator
	}
	var steps uint64
	for !s.IsEnded() {
		if err := ctx.Err(); err != nil {
			return steps, fmt.Errorf("simulation interrupted: %w", err)
		}
		if limit > 0 && steps == limit {
			return steps, fmt.Errorf("%w: %d steps at 0x%08X", ErrStepLimit, steps, s.state.PC())
		}
		if err := s.Step(); err != nil {
			return steps, err
		}
		steps++
	}
	return steps, nil
}

// Delete halts the decode engine and deletes the state.
func (s *Simulator) Delete() error {
	if s == nil {
		return nil
	}
	s.engine.Halt()
	return s.state.Delete()
}

// Engine returns the decode engine.
func (s *Simulator) Engine() *decode.Engine {
	if s == nil {
		return nil
	}
	return s.engine
}

// State returns the simulated state.
func (s *Simulator) State() *state.State {
	if s == nil {
		return nil
	}
	return s.state
}

// Steps returns the number of executed instructions.
func (s *Simulator) Steps() uint64 {
	if s == nil {
		return 0
	}
	return s.steps
}

// Exit returns the exit address and whether it is set.
func (s *Simulator) Exit() (uint32, bool) {
	if s == nil {
		return 0, false
	}
	return s.exit, s.hasExit
}
