// Package pipeline orchestrates the simulation workflow stages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrosim/internal/arch"
	"github.com/retroenv/retrosim/internal/config"
	"github.com/retroenv/retrosim/internal/decode"
	"github.com/retroenv/retrosim/internal/detector"
	"github.com/retroenv/retrosim/internal/loader"
	"github.com/retroenv/retrosim/internal/options"
	"github.com/retroenv/retrosim/internal/platform"
	"github.com/retroenv/retrosim/internal/sim"
	"github.com/retroenv/retrosim/internal/state"
	"github.com/retroenv/retrosim/internal/writer"
)

// Result contains the outcome of a simulation.
type Result struct {
	Steps      uint64
	Exited     bool  // program called the exit system call
	ExitStatus int32 // exit status if the program exited
	Stats      decode.Stats
}

// Pipeline orchestrates the complete simulation workflow.
type Pipeline struct {
	logger   *log.Logger
	detector *detector.Detector
}

// New creates a new simulation pipeline.
func New(logger *log.Logger) *Pipeline {
	return &Pipeline{
		logger:   logger,
		detector: detector.New(logger),
	}
}

// Execute loads the program image and simulates it until it ends. Console
// output of the program and the optional register dump are written to out.
func (p *Pipeline) Execute(ctx context.Context, opts options.Program, simOpts options.Simulation, out io.Writer) (*Result, error) {
	// Detect image format
	format := p.detector.Detect(opts)

	a, err := config.CreateArchitecture(p.logger, opts.Arch, out)
	if err != nil {
		return nil, fmt.Errorf("creating architecture: %w", err)
	}

	st, err := p.createState(opts, simOpts, a, format)
	if err != nil {
		return nil, err
	}

	s, err := p.createSimulator(st, a, opts, simOpts, out)
	if err != nil {
		_ = st.Delete()
		return nil, fmt.Errorf("creating simulator: %w", err)
	}
	defer func() {
		if err := s.Delete(); err != nil {
			p.logger.Error("Deleting simulator failed", log.Err(err))
		}
	}()

	return p.run(ctx, opts, simOpts, s, out)
}

// createState creates the platform, loads the program and creates the
// initial state.
func (p *Pipeline) createState(opts options.Program, simOpts options.Simulation,
	a arch.Architecture, format detector.Format) (*state.State, error) {

	cfg := a.Platform()
	if simOpts.Stack.Size != 0 {
		cfg.Stack.Size = simOpts.Stack.Size
	}
	if simOpts.Stack.Slots != 0 {
		cfg.Stack.Slots = simOpts.Stack.Slots
	}

	pf, err := platform.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating platform: %w", err)
	}
	// the platform is released with the last state, keep it alive while loading
	handle := pf.Lock()
	defer func() { _ = handle.Release() }()

	pf.SysEnv().Argv = opts.Args

	l := loader.New(p.logger, loader.Config{
		Format: format,
		Base:   simOpts.Base,
		Region: a.CodeRegion(),
	})
	if err := pf.Load(l, opts.Input); err != nil {
		return nil, fmt.Errorf("loading program: %w", err)
	}

	if !opts.Quiet {
		p.logger.Info("Loaded program",
			log.String("file", opts.Input),
			log.String("format", string(format)),
			log.String("arch", a.Name()),
			log.Hex("entry", pf.Entry()))
	}

	st, err := state.New(pf, a)
	if err != nil {
		return nil, fmt.Errorf("creating state: %w", err)
	}
	return st, nil
}

func (p *Pipeline) createSimulator(st *state.State, a arch.Architecture, opts options.Program,
	simOpts options.Simulation, w io.Writer) (*sim.Simulator, error) {

	simOptions := []sim.Option{
		sim.WithLogger(p.logger),
		sim.WithDecodeConfig(simOpts.Decode),
	}
	if opts.Trace {
		tracer := writer.New(a.Names().Name, w, writer.Options{
			HexComments:    true,
			OffsetComments: true,
		})
		simOptions = append(simOptions, sim.WithTracer(tracer))
	}
	if simOpts.HasStart {
		simOptions = append(simOptions, sim.WithStart(simOpts.Start))
	}

	exit := st.Platform().SysEnv().HaltAddress
	if simOpts.HasExit {
		exit = simOpts.Exit
	}
	simOptions = append(simOptions, sim.WithExit(exit))

	return sim.New(st, a, simOptions...)
}

// run simulates the program and reports the result.
func (p *Pipeline) run(ctx context.Context, opts options.Program, simOpts options.Simulation,
	s *sim.Simulator, out io.Writer) (*Result, error) {

	steps, runErr := s.Run(ctx, simOpts.Limit)

	result := &Result{
		Steps: steps,
		Stats: s.Engine().Stats(),
	}
	if m, ok := platform.ModuleAs[arch.ExitModule](s.State().Platform()); ok {
		result.ExitStatus, result.Exited = m.Exited()
	}

	p.logStats(opts, result.Stats)

	if opts.Dump {
		if err := s.State().Dump(out); err != nil {
			return nil, fmt.Errorf("dumping registers: %w", err)
		}
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return result, runErr
		}
		return result, fmt.Errorf("simulating: %w", runErr)
	}

	if !opts.Quiet {
		p.logger.Info("Simulation finished",
			log.Int("steps", int(steps)),
			log.Hex("pc", s.State().PC()),
			log.Int("exit_status", int(result.ExitStatus)))
	}
	return result, nil
}

func (p *Pipeline) logStats(opts options.Program, stats decode.Stats) {
	logStats := p.logger.Debug
	if opts.Stats {
		logStats = p.logger.Info
	}
	logStats("Decode statistics",
		log.Int("fetches", int(stats.Fetches)),
		log.Int("hits", int(stats.Hits)),
		log.Int("misses", int(stats.Misses)),
		log.Int("moves", int(stats.Moves)),
		log.Int("longest_scan", int(stats.LongestScan)),
		log.Int("trie_walks", int(stats.TrieWalks)))
}
