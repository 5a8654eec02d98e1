// Package app is the single owning record a simulated rack is built
// from: one App per process, one Module per physical or virtual
// Stages module, replacing the firmware's static singletons (settings,
// cv_reader, ui, dac, gate_inputs, io_buffer) with values constructed
// once at startup and passed down.
package app

import (
	"context"
	"log"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/stagesfw/firmware/chain"
	"github.com/stagesfw/firmware/dsp"
	"github.com/stagesfw/firmware/iobuffer"
	"github.com/stagesfw/firmware/link"
	"github.com/stagesfw/firmware/segment"
	"github.com/stagesfw/firmware/ui"
)

const defaultBlockSize = 32

// App owns every module in the simulated rack plus the logger each
// module's recovered panics are reported through.
type App struct {
	Modules []*Module

	blockSize int
	logger    *log.Logger
}

// New builds every module from cfg, wiring the ones configured for a
// virtual chain onto a shared Bus and opening a real Serial backend
// for the rest. logger may be nil, in which case log.Default() is used;
// package code below app never logs directly, only through this logger.
func New(cfg Config, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.TimeScaleOverride != 0 {
		dsp.TimeScale = cfg.TimeScaleOverride
	}
	switch cfg.Chaos {
	case "thomas-symmetric":
		segment.ChaosMode = segment.ChaosThomasSymmetric
	case "", "double-scroll":
		segment.ChaosMode = segment.ChaosDoubleScroll
	default:
		return nil, errors.Errorf("app: unknown chaos variant %q", cfg.Chaos)
	}

	links, closers, err := buildLinks(cfg.Modules)
	if err != nil {
		return nil, err
	}

	a := &App{blockSize: cfg.BlockSize, logger: logger}
	if a.blockSize <= 0 {
		a.blockSize = defaultBlockSize
	}
	for i, mc := range cfg.Modules {
		m, err := NewModule(i, mc, links[i])
		if err != nil {
			for _, c := range closers {
				if c != nil {
					c.Close()
				}
			}
			return nil, err
		}
		m.front.SetFactoryTest(cfg.FactoryTest)
		a.Modules = append(a.Modules, m)
	}
	return a, nil
}

// buildLinks wires every virtual-chain module onto one shared Bus (so
// a config describing an all-virtual rack simulates a real physical
// chain end to end) and opens an independent Serial connection for
// every module configured with real serial ports. Closers holds the
// Serial connections that must be closed on shutdown or on a later
// construction failure; Bus has nothing to close.
func buildLinks(modules []ModuleConfig) ([]chain.Link, []*link.Serial, error) {
	links := make([]chain.Link, len(modules))
	closers := make([]*link.Serial, len(modules))

	var virtualIdx []int
	for i, mc := range modules {
		if mc.Link.Virtual {
			virtualIdx = append(virtualIdx, i)
		}
	}
	if len(virtualIdx) > 0 {
		bus := link.NewBus(len(virtualIdx))
		for pos, i := range virtualIdx {
			links[i] = bus.Endpoint(pos)
		}
	}

	for i, mc := range modules {
		if mc.Link.Virtual {
			continue
		}
		s, err := link.NewSerial(mc.Link.SerialLeft, mc.Link.SerialRight)
		if err != nil {
			return nil, closers, errors.Wrapf(err, "app: module %d: open serial link", i)
		}
		links[i] = s
		closers[i] = s
	}
	return links, closers, nil
}

// ProcessBlock runs every module through one tick, recovering a panic
// in any single module's Process without taking down the rest of the
// rack — the host analogue of a stalled module waiting for its
// watchdog to reset it.
func (a *App) ProcessBlock(ins []iobuffer.Block) ([]iobuffer.Output, []ui.Frame) {
	outs := make([]iobuffer.Output, len(a.Modules))
	frames := make([]ui.Frame, len(a.Modules))
	for i, m := range a.Modules {
		outs[i], frames[i] = a.processModule(m, ins[i])
	}
	return outs, frames
}

func (a *App) processModule(m *Module, in iobuffer.Block) (out iobuffer.Output, frame ui.Frame) {
	defer func() {
		if r := recover(); r != nil {
			m.Offline = true
			a.logger.Printf("app: module %d: recovered panic, marking offline: %v", m.Index, r)
			out = iobuffer.NewOutput(in.B)
			frame = ui.Frame{}
		}
	}()
	return m.Process(in)
}

// Run paces ProcessBlock to real time using source to draw each tick's
// per-module input, until ctx is canceled. The rate.Limiter stands in
// for the hardware DAC interrupt that would otherwise clock the block
// loop. If sink is non-nil, it is handed each tick's outputs and frames
// after ProcessBlock returns, for a caller that wants to render or
// record them; Run itself never inspects them.
func (a *App) Run(ctx context.Context, sampleRate float64, source func() []iobuffer.Block, sink func([]iobuffer.Output, []ui.Frame)) error {
	if sampleRate <= 0 {
		sampleRate = dsp.SampleRate
	}
	period := time.Duration(float64(a.blockSize) / sampleRate * float64(time.Second))
	limiter := rate.NewLimiter(rate.Every(period), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "app: run loop")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		outs, frames := a.ProcessBlock(source())
		if sink != nil {
			sink(outs, frames)
		}
	}
}
