package app

import (
	"github.com/pkg/errors"

	"github.com/stagesfw/firmware/chain"
	"github.com/stagesfw/firmware/cvreader"
	"github.com/stagesfw/firmware/iobuffer"
	"github.com/stagesfw/firmware/segment"
	"github.com/stagesfw/firmware/settings"
	"github.com/stagesfw/firmware/sixeg"
	"github.com/stagesfw/firmware/ui"
)

// Module is one physical (or simulated) module's full owning record:
// its persisted settings, chain linkage state, CV smoothing, front
// panel, and the per-channel generators for whichever top-level mode
// is currently selected. Replaces the firmware's static singletons
// (cv_reader, ui, settings, ...) with a single record the App passes
// down instead of each package reaching for a global.
type Module struct {
	Index int

	set    *settings.Settings
	chain  *chain.ChainState
	reader *cvreader.Reader
	front  *ui.Ui
	eg     *sixeg.Bank

	// ouroborosGens are independent per-channel generators for
	// Ouroboros mode, which runs explicitly outside the chain's
	// segment-linkage system — each channel is configured and
	// rendered on its own, never through
	// chain.ChainState.Generators/Params.
	ouroborosGens [ui.NumChannels]*segment.Generator

	lastGateLevel [ui.NumChannels]bool
	ms            uint32

	// Offline is set by the panic-recovery wrapper around Process when
	// this module's block processing panics; once true, Process
	// becomes a no-op that returns a muted Output — the host analogue
	// of a stalled module waiting for a watchdog reset.
	Offline bool
}

// NewModule loads cfg's settings file (falling back to defaults on a
// missing or corrupt chunk, per settings.Settings.Init) and builds the
// module's chain/cvreader/ui state wired to the given link.
func NewModule(index int, cfg ModuleConfig, l chain.Link) (*Module, error) {
	set := settings.New(cfg.SettingsPath)
	if err := set.Init(); err != nil {
		return nil, errors.Wrapf(err, "app: module %d: load settings", index)
	}

	var calib [cvreader.NumChannels]settings.ChannelCalibration
	for i := range calib {
		calib[i] = set.Calibration(i)
	}

	cs := chain.New(cfg.Advanced)
	cs.SetLink(l)
	cs.LocalConfig = set.State().SegmentConfiguration

	reader := cvreader.New(calib)
	front := ui.New(set, cs, reader)

	m := &Module{
		Index:  index,
		set:    set,
		chain:  cs,
		reader: reader,
		front:  front,
		eg:     sixeg.NewBank(),
	}
	for i := range m.ouroborosGens {
		m.ouroborosGens[i] = segment.NewGenerator()
	}
	return m, nil
}

// Chain, Settings and Front expose the module's state to diag's
// read-only introspection handlers.
func (m *Module) Chain() *chain.ChainState   { return m.chain }
func (m *Module) Settings() *settings.Settings { return m.set }
func (m *Module) Front() *ui.Ui               { return m.front }

// gatesFromLevels expands one block's raw gate samples into per-sample
// GateFlags, detecting rising/falling edges against both the previous
// sample in the block and the last sample carried over from the prior
// block.
func gatesFromLevels(prev bool, levels []bool) ([]segment.GateFlags, bool) {
	out := make([]segment.GateFlags, len(levels))
	for i, high := range levels {
		var f segment.GateFlags
		if high {
			f |= segment.GateFlagHigh
		}
		if high && !prev {
			f |= segment.GateFlagRising
		}
		if !high && prev {
			f |= segment.GateFlagFalling
		}
		out[i] = f
		prev = high
	}
	return out, prev
}

// Process runs one block through this module: chain/cvreader/ui
// state advance, the active top-level processor (segment-generator
// chain, Ouroboros, or SixEG), and the UI's LED/switch-lit frame.
// A panic anywhere in this call is recovered, logged by the caller,
// and leaves the module Offline for every subsequent tick.
func (m *Module) Process(in iobuffer.Block) (iobuffer.Output, ui.Frame) {
	out := iobuffer.NewOutput(in.B)
	if m.Offline {
		return out, ui.Frame{}
	}

	state := m.set.State()

	frame := m.front.Update(m.ms, in.Switch)
	m.ms += uint32(in.B)

	cvBlock := cvreader.Block{
		Pot: in.Pot, Slider: in.Slider, CV: in.CV, B: in.B,
		SlowLFO: state.MultiMode == settings.MultiModeSlowLFO,
	}
	for i := 0; i < ui.NumChannels; i++ {
		cfg := m.chain.LocalConfig[i]
		cvBlock.Unpatched[i] = !in.InputPatched[i]
		cvBlock.Bipolar[i] = cfg.Bipolar()
		cvBlock.IsRamp[i] = cfg.Type() == settings.SegmentTypeRamp
		cvBlock.SelfLoop[i] = cvBlock.IsRamp[i] && m.chain.LoopStatus(i) == chain.LoopSelf
	}
	resolved := m.reader.Read(cvBlock)

	m.chain.Update(chain.BlockInput{
		Pot:          resolved.Pot,
		CVSlider:     resolved.CVSlider,
		InputPatched: in.InputPatched,
		SwitchDown:   frame.Pressed,
		MultiMode:    state.MultiMode,
	})

	switch {
	case state.MultiMode.IsSegGen():
		m.processSegGen(in, &out)
	case state.MultiMode.IsOuroboros():
		m.processOuroboros(in, resolved, &out)
	case state.MultiMode == settings.MultiModeSixEG:
		m.processSixEG(in, resolved, &out)
	}

	return out, frame
}

func (m *Module) processSegGen(in iobuffer.Block, out *iobuffer.Output) {
	for i := 0; i < ui.NumChannels; i++ {
		gates, last := gatesFromLevels(m.lastGateLevel[i], in.Gate[i])
		m.lastGateLevel[i] = last

		gen := m.chain.Generators[i]
		if gen == nil {
			continue
		}
		levels := make([]float32, in.B)
		gen.Process(gates, m.chain.Params(i), levels)
		out.WriteChannel(i, m.set.Calibration(i), levels)
	}
}

func (m *Module) processOuroboros(in iobuffer.Block, resolved cvreader.Result, out *iobuffer.Output) {
	for i := 0; i < ui.NumChannels; i++ {
		cfg := m.chain.LocalConfig[i]
		d := segment.Descriptor{
			Type:    segment.Type(cfg.Type()),
			Loop:    cfg.Loop(),
			Bipolar: cfg.Bipolar(),
			Range:   segment.Range(cfg.Range()),
		}
		gen := m.ouroborosGens[i]
		gen.ConfigureSingle(d, false, m.chain.Advanced)

		gates, last := gatesFromLevels(m.lastGateLevel[i], in.Gate[i])
		m.lastGateLevel[i] = last

		params := []segment.Parameters{{Primary: resolved.Pot[i], Secondary: resolved.CVSlider[i]}}
		levels := make([]float32, in.B)
		gen.Process(gates, params, levels)
		out.WriteChannel(i, m.set.Calibration(i), levels)
	}
}

func (m *Module) processSixEG(in iobuffer.Block, resolved cvreader.Result, out *iobuffer.Output) {
	shape := sixeg.Shape{
		Delay:    m.reader.LPSlider(0),
		Attack:   m.reader.LPSlider(1),
		Hold:     m.reader.LPSlider(2),
		Decay:    m.reader.LPSlider(3),
		Sustain:  m.reader.LPSlider(4),
		Release:  m.reader.LPSlider(5),
	}
	var chIn [ui.NumChannels]sixeg.ChannelInput
	for i := 0; i < ui.NumChannels; i++ {
		anyHigh := false
		for _, lvl := range in.Gate[i] {
			if lvl {
				anyHigh = true
				break
			}
		}
		chIn[i] = sixeg.ChannelInput{
			Button:      in.Switch[i],
			Patched:     in.InputPatched[i],
			GateHighAny: anyHigh,
		}
	}
	chOut := m.eg.Tick(shape, chIn)
	for i := 0; i < ui.NumChannels; i++ {
		levels := make([]float32, in.B)
		for s := range levels {
			levels[s] = chOut[i].Value
		}
		out.WriteChannel(i, m.set.Calibration(i), levels)
	}
}
