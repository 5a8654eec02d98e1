package sixeg

// NumChannels is the channel count of a module.
const NumChannels = 6

// gateWarmupTicks is how long after entering SixEG mode gate inputs are
// ignored, so a module already mid-way through being patched doesn't
// read a transient high as a real gate (stages.cc's egGateWarmTime,
// 4000 ticks at boot).
const gateWarmupTicks = 4000

// Shape is the shared DAHDSR shape all six envelopes in a Bank are
// configured with: one set of length/level sliders, not six, since the
// module has only one slider per channel and six stages to control.
type Shape struct {
	Delay, Attack, Hold, Decay, Sustain, Release float32
}

// Bank drives six Envelopes as one top-level alternate mode: every
// tick, each channel's gate (button OR patched gate input) triggers its
// own envelope independently, but all six envelopes share the same
// DAHDSR shape.
type Bank struct {
	envelopes [NumChannels]Envelope
	warmup    int
}

// NewBank returns a Bank with its gate warmup timer running.
func NewBank() *Bank {
	return &Bank{warmup: gateWarmupTicks}
}

// ChannelInput is one channel's tick of input: whether its front-panel
// switch is held, whether the channel is patched, and whether any
// sample in this block's gate input was high.
type ChannelInput struct {
	Button     bool
	Patched    bool
	GateHighAny bool
}

// ChannelOutput is one channel's tick of output: the envelope's current
// level and stage, from which the caller derives LED color and slider
// illumination the way stages.cc's ProcessSixEg does.
type ChannelOutput struct {
	Value float32
	Stage Stage
	Gated bool // button or a warmed-up patched gate was high this tick
}

// Tick advances all six envelopes by one tick given the shared shape
// and each channel's input, returning each channel's resulting output.
func (b *Bank) Tick(shape Shape, in [NumChannels]ChannelInput) [NumChannels]ChannelOutput {
	if b.warmup > 0 {
		b.warmup--
	}

	var out [NumChannels]ChannelOutput
	for ch := range b.envelopes {
		e := &b.envelopes[ch]
		e.SetDelayLength(shape.Delay)
		e.SetAttackLength(shape.Attack)
		e.SetHoldLength(shape.Hold)
		e.SetDecayLength(shape.Decay)
		e.SetSustainLevel(shape.Sustain)
		e.SetReleaseLength(shape.Release)

		gate := in[ch].Button
		if !gate && b.warmup == 0 && in[ch].Patched {
			gate = in[ch].GateHighAny
		}
		e.Gate(gate)

		out[ch] = ChannelOutput{
			Value: e.Value(),
			Stage: e.CurrentStage(),
			Gated: gate,
		}
	}
	return out
}

// SliderLit reports, for slider position i in [0,6), whether that
// stage of the shared shape currently has a nonzero length/level —
// the six sliders double as Delay/Attack/Hold/Decay/Sustain/Release
// indicator LEDs, read off envelope 0 since all six share one shape
// (stages.cc's ProcessSixEg sets all six slider LEDs from eg[0]).
func (b *Bank) SliderLit() [NumChannels]bool {
	e := &b.envelopes[0]
	return [NumChannels]bool{
		e.HasDelay(), e.HasAttack(), e.HasHold(), e.HasDecay(), e.HasSustain(), e.HasRelease(),
	}
}
