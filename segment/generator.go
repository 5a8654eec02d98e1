package segment

import (
	"math"
	"math/rand"

	"github.com/stagesfw/firmware/dsp"
)

// Shape selects which of the four configuration shapes a Generator is
// currently running.
type Shape int

const (
	ShapeSingle Shape = iota
	ShapeMulti
	ShapeSequencer
	ShapeSlave
)

// Generator renders one channel's output samples. It is configured by
// Configure from a Descriptor slice (the "configuration array") and
// reads its per-block parameters from a Parameters slice supplied by
// the caller (the chain package resolves bindings into that slice
// before calling Process).
type Generator struct {
	shape Shape

	// single-segment state
	mode      Mode
	rng       *rand.Rand
	ramp      dsp.RampExtractor
	delayLine dsp.DelayLine
	phase     float32
	lp        float32
	value     float32
	start     float32
	auxPhase  float32
	shiftReg  uint16
	chaosX    float32
	chaosY    float32
	chaosZ    float32
	sahGate   []GateFlags // small delay ring for sample & hold gate delay
	sahWrite  int
	retrigDelay int
	configured Descriptor

	// multi-segment / sequencer state
	segments       []segState
	activeSegment  int
	previousSegment int
	upDownCounter   int
	inhibitClock    int
	reset           bool
	direction       int
	quantizer       *dsp.HysteresisQuantizer
	segFirstStep    int
	segLastStep     int
	quantizedOutput bool

	// slave state
	monitor             *Generator
	monitorSegment      int
	remoteSlave         bool
	remoteActiveSegment int
	remotePhase         float32
}

type segState struct {
	StartRef, EndRef, TimeRef, CurveRef, PortamentoRef paramRef
	HasStart, HasTimeRef, HasPhase                     bool
	PhaseValue                                          float32
	IfRising, IfFalling, IfComplete                     int
	Bipolar, Retrig, IsTuring                          bool
	Range                                               Range
	ShiftRegister                                       uint16
	turingValue                                         float32
}

type refKind int

const (
	refConstant refKind = iota
	refPrimary
	refSecondary
	refSlider
)

type paramRef struct {
	kind  refKind
	cnst  float32
	index int
}

func (r paramRef) get(params []Parameters) float32 {
	switch r.kind {
	case refPrimary:
		return params[r.index].Primary
	case refSecondary:
		return params[r.index].Secondary
	case refSlider:
		return params[r.index].Slider
	default:
		return r.cnst
	}
}

// NewGenerator returns a Generator seeded deterministically; callers that
// need independent random streams per channel should reseed via SeedRNG.
func NewGenerator() *Generator {
	sampleRate := dsp.SampleRate
	return &Generator{
		activeSegment:   0,
		previousSegment: 0,
		rng:             rand.New(rand.NewSource(1)),
		quantizer:       dsp.NewHysteresisQuantizer(),
		sahGate:         make([]GateFlags, int(sampleRate*2/1000)+1),
	}
}

// SeedRNG reseeds the generator's random source, used by true-random and
// Turing modes. Deterministic by default so every other mode's output
// depends only on its inputs.
func (g *Generator) SeedRNG(seed int64) { g.rng = rand.New(rand.NewSource(seed)) }

// ActiveState reports the generator's currently active segment index and
// its phase within that segment. The chain package transmits these in
// the LeftToRightPacket so a neighboring module can drive a remote-slave
// generator without holding a pointer to this one.
func (g *Generator) ActiveState() (segment int, phase float32) {
	return g.activeSegment, g.phase
}

// ConfigureSingle configures the generator to run one specialized process
// function.
func (g *Generator) ConfigureSingle(d Descriptor, trigger, advanced bool) {
	mode := DispatchMode(d, trigger, advanced)
	rangeChanged := d.Range != g.configured.Range
	if mode != g.mode || rangeChanged {
		g.phase = 0
		g.ramp.Init(dsp.SampleRate, dsp.MaxFrequency)
	}
	g.shape = ShapeSingle
	g.mode = mode
	g.configured = d
}

// Process renders size samples for single-segment, multi-segment or
// sequencer shapes. gates must have length size; out receives size
// samples in [0,1] or [-1,1] depending on bipolar configuration.
func (g *Generator) Process(gates []GateFlags, params []Parameters, out []float32) {
	switch g.shape {
	case ShapeSingle:
		g.processSingle(gates, params, out)
	case ShapeMulti:
		g.processMulti(gates, params, out)
	case ShapeSequencer:
		g.processSequencer(gates, params, out)
	case ShapeSlave:
		g.processSlave(out)
	}
}

func (g *Generator) processSingle(gates []GateFlags, params []Parameters, out []float32) {
	p := params[0]
	d := g.configured
	switch g.mode {
	case ModeZero:
		for i := range out {
			out[i] = 0
		}
	case ModeFreeRunningLFO:
		g.freeRunningLFO(p, d, out)
	case ModeTapLFO:
		g.tapLFO(gates, p, d, out)
	case ModeDecay:
		g.decay(gates, p, out)
	case ModePortamento:
		g.portamento(p, out)
	case ModeSampleHold:
		g.sampleHold(gates, p, out)
	case ModeDelay:
		g.delay(p, out)
	case ModeTimedPulse:
		g.timedPulse(gates, p, out)
	case ModeGate:
		g.gateOut(gates, p, out)
	case ModeRiseAndFall:
		g.riseAndFall(gates, p, d, out)
	case ModeAttenuatorOffset:
		g.attenuatorOffset(p, out)
	case ModeAttSampleHold:
		g.attSampleHold(gates, p, out)
	case ModeTuringShiftRegister:
		g.turingShiftRegister(gates, p, d, out)
	case ModeLogisticMap:
		g.logisticMap(p, out)
	case ModeDoubleScroll:
		g.doubleScroll(p, d, out)
	case ModeTrueRandom:
		for i := range out {
			v := g.rng.Float32()
			if d.Bipolar {
				v = 2*v - 1
			}
			out[i] = v
		}
	}
}

// freeRunningLFO renders a free-running LFO whose rate tracks the
// primary parameter across the selected range.
func (g *Generator) freeRunningLFO(p Parameters, d Descriptor, out []float32) {
	f := dsp.Clamp(96.0*(p.Primary-0.5), -128, 127)
	frequency := dsp.SemitonesToRatio(f) * 2.0439497 / dsp.SampleRate
	switch d.Range {
	case RangeSlow:
		frequency /= 16
	case RangeFast:
		frequency *= 64
	}
	frequency = dsp.Clamp(frequency, 0, dsp.MaxFrequency)
	for i := range out {
		g.phase = clampPhase(g.phase + frequency)
		out[i] = shapeLFO(p.Secondary, g.phase, d.Bipolar)
	}
}

// tapLFO renders an LFO phase-locked to the incoming gate's tap tempo
// at a ratio selected by the secondary parameter.
func (g *Generator) tapLFO(gates []GateFlags, p Parameters, d Descriptor, out []float32) {
	ratios := dividerRatiosFor(d.Range)
	idx := g.quantizer.Lookup(dsp.Clamp(p.Secondary, 0, 0.999999), len(ratios), 0.1)
	rt := ratios[idx]
	for i, gf := range gates {
		ph := g.ramp.Tick(gf.Rising(), rt.num, rt.den)
		out[i] = shapeLFO(0.5, ph, d.Bipolar)
	}
}

// decay: Ramp, no loop, with trigger. Fixed-time decay envelope retriggered
// on a rising gate.
func (g *Generator) decay(gates []GateFlags, p Parameters, out []float32) {
	frequency := dsp.RateToFrequency(p.Primary)
	for i, gf := range gates {
		if gf.Rising() {
			g.phase = 0
			g.value = 1
		}
		g.phase = dsp.Clamp(g.phase+frequency, 0, 1)
		g.value = 1.0 - dsp.WarpPhase(g.phase, p.Secondary)
		out[i] = g.value
	}
}

// portamento: Step, no trigger. Continuously slews toward primary.
func (g *Generator) portamento(p Parameters, out []float32) {
	coeff := dsp.PortamentoRateToLPCoefficient(p.Secondary)
	for i := range out {
		g.lp = dsp.OnePole(g.lp, p.Primary, coeff)
		out[i] = g.lp
	}
}

// sampleHold: Step, with trigger.
func (g *Generator) sampleHold(gates []GateFlags, p Parameters, out []float32) {
	coeff := dsp.PortamentoRateToLPCoefficient(p.Secondary)
	delaySamples := len(g.sahGate)
	for i, gf := range gates {
		delayed := g.sahGate[g.sahWrite]
		g.sahGate[g.sahWrite] = gf
		g.sahWrite = (g.sahWrite + 1) % delaySamples
		if delayed.Rising() {
			g.value = p.Primary
		}
		g.lp = dsp.OnePole(g.lp, g.value, coeff)
		out[i] = g.lp
	}
}

// delay: Hold, no loop, no trigger. A clocked delay line: the primary
// input is smoothed at the delay clock's rate before being written in,
// and the read tap is smoothed at the same rate on the way out.
func (g *Generator) delay(p Parameters, out []float32) {
	maxDelay := float32(dsp.MaxDelay - 1)
	delayTime := dsp.SemitonesToRatio(2.0*(p.Secondary-0.5)*36.0) * 0.5 * dsp.SampleRate
	clockFreq := float32(1.0)
	delayFreq := 1.0 / delayTime
	if delayTime >= maxDelay {
		clockFreq = maxDelay * delayFreq
		delayTime = maxDelay
	}
	for i := range out {
		g.phase += clockFreq
		g.lp = dsp.OnePole(g.lp, p.Primary, clockFreq)
		if g.phase >= 1.0 {
			g.phase -= 1.0
			g.delayLine.Write(g.lp)
		}
		g.auxPhase += delayFreq
		if g.auxPhase >= 1.0 {
			g.auxPhase -= 1.0
		}
		g.value = dsp.OnePole(g.value, g.delayLine.Read(delayTime-g.phase), clockFreq)
		out[i] = g.value
	}
}

// retrigDelaySamples blanks the timed pulse generator's output for a
// short window after a retrigger lands mid-pulse, so the falling and
// rising edges of back-to-back triggers never merge into one pulse.
const retrigDelaySamples = 32

// timedPulse: Hold, no loop, with trigger. A one-shot timed pulse,
// retriggerable on every rising gate edge.
func (g *Generator) timedPulse(gates []GateFlags, p Parameters, out []float32) {
	frequency := dsp.RateToFrequency(p.Secondary)
	for i, gf := range gates {
		if gf.Rising() {
			if g.activeSegment == 0 {
				g.retrigDelay = retrigDelaySamples
			} else {
				g.retrigDelay = 0
			}
			g.phase = 0
			g.activeSegment = 0
		}
		if g.retrigDelay > 0 {
			g.retrigDelay--
		}
		g.phase += frequency
		if g.phase >= 1.0 {
			g.phase = 1.0
			g.activeSegment = 1
		}
		if g.activeSegment == 0 && g.retrigDelay == 0 {
			g.value = p.Primary
		} else {
			g.value = 0
		}
		g.lp = g.value
		out[i] = g.lp
	}
}

// gateOut: Hold, loop, with trigger. A probability gate: each rising
// edge re-rolls whether the gate passes the primary value through or
// holds at zero, keyed by the secondary parameter.
func (g *Generator) gateOut(gates []GateFlags, p Parameters, out []float32) {
	for i, gf := range gates {
		if gf.Rising() {
			if g.rng.Float32() < p.Secondary {
				g.activeSegment = 0
			} else {
				g.activeSegment = 1
			}
		}
		if gf.High() && g.activeSegment == 0 {
			g.activeSegment = 0
		} else {
			g.activeSegment = 1
		}
		if g.activeSegment == 0 {
			g.value = p.Primary
		} else {
			g.value = 0
		}
		g.lp = g.value
		out[i] = g.lp
	}
}

// riseAndFall: advanced Ramp, no loop, no trigger.
func (g *Generator) riseAndFall(gates []GateFlags, p Parameters, d Descriptor, out []float32) {
	rise := dsp.PortamentoRateToLPCoefficient(p.Secondary)
	fall := dsp.PortamentoRateToLPCoefficient(p.Slider)
	target := p.Primary
	if d.Bipolar {
		target = 2*p.Primary - 1
	}
	for i := range out {
		if target > g.lp {
			g.lp = dsp.OnePole(g.lp, target, rise)
		} else {
			g.lp = dsp.OnePole(g.lp, target, fall)
		}
		out[i] = g.lp
	}
}

// attenuatorOffset: advanced Step, loop, no trigger. A direct passthrough
// of the primary parameter, with no time-based processing at all; used
// for a fixed attenuator/offset stage ahead of a sample & hold pair.
func (g *Generator) attenuatorOffset(p Parameters, out []float32) {
	for i := range out {
		g.value = p.Primary
		g.lp = g.value
		out[i] = g.value
	}
}

// attSampleHold: advanced Step, loop, with trigger. Like sampleHold, but
// the held value passes straight through with no one-pole smoothing.
func (g *Generator) attSampleHold(gates []GateFlags, p Parameters, out []float32) {
	delaySamples := len(g.sahGate)
	for i, gf := range gates {
		delayed := g.sahGate[g.sahWrite]
		g.sahGate[g.sahWrite] = gf
		g.sahWrite = (g.sahWrite + 1) % delaySamples
		if delayed.Rising() {
			g.value = p.Primary
		}
		g.lp = g.value
		out[i] = g.lp
	}
}

// turingShiftRegister: advanced Turing, no loop, no trigger. Turing-machine
// output that advances on each rising gate edge and holds between edges.
func (g *Generator) turingShiftRegister(gates []GateFlags, p Parameters, d Descriptor, out []float32) {
	for i, gf := range gates {
		if gf.Rising() {
			g.shiftReg, g.value = TuringAdvance(g.rng, p.Primary, p.Secondary, g.shiftReg, d.Bipolar)
		}
		out[i] = g.value
	}
}

// logisticMap: advanced Turing, loop, no trigger.
func (g *Generator) logisticMap(p Parameters, out []float32) {
	r := 3.5 + 0.5*p.Primary
	for i := range out {
		g.value = r * g.value * (1 - g.value)
		if g.value <= 0.0001 || g.value >= 0.9999 {
			g.value = 0.5
		}
		out[i] = g.value
	}
}

// doubleScroll / thomas: advanced Turing, no loop, with trigger. Chua's
// double-scroll attractor, or the Thomas symmetric attractor when
// ChaosMode is set to ChaosThomasSymmetric.
var ChaosMode = ChaosDoubleScroll

type ChaosVariant int

const (
	ChaosDoubleScroll ChaosVariant = iota
	ChaosThomasSymmetric
)

func (g *Generator) doubleScroll(p Parameters, d Descriptor, out []float32) {
	if g.chaosX == 0 && g.chaosY == 0 && g.chaosZ == 0 {
		g.chaosX, g.chaosY, g.chaosZ = 1, 1, 1
	}
	freq := dsp.Clamp(dsp.SemitonesToRatio(dsp.Clamp(96*(p.Primary-0.5), -128, 127))*2.0439497/dsp.SampleRate, 0, 0.01)
	switch ChaosMode {
	case ChaosThomasSymmetric:
		b := dsp.Clamp(p.Secondary, 0.001, 0.2)
		for i := range out {
			h := freq
			dx := float32(math.Sin(float64(g.chaosY))) - b*g.chaosX
			dy := float32(math.Sin(float64(g.chaosZ))) - b*g.chaosY
			dz := float32(math.Sin(float64(g.chaosX))) - b*g.chaosZ
			g.chaosX += h * dx
			g.chaosY += h * dy
			g.chaosZ += h * dz
			v := g.chaosX / (1 + abs32(g.chaosX))
			if !d.Bipolar {
				v = 0.5 + 0.5*v
			}
			out[i] = v
		}
	default:
		a := float32(42)
		c := float32(28)
		b := dsp.Clamp(2+4*p.Secondary, 1, 6)
		for i := range out {
			h := freq
			dx := a * (g.chaosY - g.chaosX)
			dy := (c-a)*g.chaosX - g.chaosX*g.chaosZ + c*g.chaosY
			dz := g.chaosX*g.chaosY - b*g.chaosZ
			g.chaosX += h * dx
			g.chaosY += h * dy
			g.chaosZ += h * dz
			v := dsp.Clamp((g.chaosX+18)/36, 0, 1)
			if d.Bipolar {
				v = 2*v - 1
			}
			out[i] = v
		}
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// shapeLFO crossfades a variable-slope triangle into a sine as shape
// moves from 0 to 1, folding in bipolar/unipolar scaling.
func shapeLFO(shape, phase float32, bipolar bool) float32 {
	centered := shape - 0.5
	shapePrime := 2 + 9.999*centered/(1+3*abs32(centered))
	slope := dsp.Clamp(shapePrime, 0, 1)
	plateauWidth := dsp.Clamp(shapePrime-1, 0, 1)
	sineAmount := dsp.Clamp(shapePrime-2, 0, 1)

	var triangle float32
	if phase < 0.5 {
		triangle = 4*phase - 1
	} else {
		triangle = 3 - 4*phase
	}
	triangle *= 1 + slope
	plateau := 1 - plateauWidth
	triangle = dsp.Clamp(triangle, -plateau, plateau)
	if plateau > 0 {
		triangle /= plateau
	}
	sine := float32(math.Sin(2 * math.Pi * float64(phase)))

	amplitude := float32(10.0 / 16.0)
	offset := float32(0)
	if !bipolar {
		amplitude = 0.5
		offset = 0.5
	}
	return amplitude*dsp.Crossfade(triangle, sine, sineAmount) + offset
}

// TuringAdvance advances a Turing-machine shift register by one step.
func TuringAdvance(rng *rand.Rand, stepsParam, probParam float32, shiftRegister uint16, bipolar bool) (uint16, float32) {
	steps := int(16*stepsParam + 1)
	steps = dsp.ClampInt(steps, 1, 16)
	prob := 1.02*probParam - 0.01
	copiedBit := (shiftRegister << uint(steps-1)) & (1 << 15)
	var mutated uint16
	if float32(rng.Float64()) < prob {
		mutated = copiedBit ^ (1 << 15)
	} else {
		mutated = copiedBit
	}
	sr := (shiftRegister >> 1) | mutated
	value := float32(sr) / 65535.0
	if bipolar {
		value = (10.0 / 8.0) * (value - 0.5)
	}
	return sr, value
}
