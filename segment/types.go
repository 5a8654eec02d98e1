// Package segment implements the per-channel DSP engine: single-segment
// specialized processors, the multi-segment linked envelope state machine,
// sequencer mode, and slave mode.
//
// The original firmware dispatches through a 16-entry array of C++ member
// function pointers keyed by (type, loop, trigger, advanced). This package
// replaces that with the tagged-variant Mode enum below and a single
// Process method that switches on it.
package segment

// NumChannels is the channel count per module (also the max sequencer/
// multi-segment group span within one module before crossing to a remote
// mirror).
const NumChannels = 6

// MaxSegments bounds a single generator's linked-segment chain, matching
// the firmware's kMaxNumSegments (one segment per channel across a full
// 6-module, 36-channel chain).
const MaxSegments = 36

// GateFlags is a per-sample bitset, matching the firmware's GateFlags.
type GateFlags uint8

const (
	GateFlagLow     GateFlags = 0
	GateFlagHigh    GateFlags = 1 << 0
	GateFlagRising  GateFlags = 1 << 1
	GateFlagFalling GateFlags = 1 << 2
)

func (g GateFlags) High() bool    { return g&GateFlagHigh != 0 }
func (g GateFlags) Rising() bool  { return g&GateFlagRising != 0 }
func (g GateFlags) Falling() bool { return g&GateFlagFalling != 0 }

// Type is the 2-bit segment type field from the persisted configuration
// word.
type Type uint8

const (
	TypeRamp Type = iota
	TypeStep
	TypeHold
	TypeTuring
)

// Range selects which LFO frequency range table a Ramp/loop segment uses.
type Range uint8

const (
	RangeDefault Range = iota
	RangeSlow
	RangeFast
)

// Descriptor is one entry of the configuration array passed to Configure:
// a {type, loop, bipolar, range} per-segment descriptor.
type Descriptor struct {
	Type    Type
	Loop    bool
	Bipolar bool
	Range   Range
}

// Parameters is the resolved primary/secondary pair bound to one segment
// for the current block — already resolved from pot/cv/slider or a remote
// channel mirror by the chain package's binding logic. The generator never
// looks upstream of this struct.
type Parameters struct {
	Primary   float32
	Secondary float32
	Slider    float32
}

// Mode is the tagged-variant discriminant replacing the firmware's 16-slot
// function-pointer table.
type Mode int

const (
	ModeZero Mode = iota
	ModeFreeRunningLFO
	ModeDecay
	ModeTapLFO
	ModePortamento
	ModeSampleHold
	ModeDelay
	ModeTimedPulse
	ModeGate
	ModeRiseAndFall
	ModeAttenuatorOffset
	ModeAttSampleHold
	ModeTuringShiftRegister
	ModeLogisticMap
	ModeDoubleScroll
	ModeTrueRandom
)

// dispatchIndex packs (type, loop, trigger) into the 16-slot table index
// used by basicTable/advancedTable below.
func dispatchIndex(t Type, loop, trigger bool) int {
	i := int(t) << 2
	if loop {
		i |= 0x2
	}
	if trigger {
		i |= 0x1
	}
	return i
}

// basicTable and advancedTable hold sixteen slots each, keyed by
// dispatchIndex, mirroring the firmware's two function-pointer tables.
// dispatchIndex is not a constant expression, so the tables are populated
// in init() rather than via keyed composite literals.
var basicTable [16]Mode

var advancedTable [16]Mode

func init() {
	basicTable[dispatchIndex(TypeRamp, false, false)] = ModeZero
	basicTable[dispatchIndex(TypeRamp, true, false)] = ModeFreeRunningLFO
	basicTable[dispatchIndex(TypeRamp, false, true)] = ModeDecay
	basicTable[dispatchIndex(TypeRamp, true, true)] = ModeTapLFO
	basicTable[dispatchIndex(TypeStep, false, false)] = ModePortamento
	basicTable[dispatchIndex(TypeStep, true, false)] = ModePortamento
	basicTable[dispatchIndex(TypeStep, false, true)] = ModeSampleHold
	basicTable[dispatchIndex(TypeStep, true, true)] = ModeSampleHold
	basicTable[dispatchIndex(TypeHold, false, false)] = ModeDelay
	basicTable[dispatchIndex(TypeHold, true, false)] = ModeDelay
	basicTable[dispatchIndex(TypeHold, false, true)] = ModeTimedPulse
	basicTable[dispatchIndex(TypeHold, true, true)] = ModeGate
	basicTable[dispatchIndex(TypeTuring, false, false)] = ModeZero
	basicTable[dispatchIndex(TypeTuring, true, false)] = ModeZero
	basicTable[dispatchIndex(TypeTuring, false, true)] = ModeZero
	basicTable[dispatchIndex(TypeTuring, true, true)] = ModeZero

	advancedTable[dispatchIndex(TypeRamp, false, false)] = ModeRiseAndFall
	advancedTable[dispatchIndex(TypeRamp, true, false)] = ModeFreeRunningLFO
	advancedTable[dispatchIndex(TypeRamp, false, true)] = ModeDecay
	advancedTable[dispatchIndex(TypeRamp, true, true)] = ModeTapLFO
	advancedTable[dispatchIndex(TypeStep, false, false)] = ModePortamento
	advancedTable[dispatchIndex(TypeStep, true, false)] = ModeAttenuatorOffset
	advancedTable[dispatchIndex(TypeStep, false, true)] = ModeSampleHold
	advancedTable[dispatchIndex(TypeStep, true, true)] = ModeAttSampleHold
	advancedTable[dispatchIndex(TypeHold, false, false)] = ModeDelay
	advancedTable[dispatchIndex(TypeHold, true, false)] = ModeDelay
	advancedTable[dispatchIndex(TypeHold, false, true)] = ModeTimedPulse
	advancedTable[dispatchIndex(TypeHold, true, true)] = ModeGate
	advancedTable[dispatchIndex(TypeTuring, false, false)] = ModeTuringShiftRegister
	advancedTable[dispatchIndex(TypeTuring, true, false)] = ModeLogisticMap
	advancedTable[dispatchIndex(TypeTuring, false, true)] = ModeDoubleScroll
	advancedTable[dispatchIndex(TypeTuring, true, true)] = ModeTrueRandom
}

// DispatchMode resolves the single-segment process mode for a descriptor.
func DispatchMode(d Descriptor, trigger, advanced bool) Mode {
	idx := dispatchIndex(d.Type, d.Loop, trigger)
	if advanced {
		return advancedTable[idx]
	}
	return basicTable[idx]
}

// divider ratio tables for tap-LFO: numerator over denominator
// multiples of the detected clock period.
type ratio struct{ num, den float32 }

var dividerRatiosDefault = []ratio{
	{1, 4}, {1, 2}, {1, 1}, {3, 2}, {2, 1}, {3, 1}, {4, 1},
}

var dividerRatiosSlow = []ratio{
	{1, 16}, {1, 8}, {1, 4}, {1, 2}, {1, 1}, {3, 2}, {2, 1}, {3, 1}, {4, 1}, {8, 1},
}

var dividerRatiosFast = []ratio{
	{1, 2}, {1, 1}, {2, 1}, {3, 1}, {4, 1}, {6, 1}, {8, 1}, {12, 1}, {16, 1}, {32, 1},
}

func dividerRatiosFor(r Range) []ratio {
	switch r {
	case RangeSlow:
		return dividerRatiosSlow
	case RangeFast:
		return dividerRatiosFast
	default:
		return dividerRatiosDefault
	}
}

// clampPhase keeps a phase accumulator in [0,1).
func clampPhase(p float32) float32 {
	for p >= 1.0 {
		p -= 1.0
	}
	for p < 0.0 {
		p += 1.0
	}
	return p
}
