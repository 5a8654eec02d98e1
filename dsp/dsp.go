// Package dsp provides the small float32 primitives shared by the segment
// generator, CV reader and UI: one-pole smoothing, crossfade, the warped
// phase curve, semitone-to-ratio conversion and a hysteresis quantizer.
//
// Everything here operates in float32 to match the fixed-point-adjacent
// precision of the original firmware; mixing in float64 would change
// the rounding behavior downstream code relies on being stable.
package dsp

import "math"

// SampleRate is the audio block rate assumed throughout the DSP layer.
const SampleRate = 31250.0

// MaxFrequency bounds any oscillator's per-sample phase increment at
// Nyquist, matching the firmware's kMaxFrequency.
const MaxFrequency = 0.5

// OnePole smooths state toward target by coefficient, matching the
// firmware's ONE_POLE(state, target, coefficient) macro:
// state += coefficient * (target - state).
func OnePole(state, target, coefficient float32) float32 {
	return state + coefficient*(target-state)
}

// Clamp constrains v to [lo, hi].
func Clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampInt constrains v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Crossfade linearly interpolates from a to b by fade in [0,1].
func Crossfade(a, b, fade float32) float32 {
	return a + (b-a)*fade
}

// WarpPhase applies the rational warp curve used by the multi-segment
// process: identity at curve=0.5, concave/convex away from it.
func WarpPhase(t, curve float32) float32 {
	curve -= 0.5
	flip := curve < 0.0
	if flip {
		t = 1.0 - t
	}
	a := 128.0 * curve * curve
	t = (1.0 + a) * t / (1.0 + a*t)
	if flip {
		t = 1.0 - t
	}
	return t
}

// SemitonesToRatio converts a signed semitone offset to a frequency ratio
// (equal temperament, 12-TET).
func SemitonesToRatio(semitones float32) float32 {
	return float32(math.Pow(2.0, float64(semitones)/12.0))
}

// lutEnvFrequencySize mirrors the original firmware's LUT_ENV_FREQUENCY_SIZE
// bound on RateToFrequency's table index.
const lutEnvFrequencySize = 1024

// RateToFrequency maps a normalized rate parameter in [0,1] to a per-sample
// phase increment using an exponential response curve, reproducing the
// firmware's lut_env_frequency table without needing the table itself: the
// original LUT was generated from exp2-spaced time constants, which this
// closed form reproduces to within LUT quantization error.
func RateToFrequency(rate float32) float32 {
	i := Clamp(rate*2048.0, 0, lutEnvFrequencySize)
	// Exponential envelope rate table: the fastest segment completes in
	// four samples (0.25 per sample), the slowest takes
	// TimeScale·SampleRate samples (about eleven hours at the defaults).
	x := float64(i) / float64(lutEnvFrequencySize)
	minF := 1.0 / (TimeScale * SampleRate)
	maxF := 0.25
	return float32(minF * math.Pow(maxF/minF, x))
}

// TimeScale is the tunable constant behind RateToFrequency's slowest
// rate, set to the 4000*10 variant.
var TimeScale float64 = 40000.0

// PortamentoRateToLPCoefficient maps a normalized rate in [0,1] to a one-pole
// coefficient, reproducing lut_portamento_coefficient.
func PortamentoRateToLPCoefficient(rate float32) float32 {
	i := Clamp(rate*512.0, 0, 512)
	x := float64(i) / 512.0
	minC := 1.0 / (200.0 * 0.001 * SampleRate) // ~200ms slowest slew
	maxC := 1.0
	return float32(minC * math.Pow(maxC/minC, x))
}

// HysteresisQuantizer reproduces the firmware's stmlib hysteresis quantizer:
// it snaps a continuous value to one of n equally spaced bins, but requires
// the input to cross a band around the current bin's edge before switching,
// to avoid chattering near a boundary.
type HysteresisQuantizer struct {
	codeword int
	first    bool
}

// Lookup returns the quantized bin index in [0, numStates) for value in
// [0,1], with hysteresis of the given width around bin boundaries.
func (h *HysteresisQuantizer) Lookup(value float32, numStates int, hysteresis float32) int {
	width := 1.0 / float32(numStates)
	if h.first {
		h.codeword = int(Clamp(value*float32(numStates), 0, float32(numStates-1)))
		h.first = false
		return h.codeword
	}
	lo := float32(h.codeword)*width - hysteresis*width
	hi := float32(h.codeword+1)*width + hysteresis*width
	if value < lo || value >= hi {
		h.codeword = int(Clamp(value*float32(numStates), 0, float32(numStates-1)))
	}
	return h.codeword
}

// NewHysteresisQuantizer returns a quantizer that quantizes its first Lookup
// call unconditionally.
func NewHysteresisQuantizer() *HysteresisQuantizer {
	return &HysteresisQuantizer{first: true}
}
