// Package cvreader turns raw per-block ADC samples (pot, slider, CV) into
// the smoothed, calibrated, range-mapped values the chain and segment
// packages consume, and implements the "locked/limbo" editing behavior
// that keeps a parameter from jumping when a switch-held edit ends.
//
// The cascaded one-pole smoothing mirrors the dsp package's OnePole
// primitive used throughout segment.
package cvreader

import (
	"github.com/stagesfw/firmware/dsp"
	"github.com/stagesfw/firmware/settings"
)

// NumChannels is the channel count per module.
const NumChannels = 6

// Smoothing coefficients.
const (
	potCoefficient    = 0.1
	sliderCoefficient = 0.025
	cvCoefficient     = 0.7
)

// clampLow/clampHigh bound the combined cv+slider signal one LSB below
// 2.0 so ratio expressions built from it never land exactly on the
// RateToFrequency LUT boundary.
const (
	clampLow  = -1.0
	clampHigh = 1.999995
)

// SlowLFOSliderMin/Max remap the slider's full throw in slow-LFO mode so
// it spans roughly one minute to C1 instead of about six seconds to
// C1. The exact knee values aren't pinned down elsewhere; these are
// chosen to sit at the low end of
// dsp.RateToFrequency's domain and are exposed as variables so they can
// be retuned without a rebuild, the same way dsp.TimeScale is.
var (
	SlowLFOSliderMin float32 = 0.0
	SlowLFOSliderMax float32 = 0.3
)

// limboEpsilon is how close the locked value must come to the live
// value before limbo releases.
const limboEpsilon = 0.01

// Block is one block's raw per-channel ADC input.
type Block struct {
	Pot      [NumChannels]float32
	Slider   [NumChannels]float32
	CV       [NumChannels]float32
	B        int // block size, for the limbo chase rate
	SlowLFO  bool
	SelfLoop [NumChannels]bool // ramp segment is a self-looping free-running LFO
	Unpatched [NumChannels]bool
	Bipolar  [NumChannels]bool
	IsRamp   [NumChannels]bool
}

// Result is one block's resolved per-channel pot/slider/cv, ready to
// feed chain.BlockInput.
type Result struct {
	Pot      [NumChannels]float32
	CVSlider [NumChannels]float32
}

type channelFilter struct {
	potLP, sliderLP, cvLP1, cvLP2 float32

	locked       bool
	lockedPot    float32
	lockedSlider float32
	limbo        bool
}

// Reader smooths and calibrates every channel's raw samples block by
// block.
type Reader struct {
	filters [NumChannels]channelFilter
	calib   [NumChannels]settings.ChannelCalibration
}

// New creates a Reader using the given per-channel calibration.
func New(calib [NumChannels]settings.ChannelCalibration) *Reader {
	return &Reader{calib: calib}
}

// Lock freezes channel i's pot/slider at their current smoothed value;
// called by the ui package every tick a switch is held, so the live
// pot/slider can be diverted to a property edit without perturbing the
// segment's bound parameter. Only the leading edge actually latches a
// value — Lock is called every tick the switch stays down, and must
// not keep re-snapping the locked value to the live one, or the
// "locked" value would just track live input and the whole
// locked/limbo mechanism (including the ui package's
// deviation-from-locked threshold) would be a no-op.
func (r *Reader) Lock(i int) {
	f := &r.filters[i]
	if f.locked {
		return
	}
	f.locked = true
	f.limbo = false
	f.lockedPot = f.potLP
	f.lockedSlider = f.sliderLP
}

// Unlock ends the lock on switch release and enters limbo: the locked
// value chases the live value until within limboEpsilon.
func (r *Reader) Unlock(i int) {
	f := &r.filters[i]
	f.locked = false
	f.limbo = true
}

// LPPot returns channel i's smoothed raw pot value (0..1), before any
// locked/limbo substitution. Used by ui for local property editing,
// which compares this live value against the value latched at Lock.
func (r *Reader) LPPot(i int) float32 { return r.filters[i].potLP }

// LPSlider returns channel i's smoothed raw slider value (0..1),
// before any range remap, bipolar fold, or locked/limbo substitution.
func (r *Reader) LPSlider(i int) float32 { return r.filters[i].sliderLP }

// LockedPot/LockedSlider return the value latched for channel i the
// instant its switch was pressed.
func (r *Reader) LockedPot(i int) float32    { return r.filters[i].lockedPot }
func (r *Reader) LockedSlider(i int) float32 { return r.filters[i].lockedSlider }

// InLimbo reports whether channel i's locked value is still chasing
// its live value after the switch was released.
func (r *Reader) InLimbo(i int) bool { return r.filters[i].limbo }

// Read processes one block and returns the resolved per-channel values.
func (r *Reader) Read(b Block) Result {
	var out Result
	for i := 0; i < NumChannels; i++ {
		f := &r.filters[i]

		f.potLP = dsp.OnePole(f.potLP, b.Pot[i], potCoefficient)
		f.sliderLP = dsp.OnePole(f.sliderLP, b.Slider[i], sliderCoefficient)
		f.cvLP1 = dsp.OnePole(f.cvLP1, b.CV[i], cvCoefficient)
		f.cvLP2 = dsp.OnePole(f.cvLP2, f.cvLP1, cvCoefficient)

		cal := r.calib[i]
		cv := f.cvLP2*cal.AdcScale + cal.AdcOffset

		slider := f.sliderLP
		if b.SlowLFO && b.SelfLoop[i] && b.Unpatched[i] {
			slider = SlowLFOSliderMin + slider*(SlowLFOSliderMax-SlowLFOSliderMin)
		}
		if b.Bipolar[i] && !b.IsRamp[i] {
			slider = slider*2 - 1
		}

		pot := f.potLP
		combined := cv + slider

		if f.locked {
			pot = f.lockedPot
			combined = f.lockedSlider
		} else if f.limbo {
			rate := limboChaseRate(b.B)
			livePot, liveCombined := pot, combined
			f.lockedPot = chase(f.lockedPot, livePot, rate)
			f.lockedSlider = chase(f.lockedSlider, liveCombined, rate)
			pot, combined = f.lockedPot, f.lockedSlider
			if abs32(f.lockedPot-livePot) < limboEpsilon && abs32(f.lockedSlider-liveCombined) < limboEpsilon {
				f.limbo = false
			}
		}

		out.Pot[i] = dsp.Clamp(pot, 0, 1)
		out.CVSlider[i] = dsp.Clamp(combined, clampLow, clampHigh)
	}
	return out
}

// limboChaseRate is "2*direction*B/sample_rate per block" with
// direction folded into chase()'s sign-toward-target step.
func limboChaseRate(b int) float32 {
	if b <= 0 {
		b = 1
	}
	return 2 * float32(b) / dsp.SampleRate
}

func chase(value, target, rate float32) float32 {
	if value < target {
		value += rate
		if value > target {
			value = target
		}
	} else if value > target {
		value -= rate
		if value < target {
			value = target
		}
	}
	return value
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
