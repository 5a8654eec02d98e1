// Package ui implements the front panel: switch debounce, short/long/
// very-long press interpretation, the local segment-property editing
// that happens while a switch is held, multi-mode cycling, and the
// per-channel LED animation.
//
// Grounded on original_source/stages/ui.{h,cc}; press and property
// editing talk to chain.ChainState and cvreader.Reader exactly the way
// the original Ui talks to ChainState and CvReader, adapted to this
// module's settings.MultiMode/ChainState.Advanced split (the original
// folds "advanced mode" into one of its six MultiMode values; here it
// is ChainState's own Advanced flag, so the multi-mode cycle table
// pairs a MultiMode with an Advanced bool per switch instead).
package ui

import (
	"github.com/stagesfw/firmware/chain"
	"github.com/stagesfw/firmware/cvreader"
	"github.com/stagesfw/firmware/settings"
)

// NumChannels is the number of front-panel channels/switches/LEDs.
const NumChannels = 6

// Press-duration thresholds in 1 ms-equivalent ticks.
const (
	longPressMs          = 500
	multiModeToggleMs    = 5000
	propertyChangeThresh = 0.05
)

// Mode is the ui-local display mode, independent of settings.MultiMode:
// factory test takes over the LEDs entirely for hardware bring-up.
type Mode int

const (
	ModeNormal Mode = iota
	ModeFactoryTest
)

type modeSlot struct {
	multi    settings.MultiMode
	advanced bool
}

// multiModeSlots pairs each switch (by position, left to right) with
// the mode a 5-second hold on it selects, matching ui.cc's multimodes_
// table.
var multiModeSlots = [NumChannels]modeSlot{
	{settings.MultiModeNormal, false},
	{settings.MultiModeNormal, true},
	{settings.MultiModeSlowLFO, false},
	{settings.MultiModeSixEG, false},
	{settings.MultiModeOuroboros, false},
	{settings.MultiModeOuroborosAlternate, false},
}

// Ui owns the front panel's switch/LED state for one module.
type Ui struct {
	set    *settings.Settings
	chain  *chain.ChainState
	reader *cvreader.Reader

	mode Mode

	history          [NumChannels]switchHistory
	pressMs          [NumChannels]int
	multiModePressMs [NumChannels]int
	changingSlider   [NumChannels]bool
	changingPot      [NumChannels]bool

	ledOverride      [NumChannels]LedColor // set by app in SixEG mode
	sliderLedCounter [NumChannels]int
}

// New creates a Ui wired to the given settings/chain/cv-reader, all
// owned by the same App instance, replacing the original's static
// singletons with one owning record.
func New(set *settings.Settings, cs *chain.ChainState, reader *cvreader.Reader) *Ui {
	u := &Ui{set: set, chain: cs, reader: reader}
	for i := range u.history {
		u.history[i] = historyReleased
	}
	return u
}

// SetFactoryTest switches the LED display over to the hardware
// bring-up pattern.
func (u *Ui) SetFactoryTest(on bool) {
	if on {
		u.mode = ModeFactoryTest
	} else {
		u.mode = ModeNormal
	}
}

// SetLed lets a top-level processor (SixEG) drive a channel's LED
// directly instead of the built-in segment-configuration display.
func (u *Ui) SetLed(i int, c LedColor) { u.ledOverride[i] = c }

// FlashSliderLed lights channel i's slider LED for the given number of
// ticks, used to show activity (e.g. a step advancing) independent of
// its property-edit state.
func (u *Ui) FlashSliderLed(i int, ticks int) {
	if ticks > u.sliderLedCounter[i] {
		u.sliderLedCounter[i] = ticks
	}
}

// Frame is one tick's resolved panel state: the debounced pressed
// bitmask (to fold into chain.BlockInput.SwitchDown) and the LED
// colors/slider-lit flags to drive the hardware.
type Frame struct {
	Pressed   [NumChannels]bool
	LED       [NumChannels]LedColor
	SliderLit [NumChannels]bool
}

// Update debounces this tick's raw switch readings, applies short/
// long/very-long press interpretation (local property edit, multimode
// toggle), and computes this tick's LED frame. Call once per
// 1 ms-equivalent tick, the same cadence chain.ChainState.Update runs
// at.
func (u *Ui) Update(ms uint32, rawDown [NumChannels]bool) Frame {
	for i := range u.history {
		u.history[i].sample(rawDown[i])
	}

	var pressed [NumChannels]bool
	for i := range pressed {
		pressed[i] = u.history[i].pressed()
	}

	u.editProperties(pressed)
	u.detectMultiModeToggle(pressed)
	if u.set.State().MultiMode.IsOuroboros() {
		u.pollOuroborosTypeCycle(pressed)
	}

	for i := range u.sliderLedCounter {
		if u.sliderLedCounter[i] > 0 {
			u.sliderLedCounter[i]--
		}
	}

	return Frame{
		Pressed:   pressed,
		LED:       u.ledFrame(ms),
		SliderLit: u.sliderLitFrame(),
	}
}

// editProperties implements ui.cc's per-channel "hold switch, move
// slider/pot to edit a local property" behavior: while channel i's
// switch is held, a large-enough slider deviation from its locked
// value edits the segment's LFO range or quantizer scale, and a
// large-enough pot deviation toggles bipolar. The edit commits once
// per gesture (changingSlider/changingPot latch until release) so a
// single hold can't ratchet back and forth across the threshold.
func (u *Ui) editProperties(pressed [NumChannels]bool) {
	dirty := false
	mode := u.set.State().MultiMode
	for i := 0; i < NumChannels; i++ {
		if !pressed[i] {
			u.changingSlider[i] = false
			u.changingPot[i] = false
			u.reader.Unlock(i)
			u.chain.SuspendSwitch(i, false)
			continue
		}

		u.reader.Lock(i)
		slider := clamp01(u.reader.LPSlider(i))
		pot := clamp01(u.reader.LPPot(i))
		lockedSlider := clamp01(u.reader.LockedSlider(i))
		lockedPot := clamp01(u.reader.LockedPot(i))

		cfg := u.chain.LocalConfig[i]
		before := cfg

		if u.changingSlider[i] || absf(slider-lockedSlider) > propertyChangeThresh {
			u.changingSlider[i] = true
			switch {
			case mode.IsSegGen():
				cfg = editSegGenSlider(cfg, u.chain, i, slider)
			case mode.IsOuroboros():
				cfg = cfg.WithRange(ouroborosRangeFromSlider(slider))
			}
		}

		if !u.changingPot[i] && absf(pot-lockedPot) > propertyChangeThresh {
			u.changingPot[i] = true
			if mode.IsSegGen() {
				cfg = cfg.WithBipolar(!cfg.Bipolar())
			}
		}

		if cfg != before {
			u.chain.LocalConfig[i] = cfg
			dirty = true
		}

		// A property edit in progress always suspends the chain's own
		// short/long press interpretation for this channel.
		if u.changingSlider[i] || u.changingPot[i] {
			u.chain.SuspendSwitch(i, true)
		}
	}
	if dirty {
		u.set.MutableState().SegmentConfiguration = u.chain.LocalConfig
		u.set.SaveState()
	}
}

// editSegGenSlider applies slider-held range/scale editing for Stages
// mode, per ui.cc: Ramp (and a self-looping Turing) get the LFO-range
// bits; Step/Hold get the quantizer-scale bits.
func editSegGenSlider(cfg settings.SegmentConfig, cs *chain.ChainState, i int, slider float32) settings.SegmentConfig {
	switch cfg.Type() {
	case settings.SegmentTypeRamp:
		return cfg.WithRange(lfoRangeFromSlider(slider))
	case settings.SegmentTypeTuring:
		if cs.LoopStatus(i) == chain.LoopSelf {
			return cfg.WithRange(lfoRangeFromSlider(slider))
		}
		return cfg
	case settings.SegmentTypeStep, settings.SegmentTypeHold:
		return cfg.WithScale(uint8(4 * slider))
	default:
		return cfg
	}
}

// lfoRangeFromSlider maps the slider's position to the three-way LFO
// range field: slow(1)/default-mid(0)/fast(2), ui.cc's kNumChannels
// loop over seg_config[i] for type Ramp/Turing.
func lfoRangeFromSlider(slider float32) uint8 {
	switch {
	case slider < 0.25:
		return 1
	case slider > 0.75:
		return 2
	default:
		return 0
	}
}

// ouroborosRangeFromSlider mirrors ui.cc's Ouroboros-mode slider
// handling, which reuses the same range field with high as the
// default (rather than mid, as in Stages mode).
func ouroborosRangeFromSlider(slider float32) uint8 {
	switch {
	case slider < 0.25:
		return 2
	case slider < 0.75:
		return 1
	default:
		return 0
	}
}

// pollOuroborosTypeCycle implements ui.cc's Ouroboros-mode waveshape
// editing, tracked independently of the Stages-mode request
// propagation through chain.ChainState: a short press cycles the
// waveshape's low two bits through {0,1,2}; a long (but not
// multimode-toggle-length) press toggles its high bit.
func (u *Ui) pollOuroborosTypeCycle(pressed [NumChannels]bool) {
	for i := 0; i < NumChannels; i++ {
		suspended := u.changingSlider[i] || u.changingPot[i]
		switch {
		case suspended:
			u.pressMs[i] = 0
		case pressed[i]:
			if u.pressMs[i] != -1 {
				u.pressMs[i]++
			}
		default:
			if u.pressMs[i] > longPressMs {
				if u.pressMs[i] < multiModeToggleMs {
					cfg := u.chain.LocalConfig[i]
					u.chain.LocalConfig[i] = cfg.WithWaveshape(cfg.Waveshape() ^ 0x4)
					u.set.MutableState().SegmentConfiguration = u.chain.LocalConfig
					u.set.SaveState()
				}
			} else if u.pressMs[i] > 0 {
				cfg := u.chain.LocalConfig[i]
				lsb := cfg.Waveshape() & 0x3
				next := (lsb + 1) % 3
				u.chain.LocalConfig[i] = cfg.WithWaveshape((cfg.Waveshape() & 0x4) | next)
				u.set.MutableState().SegmentConfiguration = u.chain.LocalConfig
				u.set.SaveState()
			}
			u.pressMs[i] = 0
		}
	}
}

// detectMultiModeToggle tracks a very-long (5 s) press on any switch
// not currently suspended by a property edit, and as soon as the press
// passes the threshold, while the switch is still held, switches into
// that switch's paired mode and kicks off a chain reinit, per ui.cc's
// MultiModeToggle.
func (u *Ui) detectMultiModeToggle(pressed [NumChannels]bool) {
	suspended := false
	for i := 0; i < NumChannels; i++ {
		if u.changingSlider[i] || u.changingPot[i] {
			suspended = true
			break
		}
	}
	for i := 0; i < NumChannels; i++ {
		if pressed[i] && !suspended {
			if u.multiModePressMs[i] != -1 {
				u.multiModePressMs[i]++
			}
			if u.multiModePressMs[i] > multiModeToggleMs {
				u.enterMode(i)
				u.multiModePressMs[i] = -1
			}
		} else {
			u.multiModePressMs[i] = 0
		}
	}
}

func (u *Ui) enterMode(i int) {
	slot := multiModeSlots[i]
	state := u.set.MutableState()
	if state.MultiMode == slot.multi && u.chain.Advanced == slot.advanced {
		return
	}
	for j := range u.pressMs {
		u.pressMs[j] = -1
	}
	for j := 0; j < NumChannels; j++ {
		u.chain.SuspendSwitch(j, true)
	}
	state.MultiMode = slot.multi
	u.chain.Advanced = slot.advanced
	u.set.SaveState()
	u.chain.StartReinit()
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 0.9999 {
		return 0.9999
	}
	return v
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
