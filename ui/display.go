package ui

import (
	"github.com/stagesfw/firmware/chain"
	"github.com/stagesfw/firmware/settings"
)

// ledFrame computes this tick's six channel LED colors (the slider
// LEDs are computed separately, by sliderLitFrame), branching on
// chain status and multi-mode exactly as ui.cc's UpdateLEDs does.
func (u *Ui) ledFrame(ms uint32) [NumChannels]LedColor {
	if u.mode == ModeFactoryTest {
		return u.factoryTestFrame(ms)
	}

	switch u.chain.Status() {
	case chain.StatusReinitializing:
		return u.modeIndicatorFrame()
	case chain.StatusDiscovering:
		return u.discoveryFrame(ms)
	}

	state := u.set.State()
	switch {
	case state.MultiMode.IsOuroboros(), state.MultiMode.IsSegGen():
		return u.segGenFrame(ms, state)
	case state.MultiMode == settings.MultiModeSixEG:
		return u.ledOverride
	default:
		var off [NumChannels]LedColor
		return off
	}
}

func (u *Ui) factoryTestFrame(ms uint32) [NumChannels]LedColor {
	var out [NumChannels]LedColor
	counter := (ms >> 8) % 3
	cyclePalette := [3]LedColor{LedGreen, LedYellow, LedRed}
	for i := range out {
		out[i] = cyclePalette[counter]
	}
	return out
}

// modeIndicatorFrame lights the channel whose paired multi-mode slot
// matches the currently active mode, ui.cc's show_mode().
func (u *Ui) modeIndicatorFrame() [NumChannels]LedColor {
	var out [NumChannels]LedColor
	state := u.set.State()
	for i, slot := range multiModeSlots {
		if slot.multi == state.MultiMode && slot.advanced == u.chain.Advanced {
			out[i] = LedRed
		}
	}
	return out
}

// discoveryFrame walks a single lit LED back and forth across the
// whole chain's worth of channels so the operator can watch the chain
// size resolve, plus the mode indicator underneath it.
func (u *Ui) discoveryFrame(ms uint32) [NumChannels]LedColor {
	out := u.modeIndicatorFrame()
	if i := walkingDiscoveryIndex(ms, u.chain.Size, u.chain.Index); i >= 0 {
		out[i] = LedYellow
	}
	return out
}

// segGenFrame is the Stages/Ouroboros LED display: each channel's
// color comes from its segment type, dimmed by a type-dependent fade
// pattern that encodes loop status, LFO rate, or ramp slope, with a
// color-blind alternate brightness encoding and a bipolar blink
// layered on top.
func (u *Ui) segGenFrame(ms uint32, state settings.State) [NumChannels]LedColor {
	pwm := uint8(ms) & 0xf
	var out [NumChannels]LedColor

	fadePatterns := [4]uint8{
		0xf,
		fadePattern(ms, 4, 0x00, false),
		fadePattern(ms, 4, 0x0f, false),
		fadePattern(ms, 4, 0x08, false),
	}
	lfoPatterns := [3]uint8{
		fadePattern(ms, 4, 0x08, false),
		fadePattern(ms, 6, 0x08, false),
		fadePattern(ms, 2, 0x08, false),
	}
	rampPatterns := [3]uint8{
		0xf,
		fadePattern(ms, 5, 0x08, true),
		fadePattern(ms, 7, 0x08, true),
	}

	for i := 0; i < NumChannels; i++ {
		cfg := state.SegmentConfiguration[i]
		brightness := uint8(0xf)

		color := palette[cfg.Type()]

		if state.MultiMode.IsSegGen() {
			switch u.chain.LoopStatus(i) {
			case chain.LoopSelf:
				brightness = lfoPatterns[cfg.Range()&0x3]
			default:
				brightness = fadePatterns[loopStatusIdx(u.chain.LoopStatus(i))]
				if cfg.Type() == settings.SegmentTypeRamp {
					brightness = uint8(uint16(brightness) * (uint16(rampPatterns[cfg.Range()&0x3]) + 1) >> 5)
				}
			}
			if (u.changingSlider[i]) && (cfg.Type() == settings.SegmentTypeStep || cfg.Type() == settings.SegmentTypeHold) {
				scale := 3 - cfg.Scale()
				if (ms>>6)%2 == 0 {
					color = palette[scale&0x3]
				} else {
					color = LedOff
				}
			} else if cfg.Type() == settings.SegmentTypeTuring {
				proportion := uint8(ms>>7) & 15
				if proportion > 7 {
					proportion = 15 - proportion
				}
				if uint8(ms)&7 < proportion {
					color = LedGreen
				} else {
					color = LedRed
				}
			}
		}

		if state.ColorBlind {
			switch cfg.Type() {
			case settings.SegmentTypeRamp:
				modulation := fadePattern(ms, 6, uint8(13-2*i), false) >> 1
				brightness = uint8(uint16(brightness) * (7 + uint16(modulation)) >> 4)
			case settings.SegmentTypeStep:
				if brightness >= 0x8 {
					brightness = 0xf
				} else {
					brightness = 0
				}
			case settings.SegmentTypeHold:
				if brightness >= 0xc {
					brightness = 0x1
				} else {
					brightness = 0
				}
			}
		}

		if state.MultiMode.IsSegGen() && cfg.Bipolar() && (ms>>8)%4 == 0 {
			color = LedRed
			brightness = 0x1
		}

		if brightness >= pwm && brightness != 0 {
			out[i] = color
		} else {
			out[i] = LedOff
		}
	}
	return out
}

func loopStatusIdx(s chain.LoopStatus) int {
	switch s {
	case chain.LoopNone:
		return 0
	case chain.LoopStart:
		return 1
	case chain.LoopEnd:
		return 2
	case chain.LoopSelf:
		return 3
	default:
		return 0
	}
}

// sliderLitFrame reports, per channel, whether the slider LED should
// be lit: only while a flash is in progress. A channel in limbo gets
// no dither; its LED stays off like any channel without a flash.
func (u *Ui) sliderLitFrame() [NumChannels]bool {
	var out [NumChannels]bool
	for i := 0; i < NumChannels; i++ {
		if u.sliderLedCounter[i] > 0 {
			out[i] = true
			continue
		}
		if u.reader.InLimbo(i) {
			continue
		}
		out[i] = false
	}
	return out
}
