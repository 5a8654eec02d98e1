// Package sixeg implements the alternate top-level "six envelope
// generators" mode: six independent delay/attack/hold/decay/sustain/
// release envelopes, one per channel, each gated directly by that
// channel's gate input or front-panel switch rather than routed
// through the segment/chain linkage pipeline.
//
// Grounded on original_source/stages/envelope.{h,cc} (the single-
// envelope state machine, ported here almost unchanged since it's
// already minimal C++) and stages.cc's ProcessSixEg (the six-channel
// wiring: one set of shared length/level sliders shapes all six
// envelopes, each one gated independently — traded off against per-
// channel shape controls given the module only has one slider per
// channel and six stages to control).
package sixeg

import "github.com/stagesfw/firmware/dsp"

// Stage is the envelope's current phase, used both to decide which
// segment of the curve Value computes and to select the channel's LED
// color.
type Stage int

const (
	StageIdle Stage = iota
	StageDelay
	StageAttack
	StageHold
	StageDecay
	StageSustain
	StageRelease
)

// minStageLength is the slider-position threshold below which a stage
// is skipped entirely (envelope.cc's kMinStageLength).
const minStageLength = 0.001

// TimeScale converts a slider position above minStageLength into a
// stage length in ticks; envelope.cc's timeScale = 10000 at its
// native sample rate. Exposed as a var since the retrieval pack ties
// it to a sample rate this port doesn't share exactly.
var TimeScale float32 = 10000.0

// Envelope is one channel's DAHDSR state machine, driven once per
// tick by Gate and sampled once per tick by Value.
type Envelope struct {
	stage            Stage
	stageTime        int
	stageStartValue  float32
	value            float32
	gate             bool

	delayLength   int
	attackLength  int
	holdLength    int
	decayLength   int
	sustainLevel  float32
	releaseLength int
}

// SetDelayLength, SetAttackLength, SetHoldLength, SetDecayLength and
// SetReleaseLength take a slider position in [0,1] and convert it to a
// stage length in ticks; a position at or below minStageLength skips
// the stage (length 0).
func (e *Envelope) SetDelayLength(f float32)   { e.delayLength = stageLength(f) }
func (e *Envelope) SetAttackLength(f float32)  { e.attackLength = stageLength(f) }
func (e *Envelope) SetHoldLength(f float32)    { e.holdLength = stageLength(f) }
func (e *Envelope) SetDecayLength(f float32)   { e.decayLength = stageLength(f) }
func (e *Envelope) SetReleaseLength(f float32) { e.releaseLength = stageLength(f) }

// SetSustainLevel takes a slider position in [0,1] as the held level
// during the sustain stage.
func (e *Envelope) SetSustainLevel(f float32) { e.sustainLevel = f - 0.001 }

func stageLength(f float32) int {
	if f < minStageLength {
		return 0
	}
	n := int((f - minStageLength) * TimeScale)
	if n < 0 {
		return 0
	}
	return n
}

// HasDelay, HasAttack, HasHold, HasDecay, HasSustain and HasRelease
// report whether that stage currently has a nonzero length, used both
// to skip the stage during playback and to drive the slider LEDs that
// mirror each stage's knob position.
func (e *Envelope) HasDelay() bool   { return e.delayLength > 0 }
func (e *Envelope) HasAttack() bool  { return e.attackLength > 0 }
func (e *Envelope) HasHold() bool    { return e.holdLength > 0 }
func (e *Envelope) HasDecay() bool   { return e.decayLength > 0 }
func (e *Envelope) HasSustain() bool { return e.sustainLevel > 0.001 }
func (e *Envelope) HasRelease() bool { return e.releaseLength > 0 }

// CurrentStage reports the phase the envelope is presently in.
func (e *Envelope) CurrentStage() Stage { return e.stage }

// Gate drives the envelope from a gate/button level: a rising edge
// starts the envelope (at Delay if it has one, else Attack); a
// falling edge either returns to Idle (if the envelope hadn't started
// yet) or jumps straight to Release.
func (e *Envelope) Gate(high bool) {
	if !e.gate && high {
		if e.HasDelay() {
			e.setStage(StageDelay)
		} else {
			e.setStage(StageAttack)
		}
	}
	if e.gate && !high {
		switch e.stage {
		case StageIdle, StageDelay:
			e.setStage(StageIdle)
		default:
			e.setStage(StageRelease)
		}
	}
	e.gate = high
}

// Value advances the envelope by one tick (cascading through any
// zero-length stages) and returns the resulting level in [0,1].
func (e *Envelope) Value() float32 {
	if e.stage == StageDelay && e.stageTime >= e.delayLength {
		e.setStage(StageAttack)
	}
	if e.stage == StageAttack && e.stageTime >= e.attackLength {
		e.setStage(StageHold)
	}
	if e.stage == StageHold && e.stageTime >= e.holdLength {
		e.setStage(StageDecay)
	}
	if e.stage == StageDecay && e.stageTime >= e.decayLength {
		e.setStage(StageSustain)
	}
	if e.stage == StageRelease && e.stageTime >= e.releaseLength {
		e.setStage(StageIdle)
	}

	if e.stage != StageIdle {
		e.stageTime++
	}

	switch e.stage {
	case StageAttack:
		e.value = interpolate(e.stageStartValue, 1.0, e.stageTime, e.attackLength)
	case StageHold:
		e.value = 1.0
	case StageDecay:
		e.value = interpolate(1.0, e.sustainLevel, e.stageTime, e.decayLength)
	case StageSustain:
		e.value = e.sustainLevel
	case StageRelease:
		e.value = interpolate(e.stageStartValue, 0.0, e.stageTime, e.releaseLength)
	default:
		e.value = 0.0
	}
	return e.value
}

func (e *Envelope) setStage(s Stage) {
	if e.stage == s {
		return
	}
	e.stage = s
	e.stageTime = 0
	e.stageStartValue = e.value
}

func interpolate(from, to float32, t, length int) float32 {
	if length <= 0 {
		return to
	}
	return dsp.Crossfade(from, to, float32(t)/float32(length))
}
