package sixeg

import "testing"

func TestEnvelopeRisingEdgeEntersAttackWhenNoDelay(t *testing.T) {
	var e Envelope
	e.SetAttackLength(0.5)
	e.Gate(true)
	if e.CurrentStage() != StageAttack {
		t.Fatalf("expected Attack with no delay configured, got %v", e.CurrentStage())
	}
}

func TestEnvelopeRisingEdgeEntersDelayWhenConfigured(t *testing.T) {
	var e Envelope
	e.SetDelayLength(0.5)
	e.Gate(true)
	if e.CurrentStage() != StageDelay {
		t.Fatalf("expected Delay, got %v", e.CurrentStage())
	}
}

func TestEnvelopeCascadesThroughStages(t *testing.T) {
	var e Envelope
	e.SetAttackLength(0.011) // stageLength = (0.011-0.001)*10000 = 100 ticks
	e.SetHoldLength(0.011)
	e.SetDecayLength(0.011)
	e.SetSustainLevel(0.5)
	e.Gate(true)

	// Value() switches stage at the start of a tick, so the 101st tick is
	// the first one spent in Hold; each later check lands 100 ticks on.
	for i := 0; i < 101; i++ {
		e.Value()
	}
	if e.CurrentStage() != StageHold {
		t.Fatalf("expected Hold after attack window, got %v", e.CurrentStage())
	}
	for i := 0; i < 100; i++ {
		e.Value()
	}
	if e.CurrentStage() != StageDecay {
		t.Fatalf("expected Decay after hold window, got %v", e.CurrentStage())
	}
	for i := 0; i < 100; i++ {
		e.Value()
	}
	if e.CurrentStage() != StageSustain {
		t.Fatalf("expected Sustain after decay window, got %v", e.CurrentStage())
	}
	if v := e.Value(); absDiff(v, 0.499) > 1e-3 {
		t.Fatalf("expected sustain level ~0.499, got %v", v)
	}
}

func TestEnvelopeFallingEdgeBeforeStartReturnsToIdle(t *testing.T) {
	var e Envelope
	e.SetDelayLength(0.5)
	e.Gate(true)
	e.Gate(false)
	if e.CurrentStage() != StageIdle {
		t.Fatalf("expected Idle when release happens during Delay, got %v", e.CurrentStage())
	}
}

func TestEnvelopeFallingEdgeAfterStartJumpsToRelease(t *testing.T) {
	var e Envelope
	e.SetAttackLength(0.5)
	e.SetReleaseLength(0.5)
	e.Gate(true)
	e.Value()
	e.Gate(false)
	if e.CurrentStage() != StageRelease {
		t.Fatalf("expected Release, got %v", e.CurrentStage())
	}
}

func TestEnvelopeSkipsZeroLengthStages(t *testing.T) {
	var e Envelope
	// No delay, no attack, no hold configured: a gate should land
	// straight in Decay (or Sustain/Idle if decay/sustain are also
	// unconfigured) on the very first Value() call.
	e.SetDecayLength(0.011)
	e.SetSustainLevel(0.5)
	e.Gate(true)
	e.Value()
	if e.CurrentStage() != StageDecay {
		t.Fatalf("expected immediate skip to Decay, got %v", e.CurrentStage())
	}
}

func absDiff(a, b float32) float32 {
	if a > b {
		return a - b
	}
	return b - a
}
