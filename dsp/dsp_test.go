package dsp

import (
	"math"
	"testing"
)

func TestWarpPhaseIdentity(t *testing.T) {
	for _, tv := range []float32{0, 0.1, 0.5, 0.9, 1} {
		got := WarpPhase(tv, 0.5)
		if math.Abs(float64(got-tv)) > 1e-6 {
			t.Errorf("WarpPhase(%v, 0.5) = %v, want %v", tv, got, tv)
		}
	}
	for _, c := range []float32{0, 0.25, 0.5, 0.75, 1} {
		if got := WarpPhase(0, c); got != 0 {
			t.Errorf("WarpPhase(0, %v) = %v, want 0", c, got)
		}
		if got := WarpPhase(1, c); math.Abs(float64(got-1)) > 1e-6 {
			t.Errorf("WarpPhase(1, %v) = %v, want 1", c, got)
		}
	}
}

func TestOnePoleConverges(t *testing.T) {
	state := float32(0)
	for i := 0; i < 1000; i++ {
		state = OnePole(state, 1.0, 0.05)
	}
	if math.Abs(float64(state-1)) > 1e-3 {
		t.Errorf("OnePole did not converge, got %v", state)
	}
}

func TestHysteresisQuantizerNoChatter(t *testing.T) {
	q := NewHysteresisQuantizer()
	first := q.Lookup(0.5, 4, 0.1)
	// small jitter around the boundary should not change the codeword
	second := q.Lookup(0.5+0.001, 4, 0.1)
	if first != second {
		t.Errorf("quantizer chattered: %d -> %d", first, second)
	}
}

func TestDelayLineRoundTrip(t *testing.T) {
	var d DelayLine
	d.Reset()
	for i := 0; i < 10; i++ {
		d.Write(float32(i))
	}
	got := d.Read(5)
	if math.Abs(float64(got-4)) > 1e-5 {
		t.Errorf("Read(5) = %v, want 4", got)
	}
}
