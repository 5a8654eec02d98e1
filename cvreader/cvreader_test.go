package cvreader

import (
	"testing"

	"github.com/stagesfw/firmware/settings"
)

func flatCalibration() [NumChannels]settings.ChannelCalibration {
	var c [NumChannels]settings.ChannelCalibration
	for i := range c {
		c[i] = settings.ChannelCalibration{AdcScale: 1, AdcOffset: 0, DacScale: 1, DacOffset: 0}
	}
	return c
}

func TestReadConvergesToSteadyInput(t *testing.T) {
	r := New(flatCalibration())
	block := Block{B: 8}
	block.Pot[0] = 0.75
	block.CV[0] = 0.5

	var out Result
	for i := 0; i < 2000; i++ {
		out = r.Read(block)
	}
	if d := out.Pot[0] - 0.75; d > 1e-3 || d < -1e-3 {
		t.Fatalf("pot did not converge: got %v", out.Pot[0])
	}
	if d := out.CVSlider[0] - 0.5; d > 1e-3 || d < -1e-3 {
		t.Fatalf("cv did not converge: got %v", out.CVSlider[0])
	}
}

func TestClampRange(t *testing.T) {
	r := New(flatCalibration())
	block := Block{B: 8}
	block.CV[0] = 10
	block.Slider[0] = 10

	var out Result
	for i := 0; i < 4000; i++ {
		out = r.Read(block)
	}
	if out.CVSlider[0] != clampHigh {
		t.Fatalf("expected clamp to %v, got %v", clampHigh, out.CVSlider[0])
	}
}

func TestLockFreezesValueUntilUnlock(t *testing.T) {
	r := New(flatCalibration())
	block := Block{B: 8}
	block.Pot[0] = 0.2

	r.Read(block)
	r.Read(block)
	r.Lock(0)
	locked := r.filters[0].lockedPot

	block.Pot[0] = 0.9
	out := r.Read(block)
	if out.Pot[0] != locked {
		t.Fatalf("locked pot changed: got %v, want %v", out.Pot[0], locked)
	}

	r.Unlock(0)
	for i := 0; i < 4000; i++ {
		out = r.Read(block)
	}
	if d := out.Pot[0] - 0.9; d > 1e-3 || d < -1e-3 {
		t.Fatalf("pot did not chase live value after unlock: got %v", out.Pot[0])
	}
}
