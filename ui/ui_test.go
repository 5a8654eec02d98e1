package ui

import (
	"path/filepath"
	"testing"

	"github.com/stagesfw/firmware/chain"
	"github.com/stagesfw/firmware/cvreader"
	"github.com/stagesfw/firmware/settings"
)

func flatCalibration() [cvreader.NumChannels]settings.ChannelCalibration {
	var c [cvreader.NumChannels]settings.ChannelCalibration
	for i := range c {
		c[i] = settings.ChannelCalibration{AdcScale: 1, DacScale: 1}
	}
	return c
}

func newHarness(t *testing.T) (*Ui, *chain.ChainState, *cvreader.Reader, *settings.Settings) {
	t.Helper()
	set := settings.New(filepath.Join(t.TempDir(), "settings.bin"))
	cs := chain.New(false)
	cs.Index = 0
	cs.Size = 1
	reader := cvreader.New(flatCalibration())
	return New(set, cs, reader), cs, reader, set
}

func TestSwitchHistoryDebounce(t *testing.T) {
	var h switchHistory = historyReleased
	h.sample(true)
	if !h.justPressed() {
		t.Fatalf("expected just-pressed sentinel, got %#x", h)
	}
	for i := 0; i < 10; i++ {
		h.sample(true)
	}
	if !h.pressed() {
		t.Fatalf("expected sustained pressed, got %#x", h)
	}
	for i := 0; i < 10; i++ {
		h.sample(false)
	}
	if !h.released() {
		t.Fatalf("expected released, got %#x", h)
	}
}

func TestRampSliderEditSetsRange(t *testing.T) {
	u, cs, reader, _ := newHarness(t)
	cs.LocalConfig[0] = settings.MakeSegmentConfig(settings.SegmentTypeRamp, false, false, 0, 0, 0)

	var down [NumChannels]bool
	down[0] = true
	zero := cvreader.Block{B: 8}
	// let the pot/slider filters converge to 0 before locking.
	for i := 0; i < 2000; i++ {
		reader.Read(zero)
		u.Update(uint32(i), down)
	}
	// now move the live slider hard toward one extreme to cross the
	// property-edit threshold while the switch stays held.
	block := cvreader.Block{B: 8}
	block.Slider[0] = 1.0
	for i := 0; i < 4000; i++ {
		reader.Read(block)
		u.Update(uint32(2000+i), down)
	}
	if got := cs.LocalConfig[0].Range(); got != 2 {
		t.Fatalf("expected fast LFO range (2), got %d", got)
	}
}

func TestVeryLongPressEntersSixEGMode(t *testing.T) {
	u, cs, _, set := newHarness(t)

	var down [NumChannels]bool
	down[3] = true // multiModeSlots[3] is SixEG
	for i := 0; i <= multiModeToggleMs; i++ {
		u.Update(uint32(i), down)
	}
	if set.State().MultiMode != settings.MultiModeSixEG {
		t.Fatalf("expected SixEG mode, got %v", set.State().MultiMode)
	}
	if cs.Status() != chain.StatusReinitializing && cs.Status() != chain.StatusDiscovering {
		t.Fatalf("expected reinit to have started or already re-settled, got %v", cs.Status())
	}
}
