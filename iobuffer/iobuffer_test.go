package iobuffer

import (
	"testing"

	"github.com/stagesfw/firmware/settings"
)

func TestWriteChannelConvertsLevelsToCodes(t *testing.T) {
	out := NewOutput(4)
	calib := settings.ChannelCalibration{DacScale: 16384, DacOffset: 32768}
	out.WriteChannel(2, calib, []float32{0, 1, -1, 1.999995})

	want := []uint16{32768, 49152, 16384, 65531}
	for i, w := range want {
		if out.Codes[2][i] != w {
			t.Fatalf("sample %d: got %d, want %d", i, out.Codes[2][i], w)
		}
	}
}

func TestNewBlockAllocatesGateSlices(t *testing.T) {
	b := NewBlock(8)
	for i := range b.Gate {
		if len(b.Gate[i]) != 8 {
			t.Fatalf("channel %d: expected 8-sample gate slice, got %d", i, len(b.Gate[i]))
		}
	}
}
