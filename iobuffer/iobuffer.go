// Package iobuffer is the boundary between the real-time hardware
// interrupt and the core pipeline (cvreader/chain/segment/ui):
// per-block raw ADC samples coming in, per-sample DAC codes and gate
// reads going out. ADC sampling, DAC output, and gate input debouncing
// are external collaborators specified only by their interface to the
// core — this package is that interface, not a driver; a real build
// wires it to the actual converters.
package iobuffer

import "github.com/stagesfw/firmware/settings"

// NumChannels is the channel count per module.
const NumChannels = 6

// Block is one block's raw hardware I/O: B samples of gate input per
// channel and B samples of output level to convert to DAC codes,
// alongside the once-per-block pot/slider/cv readings cvreader
// consumes.
type Block struct {
	B int

	Pot    [NumChannels]float32
	Slider [NumChannels]float32
	CV     [NumChannels]float32

	// Gate holds this block's per-sample gate/trigger reads, true
	// while the input is above its comparator threshold.
	Gate [NumChannels][]bool

	// InputPatched is the raw per-block normalization-detection
	// reading; the chain package applies its own hysteresis window on
	// top of this, not here.
	InputPatched [NumChannels]bool

	// Switch is this block's raw front-panel switch reads, true while
	// held down; debounced by the ui package.
	Switch [NumChannels]bool
}

// NewBlock allocates a Block with B-sample-deep gate slices.
func NewBlock(b int) Block {
	var blk Block
	blk.B = b
	for i := range blk.Gate {
		blk.Gate[i] = make([]bool, b)
	}
	return blk
}

// Output is one block's worth of per-sample DAC codes for every
// channel, ready to hand to the converter.
type Output struct {
	Codes [NumChannels][]uint16
}

// NewOutput allocates an Output with B-sample-deep code slices.
func NewOutput(b int) Output {
	var out Output
	for i := range out.Codes {
		out.Codes[i] = make([]uint16, b)
	}
	return out
}

// WriteChannel converts one channel's B resolved [-1, 2) levels to
// calibrated DAC codes and stores them in out.
func (out *Output) WriteChannel(channel int, calib settings.ChannelCalibration, levels []float32) {
	codes := out.Codes[channel]
	for i, lv := range levels {
		if i >= len(codes) {
			break
		}
		codes[i] = calib.DacCode(lv)
	}
}
