// Package settings persists per-channel calibration and per-channel segment
// configuration across restarts. The original firmware keeps two tagged
// chunks ("CALI", "STAT") in a wear-leveled flash region with CRC-checked
// reads; this package reproduces the same tagged-chunk-plus-CRC shape but
// backs it with a plain file, the host analogue of flash. The CRC algorithm
// (CRC-16/CCITT-FALSE) is computed with github.com/snksoft/crc, the same
// library thermotek.checksum uses.
package settings

import (
	"bytes"
	"encoding/binary"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
	"github.com/snksoft/crc"
)

// NumChannels is the channel count per module.
const NumChannels = 6

// MultiMode selects the top-level processor wired in App. Values match
// the firmware's enum exactly so persisted state round-trips unchanged
// in meaning.
type MultiMode uint8

const (
	MultiModeNormal             MultiMode = 0
	MultiModeOuroboros          MultiMode = 1
	MultiModeSlowLFO            MultiMode = 2
	MultiModeSixEG              MultiMode = 3
	MultiModeOuroborosAlternate MultiMode = 4
	MultiModeSliderRange        MultiMode = 5
)

// IsSegGen reports whether m runs the linked segment-generator pipeline
// (the "Stages" and "Stages, slow LFO" variants).
func (m MultiMode) IsSegGen() bool {
	return m == MultiModeNormal || m == MultiModeSlowLFO
}

// IsOuroboros reports whether m runs the Ouroboros quantized-waveform
// pipeline (either polarity variant).
func (m MultiMode) IsOuroboros() bool {
	return m == MultiModeOuroboros || m == MultiModeOuroborosAlternate
}

// SegmentConfig is the persisted per-channel segment configuration word,
// widened from the original firmware's 8-bit field to 16 bits to carry
// the LFO-range and quantizer-scale bits; see DESIGN.md for the
// rationale.
type SegmentConfig uint16

const (
	segConfigTypeMask     SegmentConfig = 0x0003
	segConfigLoopBit      SegmentConfig = 1 << 2
	segConfigBipolarBit   SegmentConfig = 1 << 3
	segConfigWaveshapeSft               = 4
	segConfigWaveshapeMsk SegmentConfig = 0x7 << segConfigWaveshapeSft
	segConfigRangeSft                   = 8
	segConfigRangeMsk     SegmentConfig = 0x3 << segConfigRangeSft
	segConfigScaleSft                   = 12
	segConfigScaleMsk     SegmentConfig = 0x3 << segConfigScaleSft
)

// SegmentType is the 2-bit segment type field.
type SegmentType uint8

const (
	SegmentTypeRamp SegmentType = iota
	SegmentTypeStep
	SegmentTypeHold
	SegmentTypeTuring
)

func (c SegmentConfig) Type() SegmentType { return SegmentType(c & segConfigTypeMask) }
func (c SegmentConfig) Loop() bool        { return c&segConfigLoopBit != 0 }
func (c SegmentConfig) Bipolar() bool     { return c&segConfigBipolarBit != 0 }
func (c SegmentConfig) Waveshape() uint8 {
	return uint8((c & segConfigWaveshapeMsk) >> segConfigWaveshapeSft)
}
func (c SegmentConfig) Range() uint8 { return uint8((c & segConfigRangeMsk) >> segConfigRangeSft) }
func (c SegmentConfig) Scale() uint8 { return uint8((c & segConfigScaleMsk) >> segConfigScaleSft) }

// WithType, WithLoop, WithBipolar and WithRange return a copy of c with
// the named field replaced, leaving every other bit untouched. Used by
// the chain package's switch-edit handling (set_segment_type, set_loop)
// and the ui package's local property edits.
func (c SegmentConfig) WithType(t SegmentType) SegmentConfig {
	return (c &^ segConfigTypeMask) | SegmentConfig(t)&segConfigTypeMask
}

func (c SegmentConfig) WithLoop(on bool) SegmentConfig {
	if on {
		return c | segConfigLoopBit
	}
	return c &^ segConfigLoopBit
}

func (c SegmentConfig) WithBipolar(on bool) SegmentConfig {
	if on {
		return c | segConfigBipolarBit
	}
	return c &^ segConfigBipolarBit
}

func (c SegmentConfig) WithWaveshape(w uint8) SegmentConfig {
	return (c &^ segConfigWaveshapeMsk) | (SegmentConfig(w&0x7) << segConfigWaveshapeSft)
}

func (c SegmentConfig) WithRange(r uint8) SegmentConfig {
	return (c &^ segConfigRangeMsk) | (SegmentConfig(r&0x3) << segConfigRangeSft)
}

func (c SegmentConfig) WithScale(s uint8) SegmentConfig {
	return (c &^ segConfigScaleMsk) | (SegmentConfig(s&0x3) << segConfigScaleSft)
}

func MakeSegmentConfig(t SegmentType, loop, bipolar bool, waveshape, rng, scale uint8) SegmentConfig {
	c := SegmentConfig(t) & segConfigTypeMask
	if loop {
		c |= segConfigLoopBit
	}
	if bipolar {
		c |= segConfigBipolarBit
	}
	c |= SegmentConfig(waveshape&0x7) << segConfigWaveshapeSft
	c |= SegmentConfig(rng&0x3) << segConfigRangeSft
	c |= SegmentConfig(scale&0x3) << segConfigScaleSft
	return c
}

// ChannelCalibration mirrors ChannelCalibrationData: the ADC/DAC linear
// calibration coefficients for one channel.
type ChannelCalibration struct {
	AdcOffset float32
	AdcScale  float32
	DacOffset float32
	DacScale  float32
}

// DacCode converts a [-1, 2) level to a clamped 16-bit DAC code.
func (c ChannelCalibration) DacCode(level float32) uint16 {
	value := level*c.DacScale + c.DacOffset
	if value < 0 {
		value = 0
	}
	if value > 65531 {
		value = 65531
	}
	return uint16(value)
}

// DefaultCalibration is the hard-coded fallback used when a chunk fails its
// CRC check.
func DefaultCalibration() ChannelCalibration {
	return ChannelCalibration{AdcOffset: 0, AdcScale: 1, DacOffset: 32768, DacScale: 16384}
}

// PersistentData is the "CALI" chunk: per-channel calibration.
type PersistentData struct {
	Channels [NumChannels]ChannelCalibration
}

// State is the "STAT" chunk: per-channel segment configuration plus the
// global color-blind and multimode flags.
type State struct {
	SegmentConfiguration [NumChannels]SegmentConfig
	ColorBlind           bool
	MultiMode            MultiMode
}

const (
	tagCalibration uint32 = 0x494C4143 // "CALI"
	tagState       uint32 = 0x54415453 // "STAT"
)

var crcTable = crc.NewTable(crc.CCITT)

// Settings owns the two chunks and knows how to persist/reload them from a
// single file path, replacing the firmware's wear-leveled flash region.
type Settings struct {
	path string

	persistent PersistentData
	state      State
}

// New returns Settings with hard-coded defaults, not yet loaded from disk.
func New(path string) *Settings {
	s := &Settings{path: path}
	for i := range s.persistent.Channels {
		s.persistent.Channels[i] = DefaultCalibration()
	}
	return s
}

// Init loads both chunks from path, falling back to defaults (and logging
// nothing — the caller decides whether a fallback is noteworthy) whenever a
// chunk is missing or fails its CRC check.
func (s *Settings) Init() error {
	raw, err := ioutil.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "settings: read chunk file")
	}
	if err := s.decode(raw); err != nil {
		return errors.Wrap(err, "settings: falling back to defaults")
	}
	return nil
}

// ErrChunkCorrupt is returned (wrapped) when a chunk's CRC does not match
// its payload; callers should treat this as "use defaults".
var ErrChunkCorrupt = errors.New("settings: chunk failed crc check")

type chunkHeader struct {
	Tag    uint32
	Length uint32
	CRC    uint32
}

func (s *Settings) decode(raw []byte) error {
	r := bytes.NewReader(raw)
	for r.Len() > 0 {
		var hdr chunkHeader
		if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
			return errors.Wrap(err, "read chunk header")
		}
		payload := make([]byte, hdr.Length)
		if _, err := r.Read(payload); err != nil {
			return errors.Wrap(err, "read chunk payload")
		}
		if crcTable.CalculateCRC(payload) != uint64(hdr.CRC) {
			return ErrChunkCorrupt
		}
		pr := bytes.NewReader(payload)
		switch hdr.Tag {
		case tagCalibration:
			if err := binary.Read(pr, binary.LittleEndian, &s.persistent); err != nil {
				return errors.Wrap(err, "decode CALI")
			}
		case tagState:
			if err := binary.Read(pr, binary.LittleEndian, &s.state); err != nil {
				return errors.Wrap(err, "decode STAT")
			}
		}
	}
	return nil
}

func (s *Settings) encodeChunk(buf *bytes.Buffer, tag uint32, v interface{}) error {
	var payload bytes.Buffer
	if err := binary.Write(&payload, binary.LittleEndian, v); err != nil {
		return err
	}
	hdr := chunkHeader{
		Tag:    tag,
		Length: uint32(payload.Len()),
		CRC:    uint32(crcTable.CalculateCRC(payload.Bytes())),
	}
	if err := binary.Write(buf, binary.LittleEndian, hdr); err != nil {
		return err
	}
	_, err := buf.Write(payload.Bytes())
	return err
}

// SavePersistentData writes the CALI chunk (and, to keep the file a single
// coherent image, the STAT chunk alongside it) back to disk.
func (s *Settings) SavePersistentData() error { return s.save() }

// SaveState writes the STAT chunk (and CALI alongside it).
func (s *Settings) SaveState() error { return s.save() }

func (s *Settings) save() error {
	var buf bytes.Buffer
	if err := s.encodeChunk(&buf, tagCalibration, &s.persistent); err != nil {
		return errors.Wrap(err, "encode CALI")
	}
	if err := s.encodeChunk(&buf, tagState, &s.state); err != nil {
		return errors.Wrap(err, "encode STAT")
	}
	return errors.Wrap(ioutil.WriteFile(s.path, buf.Bytes(), 0o644), "settings: write chunk file")
}

// MutableCalibration returns a pointer to channel's calibration for editing.
func (s *Settings) MutableCalibration(channel int) *ChannelCalibration {
	return &s.persistent.Channels[channel]
}

// Calibration returns channel's calibration.
func (s *Settings) Calibration(channel int) ChannelCalibration {
	return s.persistent.Channels[channel]
}

// MutableState returns a pointer to the live state for editing.
func (s *Settings) MutableState() *State { return &s.state }

// State returns a copy of the current state.
func (s *Settings) State() State { return s.state }

// DacCode converts a channel's level to a DAC code using its calibration.
func (s *Settings) DacCode(channel int, level float32) uint16 {
	return s.persistent.Channels[channel].DacCode(level)
}
