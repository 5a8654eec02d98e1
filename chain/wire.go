package chain

import (
	"encoding/binary"
	"math"

	"github.com/stagesfw/firmware/segment"
)

// FrameSize is the fixed wire-frame size for every packet kind: every
// frame is exactly 24 bytes, with no framing markers.
const FrameSize = 24

// Request opcodes.
const (
	RequestNone           uint8 = 0x00
	RequestSetSegmentType uint8 = 0xfe
	RequestSetLoop        uint8 = 0xff
)

// senderIndexRequest is the out-of-range sending-module-index value,
// unused as a real index, that flags a 24-byte frame received on the
// right-to-left link as a RequestPacket rather than a RightToLeftPacket.
const senderIndexRequest = 7

// LeftToRightPacket is transmitted rightward once every four blocks
// (phase 0 of the round robin).
type LeftToRightPacket struct {
	LastPatchedChannel uint8
	Segment            int8
	Phase              float32
	LastLoop           Loop
	SwitchPressed      [NumChannels]uint8
	InputPatched       [NumChannels]uint8
}

// Encode packs p into a 24-byte wire frame.
func (p LeftToRightPacket) Encode() [FrameSize]byte {
	var f [FrameSize]byte
	f[0] = p.LastPatchedChannel
	f[1] = byte(p.Segment)
	binary.LittleEndian.PutUint32(f[2:6], math.Float32bits(p.Phase))
	f[6] = byte(p.LastLoop.Start)
	f[7] = byte(p.LastLoop.End)
	copy(f[8:14], p.SwitchPressed[:])
	copy(f[14:20], p.InputPatched[:])
	return f
}

// DecodeLeftToRightPacket unpacks a 24-byte wire frame.
func DecodeLeftToRightPacket(f [FrameSize]byte) LeftToRightPacket {
	var p LeftToRightPacket
	p.LastPatchedChannel = f[0]
	p.Segment = int8(f[1])
	p.Phase = math.Float32frombits(binary.LittleEndian.Uint32(f[2:6]))
	p.LastLoop = Loop{Start: int8(f[6]), End: int8(f[7])}
	copy(p.SwitchPressed[:], f[8:14])
	copy(p.InputPatched[:], f[14:20])
	return p
}

// RightToLeftPacket carries six ChannelState records, transmitted
// leftward once every four blocks (phase 2 of the round robin).
type RightToLeftPacket struct {
	Channels [NumChannels]ChannelState
}

func encodeChannelState(cs ChannelState) [4]byte {
	var b [4]byte
	flags := byte(cs.SendingModuleIndex&0x7) << 5
	if cs.Bipolar {
		flags |= 1 << 4
	}
	if cs.InputPatched {
		flags |= 1 << 3
	}
	if cs.Loop {
		flags |= 1 << 2
	}
	flags |= byte(cs.Type) & 0x3
	b[0] = flags
	pot := dspClamp01(cs.Pot)
	b[1] = byte(pot * 255.0)
	cv := dspClamp(cs.CVSlider, -1, 1.999995)
	scaled := (cv + 1.0) / 2.999995 * 65535.0
	binary.LittleEndian.PutUint16(b[2:4], uint16(dspClamp(scaled, 0, 65535)))
	return b
}

func decodeChannelState(b [4]byte) ChannelState {
	flags := b[0]
	var cs ChannelState
	cs.SendingModuleIndex = int(flags >> 5)
	cs.Bipolar = flags&(1<<4) != 0
	cs.InputPatched = flags&(1<<3) != 0
	cs.Loop = flags&(1<<2) != 0
	cs.Type = segment.Type(flags & 0x3)
	cs.Pot = float32(b[1]) / 255.0
	raw := binary.LittleEndian.Uint16(b[2:4])
	cs.CVSlider = float32(raw)/65535.0*2.999995 - 1.0
	return cs
}

// Encode packs p into a 24-byte wire frame.
func (p RightToLeftPacket) Encode() [FrameSize]byte {
	var f [FrameSize]byte
	for i, cs := range p.Channels {
		b := encodeChannelState(cs)
		copy(f[i*4:i*4+4], b[:])
	}
	return f
}

// DecodeRightToLeftPacket unpacks a 24-byte wire frame.
func DecodeRightToLeftPacket(f [FrameSize]byte) RightToLeftPacket {
	var p RightToLeftPacket
	for i := range p.Channels {
		var b [4]byte
		copy(b[:], f[i*4:i*4+4])
		p.Channels[i] = decodeChannelState(b)
	}
	return p
}

// IsRequestFrame reports whether a frame received on the right-to-left
// link is actually a RequestPacket in disguise.
func IsRequestFrame(f [FrameSize]byte) bool {
	return f[0]>>5 == senderIndexRequest
}

// DiscoveryPacket is broadcast both directions during discovery and
// reinit.
type DiscoveryPacket struct {
	Key     uint32
	Counter uint8
}

// Encode packs p into a 24-byte wire frame.
func (p DiscoveryPacket) Encode() [FrameSize]byte {
	var f [FrameSize]byte
	binary.LittleEndian.PutUint32(f[0:4], p.Key)
	f[4] = p.Counter
	return f
}

// DecodeDiscoveryPacket unpacks a 24-byte wire frame.
func DecodeDiscoveryPacket(f [FrameSize]byte) DiscoveryPacket {
	return DiscoveryPacket{
		Key:     binary.LittleEndian.Uint32(f[0:4]),
		Counter: f[4],
	}
}

// RequestPacket carries a loop-edit or segment-type-cycle request
// leftward through the chain.
type RequestPacket struct {
	Request  uint8
	Argument [4]uint8
}

// Encode packs p into a 24-byte wire frame, setting the sender-index
// sentinel so IsRequestFrame routes it correctly.
func (p RequestPacket) Encode() [FrameSize]byte {
	var f [FrameSize]byte
	f[0] = senderIndexRequest << 5
	f[1] = p.Request
	copy(f[2:6], p.Argument[:])
	return f
}

// DecodeRequestPacket unpacks a 24-byte wire frame previously identified
// by IsRequestFrame.
func DecodeRequestPacket(f [FrameSize]byte) RequestPacket {
	var p RequestPacket
	p.Request = f[1]
	copy(p.Argument[:], f[2:6])
	return p
}

func dspClamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func dspClamp01(v float32) float32 { return dspClamp(v, 0, 1) }
