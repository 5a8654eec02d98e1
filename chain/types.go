// Package chain implements the distributed chain-state machine that lets
// up to six adjacent modules self-organize into a single 6-to-36-channel
// instrument: neighbor discovery, per-block channel-state exchange over
// the left/right serial links, switch/loop-edit request propagation, and
// the segment-linkage policy that turns patched/unpatched runs of
// channels into concrete segment.Generator configurations.
//
// Modeled on the chain-state machine described in
// original_source/stages/chain_state.{h,cc}.
package chain

import "github.com/stagesfw/firmware/segment"

// NumChannels is the number of physical channels on one module.
const NumChannels = 6

// MaxModules is the largest chain the protocol supports.
const MaxModules = 6

// MaxChannels is the largest total channel count across a full chain.
const MaxChannels = NumChannels * MaxModules

// unpatchedHysteresis is the number of consecutive unpatched blocks a
// channel's gate input must report before its patched flag clears.
const unpatchedHysteresis = 2000

// LoopStatus is the UI-facing refinement of a channel's loop bit.
type LoopStatus int

const (
	LoopNone LoopStatus = iota
	LoopStart
	LoopEnd
	LoopSelf
)

// Phase is one quarter of the 4-phase round robin driven by counter&3.
type Phase int

const (
	PhasePollSwitches Phase = iota
	PhaseReceiveRight
	PhaseRefreshLocal
	PhaseReceiveLeft
)

// Status is this module's position in the discovery/reinit/ready cycle.
type Status int

const (
	StatusDiscovering Status = iota
	StatusReinitializing
	StatusReady
)

// ChannelState is the compact per-channel record exchanged on the wire.
type ChannelState struct {
	SendingModuleIndex int
	Type               segment.Type
	Loop               bool
	Bipolar            bool
	InputPatched       bool
	Pot                float32 // 0..1
	CVSlider           float32 // combined cv+slider, [-1, 1.999995]
}

// Loop is a pair of segment indices within a generator; -1,-1 means no
// loop.
type Loop struct {
	Start, End int8
}

// NoLoop is the sentinel "no loop configured" value.
var NoLoop = Loop{Start: -1, End: -1}
