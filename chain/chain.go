package chain

import (
	"math/rand"

	"github.com/stagesfw/firmware/segment"
	"github.com/stagesfw/firmware/settings"
)

// discoveryStart/discoveryReadyAt/discoveryPeriod/reinitBroadcastFor
// are the tick windows governing discovery and reinit.
const (
	discoveryStart     = 2000
	discoveryReadyAt   = 8000
	discoveryPeriod    = 200
	reinitBroadcastFor = 2000
)

// basicKey and advancedKey distinguish module mode during discovery so
// mismatched modes never bind to each other. The values only need to
// be fixed and distinct; they have no further meaning.
const (
	basicKey    uint32 = 0xb5510001
	advancedKey uint32 = 0xad510002
)

// ChainState is one module's view of the chain: its discovered
// position, the mirrored channel state for every channel in the chain,
// and the protocol state (discovery/reinit/ready, switch press timers,
// pending request).
type ChainState struct {
	Advanced bool // basic vs advanced module mode; gates the discovery key

	Index int // this module's position once Ready
	Size  int // chain size once Ready

	link Link

	status  Status
	counter uint64

	discoverySawLeft, discoverySawRight bool

	reinitKey     uint32
	reinitCount   uint32
	reinitPending bool

	channels [MaxChannels]ChannelState
	patched  [MaxChannels]bool
	// unpatchedStreak counts consecutive blocks a currently-patched local
	// channel has reported no signal; it flips to unpatched only past
	// unpatchedHysteresis.
	unpatchedStreak [NumChannels]int

	lastPatchedChannel int
	lastLoop           Loop

	rxLastSample [NumChannels]float32

	switchPressed    [NumChannels]uint8
	pressDurationMs  [NumChannels]int // -1 = suspended
	localEditing     [NumChannels]bool
	pendingRequest   *RequestPacket

	txIndex int
	txTick  int

	rng *rand.Rand

	// LocalConfig is this module's persisted per-channel segment
	// configuration (type/loop/bipolar/range), kept current by the ui
	// package as the operator edits it. Read by rebuildLinkage and by
	// refreshLocal when publishing this module's ChannelState.
	LocalConfig [NumChannels]settings.SegmentConfig

	// Generators holds the six local segment generators rebuilt each
	// time the chain linkage changes (phase 3). Params holds, per
	// generator, the resolved Parameters slice to pass to Process;
	// resolveParams refreshes it every block from live pot/cv/slider or
	// the remote channel mirror.
	Generators [NumChannels]*segment.Generator
	groups     [NumChannels]generatorGroup
}

// generatorGroup is the bookkeeping rebuildLinkage keeps per local
// generator: which absolute channels feed it and how.
type generatorGroup struct {
	active   bool
	bindings []paramBinding
	params   []segment.Parameters
}

type bindKind int

const (
	bindInternal bindKind = iota // source is a local channel on this module
	bindRemote                   // source is a mirrored remote channel
)

type paramBinding struct {
	kind    bindKind
	channel int // absolute channel index
}

// New creates a ChainState for one module, initially in Discovering
// status. advanced selects the module-mode discovery key.
func New(advanced bool) *ChainState {
	c := &ChainState{
		Advanced: advanced,
		status:   StatusDiscovering,
		link:     nullLink{},
		rng:      rand.New(rand.NewSource(1)),
	}
	for i := range c.pressDurationMs {
		c.pressDurationMs[i] = 0
	}
	c.lastLoop = NoLoop
	return c
}

// SetLink attaches the transport (real serial or virtual) this chain
// state drives.
func (c *ChainState) SetLink(l Link) { c.link = l }

// Status reports the current protocol state.
func (c *ChainState) Status() Status { return c.status }

func (c *ChainState) discoveryKey() uint32 {
	if c.Advanced {
		return advancedKey
	}
	return basicKey
}

// BlockInput is what the host block processor supplies each block:
// live pot/cv+slider readings and gate-patched detection for this
// module's own six channels, plus any switch presses this tick.
type BlockInput struct {
	Pot          [NumChannels]float32
	CVSlider     [NumChannels]float32
	InputPatched [NumChannels]bool
	SwitchDown   [NumChannels]bool
	MultiMode    settings.MultiMode
}

// Update advances the chain state machine by one phase (counter&3) of
// the 4-phase round robin.
func (c *ChainState) Update(in BlockInput) {
	switch c.status {
	case StatusDiscovering:
		c.updateDiscovery(in)
	case StatusReinitializing:
		c.updateReinit(in)
	case StatusReady:
		c.updateReady(in)
	}
	c.counter++
}

func (c *ChainState) updateReady(in BlockInput) {
	switch Phase(c.counter & 3) {
	case PhasePollSwitches:
		c.pollSwitches(in)
		c.transmitRight()
	case PhaseReceiveRight:
		c.receiveRight()
		c.handlePendingRequest()
	case PhaseRefreshLocal:
		c.refreshLocal(in)
		c.transmitLeft()
	case PhaseReceiveLeft:
		c.receiveLeft()
		c.rebuildLinkage()
	}
}

// StartReinit begins the reinit broadcast, typically called after a
// local multimode change.
func (c *ChainState) StartReinit() {
	c.status = StatusReinitializing
	c.reinitKey = uint32(c.rng.Int63())
	c.reinitCount = 0
}

func (c *ChainState) updateReinit(in BlockInput) {
	if c.reinitCount%discoveryPeriod == 0 {
		f := DiscoveryPacket{Key: c.reinitKey, Counter: uint8(c.reinitCount / discoveryPeriod)}.Encode()
		c.link.SendLeft(f)
		c.link.SendRight(f)
	}
	if lf, ok := c.link.RecvLeft(); ok {
		p := DecodeDiscoveryPacket(lf)
		if p.Key != c.reinitKey {
			c.reinitKey = p.Key
			c.reinitCount = 0
		}
	}
	if rf, ok := c.link.RecvRight(); ok {
		p := DecodeDiscoveryPacket(rf)
		if p.Key != c.reinitKey {
			c.reinitKey = p.Key
			c.reinitCount = 0
		}
	}
	c.reinitCount++
	if c.reinitCount >= reinitBroadcastFor {
		c.reinit()
	}
}

func (c *ChainState) reinit() {
	c.status = StatusDiscovering
	c.Index = 0
	c.Size = 1
	c.counter = 0
	c.discoverySawLeft = false
	c.discoverySawRight = false
	c.lastPatchedChannel = -1
	c.lastLoop = NoLoop
}
