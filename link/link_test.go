package link

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stagesfw/firmware/chain"
)

// TestBusDiscoveryReachesReadyForTwoModules checks that two ChainStates
// wired by a virtual Bus run the discovery protocol to completion and
// agree on a consistent size/index pair, the same as two real modules
// joined by a cable would.
func TestBusDiscoveryReachesReadyForTwoModules(t *testing.T) {
	bus := NewBus(2)

	a := chain.New(false)
	a.SetLink(bus.Endpoint(0))
	b := chain.New(false)
	b.SetLink(bus.Endpoint(1))

	const ticks = 9000
	for i := 0; i < ticks; i++ {
		a.Update(chain.BlockInput{})
		b.Update(chain.BlockInput{})
	}

	if a.Status() != chain.StatusReady || b.Status() != chain.StatusReady {
		t.Fatalf("expected both modules Ready, got a=%v b=%v", a.Status(), b.Status())
	}
	if a.Size != 2 || b.Size != 2 {
		t.Fatalf("expected chain size 2 on both modules, got a.Size=%d b.Size=%d", a.Size, b.Size)
	}
	if a.Index == b.Index {
		t.Fatalf("expected distinct indices, both modules reported %d", a.Index)
	}
	if a.Index+b.Index != 1 {
		t.Fatalf("expected indices {0,1} in some order, got {%d,%d}", a.Index, b.Index)
	}
}

// TestChainStateConvergesAcrossModules checks chain consistency: once
// a channel's patched/pot/slider state is fed into one module, every
// module's mirrored ChannelState record for that same absolute channel
// must agree after enough round-robin ticks, whether it's read from
// the module owning the channel or a neighbor that only ever saw it
// relayed over the bus.
func TestChainStateConvergesAcrossModules(t *testing.T) {
	bus := NewBus(2)

	a := chain.New(false)
	a.SetLink(bus.Endpoint(0))
	b := chain.New(false)
	b.SetLink(bus.Endpoint(1))

	const discoveryTicks = 9000
	for i := 0; i < discoveryTicks; i++ {
		a.Update(chain.BlockInput{})
		b.Update(chain.BlockInput{})
	}
	if a.Status() != chain.StatusReady || b.Status() != chain.StatusReady {
		t.Fatalf("expected both modules Ready before driving channel state, got a=%v b=%v", a.Status(), b.Status())
	}

	aIn := chain.BlockInput{}
	aIn.InputPatched[0] = true
	aIn.Pot[0] = 0.5
	aIn.CVSlider[0] = 0.25

	const propagationTicks = 400
	for i := 0; i < propagationTicks; i++ {
		a.Update(aIn)
		b.Update(chain.BlockInput{})
	}

	abs := a.Index*chain.NumChannels + 0
	got, want := b.Channel(abs), a.Channel(abs)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("module b's mirror of channel %d diverged from module a's own record (-want +got):\n%s", abs, diff)
	}
	if !got.InputPatched || got.Pot != 0.5 || got.CVSlider != 0.25 {
		t.Fatalf("expected the patched channel's state to have actually propagated, got %+v", got)
	}
}

// TestBusEndpointsAtChainEndsAreUnconnected checks that the end modules
// of a bus have a nil neighbor on their outward side, matching an
// unwired real Serial port: sends are no-ops, receives never succeed.
func TestBusEndpointsAtChainEndsAreUnconnected(t *testing.T) {
	bus := NewBus(3)

	left := bus.Endpoint(0)
	if _, ok := left.RecvLeft(); ok {
		t.Fatal("leftmost endpoint should never receive on its left side")
	}
	left.SendLeft([chain.FrameSize]byte{}) // must not panic

	right := bus.Endpoint(2)
	if _, ok := right.RecvRight(); ok {
		t.Fatal("rightmost endpoint should never receive on its right side")
	}
	right.SendRight([chain.FrameSize]byte{}) // must not panic
}

// TestBusLatestWinsSendSemantics confirms an unread frame is replaced,
// not queued, mirroring a UART receiver that only holds its most
// recent sample: absence of traffic must not stall the reader.
func TestBusLatestWinsSendSemantics(t *testing.T) {
	bus := NewBus(2)
	left := bus.Endpoint(0)
	right := bus.Endpoint(1)

	var first, second [chain.FrameSize]byte
	first[0] = 1
	second[0] = 2

	left.SendRight(first)
	left.SendRight(second)

	got, ok := right.RecvLeft()
	if !ok {
		t.Fatal("expected a frame to be available")
	}
	if got != second {
		t.Fatalf("expected the latest frame to survive, got %v want %v", got, second)
	}
	if _, ok := right.RecvLeft(); ok {
		t.Fatal("expected only one frame to be queued")
	}
}
