package chain

import (
	"testing"

	"github.com/stagesfw/firmware/segment"
	"github.com/stagesfw/firmware/settings"
)

func TestLoopChangeRequestFindsEnclosingPatchedWindow(t *testing.T) {
	c := New(false)
	c.Size = 6
	patched := map[int]bool{2: true, 12: true}
	for abs, v := range patched {
		c.patched[abs] = v
	}

	req, ok := c.MakeLoopChangeRequest(5, 11)
	if !ok {
		t.Fatal("expected request to be accepted")
	}
	want := [4]uint8{2, 5, 11, 12}
	if req.Request != RequestSetLoop || req.Argument != want {
		t.Fatalf("got {%v %v}, want {%v %v}", req.Request, req.Argument, RequestSetLoop, want)
	}
}

func TestLoopChangeRequestRejectsPatchedChannelStrictlyInside(t *testing.T) {
	c := New(false)
	c.Size = 6
	c.patched[5] = true

	if _, ok := c.MakeLoopChangeRequest(3, 8); ok {
		t.Fatal("expected rejection when a patched channel lies strictly inside the loop")
	}
}

func TestLoopChangeRequestRejectsMultiChannelHeadlessSpan(t *testing.T) {
	c := New(false)
	c.Size = 6 // no patched channels anywhere

	if _, ok := c.MakeLoopChangeRequest(0, 1); ok {
		t.Fatal("expected rejection of a multi-channel loop among the first unpatched group")
	}
}

func TestLoopChangeRequestAcceptsSelfLoopInHeadlessGroup(t *testing.T) {
	c := New(false)
	c.Size = 6 // no patched channels anywhere

	req, ok := c.MakeLoopChangeRequest(2, 2)
	if !ok {
		t.Fatal("expected a self-loop among unpatched channels to be accepted")
	}
	want := [4]uint8{2, 2, 2, 2}
	if req.Argument != want {
		t.Fatalf("got %v, want %v", req.Argument, want)
	}
}

func TestLoopChangeRequestRejectsMultiChannelGroupEndingOnPatchedChannel(t *testing.T) {
	c := New(false)
	c.Size = 6
	c.patched[2] = true
	c.patched[11] = true

	if _, ok := c.MakeLoopChangeRequest(5, 11); ok {
		t.Fatal("expected rejection when a multi-channel group ends exactly on a patched channel")
	}
}

func TestLoopChangeRequestAcceptsSelfLoopOnPatchedChannel(t *testing.T) {
	c := New(false)
	c.Size = 6
	c.patched[11] = true
	c.patched[15] = true

	req, ok := c.MakeLoopChangeRequest(11, 11)
	if !ok {
		t.Fatal("expected a self-loop on a patched channel to be accepted")
	}
	want := [4]uint8{11, 11, 11, 15}
	if req.Argument != want {
		t.Fatalf("got %v, want %v", req.Argument, want)
	}
}

func TestHandleRequestCyclesSegmentType(t *testing.T) {
	c := New(false)
	c.Index = 0
	c.LocalConfig[2] = settings.MakeSegmentConfig(settings.SegmentTypeRamp, false, false, 0, 0, 0)

	c.HandleRequest(RequestPacket{Request: RequestSetSegmentType, Argument: [4]uint8{2}})
	if got := c.LocalConfig[2].Type(); got != settings.SegmentTypeStep {
		t.Fatalf("after one cycle: got %v, want Step", got)
	}

	c.HandleRequest(RequestPacket{Request: RequestSetSegmentType, Argument: [4]uint8{2}})
	c.HandleRequest(RequestPacket{Request: RequestSetSegmentType, Argument: [4]uint8{2}})
	if got := c.LocalConfig[2].Type(); got != settings.SegmentTypeRamp {
		t.Fatalf("after wraparound: got %v, want Ramp", got)
	}
}

func TestHandleRequestSetLoopMarksBoundaries(t *testing.T) {
	c := New(false)
	c.Index = 0
	c.HandleRequest(RequestPacket{Request: RequestSetLoop, Argument: [4]uint8{0, 1, 4, 5}})
	if !c.LocalConfig[1].Loop() {
		t.Fatal("loop_start channel should have its loop bit set")
	}
	if !c.LocalConfig[4].Loop() {
		t.Fatal("loop_end channel should have its loop bit set")
	}
}

func TestSoloDiscoveryReachesReady(t *testing.T) {
	c := New(false)
	for i := 0; i < discoveryReadyAt+1; i++ {
		c.Update(BlockInput{})
	}
	if c.Status() != StatusReady {
		t.Fatalf("expected Ready after discovery window, got %v", c.Status())
	}
	if c.Size != 1 || c.Index != 0 {
		t.Fatalf("expected solo module {size=1,index=0}, got {size=%d,index=%d}", c.Size, c.Index)
	}
}

// TestRebuildLinkagePatchedSingleRampDecaysOnTrigger guards against a
// patched, single-segment, non-loop Ramp channel silently resolving to
// the no-trigger basic-table row: a patched head channel always has a
// gate input, so its generator must be configured with hasTrigger=true
// and run the decay envelope, not ModeZero.
func TestRebuildLinkagePatchedSingleRampDecaysOnTrigger(t *testing.T) {
	c := New(false)
	c.Size = 1
	c.lastPatchedChannel = -1
	// Channel 1 must also be patched so channel 0's group is exactly one
	// segment long; otherwise it would absorb the unpatched followers
	// into a multi-segment group instead of a single-segment one.
	c.patched[0] = true
	c.patched[1] = true
	c.LocalConfig[0] = settings.MakeSegmentConfig(settings.SegmentTypeRamp, false, false, 0, 0, 0)

	c.rebuildLinkage()

	in := BlockInput{}
	in.Pot[0] = 1.0 // fastest decay rate, so the envelope falls visibly within the first sample
	c.resolveParams(in)

	gen := c.Generators[0]
	gates := []segment.GateFlags{segment.GateFlagRising | segment.GateFlagHigh, segment.GateFlagHigh}
	out := make([]float32, len(gates))
	gen.Process(gates, c.Params(0), out)

	if out[0] == 0 {
		t.Fatalf("expected a patched Ramp+trigger channel to decay from its initial value, got 0 (ModeZero instead of ModeDecay)")
	}
	if out[0] >= 1 {
		t.Fatalf("expected the decay envelope to have started falling from 1, got %v", out[0])
	}
}

func TestRebuildLinkageAllUnpatchedCreatesSixGenerators(t *testing.T) {
	c := New(false)
	c.Size = 1
	c.lastPatchedChannel = -1
	c.rebuildLinkage()
	for i := 0; i < NumChannels; i++ {
		if c.Generators[i] == nil {
			t.Fatalf("expected a generator for local channel %d", i)
		}
	}
}
