package chain

import "github.com/stagesfw/firmware/segment"

// The press thresholds below count "1 ms ticks"; a block processor running
// at the module's real block rate should call Update once per
// ~1 ms-equivalent tick for the press timers to track wall time
// accurately. Scenario-level tests drive ticks directly.
const (
	shortPressMinMs    = 5
	shortPressMaxMs    = 500
	longPressMinMs     = 500
	longPressMaxMs     = 5000
	multiModePressMs   = 5000
	editingSuspendMask = 0xff
)

// pollSwitches runs on the last module only: it tracks per-channel
// press duration, recognizes short/long presses and simultaneous
// pairs, and queues the resulting RequestPacket.
func (c *ChainState) pollSwitches(in BlockInput) {
	for i := 0; i < NumChannels; i++ {
		c.switchPressed[i] = 0
		if in.SwitchDown[i] {
			c.switchPressed[i] = 1
		}
	}
	if c.Index != c.Size-1 {
		return
	}

	pairStart, pairEnd := -1, -1
	for i := 0; i < NumChannels; i++ {
		if c.localEditing[i] {
			c.pressDurationMs[i] = -1
			continue
		}
		down := in.SwitchDown[i]
		switch {
		case down && c.pressDurationMs[i] >= 0:
			c.pressDurationMs[i]++
			if pairStart == -1 {
				pairStart = i
			} else {
				pairEnd = i
			}
		case down:
			// suspended, ignore
		case !down && c.pressDurationMs[i] > 0:
			d := c.pressDurationMs[i]
			c.releasePress(i, d)
			c.pressDurationMs[i] = 0
		default:
			c.pressDurationMs[i] = 0
		}
	}

	if pairStart != -1 && pairEnd != -1 && c.pendingRequest == nil {
		base := c.localBase()
		req, ok := c.MakeLoopChangeRequest(base+pairStart, base+pairEnd)
		if ok {
			c.pendingRequest = &req
		}
	}
}

func (c *ChainState) releasePress(i, durationMs int) {
	if durationMs >= shortPressMinMs && durationMs < shortPressMaxMs {
		base := c.localBase()
		req := RequestPacket{Request: RequestSetSegmentType, Argument: [4]uint8{uint8(base + i)}}
		c.pendingRequest = &req
		return
	}
	if durationMs >= longPressMinMs && durationMs < longPressMaxMs {
		base := c.localBase()
		abs := uint8(base + i)
		req := RequestPacket{Request: RequestSetLoop, Argument: [4]uint8{abs, abs, abs, abs}}
		c.pendingRequest = &req
		return
	}
	// durationMs >= multiModePressMs is a Ui concern (external).
}

func (c *ChainState) transmitRight() {
	seg, phase := int8(0), float32(0)
	if base := c.localBase(); c.lastPatchedChannel >= base && c.lastPatchedChannel < base+NumChannels {
		if g := c.Generators[c.lastPatchedChannel-base]; g != nil {
			s, p := g.ActiveState()
			seg, phase = int8(s), p
		}
	}
	var inputPatched [NumChannels]uint8
	for i, p := range in6(c.localBase(), c.patched) {
		if p {
			inputPatched[i] = 1
		}
	}
	pkt := LeftToRightPacket{
		LastPatchedChannel: uint8(clampByte(c.lastPatchedChannel)),
		Segment:            seg,
		Phase:              phase,
		LastLoop:           c.lastLoop,
		SwitchPressed:      c.switchPressed,
		InputPatched:       inputPatched,
	}
	c.link.SendRight(pkt.Encode())
}

func in6(base int, patched [MaxChannels]bool) [NumChannels]bool {
	var out [NumChannels]bool
	for i := 0; i < NumChannels; i++ {
		out[i] = patched[base+i]
	}
	return out
}

func (c *ChainState) receiveRight() {
	f, ok := c.link.RecvRight()
	if !ok {
		return
	}
	if IsRequestFrame(f) {
		req := DecodeRequestPacket(f)
		if c.pendingRequest == nil {
			c.pendingRequest = &req
		}
		return
	}
	pkt := DecodeRightToLeftPacket(f)
	base := c.localBase() + NumChannels
	// transmitLeft also forwards modules further right; file each record
	// under the module that sent it.
	if m := pkt.Channels[0].SendingModuleIndex; m > c.Index && m < MaxModules {
		base = m * NumChannels
	}
	for i, cs := range pkt.Channels {
		abs := base + i
		if abs >= MaxChannels {
			break
		}
		c.channels[abs] = cs
		c.patched[abs] = cs.InputPatched
	}
}

func (c *ChainState) handlePendingRequest() {
	if c.pendingRequest == nil {
		return
	}
	req := *c.pendingRequest
	c.pendingRequest = nil
	c.HandleRequest(req)
	if c.Index > 0 {
		c.link.SendLeft(req.Encode())
	}
}

// refreshLocal folds this block's live pot/cv/slider/patched readings
// into this module's own ChannelState records.
func (c *ChainState) refreshLocal(in BlockInput) {
	base := c.localBase()
	for i := 0; i < NumChannels; i++ {
		abs := base + i
		if in.InputPatched[i] {
			c.unpatchedStreak[i] = 0
			c.patched[abs] = true
		} else {
			// refreshLocal runs in one phase of four, so each call
			// stands for four unpatched blocks.
			c.unpatchedStreak[i] += 4
			if c.unpatchedStreak[i] >= unpatchedHysteresis {
				c.patched[abs] = false
			}
		}
		sc := c.LocalConfig[i]
		c.channels[abs] = ChannelState{
			SendingModuleIndex: c.Index,
			Type:               segment.Type(sc.Type()),
			Loop:               sc.Loop(),
			Bipolar:            sc.Bipolar(),
			InputPatched:       c.patched[abs],
			Pot:                in.Pot[i],
			CVSlider:           in.CVSlider[i],
		}
	}
	c.resolveParams(in)
}

// transmitLeft forwards one module's worth of ChannelState leftward
// each tick in round-robin: it covers a run of unpatched channels by
// cycling through every module from this one out to the last one
// containing a patched channel (or the chain end),
// stepping every 4 ticks so every record reaches the leftmost patched
// module within O(size·4) ticks.
func (c *ChainState) transmitLeft() {
	k := c.Index
	size := c.Size
	if size < 1 {
		size = 1
	}
	last := size - 1
	for m := size - 1; m >= k; m-- {
		if c.moduleHasPatchedChannel(m) {
			last = m
			break
		}
	}
	span := last - k + 1
	if span < 1 {
		span = 1
	}
	if c.txTick%4 == 0 {
		c.txIndex = (c.txIndex + 1) % span
	}
	c.txTick++

	srcModule := k + c.txIndex
	var pkt RightToLeftPacket
	if srcModule == c.Index {
		base := c.localBase()
		for i := 0; i < NumChannels; i++ {
			pkt.Channels[i] = c.channels[base+i]
		}
	} else {
		base := srcModule * NumChannels
		for i := 0; i < NumChannels; i++ {
			pkt.Channels[i] = c.channels[base+i]
		}
	}
	c.link.SendLeft(pkt.Encode())
}

func (c *ChainState) moduleHasPatchedChannel(m int) bool {
	base := m * NumChannels
	for i := 0; i < NumChannels; i++ {
		if c.patched[base+i] {
			return true
		}
	}
	return false
}

func (c *ChainState) receiveLeft() {
	f, ok := c.link.RecvLeft()
	if !ok {
		return
	}
	pkt := DecodeLeftToRightPacket(f)
	c.lastPatchedChannel = int(pkt.LastPatchedChannel)
	c.lastLoop = pkt.LastLoop
	// The left neighbor's boundary generator feeds any of our
	// remote-slave generators directly via the transmitted
	// segment/phase; non-slave generators simply ignore this.
	for i := range c.Generators {
		if g := c.Generators[i]; g != nil {
			g.SetRemoteState(int(pkt.Segment), pkt.Phase)
		}
	}
}
