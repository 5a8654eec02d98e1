package chain

import "github.com/stagesfw/firmware/settings"

// cycleSegmentType advances a channel's segment type:
// Ramp→Step→Hold→Ramp in basic mode, plus Turing in advanced mode.
func cycleSegmentType(sc settings.SegmentConfig, advanced bool) settings.SegmentConfig {
	next := sc.Type() + 1
	max := settings.SegmentTypeHold
	if advanced {
		max = settings.SegmentTypeTuring
	}
	if next > max {
		next = settings.SegmentTypeRamp
	}
	return sc.WithType(next)
}

// MakeLoopChangeRequest takes a pair of absolute channel indices and
// finds the tightest enclosing patched-
// channel window [groupStart, groupEnd] such that groupStart is the
// last patched channel at or before loopStart and groupEnd is the
// first patched channel at or after loopEnd, and returns the set_loop
// request quadruple, or false if the edit is inconsistent.
//
// Three things make an edit inconsistent, matching chain_state.cc's
// MakeLoopChangeRequest:
//  1. another patched channel lies strictly inside (loopStart, loopEnd);
//  2. loopStart falls in the chain's first, headless group of unpatched
//     free-running channels and the loop isn't a single-channel
//     self-loop there (a multi-channel span has no patched anchor to
//     attach to);
//  3. the loop ends exactly on a patched channel that terminates a
//     multi-channel group (only a single-channel self-loop may end on
//     a patched channel).
func (c *ChainState) MakeLoopChangeRequest(a, b int) (RequestPacket, bool) {
	loopStart, loopEnd := a, b
	if loopStart > loopEnd {
		loopStart, loopEnd = loopEnd, loopStart
	}

	total := c.Size * NumChannels
	if total < NumChannels {
		total = NumChannels
	}

	groupStart := 0
	groupEnd := total
	inconsistent := false

	for ch := 0; ch < total; ch++ {
		if !c.isPatched(ch) {
			continue
		}
		switch {
		case ch <= loopStart:
			groupStart = ch
		case ch >= loopEnd:
			if ch < groupEnd {
				groupEnd = ch
			}
		}
		if ch > loopStart && ch < loopEnd {
			inconsistent = true
		}
	}

	if groupStart == 0 && !c.isPatched(0) {
		if loopStart != loopEnd {
			inconsistent = true
		} else {
			groupStart, groupEnd = loopStart, loopEnd
		}
	}

	if groupEnd == loopEnd && groupStart != groupEnd {
		inconsistent = true
	}

	if inconsistent {
		return RequestPacket{}, false
	}

	return RequestPacket{
		Request: RequestSetLoop,
		Argument: [4]uint8{
			uint8(groupStart),
			uint8(loopStart),
			uint8(loopEnd),
			uint8(groupEnd),
		},
	}, true
}

// HandleRequest applies a decoded RequestPacket to this module's own
// six channels. Requests carry absolute channel indices so applying
// the same request on every module in the chain is idempotent.
func (c *ChainState) HandleRequest(req RequestPacket) {
	base := c.localBase()
	switch req.Request {
	case RequestSetSegmentType:
		abs := int(req.Argument[0])
		if abs < base || abs >= base+NumChannels {
			return
		}
		i := abs - base
		c.LocalConfig[i] = cycleSegmentType(c.LocalConfig[i], c.Advanced)

	case RequestSetLoop:
		loopStart := int(req.Argument[1])
		loopEnd := int(req.Argument[2])
		c.lastLoop = Loop{Start: int8(loopStart), End: int8(loopEnd)}
		for i := 0; i < NumChannels; i++ {
			abs := base + i
			switch abs {
			case loopStart, loopEnd:
				c.LocalConfig[i] = c.LocalConfig[i].WithLoop(true)
			default:
				if abs > loopStart && abs < loopEnd {
					c.LocalConfig[i] = c.LocalConfig[i].WithLoop(false)
				}
			}
		}

	default:
		// unknown opcode, dropped
	}
}
