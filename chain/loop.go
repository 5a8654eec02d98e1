package chain

// LoopStatus reports how local channel i relates to the most recently
// confirmed loop boundary: LoopNone if i isn't one of the two boundary
// channels, LoopSelf if the loop's start and end coincide on i (a
// single self-looping channel), else LoopStart or LoopEnd.
func (c *ChainState) LoopStatus(i int) LoopStatus {
	abs := c.localBase() + i
	if c.lastLoop == NoLoop {
		return LoopNone
	}
	switch abs {
	case int(c.lastLoop.Start):
		if c.lastLoop.Start == c.lastLoop.End {
			return LoopSelf
		}
		return LoopStart
	case int(c.lastLoop.End):
		return LoopEnd
	default:
		return LoopNone
	}
}

// Channel returns the mirrored ChannelState for absolute channel index
// abs (0..MaxChannels-1), read-only introspection used by diag's HTTP
// handlers; it never mutates chain state.
func (c *ChainState) Channel(abs int) ChannelState {
	if abs < 0 || abs >= MaxChannels {
		return ChannelState{}
	}
	return c.channels[abs]
}

// SuspendSwitch marks local channel i as under local UI property
// editing (slider/pot held to change a segment property), so the
// chain's own short/long press interpretation ignores it until the
// switch is released.
func (c *ChainState) SuspendSwitch(i int, editing bool) {
	c.localEditing[i] = editing
}
