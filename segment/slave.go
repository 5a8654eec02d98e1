package segment

// ConfigureSlave configures the generator to mirror another channel's
// generator's progress through a monitored segment. monitor must
// outlive this generator's use. Use this form when the monitored
// generator is owned by this same module.
func (g *Generator) ConfigureSlave(monitor *Generator, monitoredSegment int) {
	g.shape = ShapeSlave
	g.remoteSlave = false
	g.monitor = monitor
	g.monitorSegment = monitoredSegment
}

// ConfigureRemoteSlave configures the generator to mirror a segment
// generator owned by a different module in the chain. There is no local
// pointer to the remote generator; its active segment and phase arrive
// each block over the left/right link (the LeftToRightPacket's segment
// and phase fields) and must be fed in with SetRemoteState before
// Process is called.
func (g *Generator) ConfigureRemoteSlave(monitoredSegment int) {
	g.shape = ShapeSlave
	g.remoteSlave = true
	g.monitorSegment = monitoredSegment
}

// SetRemoteState updates the mirrored activeSegment/phase for a
// remote-slave generator. The chain package calls this once per block
// before Process, from the packet received that block.
func (g *Generator) SetRemoteState(activeSegment int, phase float32) {
	g.remoteActiveSegment = activeSegment
	g.remotePhase = phase
}

func (g *Generator) processSlave(out []float32) {
	var activeSegment int
	var phase float32
	if g.remoteSlave {
		activeSegment, phase = g.remoteActiveSegment, g.remotePhase
	} else {
		activeSegment, phase = g.monitor.activeSegment, g.monitor.phase
	}
	active := activeSegment == g.monitorSegment
	var value float32
	if active {
		value = 1.0 - phase
	}
	for i := range out {
		out[i] = value
	}
}
