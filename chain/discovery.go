package chain

// updateDiscovery runs the neighbor-discovery protocol. Every
// discoveryPeriod ticks in [discoveryStart, discoveryReadyAt) it
// broadcasts its current size leftward and its current index rightward;
// a reply with a matching key on either side lets it refine its index
// (from the left reply) or its size (from the right reply). Past
// discoveryReadyAt, or if the discovered topology would exceed six
// modules, it settles into solo or chain Ready status.
func (c *ChainState) updateDiscovery(in BlockInput) {
	if c.counter == 0 {
		c.Index = 0
		c.Size = 1
		c.discoverySawLeft = false
		c.discoverySawRight = false
	}

	if c.counter >= discoveryStart && c.counter < discoveryReadyAt && c.counter%discoveryPeriod == 0 {
		c.link.SendLeft(DiscoveryPacket{Key: c.discoveryKey(), Counter: uint8(clampByte(c.Size))}.Encode())
		c.link.SendRight(DiscoveryPacket{Key: c.discoveryKey(), Counter: uint8(clampByte(c.Index))}.Encode())
	}

	if lf, ok := c.link.RecvLeft(); ok {
		p := DecodeDiscoveryPacket(lf)
		if p.Key == c.discoveryKey() {
			c.Index = int(p.Counter) + 1
			if c.Index+1 > c.Size {
				c.Size = c.Index + 1
			}
			c.discoverySawLeft = true
		}
	}
	if rf, ok := c.link.RecvRight(); ok {
		p := DecodeDiscoveryPacket(rf)
		if p.Key == c.discoveryKey() {
			if int(p.Counter) > c.Size {
				c.Size = int(p.Counter)
			}
			c.discoverySawRight = true
		}
	}

	miswired := c.Index >= MaxModules || c.Size > MaxModules
	if miswired {
		c.Index = 0
		c.Size = 1
		c.status = StatusReady
		c.onReady()
		return
	}
	if c.counter >= discoveryReadyAt {
		c.status = StatusReady
		c.onReady()
	}
}

func (c *ChainState) onReady() {
	c.lastPatchedChannel = -1
	c.lastLoop = NoLoop
	for i := range c.pressDurationMs {
		c.pressDurationMs[i] = 0
	}
}

func clampByte(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
