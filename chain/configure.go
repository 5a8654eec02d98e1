package chain

import (
	"github.com/stagesfw/firmware/segment"
	"github.com/stagesfw/firmware/settings"
)

// segmentType maps the persisted settings.SegmentType to segment.Type;
// the two enums share numeric values by construction (Ramp/Step/Hold/
// Turing in that order) but are kept as distinct Go types since one is
// a wire/persistence concern and the other a DSP concern.
func segmentType(t settings.SegmentType) segment.Type { return segment.Type(t) }

// localBase is the absolute channel index of this module's first
// physical channel.
func (c *ChainState) localBase() int { return c.Index * NumChannels }

func (c *ChainState) isPatched(abs int) bool {
	if abs < 0 {
		return false
	}
	return c.patched[abs]
}

// rebuildLinkage is the segment-linkage policy: it walks this
// module's six physical channels and, for each, decides
// whether it is a slave of a patched neighbor, a free-running single
// segment, or the head of a multi-segment/sequencer group extending
// rightward through unpatched channels (local or remote).
func (c *ChainState) rebuildLinkage() {
	base := c.localBase()
	size := c.Size
	if size < 1 {
		size = 1
	}
	total := size * NumChannels

	i := 0
	for i < NumChannels {
		abs := base + i
		switch {
		case !c.isPatched(abs) && c.lastPatchedChannel >= 0 && abs > c.lastPatchedChannel:
			g := &segment.Generator{}
			relSegment := abs - c.lastPatchedChannel
			if headGen, ok := c.localGeneratorFor(c.lastPatchedChannel); ok {
				g.ConfigureSlave(headGen, relSegment)
			} else {
				g.ConfigureRemoteSlave(relSegment)
			}
			c.Generators[i] = g
			c.groups[i] = generatorGroup{active: true}
			i++

		case !c.isPatched(abs):
			g := &segment.Generator{}
			d := c.localDescriptor(i)
			g.ConfigureSingle(d, false, c.Advanced)
			c.Generators[i] = g
			c.groups[i] = generatorGroup{
				active:   true,
				bindings: []paramBinding{{kind: bindInternal, channel: abs}},
			}
			i++

		default:
			descs := []segment.Descriptor{c.configDescriptor(abs)}
			binds := []paramBinding{c.bindingFor(abs)}
			j := abs + 1
			for j < total && len(descs) < MaxChannels && !c.isPatched(j) {
				descs = append(descs, c.configDescriptor(j))
				binds = append(binds, c.bindingFor(j))
				j++
			}

			g := &segment.Generator{}
			switch {
			case segment.IsSequencerConfig(descs):
				g.ConfigureSequencer(descs)
			case len(descs) == 1:
				g.ConfigureSingle(descs[0], true, c.Advanced)
			default:
				g.ConfigureMulti(descs)
			}
			c.Generators[i] = g
			c.groups[i] = generatorGroup{active: true, bindings: binds}
			head := g

			c.lastPatchedChannel = abs
			localSpan := j - abs
			if localSpan > NumChannels-i {
				localSpan = NumChannels - i
			}
			if localSpan < 1 {
				localSpan = 1
			}
			// Every physical channel needs its own Generator producing
			// its own output samples; only the head carries the
			// multi-segment state, so local followers within this group
			// get slave generators monitoring it directly.
			for off := 1; off < localSpan; off++ {
				sg := &segment.Generator{}
				sg.ConfigureSlave(head, off)
				c.Generators[i+off] = sg
				c.groups[i+off] = generatorGroup{active: true}
			}
			i += localSpan
		}
	}
}

// localGeneratorFor returns this module's own generator for absolute
// channel abs, if abs falls within this module's local six channels.
func (c *ChainState) localGeneratorFor(abs int) (*segment.Generator, bool) {
	base := c.localBase()
	if abs < base || abs >= base+NumChannels {
		return nil, false
	}
	return c.Generators[abs-base], true
}

func (c *ChainState) bindingFor(abs int) paramBinding {
	base := c.localBase()
	if abs >= base && abs < base+NumChannels {
		return paramBinding{kind: bindInternal, channel: abs}
	}
	return paramBinding{kind: bindRemote, channel: abs}
}

// localDescriptor builds a Descriptor from this module's own persisted
// configuration for local index i (0..5).
func (c *ChainState) localDescriptor(i int) segment.Descriptor {
	sc := c.LocalConfig[i]
	return segment.Descriptor{
		Type:    segmentType(sc.Type()),
		Loop:    sc.Loop(),
		Bipolar: sc.Bipolar(),
		Range:   segment.Range(sc.Range()),
	}
}

// configDescriptor builds a Descriptor for an arbitrary absolute
// channel: from LocalConfig if it's one of this module's own channels,
// else from the mirrored remote ChannelState.
func (c *ChainState) configDescriptor(abs int) segment.Descriptor {
	base := c.localBase()
	if abs >= base && abs < base+NumChannels {
		return c.localDescriptor(abs - base)
	}
	cs := c.channels[abs]
	return segment.Descriptor{Type: cs.Type, Loop: cs.Loop, Bipolar: cs.Bipolar}
}

// resolveParams refreshes the Parameters slice for every active local
// generator from live local state or the remote channel mirror,
// partitioning each binding into internal (this module) or remote.
func (c *ChainState) resolveParams(in BlockInput) {
	for i := range c.Generators {
		g := c.groups[i]
		if !g.active {
			continue
		}
		if len(g.params) != len(g.bindings) {
			g.params = make([]segment.Parameters, len(g.bindings))
		}
		base := c.localBase()
		for k, b := range g.bindings {
			switch b.kind {
			case bindInternal:
				local := b.channel - base
				g.params[k] = segment.Parameters{
					Primary:   in.Pot[local],
					Secondary: in.CVSlider[local],
				}
			case bindRemote:
				cs := c.channels[b.channel]
				g.params[k] = segment.Parameters{
					Primary:   cs.Pot,
					Secondary: cs.CVSlider,
				}
			}
		}
		c.groups[i] = g
	}
}

// Params returns the resolved Parameters slice to pass to
// Generators[localChannel].Process for the current block. Call after
// resolveParams has run (i.e. after Update).
func (c *ChainState) Params(localChannel int) []segment.Parameters {
	return c.groups[localChannel].params
}
