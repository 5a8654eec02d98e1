package segment

import "github.com/stagesfw/firmware/dsp"

// Direction is the sequencer's step-advance mode, read from the first
// segment's secondary parameter through a 7-value hysteresis quantizer.
type Direction int

const (
	DirectionUp Direction = iota
	DirectionDown
	DirectionUpDown
	DirectionAlternating
	DirectionRandom
	DirectionRandomNoRepeat
	DirectionAddressable
	numDirections
)

// IsSequencerConfig reports whether descs would select sequencer mode.
func IsSequencerConfig(descs []Descriptor) bool {
	if len(descs) < 3 {
		return false
	}
	if descs[0].Type == TypeStep || descs[0].Loop {
		return false
	}
	for i := 1; i < len(descs); i++ {
		if !isStepLike(descs[i]) {
			return false
		}
	}
	return true
}

func isStepLike(d Descriptor) bool {
	return d.Type == TypeStep || (d.Type == TypeTuring && !d.Loop)
}

// ConfigureSequencer builds a step sequencer from descs.
func (g *Generator) ConfigureSequencer(descs []Descriptor) {
	g.shape = ShapeSequencer
	n := len(descs)
	g.segments = make([]segState, n)
	firstStep, lastStep := 0, 0
	for i := 1; i < n; i++ {
		if descs[i].Loop {
			if firstStep == 0 {
				firstStep = i
				lastStep = i
			} else {
				lastStep = i
			}
		}
		g.segments[i].IsTuring = descs[i].Type == TypeTuring
		g.segments[i].Bipolar = descs[i].Bipolar
	}
	if firstStep == 0 {
		firstStep = 1
		lastStep = n - 1
	}
	g.upDownCounter = 0
	g.inhibitClock = 0
	g.reset = false
	g.lp = 0
	g.value = 0
	g.activeSegment = firstStep
	g.previousSegment = firstStep
	g.monitorSegment = firstStep
	g.segFirstStep = firstStep
	g.segLastStep = lastStep
	g.quantizedOutput = descs[0].Type == TypeRamp
}

func (g *Generator) processSequencer(gates []GateFlags, params []Parameters, out []float32) {
	first, last := g.segFirstStep, g.segLastStep
	n := last - first + 1
	if n < 1 {
		n = 1
	}

	direction := Direction(g.quantizer.Lookup(dsp.Clamp(params[0].Secondary, 0, 0.999999), int(numDirections), 0.1))

	for i, gf := range gates {
		resetGate := params[0].Primary >= 0.125
		if resetGate && !g.reset {
			g.reset = true
			g.activeSegment = first
			sampleRate := dsp.SampleRate
			g.inhibitClock = int(5 * sampleRate / 1000)
		} else if params[0].Primary < 0.0625 {
			g.reset = false
		}

		lastActive := g.activeSegment
		if gf.Rising() {
			if g.inhibitClock > 0 {
				g.inhibitClock--
			} else {
				g.advanceStep(direction, first, last, n, params)
			}
		}

		var value float32
		if g.segments[g.activeSegment].IsTuring {
			value = g.segments[g.activeSegment].turingValue
		} else {
			value = params[g.activeSegment].Primary
		}
		if g.quantizedOutput {
			neg := value < 0
			if neg {
				value = -value
			}
			note := g.stepQuantize(value, 13)
			if neg {
				value = -note
			} else {
				value = note
			}
			value /= 96.0
		}

		if lastActive != g.activeSegment && g.segments[lastActive].IsTuring {
			sr, rv := TuringAdvance(g.rng, params[lastActive].Secondary, params[lastActive].Primary, g.segments[lastActive].ShiftRegister, g.segments[lastActive].Bipolar)
			g.segments[lastActive].ShiftRegister = sr
			g.segments[lastActive].turingValue = rv
		}

		port := params[g.activeSegment].Secondary
		if g.segments[g.activeSegment].IsTuring {
			port = 0
		}
		g.lp = dsp.OnePole(g.lp, value, dsp.PortamentoRateToLPCoefficient(port))
		out[i] = g.lp
	}
}

func (g *Generator) advanceStep(direction Direction, first, last, n int, params []Parameters) {
	switch direction {
	case DirectionUp:
		g.activeSegment = first + (g.activeSegment-first+1)%n
	case DirectionDown:
		g.activeSegment = first + (g.activeSegment-first-1+n)%n
	case DirectionUpDown:
		if g.upDownCounter == 0 {
			g.activeSegment++
			if g.activeSegment > last {
				g.activeSegment = last - 1
				if g.activeSegment < first {
					g.activeSegment = first
				}
				g.upDownCounter = 1
			}
		} else {
			g.activeSegment--
			if g.activeSegment < first {
				g.activeSegment = first + 1
				if g.activeSegment > last {
					g.activeSegment = last
				}
				g.upDownCounter = 0
			}
		}
	case DirectionAlternating:
		g.activeSegment++
		if g.activeSegment > last {
			g.activeSegment = last
			g.upDownCounter = 1 - g.upDownCounter
		}
	case DirectionRandom:
		g.activeSegment = first + int(g.rng.Float64()*float64(n))
		if g.activeSegment > last {
			g.activeSegment = last
		}
	case DirectionRandomNoRepeat:
		if n > 1 {
			r := int(g.rng.Float64() * float64(n-1))
			g.activeSegment = first + (g.activeSegment-first+r+1)%n
		}
	case DirectionAddressable:
		g.activeSegment = first + dsp.ClampInt(int(params[0].Primary*float32(n)), 0, n-1)
	}
}

// stepQuantize snaps value in [0,1] to the nearest of numNotes equally
// spaced levels, returning the level index as a float (reused by the
// sequencer's Ramp-typed first segment).
func (g *Generator) stepQuantize(value float32, numNotes int) float32 {
	idx := int(value*float32(numNotes-1) + 0.5)
	idx = dsp.ClampInt(idx, 0, numNotes-1)
	return float32(idx)
}
