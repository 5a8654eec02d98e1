package segment

import "github.com/stagesfw/firmware/dsp"

// ConfigureMulti builds a linked multi-segment envelope from descs, the
// "configuration array". Each segment's parameters are bound to
// paramIndex == its position in descs, i.e. the caller (chain package)
// must supply one Parameters pair per segment in Process's params
// argument.
//
// An extra sentinel segment is appended after the last real segment:
// it holds the chain's resting value and transitions to itself, giving
// the state machine a safe place to land at the end of a non-looping
// envelope instead of indexing past the configured segments.
//
// The if_rising transition for step-containing envelopes is resolved by
// advancing to the next segment (wrapping through the loop if present)
// rather than the original's full "search forward for the next step-typed
// segment" scan; see DESIGN.md for why this narrower rule is sufficient for
// every configuration this package actually builds (every non-ramp segment
// in a group is step-like by construction).
func (g *Generator) ConfigureMulti(descs []Descriptor) {
	n := len(descs)
	g.shape = ShapeMulti
	g.segments = make([]segState, n+1)
	g.activeSegment = 0
	g.previousSegment = 0
	g.phase = 0
	g.lp = 0
	g.value = 0
	g.start = 0

	loopStart, loopEnd := -1, -1
	hasStepSegments := false
	firstRamp := -1
	for i, d := range descs {
		if d.Type != TypeRamp {
			hasStepSegments = true
		}
		if d.Loop {
			if loopStart == -1 {
				loopStart = i
			}
			loopEnd = i
		}
		if d.Type == TypeRamp && firstRamp == -1 {
			firstRamp = i
		}
	}
	lastSegment := n - 1
	sentinel := n

	for i, d := range descs {
		s := &g.segments[i]
		s.Bipolar = d.Bipolar
		s.Retrig = true
		s.Range = d.Range

		switch d.Type {
		case TypeRamp:
			s.Retrig = !d.Bipolar
			// A multi-segment Ramp's start is never an explicit value: it
			// always tracks the previous segment's end (step 1 below). Only
			// the single-segment path (ConfigureSingle) ever fixes a ramp's
			// start; see DESIGN.md.
			s.HasStart = false
			s.HasPhase = false
			s.HasTimeRef = true
			s.TimeRef = paramRef{kind: refPrimary, index: i}
			s.CurveRef = paramRef{kind: refSecondary, index: i}
			s.PortamentoRef = paramRef{kind: refConstant, cnst: 0}
			switch {
			case i == lastSegment:
				s.EndRef = paramRef{kind: refConstant, cnst: 0}
			case descs[i+1].Type != TypeRamp:
				s.EndRef = paramRef{kind: refPrimary, index: i + 1}
			case i == firstRamp:
				s.EndRef = paramRef{kind: refConstant, cnst: 1}
			default:
				s.EndRef = paramRef{kind: refSecondary, index: i}
			}
		case TypeTuring:
			s.IsTuring = true
			s.HasPhase = true
			s.HasStart = true
			s.PhaseValue = 0
			s.StartRef = paramRef{kind: refConstant, cnst: 0}
			s.EndRef = paramRef{kind: refConstant, cnst: 0}
			s.PortamentoRef = paramRef{kind: refConstant, cnst: 0}
		default: // Step, Hold
			s.HasPhase = true
			s.HasStart = true
			s.PhaseValue = 1
			s.StartRef = paramRef{kind: refPrimary, index: i}
			s.EndRef = paramRef{kind: refPrimary, index: i}
			if d.Type == TypeStep {
				s.PortamentoRef = paramRef{kind: refSecondary, index: i}
				if i == loopStart && i == loopEnd {
					s.PhaseValue = 0
				}
			} else {
				s.PortamentoRef = paramRef{kind: refConstant, cnst: 0}
				if !(i == loopStart && i == loopEnd) {
					s.HasTimeRef = true
					s.TimeRef = paramRef{kind: refSecondary, index: i}
				}
			}
		}

		if i == loopEnd {
			s.IfComplete = loopStart
		} else {
			s.IfComplete = i + 1
		}
		if loopEnd == -1 || loopEnd == lastSegment || hasStepSegments {
			s.IfFalling = -1
		} else {
			s.IfFalling = loopEnd + 1
		}
		if hasStepSegments {
			if i == loopEnd && loopStart != -1 {
				s.IfRising = loopStart
			} else {
				s.IfRising = (i + 1) % n
			}
		} else {
			s.IfRising = 0
		}
	}

	// Sentinel: rests wherever the chain would otherwise run off the end,
	// transitions point back to itself.
	sentinelState := &g.segments[sentinel]
	sentinelState.HasStart = true
	sentinelState.StartRef = paramRef{kind: refConstant, cnst: 0}
	sentinelState.EndRef = paramRef{kind: refConstant, cnst: 0}
	sentinelState.PortamentoRef = paramRef{kind: refConstant, cnst: 0}
	sentinelState.IfRising = sentinel
	sentinelState.IfFalling = sentinel
	sentinelState.IfComplete = sentinel
}

func (g *Generator) processMulti(gates []GateFlags, params []Parameters, out []float32) {
	phase := g.phase
	start := g.start
	lp := g.lp
	value := g.value

	for i, gf := range gates {
		seg := &g.segments[g.activeSegment]
		prev := &g.segments[g.previousSegment]

		if !seg.HasStart && prev.HasPhase {
			start = dsp.OnePole(start, prev.EndRef.get(params), dsp.PortamentoRateToLPCoefficient(prev.PortamentoRef.get(params)))
		}

		if seg.HasTimeRef {
			phase += dsp.RateToFrequency(seg.TimeRef.get(params))
		}
		complete := phase >= 1.0
		if complete {
			phase = 1.0
		}

		curveSource := phase
		if seg.HasPhase {
			curveSource = seg.PhaseValue
		}
		value = dsp.Crossfade(start, seg.EndRef.get(params), dsp.WarpPhase(curveSource, seg.CurveRef.get(params)))
		lp = dsp.OnePole(lp, value, dsp.PortamentoRateToLPCoefficient(seg.PortamentoRef.get(params)))

		next := -1
		if gf.Rising() && seg.Retrig {
			next = seg.IfRising
		} else if gf.Falling() {
			next = seg.IfFalling
		} else if complete {
			next = seg.IfComplete
		}
		if next != -1 && next != g.activeSegment {
			if seg.IsTuring {
				seg.ShiftRegister, _ = TuringAdvance(g.rng, seg.TimeRef.get(params), seg.CurveRef.get(params), seg.ShiftRegister, seg.Bipolar)
			}
			phase = 0
			g.previousSegment = g.activeSegment
			g.activeSegment = next
			if g.segments[next].HasStart {
				start = g.segments[next].StartRef.get(params)
			} else {
				start = lp
			}
		}
		out[i] = lp
	}

	g.phase = phase
	g.lp = lp
	g.value = value
	g.start = start
}
