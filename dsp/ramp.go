package dsp

// RampExtractor tracks the period between rising gate edges and exposes a
// free-running 0..1 phase at a chosen rational multiple of that period:
// a PLL locked to an external clock rather than a fixed internal rate.
type RampExtractor struct {
	sampleRate   float32
	maxFrequency float32

	period      float32
	phase       float32
	increment   float32
	primed      bool
	sampleCount int
}

// Init configures the extractor's sample rate and frequency ceiling.
func (r *RampExtractor) Init(sampleRate, maxFrequency float32) {
	r.sampleRate = sampleRate
	r.maxFrequency = maxFrequency
	r.period = sampleRate // assume 1 Hz until the first edge pair arrives
}

// Tick advances the extractor by one sample. rising marks a new clock edge;
// ratio is the target multiple of the detected period (e.g. 0.5 for a
// division, 2.0 for a multiplication). It returns the current 0..1 phase.
func (r *RampExtractor) Tick(rising bool, ratioNum, ratioDen float32) float32 {
	if rising {
		if r.primed {
			r.period = float32FromCount(r.sampleCount)
		}
		r.primed = true
		r.sampleCount = 0
		target := r.period * ratioDen / ratioNum
		if target < 1 {
			target = 1
		}
		r.increment = Clamp(1.0/target, 0, r.maxFrequency)
		r.phase = 0
	}
	r.sampleCount++
	r.phase += r.increment
	if r.phase >= 1.0 {
		r.phase -= float32(int(r.phase))
	}
	return r.phase
}

func float32FromCount(c int) float32 { return float32(c) }
