package beatdetect

import "math"

// Peak is a detected onset: a local maximum of the onset-strength
// function that cleared the adaptive threshold. Peak.Timestamp values
// emitted by a single peakPicker are strictly increasing (§8,
// invariant 2).
type Peak struct {
	Timestamp float64
	Magnitude float32
}

// peakPicker is a pure transducer: push one OSF sample in, get back at
// most one Peak. It holds no reference to the driver or the tempo
// estimator (§9 "Callback coupling" — the cyclical closures of the
// original design are replaced by this explicit push/return shape).
type peakPicker struct {
	osfRate          float64
	coalesceInterval float64
	thresholdRatio   float64

	trailing      *float32Ring
	counter       int
	lastMagnitude float32
	isOnsetting   bool

	queue []Peak // pending peaks awaiting coalescing; reused across ticks
}

func newPeakPicker(cfg Config) *peakPicker {
	osfRate := cfg.osfRate()
	window := int(math.Round(osfRate * cfg.RecentHistoryDuration))
	if window < 1 {
		window = 1
	}
	return &peakPicker{
		osfRate:          osfRate,
		coalesceInterval: cfg.CoalesceInterval,
		thresholdRatio:   cfg.RecentMaxThresholdRatio,
		trailing:         newFloat32Ring(window),
		queue:            make([]Peak, 0, 8),
	}
}

// push feeds one OSF sample through the local-maximum rule (§4.3).
func (p *peakPicker) push(timestamp float64, magnitude float32) (Peak, bool) {
	recentMax := p.trailing.max()
	threshold := recentMax * float32(p.thresholdRatio)
	p.trailing.push(magnitude)

	var candidate Peak
	haveCandidate := false

	if float64(p.counter) > p.osfRate && magnitude < p.lastMagnitude && p.isOnsetting {
		candidate = Peak{
			Timestamp: timestamp - 1.0/p.osfRate,
			Magnitude: p.lastMagnitude,
		}
		p.isOnsetting = false
		if p.lastMagnitude >= threshold {
			haveCandidate = true
		}
	} else {
		p.isOnsetting = magnitude > p.lastMagnitude
	}

	p.counter++
	p.lastMagnitude = magnitude

	if haveCandidate {
		if p.coalesceInterval == 0 {
			return candidate, true
		}
		p.queue = append(p.queue, candidate)
	}

	if len(p.queue) > 0 && timestamp-p.queue[0].Timestamp > p.coalesceInterval {
		best := p.queue[0]
		for _, c := range p.queue[1:] {
			if c.Magnitude > best.Magnitude {
				best = c
			}
		}
		p.queue = p.queue[:0]
		return best, true
	}

	return Peak{}, false
}

func (p *peakPicker) reset() {
	p.trailing.reset()
	p.counter = 0
	p.lastMagnitude = 0
	p.isOnsetting = false
	p.queue = p.queue[:0]
}

