package beatdetect

import "math"

// PeakInterval is one entry of the sliding PeakHistory: a peak's
// timestamp and magnitude together with its inter-peak interval,
// already folded into the active tempo range (§4.4).
type PeakInterval struct {
	Timestamp float64
	Magnitude float32
	Interval  float64 // seconds, folded into [60/maxTempo, 60/minTempo]
}

// TempoState is the mutable state the tempo estimator owns and
// mutates only on the thread that calls push/ProcessBlock (§5).
type TempoState struct {
	LastMeasuredTempo float32
	Confidence        int // 0..10
	FirstPass         bool
}

// BeatUpdate is one BPM emission, timestamped at the triggering peak.
type BeatUpdate struct {
	Timestamp float64
	BPM       float32
}

// octaveMultiples are tried in order; the first near-multiple match
// wins (§4.5 step 4).
var octaveMultiples = [...]float64{0.5, 1.33333, 1.5, 2.0}

// tempoEstimator clusters folded inter-peak intervals into BPM
// hypotheses. It is pushed one Peak at a time and, once PeakHistory
// spans at least peakHistoryLength seconds, re-runs bucket analysis
// on every subsequent peak.
type tempoEstimator struct {
	minInterval       float64
	maxInterval       float64
	bucketCount       int
	peakHistoryLength float64

	history []PeakInterval // sliding window, oldest first

	hasLastPeak       bool
	lastPeakTimestamp float64

	state TempoState

	buckets [][]float64 // scratch, reused across analyze() calls
}

func newTempoEstimator(cfg Config) *tempoEstimator {
	te := &tempoEstimator{
		minInterval:       cfg.minInterval(),
		maxInterval:       cfg.maxInterval(),
		bucketCount:       cfg.BucketCount,
		peakHistoryLength: cfg.PeakHistoryLength,
		history:           make([]PeakInterval, 0, 256),
		buckets:           make([][]float64, cfg.BucketCount),
		state:             TempoState{FirstPass: true},
	}
	for i := range te.buckets {
		te.buckets[i] = make([]float64, 0, 32)
	}
	return te
}

// foldInterval doubles or halves interval until it lies in
// [minI, maxI] (§4.4). The iteration cap guards against a degenerate
// zero or negative interval; in normal operation peak timestamps are
// strictly increasing so interval > 0 and the loop converges in a
// handful of steps.
func foldInterval(interval, minI, maxI float64) float64 {
	if interval <= 0 {
		return minI
	}
	for i := 0; interval < minI && i < 64; i++ {
		interval *= 2
	}
	for i := 0; interval > maxI && i < 64; i++ {
		interval /= 2
	}
	return interval
}

// push feeds one peak through interval folding and, once enough
// history has accumulated, bucket analysis. It returns an emission
// only on ticks where §4.5 step 4 decides to emit.
func (t *tempoEstimator) push(peak Peak) (BeatUpdate, bool) {
	if !t.hasLastPeak {
		t.hasLastPeak = true
		t.lastPeakTimestamp = peak.Timestamp
		return BeatUpdate{}, false
	}

	rawInterval := peak.Timestamp - t.lastPeakTimestamp
	t.lastPeakTimestamp = peak.Timestamp

	folded := foldInterval(rawInterval, t.minInterval, t.maxInterval)
	t.history = append(t.history, PeakInterval{
		Timestamp: peak.Timestamp,
		Magnitude: peak.Magnitude,
		Interval:  folded,
	})

	span := t.history[len(t.history)-1].Timestamp - t.history[0].Timestamp
	if span < t.peakHistoryLength {
		return BeatUpdate{}, false
	}

	return t.analyze(peak.Timestamp)
}

// analyze runs the bucket histogram, prunes PeakHistory, selects the
// predominant bucket, and applies confidence/octave-correction logic
// (§4.5 steps 1-5).
func (t *tempoEstimator) analyze(now float64) (BeatUpdate, bool) {
	for i := range t.buckets {
		t.buckets[i] = t.buckets[i][:0]
	}

	width := t.maxInterval - t.minInterval
	for _, pi := range t.history {
		idx := 0
		if width > 0 {
			idx = int(math.Round((pi.Interval - t.minInterval) / width * float64(t.bucketCount)))
		}
		if idx < 0 {
			idx = 0
		}
		if idx > t.bucketCount-1 {
			idx = t.bucketCount - 1
		}
		t.buckets[idx] = append(t.buckets[idx], pi.Interval)
	}

	cutoff := now - t.peakHistoryLength
	pruned := t.history[:0]
	for _, pi := range t.history {
		if pi.Timestamp >= cutoff {
			pruned = append(pruned, pi)
		}
	}
	t.history = pruned

	predominant := -1
	maxCount := -1
	for idx, b := range t.buckets {
		if len(b) >= maxCount {
			maxCount = len(b)
			predominant = idx
		}
	}
	if predominant < 0 || maxCount <= 0 {
		return BeatUpdate{}, false
	}

	medianInterval := medianInPlace(t.buckets[predominant])
	if medianInterval <= 0 {
		return BeatUpdate{}, false
	}
	bpm := 60.0 / medianInterval

	return t.applyConfidence(now, bpm)
}

// applyConfidence implements §4.5 step 4: stable/adjust/destabilize
// classification against the last measured tempo, with confidence
// hysteresis suppressing emission through a brief transient once
// confidence is high.
func (t *tempoEstimator) applyConfidence(timestamp, bpm float64) (BeatUpdate, bool) {
	last := float64(t.state.LastMeasuredTempo)

	if last == 0 || math.Abs(bpm-last) < 2.0 {
		if t.state.Confidence < 10 {
			t.state.Confidence++
		}
		t.state.LastMeasuredTempo = float32(bpm)
		return BeatUpdate{Timestamp: timestamp, BPM: float32(bpm)}, true
	}

	for _, m := range octaveMultiples {
		if math.Abs(m*last-bpm) < 3.0*m {
			adjusted := bpm / m
			t.state.LastMeasuredTempo = float32(adjusted)
			return BeatUpdate{Timestamp: timestamp, BPM: float32(adjusted)}, true
		}
	}

	preDecrementConfidence := t.state.Confidence
	if t.state.Confidence > 0 {
		t.state.Confidence--
	}
	t.state.LastMeasuredTempo = float32(bpm)

	if preDecrementConfidence > 7 {
		return BeatUpdate{}, false
	}
	return BeatUpdate{Timestamp: timestamp, BPM: float32(bpm)}, true
}

func (t *tempoEstimator) reset() {
	t.history = t.history[:0]
	t.hasLastPeak = false
	t.lastPeakTimestamp = 0
	t.state = TempoState{FirstPass: true}
	for i := range t.buckets {
		t.buckets[i] = t.buckets[i][:0]
	}
}
