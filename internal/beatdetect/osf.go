package beatdetect

import "math"

// OSFSample is one onset-strength measurement, emitted once per hop
// after the first analysis chunk.
type OSFSample struct {
	Timestamp float64
	Magnitude float32
}

// onsetStrength turns successive BandEnergies vectors into a scalar
// onset-strength value by half-wave-rectified log-spectral flux,
// collapsed across bands with the median rather than the sum (§4.2).
// All buffers are pre-sized at construction.
type onsetStrength struct {
	prevLog []float64 // log10 of the previous chunk's band energies
	ready   bool       // false until the first chunk has been consumed

	delta  []float64 // scratch: rectified flux per band
	sorted []float64 // scratch: copy of delta for median selection
}

func newOnsetStrength(bands int) *onsetStrength {
	return &onsetStrength{
		prevLog: make([]float64, bands),
		delta:   make([]float64, bands),
		sorted:  make([]float64, bands),
	}
}

// push folds one chunk's band energies into the OSF. ok is false on
// the very first call, when there is no previous frame to diff
// against (§4.2 "First pass").
func (o *onsetStrength) push(bandEnergies []float64) (magnitude float32, ok bool) {
	for i, m := range bandEnergies {
		var logM float64
		if m > 0 {
			logM = math.Log10(m)
		}
		if o.ready {
			d := logM - o.prevLog[i]
			if d < 0 {
				d = 0
			}
			o.delta[i] = d * 1000
		}
		o.prevLog[i] = logM
	}

	if !o.ready {
		o.ready = true
		return 0, false
	}

	copy(o.sorted, o.delta)
	return float32(medianInPlace(o.sorted)), true
}

func (o *onsetStrength) reset() {
	for i := range o.prevLog {
		o.prevLog[i] = 0
	}
	o.ready = false
}

// medianInPlace returns the median of xs, reordering xs in the
// process (a full insertion sort; xs is small, at most the band count
// or bucket population, so a full sort is cheap enough and avoids a
// second allocation for a dedicated selection routine).
func medianInPlace(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	insertionSort(xs)
	if n%2 == 1 {
		return xs[n/2]
	}
	return (xs[n/2-1] + xs[n/2]) / 2
}

// insertionSort sorts xs ascending in place. Used for the small
// fixed-size slices (band count, bucket population) that flow through
// the median and bucket-analysis stages; faster than sort.Float64s for
// these sizes and avoids its interface-dispatch allocation.
func insertionSort(xs []float64) {
	for i := 1; i < len(xs); i++ {
		v := xs[i]
		j := i - 1
		for j >= 0 && xs[j] > v {
			xs[j+1] = xs[j]
			j--
		}
		xs[j+1] = v
	}
}
