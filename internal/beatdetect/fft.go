package beatdetect

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// hannWindow returns a Hann window of length n, w[i] = 0.5*(1-cos(2*pi*i/(n-1))).
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := 0; i < n; i++ {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// spectrumAnalyzer computes a Hann-windowed magnitude spectrum over a
// fixed chunk size and reduces it to a fixed number of log-spaced
// bands, with every buffer pre-sized at construction so that repeated
// calls to analyze after warm-up never allocate (invariant 1, §8).
type spectrumAnalyzer struct {
	fft    *fourier.FFT
	window []float64

	windowed []float64    // scratch: windowed samples, len == chunkSize
	coeffs   []complex128 // scratch: FFT output, len == chunkSize/2+1

	bandLo []int // first bin index (inclusive) for each band
	bandHi []int // last bin index (exclusive) for each band
}

// newSpectrumAnalyzer builds an analyzer for the given chunk size,
// sample rate and band count. Config must already be validated.
func newSpectrumAnalyzer(chunkSize, sampleRate, bands int) *spectrumAnalyzer {
	a := &spectrumAnalyzer{
		fft:      fourier.NewFFT(chunkSize),
		window:   hannWindow(chunkSize),
		windowed: make([]float64, chunkSize),
		coeffs:   make([]complex128, chunkSize/2+1),
	}
	a.bandLo, a.bandHi = logBandEdges(chunkSize, sampleRate, bands)
	return a
}

// logBandEdges computes, for each of the requested bands, the [lo,hi)
// range of FFT bin indices whose center frequency falls in the band's
// span. Bands are log-spaced from bandLowFreq to bandHighFreq with
// bands-per-octave = bands/6 (§4.1).
func logBandEdges(chunkSize, sampleRate, bands int) (lo, hi []int) {
	lo = make([]int, bands)
	hi = make([]int, bands)

	numBins := chunkSize/2 + 1
	binWidth := float64(sampleRate) / float64(chunkSize)

	octaveSpan := math.Log2(bandHighFreq / bandLowFreq)
	for b := 0; b < bands; b++ {
		fLow := bandLowFreq * math.Pow(2, octaveSpan*float64(b)/float64(bands))
		fHigh := bandLowFreq * math.Pow(2, octaveSpan*float64(b+1)/float64(bands))

		binLo := int(math.Round(fLow / binWidth))
		binHi := int(math.Round(fHigh / binWidth))
		if binLo < 0 {
			binLo = 0
		}
		if binHi > numBins {
			binHi = numBins
		}
		if binHi <= binLo {
			binHi = binLo + 1
		}
		if binHi > numBins {
			binHi = numBins
		}
		lo[b], hi[b] = binLo, binHi
	}
	return lo, hi
}

// analyze computes the band-energy vector for one chunk of exactly
// chunkSize samples into dst (len(dst) == bands). dst is caller-owned
// so no allocation happens on the hot path.
func (a *spectrumAnalyzer) analyze(samples []float64, dst []float64) {
	n := copy(a.windowed, samples)
	for i := 0; i < n; i++ {
		a.windowed[i] *= a.window[i]
	}
	for i := n; i < len(a.windowed); i++ {
		a.windowed[i] = 0
	}

	a.coeffs = a.fft.Coefficients(a.coeffs, a.windowed)

	for b := range dst {
		lo, hi := a.bandLo[b], a.bandHi[b]
		var sum float64
		for k := lo; k < hi; k++ {
			sum += cmplxAbs(a.coeffs[k])
		}
		dst[b] = sum / float64(hi-lo)
	}
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
