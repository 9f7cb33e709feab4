package audio

import "math"

// ClickTrainDecoder is an AudioDecoder that synthesizes a metronome-style
// click train instead of reading a file. It exists for demo runs and
// scenario testing where a known, exact tempo is more useful than a real
// recording.
type ClickTrainDecoder struct {
	sampleRate int
	bpm        float64
	pos        int64
	total      int64
}

// NewClickTrainDecoder synthesizes durationSec seconds of audio at the
// given bpm and sampleRate, with a short decaying tone burst at each beat.
func NewClickTrainDecoder(sampleRate int, bpm, durationSec float64) *ClickTrainDecoder {
	return &ClickTrainDecoder{
		sampleRate: sampleRate,
		bpm:        bpm,
		total:      int64(durationSec * float64(sampleRate)),
	}
}

const (
	clickFreqHz  = 2000.0
	clickDecay   = 6.0
	clickLenFrac = 0.05 // seconds
)

// ReadChunk synthesizes the next numSamples samples.
func (c *ClickTrainDecoder) ReadChunk(numSamples int) ([]float64, error) {
	if c.pos >= c.total {
		return nil, EOF
	}
	n := int64(numSamples)
	if c.pos+n > c.total {
		n = c.total - c.pos
	}

	period := 60.0 / c.bpm
	clickLen := int64(clickLenFrac * float64(c.sampleRate))

	out := make([]float64, n)
	for i := int64(0); i < n; i++ {
		sampleIdx := c.pos + i
		t := float64(sampleIdx) / float64(c.sampleRate)
		phase := math.Mod(t, period)
		phaseSamples := int64(phase * float64(c.sampleRate))
		if phaseSamples < clickLen {
			env := math.Exp(-clickDecay * float64(phaseSamples) / float64(clickLen))
			out[i] = env * math.Sin(2*math.Pi*clickFreqHz*float64(phaseSamples)/float64(c.sampleRate))
		}
	}
	c.pos += n
	return out, nil
}

// SampleRate returns the configured sample rate.
func (c *ClickTrainDecoder) SampleRate() int {
	return c.sampleRate
}

// NumSamples returns the total number of samples that will be generated.
func (c *ClickTrainDecoder) NumSamples() int64 {
	return c.total
}

// NumChannels always reports mono.
func (c *ClickTrainDecoder) NumChannels() int {
	return 1
}

// Close is a no-op; there is no underlying resource.
func (c *ClickTrainDecoder) Close() error {
	return nil
}
