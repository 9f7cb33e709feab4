package beatdetect

import "math"

// AudioBlock is a contiguous run of mono, normalized float32 samples
// plus the timestamp, in seconds, of its first sample. Blocks are
// transient: the driver copies whatever it needs into its own queue
// and the caller may reuse the slice once ProcessBlock returns.
type AudioBlock struct {
	Samples   []float32
	Timestamp float64
}

// BeatHandler receives one (timestamp, bpm) update per tempo
// emission, invoked synchronously from ProcessBlock (§5).
type BeatHandler func(timestamp float64, bpm float32)

// PlotSink receives the optional diagnostic stream described in §6:
// one OSF sample per hop and one marker per detected peak. Attaching
// a sink is purely observational and never changes detector output.
type PlotSink interface {
	OnOSF(timestamp float64, magnitude float64)
	OnPeak(timestamp float64)
}

// Detector is the stream driver (§4.6): it owns the sample queue and
// wires AnalysisChunk -> spectrum -> OSF -> peak picker -> tempo
// estimator synchronously within ProcessBlock. There are no internal
// goroutines; ProcessBlock must be called from a single thread at a
// time, matching the single-threaded cooperative scheduling model of
// §5.
type Detector struct {
	cfg Config

	queue    *float32Queue
	chunkF64 []float64 // scratch, len == ChunkSize
	bands    []float64 // scratch, len == FrequencyBands

	spectrum *spectrumAnalyzer
	osf      *onsetStrength
	peaks    *peakPicker
	tempo    *tempoEstimator

	nextChunkTimestamp float64

	hasRange           bool
	rangeStart         float64
	rangeEnd           float64

	beatHandler BeatHandler
	plotSink    PlotSink
}

// New validates cfg and constructs a Detector with every buffer,
// including the sample queue's ring capacity, pre-sized so that
// ProcessBlock never allocates in steady state (§8, invariant 1).
func New(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Detector{
		cfg:      cfg,
		queue:    newFloat32Queue(cfg.ChunkSize * 2),
		chunkF64: make([]float64, cfg.ChunkSize),
		bands:    make([]float64, cfg.FrequencyBands),
		spectrum: newSpectrumAnalyzer(cfg.ChunkSize, cfg.SampleRate, cfg.FrequencyBands),
		osf:      newOnsetStrength(cfg.FrequencyBands),
		peaks:    newPeakPicker(cfg),
		tempo:    newTempoEstimator(cfg),
	}
	return d, nil
}

// SetBeatHandler installs the callback invoked for every BPM emission.
func (d *Detector) SetBeatHandler(h BeatHandler) { d.beatHandler = h }

// SetPlotSink attaches an optional diagnostic observer. Pass nil to
// detach.
func (d *Detector) SetPlotSink(sink PlotSink) { d.plotSink = sink }

// SetActiveRange restricts chunk dispatch to [start, end]; chunks
// outside the range still advance queue and timestamp accounting
// (§4.6, offline sources with known bounds). ClearActiveRange removes
// the restriction.
func (d *Detector) SetActiveRange(start, end float64) {
	d.hasRange = true
	d.rangeStart = start
	d.rangeEnd = end
}

func (d *Detector) ClearActiveRange() { d.hasRange = false }

// Reset re-initializes all streaming state (trailing buffer, peak
// queue, peak history, confidence, firstPass) as required by §5.
// Must be called from the same thread as ProcessBlock. The beat
// handler and plot sink remain installed.
func (d *Detector) Reset() {
	d.queue.reset()
	d.nextChunkTimestamp = 0
	d.osf.reset()
	d.peaks.reset()
	d.tempo.reset()
}

// ProcessBlock feeds samples into the internal ring queue and
// dispatches every hop-aligned chunk that becomes available through
// the pipeline, emitting BPM updates via the installed BeatHandler
// (§4.6). The queue's capacity is fixed at construction time, so a
// block larger than that capacity is absorbed by looping push/drain
// below rather than by growing the queue: each pass writes as much of
// samples as fits, drains every full chunk that frees up, then
// continues with whatever remains.
func (d *Detector) ProcessBlock(samples []float32, firstSampleTimestamp float64) {
	if d.queue.len() == 0 {
		d.nextChunkTimestamp = firstSampleTimestamp
	}

	for len(samples) > 0 {
		written := d.queue.push(samples)
		samples = samples[written:]

		for d.queue.len() >= d.cfg.ChunkSize {
			d.queue.peekInto(d.chunkF64, d.cfg.ChunkSize)

			chunkTimestamp := d.nextChunkTimestamp
			inRange := !d.hasRange || (chunkTimestamp >= d.rangeStart && chunkTimestamp <= d.rangeEnd)

			if inRange {
				d.dispatch(chunkTimestamp)
			}

			d.nextChunkTimestamp += float64(d.cfg.HopSize) / float64(d.cfg.SampleRate)
			d.queue.advance(d.cfg.HopSize)
		}

		if written == 0 {
			// The queue is full (at ChunkSize*2 capacity) but held less
			// than ChunkSize samples, which cfg.Validate's HopSize <=
			// ChunkSize invariant makes unreachable; guard against
			// spinning forever if that invariant is ever violated.
			break
		}
	}
}

// dispatch runs one chunk through the spectrum/OSF/peak/tempo stages.
func (d *Detector) dispatch(timestamp float64) {
	d.spectrum.analyze(d.chunkF64, d.bands)

	magnitude, ready := d.osf.push(d.bands)
	if !ready {
		return // first-pass warm-up (§4.2); NotReady, nothing to do
	}

	if d.plotSink != nil {
		d.plotSink.OnOSF(timestamp, float64(magnitude))
	}

	peak, gotPeak := d.peaks.push(timestamp, magnitude)
	if !gotPeak {
		return
	}

	if d.plotSink != nil {
		d.plotSink.OnPeak(peak.Timestamp)
	}

	update, emit := d.tempo.push(peak)
	if !emit {
		return
	}
	if d.beatHandler != nil && !math.IsNaN(float64(update.BPM)) && !math.IsInf(float64(update.BPM), 0) && update.BPM > 0 {
		d.beatHandler(update.Timestamp, update.BPM)
	}
}
