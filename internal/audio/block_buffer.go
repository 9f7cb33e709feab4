package audio

import (
	"errors"
	"sync"
)

// ErrBufferClosed is returned when attempting to read from or write to a
// closed buffer.
var ErrBufferClosed = errors.New("buffer is closed")

// BlockBuffer decouples a decoder goroutine from the detector's consuming
// thread. The decoder writes decoded samples as they arrive; ProcessBlock
// must only ever be called from one goroutine (per the detector's
// single-threaded contract), so a live streaming producer writes into a
// BlockBuffer and a single reader loop drains it into the detector.
//
// Design:
//   - single producer (decoder), single consumer (detector loop)
//   - ReadBlock blocks until numSamples are available or the buffer closes
//   - Close() wakes the blocked reader, which drains what remains and
//     then gets ErrBufferClosed
type BlockBuffer struct {
	mu sync.Mutex

	samples       []float64
	readPos       int
	totalConsumed int64
	sampleRate    int

	closed bool
	cond   *sync.Cond
}

// NewBlockBuffer creates a buffer for a stream at the given sample rate.
// initialCapacity is a hint for the expected total sample count.
func NewBlockBuffer(sampleRate, initialCapacity int) *BlockBuffer {
	if initialCapacity <= 0 {
		initialCapacity = 1 << 20
	}
	b := &BlockBuffer{
		samples:    make([]float64, 0, initialCapacity),
		sampleRate: sampleRate,
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Write appends decoded samples, waking any blocked reader.
func (b *BlockBuffer) Write(samples []float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBufferClosed
	}
	b.samples = append(b.samples, samples...)
	b.cond.Broadcast()
	return nil
}

// ReadBlock blocks until numSamples are available and returns them as an
// AudioBlock timestamped by the sample count already consumed. If the
// buffer is closed before enough samples accumulate, it returns whatever
// remains (possibly fewer than numSamples, possibly zero with
// ErrBufferClosed).
func (b *BlockBuffer) ReadBlock(numSamples int) (AudioBlock, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		available := len(b.samples) - b.readPos
		if available >= numSamples {
			return b.takeLocked(numSamples), nil
		}
		if b.closed {
			if available <= 0 {
				return AudioBlock{}, ErrBufferClosed
			}
			return b.takeLocked(available), nil
		}
		b.cond.Wait()
	}
}

// AudioBlock mirrors beatdetect.AudioBlock but lives in the audio package
// to avoid a dependency cycle; producers convert between the two at the
// call site.
type AudioBlock struct {
	Samples   []float32
	Timestamp float64
}

func (b *BlockBuffer) takeLocked(n int) AudioBlock {
	timestamp := float64(b.totalConsumed) / float64(b.sampleRate)
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = float32(b.samples[b.readPos+i])
	}
	b.readPos += n
	b.totalConsumed += int64(n)
	return AudioBlock{Samples: out, Timestamp: timestamp}
}

// Available returns the number of unread samples.
func (b *BlockBuffer) Available() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples) - b.readPos
}

// Close signals that no more samples will be written.
func (b *BlockBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cond.Broadcast()
}

// IsClosed reports whether the buffer has been closed.
func (b *BlockBuffer) IsClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Compact drops already-read samples to bound memory use on long streams.
// Call periodically from the writer side during long-running captures.
func (b *BlockBuffer) Compact() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readPos == 0 {
		return
	}
	remaining := len(b.samples) - b.readPos
	copy(b.samples, b.samples[b.readPos:])
	b.samples = b.samples[:remaining]
	b.readPos = 0
}
