package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/thesyncim/gopus"
)

// OpusDecoder implements AudioDecoder for a simplified Opus packet stream:
// each packet is framed as a little-endian uint32 length prefix followed
// by that many bytes of raw Opus packet data, as produced by an upstream
// ingest pipeline rather than an Ogg container.
type OpusDecoder struct {
	decoder     *gopus.Decoder
	file        *os.File
	sampleRate  int
	numChannels int
	pcmScratch  []float32
	buffer      []float64
}

// NewOpusDecoder opens a framed Opus packet stream at the given sample
// rate (one of 8000, 12000, 16000, 24000, 48000) and channel count.
func NewOpusDecoder(filename string, sampleRate, channels int) (*OpusDecoder, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	dec, err := gopus.NewDecoder(sampleRate, channels)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create Opus decoder: %w", err)
	}

	return &OpusDecoder{
		decoder:     dec,
		file:        f,
		sampleRate:  sampleRate,
		numChannels: channels,
		pcmScratch:  make([]float32, 5760), // 60ms stereo @ 48kHz, largest Opus frame
	}, nil
}

// ReadChunk reads the next chunk of samples, decoding as many framed
// packets as needed and downmixing to mono.
func (d *OpusDecoder) ReadChunk(numSamples int) ([]float64, error) {
	for len(d.buffer) < numSamples {
		packet, err := d.readPacket()
		if err != nil {
			if err == io.EOF {
				if len(d.buffer) == 0 {
					return nil, io.EOF
				}
				break
			}
			return nil, err
		}

		n, err := d.decoder.Decode(packet, d.pcmScratch)
		if err != nil {
			return nil, fmt.Errorf("failed to decode Opus packet: %w", err)
		}

		for i := 0; i < n; i++ {
			var sample float64
			if d.numChannels == 1 {
				sample = float64(d.pcmScratch[i])
			} else {
				l := float64(d.pcmScratch[i*2])
				r := float64(d.pcmScratch[i*2+1])
				sample = (l + r) / 2.0
			}
			d.buffer = append(d.buffer, sample)
		}
	}

	take := numSamples
	if take > len(d.buffer) {
		take = len(d.buffer)
	}
	out := append([]float64(nil), d.buffer[:take]...)
	d.buffer = d.buffer[take:]
	return out, nil
}

// readPacket reads one length-prefixed Opus packet from the stream.
func (d *OpusDecoder) readPacket() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(d.file, lenBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	packet := make([]byte, n)
	if _, err := io.ReadFull(d.file, packet); err != nil {
		return nil, fmt.Errorf("short Opus packet read: %w", err)
	}
	return packet, nil
}

// SampleRate returns the sample rate.
func (d *OpusDecoder) SampleRate() int {
	return d.sampleRate
}

// NumChannels returns the number of audio channels (always reported as
// mono, since ReadChunk downmixes before returning samples).
func (d *OpusDecoder) NumChannels() int {
	return 1
}

// NumSamples is unknown for a streamed packet framing; callers must treat
// 0 as "unbounded".
func (d *OpusDecoder) NumSamples() int64 {
	return 0
}

// Close closes the underlying file.
func (d *OpusDecoder) Close() error {
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}
