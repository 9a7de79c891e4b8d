package audio

import (
	"fmt"
	"io"
	"os"

	"github.com/mewkiz/flac"
)

// FLACDecoder implements AudioDecoder for FLAC files
type FLACDecoder struct {
	stream      *flac.Stream
	file        *os.File
	sampleRate  int
	numSamples  int64
	numChannels int

	// Downmixed samples from the last parsed frame not yet returned
	pending []float64
}

// NewFLACDecoder creates a new FLAC decoder
func NewFLACDecoder(filename string) (*FLACDecoder, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	// Parse FLAC stream - reads signature and StreamInfo block
	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create FLAC decoder: %w: %w", ErrUnsupportedFormat, err)
	}

	return &FLACDecoder{
		stream:      stream,
		file:        f,
		sampleRate:  int(stream.Info.SampleRate),
		numSamples:  int64(stream.Info.NSamples),
		numChannels: int(stream.Info.NChannels),
	}, nil
}

// ReadChunk reads the next chunk of samples
func (d *FLACDecoder) ReadChunk(numSamples int) ([]float64, error) {
	samples := make([]float64, 0, numSamples)

	for len(samples) < numSamples {
		if len(d.pending) > 0 {
			n := min(numSamples-len(samples), len(d.pending))
			samples = append(samples, d.pending[:n]...)
			d.pending = d.pending[n:]
			continue
		}

		frame, err := d.stream.ParseNext()
		if err != nil {
			if err == io.EOF {
				if len(samples) == 0 {
					return nil, io.EOF
				}
				return samples, nil
			}
			return nil, fmt.Errorf("failed to parse FLAC frame: %w: %w", ErrDecode, err)
		}
		if len(frame.Subframes) == 0 {
			continue
		}

		// FLAC supports 4-32 bits per sample
		maxVal := float64(int64(1) << (frame.BitsPerSample - 1))
		frameSamples := len(frame.Subframes[0].Samples)
		mixed := make([]float64, frameSamples)

		for i := 0; i < frameSamples; i++ {
			var sum int64
			for _, subframe := range frame.Subframes {
				sum += int64(subframe.Samples[i])
			}
			mixed[i] = float64(sum) / float64(len(frame.Subframes)) / maxVal
		}
		d.pending = mixed
	}

	return samples, nil
}

// SampleRate returns the sample rate
func (d *FLACDecoder) SampleRate() int {
	return d.sampleRate
}

// NumSamples returns the total number of samples from StreamInfo
func (d *FLACDecoder) NumSamples() int64 {
	return d.numSamples
}

// NumChannels returns the number of audio channels
func (d *FLACDecoder) NumChannels() int {
	return d.numChannels
}

// Close closes the decoder and releases resources
func (d *FLACDecoder) Close() error {
	if d.stream != nil {
		d.stream.Close()
	}
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}
