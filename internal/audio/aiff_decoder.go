package audio

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/aiff"
	"github.com/go-audio/audio"
)

// AIFFDecoder implements AudioDecoder for AIFF and AIFF-C files
type AIFFDecoder struct {
	decoder    *aiff.Decoder
	file       *os.File
	sampleRate int
	bitDepth   int
	numChans   int
	numSamples int64
	intBuf     *audio.IntBuffer
}

// NewAIFFDecoder creates a new AIFF decoder
func NewAIFFDecoder(filename string) (*AIFFDecoder, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	decoder := aiff.NewDecoder(f)
	if !decoder.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("invalid AIFF file: %w", ErrUnsupportedFormat)
	}

	if err := decoder.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to seek to PCM data: %w: %w", ErrDecode, err)
	}

	numChans := int(decoder.NumChans)
	bitDepth := int(decoder.BitDepth)
	if numChans < 1 || bitDepth < 8 || decoder.SampleRate == 0 {
		f.Close()
		return nil, fmt.Errorf("AIFF header declares %d channels at %d bits: %w", numChans, bitDepth, ErrUnsupportedFormat)
	}

	return &AIFFDecoder{
		decoder:    decoder,
		file:       f,
		sampleRate: int(decoder.SampleRate),
		bitDepth:   bitDepth,
		numChans:   numChans,
		numSamples: int64(decoder.NumSampleFrames),
	}, nil
}

// ReadChunk reads the next chunk of samples
func (d *AIFFDecoder) ReadChunk(numSamples int) ([]float64, error) {
	bufSize := numSamples * d.numChans
	if d.intBuf == nil || len(d.intBuf.Data) != bufSize {
		d.intBuf = &audio.IntBuffer{
			Data: make([]int, bufSize),
			Format: &audio.Format{
				NumChannels: d.numChans,
				SampleRate:  d.sampleRate,
			},
		}
	}

	n, err := d.decoder.PCMBuffer(d.intBuf)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read PCM buffer: %w: %w", ErrDecode, err)
	}

	if n == 0 {
		return nil, io.EOF
	}

	data := d.intBuf.Data[:n]
	if d.bitDepth == 8 {
		// AIFF 8-bit is signed but arrives as the raw byte value
		for i, v := range data {
			data[i] = int(int8(uint8(v)))
		}
	}
	return downmixInts(data, d.numChans, pcmScale(d.bitDepth)), nil
}

// SampleRate returns the sample rate
func (d *AIFFDecoder) SampleRate() int {
	return d.sampleRate
}

// NumSamples returns the sample frame count declared by the COMM chunk
func (d *AIFFDecoder) NumSamples() int64 {
	return d.numSamples
}

// NumChannels returns the number of audio channels
func (d *AIFFDecoder) NumChannels() int {
	return d.numChans
}

// Close closes the decoder and releases resources
func (d *AIFFDecoder) Close() error {
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}
