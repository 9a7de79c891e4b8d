package audio

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVDecoder implements AudioDecoder for WAV files
type WAVDecoder struct {
	decoder    *wav.Decoder
	file       *os.File
	sampleRate int
	bitDepth   int
	numChans   int
	numSamples int64
	intBuf     *audio.IntBuffer
}

// NewWAVDecoder creates a new WAV decoder
func NewWAVDecoder(filename string) (*WAVDecoder, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("invalid WAV file: %w", ErrUnsupportedFormat)
	}

	// Get format info without reading all samples
	if err := decoder.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to seek to PCM data: %w: %w", ErrDecode, err)
	}

	numChans := int(decoder.NumChans)
	bitDepth := int(decoder.BitDepth)
	if numChans < 1 || bitDepth < 8 || decoder.SampleRate == 0 {
		f.Close()
		return nil, fmt.Errorf("WAV header declares %d channels at %d bits: %w", numChans, bitDepth, ErrUnsupportedFormat)
	}

	// PCMLen gives the length of PCM data in bytes
	bytesPerFrame := int64(bitDepth/8) * int64(numChans)

	return &WAVDecoder{
		decoder:    decoder,
		file:       f,
		sampleRate: int(decoder.SampleRate),
		bitDepth:   bitDepth,
		numChans:   numChans,
		numSamples: int64(decoder.PCMLen()) / bytesPerFrame,
	}, nil
}

// ReadChunk reads the next chunk of samples
func (d *WAVDecoder) ReadChunk(numSamples int) ([]float64, error) {
	// Interleaved data needs numSamples × numChannels slots
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
		// 8-bit WAV is unsigned with silence at 128
		for i := range data {
			data[i] -= 128
		}
	}
	return downmixInts(data, d.numChans, pcmScale(d.bitDepth)), nil
}

// SampleRate returns the sample rate
func (d *WAVDecoder) SampleRate() int {
	return d.sampleRate
}

// NumSamples returns the number of sample frames declared by the data chunk
func (d *WAVDecoder) NumSamples() int64 {
	return d.numSamples
}

// NumChannels returns the number of audio channels
func (d *WAVDecoder) NumChannels() int {
	return d.numChans
}

// Close closes the decoder and releases resources
func (d *WAVDecoder) Close() error {
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}

// pcmScale returns the divisor that maps signed integer PCM of the given
// depth onto [-1, 1].
func pcmScale(bitDepth int) float64 {
	if bitDepth == 8 {
		return 128
	}
	return float64(audio.IntMaxSignedValue(bitDepth))
}

// downmixInts converts interleaved integer PCM to mono float64 by averaging
// channels. A trailing partial frame is dropped.
func downmixInts(data []int, numChans int, maxVal float64) []float64 {
	if numChans == 1 {
		samples := make([]float64, len(data))
		for i, v := range data {
			samples[i] = float64(v) / maxVal
		}
		return samples
	}

	numTimeSamples := len(data) / numChans
	samples := make([]float64, numTimeSamples)
	for i := 0; i < numTimeSamples; i++ {
		var sum float64
		for ch := 0; ch < numChans; ch++ {
			sum += float64(data[i*numChans+ch])
		}
		samples[i] = sum / float64(numChans) / maxVal
	}
	return samples
}
