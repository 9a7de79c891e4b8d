package audio

import (
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// MP3Decoder implements AudioDecoder for MP3 files
type MP3Decoder struct {
	decoder     *mp3.Decoder
	file        *os.File
	sampleRate  int
	numChannels int
	buf         []byte
}

// NewMP3Decoder creates a new MP3 decoder
func NewMP3Decoder(filename string) (*MP3Decoder, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create MP3 decoder: %w: %w", ErrUnsupportedFormat, err)
	}

	return &MP3Decoder{
		decoder:     decoder,
		file:        f,
		sampleRate:  decoder.SampleRate(),
		numChannels: 2, // go-mp3 always outputs stereo
	}, nil
}

// ReadChunk reads the next chunk of samples
func (d *MP3Decoder) ReadChunk(numSamples int) ([]float64, error) {
	// go-mp3 always outputs interleaved 16-bit stereo: L0 R0 L1 R1 ...
	// so one mono sample costs 4 bytes
	if cap(d.buf) < numSamples*4 {
		d.buf = make([]byte, numSamples*4)
	}
	buf := d.buf[:numSamples*4]

	n, err := io.ReadFull(d.decoder, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("failed to read MP3 data: %w: %w", ErrDecode, err)
	}

	if n < 4 {
		return nil, io.EOF
	}

	stereoSamplesRead := n / 4
	samples := make([]float64, stereoSamplesRead)

	for i := 0; i < stereoSamplesRead; i++ {
		left := int16(uint16(buf[i*4]) | uint16(buf[i*4+1])<<8)
		right := int16(uint16(buf[i*4+2]) | uint16(buf[i*4+3])<<8)
		samples[i] = (float64(left) + float64(right)) / 2.0 / 32768.0
	}

	return samples, nil
}

// SampleRate returns the sample rate
func (d *MP3Decoder) SampleRate() int {
	return d.sampleRate
}

// NumSamples returns the decoded length in samples per channel
func (d *MP3Decoder) NumSamples() int64 {
	if l := d.decoder.Length(); l > 0 {
		return l / 4
	}
	return 0
}

// NumChannels returns the number of audio channels
func (d *MP3Decoder) NumChannels() int {
	return d.numChannels
}

// Close closes the decoder and releases resources
func (d *MP3Decoder) Close() error {
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}
