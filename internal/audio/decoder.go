package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// AudioDecoder defines the interface for all audio format decoders
type AudioDecoder interface {
	// ReadChunk reads up to numSamples mono samples as float64 in [-1, 1],
	// downmixing multi-channel sources by averaging.
	// Returns io.EOF when the stream is exhausted
	ReadChunk(numSamples int) ([]float64, error)

	// SampleRate returns the source sample rate in Hz
	SampleRate() int

	// NumSamples returns the total number of samples per channel
	// Returns 0 if the length is unknown
	NumSamples() int64

	// NumChannels returns the number of source channels (1=mono, 2=stereo)
	NumChannels() int

	// Close closes the decoder and releases resources
	Close() error
}

// sourceFormatter is implemented by decoders whose output rate or channel
// layout differs from the source they read.
type sourceFormatter interface {
	SourceFormat() (sampleRate, channels int)
}

// sourceFormat returns the rate and channel count of the material before the
// decoder converted it.
func sourceFormat(dec AudioDecoder) (sampleRate, channels int) {
	if s, ok := dec.(sourceFormatter); ok {
		return s.SourceFormat()
	}
	return dec.SampleRate(), dec.NumChannels()
}

var (
	// ErrUnsupportedFormat reports a container outside the allow-list or an
	// unparseable header.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrDecode reports a corrupt or truncated stream.
	ErrDecode = errors.New("audio decode failed")

	// ErrEmpty reports a stream that decoded to zero samples.
	ErrEmpty = errors.New("no audio data")

	// ErrTooLarge reports a stream longer than the configured sample budget.
	ErrTooLarge = errors.New("audio exceeds maximum length")
)

// DecoderOptions configures decoders that shell out to ffmpeg. Only M4A
// tracks in a codec without a native decoder use it.
type DecoderOptions struct {
	FFmpegPath string
	Timeout    time.Duration
}

// OpenDecoder sniffs the file and returns a decoder for its container.
func OpenDecoder(ctx context.Context, path string, opts DecoderOptions) (AudioDecoder, Format, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, FormatUnknown, err
	}
	if info.IsDir() {
		return nil, FormatUnknown, fmt.Errorf("%s is a directory: %w", path, os.ErrNotExist)
	}

	format, err := DetectFormat(path)
	if err != nil {
		return nil, FormatUnknown, err
	}

	var dec AudioDecoder
	switch format {
	case FormatWAV:
		dec, err = NewWAVDecoder(path)
	case FormatMP3:
		dec, err = NewMP3Decoder(path)
	case FormatFLAC:
		dec, err = NewFLACDecoder(path)
	case FormatAIFF:
		dec, err = NewAIFFDecoder(path)
	case FormatAAC:
		dec, err = NewAACDecoder(ctx, path)
	case FormatM4A:
		dec, err = openM4A(ctx, path, opts)
	default:
		return nil, format, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, format, err
	}
	return dec, format, nil
}
