package audio

import (
	"context"
	"fmt"
	"os"
)

// AudioMetadata holds information about an audio file
type AudioMetadata struct {
	Format     Format  `json:"format"`
	SampleRate int     `json:"sample_rate"` // 0 when the container does not declare it
	Channels   int     `json:"channels"`
	NumSamples int64   `json:"num_samples,omitempty"` // 0 when the container does not declare it
	Duration   float64 `json:"duration,omitempty"`    // Seconds, derived from NumSamples
	FileSize   int64   `json:"file_size"`
}

// GetAudioMetadata reads container headers without decoding the stream.
func GetAudioMetadata(ctx context.Context, filename string, opts DecoderOptions) (*AudioMetadata, error) {
	info, err := os.Stat(filename)
	if err != nil {
		return nil, err
	}

	dec, format, err := OpenDecoder(ctx, filename, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer dec.Close()

	rate, channels := sourceFormat(dec)
	meta := &AudioMetadata{
		Format:     format,
		SampleRate: rate,
		Channels:   channels,
		NumSamples: dec.NumSamples(),
		FileSize:   info.Size(),
	}
	// NumSamples counts decoder output, so its own rate gives the duration
	if meta.NumSamples > 0 && dec.SampleRate() > 0 {
		meta.Duration = float64(meta.NumSamples) / float64(dec.SampleRate())
	}
	return meta, nil
}
