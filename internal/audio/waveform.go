package audio

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/linuxmatters/jivebeat/internal/config"
)

// readChunkSize is the number of samples requested per ReadChunk call
const readChunkSize = 16384

// Waveform is a decoded mono signal at the analysis rate
type Waveform struct {
	Samples    []float64 // Mono samples in [-1, 1]
	SampleRate int

	SourceRate     int // Sample rate of the source material; 0 when unknown
	SourceChannels int // Channel count before downmix; 0 when unknown
	Format         Format
}

// Duration returns the signal length in seconds.
func (w *Waveform) Duration() float64 {
	if w == nil || w.SampleRate == 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Slice returns a read-only view of samples [start, end) sharing storage.
func (w *Waveform) Slice(start, end int) *Waveform {
	start = max(0, min(start, len(w.Samples)))
	end = max(start, min(end, len(w.Samples)))
	view := *w
	view.Samples = w.Samples[start:end:end]
	return &view
}

// LoadOptions controls decoding and resampling.
type LoadOptions struct {
	Decoder    DecoderOptions
	TargetRate int   // Defaults to config.SampleRate
	MaxSamples int64 // Budget at the target rate; 0 disables the check
}

// Load decodes path into a mono Waveform at the target rate. The context is
// checked between chunks.
func Load(ctx context.Context, path string, opts LoadOptions) (*Waveform, error) {
	dec, format, err := OpenDecoder(ctx, path, opts.Decoder)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	w, err := Decode(ctx, dec, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", format, err)
	}
	w.Format = format
	return w, nil
}

// Decode drains an open decoder into a Waveform.
func Decode(ctx context.Context, dec AudioDecoder, opts LoadOptions) (*Waveform, error) {
	target := opts.TargetRate
	if target <= 0 {
		target = config.SampleRate
	}
	sourceRate := dec.SampleRate()
	if sourceRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d: %w", sourceRate, ErrDecode)
	}

	// Convert the budget to source-rate samples so the check runs while reading
	var limit int64
	if opts.MaxSamples > 0 {
		limit = opts.MaxSamples * int64(sourceRate) / int64(target)
	}
	if limit > 0 && dec.NumSamples() > limit {
		return nil, fmt.Errorf("%d samples declared, limit %d: %w", dec.NumSamples(), limit, ErrTooLarge)
	}

	capacity := dec.NumSamples()
	if capacity <= 0 || (limit > 0 && capacity > limit) {
		capacity = readChunkSize
	}
	samples := make([]float64, 0, capacity)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chunk, err := dec.ReadChunk(readChunkSize)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		samples = append(samples, chunk...)

		if limit > 0 && int64(len(samples)) > limit {
			return nil, fmt.Errorf("more than %d samples: %w", limit, ErrTooLarge)
		}
	}

	if len(samples) == 0 {
		return nil, ErrEmpty
	}

	resampled, err := Resample(samples, sourceRate, target)
	if err != nil {
		return nil, err
	}

	srcRate, srcChans := sourceFormat(dec)
	return &Waveform{
		Samples:        resampled,
		SampleRate:     target,
		SourceRate:     srcRate,
		SourceChannels: srcChans,
	}, nil
}
