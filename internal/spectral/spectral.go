// Package spectral computes per-frame magnitude spectra and chroma vectors.
package spectral

import (
	"context"
	"fmt"
	"math/cmplx"
	"sync"

	"github.com/linuxmatters/jivebeat/internal/audio"
	"github.com/linuxmatters/jivebeat/internal/config"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// Frame is the spectral view of one audio.Frame
type Frame struct {
	Index     int
	Timestamp float64

	// Magnitude holds FrameSize/2+1 bins; float32 halves the memory held for
	// the onset envelope on long files
	Magnitude []float32

	Chroma [12]float64
}

// Options configures an Analyzer.
type Options struct {
	FrameSize  int
	SampleRate int
	Workers    int
	Chroma     bool // Skip chroma when only tempo is needed
	ChromaOptions
}

// DefaultOptions returns options matching the fixed analysis settings.
func DefaultOptions() Options {
	return Options{
		FrameSize:  config.FrameSize,
		SampleRate: config.SampleRate,
		Workers:    1,
		Chroma:     true,
		ChromaOptions: ChromaOptions{
			TuningA4:      config.TuningA4,
			MinFreq:       config.ChromaMinFreq,
			MaxFreq:       config.ChromaMaxFreq,
			PeakThreshold: config.PeakThreshold,
		},
	}
}

// Analyzer transforms frames into spectra. It holds only read-only state and
// is safe for concurrent use.
type Analyzer struct {
	opts   Options
	window []float64
}

// NewAnalyzer precomputes the Hann window for the frame size.
func NewAnalyzer(opts Options) (*Analyzer, error) {
	if opts.FrameSize < 4 {
		return nil, fmt.Errorf("frame size %d too small", opts.FrameSize)
	}
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", opts.SampleRate)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	return &Analyzer{
		opts:   opts,
		window: window.Hann(opts.FrameSize),
	}, nil
}

// Options returns the analyzer configuration.
func (a *Analyzer) Options() Options {
	return a.opts
}

// Compute returns one spectral Frame per input frame, in input order. Frames
// are spread over a worker pool; the call returns once every frame is done.
// Cancellation is checked before each frame.
func (a *Analyzer) Compute(ctx context.Context, frames []audio.Frame) ([]Frame, error) {
	out := make([]Frame, len(frames))
	if len(frames) == 0 {
		return out, nil
	}
	for i := range frames {
		if len(frames[i].Samples) != a.opts.FrameSize {
			return nil, fmt.Errorf("frame %d has %d samples, want %d", i, len(frames[i].Samples), a.opts.FrameSize)
		}
	}

	numWorkers := min(a.opts.Workers, len(frames))
	jobs := make(chan int, len(frames))
	for i := range frames {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Per-worker FFT plan and scratch buffers
			fft := fourier.NewFFT(a.opts.FrameSize)
			buf := make([]float64, a.opts.FrameSize)
			coeffs := make([]complex128, a.opts.FrameSize/2+1)
			mag := make([]float64, a.opts.FrameSize/2+1)

			for idx := range jobs {
				if ctx.Err() != nil {
					continue
				}
				out[idx] = a.transform(frames[idx], fft, buf, coeffs, mag)
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Analyzer) transform(f audio.Frame, fft *fourier.FFT, buf []float64, coeffs []complex128, mag []float64) Frame {
	floats.MulTo(buf, f.Samples, a.window)
	coeffs = fft.Coefficients(coeffs, buf)

	result := Frame{
		Index:     f.Index,
		Timestamp: f.Timestamp,
		Magnitude: make([]float32, len(coeffs)),
	}
	for i, c := range coeffs {
		mag[i] = cmplx.Abs(c)
		result.Magnitude[i] = float32(mag[i])
	}

	if a.opts.Chroma {
		result.Chroma = Chroma(mag, a.opts.SampleRate, a.opts.FrameSize, a.opts.ChromaOptions)
	}
	return result
}
