package spectral

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"runtime"
	"testing"

	"github.com/argusdusty/gofft"
	"github.com/linuxmatters/jivebeat/internal/audio"
	"github.com/linuxmatters/jivebeat/internal/audio/audiotest"
	"github.com/linuxmatters/jivebeat/internal/config"
	"github.com/mjibson/go-dsp/window"
)

func framesOf(t testing.TB, samples []float64) []audio.Frame {
	t.Helper()
	w := &audio.Waveform{Samples: samples, SampleRate: config.SampleRate}
	frames, err := audio.Split(w, config.FrameSize, config.HopSize)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	return frames
}

func newAnalyzer(t testing.TB, workers int) *Analyzer {
	t.Helper()
	opts := DefaultOptions()
	opts.Workers = workers
	a, err := NewAnalyzer(opts)
	if err != nil {
		t.Fatalf("NewAnalyzer failed: %v", err)
	}
	return a
}

func argmax(v []float64) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// TestCompute_MagnitudeMatchesReferenceFFT cross-checks the gonum real FFT
// against a complex FFT of the same windowed frame. A mismatch points at the
// window, the bin layout or the magnitude conversion.
func TestCompute_MagnitudeMatchesReferenceFFT(t *testing.T) {
	samples := audiotest.Sine(440, 0.8, 0.1, config.SampleRate)
	frames := framesOf(t, samples)

	spectra, err := newAnalyzer(t, 1).Compute(context.Background(), frames[:1])
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	win := window.Hann(config.FrameSize)
	windowed := make([]float64, config.FrameSize)
	for i := range windowed {
		windowed[i] = frames[0].Samples[i] * win[i]
	}
	ref := gofft.Float64ToComplex128Array(windowed)
	if err := gofft.FFT(ref); err != nil {
		t.Fatalf("reference FFT failed: %v", err)
	}

	mag := spectra[0].Magnitude
	if len(mag) != config.FrameSize/2+1 {
		t.Fatalf("got %d bins, want %d", len(mag), config.FrameSize/2+1)
	}
	for k := range mag {
		want := cmplx.Abs(ref[k])
		if math.Abs(float64(mag[k])-want) > 1e-3*math.Max(1, want) {
			t.Fatalf("bin %d: magnitude %.6f, reference %.6f", k, mag[k], want)
		}
	}

	peak := 0
	for k := range mag {
		if mag[k] > mag[peak] {
			peak = k
		}
	}
	binHz := float64(config.SampleRate) / config.FrameSize
	t.Logf("440 Hz peak at bin %d (%.1f Hz)", peak, float64(peak)*binHz)
	if math.Abs(float64(peak)*binHz-440) > binHz {
		t.Errorf("peak bin %d is %.1f Hz, want ~440 Hz", peak, float64(peak)*binHz)
	}
}

// TestCompute_ChromaSingleNotes plays every note of two octaves and checks
// that the dominant chroma bin is the note's pitch class.
func TestCompute_ChromaSingleNotes(t *testing.T) {
	a := newAnalyzer(t, 2)

	for midi := 48; midi < 84; midi++ {
		freq := audiotest.NoteFrequency(midi)
		frames := framesOf(t, audiotest.Sine(freq, 0.5, 0.2, config.SampleRate))

		spectra, err := a.Compute(context.Background(), frames)
		if err != nil {
			t.Fatalf("Compute failed: %v", err)
		}

		chroma := spectra[1].Chroma
		if got, want := argmax(chroma[:]), midi%12; got != want {
			t.Errorf("MIDI %d (%.1f Hz): dominant pitch class %d, want %d (chroma %v)", midi, freq, got, want, chroma)
		}
	}
}

func TestCompute_SilenceHasZeroChroma(t *testing.T) {
	frames := framesOf(t, audiotest.Silence(0.5, config.SampleRate))

	spectra, err := newAnalyzer(t, 4).Compute(context.Background(), frames)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	for _, f := range spectra {
		for pc, v := range f.Chroma {
			if v != 0 {
				t.Fatalf("frame %d: chroma[%d] = %f, want 0", f.Index, pc, v)
			}
		}
		for k, v := range f.Magnitude {
			if v != 0 {
				t.Fatalf("frame %d: magnitude[%d] = %f, want 0", f.Index, k, v)
			}
		}
	}
}

// TestCompute_WorkerCountIndependent verifies results do not depend on how
// frames were spread across workers, and that output order follows input.
func TestCompute_WorkerCountIndependent(t *testing.T) {
	chords := audiotest.Chords(audiotest.CMajorCadence, 0.5, 1, config.SampleRate)
	frames := framesOf(t, chords)

	serial, err := newAnalyzer(t, 1).Compute(context.Background(), frames)
	if err != nil {
		t.Fatalf("serial Compute failed: %v", err)
	}
	parallel, err := newAnalyzer(t, 7).Compute(context.Background(), frames)
	if err != nil {
		t.Fatalf("parallel Compute failed: %v", err)
	}

	if len(serial) != len(frames) || len(parallel) != len(frames) {
		t.Fatalf("got %d/%d frames, want %d", len(serial), len(parallel), len(frames))
	}
	for i := range serial {
		if serial[i].Index != i || parallel[i].Index != i {
			t.Fatalf("frame %d out of order: %d / %d", i, serial[i].Index, parallel[i].Index)
		}
		if serial[i].Timestamp != frames[i].Timestamp {
			t.Errorf("frame %d timestamp %.4f, want %.4f", i, serial[i].Timestamp, frames[i].Timestamp)
		}
		if serial[i].Chroma != parallel[i].Chroma {
			t.Fatalf("frame %d chroma differs between worker counts", i)
		}
		for k := range serial[i].Magnitude {
			if serial[i].Magnitude[k] != parallel[i].Magnitude[k] {
				t.Fatalf("frame %d bin %d differs between worker counts", i, k)
			}
		}
	}
}

func TestCompute_SkipsChromaWhenDisabled(t *testing.T) {
	opts := DefaultOptions()
	opts.Chroma = false
	a, err := NewAnalyzer(opts)
	if err != nil {
		t.Fatal(err)
	}

	spectra, err := a.Compute(context.Background(), framesOf(t, audiotest.Sine(440, 0.5, 0.2, config.SampleRate)))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if spectra[1].Chroma != [12]float64{} {
		t.Errorf("chroma computed with Chroma=false: %v", spectra[1].Chroma)
	}
}

func TestCompute_Cancelled(t *testing.T) {
	frames := framesOf(t, audiotest.Sine(440, 0.5, 1.0, config.SampleRate))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newAnalyzer(t, 2).Compute(ctx, frames); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestCompute_RejectsWrongFrameSize(t *testing.T) {
	frames := []audio.Frame{{Samples: make([]float64, 100)}}
	if _, err := newAnalyzer(t, 1).Compute(context.Background(), frames); err == nil {
		t.Error("expected error for short frame")
	}
}

func TestNewAnalyzer_Validates(t *testing.T) {
	if _, err := NewAnalyzer(Options{FrameSize: 2, SampleRate: 44100}); err == nil {
		t.Error("expected error for tiny frame size")
	}
	if _, err := NewAnalyzer(Options{FrameSize: 2048}); err == nil {
		t.Error("expected error for zero sample rate")
	}
	a, err := NewAnalyzer(Options{FrameSize: 2048, SampleRate: 44100})
	if err != nil {
		t.Fatal(err)
	}
	if a.Options().Workers != 1 {
		t.Errorf("Workers = %d, want 1", a.Options().Workers)
	}
}

func TestPitchClass(t *testing.T) {
	testCases := []struct {
		freq float64
		want int
	}{
		{440, 9},
		{261.63, 0},
		{466.16, 10},
		{27.5, 9},
		{4186.01, 0},
		{452, 9},  // 47 cents sharp of A
		{454, 10}, // 54 cents sharp, rounds up to A#
		{427, 8},  // 52 cents flat of A
	}

	for _, tc := range testCases {
		if got := PitchClass(tc.freq, 440); got != tc.want {
			t.Errorf("PitchClass(%.2f) = %d, want %d", tc.freq, got, tc.want)
		}
	}

	// Retuning the reference shifts the mapping
	if got := PitchClass(432, 432); got != 9 {
		t.Errorf("PitchClass(432, 432) = %d, want 9", got)
	}
}

// TestChroma_IgnoresOutOfBandPeaks verifies peaks below MinFreq or above
// MaxFreq never reach the chroma vector.
func TestChroma_IgnoresOutOfBandPeaks(t *testing.T) {
	opts := DefaultOptions().ChromaOptions
	for _, freq := range []float64{55, 7040} {
		frame := audiotest.Sine(freq, 0.5, 0.1, config.SampleRate)[:config.FrameSize]
		mag := magnitudes(frame)
		chroma := Chroma(mag, config.SampleRate, config.FrameSize, opts)

		var sum, peak float64
		for _, v := range chroma {
			sum += v
		}
		for _, v := range mag {
			peak = math.Max(peak, v)
		}
		// Only sidelobe leakage may remain in band
		if sum > 0.05*peak {
			t.Errorf("%.0f Hz: in-band chroma mass %.3f vs spectral peak %.3f", freq, sum, peak)
		}
	}
}

func magnitudes(frame []float64) []float64 {
	win := window.Hann(len(frame))
	in := make([]float64, len(frame))
	for i := range in {
		in[i] = frame[i] * win[i]
	}
	c := gofft.Float64ToComplex128Array(in)
	_ = gofft.FFT(c)
	out := make([]float64, len(frame)/2+1)
	for i := range out {
		out[i] = cmplx.Abs(c[i])
	}
	return out
}

func BenchmarkCompute(b *testing.B) {
	samples := audiotest.Chords(audiotest.CMajorCadence, 2.5, 1, config.SampleRate)
	frames := framesOf(b, samples)

	for _, workers := range []int{1, runtime.NumCPU()} {
		a := newAnalyzer(b, workers)
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			for b.Loop() {
				if _, err := a.Compute(context.Background(), frames); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
