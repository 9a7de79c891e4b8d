package audio

import (
	"errors"
	"math"
	"testing"

	"github.com/linuxmatters/jivebeat/internal/audio/audiotest"
)

// TestFrameCount verifies the frame count formula ceil((N-S)/H)+1, including
// the single zero-padded frame for inputs shorter than one frame.
func TestFrameCount(t *testing.T) {
	testCases := []struct {
		name string
		n    int
		size int
		hop  int
		want int
	}{
		{"shorter than one frame", 100, 2048, 1024, 1},
		{"exactly one frame", 2048, 2048, 1024, 1},
		{"one sample over", 2049, 2048, 1024, 2},
		{"exact hop multiple", 2048 + 1024*4, 2048, 1024, 5},
		{"partial final hop", 2048 + 1024*4 + 1, 2048, 1024, 6},
		{"no overlap", 10000, 1000, 1000, 10},
		{"quarter hop", 5000, 2048, 512, 7},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := FrameCount(tc.n, tc.size, tc.hop)
			if got != tc.want {
				t.Errorf("FrameCount(%d, %d, %d) = %d, want %d", tc.n, tc.size, tc.hop, got, tc.want)
			}

			if tc.n >= tc.size {
				formula := int(math.Ceil(float64(tc.n-tc.size)/float64(tc.hop))) + 1
				if got != formula {
					t.Errorf("FrameCount = %d, formula gives %d", got, formula)
				}
			}
		})
	}
}

// TestSplit_LayoutAndPadding checks frame boundaries, timestamps and the
// zero-padded final frame.
func TestSplit_LayoutAndPadding(t *testing.T) {
	const size, hop = 8, 4
	samples := make([]float64, 19)
	for i := range samples {
		samples[i] = float64(i + 1)
	}
	w := &Waveform{Samples: samples, SampleRate: 4}

	frames, err := Split(w, size, hop)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	if len(frames) != FrameCount(len(samples), size, hop) {
		t.Fatalf("got %d frames, want %d", len(frames), FrameCount(len(samples), size, hop))
	}

	for i, f := range frames {
		if f.Index != i {
			t.Errorf("frame %d has index %d", i, f.Index)
		}
		if f.Start != i*hop {
			t.Errorf("frame %d starts at %d, want %d", i, f.Start, i*hop)
		}
		if want := float64(i*hop) / 4; f.Timestamp != want {
			t.Errorf("frame %d timestamp %.2f, want %.2f", i, f.Timestamp, want)
		}
		if len(f.Samples) != size {
			t.Fatalf("frame %d has %d samples, want %d", i, len(f.Samples), size)
		}
		for j, v := range f.Samples {
			idx := f.Start + j
			want := 0.0
			if idx < len(samples) {
				want = samples[idx]
			}
			if v != want {
				t.Errorf("frame %d sample %d = %.0f, want %.0f", i, j, v, want)
			}
		}
	}
}

// TestSplit_ShortInput verifies a waveform shorter than one frame yields a
// single padded frame rather than nothing.
func TestSplit_ShortInput(t *testing.T) {
	w := &Waveform{Samples: []float64{0.5, -0.5, 0.25}, SampleRate: 44100}

	frames, err := Split(w, 2048, 1024)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if frames[0].Samples[2] != 0.25 || frames[0].Samples[3] != 0 || frames[0].Samples[2047] != 0 {
		t.Errorf("padding not applied as expected")
	}
}

func TestSplit_Errors(t *testing.T) {
	if _, err := Split(&Waveform{SampleRate: 44100}, 2048, 1024); err != ErrEmpty {
		t.Errorf("empty waveform: err = %v, want ErrEmpty", err)
	}
	if _, err := Split(&Waveform{Samples: []float64{1}, SampleRate: 44100}, 0, 1024); err == nil {
		t.Error("zero frame size: expected error")
	}
}

func TestResample(t *testing.T) {
	t.Run("identity", func(t *testing.T) {
		in := []float64{1, 2, 3}
		out, err := Resample(in, 44100, 44100)
		if err != nil {
			t.Fatalf("Resample failed: %v", err)
		}
		if &out[0] != &in[0] {
			t.Error("expected the input slice back when rates match")
		}
	})

	testCases := []struct {
		name     string
		from, to int
		n        int
		want     int
	}{
		{"upsample doubles length", 22050, 44100, 22050, 44100},
		{"downsample halves length", 96000, 48000, 96000, 48000},
		{"non-integer ratio", 48000, 44100, 48000, 44100},
		{"rounds fractional length", 48000, 44100, 1001, 920},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Resample(make([]float64, tc.n), tc.from, tc.to)
			if err != nil {
				t.Fatalf("Resample failed: %v", err)
			}
			if len(out) != tc.want {
				t.Errorf("len = %d, want %d", len(out), tc.want)
			}
		})
	}

	t.Run("invalid rate", func(t *testing.T) {
		if _, err := Resample([]float64{1, 2}, 0, 44100); !errors.Is(err, ErrDecode) {
			t.Errorf("error = %v, want ErrDecode", err)
		}
	})

	t.Run("preserves sine frequency", func(t *testing.T) {
		const from, to = 48000, 44100
		in := make([]float64, from)
		for i := range in {
			in[i] = math.Sin(2 * math.Pi * 100 * float64(i) / from)
		}
		out, err := Resample(in, from, to)
		if err != nil {
			t.Fatalf("Resample failed: %v", err)
		}

		// Count rising zero crossings: a 100 Hz tone has 100 per second
		crossings := 0
		for i := 1; i < len(out); i++ {
			if out[i-1] < 0 && out[i] >= 0 {
				crossings++
			}
		}
		if crossings < 99 || crossings > 100 {
			t.Errorf("got %d rising zero crossings, want ~100", crossings)
		}
	})

	t.Run("preserves passband amplitude", func(t *testing.T) {
		in := audiotest.Sine(1000, 0.5, 1.0, 22050)
		out, err := Resample(in, 22050, 44100)
		if err != nil {
			t.Fatalf("Resample failed: %v", err)
		}
		got := steadyRMS(out)
		want := 0.5 / math.Sqrt2
		if math.Abs(got-want) > 0.02 {
			t.Errorf("RMS = %.4f, want %.4f", got, want)
		}
	})
}

// TestResample_RemovesContentAboveNyquist verifies that a tone above the
// target Nyquist is filtered out instead of folding back as an alias.
func TestResample_RemovesContentAboveNyquist(t *testing.T) {
	testCases := []struct {
		name     string
		freq     float64
		from, to int
	}{
		{"23 kHz from 48 kHz to 44.1 kHz", 23000, 48000, 44100},
		{"15 kHz from 44.1 kHz to 22.05 kHz", 15000, 44100, 22050},
		{"30 kHz from 96 kHz to 44.1 kHz", 30000, 96000, 44100},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in := audiotest.Sine(tc.freq, 0.9, 1.0, tc.from)
			out, err := Resample(in, tc.from, tc.to)
			if err != nil {
				t.Fatalf("Resample failed: %v", err)
			}

			rms := steadyRMS(out)
			t.Logf("residual RMS %.2e", rms)
			if rms > 0.01 {
				t.Errorf("RMS = %.4f after resampling, want < 0.01", rms)
			}
		})
	}
}

// steadyRMS measures the middle 80% of a signal, away from filter edges.
func steadyRMS(samples []float64) float64 {
	start, end := len(samples)/10, len(samples)*9/10
	var sum float64
	for _, v := range samples[start:end] {
		sum += v * v
	}
	return math.Sqrt(sum / float64(end-start))
}
