package spectral

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// ChromaOptions controls how spectral peaks fold into pitch classes.
type ChromaOptions struct {
	TuningA4      float64 // Reference pitch in Hz
	MinFreq       float64 // Lowest peak frequency folded
	MaxFreq       float64 // Highest peak frequency folded
	PeakThreshold float64 // Fraction of the in-band maximum a peak must reach
}

// PitchClass maps a frequency to its equal-tempered pitch class, 0 = C.
func PitchClass(freq, tuningA4 float64) int {
	midi := 69 + 12*math.Log2(freq/tuningA4)
	pc := int(math.Round(midi)) % 12
	if pc < 0 {
		pc += 12
	}
	return pc
}

// Chroma folds a magnitude spectrum into 12 pitch-class bins. Each spectral
// peak in the band adds its magnitude to the pitch class of its interpolated
// frequency, so every octave of a pitch class lands in the same bin.
func Chroma(mag []float64, sampleRate, frameSize int, opts ChromaOptions) [12]float64 {
	var chroma [12]float64
	if len(mag) < 3 || sampleRate <= 0 || frameSize <= 0 {
		return chroma
	}

	binHz := float64(sampleRate) / float64(frameSize)
	lo := max(1, int(math.Ceil(opts.MinFreq/binHz)))
	hi := min(len(mag)-2, int(math.Floor(opts.MaxFreq/binHz)))
	if hi < lo {
		return chroma
	}

	peak := floats.Max(mag[lo : hi+1])
	if peak <= 0 {
		return chroma
	}
	threshold := opts.PeakThreshold * peak

	for k := lo; k <= hi; k++ {
		m := mag[k]
		if m < threshold || m <= mag[k-1] || m < mag[k+1] {
			continue
		}

		freq := (float64(k) + peakOffset(mag[k-1], m, mag[k+1])) * binHz
		if freq < opts.MinFreq || freq > opts.MaxFreq {
			continue
		}
		chroma[PitchClass(freq, opts.TuningA4)] += m
	}

	return chroma
}

// peakOffset estimates the fractional bin offset of a peak by fitting a
// parabola through the log magnitudes of the peak and its neighbours.
func peakOffset(left, centre, right float64) float64 {
	const floor = 1e-12
	a := math.Log(left + floor)
	b := math.Log(centre + floor)
	c := math.Log(right + floor)

	d := a - 2*b + c
	if d == 0 {
		return 0
	}
	off := 0.5 * (a - c) / d
	return math.Max(-0.5, math.Min(0.5, off))
}
