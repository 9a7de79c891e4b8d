// Package tempo estimates the dominant beat rate from an onset envelope.
package tempo

import (
	"math"

	"github.com/linuxmatters/jivebeat/internal/spectral"
	"gonum.org/v1/gonum/stat"
)

// OnsetEnvelope returns the half-wave rectified spectral flux between
// consecutive frames. The result has one value fewer than frames.
func OnsetEnvelope(frames []spectral.Frame) []float64 {
	if len(frames) < 2 {
		return nil
	}

	env := make([]float64, len(frames)-1)
	for i := 1; i < len(frames); i++ {
		prev, cur := frames[i-1].Magnitude, frames[i].Magnitude
		n := min(len(prev), len(cur))

		var flux float64
		for k := 0; k < n; k++ {
			if d := float64(cur[k]) - float64(prev[k]); d > 0 {
				flux += d
			}
		}
		env[i-1] = flux
	}
	return env
}

// Normalize returns env shifted to zero mean and scaled to unit variance.
// It reports false when the envelope is flat, as it is for silence.
func Normalize(env []float64) ([]float64, bool) {
	if len(env) < 2 {
		return nil, false
	}

	mean, std := stat.PopMeanStdDev(env, nil)
	if std <= 1e-12*math.Max(1, math.Abs(mean)) || math.IsNaN(std) {
		return nil, false
	}

	out := make([]float64, len(env))
	for i, v := range env {
		out[i] = (v - mean) / std
	}
	return out, true
}

// smoothingKernel is a 5-tap triangle; a beat that straddles two frames
// still yields a single autocorrelation peak
var smoothingKernel = [5]float64{1, 2, 3, 2, 1}

// Smooth convolves env with the triangular kernel. Taps outside the
// envelope are dropped rather than renormalised.
func Smooth(env []float64) []float64 {
	const sum = 9.0
	half := len(smoothingKernel) / 2

	out := make([]float64, len(env))
	for i := range env {
		var acc float64
		for j, w := range smoothingKernel {
			idx := i + j - half
			if idx >= 0 && idx < len(env) {
				acc += w * env[idx]
			}
		}
		out[i] = acc / sum
	}
	return out
}
