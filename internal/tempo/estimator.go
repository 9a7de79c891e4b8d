package tempo

import (
	"math"

	"github.com/linuxmatters/jivebeat/internal/config"
)

// Estimate is the outcome of a tempo search. BPM is 0 when no periodicity
// was found.
type Estimate struct {
	BPM        float64
	Confidence float64 // Normalised autocorrelation height at the chosen lag, [0,1]
	Period     float64 // Beat period in envelope frames
}

// Estimator searches the autocorrelation of an onset envelope for the beat
// period. The zero value is not usable; use NewEstimator.
type Estimator struct {
	MinBPM, MaxBPM             float64
	PreferredMin, PreferredMax float64
	OctaveTolerance            float64
	Harmonics                  int
}

// NewEstimator returns an estimator searching [minBPM, maxBPM] with the
// default octave preference.
func NewEstimator(minBPM, maxBPM float64) *Estimator {
	return &Estimator{
		MinBPM:          minBPM,
		MaxBPM:          maxBPM,
		PreferredMin:    config.PreferredMinBPM,
		PreferredMax:    config.PreferredMaxBPM,
		OctaveTolerance: config.OctaveTolerance,
		Harmonics:       config.PeriodHarmonics,
	}
}

// FrameRate is the onset envelope rate for a sample rate and hop size.
func FrameRate(sampleRate, hop int) float64 {
	return float64(sampleRate) / float64(hop)
}

// Estimate finds the dominant beat rate of env, sampled at frameRate values
// per second. It never fails: a flat or short envelope gives a zero Estimate.
func (e *Estimator) Estimate(env []float64, frameRate float64) Estimate {
	norm, ok := Normalize(env)
	if !ok || frameRate <= 0 {
		return Estimate{}
	}
	r := Autocorrelate(Smooth(norm))
	if r == nil {
		return Estimate{}
	}
	n := len(r)

	lagMin := max(1, int(math.Floor(60*frameRate/e.MaxBPM)))
	lagMax := min(n-2, int(math.Ceil(60*frameRate/e.MinBPM)))
	if lagMax <= lagMin {
		return Estimate{}
	}

	best := -1
	for l := lagMin; l <= lagMax; l++ {
		if isPeak(r, l) && (best < 0 || r[l] > r[best]) {
			best = l
		}
	}
	if best < 0 {
		return Estimate{}
	}

	best = e.foldTriple(r, best, lagMin, lagMax)
	best = e.correctOctave(r, best, lagMin, lagMax, frameRate)
	lag, height := interpolate(r, best)
	period := e.refine(r, lag)

	return Estimate{
		BPM:        60 * frameRate / period,
		Confidence: math.Max(0, math.Min(1, height)),
		Period:     period,
	}
}

// foldTriple moves to a third of the strongest lag when the peaks at one and
// two thirds of it are both nearly as strong. The lag then spans three beats,
// which octave correction alone cannot undo.
func (e *Estimator) foldTriple(r []float64, best, lagMin, lagMax int) int {
	lag, _ := interpolate(r, best)
	third := -1

	for j := 1; j <= 2; j++ {
		centre := int(math.Round(lag * float64(j) / 3))
		if centre-1 < lagMin || centre+1 > lagMax {
			return best
		}
		cand := strongest(r, max(lagMin, centre-2), min(lagMax, centre+2))
		if !isPeak(r, cand) || r[cand] < e.OctaveTolerance*r[best] {
			return best
		}
		if j == 1 {
			third = cand
		}
	}
	return third
}

// correctOctave swaps the strongest lag for its half or double when that
// candidate is nearly as strong and its tempo sits closer to the preferred
// range. Half is tried first.
func (e *Estimator) correctOctave(r []float64, best, lagMin, lagMax int, frameRate float64) int {
	lag, _ := interpolate(r, best)
	current := e.rangeDistance(60 * frameRate / lag)

	for _, factor := range []float64{0.5, 2} {
		centre := int(math.Round(lag * factor))
		if centre-1 < lagMin || centre+1 > lagMax {
			continue
		}

		cand := strongest(r, max(lagMin, centre-2), min(lagMax, centre+2))
		if !isPeak(r, cand) {
			continue
		}
		if r[cand] >= e.OctaveTolerance*r[best] && e.rangeDistance(60*frameRate/float64(cand)) < current {
			return cand
		}
	}
	return best
}

// refine averages the period implied by peaks near multiples of lag,
// weighting the k-th multiple by k since its relative error is k times
// smaller.
func (e *Estimator) refine(r []float64, lag float64) float64 {
	sum, weights := lag, 1.0

	for k := 2; k <= e.Harmonics; k++ {
		centre := int(math.Round(float64(k) * lag))
		if centre+3 >= len(r) {
			break
		}

		l := strongest(r, centre-2, centre+2)
		if r[l] <= 0 || !isPeak(r, l) {
			continue
		}
		// fl/k weighted by k
		fl, _ := interpolate(r, l)
		sum += fl
		weights += float64(k)
	}
	return sum / weights
}

// rangeDistance is the octave distance from bpm to the preferred range, 0
// inside it.
func (e *Estimator) rangeDistance(bpm float64) float64 {
	switch {
	case bpm < e.PreferredMin:
		return math.Log2(e.PreferredMin / bpm)
	case bpm > e.PreferredMax:
		return math.Log2(bpm / e.PreferredMax)
	}
	return 0
}

func isPeak(r []float64, l int) bool {
	return l > 0 && l < len(r)-1 && r[l] > r[l-1] && r[l] >= r[l+1]
}

// strongest returns the index of the largest r in [lo, hi], first on ties.
func strongest(r []float64, lo, hi int) int {
	best := lo
	for l := lo + 1; l <= hi; l++ {
		if r[l] > r[best] {
			best = l
		}
	}
	return best
}

// interpolate fits a parabola through r[l-1..l+1] and returns the vertex.
func interpolate(r []float64, l int) (lag, height float64) {
	a, b, c := r[l-1], r[l], r[l+1]
	d := a - 2*b + c
	if d == 0 {
		return float64(l), b
	}
	off := 0.5 * (a - c) / d
	return float64(l) + off, b - 0.25*(a-c)*off
}
