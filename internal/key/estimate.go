package key

import (
	"fmt"
	"math"

	"github.com/linuxmatters/jivebeat/internal/config"
	"github.com/linuxmatters/jivebeat/internal/spectral"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Estimate is the outcome of matching a chroma profile against the 24
// templates of one profile.
type Estimate struct {
	Key         Key     `json:"key"`
	Confidence  float64 `json:"confidence"`
	Correlation float64 `json:"correlation"` // Pearson score of the winner
	RunnerUp    Key     `json:"runner_up"`
	Margin      float64 `json:"margin"` // Winner minus runner-up score
}

// Template pairs a key with its pitch-class weights.
type Template struct {
	Key     Key
	Weights [12]float64
}

// Templates holds the 24 rotated templates of one profile. It is read-only
// after construction and safe to share.
type Templates struct {
	profile     Profile
	templates   [24]Template
	marginScale float64
}

// NewTemplates builds the 12 major then 12 minor templates for p. The
// template for tonic t weighs pitch class i by base[(i - t + 12) % 12].
func NewTemplates(p Profile) (*Templates, error) {
	w, ok := profileTable[p]
	if !ok {
		return nil, fmt.Errorf("unknown key profile %d", int(p))
	}

	t := &Templates{profile: p, marginScale: config.KeyMarginScale}
	for tonic := 0; tonic < 12; tonic++ {
		t.templates[tonic] = Template{
			Key:     Key{Tonic: PitchClass(tonic), Scale: Major},
			Weights: rotate(w.major, tonic),
		}
		t.templates[12+tonic] = Template{
			Key:     Key{Tonic: PitchClass(tonic), Scale: Minor},
			Weights: rotate(w.minor, tonic),
		}
	}
	return t, nil
}

func rotate(base [12]float64, tonic int) [12]float64 {
	var out [12]float64
	for i := range out {
		out[i] = base[(i-tonic+12)%12]
	}
	return out
}

// List returns the templates in estimation order.
func (t *Templates) List() []Template {
	return append([]Template(nil), t.templates[:]...)
}

// Profile returns the profile the templates were built from.
func (t *Templates) Profile() Profile {
	return t.profile
}

// Aggregate sums the chroma vectors of all frames.
func Aggregate(frames []spectral.Frame) [12]float64 {
	var sum [12]float64
	for i := range frames {
		floats.Add(sum[:], frames[i].Chroma[:])
	}
	return sum
}

// Estimate correlates profile with every template. Ties keep the earlier
// template, so C major wins over any equal score. An empty or flat profile
// yields None with zero confidence.
func (t *Templates) Estimate(profile [12]float64) Estimate {
	if floats.Sum(profile[:]) <= 0 || floats.Max(profile[:]) == floats.Min(profile[:]) {
		return Estimate{Key: None, RunnerUp: None}
	}

	best, second := -1, -1
	var scores [24]float64
	for i := range t.templates {
		scores[i] = stat.Correlation(profile[:], t.templates[i].Weights[:], nil)
		if math.IsNaN(scores[i]) {
			continue
		}
		switch {
		case best < 0 || scores[i] > scores[best]:
			second = best
			best = i
		case second < 0 || scores[i] > scores[second]:
			second = i
		}
	}
	if best < 0 {
		return Estimate{Key: None, RunnerUp: None}
	}

	est := Estimate{
		Key:         t.templates[best].Key,
		Correlation: scores[best],
		RunnerUp:    None,
	}
	margin := 0.0
	if second >= 0 {
		est.RunnerUp = t.templates[second].Key
		margin = scores[best] - scores[second]
	}
	est.Margin = margin

	est.Confidence = clamp01(scores[best]) * math.Min(1, margin/t.marginScale)
	return est
}

// Stability is the share of confident segment estimates that agree with the
// most common key among them. With fewer than two confident segments there
// is nothing to compare and it returns 0.5.
func Stability(segments []Estimate, minConfidence float64) float64 {
	counts := make(map[Key]int)
	total := 0
	for _, s := range segments {
		if !s.Key.Known() || s.Confidence <= minConfidence {
			continue
		}
		counts[s.Key]++
		total++
	}
	if total < 2 {
		return 0.5
	}

	most := 0
	for _, n := range counts {
		most = max(most, n)
	}
	return float64(most) / float64(total)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
