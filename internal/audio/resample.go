package audio

import (
	"fmt"
	"math"

	resampler "github.com/tphakala/go-audio-resampler"
)

// resampleQuality selects the band-limited filter used for rate conversion
const resampleQuality = resampler.QualityHigh

// Resample converts samples from one rate to another through a band-limited
// polyphase filter, so content above the target Nyquist is removed rather
// than folded back. The output holds round(len·to/from) samples. The input
// is returned unchanged when the rates match.
func Resample(samples []float64, from, to int) ([]float64, error) {
	if from == to || len(samples) == 0 {
		return samples, nil
	}
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("resample %d Hz to %d Hz: %w", from, to, ErrDecode)
	}

	out, err := resampler.ResampleMono(samples, float64(from), float64(to), resampleQuality)
	if err != nil {
		return nil, fmt.Errorf("resample %d Hz to %d Hz: %w: %w", from, to, ErrDecode, err)
	}

	// Flush leaves the filter tail on the end; fit to the expected length
	want := max(1, int(math.Round(float64(len(samples))*float64(to)/float64(from))))
	if len(out) >= want {
		return out[:want:want], nil
	}
	return append(out, make([]float64, want-len(out))...), nil
}
