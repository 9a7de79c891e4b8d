package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/linuxmatters/jivebeat/internal/audio"
	"github.com/linuxmatters/jivebeat/internal/key"
)

// Level buckets a confidence score for display.
type Level int

const (
	VeryLow Level = iota
	Low
	Medium
	High
)

// LevelOf maps a confidence in [0,1] to a Level.
func LevelOf(confidence float64) Level {
	switch {
	case confidence >= 0.7:
		return High
	case confidence >= 0.4:
		return Medium
	case confidence >= 0.2:
		return Low
	}
	return VeryLow
}

func (l Level) String() string {
	switch l {
	case High:
		return "high"
	case Medium:
		return "medium"
	case Low:
		return "low"
	}
	return "very low"
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	for _, v := range []Level{VeryLow, Low, Medium, High} {
		if strings.EqualFold(v.String(), string(text)) {
			*l = v
			return nil
		}
	}
	return fmt.Errorf("unknown confidence level %q", text)
}

// Recommendation describes how far a result can be trusted.
func Recommendation(quality float64) string {
	switch LevelOf(quality) {
	case High:
		return "reliable for automatic use"
	case Medium:
		return "usable, verify if critical"
	case Low:
		return "confirm manually"
	}
	return "unreliable"
}

// Alternative is the key estimate under a non-primary profile.
type Alternative struct {
	Profile    key.Profile `json:"profile"`
	Key        key.Key     `json:"key"`
	Confidence float64     `json:"confidence"`
}

// Result is the outcome of one analysis. It is a value; copies are
// independent apart from the Alternatives slice, which is never modified.
type Result struct {
	Path string

	BPM   float64 // 0 when no tempo was found
	Key   key.PitchClass
	Scale key.Scale

	Confidence    float64 // Mean of BPMConfidence and KeyConfidence
	BPMConfidence float64
	KeyConfidence float64
	Valid         bool

	KeyRunnerUp  key.Key
	KeyStability float64
	Alternatives []Alternative

	Level          Level
	Recommendation string

	Duration   float64 // Seconds of decoded audio
	SourceRate int
	Channels   int
	Format     audio.Format
}

// KeySignature returns the key and scale as a key.Key.
func (r Result) KeySignature() key.Key {
	return key.Key{Tonic: r.Key, Scale: r.Scale}
}

func (r Result) String() string {
	bpm := "unknown"
	if r.BPM > 0 {
		bpm = fmt.Sprintf("%.1f", r.BPM)
	}
	return fmt.Sprintf("%s BPM, %s (confidence %.2f, valid %t)", bpm, r.KeySignature(), r.Confidence, r.Valid)
}

type resultJSON struct {
	Path string `json:"path,omitempty"`

	BPM   *float64       `json:"bpm"`
	Key   key.PitchClass `json:"key"`
	Scale key.Scale      `json:"scale"`

	Confidence    float64 `json:"confidence"`
	BPMConfidence float64 `json:"bpm_confidence"`
	KeyConfidence float64 `json:"key_confidence"`
	Valid         bool    `json:"valid"`

	KeyRunnerUp  key.Key       `json:"key_runner_up"`
	KeyStability float64       `json:"key_stability"`
	Alternatives []Alternative `json:"alternatives,omitempty"`

	Level          Level  `json:"level"`
	Recommendation string `json:"recommendation"`

	Duration   float64      `json:"duration"`
	SourceRate int          `json:"source_sample_rate,omitempty"`
	Channels   int          `json:"channels,omitempty"`
	Format     audio.Format `json:"format"`
}

// MarshalJSON writes keys and scales as names and an unknown BPM as null.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		Path:           r.Path,
		Key:            r.Key,
		Scale:          r.Scale,
		Confidence:     r.Confidence,
		BPMConfidence:  r.BPMConfidence,
		KeyConfidence:  r.KeyConfidence,
		Valid:          r.Valid,
		KeyRunnerUp:    r.KeyRunnerUp,
		KeyStability:   r.KeyStability,
		Alternatives:   r.Alternatives,
		Level:          r.Level,
		Recommendation: r.Recommendation,
		Duration:       r.Duration,
		SourceRate:     r.SourceRate,
		Channels:       r.Channels,
		Format:         r.Format,
	}
	if r.BPM > 0 {
		bpm := r.BPM
		out.BPM = &bpm
	}
	return json.Marshal(out)
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Result{
		Path:           in.Path,
		Key:            in.Key,
		Scale:          in.Scale,
		Confidence:     in.Confidence,
		BPMConfidence:  in.BPMConfidence,
		KeyConfidence:  in.KeyConfidence,
		Valid:          in.Valid,
		KeyRunnerUp:    in.KeyRunnerUp,
		KeyStability:   in.KeyStability,
		Alternatives:   in.Alternatives,
		Level:          in.Level,
		Recommendation: in.Recommendation,
		Duration:       in.Duration,
		SourceRate:     in.SourceRate,
		Channels:       in.Channels,
		Format:         in.Format,
	}
	if in.BPM != nil {
		r.BPM = *in.BPM
	}
	return nil
}
