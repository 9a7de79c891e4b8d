package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Audio settings
const (
	SampleRate = 44100 // Canonical analysis rate; every source is resampled to this
	FrameSize  = 2048  // Samples per analysis frame
	HopSize    = 1024  // 50% overlap
)

// Tempo search settings
const (
	MinBPM = 40.0
	MaxBPM = 240.0

	// Octave correction prefers candidates inside this range
	PreferredMinBPM = 70.0
	PreferredMaxBPM = 180.0

	// A half/double candidate must reach this fraction of the strongest
	// autocorrelation peak before it can replace it
	OctaveTolerance = 0.75

	// Number of period multiples averaged when refining the beat period
	PeriodHarmonics = 8
)

// Pitch settings
const (
	TuningA4 = 440.0 // Reference pitch in Hz

	ChromaMinFreq = 80.0   // Lowest frequency folded into chroma
	ChromaMaxFreq = 5000.0 // Highest frequency folded into chroma

	// Spectral peaks below this fraction of the frame maximum are ignored
	PeakThreshold = 0.05
)

// Key estimation settings
const (
	// Winner-to-runner-up correlation margin that earns full confidence
	KeyMarginScale = 0.15

	StabilitySegments      = 4
	StabilityMinSeconds    = 1.0
	StabilityMinConfidence = 0.1
)

// Validity thresholds
const (
	DefaultBPMThreshold = 0.5
	DefaultKeyThreshold = 0.5
)

// Service limits
const (
	MaxUploadBytes     = 50 * 1024 * 1024 // 50 MiB
	MaxDecodedDuration = 30 * time.Minute
	DecodeTimeout      = 2 * time.Minute
)

// Key profile names accepted by Config.Profile
var Profiles = []string{"krumhansl", "temperley", "edma", "bgate"}

// Config holds runtime tunables for an analysis engine.
type Config struct {
	BPMThreshold float64 // Minimum tempo confidence for a valid result
	KeyThreshold float64 // Minimum key confidence for a valid result

	MinBPM float64
	MaxBPM float64

	Profile         string // Primary key profile
	CompareProfiles bool   // Also estimate the key with every other profile

	Workers      int // Spectral worker goroutines per analysis
	BatchWorkers int // Files analysed concurrently by a batch

	DecodeTimeout time.Duration // Upper bound for external decoders
	MaxDuration   time.Duration // Longest audio accepted before decoding aborts
	FFmpegPath    string        // ffmpeg binary used for m4a/aac
}

// Default returns the configuration used when no flags are given.
func Default() Config {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}

	return Config{
		BPMThreshold:  DefaultBPMThreshold,
		KeyThreshold:  DefaultKeyThreshold,
		MinBPM:        MinBPM,
		MaxBPM:        MaxBPM,
		Profile:       "krumhansl",
		Workers:       workers,
		BatchWorkers:  4,
		DecodeTimeout: DecodeTimeout,
		MaxDuration:   MaxDecodedDuration,
		FFmpegPath:    "ffmpeg",
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.BPMThreshold < 0 || c.BPMThreshold > 1 {
		return fmt.Errorf("bpm threshold %.2f outside [0, 1]", c.BPMThreshold)
	}
	if c.KeyThreshold < 0 || c.KeyThreshold > 1 {
		return fmt.Errorf("key threshold %.2f outside [0, 1]", c.KeyThreshold)
	}
	if c.MinBPM <= 0 || c.MaxBPM <= c.MinBPM {
		return fmt.Errorf("invalid tempo range %.0f-%.0f BPM", c.MinBPM, c.MaxBPM)
	}
	if !knownProfile(c.Profile) {
		return fmt.Errorf("unknown key profile %q (want one of %s)", c.Profile, strings.Join(Profiles, ", "))
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.BatchWorkers < 1 {
		return fmt.Errorf("batch workers must be at least 1, got %d", c.BatchWorkers)
	}
	if c.DecodeTimeout <= 0 {
		return fmt.Errorf("decode timeout must be positive")
	}
	return nil
}

// MaxSamples converts MaxDuration to a sample budget at the analysis rate.
// Zero means unlimited.
func (c Config) MaxSamples() int64 {
	if c.MaxDuration <= 0 {
		return 0
	}
	return int64(c.MaxDuration.Seconds() * SampleRate)
}

func knownProfile(name string) bool {
	for _, p := range Profiles {
		if strings.EqualFold(p, name) {
			return true
		}
	}
	return false
}
