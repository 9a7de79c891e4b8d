package config

import (
	"testing"
	"time"
)

// TestDefault_IsValid verifies the shipped defaults pass validation, catching
// a constant edited without the matching bounds check.
func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v, want nil", err)
	}

	if cfg.BPMThreshold != DefaultBPMThreshold || cfg.KeyThreshold != DefaultKeyThreshold {
		t.Errorf("thresholds = %.2f/%.2f, want %.2f/%.2f",
			cfg.BPMThreshold, cfg.KeyThreshold, DefaultBPMThreshold, DefaultKeyThreshold)
	}
	if cfg.Workers < 1 || cfg.Workers > 8 {
		t.Errorf("Workers = %d, want 1..8", cfg.Workers)
	}
}

// TestValidate_RejectsInvalid checks each guard in Validate independently.
func TestValidate_RejectsInvalid(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "negative bpm threshold",
			mutate: func(c *Config) { c.BPMThreshold = -0.1 },
		},
		{
			name:   "key threshold above one",
			mutate: func(c *Config) { c.KeyThreshold = 1.5 },
		},
		{
			name:   "zero min bpm",
			mutate: func(c *Config) { c.MinBPM = 0 },
		},
		{
			name:   "inverted tempo range",
			mutate: func(c *Config) { c.MinBPM, c.MaxBPM = 200, 100 },
		},
		{
			name:   "unknown profile",
			mutate: func(c *Config) { c.Profile = "shaath" },
		},
		{
			name:   "no workers",
			mutate: func(c *Config) { c.Workers = 0 },
		},
		{
			name:   "no batch workers",
			mutate: func(c *Config) { c.BatchWorkers = 0 },
		},
		{
			name:   "zero decode timeout",
			mutate: func(c *Config) { c.DecodeTimeout = 0 },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() = nil, want error")
			}
		})
	}
}

// TestValidate_ProfileCaseInsensitive verifies profile names match regardless
// of case, as they arrive from flags and environment variables.
func TestValidate_ProfileCaseInsensitive(t *testing.T) {
	for _, name := range []string{"Krumhansl", "TEMPERLEY", "edma", "BGate"} {
		cfg := Default()
		cfg.Profile = name
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() with profile %q = %v, want nil", name, err)
		}
	}
}

func TestMaxSamples(t *testing.T) {
	testCases := []struct {
		name     string
		duration time.Duration
		want     int64
	}{
		{"unlimited", 0, 0},
		{"one second", time.Second, SampleRate},
		{"one minute", time.Minute, 60 * SampleRate},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.MaxDuration = tc.duration
			if got := cfg.MaxSamples(); got != tc.want {
				t.Errorf("MaxSamples() = %d, want %d", got, tc.want)
			}
		})
	}
}
