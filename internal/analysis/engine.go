// Package analysis is the engine boundary: it runs decoding, spectral
// analysis, tempo and key estimation for a file and assembles the Result.
package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/linuxmatters/jivebeat/internal/audio"
	"github.com/linuxmatters/jivebeat/internal/config"
	"github.com/linuxmatters/jivebeat/internal/key"
	"github.com/linuxmatters/jivebeat/internal/logging"
	"github.com/linuxmatters/jivebeat/internal/spectral"
	"github.com/linuxmatters/jivebeat/internal/tempo"
)

// Version identifies the analysis algorithms. It changes whenever results
// for the same input may change.
const Version = "1.0.0"

// Option customises an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for per-stage debug output.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// Engine analyses audio files. It holds only read-only state after New and
// is safe for concurrent use.
type Engine struct {
	cfg        config.Config
	templates  *key.Templates
	alternates []*key.Templates
	full       *spectral.Analyzer // Magnitudes and chroma
	onsetOnly  *spectral.Analyzer // Magnitudes only
	tempo      *tempo.Estimator
	log        logging.Logger
}

// New validates cfg and builds the key templates and spectral analyzers.
// Failures are reported as NotAvailable.
func New(cfg config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &Error{Kind: NotAvailable, Err: err}
	}

	profile, err := key.ParseProfile(cfg.Profile)
	if err != nil {
		return nil, &Error{Kind: NotAvailable, Err: err}
	}
	templates, err := key.NewTemplates(profile)
	if err != nil {
		return nil, &Error{Kind: NotAvailable, Err: err}
	}

	var alternates []*key.Templates
	if cfg.CompareProfiles {
		for _, p := range key.Profiles {
			if p == profile {
				continue
			}
			t, err := key.NewTemplates(p)
			if err != nil {
				return nil, &Error{Kind: NotAvailable, Err: err}
			}
			alternates = append(alternates, t)
		}
	}

	specOpts := spectral.DefaultOptions()
	specOpts.Workers = cfg.Workers
	full, err := spectral.NewAnalyzer(specOpts)
	if err != nil {
		return nil, &Error{Kind: NotAvailable, Err: err}
	}
	specOpts.Chroma = false
	onsetOnly, err := spectral.NewAnalyzer(specOpts)
	if err != nil {
		return nil, &Error{Kind: NotAvailable, Err: err}
	}

	e := &Engine{
		cfg:        cfg,
		templates:  templates,
		alternates: alternates,
		full:       full,
		onsetOnly:  onsetOnly,
		tempo:      tempo.NewEstimator(cfg.MinBPM, cfg.MaxBPM),
		log:        &logging.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() config.Config {
	return e.cfg
}

// Available reports whether the engine was fully constructed. A nil engine
// is not available.
func (e *Engine) Available() bool {
	return e != nil && e.templates != nil && e.full != nil && e.onsetOnly != nil && e.tempo != nil
}

// Version returns the analysis algorithm version.
func (e *Engine) Version() string {
	return Version
}

// IsFormatSupported checks the extension and, for existing files, the
// container signature. It never decodes audio.
func (e *Engine) IsFormatSupported(path string) bool {
	return audio.IsSupported(path)
}

// SupportedFormats returns the container allow-list.
func (e *Engine) SupportedFormats() []audio.Format {
	return audio.SupportedFormats()
}

// Analyze estimates tempo and key for path.
func (e *Engine) Analyze(ctx context.Context, path string) (Result, error) {
	if !e.Available() {
		return emptyResult(path), &Error{Kind: NotAvailable, Path: path}
	}
	start := time.Now()
	log := e.log.WithFields(logging.Fields{"path": path})

	w, err := e.load(ctx, path, log)
	if err != nil {
		return emptyResult(path), err
	}

	spectra, err := e.spectra(ctx, path, w, e.full, log)
	if err != nil {
		return emptyResult(path), err
	}

	var (
		wg       sync.WaitGroup
		tempoEst tempo.Estimate
		keyRes   keyOutcome
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		tempoEst = e.estimateTempo(spectra)
	}()
	go func() {
		defer wg.Done()
		keyRes = e.estimateKey(spectra, true)
	}()
	wg.Wait()

	result := e.assemble(path, w, tempoEst, keyRes)
	log.Debug("analysis complete", logging.Fields{
		"bpm":        result.BPM,
		"key":        result.KeySignature().String(),
		"confidence": result.Confidence,
		"valid":      result.Valid,
		"elapsed":    time.Since(start).Round(time.Millisecond),
	})
	return result, nil
}

// DetectBPM runs the tempo pipeline only. It returns 0 when no beat was found.
func (e *Engine) DetectBPM(ctx context.Context, path string) (float64, error) {
	if !e.Available() {
		return 0, &Error{Kind: NotAvailable, Path: path}
	}
	log := e.log.WithFields(logging.Fields{"path": path})

	w, err := e.load(ctx, path, log)
	if err != nil {
		return 0, err
	}
	spectra, err := e.spectra(ctx, path, w, e.onsetOnly, log)
	if err != nil {
		return 0, err
	}

	est := e.estimateTempo(spectra)
	log.Debug("tempo estimated", logging.Fields{"bpm": est.BPM, "confidence": est.Confidence})
	return est.BPM, nil
}

// DetectKey runs the key pipeline only. It returns key.None when the audio
// has no pitched content.
func (e *Engine) DetectKey(ctx context.Context, path string) (key.Key, error) {
	if !e.Available() {
		return key.None, &Error{Kind: NotAvailable, Path: path}
	}
	log := e.log.WithFields(logging.Fields{"path": path})

	w, err := e.load(ctx, path, log)
	if err != nil {
		return key.None, err
	}
	spectra, err := e.spectra(ctx, path, w, e.full, log)
	if err != nil {
		return key.None, err
	}

	res := e.estimateKey(spectra, false)
	log.Debug("key estimated", logging.Fields{"key": res.est.Key.String(), "confidence": res.est.Confidence})
	return res.est.Key, nil
}

// Probe reads container headers for path without decoding audio.
func (e *Engine) Probe(ctx context.Context, path string) (*audio.AudioMetadata, error) {
	if !e.Available() {
		return nil, &Error{Kind: NotAvailable, Path: path}
	}
	meta, err := audio.GetAudioMetadata(ctx, path, audio.DecoderOptions{
		FFmpegPath: e.cfg.FFmpegPath,
		Timeout:    e.cfg.DecodeTimeout,
	})
	if err != nil {
		return nil, classify(path, err)
	}
	return meta, nil
}

// AnalyzeOrZero is Analyze with the error discarded; failures give an
// invalid Result.
func (e *Engine) AnalyzeOrZero(ctx context.Context, path string) Result {
	r, _ := e.Analyze(ctx, path)
	return r
}

// DetectBPMOrZero is DetectBPM with the error discarded.
func (e *Engine) DetectBPMOrZero(ctx context.Context, path string) float64 {
	bpm, _ := e.DetectBPM(ctx, path)
	return bpm
}

// DetectKeyOrNone is DetectKey with the error discarded.
func (e *Engine) DetectKeyOrNone(ctx context.Context, path string) key.Key {
	k, _ := e.DetectKey(ctx, path)
	return k
}

func (e *Engine) load(ctx context.Context, path string, log logging.Logger) (*audio.Waveform, error) {
	start := time.Now()
	w, err := audio.Load(ctx, path, audio.LoadOptions{
		Decoder: audio.DecoderOptions{
			FFmpegPath: e.cfg.FFmpegPath,
			Timeout:    e.cfg.DecodeTimeout,
		},
		MaxSamples: e.cfg.MaxSamples(),
	})
	if err != nil {
		cerr := classify(path, err)
		log.Debug("decode failed", logging.Fields{"kind": cerr.Kind.String(), "error": err.Error()})
		return nil, cerr
	}

	log.Debug("decoded", logging.Fields{
		"format":      w.Format.String(),
		"source_rate": w.SourceRate,
		"channels":    w.SourceChannels,
		"samples":     len(w.Samples),
		"elapsed":     time.Since(start).Round(time.Millisecond),
	})
	return w, nil
}

func (e *Engine) spectra(ctx context.Context, path string, w *audio.Waveform, a *spectral.Analyzer, log logging.Logger) ([]spectral.Frame, error) {
	start := time.Now()

	frames, err := audio.Split(w, config.FrameSize, config.HopSize)
	if err != nil {
		return nil, classify(path, err)
	}
	spectra, err := a.Compute(ctx, frames)
	if err != nil {
		return nil, classify(path, err)
	}

	log.Debug("spectra computed", logging.Fields{
		"frames":  len(spectra),
		"chroma":  a.Options().Chroma,
		"elapsed": time.Since(start).Round(time.Millisecond),
	})
	return spectra, nil
}

func (e *Engine) estimateTempo(spectra []spectral.Frame) tempo.Estimate {
	env := tempo.OnsetEnvelope(spectra)
	return e.tempo.Estimate(env, tempo.FrameRate(config.SampleRate, config.HopSize))
}

type keyOutcome struct {
	est          key.Estimate
	alternatives []Alternative
	stability    float64
}

// estimateKey matches the aggregate chroma against the primary templates.
// With extras set it also scores the alternate profiles and segment
// stability.
func (e *Engine) estimateKey(spectra []spectral.Frame, extras bool) keyOutcome {
	profile := key.Aggregate(spectra)
	out := keyOutcome{est: e.templates.Estimate(profile), stability: 0.5}
	if !extras {
		return out
	}

	for _, t := range e.alternates {
		est := t.Estimate(profile)
		out.alternatives = append(out.alternatives, Alternative{
			Profile:    t.Profile(),
			Key:        est.Key,
			Confidence: est.Confidence,
		})
	}

	out.stability = e.keyStability(spectra)
	return out
}

// keyStability estimates the key of equal-length segments and measures how
// often they agree.
func (e *Engine) keyStability(spectra []spectral.Frame) float64 {
	segLen := len(spectra) / config.StabilitySegments
	minFrames := int(config.StabilityMinSeconds * tempo.FrameRate(config.SampleRate, config.HopSize))
	if segLen < max(1, minFrames) {
		return key.Stability(nil, config.StabilityMinConfidence)
	}

	segments := make([]key.Estimate, 0, config.StabilitySegments)
	for i := 0; i < config.StabilitySegments; i++ {
		seg := spectra[i*segLen : (i+1)*segLen]
		segments = append(segments, e.templates.Estimate(key.Aggregate(seg)))
	}
	return key.Stability(segments, config.StabilityMinConfidence)
}

func (e *Engine) assemble(path string, w *audio.Waveform, t tempo.Estimate, k keyOutcome) Result {
	r := Result{
		Path:          path,
		BPM:           t.BPM,
		Key:           k.est.Key.Tonic,
		Scale:         k.est.Key.Scale,
		BPMConfidence: t.Confidence,
		KeyConfidence: k.est.Confidence,
		KeyRunnerUp:   k.est.RunnerUp,
		KeyStability:  k.stability,
		Alternatives:  k.alternatives,
		Duration:      w.Duration(),
		SourceRate:    w.SourceRate,
		Channels:      w.SourceChannels,
		Format:        w.Format,
	}

	r.Confidence = (r.BPMConfidence + r.KeyConfidence) / 2
	r.Valid = r.BPM > 0 && k.est.Key.Known() &&
		r.BPMConfidence >= e.cfg.BPMThreshold &&
		r.KeyConfidence >= e.cfg.KeyThreshold
	r.Level = LevelOf(r.Confidence)
	r.Recommendation = Recommendation(r.Confidence)
	return r
}

// emptyResult is the invalid Result returned alongside errors
func emptyResult(path string) Result {
	return Result{
		Path:           path,
		Key:            key.NoPitch,
		Scale:          key.UnknownScale,
		KeyRunnerUp:    key.None,
		Level:          VeryLow,
		Recommendation: Recommendation(0),
	}
}
