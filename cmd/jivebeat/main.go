package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/mattn/go-isatty"

	"github.com/linuxmatters/jivebeat/internal/analysis"
	"github.com/linuxmatters/jivebeat/internal/cli"
	"github.com/linuxmatters/jivebeat/internal/config"
	"github.com/linuxmatters/jivebeat/internal/logging"
)

// version is set via ldflags at build time
// Local dev builds: "dev"
// Release builds: git tag (e.g. "v0.1.0")
var version = "dev"

// Globals holds the engine settings shared by every command.
type Globals struct {
	LogLevel string `name:"log-level" help:"Log level: debug, info, warn or error." default:"warn" enum:"debug,info,warn,error" env:"JIVEBEAT_LOG_LEVEL"`

	BPMThreshold    float64       `name:"bpm-threshold" help:"Minimum tempo confidence for a valid result." default:"${bpm_threshold}" env:"JIVEBEAT_BPM_THRESHOLD"`
	KeyThreshold    float64       `name:"key-threshold" help:"Minimum key confidence for a valid result." default:"${key_threshold}" env:"JIVEBEAT_KEY_THRESHOLD"`
	MinBPM          float64       `name:"min-bpm" help:"Slowest tempo considered." default:"${min_bpm}" env:"JIVEBEAT_MIN_BPM"`
	MaxBPM          float64       `name:"max-bpm" help:"Fastest tempo considered." default:"${max_bpm}" env:"JIVEBEAT_MAX_BPM"`
	Profile         string        `help:"Key profile." default:"krumhansl" enum:"${profiles}" env:"JIVEBEAT_PROFILE"`
	CompareProfiles bool          `name:"compare-profiles" help:"Also estimate the key with every other profile." env:"JIVEBEAT_COMPARE_PROFILES"`
	Workers         int           `help:"Spectral workers per file (0 uses the CPU count, up to 8)." default:"0" env:"JIVEBEAT_WORKERS"`
	BatchWorkers    int           `name:"batch-workers" help:"Files analysed at once in batch mode." default:"4" env:"JIVEBEAT_BATCH_WORKERS"`
	FFmpeg          string        `name:"ffmpeg" help:"ffmpeg binary used for m4a and aac." default:"ffmpeg" env:"JIVEBEAT_FFMPEG"`
	DecodeTimeout   time.Duration `name:"decode-timeout" help:"Time limit for external decoders." default:"${decode_timeout}" env:"JIVEBEAT_DECODE_TIMEOUT"`
	MaxDuration     time.Duration `name:"max-duration" help:"Longest audio accepted." default:"${max_duration}" env:"JIVEBEAT_MAX_DURATION"`

	Version versionFlag `help:"Show version information."`
}

// CLI is the kong grammar.
type CLI struct {
	Globals

	Analyze analyzeCmd `cmd:"" help:"Estimate tempo and key of audio files."`
	BPM     bpmCmd     `cmd:"" name:"bpm" help:"Estimate tempo only."`
	Key     keyCmd     `cmd:"" help:"Estimate key only."`
	Batch   batchCmd   `cmd:"" help:"Analyse files and directories concurrently."`
	Probe   probeCmd   `cmd:"" help:"Show container details without analysing."`
	Formats formatsCmd `cmd:"" help:"List supported audio formats."`
	Serve   serveCmd   `cmd:"" help:"Run the HTTP API."`
}

type versionFlag bool

// BeforeReset prints the styled version and exits before required
// arguments are checked.
func (v versionFlag) BeforeReset(app *kong.Kong) error {
	cli.PrintVersion(version, analysis.Version)
	app.Exit(0)
	return nil
}

func main() {
	var c CLI
	ctx := kong.Parse(&c,
		kong.Name("jivebeat"),
		kong.Description("Find the tempo and key of your tracks."),
		kong.Vars{
			"version":        version,
			"bpm_threshold":  fmt.Sprint(config.DefaultBPMThreshold),
			"key_threshold":  fmt.Sprint(config.DefaultKeyThreshold),
			"min_bpm":        fmt.Sprint(config.MinBPM),
			"max_bpm":        fmt.Sprint(config.MaxBPM),
			"profiles":       "krumhansl,temperley,edma,bgate",
			"decode_timeout": config.DecodeTimeout.String(),
			"max_duration":   config.MaxDecodedDuration.String(),
			"max_upload":     fmt.Sprint(config.MaxUploadBytes),
		},
		kong.UsageOnError(),
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	if err := ctx.Run(&c.Globals); err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
}

// config converts the flags into an engine configuration.
func (g *Globals) config() (config.Config, error) {
	cfg := config.Default()
	cfg.BPMThreshold = g.BPMThreshold
	cfg.KeyThreshold = g.KeyThreshold
	cfg.MinBPM = g.MinBPM
	cfg.MaxBPM = g.MaxBPM
	cfg.Profile = g.Profile
	cfg.CompareProfiles = g.CompareProfiles
	if g.Workers > 0 {
		cfg.Workers = g.Workers
	}
	cfg.BatchWorkers = g.BatchWorkers
	cfg.FFmpegPath = g.FFmpeg
	cfg.DecodeTimeout = g.DecodeTimeout
	cfg.MaxDuration = g.MaxDuration
	return cfg, cfg.Validate()
}

func (g *Globals) logger() logging.Logger {
	level, err := logging.ParseLevel(g.LogLevel)
	if err != nil {
		level = logging.WarnLevel
	}
	return logging.NewLogger(os.Stderr, level, isatty.IsTerminal(os.Stderr.Fd()))
}

// engine builds the analysis engine from the flags.
func (g *Globals) engine() (*analysis.Engine, logging.Logger, error) {
	cfg, err := g.config()
	if err != nil {
		return nil, nil, err
	}
	log := g.logger()
	e, err := analysis.New(cfg, analysis.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}
	log.Debug("engine ready", logging.Fields{
		"profile": cfg.Profile,
		"workers": cfg.Workers,
		"version": e.Version(),
	})
	return e, log, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func stdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}
