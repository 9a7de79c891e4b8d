package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/linuxmatters/jivebeat/internal/analysis"
	"github.com/linuxmatters/jivebeat/internal/audio"
	"github.com/linuxmatters/jivebeat/internal/cli"
	"github.com/linuxmatters/jivebeat/internal/logging"
	"github.com/linuxmatters/jivebeat/internal/server"
	"github.com/linuxmatters/jivebeat/internal/ui"
)

type analyzeCmd struct {
	Files   []string `arg:"" name:"file" help:"Audio files to analyse."`
	JSON    bool     `help:"Print results as JSON."`
	Sidecar bool     `help:"Write a .jivebeat.json file next to each input."`
}

func (c *analyzeCmd) Run(g *Globals) error {
	e, _, err := g.engine()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	var results []analysis.Result
	failed := 0
	for _, path := range c.Files {
		r, err := e.Analyze(ctx, path)
		if err != nil {
			cli.PrintError(err.Error())
			failed++
			continue
		}
		if c.Sidecar {
			if err := analysis.WriteJSON(analysis.SidecarPath(path), r); err != nil {
				cli.PrintWarning(err.Error())
			}
		}
		if c.JSON {
			results = append(results, r)
			continue
		}
		cli.PrintResult(os.Stdout, path, r)
	}

	if c.JSON {
		if err := printJSON(results); err != nil {
			return err
		}
	}
	return failures(failed, len(c.Files))
}

type bpmCmd struct {
	Files []string `arg:"" name:"file" help:"Audio files to analyse."`
}

func (c *bpmCmd) Run(g *Globals) error {
	e, _, err := g.engine()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	failed := 0
	for _, path := range c.Files {
		bpm, err := e.DetectBPM(ctx, path)
		if err != nil {
			cli.PrintError(err.Error())
			failed++
			continue
		}
		fmt.Printf("%s\t%s\n", path, cli.FormatBPM(bpm))
	}
	return failures(failed, len(c.Files))
}

type keyCmd struct {
	Files []string `arg:"" name:"file" help:"Audio files to analyse."`
}

func (c *keyCmd) Run(g *Globals) error {
	e, _, err := g.engine()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	failed := 0
	for _, path := range c.Files {
		k, err := e.DetectKey(ctx, path)
		if err != nil {
			cli.PrintError(err.Error())
			failed++
			continue
		}
		fmt.Printf("%s\t%s\n", path, k)
	}
	return failures(failed, len(c.Files))
}

type batchCmd struct {
	Paths     []string `arg:"" name:"path" help:"Audio files or directories."`
	Recursive bool     `short:"r" help:"Descend into subdirectories."`
	Sidecar   bool     `help:"Write a .jivebeat.json file next to each input."`
	JSON      bool     `help:"Print results as JSON instead of a summary."`
	NoTUI     bool     `name:"no-tui" help:"Disable the interactive progress display."`
}

func (c *batchCmd) Run(g *Globals) error {
	e, log, err := g.engine()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	paths, err := c.expand()
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		cli.PrintWarning("no supported audio files found")
		return nil
	}

	var results []analysis.BatchResult
	if !c.NoTUI && !c.JSON && stdoutIsTerminal() {
		var summary string
		results, summary, err = ui.RunBatch(ctx, e, paths)
		if err != nil {
			return fmt.Errorf("running UI: %w", err)
		}
		fmt.Print(summary)
	} else {
		start := time.Now()
		results = e.AnalyzeBatch(ctx, paths, func(done, total int, item analysis.BatchResult) {
			fields := logging.Fields{"done": done, "total": total, "path": item.Path}
			if item.Err != nil {
				log.Warn("analysis failed", fields, logging.Fields{"error": item.Err.Error()})
				return
			}
			log.Info("analysed", fields, logging.Fields{"bpm": item.Result.BPM, "key": item.Result.KeySignature().String()})
		})
		log.Info("batch complete", logging.Fields{"files": len(paths), "elapsed": time.Since(start).Round(time.Millisecond)})
	}

	failed, written := 0, 0
	for _, br := range results {
		if br.Err != nil {
			failed++
			if !c.JSON {
				cli.PrintError(br.Err.Error())
			}
			continue
		}
		if c.Sidecar {
			if err := analysis.WriteJSON(analysis.SidecarPath(br.Path), br.Result); err != nil {
				cli.PrintWarning(err.Error())
				continue
			}
			written++
		}
	}

	if c.JSON {
		// Failed files stay in the array so entries line up with the inputs
		if err := printJSON(analysis.Entries(results)); err != nil {
			return err
		}
	} else if c.Sidecar {
		cli.PrintSuccess(fmt.Sprintf("wrote %d sidecar files", written))
	}
	return failures(failed, len(paths))
}

// expand replaces directories with the audio files they contain.
func (c *batchCmd) expand() ([]string, error) {
	var paths []string
	for _, p := range c.Paths {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			// Missing files are reported by the engine with the rest
			paths = append(paths, p)
			continue
		}
		found, err := analysis.FindAudio(p, c.Recursive)
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	return paths, nil
}

type probeCmd struct {
	Files []string `arg:"" name:"file" help:"Audio files to inspect."`
	JSON  bool     `help:"Print details as JSON."`
}

func (c *probeCmd) Run(g *Globals) error {
	e, _, err := g.engine()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	var all []*audio.AudioMetadata
	failed := 0
	for _, path := range c.Files {
		meta, err := e.Probe(ctx, path)
		if err != nil {
			cli.PrintError(err.Error())
			failed++
			continue
		}
		if c.JSON {
			all = append(all, meta)
			continue
		}
		duration := "unknown length"
		if meta.Duration > 0 {
			duration = cli.FormatDuration(time.Duration(meta.Duration * float64(time.Second)))
		}
		fmt.Printf("%s\t%s  %s  %d Hz  %d ch  %s\n", path, meta.Format, duration,
			meta.SampleRate, meta.Channels, cli.FormatBytes(meta.FileSize))
	}

	if c.JSON {
		if err := printJSON(all); err != nil {
			return err
		}
	}
	return failures(failed, len(c.Files))
}

type formatsCmd struct{}

func (c *formatsCmd) Run(g *Globals) error {
	cli.PrintSection("Supported formats")
	_, ffmpegErr := exec.LookPath(g.FFmpeg)
	for _, f := range audio.SupportedFormats() {
		status := cli.SuccessStyle.Render("✓")
		note := ""
		if f == audio.FormatM4A || f == audio.FormatAAC {
			note = cli.KeyStyle.Render(" (via " + g.FFmpeg + ")")
			if ffmpegErr != nil {
				status = cli.ErrorStyle.Render("✗")
				note = cli.KeyStyle.Render(" (" + g.FFmpeg + " not found)")
			}
		}
		fmt.Printf("  %s %s%s\n", status, cli.ValueStyle.Render(f.String()), note)
	}
	return nil
}

type serveCmd struct {
	Addr      string  `help:"Listen address." default:":8080" env:"JIVEBEAT_ADDR"`
	UploadDir string  `name:"upload-dir" help:"Directory for uploads (a temporary directory when empty)." env:"JIVEBEAT_UPLOAD_DIR"`
	MaxUpload int64   `name:"max-upload" help:"Largest accepted upload in bytes." default:"${max_upload}" env:"JIVEBEAT_MAX_UPLOAD"`
	RateLimit float64 `name:"rate-limit" help:"Requests per second per client (0 disables)." default:"0" env:"JIVEBEAT_RATE_LIMIT"`
}

func (c *serveCmd) Run(g *Globals) error {
	e, log, err := g.engine()
	if err != nil {
		return err
	}

	srv, err := server.New(e, server.Options{
		UploadDir:      c.UploadDir,
		MaxUploadBytes: c.MaxUpload,
		RateLimit:      c.RateLimit,
	}, log)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	cli.PrintBanner()
	cli.PrintInfo("Listening", c.Addr)
	cli.PrintInfo("Upload limit", cli.FormatBytes(c.MaxUpload))

	errc := make(chan error, 1)
	go func() { errc <- srv.Start(c.Addr) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errc
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func failures(failed, total int) error {
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d files failed", failed, total)
}
