package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/linuxmatters/jivebeat/internal/analysis"
)

// RunBatch analyses paths behind the progress display. It returns the batch
// results and the final summary once both the batch and the UI have
// finished. Quitting the UI cancels files not yet started.
func RunBatch(ctx context.Context, engine *analysis.Engine, paths []string, opts ...tea.ProgramOption) ([]analysis.BatchResult, string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := NewModel(len(paths), cancel)
	p := tea.NewProgram(model, opts...)

	var results []analysis.BatchResult
	done := make(chan struct{})
	go func() {
		defer close(done)
		start := time.Now()
		results = engine.AnalyzeBatch(ctx, paths, func(n, total int, item analysis.BatchResult) {
			p.Send(FileDone{Done: n, Total: total, Item: item})
		})
		p.Send(BatchComplete{Elapsed: time.Since(start)})
	}()

	_, err := p.Run()
	if err != nil {
		cancel()
	}
	<-done
	return results, model.Summary(), err
}
