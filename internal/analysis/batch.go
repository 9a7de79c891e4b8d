package analysis

import (
	"context"
	"sync"
)

// BatchResult pairs an input path with its outcome. Err is nil on success;
// on failure Result is invalid and Err is an *Error.
type BatchResult struct {
	Path   string
	Result Result
	Err    error
}

// BatchEntry is the JSON form of a BatchResult. Exactly one of Result and
// Error is set.
type BatchEntry struct {
	Path   string      `json:"path"`
	Result *Result     `json:"result,omitempty"`
	Error  *BatchError `json:"error,omitempty"`
}

// BatchError describes a failed file by error kind.
type BatchError struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Entries converts batch results to their JSON form. The output has one
// entry per result, in the same order, so failures keep their position.
func Entries(results []BatchResult) []BatchEntry {
	out := make([]BatchEntry, len(results))
	for i, br := range results {
		out[i].Path = br.Path
		if br.Err != nil {
			kind := KindOf(br.Err)
			out[i].Error = &BatchError{Code: kind.Code(), Kind: kind.String(), Message: br.Err.Error()}
			continue
		}
		r := br.Result
		out[i].Result = &r
	}
	return out
}

// ProgressFunc is called once per finished file. Calls are serialised;
// done counts finished files including this one.
type ProgressFunc func(done, total int, item BatchResult)

// AnalyzeBatch analyses paths with at most Config.BatchWorkers files in
// flight. The returned slice is in input order and always has one entry per
// path. Files not started before ctx is cancelled fail with AnalysisFailed.
func (e *Engine) AnalyzeBatch(ctx context.Context, paths []string, progress ProgressFunc) []BatchResult {
	results := make([]BatchResult, len(paths))
	if len(paths) == 0 {
		return results
	}

	workers := 1
	if e.Available() {
		workers = max(1, e.cfg.BatchWorkers)
	}
	sem := make(chan struct{}, workers)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)
	finish := func(i int, item BatchResult) {
		results[i] = item

		mu.Lock()
		defer mu.Unlock()
		done++
		if progress != nil {
			progress(done, len(paths), item)
		}
	}

	for i, path := range paths {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			finish(i, BatchResult{
				Path:   path,
				Result: emptyResult(path),
				Err:    classify(path, ctx.Err()),
			})
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			r, err := e.Analyze(ctx, path)
			finish(i, BatchResult{Path: path, Result: r, Err: err})
		}()
	}

	wg.Wait()
	return results
}
