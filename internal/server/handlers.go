package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/linuxmatters/jivebeat/internal/analysis"
	"github.com/linuxmatters/jivebeat/internal/audio"
	"github.com/linuxmatters/jivebeat/internal/logging"
)

// ErrorBody is the JSON payload of every API error raised from an engine
// failure.
type ErrorBody struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// statusFor maps engine error kinds onto HTTP status codes.
func statusFor(kind analysis.ErrorKind) int {
	switch kind {
	case analysis.FileNotFound:
		return http.StatusNotFound
	case analysis.UnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case analysis.MemoryError:
		return http.StatusRequestEntityTooLarge
	case analysis.NotAvailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusUnprocessableEntity
}

// errorBody describes err with the temporary upload path replaced by the
// client's file name.
func errorBody(err error, path, filename string) *ErrorBody {
	kind := analysis.KindOf(err)
	msg := err.Error()
	if path != "" {
		msg = strings.ReplaceAll(msg, path, filename)
	}
	return &ErrorBody{Code: kind.Code(), Kind: kind.String(), Message: msg}
}

func apiError(err error, path, filename string) *echo.HTTPError {
	return echo.NewHTTPError(statusFor(analysis.KindOf(err)), errorBody(err, path, filename))
}

func (s *Server) index(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"name":    "jivebeat",
		"version": s.engine.Version(),
		"endpoints": map[string]string{
			"health":      "GET /health",
			"status":      "GET /status",
			"formats":     "GET /formats",
			"analyze":     "POST /analyze",
			"create_task": "POST /tasks",
			"list_tasks":  "GET /tasks",
			"task":        "GET /tasks/{id}",
			"task_result": "GET /tasks/{id}/result",
			"delete_task": "DELETE /tasks/{id}",
		},
	})
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) status(c echo.Context) error {
	body := map[string]any{
		"available":        s.engine.Available(),
		"version":          s.engine.Version(),
		"formats":          s.engine.SupportedFormats(),
		"max_upload_bytes": s.opts.MaxUploadBytes,
		"tasks":            s.tasks.count(),
		"uptime_seconds":   int(time.Since(s.start).Seconds()),
	}
	if s.engine.Available() {
		cfg := s.engine.Config()
		body["profile"] = cfg.Profile
		body["bpm_threshold"] = cfg.BPMThreshold
		body["key_threshold"] = cfg.KeyThreshold
		body["tempo_range"] = []float64{cfg.MinBPM, cfg.MaxBPM}
	}
	return c.JSON(http.StatusOK, body)
}

func (s *Server) formats(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"formats": s.engine.SupportedFormats(),
	})
}

// analyze runs a synchronous analysis of the uploaded file.
func (s *Server) analyze(c echo.Context) error {
	path, filename, err := s.receive(c)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	r, err := s.engine.Analyze(c.Request().Context(), path)
	if err != nil {
		return apiError(err, path, filename)
	}
	r.Path = filename
	return c.JSON(http.StatusOK, r)
}

func (s *Server) createTask(c echo.Context) error {
	path, filename, err := s.receive(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(s.ctx)
	task := s.tasks.add(filename, path, cancel)

	s.wg.Add(1)
	go s.run(ctx, task)

	return c.JSON(http.StatusAccepted, map[string]any{
		"task_id": task.ID,
		"status":  task.Status,
		"message": "analysis started",
	})
}

// run analyses a task's upload in the background.
func (s *Server) run(ctx context.Context, task Task) {
	defer s.wg.Done()
	defer task.cancel()
	log := s.log.WithFields(logging.Fields{"task": task.ID, "filename": task.Filename})

	if !s.tasks.update(task.ID, func(t *Task) {
		t.Status = TaskProcessing
		t.Progress = 10
	}) {
		return
	}

	start := time.Now()
	r, err := s.engine.Analyze(ctx, task.path)
	if err != nil {
		log.Warn("task failed", logging.Fields{"error": err.Error()})
		os.Remove(task.path)
		s.tasks.update(task.ID, func(t *Task) {
			t.Status = TaskFailed
			t.Error = errorBody(err, task.path, task.Filename)
		})
		return
	}

	r.Path = task.Filename
	log.Info("task completed", logging.Fields{
		"bpm":     r.BPM,
		"key":     r.KeySignature().String(),
		"elapsed": time.Since(start).Round(time.Millisecond),
	})
	s.tasks.update(task.ID, func(t *Task) {
		t.Status = TaskCompleted
		t.Progress = 100
		t.Result = &r
	})
}

func (s *Server) listTasks(c echo.Context) error {
	tasks := s.tasks.list()
	// The list is a summary; results are fetched per task
	for i := range tasks {
		tasks[i].Result = nil
	}
	return c.JSON(http.StatusOK, map[string]any{
		"tasks": tasks,
		"total": len(tasks),
	})
}

func (s *Server) getTask(c echo.Context) error {
	task, ok := s.tasks.get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "task not found")
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) taskResult(c echo.Context) error {
	task, ok := s.tasks.get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "task not found")
	}

	switch task.Status {
	case TaskCompleted:
		return c.JSON(http.StatusOK, task.Result)
	case TaskFailed:
		status := statusFor(analysis.ErrorKind(task.Error.Code))
		return c.JSON(status, task.Error)
	}
	return c.JSON(http.StatusAccepted, map[string]any{
		"task_id":  task.ID,
		"status":   task.Status,
		"progress": task.Progress,
		"message":  "analysis not finished",
	})
}

func (s *Server) deleteTask(c echo.Context) error {
	task, ok := s.tasks.remove(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "task not found")
	}
	task.cancel()
	if err := os.Remove(task.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("failed to remove upload", logging.Fields{"task": task.ID, "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"task_id": task.ID,
		"message": "task deleted",
	})
}

// receive stores the multipart "file" field in the upload directory and
// returns its path and the client's file name.
func (s *Server) receive(c echo.Context) (string, string, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
			return "", "", err
		}
		return "", "", echo.NewHTTPError(http.StatusBadRequest, `missing multipart field "file"`)
	}

	filename := filepath.Base(fh.Filename)
	if audio.FormatFromPath(filename) == audio.FormatUnknown {
		return "", "", echo.NewHTTPError(http.StatusUnsupportedMediaType, &ErrorBody{
			Code:    analysis.UnsupportedFormat.Code(),
			Kind:    analysis.UnsupportedFormat.String(),
			Message: fmt.Sprintf("%s: supported formats are %s", filename, formatList()),
		})
	}
	if fh.Size > s.opts.MaxUploadBytes {
		return "", "", echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds %d bytes", s.opts.MaxUploadBytes))
	}

	src, err := fh.Open()
	if err != nil {
		return "", "", echo.NewHTTPError(http.StatusBadRequest, "unreadable upload")
	}
	defer src.Close()

	dst, err := os.CreateTemp(s.opts.UploadDir, "upload-*"+strings.ToLower(filepath.Ext(filename)))
	if err != nil {
		return "", "", fmt.Errorf("failed to store upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", "", fmt.Errorf("failed to store upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", "", fmt.Errorf("failed to store upload: %w", err)
	}
	return dst.Name(), filename, nil
}

func formatList() string {
	names := make([]string, 0, len(audio.SupportedFormats()))
	for _, f := range audio.SupportedFormats() {
		names = append(names, f.String())
	}
	return strings.Join(names, ", ")
}
