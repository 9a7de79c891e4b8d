package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxmatters/jivebeat/internal/analysis"
	"github.com/linuxmatters/jivebeat/internal/audio/audiotest"
	"github.com/linuxmatters/jivebeat/internal/config"
)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Workers = 2
	engine, err := analysis.New(cfg)
	require.NoError(t, err)

	if opts.UploadDir == "" {
		opts.UploadDir = t.TempDir()
	}
	s, err := New(engine, opts, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		assert.NoError(t, s.Shutdown(ctx))
	})
	return s
}

// cadenceWAV returns the bytes of a C major cadence with a 120 BPM click.
func cadenceWAV(t *testing.T) []byte {
	t.Helper()
	samples := audiotest.Mix(
		audiotest.Chords(audiotest.CMajorCadence, 1.0, 2, config.SampleRate),
		audiotest.Scale(audiotest.ClickTrack(120, 8, config.SampleRate), 0.3),
	)
	path := filepath.Join(t.TempDir(), "cadence.wav")
	require.NoError(t, audiotest.WriteWAV(path, samples, config.SampleRate, 1))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func upload(t *testing.T, s *Server, target, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func request(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestIndexHealthStatus(t *testing.T) {
	s := newTestServer(t, Options{})

	rec := request(t, s, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "jivebeat", body["name"])
	assert.Equal(t, analysis.Version, body["version"])
	assert.Contains(t, body["endpoints"], "analyze")

	rec = request(t, s, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])

	rec = request(t, s, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, true, body["available"])
	assert.Equal(t, "krumhansl", body["profile"])
	assert.EqualValues(t, config.MaxUploadBytes, body["max_upload_bytes"])
}

func TestFormats(t *testing.T) {
	s := newTestServer(t, Options{})

	rec := request(t, s, http.MethodGet, "/formats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"formats":["wav","mp3","flac","aiff","m4a","aac"]}`, rec.Body.String())
}

func TestStatus_NilEngine(t *testing.T) {
	s, err := New(nil, Options{UploadDir: t.TempDir()}, nil)
	require.NoError(t, err)

	rec := request(t, s, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["available"])
	assert.NotContains(t, body, "profile")

	rec = upload(t, s, "/analyze", "song.wav", cadenceWAV(t))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.EqualValues(t, analysis.NotAvailable.Code(), decode(t, rec)["code"])
}

func TestAnalyze(t *testing.T) {
	dir := t.TempDir()
	s := newTestServer(t, Options{UploadDir: dir})

	rec := upload(t, s, "/analyze", "cadence.wav", cadenceWAV(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var r analysis.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.Equal(t, "cadence.wav", r.Path)
	assert.Equal(t, "C major", r.KeySignature().String())
	assert.Greater(t, r.BPM, 0.0)
	assert.InDelta(t, 8.0, r.Duration, 0.01)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "upload not removed after analysis")
}

func TestAnalyze_Rejections(t *testing.T) {
	s := newTestServer(t, Options{MaxUploadBytes: 4096})

	testCases := []struct {
		name     string
		filename string
		data     []byte
		status   int
	}{
		{"unsupported extension", "notes.txt", []byte("hello"), http.StatusUnsupportedMediaType},
		{"too large", "big.wav", make([]byte, 8192), http.StatusRequestEntityTooLarge},
		{"body over limit", "huge.wav", make([]byte, 128*1024), http.StatusRequestEntityTooLarge},
		{"not audio", "fake.flac", []byte("definitely not flac"), http.StatusUnsupportedMediaType},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := upload(t, s, "/analyze", tc.filename, tc.data)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}

func TestAnalyze_MissingField(t *testing.T) {
	s := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyze_ErrorHidesUploadPath(t *testing.T) {
	dir := t.TempDir()
	s := newTestServer(t, Options{UploadDir: dir})

	rec := upload(t, s, "/analyze", "fake.flac", []byte("definitely not flac"))
	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	body := decode(t, rec)
	assert.EqualValues(t, analysis.UnsupportedFormat.Code(), body["code"])
	assert.Contains(t, body["message"], "fake.flac")
	assert.NotContains(t, body["message"], dir)
}

func waitForTask(t *testing.T, s *Server, id string) map[string]any {
	t.Helper()
	var task map[string]any
	require.Eventually(t, func() bool {
		rec := request(t, s, http.MethodGet, "/tasks/"+id)
		if rec.Code != http.StatusOK {
			return false
		}
		task = decode(t, rec)
		status := task["status"]
		return status == string(TaskCompleted) || status == string(TaskFailed)
	}, 30*time.Second, 20*time.Millisecond)
	return task
}

func TestTasks_Lifecycle(t *testing.T) {
	dir := t.TempDir()
	s := newTestServer(t, Options{UploadDir: dir})

	rec := upload(t, s, "/tasks", "cadence.wav", cadenceWAV(t))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	id, _ := decode(t, rec)["task_id"].(string)
	require.NotEmpty(t, id)

	task := waitForTask(t, s, id)
	assert.Equal(t, string(TaskCompleted), task["status"])
	assert.EqualValues(t, 100, task["progress"])
	assert.Equal(t, "cadence.wav", task["filename"])

	rec = request(t, s, http.MethodGet, "/tasks/"+id+"/result")
	require.Equal(t, http.StatusOK, rec.Code)
	var r analysis.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.Equal(t, "C major", r.KeySignature().String())

	rec = request(t, s, http.MethodGet, "/tasks")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode(t, rec)
	assert.EqualValues(t, 1, list["total"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "upload kept until the task is deleted")

	rec = request(t, s, http.MethodDelete, "/tasks/"+id)
	require.Equal(t, http.StatusOK, rec.Code)

	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.Equal(t, http.StatusNotFound, request(t, s, http.MethodGet, "/tasks/"+id).Code)
	assert.Equal(t, http.StatusNotFound, request(t, s, http.MethodGet, "/tasks/"+id+"/result").Code)
	assert.Equal(t, http.StatusNotFound, request(t, s, http.MethodDelete, "/tasks/"+id).Code)
}

func TestTasks_Failure(t *testing.T) {
	s := newTestServer(t, Options{})

	// A truncated WAV header passes the upload checks but fails to decode
	data := cadenceWAV(t)[:40]
	rec := upload(t, s, "/tasks", "short.wav", data)
	require.Equal(t, http.StatusAccepted, rec.Code)
	id, _ := decode(t, rec)["task_id"].(string)

	task := waitForTask(t, s, id)
	require.Equal(t, string(TaskFailed), task["status"])
	errBody, ok := task["error"].(map[string]any)
	require.True(t, ok, "failed task carries an error body")
	assert.NotContains(t, errBody["message"], s.opts.UploadDir)

	rec = request(t, s, http.MethodGet, "/tasks/"+id+"/result")
	assert.GreaterOrEqual(t, rec.Code, 400)
}

func TestTasks_Unknown(t *testing.T) {
	s := newTestServer(t, Options{})

	assert.Equal(t, http.StatusNotFound, request(t, s, http.MethodGet, "/tasks/nope").Code)

	rec := request(t, s, http.MethodGet, "/tasks")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"tasks":[],"total":0}`, rec.Body.String())
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, Options{RateLimit: 1})

	codes := make(map[int]int)
	for i := 0; i < 20; i++ {
		codes[request(t, s, http.MethodGet, "/health").Code]++
	}
	assert.Positive(t, codes[http.StatusOK])
	assert.Positive(t, codes[http.StatusTooManyRequests])
}

func TestShutdownRemovesOwnedUploadDir(t *testing.T) {
	s, err := New(nil, Options{}, nil)
	require.NoError(t, err)
	dir := s.opts.UploadDir
	require.DirExists(t, dir)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.NoDirExists(t, dir)
}
