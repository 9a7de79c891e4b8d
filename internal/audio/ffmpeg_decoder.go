package audio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/linuxmatters/jivebeat/internal/config"
)

// ffmpegWaitDelay bounds how long Wait blocks on pipe I/O after ffmpeg is
// killed
const ffmpegWaitDelay = 2 * time.Second

// FFmpegDecoder implements AudioDecoder by piping the file through an ffmpeg
// subprocess that emits mono float64 little-endian PCM at the analysis rate.
// It covers M4A tracks whose codec has no native Go decoder, such as ALAC.
type FFmpegDecoder struct {
	ctx    context.Context
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stdout *bufio.Reader
	stderr *bytes.Buffer
	buf    []byte
	done   bool

	// Container header values; zero when unknown
	sourceRate  int
	sourceChans int
}

// NewFFmpegDecoder starts ffmpeg for filename. The process is killed when ctx
// is cancelled, when opts.Timeout elapses, or on Close.
func NewFFmpegDecoder(ctx context.Context, filename string, opts DecoderOptions) (*FFmpegDecoder, error) {
	ffmpegPath := opts.FFmpegPath
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if _, err := exec.LookPath(ffmpegPath); err != nil {
		return nil, fmt.Errorf("ffmpeg not found for %s: %w", filename, ErrUnsupportedFormat)
	}

	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	args := []string{
		"-v", "error",
		"-nostdin",
		"-i", filename,
		"-map", "0:a:0",
		"-vn",
		"-f", "f64le",
		"-ac", "1",
		"-ar", strconv.Itoa(config.SampleRate),
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	cmd.WaitDelay = ffmpegWaitDelay
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open ffmpeg output: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	return &FFmpegDecoder{
		ctx:    ctx,
		cmd:    cmd,
		cancel: cancel,
		stdout: bufio.NewReaderSize(stdout, 64*1024),
		stderr: stderr,
	}, nil
}

// ReadChunk reads the next chunk of samples
func (d *FFmpegDecoder) ReadChunk(numSamples int) ([]float64, error) {
	if d.done {
		return nil, io.EOF
	}

	if cap(d.buf) < numSamples*8 {
		d.buf = make([]byte, numSamples*8)
	}
	buf := d.buf[:numSamples*8]

	n, err := io.ReadFull(d.stdout, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("failed to read ffmpeg output: %w: %w", ErrDecode, err)
	}

	if err != nil {
		// A failed exit means the stream is truncated, even if bytes arrived
		d.done = true
		if waitErr := d.wait(); waitErr != nil {
			return nil, waitErr
		}
	}

	count := n / 8
	if count == 0 {
		return nil, io.EOF
	}

	samples := make([]float64, count)
	for i := range samples {
		samples[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return samples, nil
}

func (d *FFmpegDecoder) wait() error {
	if d.cmd == nil {
		return nil
	}
	err := d.cmd.Wait()
	d.cmd = nil
	if err == nil {
		return nil
	}

	if ctxErr := d.ctx.Err(); ctxErr != nil {
		return fmt.Errorf("ffmpeg killed: %w: %w", ErrDecode, ctxErr)
	}
	msg := strings.TrimSpace(d.stderr.String())
	if msg == "" {
		msg = err.Error()
	}
	return fmt.Errorf("ffmpeg: %s: %w", msg, ErrDecode)
}

// SampleRate returns the analysis rate ffmpeg resamples to
func (d *FFmpegDecoder) SampleRate() int {
	return config.SampleRate
}

// SourceFormat returns the sample rate and channel count read from the
// container header, or zeros when the header was not parsed
func (d *FFmpegDecoder) SourceFormat() (sampleRate, channels int) {
	return d.sourceRate, d.sourceChans
}

// NumSamples returns 0; the length is only known after decoding
func (d *FFmpegDecoder) NumSamples() int64 {
	return 0
}

// NumChannels returns 1; ffmpeg downmixes before output
func (d *FFmpegDecoder) NumChannels() int {
	return 1
}

// Close stops ffmpeg and releases resources
func (d *FFmpegDecoder) Close() error {
	d.cancel()
	if d.cmd != nil {
		// The process was killed; its exit status carries no information
		_ = d.cmd.Wait()
		d.cmd = nil
	}
	return nil
}
