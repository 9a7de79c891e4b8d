package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	faad2 "github.com/llehouerou/go-faad2"
	m4a "github.com/llehouerou/go-m4a"
)

// AACDecoder implements AudioDecoder for raw ADTS AAC streams
type AACDecoder struct {
	ctx        context.Context
	reader     *faad2.ADTSReader
	file       *os.File
	sampleRate int
	numChans   int
	pcm        []int16
}

// NewAACDecoder opens an ADTS stream and primes the decoder with its first
// frame. Leading junk such as an ID3 tag is skipped by resynchronising on the
// next frame header.
func NewAACDecoder(ctx context.Context, filename string) (*AACDecoder, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	reader, err := faad2.OpenADTS(ctx, f)
	if err != nil {
		f.Close()
		if errors.Is(err, faad2.ErrADTSSyncNotFound) || errors.Is(err, faad2.ErrInvalidADTS) ||
			errors.Is(err, faad2.ErrInvalidConfig) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("invalid ADTS stream: %w: %w", ErrUnsupportedFormat, err)
		}
		return nil, fmt.Errorf("failed to open AAC decoder: %w: %w", ErrDecode, err)
	}

	numChans := int(reader.Channels())
	if numChans < 1 {
		// Channel layout carried in a program config element
		reader.Close(ctx)
		f.Close()
		return nil, fmt.Errorf("ADTS header declares no channel configuration: %w", ErrUnsupportedFormat)
	}

	return &AACDecoder{
		ctx:        ctx,
		reader:     reader,
		file:       f,
		sampleRate: int(reader.SampleRate()),
		numChans:   numChans,
	}, nil
}

// ReadChunk reads the next chunk of samples
func (d *AACDecoder) ReadChunk(numSamples int) ([]float64, error) {
	bufSize := numSamples * d.numChans
	if cap(d.pcm) < bufSize {
		d.pcm = make([]int16, bufSize)
	}
	pcm := d.pcm[:bufSize]

	n, err := d.reader.Read(d.ctx, pcm)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("failed to decode AAC frame: %w: %w", ErrDecode, err)
	}
	if n < d.numChans {
		return nil, io.EOF
	}

	return downmixInt16(pcm[:n], d.numChans), nil
}

// SampleRate returns the rate declared by the ADTS header
func (d *AACDecoder) SampleRate() int {
	return d.sampleRate
}

// NumSamples returns 0; ADTS carries no total length
func (d *AACDecoder) NumSamples() int64 {
	return 0
}

// NumChannels returns the number of audio channels
func (d *AACDecoder) NumChannels() int {
	return d.numChans
}

// Close releases the decoder and the file
func (d *AACDecoder) Close() error {
	if d.reader != nil {
		d.reader.Close(d.ctx)
		d.reader = nil
	}
	if d.file != nil {
		err := d.file.Close()
		d.file = nil
		return err
	}
	return nil
}

// M4ADecoder implements AudioDecoder for AAC tracks in an MP4 container. The
// container sample table is walked one access unit at a time.
type M4ADecoder struct {
	ctx        context.Context
	file       *os.File
	container  *m4a.Reader
	decoder    *faad2.Decoder
	next       int
	sampleRate int
	numChans   int
	numSamples int64

	// Downmixed samples from the last access unit not yet returned
	pending []float64
}

// openM4A parses the container and picks a decoder for its audio track.
// AAC decodes natively; other codecs go through ffmpeg with the container's
// rate and channel count reported as the source format.
func openM4A(ctx context.Context, filename string, opts DecoderOptions) (AudioDecoder, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	container, err := m4a.Open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to parse MP4 container: %w: %w", ErrUnsupportedFormat, err)
	}

	if container.Codec() == m4a.CodecAAC {
		dec, err := newM4ADecoder(ctx, f, container)
		if err != nil {
			f.Close()
			return nil, err
		}
		return dec, nil
	}
	f.Close()

	ff, err := NewFFmpegDecoder(ctx, filename, opts)
	if err != nil {
		return nil, fmt.Errorf("%s track: %w", container.Codec(), err)
	}
	ff.sourceRate = int(container.SampleRate())
	ff.sourceChans = int(container.Channels())
	return ff, nil
}

func newM4ADecoder(ctx context.Context, f *os.File, container *m4a.Reader) (*M4ADecoder, error) {
	decoder, err := faad2.NewDecoder(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create AAC decoder: %w: %w", ErrDecode, err)
	}
	if err := decoder.Init(ctx, container.CodecConfig()); err != nil {
		decoder.Close(ctx)
		return nil, fmt.Errorf("invalid AAC configuration: %w: %w", ErrUnsupportedFormat, err)
	}

	// The decoder reports the output layout, which differs from the
	// container for SBR and parametric stereo streams
	sampleRate := int(decoder.SampleRate())
	if sampleRate == 0 {
		sampleRate = int(container.SampleRate())
	}
	numChans := int(decoder.Channels())
	if numChans == 0 {
		numChans = int(container.Channels())
	}
	if sampleRate == 0 || numChans == 0 {
		decoder.Close(ctx)
		return nil, fmt.Errorf("AAC track declares %d channels at %d Hz: %w", numChans, sampleRate, ErrUnsupportedFormat)
	}

	return &M4ADecoder{
		ctx:        ctx,
		file:       f,
		container:  container,
		decoder:    decoder,
		sampleRate: sampleRate,
		numChans:   numChans,
		numSamples: int64(container.Duration().Seconds()*float64(sampleRate) + 0.5),
	}, nil
}

// ReadChunk reads the next chunk of samples
func (d *M4ADecoder) ReadChunk(numSamples int) ([]float64, error) {
	samples := make([]float64, 0, numSamples)

	for len(samples) < numSamples {
		if len(d.pending) > 0 {
			n := min(numSamples-len(samples), len(d.pending))
			samples = append(samples, d.pending[:n]...)
			d.pending = d.pending[n:]
			continue
		}

		if d.next >= d.container.SampleCount() {
			if len(samples) == 0 {
				return nil, io.EOF
			}
			return samples, nil
		}

		unit, err := d.container.ReadSample(d.next)
		if err != nil {
			return nil, fmt.Errorf("failed to read access unit %d: %w: %w", d.next, ErrDecode, err)
		}
		d.next++
		if len(unit) == 0 {
			continue
		}

		pcm, err := d.decoder.Decode(d.ctx, unit)
		if err != nil {
			return nil, fmt.Errorf("failed to decode access unit %d: %w: %w", d.next-1, ErrDecode, err)
		}
		d.pending = downmixInt16(pcm, d.numChans)
	}

	return samples, nil
}

// SampleRate returns the decoder output rate
func (d *M4ADecoder) SampleRate() int {
	return d.sampleRate
}

// NumSamples returns the track duration in samples
func (d *M4ADecoder) NumSamples() int64 {
	return d.numSamples
}

// NumChannels returns the number of audio channels
func (d *M4ADecoder) NumChannels() int {
	return d.numChans
}

// Close releases the decoder and the file
func (d *M4ADecoder) Close() error {
	if d.decoder != nil {
		d.decoder.Close(d.ctx)
		d.decoder = nil
	}
	if d.file != nil {
		err := d.file.Close()
		d.file = nil
		return err
	}
	return nil
}

// downmixInt16 converts interleaved 16-bit PCM to mono float64 by averaging
// channels. A trailing partial frame is dropped.
func downmixInt16(pcm []int16, numChans int) []float64 {
	frames := len(pcm) / numChans
	out := make([]float64, frames)
	for i := range out {
		var sum float64
		for ch := 0; ch < numChans; ch++ {
			sum += float64(pcm[i*numChans+ch])
		}
		out[i] = sum / float64(numChans) / 32768
	}
	return out
}
