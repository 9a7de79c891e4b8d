// Package audiotest synthesises deterministic audio fixtures for tests.
package audiotest

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/aiff"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// CMajorCadence is a I-IV-V-I progression in C major as MIDI note numbers.
var CMajorCadence = [][]int{
	{60, 64, 67}, // C E G
	{65, 69, 72}, // F A C
	{67, 71, 74}, // G B D
	{60, 64, 67}, // C E G
}

// NoteFrequency returns the equal-tempered frequency of a MIDI note (A4 = 69).
func NoteFrequency(midi int) float64 {
	return 440 * math.Pow(2, float64(midi-69)/12)
}

// Sine returns a sine tone.
func Sine(freq, amplitude, seconds float64, sampleRate int) []float64 {
	n := int(seconds * float64(sampleRate))
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

// Silence returns an all-zero signal.
func Silence(seconds float64, sampleRate int) []float64 {
	return make([]float64, int(seconds*float64(sampleRate)))
}

// ClickTrack returns short decaying tone bursts at the given tempo, starting
// at sample 0. The burst partials sit on C6 and G6.
func ClickTrack(bpm, seconds float64, sampleRate int) []float64 {
	n := int(seconds * float64(sampleRate))
	out := make([]float64, n)
	period := 60.0 / bpm * float64(sampleRate)
	clickLen := int(0.03 * float64(sampleRate))
	decay := 0.005 * float64(sampleRate)

	c6, g6 := NoteFrequency(84), NoteFrequency(91)
	for k := 0; ; k++ {
		start := int(math.Round(float64(k) * period))
		if start >= n {
			break
		}
		for i := 0; i < clickLen && start+i < n; i++ {
			t := float64(i) / float64(sampleRate)
			env := math.Exp(-float64(i) / decay)
			out[start+i] += 0.8 * env * (math.Sin(2*math.Pi*c6*t) + 0.5*math.Sin(2*math.Pi*g6*t))
		}
	}
	return out
}

// Chords plays each chord for chordSeconds, repeating the sequence `repeat`
// times. Every note is a sine of amplitude 0.25 with phase continuous across
// chord changes.
func Chords(chords [][]int, chordSeconds float64, repeat int, sampleRate int) []float64 {
	perChord := int(chordSeconds * float64(sampleRate))
	out := make([]float64, 0, perChord*len(chords)*repeat)

	for r := 0; r < repeat; r++ {
		for _, chord := range chords {
			for i := 0; i < perChord; i++ {
				n := len(out)
				var v float64
				for _, midi := range chord {
					v += 0.25 * math.Sin(2*math.Pi*NoteFrequency(midi)*float64(n)/float64(sampleRate))
				}
				out = append(out, v)
			}
		}
	}
	return out
}

// Mix sums signals sample by sample; the result has the longest length.
func Mix(signals ...[]float64) []float64 {
	var n int
	for _, s := range signals {
		n = max(n, len(s))
	}
	out := make([]float64, n)
	for _, s := range signals {
		for i, v := range s {
			out[i] += v
		}
	}
	return out
}

// Scale multiplies a signal by gain into a new slice.
func Scale(samples []float64, gain float64) []float64 {
	out := make([]float64, len(samples))
	for i, v := range samples {
		out[i] = v * gain
	}
	return out
}

// WriteWAV writes mono samples as 16-bit PCM, duplicated across channels.
// Values outside [-1, 1] are clipped.
func WriteWAV(path string, samples []float64, sampleRate, channels int) error {
	return WriteChannelsWAV(path, sampleRate, repeatChannels(samples, channels)...)
}

// WriteChannelsWAV writes one slice per channel as 16-bit PCM. All channels
// must have equal length.
func WriteChannelsWAV(path string, sampleRate int, channels ...[]float64) error {
	return WritePCMWAV(path, sampleRate, 16, channels...)
}

// WritePCMWAV writes one slice per channel at the given bit depth. 8-bit
// output is stored unsigned around 128 as WAV requires.
func WritePCMWAV(path string, sampleRate, bitDepth int, channels ...[]float64) error {
	data, err := interleave(channels, bitDepth)
	if err != nil {
		return err
	}
	if bitDepth == 8 {
		for i := range data {
			data[i] += 128
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, len(channels), 1)
	if err := enc.Write(intBuffer(data, sampleRate, bitDepth, len(channels))); err != nil {
		return fmt.Errorf("failed to write PCM: %w", err)
	}
	return enc.Close()
}

// WriteAIFF writes one slice per channel as signed big-endian PCM.
func WriteAIFF(path string, sampleRate, bitDepth int, channels ...[]float64) error {
	data, err := interleave(channels, bitDepth)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := aiff.NewEncoder(f, sampleRate, bitDepth, len(channels))
	if err := enc.Write(intBuffer(data, sampleRate, bitDepth, len(channels))); err != nil {
		return fmt.Errorf("failed to write PCM: %w", err)
	}
	return enc.Close()
}

// WriteFLAC writes one slice per channel as 16-bit FLAC using verbatim
// subframes of blockSize samples. The final frame carries the remainder.
func WriteFLAC(path string, sampleRate, blockSize int, channels ...[]float64) error {
	data, err := interleave(channels, 16)
	if err != nil {
		return err
	}
	nchannels := len(channels)
	n := len(channels[0])

	var assignment frame.Channels
	switch nchannels {
	case 1:
		assignment = frame.ChannelsMono
	case 2:
		assignment = frame.ChannelsLR
	default:
		return fmt.Errorf("unsupported channel count %d", nchannels)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info := &meta.StreamInfo{
		BlockSizeMin:  uint16(blockSize),
		BlockSizeMax:  uint16(blockSize),
		SampleRate:    uint32(sampleRate),
		NChannels:     uint8(nchannels),
		BitsPerSample: 16,
		NSamples:      uint64(n),
	}
	enc, err := flac.NewEncoder(f, info)
	if err != nil {
		return fmt.Errorf("failed to create FLAC encoder: %w", err)
	}

	for offset := 0; offset < n; offset += blockSize {
		size := min(blockSize, n-offset)
		fr := &frame.Frame{
			Header: frame.Header{
				HasFixedBlockSize: true,
				BlockSize:         uint16(size),
				SampleRate:        uint32(sampleRate),
				Channels:          assignment,
				BitsPerSample:     16,
			},
			Subframes: make([]*frame.Subframe, nchannels),
		}
		for c := range fr.Subframes {
			samples := make([]int32, size)
			for i := range samples {
				samples[i] = int32(data[(offset+i)*nchannels+c])
			}
			fr.Subframes[c] = &frame.Subframe{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   samples,
				NSamples:  size,
			}
		}
		if err := enc.WriteFrame(fr); err != nil {
			return fmt.Errorf("failed to write FLAC frame: %w", err)
		}
	}
	// Close seeks back to patch StreamInfo, then closes f
	return enc.Close()
}

// interleave quantises equal-length channels to signed integers at bitDepth.
// Values outside [-1, 1] are clipped.
func interleave(channels [][]float64, bitDepth int) ([]int, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("no channels")
	}
	n := len(channels[0])
	for _, ch := range channels[1:] {
		if len(ch) != n {
			return nil, fmt.Errorf("channel length mismatch: %d != %d", len(ch), n)
		}
	}

	data := make([]int, n*len(channels))
	maxVal := float64(audio.IntMaxSignedValue(bitDepth))
	for i := 0; i < n; i++ {
		for c, ch := range channels {
			v := math.Max(-1, math.Min(1, ch[i]))
			data[i*len(channels)+c] = int(math.Round(v * maxVal))
		}
	}
	return data, nil
}

func intBuffer(data []int, sampleRate, bitDepth, channels int) *audio.IntBuffer {
	return &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
}

func repeatChannels(samples []float64, channels int) [][]float64 {
	if channels < 1 {
		channels = 1
	}
	out := make([][]float64, channels)
	for i := range out {
		out[i] = samples
	}
	return out
}
