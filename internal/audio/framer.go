package audio

import "fmt"

// Frame is a fixed-length window of the waveform. Samples must not be
// modified; full frames share storage with the source Waveform.
type Frame struct {
	Index     int
	Start     int     // First sample index in the waveform
	Timestamp float64 // Start time in seconds
	Samples   []float64
}

// FrameCount returns the number of frames Split produces for n samples:
// ceil((n-size)/hop)+1 when n >= size, otherwise 1.
func FrameCount(n, size, hop int) int {
	if n <= size {
		return 1
	}
	return (n-size+hop-1)/hop + 1
}

// Split slices the waveform into overlapping frames. Frame i covers
// [i*hop, i*hop+size); the final partial frame is zero-padded.
func Split(w *Waveform, size, hop int) ([]Frame, error) {
	if w == nil || len(w.Samples) == 0 {
		return nil, ErrEmpty
	}
	if size <= 0 || hop <= 0 {
		return nil, fmt.Errorf("invalid frame size %d / hop %d", size, hop)
	}

	n := len(w.Samples)
	count := FrameCount(n, size, hop)
	frames := make([]Frame, count)

	for i := range frames {
		start := i * hop
		end := start + size

		var samples []float64
		if end <= n {
			samples = w.Samples[start:end:end]
		} else {
			samples = make([]float64, size)
			if start < n {
				copy(samples, w.Samples[start:])
			}
		}

		frames[i] = Frame{
			Index:     i,
			Start:     start,
			Timestamp: float64(start) / float64(w.SampleRate),
			Samples:   samples,
		}
	}

	return frames, nil
}
