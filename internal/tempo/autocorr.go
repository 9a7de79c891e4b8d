package tempo

import (
	"github.com/argusdusty/gofft"
)

// Autocorrelate returns the linear autocorrelation of x for lags 0..len(x)-1,
// normalised so lag 0 is 1. The power spectrum of the zero-padded signal is
// inverse transformed, which is O(n log n) instead of O(n^2).
// It returns nil when x has no energy.
func Autocorrelate(x []float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}

	// Padding to at least 2n keeps the circular correlation from wrapping
	size := 1
	for size < 2*n {
		size <<= 1
	}

	buf := make([]complex128, size)
	for i, v := range x {
		buf[i] = complex(v, 0)
	}
	if err := gofft.FFT(buf); err != nil {
		return nil
	}
	for i, c := range buf {
		buf[i] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
	}
	if err := gofft.IFFT(buf); err != nil {
		return nil
	}

	r0 := real(buf[0])
	if r0 <= 0 {
		return nil
	}

	r := make([]float64, n)
	for i := range r {
		r[i] = real(buf[i]) / r0
	}
	return r
}
