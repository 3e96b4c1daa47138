package spectral

import (
	"math/cmplx"

	"github.com/RyanBlaney/sonido-canto/algorithms/common"
	"github.com/mjibson/go-dsp/fft"
)

// FFT wraps mjibson/go-dsp transforms used by the pitch and onset analyzers
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes the forward transform of a real signal
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	// go-dsp handles non-power-of-2 sizes with Bluestein
	return fft.FFTReal(x)
}

// ComputeInverseReal computes the inverse transform and returns the real part
func (f *FFT) ComputeInverseReal(x []complex128) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	result := fft.IFFT(x)
	realResult := make([]float64, len(result))
	for i, val := range result {
		realResult[i] = real(val)
	}

	return realResult
}

// CrossCorrelate returns c[lag] = sum_j a[j+lag]*b[j] for lag in [0, maxLag).
// Both inputs are zero padded to a power of two so the circular product has
// no wrap-around inside the requested lags.
func (f *FFT) CrossCorrelate(a, b []float64, maxLag int) []float64 {
	if len(a) == 0 || len(b) == 0 || maxLag <= 0 {
		return []float64{}
	}

	size := common.NextPowerOfTwo(len(a) + len(b))
	pa := make([]float64, size)
	pb := make([]float64, size)
	copy(pa, a)
	copy(pb, b)

	fa := fft.FFTReal(pa)
	fb := fft.FFTReal(pb)
	for i := range fa {
		fa[i] *= cmplx.Conj(fb[i])
	}

	full := f.ComputeInverseReal(fa)
	if maxLag > len(full) {
		maxLag = len(full)
	}
	return full[:maxLag]
}
