package spectral

import (
	"fmt"
	"math/cmplx"

	"github.com/mjibson/go-dsp/window"
)

// STFTResult holds a magnitude spectrogram, Magnitude[frame][bin]
type STFTResult struct {
	Magnitude  [][]float64
	WindowSize int
	HopSize    int
	SampleRate int
	TimeFrames int
	FreqBins   int
}

// STFT computes centered short-time magnitude spectra
type STFT struct {
	fft *FFT
}

// NewSTFT creates a new STFT calculator
func NewSTFT() *STFT {
	return &STFT{fft: NewFFT()}
}

// ComputeMagnitude frames the signal so that frame i is centered on sample
// i*hopSize (reflect padding at both ends), applies a periodic Hann window and
// returns the one-sided magnitude spectra. The frame count is
// 1 + len(signal)/hopSize.
func (s *STFT) ComputeMagnitude(signal []float64, windowSize, hopSize, sampleRate int) (*STFTResult, error) {
	if windowSize <= 0 || hopSize <= 0 {
		return nil, fmt.Errorf("window size and hop size must be positive")
	}
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	win := window.Hann(windowSize + 1)[:windowSize]
	padded := ReflectPad(signal, windowSize/2)

	frames := 1 + len(signal)/hopSize
	bins := windowSize/2 + 1
	mags := make([][]float64, frames)

	buf := make([]float64, windowSize)
	for i := range frames {
		start := i * hopSize
		for j := range windowSize {
			idx := start + j
			if idx < len(padded) {
				buf[j] = padded[idx] * win[j]
			} else {
				buf[j] = 0
			}
		}

		spectrum := s.fft.Compute(buf)
		row := make([]float64, bins)
		for k := range bins {
			row[k] = cmplx.Abs(spectrum[k])
		}
		mags[i] = row
	}

	return &STFTResult{
		Magnitude:  mags,
		WindowSize: windowSize,
		HopSize:    hopSize,
		SampleRate: sampleRate,
		TimeFrames: frames,
		FreqBins:   bins,
	}, nil
}

// ReflectPad mirrors pad samples at each end (excluding the edge sample).
// Signals too short to reflect are zero padded instead.
func ReflectPad(signal []float64, pad int) []float64 {
	n := len(signal)
	out := make([]float64, n+2*pad)
	copy(out[pad:], signal)
	if n < 2 {
		return out
	}

	for i := 1; i <= pad; i++ {
		if i < n {
			out[pad-i] = signal[i]
		}
		if n-1-i >= 0 {
			out[pad+n-1+i] = signal[n-1-i]
		}
	}
	return out
}
