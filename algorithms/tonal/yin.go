package tonal

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-canto/algorithms/common"
	"github.com/RyanBlaney/sonido-canto/algorithms/spectral"
)

// YinParams contains parameters for frame-wise YIN tracking
type YinParams struct {
	SampleRate int     `json:"sample_rate"`
	FrameSize  int     `json:"frame_size"`
	HopSize    int     `json:"hop_size"`
	MinFreq    float64 `json:"min_freq"`
	MaxFreq    float64 `json:"max_freq"`
	Threshold  float64 `json:"threshold"` // CMNDF threshold (0.1-0.5)

	// SilenceRMS marks frames quieter than this as unvoiced without analysis
	SilenceRMS float64 `json:"silence_rms"`
}

// DefaultYinParams returns parameters suited to sung vocals at 22.05 kHz
func DefaultYinParams(sampleRate, hopSize int) YinParams {
	return YinParams{
		SampleRate: sampleRate,
		FrameSize:  2048,
		HopSize:    hopSize,
		MinFreq:    80.0,   // Low male voice
		MaxFreq:    1000.0, // High female voice
		Threshold:  0.15,
		SilenceRMS: 1e-4,
	}
}

// YinTracker runs YIN over a whole signal, one estimate per hop
//
// References:
// - de Cheveigné, A., Kawahara, H. (2002). "YIN, a fundamental frequency estimator for speech and music"
//
// The difference function is evaluated through an FFT cross-correlation, so a
// frame costs O(N log N) instead of O(N²).
type YinTracker struct {
	params YinParams
	fft    *spectral.FFT
}

// NewYinTracker validates params and creates a tracker
func NewYinTracker(params YinParams) (*YinTracker, error) {
	if params.SampleRate <= 0 || params.HopSize <= 0 || params.FrameSize <= 0 {
		return nil, fmt.Errorf("sample rate, hop size and frame size must be positive")
	}
	if params.MinFreq <= 0 || params.MaxFreq <= params.MinFreq {
		return nil, fmt.Errorf("invalid frequency range [%v, %v]", params.MinFreq, params.MaxFreq)
	}
	maxTau := float64(params.SampleRate) / params.MinFreq
	if int(math.Ceil(maxTau))+2 > params.FrameSize/2 {
		return nil, fmt.Errorf("frame size %d too short for min frequency %v Hz", params.FrameSize, params.MinFreq)
	}

	return &YinTracker{
		params: params,
		fft:    spectral.NewFFT(),
	}, nil
}

// Track returns per-frame frequency (NaN when unvoiced) and confidence in
// [0, 1]. Frame i is centered on sample i*HopSize; there are
// 1 + len(signal)/HopSize frames.
func (y *YinTracker) Track(signal []float64) (freqs, confidence []float64) {
	frames := 1 + len(signal)/y.params.HopSize
	freqs = make([]float64, frames)
	confidence = make([]float64, frames)

	padded := spectral.ReflectPad(signal, y.params.FrameSize/2)
	frame := make([]float64, y.params.FrameSize)

	for i := range frames {
		start := i * y.params.HopSize
		for j := range frame {
			idx := start + j
			if idx < len(padded) {
				frame[j] = padded[idx]
			} else {
				frame[j] = 0
			}
		}
		freqs[i], confidence[i] = y.DetectFrame(frame)
	}

	return freqs, confidence
}

// DetectFrame estimates the pitch of a single frame of FrameSize samples
func (y *YinTracker) DetectFrame(frame []float64) (float64, float64) {
	if common.RMS(frame) < y.params.SilenceRMS {
		return math.NaN(), 0
	}

	cmndf := y.cumulativeMeanNormalizedDifference(frame)

	minTau := int(math.Floor(float64(y.params.SampleRate) / y.params.MaxFreq))
	maxTau := int(math.Ceil(float64(y.params.SampleRate) / y.params.MinFreq))
	if minTau < 2 {
		minTau = 2
	}
	if maxTau > len(cmndf)-2 {
		maxTau = len(cmndf) - 2
	}

	// First dip below threshold, then walk down to its local minimum
	best := -1
	for tau := minTau; tau <= maxTau; tau++ {
		if cmndf[tau] < y.params.Threshold {
			for tau+1 <= maxTau && cmndf[tau+1] < cmndf[tau] {
				tau++
			}
			best = tau
			break
		}
	}

	if best < 0 {
		// No periodicity strong enough; report how close the best dip came
		lowest := math.Inf(1)
		for tau := minTau; tau <= maxTau; tau++ {
			lowest = math.Min(lowest, cmndf[tau])
		}
		return math.NaN(), common.Clamp(1-lowest, 0, 1)
	}

	period := common.ParabolicPeak(cmndf, best)
	if period <= 0 {
		return math.NaN(), 0
	}

	frequency := float64(y.params.SampleRate) / period
	if frequency < y.params.MinFreq || frequency > y.params.MaxFreq {
		return math.NaN(), 0
	}

	return frequency, common.Clamp(1-cmndf[best], 0, 1)
}

// cumulativeMeanNormalizedDifference computes d'(tau) for tau in [0, N/2)
func (y *YinTracker) cumulativeMeanNormalizedDifference(frame []float64) []float64 {
	half := len(frame) / 2

	cross := y.fft.CrossCorrelate(frame, frame[:half], half)

	// Prefix sums of squared samples give the sliding energy terms
	prefix := make([]float64, len(frame)+1)
	for i, v := range frame {
		prefix[i+1] = prefix[i] + v*v
	}
	e0 := prefix[half]

	cmndf := make([]float64, half)
	cmndf[0] = 1.0

	runningSum := 0.0
	for tau := 1; tau < half; tau++ {
		etau := prefix[tau+half] - prefix[tau]
		d := e0 + etau - 2*cross[tau]
		if d < 0 {
			d = 0
		}
		runningSum += d
		if runningSum == 0 {
			cmndf[tau] = 1.0
			continue
		}
		cmndf[tau] = d * float64(tau) / runningSum
	}

	return cmndf
}
