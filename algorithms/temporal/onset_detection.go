package temporal

import (
	"math"

	"github.com/RyanBlaney/sonido-canto/algorithms/spectral"
)

// OnsetDetection computes onset strength envelopes for beat tracking
type OnsetDetection struct {
	stft       *spectral.STFT
	windowSize int
}

// NewOnsetDetection creates a new onset detector with a 2048-sample window
func NewOnsetDetection() *OnsetDetection {
	return &OnsetDetection{
		stft:       spectral.NewSTFT(),
		windowSize: 2048,
	}
}

// OnsetStrength returns a half-wave rectified log-spectral flux per hop, one
// value per STFT frame (1 + len(signal)/hopSize). The first frame is zero.
func (od *OnsetDetection) OnsetStrength(signal []float64, sampleRate, hopSize int) ([]float64, error) {
	stftResult, err := od.stft.ComputeMagnitude(signal, od.windowSize, hopSize, sampleRate)
	if err != nil {
		return nil, err
	}

	logMag := make([][]float64, stftResult.TimeFrames)
	for i, frame := range stftResult.Magnitude {
		row := make([]float64, len(frame))
		for k, m := range frame {
			row[k] = math.Log1p(100 * m)
		}
		logMag[i] = row
	}

	flux := make([]float64, stftResult.TimeFrames)
	for i := 1; i < len(logMag); i++ {
		sum := 0.0
		for k := range logMag[i] {
			diff := logMag[i][k] - logMag[i-1][k]
			if diff > 0 {
				sum += diff
			}
		}
		flux[i] = sum / float64(stftResult.FreqBins)
	}

	return flux, nil
}

// findFluxPeaks finds local maxima at least threshold high and at least
// minIntervalFrames apart
func findFluxPeaks(flux []float64, threshold float64, minIntervalFrames int) []int {
	if len(flux) < 3 {
		return []int{}
	}

	var peaks []int
	lastPeakFrame := -minIntervalFrames

	for i := 1; i < len(flux)-1; i++ {
		if flux[i] > flux[i-1] &&
			flux[i] >= flux[i+1] &&
			flux[i] >= threshold &&
			i-lastPeakFrame >= minIntervalFrames {
			peaks = append(peaks, i)
			lastPeakFrame = i
		}
	}

	return peaks
}

// AdaptiveThreshold returns mean + 2*std of the envelope
func AdaptiveThreshold(flux []float64) float64 {
	if len(flux) == 0 {
		return 0.0
	}

	mean := 0.0
	for _, val := range flux {
		mean += val
	}
	mean /= float64(len(flux))

	variance := 0.0
	for _, val := range flux {
		diff := val - mean
		variance += diff * diff
	}
	variance /= float64(len(flux))

	return mean + 2.0*math.Sqrt(variance)
}
