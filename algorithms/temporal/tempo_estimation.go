package temporal

import (
	"fmt"
	"math"
)

// TempoEstimation estimates a global tempo from an onset strength envelope
type TempoEstimation struct {
	minBPM   float64
	maxBPM   float64
	startBPM float64 // center of the log-normal tempo prior
}

// NewTempoEstimation creates a tempo estimator searching 60-180 BPM with a
// prior centered on 120 BPM
func NewTempoEstimation() *TempoEstimation {
	return &TempoEstimation{
		minBPM:   60.0,
		maxBPM:   180.0,
		startBPM: 120.0,
	}
}

// NewTempoEstimationWithRange creates an estimator with a custom search range
func NewTempoEstimationWithRange(minBPM, maxBPM, startBPM float64) (*TempoEstimation, error) {
	if minBPM <= 0 || maxBPM <= minBPM {
		return nil, fmt.Errorf("invalid tempo range [%v, %v]", minBPM, maxBPM)
	}
	if startBPM < minBPM || startBPM > maxBPM {
		return nil, fmt.Errorf("start tempo %v outside [%v, %v]", startBPM, minBPM, maxBPM)
	}
	return &TempoEstimation{minBPM: minBPM, maxBPM: maxBPM, startBPM: startBPM}, nil
}

// EstimateFromEnvelope returns the tempo (BPM) whose beat period maximizes
// the prior-weighted autocorrelation of envelope. Zero means no periodicity
// was found.
func (te *TempoEstimation) EstimateFromEnvelope(envelope []float64, hopSize, sampleRate int) float64 {
	if len(envelope) < 10 || hopSize <= 0 || sampleRate <= 0 {
		return 0.0
	}

	timePerFrame := float64(hopSize) / float64(sampleRate)
	minLag := max(int(math.Floor(60.0/te.maxBPM/timePerFrame)), 1)
	maxLag := int(math.Ceil(60.0 / te.minBPM / timePerFrame))
	if maxLag >= len(envelope) {
		maxLag = len(envelope) - 1
	}
	if minLag >= maxLag {
		return 0.0
	}

	autocorr := calculateAutocorrelation(envelope, maxLag+1)
	if autocorr[0] <= 0 {
		return 0.0
	}

	bestLag := 0
	bestScore := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		bpm := 60.0 / (float64(lag) * timePerFrame)
		// Log-normal prior, one octave standard deviation
		prior := math.Exp(-0.5 * math.Pow(math.Log2(bpm/te.startBPM), 2))
		score := autocorr[lag] * prior
		if score > bestScore {
			bestScore = score
			bestLag = lag
		}
	}

	if bestLag == 0 {
		return 0.0
	}

	return 60.0 / (float64(bestLag) * timePerFrame)
}

// calculateAutocorrelation returns the normalized autocorrelation for lags
// [0, maxLag)
func calculateAutocorrelation(signal []float64, maxLag int) []float64 {
	if maxLag > len(signal) {
		maxLag = len(signal)
	}

	autocorr := make([]float64, maxLag)
	for lag := 0; lag < maxLag; lag++ {
		sum := 0.0
		for i := 0; i < len(signal)-lag; i++ {
			sum += signal[i] * signal[i+lag]
		}
		autocorr[lag] = sum
	}

	if len(autocorr) > 0 && autocorr[0] > 0 {
		norm := autocorr[0]
		for i := range autocorr {
			autocorr[i] /= norm
		}
	}

	return autocorr
}
