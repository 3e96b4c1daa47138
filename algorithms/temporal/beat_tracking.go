package temporal

import (
	"fmt"
	"math"
)

// BeatTracker places a regular beat grid on the onset strength envelope
type BeatTracker struct {
	onsetDetector *OnsetDetection
	tempo         *TempoEstimation
}

// NewBeatTracker creates a beat tracker; a nil tempo estimator uses the defaults
func NewBeatTracker(tempo *TempoEstimation) *BeatTracker {
	if tempo == nil {
		tempo = NewTempoEstimation()
	}
	return &BeatTracker{
		onsetDetector: NewOnsetDetection(),
		tempo:         tempo,
	}
}

// Track returns ordered beat times in seconds and the tempo in BPM. A
// recording without at least two clear onsets yields no beats and zero tempo.
func (bt *BeatTracker) Track(signal []float64, sampleRate, hopSize int) ([]float64, float64, error) {
	if sampleRate <= 0 || hopSize <= 0 {
		return nil, 0, fmt.Errorf("sample rate and hop size must be positive")
	}
	if len(signal) == 0 {
		return []float64{}, 0, nil
	}

	envelope, err := bt.onsetDetector.OnsetStrength(signal, sampleRate, hopSize)
	if err != nil {
		return nil, 0, err
	}

	frames := bt.TrackEnvelope(envelope, sampleRate, hopSize)
	if len(frames) == 0 {
		return []float64{}, 0, nil
	}

	tempo := bt.tempo.EstimateFromEnvelope(envelope, hopSize, sampleRate)
	times := make([]float64, len(frames))
	for i, f := range frames {
		times[i] = float64(f*hopSize) / float64(sampleRate)
	}
	return times, tempo, nil
}

// TrackEnvelope returns strictly increasing beat frame indices for an onset
// envelope
func (bt *BeatTracker) TrackEnvelope(envelope []float64, sampleRate, hopSize int) []int {
	minInterval := int(0.1 * float64(sampleRate) / float64(hopSize))
	onsets := findFluxPeaks(envelope, AdaptiveThreshold(envelope), minInterval)
	if len(onsets) < 2 {
		return []int{}
	}

	bpm := bt.tempo.EstimateFromEnvelope(envelope, hopSize, sampleRate)
	if bpm <= 0 {
		return []int{}
	}
	period := 60.0 * float64(sampleRate) / (float64(hopSize) * bpm)
	if period < 1 {
		return []int{}
	}

	// Phase that collects the most onset energy on a rigid grid
	bestPhase := 0.0
	bestScore := -1.0
	for phase := 0.0; phase < period; phase++ {
		score := 0.0
		for pos := phase; pos < float64(len(envelope)); pos += period {
			score += envelope[int(pos)]
		}
		if score > bestScore {
			bestScore = score
			bestPhase = phase
		}
	}

	// Let each beat slide to the strongest frame within a tenth of a period
	slack := int(math.Max(1, math.Round(period/10)))
	var beats []int
	for pos := bestPhase; pos < float64(len(envelope)); pos += period {
		center := int(pos)
		best := center
		for j := max(center-slack, 0); j <= min(center+slack, len(envelope)-1); j++ {
			if envelope[j] > envelope[best] {
				best = j
			}
		}
		if len(beats) > 0 && best <= beats[len(beats)-1] {
			continue
		}
		beats = append(beats, best)
	}

	return beats
}
