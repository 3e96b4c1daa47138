package pipeline

import (
	"context"

	"github.com/RyanBlaney/sonido-canto/algorithms/stats"
	"github.com/RyanBlaney/sonido-canto/contour"
	"github.com/RyanBlaney/sonido-canto/transcode"
)

// Separator isolates the vocal line of a mixed recording
type Separator interface {
	Separate(ctx context.Context, audio *transcode.AudioData) (*transcode.AudioData, error)
}

// PitchTracker produces the primary per-frame pitch and confidence. Frames are
// hopSize samples apart and the first frame is centered on sample 0.
type PitchTracker interface {
	Track(ctx context.Context, samples []float64, sampleRate, hopSize int, rng PitchRange) (*PitchTrack, error)
}

// MonophonicEstimator produces the secondary per-frame pitch used for range
// estimation and the consensus veto. Unvoiced frames are NaN.
type MonophonicEstimator interface {
	Estimate(ctx context.Context, samples []float64, sampleRate, hopSize int) ([]float64, error)
}

// BeatTracker produces the beat grid of a recording
type BeatTracker interface {
	Track(ctx context.Context, samples []float64, sampleRate, hopSize int) (*contour.BeatGrid, error)
}

// PitchTrack is a primary tracker result
type PitchTrack struct {
	Frequency  []float64
	Confidence []float64
}

// PitchRange bounds the primary tracker's search in Hz
type PitchRange struct {
	MinHz float64
	MaxHz float64
}

const (
	minRangeFrames = 20
	rangeFloorHz   = 60.0
	rangeCeilHz    = 1200.0
)

// EstimatePitchRange narrows the tracker range to the secondary estimate's
// 5th and 95th percentiles, widened by 20%. With 20 or fewer voiced frames
// the fallback range is returned.
func EstimatePitchRange(secondary []float64, fallback PitchRange) PitchRange {
	voiced := contour.VoicedValues(secondary)
	if len(voiced) <= minRangeFrames {
		return fallback
	}

	p := stats.NewPercentiles()
	p5, err := p.CalculatePercentile(voiced, 5)
	if err != nil {
		return fallback
	}
	p95, err := p.CalculatePercentile(voiced, 95)
	if err != nil {
		return fallback
	}
	return PitchRange{
		MinHz: max(rangeFloorHz, p5*0.8),
		MaxHz: min(rangeCeilHz, p95*1.2),
	}
}
