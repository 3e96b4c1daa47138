package estimators

import (
	"context"
	"fmt"

	"github.com/RyanBlaney/sonido-canto/algorithms/temporal"
	"github.com/RyanBlaney/sonido-canto/contour"
)

// BeatConfig configures the onset beat tracker's tempo search
type BeatConfig struct {
	MinBPM   float64 `json:"min_bpm" toml:"min_bpm" yaml:"min_bpm"`
	MaxBPM   float64 `json:"max_bpm" toml:"max_bpm" yaml:"max_bpm"`
	StartBPM float64 `json:"start_bpm" toml:"start_bpm" yaml:"start_bpm"`
}

// DefaultBeatConfig searches 60-180 BPM around 120
func DefaultBeatConfig() *BeatConfig {
	return &BeatConfig{MinBPM: 60, MaxBPM: 180, StartBPM: 120}
}

// OnsetBeats tracks beats from spectral flux onsets
type OnsetBeats struct {
	tracker *temporal.BeatTracker
}

// NewOnsetBeats creates the tracker; a nil config uses the defaults
func NewOnsetBeats(cfg *BeatConfig) (*OnsetBeats, error) {
	if cfg == nil {
		cfg = DefaultBeatConfig()
	}
	tempo, err := temporal.NewTempoEstimationWithRange(cfg.MinBPM, cfg.MaxBPM, cfg.StartBPM)
	if err != nil {
		return nil, fmt.Errorf("beat tracker: %w", err)
	}
	return &OnsetBeats{tracker: temporal.NewBeatTracker(tempo)}, nil
}

// Track implements pipeline.BeatTracker. A recording without a clear pulse
// yields an empty grid.
func (b *OnsetBeats) Track(ctx context.Context, samples []float64, sampleRate, hopSize int) (*contour.BeatGrid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	times, tempo, err := b.tracker.Track(samples, sampleRate, hopSize)
	if err != nil {
		return nil, err
	}
	return &contour.BeatGrid{Times: times, Tempo: tempo}, nil
}
