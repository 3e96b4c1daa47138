// Package estimators provides concrete collaborators for the pipeline: a
// built-in YIN pitch tracker, an onset-based beat tracker, and adapters that
// run external neural models (CREPE for pitch, Demucs for separation).
package estimators

import (
	"context"
	"fmt"

	"github.com/RyanBlaney/sonido-canto/algorithms/tonal"
	"github.com/RyanBlaney/sonido-canto/pipeline"
)

// YinConfig configures the YIN estimator
type YinConfig struct {
	FrameSize  int     `json:"frame_size" toml:"frame_size" yaml:"frame_size"`
	Threshold  float64 `json:"threshold" toml:"threshold" yaml:"threshold"`
	SilenceRMS float64 `json:"silence_rms" toml:"silence_rms" yaml:"silence_rms"`

	// Search range when used as the secondary estimator
	MinFreq float64 `json:"min_freq" toml:"min_freq" yaml:"min_freq"`
	MaxFreq float64 `json:"max_freq" toml:"max_freq" yaml:"max_freq"`
}

// DefaultYinConfig returns the settings used for sung vocals
func DefaultYinConfig() *YinConfig {
	p := tonal.DefaultYinParams(22050, 256)
	return &YinConfig{
		FrameSize:  p.FrameSize,
		Threshold:  p.Threshold,
		SilenceRMS: p.SilenceRMS,
		MinFreq:    p.MinFreq,
		MaxFreq:    p.MaxFreq,
	}
}

// Yin runs YIN in-process. It serves as the secondary monophonic estimator
// and, without an external model, as the primary tracker.
type Yin struct {
	config *YinConfig
}

// NewYin creates the estimator; a nil config uses the defaults
func NewYin(cfg *YinConfig) *Yin {
	if cfg == nil {
		cfg = DefaultYinConfig()
	}
	return &Yin{config: cfg}
}

// Estimate implements pipeline.MonophonicEstimator over the configured range
func (y *Yin) Estimate(ctx context.Context, samples []float64, sampleRate, hopSize int) ([]float64, error) {
	freqs, _, err := y.run(ctx, samples, sampleRate, hopSize, y.config.MinFreq, y.config.MaxFreq)
	return freqs, err
}

// Track implements pipeline.PitchTracker over rng
func (y *Yin) Track(ctx context.Context, samples []float64, sampleRate, hopSize int, rng pipeline.PitchRange) (*pipeline.PitchTrack, error) {
	freqs, conf, err := y.run(ctx, samples, sampleRate, hopSize, rng.MinHz, rng.MaxHz)
	if err != nil {
		return nil, err
	}
	return &pipeline.PitchTrack{Frequency: freqs, Confidence: conf}, nil
}

func (y *Yin) run(ctx context.Context, samples []float64, sampleRate, hopSize int, minHz, maxHz float64) ([]float64, []float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	params := tonal.DefaultYinParams(sampleRate, hopSize)
	params.FrameSize = y.config.FrameSize
	params.Threshold = y.config.Threshold
	params.SilenceRMS = y.config.SilenceRMS
	params.MinFreq = minHz
	params.MaxFreq = maxHz

	tracker, err := tonal.NewYinTracker(params)
	if err != nil {
		return nil, nil, fmt.Errorf("yin: %w", err)
	}
	freqs, conf := tracker.Track(samples)
	return freqs, conf, nil
}
