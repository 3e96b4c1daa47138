package contour

import "fmt"

// Config carries every threshold used by the cleanup stages
type Config struct {
	// Voicing gate, applied once before octave correction
	EnergyGate     float64 `json:"energy_gate" toml:"energy_gate" yaml:"energy_gate"`
	ConfidenceGate float64 `json:"confidence_gate" toml:"confidence_gate" yaml:"confidence_gate"`

	// Jump limiter: adjacent voiced frames further apart than this are
	// octave-corrected or clamped to the previous frame
	JumpLimitCents float64 `json:"jump_limit_cents" toml:"jump_limit_cents" yaml:"jump_limit_cents"`

	// Outlier rejection
	OutlierK         float64 `json:"outlier_k" toml:"outlier_k" yaml:"outlier_k"`
	MinOutlierPoints int     `json:"min_outlier_points" toml:"min_outlier_points" yaml:"min_outlier_points"`

	// Interior gaps longer than this are not interpolated; 0 fills every
	// interior gap
	InterpolationMaxGap int `json:"interpolation_max_gap" toml:"interpolation_max_gap" yaml:"interpolation_max_gap"`

	// Run-wise smoothing
	SmoothingWindow int `json:"smoothing_window" toml:"smoothing_window" yaml:"smoothing_window"`
	SmoothingOrder  int `json:"smoothing_order" toml:"smoothing_order" yaml:"smoothing_order"`

	// Consensus veto against the secondary estimator
	VetoCents      float64 `json:"veto_cents" toml:"veto_cents" yaml:"veto_cents"`
	VetoConfidence float64 `json:"veto_confidence" toml:"veto_confidence" yaml:"veto_confidence"`

	// Hold-bridge of short unvoiced gaps
	MaxGapFrames int `json:"max_gap_frames" toml:"max_gap_frames" yaml:"max_gap_frames"`

	// Beat stabilization
	StabilityCents float64 `json:"stability_cents" toml:"stability_cents" yaml:"stability_cents"`
	MinBeatFrames  int     `json:"min_beat_frames" toml:"min_beat_frames" yaml:"min_beat_frames"`
	HeldNoteCents  float64 `json:"held_note_cents" toml:"held_note_cents" yaml:"held_note_cents"`
}

// DefaultConfig returns the thresholds tuned for sung vocals
func DefaultConfig() *Config {
	return &Config{
		EnergyGate:          0.15,
		ConfidenceGate:      0.6,
		JumpLimitCents:      600,
		OutlierK:            1.5,
		MinOutlierPoints:    4,
		InterpolationMaxGap: 0,
		SmoothingWindow:     9,
		SmoothingOrder:      3,
		VetoCents:           120,
		VetoConfidence:      0.75,
		MaxGapFrames:        12,
		StabilityCents:      80,
		MinBeatFrames:       5,
		HeldNoteCents:       200,
	}
}

// Validate rejects configurations the stages cannot run with
func (c *Config) Validate() error {
	if c.SmoothingWindow <= 0 || c.SmoothingWindow%2 == 0 {
		return fmt.Errorf("smoothing_window must be a positive odd number, got %d", c.SmoothingWindow)
	}
	if c.SmoothingOrder < 0 || c.SmoothingOrder >= c.SmoothingWindow {
		return fmt.Errorf("smoothing_order must be in [0, smoothing_window), got %d", c.SmoothingOrder)
	}
	if c.MaxGapFrames < 0 || c.InterpolationMaxGap < 0 {
		return fmt.Errorf("gap limits must not be negative")
	}
	if c.MinBeatFrames < 0 || c.MinOutlierPoints < 0 {
		return fmt.Errorf("minimum frame counts must not be negative")
	}
	for name, v := range map[string]float64{
		"energy_gate":      c.EnergyGate,
		"confidence_gate":  c.ConfidenceGate,
		"jump_limit_cents": c.JumpLimitCents,
		"outlier_k":        c.OutlierK,
		"veto_cents":       c.VetoCents,
		"veto_confidence":  c.VetoConfidence,
		"stability_cents":  c.StabilityCents,
		"held_note_cents":  c.HeldNoteCents,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %v", name, v)
		}
	}
	return nil
}
