package pipeline

import (
	"fmt"

	"github.com/RyanBlaney/sonido-canto/contour"
	"github.com/RyanBlaney/sonido-canto/notes"
)

// Config holds the frame layout and every stage configuration
type Config struct {
	SampleRate int `json:"sample_rate" toml:"sample_rate" yaml:"sample_rate"`
	HopSize    int `json:"hop_size" toml:"hop_size" yaml:"hop_size"`

	// Tracker range used when the secondary estimate is too sparse to
	// narrow it
	MinFrequency float64 `json:"min_frequency" toml:"min_frequency" yaml:"min_frequency"`
	MaxFrequency float64 `json:"max_frequency" toml:"max_frequency" yaml:"max_frequency"`

	// Apply the 600 cent jump limiter after the octave corrector
	JumpLimiter bool `json:"jump_limiter" toml:"jump_limiter" yaml:"jump_limiter"`

	// Resynthesis amplitude
	Amplitude float64 `json:"amplitude" toml:"amplitude" yaml:"amplitude"`

	Contour *contour.Config `json:"contour" toml:"contour" yaml:"contour"`
	Notes   *notes.Config   `json:"notes" toml:"notes" yaml:"notes"`
}

// DefaultConfig returns the defaults for sung vocals at 22.05 kHz
func DefaultConfig() *Config {
	return &Config{
		SampleRate:   22050,
		HopSize:      256,
		MinFrequency: 65,
		MaxFrequency: 1500,
		JumpLimiter:  true,
		Amplitude:    0.3,
		Contour:      contour.DefaultConfig(),
		Notes:        notes.DefaultConfig(),
	}
}

// FrameDuration returns the hop in seconds
func (c *Config) FrameDuration() float64 {
	return float64(c.HopSize) / float64(c.SampleRate)
}

// Validate rejects configurations the pipeline cannot run with
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.HopSize <= 0 {
		return fmt.Errorf("hop_size must be positive, got %d", c.HopSize)
	}
	if c.MinFrequency <= 0 || c.MaxFrequency <= c.MinFrequency {
		return fmt.Errorf("invalid frequency range [%v, %v]", c.MinFrequency, c.MaxFrequency)
	}
	if c.Amplitude < 0 {
		return fmt.Errorf("amplitude must not be negative, got %v", c.Amplitude)
	}
	if c.Contour == nil || c.Notes == nil {
		return fmt.Errorf("contour and notes sections are required")
	}
	if err := c.Contour.Validate(); err != nil {
		return fmt.Errorf("contour: %w", err)
	}
	if c.Notes.MinFrames < 0 || c.Notes.MinDuration < 0 || c.Notes.ChangeThreshold <= 0 {
		return fmt.Errorf("notes: thresholds must be positive")
	}
	return nil
}
