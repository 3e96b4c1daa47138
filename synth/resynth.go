// Package synth renders a pitch contour as a phase-continuous sine wave
package synth

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-canto/algorithms/tonal"
)

// Config holds the rendering parameters
type Config struct {
	SampleRate int     `json:"sample_rate" toml:"sample_rate" yaml:"sample_rate"`
	HopSize    int     `json:"hop_size" toml:"hop_size" yaml:"hop_size"`
	Amplitude  float64 `json:"amplitude" toml:"amplitude" yaml:"amplitude"`
}

// DefaultConfig matches the analysis frame layout
func DefaultConfig() *Config {
	return &Config{
		SampleRate: 22050,
		HopSize:    256,
		Amplitude:  0.3,
	}
}

// Waveform is a mono sample buffer
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the buffer length in seconds
func (w *Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Resynthesizer renders one hop of sine per frame
type Resynthesizer struct {
	config *Config
}

// NewResynthesizer creates a renderer; a nil config uses the defaults
func NewResynthesizer(cfg *Config) (*Resynthesizer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.SampleRate <= 0 || cfg.HopSize <= 0 {
		return nil, fmt.Errorf("sample rate and hop size must be positive, got %d and %d", cfg.SampleRate, cfg.HopSize)
	}
	return &Resynthesizer{config: cfg}, nil
}

// Render returns len(frequency)*hop samples. The oscillator phase carries
// across voiced frames and resets to zero on every unvoiced frame, which is
// rendered as silence.
func (r *Resynthesizer) Render(frequency []float64) *Waveform {
	hop := r.config.HopSize
	sr := float64(r.config.SampleRate)
	samples := make([]float64, len(frequency)*hop)

	phase := 0.0
	for i, f := range frequency {
		if !tonal.IsVoiced(f) {
			phase = 0
			continue
		}
		step := 2 * math.Pi * f / sr
		span := samples[i*hop : (i+1)*hop]
		for k := range span {
			span[k] = r.config.Amplitude * math.Sin(step*float64(k)+phase)
		}
		phase = math.Mod(phase+step*float64(hop), 2*math.Pi)
	}

	return &Waveform{Samples: samples, SampleRate: r.config.SampleRate}
}
