package estimators

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/RyanBlaney/sonido-canto/logging"
	"github.com/RyanBlaney/sonido-canto/pipeline"
	"github.com/RyanBlaney/sonido-canto/transcode"
)

// CrepeConfig configures the CREPE command line adapter
type CrepeConfig struct {
	Path          string `json:"path" toml:"path" yaml:"path"`
	ModelCapacity string `json:"model_capacity" toml:"model_capacity" yaml:"model_capacity"` // tiny, small, medium, large, full
	Viterbi       bool   `json:"viterbi" toml:"viterbi" yaml:"viterbi"`
	WorkDir       string `json:"work_dir" toml:"work_dir" yaml:"work_dir"` // empty uses the system temp dir
}

// DefaultCrepeConfig returns the medium model with Viterbi decoding
func DefaultCrepeConfig() *CrepeConfig {
	return &CrepeConfig{
		Path:          "crepe",
		ModelCapacity: "medium",
		Viterbi:       true,
	}
}

// Crepe runs the CREPE neural pitch tracker as an external process. Its step
// size is set so frames line up with the analysis hop.
type Crepe struct {
	config *CrepeConfig
	run    runner
	logger logging.Logger
}

// NewCrepe creates the adapter; a nil config uses the defaults
func NewCrepe(cfg *CrepeConfig) *Crepe {
	if cfg == nil {
		cfg = DefaultCrepeConfig()
	}
	return &Crepe{
		config: cfg,
		run:    execRunner,
		logger: logging.WithFields(logging.Fields{"component": "crepe"}),
	}
}

// Track implements pipeline.PitchTracker. CREPE has no range parameter, so
// rng is only logged.
func (c *Crepe) Track(ctx context.Context, samples []float64, sampleRate, hopSize int, rng pipeline.PitchRange) (*pipeline.PitchTrack, error) {
	dir, err := os.MkdirTemp(c.config.WorkDir, "crepe-*")
	if err != nil {
		return nil, fmt.Errorf("crepe: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input.wav")
	if err := transcode.WriteWAV(input, samples, sampleRate); err != nil {
		return nil, fmt.Errorf("crepe: %w", err)
	}

	stepMs := float64(hopSize) / float64(sampleRate) * 1000
	args := []string{
		input,
		"--step-size", strconv.FormatFloat(stepMs, 'f', 4, 64),
		"--model-capacity", c.config.ModelCapacity,
		"--output", dir,
	}
	if c.config.Viterbi {
		args = append(args, "--viterbi")
	}

	c.logger.WithContext(ctx).Debug("Running CREPE", logging.Fields{
		"step_ms": stepMs,
		"min_hz":  rng.MinHz,
		"max_hz":  rng.MaxHz,
	})

	if _, err := c.run(ctx, c.config.Path, args...); err != nil {
		return nil, fmt.Errorf("crepe: %w", err)
	}

	f, err := os.Open(filepath.Join(dir, "input.f0.csv"))
	if err != nil {
		return nil, fmt.Errorf("crepe: missing output: %w", err)
	}
	defer f.Close()

	return parseCrepeCSV(f)
}

// parseCrepeCSV reads "time,frequency,confidence" rows. Zero frequencies are
// kept; the voicing gate decides what is voiced.
func parseCrepeCSV(r io.Reader) (*pipeline.PitchTrack, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("crepe: read header: %w", err)
	}
	if strings.TrimSpace(header[1]) != "frequency" || strings.TrimSpace(header[2]) != "confidence" {
		return nil, fmt.Errorf("crepe: unexpected header %v", header)
	}

	track := &pipeline.PitchTrack{}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("crepe: line %d: %w", line, err)
		}
		freq, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("crepe: line %d frequency: %w", line, err)
		}
		conf, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("crepe: line %d confidence: %w", line, err)
		}
		track.Frequency = append(track.Frequency, freq)
		track.Confidence = append(track.Confidence, conf)
	}

	if len(track.Frequency) == 0 {
		return nil, errors.New("crepe: no frames in output")
	}
	return track, nil
}
