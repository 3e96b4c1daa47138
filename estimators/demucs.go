package estimators

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RyanBlaney/sonido-canto/logging"
	"github.com/RyanBlaney/sonido-canto/transcode"
)

// DemucsConfig configures the Demucs command line adapter
type DemucsConfig struct {
	Path    string `json:"path" toml:"path" yaml:"path"`
	Model   string `json:"model" toml:"model" yaml:"model"`
	Device  string `json:"device" toml:"device" yaml:"device"` // cpu or cuda, empty lets demucs choose
	WorkDir string `json:"work_dir" toml:"work_dir" yaml:"work_dir"`
}

// DefaultDemucsConfig returns the htdemucs model
func DefaultDemucsConfig() *DemucsConfig {
	return &DemucsConfig{
		Path:  "demucs",
		Model: "htdemucs",
	}
}

// Demucs separates vocals by running Demucs in two-stem mode and decoding the
// vocal stem back to the input's sample rate
type Demucs struct {
	config *DemucsConfig
	run    runner
	load   func(ctx context.Context, path string, sampleRate int) (*transcode.AudioData, error)
	logger logging.Logger
}

// NewDemucs creates the adapter. decoder resamples the vocal stem; nil uses a
// default ffmpeg decoder.
func NewDemucs(cfg *DemucsConfig, decoder *transcode.DecoderConfig) *Demucs {
	if cfg == nil {
		cfg = DefaultDemucsConfig()
	}
	if decoder == nil {
		decoder = transcode.DefaultDecoderConfig()
	}
	return &Demucs{
		config: cfg,
		run:    execRunner,
		load: func(ctx context.Context, path string, sampleRate int) (*transcode.AudioData, error) {
			dc := *decoder
			dc.TargetSampleRate = sampleRate
			dc.TargetChannels = 1
			return transcode.NewDecoder(&dc).DecodeFile(ctx, path)
		},
		logger: logging.WithFields(logging.Fields{"component": "demucs"}),
	}
}

// Separate implements pipeline.Separator
func (d *Demucs) Separate(ctx context.Context, audio *transcode.AudioData) (*transcode.AudioData, error) {
	dir, err := os.MkdirTemp(d.config.WorkDir, "demucs-*")
	if err != nil {
		return nil, fmt.Errorf("demucs: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "mix.wav")
	if err := transcode.WriteWAV(input, audio.Mono(), audio.SampleRate); err != nil {
		return nil, fmt.Errorf("demucs: %w", err)
	}

	args := []string{"--two-stems=vocals", "-n", d.config.Model, "-o", dir}
	if d.config.Device != "" {
		args = append(args, "-d", d.config.Device)
	}
	args = append(args, input)

	d.logger.WithContext(ctx).Debug("Running Demucs", logging.Fields{"model": d.config.Model})
	if _, err := d.run(ctx, d.config.Path, args...); err != nil {
		return nil, fmt.Errorf("demucs: %w", err)
	}

	stem := filepath.Join(dir, d.config.Model, "mix", "vocals.wav")
	vocals, err := d.load(ctx, stem, audio.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("demucs: load vocal stem: %w", err)
	}
	vocals.Source = audio.Source
	return vocals, nil
}
