// Package config loads the command line configuration from TOML or YAML
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-canto/estimators"
	"github.com/RyanBlaney/sonido-canto/logging"
	"github.com/RyanBlaney/sonido-canto/pipeline"
	"github.com/RyanBlaney/sonido-canto/transcode"
)

// Tracker names accepted for the primary pitch tracker
const (
	TrackerYin   = "yin"
	TrackerCrepe = "crepe"
)

// Config is the complete file configuration
type Config struct {
	LogLevel   string `toml:"log_level" yaml:"log_level"`
	Tracker    string `toml:"tracker" yaml:"tracker"`
	Separation bool   `toml:"separation" yaml:"separation"`
	Workers    int    `toml:"workers" yaml:"workers"`

	Pipeline *pipeline.Config         `toml:"pipeline" yaml:"pipeline"`
	Decoder  *transcode.DecoderConfig `toml:"decoder" yaml:"decoder"`
	Yin      *estimators.YinConfig    `toml:"yin" yaml:"yin"`
	Crepe    *estimators.CrepeConfig  `toml:"crepe" yaml:"crepe"`
	Demucs   *estimators.DemucsConfig `toml:"demucs" yaml:"demucs"`
	Beats    *estimators.BeatConfig   `toml:"beats" yaml:"beats"`
}

// Default returns the built-in configuration: YIN tracking without
// separation, so no external models are needed
func Default() *Config {
	return &Config{
		LogLevel:   "info",
		Tracker:    TrackerYin,
		Separation: false,
		Workers:    2,
		Pipeline:   pipeline.DefaultConfig(),
		Decoder:    transcode.DefaultDecoderConfig(),
		Yin:        estimators.DefaultYinConfig(),
		Crepe:      estimators.DefaultCrepeConfig(),
		Demucs:     estimators.DefaultDemucsConfig(),
		Beats:      estimators.DefaultBeatConfig(),
	}
}

// Load reads path over the defaults. The format follows the extension:
// .toml, or .yaml/.yml. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.normalize()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file %s does not exist", path)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		decoder := toml.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize fills sections a file left empty and validates the result
func (c *Config) normalize() error {
	def := Default()
	if c.Pipeline == nil {
		c.Pipeline = def.Pipeline
	}
	if c.Pipeline.Contour == nil {
		c.Pipeline.Contour = def.Pipeline.Contour
	}
	if c.Pipeline.Notes == nil {
		c.Pipeline.Notes = def.Pipeline.Notes
	}
	if c.Decoder == nil {
		c.Decoder = def.Decoder
	}
	if c.Yin == nil {
		c.Yin = def.Yin
	}
	if c.Crepe == nil {
		c.Crepe = def.Crepe
	}
	if c.Demucs == nil {
		c.Demucs = def.Demucs
	}
	if c.Beats == nil {
		c.Beats = def.Beats
	}

	// Audio is always decoded at the analysis rate
	c.Decoder.TargetSampleRate = c.Pipeline.SampleRate
	c.Tracker = strings.ToLower(strings.TrimSpace(c.Tracker))

	return c.Validate()
}

// Validate checks every section
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	if c.Tracker != TrackerYin && c.Tracker != TrackerCrepe {
		return fmt.Errorf("tracker must be %q or %q, got %q", TrackerYin, TrackerCrepe, c.Tracker)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if c.Decoder.TargetChannels <= 0 || c.Decoder.TargetChannels > 8 {
		return fmt.Errorf("decoder: target_channels must be between 1 and 8, got %d", c.Decoder.TargetChannels)
	}
	if c.Yin.FrameSize <= 0 || c.Yin.Threshold <= 0 {
		return fmt.Errorf("yin: frame_size and threshold must be positive")
	}
	if c.Beats.MinBPM <= 0 || c.Beats.MaxBPM <= c.Beats.MinBPM {
		return fmt.Errorf("beats: invalid tempo range [%v, %v]", c.Beats.MinBPM, c.Beats.MaxBPM)
	}
	return nil
}

// Level returns the configured log level
func (c *Config) Level() logging.Level {
	return logging.ParseLevel(strings.ToLower(c.LogLevel))
}

// EncodeTOML renders the configuration as TOML
func (c *Config) EncodeTOML() ([]byte, error) {
	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	encoder.SetIndentTables(true)
	if err := encoder.Encode(c); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}
