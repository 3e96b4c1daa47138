// Package transcode converts audio files to and from the float PCM buffers
// the analysis pipeline works on
package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-canto/logging"
)

// AudioData is an interleaved PCM buffer with samples in [-1, 1]
type AudioData struct {
	PCM        []float64     `json:"-"`
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	Duration   time.Duration `json:"duration"`
	Source     string        `json:"source,omitempty"`
}

// NewAudioData wraps interleaved samples and derives the duration
func NewAudioData(pcm []float64, sampleRate, channels int, source string) *AudioData {
	if channels <= 0 {
		channels = 1
	}
	var duration time.Duration
	if sampleRate > 0 {
		frames := len(pcm) / channels
		duration = time.Duration(math.Round(float64(frames) * float64(time.Second) / float64(sampleRate)))
	}
	return &AudioData{
		PCM:        pcm,
		SampleRate: sampleRate,
		Channels:   channels,
		Duration:   duration,
		Source:     source,
	}
}

// Mono returns the channel average of the buffer. A mono buffer is returned
// as is.
func (a *AudioData) Mono() []float64 {
	if a.Channels <= 1 {
		return a.PCM
	}
	frames := len(a.PCM) / a.Channels
	mono := make([]float64, frames)
	for i := range mono {
		sum := 0.0
		for c := 0; c < a.Channels; c++ {
			sum += a.PCM[i*a.Channels+c]
		}
		mono[i] = sum / float64(a.Channels)
	}
	return mono
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate" toml:"target_sample_rate" yaml:"target_sample_rate"`
	TargetChannels   int           `json:"target_channels" toml:"target_channels" yaml:"target_channels"`
	MaxDuration      time.Duration `json:"max_duration" toml:"max_duration" yaml:"max_duration"`
	FFmpegPath       string        `json:"ffmpeg_path" toml:"ffmpeg_path" yaml:"ffmpeg_path"`
	FFprobePath      string        `json:"ffprobe_path" toml:"ffprobe_path" yaml:"ffprobe_path"`
	Timeout          time.Duration `json:"timeout" toml:"timeout" yaml:"timeout"`

	// Peak normalization keeps the energy gate meaningful across recordings
	// made at different levels
	EnableNormalization bool    `json:"enable_normalization" toml:"enable_normalization" yaml:"enable_normalization"`
	TargetPeak          float64 `json:"target_peak" toml:"target_peak" yaml:"target_peak"` // dBFS
}

// DefaultDecoderConfig returns the analysis layout: 22.05 kHz mono
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate:    22050,
		TargetChannels:      1,
		MaxDuration:         0, // No limit
		FFmpegPath:          "ffmpeg",
		FFprobePath:         "ffprobe",
		Timeout:             2 * time.Minute,
		EnableNormalization: false,
		TargetPeak:          -1.0,
	}
}

// AudioMetadata holds detected audio properties from ffprobe
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
	Format     string  `json:"format"`
}

// Decoder decodes audio files with ffmpeg
type Decoder struct {
	config *DecoderConfig
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{config: config}
}

// DecodeFile decodes a file into PCM at the configured rate and channel count
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "DecodeFile",
		"filename":  filename,
	}).WithContext(ctx)

	logger.Debug("Starting audio file decode")

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	metadata, err := d.probeAudioFile(ctx, filename)
	if err != nil {
		logger.Error(err, "Failed to probe audio file")
		return nil, err
	}

	logger.Debug("Audio metadata detected", logging.Fields{
		"input_sample_rate": metadata.SampleRate,
		"input_channels":    metadata.Channels,
		"input_codec":       metadata.Codec,
		"input_duration":    metadata.Duration,
	})

	args := append([]string{"-v", "error", "-i", filename}, d.buildFFmpegArgs()...)
	cmd := exec.CommandContext(ctx, d.config.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	startTime := time.Now()
	output, err := cmd.Output()
	if err != nil {
		logger.Error(err, "FFmpeg decode failed", logging.Fields{"stderr": stderr.String()})
		return nil, fmt.Errorf("ffmpeg decode failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, fmt.Errorf("no audio samples decoded from %s", filename)
	}

	audio := NewAudioData(samples, d.config.TargetSampleRate, d.config.TargetChannels, filepath.Base(filename))

	logger.Debug("Audio file decoded", logging.Fields{
		"samples":     len(samples),
		"duration":    audio.Duration.Seconds(),
		"decode_time": time.Since(startTime).Seconds(),
	})

	return audio, nil
}

// buildFFmpegArgs returns the output half of an ffmpeg command line
func (d *Decoder) buildFFmpegArgs() []string {
	var args []string
	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.3f", d.config.MaxDuration.Seconds()))
	}
	args = append(args,
		"-map", "0:a:0",
		"-vn",
		"-f", "f64le",
		"-ac", strconv.Itoa(d.config.TargetChannels),
		"-ar", strconv.Itoa(d.config.TargetSampleRate),
	)
	if filter := d.buildNormalizationFilter(); filter != "" {
		args = append(args, "-af", filter)
	}
	return append(args, "pipe:1")
}

func (d *Decoder) buildNormalizationFilter() string {
	if !d.config.EnableNormalization {
		return ""
	}
	return fmt.Sprintf("dynaudnorm=p=%.3f", math.Pow(10, d.config.TargetPeak/20))
}

func (d *Decoder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.config.Timeout > 0 {
		return context.WithTimeout(ctx, d.config.Timeout)
	}
	return context.WithCancel(ctx)
}

// probeAudioFile uses ffprobe to get audio information from a file
func (d *Decoder) probeAudioFile(ctx context.Context, filename string) (*AudioMetadata, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0",
		filename,
	}

	output, err := exec.CommandContext(ctx, d.config.FFprobePath, args...).Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseFFprobeOutput(output)
}

// parseFFprobeOutput parses ffprobe JSON to extract audio metadata
func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType     string `json:"codec_type"`
			CodecName     string `json:"codec_name"`
			SampleRate    string `json:"sample_rate"`
			Channels      int    `json:"channels"`
			Duration      string `json:"duration"`
			BitRate       string `json:"bit_rate"`
			CodecLongName string `json:"codec_long_name"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no audio streams found")
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("stream is not audio type: %s", stream.CodecType)
	}

	sampleRate, err := strconv.Atoi(stream.SampleRate)
	if err != nil {
		sampleRate = 44100
	}
	duration, err := strconv.ParseFloat(stream.Duration, 64)
	if err != nil {
		duration = 0
	}
	bitrate, err := strconv.Atoi(stream.BitRate)
	if err != nil {
		bitrate = 0
	}

	if stream.Channels <= 0 || stream.Channels > 8 {
		return nil, fmt.Errorf("invalid channel count: %d", stream.Channels)
	}

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
		Format:     stream.CodecLongName,
	}, nil
}

// bytesToFloat64 converts raw little-endian float64 bytes, dropping a trailing
// partial sample
func bytesToFloat64(data []byte) []float64 {
	data = data[:len(data)-(len(data)%8)]
	if len(data) == 0 {
		return nil
	}

	samples := make([]float64, len(data)/8)
	for i := range samples {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		samples[i] = math.Float64frombits(bits)
	}
	return samples
}

// ValidateConfig checks the configuration and that ffmpeg and ffprobe run
func (d *Decoder) ValidateConfig(ctx context.Context) error {
	if d.config.TargetSampleRate <= 0 {
		return fmt.Errorf("target sample rate must be positive: %d", d.config.TargetSampleRate)
	}
	if d.config.TargetChannels <= 0 || d.config.TargetChannels > 8 {
		return fmt.Errorf("target channels must be between 1 and 8: %d", d.config.TargetChannels)
	}

	for _, bin := range []string{d.config.FFmpegPath, d.config.FFprobePath} {
		if err := exec.CommandContext(ctx, bin, "-version").Run(); err != nil {
			return fmt.Errorf("%s not available: %w", bin, err)
		}
	}
	return nil
}
