package notes

// Config holds the segmentation thresholds
type Config struct {
	// Semitone change between adjacent frames that starts a new note
	ChangeThreshold float64 `json:"change_threshold" toml:"change_threshold" yaml:"change_threshold"`

	// Runs with fewer frames are dropped
	MinFrames int `json:"min_frames" toml:"min_frames" yaml:"min_frames"`

	// Notes shorter than this (seconds) are dropped
	MinDuration float64 `json:"min_duration" toml:"min_duration" yaml:"min_duration"`
}

// DefaultConfig tolerates vibrato and portamento within one note
func DefaultConfig() *Config {
	return &Config{
		ChangeThreshold: 1.5,
		MinFrames:       5,
		MinDuration:     0.25,
	}
}
