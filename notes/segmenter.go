package notes

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-canto/algorithms/common"
	"github.com/RyanBlaney/sonido-canto/algorithms/tonal"
	"github.com/RyanBlaney/sonido-canto/logging"
)

// Segmenter groups voiced frames into notes with a semitone change threshold
// and minimum length hysteresis
type Segmenter struct {
	config *Config
	logger logging.Logger
}

// NewSegmenter creates a segmenter; a nil config uses the defaults
func NewSegmenter(cfg *Config) *Segmenter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Segmenter{
		config: cfg,
		logger: logging.WithFields(logging.Fields{"component": "note_segmenter"}),
	}
}

// Segment returns the notes found in frequency, ordered by start time.
// times and frequency must have the same length.
func (s *Segmenter) Segment(times, frequency []float64) ([]Note, error) {
	if len(times) != len(frequency) {
		return nil, fmt.Errorf("segment: %d times, %d frequencies", len(times), len(frequency))
	}

	hop := 0.01
	if len(times) > 1 {
		hop = times[1] - times[0]
	}

	notes := []Note{}
	var run []int
	flush := func() {
		if len(run) >= s.config.MinFrames {
			if note, ok := s.buildNote(times, frequency, run, hop); ok {
				notes = append(notes, note)
			}
		}
		run = run[:0]
	}

	for i, f := range frequency {
		if !tonal.IsVoiced(f) {
			flush()
			continue
		}
		if len(run) > 0 {
			prev := tonal.HzToMidi(frequency[run[len(run)-1]])
			if math.Abs(tonal.HzToMidi(f)-prev) > s.config.ChangeThreshold {
				flush()
			}
		}
		run = append(run, i)
	}
	flush()

	s.logger.Debug("Segmented contour", logging.Fields{
		"frames": len(frequency),
		"notes":  len(notes),
	})
	return notes, nil
}

func (s *Segmenter) buildNote(times, frequency []float64, run []int, hop float64) (Note, bool) {
	start := times[run[0]]
	end := times[run[len(run)-1]] + hop
	if end-start < s.config.MinDuration {
		return Note{}, false
	}

	midis := make([]float64, len(run))
	for j, idx := range run {
		midis[j] = tonal.HzToMidi(frequency[idx])
	}
	pitch := int(math.RoundToEven(common.Median(midis)))

	cents := make([]float64, len(midis))
	for j, m := range midis {
		cents[j] = (m - float64(pitch)) * 100
	}
	mean, std := common.PopMeanStdDev(cents)

	return Note{
		Start:        start,
		End:          end,
		Duration:     end - start,
		Midi:         pitch,
		NoteName:     tonal.MidiToNoteName(pitch),
		CentsOffMean: mean,
		CentsOffStd:  std,
	}, true
}
