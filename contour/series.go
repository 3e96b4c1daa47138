// Package contour holds the frame-indexed pitch representation shared by every
// cleanup stage, and the stages themselves: voicing gate, octave correction,
// outlier rejection, gap filling, run-wise smoothing, estimator consensus and
// beat-aware stabilization.
//
// Stages take a frequency slice and return a new slice of the same length.
// Unvoiced frames are NaN on output; on input any value that is not finite and
// positive counts as unvoiced.
package contour

import (
	"errors"
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-canto/algorithms/tonal"
)

var (
	// ErrLengthMismatch is returned when parallel series differ in length
	ErrLengthMismatch = errors.New("contour: parallel series length mismatch")

	// ErrNonIncreasingTimes is returned when timestamps are not strictly increasing
	ErrNonIncreasingTimes = errors.New("contour: timestamps must be strictly increasing")

	// ErrEmptySeries is returned when a series has no frames
	ErrEmptySeries = errors.New("contour: empty series")
)

// DefaultHop is the frame interval assumed for single-frame series
const DefaultHop = 0.01

// FrameSeries is the struct-of-arrays pitch track threaded through the
// pipeline. Confidence and Energy may be nil; when present they have the same
// length as Times.
type FrameSeries struct {
	Times      []float64 `json:"times"`
	Frequency  []float64 `json:"frequency"`
	Confidence []float64 `json:"confidence,omitempty"`
	Energy     []float64 `json:"energy,omitempty"`
}

// NewFrameSeries validates alignment and returns a series that owns copies of
// the inputs
func NewFrameSeries(times, frequency, confidence, energy []float64) (*FrameSeries, error) {
	if len(times) == 0 {
		return nil, ErrEmptySeries
	}
	if len(frequency) != len(times) {
		return nil, fmt.Errorf("%w: %d times, %d frequencies", ErrLengthMismatch, len(times), len(frequency))
	}
	if confidence != nil && len(confidence) != len(times) {
		return nil, fmt.Errorf("%w: %d times, %d confidence values", ErrLengthMismatch, len(times), len(confidence))
	}
	if energy != nil && len(energy) != len(times) {
		return nil, fmt.Errorf("%w: %d times, %d energy values", ErrLengthMismatch, len(times), len(energy))
	}
	for i := 1; i < len(times); i++ {
		if !(times[i] > times[i-1]) {
			return nil, fmt.Errorf("%w: times[%d]=%v after %v", ErrNonIncreasingTimes, i, times[i], times[i-1])
		}
	}

	return &FrameSeries{
		Times:      clone(times),
		Frequency:  normalizeUnvoiced(frequency),
		Confidence: clone(confidence),
		Energy:     clone(energy),
	}, nil
}

// UniformTimes returns n timestamps i*hop
func UniformTimes(n int, hop float64) []float64 {
	times := make([]float64, n)
	for i := range times {
		times[i] = float64(i) * hop
	}
	return times
}

// Len returns the number of frames
func (s *FrameSeries) Len() int {
	return len(s.Times)
}

// Hop returns the frame interval, DefaultHop when there is a single frame
func (s *FrameSeries) Hop() float64 {
	return hopOf(s.Times)
}

func hopOf(times []float64) float64 {
	if len(times) > 1 {
		return times[1] - times[0]
	}
	return DefaultHop
}

// VoicedCount returns the number of voiced frames
func (s *FrameSeries) VoicedCount() int {
	return CountVoiced(s.Frequency)
}

// WithFrequency returns a copy of s carrying a replacement frequency series
// of identical length
func (s *FrameSeries) WithFrequency(frequency []float64) (*FrameSeries, error) {
	if len(frequency) != len(s.Times) {
		return nil, fmt.Errorf("%w: %d frames, %d frequencies", ErrLengthMismatch, len(s.Times), len(frequency))
	}
	return &FrameSeries{
		Times:      s.Times,
		Frequency:  normalizeUnvoiced(frequency),
		Confidence: s.Confidence,
		Energy:     s.Energy,
	}, nil
}

// ConfidenceAt returns the confidence of frame i, or fallback when the series
// carries none
func (s *FrameSeries) ConfidenceAt(i int, fallback float64) float64 {
	if s.Confidence == nil {
		return fallback
	}
	return s.Confidence[i]
}

// BeatGrid is an ordered list of beat timestamps (seconds) and a tempo
type BeatGrid struct {
	Times []float64 `json:"times"`
	Tempo float64   `json:"tempo"`
}

// Validate checks that beat times are strictly increasing
func (g BeatGrid) Validate() error {
	for i := 1; i < len(g.Times); i++ {
		if !(g.Times[i] > g.Times[i-1]) {
			return fmt.Errorf("%w: beat %d at %v after %v", ErrNonIncreasingTimes, i, g.Times[i], g.Times[i-1])
		}
	}
	return nil
}

// IsVoiced reports whether a frequency value marks a voiced frame
func IsVoiced(f float64) bool {
	return tonal.IsVoiced(f)
}

// CountVoiced returns the number of voiced values
func CountVoiced(frequency []float64) int {
	n := 0
	for _, f := range frequency {
		if IsVoiced(f) {
			n++
		}
	}
	return n
}

// VoicedValues returns the voiced values in order
func VoicedValues(frequency []float64) []float64 {
	values := make([]float64, 0, len(frequency))
	for _, f := range frequency {
		if IsVoiced(f) {
			values = append(values, f)
		}
	}
	return values
}

// Run is a half-open range [Start, End) of consecutive voiced frames
type Run struct {
	Start int
	End   int
}

// Len returns the number of frames in the run
func (r Run) Len() int {
	return r.End - r.Start
}

// VoicedRuns partitions the voiced frames into maximal contiguous runs
func VoicedRuns(frequency []float64) []Run {
	var runs []Run
	start := -1
	for i, f := range frequency {
		switch {
		case IsVoiced(f) && start < 0:
			start = i
		case !IsVoiced(f) && start >= 0:
			runs = append(runs, Run{Start: start, End: i})
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, Run{Start: start, End: len(frequency)})
	}
	return runs
}

func clone(values []float64) []float64 {
	if values == nil {
		return nil
	}
	out := make([]float64, len(values))
	copy(out, values)
	return out
}

// normalizeUnvoiced copies frequency, writing NaN for every unvoiced frame
func normalizeUnvoiced(frequency []float64) []float64 {
	out := make([]float64, len(frequency))
	for i, f := range frequency {
		if IsVoiced(f) {
			out[i] = f
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

func nan() float64 {
	return math.NaN()
}
