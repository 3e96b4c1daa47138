package contour

import (
	"strings"

	"github.com/RyanBlaney/sonido-canto/algorithms/common"
	"github.com/RyanBlaney/sonido-canto/algorithms/tonal"
)

// maxShapeSymbols bounds the direction string
const maxShapeSymbols = 50

// minSummaryPoints is the fewest voiced frames a summary is computed from
const minSummaryPoints = 3

// Summary describes the melodic shape of a cleaned contour
type Summary struct {
	MinHz     float64   `json:"min_hz"`
	MaxHz     float64   `json:"max_hz"`
	RangeHz   float64   `json:"range_hz"`
	StdHz     float64   `json:"std_hz"`
	Intervals []float64 `json:"intervals"`
	Shape     string    `json:"shape"`
}

// Summarize returns nil when fewer than three frames are voiced. Intervals are
// successive MIDI differences between voiced frames; Shape renders the sign of
// each interval as ↑, ↓ or =.
func Summarize(frequency []float64) *Summary {
	values := VoicedValues(frequency)
	if len(values) < minSummaryPoints {
		return nil
	}

	lo, hi := common.MinMax(values)
	s := &Summary{
		MinHz:     lo,
		MaxHz:     hi,
		RangeHz:   hi - lo,
		StdHz:     common.PopStdDev(values),
		Intervals: make([]float64, 0, len(values)-1),
	}

	var shape strings.Builder
	for i := 1; i < len(values); i++ {
		interval := tonal.HzToMidi(values[i]) - tonal.HzToMidi(values[i-1])
		s.Intervals = append(s.Intervals, interval)
		if i > maxShapeSymbols {
			continue
		}
		switch {
		case interval > 0:
			shape.WriteString("↑")
		case interval < 0:
			shape.WriteString("↓")
		default:
			shape.WriteString("=")
		}
	}
	s.Shape = shape.String()
	return s
}
