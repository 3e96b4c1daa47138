package contour

import (
	"fmt"

	"github.com/RyanBlaney/sonido-canto/algorithms/common"
	"github.com/RyanBlaney/sonido-canto/algorithms/filters"
)

// SegmentSmoother smooths each voiced run on its own. Runs at least as long as
// the window get a Savitzky-Golay fit, shorter runs collapse to their median.
type SegmentSmoother struct {
	filter *filters.SavitzkyGolay
}

// NewSegmentSmoother creates a smoother with the given odd window and
// polynomial order
func NewSegmentSmoother(window, order int) (*SegmentSmoother, error) {
	sg, err := filters.NewSavitzkyGolay(window, order)
	if err != nil {
		return nil, fmt.Errorf("segment smoother: %w", err)
	}
	return &SegmentSmoother{filter: sg}, nil
}

// Smooth returns the smoothed series; unvoiced frames are untouched
func (s *SegmentSmoother) Smooth(frequency []float64) []float64 {
	out := normalizeUnvoiced(frequency)
	for _, run := range VoicedRuns(out) {
		values := out[run.Start:run.End]
		if run.Len() >= s.filter.WindowSize() {
			smoothed, err := s.filter.Apply(values)
			if err == nil {
				copy(values, smoothed)
				continue
			}
		}
		median := common.Median(values)
		for i := range values {
			values[i] = median
		}
	}
	return out
}
