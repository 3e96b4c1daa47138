// Package notes turns a cleaned pitch contour into discrete note events
package notes

import (
	"fmt"

	"github.com/RyanBlaney/sonido-canto/algorithms/tonal"
)

// Note is one sung note. Times are seconds, deviations are cents from the
// assigned integer MIDI pitch.
type Note struct {
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Duration     float64 `json:"duration"`
	Midi         int     `json:"midi"`
	NoteName     string  `json:"note_name"`
	CentsOffMean float64 `json:"cents_off_mean"`
	CentsOffStd  float64 `json:"cents_off_std"`
}

// Frequency returns the equal-tempered frequency of the assigned pitch
func (n Note) Frequency() float64 {
	return tonal.MidiToHz(float64(n.Midi))
}

func (n Note) String() string {
	return fmt.Sprintf("%s %.3fs-%.3fs (%+.1f¢)", n.NoteName, n.Start, n.End, n.CentsOffMean)
}
