package temporal

import (
	"math"

	"github.com/RyanBlaney/sonido-canto/algorithms/common"
)

// Energy computes frame-level energy envelopes
type Energy struct {
	frameSize int
	hopSize   int
}

// NewEnergy creates a new energy calculator
func NewEnergy(frameSize, hopSize int) *Energy {
	return &Energy{
		frameSize: frameSize,
		hopSize:   hopSize,
	}
}

// ComputeFrameRMS returns the RMS of frames centered on i*hopSize (zero
// padded at the edges), 1 + len(signal)/hopSize values
func (e *Energy) ComputeFrameRMS(signal []float64) []float64 {
	if e.hopSize <= 0 || e.frameSize <= 0 {
		return []float64{}
	}

	frames := 1 + len(signal)/e.hopSize
	half := e.frameSize / 2
	rms := make([]float64, frames)

	// Prefix sums of squares keep each frame O(1)
	prefix := make([]float64, len(signal)+1)
	for i, v := range signal {
		prefix[i+1] = prefix[i] + v*v
	}

	for i := range frames {
		start := i*e.hopSize - half
		end := start + e.frameSize
		lo := max(start, 0)
		hi := min(end, len(signal))
		if hi <= lo {
			continue
		}
		rms[i] = math.Sqrt((prefix[hi] - prefix[lo]) / float64(e.frameSize))
	}

	return rms
}

// ComputeNormalizedRMS returns frame RMS scaled into [0, 1] by its peak
func (e *Energy) ComputeNormalizedRMS(signal []float64) []float64 {
	return common.MaxNormalize(e.ComputeFrameRMS(signal), 1e-6)
}
