package contour

import "github.com/RyanBlaney/sonido-canto/algorithms/tonal"

// ConsensusVeto unvoices primary frames that disagree with the secondary
// estimate by more than maxCents while primary confidence is below
// minConfidence. Frames where either series is unvoiced are kept. A nil
// confidence series vetoes on disagreement alone.
func ConsensusVeto(primary, secondary, confidence []float64, maxCents, minConfidence float64) []float64 {
	out := normalizeUnvoiced(primary)
	n := min(len(out), len(secondary))
	for i := 0; i < n; i++ {
		if !IsVoiced(out[i]) || !IsVoiced(secondary[i]) {
			continue
		}
		if tonal.CentsDistance(out[i], secondary[i]) <= maxCents {
			continue
		}
		if confidence == nil || confidence[i] < minConfidence {
			out[i] = nan()
		}
	}
	return out
}
