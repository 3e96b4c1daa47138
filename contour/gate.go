package contour

// VoicingGate keeps a frame voiced only when its energy exceeds energyGate and
// its confidence exceeds confidenceGate. A nil energy or confidence series
// leaves that condition out.
func VoicingGate(frequency, confidence, energy []float64, energyGate, confidenceGate float64) []float64 {
	out := normalizeUnvoiced(frequency)
	for i := range out {
		if energy != nil && !(energy[i] > energyGate) {
			out[i] = nan()
			continue
		}
		if confidence != nil && !(confidence[i] > confidenceGate) {
			out[i] = nan()
		}
	}
	return out
}
