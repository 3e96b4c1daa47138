package contour

// InterpolateGaps fills unvoiced frames lying strictly between two voiced
// frames by linear interpolation over frame index. Leading and trailing
// unvoiced runs stay unvoiced. maxGap > 0 leaves longer gaps alone.
func InterpolateGaps(frequency []float64, maxGap int) []float64 {
	out := normalizeUnvoiced(frequency)
	forEachInteriorGap(out, func(start, end int) {
		if maxGap > 0 && end-start > maxGap {
			return
		}
		left, right := out[start-1], out[end]
		span := float64(end - start + 1)
		for i := start; i < end; i++ {
			t := float64(i-start+1) / span
			out[i] = left + t*(right-left)
		}
	})
	return out
}

// BridgeGaps holds the preceding voiced value across unvoiced gaps of at most
// maxGapFrames frames that have a voiced frame on both sides
func BridgeGaps(frequency []float64, maxGapFrames int) []float64 {
	out := normalizeUnvoiced(frequency)
	forEachInteriorGap(out, func(start, end int) {
		if end-start > maxGapFrames {
			return
		}
		hold := out[start-1]
		for i := start; i < end; i++ {
			out[i] = hold
		}
	})
	return out
}

// forEachInteriorGap calls fn with [start, end) for every maximal unvoiced run
// bounded by voiced frames on both sides. fn may write into the gap.
func forEachInteriorGap(frequency []float64, fn func(start, end int)) {
	i := 0
	for i < len(frequency) {
		if IsVoiced(frequency[i]) {
			i++
			continue
		}
		start := i
		for i < len(frequency) && !IsVoiced(frequency[i]) {
			i++
		}
		if start > 0 && i < len(frequency) {
			fn(start, i)
		}
	}
}
