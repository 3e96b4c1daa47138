package contour

import (
	"math"
	"sort"

	"github.com/RyanBlaney/sonido-canto/algorithms/common"
	"github.com/RyanBlaney/sonido-canto/algorithms/tonal"
)

// BeatStabilizer snaps pitch that is stable within a beat to its median and
// carries a held note across beats with no voiced frames
type BeatStabilizer struct {
	stabilityCents float64
	minFrames      int
	heldNoteCents  float64
}

// NewBeatStabilizer creates a stabilizer from the beat settings in cfg; a nil
// config uses the defaults
func NewBeatStabilizer(cfg *Config) *BeatStabilizer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &BeatStabilizer{
		stabilityCents: cfg.StabilityCents,
		minFrames:      cfg.MinBeatFrames,
		heldNoteCents:  cfg.HeldNoteCents,
	}
}

// IntervalKind classifies how a beat interval was handled
type IntervalKind int

const (
	IntervalSkipped IntervalKind = iota
	IntervalStable
	IntervalExpressive
	IntervalHeld
	IntervalSilent
)

// BeatReport counts interval outcomes for one stabilization pass
type BeatReport struct {
	Stable     int
	Expressive int
	Held       int
	Silent     int
	Skipped    int
}

func (r *BeatReport) add(kind IntervalKind) {
	switch kind {
	case IntervalStable:
		r.Stable++
	case IntervalExpressive:
		r.Expressive++
	case IntervalHeld:
		r.Held++
	case IntervalSilent:
		r.Silent++
	default:
		r.Skipped++
	}
}

// Stabilize processes every interval [beats[i], beats[i+1]) in order.
// Statistics are read from the input series, writes go to the returned copy.
// Fewer than two beats returns the series unchanged.
func (bs *BeatStabilizer) Stabilize(times, frequency, beats []float64) ([]float64, BeatReport) {
	in := normalizeUnvoiced(frequency)
	out := normalizeUnvoiced(frequency)
	var report BeatReport

	lastPitch := math.NaN()
	for b := 0; b+1 < len(beats); b++ {
		lo := sort.SearchFloat64s(times, beats[b])
		hi := sort.SearchFloat64s(times, beats[b+1])
		if hi > len(in) {
			hi = len(in)
		}
		if hi-lo < bs.minFrames {
			report.add(IntervalSkipped)
			continue
		}

		voiced := VoicedValues(in[lo:hi])
		if len(voiced) == 0 {
			kind := bs.holdThroughSilence(in, out, lo, hi, lastPitch)
			report.add(kind)
			continue
		}

		center := common.Median(voiced)
		cents := make([]float64, len(voiced))
		for i, f := range voiced {
			cents[i] = tonal.Cents(f, center)
		}
		lastPitch = center

		if common.PopStdDev(cents) < bs.stabilityCents {
			for i := lo; i < hi; i++ {
				out[i] = center
			}
			report.add(IntervalStable)
		} else {
			report.add(IntervalExpressive)
		}
	}

	return out, report
}

// holdThroughSilence fills an interval without voiced frames with lastPitch
// when the frame following one of its frames resumes close to that pitch
func (bs *BeatStabilizer) holdThroughSilence(in, out []float64, lo, hi int, lastPitch float64) IntervalKind {
	if !IsVoiced(lastPitch) {
		return IntervalSilent
	}
	for j := lo; j < hi; j++ {
		if j+1 >= len(in) || !IsVoiced(in[j+1]) {
			continue
		}
		if tonal.CentsDistance(in[j+1], lastPitch) < bs.heldNoteCents {
			for i := lo; i < hi; i++ {
				out[i] = lastPitch
			}
			return IntervalHeld
		}
		break
	}
	return IntervalSilent
}
