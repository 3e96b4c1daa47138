package contour

import "github.com/RyanBlaney/sonido-canto/algorithms/tonal"

// OctavePolicy selects how an octave corrector treats adjacent voiced frames
type OctavePolicy int

const (
	// OctaveReplace halves or doubles a frame whose ratio to the previous
	// input frame falls in an octave band. Every other ratio is kept.
	OctaveReplace OctavePolicy = iota

	// OctaveClamp only acts on jumps beyond the jump limit. Octave patterns
	// are halved or doubled, anything else is clamped to the previous
	// corrected frame.
	OctaveClamp
)

func (p OctavePolicy) String() string {
	switch p {
	case OctaveReplace:
		return "replace"
	case OctaveClamp:
		return "clamp"
	default:
		return "unknown"
	}
}

// Octave ratio bands
const (
	octaveUpLow    = 1.9
	octaveUpHigh   = 2.1
	octaveDownLow  = 0.45
	octaveDownHigh = 0.55
)

// OctaveCorrector repairs 2:1 frequency errors between adjacent voiced frames
type OctaveCorrector struct {
	policy         OctavePolicy
	jumpLimitCents float64
}

// NewOctaveCorrector creates a corrector. jumpLimitCents is only consulted by
// OctaveClamp.
func NewOctaveCorrector(policy OctavePolicy, jumpLimitCents float64) *OctaveCorrector {
	return &OctaveCorrector{policy: policy, jumpLimitCents: jumpLimitCents}
}

// Policy returns the corrector's policy
func (oc *OctaveCorrector) Policy() OctavePolicy {
	return oc.policy
}

// Correct returns the corrected series. Frames whose predecessor is unvoiced
// are never touched.
func (oc *OctaveCorrector) Correct(frequency []float64) []float64 {
	out := normalizeUnvoiced(frequency)
	if len(out) < 2 {
		return out
	}

	switch oc.policy {
	case OctaveClamp:
		// Compares against the already corrected previous frame
		for i := 1; i < len(out); i++ {
			prev, curr := out[i-1], out[i]
			if !IsVoiced(prev) || !IsVoiced(curr) {
				continue
			}
			if tonal.CentsDistance(curr, prev) <= oc.jumpLimitCents {
				continue
			}
			if fixed, ok := octaveFix(curr / prev); ok {
				out[i] = curr * fixed
			} else {
				out[i] = prev
			}
		}
	default:
		// Ratios come from the raw input so a corrected frame is never
		// re-examined
		in := normalizeUnvoiced(frequency)
		for i := 1; i < len(in); i++ {
			prev, curr := in[i-1], in[i]
			if !IsVoiced(prev) || !IsVoiced(curr) {
				continue
			}
			if fixed, ok := octaveFix(curr / prev); ok {
				out[i] = curr * fixed
			}
		}
	}
	return out
}

// octaveFix returns the factor that undoes an octave error for ratio r
func octaveFix(r float64) (float64, bool) {
	switch {
	case r > octaveUpLow && r < octaveUpHigh:
		return 0.5, true
	case r > octaveDownLow && r < octaveDownHigh:
		return 2, true
	default:
		return 1, false
	}
}
