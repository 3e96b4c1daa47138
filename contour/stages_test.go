package contour

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nanv = math.NaN()

// assertSeries compares element-wise, treating NaN as equal to NaN
func assertSeries(t *testing.T, expected, actual []float64) {
	t.Helper()
	require.Len(t, actual, len(expected))
	for i := range expected {
		if math.IsNaN(expected[i]) {
			assert.True(t, math.IsNaN(actual[i]), "frame %d: expected unvoiced, got %v", i, actual[i])
			continue
		}
		assert.InDelta(t, expected[i], actual[i], 1e-9, "frame %d", i)
	}
}

func TestVoicingGate(t *testing.T) {
	freq := []float64{200, 200, 200, 200}
	energy := []float64{0.1, 0.2, 0.2, 0.15}
	conf := []float64{0.9, 0.5, 0.9, 0.9}

	assertSeries(t, []float64{nanv, nanv, 200, nanv}, VoicingGate(freq, conf, energy, 0.15, 0.6))
	assertSeries(t, []float64{200, nanv, 200, 200}, VoicingGate(freq, conf, nil, 0.15, 0.6))
}

func TestOctaveCorrectorReplace(t *testing.T) {
	oc := NewOctaveCorrector(OctaveReplace, 600)

	tests := []struct {
		name     string
		input    []float64
		expected []float64
	}{
		{"octave up", []float64{100, 200}, []float64{100, 100}},
		{"octave down", []float64{200, 95}, []float64{200, 190}},
		{"fifth untouched", []float64{100, 150}, []float64{100, 150}},
		{"unvoiced neighbor", []float64{100, nanv, 200}, []float64{100, nanv, 200}},
		// Ratios come from the raw input, so the second error is also seen
		// against its raw predecessor
		{"forward only", []float64{100, 200, 400}, []float64{100, 100, 200}},
		{"empty", []float64{}, []float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertSeries(t, tt.expected, oc.Correct(tt.input))
		})
	}
}

func TestOctaveCorrectorClamp(t *testing.T) {
	oc := NewOctaveCorrector(OctaveClamp, 600)
	assert.Equal(t, OctaveClamp, oc.Policy())

	tests := []struct {
		name     string
		input    []float64
		expected []float64
	}{
		{"small jump kept", []float64{100, 130}, []float64{100, 130}},
		{"octave pattern halved", []float64{100, 205}, []float64{100, 102.5}},
		{"octave pattern doubled", []float64{200, 98}, []float64{200, 196}},
		{"non-octave clamped", []float64{100, 250}, []float64{100, 100}},
		{"chained against corrected value", []float64{100, 200, 400}, []float64{100, 100, 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertSeries(t, tt.expected, oc.Correct(tt.input))
		})
	}
}

func TestRejectOutliers(t *testing.T) {
	out := RejectOutliers([]float64{100, 101, 99, 100, 500}, 1.5, 4)
	assertSeries(t, []float64{100, 101, 99, 100, nanv}, out)

	same := []float64{220, 220, 220, 220, 220}
	assertSeries(t, same, RejectOutliers(same, 1.5, 4))

	few := []float64{100, nanv, 1000, 100}
	assertSeries(t, few, RejectOutliers(few, 1.5, 4))
}

func TestInterpolateGaps(t *testing.T) {
	in := []float64{nanv, 100, nanv, nanv, 130, nanv}
	assertSeries(t, []float64{nanv, 100, 110, 120, 130, nanv}, InterpolateGaps(in, 0))

	// Bounded fill leaves the longer gap
	assertSeries(t, in, InterpolateGaps(in, 1))
}

func TestBridgeGaps(t *testing.T) {
	short := []float64{200, nanv, nanv, 210}
	assertSeries(t, []float64{200, 200, 200, 210}, BridgeGaps(short, 3))

	long := []float64{200, nanv, nanv, nanv, nanv, nanv, 210}
	assertSeries(t, long, BridgeGaps(long, 3))

	edges := []float64{nanv, 200, 210, nanv}
	assertSeries(t, edges, BridgeGaps(edges, 3))
}

func TestSegmentSmootherShortRunTakesMedian(t *testing.T) {
	s, err := NewSegmentSmoother(9, 3)
	require.NoError(t, err)

	out := s.Smooth([]float64{nanv, 100, 104, 102, nanv, 300, 310})
	assertSeries(t, []float64{nanv, 102, 102, 102, nanv, 305, 305}, out)
}

func TestSegmentSmootherDoesNotLeakAcrossRuns(t *testing.T) {
	s, err := NewSegmentSmoother(9, 3)
	require.NoError(t, err)

	runA := make([]float64, 15)
	for i := range runA {
		runA[i] = 220 + 5*math.Sin(float64(i))
	}

	build := func(b float64) []float64 {
		series := append([]float64{}, runA...)
		series = append(series, nanv)
		for i := 0; i < 12; i++ {
			series = append(series, b+float64(i))
		}
		return series
	}

	first := s.Smooth(build(300))
	second := s.Smooth(build(900))

	assertSeries(t, first[:15], second[:15])
	assert.True(t, math.IsNaN(first[15]))
}

func TestSegmentSmootherPreservesPolynomialRun(t *testing.T) {
	s, err := NewSegmentSmoother(9, 3)
	require.NoError(t, err)

	run := make([]float64, 20)
	for i := range run {
		x := float64(i)
		run[i] = 200 + 0.5*x + 0.01*x*x*x
	}
	assertSeries(t, run, s.Smooth(run))
}

func TestNewSegmentSmootherRejectsEvenWindow(t *testing.T) {
	_, err := NewSegmentSmoother(8, 3)
	assert.Error(t, err)
}

func TestConsensusVeto(t *testing.T) {
	up200 := 440 * math.Pow(2, 200.0/1200)
	up50 := 440 * math.Pow(2, 50.0/1200)

	primary := []float64{440, 440, 440, 440, nanv}
	secondary := []float64{up200, up200, up50, nanv, 440}
	conf := []float64{0.5, 0.9, 0.1, 0.1, 0.1}

	out := ConsensusVeto(primary, secondary, conf, 120, 0.75)
	assertSeries(t, []float64{nanv, 440, 440, 440, nanv}, out)

	noConf := ConsensusVeto(primary, secondary, nil, 120, 0.75)
	assertSeries(t, []float64{nanv, nanv, 440, 440, nanv}, noConf)
}

func TestSummarize(t *testing.T) {
	assert.Nil(t, Summarize([]float64{100, nanv, 200}))

	s := Summarize([]float64{100, 200, nanv, 200, 100})
	require.NotNil(t, s)
	assert.Equal(t, 100.0, s.MinHz)
	assert.Equal(t, 200.0, s.MaxHz)
	assert.Equal(t, 100.0, s.RangeHz)
	assert.InDelta(t, 50.0, s.StdHz, 1e-9)
	require.Len(t, s.Intervals, 3)
	assert.InDelta(t, 12.0, s.Intervals[0], 1e-9)
	assert.InDelta(t, 0.0, s.Intervals[1], 1e-9)
	assert.InDelta(t, -12.0, s.Intervals[2], 1e-9)
	assert.Equal(t, "↑=↓", s.Shape)
}

func TestSummarizeTruncatesShape(t *testing.T) {
	values := make([]float64, 80)
	for i := range values {
		values[i] = 100 + float64(i)
	}
	s := Summarize(values)
	require.NotNil(t, s)
	assert.Len(t, s.Intervals, 79)
	assert.Equal(t, 50, len([]rune(s.Shape)))
}
