package notes

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformTimes(n int, hop float64) []float64 {
	times := make([]float64, n)
	for i := range times {
		times[i] = float64(i) * hop
	}
	return times
}

func constant(n int, f float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = f
	}
	return out
}

func TestSegmentDropsShortNote(t *testing.T) {
	seg := NewSegmenter(nil)

	notes, err := seg.Segment(uniformTimes(20, 0.01), constant(20, 440))
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestSegmentEmitsConstantNote(t *testing.T) {
	seg := NewSegmenter(nil)

	notes, err := seg.Segment(uniformTimes(30, 0.01), constant(30, 440))
	require.NoError(t, err)
	require.Len(t, notes, 1)

	n := notes[0]
	assert.Equal(t, 0.0, n.Start)
	assert.InDelta(t, 0.3, n.End, 1e-9)
	assert.InDelta(t, 0.3, n.Duration, 1e-9)
	assert.Equal(t, 69, n.Midi)
	assert.Equal(t, "A4", n.NoteName)
	assert.InDelta(t, 0.0, n.CentsOffMean, 1e-9)
	assert.InDelta(t, 0.0, n.CentsOffStd, 1e-9)
	assert.InDelta(t, 440.0, n.Frequency(), 1e-9)
}

func TestSegmentSplitsOnLargeChange(t *testing.T) {
	freq := append(constant(30, 440), constant(30, 880)...)
	notes, err := NewSegmenter(nil).Segment(uniformTimes(60, 0.01), freq)
	require.NoError(t, err)
	require.Len(t, notes, 2)

	assert.Equal(t, "A4", notes[0].NoteName)
	assert.Equal(t, "A5", notes[1].NoteName)
	assert.InDelta(t, 0.3, notes[1].Start, 1e-9)
	assert.InDelta(t, 0.6, notes[1].End, 1e-9)
}

func TestSegmentToleratesVibrato(t *testing.T) {
	freq := make([]float64, 40)
	for i := range freq {
		cents := 50.0
		if i%2 == 1 {
			cents = -50
		}
		freq[i] = 440 * math.Pow(2, cents/1200)
	}

	notes, err := NewSegmenter(nil).Segment(uniformTimes(40, 0.01), freq)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, 69, notes[0].Midi)
	assert.InDelta(t, 0.0, notes[0].CentsOffMean, 1e-6)
	assert.InDelta(t, 50.0, notes[0].CentsOffStd, 1e-6)
}

func TestSegmentCentsOffset(t *testing.T) {
	f := 440 * math.Pow(2, 20.0/1200)
	notes, err := NewSegmenter(nil).Segment(uniformTimes(30, 0.01), constant(30, f))
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.InDelta(t, 20.0, notes[0].CentsOffMean, 1e-6)
}

func TestSegmentRequiresMinimumFrames(t *testing.T) {
	// Four frames at a long hop satisfy the duration but not the frame count
	notes, err := NewSegmenter(nil).Segment(uniformTimes(4, 0.1), constant(4, 440))
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestSegmentSplitsOnSilence(t *testing.T) {
	freq := append(constant(30, 440), math.NaN(), 0)
	freq = append(freq, constant(30, 440)...)

	notes, err := NewSegmenter(nil).Segment(uniformTimes(len(freq), 0.01), freq)
	require.NoError(t, err)
	assert.Len(t, notes, 2)
}

func TestSegmentAllUnvoiced(t *testing.T) {
	freq := constant(50, math.NaN())
	notes, err := NewSegmenter(nil).Segment(uniformTimes(50, 0.01), freq)
	require.NoError(t, err)
	assert.NotNil(t, notes)
	assert.Empty(t, notes)
}

func TestSegmentLengthMismatch(t *testing.T) {
	_, err := NewSegmenter(nil).Segment(uniformTimes(3, 0.01), constant(2, 440))
	assert.Error(t, err)
}

func TestSegmentCustomConfig(t *testing.T) {
	seg := NewSegmenter(&Config{ChangeThreshold: 1.5, MinFrames: 5, MinDuration: 0.1})
	notes, err := seg.Segment(uniformTimes(20, 0.01), constant(20, 261.6255653005986))
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, 60, notes[0].Midi)
	assert.Equal(t, "C4", notes[0].NoteName)
}
