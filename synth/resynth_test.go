package synth

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderLength(t *testing.T) {
	r, err := NewResynthesizer(nil)
	require.NoError(t, err)

	w := r.Render(make([]float64, 10))
	assert.Len(t, w.Samples, 10*256)
	assert.Equal(t, 22050, w.SampleRate)
	assert.InDelta(t, 2560.0/22050, w.Duration(), 1e-12)
}

func TestRenderSilenceForUnvoiced(t *testing.T) {
	r, err := NewResynthesizer(nil)
	require.NoError(t, err)

	w := r.Render([]float64{math.NaN(), 0, -10, math.Inf(1)})
	require.Len(t, w.Samples, 4*256)
	for _, s := range w.Samples {
		assert.Equal(t, 0.0, s)
	}
}

func TestRenderIsPhaseContinuous(t *testing.T) {
	cfg := &Config{SampleRate: 8000, HopSize: 100, Amplitude: 0.3}
	r, err := NewResynthesizer(cfg)
	require.NoError(t, err)

	const f = 220.0
	frames := make([]float64, 12)
	for i := range frames {
		frames[i] = f
	}
	w := r.Render(frames)

	// Every sample, including both sides of each hop boundary, lies on one
	// continuous sinusoid
	for n, s := range w.Samples {
		want := 0.3 * math.Sin(2*math.Pi*f*float64(n)/8000)
		require.InDelta(t, want, s, 1e-9, "sample %d", n)
	}

	maxStep := 0.3 * 2 * math.Pi * f / 8000
	for k := 1; k < len(frames); k++ {
		boundary := k * cfg.HopSize
		assert.LessOrEqual(t, math.Abs(w.Samples[boundary]-w.Samples[boundary-1]), maxStep+1e-9)
	}
}

func TestRenderResetsPhaseAfterSilence(t *testing.T) {
	cfg := &Config{SampleRate: 8000, HopSize: 100, Amplitude: 1}
	r, err := NewResynthesizer(cfg)
	require.NoError(t, err)

	w := r.Render([]float64{330, math.NaN(), 330})
	// The third frame restarts at phase zero
	for k := 0; k < 100; k++ {
		assert.InDelta(t, math.Sin(2*math.Pi*330*float64(k)/8000), w.Samples[200+k], 1e-9)
	}
}

func TestNewResynthesizerRejectsBadConfig(t *testing.T) {
	_, err := NewResynthesizer(&Config{SampleRate: 0, HopSize: 256})
	assert.Error(t, err)
}
