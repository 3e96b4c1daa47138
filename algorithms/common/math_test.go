package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, Median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))
	assert.True(t, math.IsNaN(Median(nil)))
}

func TestMedianDoesNotReorderInput(t *testing.T) {
	data := []float64{3, 1, 2}
	Median(data)
	assert.Equal(t, []float64{3, 1, 2}, data)
}

func TestPopStdDev(t *testing.T) {
	// population std of {2,4,4,4,5,5,7,9} is exactly 2
	assert.InDelta(t, 2.0, PopStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-12)
	assert.Equal(t, 0.0, PopStdDev([]float64{5}))

	mean, std := PopMeanStdDev([]float64{7})
	assert.Equal(t, 7.0, mean)
	assert.Equal(t, 0.0, std)
}

func TestMaxNormalize(t *testing.T) {
	got := MaxNormalize([]float64{0, 1, 2}, 0)
	assert.Equal(t, []float64{0, 0.5, 1}, got)
	assert.Equal(t, []float64{0, 0}, MaxNormalize([]float64{0, 0}, 0))
}

func TestParabolicPeak(t *testing.T) {
	// y = (x-2.25)^2 sampled at 1,2,3 has its minimum at 2.25
	data := []float64{1.5625, 0.0625, 0.5625}
	assert.InDelta(t, 1.25, ParabolicPeak(data, 1), 1e-12)
	assert.Equal(t, 0.0, ParabolicPeak(data, 0))
}

func TestNextPowerOfTwo(t *testing.T) {
	assert.Equal(t, 1, NextPowerOfTwo(0))
	assert.Equal(t, 1024, NextPowerOfTwo(1000))
	assert.Equal(t, 1024, NextPowerOfTwo(1024))
}
