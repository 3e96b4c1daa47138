package pipeline

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/RyanBlaney/sonido-canto/contour"
	"github.com/RyanBlaney/sonido-canto/logging"
	"github.com/RyanBlaney/sonido-canto/transcode"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name string, attr attribute.KeyValue) int64 {
	t.Helper()
	met := findMetric(rm, name)
	require.NotNil(t, met, "metric %q not found", name)
	sum, ok := met.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %q is not an int64 sum", name)
	var total int64
	for _, dp := range sum.DataPoints {
		if attr.Key == "" {
			total += dp.Value
			continue
		}
		if v, ok := dp.Attributes.Value(attr.Key); ok && v.AsString() == attr.Value.AsString() {
			total += dp.Value
		}
	}
	return total
}

func newTestProcessor(t *testing.T, cfg *Config) (*Processor, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()
	met, reader := newTestMetrics(t)
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	p, err := NewProcessor(cfg,
		WithMetrics(met),
		WithTracerProvider(tp),
		WithLogger(&logging.NoOpLogger{}),
	)
	require.NoError(t, err)
	return p, reader, exp
}

func filled(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestProcessAllUnvoiced(t *testing.T) {
	p, _, _ := newTestProcessor(t, nil)

	n := 100
	result, err := p.Process(context.Background(), Input{
		Frequency:  filled(n, math.NaN()),
		Confidence: filled(n, 0.1),
		Energy:     filled(n, 0.01),
	})
	require.NoError(t, err)

	assert.Empty(t, result.Notes)
	require.NotNil(t, result.Waveform)
	assert.Len(t, result.Waveform.Samples, n*256)
	for _, s := range result.Waveform.Samples {
		require.Equal(t, 0.0, s)
	}
	assert.Nil(t, result.Summary)
	assert.Equal(t, 0, result.Series.VoicedCount())
}

func TestProcessConstantNote(t *testing.T) {
	p, reader, exp := newTestProcessor(t, nil)

	n := 200
	result, err := p.Process(context.Background(), Input{
		Frequency:  filled(n, 440),
		Confidence: filled(n, 0.9),
		Energy:     filled(n, 0.5),
	})
	require.NoError(t, err)

	require.Len(t, result.Notes, 1)
	assert.Equal(t, "A4", result.Notes[0].NoteName)
	assert.Equal(t, 69, result.Notes[0].Midi)
	assert.InDelta(t, 0.0, result.Notes[0].CentsOffStd, 1e-6)
	assert.InDelta(t, float64(n)*256/22050, result.Notes[0].End, 1e-9)
	assert.Equal(t, n, result.Series.VoicedCount())
	require.NotNil(t, result.Summary)
	assert.Equal(t, 0.0, result.Summary.RangeHz)

	rm := collect(t, reader)
	assert.Equal(t, int64(1), counterValue(t, rm, "sonido_canto.analyses", attribute.String("status", "ok")))
	assert.Equal(t, int64(1), counterValue(t, rm, "sonido_canto.notes", attribute.KeyValue{}))
	assert.Equal(t, int64(n), counterValue(t, rm, "sonido_canto.voiced_frames", attribute.KeyValue{}))

	hist := findMetric(rm, "sonido_canto.stage.duration")
	require.NotNil(t, hist)
	data, ok := hist.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	stages := map[string]bool{}
	for _, dp := range data.DataPoints {
		v, _ := dp.Attributes.Value("stage")
		stages[v.AsString()] = true
	}
	for _, name := range []string{"voicing_gate", "octave_correction", "jump_limiter", "outlier_rejection",
		"interpolation", "smoothing", "consensus_veto", "gap_bridge", "beat_stabilization",
		"note_segmentation", "resynthesis"} {
		assert.True(t, stages[name], "stage %s not recorded", name)
	}

	spans := exp.GetSpans()
	names := make([]string, 0, len(spans))
	for _, s := range spans {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "stage.smoothing")
	assert.Contains(t, names, "stage.beat_stabilization")
}

func TestProcessGatesLowEnergy(t *testing.T) {
	p, _, _ := newTestProcessor(t, nil)

	n := 60
	energy := filled(n, 0.5)
	for i := 30; i < n; i++ {
		energy[i] = 0.05
	}
	result, err := p.Process(context.Background(), Input{
		Frequency:  filled(n, 330),
		Confidence: filled(n, 0.9),
		Energy:     energy,
	})
	require.NoError(t, err)
	assert.Equal(t, 30, result.Series.VoicedCount())
	for i := 30; i < n; i++ {
		assert.True(t, math.IsNaN(result.Series.Frequency[i]))
	}
}

func TestProcessAlignsLengths(t *testing.T) {
	p, _, _ := newTestProcessor(t, nil)

	result, err := p.Process(context.Background(), Input{
		Frequency:  filled(50, 440),
		Confidence: filled(45, 0.9),
		Energy:     filled(48, 0.5),
		Secondary:  filled(47, 440),
	})
	require.NoError(t, err)
	assert.Equal(t, 45, result.Series.Len())
	assert.Len(t, result.Secondary, 45)
	assert.Len(t, result.Waveform.Samples, 45*256)
}

func TestProcessStabilizesOnBeats(t *testing.T) {
	p, _, _ := newTestProcessor(t, nil)

	n := 100
	hop := 256.0 / 22050
	freq := make([]float64, n)
	for i := range freq {
		// +-10 cent wobble
		freq[i] = 440 * math.Pow(2, 10*math.Sin(float64(i))/1200)
	}
	beats := &contour.BeatGrid{Times: []float64{0.5 * hop, 40.5 * hop, 80.5 * hop}, Tempo: 120}

	result, err := p.Process(context.Background(), Input{
		Frequency:  freq,
		Confidence: filled(n, 0.9),
		Energy:     filled(n, 0.5),
		Beats:      beats,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.BeatStats.Stable)
	for i := 2; i < 40; i++ {
		assert.InDelta(t, result.Series.Frequency[1], result.Series.Frequency[i], 1e-9)
	}
	assert.Equal(t, beats, result.Beats)
}

func TestProcessRejectsBadBeatGrid(t *testing.T) {
	p, _, _ := newTestProcessor(t, nil)
	_, err := p.Process(context.Background(), Input{
		Frequency: filled(10, 440),
		Beats:     &contour.BeatGrid{Times: []float64{1, 0.5}},
	})
	assert.ErrorIs(t, err, contour.ErrNonIncreasingTimes)
}

func TestProcessEmptyInput(t *testing.T) {
	p, _, _ := newTestProcessor(t, nil)
	_, err := p.Process(context.Background(), Input{})
	assert.ErrorIs(t, err, ErrNoAudio)
}

func TestProcessCanceled(t *testing.T) {
	p, reader, _ := newTestProcessor(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Process(ctx, Input{Frequency: filled(10, 440)})
	assert.ErrorIs(t, err, context.Canceled)

	rm := collect(t, reader)
	assert.Equal(t, int64(1), counterValue(t, rm, "sonido_canto.analyses", attribute.String("status", "canceled")))
}

func TestNewProcessorRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HopSize = 0
	_, err := NewProcessor(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Contour.SmoothingWindow = 4
	_, err = NewProcessor(cfg)
	assert.Error(t, err)
}

func TestEstimatePitchRange(t *testing.T) {
	fallback := PitchRange{MinHz: 65, MaxHz: 1500}

	assert.Equal(t, fallback, EstimatePitchRange(filled(20, 440), fallback))

	rng := EstimatePitchRange(filled(30, 440), fallback)
	assert.InDelta(t, 352.0, rng.MinHz, 1e-9)
	assert.InDelta(t, 528.0, rng.MaxHz, 1e-9)

	wide := EstimatePitchRange(append(filled(15, 50), filled(15, 1100)...), fallback)
	assert.Equal(t, 60.0, wide.MinHz)
	assert.Equal(t, 1200.0, wide.MaxHz)
}

// Fakes for the collaborators

type fakeTracker struct {
	freq float64
	err  error

	mu  sync.Mutex
	rng PitchRange
}

func (f *fakeTracker) Track(_ context.Context, samples []float64, _ int, hop int, rng PitchRange) (*PitchTrack, error) {
	f.mu.Lock()
	f.rng = rng
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	n := 1 + len(samples)/hop
	return &PitchTrack{Frequency: filled(n, f.freq), Confidence: filled(n, 0.9)}, nil
}

type fakeSecondary struct {
	freq float64
	err  error
}

func (f *fakeSecondary) Estimate(_ context.Context, samples []float64, _ int, hop int) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return filled(1+len(samples)/hop, f.freq), nil
}

type fakeBeats struct {
	grid *contour.BeatGrid
	err  error
}

func (f *fakeBeats) Track(context.Context, []float64, int, int) (*contour.BeatGrid, error) {
	return f.grid, f.err
}

type fakeSeparator struct {
	err    error
	called bool
}

func (f *fakeSeparator) Separate(_ context.Context, audio *transcode.AudioData) (*transcode.AudioData, error) {
	f.called = true
	if f.err != nil {
		return nil, f.err
	}
	return audio, nil
}

func sineAudio(f float64, seconds float64) *transcode.AudioData {
	n := int(seconds * 22050)
	pcm := make([]float64, n*2)
	for i := 0; i < n; i++ {
		v := 0.5 * math.Sin(2*math.Pi*f*float64(i)/22050)
		pcm[2*i] = v
		pcm[2*i+1] = v
	}
	return transcode.NewAudioData(pcm, 22050, 2, "test")
}

func TestAnalyzeWithCollaborators(t *testing.T) {
	met, reader := newTestMetrics(t)
	tracker := &fakeTracker{freq: 440}
	sep := &fakeSeparator{}
	grid := &contour.BeatGrid{Times: []float64{0.25, 0.75}, Tempo: 120}

	p, err := New(nil, Collaborators{
		Separator: sep,
		Tracker:   tracker,
		Secondary: &fakeSecondary{freq: 440},
		Beats:     &fakeBeats{grid: grid},
	}, WithMetrics(met), WithLogger(&logging.NoOpLogger{}))
	require.NoError(t, err)

	result, err := p.Analyze(context.Background(), sineAudio(440, 1))
	require.NoError(t, err)

	assert.True(t, sep.called)
	assert.InDelta(t, 352.0, tracker.rng.MinHz, 1e-9)
	assert.InDelta(t, 528.0, tracker.rng.MaxHz, 1e-9)
	assert.Equal(t, grid, result.Beats)
	require.NotEmpty(t, result.Notes)
	assert.Equal(t, "A4", result.Notes[0].NoteName)
	assert.Equal(t, 1+22050/256, result.Series.Len())

	rm := collect(t, reader)
	assert.Equal(t, int64(1), counterValue(t, rm, "sonido_canto.analyses", attribute.String("status", "ok")))
}

func TestAnalyzeCollaboratorFailures(t *testing.T) {
	boom := errors.New("model crashed")

	tests := []struct {
		name   string
		collab Collaborators
		label  string
	}{
		{
			name: "separator",
			collab: Collaborators{
				Separator: &fakeSeparator{err: boom},
				Tracker:   &fakeTracker{freq: 440},
				Beats:     &fakeBeats{grid: &contour.BeatGrid{}},
			},
			label: "separator",
		},
		{
			name: "tracker",
			collab: Collaborators{
				Tracker: &fakeTracker{err: boom},
				Beats:   &fakeBeats{grid: &contour.BeatGrid{}},
			},
			label: "pitch tracker",
		},
		{
			name: "secondary",
			collab: Collaborators{
				Tracker:   &fakeTracker{freq: 440},
				Secondary: &fakeSecondary{err: boom},
				Beats:     &fakeBeats{grid: &contour.BeatGrid{}},
			},
			label: "secondary estimator",
		},
		{
			name: "beats",
			collab: Collaborators{
				Tracker: &fakeTracker{freq: 440},
				Beats:   &fakeBeats{err: boom},
			},
			label: "beat tracker",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			met, reader := newTestMetrics(t)
			p, err := New(nil, tt.collab, WithMetrics(met), WithLogger(&logging.NoOpLogger{}))
			require.NoError(t, err)

			_, err = p.Analyze(context.Background(), sineAudio(440, 0.5))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCollaborator)
			assert.ErrorIs(t, err, boom)
			assert.Contains(t, err.Error(), tt.label)

			rm := collect(t, reader)
			assert.Equal(t, int64(1), counterValue(t, rm, "sonido_canto.collaborator.errors",
				attribute.String("collaborator", tt.label)))
		})
	}
}

func TestAnalyzeRejectsMissingAudio(t *testing.T) {
	p, err := New(nil, Collaborators{Tracker: &fakeTracker{freq: 440}, Beats: &fakeBeats{}},
		WithLogger(&logging.NoOpLogger{}))
	require.NoError(t, err)

	_, err = p.Analyze(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoAudio)

	_, err = p.Analyze(context.Background(), transcode.NewAudioData(filled(100, 0), 44100, 1, "x"))
	assert.Error(t, err)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(nil, Collaborators{Beats: &fakeBeats{}})
	assert.Error(t, err)
	_, err = New(nil, Collaborators{Tracker: &fakeTracker{}})
	assert.Error(t, err)
}
