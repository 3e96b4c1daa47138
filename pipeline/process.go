// Package pipeline runs the contour cleanup stages in order, segments the
// result into notes and renders it back to audio. Processor is the pure core
// over pre-computed series; Pipeline adds the collaborators that produce
// those series from a recording.
package pipeline

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/RyanBlaney/sonido-canto/contour"
	"github.com/RyanBlaney/sonido-canto/logging"
	"github.com/RyanBlaney/sonido-canto/notes"
	"github.com/RyanBlaney/sonido-canto/synth"
)

// Input is the raw per-frame evidence for one recording. Confidence, Energy
// and Secondary may be nil. Times may be nil, in which case frames are
// HopSize/SampleRate seconds apart starting at 0.
type Input struct {
	Times      []float64
	Frequency  []float64
	Confidence []float64
	Energy     []float64
	Secondary  []float64
	Beats      *contour.BeatGrid
}

// Result is the outcome of one analysis
type Result struct {
	Series    *contour.FrameSeries `json:"series"`
	Secondary []float64            `json:"-"`
	Notes     []notes.Note         `json:"notes"`
	Waveform  *synth.Waveform      `json:"-"`
	Beats     *contour.BeatGrid    `json:"beats,omitempty"`
	Summary   *contour.Summary     `json:"summary,omitempty"`
	BeatStats contour.BeatReport   `json:"beat_stats"`
}

// Option configures a Processor or Pipeline
type Option func(*options)

type options struct {
	logger         logging.Logger
	metrics        *Metrics
	tracerProvider trace.TracerProvider
}

// WithLogger sets the logger
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metric instruments
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracerProvider sets the tracer provider used for stage spans
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.WithFields(logging.Fields{"component": "pipeline"})
	}
	return o
}

// Processor runs the cleanup stages, note segmentation and resynthesis. It
// keeps no state between calls.
type Processor struct {
	config    *Config
	octave    *contour.OctaveCorrector
	limiter   *contour.OctaveCorrector
	smoother  *contour.SegmentSmoother
	beats     *contour.BeatStabilizer
	segmenter *notes.Segmenter
	synth     *synth.Resynthesizer
	observer  *observer
	logger    logging.Logger
}

// NewProcessor validates cfg and builds the stages; a nil config uses the
// defaults
func NewProcessor(cfg *Config, opts ...Option) (*Processor, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	o := buildOptions(opts)

	smoother, err := contour.NewSegmentSmoother(cfg.Contour.SmoothingWindow, cfg.Contour.SmoothingOrder)
	if err != nil {
		return nil, err
	}
	resynth, err := synth.NewResynthesizer(&synth.Config{
		SampleRate: cfg.SampleRate,
		HopSize:    cfg.HopSize,
		Amplitude:  cfg.Amplitude,
	})
	if err != nil {
		return nil, err
	}

	return &Processor{
		config:    cfg,
		octave:    contour.NewOctaveCorrector(contour.OctaveReplace, cfg.Contour.JumpLimitCents),
		limiter:   contour.NewOctaveCorrector(contour.OctaveClamp, cfg.Contour.JumpLimitCents),
		smoother:  smoother,
		beats:     contour.NewBeatStabilizer(cfg.Contour),
		segmenter: notes.NewSegmenter(cfg.Notes),
		synth:     resynth,
		observer:  newObserver(o.tracerProvider, o.metrics),
		logger:    o.logger,
	}, nil
}

// Config returns the processor configuration
func (p *Processor) Config() *Config {
	return p.config
}

// stage is one frequency-to-frequency transform in the cleanup chain
type stage struct {
	name string
	run  func([]float64) []float64
}

// Process runs the full chain over in. Stage-level edge cases never fail; an
// error means the input was malformed or ctx was done at a stage boundary.
func (p *Processor) Process(ctx context.Context, in Input) (result *Result, err error) {
	defer func() {
		switch {
		case err == nil:
			p.observer.analysisDone(ctx, "ok")
		case ctx.Err() != nil:
			p.observer.analysisDone(ctx, "canceled")
		default:
			p.observer.analysisDone(ctx, "error")
		}
	}()

	series, secondary, err := p.align(in)
	if err != nil {
		return nil, err
	}
	logger := p.logger.WithContext(ctx)
	cfg := p.config.Contour

	var beatTimes []float64
	if in.Beats != nil {
		if err := in.Beats.Validate(); err != nil {
			return nil, fmt.Errorf("beat grid: %w", err)
		}
		beatTimes = in.Beats.Times
	}

	var beatReport contour.BeatReport
	stages := []stage{
		{"voicing_gate", func(f []float64) []float64 {
			return contour.VoicingGate(f, series.Confidence, series.Energy, cfg.EnergyGate, cfg.ConfidenceGate)
		}},
		{"octave_correction", p.octave.Correct},
	}
	if p.config.JumpLimiter {
		stages = append(stages, stage{"jump_limiter", p.limiter.Correct})
	}
	stages = append(stages,
		stage{"outlier_rejection", func(f []float64) []float64 {
			if contour.CountVoiced(f) < cfg.MinOutlierPoints {
				logger.Debug("Skipping outlier rejection, too few voiced frames")
			}
			return contour.RejectOutliers(f, cfg.OutlierK, cfg.MinOutlierPoints)
		}},
		stage{"interpolation", func(f []float64) []float64 {
			return contour.InterpolateGaps(f, cfg.InterpolationMaxGap)
		}},
		stage{"smoothing", p.smoother.Smooth},
		stage{"consensus_veto", func(f []float64) []float64 {
			if secondary == nil {
				return f
			}
			return contour.ConsensusVeto(f, secondary, series.Confidence, cfg.VetoCents, cfg.VetoConfidence)
		}},
		stage{"gap_bridge", func(f []float64) []float64 {
			return contour.BridgeGaps(f, cfg.MaxGapFrames)
		}},
		stage{"beat_stabilization", func(f []float64) []float64 {
			out, report := p.beats.Stabilize(series.Times, f, beatTimes)
			beatReport = report
			return out
		}},
	)

	frequency := series.Frequency
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, done := p.observer.stage(ctx, s.name)
		frequency = s.run(frequency)
		done()
		logger.Debug("Stage complete", logging.Fields{
			"stage":  s.name,
			"voiced": contour.CountVoiced(frequency),
			"frames": len(frequency),
		})
	}

	final, err := series.WithFrequency(frequency)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, done := p.observer.stage(ctx, "note_segmentation")
	noteList, err := p.segmenter.Segment(final.Times, final.Frequency)
	done()
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, done = p.observer.stage(ctx, "resynthesis")
	waveform := p.synth.Render(final.Frequency)
	done()

	p.observer.metrics.Notes.Add(ctx, int64(len(noteList)))
	p.observer.metrics.VoicedFrames.Add(ctx, int64(final.VoicedCount()))

	logger.Info("Analysis complete", logging.Fields{
		"frames":       final.Len(),
		"voiced":       final.VoicedCount(),
		"notes":        len(noteList),
		"stable_beats": beatReport.Stable,
		"held_beats":   beatReport.Held,
		"expressive":   beatReport.Expressive,
	})

	return &Result{
		Series:    final,
		Secondary: secondary,
		Notes:     noteList,
		Waveform:  waveform,
		Beats:     in.Beats,
		Summary:   contour.Summarize(final.Frequency),
		BeatStats: beatReport,
	}, nil
}

// align truncates every present series to the shortest one and builds the
// frame series
func (p *Processor) align(in Input) (*contour.FrameSeries, []float64, error) {
	n := len(in.Frequency)
	for _, s := range [][]float64{in.Confidence, in.Energy, in.Secondary} {
		if s != nil {
			n = min(n, len(s))
		}
	}
	if in.Times != nil {
		n = min(n, len(in.Times))
	}
	if n == 0 {
		return nil, nil, ErrNoAudio
	}

	times := in.Times
	if times == nil {
		times = contour.UniformTimes(n, p.config.FrameDuration())
	}

	series, err := contour.NewFrameSeries(times[:n], in.Frequency[:n], head(in.Confidence, n), head(in.Energy, n))
	if err != nil {
		return nil, nil, err
	}
	return series, head(in.Secondary, n), nil
}

func head(values []float64, n int) []float64 {
	if values == nil {
		return nil
	}
	return values[:n]
}

