package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-canto/algorithms/temporal"
	"github.com/RyanBlaney/sonido-canto/contour"
	"github.com/RyanBlaney/sonido-canto/logging"
	"github.com/RyanBlaney/sonido-canto/transcode"
)

// energyFrameSize is the RMS analysis window in samples
const energyFrameSize = 2048

// Collaborators are the external components a Pipeline drives. Separator and
// Secondary may be nil; Tracker and Beats are required.
type Collaborators struct {
	Separator Separator
	Tracker   PitchTracker
	Secondary MonophonicEstimator
	Beats     BeatTracker
}

// Pipeline turns a decoded recording into a cleaned contour, notes and a
// resynthesis. One Pipeline may serve concurrent calls; each call owns all of
// its intermediate data.
type Pipeline struct {
	processor *Processor
	collab    Collaborators
	energy    *temporal.Energy
	observer  *observer
	logger    logging.Logger
}

// New creates a pipeline; a nil config uses the defaults
func New(cfg *Config, collab Collaborators, opts ...Option) (*Pipeline, error) {
	if collab.Tracker == nil {
		return nil, errors.New("pipeline: a pitch tracker is required")
	}
	if collab.Beats == nil {
		return nil, errors.New("pipeline: a beat tracker is required")
	}

	processor, err := NewProcessor(cfg, opts...)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		processor: processor,
		collab:    collab,
		energy:    temporal.NewEnergy(energyFrameSize, processor.config.HopSize),
		observer:  processor.observer,
		logger:    processor.logger,
	}, nil
}

// Processor returns the underlying processor
func (p *Pipeline) Processor() *Processor {
	return p.processor
}

// Analyze runs separation, the estimators and the processing chain. Any
// collaborator failure aborts the analysis with an error wrapping
// ErrCollaborator.
func (p *Pipeline) Analyze(ctx context.Context, audio *transcode.AudioData) (*Result, error) {
	cfg := p.processor.config
	logger := p.logger.WithContext(ctx)

	if audio == nil || len(audio.PCM) == 0 {
		return nil, ErrNoAudio
	}
	if audio.SampleRate != cfg.SampleRate {
		return nil, fmt.Errorf("audio sample rate %d does not match pipeline rate %d", audio.SampleRate, cfg.SampleRate)
	}

	vocals := audio
	if p.collab.Separator != nil {
		stageCtx, done := p.observer.stage(ctx, "separation")
		separated, err := p.collab.Separator.Separate(stageCtx, audio)
		done()
		if err != nil {
			return nil, p.fail(ctx, "separator", err)
		}
		if separated == nil || len(separated.PCM) == 0 {
			return nil, p.fail(ctx, "separator", ErrNoAudio)
		}
		vocals = separated
	}

	samples := vocals.Mono()
	sr, hop := vocals.SampleRate, cfg.HopSize
	logger.Debug("Vocal signal ready", logging.Fields{
		"samples":     len(samples),
		"sample_rate": sr,
		"duration":    vocals.Duration.Seconds(),
	})

	// Secondary estimation and beat tracking are independent of each other
	var (
		secondary []float64
		beats     *contour.BeatGrid
	)
	g, gctx := errgroup.WithContext(ctx)
	if p.collab.Secondary != nil {
		g.Go(func() error {
			stageCtx, done := p.observer.stage(gctx, "secondary_estimation")
			defer done()
			est, err := p.collab.Secondary.Estimate(stageCtx, samples, sr, hop)
			if err != nil {
				return p.fail(gctx, "secondary estimator", err)
			}
			secondary = est
			return nil
		})
	}
	g.Go(func() error {
		stageCtx, done := p.observer.stage(gctx, "beat_tracking")
		defer done()
		grid, err := p.collab.Beats.Track(stageCtx, samples, sr, hop)
		if err != nil {
			return p.fail(gctx, "beat tracker", err)
		}
		beats = grid
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rng := PitchRange{MinHz: cfg.MinFrequency, MaxHz: cfg.MaxFrequency}
	if secondary != nil {
		rng = EstimatePitchRange(secondary, rng)
	}
	logger.Debug("Pitch range selected", logging.Fields{"min_hz": rng.MinHz, "max_hz": rng.MaxHz})

	stageCtx, done := p.observer.stage(ctx, "pitch_tracking")
	track, err := p.collab.Tracker.Track(stageCtx, samples, sr, hop, rng)
	done()
	if err != nil {
		return nil, p.fail(ctx, "pitch tracker", err)
	}
	if track == nil || len(track.Frequency) == 0 {
		return nil, p.fail(ctx, "pitch tracker", ErrNoAudio)
	}

	energy := p.energy.ComputeNormalizedRMS(samples)

	result, err := p.processor.Process(ctx, Input{
		Frequency:  track.Frequency,
		Confidence: track.Confidence,
		Energy:     energy,
		Secondary:  secondary,
		Beats:      beats,
	})
	if err != nil {
		return nil, err
	}

	if beats != nil && !math.IsNaN(beats.Tempo) {
		logger.Info("Tempo detected", logging.Fields{"bpm": beats.Tempo, "beats": len(beats.Times)})
	}
	return result, nil
}

func (p *Pipeline) fail(ctx context.Context, name string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return ctxErr
	}
	p.observer.collaboratorFailed(ctx, name, err)
	p.logger.WithContext(ctx).Error(err, "Collaborator failed", logging.Fields{"collaborator": name})
	return collaboratorError(name, err)
}
