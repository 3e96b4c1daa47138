package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-canto/config"
	"github.com/RyanBlaney/sonido-canto/estimators"
	"github.com/RyanBlaney/sonido-canto/logging"
	"github.com/RyanBlaney/sonido-canto/pipeline"
	"github.com/RyanBlaney/sonido-canto/transcode"
)

type analyzeOptions struct {
	outDir       string
	workers      int
	format       string
	noSeparation bool
	tracker      string
}

// fileOutcome is the result of analyzing one input file
type fileOutcome struct {
	Path   string
	RunID  string
	Result *pipeline.Result
	Files  []string
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	opts := analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze [files...]",
		Short: "Extract the sung melody of one or more recordings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := applyAnalyzeFlags(cmd, cfg, &opts); err != nil {
				return err
			}
			return runAnalyze(cmd, cfg, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "outputs", "Output directory")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Recordings analyzed in parallel (default from config)")
	cmd.Flags().StringVar(&opts.format, "format", "table", "Report format: table or json")
	cmd.Flags().BoolVar(&opts.noSeparation, "no-separation", false, "Skip vocal separation")
	cmd.Flags().StringVar(&opts.tracker, "tracker", "", "Primary pitch tracker: yin or crepe (default from config)")

	return cmd
}

func applyAnalyzeFlags(cmd *cobra.Command, cfg *config.Config, opts *analyzeOptions) error {
	if cmd.Flags().Changed("workers") {
		cfg.Workers = opts.workers
	}
	if cmd.Flags().Changed("tracker") {
		cfg.Tracker = strings.ToLower(opts.tracker)
	}
	if opts.noSeparation {
		cfg.Separation = false
	}
	if opts.format != "table" && opts.format != "json" {
		return fmt.Errorf("format must be table or json, got %q", opts.format)
	}
	return cfg.Validate()
}

// buildPipeline wires the collaborators selected by cfg
func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	beats, err := estimators.NewOnsetBeats(cfg.Beats)
	if err != nil {
		return nil, err
	}

	yin := estimators.NewYin(cfg.Yin)
	collab := pipeline.Collaborators{
		Tracker:   yin,
		Secondary: yin,
		Beats:     beats,
	}
	if cfg.Tracker == config.TrackerCrepe {
		collab.Tracker = estimators.NewCrepe(cfg.Crepe)
	}
	if cfg.Separation {
		collab.Separator = estimators.NewDemucs(cfg.Demucs, cfg.Decoder)
	}

	return pipeline.New(cfg.Pipeline, collab)
}

func runAnalyze(cmd *cobra.Command, cfg *config.Config, opts analyzeOptions, paths []string) error {
	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	decoder := transcode.NewDecoder(cfg.Decoder)

	outcomes := make([]*fileOutcome, len(paths))
	g, gctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(cfg.Workers)
	for i, path := range paths {
		g.Go(func() error {
			outcome, err := analyzeFile(gctx, p, decoder, cfg, path, opts.outDir)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			outcomes[i] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return writeReport(cmd.OutOrStdout(), opts.format, outcomes)
}

func analyzeFile(ctx context.Context, p *pipeline.Pipeline, decoder *transcode.Decoder, cfg *config.Config, path, outDir string) (*fileOutcome, error) {
	runID := uuid.NewString()
	ctx = logging.ContextWithFields(ctx, logging.Fields{
		"file":   filepath.Base(path),
		"run_id": runID,
	})
	logger := logging.WithFields(logging.Fields{"component": "cli"}).WithContext(ctx)
	logger.Info("Analyzing recording")

	audio, err := loadAudio(ctx, decoder, cfg, path)
	if err != nil {
		return nil, err
	}

	result, err := p.Analyze(ctx, audio)
	if err != nil {
		return nil, err
	}

	files, err := writeOutputs(outDir, path, runID, result)
	if err != nil {
		return nil, err
	}
	logger.Info("Outputs written", logging.Fields{"notes": len(result.Notes), "files": len(files)})

	return &fileOutcome{Path: path, RunID: runID, Result: result, Files: files}, nil
}

// loadAudio reads WAV files at the analysis rate directly and hands
// everything else to ffmpeg
func loadAudio(ctx context.Context, decoder *transcode.Decoder, cfg *config.Config, path string) (*transcode.AudioData, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		audio, err := transcode.ReadWAV(path)
		if err == nil && audio.SampleRate == cfg.Pipeline.SampleRate {
			return audio, nil
		}
	}
	return decoder.DecodeFile(ctx, path)
}
