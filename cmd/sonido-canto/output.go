package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/RyanBlaney/sonido-canto/contour"
	"github.com/RyanBlaney/sonido-canto/notes"
	"github.com/RyanBlaney/sonido-canto/pipeline"
	"github.com/RyanBlaney/sonido-canto/transcode"
)

// noteReport is the notes.json document
type noteReport struct {
	RunID   string           `json:"run_id"`
	Source  string           `json:"source"`
	Tempo   float64          `json:"tempo"`
	Beats   int              `json:"beats"`
	Notes   []notes.Note     `json:"notes"`
	Summary *contour.Summary `json:"summary,omitempty"`
}

func newNoteReport(runID, source string, result *pipeline.Result) noteReport {
	report := noteReport{
		RunID:   runID,
		Source:  source,
		Notes:   result.Notes,
		Summary: result.Summary,
	}
	if result.Beats != nil {
		report.Tempo = result.Beats.Tempo
		report.Beats = len(result.Beats.Times)
	}
	return report
}

// writeOutputs writes <name>.notes.json, <name>.contour.csv and
// <name>.resynth.wav and returns their paths
func writeOutputs(outDir, inputPath, runID string, result *pipeline.Result) ([]string, error) {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	notesPath := filepath.Join(outDir, base+".notes.json")
	contourPath := filepath.Join(outDir, base+".contour.csv")
	wavPath := filepath.Join(outDir, base+".resynth.wav")

	data, err := json.MarshalIndent(newNoteReport(runID, filepath.Base(inputPath), result), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode notes: %w", err)
	}
	if err := os.WriteFile(notesPath, append(data, '\n'), 0o644); err != nil {
		return nil, fmt.Errorf("write notes: %w", err)
	}

	if err := writeContourCSV(contourPath, result.Series); err != nil {
		return nil, err
	}

	if err := transcode.WriteWAV(wavPath, result.Waveform.Samples, result.Waveform.SampleRate); err != nil {
		return nil, err
	}

	return []string{notesPath, contourPath, wavPath}, nil
}

// writeContourCSV writes one row per frame; unvoiced frames have an empty
// frequency
func writeContourCSV(path string, series *contour.FrameSeries) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write contour: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("write contour: %w", cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"time", "frequency", "confidence"}); err != nil {
		return fmt.Errorf("write contour: %w", err)
	}
	for i := range series.Times {
		freq := ""
		if contour.IsVoiced(series.Frequency[i]) {
			freq = strconv.FormatFloat(series.Frequency[i], 'f', 3, 64)
		}
		conf := ""
		if series.Confidence != nil {
			conf = strconv.FormatFloat(series.Confidence[i], 'f', 4, 64)
		}
		row := []string{strconv.FormatFloat(series.Times[i], 'f', 4, 64), freq, conf}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write contour: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write contour: %w", err)
	}
	return nil
}

func writeReport(out io.Writer, format string, outcomes []*fileOutcome) error {
	if format == "json" {
		reports := make([]noteReport, 0, len(outcomes))
		for _, o := range outcomes {
			reports = append(reports, newNoteReport(o.RunID, filepath.Base(o.Path), o.Result))
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}

	for _, o := range outcomes {
		if _, err := fmt.Fprintf(out, "%s (%d notes", filepath.Base(o.Path), len(o.Result.Notes)); err != nil {
			return err
		}
		if o.Result.Beats != nil && o.Result.Beats.Tempo > 0 {
			fmt.Fprintf(out, ", %.1f BPM", o.Result.Beats.Tempo)
		}
		fmt.Fprintln(out, ")")
		fmt.Fprintln(out, renderNotes(o.Result.Notes))
	}
	return nil
}

func renderNotes(list []notes.Note) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Note", "MIDI", "Start", "End", "Duration", "Cents", "Spread"})

	for i, n := range list {
		tw.AppendRow(table.Row{
			i + 1,
			n.NoteName,
			n.Midi,
			fmt.Sprintf("%.2f", n.Start),
			fmt.Sprintf("%.2f", n.End),
			fmt.Sprintf("%.2f", n.Duration),
			fmt.Sprintf("%+.1f", n.CentsOffMean),
			fmt.Sprintf("%.1f", n.CentsOffStd),
		})
	}

	configs := make([]table.ColumnConfig, 0, 8)
	for i := 1; i <= 8; i++ {
		align := text.AlignRight
		if i == 2 {
			align = text.AlignLeft
		}
		configs = append(configs, table.ColumnConfig{Number: i, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
