package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-canto/logging"
	"github.com/RyanBlaney/sonido-canto/transcode"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	logging.SetGlobalLogger(&logging.NoOpLogger{})
	t.Cleanup(func() { logging.SetGlobalLogger(logging.NewDefaultLogger()) })

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeSine(t *testing.T, dir string, freq, seconds float64) string {
	t.Helper()
	const sr = 22050
	samples := make([]float64, int(seconds*sr))
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/sr)
	}
	path := filepath.Join(dir, "tone.wav")
	require.NoError(t, transcode.WriteWAV(path, samples, sr))
	return path
}

func TestConfigCommand(t *testing.T) {
	out, err := runCLI(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "sample_rate")
	assert.Contains(t, out, "tracker")
	assert.Contains(t, out, "yin")
}

func TestConfigCommandMissingFile(t *testing.T) {
	_, err := runCLI(t, "--config", filepath.Join(t.TempDir(), "absent.toml"), "config")
	assert.Error(t, err)
}

func TestAnalyzeWritesOutputs(t *testing.T) {
	dir := t.TempDir()
	input := writeSine(t, dir, 440, 1.5)
	outDir := filepath.Join(dir, "out")

	out, err := runCLI(t, "analyze", "-o", outDir, "--format", "json", input)
	require.NoError(t, err)

	for _, name := range []string{"tone.notes.json", "tone.contour.csv", "tone.resynth.wav"} {
		info, err := os.Stat(filepath.Join(outDir, name))
		require.NoError(t, err, name)
		assert.Positive(t, info.Size(), name)
	}

	var reports []noteReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "tone.wav", reports[0].Source)
	assert.NotEmpty(t, reports[0].RunID)
	require.NotEmpty(t, reports[0].Notes)
	assert.Equal(t, "A4", reports[0].Notes[0].NoteName)

	resynth, err := transcode.ReadWAV(filepath.Join(outDir, "tone.resynth.wav"))
	require.NoError(t, err)
	assert.Equal(t, 22050, resynth.SampleRate)
}

func TestAnalyzeTable(t *testing.T) {
	dir := t.TempDir()
	input := writeSine(t, dir, 440, 1.5)

	out, err := runCLI(t, "analyze", "-o", filepath.Join(dir, "out"), input)
	require.NoError(t, err)
	assert.Contains(t, out, "tone.wav")
	assert.Contains(t, out, "Note")
}

func TestAnalyzeRejectsBadFlags(t *testing.T) {
	dir := t.TempDir()
	input := writeSine(t, dir, 440, 0.5)

	_, err := runCLI(t, "analyze", "-o", dir, "--format", "xml", input)
	assert.Error(t, err)

	_, err = runCLI(t, "analyze", "-o", dir, "--tracker", "pyin", input)
	assert.Error(t, err)

	_, err = runCLI(t, "analyze")
	assert.Error(t, err)
}
