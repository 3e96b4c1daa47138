package tonal

import (
	"math"
	"strconv"
)

const (
	// A4Frequency is the reference frequency for MIDI note 69
	A4Frequency = 440.0

	// A4Midi is the MIDI number of A4
	A4Midi = 69.0

	// FrequencyFloor replaces non-positive or non-finite frequencies before
	// any logarithm is taken
	FrequencyFloor = 1e-6
)

// NoteNames is the 12-tone naming table starting at C
var NoteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// IsVoiced reports whether f is a usable pitch (finite and positive)
func IsVoiced(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

// SafeFrequency clamps degenerate frequencies to FrequencyFloor
func SafeFrequency(f float64) float64 {
	if !IsVoiced(f) || f < FrequencyFloor {
		return FrequencyFloor
	}
	return f
}

// HzToMidi converts a frequency to a fractional MIDI number
func HzToMidi(f float64) float64 {
	return A4Midi + 12*math.Log2(SafeFrequency(f)/A4Frequency)
}

// MidiToHz converts a (fractional) MIDI number to Hz
func MidiToHz(midi float64) float64 {
	return A4Frequency * math.Pow(2, (midi-A4Midi)/12)
}

// Cents returns the signed distance from ref to f in cents
func Cents(f, ref float64) float64 {
	return 1200 * math.Log2(SafeFrequency(f)/SafeFrequency(ref))
}

// CentsDistance returns the absolute distance between two frequencies in cents
func CentsDistance(a, b float64) float64 {
	return math.Abs(Cents(a, b))
}

// MidiToNoteName names an integer MIDI number, e.g. 60 -> "C4"
func MidiToNoteName(midi int) string {
	pc := ((midi % 12) + 12) % 12
	octave := floorDiv(midi, 12) - 1
	return NoteNames[pc] + strconv.Itoa(octave)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
