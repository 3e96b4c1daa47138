package transcode

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVBitDepth is the sample width written by WriteWAV
const WAVBitDepth = 16

// WriteWAV writes mono samples in [-1, 1] as 16-bit PCM. Values outside the
// range are clipped.
func WriteWAV(path string, samples []float64, sampleRate int) (err error) {
	if sampleRate <= 0 {
		return fmt.Errorf("write wav: sample rate must be positive, got %d", sampleRate)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("write wav: %w", cerr)
		}
	}()

	const fullScale = 1<<(WAVBitDepth-1) - 1
	data := make([]int, len(samples))
	for i, s := range samples {
		s = max(-1, min(1, s))
		data[i] = int(s * fullScale)
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: WAVBitDepth,
	}

	encoder := wav.NewEncoder(file, sampleRate, WAVBitDepth, 1, 1)
	if err := encoder.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	return nil
}

// ReadWAV decodes a PCM WAV file into interleaved samples in [-1, 1]
func ReadWAV(path string) (*AudioData, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read wav: %w", err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, errors.New("read wav: invalid WAV file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read wav: %w", err)
	}
	if buf.Format == nil {
		return nil, errors.New("read wav: missing format")
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(decoder.BitDepth)
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, fmt.Errorf("read wav: unsupported bit depth %d", bitDepth)
	}
	scale := float64(int64(1) << (bitDepth - 1))

	pcm := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		pcm[i] = float64(v) / scale
	}

	return NewAudioData(pcm, buf.Format.SampleRate, buf.Format.NumChannels, filepath.Base(path)), nil
}
