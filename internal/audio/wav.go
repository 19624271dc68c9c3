package audio

import (
	"bytes"
	"fmt"
	"os"

	"github.com/youpy/go-wav"
)

// EncodeWAV encodes mono 16-bit PCM as a WAV file.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}

	var buf bytes.Buffer
	w := wav.NewWriter(&buf, uint32(len(samples)), channels, uint32(sampleRate), 16)

	frames := make([]wav.Sample, len(samples))
	for i, s := range samples {
		frames[i].Values[0] = int(s)
	}
	if err := w.WriteSamples(frames); err != nil {
		return nil, fmt.Errorf("failed to write WAV samples: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveWAV writes PCM to filename as WAV.
func SaveWAV(filename string, samples []int16, sampleRate int) error {
	data, err := EncodeWAV(samples, sampleRate)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write WAV file: %w", err)
	}
	return nil
}
