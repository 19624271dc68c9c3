// Package vad classifies audio as speech or non-speech, frame by frame
// (Classifier) or for a whole utterance via a remote Silero server (Client).
package vad

import (
	"fmt"

	"jarvis/internal/audio"
)

// Classifier decides whether one PCM frame contains speech. Implementations
// are stateless across calls.
type Classifier interface {
	IsSpeech(frame []int16, sampleRate int) (bool, error)
}

// energyThresholds maps aggressiveness 0..3 to the RMS level a frame must
// reach to count as speech. Higher aggressiveness rejects more noise.
var energyThresholds = [4]float64{0.006, 0.01, 0.015, 0.02}

// EnergyClassifier is an RMS threshold classifier. It accepts the same
// rates and frame durations as WebRTC VAD (8/16/32/48 kHz, 10/20/30 ms).
type EnergyClassifier struct {
	threshold float64
}

// NewEnergyClassifier returns a classifier for aggressiveness 0 (least) to
// 3 (most aggressive).
func NewEnergyClassifier(aggressiveness int) (*EnergyClassifier, error) {
	if aggressiveness < 0 || aggressiveness >= len(energyThresholds) {
		return nil, fmt.Errorf("vad: aggressiveness must be 0-3, got %d", aggressiveness)
	}
	return &EnergyClassifier{threshold: energyThresholds[aggressiveness]}, nil
}

// NewEnergyClassifierWithThreshold uses an explicit RMS threshold.
func NewEnergyClassifierWithThreshold(threshold float64) *EnergyClassifier {
	return &EnergyClassifier{threshold: threshold}
}

// Threshold returns the RMS level that counts as speech.
func (c *EnergyClassifier) Threshold() float64 { return c.threshold }

// IsSpeech implements Classifier.
func (c *EnergyClassifier) IsSpeech(frame []int16, sampleRate int) (bool, error) {
	if err := ValidFrame(len(frame), sampleRate); err != nil {
		return false, err
	}
	return audio.RMS(frame) >= c.threshold, nil
}

// ValidFrame reports whether a frame of n samples at sampleRate is
// something a WebRTC-style VAD can classify.
func ValidFrame(n, sampleRate int) error {
	switch sampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return fmt.Errorf("vad: unsupported sample rate %d", sampleRate)
	}
	perMs := sampleRate / 1000
	switch n {
	case 10 * perMs, 20 * perMs, 30 * perMs:
		return nil
	}
	return fmt.Errorf("vad: frame of %d samples is not 10, 20 or 30 ms at %d Hz", n, sampleRate)
}

var _ Classifier = (*EnergyClassifier)(nil)
