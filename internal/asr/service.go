// Package asr turns captured utterances into text.
package asr

import (
	"errors"
	"time"
)

// ErrNoSpeech is returned when an utterance is empty or the recognizer
// heard nothing in it.
var ErrNoSpeech = errors.New("asr: no speech recognized")

// Config represents ASR service configuration
type Config struct {
	APIKey      string        `yaml:"-"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Language    string        `yaml:"language"` // ISO-639-1, empty for auto-detect
	Prompt      string        `yaml:"prompt"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
}

// DefaultConfig returns default ASR configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:    "https://api.openai.com/v1",
		Model:      "whisper-1",
		Language:   "es",
		Timeout:    30 * time.Second,
		MaxRetries: 2,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, errors.New("asr: OpenAI API key is required"))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("asr: model is required"))
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		errs = append(errs, errors.New("asr: temperature must be between 0 and 1"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("asr: timeout must be positive"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("asr: max_retries must not be negative"))
	}
	return errors.Join(errs...)
}
