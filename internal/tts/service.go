// Package tts turns response text into speech audio.
package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"
)

// Available TTS models
const (
	ModelTTS1   = "tts-1"
	ModelTTS1HD = "tts-1-hd"
)

// Available voices
const (
	VoiceAlloy   = "alloy"
	VoiceEcho    = "echo"
	VoiceFable   = "fable"
	VoiceOnyx    = "onyx"
	VoiceNova    = "nova"
	VoiceShimmer = "shimmer"
)

// Supported response formats. The speaker decodes MP3 and WAV.
const (
	FormatMP3 = "mp3"
	FormatWAV = "wav"
)

// ErrEmptyText is returned when nothing is left to say after cleanup.
var ErrEmptyText = errors.New("tts: text is empty")

// Config represents TTS service configuration
type Config struct {
	APIKey        string        `yaml:"-"`
	BaseURL       string        `yaml:"base_url"`
	Model         string        `yaml:"model"`
	Voice         string        `yaml:"voice"`
	Speed         float64       `yaml:"speed"`
	Format        string        `yaml:"format"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	MaxTextLength int           `yaml:"max_text_length"`
	// CacheEntries bounds the synthesis cache; 0 disables it.
	CacheEntries int `yaml:"cache_entries"`
}

// DefaultConfig returns default TTS service configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:       "https://api.openai.com/v1",
		Model:         ModelTTS1,
		Voice:         VoiceOnyx,
		Speed:         1.0,
		Format:        FormatMP3,
		Timeout:       30 * time.Second,
		MaxRetries:    2,
		MaxTextLength: 4096,
		CacheEntries:  64,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, errors.New("tts: OpenAI API key is required"))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("tts: model is required"))
	}
	if c.Voice == "" {
		errs = append(errs, errors.New("tts: voice is required"))
	}
	if c.Speed < 0.25 || c.Speed > 4.0 {
		errs = append(errs, fmt.Errorf("tts: invalid speed %.2f (must be between 0.25 and 4.0)", c.Speed))
	}
	if c.Format != FormatMP3 && c.Format != FormatWAV {
		errs = append(errs, fmt.Errorf("tts: unsupported format %q", c.Format))
	}
	if c.MaxTextLength <= 0 || c.MaxTextLength > 4096 {
		errs = append(errs, fmt.Errorf("tts: invalid max text length %d (must be between 1 and 4096)", c.MaxTextLength))
	}
	if c.CacheEntries < 0 {
		errs = append(errs, errors.New("tts: cache_entries must not be negative"))
	}
	return errors.Join(errs...)
}

// Backend synthesizes already-cleaned text.
type Backend interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Service cleans text for speech and caches short phrases in front of a
// Backend.
type Service struct {
	backend Backend
	cfg     Config
	log     *slog.Logger

	mu    sync.Mutex
	cache map[string][]byte
	order []string
}

// NewService wraps backend.
func NewService(cfg Config, backend Backend, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = DefaultConfig().MaxTextLength
	}
	return &Service{
		backend: backend,
		cfg:     cfg,
		log:     log,
		cache:   make(map[string][]byte),
	}
}

// Synthesize returns an encoded audio payload for text.
func (s *Service) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = CleanForSpeech(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if n := utf8.RuneCountInString(text); n > s.cfg.MaxTextLength {
		s.log.Warn("tts: text truncated", "runes", n, "max", s.cfg.MaxTextLength)
		text = string([]rune(text)[:s.cfg.MaxTextLength])
	}

	key := s.cacheKey(text)
	if data := s.cached(key); data != nil {
		s.log.Debug("tts cache hit", "text", text)
		return data, nil
	}

	start := time.Now()
	data, err := s.backend.Synthesize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("tts: synthesis failed: %w", err)
	}
	s.log.Debug("synthesized", "bytes", len(data), "took", time.Since(start))

	s.store(key, data)
	return data, nil
}

// CacheLen returns the number of cached phrases.
func (s *Service) CacheLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}

// ClearCache clears the audio cache
func (s *Service) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string][]byte)
	s.order = nil
}

func (s *Service) cacheKey(text string) string {
	return fmt.Sprintf("%s_%s_%.2f_%s", s.cfg.Model, s.cfg.Voice, s.cfg.Speed, text)
}

func (s *Service) cached(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache[key]
}

// store keeps at most CacheEntries payloads, evicting the oldest.
func (s *Service) store(key string, data []byte) {
	if s.cfg.CacheEntries <= 0 || len(data) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cache[key]; ok {
		return
	}
	for len(s.order) >= s.cfg.CacheEntries {
		delete(s.cache, s.order[0])
		s.order = s.order[1:]
	}
	s.cache[key] = data
	s.order = append(s.order, key)
}
