package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvPerplexityKey = "PERPLEXITY_API_KEY"
	EnvWakeWord      = "WAKE_WORD"
	EnvLanguage      = "LANGUAGE"
	EnvVADServerURL  = "VAD_SERVER_URL"
)

// Load reads the YAML file at path over the defaults and validates the
// result. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, Validate(cfg)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults and validates the
// result. Unknown keys are an error.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile loads KEY=value pairs from path into the process
// environment without overriding variables that are already set. A
// missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: load %q: %w", path, err)
	}
	return nil
}

// ApplyEnv copies credentials and overrides from the environment into cfg.
// lookup is normally os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvOpenAIKey); ok && v != "" {
		c.STT.APIKey = v
		c.TTS.APIKey = v
	}
	if v, ok := lookup(EnvPerplexityKey); ok && v != "" {
		c.Answer.APIKey = v
	}
	if v, ok := lookup(EnvWakeWord); ok && v != "" {
		c.Keyword.Keyword = v
	}
	if v, ok := lookup(EnvLanguage); ok && v != "" {
		c.STT.Language = isoLanguage(v)
	}
	if v, ok := lookup(EnvVADServerURL); ok {
		c.VAD.ServerURL = v
	}
}

// isoLanguage turns a locale such as "es-ES" into the ISO-639-1 code the
// transcription API wants.
func isoLanguage(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if i := strings.IndexAny(v, "-_"); i > 0 {
		v = v[:i]
	}
	return v
}

// Validate checks the settings that do not depend on credentials. API keys
// are checked when the clients that need them are built.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}
	if cfg.Log.Format != FormatText && cfg.Log.Format != FormatJSON {
		errs = append(errs, fmt.Errorf("log.format %q is invalid; valid values: text, json", cfg.Log.Format))
	}
	if cfg.Audio.OutputSampleRate <= 0 {
		errs = append(errs, errors.New("audio.output_sample_rate must be positive"))
	}

	if strings.TrimSpace(cfg.Keyword.Keyword) == "" {
		errs = append(errs, errors.New("keyword.keyword is required"))
	}
	if cfg.Keyword.Sensitivity < 0 || cfg.Keyword.Sensitivity > 1 {
		errs = append(errs, fmt.Errorf("keyword.sensitivity must be in [0, 1], got %v", cfg.Keyword.Sensitivity))
	}
	if cfg.VAD.Aggressiveness < 0 || cfg.VAD.Aggressiveness > 3 {
		errs = append(errs, fmt.Errorf("vad.aggressiveness must be 0-3, got %d", cfg.VAD.Aggressiveness))
	}

	if err := cfg.Capture.PostWake.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := cfg.Capture.FollowUp.Validate(); err != nil {
		errs = append(errs, err)
	}
	if cfg.Speaker.TickInterval <= 0 {
		errs = append(errs, errors.New("speaker.tick_interval must be positive"))
	}
	if cfg.Identity.Path == "" {
		errs = append(errs, errors.New("identity.path is required"))
	}
	if err := cfg.ConversationConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("conversation: %w", err))
	}

	return errors.Join(errs...)
}
