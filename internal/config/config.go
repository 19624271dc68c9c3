// Package config holds the assistant's settings: a YAML file layered over
// defaults, with credentials taken from the environment.
package config

import (
	"jarvis/internal/asr"
	"jarvis/internal/capture"
	"jarvis/internal/conversation"
	"jarvis/internal/keyword"
	"jarvis/internal/llm"
	"jarvis/internal/speaker"
	"jarvis/internal/tts"
	"jarvis/internal/vad"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LogFormat selects the slog handler.
type LogFormat string

const (
	FormatText LogFormat = "text"
	FormatJSON LogFormat = "json"
)

// Config is the root of the config file.
type Config struct {
	Log          LogConfig           `yaml:"log"`
	Audio        AudioConfig         `yaml:"audio"`
	Keyword      keyword.Config      `yaml:"keyword"`
	VAD          vad.Config          `yaml:"vad"`
	Capture      CaptureConfig       `yaml:"capture"`
	Speaker      speaker.Config      `yaml:"speaker"`
	STT          asr.Config          `yaml:"stt"`
	TTS          tts.Config          `yaml:"tts"`
	Answer       llm.Config          `yaml:"answer"`
	Identity     IdentityConfig      `yaml:"identity"`
	Conversation conversation.Config `yaml:"conversation"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// AudioConfig 音频设备配置
type AudioConfig struct {
	// OutputSampleRate is the rate every clip is resampled to for playback.
	OutputSampleRate int `yaml:"output_sample_rate"`
}

// CaptureConfig holds the two named endpointing policies.
type CaptureConfig struct {
	PostWake capture.Policy `yaml:"post_wake"`
	FollowUp capture.Policy `yaml:"follow_up"`
}

// IdentityConfig 声纹用户存储
type IdentityConfig struct {
	Path string `yaml:"path"`
}

// Default returns the built-in configuration. Credentials are empty.
func Default() *Config {
	return &Config{
		Log:          LogConfig{Level: LogInfo, Format: FormatText},
		Audio:        AudioConfig{OutputSampleRate: 24000},
		Keyword:      keyword.DefaultConfig(),
		VAD:          vad.DefaultConfig(),
		Capture:      CaptureConfig{PostWake: capture.PostWakePolicy(), FollowUp: capture.FollowUpPolicy()},
		Speaker:      speaker.DefaultConfig(),
		STT:          asr.DefaultConfig(),
		TTS:          tts.DefaultConfig(),
		Answer:       llm.DefaultConfig(),
		Identity:     IdentityConfig{Path: "users.yaml"},
		Conversation: conversation.DefaultConfig(),
	}
}

// ConversationConfig returns the loop settings with the follow-up policy
// from the capture section.
func (c *Config) ConversationConfig() conversation.Config {
	cc := c.Conversation
	cc.FollowUp = c.Capture.FollowUp
	return cc
}
