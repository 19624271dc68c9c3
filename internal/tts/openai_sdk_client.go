package tts

import (
	"context"
	"fmt"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAISynthesizer synthesizes speech with the OpenAI speech API
type OpenAISynthesizer struct {
	client openai.Client
	cfg    Config
}

// NewOpenAISynthesizer creates a synthesizer from cfg.
func NewOpenAISynthesizer(cfg Config, opts ...option.RequestOption) (*OpenAISynthesizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		base = append(base, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAISynthesizer{
		client: openai.NewClient(append(base, opts...)...),
		cfg:    cfg,
	}, nil
}

// Synthesize implements Backend.
func (c *OpenAISynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	params := openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(c.cfg.Model),
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(c.cfg.Voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormat(c.cfg.Format),
	}
	if c.cfg.Speed > 0 && c.cfg.Speed != 1.0 {
		params.Speed = openai.Float(c.cfg.Speed)
	}

	resp, err := c.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("speech synthesis returned no audio")
	}
	return data, nil
}

var _ Backend = (*OpenAISynthesizer)(nil)
