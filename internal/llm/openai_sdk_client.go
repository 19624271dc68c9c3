package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// chatCompletion is the subset of the response we read. citations is a
// Perplexity extension the SDK types do not carry.
type chatCompletion struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

// openAISDKClient talks to any OpenAI-compatible chat completions endpoint
type openAISDKClient struct {
	client openai.Client
	cfg    Config
}

// NewAnswerer creates an Answerer for cfg.
func NewAnswerer(cfg Config, log *slog.Logger, opts ...option.RequestOption) (*Answerer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		base = append(base, option.WithBaseURL(cfg.BaseURL))
	}

	return &Answerer{
		client: &openAISDKClient{
			client: openai.NewClient(append(base, opts...)...),
			cfg:    cfg,
		},
		cfg: cfg,
		log: log,
	}, nil
}

func (c *openAISDKClient) complete(ctx context.Context, messages []Message) (Answer, error) {
	params := openai.ChatCompletionNewParams{
		Model:       c.cfg.Model,
		Messages:    toSDKMessages(messages),
		MaxTokens:   openai.Int(int64(c.cfg.MaxTokens)),
		Temperature: openai.Float(c.cfg.Temperature),
	}

	var raw []byte
	if err := c.client.Post(ctx, "chat/completions", params, &raw); err != nil {
		return Answer{}, fmt.Errorf("llm: chat completion failed: %w", err)
	}

	var resp chatCompletion
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Answer{}, &processingError{err: err}
	}
	if len(resp.Choices) == 0 {
		return Answer{}, ErrEmptyAnswer
	}
	return Answer{Text: resp.Choices[0].Message.Content, Sources: resp.Citations}, nil
}

func toSDKMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case "system":
			out[i] = openai.SystemMessage(msg.Content)
		case "assistant":
			out[i] = openai.AssistantMessage(msg.Content)
		default:
			out[i] = openai.UserMessage(msg.Content)
		}
	}
	return out
}
