// Package llm answers open questions through an OpenAI-compatible chat
// completions API with web search (Perplexity sonar by default).
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"
)

// ErrEmptyAnswer is returned when the service replied without content.
var ErrEmptyAnswer = errors.New("llm: empty answer")

// Apologies spoken instead of an answer.
const (
	ApologyTimeout    = "Disculpe señor, la búsqueda está tardando demasiado"
	ApologyRequest    = "Lo siento señor, no puedo acceder a la búsqueda en este momento"
	ApologyProcessing = "Lo siento señor, hubo un error al procesar la respuesta"
)

// MaxSources is how many citations FormatSources lists.
const MaxSources = 3

// DefaultSystemPrompt sets the assistant persona.
const DefaultSystemPrompt = `Eres Jarvis, el asistente personal de Iron Man.
Responde de forma concisa, clara y útil, como si hablaras con Tony Stark (no de forma literal).
Usa un tono formal pero cercano. Máximo 3-4 frases por respuesta.`

// Config represents LLM service configuration
type Config struct {
	APIKey       string        `yaml:"-"`
	BaseURL      string        `yaml:"base_url"`
	Model        string        `yaml:"model"`
	Temperature  float64       `yaml:"temperature"`
	MaxTokens    int           `yaml:"max_tokens"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	SystemPrompt string        `yaml:"system_prompt"`
	// MaxHistory is how many previous question/answer exchanges are sent
	// along with a new question. 0 keeps every question independent.
	MaxHistory int `yaml:"max_history"`
}

// DefaultConfig returns default LLM configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:      "https://api.perplexity.ai",
		Model:        "sonar",
		Temperature:  0.2,
		MaxTokens:    250, // voice answers stay short
		Timeout:      15 * time.Second,
		SystemPrompt: DefaultSystemPrompt,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, errors.New("llm: API key is required"))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("llm: model is required"))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, errors.New("llm: temperature must be between 0 and 2"))
	}
	if c.MaxTokens <= 0 {
		errs = append(errs, errors.New("llm: max tokens must be positive"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("llm: timeout must be positive"))
	}
	if c.MaxHistory < 0 {
		errs = append(errs, errors.New("llm: max_history must not be negative"))
	}
	return errors.Join(errs...)
}

// Message is one chat turn.
type Message struct {
	Role    string
	Content string
}

// Answer is a reply with the web sources it was built from.
type Answer struct {
	Text    string
	Sources []string
}

// completer performs one chat completion.
type completer interface {
	complete(ctx context.Context, messages []Message) (Answer, error)
}

// Answerer answers questions, remembering the last MaxHistory exchanges.
type Answerer struct {
	client completer
	cfg    Config
	log    *slog.Logger

	mu      sync.Mutex
	history []Message
}

// Ask sends question and returns the answer or the error.
func (a *Answerer) Ask(ctx context.Context, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, errors.New("llm: question cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	messages := a.messages(question)
	start := time.Now()
	ans, err := a.client.complete(ctx, messages)
	if err != nil {
		return Answer{}, err
	}
	ans.Text = strings.TrimSpace(ans.Text)
	if ans.Text == "" {
		return Answer{}, ErrEmptyAnswer
	}

	a.log.Info("answer received", "took", time.Since(start), "sources", len(ans.Sources))
	a.remember(question, ans.Text)
	return ans, nil
}

// Answer returns the reply text and its sources. Failures are logged and
// turned into a spoken apology with no sources.
func (a *Answerer) Answer(ctx context.Context, question string) (string, []string) {
	ans, err := a.Ask(ctx, question)
	if err != nil {
		a.log.Error("answer failed", "err", err)
		return apologyFor(err), nil
	}
	return ans.Text, ans.Sources
}

// ClearHistory forgets previous exchanges.
func (a *Answerer) ClearHistory() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
}

func (a *Answerer) messages(question string) []Message {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Message, 0, len(a.history)+2)
	if a.cfg.SystemPrompt != "" {
		out = append(out, Message{Role: "system", Content: a.cfg.SystemPrompt})
	}
	out = append(out, a.history...)
	return append(out, Message{Role: "user", Content: question})
}

// remember keeps the last MaxHistory exchanges.
func (a *Answerer) remember(question, answer string) {
	if a.cfg.MaxHistory <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.history = append(a.history,
		Message{Role: "user", Content: question},
		Message{Role: "assistant", Content: answer},
	)
	if max := 2 * a.cfg.MaxHistory; len(a.history) > max {
		a.history = append([]Message(nil), a.history[len(a.history)-max:]...)
	}
}

// processingError marks a reply that arrived but could not be used.
type processingError struct{ err error }

func (e *processingError) Error() string { return "llm: process response: " + e.err.Error() }
func (e *processingError) Unwrap() error { return e.err }

func apologyFor(err error) string {
	var netErr net.Error
	var procErr *processingError
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return ApologyTimeout
	case errors.Is(err, ErrEmptyAnswer), errors.As(err, &procErr):
		return ApologyProcessing
	default:
		return ApologyRequest
	}
}

// FormatSources renders up to MaxSources citations for the log.
func FormatSources(sources []string) string {
	if len(sources) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Fuentes consultadas:")
	for i, src := range sources {
		if i == MaxSources {
			break
		}
		fmt.Fprintf(&b, "\n  %d. %s", i+1, src)
	}
	return b.String()
}
