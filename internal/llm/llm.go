// Package llm wraps a langchaingo model as a text generation session.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrUnknownProvider is returned by NewModel for unsupported providers.
var ErrUnknownProvider = errors.New("llm: unknown provider")

// PartialFunc receives the text generated so far. done is true exactly once,
// on the final call, with the complete response.
type PartialFunc func(partial string, done bool)

// Image is one image attached to a multimodal request.
type Image struct {
	MIMEType string
	Data     []byte
}

// Config selects and configures a language model provider.
type Config struct {
	// Provider is "ollama" or "openai".
	Provider    string
	Model       string
	ServerURL   string
	APIKey      string
	Temperature float64
	MaxTokens   int
}

// NewModel constructs the configured langchaingo model.
func NewModel(cfg Config) (llms.Model, error) {
	switch cfg.Provider {
	case "ollama":
		opts := []ollama.Option{}
		if cfg.Model != "" {
			opts = append(opts, ollama.WithModel(cfg.Model))
		}
		if cfg.ServerURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.ServerURL))
		} else if host := os.Getenv("OLLAMA_HOST"); host != "" {
			opts = append(opts, ollama.WithServerURL(host))
		}
		return ollama.New(opts...)
	case "openai":
		opts := []openai.Option{}
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		if cfg.ServerURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.ServerURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownProvider, cfg.Provider)
	}
}

// Session generates text with a fixed set of call options.
type Session struct {
	model llms.Model
	opts  []llms.CallOption
}

// NewSession wraps model. Zero temperature and max tokens keep the
// provider defaults.
func NewSession(model llms.Model, cfg Config) (*Session, error) {
	if model == nil {
		return nil, errors.New("llm: model is required")
	}
	var opts []llms.CallOption
	if cfg.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(cfg.Temperature))
	}
	if cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(cfg.MaxTokens))
	}
	return &Session{model: model, opts: opts}, nil
}

// Generate runs prompt through the model, streaming partial results to
// onPartial when it is non-nil.
func (s *Session) Generate(ctx context.Context, prompt string, onPartial PartialFunc) (string, error) {
	opts := s.opts
	var (
		mu  sync.Mutex
		acc strings.Builder
	)
	if onPartial != nil {
		opts = append(append([]llms.CallOption{}, s.opts...), llms.WithStreamingFunc(
			func(_ context.Context, chunk []byte) error {
				mu.Lock()
				acc.Write(chunk)
				partial := acc.String()
				mu.Unlock()
				onPartial(partial, false)
				return nil
			}))
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, s.model, prompt, opts...)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if onPartial != nil {
		onPartial(out, true)
	}
	return out, nil
}

// Describe asks the model about a set of images.
func (s *Session) Describe(ctx context.Context, prompt string, images []Image) (string, error) {
	parts := make([]llms.ContentPart, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, llms.BinaryPart(img.MIMEType, img.Data))
	}
	parts = append(parts, llms.TextPart(prompt))

	resp, err := s.model.GenerateContent(ctx, []llms.MessageContent{
		{Role: llms.ChatMessageTypeHuman, Parts: parts},
	}, s.opts...)
	if err != nil {
		return "", fmt.Errorf("describe: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("describe: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
