// Package llmtest provides a scripted langchaingo model for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// Model implements llms.Model. Respond decides the reply for each prompt;
// when nil the model echoes "echo: " plus the prompt text.
type Model struct {
	Respond func(prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
	images  int
}

var _ llms.Model = (*Model)(nil)

// Prompts returns every prompt text the model received.
func (m *Model) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Images returns the number of binary parts the model received.
func (m *Model) Images() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.images
}

func (m *Model) GenerateContent(
	ctx context.Context,
	messages []llms.MessageContent,
	options ...llms.CallOption,
) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}

	var b strings.Builder
	images := 0
	for _, msg := range messages {
		for _, part := range msg.Parts {
			switch p := part.(type) {
			case llms.TextContent:
				if b.Len() > 0 {
					b.WriteString("\n")
				}
				b.WriteString(p.Text)
			case llms.BinaryContent:
				images++
			}
		}
	}
	prompt := b.String()

	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.images += images
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reply := "echo: " + prompt
	if m.Respond != nil {
		var err error
		if reply, err = m.Respond(prompt); err != nil {
			return nil, err
		}
	}

	if opts.StreamingFunc != nil {
		half := len(reply) / 2
		for _, piece := range []string{reply[:half], reply[half:]} {
			if err := opts.StreamingFunc(ctx, []byte(piece)); err != nil {
				return nil, err
			}
		}
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: reply}},
	}, nil
}

func (m *Model) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}
