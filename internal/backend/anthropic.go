package backend

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/schema"
)

// Anthropic is the hosted-API variant for the Anthropic messages API. The
// API takes the system instruction outside the turn list, so the adapter
// extracts the first system turn and forwards only the remaining turns as
// the conversation.
type Anthropic struct {
	llm         *anthropic.LLM
	models      []string
	temperature float64
	maxTokens   int
	hasToken    bool
}

func NewAnthropic(token string, modelIDs []string, temperature float64, maxTokens int) (*Anthropic, error) {
	llm, err := anthropic.New(anthropic.WithToken(token))
	if err != nil {
		return nil, fmt.Errorf("initialize anthropic client: %w", err)
	}
	return &Anthropic{
		llm:         llm,
		models:      modelIDs,
		temperature: temperature,
		maxTokens:   maxTokens,
		hasToken:    token != "",
	}, nil
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Generate(ctx context.Context, req Request) (<-chan Chunk, error) {
	if !a.hasToken {
		return nil, ErrNoCredential
	}

	system, turns := splitSystem(req.Turns)
	msgs := chatMessages(turns)
	if system != "" {
		// Leading system message; the client lifts it into the request's
		// out-of-band system field.
		msgs = append([]llms.MessageContent{llms.TextParts(schema.ChatMessageTypeSystem, system)}, msgs...)
	}

	resp, err := a.llm.GenerateContent(ctx, msgs,
		llms.WithModel(req.Model),
		llms.WithTemperature(a.temperature),
		llms.WithMaxTokens(a.maxTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("anthropic: empty response for model %s", req.Model)
	}
	return single(resp.Choices[0].Content), nil
}

func (a *Anthropic) ListModels(ctx context.Context) ([]string, error) {
	return a.models, nil
}

func (a *Anthropic) Status(ctx context.Context) Status {
	return Status{Backend: a.Name(), Reachable: a.hasToken, Models: len(a.models)}
}

// splitSystem returns the content of the first system turn and the
// remaining non-system turns, order preserved.
func splitSystem(turns []Turn) (string, []Turn) {
	system := ""
	rest := make([]Turn, 0, len(turns))
	for _, t := range turns {
		if t.Role == "system" {
			if system == "" {
				system = t.Content
			}
			continue
		}
		rest = append(rest, t)
	}
	return system, rest
}
