package backend

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

// OpenAI is the hosted-API variant for OpenAI and OpenAI-compatible
// endpoints. The chat completions API accepts the system turn inline, so
// the canonical turns are forwarded in order without reshaping.
type OpenAI struct {
	llm         *openai.LLM
	models      []string
	temperature float64
	maxTokens   int
	hasToken    bool
}

func NewOpenAI(token, baseURL string, modelIDs []string, temperature float64, maxTokens int) (*OpenAI, error) {
	opts := []openai.Option{openai.WithToken(token)}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize openai client: %w", err)
	}
	return &OpenAI{
		llm:         llm,
		models:      modelIDs,
		temperature: temperature,
		maxTokens:   maxTokens,
		hasToken:    token != "",
	}, nil
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Generate(ctx context.Context, req Request) (<-chan Chunk, error) {
	if !o.hasToken {
		return nil, ErrNoCredential
	}

	resp, err := o.llm.GenerateContent(ctx, chatMessages(req.Turns),
		llms.WithModel(req.Model),
		llms.WithTemperature(o.temperature),
		llms.WithMaxTokens(o.maxTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty response for model %s", req.Model)
	}
	return single(resp.Choices[0].Content), nil
}

func (o *OpenAI) ListModels(ctx context.Context) ([]string, error) {
	return o.models, nil
}

func (o *OpenAI) Status(ctx context.Context) Status {
	return Status{Backend: o.Name(), Reachable: o.hasToken, Models: len(o.models)}
}

// chatMessages maps canonical turns onto langchaingo message content,
// preserving order and roles.
func chatMessages(turns []Turn) []llms.MessageContent {
	msgs := make([]llms.MessageContent, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, llms.TextParts(chatRole(t.Role), t.Content))
	}
	return msgs
}

func chatRole(role string) schema.ChatMessageType {
	switch role {
	case "assistant":
		return schema.ChatMessageTypeAI
	case "system":
		return schema.ChatMessageTypeSystem
	default:
		return schema.ChatMessageTypeHuman
	}
}
