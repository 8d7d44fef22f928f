package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// generateTimeout bounds a buffered completion. Local models on modest
// hardware can take a while. Streamed completions run under the caller's
// context instead, so a long stream is never cut mid-response.
const generateTimeout = 2 * time.Minute

// Ollama is the local-runtime variant. It speaks the runtime's native
// HTTP API: /api/chat for generation (JSON-line chunks when streaming)
// and /api/tags for the installed model list.
type Ollama struct {
	host   string
	client *http.Client
	opts   ollamaOptions
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []Turn        `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaChatResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewOllama takes the runtime address as host:port or a full URL.
func NewOllama(host string, temperature float64, maxTokens int) *Ollama {
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return &Ollama{
		host:   strings.TrimSuffix(host, "/"),
		client: &http.Client{},
		opts:   ollamaOptions{Temperature: temperature, NumPredict: maxTokens},
	}
}

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) Generate(ctx context.Context, req Request) (<-chan Chunk, error) {
	if !req.Stream {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, generateTimeout)
		defer cancel()
	}

	body, err := json.Marshal(ollamaChatRequest{
		Model:    req.Model,
		Messages: req.Turns,
		Stream:   req.Stream,
		Options:  o.opts,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama: %s unreachable: %w", o.host, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, o.statusError(resp, req.Model)
	}

	if !req.Stream {
		defer resp.Body.Close()
		var out ollamaChatResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("ollama: malformed response: %w", err)
		}
		if out.Error != "" {
			return nil, fmt.Errorf("ollama: %s", out.Error)
		}
		return single(out.Message.Content), nil
	}

	ch := make(chan Chunk)
	go o.stream(resp.Body, ch)
	return ch, nil
}

// stream reads JSON-line chunks until the runtime reports done, the body
// ends, or a line carries an error.
func (o *Ollama) stream(body io.ReadCloser, ch chan<- Chunk) {
	defer close(ch)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var out ollamaChatResponse
		if err := json.Unmarshal(line, &out); err != nil {
			ch <- Chunk{Err: fmt.Errorf("ollama: malformed stream chunk: %w", err)}
			return
		}
		if out.Error != "" {
			ch <- Chunk{Err: fmt.Errorf("ollama: %s", out.Error)}
			return
		}
		if out.Message.Content != "" {
			ch <- Chunk{Content: out.Message.Content}
		}
		if out.Done {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		ch <- Chunk{Err: fmt.Errorf("ollama: read stream: %w", err)}
	}
}

func (o *Ollama) statusError(resp *http.Response, model string) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var out ollamaChatResponse
	if json.Unmarshal(payload, &out) == nil && out.Error != "" {
		if strings.Contains(out.Error, "not found") {
			return fmt.Errorf("%w: %s: %s", ErrModelUnavailable, model, out.Error)
		}
		return fmt.Errorf("ollama: %s", out.Error)
	}
	return fmt.Errorf("ollama: unexpected status %s", resp.Status)
}

func (o *Ollama) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, o.host+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("ollama: build request: %w", err)
	}
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama: %s unreachable: %w", o.host, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama: unexpected status %s", resp.Status)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("ollama: malformed tags response: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func (o *Ollama) Status(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	names, err := o.ListModels(ctx)
	if err != nil {
		return Status{Backend: o.Name(), Reachable: false}
	}
	return Status{Backend: o.Name(), Reachable: true, Models: len(names)}
}
