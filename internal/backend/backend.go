// Package backend normalizes heterogeneous LLM providers behind one
// capability: translate an ordered sequence of canonical turns into the
// provider's wire shape and hand back the completion as a stream of
// chunks. Buffered providers emit a single chunk holding the full
// completion; streaming providers emit many. Callers fold either into the
// transcript the same way.
package backend

import (
	"context"
	"errors"
	"strings"
)

// Turn is one role/content pair of the conversation, in the canonical
// provider-agnostic form.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chunk is one increment of model output. A non-nil Err terminates the
// stream; no further chunks follow it.
type Chunk struct {
	Content string
	Err     error
}

// Request carries one generation call. Stream is a hint: providers that
// only buffer ignore it and still emit a single chunk.
type Request struct {
	Model  string
	Turns  []Turn
	Stream bool
}

// Status reports reachability of one backend and how many models it
// serves.
type Status struct {
	Backend   string `json:"backend"`
	Reachable bool   `json:"reachable"`
	Models    int    `json:"models"`
}

var (
	// ErrUnknownModel means no backend is registered for the model
	// identifier.
	ErrUnknownModel = errors.New("unknown model")
	// ErrModelUnavailable means the backend is configured but does not
	// currently serve the requested model.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrNoCredential means a hosted backend was invoked without its API
	// key configured.
	ErrNoCredential = errors.New("api credential not configured")
)

// Backend is one provider family. Implementations capture every failure
// (missing credential, unreachable endpoint, malformed upstream payload,
// non-2xx status) as an error value; they never panic.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req Request) (<-chan Chunk, error)
	ListModels(ctx context.Context) ([]string, error)
	Status(ctx context.Context) Status
}

// Collect drains a chunk stream into the full completion. The first chunk
// error aborts and is returned.
func Collect(ch <-chan Chunk) (string, error) {
	var b strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			return "", chunk.Err
		}
		b.WriteString(chunk.Content)
	}
	return b.String(), nil
}

// single wraps a buffered completion as a one-chunk stream.
func single(content string) <-chan Chunk {
	ch := make(chan Chunk, 1)
	ch <- Chunk{Content: content}
	close(ch)
	return ch
}
