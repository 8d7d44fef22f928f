package backend

import (
	"context"
	"errors"
	"testing"
)

type stubBackend struct {
	name   string
	models []string
	err    error
}

func (s *stubBackend) Name() string { return s.name }

func (s *stubBackend) Generate(ctx context.Context, req Request) (<-chan Chunk, error) {
	if s.err != nil {
		return nil, s.err
	}
	return single(s.name + ":" + req.Model), nil
}

func (s *stubBackend) ListModels(ctx context.Context) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.models, nil
}

func (s *stubBackend) Status(ctx context.Context) Status {
	return Status{Backend: s.name, Reachable: s.err == nil, Models: len(s.models)}
}

func TestResolveByPrefix(t *testing.T) {
	openai := &stubBackend{name: "openai"}
	anthropic := &stubBackend{name: "anthropic"}

	r := NewRegistry()
	r.Register(openai, "gpt", "o1")
	r.Register(anthropic, "claude")

	cases := []struct {
		model string
		want  Backend
	}{
		{"gpt-4", openai},
		{"gpt-3.5-turbo", openai},
		{"o1-mini", openai},
		{"claude-3-5-sonnet-latest", anthropic},
	}
	for _, tc := range cases {
		got, err := r.Resolve(tc.model)
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", tc.model, err)
		}
		if got != tc.want {
			t.Errorf("Resolve(%q) = %s, want %s", tc.model, got.Name(), tc.want.Name())
		}
	}
}

func TestResolveUnknownModel(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubBackend{name: "openai"}, "gpt")

	if _, err := r.Resolve("llama3.1:8b"); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("expected ErrUnknownModel, got %v", err)
	}
}

func TestResolveLocalFallback(t *testing.T) {
	local := &stubBackend{name: "ollama"}

	r := NewRegistry()
	r.Register(&stubBackend{name: "openai"}, "gpt")
	r.SetLocal(local)

	got, err := r.Resolve("llama3.1:8b")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != local {
		t.Errorf("Resolve = %s, want local fallback", got.Name())
	}
}

func TestGenerateDispatch(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubBackend{name: "openai"}, "gpt")
	r.SetLocal(&stubBackend{name: "ollama"})

	ch, err := r.Generate(context.Background(), Request{Model: "gpt-4"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	got, err := Collect(ch)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if got != "openai:gpt-4" {
		t.Errorf("dispatched to wrong backend: %q", got)
	}
}

func TestListModelsSkipsUnreachable(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubBackend{name: "openai", models: []string{"gpt-4", "gpt-3.5-turbo"}}, "gpt")
	r.Register(&stubBackend{name: "anthropic", err: errors.New("unreachable")}, "claude")
	r.SetLocal(&stubBackend{name: "ollama", models: []string{"llama3.1:8b"}})

	names := r.ListModels(context.Background())
	want := []string{"gpt-4", "gpt-3.5-turbo", "llama3.1:8b"}
	if len(names) != len(want) {
		t.Fatalf("ListModels = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("ListModels[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestStatuses(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubBackend{name: "openai", models: []string{"gpt-4"}}, "gpt")
	r.SetLocal(&stubBackend{name: "ollama", err: errors.New("down")})

	statuses := r.Statuses(context.Background())
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if !statuses[0].Reachable || statuses[0].Models != 1 {
		t.Errorf("unexpected openai status: %+v", statuses[0])
	}
	if statuses[1].Reachable {
		t.Errorf("unreachable backend reported reachable: %+v", statuses[1])
	}
}

func TestCollectStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	ch := make(chan Chunk, 3)
	ch <- Chunk{Content: "partial"}
	ch <- Chunk{Err: boom}
	close(ch)

	got, err := Collect(ch)
	if !errors.Is(err, boom) {
		t.Fatalf("expected stream error, got %v", err)
	}
	if got != "" {
		t.Errorf("Collect returned partial content %q on error", got)
	}
}
