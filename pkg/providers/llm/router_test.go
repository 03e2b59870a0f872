package llm

import (
	"context"
	"testing"
)

type stubProvider struct {
	name    string
	lastReq GenerateRequest
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Generate(ctx context.Context, req GenerateRequest, onToken TokenCallback) (*GenResult, error) {
	s.lastReq = req
	return &GenResult{Text: s.name}, nil
}

func (s *stubProvider) Complete(ctx context.Context, req CompleteRequest) (string, error) {
	return s.name, nil
}

func TestGeneratorRouterRoutesByEngine(t *testing.T) {
	openai := &stubProvider{name: "openai-llm"}
	anthropic := &stubProvider{name: "anthropic-llm"}
	groq := &stubProvider{name: "groq-llm"}

	router := NewGeneratorRouter(map[string]Provider{
		"openai":    openai,
		"anthropic": anthropic,
	}, "openai", groq)

	result, err := router.Generate(context.Background(), "anthropic", GenerateRequest{UserPrompt: "hi"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "anthropic-llm" {
		t.Errorf("expected anthropic backend to handle the request, got %q", result.Text)
	}
}

func TestGeneratorRouterGroqPrefixOverridesEngine(t *testing.T) {
	openai := &stubProvider{name: "openai-llm"}
	groq := &stubProvider{name: "groq-llm"}

	router := NewGeneratorRouter(map[string]Provider{"openai": openai}, "openai", groq)

	result, err := router.Generate(context.Background(), "openai", GenerateRequest{
		Model:        "groq/llama-3.1-70b",
		SystemPrompt: "be terse",
		History:      []Message{{Role: "system", Content: "extra system note"}},
		UserPrompt:   "hi",
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "groq-llm" {
		t.Fatalf("expected groq/ prefix to override the engine selection, got %q", result.Text)
	}
	if groq.lastReq.Model != "llama-3.1-70b" {
		t.Errorf("expected groq prefix to be stripped, got model %q", groq.lastReq.Model)
	}
	if len(groq.lastReq.History) != 0 {
		t.Errorf("expected system history to be coalesced away, got %v", groq.lastReq.History)
	}
	if groq.lastReq.SystemPrompt != "be terse\n\nextra system note" {
		t.Errorf("expected coalesced system prompt, got %q", groq.lastReq.SystemPrompt)
	}
}

func TestRouterFallsBackWhenEngineEmpty(t *testing.T) {
	openai := &stubProvider{name: "openai-llm"}
	router := NewRouter(map[string]Provider{"openai": openai}, "openai")

	backend, err := router.Route("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend.Name() != "openai-llm" {
		t.Errorf("expected fallback to openai, got %s", backend.Name())
	}
}

func TestRouterUnknownEngine(t *testing.T) {
	router := NewRouter(map[string]Provider{}, "openai")
	if _, err := router.Route("openai"); err == nil {
		t.Fatal("expected an error for an unregistered engine")
	}
}
