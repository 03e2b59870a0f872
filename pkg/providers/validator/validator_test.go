package validator

import (
	"context"
	"testing"

	"github.com/lokutor-ai/answerflow/pkg/providers/llm"
)

type stubProvider struct {
	response string
	lastReq  llm.CompleteRequest
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Generate(ctx context.Context, req llm.GenerateRequest, onToken llm.TokenCallback) (*llm.GenResult, error) {
	return nil, nil
}

func (s *stubProvider) Complete(ctx context.Context, req llm.CompleteRequest) (string, error) {
	s.lastReq = req
	return s.response, nil
}

func TestValidateParsesJSONResponse(t *testing.T) {
	provider := &stubProvider{response: `{"correction":"how do I get to level 3","chat_history":[],"keywords":["map","level-3"]}`}
	c := New(provider)

	result, err := c.Validate(context.Background(), Request{Transcript: "how do i get to level tree"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Correction != "how do I get to level 3" {
		t.Errorf("unexpected correction: %q", result.Correction)
	}
	if len(result.Keywords) != 2 {
		t.Errorf("unexpected keywords: %v", result.Keywords)
	}
	if provider.lastReq.Temperature != 0 || !provider.lastReq.JSONMode {
		t.Errorf("expected temperature 0 and JSON mode, got %+v", provider.lastReq)
	}
}

func TestValidateStripsMarkdownFence(t *testing.T) {
	provider := &stubProvider{response: "```json\n{\"correction\":\"ok\",\"keywords\":[]}\n```"}
	c := New(provider)

	result, err := c.Validate(context.Background(), Request{Transcript: "ok"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Correction != "ok" {
		t.Errorf("expected fence-stripped correction, got %q", result.Correction)
	}
}

func TestValidatePropagatesMalformedJSONAsError(t *testing.T) {
	provider := &stubProvider{response: "not json"}
	c := New(provider)

	if _, err := c.Validate(context.Background(), Request{Transcript: "x"}); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}
