package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAILLMGenerateStreams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, tok := range []string{"hello", " from", " openai"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", tok)
		}
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	l := &OpenAILLM{apiKey: "test-key", url: server.URL, model: "gpt-4o", name: "openai-llm", client: server.Client()}

	var got []string
	result, err := l.Generate(context.Background(), GenerateRequest{UserPrompt: "hi"}, func(tok string) {
		got = append(got, tok)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "hello from openai" {
		t.Errorf("expected concatenated text, got %q", result.Text)
	}
	if strings.Join(got, "") != "hello from openai" {
		t.Errorf("onToken callbacks did not reconstruct the full text: %v", got)
	}
	if l.Name() != "openai-llm" {
		t.Errorf("expected openai-llm, got %s", l.Name())
	}
}

func TestOpenAILLMComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[{"message":{"content":"hello from openai"}}]}`)
	}))
	defer server.Close()

	l := &OpenAILLM{apiKey: "test-key", url: server.URL, model: "gpt-4o", name: "openai-llm", client: server.Client()}

	resp, err := l.Complete(context.Background(), CompleteRequest{UserPrompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "hello from openai" {
		t.Errorf("expected 'hello from openai', got %q", resp)
	}
}

func TestOpenAILLMCompleteErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, "nope")
	}))
	defer server.Close()

	l := &OpenAILLM{apiKey: "bad", url: server.URL, model: "gpt-4o", name: "openai-llm", client: server.Client()}

	if _, err := l.Complete(context.Background(), CompleteRequest{UserPrompt: "hi"}); err == nil {
		t.Fatal("expected an error on non-200 status")
	}
}
