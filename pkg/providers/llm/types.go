// Package llm implements the streaming generator side of the
// External-Call Adapters: OpenAI/Groq/Anthropic/Google backends behind
// a common Provider interface, plus the groq/ model-prefix multiplexer.
package llm

import (
	"context"
	"strings"
)

// Message is one chat turn. Role is "system", "user", or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenCallback is invoked for each streamed text delta.
type TokenCallback func(token string)

// GenerateRequest carries everything a Provider needs to produce a
// streaming chat completion.
type GenerateRequest struct {
	SystemPrompt string
	UserPrompt   string
	History      []Message
	Model        string
}

// CompleteRequest is the non-streaming counterpart used by the
// validator adapter, which wants a single JSON-mode response at
// temperature 0.
type CompleteRequest struct {
	SystemPrompt string
	UserPrompt   string
	History      []Message
	Model        string
	JSONMode     bool
	Temperature  float64
}

// GenResult holds the complete streamed text plus basic timing, mirroring
// the ambient instrumentation the rest of the pack captures per call.
type GenResult struct {
	Text               string  `json:"text"`
	LatencyMs          float64 `json:"latency_ms"`
	TimeToFirstTokenMs float64 `json:"ttft_ms"`
}

// Provider is one LLM backend capable of both modes the core needs.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest, onToken TokenCallback) (*GenResult, error)
	Complete(ctx context.Context, req CompleteRequest) (string, error)
}

const groqPrefix = "groq/"

// coalesceSystemMessages merges SystemPrompt and every system-role
// History entry into a single system message, joined by blank lines,
// for providers (Groq) that accept only one system message.
func coalesceSystemMessages(req GenerateRequest) GenerateRequest {
	var systemParts []string
	if req.SystemPrompt != "" {
		systemParts = append(systemParts, req.SystemPrompt)
	}
	var rest []Message
	for _, m := range req.History {
		if m.Role == "system" {
			systemParts = append(systemParts, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	req.SystemPrompt = strings.Join(systemParts, "\n\n")
	req.History = rest
	return req
}
