package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// AnthropicLLM is the Messages API backend. Anthropic's SSE event
// framing differs enough from the OpenAI-compatible delta format (named
// event types, content_block_delta wrapping) that, since nothing in this
// pipeline depends on sub-request token timing for this provider, it
// completes the full response and delivers it as a single token.
type AnthropicLLM struct {
	apiKey string
	url    string
	model  string
	client *http.Client
}

// NewAnthropicLLM builds a client against the public Anthropic API.
func NewAnthropicLLM(apiKey, model string, client *http.Client) *AnthropicLLM {
	if model == "" {
		model = "claude-3-5-sonnet-20240620"
	}
	return &AnthropicLLM{
		apiKey: apiKey,
		url:    "https://api.anthropic.com/v1/messages",
		model:  model,
		client: client,
	}
}

func (l *AnthropicLLM) Name() string { return "anthropic-llm" }

func (l *AnthropicLLM) messagesPayload(model, system string, messages []Message, maxTokens int) map[string]any {
	var anthropicMessages []map[string]string
	for _, m := range messages {
		anthropicMessages = append(anthropicMessages, map[string]string{"role": m.Role, "content": m.Content})
	}
	payload := map[string]any{
		"model":      model,
		"messages":   anthropicMessages,
		"max_tokens": maxTokens,
	}
	if system != "" {
		payload["system"] = system
	}
	return payload
}

func (l *AnthropicLLM) call(ctx context.Context, model, system string, messages []Message) (string, error) {
	payload := l.messagesPayload(model, system, messages, 1024)

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", l.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("llm: anthropic status %d: %s", resp.StatusCode, errBody)
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("llm: no content returned from anthropic")
	}
	return result.Content[0].Text, nil
}

// Generate completes the request and delivers the full response as a
// single token before returning, so callers downstream of the parser
// still see one continuous stream regardless of backend.
func (l *AnthropicLLM) Generate(ctx context.Context, req GenerateRequest, onToken TokenCallback) (*GenResult, error) {
	start := time.Now()
	model := l.model
	if req.Model != "" {
		model = req.Model
	}

	messages := req.History
	if req.UserPrompt != "" {
		messages = append(append([]Message{}, messages...), Message{Role: "user", Content: req.UserPrompt})
	}

	text, err := l.call(ctx, model, req.SystemPrompt, messages)
	if err != nil {
		return nil, err
	}

	latency := time.Since(start)
	if onToken != nil && text != "" {
		onToken(text)
	}
	return &GenResult{
		Text:               text,
		LatencyMs:          float64(latency.Milliseconds()),
		TimeToFirstTokenMs: float64(latency.Milliseconds()),
	}, nil
}

// Complete performs a single non-streaming completion.
func (l *AnthropicLLM) Complete(ctx context.Context, req CompleteRequest) (string, error) {
	model := l.model
	if req.Model != "" {
		model = req.Model
	}
	messages := req.History
	if req.UserPrompt != "" {
		messages = append(append([]Message{}, messages...), Message{Role: "user", Content: req.UserPrompt})
	}
	return l.call(ctx, model, req.SystemPrompt, messages)
}
