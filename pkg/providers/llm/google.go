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

// GoogleLLM is the Gemini generateContent backend. Like Anthropic, its
// streaming transport (generateContent vs streamGenerateContent, a
// different SSE envelope) isn't worth a second code path here, so it
// completes the full response and delivers it as one token.
type GoogleLLM struct {
	apiKey string
	url    string
	model  string
	client *http.Client
}

// NewGoogleLLM builds a client against the public Gemini API.
func NewGoogleLLM(apiKey, model string, client *http.Client) *GoogleLLM {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GoogleLLM{
		apiKey: apiKey,
		url:    "https://generativelanguage.googleapis.com/v1beta/models/" + model + ":generateContent",
		model:  model,
		client: client,
	}
}

func (l *GoogleLLM) Name() string { return "google-llm" }

type googleMessage struct {
	Role  string `json:"role"`
	Parts []struct {
		Text string `json:"text"`
	} `json:"parts"`
}

func (l *GoogleLLM) call(ctx context.Context, url, systemPrompt string, messages []Message) (string, error) {
	var contents []googleMessage

	// Gemini has no system role on this endpoint: fold it in as the
	// first user turn.
	if systemPrompt != "" {
		messages = append([]Message{{Role: "user", Content: systemPrompt}}, messages...)
	}

	for _, m := range messages {
		role := m.Role
		if role == "system" {
			role = "user"
		}
		if role == "assistant" {
			role = "model"
		}
		msg := googleMessage{Role: role}
		msg.Parts = append(msg.Parts, struct {
			Text string `json:"text"`
		}{Text: m.Content})
		contents = append(contents, msg)
	}

	body, err := json.Marshal(map[string]any{"contents": contents})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"?key="+l.apiKey, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("llm: google status %d: %s", resp.StatusCode, errBody)
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("llm: no response from google")
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}

func (l *GoogleLLM) urlFor(model string) string {
	if model == "" || model == l.model {
		return l.url
	}
	return "https://generativelanguage.googleapis.com/v1beta/models/" + model + ":generateContent"
}

// Generate completes the request and delivers the full response as a
// single token.
func (l *GoogleLLM) Generate(ctx context.Context, req GenerateRequest, onToken TokenCallback) (*GenResult, error) {
	start := time.Now()

	messages := req.History
	if req.UserPrompt != "" {
		messages = append(append([]Message{}, messages...), Message{Role: "user", Content: req.UserPrompt})
	}

	text, err := l.call(ctx, l.urlFor(req.Model), req.SystemPrompt, messages)
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
func (l *GoogleLLM) Complete(ctx context.Context, req CompleteRequest) (string, error) {
	messages := req.History
	if req.UserPrompt != "" {
		messages = append(append([]Message{}, messages...), Message{Role: "user", Content: req.UserPrompt})
	}
	return l.call(ctx, l.urlFor(req.Model), req.SystemPrompt, messages)
}
