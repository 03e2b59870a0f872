package llm

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

// OpenAILLM is an OpenAI-compatible chat-completions backend. The Groq
// provider wraps this client against a different base URL, since both
// speak the same wire format.
type OpenAILLM struct {
	apiKey string
	url    string
	model  string
	name   string
	client *http.Client
}

// NewOpenAILLM builds a client against the public OpenAI API.
func NewOpenAILLM(apiKey, model string, client *http.Client) *OpenAILLM {
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAILLM{
		apiKey: apiKey,
		url:    "https://api.openai.com/v1/chat/completions",
		model:  model,
		name:   "openai-llm",
		client: client,
	}
}

func (l *OpenAILLM) Name() string { return l.name }

func chatMessages(req GenerateRequest) []Message {
	var out []Message
	if req.SystemPrompt != "" {
		out = append(out, Message{Role: "system", Content: req.SystemPrompt})
	}
	out = append(out, req.History...)
	if req.UserPrompt != "" {
		out = append(out, Message{Role: "user", Content: req.UserPrompt})
	}
	return out
}

// Generate streams a chat completion token by token over SSE.
func (l *OpenAILLM) Generate(ctx context.Context, req GenerateRequest, onToken TokenCallback) (*GenResult, error) {
	start := time.Now()

	model := l.model
	if req.Model != "" {
		model = req.Model
	}

	body, err := json.Marshal(map[string]any{
		"model":    model,
		"messages": chatMessages(req),
		"stream":   true,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: marshal openai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: build openai request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := l.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm: openai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("llm: openai status %d: %s", resp.StatusCode, errBody)
	}

	text, ttft := consumeChatSSE(resp.Body, onToken)
	latency := time.Since(start)

	result := &GenResult{Text: text, LatencyMs: float64(latency.Milliseconds())}
	if !ttft.IsZero() {
		result.TimeToFirstTokenMs = float64(ttft.Sub(start).Milliseconds())
	}
	return result, nil
}

// Complete performs a single non-streaming completion, used by the
// validator adapter.
func (l *OpenAILLM) Complete(ctx context.Context, req CompleteRequest) (string, error) {
	model := l.model
	if req.Model != "" {
		model = req.Model
	}

	payload := map[string]any{
		"model":       model,
		"messages":    chatMessages(GenerateRequest{SystemPrompt: req.SystemPrompt, UserPrompt: req.UserPrompt, History: req.History}),
		"temperature": req.Temperature,
	}
	if req.JSONMode {
		payload["response_format"] = map[string]string{"type": "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := l.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("llm: openai status %d: %s", resp.StatusCode, errBody)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("llm: no choices returned from openai")
	}
	return result.Choices[0].Message.Content, nil
}

// consumeChatSSE reads an OpenAI-style "data: {...}\n\n" token stream,
// invoking onToken for every non-empty delta and returning the
// concatenated text plus the time the first token arrived (zero if none).
func consumeChatSSE(body io.Reader, onToken TokenCallback) (string, time.Time) {
	var text string
	var ttft time.Time

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if json.Unmarshal([]byte(data), &chunk) != nil || len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if ttft.IsZero() {
			ttft = time.Now()
		}
		if onToken != nil {
			onToken(delta)
		}
		text += delta
	}

	return text, ttft
}
