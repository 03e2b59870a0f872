// Package validator implements the Validator external-call adapter: a
// single RPC against an LLM that corrects a transcript and extracts
// search keywords, enforcing a JSON response at temperature 0.
package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lokutor-ai/answerflow/pkg/providers/llm"
)

// Request carries everything the validator needs: the (possibly
// confidence-gated) transcript, the system/user prompt text already
// resolved from tenant URLs, and the prior chat turns.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	Transcript   string
	ChatHistory  []llm.Message
	Model        string
}

// Result is the validator's JSON response schema.
type Result struct {
	Correction  string        `json:"correction"`
	ChatHistory []llm.Message `json:"chat_history"`
	Keywords    []string      `json:"keywords"`
}

// Client validates a transcript through an llm.Provider.
type Client struct {
	provider llm.Provider
}

// New wraps provider as the validator backend.
func New(provider llm.Provider) *Client {
	return &Client{provider: provider}
}

// Validate asks the LLM for a correction/keywords pair, at temperature 0
// with JSON mode enforced, tolerating markdown-fenced responses.
func (c *Client) Validate(ctx context.Context, req Request) (Result, error) {
	userPrompt := req.UserPrompt
	if req.Transcript != "" {
		userPrompt = strings.TrimSpace(userPrompt + "\n\nTranscript: " + req.Transcript)
	}

	raw, err := c.provider.Complete(ctx, llm.CompleteRequest{
		SystemPrompt: req.SystemPrompt,
		UserPrompt:   userPrompt,
		History:      req.ChatHistory,
		Model:        req.Model,
		JSONMode:     true,
		Temperature:  0,
	})
	if err != nil {
		return Result{}, fmt.Errorf("validator: complete: %w", err)
	}

	var result Result
	if err := json.Unmarshal([]byte(stripMarkdownFence(raw)), &result); err != nil {
		return Result{}, fmt.Errorf("validator: parse response: %w", err)
	}
	return result, nil
}

// stripMarkdownFence removes an optional ```json ... ``` or ``` ... ```
// wrapper some models add around JSON output.
func stripMarkdownFence(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(strings.TrimSpace(s), "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
