package llm

import "net/http"

// GroqLLM speaks the same OpenAI-compatible chat-completions wire format
// against Groq's hosted endpoint, so it's built directly on OpenAILLM.
type GroqLLM struct {
	*OpenAILLM
}

// NewGroqLLM builds a Groq client. model should be the bare Groq model
// name (the "groq/" prefix is stripped by the router before reaching it).
func NewGroqLLM(apiKey, model string, client *http.Client) *GroqLLM {
	inner := NewOpenAILLM(apiKey, model, client)
	inner.url = "https://api.groq.com/openai/v1/chat/completions"
	inner.name = "groq-llm"
	return &GroqLLM{OpenAILLM: inner}
}
