// Package orchestrator drives the validate → search → generate
// pipeline (C7), turning one request into a sequence of Event Bus
// events and fanning generator output through the Parser and TTS
// Streamer.
package orchestrator

import (
	"github.com/lokutor-ai/answerflow/pkg/providers/llm"
)

// RequestContext is one decoded request. A non-empty Keywords skips
// the validator entirely (see Orchestrator.validate). GenerateAnswer
// defaults to true at the HTTP boundary; callers that construct it
// directly must set it explicitly.
type RequestContext struct {
	Transcript           string
	Language             string
	Base64Audio          string
	OrgID                string
	ConfigID             string
	ChatHistory          []llm.Message
	Keywords             []string
	TranscriptConfidence float64
	HasConfidence        bool
	GenerateAnswer       bool
}
