// Package parser implements the token-level state machine that segments
// a streaming generator response into thinking, voice, display-answer,
// metadata, and session-end regions, never leaking control markers into
// any sink.
package parser

import "strings"

// State names one node of the parser's finite automaton.
type State string

const (
	StateUnknown    State = "UNKNOWN"
	StateSectionA   State = "SECTION_A"
	StateSectionB   State = "SECTION_B"
	StateThinking   State = "THINKING"
	StateAnswer     State = "ANSWER"
	StateMetadata   State = "METADATA"
	StateCompleted  State = "COMPLETED"
	StateSessionEnd State = "SESSION_END"
)

const (
	tagThinkingOpen  = "<thinking>"
	tagThinkingClose = "</thinking>"
	tagSectionAOpen  = "<sectionA>"
	tagSectionAClose = "</sectionA>"
	tagSectionBOpen  = "<sectionB>"
	tagSectionBClose = "</sectionB>"
	metaBracket      = "meta:docs"
	sessionEndMarker = "{#NXENDX#}"

	// unknownLookaheadChars is the accumulation threshold at which an
	// UNKNOWN-state buffer with no section tag in sight is treated as a
	// plain (unformatted) answer stream.
	unknownLookaheadChars = 20
)

// MetadataResult is handed to Sinks.Metadata once the trailing metadata
// buffer has been finalized. DocIDs is populated when a "doc-ids" field
// was parsed out of the first JSON object in the buffer (or recovered
// heuristically); Raw holds the untouched buffer when no ids could be
// recovered at all.
type MetadataResult struct {
	DocIDs []string
	Raw    string
}

// Sinks are the callbacks the parser routes recognized regions to. All
// are invoked synchronously from Feed/Finalize, in token order, from a
// single calling goroutine.
type Sinks struct {
	Thinking         func(content string)
	AnswerChunk      func(content string)
	VoiceAnswerChunk func(content string)
	Metadata         func(MetadataResult)
	SessionEnd       func()
}

// Parser advances a finite automaton over a streaming LLM response,
// one Feed call per arriving chunk. It is not safe for concurrent use;
// exactly one caller (the orchestrator's streaming loop) advances it.
type Parser struct {
	state State
	buf   string

	fullResponse strings.Builder
	metadataBuf  strings.Builder

	thinkingEmitted bool
	sessionEnded    bool

	sinks Sinks
}

// New creates a Parser in its initial UNKNOWN state.
func New(sinks Sinks) *Parser {
	return &Parser{state: StateUnknown, sinks: sinks}
}

// State returns the parser's current automaton state, mostly useful for
// tests and diagnostics.
func (p *Parser) State() State { return p.state }

// SessionEnded reports whether the session-end sentinel was observed.
func (p *Parser) SessionEnded() bool { return p.sessionEnded }

// Feed advances the parser with the next chunk of the streaming
// response.
func (p *Parser) Feed(chunk string) {
	if chunk == "" {
		return
	}
	p.fullResponse.WriteString(chunk)
	if p.sessionEnded {
		return
	}
	p.buf += chunk
	for p.step() {
	}
}

// step attempts to resolve as much of the pending buffer as the current
// state allows, returning true if it should be called again immediately
// (more progress is possible without new input).
func (p *Parser) step() bool {
	switch p.state {
	case StateUnknown:
		return p.stepUnknown()
	case StateThinking:
		return p.stepThinking()
	case StateSectionA:
		return p.stepSectionA()
	case StateSectionB:
		return p.stepSectionB()
	case StateAnswer:
		return p.stepAnswer()
	case StateMetadata:
		return p.stepMetadata()
	case StateCompleted:
		return p.stepCompleted()
	case StateSessionEnd:
		return p.stepSessionEnd()
	default:
		return false
	}
}

func (p *Parser) stepUnknown() bool {
	idxThinking := strings.Index(p.buf, tagThinkingOpen)
	idxSectionA := strings.Index(p.buf, tagSectionAOpen)

	if idxThinking >= 0 && (idxSectionA < 0 || idxThinking <= idxSectionA) {
		p.state = StateThinking
		p.buf = p.buf[idxThinking+len(tagThinkingOpen):]
		return true
	}
	if idxSectionA >= 0 {
		p.state = StateSectionA
		p.buf = p.buf[idxSectionA+len(tagSectionAOpen):]
		return true
	}

	if hasPartialTagSuffix(p.buf, tagThinkingOpen) || hasPartialTagSuffix(p.buf, tagSectionAOpen) {
		return false
	}
	if len(p.buf) >= unknownLookaheadChars {
		p.state = StateAnswer
		return true
	}
	return false
}

func (p *Parser) stepThinking() bool {
	idx := strings.Index(p.buf, tagThinkingClose)
	if idx == -1 {
		return false
	}
	content := p.buf[:idx]
	if !p.thinkingEmitted {
		p.thinkingEmitted = true
		if p.sinks.Thinking != nil {
			p.sinks.Thinking(content)
		}
	}
	p.buf = p.buf[idx+len(tagThinkingClose):]
	p.state = StateUnknown
	return true
}

func (p *Parser) stepSectionA() bool {
	idx := strings.Index(p.buf, tagSectionBOpen)
	if idx == -1 {
		return false
	}
	raw := p.buf[:idx]
	p.buf = p.buf[idx+len(tagSectionBOpen):]
	raw = strings.ReplaceAll(raw, tagSectionAClose, "")

	if ti := strings.Index(raw, tagThinkingOpen); ti >= 0 {
		if tc := strings.Index(raw, tagThinkingClose); tc > ti {
			inner := raw[ti+len(tagThinkingOpen) : tc]
			if !p.thinkingEmitted {
				p.thinkingEmitted = true
				if p.sinks.Thinking != nil {
					p.sinks.Thinking(inner)
				}
			}
			raw = raw[:ti] + raw[tc+len(tagThinkingClose):]
		}
	}

	if mi := strings.Index(raw, "["+metaBracket+"]"); mi >= 0 {
		voice := raw[:mi]
		p.metadataBuf.WriteString(raw[mi+len(metaBracket)+2:])
		raw = voice
	}

	if raw != "" && p.sinks.VoiceAnswerChunk != nil {
		p.sinks.VoiceAnswerChunk(raw)
	}
	p.state = StateSectionB
	return true
}

func (p *Parser) stepSectionB() bool {
	closeIdx := strings.Index(p.buf, tagSectionBClose)
	if closeIdx == -1 {
		res := scanFreeText(p.buf)
		if res.hitMeta {
			p.emitAnswer(res.literal)
			p.metadataBuf.WriteString(res.metaRemainder)
			p.buf = ""
			p.state = StateMetadata
			return true
		}
		if res.hitSessionEnd {
			p.emitAnswer(res.literal)
			p.endSession()
			return true
		}
		return false
	}

	window := p.buf[:closeIdx]
	res := scanFreeText(window)
	literal := res.literal + res.leftover // flush any unresolved bracket; the section is closing regardless

	if res.hitMeta {
		p.emitAnswer(res.literal)
		p.metadataBuf.WriteString(res.metaRemainder)
		p.buf = p.buf[closeIdx+len(tagSectionBClose):]
		p.state = StateMetadata
		return true
	}
	if res.hitSessionEnd {
		p.emitAnswer(res.literal)
		p.buf = p.buf[closeIdx+len(tagSectionBClose):]
		p.endSession()
		return true
	}

	p.emitAnswer(literal)
	p.buf = p.buf[closeIdx+len(tagSectionBClose):]
	p.state = StateCompleted
	return true
}

func (p *Parser) stepAnswer() bool {
	res := scanFreeText(p.buf)
	p.emitAnswer(res.literal)

	if res.hitMeta {
		p.metadataBuf.WriteString(res.metaRemainder)
		p.buf = ""
		p.state = StateMetadata
		return true
	}
	if res.hitSessionEnd {
		p.endSession()
		return true
	}
	progressed := res.literal != ""
	p.buf = res.leftover
	return progressed
}

func (p *Parser) stepMetadata() bool {
	if p.buf == "" {
		return false
	}
	p.metadataBuf.WriteString(p.buf)
	p.buf = ""
	return false
}

func (p *Parser) stepCompleted() bool {
	res := scanFreeText(p.buf)
	if res.hitMeta {
		p.metadataBuf.WriteString(res.metaRemainder)
		p.buf = ""
		p.state = StateMetadata
		return true
	}
	if res.hitSessionEnd {
		p.endSession()
		return true
	}
	if res.literal != "" {
		p.buf = res.leftover
		return true
	}
	return false
}

func (p *Parser) stepSessionEnd() bool {
	if p.buf != "" {
		p.buf = ""
		return true
	}
	return false
}

func (p *Parser) emitAnswer(text string) {
	if text != "" && p.sinks.AnswerChunk != nil {
		p.sinks.AnswerChunk(text)
	}
}

func (p *Parser) endSession() {
	p.buf = ""
	p.sessionEnded = true
	p.state = StateSessionEnd
	if p.sinks.SessionEnd != nil {
		p.sinks.SessionEnd()
	}
}

// Finalize flushes any trailing buffered content once the upstream
// stream has ended. It must be called exactly once per parser.
func (p *Parser) Finalize() {
	if p.sessionEnded {
		return
	}

	if p.state == StateMetadata {
		p.finalizeMetadata()
		return
	}

	if p.buf != "" {
		res := scanFreeText(p.buf)
		if res.hitMeta {
			p.emitAnswer(res.literal)
			p.metadataBuf.WriteString(res.metaRemainder)
			p.finalizeMetadata()
			return
		}
		if res.hitSessionEnd {
			p.emitAnswer(res.literal)
			p.sessionEnded = true
			if p.sinks.SessionEnd != nil {
				p.sinks.SessionEnd()
			}
			return
		}
		p.emitAnswer(res.literal + res.leftover)
	}

	// A <sectionA> meta marker writes straight to metadataBuf without
	// ever entering METADATA state (the JSON is already fully buffered
	// by the time sectionA closes); finalize it here so metadata still
	// emits once the whole response has been parsed.
	if p.metadataBuf.Len() > 0 {
		p.finalizeMetadata()
	}
}
