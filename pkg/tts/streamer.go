package tts

import (
	"context"
	"strings"

	"github.com/lokutor-ai/answerflow/internal/metrics"
)

const breakMarker = "<break/>"

// AudioReadyCallback is invoked once per synthesized phrase.
type AudioReadyCallback func(phraseText string, audio []byte)

// Streamer buffers generator text until a <break/> marker and dispatches
// one synthesis call per phrase, per request. It is constructed fresh
// for every request and driven only from the orchestrator's streaming
// goroutine, so it needs no internal locking.
type Streamer struct {
	synth   *Synthesizer
	opts    FormatOptions
	onReady AudioReadyCallback

	acc        strings.Builder
	chunkOrder int
	flushed    bool
}

// NewStreamer builds a per-request streamer. opts.Voice should already
// be resolved (language match, family fallback, or multilingual
// default) by the caller, since C3 has no notion of tenant config.
func NewStreamer(synth *Synthesizer, opts FormatOptions, onReady AudioReadyCallback) *Streamer {
	return &Streamer{synth: synth, opts: opts, onReady: onReady}
}

// AppendText concatenates s to the accumulator, synthesizing and
// emitting one phrase for every complete <break/>-delimited span, and
// recursing over the residue in case s carried more than one marker.
func (s *Streamer) AppendText(ctx context.Context, text string) error {
	s.acc.WriteString(text)
	return s.drain(ctx)
}

func (s *Streamer) drain(ctx context.Context) error {
	buf := s.acc.String()
	idx := strings.Index(buf, breakMarker)
	if idx < 0 {
		return nil
	}

	phrase := buf[:idx]
	residue := buf[idx+len(breakMarker):]

	s.acc.Reset()
	s.acc.WriteString(residue)

	if err := s.synthesizeAndEmit(ctx, phrase); err != nil {
		return err
	}
	return s.drain(ctx)
}

func (s *Streamer) synthesizeAndEmit(ctx context.Context, phrase string) error {
	trimmed := strings.TrimSpace(phrase)
	if trimmed == "" {
		return nil
	}

	audio, err := s.synth.Synthesize(ctx, trimmed, s.opts)
	if err != nil {
		return err
	}
	if audio == nil {
		return nil // TTS is non-fatal: a miss just means no audio for this phrase
	}

	s.chunkOrder++
	metrics.TTSPhrasesTotal.Inc()
	if s.onReady != nil {
		s.onReady(trimmed, audio)
	}
	return nil
}

// Flush synthesizes whatever text remains in the accumulator (with any
// stray <break/> markers stripped) as a final phrase. Safe to call at
// most once, at request end.
func (s *Streamer) Flush(ctx context.Context) error {
	if s.flushed {
		return nil
	}
	s.flushed = true

	remaining := strings.ReplaceAll(s.acc.String(), breakMarker, "")
	s.acc.Reset()
	return s.synthesizeAndEmit(ctx, remaining)
}

// ResolveVoice picks a language's voice model out of a tenant's voice
// table, falling back to the language family and then "default", so a
// partially configured tenant never hard-fails on voice lookup.
func ResolveVoice(voices map[string]VoiceModel, language string) VoiceModel {
	if v, ok := voices[language]; ok {
		return v
	}
	if family := languageFamily(language); family != language {
		if v, ok := voices[family]; ok {
			return v
		}
	}
	if v, ok := voices["default"]; ok {
		return v
	}
	return VoiceModel{Name: "default"}
}

func languageFamily(language string) string {
	for i, r := range language {
		if r == '-' || r == '_' {
			return language[:i]
		}
	}
	return language
}
