package tts

import (
	"context"

	"github.com/lokutor-ai/answerflow/pkg/audio"
)

// CloudTTSClient sends a complete SSML document to the external TTS
// service and returns raw 16 kHz/16-bit/mono PCM.
type CloudTTSClient interface {
	Synthesize(ctx context.Context, ssml string, voice string) ([]byte, error)
}

// Synthesizer implements the C2 contract: build SSML, check the blob
// cache, call the cloud TTS service on a miss, trim silence, package to
// WAV, and fire off an async cache write.
type Synthesizer struct {
	Formatter        *SSMLFormatter
	Cache            *Cache
	Cloud            CloudTTSClient
	TrimSilence      bool
	SilenceThreshold float64
}

// NewSynthesizer wires the three collaborators with trimming on by
// default, matching the component's documented default.
func NewSynthesizer(formatter *SSMLFormatter, cache *Cache, cloud CloudTTSClient) *Synthesizer {
	return &Synthesizer{
		Formatter:   formatter,
		Cache:       cache,
		Cloud:       cloud,
		TrimSilence: true,
	}
}

// Synthesize turns text into WAV bytes, or nil if the upstream TTS call
// fails (a non-2xx response is treated as "nothing to return", not a
// fatal error, so the pipeline can degrade to text-only).
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts FormatOptions) ([]byte, error) {
	result, err := s.Formatter.Format(ctx, text, opts)
	if err != nil {
		return nil, err
	}

	if cached, ok := s.Cache.Get(ctx, result.Language, opts.Voice.Name, result.PhonemeText); ok {
		return cached, nil
	}

	pcm, err := s.Cloud.Synthesize(ctx, result.SSML, opts.Voice.Name)
	if err != nil {
		return nil, err
	}
	if len(pcm) == 0 {
		return nil, nil
	}

	if s.TrimSilence {
		pcm = audio.TrimSilence(pcm, s.SilenceThreshold)
	}
	wav := audio.WrapPCM(pcm)

	s.Cache.PutAsync(result.Language, opts.Voice.Name, result.PhonemeText, wav)
	return wav, nil
}
