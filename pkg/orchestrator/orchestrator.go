package orchestrator

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/lokutor-ai/answerflow/internal/metrics"
	"github.com/lokutor-ai/answerflow/pkg/audio"
	"github.com/lokutor-ai/answerflow/pkg/bus"
	"github.com/lokutor-ai/answerflow/pkg/parser"
	"github.com/lokutor-ai/answerflow/pkg/providers/kmsearch"
	"github.com/lokutor-ai/answerflow/pkg/providers/llm"
	"github.com/lokutor-ai/answerflow/pkg/providers/validator"
	"github.com/lokutor-ai/answerflow/pkg/tenant"
	"github.com/lokutor-ai/answerflow/pkg/tts"
)

const (
	componentTextGeneration = "text_generation"
	componentTTSProcessing  = "tts_processing"

	defaultWatchdog = 300 * time.Second

	gatedTranscriptPlaceholder = "<transcript not available>"
	ttsBreakMarker             = "<break/>"
)

// Orchestrator wires the six external-call adapters and caches (C1,
// C3, C6, C8) into the ten-step request sequence, pushing every
// observable event through a fresh per-request Bus (C5).
type Orchestrator struct {
	Tenants   *tenant.Cache
	Prompts   *tenant.URLTextCache
	Validator *validator.Client
	KMSearch  *kmsearch.Client
	Generator *llm.GeneratorRouter
	Synth     *tts.Synthesizer

	// WaitAudioAsset, if set, is a prerecorded raw-PCM clip played once
	// generation starts (step 8's "optionally emit a packaged wait audio
	// asset").
	WaitAudioAsset       []byte
	WaitAudioAssetFormat string

	// Watchdog bounds the producer's lifetime; zero selects the 300 s
	// default.
	Watchdog time.Duration
}

// New wires an Orchestrator from its collaborators.
func New(tenants *tenant.Cache, prompts *tenant.URLTextCache, validatorClient *validator.Client, km *kmsearch.Client, generator *llm.GeneratorRouter, synth *tts.Synthesizer) *Orchestrator {
	return &Orchestrator{
		Tenants:   tenants,
		Prompts:   prompts,
		Validator: validatorClient,
		KMSearch:  km,
		Generator: generator,
		Synth:     synth,
	}
}

// Handle starts the pipeline for req on its own goroutine, bounded by
// the watchdog, and returns the Bus the HTTP handler should drain.
func (o *Orchestrator) Handle(ctx context.Context, req RequestContext) *bus.Bus {
	b := bus.New()
	b.RegisterComponent(componentTextGeneration)

	watchdog := o.Watchdog
	if watchdog <= 0 {
		watchdog = defaultWatchdog
	}
	runCtx, cancel := context.WithTimeout(ctx, watchdog)

	go func() {
		defer cancel()
		o.run(runCtx, b, req)
	}()
	return b
}

func (o *Orchestrator) run(ctx context.Context, b *bus.Bus, req RequestContext) {
	b.SendStatus(bus.StatusStarting, "")

	cfg, err := o.Tenants.Get(req.OrgID, req.ConfigID)
	if err != nil {
		metrics.PipelineErrorsTotal.WithLabelValues("tenant_lookup").Inc()
		b.SendError(err.Error())
		b.MarkAllComplete()
		return
	}

	language := req.Language
	if language == "" {
		language = cfg.DefaultLanguage
	}

	if cfg.AutoTrimSilent && req.Base64Audio != "" {
		if trimmed, ok := trimBase64Audio(req.Base64Audio); ok {
			req.Base64Audio = trimmed
		}
	}

	streamer, ttsReady := o.initStreamer(cfg, language, func(phraseText string, wav []byte) {
		pcm, err := audio.ParsePCM(wav)
		if err != nil {
			pcm = wav
		}
		b.SendData(bus.EventTTSAudio, bus.TTSAudioData{
			Text:        phraseText,
			Language:    language,
			AudioSize:   len(pcm),
			AudioData:   base64.StdEncoding.EncodeToString(pcm),
			AudioFormat: bus.AudioFormatRawPCM,
		})
	})
	if ttsReady {
		b.RegisterComponent(componentTTSProcessing)
	}

	correction, keywords, ok := o.validate(ctx, b, cfg, language, streamer, ttsReady, req)
	if !ok {
		return
	}

	b.SendStatus(bus.StatusSearchingKM, "")
	query := buildQuery(correction, keywords)
	assistantKey, _ := cfg.KMAssistantKey(language)
	kmStart := time.Now()
	kmResult, err := o.KMSearch.Search(ctx, []string{query}, assistantKey, cfg.MaxResults)
	metrics.KMSearchDuration.Observe(time.Since(kmStart).Seconds())
	if err != nil {
		metrics.PipelineErrorsTotal.WithLabelValues("km_search").Inc()
		b.SendError(err.Error())
		b.MarkAllComplete()
		return
	}
	b.SendData(bus.EventKMResult, kmResult)

	if !req.GenerateAnswer {
		b.SendStatus(bus.StatusComplete, "")
		b.SendComplete("")
		b.MarkAllComplete()
		return
	}

	b.SendStatus(bus.StatusGeneratingAnswer, "")
	if len(o.WaitAudioAsset) > 0 {
		format := o.WaitAudioAssetFormat
		if format == "" {
			format = bus.AudioFormatRawPCM
		}
		b.PlayAudio(o.WaitAudioAsset, format)
	}

	o.generate(ctx, b, cfg, language, streamer, ttsReady, correction, kmResult, req)
}

// validate implements step 5, returning the correction/keywords pair
// the rest of the pipeline reads from. ok is false if an error event
// was already sent and the caller must stop.
func (o *Orchestrator) validate(ctx context.Context, b *bus.Bus, cfg tenant.Config, language string, streamer *tts.Streamer, ttsReady bool, req RequestContext) (correction string, keywords []string, ok bool) {
	if len(req.Keywords) > 0 {
		correction = req.Transcript
		keywords = req.Keywords
		b.SendData(bus.EventValidationResult, bus.ValidationResultData{Correction: correction, Keywords: keywords})
		return correction, keywords, true
	}

	b.SendStatus(bus.StatusValidating, "")
	if ttsReady {
		phrase := pickProcessingPhrase(cfg.Resources, language)
		_ = streamer.AppendText(ctx, phrase+ttsBreakMarker)
	}

	transcript := req.Transcript
	threshold := cfg.ConfidenceThreshold(language)
	if threshold > 0 && req.HasConfidence && req.TranscriptConfidence < threshold {
		transcript = gatedTranscriptPlaceholder
	}

	systemPrompt, _ := o.Prompts.Get(ctx, cfg.ValidatorPromptURLFor(language))
	userPrompt := ""
	if url := cfg.ValidatorUserPromptURLFor(language); url != "" {
		userPrompt, _ = o.Prompts.Get(ctx, url)
	}
	validateStart := time.Now()
	result, err := o.Validator.Validate(ctx, validator.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Transcript:   transcript,
		ChatHistory:  req.ChatHistory,
		Model:        cfg.ValidatorModel,
	})
	metrics.ValidationDuration.Observe(time.Since(validateStart).Seconds())
	if err != nil {
		metrics.PipelineErrorsTotal.WithLabelValues("validation").Inc()
		b.SendError(err.Error())
		b.MarkAllComplete()
		return "", nil, false
	}

	b.SendData(bus.EventValidationResult, bus.ValidationResultData{Correction: result.Correction, Keywords: result.Keywords})
	return result.Correction, result.Keywords, true
}

// generate implements steps 9-10: stream the generator response
// through the Parser, wiring its sinks to the bus and the TTS
// streamer, then finalize and release the consumer.
func (o *Orchestrator) generate(ctx context.Context, b *bus.Bus, cfg tenant.Config, language string, streamer *tts.Streamer, ttsReady bool, correction string, kmResult kmsearch.Result, req RequestContext) {
	systemTemplate, _ := o.Prompts.Get(ctx, cfg.SystemPromptURL)
	systemPrompt := substitute(systemTemplate, map[string]string{
		"context":      formatKMContext(kmResult),
		"current_time": currentTimeRFC3339(),
	})

	userTemplate := "{question}"
	if cfg.GeneratorUserPromptURL != "" {
		if t, err := o.Prompts.Get(ctx, cfg.GeneratorUserPromptURL); err == nil && t != "" {
			userTemplate = t
		}
	}
	userPrompt := substitute(userTemplate, map[string]string{"question": correction})

	sawVoiceChunk := false
	p := parser.New(parser.Sinks{
		Thinking: func(content string) {
			b.SendData(bus.EventThinking, bus.ContentData{Content: content})
		},
		AnswerChunk: func(content string) {
			b.SendData(bus.EventAnswerChunk, bus.ContentData{Content: content})
			if !sawVoiceChunk && ttsReady {
				_ = streamer.AppendText(ctx, content)
			}
		},
		VoiceAnswerChunk: func(content string) {
			sawVoiceChunk = true
			if ttsReady {
				_ = streamer.AppendText(ctx, content)
			}
		},
		Metadata: func(result parser.MetadataResult) {
			b.SendData(bus.EventMetadata, joinMetadata(result, kmResult))
		},
		SessionEnd: func() {
			b.SendStatus(bus.StatusSessionEnded, "")
		},
	})

	genStart := time.Now()
	_, genErr := o.Generator.Generate(ctx, cfg.GeneratorEngine, llm.GenerateRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		History:      req.ChatHistory,
		Model:        cfg.GeneratorModel,
	}, func(token string) {
		p.Feed(token)
	})
	metrics.GeneratorDuration.Observe(time.Since(genStart).Seconds())

	p.Finalize()

	if ttsReady {
		_ = streamer.Flush(ctx)
		b.MarkComponentComplete(componentTTSProcessing)
	}

	if genErr != nil {
		metrics.PipelineErrorsTotal.WithLabelValues("generation").Inc()
		b.SendError(genErr.Error())
		b.MarkAllComplete()
		return
	}

	b.SendStatus(bus.StatusComplete, "")
	b.SendComplete("")
	b.MarkComponentComplete(componentTextGeneration)
}

// initStreamer builds the per-request TTS streamer. A nil Synth (TTS
// subsystem unavailable) is treated as an init failure: the pipeline
// degrades to text-only rather than failing the request.
func (o *Orchestrator) initStreamer(cfg tenant.Config, language string, onReady tts.AudioReadyCallback) (*tts.Streamer, bool) {
	if o.Synth == nil {
		return nil, false
	}
	phonemeURLs := []string{cfg.PhonemeGlobalURL}
	for _, u := range cfg.PhonemeLanguageURLs {
		phonemeURLs = append(phonemeURLs, u)
	}
	opts := tts.FormatOptions{
		Language:         language,
		Voice:            tts.ResolveVoice(convertVoices(cfg.Voices), language),
		LexiconURL:       cfg.LexiconURLs[language],
		PhonemeGlobalURL: cfg.PhonemeGlobalURL,
		PhonemeLangURLs:  cfg.PhonemeLanguageURLs,
		DictionaryKey:    tts.DictionaryKey(phonemeURLs...),
	}
	return tts.NewStreamer(o.Synth, opts, onReady), true
}

func convertVoices(voices map[string]tenant.VoiceModel) map[string]tts.VoiceModel {
	out := make(map[string]tts.VoiceModel, len(voices))
	for k, v := range voices {
		out[k] = tts.VoiceModel{Name: v.Name, Pitch: v.Pitch, Rate: v.Rate}
	}
	return out
}

// trimBase64Audio decodes, trims, and re-encodes a base64 audio blob
// that may arrive as a WAV container or raw PCM. ok is false if the
// input can't be decoded at all, in which case the caller keeps the
// original bytes.
func trimBase64Audio(b64 string) (string, bool) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", false
	}
	pcm := raw
	if audio.IsWAV(raw) {
		if parsed, err := audio.ParsePCM(raw); err == nil {
			pcm = parsed
		}
	}
	trimmed := audio.TrimSilence(pcm, audio.DefaultSilenceThreshold)
	wav := audio.WrapPCM(trimmed)
	return base64.StdEncoding.EncodeToString(wav), true
}
