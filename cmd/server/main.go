// Command server runs the answer pipeline as an HTTP/SSE service: one
// POST endpoint streams validation, knowledge-search, generation and
// TTS events for a single transcript; a second trims silence from a
// standalone audio clip; a third exposes Prometheus metrics.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lokutor-ai/answerflow/internal/metrics"
	"github.com/lokutor-ai/answerflow/pkg/audio"
	"github.com/lokutor-ai/answerflow/pkg/httputil"
	"github.com/lokutor-ai/answerflow/pkg/orchestrator"
	"github.com/lokutor-ai/answerflow/pkg/providers/cloudtts"
	"github.com/lokutor-ai/answerflow/pkg/providers/kmsearch"
	"github.com/lokutor-ai/answerflow/pkg/providers/llm"
	"github.com/lokutor-ai/answerflow/pkg/providers/validator"
	"github.com/lokutor-ai/answerflow/pkg/tenant"
	"github.com/lokutor-ai/answerflow/pkg/tts"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on process environment")
	}

	client := httputil.NewPooledClient(64, 30*time.Second)

	orch := buildOrchestrator(client)

	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Logger)

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Post("/v1/answer", answerHandler(orch))
	mux.Post("/v1/audio/trim", trimHandler())

	addr := ":" + envOr("PORT", "8080")
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE streams run far longer than any fixed write deadline
	}

	go func() {
		log.Printf("answerflow listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server: shutdown: %v", err)
	}
}

func buildOrchestrator(client *http.Client) *orchestrator.Orchestrator {
	tenantStore := tenant.NewHTTPStore(mustEnv("TENANT_STORE_URL"), client)
	tenants := tenant.NewCache(tenantStore, 15*time.Minute, 3*time.Minute)
	prompts := tenant.NewURLTextCache(client, 15*time.Minute, 3*time.Minute)

	validatorProvider := buildLLMProvider(envOr("VALIDATOR_PROVIDER", "groq"), client)
	validatorClient := validator.New(validatorProvider)

	kmBackend := &kmsearch.HTTPBackend{URL: mustEnv("KM_SEARCH_URL"), Client: client}
	kmClient := kmsearch.New(kmBackend)

	generator := buildGeneratorRouter(client)

	synth := buildSynthesizer(client)

	o := orchestrator.New(tenants, prompts, validatorClient, kmClient, generator, synth)
	if watchdog := os.Getenv("ORCHESTRATOR_WATCHDOG_SECONDS"); watchdog != "" {
		if secs, err := time.ParseDuration(watchdog + "s"); err == nil {
			o.Watchdog = secs
		}
	}
	return o
}

// buildLLMProvider selects one backend by name, mirroring the
// teacher's env-var-driven provider switch.
func buildLLMProvider(name string, client *http.Client) llm.Provider {
	switch name {
	case "openai":
		key := mustEnv("OPENAI_API_KEY")
		return llm.NewOpenAILLM(key, envOr("OPENAI_MODEL", "gpt-4o-mini"), client)
	case "anthropic":
		key := mustEnv("ANTHROPIC_API_KEY")
		return llm.NewAnthropicLLM(key, envOr("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"), client)
	case "google":
		key := mustEnv("GOOGLE_API_KEY")
		return llm.NewGoogleLLM(key, envOr("GOOGLE_MODEL", "gemini-1.5-flash"), client)
	case "groq":
		key := mustEnv("GROQ_API_KEY")
		return llm.NewGroqLLM(key, envOr("GROQ_MODEL", "llama-3.3-70b-versatile"), client)
	default:
		log.Fatalf("unknown LLM provider %q", name)
		return nil
	}
}

// buildGeneratorRouter wires every provider with a configured API key
// into the router, so a tenant's generator_engine or a "groq/<model>"
// prefix can reach any of them at request time.
func buildGeneratorRouter(client *http.Client) *llm.GeneratorRouter {
	backends := map[string]llm.Provider{}
	var groq llm.Provider

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		backends["openai"] = llm.NewOpenAILLM(key, envOr("OPENAI_MODEL", "gpt-4o-mini"), client)
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		backends["anthropic"] = llm.NewAnthropicLLM(key, envOr("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"), client)
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		backends["google"] = llm.NewGoogleLLM(key, envOr("GOOGLE_MODEL", "gemini-1.5-flash"), client)
	}
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		groq = llm.NewGroqLLM(key, envOr("GROQ_MODEL", "llama-3.3-70b-versatile"), client)
		backends["groq"] = groq
	}
	if len(backends) == 0 {
		log.Fatal("no generator LLM provider configured: set at least one of OPENAI_API_KEY, ANTHROPIC_API_KEY, GOOGLE_API_KEY, GROQ_API_KEY")
	}

	fallback := envOr("GENERATOR_FALLBACK_ENGINE", "groq")
	if _, ok := backends[fallback]; !ok {
		for name := range backends {
			fallback = name
			break
		}
	}
	return llm.NewGeneratorRouter(backends, fallback, groq)
}

func buildSynthesizer(client *http.Client) *tts.Synthesizer {
	cloudURL := os.Getenv("CLOUD_TTS_URL")
	if cloudURL == "" {
		log.Println("CLOUD_TTS_URL not set: TTS audio degrades to text-only responses")
		return nil
	}
	cloud := cloudtts.New(cloudURL, client)

	var store tts.BlobStore
	if dir := envOr("TTS_CACHE_DIR", "./data/tts-cache"); dir != "" {
		fileStore, err := tts.NewFileBlobStore(dir)
		if err != nil {
			log.Printf("tts cache: %v; continuing without a blob cache", err)
		} else {
			store = fileStore
		}
	}

	formatter := &tts.SSMLFormatter{}
	cache := tts.NewCache(store)
	return tts.NewSynthesizer(formatter, cache, cloud)
}

func answerHandler(o *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Transcript           string        `json:"transcript"`
			Language             string        `json:"language"`
			Base64Audio          string        `json:"base64_audio,omitempty"`
			OrgID                string        `json:"org_id"`
			ConfigID             string        `json:"config_id"`
			ChatHistory          []llm.Message `json:"chat_history,omitempty"`
			Keywords             []string      `json:"keywords,omitempty"`
			TranscriptConfidence float64       `json:"transcript_confidence,omitempty"`
			HasConfidence        bool          `json:"has_confidence,omitempty"`
			GenerateAnswer       *bool         `json:"generate_answer,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		// generate_answer defaults to true when omitted, matching the
		// original's generate_answer: bool = True.
		generateAnswer := true
		if body.GenerateAnswer != nil {
			generateAnswer = *body.GenerateAnswer
		}

		requestID := uuid.NewString()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Request-Id", requestID)
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		metrics.AnswerRequestsTotal.Inc()
		start := time.Now()
		log.Printf("answer request %s starting: org=%s config=%s", requestID, body.OrgID, body.ConfigID)

		b := o.Handle(r.Context(), orchestrator.RequestContext{
			Transcript:           body.Transcript,
			Language:             body.Language,
			Base64Audio:          body.Base64Audio,
			OrgID:                body.OrgID,
			ConfigID:             body.ConfigID,
			ChatHistory:          body.ChatHistory,
			Keywords:             body.Keywords,
			TranscriptConfidence: body.TranscriptConfidence,
			HasConfidence:        body.HasConfidence,
			GenerateAnswer:       generateAnswer,
		})

		for ev := range b.Stream(r.Context()) {
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			w.Write([]byte("data: "))
			w.Write(payload)
			w.Write([]byte("\n\n"))
			flusher.Flush()
		}
		metrics.AnswerRequestDuration.Observe(time.Since(start).Seconds())
	}
}

func trimHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			AudioURL         string  `json:"audio_url"`
			SilenceThreshold float64 `json:"silence_threshold,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.AudioURL == "" {
			http.Error(w, "audio_url is required", http.StatusBadRequest)
			return
		}

		req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, body.AudioURL, nil)
		if err != nil {
			http.Error(w, "invalid audio_url", http.StatusBadRequest)
			return
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			http.Error(w, "failed to fetch audio_url", http.StatusBadRequest)
			return
		}
		defer resp.Body.Close()

		wav := make([]byte, 0)
		buf := make([]byte, 32*1024)
		for {
			n, rerr := resp.Body.Read(buf)
			if n > 0 {
				wav = append(wav, buf[:n]...)
			}
			if rerr != nil {
				break
			}
		}
		if len(wav) == 0 || !audio.IsWAV(wav) {
			http.Error(w, "audio_url did not resolve to a WAV clip", http.StatusBadRequest)
			return
		}

		pcm, err := audio.ParsePCM(wav)
		if err != nil {
			http.Error(w, "malformed WAV payload", http.StatusInternalServerError)
			return
		}

		threshold := body.SilenceThreshold
		if threshold <= 0 {
			threshold = audio.DefaultSilenceThreshold
		}
		trimmedPCM := audio.TrimSilence(pcm, threshold)
		trimmedWAV := audio.WrapPCM(trimmedPCM)

		originalSize := len(wav)
		trimmedSize := len(trimmedWAV)
		reduction := originalSize - trimmedSize
		percent := 0.0
		if originalSize > 0 {
			percent = 100 * float64(reduction) / float64(originalSize)
		}

		resp2 := map[string]any{
			"status":                 "ok",
			"original_size_bytes":    originalSize,
			"trimmed_size_bytes":     trimmedSize,
			"size_reduction_bytes":   reduction,
			"size_reduction_percent": percent,
			"trimmed_audio_base64":   base64.StdEncoding.EncodeToString(trimmedWAV),
			"audio_format":           "wav",
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp2)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("%s must be set", key)
	}
	return v
}
