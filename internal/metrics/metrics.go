// Package metrics exposes the Prometheus counters and histograms the
// server wires into the answer pipeline and its external-call
// adapters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnswerRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "answerflow_answer_requests_total",
		Help: "Total answer requests accepted",
	})

	AnswerRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "answerflow_answer_request_duration_seconds",
		Help:    "Wall-clock duration of an answer request from starting to complete/error",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
	})

	PipelineErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "answerflow_pipeline_errors_total",
		Help: "Errors surfaced as an error event, by pipeline stage",
	}, []string{"stage"})

	ValidationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "answerflow_validation_duration_seconds",
		Help:    "Validator call latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	KMSearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "answerflow_km_search_duration_seconds",
		Help:    "Knowledge-search fan-out latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	GeneratorDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "answerflow_generator_duration_seconds",
		Help:    "Generator streaming call latency, start to final token",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
	})

	TTSPhrasesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "answerflow_tts_phrases_total",
		Help: "Phrases synthesized through the TTS streamer",
	})

	TTSCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "answerflow_tts_cache_hits_total",
		Help: "TTS blob cache hits",
	})

	TTSCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "answerflow_tts_cache_misses_total",
		Help: "TTS blob cache misses (resynthesized)",
	})
)
