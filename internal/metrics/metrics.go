// Package metrics provides Prometheus metrics for the syncer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "blogsync"

var (
	// SyncRunsTotal counts sync runs by result (success, failed, noop).
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Total number of sync runs",
		},
		[]string{"result"},
	)

	// SyncDuration measures the duration of a full sync run.
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of sync runs in seconds",
			Buckets:   []float64{1, 10, 60, 300, 900, 1800, 3600, 7200},
		},
	)

	// ArticlesTotal counts processed articles by outcome.
	ArticlesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_total",
			Help:      "Total number of articles processed by outcome",
		},
		[]string{"status"},
	)

	// TranslationsTotal counts finished translations by language and status.
	TranslationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translations_total",
			Help:      "Total number of article translations by final status",
		},
		[]string{"language", "status"},
	)

	// FieldFallbacksTotal counts optional fields that kept the source value.
	FieldFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_fallbacks_total",
			Help:      "Total number of fields stored untranslated after a failed translation",
		},
		[]string{"field"},
	)

	// ContentWarningsTotal counts soft quality warnings on translated content.
	ContentWarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "content_warnings_total",
			Help:      "Total number of soft warnings raised on translated content",
		},
		[]string{"kind"},
	)

	// LLMRequestsTotal counts backend calls by provider, model and finish reason.
	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests",
		},
		[]string{"provider", "model", "finish_reason"},
	)

	// LLMTokensTotal counts tokens reported by the backends.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Total number of tokens reported by LLM backends",
		},
		[]string{"provider", "kind"},
	)

	// LLMRequestDuration measures backend call latency.
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM requests in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		},
		[]string{"provider"},
	)
)

// RecordLLMRequest records a finished backend call. finishReason is "error"
// when the call failed.
func RecordLLMRequest(provider, model, finishReason string, inputTokens, outputTokens int, duration time.Duration) {
	LLMRequestsTotal.WithLabelValues(provider, model, finishReason).Inc()
	LLMRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
	if inputTokens > 0 {
		LLMTokensTotal.WithLabelValues(provider, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		LLMTokensTotal.WithLabelValues(provider, "output").Add(float64(outputTokens))
	}
}

// RecordSyncRun records a finished sync run.
func RecordSyncRun(result string, duration time.Duration) {
	SyncRunsTotal.WithLabelValues(result).Inc()
	SyncDuration.Observe(duration.Seconds())
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
