package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	llmTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "LLM tokens by pipeline stage and kind (prompt/completion).",
		},
		[]string{"stage", "kind"},
	)

	llmCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_calls_latency_ms",
			Help:    "LLM call latency distribution in milliseconds.",
			Buckets: []float64{50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 30000},
		},
		[]string{"provider", "success"},
	)
)

func init() {
	register(llmTokensTotal, llmCallsLatencyMs)
}

func ObserveLLMTokens(stage string, prompt, completion int) {
	llmTokensTotal.WithLabelValues(norm(stage), "prompt").Add(float64(prompt))
	llmTokensTotal.WithLabelValues(norm(stage), "completion").Add(float64(completion))
}

func ObserveLLMCall(provider string, latencyMs int64, success bool) {
	llmCallsLatencyMs.WithLabelValues(norm(provider), strconv.FormatBool(success)).Observe(float64(latencyMs))
}
