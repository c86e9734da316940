package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordRequest(t *testing.T) {
	// Fresh registry per test to avoid duplicate registration panics.
	m := newMetrics(prometheus.NewRegistry())

	m.RecordRequest(RequestLabels{
		Operation:        "chat",
		Model:            "gpt-4o",
		Provider:         "openai",
		Status:           "200",
		DurationMs:       812,
		PromptTokens:     120,
		CompletionTokens: 45,
		CostUSD:          0.00075,
	})

	counter := m.RequestTotal.WithLabelValues("chat", "gpt-4o", "openai", "200")
	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 1 {
		t.Errorf("request total = %v, want 1", got)
	}

	tokens := m.TokensTotal.WithLabelValues("gpt-4o", "prompt")
	if err := tokens.Write(&metric); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 120 {
		t.Errorf("prompt tokens = %v, want 120", got)
	}
}

func TestRecordProviderFault(t *testing.T) {
	m := newMetrics(prometheus.NewRegistry())

	m.RecordProviderFault("anthropic", "rate_limited")
	m.RecordProviderFault("anthropic", "rate_limited")

	var metric dto.Metric
	if err := m.ProviderFaultTotal.WithLabelValues("anthropic", "rate_limited").Write(&metric); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 2 {
		t.Errorf("fault total = %v, want 2", got)
	}
}

func TestZeroUsageRecordsNoTokens(t *testing.T) {
	m := newMetrics(prometheus.NewRegistry())

	m.RecordRequest(RequestLabels{Operation: "image", Model: "dall-e-3", Provider: "openai", Status: "200"})

	var metric dto.Metric
	if err := m.TokensTotal.WithLabelValues("dall-e-3", "prompt").Write(&metric); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 0 {
		t.Errorf("tokens = %v, want 0", got)
	}
}
