package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// TestMetricsRegistered verifies that all metrics are registered in the
// default registry without panicking.
func TestMetricsRegistered(t *testing.T) {
	// Seed every collector so it becomes visible to Gather.
	RequestsTotal.WithLabelValues("GET", "/healthz", "2xx").Inc()
	RequestDuration.WithLabelValues("GET", "/healthz").Observe(0.1)
	TurnsTotal.WithLabelValues("committed").Inc()
	TurnDuration.WithLabelValues("openai").Observe(0.5)
	FramesTotal.WithLabelValues("text_delta").Inc()
	ToolInvocationsTotal.WithLabelValues("test_tool", "ok").Inc()
	StoreSavesTotal.WithLabelValues("ok").Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}

	expected := map[string]bool{
		"alpha_requests_total":                 false,
		"alpha_request_duration_seconds":       false,
		"alpha_streaming_connections_active":   false,
		"alpha_turns_total":                    false,
		"alpha_turn_duration_seconds":          false,
		"alpha_frames_total":                   false,
		"alpha_tool_invocations_total":         false,
		"alpha_store_saves_total":              false,
	}

	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}

	for name, found := range expected {
		if !found {
			t.Errorf("metric %s not registered", name)
		}
	}
}

func TestMetricsMiddleware_RecordsRequest(t *testing.T) {
	before := counterValue(t, RequestsTotal, "GET", "/api/v1/conversation", "2xx")

	h := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/conversation", nil))

	after := counterValue(t, RequestsTotal, "GET", "/api/v1/conversation", "2xx")
	if after != before+1 {
		t.Errorf("requests counter = %v, want %v", after, before+1)
	}
}

func TestMetricsMiddleware_StreamingGauge(t *testing.T) {
	var during float64
	h := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		during = gaugeValue(t, StreamingConnections)
	}))

	req := httptest.NewRequest("POST", "/api/v1/chat", nil)
	req.Header.Set("Accept", "text/event-stream")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if during < 1 {
		t.Errorf("gauge during request = %v, want >= 1", during)
	}
	if after := gaugeValue(t, StreamingConnections); after != during-1 {
		t.Errorf("gauge after request = %v, want %v", after, during-1)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/api/v1/chat", "/api/v1/chat"},
		{"/api/v1/conversations", "/api/v1/conversations"},
		{"/api/v1/conversations/conv_abc123", "/api/v1/conversations/{id}"},
		{"/api/v1/conversations/conv_abc123/activate", "/api/v1/conversations/{id}/activate"},
		{"/healthz", "/healthz"},
	}
	for _, tc := range tests {
		if got := normalizePath(tc.in); got != tc.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	var m dto.Metric
	c, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting counter: %v", err)
	}
	if err := c.Write(&m); err != nil {
		t.Fatalf("reading counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("reading gauge: %v", err)
	}
	return m.GetGauge().GetValue()
}
