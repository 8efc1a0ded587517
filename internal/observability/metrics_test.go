package observability

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetrics_RecordsAndExposes(t *testing.T) {
	m := NewMetrics("test_relay")

	m.IncTurn("message")
	m.IncTurn("message")
	m.IncTurn("command")
	m.IncFallback()
	m.ObserveDelivery("reply", nil)
	m.ObserveDelivery("reply", errors.New("boom"))
	m.ObserveGeneration(300 * time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	for _, want := range []string{
		`test_relay_turns_total{path="message"} 2`,
		`test_relay_turns_total{path="command"} 1`,
		`test_relay_generation_fallbacks_total 1`,
		`test_relay_deliveries_total{kind="reply",outcome="failed"} 1`,
		`test_relay_deliveries_total{kind="reply",outcome="ok"} 1`,
		`test_relay_generation_duration_seconds_count 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in exposition", want)
		}
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.IncTurn("message")
	m.IncFallback()
	m.ObserveDelivery("push", nil)
	m.ObserveGeneration(time.Second)
}

func TestNewMetrics_Twice(t *testing.T) {
	NewMetrics("a")
	NewMetrics("a")
}
