package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandler_exposes_editor_metrics(t *testing.T) {
	m := New()
	m.IncTicks()
	m.IncDriftCorrections()
	m.IncReconciliations("move", "ok")
	m.SetPlaying(true)

	refreshed := false
	rec := httptest.NewRecorder()
	m.Handler(func() { refreshed = true; m.SetSegments(4) }).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !refreshed {
		t.Error("updateGauges should run before the scrape")
	}
	body := rec.Body.String()
	for _, want := range []string{
		"editor_playback_ticks_total 1",
		"editor_drift_corrections_total 1",
		`editor_reconciliations_total{kind="move",result="ok"} 1`,
		"editor_playing 1",
		"editor_segments 4",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in scrape output", want)
		}
	}
}

func TestRequestMiddleware_counts_errors(t *testing.T) {
	m := New()
	h := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/transport/play", nil))

	rec := httptest.NewRecorder()
	m.Handler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "editor_requests_total 1") || !strings.Contains(body, "editor_errors_total 1") {
		t.Errorf("unexpected counters: %s", body)
	}
}
