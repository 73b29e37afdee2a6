package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// counterValue sums every sample of the named counter family whose labels include match.
func counterValue(t *testing.T, c *Collector, name string, match map[string]string) float64 {
	t.Helper()

	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("failed to gather: %v", err)
	}

	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range match {
				if labels[k] != v {
					continue metrics
				}
			}
			if m.GetCounter() != nil {
				total += m.GetCounter().GetValue()
			}
			if m.GetGauge() != nil {
				total += m.GetGauge().GetValue()
			}
		}
	}
	return total
}

func TestCollector(t *testing.T) {
	t.Run("job lifecycle", func(t *testing.T) {
		c := NewCollector()

		c.RecordEnqueue()
		c.RecordEnqueue()
		c.RecordPromote()

		if got := counterValue(t, c, "trackbot_job_processing", nil); got != 1 {
			t.Errorf("expected processing gauge 1, got %v", got)
		}

		c.RecordEvict()
		c.RecordPromote()
		c.RecordResolve()

		tc := map[string]float64{
			"trackbot_jobs_enqueued_total": 2,
			"trackbot_jobs_promoted_total": 2,
			"trackbot_jobs_evicted_total":  1,
			"trackbot_jobs_resolved_total": 1,
			"trackbot_job_processing":      0,
		}
		for name, want := range tc {
			if got := counterValue(t, c, name, nil); got != want {
				t.Errorf("%s = %v, want %v", name, got, want)
			}
		}
	})

	t.Run("processing gauge follows queue state", func(t *testing.T) {
		c := NewCollector()

		c.SetProcessing(true)
		if got := counterValue(t, c, "trackbot_job_processing", nil); got != 1 {
			t.Errorf("expected processing gauge 1, got %v", got)
		}

		c.SetProcessing(false)
		if got := counterValue(t, c, "trackbot_job_processing", nil); got != 0 {
			t.Errorf("expected processing gauge 0, got %v", got)
		}

		var nilCollector *Collector
		nilCollector.SetProcessing(true)
	})

	t.Run("labelled counters", func(t *testing.T) {
		c := NewCollector()

		c.RecordSuppressed("message")
		c.RecordSuppressed("link")
		c.RecordSuppressed("link")
		c.RecordReconcile("moved")
		c.RecordTruncatedFetch()

		if got := counterValue(t, c, "trackbot_dedup_suppressed_total", map[string]string{"kind": "link"}); got != 2 {
			t.Errorf("expected 2 link suppressions, got %v", got)
		}
		if got := counterValue(t, c, "trackbot_reconcile_total", map[string]string{"outcome": "moved"}); got != 1 {
			t.Errorf("expected 1 moved reconcile, got %v", got)
		}
		if got := counterValue(t, c, "trackbot_playlist_fetch_truncated_total", nil); got != 1 {
			t.Errorf("expected 1 truncated fetch, got %v", got)
		}
	})

	t.Run("nil collector is a no-op", func(t *testing.T) {
		var c *Collector

		c.RecordEnqueue()
		c.RecordPromote()
		c.RecordResolve()
		c.RecordEvict()
		c.RecordSuppressed("message")
		c.RecordTruncatedFetch()
		c.RecordReconcile("added")
		c.ObserveTick(time.Millisecond)
	})

	t.Run("Handler", func(t *testing.T) {
		c := NewCollector()
		c.RecordEnqueue()
		c.ObserveTick(3 * time.Millisecond)

		rec := httptest.NewRecorder()
		c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		body, _ := io.ReadAll(rec.Body)
		for _, want := range []string{"trackbot_jobs_enqueued_total 1", "trackbot_tick_duration_seconds_count 1"} {
			if !strings.Contains(string(body), want) {
				t.Errorf("expected %q in metrics output", want)
			}
		}
	})
}
