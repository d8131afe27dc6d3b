package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/kilianp07/evplan/core/metrics"
)

func TestPromSink_RecordRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	runs := []coremetrics.RunEvent{
		{Status: "optimal", Objective: 4.2, Variables: 30, Constraints: 20, SolveTime: 10 * time.Millisecond},
		{Status: "infeasible", Objective: 0, Variables: 12, Constraints: 9, SolveTime: time.Millisecond},
	}
	for _, r := range runs {
		if err := sink.RecordRun(r); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if v := testutil.ToFloat64(sink.runs.WithLabelValues("optimal")); v != 1 {
		t.Errorf("optimal runs = %v", v)
	}
	if v := testutil.ToFloat64(sink.runs.WithLabelValues("infeasible")); v != 1 {
		t.Errorf("infeasible runs = %v", v)
	}
	if v := testutil.ToFloat64(sink.objective); v != 4.2 {
		t.Errorf("objective kept from the optimal run, got %v", v)
	}
	if v := testutil.ToFloat64(sink.variables); v != 12 {
		t.Errorf("variables = %v", v)
	}
	if n := testutil.CollectAndCount(sink.solve); n != 1 {
		t.Errorf("histogram series = %d", n)
	}
}

func TestPromSink_RecordSchedule(t *testing.T) {
	sink, err := NewPromSinkWithRegistry(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	pts := []coremetrics.SchedulePoint{
		{Vehicle: "EV1", NetKWh: 2.5},
		{Vehicle: "EV1", NetKWh: -1},
		{Vehicle: "EV2", NetKWh: 4},
	}
	if err := sink.RecordSchedule(pts); err != nil {
		t.Fatalf("record: %v", err)
	}
	if v := testutil.ToFloat64(sink.energy.WithLabelValues("EV1")); v != 1.5 {
		t.Errorf("EV1 energy = %v", v)
	}
	if err := sink.RecordSchedule(pts[2:]); err != nil {
		t.Fatalf("record: %v", err)
	}
	if n := testutil.CollectAndCount(sink.energy); n != 1 {
		t.Errorf("stale vehicles kept: %d series", n)
	}
}

func TestPromSink_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	b, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if a.runs != b.runs {
		t.Fatalf("expected collectors to be shared")
	}
}

func TestPromSink_PushGateway(t *testing.T) {
	var mu sync.Mutex
	var method, path, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, body = r.Method, r.URL.Path, string(data)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink, err := NewPromSinkWithRegistry(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	sink.WithPushGateway(srv.URL, "evplan-test")
	if err := sink.RecordRun(coremetrics.RunEvent{Status: "optimal", Objective: 1}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := sink.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut {
		t.Errorf("method = %s", method)
	}
	if !strings.HasPrefix(path, "/metrics/job/evplan-test") {
		t.Errorf("path = %s", path)
	}
	if !strings.Contains(body, "planner_runs_total") {
		t.Errorf("pushed body lacks planner metrics")
	}
}

func TestPromSink_FlushWithoutGateway(t *testing.T) {
	sink, err := NewPromSinkWithRegistry(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	if err := sink.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
}
