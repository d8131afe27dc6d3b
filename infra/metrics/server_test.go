package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	coremetrics "github.com/kilianp07/evplan/core/metrics"
)

// waitForMetric scrapes url until a line contains series or the timeout passes.
func waitForMetric(t *testing.T, url, series string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var last string
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			last = string(body)
			if strings.Contains(last, series) {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("%s not exposed after %s; last scrape:\n%s", series, timeout, last)
}

func TestStartPromServer(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()

	sink, err := NewPromSink()
	if err != nil {
		t.Fatalf("sink: %v", err)
	}
	if err := sink.RecordRun(coremetrics.RunEvent{Status: "optimal", SolveTime: time.Millisecond}); err != nil {
		t.Fatalf("record: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- StartPromServer(ctx, addr) }()

	waitForMetric(t, "http://"+addr+"/metrics", `planner_runs_total{status="optimal"}`, 5*time.Second)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("server: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
