package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordsParsed.Add(3)
	m.ScansStarted.Inc()
	m.ActiveScans.Set(1)

	count, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatalf("GatherAndCount() = %v", err)
	}
	if count == 0 {
		t.Errorf("expected at least one registered metric sample, got 0")
	}
}

func TestObserveScan(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveScan(2*time.Second, false)
	if got := testutil.ToFloat64(m.ScansFailed); got != 0 {
		t.Errorf("ScansFailed = %v, want 0 for a successful scan", got)
	}

	m.ObserveScan(time.Second, true)
	if got := testutil.ToFloat64(m.ScansFailed); got != 1 {
		t.Errorf("ScansFailed = %v, want 1 after a failed scan", got)
	}
}

func TestObserveSearch(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveSearch(50*time.Millisecond, 7)
	if got := testutil.ToFloat64(m.SearchesTotal); got != 1 {
		t.Errorf("SearchesTotal = %v, want 1", got)
	}
}
