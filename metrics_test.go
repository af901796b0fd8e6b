package goToken

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goToken/store"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricRenewSuccess)

	if got := m.Value(MetricRenewSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricRenewSuccess)
	m.Observe(MetricRenewLatency, time.Millisecond)
	if m.Enabled() || m.LatencyEnabled() || m.Value(MetricRenewSuccess) != 0 {
		t.Fatal("nil metrics must be inert")
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricRenewSuccess)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricRenewSuccess); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		700 * time.Millisecond,
	}
	for _, d := range observations {
		m.Observe(MetricRenewLatency, d)
	}
	// Only the renew latency is a histogram.
	m.Observe(MetricRenewSuccess, time.Millisecond)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricRenewLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}
	for i, got := range buckets {
		if got != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, got)
		}
	}
	if _, ok := snap.Histograms[MetricRenewSuccess]; ok {
		t.Fatal("counter ids must not produce histograms")
	}
	if _, ok := snap.Counters[MetricRenewLatency]; ok {
		t.Fatal("latency id must not appear as a counter")
	}
}

func TestMetricsHistogramRequiresLatencyFlag(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Observe(MetricRenewLatency, time.Millisecond)

	if _, ok := m.Snapshot().Histograms[MetricRenewLatency]; ok {
		t.Fatal("histograms must stay off unless enabled")
	}
}

func TestEngineRecordsRenewLatency(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.EnableLatencyHistograms = true
	engine := newMemoryEngine(t, cfg, store.NewMemoryStore(), nil)
	ctx := context.Background()

	pair, err := engine.IssuePair(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := engine.Renew(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("renew: %v", err)
	}
	_, _ = engine.Renew(ctx, pair.RefreshToken)

	var total uint64
	for _, v := range engine.MetricsSnapshot().Histograms[MetricRenewLatency] {
		total += v
	}
	if total != 2 {
		t.Fatalf("expected 2 latency observations, got %d", total)
	}
}

func TestEngineRevokeMetrics(t *testing.T) {
	engine := newMemoryEngine(t, testConfig(), store.NewMemoryStore(), nil)
	ctx := context.Background()

	pair, err := engine.IssuePair(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, _ = engine.Revoke(ctx, pair.RefreshToken)
	_, _ = engine.Revoke(ctx, pair.RefreshToken)
	_, _ = engine.Revoke(ctx, "unknown")

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricRevokeSuccess] != 1 || snap.Counters[MetricRevokeNothing] != 2 {
		t.Fatalf("unexpected revoke counters %+v", snap.Counters)
	}
	if snap.Counters[MetricIssueSuccess] != 1 {
		t.Fatalf("expected one issue, got %d", snap.Counters[MetricIssueSuccess])
	}
}
