package goToken

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goToken/store"
)

func BenchmarkMetricsInc(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricRenewSuccess)
	}
}

func BenchmarkMetricsIncDisabledParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Inc(MetricRenewSuccess)
		}
	})
}

func BenchmarkMetricsObserveRenewLatencyParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	d := 12 * time.Millisecond
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Observe(MetricRenewLatency, d)
		}
	})
}

type packedBenchmarkMetrics struct {
	counters [metricIDCount]uint64
}

func (m *packedBenchmarkMetrics) Inc(id MetricID) {
	atomic.AddUint64(&m.counters[id], 1)
}

var renewHotMetricIDs = [...]MetricID{
	MetricIssueSuccess,
	MetricRenewSuccess,
	MetricRenewRejected,
	MetricRenewRaceLost,
	MetricRevokeSuccess,
	MetricRevokeNothing,
}

func BenchmarkMetricsIncMixedParallelPadded(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		idx := 0
		for pb.Next() {
			m.Inc(renewHotMetricIDs[idx])
			idx++
			if idx == len(renewHotMetricIDs) {
				idx = 0
			}
		}
	})
}

func BenchmarkMetricsIncMixedParallelPacked(b *testing.B) {
	m := &packedBenchmarkMetrics{}
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		idx := 0
		for pb.Next() {
			m.Inc(renewHotMetricIDs[idx])
			idx++
			if idx == len(renewHotMetricIDs) {
				idx = 0
			}
		}
	})
}

func BenchmarkEngineRenewMemoryStore(b *testing.B) {
	engine, err := New().
		WithConfig(testConfig()).
		WithStore(store.NewMemoryStore()).
		Build()
	if err != nil {
		b.Fatalf("build: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()
	pair, err := engine.IssuePair(ctx, "bench@example.com")
	if err != nil {
		b.Fatalf("issue: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pair, err = engine.Renew(ctx, pair.RefreshToken)
		if err != nil {
			b.Fatalf("renew: %v", err)
		}
	}
}
