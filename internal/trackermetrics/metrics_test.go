package trackermetrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveWindowIncrementsCounters(t *testing.T) {
	m := NewMetrics("test_window", "core")

	m.ObserveWindow("erc721", 1000)
	m.ObserveWindow("erc721", 500)

	if got := testutil.ToFloat64(m.ScanWindowsTotal.WithLabelValues("erc721")); got != 2 {
		t.Errorf("ScanWindowsTotal = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.BlocksScannedTotal.WithLabelValues("erc721")); got != 1500 {
		t.Errorf("BlocksScannedTotal = %v, want 1500", got)
	}
}

func TestObserveCapHalving(t *testing.T) {
	m := NewMetrics("test_halving", "core")
	m.ObserveCapHalving("erc1155")
	m.ObserveCapHalving("erc1155")

	if got := testutil.ToFloat64(m.CapHalvingsTotal.WithLabelValues("erc1155")); got != 2 {
		t.Errorf("CapHalvingsTotal = %v, want 2", got)
	}
}

func TestObserveCacheHitMiss(t *testing.T) {
	m := NewMetrics("test_cache", "core")
	m.ObserveCacheHit("collections")
	m.ObserveCacheMiss("collections")
	m.ObserveCacheMiss("tokens")

	if got := testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues("collections")); got != 1 {
		t.Errorf("CacheHitsTotal(collections) = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CacheMissesTotal.WithLabelValues("tokens")); got != 1 {
		t.Errorf("CacheMissesTotal(tokens) = %v, want 1", got)
	}
}

func TestObserveDispatchRecordsDuration(t *testing.T) {
	m := NewMetrics("test_dispatch", "core")
	m.ObserveDispatch("erc721", time.Now().Add(-10*time.Millisecond))

	if got := testutil.CollectAndCount(m.DispatchDuration); got != 1 {
		t.Errorf("DispatchDuration sample count = %v, want 1", got)
	}
}

func TestNilMetricsMethodsAreNoOps(t *testing.T) {
	var m *Metrics
	// None of these may panic on a nil receiver.
	m.ObserveWindow("erc721", 100)
	m.ObserveCapHalving("erc721")
	m.ObserveCacheHit("collections")
	m.ObserveCacheMiss("tokens")
	m.ObserveConsumerError("erc1155")
	m.ObserveDispatch("erc721", time.Now())
}
