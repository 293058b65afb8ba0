package region

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionStats(t *testing.T) {
	a := mustRegion(t, 1024)

	// Test initial state
	if a.SizeInUse() != 0 {
		t.Errorf("Initial SizeInUse = %d, want 0", a.SizeInUse())
	}
	if a.Capacity() != 1024-HeaderSize {
		t.Errorf("Capacity = %d, want %d", a.Capacity(), 1024-HeaderSize)
	}
	if a.Available() != a.Capacity() {
		t.Errorf("Initial Available = %d, want %d", a.Available(), a.Capacity())
	}
	if a.Utilization() != 0 {
		t.Errorf("Initial Utilization = %f, want 0", a.Utilization())
	}

	// Allocate some data
	_, _ = a.Malloc(100)
	_, _ = a.Malloc(200)

	sizeInUse := a.SizeInUse()
	if want := int(alignAddr(100)) + 200; sizeInUse != want {
		t.Errorf("SizeInUse after allocations = %d, want %d", sizeInUse, want)
	}
	if a.Available() != a.Capacity()-sizeInUse {
		t.Errorf("Available = %d, want %d", a.Available(), a.Capacity()-sizeInUse)
	}

	utilization := a.Utilization()
	if utilization <= 0 || utilization > 1 {
		t.Errorf("Utilization = %f, want 0 < x <= 1", utilization)
	}

	_, _ = a.OnFree(func() error { return nil })

	// Test stats snapshot
	stats := a.Stats()
	if stats.SizeInUse != a.SizeInUse() {
		t.Errorf("Stats.SizeInUse = %d, want %d", stats.SizeInUse, a.SizeInUse())
	}
	if stats.Capacity != a.Capacity() {
		t.Errorf("Stats.Capacity = %d, want %d", stats.Capacity, a.Capacity())
	}
	if stats.Available != a.Available() {
		t.Errorf("Stats.Available = %d, want %d", stats.Available, a.Available())
	}
	if stats.Finalizers != 1 {
		t.Errorf("Stats.Finalizers = %d, want 1", stats.Finalizers)
	}
	if stats.Utilization != a.Utilization() {
		t.Errorf("Stats.Utilization = %f, want %f", stats.Utilization, a.Utilization())
	}
}

func TestRegionStatsAfterFree(t *testing.T) {
	a := mustRegion(t, 1024)

	_, _ = a.Malloc(500)
	if a.SizeInUse() == 0 {
		t.Error("Expected non-zero SizeInUse before free")
	}

	if err := a.Free(); err != nil {
		t.Fatal(err)
	}
	if a.SizeInUse() != 0 {
		t.Errorf("SizeInUse after Free = %d, want 0", a.SizeInUse())
	}
	if a.Utilization() != 0 {
		t.Errorf("Utilization after Free = %f, want 0", a.Utilization())
	}
	if a.Capacity() == 0 {
		t.Error("Capacity should not be 0 after Free")
	}
}

func TestUtilizationEdgeCases(t *testing.T) {
	// Region with no allocatable bytes
	a, err := New(make([]byte, HeaderSize))
	if err != nil {
		t.Fatal(err)
	}
	if a.Utilization() != 0 {
		t.Errorf("Zero-capacity region Utilization = %f, want 0", a.Utilization())
	}

	// Nearly full region
	a2 := mustRegion(t, 1024)
	_, _ = a2.Malloc(a2.Available() - 1)
	if util := a2.Utilization(); util < 0.99 {
		t.Errorf("Full region Utilization = %f, want close to 1.0", util)
	}
}

func TestRegionString(t *testing.T) {
	a := mustRegion(t, 4096)
	_, _ = a.Malloc(2048)

	s := a.String()
	if !strings.HasPrefix(s, "Region{used: 2.0 KiB, capacity: ") || !strings.Contains(s, "finalizers: 0") {
		t.Errorf("String() = %q", s)
	}
}

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m := NewMetrics(reg)

	r1, err := New(make([]byte, 1024), WithMetrics(m))
	require.NoError(t, err)
	r2, err := New(make([]byte, 1024), WithMetrics(m))
	require.NoError(t, err)

	_, err = r1.Malloc(10)
	require.NoError(t, err)
	_, err = r2.Calloc(5, 6)
	require.NoError(t, err)
	_, err = r1.OnFree(func() error { return nil })
	require.NoError(t, err)

	_, err = r1.Malloc(4096)
	require.Error(t, err)
	_, err = r2.Malloc(-1)
	require.Error(t, err)

	require.NoError(t, r1.Free())
	require.NoError(t, r2.Free())

	assert.Equal(t, 3.0, testutil.ToFloat64(m.allocations))
	assert.Equal(t, float64(10+30+jobFootprint), testutil.ToFloat64(m.allocatedBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ooms.WithLabelValues("exhausted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ooms.WithLabelValues("overflow")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.releases))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.finalizersRun))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestNilMetrics(t *testing.T) {
	r, err := New(make([]byte, 256), WithMetrics(nil))
	require.NoError(t, err)
	_, err = r.Malloc(8)
	require.NoError(t, err)
	_, err = r.Malloc(1024)
	require.Error(t, err)
	require.NoError(t, r.Free())
}

func BenchmarkStats(b *testing.B) {
	a := mustRegion(b, 1024*1024)
	// Pre-allocate some data
	for i := 0; i < 100; i++ {
		_, _ = a.Malloc(1000)
	}

	b.Run("SizeInUse", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			a.SizeInUse()
		}
	})

	b.Run("Capacity", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			a.Capacity()
		}
	})

	b.Run("Utilization", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			a.Utilization()
		}
	})

	b.Run("Stats", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			a.Stats()
		}
	})
}
