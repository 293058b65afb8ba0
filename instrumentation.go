package region

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus counters shared by the regions built with
// WithMetrics. A nil *Metrics records nothing.
type Metrics struct {
	allocations    prometheus.Counter
	allocatedBytes prometheus.Counter
	ooms           *prometheus.CounterVec
	releases       prometheus.Counter
	finalizersRun  prometheus.Counter
}

// NewMetrics creates the region counters and registers them with reg.
// A nil reg creates unregistered counters.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		allocations: f.NewCounter(prometheus.CounterOpts{
			Name: "region_allocations_total",
			Help: "Total number of successful region allocations.",
		}),
		allocatedBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "region_allocated_bytes_total",
			Help: "Total number of bytes requested by successful region allocations.",
		}),
		ooms: f.NewCounterVec(prometheus.CounterOpts{
			Name: "region_oom_total",
			Help: "Total number of region allocations that failed, by cause.",
		}, []string{"code"}),
		releases: f.NewCounter(prometheus.CounterOpts{
			Name: "region_releases_total",
			Help: "Total number of completed region releases.",
		}),
		finalizersRun: f.NewCounter(prometheus.CounterOpts{
			Name: "region_finalizers_run_total",
			Help: "Total number of finalizers that completed during release.",
		}),
	}
}

func (m *Metrics) allocated(n int) {
	if m == nil {
		return
	}
	m.allocations.Inc()
	m.allocatedBytes.Add(float64(n))
}

func (m *Metrics) oom(code Code) {
	if m == nil {
		return
	}
	m.ooms.WithLabelValues(code.String()).Inc()
}

func (m *Metrics) released() {
	if m == nil {
		return
	}
	m.releases.Inc()
}

func (m *Metrics) finalizerRan() {
	if m == nil {
		return
	}
	m.finalizersRun.Inc()
}
