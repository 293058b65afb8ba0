package region

import "github.com/go-kit/log"

// Option configures a Region at construction.
type Option func(*Region)

// WithOOMHandler installs h as the target of allocation failures.
func WithOOMHandler(h OOMHandler) Option {
	return func(r *Region) {
		r.onOOM = h
	}
}

// WithLogger sets the logger used for lifecycle and failure events.
func WithLogger(logger log.Logger) Option {
	return func(r *Region) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics makes the region report to m. Several regions may share one
// Metrics.
func WithMetrics(m *Metrics) Option {
	return func(r *Region) {
		r.metrics = m
	}
}
