// Package metrics exposes relay counters to Prometheus and serves them over
// HTTP together with a JSON status view.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "devsyslog"

// Relay groups the relay collectors. A nil *Relay is valid and records
// nothing.
type Relay struct {
	bytes           prometheus.Counter
	lines           prometheus.Counter
	truncated       prometheus.Counter
	sessionsStarted prometheus.Counter
	sessionFailures prometheus.Counter
	sessionActive   prometheus.Gauge
}

// New builds the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Relay {
	r := &Relay{
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_total",
			Help:      "Bytes received from the device syslog.",
		}),
		lines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_total",
			Help:      "Lines written to the output sink.",
		}),
		truncated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "truncated_lines_total",
			Help:      "Lines flushed because the line buffer was full.",
		}),
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Capture sessions opened.",
		}),
		sessionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_failures_total",
			Help:      "Capture sessions that failed to start.",
		}),
		sessionActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_active",
			Help:      "1 while a capture session is open.",
		}),
	}
	if reg != nil {
		reg.MustRegister(r.bytes, r.lines, r.truncated, r.sessionsStarted, r.sessionFailures, r.sessionActive)
	}
	return r
}

// Line records one flushed line of n bytes.
func (r *Relay) Line(n int, truncated bool) {
	if r == nil {
		return
	}
	r.lines.Inc()
	r.bytes.Add(float64(n))
	if truncated {
		r.truncated.Inc()
	}
}

// SessionStarted records a successful capture start.
func (r *Relay) SessionStarted() {
	if r == nil {
		return
	}
	r.sessionsStarted.Inc()
	r.sessionActive.Set(1)
}

// SessionFailed records a failed capture start.
func (r *Relay) SessionFailed() {
	if r == nil {
		return
	}
	r.sessionFailures.Inc()
}

// SessionEnded records a capture teardown.
func (r *Relay) SessionEnded() {
	if r == nil {
		return
	}
	r.sessionActive.Set(0)
}
