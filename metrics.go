// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Call and listen outcomes recorded by Metrics
const (
	outcomeOK          = "ok"
	outcomeError       = "error"
	outcomeUnknown     = "unknown"
	outcomeRateLimited = "rate_limited"

	// unknownLabel replaces names that did not resolve so clients cannot
	// grow label cardinality.
	unknownLabel = "_unknown"
)

// Metrics collects server side call and subscription metrics. A nil
// *Metrics records nothing.
type Metrics struct {
	calls         *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	listens       *prometheus.CounterVec
	subscriptions prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ipc",
			Name:      "calls_total",
			Help:      "Channel calls by channel, command and outcome.",
		}, []string{"channel", "command", "outcome"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ipc",
			Name:      "call_duration_seconds",
			Help:      "Time spent serving channel calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel", "command"}),
		listens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ipc",
			Name:      "listens_total",
			Help:      "Event subscriptions by channel, event and outcome.",
		}, []string{"channel", "event", "outcome"}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ipc",
			Name:      "active_subscriptions",
			Help:      "Event subscriptions currently attached.",
		}),
	}
	for _, c := range []prometheus.Collector{m.calls, m.callDuration, m.listens, m.subscriptions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeCall(channel, command, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(channel, command, outcome).Inc()
	if outcome == outcomeOK || outcome == outcomeError {
		m.callDuration.WithLabelValues(channel, command).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) observeListen(channel, event, outcome string) {
	if m == nil {
		return
	}
	m.listens.WithLabelValues(channel, event, outcome).Inc()
}

func (m *Metrics) subscribed() {
	if m == nil {
		return
	}
	m.subscriptions.Inc()
}

func (m *Metrics) unsubscribed() {
	if m == nil {
		return
	}
	m.subscriptions.Dec()
}
