// Package metrics exposes wattdash counters to Prometheus. A single
// [Collector] is handed to the store, the MQTT dispatcher and the
// snapshot consumer, each of which sees it through its own small
// interface.
package metrics

import (
	"time"

	"github.com/nugget/wattdash/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wattdash"

const (
	resultApplied = "applied"
	resultDropped = "dropped"
	resultFresh   = "fresh"
	resultStale   = "stale"
)

// Collector bundles every wattdash metric.
type Collector struct {
	StoreUpdates     *prometheus.CounterVec
	StoreSnapshots   *prometheus.CounterVec
	Messages         *prometheus.CounterVec
	SubscribeErrors  prometheus.Counter
	Connected        prometheus.Gauge
	Renders          prometheus.Counter
	RenderErrors     *prometheus.CounterVec
	RenderDuration   prometheus.Histogram
	LastUpdateSecond prometheus.Gauge
}

// New constructs the collector and registers it with reg. Passing
// [prometheus.DefaultRegisterer] also exposes the Go runtime collectors
// already registered there.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		StoreUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_updates_total",
				Help:      "Telemetry updates by result (applied or dropped on lock timeout).",
			},
			[]string{"result"},
		),
		StoreSnapshots: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_snapshots_total",
				Help:      "Snapshot reads by result (fresh or stale on lock timeout).",
			},
			[]string{"result"},
		),
		Messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mqtt_messages_total",
				Help:      "Inbound MQTT messages by outcome.",
			},
			[]string{"result"},
		),
		SubscribeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_subscribe_errors_total",
			Help:      "Topic subscriptions refused or failed.",
		}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_connected",
			Help:      "1 while the broker session is up.",
		}),
		Renders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Completed render cycles.",
		}),
		RenderErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "render_errors_total",
				Help:      "Renderer failures by renderer.",
			},
			[]string{"renderer"},
		),
		RenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time spent in one render cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		LastUpdateSecond: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_last_update_timestamp_seconds",
			Help:      "Unix time of the most recent applied update.",
		}),
	}
	reg.MustRegister(
		c.StoreUpdates,
		c.StoreSnapshots,
		c.Messages,
		c.SubscribeErrors,
		c.Connected,
		c.Renders,
		c.RenderErrors,
		c.RenderDuration,
		c.LastUpdateSecond,
	)
	return c
}

// UpdateApplied implements telemetry.Observer.
func (c *Collector) UpdateApplied(telemetry.Slot) {
	c.StoreUpdates.WithLabelValues(resultApplied).Inc()
	c.LastUpdateSecond.SetToCurrentTime()
}

// UpdateDropped implements telemetry.Observer.
func (c *Collector) UpdateDropped(telemetry.Slot) {
	c.StoreUpdates.WithLabelValues(resultDropped).Inc()
}

// SnapshotRead implements telemetry.Observer.
func (c *Collector) SnapshotRead(fresh bool) {
	if fresh {
		c.StoreSnapshots.WithLabelValues(resultFresh).Inc()
		return
	}
	c.StoreSnapshots.WithLabelValues(resultStale).Inc()
}

// MessageHandled counts one inbound message outcome.
func (c *Collector) MessageHandled(result string) {
	c.Messages.WithLabelValues(result).Inc()
}

// SubscribeFailed counts a failed topic subscription.
func (c *Collector) SubscribeFailed(string) {
	c.SubscribeErrors.Inc()
}

// ConnectionChanged tracks the broker session gauge.
func (c *Collector) ConnectionChanged(connected bool) {
	if connected {
		c.Connected.Set(1)
		return
	}
	c.Connected.Set(0)
}

// Rendered records one completed render cycle.
func (c *Collector) Rendered(d time.Duration) {
	c.Renders.Inc()
	c.RenderDuration.Observe(d.Seconds())
}

// RenderFailed counts a renderer error.
func (c *Collector) RenderFailed(renderer string) {
	c.RenderErrors.WithLabelValues(renderer).Inc()
}
