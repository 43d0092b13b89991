package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/nugget/wattdash/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return New(reg), reg
}

func TestCollector_StoreObserver(t *testing.T) {
	c, _ := newTestCollector(t)
	var obs telemetry.Observer = c

	obs.UpdateApplied(telemetry.SlotCurrentPower)
	obs.UpdateApplied(telemetry.SlotGridDaily)
	obs.UpdateDropped(telemetry.SlotGridDaily)
	obs.SnapshotRead(true)
	obs.SnapshotRead(false)
	obs.SnapshotRead(false)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"applied", testutil.ToFloat64(c.StoreUpdates.WithLabelValues("applied")), 2},
		{"dropped", testutil.ToFloat64(c.StoreUpdates.WithLabelValues("dropped")), 1},
		{"fresh", testutil.ToFloat64(c.StoreSnapshots.WithLabelValues("fresh")), 1},
		{"stale", testutil.ToFloat64(c.StoreSnapshots.WithLabelValues("stale")), 2},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
	if testutil.ToFloat64(c.LastUpdateSecond) == 0 {
		t.Error("last update timestamp not set")
	}
}

func TestCollector_Ingestion(t *testing.T) {
	c, _ := newTestCollector(t)

	c.MessageHandled("applied")
	c.MessageHandled("ignored")
	c.MessageHandled("ignored")
	c.SubscribeFailed("gas_cost")
	c.ConnectionChanged(true)

	if got := testutil.ToFloat64(c.Messages.WithLabelValues("ignored")); got != 2 {
		t.Errorf("ignored = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.SubscribeErrors); got != 1 {
		t.Errorf("subscribe errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Connected); got != 1 {
		t.Errorf("connected = %v, want 1", got)
	}
	c.ConnectionChanged(false)
	if got := testutil.ToFloat64(c.Connected); got != 0 {
		t.Errorf("connected after drop = %v, want 0", got)
	}
}

func TestCollector_Render(t *testing.T) {
	c, reg := newTestCollector(t)

	c.Rendered(3 * time.Millisecond)
	c.RenderFailed("web")

	if got := testutil.ToFloat64(c.Renders); got != 1 {
		t.Errorf("renders = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.RenderErrors.WithLabelValues("web")); got != 1 {
		t.Errorf("render errors = %v, want 1", got)
	}

	expected := `
# HELP wattdash_render_errors_total Renderer failures by renderer.
# TYPE wattdash_render_errors_total counter
wattdash_render_errors_total{renderer="web"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "wattdash_render_errors_total"); err != nil {
		t.Error(err)
	}
}

func TestNew_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	defer func() {
		if recover() == nil {
			t.Error("registering twice on one registry should panic")
		}
	}()
	New(reg)
}
