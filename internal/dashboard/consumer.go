// Package dashboard periodically reads the telemetry store and pushes a
// rendered view to every configured renderer. It is the only consumer
// of store snapshots.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nugget/wattdash/internal/events"
	"github.com/nugget/wattdash/internal/telemetry"
)

// DefaultInterval is the render cadence when none is configured.
const DefaultInterval = time.Second

// Reader yields snapshots. [*telemetry.Store] satisfies it.
type Reader interface {
	Snapshot() (telemetry.Snapshot, bool)
}

// Renderer draws one view. Renderers are called sequentially from the
// consumer goroutine; an error is logged and counted, then ignored.
type Renderer interface {
	Render(ctx context.Context, v View) error
}

// Recorder receives render counters.
type Recorder interface {
	Rendered(d time.Duration)
	RenderFailed(renderer string)
}

type nopRecorder struct{}

func (nopRecorder) Rendered(time.Duration) {}
func (nopRecorder) RenderFailed(string)    {}

// View is everything a renderer draws in one cycle.
type View struct {
	Telemetry telemetry.Snapshot `json:"telemetry"`
	Costs     Costs              `json:"costs"`
	Currency  string             `json:"currency"`
	// Stale is set when the store was busy and the previous snapshot was
	// reused.
	Stale      bool      `json:"stale"`
	Connected  bool      `json:"connected"`
	RenderedAt time.Time `json:"rendered_at"`
}

// Options configures a [Consumer]. Zero values select defaults.
type Options struct {
	Interval time.Duration
	Prices   Prices
	// Bus, when set, wakes the consumer early on condition changes.
	Bus *events.Bus
	// Connected reports the broker session state for the view.
	Connected func() bool
	Recorder  Recorder
	Logger    *slog.Logger
	Now       func() time.Time
}

// Consumer drives the render loop.
type Consumer struct {
	reader    Reader
	renderers []Renderer
	names     []string
	interval  time.Duration
	prices    Prices
	bus       *events.Bus
	connected func() bool
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a consumer. Call [Consumer.Run] to start rendering.
func New(reader Reader, renderers []Renderer, opts Options) *Consumer {
	c := &Consumer{
		reader:    reader,
		renderers: renderers,
		interval:  opts.Interval,
		prices:    opts.Prices,
		bus:       opts.Bus,
		connected: opts.Connected,
		recorder:  opts.Recorder,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if c.interval <= 0 {
		c.interval = DefaultInterval
	}
	if c.prices == (Prices{}) {
		c.prices = DefaultPrices
	}
	if c.connected == nil {
		c.connected = func() bool { return false }
	}
	if c.recorder == nil {
		c.recorder = nopRecorder{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.names = make([]string, len(renderers))
	for i, r := range renderers {
		c.names[i] = rendererName(r)
	}
	return c
}

// Run renders once immediately, then on every tick and whenever a
// condition text changes. It returns when ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	var wake <-chan events.Event
	if c.bus != nil {
		ch := c.bus.Subscribe(32)
		defer c.bus.Unsubscribe(ch)
		wake = ch
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Info("dashboard render loop started",
		"interval", c.interval,
		"renderers", len(c.renderers),
	)
	c.RenderOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RenderOnce(ctx)
		case e, ok := <-wake:
			if !ok {
				wake = nil
				continue
			}
			if e.Kind != events.KindConditionChanged {
				continue
			}
			drainConditionEvents(wake)
			c.RenderOnce(ctx)
		}
	}
}

// drainConditionEvents discards queued events so a burst of condition
// updates (one per forecast day) costs a single extra render.
func drainConditionEvents(ch <-chan events.Event) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// RenderOnce performs a single read-derive-render cycle and returns the
// view that was rendered.
func (c *Consumer) RenderOnce(ctx context.Context) View {
	start := time.Now()

	snap, fresh := c.reader.Snapshot()
	if !fresh {
		c.logger.Debug("store busy, rendering previous snapshot")
	}

	v := View{
		Telemetry:  snap,
		Costs:      ComputeCosts(snap, c.prices),
		Currency:   c.prices.Currency,
		Stale:      !fresh,
		Connected:  c.connected(),
		RenderedAt: c.now(),
	}

	for i, r := range c.renderers {
		if err := r.Render(ctx, v); err != nil {
			c.recorder.RenderFailed(c.names[i])
			c.logger.Warn("render failed", "renderer", c.names[i], "error", err)
		}
	}

	c.recorder.Rendered(time.Since(start))
	c.bus.Emit(events.SourceDashboard, events.KindRendered, map[string]any{
		"stale":     v.Stale,
		"renderers": len(c.renderers),
	})
	return v
}

func rendererName(r Renderer) string {
	if n, ok := r.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", r)
}
