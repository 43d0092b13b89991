package mqtt

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/nugget/wattdash/internal/config"
	"github.com/nugget/wattdash/internal/events"
	"github.com/nugget/wattdash/internal/telemetry"
)

// State is the dispatcher's view of the broker session.
type State int32

const (
	// Disconnected is the initial state and the state after any loss of
	// the broker session.
	Disconnected State = iota
	// Connected means a session is up and subscriptions were issued.
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// Message outcomes reported to a [Recorder].
const (
	ResultApplied     = "applied"
	ResultDropped     = "dropped"
	ResultIgnored     = "ignored"
	ResultRateLimited = "rate_limited"
)

// Subscriber issues a single topic subscription on the live session.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) error
}

// Applier accepts decoded updates. [*telemetry.Store] satisfies it.
type Applier interface {
	Apply(u telemetry.Update) bool
}

// Recorder receives ingestion counters. Implementations must be safe
// for concurrent use and must not block.
type Recorder interface {
	MessageHandled(result string)
	SubscribeFailed(topic string)
	ConnectionChanged(connected bool)
}

type nopRecorder struct{}

func (nopRecorder) MessageHandled(string)  {}
func (nopRecorder) SubscribeFailed(string) {}
func (nopRecorder) ConnectionChanged(bool) {}

// Dispatcher routes broker events into the telemetry store. It owns no
// network resources; a [Client] drives it from the paho callbacks, and
// tests drive it directly.
type Dispatcher struct {
	store    Applier
	bus      *events.Bus
	recorder Recorder
	logger   *slog.Logger

	state    atomic.Int32
	connects atomic.Int64
}

// NewDispatcher returns a dispatcher in the [Disconnected] state. bus
// and rec may be nil.
func NewDispatcher(store Applier, bus *events.Bus, rec Recorder, logger *slog.Logger) *Dispatcher {
	if rec == nil {
		rec = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:    store,
		bus:      bus,
		recorder: rec,
		logger:   logger,
	}
}

// State reports the current session state.
func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

// Connects reports how many sessions have come up since start.
func (d *Dispatcher) Connects() int64 {
	return d.connects.Load()
}

// OnConnect marks the session up and subscribes to every registry topic
// in registry order, once each. A failed subscription is logged and
// counted; the remaining topics are still attempted. It returns the
// number of topics that failed.
func (d *Dispatcher) OnConnect(ctx context.Context, sub Subscriber) int {
	d.state.Store(int32(Connected))
	n := d.connects.Add(1)
	d.recorder.ConnectionChanged(true)

	topics := telemetry.Topics()
	failed := 0
	for _, topic := range topics {
		if err := sub.Subscribe(ctx, topic); err != nil {
			failed++
			d.recorder.SubscribeFailed(topic)
			d.logger.Warn("mqtt subscribe failed", "topic", topic, "error", err)
		}
	}

	d.logger.Info("mqtt subscriptions issued",
		"topics", len(topics),
		"failed", failed,
		"session", n,
	)
	d.bus.Emit(events.SourceIngest, events.KindConnected, map[string]any{
		"subscribed": len(topics) - failed,
		"failed":     failed,
	})
	return failed
}

// OnDisconnect marks the session down. Stored telemetry is left as-is
// so the display keeps showing the last known values.
func (d *Dispatcher) OnDisconnect(reason error) {
	if State(d.state.Swap(int32(Disconnected))) == Disconnected {
		return
	}
	d.recorder.ConnectionChanged(false)

	data := map[string]any{}
	if reason != nil {
		data["error"] = reason.Error()
		d.logger.Warn("mqtt connection lost", "error", reason)
	} else {
		d.logger.Info("mqtt connection closed")
	}
	d.bus.Emit(events.SourceIngest, events.KindDisconnected, data)
}

// HandleMessage resolves topic, decodes payload and applies it to the
// store. Topics outside the registry are ignored. The payload is not
// retained after return.
func (d *Dispatcher) HandleMessage(topic string, payload []byte) {
	if d.logger.Enabled(context.Background(), config.LevelTrace) {
		d.logger.Log(context.Background(), config.LevelTrace, "mqtt message received",
			"topic", topic,
			"payload", string(payload),
		)
	}

	field, ok := telemetry.Resolve(topic)
	if !ok {
		d.recorder.MessageHandled(ResultIgnored)
		d.logger.Debug("mqtt message on unknown topic ignored", "topic", topic)
		return
	}

	value := telemetry.Decode(field.Rule, payload)
	if !d.store.Apply(telemetry.Update{Slot: field.Slot, Value: value}) {
		d.recorder.MessageHandled(ResultDropped)
		d.logger.Debug("telemetry update dropped, store busy", "topic", topic)
		return
	}
	d.recorder.MessageHandled(ResultApplied)

	if field.Rule.Notify {
		d.bus.Emit(events.SourceIngest, events.KindConditionChanged, map[string]any{
			"topic": field.Topic,
			"value": value.Text(),
		})
	}
}
