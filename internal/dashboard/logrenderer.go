package dashboard

import (
	"context"
	"log/slog"
	"time"
)

// LogRenderer writes a one-line summary of the view to the log, at most
// once per Every. It stands in for a screen on headless installs.
type LogRenderer struct {
	logger *slog.Logger
	every  time.Duration
	last   time.Time
}

// NewLogRenderer returns a LogRenderer. every <= 0 logs every view.
func NewLogRenderer(logger *slog.Logger, every time.Duration) *LogRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRenderer{logger: logger, every: every}
}

// Name identifies the renderer in metrics and logs.
func (r *LogRenderer) Name() string { return "log" }

// Render logs v unless the previous line is younger than the interval.
// The consumer calls renderers from a single goroutine.
func (r *LogRenderer) Render(ctx context.Context, v View) error {
	if !r.last.IsZero() && v.RenderedAt.Sub(r.last) < r.every {
		return nil
	}
	r.last = v.RenderedAt

	t := v.Telemetry
	r.logger.InfoContext(ctx, "telemetry",
		"power_w", t.CurrentPower,
		"solar_w", t.SolarPower,
		"total_kwh", t.TotalPower,
		"grid_kwh", t.GridDaily,
		"grid_cost", v.Costs.GridDaily,
		"gas_m3", t.GasConsumption,
		"outdoor_c", t.TempOutdoor,
		"condition", t.WeatherCondition,
		"connected", v.Connected,
		"stale", v.Stale,
	)
	return nil
}
