// Wattdash is a home energy and weather dashboard fed by MQTT.
//
// It subscribes to a fixed set of telemetry topics on an MQTT broker,
// keeps the latest value of each in memory, and renders the combined
// picture on a fixed cadence to the log, a web page and a WebSocket
// feed. Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	wattdash serve              Connect to the broker and serve the dashboard
//	wattdash init [dir]         Write a starter config.yaml and .env
//	wattdash topics             List the subscribed topics and decode rules
//	wattdash version            Print version and build information
//	wattdash -o json topics     Output the topic table as JSON
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/nugget/wattdash/internal/buildinfo"
	"github.com/nugget/wattdash/internal/config"
	"github.com/nugget/wattdash/internal/dashboard"
	"github.com/nugget/wattdash/internal/events"
	"github.com/nugget/wattdash/internal/metrics"
	"github.com/nugget/wattdash/internal/mqtt"
	"github.com/nugget/wattdash/internal/telemetry"
	"github.com/nugget/wattdash/internal/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// main only builds the OS-level environment (context, stdio, argv) and
// delegates to [run], which keeps os.Exit and os.Args out of code the
// tests drive.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. ctx bounds the process lifetime, logs go
// to stdout, and args is os.Args[1:]. Arguments are parsed by hand so
// run has no package-level flag state and can be called from parallel
// tests.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, stderr, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "topics":
		return runTopics(stdout, outputFmt)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

type topicRow struct {
	Topic   string  `json:"topic"`
	Kind    string  `json:"kind"`
	Divisor float64 `json:"divisor,omitempty"`
	MaxLen  int     `json:"max_len,omitempty"`
}

// runTopics prints the subscription table in registry order, which is
// also the order subscriptions are issued in.
func runTopics(w io.Writer, outputFmt string) error {
	fields := telemetry.Fields()
	rows := make([]topicRow, len(fields))
	for i, f := range fields {
		rows[i] = topicRow{
			Topic:   f.Topic,
			Kind:    f.Rule.Kind.String(),
			Divisor: f.Rule.Divisor,
			MaxLen:  f.Rule.MaxLen,
		}
	}

	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TOPIC\tKIND\tRULE")
	for _, r := range rows {
		rule := ""
		switch {
		case r.Divisor != 0:
			rule = fmt.Sprintf("/%g", r.Divisor)
		case r.MaxLen != 0:
			rule = fmt.Sprintf("max %d bytes", r.MaxLen)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Topic, r.Kind, rule)
	}
	return tw.Flush()
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "wattdash - MQTT energy and weather dashboard")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: wattdash [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Connect to the broker and serve the dashboard")
	fmt.Fprintln(w, "  init [dir]   Write a starter config.yaml and .env (default: .)")
	fmt.Fprintln(w, "  topics       List subscribed topics and decode rules")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/wattdash/config.yaml, /etc/wattdash/config.yaml")
	return nil
}

// runServe is the primary operating mode. It wires the store, the MQTT
// ingestion path, the render loop and the web server, then blocks until
// SIGINT/SIGTERM or ctx cancellation.
//
// Shutdown order: the broker session is closed first so no update lands
// mid-teardown, then the web server drains, then the render loop exits.
func runServe(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo, "text")
	logger.Info("starting wattdash", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Validate() already rejected unknown levels.
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger = newLogger(stdout, level, cfg.LogFormat)

	logger.Info("config loaded",
		"path", cfgPath,
		"broker", cfg.MQTT.Broker,
		"interval", cfg.Dashboard.Interval(),
		"web", cfg.Web.Enabled,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Metrics ---
	// A private registry keeps repeated runs (tests) from colliding on
	// the global default registerer.
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.New(reg)

	// --- Telemetry store and ingestion ---
	bus := events.New()
	store := telemetry.NewStore(
		telemetry.WithLockTimeout(cfg.Store.LockTimeout()),
		telemetry.WithObserver(collector),
	)
	dispatcher := mqtt.NewDispatcher(store, bus, collector, logger.With("component", "mqtt"))

	var client *mqtt.Client
	if cfg.MQTT.Configured() {
		instanceID, err := mqtt.LoadOrCreateInstanceID(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("load mqtt instance id: %w", err)
		}
		clientID := mqtt.ClientID(cfg.MQTT, instanceID)
		logger.Info("mqtt instance ID loaded", "instance_id", instanceID, "client_id", clientID)

		client = mqtt.NewClient(cfg.MQTT, clientID, dispatcher, collector, logger.With("component", "mqtt"))
		go func() {
			if err := client.Start(ctx); err != nil {
				logger.Error("mqtt client failed", "error", err)
			}
		}()
	} else {
		logger.Warn("mqtt not configured, dashboard will show empty telemetry")
	}

	// --- Renderers ---
	var renderers []dashboard.Renderer
	if cfg.Dashboard.LogEverySec > 0 {
		every := time.Duration(cfg.Dashboard.LogEverySec) * time.Second
		renderers = append(renderers, dashboard.NewLogRenderer(logger, every))
	}

	connected := func() bool { return dispatcher.State() == mqtt.Connected }

	var webServer *web.Server
	if cfg.Web.Enabled {
		webServer = web.New(web.Options{
			Address:        cfg.Web.Address,
			Port:           cfg.Web.Port,
			AllowedOrigins: cfg.Web.AllowedOrigins,
			Gatherer:       reg,
			Connected:      connected,
			Logger:         logger.With("component", "web"),
		})
		renderers = append(renderers, webServer)
	}

	consumer := dashboard.New(store, renderers, dashboard.Options{
		Interval:  cfg.Dashboard.Interval(),
		Prices:    pricesFrom(cfg.Prices),
		Bus:       bus,
		Connected: connected,
		Recorder:  collector,
		Logger:    logger.With("component", "dashboard"),
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		consumer.Run(ctx)
	}()

	serverErr := make(chan error, 1)
	if webServer != nil {
		go func() {
			serverErr <- webServer.Start(ctx)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("web server failed: %w", err)
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if client != nil {
		if err := client.Stop(shutdownCtx); err != nil {
			logger.Debug("mqtt disconnect", "error", err)
		}
	}
	if webServer != nil {
		if err := webServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("web server shutdown failed", "error", err)
		}
	}
	wg.Wait()

	if runErr != nil {
		return runErr
	}
	logger.Info("wattdash stopped", "bus_dropped", bus.Dropped(), "sessions", dispatcher.Connects())
	return nil
}

func pricesFrom(p config.PricesConfig) dashboard.Prices {
	return dashboard.Prices{
		Currency: p.Currency,
		Grid:     p.GridPerKWh,
		Solar:    p.SolarPerKWh,
		Gas:      p.GasPerM3,
		Water:    p.WaterPerM3,
	}
}

// newLogger creates a structured logger that writes to w at the given
// level and format. Format must be "text" or "json"; any other value
// defaults to text.
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// loadConfig locates and parses the YAML configuration file. Returns the
// parsed config, the path that was loaded, and any error.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	return cfg, cfgPath, nil
}
