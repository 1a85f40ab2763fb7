// Blendmate Bridge
//
// Standalone bridge process. It hosts a scene model, keeps a websocket to
// the desktop counterpart and drives the host timers until interrupted.
// Prometheus metrics and a gRPC health endpoint are served alongside.
//
// Usage:
//
//	go run ./cmd                                      # defaults
//	go run ./cmd --socket-url ws://127.0.0.1:40000    # custom counterpart
//	go run ./cmd --config bridge.yaml --log-level debug
//	go run ./cmd --print-config                       # resolved config as JSON
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/blendmate/bridge/coreengine/bridge"
	"github.com/blendmate/bridge/coreengine/config"
	bridgegrpc "github.com/blendmate/bridge/coreengine/grpc"
	"github.com/blendmate/bridge/coreengine/observability"
	"github.com/blendmate/bridge/coreengine/scene"
	"github.com/blendmate/bridge/coreengine/scheduler"
)

// Version is the bridge build version.
const Version = "0.1.0"

const shutdownTimeout = 3 * time.Second

type rootOptions struct {
	configPath  string
	printConfig bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	defaults := config.DefaultBridgeConfig()

	cmd := &cobra.Command{
		Use:          "blendmate-bridge",
		Short:        "Blendmate host bridge",
		Long:         "Connects a host scene to the Blendmate desktop counterpart over a websocket.",
		Version:      Version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath, cmd.Flags())
			if err != nil {
				return err
			}
			if opts.printConfig {
				return printConfig(cmd.OutOrStdout(), cfg)
			}
			return runBridge(cmd.Context(), cfg, cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "Config file (yaml, json or toml)")
	flags.BoolVar(&opts.printConfig, "print-config", false, "Print the resolved configuration and exit")

	// Bound into config.Load; names map to config keys with dashes for underscores.
	flags.String("socket-url", defaults.SocketURL, "Counterpart websocket URL")
	flags.Int("reconnect-backoff-ms", defaults.ReconnectBackoffMS, "Delay between reconnect attempts (2000-5000)")
	flags.Int("throttle-interval-ms", defaults.ThrottleIntervalMS, "Coalescing window for throttled events (10-1000)")
	flags.StringSlice("throttled-kinds", defaults.ThrottledKinds, "Event kinds to coalesce")
	flags.Int("tick-interval-ms", defaults.TickIntervalMS, "Queue processing cadence")
	flags.Int("heartbeat-interval-ms", defaults.HeartbeatIntervalMS, "Heartbeat cadence, 0 disables")
	flags.String("log-level", defaults.LogLevel, "Log level: debug, info, warn, error")
	flags.String("log-format", defaults.LogFormat, "Log format: text or json")
	flags.String("metrics-addr", defaults.MetricsAddr, "Prometheus listen address, empty disables")
	flags.String("health-addr", defaults.HealthAddr, "gRPC health listen address, empty disables")
	flags.String("otlp-endpoint", defaults.OTLPEndpoint, "OTLP gRPC collector endpoint, empty disables tracing")

	return cmd
}

func printConfig(w io.Writer, cfg *config.BridgeConfig) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

// =============================================================================
// RUN
// =============================================================================

func runBridge(parent context.Context, cfg *config.BridgeConfig, logOut io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat, logOut)
	logger.Info("bridge_starting", "version", Version, "url", cfg.SocketURL)

	if cfg.OTLPEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(ctx, "blendmate-bridge", Version, cfg.OTLPEndpoint)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			tctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdownTracer(tctx); err != nil {
				logger.Warn("tracer_shutdown_failed", "error", err.Error())
			}
		}()
	}

	host := scene.NewDefault()
	timers := scheduler.NewTimers(logger)
	b, err := bridge.New(cfg, host,
		bridge.WithLogger(logger),
		bridge.WithTimers(timers),
		bridge.WithMiddleware(scene.NewReasonMiddleware(host)),
	)
	if err != nil {
		return err
	}
	host.SetNotifier(b.Notify)

	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics_server_failed", "address", cfg.MetricsAddr, "error", err.Error())
			}
		}()
		defer srv.Close()
		logger.Info("metrics_server_started", "address", cfg.MetricsAddr)
	}

	if cfg.HealthAddr != "" {
		health := bridgegrpc.NewHealthServer(logger)
		health.Watch(b)
		if _, err := health.StartBackground(cfg.HealthAddr); err != nil {
			return err
		}
		defer health.Shutdown(shutdownTimeout)
	}

	if err := b.Start(); err != nil {
		return err
	}
	logger.Info("bridge_ready", "tick_interval_ms", cfg.TickIntervalMS)

	// This goroutine is the host's safe execution context from here on.
	timers.Run(ctx, cfg.TickInterval()/2)
	logger.Info("shutdown_signal_received")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := b.Stop(sctx); err != nil {
		logger.Warn("bridge_stop_incomplete", "error", err.Error())
	}
	return nil
}
