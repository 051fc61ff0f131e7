package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fabricbridge/internal/actions"
	"fabricbridge/internal/config"
	"fabricbridge/internal/fabric"
	"fabricbridge/internal/gps"
	"fabricbridge/internal/journal"
	"fabricbridge/internal/logging"
	"fabricbridge/internal/server"
	"fabricbridge/internal/vars"
	"fabricbridge/web"
)

func main() {
	configPath := flag.String("config", "/etc/fabricbridge/config.yaml", "Path to config file")
	demo := flag.Bool("demo", false, "Run with a simulated position source")
	listenAddr := flag.String("listen", "", "Override listen address (e.g. :8080)")
	flag.Parse()

	cfg := config.Load(*configPath)

	if *demo {
		cfg.GPS.Type = "demo"
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}

	root, err := logging.Setup(cfg.Logging.Level)
	if err != nil {
		slog.Error("invalid logging config", "error", err)
		os.Exit(1)
	}
	root.Info("fabricbridge starting", "endpoint", cfg.Fabric.Endpoint)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		root.Info("shutting down", "signal", sig.String())
		cancel()
	}()

	// Position source
	var gpsProv gps.Provider
	switch cfg.GPS.Type {
	case "nmea":
		gpsProv = gps.NewNMEA(gps.NMEAConfig{
			PortPath: cfg.GPS.PortPath,
			BaudRate: cfg.GPS.BaudRate,
		}, logging.Component(root, "gps"))
	case "disabled":
		gpsProv = nil
	default:
		gpsProv = gps.NewDemo()
	}

	if gpsProv != nil {
		// Non-blocking: the server starts even while the GPS is still connecting
		go connectWithRetry(ctx, root, gpsProv, 10)
	}

	store := vars.NewStore()

	reporter := fabric.NewReporter(cfg.Fabric, store, nil, logging.Component(root, "fabric"))
	dispatcher := actions.NewDispatcher(logging.Component(root, "dispatch"), reporter)

	jnl := journal.New(journal.Config{
		Enabled:    cfg.Journal.Enabled,
		Path:       cfg.Journal.Path,
		IntervalMs: cfg.Journal.Interval,
	}, logging.Component(root, "journal"))
	defer jnl.Close()

	srv := server.New(cfg, gpsProv, store, dispatcher, jnl, web.FS, logging.Component(root, "server"))
	reporter.SetOutcomeHook(srv.ObserveOutcome)

	if err := srv.Run(ctx); err != nil {
		root.Info("server exited", "error", err)
	}
}

// connectWithRetry attempts to connect with exponential backoff.
// Starts at 1s, doubles each attempt up to 60s, then keeps retrying at
// the max interval indefinitely.
func connectWithRetry(ctx context.Context, log *slog.Logger, p gps.Provider, maxAttempts int) {
	delay := 1 * time.Second
	maxDelay := 60 * time.Second
	attempt := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := p.Connect(); err != nil {
			attempt++
			log.Warn("gps connect failed", "provider", p.Name(),
				"attempt", attempt, "max", maxAttempts, "retry_in", delay, "error", err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}

			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
		} else {
			log.Info("gps connected", "provider", p.Name(), "attempt", attempt+1)
			return
		}
	}
}
