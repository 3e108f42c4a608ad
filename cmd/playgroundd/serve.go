package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/HathorNetwork/hathor-playground-sub001/internal/audit"
	"github.com/HathorNetwork/hathor-playground-sub001/internal/config"
	"github.com/HathorNetwork/hathor-playground-sub001/internal/observability"
	"github.com/HathorNetwork/hathor-playground-sub001/internal/runtime"
	"github.com/HathorNetwork/hathor-playground-sub001/internal/sandbox"
	"github.com/HathorNetwork/hathor-playground-sub001/internal/tools/blueprint"
	"github.com/HathorNetwork/hathor-playground-sub001/internal/tools/files"
	"github.com/HathorNetwork/hathor-playground-sub001/internal/transport"
	"github.com/HathorNetwork/hathor-playground-sub001/internal/watch"
)

func newServeCommand() *cobra.Command {
	var (
		configPath string
		listenAddr string
		watchDir   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the control-plane daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath, listenAddr, watchDir)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVarP(&listenAddr, "listen", "l", ":8780", "HTTP listen address")
	cmd.Flags().StringVar(&watchDir, "watch", "", "local workspace directory to watch for external changes")
	return cmd
}

func serve(ctx context.Context, configPath, listenAddr, watchDir string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	})

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{
		ServiceName:  "playgroundd",
		Environment:  cfg.Observability.Environment,
		Endpoint:     cfg.Observability.OTLPEndpoint,
		SamplingRate: cfg.Observability.SamplingRate,
	})

	var recorder runtime.Recorder
	if cfg.Audit.Enabled {
		store, err := audit.Open(cfg.Audit.Path)
		if err != nil {
			return fmt.Errorf("audit store: %w", err)
		}
		defer store.Close()
		recorder = store
	}

	hub := transport.NewHub()
	rt := runtime.New(runtime.Options{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		Tracer:  tracer,
		Auditor: recorder,
		Events:  hub.Publish,
	})

	store := files.NewStore()
	client := sandbox.NewClient(cfg.Sandbox, logger)
	files.Register(rt, store)
	blueprint.Register(rt, store, client)
	sandbox.Register(rt, client, store)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if watchDir != "" {
		watcher, err := watch.New(watchDir, rt.Cache(), logger)
		if err != nil {
			return fmt.Errorf("workspace watcher: %w", err)
		}
		defer watcher.Close()
		go watcher.Run(ctx)
	}

	// Periodic TTL sweep keeps the cache from holding expired entries
	// between lookups.
	go func() {
		ticker := time.NewTicker(cfg.Cache.TTL)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rt.Cache().Cleanup(0)
			}
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", transport.NewHandler(rt, hub, client, logger)))
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"tools":  rt.Registry().Names(),
			"gate":   rt.GateState(),
		})
	})

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info(ctx, "control plane listening", "addr", listenAddr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn(context.Background(), "server shutdown", "error", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Warn(context.Background(), "tracer shutdown", "error", err)
	}
	return nil
}
