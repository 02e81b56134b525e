package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maia-os/covalue-core/internal/runtime"
	"github.com/maia-os/covalue-core/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local node",
	Long: `Opens the durable store, constructs a runtime.Node, starts telemetry,
and blocks until a signal arrives. Only a liveness endpoint (/healthz) is
exposed here; the CRDT sync transport and any application-facing operation
API are external collaborators this core does not implement.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := runtime.Open(ctx, runtime.Config{Driver: cfg.StoreDriver, DSN: cfg.DatabaseURL})
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		log.Printf("store opened (driver=%s)", cfg.StoreDriver)

		node := runtime.NewNode(cfg.NodeID, store, cfg.SystemSpark)
		log.Printf("node %s ready, system spark %q", node.ID(), node.SystemSpark())

		shutdownTelemetry, err := telemetry.Init(ctx, cfg.Observability)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}

		storeMetrics, err := telemetry.NewStoreMetrics()
		if err != nil {
			return fmt.Errorf("init store metrics: %w", err)
		}
		node.SetMetrics(storeMetrics)

		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{"status":"ok","node_id":%q}`, node.ID())
		})
		// Metric/trace/log export runs on the OTLP push interval configured
		// via telemetry.Init; there is no separate /metrics scrape route.

		srv := &http.Server{
			Addr:         cfg.HealthAddr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			log.Printf("liveness endpoint listening on %s", cfg.HealthAddr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("server error: %w", err)
			}
		case sig := <-shutdown:
			log.Printf("received signal %v, shutting down gracefully", sig)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				srv.Close()
			}
			if err := shutdownTelemetry(shutdownCtx); err != nil {
				log.Printf("telemetry shutdown error: %v", err)
			}
			log.Printf("node stopped")
		}

		return nil
	},
}
