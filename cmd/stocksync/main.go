// Package main boots the stocksync reconciliation service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tovald/stocksync/internal/catalog"
	"github.com/tovald/stocksync/internal/config"
	"github.com/tovald/stocksync/internal/feed"
	httpapi "github.com/tovald/stocksync/internal/http"
	"github.com/tovald/stocksync/internal/notify"
	"github.com/tovald/stocksync/internal/obs"
	"github.com/tovald/stocksync/internal/runlog"
	syncpkg "github.com/tovald/stocksync/internal/sync"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "stocksync",
		Short:         "Reconciles distributor stock and pricing into the storefront catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Local development convenience; absence of a .env file is fine.
			_ = godotenv.Load()
			obs.InitLogger()
		},
	}
	root.AddCommand(newServeCmd(), newRunCmd())
	return root
}

func buildRunner(cfg config.Config) *syncpkg.Runner {
	feedClient := feed.NewClient(cfg)
	catClient := catalog.NewClient(cfg)
	exec := syncpkg.NewExecutor(catClient, syncpkg.ExecConfig{
		Interval: cfg.WriteInterval,
		Attempts: cfg.RetryAttempts,
		Backoff:  cfg.RetryBackoff,
	})
	return syncpkg.NewRunner(feedClient, catClient, exec, notify.FromConfig(cfg))
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Perform a single reconciliation pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			runner := buildRunner(cfg)
			rep, err := runner.Run(cmd.Context())
			if err != nil {
				fmt.Fprintln(os.Stderr, "sync failed:", err)
				return err
			}
			fmt.Println(rep.Summary.String())
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP trigger for scheduled invocations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			obs.Logger.Info("service_starting")

			runner := buildRunner(cfg)
			runs := runlog.New(cfg.RunLogSize)
			app := httpapi.NewApp(cfg, runner, runs)
			mux := httpapi.NewRouter(app)

			srv := &http.Server{
				Addr:              cfg.HTTPAddr,
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				// A sync run completes within the response; write timeout
				// must cover a full catalog pass at one write per 550ms.
				WriteTimeout: 30 * time.Minute,
				IdleTimeout:  60 * time.Second,
			}

			errc := make(chan error, 1)
			go func() {
				obs.Logger.Info("http_listen", "addr", cfg.HTTPAddr)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errc <- err
				}
			}()

			sigc := make(chan os.Signal, 1)
			signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errc:
				obs.Logger.Error("http_server_error", "error", err)
				return err
			case s := <-sigc:
				obs.Logger.Info("shutdown_signal", "signal", s.String())
			}

			ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				obs.Logger.Error("http_shutdown_error", "error", err)
			}
			obs.Logger.Info("service_stopped")
			return nil
		},
	}
}
