package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/lineage/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Example: `  # Serve on the default port with lineage.db in the working directory
  lineage serve

  # Serve a different database on port 9000
  lineage serve --db /var/lib/lineage/tree.db --port 9000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := server.New(db, cfg, logger)

		if sched := srv.PushScheduler(); sched != nil {
			sched.Start(ctx)
			defer sched.Stop()
		} else {
			logger.Info("push notifications disabled, no VAPID keys configured")
		}

		go srv.RunCleanup(ctx, time.Hour)

		httpServer := &http.Server{
			Addr:         cfg.Addr(),
			Handler:      srv.Router(),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		errc := make(chan error, 1)
		go func() {
			logger.Info("lineage running", "addr", httpServer.Addr, "db", cfg.DBPath)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
			close(errc)
		}()

		select {
		case err := <-errc:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	},
}
