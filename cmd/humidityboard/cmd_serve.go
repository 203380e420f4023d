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
	"github.com/udec-estadio/humidityboard/pkg/dashboard"
	"github.com/udec-estadio/humidityboard/pkg/ingest"
	"github.com/udec-estadio/humidityboard/pkg/views"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Humidityboard server",
	Long: `Start the HTTP server: the sensor ingestion endpoint, the JSON listing
and the dashboard pages. Migrations are applied on startup. When MQTT_BROKER
is set, readings published on MQTT_TOPIC are stored as well.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a := appFrom(cmd)
	logger := a.logger

	if err := views.LoadTemplates(); err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	dbManager, err := a.openDatabase()
	if err != nil {
		return err
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
		logger.Info("database closed")
	}()

	if err := dbManager.Init(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poller := dashboard.NewPoller(dbManager, dashboard.Options{
		Interval:    a.cfg.Dashboard.PollInterval,
		Locations:   a.cfg.Dashboard.Locations,
		HistorySize: a.cfg.Dashboard.HistorySize,
		RequireAll:  a.cfg.Dashboard.RequireAll,
		Logger:      logger,
	})
	poller.Start(ctx)
	defer poller.Stop()

	var subscriber *ingest.Subscriber
	if a.cfg.MQTT.Enabled() {
		subscriber = ingest.NewSubscriber(a.cfg.MQTT, dbManager, logger)
		go func() {
			if err := subscriber.Connect(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ingest.ErrSubscriberStopped) {
				logger.Error("mqtt ingestion unavailable", "error", err)
			}
		}()
		defer subscriber.Disconnect()
	}

	routeManager := NewRouteManager(dbManager, poller, a.cfg, logger)
	routeManager.Setup()

	server := &http.Server{
		Handler:           routeManager.Handler(),
		Addr:              ":" + a.cfg.Server.Port,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting Humidityboard server", "addr", server.Addr, "version", version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	// Stop producers before the listener; deferred calls then close the pool
	poller.Stop()
	if subscriber != nil {
		subscriber.Disconnect()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
	return nil
}
