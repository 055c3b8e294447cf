package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitlab.com/timkado/api/daisi-billing-testkit/internal/bootstrap"
	"go.uber.org/zap"
)

func main() {
	// Setup panic recovery at the highest level
	defer func() {
		if r := recover(); r != nil {
			// Last resort; the DI-provided logger may not exist yet.
			fmt.Fprintf(os.Stderr, "Service panicked: %v\n", r)
			os.Exit(1)
		}
	}()

	app, cleanup, err := bootstrap.InitializeApp()
	if err != nil {
		// If InitializeApp fails, the logger might not be available yet.
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}
	if cleanup == nil {
		app.Logger.Error(context.Background(), "Initialization returned nil cleanup function without error. Exiting.")
		os.Exit(1)
	}
	defer cleanup() // Ensure all resources are cleaned up on exit

	app.Logger.Info(context.Background(), "Reporter initialized successfully", zap.String("service", bootstrap.ServiceName))

	// Start the NATS JetStream Ingester in a goroutine.
	// The Ingester's Start method is blocking and handles its own shutdown
	// via its internal shutdown context.
	go func() {
		app.Logger.Info(context.Background(), "Starting NATS JetStream Ingester...")
		if err := app.Ingester.Start(); err != nil {
			// An error here means the ingester never got its subscription
			// going; there is nothing to aggregate without it.
			app.Logger.Error(context.Background(), "NATS JetStream Ingester failed to start or exited with error", zap.Error(err))
			panic(fmt.Sprintf("NATS JetStream Ingester failed: %v", err))
		}
		app.Logger.Info(context.Background(), "NATS JetStream Ingester stopped.")
	}()

	// The Prometheus metrics server (app.MetricsServer) is started by its
	// provider in a goroutine; its shutdown is part of the main cleanup.

	app.Logger.Info(context.Background(), "Reporter started. Waiting for interrupt signal to gracefully shutdown...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit

	app.Logger.Info(context.Background(), "Received interrupt signal, initiating graceful shutdown...", zap.String("signal", receivedSignal.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	app.Logger.Info(shutdownCtx, "Graceful shutdown sequence initiated. Main cleanup will run on exit.")
	// The deferred cleanup from InitializeApp shuts down the ingester, the
	// dispatch pool, the metrics server and both client connections.
}
