package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/allisson/eventflow/internal/app"
	"github.com/allisson/eventflow/internal/config"
	"github.com/allisson/eventflow/internal/queue"
)

// shutdownTimeout bounds how long the servers may take to drain on exit.
const shutdownTimeout = 10 * time.Second

// RunConsumer starts the queue pollers for the selected queues together with
// the operational and metrics HTTP servers. Blocks until SIGINT/SIGTERM or a
// fatal error, then drains everything gracefully.
func RunConsumer(ctx context.Context, version string, queues []string) error {
	// Load configuration
	cfg := config.Load()

	// Set Gin mode based on log level
	gin.SetMode(cfg.GetGinMode())

	// Create DI container
	container := app.NewContainer(cfg)

	// Get logger from container
	logger := container.Logger()
	logger.Info("starting consumer",
		slog.String("version", version),
		slog.Any("queues", queues),
	)

	// Ensure cleanup on exit
	defer closeContainer(container, logger)

	pollers := make([]*queue.Poller, 0, len(queues))
	for _, name := range queues {
		poller, err := pollerFor(container, name)
		if err != nil {
			return fmt.Errorf("failed to initialize %s poller: %w", name, err)
		}
		pollers = append(pollers, poller)
	}
	if len(pollers) == 0 {
		return errors.New("no queues selected")
	}

	// Get HTTP servers from container
	server, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}
	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)

	for _, poller := range pollers {
		group.Go(func() error {
			return poller.Run(groupCtx)
		})
	}

	group.Go(func() error {
		return server.Start(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if metricsServer != nil {
		group.Go(func() error {
			return metricsServer.Start(groupCtx)
		})
		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("consumer stopped")
	return nil
}

// pollerFor resolves a queue name to its assembled poller.
func pollerFor(container *app.Container, name string) (*queue.Poller, error) {
	switch name {
	case "signup":
		return container.SignupPoller()
	case "restaurant":
		return container.RestaurantPoller()
	case "datastore":
		return container.DatastorePoller()
	case "deadletter":
		return container.DeadLetterPoller()
	default:
		return nil, fmt.Errorf("unknown queue: %s (valid options: signup, restaurant, datastore, deadletter)", name)
	}
}
