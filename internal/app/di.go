// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/allisson/eventflow/internal/breaker"
	"github.com/allisson/eventflow/internal/config"
	"github.com/allisson/eventflow/internal/database"
	"github.com/allisson/eventflow/internal/dispatch"
	"github.com/allisson/eventflow/internal/http"
	"github.com/allisson/eventflow/internal/metrics"
	"github.com/allisson/eventflow/internal/notification"
	"github.com/allisson/eventflow/internal/queue"

	datastoreUsecase "github.com/allisson/eventflow/internal/datastore/usecase"
	deadletterRepository "github.com/allisson/eventflow/internal/deadletter/repository"
	deadletterUsecase "github.com/allisson/eventflow/internal/deadletter/usecase"
	restaurantRepository "github.com/allisson/eventflow/internal/restaurant/repository"
	restaurantUsecase "github.com/allisson/eventflow/internal/restaurant/usecase"
	signupRepository "github.com/allisson/eventflow/internal/signup/repository"
	signupUsecase "github.com/allisson/eventflow/internal/signup/usecase"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	breaker         *breaker.CircuitBreaker
	metricsProvider *metrics.Provider
	consumerMetrics metrics.ConsumerMetrics
	notifier        *notification.KafkaNotifier
	sqsClient       *sqs.Client
	dynamoClient    *dynamodb.Client

	// Repositories
	userRepo       signupUsecase.UserRepository
	restaurantRepo restaurantUsecase.RestaurantRepository
	deadLetterRepo deadletterUsecase.DeadLetterRepository

	// Use Cases
	signupUseCase     *signupUsecase.SignupUseCase
	restaurantUseCase *restaurantUsecase.RestaurantUseCase
	datastoreUseCase  *datastoreUsecase.DatastoreUseCase
	deadLetterUseCase *deadletterUsecase.DeadLetterUseCase

	// Pollers
	signupPoller     *queue.Poller
	restaurantPoller *queue.Poller
	datastorePoller  *queue.Poller
	deadLetterPoller *queue.Poller

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                    sync.Mutex
	loggerInit            sync.Once
	dbInit                sync.Once
	breakerInit           sync.Once
	metricsProviderInit   sync.Once
	consumerMetricsInit   sync.Once
	notifierInit          sync.Once
	sqsClientInit         sync.Once
	dynamoClientInit      sync.Once
	userRepoInit          sync.Once
	restaurantRepoInit    sync.Once
	deadLetterRepoInit    sync.Once
	signupUseCaseInit     sync.Once
	restaurantUseCaseInit sync.Once
	datastoreUseCaseInit  sync.Once
	deadLetterUseCaseInit sync.Once
	signupPollerInit      sync.Once
	restaurantPollerInit  sync.Once
	datastorePollerInit   sync.Once
	deadLetterPollerInit  sync.Once
	httpServerInit        sync.Once
	metricsServerInit     sync.Once
	initErrors            map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	c.dbInit.Do(func() {
		db, err := c.initDB()
		if err != nil {
			c.initErrors["db"] = err
			return
		}
		c.db = db
	})
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// Breaker returns the process-wide circuit breaker shared by every dispatcher.
func (c *Container) Breaker() *breaker.CircuitBreaker {
	c.breakerInit.Do(func() {
		c.breaker = breaker.New(breaker.Config{
			FailureThreshold: c.config.BreakerFailureThreshold,
			ResetTimeout:     c.config.BreakerResetTimeout,
		})
	})
	return c.breaker
}

// MetricsProvider returns the metrics provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		provider, err := metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = err
			return
		}
		c.metricsProvider = provider
	})
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// ConsumerMetrics returns the consumer metrics recorder. A no-op implementation
// is returned when metrics are disabled.
func (c *Container) ConsumerMetrics() (metrics.ConsumerMetrics, error) {
	c.consumerMetricsInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["consumerMetrics"] = err
			return
		}
		if provider == nil {
			c.consumerMetrics = metrics.NewNoOpConsumerMetrics()
			return
		}

		consumerMetrics, err := metrics.NewConsumerMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["consumerMetrics"] = err
			return
		}
		c.consumerMetrics = consumerMetrics
	})
	if storedErr, exists := c.initErrors["consumerMetrics"]; exists {
		return nil, storedErr
	}
	return c.consumerMetrics, nil
}

// Notifier returns the Kafka notifier instance.
func (c *Container) Notifier() *notification.KafkaNotifier {
	c.notifierInit.Do(func() {
		c.notifier = notification.NewKafkaNotifier(notification.KafkaConfig{
			Brokers: c.config.KafkaBrokerList(),
			Topic:   c.config.KafkaTopic,
		}, c.Logger())
	})
	return c.notifier
}

// SQSClient returns the SQS client instance.
func (c *Container) SQSClient() (*sqs.Client, error) {
	c.sqsClientInit.Do(func() {
		awsCfg, err := c.loadAWSConfig()
		if err != nil {
			c.initErrors["sqsClient"] = err
			return
		}
		c.sqsClient = sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if c.config.AWSEndpointURL != "" {
				o.BaseEndpoint = aws.String(c.config.AWSEndpointURL)
			}
		})
	})
	if storedErr, exists := c.initErrors["sqsClient"]; exists {
		return nil, storedErr
	}
	return c.sqsClient, nil
}

// DynamoClient returns the DynamoDB client instance.
func (c *Container) DynamoClient() (*dynamodb.Client, error) {
	c.dynamoClientInit.Do(func() {
		awsCfg, err := c.loadAWSConfig()
		if err != nil {
			c.initErrors["dynamoClient"] = err
			return
		}
		c.dynamoClient = dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if c.config.AWSEndpointURL != "" {
				o.BaseEndpoint = aws.String(c.config.AWSEndpointURL)
			}
		})
	})
	if storedErr, exists := c.initErrors["dynamoClient"]; exists {
		return nil, storedErr
	}
	return c.dynamoClient, nil
}

// UserRepository returns the user repository instance.
func (c *Container) UserRepository() (signupUsecase.UserRepository, error) {
	c.userRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["userRepo"] = fmt.Errorf("failed to get database for user repository: %w", err)
			return
		}

		// Select the appropriate repository based on the database driver
		switch c.config.DBDriver {
		case "mysql":
			c.userRepo = signupRepository.NewMySQLUserRepository(db)
		case "postgres":
			c.userRepo = signupRepository.NewPostgreSQLUserRepository(db)
		default:
			c.initErrors["userRepo"] = fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
		}
	})
	if storedErr, exists := c.initErrors["userRepo"]; exists {
		return nil, storedErr
	}
	return c.userRepo, nil
}

// RestaurantRepository returns the restaurant repository instance.
func (c *Container) RestaurantRepository() (restaurantUsecase.RestaurantRepository, error) {
	c.restaurantRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["restaurantRepo"] = fmt.Errorf("failed to get database for restaurant repository: %w", err)
			return
		}

		switch c.config.DBDriver {
		case "mysql":
			c.restaurantRepo = restaurantRepository.NewMySQLRestaurantRepository(db)
		case "postgres":
			c.restaurantRepo = restaurantRepository.NewPostgreSQLRestaurantRepository(db)
		default:
			c.initErrors["restaurantRepo"] = fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
		}
	})
	if storedErr, exists := c.initErrors["restaurantRepo"]; exists {
		return nil, storedErr
	}
	return c.restaurantRepo, nil
}

// DeadLetterRepository returns the dead-letter repository instance.
func (c *Container) DeadLetterRepository() (deadletterUsecase.DeadLetterRepository, error) {
	c.deadLetterRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["deadLetterRepo"] = fmt.Errorf("failed to get database for dead letter repository: %w", err)
			return
		}

		switch c.config.DBDriver {
		case "mysql":
			c.deadLetterRepo = deadletterRepository.NewMySQLDeadLetterRepository(db)
		case "postgres":
			c.deadLetterRepo = deadletterRepository.NewPostgreSQLDeadLetterRepository(db)
		default:
			c.initErrors["deadLetterRepo"] = fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
		}
	})
	if storedErr, exists := c.initErrors["deadLetterRepo"]; exists {
		return nil, storedErr
	}
	return c.deadLetterRepo, nil
}

// SignupUseCase returns the signup handler instance.
func (c *Container) SignupUseCase() (*signupUsecase.SignupUseCase, error) {
	c.signupUseCaseInit.Do(func() {
		userRepo, err := c.UserRepository()
		if err != nil {
			c.initErrors["signupUseCase"] = fmt.Errorf("failed to get user repository for signup use case: %w", err)
			return
		}
		c.signupUseCase = signupUsecase.NewSignupUseCase(userRepo, c.Notifier(), c.Logger())
	})
	if storedErr, exists := c.initErrors["signupUseCase"]; exists {
		return nil, storedErr
	}
	return c.signupUseCase, nil
}

// RestaurantUseCase returns the restaurant handler instance.
func (c *Container) RestaurantUseCase() (*restaurantUsecase.RestaurantUseCase, error) {
	c.restaurantUseCaseInit.Do(func() {
		restaurantRepo, err := c.RestaurantRepository()
		if err != nil {
			c.initErrors["restaurantUseCase"] = fmt.Errorf(
				"failed to get restaurant repository for restaurant use case: %w", err,
			)
			return
		}
		c.restaurantUseCase = restaurantUsecase.NewRestaurantUseCase(restaurantRepo, c.Notifier(), c.Logger())
	})
	if storedErr, exists := c.initErrors["restaurantUseCase"]; exists {
		return nil, storedErr
	}
	return c.restaurantUseCase, nil
}

// DatastoreUseCase returns the generic write handler instance.
func (c *Container) DatastoreUseCase() (*datastoreUsecase.DatastoreUseCase, error) {
	c.datastoreUseCaseInit.Do(func() {
		client, err := c.DynamoClient()
		if err != nil {
			c.initErrors["datastoreUseCase"] = fmt.Errorf("failed to get dynamo client for datastore use case: %w", err)
			return
		}
		c.datastoreUseCase = datastoreUsecase.NewDatastoreUseCase(client, c.Logger())
	})
	if storedErr, exists := c.initErrors["datastoreUseCase"]; exists {
		return nil, storedErr
	}
	return c.datastoreUseCase, nil
}

// DeadLetterUseCase returns the dead-letter handler instance.
func (c *Container) DeadLetterUseCase() (*deadletterUsecase.DeadLetterUseCase, error) {
	c.deadLetterUseCaseInit.Do(func() {
		deadLetterRepo, err := c.DeadLetterRepository()
		if err != nil {
			c.initErrors["deadLetterUseCase"] = fmt.Errorf(
				"failed to get dead letter repository for dead letter use case: %w", err,
			)
			return
		}
		c.deadLetterUseCase = deadletterUsecase.NewDeadLetterUseCase(deadLetterRepo, c.Notifier(), c.Logger())
	})
	if storedErr, exists := c.initErrors["deadLetterUseCase"]; exists {
		return nil, storedErr
	}
	return c.deadLetterUseCase, nil
}

// SignupPoller returns the poller consuming the signup queue.
func (c *Container) SignupPoller() (*queue.Poller, error) {
	c.signupPollerInit.Do(func() {
		poller, err := c.buildPoller("signup", c.config.SignupQueueURL, dispatch.PolicyChunked,
			func() (dispatch.Handler, error) { return c.SignupUseCase() })
		if err != nil {
			c.initErrors["signupPoller"] = err
			return
		}
		c.signupPoller = poller
	})
	if storedErr, exists := c.initErrors["signupPoller"]; exists {
		return nil, storedErr
	}
	return c.signupPoller, nil
}

// RestaurantPoller returns the poller consuming the restaurant queue.
func (c *Container) RestaurantPoller() (*queue.Poller, error) {
	c.restaurantPollerInit.Do(func() {
		poller, err := c.buildPoller("restaurant", c.config.RestaurantQueueURL, dispatch.PolicyChunked,
			func() (dispatch.Handler, error) { return c.RestaurantUseCase() })
		if err != nil {
			c.initErrors["restaurantPoller"] = err
			return
		}
		c.restaurantPoller = poller
	})
	if storedErr, exists := c.initErrors["restaurantPoller"]; exists {
		return nil, storedErr
	}
	return c.restaurantPoller, nil
}

// DatastorePoller returns the poller consuming the generic write queue.
func (c *Container) DatastorePoller() (*queue.Poller, error) {
	c.datastorePollerInit.Do(func() {
		poller, err := c.buildPoller("datastore", c.config.DatastoreQueueURL, dispatch.PolicyChunked,
			func() (dispatch.Handler, error) { return c.DatastoreUseCase() })
		if err != nil {
			c.initErrors["datastorePoller"] = err
			return
		}
		c.datastorePoller = poller
	})
	if storedErr, exists := c.initErrors["datastorePoller"]; exists {
		return nil, storedErr
	}
	return c.datastorePoller, nil
}

// DeadLetterPoller returns the poller consuming the dead-letter queue. It uses
// the full-concurrency policy: dead-letter batches are small and the handler
// does not contend on entity rows.
func (c *Container) DeadLetterPoller() (*queue.Poller, error) {
	c.deadLetterPollerInit.Do(func() {
		poller, err := c.buildPoller("deadletter", c.config.DeadLetterQueueURL, dispatch.PolicyFullConcurrency,
			func() (dispatch.Handler, error) { return c.DeadLetterUseCase() })
		if err != nil {
			c.initErrors["deadLetterPoller"] = err
			return
		}
		c.deadLetterPoller = poller
	})
	if storedErr, exists := c.initErrors["deadLetterPoller"]; exists {
		return nil, storedErr
	}
	return c.deadLetterPoller, nil
}

// HTTPServer returns the operational HTTP server instance.
func (c *Container) HTTPServer() (*http.Server, error) {
	c.httpServerInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["httpServer"] = fmt.Errorf("failed to get database for http server: %w", err)
			return
		}
		c.httpServer = http.NewServer(db, c.config.ServerHost, c.config.ServerPort, c.Logger())
	})
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics HTTP server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	c.metricsServerInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["metricsServer"] = err
			return
		}
		if provider == nil {
			return
		}
		c.metricsServer = http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider)
	})
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	// Shutdown HTTP servers if initialized
	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}
	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	// Flush the notifier if initialized
	if c.notifier != nil {
		if err := c.notifier.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("notifier close: %w", err))
		}
	}

	// Shutdown metrics provider if initialized
	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	// Close database connection if initialized
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	// Return combined errors if any occurred
	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// loadAWSConfig loads the shared AWS client configuration.
func (c *Container) loadAWSConfig() (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(
		context.Background(),
		awsconfig.WithRegion(c.config.AWSRegion),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load aws config: %w", err)
	}
	return awsCfg, nil
}

// buildPoller assembles the consumption pipeline for one queue: an SQS
// consumer, a dispatcher gated by the shared circuit breaker, and the poll loop.
func (c *Container) buildPoller(
	name string,
	queueURL string,
	policy dispatch.Policy,
	handlerFn func() (dispatch.Handler, error),
) (*queue.Poller, error) {
	if queueURL == "" {
		return nil, fmt.Errorf("queue url for %s poller is not configured", name)
	}

	handler, err := handlerFn()
	if err != nil {
		return nil, fmt.Errorf("failed to build handler for %s poller: %w", name, err)
	}

	client, err := c.SQSClient()
	if err != nil {
		return nil, fmt.Errorf("failed to get sqs client for %s poller: %w", name, err)
	}

	consumerMetrics, err := c.ConsumerMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get consumer metrics for %s poller: %w", name, err)
	}

	logger := c.Logger()
	consumer := queue.NewSQSConsumer(
		client,
		queueURL,
		c.config.AWSRegion,
		int32(c.config.QueueWaitTimeSeconds),
		logger,
	)
	dispatcher := dispatch.NewDispatcher(dispatch.Config{
		Name:      name,
		Policy:    policy,
		ChunkSize: c.config.DispatchChunkSize,
	}, handler, c.Breaker(), consumerMetrics, logger)

	return queue.NewPoller(queue.PollerConfig{
		BatchSize:      int32(c.config.QueueBatchSize),
		PollsPerSecond: c.config.QueuePollsPerSecond,
		PollBurst:      c.config.QueuePollBurst,
		IdleBackoff:    c.config.QueueIdleBackoff,
	}, consumer, dispatcher, logger), nil
}
