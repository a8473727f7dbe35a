package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/cuongbtq/scan-control/internal/api/handler"
	"github.com/cuongbtq/scan-control/internal/api/router"
	"github.com/cuongbtq/scan-control/internal/config"
	"github.com/cuongbtq/scan-control/internal/controller"
	"github.com/cuongbtq/scan-control/internal/events"
	"github.com/cuongbtq/scan-control/internal/registry"
	"github.com/cuongbtq/scan-control/internal/schedule"
	"github.com/cuongbtq/scan-control/internal/scanner"
	"github.com/cuongbtq/scan-control/internal/storage"
	"github.com/cuongbtq/scan-control/shared/postgresql"
	"github.com/cuongbtq/scan-control/shared/rabbitmq"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the job workers and the schedule dispatcher",
	RunE:  doServe,
}

func doServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := appLogger.Logger
	log.Info("Starting scan service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := initPostgreSQL(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	if cfg.Database.AutoMigrate {
		if err := storage.Migrate(ctx, dbClient.SQLDB()); err != nil {
			return err
		}
		log.Info("Database schema is up to date")
	}

	publisher := events.Publisher(events.Nop{})
	healthChecks := []func(context.Context) error{dbClient.HealthCheck}
	if cfg.RabbitMQ.Enabled {
		rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, log)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()
		amqpPublisher := events.NewAMQPPublisher(rabbitClient, log)
		publisher = amqpPublisher
		healthChecks = append(healthChecks, amqpPublisher.Check)
	}

	store := storage.NewStorage(dbClient.GetDB(), log)
	catalog := initScanners(log)

	ctrl := controller.New(&controller.Config{
		Logger:        appLogger.With("component", "controller").Logger,
		Store:         store,
		Registry:      registry.New(),
		Scanners:      catalog,
		Publisher:     publisher,
		Workers:       cfg.Controller.Workers,
		QueueSize:     cfg.Controller.QueueSize,
		StatusTimeout: cfg.Controller.StatusTimeout,
	})
	if err := ctrl.Start(ctx); err != nil {
		return err
	}

	schedules := schedule.NewService(store, ctrl, publisher, log)

	var dispatcher *schedule.Dispatcher
	if cfg.Scheduler.Enabled {
		dispatcher = schedule.NewDispatcher(&schedule.DispatcherConfig{
			Logger:         appLogger.With("component", "dispatcher").Logger,
			Store:          store,
			Jobs:           ctrl,
			Publisher:      publisher,
			PollInterval:   cfg.Scheduler.PollInterval,
			TriggerBatch:   cfg.Scheduler.TriggerBatch,
			ReconcileBatch: cfg.Scheduler.ReconcileBatch,
		})
		if err := dispatcher.Start(ctx); err != nil {
			_ = ctrl.Stop(context.Background())
			return err
		}
	}

	r := initRouter(cfg.App.Environment, &handler.Dependencies{
		Logger:    log,
		Jobs:      ctrl,
		Store:     store,
		Schedules: schedules,
		Health:    router.CombineChecks(healthChecks...),
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", slog.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-serverErr:
		runErr = fmt.Errorf("http server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", slog.Any("error", err))
	}

	if dispatcher != nil {
		if err := dispatcher.Stop(); err != nil {
			log.Error("Failed to stop dispatcher", slog.Any("error", err))
		}
	}

	ctrlCtx, ctrlCancel := context.WithTimeout(context.Background(), cfg.Controller.ShutdownTimeout)
	defer ctrlCancel()
	if err := ctrl.Stop(ctrlCtx); err != nil {
		log.Error("Failed to stop job controller", slog.Any("error", err))
	}

	log.Info("Scan service stopped", slog.String("db_stats", dbClient.Stats()))
	return runErr
}

// initScanners registers every job kind
func initScanners(log *slog.Logger) *scanner.Catalog {
	pipeline := initPipeline(&cfg.Recon, log)
	return scanner.NewCatalog(
		scanner.NewSubdomain(pipeline, log),
		scanner.NewDD(pipeline),
		scanner.NewAPI(&http.Client{Timeout: cfg.Recon.HTTPTimeout}, cfg.Recon.APIRPS),
	)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ connects to the lifecycle event exchange and declares the
// optional retention queue
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.Queue.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(environment string, deps *handler.Dependencies) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(deps)
}
