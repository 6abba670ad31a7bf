package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/panjf2000/ants/v2"
	"github.com/savings-wallet-ledger/internal/config"
	"github.com/savings-wallet-ledger/internal/data/mongo"
	"github.com/savings-wallet-ledger/internal/data/postgres"
	"github.com/savings-wallet-ledger/internal/ledger_projector/consumer"
	"github.com/savings-wallet-ledger/internal/ledger_projector/maintenance"
	"github.com/savings-wallet-ledger/internal/ledger_projector/outbox_poller"
	"github.com/savings-wallet-ledger/internal/ledger_projector/projection"
	"github.com/savings-wallet-ledger/internal/logger"
	"github.com/savings-wallet-ledger/internal/platform/messaging/consumers"
	"github.com/savings-wallet-ledger/internal/platform/messaging/producers"
	"github.com/savings-wallet-ledger/internal/platform/metrics"
	"github.com/savings-wallet-ledger/internal/platform/persistence"
	"github.com/savings-wallet-ledger/internal/transaction_processor/components"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("ledger_projector")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Ledger Projector",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	recorder := metrics.NewRecorder("ledger_projector")

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	statementRepo := mongo.NewStatementRepository(log, mongoDB.Database())
	if err := statementRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to prepare statement collection", "error", err)
		os.Exit(1)
	}
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	idempotencyRepo := postgres.NewIdempotencyRepository(log, postgresDB)

	eventProducer, err := producers.NewLedgerEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize ledger event producer", "error", err)
		os.Exit(1)
	}

	// dlqProducer is nil when no DLQ topic is configured; the handler treats that as disabled
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	poolSize := cfg.WorkerPool.Size
	if poolSize <= 0 {
		poolSize = 1
	}
	relayPool, err := ants.NewPool(poolSize)
	if err != nil {
		log.Error("Failed to create relay worker pool", "error", err)
		os.Exit(1)
	}

	eventPublisher := outbox_poller.NewEventPublisher(outboxRepo, eventProducer, log.With("component", "event_publisher"))
	poller := outbox_poller.NewPoller(&cfg.Outbox, outboxRepo, eventPublisher, relayPool, recorder, log.With("component", "outbox_poller"))

	projector := projection.NewStatementProjector(statementRepo, recorder, log.With("component", "projection"))
	eventHandler := consumer.NewLedgerEventHandler(log.With("component", "ledger_event_handler"), projector, dlqProducer, recorder)
	kafkaConsumer := consumers.NewKafkaConsumer(log, &cfg.Kafka)

	tracker := components.CreateIdempotencyTracker(postgresDB.Pool(), idempotencyRepo, log, cfg)
	purger := maintenance.NewIdempotencyPurger(tracker, cfg.Webhook.PurgeInterval, cfg.Webhook.IdempotencyRetention, log.With("component", "idempotency_purger"))

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "status": "healthy"})
	})
	router.GET("/metrics", gin.WrapH(recorder.Handler()))
	metricsServer := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	errChan := make(chan error, 2)
	var wg sync.WaitGroup

	if err := kafkaConsumer.Subscribe(appCtx, eventHandler.HandleMessage); err != nil {
		log.Error("Failed to start Kafka consumer", "error", err)
		os.Exit(1)
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		poller.Start(appCtx)
	}()
	go func() {
		defer wg.Done()
		purger.Start(appCtx)
	}()

	go func() {
		log.Info("Starting metrics server", "port", cfg.Server.Port)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	stopped := make(chan struct{})
	go func() {
		wg.Wait()
		<-kafkaConsumer.Done()
		close(stopped)
	}()

	select {
	case <-stopped:
		log.Info("All workers stopped")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	relayPool.Release()

	if err = metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during metrics server shutdown", "error", err)
	}
	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}
	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing ledger event producer", "error", err)
	}
	if err = dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ Kafka producer", "error", err)
	}

	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serviceErr != nil {
		log.Error("Ledger Projector shutdown with errors", "error", serviceErr)
		os.Exit(1)
	}
	log.Info("Ledger Projector shutdown completed")
}
