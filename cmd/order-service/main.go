package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	zlog "github.com/rs/zerolog/log"

	"order-pipeline/internal/config"
	"order-pipeline/internal/contracts/event"
	storage "order-pipeline/internal/infrastructure/postgres"
	mq "order-pipeline/internal/infrastructure/rabbitmq"
	"order-pipeline/internal/logger"
	"order-pipeline/internal/order/application"
	orderpg "order-pipeline/internal/order/infrastructure/postgres"
	orderamqp "order-pipeline/internal/order/infrastructure/rabbitmq"
	"order-pipeline/internal/order/transport/rest"
	"order-pipeline/internal/outbox"
)

func main() {
	cfg, err := config.Load("order-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	if cfg.LogLevel != "" {
		_ = os.Setenv("LOG_LEVEL", cfg.LogLevel)
	}
	logger.Init()
	log := zlog.With().Str("service", cfg.ServiceName).Logger()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Postgres ----
	dbPool, err := pgxpool.New(rootCtx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres pool create failed")
	}
	defer dbPool.Close()

	{
		pingCtx, cancel := context.WithTimeout(rootCtx, 5*time.Second)
		defer cancel()

		if err := dbPool.Ping(pingCtx); err != nil {
			log.Fatal().Err(err).Msg("postgres ping failed")
		}
		if err := orderpg.EnsureSchema(pingCtx, dbPool); err != nil {
			log.Fatal().Err(err).Msg("schema create failed")
		}
		log.Info().Msg("postgres ready")
	}

	// ---- RabbitMQ publisher (outbox pump + health) ----
	publisher, err := mq.NewPublisher(cfg.BrokerURL, event.OrderCreated, event.OrderProcessed)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbitmq connect failed")
	}
	defer publisher.Close()

	// ---- Application service ----
	uow := orderpg.NewUnitOfWork(dbPool)
	reader := orderpg.NewReader(dbPool)
	svc := application.NewService(uow, reader, log)

	// ---- Outbox pump ----
	if cfg.OutboxEnabled {
		pump := outbox.NewPump(storage.NewOutboxStore(dbPool), publisher, outbox.Config{
			PollInterval: cfg.OutboxPollInterval,
			BatchSize:    cfg.OutboxBatchSize,
			MaxRetries:   cfg.MaxRetries,
		}, log)
		go pump.Run(rootCtx)
		log.Info().Msg("outbox pump started")
	}

	// ---- order.processed consumer ----
	consumer := mq.NewConsumer(mq.ConsumerConfig{
		BrokerURL:    cfg.BrokerURL,
		RoutingKey:   event.OrderProcessed,
		Prefetch:     cfg.ConsumerPrefetch,
		MaxRetries:   cfg.MaxRetries,
		DrainTimeout: cfg.DrainTimeout,
	}, orderamqp.NewOrderProcessedHandler(svc, log), log)
	if err := consumer.Start(rootCtx); err != nil {
		log.Fatal().Err(err).Msg("consumer start failed")
	}

	// ---- HTTP server ----
	router := rest.NewRouter(rest.RouterDeps{
		Handler: rest.NewHandler(svc),
		Service: cfg.ServiceName,
		DB:      dbPool,
		Broker:  publisher,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server crashed")
	}

	// Graceful shutdown: stop intake first, then drain the consumer.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.DrainTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = consumer.Stop(shutdownCtx)
	log.Info().Msg("shutdown complete")
}
