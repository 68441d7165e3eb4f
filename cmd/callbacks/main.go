package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/richardliu001/payment-ledger/internal/catalog"
	"github.com/richardliu001/payment-ledger/internal/config"
	"github.com/richardliu001/payment-ledger/internal/handler"
	"github.com/richardliu001/payment-ledger/internal/logger"
	"github.com/richardliu001/payment-ledger/internal/metrics"
	"github.com/richardliu001/payment-ledger/internal/repo"
	"github.com/richardliu001/payment-ledger/internal/serial"
	"github.com/richardliu001/payment-ledger/internal/service"
	kafkatransport "github.com/richardliu001/payment-ledger/internal/transport/kafka"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true, TranslateError: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	// the consumer only advances existing transactions; outbox rows are relayed by the poller
	repository := repo.NewRepository(gdb, rdb, nil, log)
	registry := handler.NewRegistry()
	for _, t := range cfg.Ledger.TransactionTypes {
		registry.Register(handler.NewLoggingHandler(t, log))
	}
	serials := serial.NewRandomGenerator(cfg.Ledger.SerialPrefix, func(ctx context.Context, s string) (bool, error) {
		return repository.SerialExists(ctx, repository.DB(ctx), s)
	})
	metrics.Init()
	svc := service.NewTransactionService(
		repository, catalog.New(repository, log), registry, serials,
		logger.NewTransactionLogger(log), log,
		service.WithHandlerTimeout(cfg.Ledger.HandlerTimeout),
	)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        cfg.Kafka.GroupID,
		Topic:          cfg.Kafka.CallbackTopic,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
	})
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infof("ledger-callbacks consuming %s", cfg.Kafka.CallbackTopic)
	if err := kafkatransport.NewCallbackConsumer(reader, svc, log).Run(ctx); err != nil {
		log.Fatalf("consume callbacks: %v", err)
	}
	log.Info("ledger-callbacks stopped")
}
