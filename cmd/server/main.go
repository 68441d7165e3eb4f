package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/richardliu001/payment-ledger/internal/catalog"
	"github.com/richardliu001/payment-ledger/internal/config"
	"github.com/richardliu001/payment-ledger/internal/handler"
	"github.com/richardliu001/payment-ledger/internal/logger"
	"github.com/richardliu001/payment-ledger/internal/metrics"
	"github.com/richardliu001/payment-ledger/internal/repo"
	"github.com/richardliu001/payment-ledger/internal/serial"
	"github.com/richardliu001/payment-ledger/internal/service"
	httptransport "github.com/richardliu001/payment-ledger/internal/transport/http"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// 1. load config
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	// 3. postgres
	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true, TranslateError: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}

	// 4. redis, optional
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("redis ping: %v", err)
		}
	}

	// 5. kafka writer
	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.Hash{},
	}
	defer kw.Close()

	// 6. repo & migrations
	repository := repo.NewRepository(gdb, rdb, kw, log)
	if err := repository.Migrate(context.Background()); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	// 7. ledger core
	registry := handler.NewRegistry()
	for _, t := range cfg.Ledger.TransactionTypes {
		registry.Register(handler.NewLoggingHandler(t, log))
	}

	var serials serial.Generator
	if rdb != nil && cfg.Ledger.SerialCounter {
		serials = serial.NewCounterGenerator(cfg.Ledger.SerialPrefix, repository)
	} else {
		serials = serial.NewRandomGenerator(cfg.Ledger.SerialPrefix, func(ctx context.Context, s string) (bool, error) {
			return repository.SerialExists(ctx, repository.DB(ctx), s)
		})
	}

	apis := catalog.New(repository, log)
	svc := service.NewTransactionService(
		repository, apis, registry, serials,
		logger.NewTransactionLogger(log), log,
		service.WithHandlerTimeout(cfg.Ledger.HandlerTimeout),
	)

	// 8. gin router
	metrics.Init()
	router := httptransport.NewRouter(svc, apis, cfg.RateLimit, log)

	// 9. serve
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Infof("payment-ledger listening on %s", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("listen: %v", err)
	}
}
