package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/richardliu001/payment-ledger/internal/config"
	"github.com/richardliu001/payment-ledger/internal/logger"
	"github.com/richardliu001/payment-ledger/internal/metrics"
	"github.com/richardliu001/payment-ledger/internal/repo"
	"github.com/richardliu001/payment-ledger/internal/service"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/segmentio/kafka-go"
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

	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}

	// events of one transaction share a key, Hash keeps them on one partition
	kw := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	defer kw.Close()

	metrics.Init()
	relay := service.NewOutboxRelay(repo.NewRepository(gdb, nil, kw, log), log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(cfg.Ledger.PollInterval)
	defer ticker.Stop()

	log.Info("ledger-poller started")
	for {
		select {
		case <-ctx.Done():
			log.Info("ledger-poller stopped")
			return
		case <-ticker.C:
			n, err := relay.RelayOnce(ctx, cfg.Ledger.OutboxBatch)
			if err != nil {
				log.Errorf("relay outbox: %v", err)
				continue
			}
			if n > 0 {
				log.Infof("relayed %d events", n)
			}
		}
	}
}
