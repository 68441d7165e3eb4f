package service

import (
	"context"

	"github.com/richardliu001/payment-ledger/internal/metrics"
	"github.com/richardliu001/payment-ledger/internal/repo"
	"go.uber.org/zap"
)

// OutboxRelay forwards committed ledger events from the outbox table to Kafka.
type OutboxRelay struct {
	repo repo.RepositoryInterface
	log  *zap.SugaredLogger
}

func NewOutboxRelay(r repo.RepositoryInterface, logger *zap.SugaredLogger) *OutboxRelay {
	return &OutboxRelay{repo: r, log: logger}
}

// RelayOnce publishes up to limit pending events in id order and returns how many
// were marked processed. A failed publish stops the batch so per-transaction
// order is kept; the event is retried on the next run.
func (o *OutboxRelay) RelayOnce(ctx context.Context, limit int) (int, error) {
	events, err := o.repo.PollOutbox(ctx, limit)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, evt := range events {
		if err := o.repo.PublishEvent(ctx, evt); err != nil {
			o.log.Errorf("publish id=%d: %v", evt.ID, err)
			return sent, err
		}
		if err := o.repo.MarkOutboxProcessed(ctx, evt.ID); err != nil {
			o.log.Errorf("mark processed id=%d: %v", evt.ID, err)
			return sent, err
		}
		metrics.OutboxPublished.Inc()
		o.log.Debugf("event %d sent", evt.ID)
		sent++
	}
	return sent, nil
}
