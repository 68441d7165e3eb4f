package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/richardliu001/payment-ledger/internal/catalog"
	"github.com/richardliu001/payment-ledger/internal/model"
	"github.com/richardliu001/payment-ledger/internal/repo"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	failAt int
}

func (w *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failAt > 0 && len(w.msgs)+1 == w.failAt {
		return errors.New("broker unavailable")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestOutboxRelay_PublishesInOrder(t *testing.T) {
	svc, h := newTestService(t)
	ctx := context.Background()
	tx := mustCreate(t, svc, h)
	require.NoError(t, svc.Process(ctx, tx.ID, "EXT-1", model.StateCompleted))

	w := &stubWriter{}
	log := zap.NewNop().Sugar()
	relay := NewOutboxRelay(repo.NewRepository(h.db, nil, w, log), log)

	n, err := relay.RelayOnce(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, w.msgs, 2)
	assert.Equal(t, model.EventTransactionCreated, header(w.msgs[0], "event_type"))
	assert.Equal(t, model.EventTransactionStateChanged, header(w.msgs[1], "event_type"))
	assert.Equal(t, string(w.msgs[0].Key), string(w.msgs[1].Key))

	n, err = relay.RelayOnce(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n, "processed events are not sent twice")
}

func TestOutboxRelay_StopsAtFirstFailure(t *testing.T) {
	svc, h := newTestService(t)
	ctx := context.Background()
	mustCreate(t, svc, h)
	mustCreate(t, svc, h)
	mustCreate(t, svc, h)

	w := &stubWriter{failAt: 2}
	log := zap.NewNop().Sugar()
	r := repo.NewRepository(h.db, nil, w, log)
	relay := NewOutboxRelay(r, log)

	n, err := relay.RelayOnce(ctx, 10)
	assert.Error(t, err)
	assert.Equal(t, 1, n)

	pending, err := r.PollOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2, "failed event and its successors stay pending")

	w.failAt = 0
	n, err = relay.RelayOnce(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestOutboxRelay_NoWriterConfigured(t *testing.T) {
	_, h := newTestService(t)
	log := zap.NewNop().Sugar()
	svc := NewTransactionService(h.repo, catalog.New(h.repo, log), h.registry, fixedSerial("S-1"), nil, log)
	mustCreate(t, svc, h)

	relay := NewOutboxRelay(h.repo, log)
	n, err := relay.RelayOnce(context.Background(), 10)
	assert.Error(t, err)
	assert.Zero(t, n)
}
