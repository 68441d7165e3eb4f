package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/richardliu001/payment-ledger/internal/model"
	"github.com/richardliu001/payment-ledger/internal/service"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProcessor struct {
	mu         sync.Mutex
	errors     []string
	processed  []string
	processErr []error
	setErr     error
}

func (p *fakeProcessor) SetLastError(_ context.Context, id uint64, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errors = append(p.errors, fmt.Sprintf("%d:%s", id, message))
	return p.setErr
}

func (p *fakeProcessor) Process(_ context.Context, id uint64, ext string, state model.TransactionState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed = append(p.processed, fmt.Sprintf("%d:%s:%s", id, ext, state))
	if len(p.processErr) > 0 {
		err := p.processErr[0]
		p.processErr = p.processErr[1:]
		return err
	}
	return nil
}

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func message(t *testing.T, offset int64, cb Callback) kafka.Message {
	b, err := json.Marshal(cb)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: b}
}

func TestHandle_AppliesStateAndError(t *testing.T) {
	p := &fakeProcessor{}
	c := NewCallbackConsumer(nil, p, zap.NewNop().Sugar())

	err := c.Handle(context.Background(), message(t, 1, Callback{
		TransactionID: 5, ExternalSerial: "EXT-9", State: "Failed", Error: "card declined",
	}))

	require.NoError(t, err)
	assert.Equal(t, []string{"5:card declined"}, p.errors)
	assert.Equal(t, []string{"5:EXT-9:Failed"}, p.processed)
}

func TestHandle_AcknowledgesDuplicatesAndPoison(t *testing.T) {
	p := &fakeProcessor{processErr: []error{
		&service.StateTransitionError{TransactionID: 5, From: model.StateCompleted, To: model.StateCompleted},
		fmt.Errorf("%w: id 6", service.ErrTransactionNotFound),
		&service.HandlerError{Hook: "OnStateChanged", Err: context.DeadlineExceeded},
	}}
	c := NewCallbackConsumer(nil, p, zap.NewNop().Sugar())
	ctx := context.Background()

	assert.NoError(t, c.Handle(ctx, kafka.Message{Value: []byte("{not json")}))
	assert.NoError(t, c.Handle(ctx, message(t, 2, Callback{State: "Completed"})))
	assert.NoError(t, c.Handle(ctx, message(t, 3, Callback{TransactionID: 5, State: "Completed"})))
	assert.NoError(t, c.Handle(ctx, message(t, 4, Callback{TransactionID: 6, State: "Completed"})))
	assert.NoError(t, c.Handle(ctx, message(t, 5, Callback{TransactionID: 7, State: "Completed"})))
	assert.Len(t, p.processed, 3)
}

func TestHandle_ReturnsTransientFailures(t *testing.T) {
	dbDown := errors.New("connection refused")
	p := &fakeProcessor{processErr: []error{dbDown}}
	c := NewCallbackConsumer(nil, p, zap.NewNop().Sugar())

	err := c.Handle(context.Background(), message(t, 1, Callback{TransactionID: 5, State: "Completed"}))
	assert.ErrorIs(t, err, dbDown)

	p = &fakeProcessor{setErr: dbDown}
	c = NewCallbackConsumer(nil, p, zap.NewNop().Sugar())
	err = c.Handle(context.Background(), message(t, 1, Callback{TransactionID: 5, Error: "timeout", State: "Failed"}))
	assert.ErrorIs(t, err, dbDown)
	assert.Empty(t, p.processed, "state is not applied before the error is stored")
}

func TestRun_CommitsAfterHandling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := &fakeProcessor{processErr: []error{errors.New("deadlock detected")}}
	r := &fakeReader{cancel: cancel, msgs: []kafka.Message{
		message(t, 10, Callback{TransactionID: 1, State: "Completed"}),
		message(t, 11, Callback{TransactionID: 2, Error: "gateway timeout"}),
	}}
	c := NewCallbackConsumer(r, p, zap.NewNop().Sugar())
	c.retryDelay = time.Millisecond

	require.NoError(t, c.Run(ctx))

	assert.Equal(t, []int64{10, 11}, r.committed)
	assert.Equal(t, []string{"1::Completed", "1::Completed"}, p.processed, "transient failure retried")
	assert.Equal(t, []string{"2:gateway timeout"}, p.errors)
}

func TestRun_RetryDoesNotStoreErrorTwice(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := &fakeProcessor{processErr: []error{errors.New("db down")}}
	r := &fakeReader{cancel: cancel, msgs: []kafka.Message{
		message(t, 20, Callback{TransactionID: 3, ExternalSerial: "EXT-3", State: "Failed", Error: "card declined"}),
	}}
	c := NewCallbackConsumer(r, p, zap.NewNop().Sugar())
	c.retryDelay = time.Millisecond

	require.NoError(t, c.Run(ctx))

	assert.Equal(t, []string{"3:card declined"}, p.errors, "gateway error stored once")
	assert.Equal(t, []string{"3:EXT-3:Failed", "3:EXT-3:Failed"}, p.processed)
	assert.Equal(t, []int64{20}, r.committed)
}
