package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/richardliu001/payment-ledger/internal/model"
	"github.com/richardliu001/payment-ledger/internal/service"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Callback is a payment gateway notification about one transaction.
type Callback struct {
	TransactionID  uint64 `json:"transaction_id"`
	ExternalSerial string `json:"external_serial"`
	State          string `json:"state,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Processor applies gateway callbacks to the ledger.
type Processor interface {
	SetLastError(ctx context.Context, id uint64, message string) error
	Process(ctx context.Context, id uint64, externalSerial string, state model.TransactionState) error
}

// MessageReader is satisfied by *kafka.Reader.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type CallbackConsumer struct {
	reader     MessageReader
	proc       Processor
	log        *zap.SugaredLogger
	retryDelay time.Duration
}

func NewCallbackConsumer(reader MessageReader, proc Processor, log *zap.SugaredLogger) *CallbackConsumer {
	return &CallbackConsumer{reader: reader, proc: proc, log: log, retryDelay: time.Second}
}

// delivery tracks the steps of one message that already took effect, so a
// retry does not store the gateway error twice.
type delivery struct {
	errorStored bool
}

// Handle applies one message. A nil return means the message may be committed:
// malformed payloads and redelivered callbacks are acknowledged, only transient
// storage failures are returned for retry.
func (c *CallbackConsumer) Handle(ctx context.Context, m kafka.Message) error {
	return c.handle(ctx, m, &delivery{})
}

func (c *CallbackConsumer) handle(ctx context.Context, m kafka.Message, d *delivery) error {
	var cb Callback
	if err := json.Unmarshal(m.Value, &cb); err != nil {
		c.log.Warnw("drop malformed callback", "offset", m.Offset, "error", err)
		return nil
	}
	if cb.TransactionID == 0 {
		c.log.Warnw("drop callback without transaction id", "offset", m.Offset)
		return nil
	}

	if cb.Error != "" && !d.errorStored {
		if err := c.proc.SetLastError(ctx, cb.TransactionID, cb.Error); err != nil {
			if !acknowledge(err) {
				return err
			}
			c.log.Warnw("callback error not recorded", "transaction_id", cb.TransactionID, "error", err)
		}
		d.errorStored = true
	}
	if cb.State == "" {
		return nil
	}

	err := c.proc.Process(ctx, cb.TransactionID, cb.ExternalSerial, model.TransactionState(cb.State))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrInvalidStateTransition):
		// duplicate or out of order delivery
		c.log.Infow("callback ignored", "transaction_id", cb.TransactionID,
			"external_serial", cb.ExternalSerial, "state", cb.State, "reason", err)
		return nil
	case service.IsHandlerFailure(err):
		c.log.Warnw("callback applied, handler failed", "transaction_id", cb.TransactionID, "error", err)
		return nil
	case acknowledge(err):
		c.log.Warnw("drop callback", "transaction_id", cb.TransactionID, "error", err)
		return nil
	default:
		return err
	}
}

func acknowledge(err error) bool {
	return service.IsNotFound(err) || service.IsValidation(err)
}

// Run consumes until ctx is cancelled. A message is committed only after
// Handle accepted it; failures are retried in place, skipping steps that
// already succeeded.
func (c *CallbackConsumer) Run(ctx context.Context) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		d := &delivery{}
		for {
			err := c.handle(ctx, m, d)
			if err == nil {
				break
			}
			c.log.Errorw("handle callback", "offset", m.Offset, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryDelay):
			}
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Errorw("commit callback", "offset", m.Offset, "error", err)
		}
	}
}
