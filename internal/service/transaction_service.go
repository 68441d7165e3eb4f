package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/payment-ledger/internal/catalog"
	"github.com/richardliu001/payment-ledger/internal/handler"
	"github.com/richardliu001/payment-ledger/internal/metrics"
	"github.com/richardliu001/payment-ledger/internal/model"
	"github.com/richardliu001/payment-ledger/internal/repo"
	"github.com/richardliu001/payment-ledger/internal/serial"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	hookCreated      = "OnCreated"
	hookStateChanged = "OnStateChanged"

	aggregateTransaction = "PaymentTransaction"
	contentCreated       = "Transaction Created"
)

// ApiCatalog supplies payment api capability metadata.
type ApiCatalog interface {
	GetApiById(ctx context.Context, id uint64) (*model.PaymentApi, error)
}

// TransactionLogger is the fire-and-forget operational log stream.
type TransactionLogger interface {
	LogTransaction(message string)
}

// CreateTransactionRequest carries the inputs of CreateTransaction.
type CreateTransactionRequest struct {
	Type         string
	ApiID        uint64
	Amount       decimal.Decimal
	CurrencyType string
	PayerID      *uint64
	PayeeID      *uint64
	RelatedID    *uint64
	Description  string
	ExtraData    map[string]interface{}
}

// Option customises a TransactionService.
type Option func(*TransactionService)

// WithHandlerTimeout bounds every handler hook call. Zero disables the bound.
func WithHandlerTimeout(d time.Duration) Option {
	return func(s *TransactionService) { s.handlerTimeout = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *TransactionService) { s.now = now }
}

// TransactionService is the payment transaction ledger. It validates, persists,
// audits and advances transactions and notifies the registered handlers.
type TransactionService struct {
	repo           repo.RepositoryInterface
	apis           ApiCatalog
	handlers       *handler.Registry
	serials        serial.Generator
	sink           TransactionLogger
	log            *zap.SugaredLogger
	locks          *keyedMutex
	handlerTimeout time.Duration
	now            func() time.Time
}

// NewTransactionService returns TransactionService.
func NewTransactionService(
	r repo.RepositoryInterface,
	apis ApiCatalog,
	handlers *handler.Registry,
	serials serial.Generator,
	sink TransactionLogger,
	logger *zap.SugaredLogger,
	opts ...Option,
) *TransactionService {
	s := &TransactionService{
		repo:           r,
		apis:           apis,
		handlers:       handlers,
		serials:        serials,
		sink:           sink,
		log:            logger,
		locks:          newKeyedMutex(),
		handlerTimeout: 5 * time.Second,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTransaction validates the request, persists a new transaction in the
// Initial state together with its "Transaction Created" record, then notifies
// the handlers of its type. On a handler failure the persisted transaction is
// returned along with a *HandlerError.
func (s *TransactionService) CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*model.PaymentTransaction, error) {
	if len(s.handlers.HandlersFor(req.Type)) == 0 {
		return nil, invalid("type", fmt.Errorf("%w %s", ErrUnknownTransactionType, req.Type))
	}
	if !req.Amount.IsPositive() {
		return nil, invalid("amount", ErrInvalidAmount)
	}
	if req.Description == "" {
		return nil, invalid("description", ErrDescriptionRequired)
	}
	api, err := s.apis.GetApiById(ctx, req.ApiID)
	if err != nil {
		if errors.Is(err, catalog.ErrApiNotFound) {
			return nil, invalid("api_id", ErrApiNotFound)
		}
		return nil, fmt.Errorf("load payment api: %w", err)
	}
	if !api.Supports(req.Type) {
		return nil, invalid("api_id", ErrApiUnsupportedType)
	}
	if api.Deleted {
		return nil, invalid("api_id", ErrApiDeleted)
	}
	if err := s.checkUser(ctx, "payer_id", req.PayerID, ErrPayerNotFound); err != nil {
		return nil, err
	}
	if err := s.checkUser(ctx, "payee_id", req.PayeeID, ErrPayeeNotFound); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t := &model.PaymentTransaction{
		Type:         req.Type,
		ApiID:        api.ID,
		Amount:       req.Amount,
		CurrencyType: req.CurrencyType,
		PayerID:      req.PayerID,
		PayeeID:      req.PayeeID,
		RelatedID:    req.RelatedID,
		Description:  req.Description,
		State:        model.StateInitial,
		ExtraData:    datatypes.JSONMap(req.ExtraData),
		CreateTime:   now,
		LastUpdated:  now,
	}
	sn, err := s.serials.GenerateFor(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("generate serial: %w", err)
	}
	t.Serial = sn

	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := s.repo.SerialExists(ctx, tx, sn)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: %s", ErrSerialCollision, sn)
		}
		if err := s.repo.CreateTransaction(ctx, tx, t); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %s", ErrSerialCollision, sn)
			}
			return err
		}
		if err := s.appendRecord(ctx, tx, t.ID, nil, contentCreated, nil); err != nil {
			return err
		}
		return s.writeEvent(ctx, tx, t, model.EventTransactionCreated, "")
	})
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	metrics.TransactionsCreated.WithLabelValues(t.Type).Inc()
	s.log.Infow("payment transaction created", "id", t.ID, "serial", t.Serial, "type", t.Type, "amount", t.Amount.String())

	err = s.notify(ctx, *t, hookCreated, func(hctx context.Context, h handler.Handler, snap *model.PaymentTransaction) error {
		return h.OnCreated(hctx, snap)
	})
	return t, err
}

// SetLastError stores message as the transaction's last error, writes it to the
// transaction log stream and appends it to the detail records. State is untouched.
func (s *TransactionService) SetLastError(ctx context.Context, id uint64, message string) error {
	var logged string
	err := s.withLock(id, func() error {
		return s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
			t, err := s.loadForUpdate(ctx, tx, id)
			if err != nil {
				return err
			}
			logged = fmt.Sprintf("Payment transaction %s error: %s", t.Serial, message)
			if err := s.update(ctx, tx, t, map[string]interface{}{"last_error": message}); err != nil {
				return err
			}
			return s.appendRecord(ctx, tx, id, nil, logged, nil)
		})
	})
	if err != nil {
		return err
	}
	s.logTransaction(logged)
	return nil
}

// Process moves the transaction to state. The read-check-write runs under the
// per-id lock and the row lock, so of two racing callbacks exactly one wins and
// the other gets a *StateTransitionError without any write.
func (s *TransactionService) Process(ctx context.Context, id uint64, externalSerial string, state model.TransactionState) error {
	if !state.Valid() {
		return invalid("state", fmt.Errorf("%w %q", ErrUnknownState, state))
	}

	var (
		snapshot model.PaymentTransaction
		from     model.TransactionState
	)
	err := s.withLock(id, func() error {
		return s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
			t, err := s.loadForUpdate(ctx, tx, id)
			if err != nil {
				return err
			}
			if !t.State.CanTransitionTo(state) {
				return &StateTransitionError{TransactionID: id, From: t.State, To: state}
			}
			from = t.State
			now := s.now().UTC()
			if err := s.update(ctx, tx, t, map[string]interface{}{"state": state, "last_updated": now}); err != nil {
				return err
			}
			content := fmt.Sprintf("Transaction state changed from %s to %s, external serial: %s", from, state, externalSerial)
			extra := map[string]interface{}{
				"from":            string(from),
				"to":              string(state),
				"external_serial": externalSerial,
			}
			if err := s.appendRecord(ctx, tx, id, nil, content, extra); err != nil {
				return err
			}
			t.State = state
			t.LastUpdated = now
			t.Version++
			if err := s.writeEvent(ctx, tx, t, model.EventTransactionStateChanged, from); err != nil {
				return err
			}
			snapshot = *t
			return nil
		})
	})
	if err != nil {
		var ste *StateTransitionError
		if errors.As(err, &ste) {
			metrics.RejectedTransitions.Inc()
			s.log.Infow("rejected state transition",
				"id", id, "from", ste.From, "to", ste.To, "external_serial", externalSerial)
		}
		return err
	}

	metrics.StateTransitions.WithLabelValues(string(from), string(state)).Inc()
	s.log.Infow("payment transaction state changed",
		"id", id, "serial", snapshot.Serial, "from", from, "to", state, "external_serial", externalSerial)

	return s.notify(ctx, snapshot, hookStateChanged, func(hctx context.Context, h handler.Handler, snap *model.PaymentTransaction) error {
		return h.OnStateChanged(hctx, snap, from, state)
	})
}

// AddDetailRecord appends a free-text record to a transaction. creatorID is nil
// for system generated entries.
func (s *TransactionService) AddDetailRecord(ctx context.Context, id uint64, creatorID *uint64, content string, extraData map[string]interface{}) (*model.DetailRecord, error) {
	if content == "" {
		return nil, invalid("content", ErrContentRequired)
	}
	if _, err := s.GetTransaction(ctx, id); err != nil {
		return nil, err
	}
	rec := newDetailRecord(id, creatorID, content, extraData, s.now().UTC())
	if err := s.repo.AppendRecord(ctx, s.repo.DB(ctx), rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// GetDetailRecords returns the audit trail of a transaction in creation order.
func (s *TransactionService) GetDetailRecords(ctx context.Context, id uint64) ([]model.DetailRecord, error) {
	if _, err := s.GetTransaction(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.FindRecords(ctx, s.repo.DB(ctx), model.RecordTypeTransactionDetail, id)
}

// GetTransaction loads one transaction.
func (s *TransactionService) GetTransaction(ctx context.Context, id uint64) (*model.PaymentTransaction, error) {
	t, err := s.repo.GetTransaction(ctx, s.repo.DB(ctx), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrTransactionNotFound, id)
		}
		return nil, err
	}
	return t, nil
}

// ListTransactions returns the newest transactions matching f.
func (s *TransactionService) ListTransactions(ctx context.Context, f repo.TransactionFilter) ([]model.PaymentTransaction, error) {
	return s.repo.ListTransactions(ctx, s.repo.DB(ctx), f)
}

func (s *TransactionService) withLock(id uint64, fn func() error) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	return fn()
}

func (s *TransactionService) loadForUpdate(ctx context.Context, tx *gorm.DB, id uint64) (*model.PaymentTransaction, error) {
	t, err := s.repo.GetTransactionForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrTransactionNotFound, id)
		}
		return nil, err
	}
	return t, nil
}

func (s *TransactionService) update(ctx context.Context, tx *gorm.DB, t *model.PaymentTransaction, fields map[string]interface{}) error {
	err := s.repo.UpdateTransaction(ctx, tx, t.ID, fields, t.Version)
	if errors.Is(err, repo.ErrOptimisticLock) {
		return fmt.Errorf("%w: transaction %d", ErrConcurrentModification, t.ID)
	}
	return err
}

func (s *TransactionService) checkUser(ctx context.Context, field string, id *uint64, reason error) error {
	if id == nil {
		return nil
	}
	ok, err := s.repo.UserExists(ctx, s.repo.DB(ctx), *id)
	if err != nil {
		return fmt.Errorf("check %s: %w", field, err)
	}
	if !ok {
		return invalid(field, reason)
	}
	return nil
}

func newDetailRecord(subjectID uint64, creatorID *uint64, content string, extra map[string]interface{}, at time.Time) *model.DetailRecord {
	return &model.DetailRecord{
		Type:       model.RecordTypeTransactionDetail,
		SubjectID:  subjectID,
		CreatorID:  creatorID,
		Content:    content,
		ExtraData:  datatypes.JSONMap(extra),
		CreateTime: at,
	}
}

func (s *TransactionService) appendRecord(ctx context.Context, tx *gorm.DB, id uint64, creatorID *uint64, content string, extra map[string]interface{}) error {
	return s.repo.AppendRecord(ctx, tx, newDetailRecord(id, creatorID, content, extra, s.now().UTC()))
}

type transactionEvent struct {
	TransactionID uint64                 `json:"transaction_id"`
	Serial        string                 `json:"serial"`
	Type          string                 `json:"type"`
	ApiID         uint64                 `json:"api_id"`
	Amount        decimal.Decimal        `json:"amount"`
	CurrencyType  string                 `json:"currency_type"`
	State         model.TransactionState `json:"state"`
	PreviousState model.TransactionState `json:"previous_state,omitempty"`
	OccurredAt    time.Time              `json:"occurred_at"`
}

func (s *TransactionService) writeEvent(ctx context.Context, tx *gorm.DB, t *model.PaymentTransaction, eventType string, previous model.TransactionState) error {
	payload, err := json.Marshal(transactionEvent{
		TransactionID: t.ID,
		Serial:        t.Serial,
		Type:          t.Type,
		ApiID:         t.ApiID,
		Amount:        t.Amount,
		CurrencyType:  t.CurrencyType,
		State:         t.State,
		PreviousState: previous,
		OccurredAt:    t.LastUpdated,
	})
	if err != nil {
		return err
	}
	return s.repo.CreateOutboxEvent(ctx, tx, &model.OutboxEvent{
		EventID:     uuid.NewString(),
		Aggregate:   aggregateTransaction,
		AggregateID: t.ID,
		EventType:   eventType,
		Payload:     string(payload),
	})
}

// notify calls hook on every handler of the transaction type in registration
// order and stops at the first failure. The failure is recorded as the
// transaction's last error.
func (s *TransactionService) notify(
	ctx context.Context,
	snapshot model.PaymentTransaction,
	hook string,
	call func(context.Context, handler.Handler, *model.PaymentTransaction) error,
) error {
	// committed work must not be cut short by the caller going away
	ctx = context.WithoutCancel(ctx)
	for _, h := range s.handlers.HandlersFor(snapshot.Type) {
		snap := snapshot
		err := s.invoke(ctx, func(hctx context.Context) error { return call(hctx, h, &snap) })
		if err == nil {
			continue
		}
		name := fmt.Sprintf("%T", h)
		metrics.HandlerFailures.WithLabelValues(snapshot.Type, hook).Inc()
		s.log.Warnw("transaction handler failed",
			"serial", snapshot.Serial, "handler", name, "hook", hook, "error", err)
		if rerr := s.SetLastError(ctx, snapshot.ID, fmt.Sprintf("%s %s: %v", name, hook, err)); rerr != nil {
			s.log.Errorw("record handler failure", "serial", snapshot.Serial, "error", rerr)
		}
		return &HandlerError{Handler: name, Hook: hook, Serial: snapshot.Serial, Err: err}
	}
	return nil
}

// invoke runs call under the handler timeout and turns panics into errors.
func (s *TransactionService) invoke(ctx context.Context, call func(context.Context) error) error {
	hctx := ctx
	if s.handlerTimeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, s.handlerTimeout)
		defer cancel()
	}
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- call(hctx)
	}()
	select {
	case err := <-done:
		return err
	case <-hctx.Done():
		select {
		case err := <-done:
			return err
		default:
			return hctx.Err()
		}
	}
}

func (s *TransactionService) logTransaction(message string) {
	if s.sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("transaction log sink panicked", "panic", r)
		}
	}()
	s.sink.LogTransaction(message)
}
