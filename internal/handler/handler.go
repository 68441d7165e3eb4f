package handler

import (
	"context"

	"github.com/richardliu001/payment-ledger/internal/model"
)

// Handler reacts to lifecycle events of transactions of one type.
// Handlers are notified after the ledger has committed; they cannot veto a change.
type Handler interface {
	// Type is the transaction type this handler serves.
	Type() string
	OnCreated(ctx context.Context, t *model.PaymentTransaction) error
	OnStateChanged(ctx context.Context, t *model.PaymentTransaction, from, to model.TransactionState) error
}
