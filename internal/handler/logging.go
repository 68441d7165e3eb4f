package handler

import (
	"context"

	"github.com/richardliu001/payment-ledger/internal/model"
	"go.uber.org/zap"
)

// LoggingHandler records lifecycle events of one transaction type in the service log.
// It is the default handler for types listed in the ledger config.
type LoggingHandler struct {
	txType string
	log    *zap.SugaredLogger
}

func NewLoggingHandler(txType string, log *zap.SugaredLogger) *LoggingHandler {
	return &LoggingHandler{txType: txType, log: log}
}

func (h *LoggingHandler) Type() string { return h.txType }

func (h *LoggingHandler) OnCreated(_ context.Context, t *model.PaymentTransaction) error {
	h.log.Infow("transaction created",
		"serial", t.Serial, "type", t.Type, "amount", t.Amount.String(), "currency", t.CurrencyType)
	return nil
}

func (h *LoggingHandler) OnStateChanged(_ context.Context, t *model.PaymentTransaction, from, to model.TransactionState) error {
	h.log.Infow("transaction state changed", "serial", t.Serial, "from", from, "to", to)
	return nil
}
