package logger

import "go.uber.org/zap"

// TransactionLogger is the operational log stream for payment transaction errors.
type TransactionLogger struct {
	log *zap.SugaredLogger
}

func NewTransactionLogger(base *zap.SugaredLogger) *TransactionLogger {
	return &TransactionLogger{log: base.Named("transaction")}
}

// LogTransaction writes message at error level. It never panics.
func (l *TransactionLogger) LogTransaction(message string) {
	defer func() { _ = recover() }()
	l.log.Error(message)
}
