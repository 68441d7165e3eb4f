package service

import (
	"errors"
	"fmt"

	"github.com/richardliu001/payment-ledger/internal/catalog"
	"github.com/richardliu001/payment-ledger/internal/model"
)

// Validation reasons. Each is returned wrapped in a *ValidationError.
var (
	ErrUnknownTransactionType = errors.New("unknown transaction type")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrDescriptionRequired    = errors.New("description is required")
	ErrApiNotFound            = catalog.ErrApiNotFound
	ErrApiUnsupportedType     = errors.New("api does not support this transaction type")
	ErrApiDeleted             = errors.New("api is deleted")
	ErrPayerNotFound          = errors.New("payer not found")
	ErrPayeeNotFound          = errors.New("payee not found")
	ErrUnknownState           = errors.New("unknown transaction state")
	ErrContentRequired        = errors.New("record content is required")
)

var (
	// ErrTransactionNotFound is returned when a transaction id does not resolve.
	ErrTransactionNotFound = errors.New("payment transaction not found")

	// ErrInvalidStateTransition is returned for any transition the state machine forbids.
	// The ledger is left untouched when it is returned.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrHandlerFailure marks errors raised by transaction handlers after commit.
	ErrHandlerFailure = errors.New("transaction handler failed")

	// ErrSerialCollision means a generated serial was already assigned.
	ErrSerialCollision = errors.New("serial collision")

	// ErrConcurrentModification means the row changed between read and write.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// ValidationError is a client-caused rejection detected before any write.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// StateTransitionError describes a rejected transition.
type StateTransitionError struct {
	TransactionID uint64
	From          model.TransactionState
	To            model.TransactionState
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition for transaction %d: %s -> %s", e.TransactionID, e.From, e.To)
}

func (e *StateTransitionError) Unwrap() error { return ErrInvalidStateTransition }

// HandlerError wraps a failure of one handler hook. The ledger mutation that
// triggered the hook stays committed.
type HandlerError struct {
	Handler string
	Hook    string
	Serial  string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s %s failed for transaction %s: %v", e.Handler, e.Hook, e.Serial, e.Err)
}

func (e *HandlerError) Unwrap() []error { return []error{ErrHandlerFailure, e.Err} }

// IsValidation reports whether err was caused by invalid client input.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports whether the operation target does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTransactionNotFound) || errors.Is(err, catalog.ErrApiNotFound)
}

// IsHandlerFailure reports whether err came from a handler notification.
func IsHandlerFailure(err error) bool {
	return errors.Is(err, ErrHandlerFailure)
}
