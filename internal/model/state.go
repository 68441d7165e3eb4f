package model

import "fmt"

// TransactionState is the lifecycle state of a PaymentTransaction.
type TransactionState string

const (
	StateInitial    TransactionState = "Initial"
	StateProcessing TransactionState = "Processing"
	StateCompleted  TransactionState = "Completed"
	StateFailed     TransactionState = "Failed"
)

// transitions lists the legal targets per source state. Terminal states have no entry.
var transitions = map[TransactionState][]TransactionState{
	StateInitial:    {StateProcessing, StateCompleted, StateFailed},
	StateProcessing: {StateCompleted, StateFailed},
}

// Valid reports whether s is a known state.
func (s TransactionState) Valid() bool {
	switch s {
	case StateInitial, StateProcessing, StateCompleted, StateFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no transition out of s is legal.
func (s TransactionState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanTransitionTo reports whether s -> next is a legal transition.
// Self transitions are never legal.
func (s TransactionState) CanTransitionTo(next TransactionState) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// ParseTransactionState converts a wire value into a TransactionState.
func ParseTransactionState(v string) (TransactionState, error) {
	s := TransactionState(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown transaction state %q", v)
	}
	return s, nil
}
