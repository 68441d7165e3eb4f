// Package serial assigns human-facing serial numbers to payment transactions.
//
// Generators only propose serials; the unique index on payment_transaction.serial
// is what finally guarantees that no serial is assigned twice.
package serial

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/richardliu001/payment-ledger/internal/model"
)

// ErrExhausted is returned when no free serial was found within the retry budget.
var ErrExhausted = errors.New("serial generator exhausted retries")

// Generator produces a serial for a transaction that is about to be persisted.
type Generator interface {
	GenerateFor(ctx context.Context, t *model.PaymentTransaction) (string, error)
}

// ExistsFunc reports whether a serial is already taken.
type ExistsFunc func(ctx context.Context, serial string) (bool, error)

// RandomGenerator yields prefix + yyyyMMddHHmmss + six random digits and retries on collision.
type RandomGenerator struct {
	prefix      string
	exists      ExistsFunc
	now         func() time.Time
	maxAttempts int
}

func NewRandomGenerator(prefix string, exists ExistsFunc) *RandomGenerator {
	return &RandomGenerator{prefix: prefix, exists: exists, now: time.Now, maxAttempts: 10}
}

func (g *RandomGenerator) GenerateFor(ctx context.Context, _ *model.PaymentTransaction) (string, error) {
	stamp := g.now().UTC().Format("20060102150405")
	for i := 0; i < g.maxAttempts; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(1000000))
		if err != nil {
			return "", err
		}
		candidate := fmt.Sprintf("%s%s%06d", g.prefix, stamp, n.Int64())
		taken, err := g.exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check serial: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrExhausted
}

// Sequence hands out strictly increasing numbers per UTC day.
type Sequence interface {
	NextSerialSequence(ctx context.Context, day string) (int64, error)
}

// CounterGenerator yields prefix + yyyyMMdd + eight digit daily sequence.
type CounterGenerator struct {
	prefix string
	seq    Sequence
	now    func() time.Time
}

func NewCounterGenerator(prefix string, seq Sequence) *CounterGenerator {
	return &CounterGenerator{prefix: prefix, seq: seq, now: time.Now}
}

func (g *CounterGenerator) GenerateFor(ctx context.Context, _ *model.PaymentTransaction) (string, error) {
	day := g.now().UTC().Format("20060102")
	n, err := g.seq.NextSerialSequence(ctx, day)
	if err != nil {
		return "", fmt.Errorf("next serial sequence: %w", err)
	}
	return fmt.Sprintf("%s%s%08d", g.prefix, day, n), nil
}
