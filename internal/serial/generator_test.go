package serial

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.Date(2026, time.October, 16, 8, 30, 0, 0, time.UTC) }

func TestRandomGenerator_Format(t *testing.T) {
	g := NewRandomGenerator("PT", func(context.Context, string) (bool, error) { return false, nil })
	g.now = fixedNow

	s, err := g.GenerateFor(context.Background(), nil)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^PT20261016083000\d{6}$`), s)
}

func TestRandomGenerator_RetriesOnCollision(t *testing.T) {
	calls := 0
	g := NewRandomGenerator("", func(context.Context, string) (bool, error) {
		calls++
		return calls < 3, nil
	})

	s, err := g.GenerateFor(context.Background(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, s)
	assert.Equal(t, 3, calls)
}

func TestRandomGenerator_Exhausted(t *testing.T) {
	g := NewRandomGenerator("", func(context.Context, string) (bool, error) { return true, nil })

	_, err := g.GenerateFor(context.Background(), nil)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestRandomGenerator_ExistsError(t *testing.T) {
	boom := errors.New("db down")
	g := NewRandomGenerator("", func(context.Context, string) (bool, error) { return false, boom })

	_, err := g.GenerateFor(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
}

type fakeSequence struct {
	days []string
	n    int64
	err  error
}

func (f *fakeSequence) NextSerialSequence(_ context.Context, day string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.days = append(f.days, day)
	f.n++
	return f.n, nil
}

func TestCounterGenerator_Sequential(t *testing.T) {
	seq := &fakeSequence{}
	g := NewCounterGenerator("PT", seq)
	g.now = fixedNow

	a, err := g.GenerateFor(context.Background(), nil)
	require.NoError(t, err)
	b, err := g.GenerateFor(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "PT2026101600000001", a)
	assert.Equal(t, "PT2026101600000002", b)
	assert.Equal(t, []string{"20261016", "20261016"}, seq.days)
}

func TestCounterGenerator_SequenceError(t *testing.T) {
	g := NewCounterGenerator("", &fakeSequence{err: errors.New("redis down")})

	_, err := g.GenerateFor(context.Background(), nil)
	assert.Error(t, err)
}
