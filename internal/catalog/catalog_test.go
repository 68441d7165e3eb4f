package catalog

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/richardliu001/payment-ledger/internal/model"
	"github.com/richardliu001/payment-ledger/internal/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

func TestCatalog_SaveGetDelete(t *testing.T) {
	db := newTestDB(t)
	c := New(repo.NewRepository(db, nil, nil, zap.NewNop().Sugar()), zap.NewNop().Sugar())
	ctx := context.Background()

	api := &model.PaymentApi{Name: "Test Gateway", Type: "mock", SupportTransactionTypes: []string{"Deposit"}}
	require.NoError(t, c.SaveApi(ctx, api))
	require.NotZero(t, api.ID)

	got, err := c.GetApiById(ctx, api.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test Gateway", got.Name)
	assert.True(t, got.Supports("Deposit"))
	assert.False(t, got.Deleted)

	require.NoError(t, c.DeleteApi(ctx, api.ID))
	got, err = c.GetApiById(ctx, api.ID)
	require.NoError(t, err)
	assert.True(t, got.Deleted, "soft deleted apis stay readable")

	apis, err := c.ListApis(ctx)
	require.NoError(t, err)
	assert.Len(t, apis, 1)
}

func TestCatalog_NotFound(t *testing.T) {
	db := newTestDB(t)
	c := New(repo.NewRepository(db, nil, nil, zap.NewNop().Sugar()), zap.NewNop().Sugar())
	ctx := context.Background()

	_, err := c.GetApiById(ctx, 99)
	assert.ErrorIs(t, err, ErrApiNotFound)
	assert.ErrorIs(t, c.DeleteApi(ctx, 99), ErrApiNotFound)
	assert.ErrorIs(t, c.SaveApi(ctx, &model.PaymentApi{ID: 99, Name: "x", SupportTransactionTypes: []string{"Deposit"}}), ErrApiNotFound)
}

func TestCatalog_SaveValidation(t *testing.T) {
	c := New(repo.NewRepository(nil, nil, nil, zap.NewNop().Sugar()), zap.NewNop().Sugar())
	ctx := context.Background()

	assert.ErrorIs(t, c.SaveApi(ctx, &model.PaymentApi{SupportTransactionTypes: []string{"Deposit"}}), ErrApiNameRequired)
	assert.ErrorIs(t, c.SaveApi(ctx, &model.PaymentApi{Name: "x"}), ErrNoSupportedType)
}

func TestCatalog_ServesFromCache(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	// no database: a cache hit must not touch it
	c := New(repo.NewRepository(nil, rdb, nil, zap.NewNop().Sugar()), zap.NewNop().Sugar())

	cached := model.PaymentApi{ID: 5, Name: "cached", SupportTransactionTypes: []string{"Refund"}}
	data, err := json.Marshal(cached)
	require.NoError(t, err)
	mock.ExpectGet("payment_api:5").SetVal(string(data))

	got, err := c.GetApiById(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "cached", got.Name)
	assert.True(t, got.Supports("Refund"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalog_UpdateKeepsDeletedAndCreateTime(t *testing.T) {
	db := newTestDB(t)
	c := New(repo.NewRepository(db, nil, nil, zap.NewNop().Sugar()), zap.NewNop().Sugar())
	ctx := context.Background()

	api := &model.PaymentApi{Name: "Gateway", Type: "card", SupportTransactionTypes: []string{"Deposit"}}
	require.NoError(t, c.SaveApi(ctx, api))
	created, err := c.GetApiById(ctx, api.ID)
	require.NoError(t, err)
	require.NoError(t, c.DeleteApi(ctx, api.ID))

	update := &model.PaymentApi{ID: api.ID, Name: "Gateway renamed", Type: "wallet", SupportTransactionTypes: []string{"Deposit", "Refund"}}
	require.NoError(t, c.SaveApi(ctx, update))
	assert.True(t, update.Deleted, "returned row reflects the stored api")

	got, err := c.GetApiById(ctx, api.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gateway renamed", got.Name)
	assert.Equal(t, "wallet", got.Type)
	assert.True(t, got.Supports("Refund"))
	assert.True(t, got.Deleted, "an edit must not revive a deleted api")
	assert.True(t, created.CreateTime.Equal(got.CreateTime), "create time unchanged")
	assert.False(t, got.CreateTime.IsZero())
}
