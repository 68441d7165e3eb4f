package repo

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"
	"github.com/richardliu001/payment-ledger/internal/model"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrOptimisticLock is returned when a versioned update matched no row.
var ErrOptimisticLock = errors.New("optimistic lock conflict")

// ErrCacheDisabled is returned by cache and counter calls when no redis client is configured.
var ErrCacheDisabled = errors.New("redis cache disabled")

// MessageWriter is the part of *kafka.Writer the repository publishes through.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// TransactionFilter narrows ListTransactions. Zero values match everything.
type TransactionFilter struct {
	Type  string
	State model.TransactionState
	Limit int
}

// RepositoryInterface restricts Repo methods so services can be tested against fakes.
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB

	CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.PaymentTransaction) error
	GetTransaction(ctx context.Context, tx *gorm.DB, id uint64) (*model.PaymentTransaction, error)
	GetTransactionForUpdate(ctx context.Context, tx *gorm.DB, id uint64) (*model.PaymentTransaction, error)
	UpdateTransaction(ctx context.Context, tx *gorm.DB, id uint64, fields map[string]interface{}, oldVersion uint64) error
	ListTransactions(ctx context.Context, tx *gorm.DB, f TransactionFilter) ([]model.PaymentTransaction, error)
	SerialExists(ctx context.Context, tx *gorm.DB, serial string) (bool, error)

	GetApi(ctx context.Context, tx *gorm.DB, id uint64) (*model.PaymentApi, error)
	SaveApi(ctx context.Context, tx *gorm.DB, api *model.PaymentApi) error
	ListApis(ctx context.Context, tx *gorm.DB) ([]model.PaymentApi, error)

	UserExists(ctx context.Context, tx *gorm.DB, id uint64) (bool, error)

	AppendRecord(ctx context.Context, tx *gorm.DB, rec *model.DetailRecord) error
	FindRecords(ctx context.Context, tx *gorm.DB, recordType string, subjectID uint64) ([]model.DetailRecord, error)

	CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error

	CacheApi(ctx context.Context, api *model.PaymentApi) error
	GetCachedApi(ctx context.Context, id uint64) (*model.PaymentApi, error)
	InvalidateApi(ctx context.Context, id uint64) error
	NextSerialSequence(ctx context.Context, day string) (int64, error)
}

// Repository implements RepositoryInterface on gorm, redis and kafka.
// rdb and writer may be nil; the matching calls then fail with ErrCacheDisabled
// or an error from PublishEvent.
type Repository struct {
	db     *gorm.DB
	rdb    *redis.Client
	writer MessageWriter
	log    *zap.SugaredLogger
}

// NewRepository constructs repo.
func NewRepository(db *gorm.DB, rdb *redis.Client, w MessageWriter, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, rdb: rdb, writer: w, log: logger}
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// Migrate creates or updates every ledger table.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(model.All()...)
}
