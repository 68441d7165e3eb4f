// Package catalog serves payment api capability metadata to the ledger.
package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/richardliu001/payment-ledger/internal/model"
	"github.com/richardliu001/payment-ledger/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrApiNotFound     = errors.New("payment api not found")
	ErrApiNameRequired = errors.New("payment api name is required")
	ErrNoSupportedType = errors.New("payment api must support at least one transaction type")
)

// Catalog reads apis through the redis cache and falls back to the database.
// Writes go to the database and then drop the cached copy.
type Catalog struct {
	repo repo.RepositoryInterface
	log  *zap.SugaredLogger
	now  func() time.Time
}

func New(r repo.RepositoryInterface, log *zap.SugaredLogger) *Catalog {
	return &Catalog{repo: r, log: log, now: time.Now}
}

// GetApiById returns the api, deleted or not. Unknown ids yield ErrApiNotFound.
func (c *Catalog) GetApiById(ctx context.Context, id uint64) (*model.PaymentApi, error) {
	if api, err := c.repo.GetCachedApi(ctx, id); err == nil {
		return api, nil
	} else if !errors.Is(err, redis.Nil) && !errors.Is(err, repo.ErrCacheDisabled) {
		c.log.Warnf("read api cache id=%d: %v", id, err)
	}

	api, err := c.repo.GetApi(ctx, c.repo.DB(ctx), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApiNotFound
		}
		return nil, err
	}
	if err := c.repo.CacheApi(ctx, api); err != nil && !errors.Is(err, repo.ErrCacheDisabled) {
		c.log.Warnf("write api cache id=%d: %v", id, err)
	}
	return api, nil
}

// SaveApi creates the api when ID is zero. Otherwise only Name, Type and
// SupportTransactionTypes of the stored api change; Deleted and CreateTime are
// kept. On return api holds the stored row.
func (c *Catalog) SaveApi(ctx context.Context, api *model.PaymentApi) error {
	if strings.TrimSpace(api.Name) == "" {
		return ErrApiNameRequired
	}
	if len(api.SupportTransactionTypes) == 0 {
		return ErrNoSupportedType
	}
	now := c.now().UTC()
	row := api
	if api.ID == 0 {
		api.CreateTime = now
		api.Deleted = false
	} else {
		stored, err := c.repo.GetApi(ctx, c.repo.DB(ctx), api.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrApiNotFound
			}
			return err
		}
		stored.Name = api.Name
		stored.Type = api.Type
		stored.SupportTransactionTypes = api.SupportTransactionTypes
		row = stored
	}
	row.LastUpdated = now
	if err := c.repo.SaveApi(ctx, c.repo.DB(ctx), row); err != nil {
		return err
	}
	*api = *row
	c.invalidate(ctx, api.ID)
	return nil
}

// DeleteApi marks the api deleted. Existing transactions keep referencing it.
func (c *Catalog) DeleteApi(ctx context.Context, id uint64) error {
	api, err := c.repo.GetApi(ctx, c.repo.DB(ctx), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrApiNotFound
		}
		return err
	}
	api.Deleted = true
	api.LastUpdated = c.now().UTC()
	if err := c.repo.SaveApi(ctx, c.repo.DB(ctx), api); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

func (c *Catalog) ListApis(ctx context.Context) ([]model.PaymentApi, error) {
	return c.repo.ListApis(ctx, c.repo.DB(ctx))
}

func (c *Catalog) invalidate(ctx context.Context, id uint64) {
	if err := c.repo.InvalidateApi(ctx, id); err != nil && !errors.Is(err, repo.ErrCacheDisabled) {
		c.log.Warnf("invalidate api cache id=%d: %v", id, err)
	}
}
