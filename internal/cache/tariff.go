package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/laundry-billing/internal/domain/tariff"
)

// DefaultTTL is how long a tariff part stays cached.
const DefaultTTL = 5 * time.Minute

const (
	partSettings = "settings"
	partRates    = "rates"
	partCatalog  = "catalog"
)

// TariffRepository is a read-through cache in front of a tariff.Repository.
// Cache failures are logged and the request falls through to next.
type TariffRepository struct {
	next  tariff.Repository
	store Store
	ttl   time.Duration
}

var _ tariff.Repository = (*TariffRepository)(nil)

// NewTariffRepository wraps next. A zero ttl means DefaultTTL.
func NewTariffRepository(next tariff.Repository, store Store, ttl time.Duration) *TariffRepository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if store == nil {
		store = NoopStore{}
	}
	return &TariffRepository{next: next, store: store, ttl: ttl}
}

// Key returns the cache key of one tariff part of a branch.
func Key(branchID, part string) string {
	return fmt.Sprintf("tariff:%s:%s", branchID, part)
}

func (r *TariffRepository) GetSettings(ctx context.Context, branchID string) (*tariff.Settings, error) {
	return readThrough(ctx, r, Key(branchID, partSettings), func() (*tariff.Settings, error) {
		return r.next.GetSettings(ctx, branchID)
	})
}

func (r *TariffRepository) ListSpecialRates(ctx context.Context, branchID string) ([]tariff.SpecialRate, error) {
	return readThrough(ctx, r, Key(branchID, partRates), func() ([]tariff.SpecialRate, error) {
		return r.next.ListSpecialRates(ctx, branchID)
	})
}

func (r *TariffRepository) ListCatalogItems(ctx context.Context, branchID string) ([]tariff.CatalogItem, error) {
	return readThrough(ctx, r, Key(branchID, partCatalog), func() ([]tariff.CatalogItem, error) {
		return r.next.ListCatalogItems(ctx, branchID)
	})
}

// Invalidate drops every cached part of a branch.
func (r *TariffRepository) Invalidate(ctx context.Context, branchID string) error {
	return InvalidateBranch(ctx, r.store, branchID)
}

// InvalidateBranch drops the cached tariff of a branch from store. Writers
// outside the API process (seed, rate sheet import) call it after saving.
func InvalidateBranch(ctx context.Context, store Store, branchID string) error {
	return store.Delete(ctx,
		Key(branchID, partSettings),
		Key(branchID, partRates),
		Key(branchID, partCatalog),
	)
}

func readThrough[T any](ctx context.Context, r *TariffRepository, key string, load func() (T, error)) (T, error) {
	lg := zctx.From(ctx)

	raw, ok, err := r.store.Get(ctx, key)
	switch {
	case err != nil:
		lg.Warn("Tariff cache read failed", zap.String("key", key), zap.Error(err))
	case ok:
		var v T
		uerr := json.Unmarshal(raw, &v)
		if uerr == nil {
			return v, nil
		}
		lg.Warn("Tariff cache entry corrupt", zap.String("key", key), zap.Error(uerr))
	}

	v, err := load()
	if err != nil {
		return v, err
	}

	raw, err = json.Marshal(v)
	if err != nil {
		lg.Warn("Tariff cache encode failed", zap.String("key", key), zap.Error(err))
		return v, nil
	}
	if err := r.store.Set(ctx, key, raw, r.ttl); err != nil {
		lg.Warn("Tariff cache write failed", zap.String("key", key), zap.Error(err))
	}
	return v, nil
}
