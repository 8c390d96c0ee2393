package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"bankfees/internal/core"
	applog "bankfees/internal/log"
	"bankfees/internal/metrics"
	"bankfees/internal/source"
	"bankfees/internal/wire"
)

const (
	layerLRU   = "lru"
	layerRedis = "redis"

	listKey       = "banks"
	bankKeyPrefix = "bank:"

	defaultFetchTimeout = 30 * time.Second
)

// CachedSource decorates a Source. Reads go LRU, then Redis when configured,
// then upstream; concurrent misses for one key share a single upstream call.
// Failures and not-found answers are never cached.
type CachedSource struct {
	next    source.Source
	lists   *LRUCache[[]core.Bank]
	banks   *LRUCache[core.Bank]
	redis   *RedisLayer
	group   singleflight.Group
	// fetchTimeout bounds a shared upstream call, which outlives its callers.
	fetchTimeout time.Duration
	logger       *applog.Logger
	metrics      *metrics.Metrics
}

var _ source.Source = (*CachedSource)(nil)

type Options struct {
	TTL  time.Duration
	Size int
	// Redis is optional.
	Redis *RedisLayer
	// FetchTimeout bounds one shared upstream fetch; 0 means 30s.
	FetchTimeout time.Duration
	Logger       *applog.Logger
	Metrics      *metrics.Metrics
}

func NewCachedSource(next source.Source, opts Options) *CachedSource {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.Size <= 0 {
		opts.Size = 256
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &CachedSource{
		next:    next,
		lists:   NewLRUCache[[]core.Bank](1, opts.TTL),
		banks:   NewLRUCache[core.Bank](opts.Size, opts.TTL),
		redis:        opts.Redis,
		fetchTimeout: opts.FetchTimeout,
		logger:       logger.WithComponent(applog.ComponentCache),
		metrics:      opts.Metrics,
	}
}

// Cleaners exposes the in-process caches for a Manager.
func (c *CachedSource) Cleaners() []Cleaner {
	return []Cleaner{c.lists, c.banks}
}

func (c *CachedSource) ListBanks(ctx context.Context) ([]core.Bank, error) {
	if banks, ok := c.lists.Get(listKey); ok {
		c.metrics.RecordCache(layerLRU, true)
		return copyBanks(banks), nil
	}
	c.metrics.RecordCache(layerLRU, false)

	v, err := c.shared(ctx, listKey, func(ctx context.Context) (interface{}, error) {
		if banks, ok := c.redisList(ctx); ok {
			c.lists.Set(listKey, banks)
			return banks, nil
		}
		banks, err := c.next.ListBanks(ctx)
		if err != nil {
			return nil, err
		}
		c.lists.Set(listKey, banks)
		c.storeList(ctx, banks)
		return banks, nil
	})
	if err != nil {
		return nil, err
	}
	return copyBanks(v.([]core.Bank)), nil
}

func (c *CachedSource) GetBank(ctx context.Context, id string) (core.Bank, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Bank{}, core.ErrBankNotFound
	}
	if b, ok := c.banks.Get(id); ok {
		c.metrics.RecordCache(layerLRU, true)
		return b, nil
	}
	// A cached list already answers the lookup.
	if banks, ok := c.lists.Get(listKey); ok {
		for _, b := range banks {
			if b.ID == id {
				c.metrics.RecordCache(layerLRU, true)
				c.banks.Set(id, b)
				return b, nil
			}
		}
	}
	c.metrics.RecordCache(layerLRU, false)

	v, err := c.shared(ctx, bankKeyPrefix+id, func(ctx context.Context) (interface{}, error) {
		if b, ok := c.redisBank(ctx, id); ok {
			c.banks.Set(id, b)
			return b, nil
		}
		b, err := c.next.GetBank(ctx, id)
		if err != nil {
			return nil, err
		}
		c.banks.Set(id, b)
		c.storeBank(ctx, b)
		return b, nil
	})
	if err != nil {
		return core.Bank{}, err
	}
	return v.(core.Bank), nil
}

// shared runs fn once for all concurrent callers of key. fn is detached from
// the caller that started it and bounded by fetchTimeout; each caller stops
// waiting when its own ctx is done.
func (c *CachedSource) shared(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	ch := c.group.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		return fn(fetchCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// Invalidate clears the in-process caches and, when configured, the shared
// Redis keys. The LRU is cleared even if Redis fails.
func (c *CachedSource) Invalidate(ctx context.Context) error {
	c.lists.Clear()
	c.banks.Clear()
	if c.redis == nil {
		return nil
	}
	if err := c.redis.Flush(ctx); err != nil {
		c.logger.Warn("Redis invalidation failed", applog.FieldError, err)
		return err
	}
	return nil
}

func (c *CachedSource) redisList(ctx context.Context) ([]core.Bank, bool) {
	if c.redis == nil {
		return nil, false
	}
	raw, err := c.redis.Get(ctx, listKey)
	if err != nil {
		c.redisMiss(err)
		return nil, false
	}
	banks, err := wire.DecodeBanks(raw)
	if err != nil {
		c.redisMiss(err)
		return nil, false
	}
	c.metrics.RecordCache(layerRedis, true)
	return banks, true
}

func (c *CachedSource) redisBank(ctx context.Context, id string) (core.Bank, bool) {
	if c.redis == nil {
		return core.Bank{}, false
	}
	raw, err := c.redis.Get(ctx, bankKeyPrefix+id)
	if err != nil {
		c.redisMiss(err)
		return core.Bank{}, false
	}
	b, err := wire.DecodeBank(raw)
	if err != nil || b.ID != id {
		c.redisMiss(err)
		return core.Bank{}, false
	}
	c.metrics.RecordCache(layerRedis, true)
	return b, true
}

func (c *CachedSource) redisMiss(err error) {
	c.metrics.RecordCache(layerRedis, false)
	if err != nil && !errors.Is(err, ErrMiss) {
		c.logger.Warn("Redis read failed, falling back to upstream", applog.FieldError, err)
	}
}

func (c *CachedSource) storeList(ctx context.Context, banks []core.Bank) {
	if c.redis == nil {
		return
	}
	raw, err := wire.EncodeBanks("", banks)
	if err == nil {
		err = c.redis.Set(ctx, listKey, raw)
	}
	if err != nil {
		c.logger.Warn("Redis write failed", applog.FieldError, err)
	}
}

func (c *CachedSource) storeBank(ctx context.Context, b core.Bank) {
	if c.redis == nil {
		return
	}
	raw, err := wire.EncodeBank("", b)
	if err == nil {
		err = c.redis.Set(ctx, bankKeyPrefix+b.ID, raw)
	}
	if err != nil {
		c.logger.Warn("Redis write failed", applog.FieldError, err)
	}
}

func copyBanks(in []core.Bank) []core.Bank {
	out := make([]core.Bank, len(in))
	copy(out, in)
	return out
}
