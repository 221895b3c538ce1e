package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/Ashutosh-1945/GateKeeper/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	linkCachePrefix = "link:"
	// Every invalidation bumps the slug's generation; a fill only lands if the
	// generation it started from is still current.
	linkGenerationPrefix = "linkgen:"
	generationTTL        = 24 * time.Hour
)

var errStaleFill = errors.New("link changed during cache fill")

// CachedLinkStore puts a Redis cache-aside layer in front of a LinkStore. Every write
// path drops the cached copy, and Redis failures fall through to the backend. The cached
// click counter may lag; the store's conditional increment stays the authority on quotas.
type CachedLinkStore struct {
	LinkStore
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedLinkStore(backend LinkStore, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedLinkStore {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedLinkStore{
		LinkStore: backend,
		rdb:       rdb,
		ttl:       ttl,
		logger:    logger,
	}
}

func (c *CachedLinkStore) Get(ctx context.Context, slug string) (*models.Link, error) {
	key := linkCachePrefix + slug

	val, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var link models.Link
		if err := json.Unmarshal(val, &link); err == nil {
			return &link, nil
		}
		c.logger.Warn("Discarding undecodable cached link", "slug", slug)
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("Link cache read failed", "slug", slug, "error", err)
	}

	// Read the generation before the backend so a write landing in between is detected.
	gen, genErr := c.rdb.Get(ctx, linkGenerationPrefix+slug).Int64()
	canFill := genErr == nil || errors.Is(genErr, redis.Nil)

	link, err := c.LinkStore.Get(ctx, slug)
	if err != nil {
		return nil, err
	}

	if canFill {
		c.fill(ctx, link, gen)
	}
	return link, nil
}

func (c *CachedLinkStore) fill(ctx context.Context, link *models.Link, gen int64) {
	data, err := json.Marshal(link)
	if err != nil {
		return
	}
	genKey := linkGenerationPrefix + link.Slug

	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, linkCachePrefix+link.Slug, data, c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		c.logger.Debug("Skipping stale link cache fill", "slug", link.Slug)
	default:
		c.logger.Warn("Link cache write failed", "slug", link.Slug, "error", err)
	}
}

func (c *CachedLinkStore) Create(ctx context.Context, link *models.Link) error {
	if err := c.LinkStore.Create(ctx, link); err != nil {
		return err
	}
	c.invalidate(ctx, link.Slug)
	return nil
}

func (c *CachedLinkStore) IncrementClicks(ctx context.Context, slug string) (bool, error) {
	ok, err := c.LinkStore.IncrementClicks(ctx, slug)
	if err == nil && ok {
		c.invalidate(ctx, slug)
	}
	return ok, err
}

func (c *CachedLinkStore) Delete(ctx context.Context, slug string) (bool, error) {
	deleted, err := c.LinkStore.Delete(ctx, slug)
	c.invalidate(ctx, slug)
	return deleted, err
}

func (c *CachedLinkStore) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	slugs, err := c.LinkStore.DeleteExpired(ctx, now)
	c.invalidate(ctx, slugs...)
	return slugs, err
}

func (c *CachedLinkStore) Update(ctx context.Context, link *models.Link) error {
	err := c.LinkStore.Update(ctx, link)
	c.invalidate(ctx, link.Slug)
	return err
}

func (c *CachedLinkStore) Rename(ctx context.Context, oldSlug, newSlug string) (*models.Link, error) {
	link, err := c.LinkStore.Rename(ctx, oldSlug, newSlug)
	c.invalidate(ctx, oldSlug, newSlug)
	return link, err
}

func (c *CachedLinkStore) DeleteByOwner(ctx context.Context, ownerID string) ([]string, error) {
	slugs, err := c.LinkStore.DeleteByOwner(ctx, ownerID)
	c.invalidate(ctx, slugs...)
	return slugs, err
}

func (c *CachedLinkStore) invalidate(ctx context.Context, slugs ...string) {
	if len(slugs) == 0 {
		return
	}
	keys := make([]string, len(slugs))
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, slug := range slugs {
			keys[i] = linkCachePrefix + slug
			pipe.Incr(ctx, linkGenerationPrefix+slug)
			pipe.Expire(ctx, linkGenerationPrefix+slug, generationTTL)
		}
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		c.logger.Warn("Link cache invalidation failed", "count", len(keys), "error", err)
	}
}
