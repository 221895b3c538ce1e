package services

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/Ashutosh-1945/GateKeeper/internal/repository"
	"github.com/Ashutosh-1945/GateKeeper/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const reaperLockKey = "reaper:lock"

// Reaper periodically deletes links whose expiry has passed. Quota-exhausted links
// are left to the access gate since nothing indexes them.
type Reaper struct {
	store    repository.LinkStore
	rdb      *redis.Client
	audit    AuditSink
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
	owner    string
	now      func() time.Time
}

// NewReaper builds a reaper. rdb is optional; with it, only one instance sweeps per interval.
func NewReaper(store repository.LinkStore, rdb *redis.Client, audit AuditSink, logger *slog.Logger, interval, timeout time.Duration) *Reaper {
	if audit == nil {
		audit = discardAudit{}
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	host, _ := os.Hostname()
	return &Reaper{
		store:    store,
		rdb:      rdb,
		audit:    audit,
		logger:   logger,
		interval: interval,
		timeout:  timeout,
		owner:    host + "/" + utils.NewID(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *Reaper) Start(ctx context.Context) {
	r.logger.Info("Reaper starting", "interval", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.tick(ctx)
		case <-ctx.Done():
			r.logger.Info("Reaper stopping")
			return
		}
	}
}

func (r *Reaper) tick(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Reaper tick panicked", "panic", rec)
		}
	}()

	if _, err := r.Sweep(ctx); err != nil {
		r.logger.Error("Reaper tick failed", "error", err)
	}
}

// Sweep runs one pass and returns how many links it removed.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	if !r.acquire(ctx) {
		return 0, nil
	}

	sweepCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	slugs, err := r.store.DeleteExpired(sweepCtx, r.now())
	if err != nil {
		return 0, storeError("delete expired", err)
	}
	if len(slugs) == 0 {
		return 0, nil
	}

	r.logger.Info("Reaper removed expired links", "count", len(slugs))
	r.audit.Record(AuditEvent{
		Action:  ActionReaperSweep,
		Actor:   Actor{ID: "system", Email: "system"},
		Details: map[string]interface{}{"count": len(slugs), "slugs": slugs},
	})
	return len(slugs), nil
}

// acquire takes the sweep lock for one interval. Without Redis, or when Redis
// fails, every instance sweeps; deletes are idempotent.
func (r *Reaper) acquire(ctx context.Context) bool {
	if r.rdb == nil {
		return true
	}
	ok, err := r.rdb.SetNX(ctx, reaperLockKey, r.owner, r.interval*9/10).Result()
	if err != nil {
		r.logger.Warn("Reaper lock unavailable, sweeping anyway", "error", err)
		return true
	}
	return ok
}
