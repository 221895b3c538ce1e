package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Ashutosh-1945/GateKeeper/internal/models"
	"github.com/Ashutosh-1945/GateKeeper/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var errBoom = errors.New("store offline")

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, repository.AutoMigrate(db))
	return db
}

func setupStore(t *testing.T) *repository.LinkRepository {
	return repository.NewLinkRepository(setupTestDB(t))
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(v int) *int { return &v }

func seedLink(t *testing.T, store repository.LinkStore, slug string, mutate func(*models.Link)) *models.Link {
	t.Helper()
	link := &models.Link{
		Slug:      slug,
		TargetURL: "https://example.com/" + slug,
		OwnerID:   "alice",
		Security:  models.Open(),
	}
	if mutate != nil {
		mutate(link)
	}
	require.NoError(t, store.Create(context.Background(), link))
	return link
}

type recordingAudit struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (a *recordingAudit) Record(e AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Action)
	}
	return out
}

// flakyStore fails the operations named in failing and delegates the rest.
type flakyStore struct {
	repository.LinkStore
	failing map[string]bool
}

func newFlakyStore(backend repository.LinkStore, ops ...string) *flakyStore {
	f := &flakyStore{LinkStore: backend, failing: map[string]bool{}}
	for _, op := range ops {
		f.failing[op] = true
	}
	return f
}

func (f *flakyStore) Get(ctx context.Context, slug string) (*models.Link, error) {
	if f.failing["get"] {
		return nil, errBoom
	}
	return f.LinkStore.Get(ctx, slug)
}

func (f *flakyStore) Create(ctx context.Context, link *models.Link) error {
	if f.failing["create"] {
		return errBoom
	}
	return f.LinkStore.Create(ctx, link)
}

func (f *flakyStore) IncrementClicks(ctx context.Context, slug string) (bool, error) {
	if f.failing["increment"] {
		return false, errBoom
	}
	return f.LinkStore.IncrementClicks(ctx, slug)
}

func (f *flakyStore) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	if f.failing["expired"] {
		return nil, errBoom
	}
	return f.LinkStore.DeleteExpired(ctx, now)
}

func (f *flakyStore) Update(ctx context.Context, link *models.Link) error {
	if f.failing["update"] {
		return errBoom
	}
	return f.LinkStore.Update(ctx, link)
}

func (f *flakyStore) MoveClicks(ctx context.Context, oldSlug, newSlug string) (int64, error) {
	if f.failing["move"] {
		return 0, errBoom
	}
	return f.LinkStore.MoveClicks(ctx, oldSlug, newSlug)
}

type stubVerifier struct {
	identity *Identity
	err      error
}

func (v stubVerifier) Verify(context.Context, string) (*Identity, error) {
	return v.identity, v.err
}
