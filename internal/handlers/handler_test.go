package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Ashutosh-1945/GateKeeper/internal/config"
	"github.com/Ashutosh-1945/GateKeeper/internal/models"
	"github.com/Ashutosh-1945/GateKeeper/internal/repository"
	"github.com/Ashutosh-1945/GateKeeper/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testSecret = "handler-test-secret"
	browserUA  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

type testEnv struct {
	router *gin.Engine
	store  repository.LinkStore
	db     *gorm.DB
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, repository.AutoMigrate(db))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		PublicBaseURL: "https://gk.example",
		CORSOrigins:   []string{"https://app.example"},
	}

	store := repository.NewLinkRepository(db)
	audit := services.NewAuditService(db, logger)
	verifier := services.NewJWTVerifier(testSecret, "", "")
	admins := services.NewEmailAllowList([]string{"root@acme.com"})
	stats := services.NewStatsService(store, logger, nil, "salt")
	links := services.NewLinkService(store, services.NewSlugAllocator(store, 6), audit, logger, cfg.PublicBaseURL, time.Second)
	gate := services.NewAccessGate(store, stats, services.NewPrefetchDetector(), verifier, audit, logger, time.Second)

	h := NewHandler(cfg, logger, links, gate, audit, services.NewQRService(), verifier, admins)
	return &testEnv{router: h.SetupRouter(nil), store: store, db: db}
}

func tokenFor(t *testing.T, sub, email string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

type request struct {
	method  string
	path    string
	body    interface{}
	raw     string
	token   string
	headers map[string]string
}

func (e *testEnv) do(t *testing.T, r request) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if r.raw != "" {
		body = strings.NewReader(r.raw)
	}
	if r.body != nil {
		b, err := json.Marshal(r.body)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(r.method, r.path, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", browserUA)
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) seed(t *testing.T, slug string, mutate func(*models.Link)) {
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
	require.NoError(t, e.store.Create(context.Background(), link))
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
