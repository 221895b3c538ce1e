package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Ashutosh-1945/GateKeeper/internal/models"
	"github.com/Ashutosh-1945/GateKeeper/internal/repository"
)

type Decision int

const (
	Granted Decision = iota
	RequiresPassword
	RequiresDomainVerification
)

func (d Decision) String() string {
	switch d {
	case Granted:
		return "granted"
	case RequiresPassword:
		return "password"
	case RequiresDomainVerification:
		return "domain"
	default:
		return "unknown"
	}
}

// AccessResult is what a visitor learns. TargetURL is only set when Granted.
type AccessResult struct {
	Decision       Decision
	TargetURL      string
	RequiredDomain string
	// Counted is false for crawler and prefetch traffic.
	Counted bool
}

// AccessGate decides whether a visitor reaches a link's target. Dead links are
// evicted on sight, and only a granted human access spends a click.
type AccessGate struct {
	store    repository.LinkStore
	clicks   ClickRecorder
	detector AutomationDetector
	verifier IdentityVerifier
	audit    AuditSink
	logger   *slog.Logger
	timeout  time.Duration
	now      func() time.Time
}

func NewAccessGate(store repository.LinkStore, clicks ClickRecorder, detector AutomationDetector, verifier IdentityVerifier, audit AuditSink, logger *slog.Logger, timeout time.Duration) *AccessGate {
	if audit == nil {
		audit = discardAudit{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AccessGate{
		store:    store,
		clicks:   clicks,
		detector: detector,
		verifier: verifier,
		audit:    audit,
		logger:   logger,
		timeout:  timeout,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (g *AccessGate) CheckAccess(ctx context.Context, slug string, caller Caller) (*AccessResult, error) {
	link, err := g.loadLive(ctx, slug, caller)
	if err != nil {
		return nil, err
	}

	switch p := link.Security.Gate().(type) {
	case models.PasswordGate:
		return &AccessResult{Decision: RequiresPassword}, nil
	case models.DomainLock:
		return &AccessResult{Decision: RequiresDomainVerification, RequiredDomain: p.Domain}, nil
	default:
		return g.grant(ctx, link, caller)
	}
}

func (g *AccessGate) UnlockWithPassword(ctx context.Context, slug, secret string, caller Caller) (*AccessResult, error) {
	link, err := g.loadLive(ctx, slug, caller)
	if err != nil {
		return nil, err
	}

	gate, ok := link.Security.Gate().(models.PasswordGate)
	if !ok || subtle.ConstantTimeCompare([]byte(gate.Secret), []byte(secret)) != 1 {
		g.audit.Record(AuditEvent{Action: ActionLinkUnlockFailed, TargetID: slug, Details: map[string]string{"method": "password"}, Caller: caller})
		return nil, ErrWrongSecret
	}
	return g.grant(ctx, link, caller)
}

func (g *AccessGate) UnlockWithIdentity(ctx context.Context, slug, token string, caller Caller) (*AccessResult, error) {
	link, err := g.loadLive(ctx, slug, caller)
	if err != nil {
		return nil, err
	}

	lock, ok := link.Security.Gate().(models.DomainLock)
	if !ok {
		return nil, ErrDomainMismatch
	}
	if g.verifier == nil {
		return nil, ErrInvalidIdentity
	}

	identity, err := g.verifier.Verify(ctx, token)
	if err != nil {
		g.logger.Debug("Identity verification failed", "slug", slug, "error", err)
		if !errors.Is(err, ErrInvalidIdentity) {
			err = ErrInvalidIdentity
		}
		return nil, err
	}

	if identity.Email == "" || !strings.EqualFold(identity.EmailDomain(), lock.Domain) {
		g.audit.Record(AuditEvent{
			Action:   ActionLinkUnlockFailed,
			Actor:    Actor{ID: identity.Subject, Email: identity.Email},
			TargetID: slug,
			Details:  map[string]string{"method": "domain"},
			Caller:   caller,
		})
		return nil, &DomainMismatchError{Email: identity.Email}
	}
	return g.grant(ctx, link, caller)
}

// loadLive fetches the link and evicts it when it is already dead.
func (g *AccessGate) loadLive(ctx context.Context, slug string, caller Caller) (*models.Link, error) {
	getCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	link, err := g.store.Get(getCtx, slug)
	if errors.Is(err, repository.ErrLinkNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeError("get link", err)
	}

	if link.IsDead(g.now()) {
		g.evict(ctx, link.Slug, caller)
		return nil, ErrGone
	}
	return link, nil
}

func (g *AccessGate) grant(ctx context.Context, link *models.Link, caller Caller) (*AccessResult, error) {
	if g.detector != nil && g.detector.IsAutomated(caller) {
		return &AccessResult{Decision: Granted, TargetURL: link.TargetURL}, nil
	}

	countCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.clicks.RecordAccess(countCtx, link, caller); err != nil {
		if errors.Is(err, ErrGone) {
			g.evict(ctx, link.Slug, caller)
		}
		return nil, err
	}

	return &AccessResult{Decision: Granted, TargetURL: link.TargetURL, Counted: true}, nil
}

// evict removes a dead link. Failure is logged; the reaper or the next visitor retries.
func (g *AccessGate) evict(ctx context.Context, slug string, caller Caller) {
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	deleted, err := g.store.Delete(delCtx, slug)
	if err != nil {
		g.logger.Warn("Failed to evict dead link", "slug", slug, "error", err)
		return
	}
	if deleted {
		g.logger.Info("Link self-destructed", "slug", slug)
		g.audit.Record(AuditEvent{Action: ActionLinkSelfDestructed, TargetID: slug, Caller: caller})
	}
}
