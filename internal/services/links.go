package services

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/Ashutosh-1945/GateKeeper/internal/models"
	"github.com/Ashutosh-1945/GateKeeper/internal/repository"
)

const (
	maxTags      = 20
	maxTagLength = 32
	maxURLLength = 2048
)

type CreateLinkInput struct {
	TargetURL     string
	CustomSlug    string
	Owner         Actor
	Password      string
	AllowedDomain string
	ExpiresAt     *time.Time
	MaxClicks     *int
	Tags          []string
	Caller        Caller
}

type CreateLinkResult struct {
	Slug      string
	ShortLink string
	Link      *models.Link
}

// LinkPatch holds the fields an edit may change. Nil means untouched.
// Expiry and quota changes need an admin.
type LinkPatch struct {
	TargetURL *string
	Tags      *[]string
	NewSlug   *string

	Password      *string
	AllowedDomain *string
	// TTLMinutes resets the expiry relative to now; 0 removes it.
	TTLMinutes *int
	// MaxClicks sets the quota; 0 removes it.
	MaxClicks *int
}

func (p LinkPatch) touchesAdminFields() bool {
	return p.TTLMinutes != nil || p.MaxClicks != nil
}

type AdminStats struct {
	TotalLinks   int   `json:"totalLinks"`
	ActiveLinks  int   `json:"activeLinks"`
	DeadLinks    int   `json:"deadLinks"`
	GuestLinks   int   `json:"guestLinks"`
	TotalClicks  int64 `json:"totalClicks"`
	UniqueOwners int   `json:"uniqueOwners"`
}

type LinkService struct {
	store     repository.LinkStore
	allocator *SlugAllocator
	audit     AuditSink
	logger    *slog.Logger
	baseURL   string
	timeout   time.Duration
	now       func() time.Time
}

func NewLinkService(store repository.LinkStore, allocator *SlugAllocator, audit AuditSink, logger *slog.Logger, baseURL string, timeout time.Duration) *LinkService {
	if audit == nil {
		audit = discardAudit{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &LinkService{
		store:     store,
		allocator: allocator,
		audit:     audit,
		logger:    logger,
		baseURL:   strings.TrimRight(baseURL, "/"),
		timeout:   timeout,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *LinkService) ShortLink(slug string) string {
	return s.baseURL + "/" + slug
}

func (s *LinkService) CreateLink(ctx context.Context, in CreateLinkInput) (*CreateLinkResult, error) {
	target, err := normalizeTargetURL(in.TargetURL)
	if err != nil {
		return nil, err
	}
	security, err := buildSecurity(in.Password, in.AllowedDomain)
	if err != nil {
		return nil, err
	}
	if in.MaxClicks != nil && *in.MaxClicks <= 0 {
		return nil, validationError("maxClicks must be a positive number")
	}

	now := s.now()
	if in.ExpiresAt != nil {
		exp := in.ExpiresAt.UTC()
		if !exp.After(now) {
			return nil, validationError("expiry must be in the future")
		}
		in.ExpiresAt = &exp
	}

	owner := models.GuestOwner
	if !in.Owner.IsGuest() {
		owner = in.Owner.ID
	}

	link := &models.Link{
		TargetURL: target,
		OwnerID:   owner,
		Tags:      normalizeTags(in.Tags),
		Security:  security,
		ExpiresAt: in.ExpiresAt,
		MaxClicks: in.MaxClicks,
		CreatedAt: now,
		UpdatedAt: now,
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.allocator.Reserve(ctx, link, strings.TrimSpace(in.CustomSlug)); err != nil {
		return nil, err
	}

	s.logger.Info("Link created", "slug", link.Slug, "owner", owner, "security", link.Security.Kind())
	s.audit.Record(AuditEvent{
		Action:   ActionLinkCreated,
		Actor:    in.Owner,
		TargetID: link.Slug,
		Details:  map[string]interface{}{"security": link.Security.Kind(), "custom": in.CustomSlug != ""},
		Caller:   in.Caller,
	})

	return &CreateLinkResult{Slug: link.Slug, ShortLink: s.ShortLink(link.Slug), Link: link}, nil
}

// GetLink loads a link for its owner or an admin.
func (s *LinkService) GetLink(ctx context.Context, slug string, actor Actor) (*models.Link, error) {
	link, err := s.load(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !canManage(link, actor) {
		return nil, ErrForbidden
	}
	return link, nil
}

func (s *LinkService) EditLink(ctx context.Context, slug string, patch LinkPatch, actor Actor, caller Caller) (*models.Link, error) {
	link, err := s.load(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !canManage(link, actor) {
		return nil, ErrForbidden
	}
	if patch.touchesAdminFields() && !actor.Admin {
		return nil, ErrForbidden
	}

	changed, err := s.applyPatch(link, patch)
	if err != nil {
		return nil, err
	}

	renameTo := ""
	if patch.NewSlug != nil {
		if next := strings.TrimSpace(*patch.NewSlug); next != "" && next != link.Slug {
			if err := ValidateSlug(next); err != nil {
				return nil, err
			}
			renameTo = next
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// Fields land before the move so a failed update never leaves a half-applied rename.
	if changed {
		link.UpdatedAt = s.now()
		if err := s.store.Update(ctx, link); err != nil {
			if errors.Is(err, repository.ErrLinkNotFound) {
				return nil, ErrNotFound
			}
			return nil, storeError("update link", err)
		}
		action := ActionLinkUpdated
		if actor.Admin && link.OwnerID != actor.ID {
			action = ActionAdminUpdateLink
		}
		s.audit.Record(AuditEvent{Action: action, Actor: actor, TargetID: link.Slug, Caller: caller})
	}

	if renameTo != "" {
		if err := s.rename(ctx, link.Slug, renameTo); err != nil {
			return nil, err
		}
		s.audit.Record(AuditEvent{
			Action:   ActionLinkRenamed,
			Actor:    actor,
			TargetID: renameTo,
			Details:  map[string]string{"from": slug, "to": renameTo},
			Caller:   caller,
		})
		link.Slug = renameTo
	}

	return s.load(ctx, link.Slug)
}

func (s *LinkService) rename(ctx context.Context, from, to string) error {
	_, err := s.store.Rename(ctx, from, to)
	if errors.Is(err, repository.ErrSlugTaken) {
		// Same rule as allocation: a dead holder gives the slug up.
		evicted, evictErr := s.allocator.evictIfDead(ctx, to)
		if evictErr != nil {
			return evictErr
		}
		if evicted {
			_, err = s.store.Rename(ctx, from, to)
		}
	}
	switch {
	case errors.Is(err, repository.ErrSlugTaken):
		return ErrAliasTaken
	case errors.Is(err, repository.ErrLinkNotFound):
		return ErrNotFound
	case err != nil:
		return storeError("rename link", err)
	}

	// Analytics follow the link on a best-effort basis.
	if moved, err := s.store.MoveClicks(ctx, from, to); err != nil {
		s.logger.Warn("Failed to move clicks after rename", "from", from, "to", to, "error", err)
	} else {
		s.logger.Info("Link renamed", "from", from, "to", to, "clicks", moved)
	}
	return nil
}

func (s *LinkService) applyPatch(link *models.Link, patch LinkPatch) (bool, error) {
	changed := false

	if patch.TargetURL != nil {
		target, err := normalizeTargetURL(*patch.TargetURL)
		if err != nil {
			return false, err
		}
		link.TargetURL = target
		changed = true
	}
	if patch.Tags != nil {
		link.Tags = normalizeTags(*patch.Tags)
		changed = true
	}

	password := ""
	if patch.Password != nil {
		password = *patch.Password
	}
	domain := ""
	if patch.AllowedDomain != nil {
		domain = models.NormalizeDomain(*patch.AllowedDomain)
	}
	switch {
	case password != "" && domain != "":
		return false, validationError("a link takes either a password or a domain lock, not both")
	case password != "":
		link.Security = models.WithPassword(password)
		changed = true
	case domain != "":
		if !strings.Contains(domain, ".") {
			return false, validationError("allowed domain %q is not a domain", domain)
		}
		link.Security = models.WithDomainLock(domain)
		changed = true
	default:
		// Clearing one gate leaves the other untouched.
		kind := link.Security.Kind()
		if (patch.Password != nil && kind == models.SecurityPassword) ||
			(patch.AllowedDomain != nil && kind == models.SecurityDomain) {
			link.Security = models.Open()
			changed = true
		}
	}

	if patch.TTLMinutes != nil {
		switch ttl := *patch.TTLMinutes; {
		case ttl < 0:
			return false, validationError("ttlMinutes cannot be negative")
		case ttl == 0:
			link.ExpiresAt = nil
		default:
			exp := s.now().Add(time.Duration(ttl) * time.Minute)
			link.ExpiresAt = &exp
		}
		changed = true
	}

	if patch.MaxClicks != nil {
		switch mc := *patch.MaxClicks; {
		case mc < 0:
			return false, validationError("maxClicks cannot be negative")
		case mc == 0:
			link.MaxClicks = nil
		default:
			link.MaxClicks = &mc
		}
		changed = true
	}

	return changed, nil
}

func (s *LinkService) DeleteLink(ctx context.Context, slug string, actor Actor, caller Caller) error {
	link, err := s.load(ctx, slug)
	if err != nil {
		return err
	}
	if !canManage(link, actor) {
		return ErrForbidden
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.store.Delete(ctx, slug); err != nil {
		return storeError("delete link", err)
	}

	action := ActionLinkDeleted
	if actor.Admin && link.OwnerID != actor.ID {
		action = ActionAdminDeleteLink
	}
	s.audit.Record(AuditEvent{Action: action, Actor: actor, TargetID: slug, Caller: caller})
	return nil
}

func (s *LinkService) ListOwnerLinks(ctx context.Context, actor Actor) ([]models.Link, error) {
	if actor.IsGuest() {
		return nil, ErrForbidden
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	links, err := s.store.ListByOwner(ctx, actor.ID)
	if err != nil {
		return nil, storeError("list links", err)
	}
	return links, nil
}

// LinkClicks returns the newest analytics records for a link its actor may manage.
func (s *LinkService) LinkClicks(ctx context.Context, slug string, actor Actor, limit int) ([]models.Click, error) {
	if _, err := s.GetLink(ctx, slug, actor); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	clicks, err := s.store.ListClicks(ctx, slug, limit)
	if err != nil {
		return nil, storeError("list clicks", err)
	}
	return clicks, nil
}

type LinkDetails struct {
	Link   *models.Link
	Clicks []models.Click
}

// LinkDetails is the admin view of one link, secret included.
func (s *LinkService) LinkDetails(ctx context.Context, slug string, actor Actor) (*LinkDetails, error) {
	if !actor.Admin {
		return nil, ErrForbidden
	}
	link, err := s.load(ctx, slug)
	if err != nil {
		return nil, err
	}
	clicks, err := s.LinkClicks(ctx, slug, actor, 50)
	if err != nil {
		return nil, err
	}
	return &LinkDetails{Link: link, Clicks: clicks}, nil
}

func (s *LinkService) ListAllLinks(ctx context.Context, actor Actor) ([]models.Link, error) {
	if !actor.Admin {
		return nil, ErrForbidden
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	links, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, storeError("list links", err)
	}
	return links, nil
}

func (s *LinkService) Stats(ctx context.Context, actor Actor) (*AdminStats, error) {
	links, err := s.ListAllLinks(ctx, actor)
	if err != nil {
		return nil, err
	}

	now := s.now()
	stats := &AdminStats{TotalLinks: len(links)}
	owners := make(map[string]struct{})
	for i := range links {
		l := &links[i]
		stats.TotalClicks += l.ClickCount
		if l.IsDead(now) {
			stats.DeadLinks++
		} else {
			stats.ActiveLinks++
		}
		if l.IsGuest() {
			stats.GuestLinks++
		} else {
			owners[l.OwnerID] = struct{}{}
		}
	}
	stats.UniqueOwners = len(owners)
	return stats, nil
}

// DeleteOwnerLinks removes every link an owner holds. Admins cannot wipe their own links this way.
func (s *LinkService) DeleteOwnerLinks(ctx context.Context, ownerID string, actor Actor, caller Caller) (int, error) {
	if !actor.Admin {
		return 0, ErrForbidden
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return 0, validationError("owner id is required")
	}
	if ownerID == actor.ID {
		return 0, validationError("cannot delete your own links")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	slugs, err := s.store.DeleteByOwner(ctx, ownerID)
	if err != nil {
		return 0, storeError("delete owner links", err)
	}

	s.audit.Record(AuditEvent{
		Action:   ActionAdminDeleteUserLinks,
		Actor:    actor,
		TargetID: ownerID,
		Details:  map[string]int{"deleted": len(slugs)},
		Caller:   caller,
	})
	return len(slugs), nil
}

// Visitable fails with ErrNotFound or ErrGone for links nobody can open. It never counts or evicts.
func (s *LinkService) Visitable(ctx context.Context, slug string) error {
	link, err := s.load(ctx, slug)
	if err != nil {
		return err
	}
	if link.IsDead(s.now()) {
		return ErrGone
	}
	return nil
}

func (s *LinkService) load(ctx context.Context, slug string) (*models.Link, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	link, err := s.store.Get(ctx, slug)
	if errors.Is(err, repository.ErrLinkNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeError("get link", err)
	}
	return link, nil
}

func canManage(link *models.Link, actor Actor) bool {
	if actor.Admin {
		return true
	}
	return !actor.IsGuest() && !link.IsGuest() && link.OwnerID == actor.ID
}

func buildSecurity(password, domain string) (models.Security, error) {
	// The secret is kept exactly as chosen; unlock compares it byte for byte.
	domain = models.NormalizeDomain(domain)
	switch {
	case password != "" && domain != "":
		return models.Security{}, validationError("a link takes either a password or a domain lock, not both")
	case password != "":
		return models.WithPassword(password), nil
	case domain != "":
		if !strings.Contains(domain, ".") {
			return models.Security{}, validationError("allowed domain %q is not a domain", domain)
		}
		return models.WithDomainLock(domain), nil
	default:
		return models.Open(), nil
	}
}

func normalizeTargetURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", validationError("target url is required")
	}
	if len(raw) > maxURLLength {
		return "", validationError("target url is too long")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", validationError("target url must be an absolute http(s) url")
	}
	return u.String(), nil
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || len(t) > maxTagLength {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == maxTags {
			break
		}
	}
	sort.Strings(out)
	return out
}
