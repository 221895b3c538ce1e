package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/Ashutosh-1945/GateKeeper/internal/models"
	"github.com/Ashutosh-1945/GateKeeper/internal/repository"
	"github.com/Ashutosh-1945/GateKeeper/pkg/utils"
)

const maxSlugAttempts = 32

var slugPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Path segments the web client owns.
var reservedSlugs = map[string]struct{}{
	"admin":     {},
	"api":       {},
	"dashboard": {},
	"health":    {},
	"scan":      {},
	"static":    {},
}

func ValidateSlug(slug string) error {
	if !slugPattern.MatchString(slug) {
		return validationError("slug must be 1-64 characters of letters, digits, '-' or '_'")
	}
	if _, reserved := reservedSlugs[strings.ToLower(slug)]; reserved {
		return validationError("slug %q is reserved", slug)
	}
	return nil
}

// SlugAllocator reserves a slug by creating the record itself, so two callers can
// never both believe they own the same slug.
type SlugAllocator struct {
	store    repository.LinkStore
	length   int
	generate func(length int) string
	now      func() time.Time
}

func NewSlugAllocator(store repository.LinkStore, length int) *SlugAllocator {
	if length <= 0 {
		length = 6
	}
	return &SlugAllocator{
		store:    store,
		length:   length,
		generate: utils.GenerateSlug,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Reserve stores link under requested, or under a fresh random slug when requested
// is empty. On success link.Slug holds the slug that was claimed.
func (a *SlugAllocator) Reserve(ctx context.Context, link *models.Link, requested string) error {
	if requested != "" {
		return a.reserveCustom(ctx, link, requested)
	}

	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		link.Slug = a.generate(a.length)
		err := a.store.Create(ctx, link)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrSlugTaken) {
			return storeError("create link", err)
		}
	}
	return ErrSlugSpace
}

func (a *SlugAllocator) reserveCustom(ctx context.Context, link *models.Link, slug string) error {
	if err := ValidateSlug(slug); err != nil {
		return err
	}
	link.Slug = slug

	err := a.store.Create(ctx, link)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrSlugTaken) {
		return storeError("create link", err)
	}

	// A dead record still holding the slug does not block it.
	evicted, err := a.evictIfDead(ctx, slug)
	if err != nil {
		return err
	}
	if !evicted {
		return ErrAliasTaken
	}

	err = a.store.Create(ctx, link)
	if errors.Is(err, repository.ErrSlugTaken) {
		return ErrAliasTaken
	}
	if err != nil {
		return storeError("create link", err)
	}
	return nil
}

func (a *SlugAllocator) evictIfDead(ctx context.Context, slug string) (bool, error) {
	existing, err := a.store.Get(ctx, slug)
	if errors.Is(err, repository.ErrLinkNotFound) {
		return true, nil
	}
	if err != nil {
		return false, storeError("get link", err)
	}
	if !existing.IsDead(a.now()) {
		return false, nil
	}
	if _, err := a.store.Delete(ctx, slug); err != nil {
		return false, storeError("delete link", err)
	}
	return true, nil
}
