package services

import (
	"context"
	"testing"
	"time"

	"github.com/Ashutosh-1945/GateKeeper/internal/models"
	"github.com/Ashutosh-1945/GateKeeper/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = Actor{ID: "alice", Email: "alice@acme.com"}
	bob   = Actor{ID: "bob", Email: "bob@acme.com"}
	root  = Actor{ID: "root", Email: "root@acme.com", Admin: true}
)

func setupLinkService(t *testing.T) (*LinkService, repository.LinkStore, *recordingAudit) {
	store := setupStore(t)
	audit := &recordingAudit{}
	svc := NewLinkService(store, NewSlugAllocator(store, 6), audit, testLogger(), "https://gk.example/", time.Second)
	return svc, store, audit
}

func strPtr(s string) *string { return &s }

func TestLinkService_CreateLink(t *testing.T) {
	ctx := context.Background()

	t.Run("Guest link", func(t *testing.T) {
		svc, store, audit := setupLinkService(t)

		res, err := svc.CreateLink(ctx, CreateLinkInput{
			TargetURL: "https://example.com/docs",
			Tags:      []string{" Docs ", "docs", "Q3", ""},
		})
		require.NoError(t, err)
		assert.Len(t, res.Slug, 6)
		assert.Equal(t, "https://gk.example/"+res.Slug, res.ShortLink)

		got, err := store.Get(ctx, res.Slug)
		require.NoError(t, err)
		assert.Equal(t, models.GuestOwner, got.OwnerID)
		assert.Equal(t, []string{"docs", "q3"}, got.Tags)
		assert.Equal(t, models.SecurityNone, got.Security.Kind())
		assert.Equal(t, []string{ActionLinkCreated}, audit.actions())
	})

	t.Run("Owned link with custom slug and lifecycle", func(t *testing.T) {
		svc, store, _ := setupLinkService(t)
		exp := time.Now().Add(time.Hour)

		res, err := svc.CreateLink(ctx, CreateLinkInput{
			TargetURL:     "https://example.com",
			CustomSlug:    "team-sync",
			Owner:         alice,
			AllowedDomain: "@ACME.com",
			ExpiresAt:     &exp,
			MaxClicks:     intPtr(3),
		})
		require.NoError(t, err)
		assert.Equal(t, "team-sync", res.Slug)

		got, err := store.Get(ctx, "team-sync")
		require.NoError(t, err)
		assert.Equal(t, "alice", got.OwnerID)
		assert.Equal(t, models.DomainLock{Domain: "acme.com"}, got.Security.Policy)
		require.NotNil(t, got.MaxClicks)
		assert.Equal(t, 3, *got.MaxClicks)
		require.NotNil(t, got.ExpiresAt)
	})

	t.Run("Alias taken", func(t *testing.T) {
		svc, store, _ := setupLinkService(t)
		seedLink(t, store, "taken", nil)

		_, err := svc.CreateLink(ctx, CreateLinkInput{TargetURL: "https://example.com", CustomSlug: "taken"})
		assert.ErrorIs(t, err, ErrAliasTaken)
	})

	t.Run("Validation", func(t *testing.T) {
		svc, _, _ := setupLinkService(t)
		past := time.Now().Add(-time.Minute)

		cases := map[string]CreateLinkInput{
			"empty url":     {},
			"relative url":  {TargetURL: "/foo"},
			"ftp url":       {TargetURL: "ftp://example.com"},
			"both gates":    {TargetURL: "https://example.com", Password: "pw", AllowedDomain: "acme.com"},
			"bad domain":    {TargetURL: "https://example.com", AllowedDomain: "localhost"},
			"past expiry":   {TargetURL: "https://example.com", ExpiresAt: &past},
			"zero quota":    {TargetURL: "https://example.com", MaxClicks: intPtr(0)},
			"illegal slug":  {TargetURL: "https://example.com", CustomSlug: "no/slash"},
			"reserved slug": {TargetURL: "https://example.com", CustomSlug: "health"},
		}
		for name, in := range cases {
			_, err := svc.CreateLink(ctx, in)
			assert.ErrorIs(t, err, ErrValidation, name)
		}
	})
}

func TestLinkService_EditLink(t *testing.T) {
	ctx := context.Background()

	t.Run("Owner edits target and tags", func(t *testing.T) {
		svc, store, audit := setupLinkService(t)
		seedLink(t, store, "mine", func(l *models.Link) { l.ClickCount = 4 })

		tags := []string{"New"}
		got, err := svc.EditLink(ctx, "mine", LinkPatch{TargetURL: strPtr("https://example.org"), Tags: &tags}, alice, Caller{})
		require.NoError(t, err)
		assert.Equal(t, "https://example.org", got.TargetURL)
		assert.Equal(t, []string{"new"}, got.Tags)
		assert.Equal(t, int64(4), got.ClickCount)
		assert.Equal(t, []string{ActionLinkUpdated}, audit.actions())
	})

	t.Run("Owner switches gate", func(t *testing.T) {
		svc, store, _ := setupLinkService(t)
		seedLink(t, store, "mine", func(l *models.Link) { l.Security = models.WithPassword("old") })

		got, err := svc.EditLink(ctx, "mine", LinkPatch{Password: strPtr(""), AllowedDomain: strPtr("acme.com")}, alice, Caller{})
		require.NoError(t, err)
		assert.Equal(t, models.DomainLock{Domain: "acme.com"}, got.Security.Policy)

		got, err = svc.EditLink(ctx, "mine", LinkPatch{AllowedDomain: strPtr("")}, alice, Caller{})
		require.NoError(t, err)
		assert.Equal(t, models.SecurityNone, got.Security.Kind())
	})

	t.Run("Both gates at once", func(t *testing.T) {
		svc, store, _ := setupLinkService(t)
		seedLink(t, store, "mine", nil)

		_, err := svc.EditLink(ctx, "mine", LinkPatch{Password: strPtr("x"), AllowedDomain: strPtr("acme.com")}, alice, Caller{})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("Ownership", func(t *testing.T) {
		svc, store, _ := setupLinkService(t)
		seedLink(t, store, "mine", nil)
		seedLink(t, store, "anon", func(l *models.Link) { l.OwnerID = models.GuestOwner })

		_, err := svc.EditLink(ctx, "mine", LinkPatch{TargetURL: strPtr("https://evil.example")}, bob, Caller{})
		assert.ErrorIs(t, err, ErrForbidden)

		_, err = svc.EditLink(ctx, "anon", LinkPatch{TargetURL: strPtr("https://evil.example")}, GuestActor(), Caller{})
		assert.ErrorIs(t, err, ErrForbidden)

		_, err = svc.EditLink(ctx, "missing", LinkPatch{}, alice, Caller{})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Expiry and quota need an admin", func(t *testing.T) {
		svc, store, audit := setupLinkService(t)
		seedLink(t, store, "mine", nil)

		_, err := svc.EditLink(ctx, "mine", LinkPatch{MaxClicks: intPtr(10)}, alice, Caller{})
		assert.ErrorIs(t, err, ErrForbidden)

		got, err := svc.EditLink(ctx, "mine", LinkPatch{MaxClicks: intPtr(10), TTLMinutes: intPtr(30)}, root, Caller{})
		require.NoError(t, err)
		require.NotNil(t, got.MaxClicks)
		assert.Equal(t, 10, *got.MaxClicks)
		require.NotNil(t, got.ExpiresAt)
		assert.WithinDuration(t, time.Now().Add(30*time.Minute), *got.ExpiresAt, time.Minute)
		assert.Contains(t, audit.actions(), ActionAdminUpdateLink)

		got, err = svc.EditLink(ctx, "mine", LinkPatch{MaxClicks: intPtr(0), TTLMinutes: intPtr(0)}, root, Caller{})
		require.NoError(t, err)
		assert.Nil(t, got.MaxClicks)
		assert.Nil(t, got.ExpiresAt)
	})

	t.Run("Rename moves the record and its clicks", func(t *testing.T) {
		svc, store, audit := setupLinkService(t)
		seedLink(t, store, "old", func(l *models.Link) { l.ClickCount = 2 })
		require.NoError(t, store.AddClick(ctx, &models.Click{ID: "c1", LinkSlug: "old", Timestamp: time.Now()}))

		got, err := svc.EditLink(ctx, "old", LinkPatch{NewSlug: strPtr("new")}, alice, Caller{})
		require.NoError(t, err)
		assert.Equal(t, "new", got.Slug)
		assert.Equal(t, int64(2), got.ClickCount)

		_, err = store.Get(ctx, "old")
		assert.ErrorIs(t, err, repository.ErrLinkNotFound)

		clicks, err := store.ListClicks(ctx, "new", 10)
		require.NoError(t, err)
		assert.Len(t, clicks, 1)
		assert.Equal(t, []string{ActionLinkRenamed}, audit.actions())
	})

	t.Run("Rename survives a failed click move", func(t *testing.T) {
		store := newFlakyStore(setupStore(t), "move")
		svc := NewLinkService(store, NewSlugAllocator(store, 6), nil, testLogger(), "https://gk.example", time.Second)
		seedLink(t, store, "old", nil)

		got, err := svc.EditLink(ctx, "old", LinkPatch{NewSlug: strPtr("new")}, alice, Caller{})
		require.NoError(t, err)
		assert.Equal(t, "new", got.Slug)
	})

	t.Run("Rename takes over a slug held by a dead record", func(t *testing.T) {
		svc, store, _ := setupLinkService(t)
		past := time.Now().UTC().Add(-time.Minute)
		seedLink(t, store, "mine", nil)
		seedLink(t, store, "dead", func(l *models.Link) { l.ExpiresAt = &past })
		seedLink(t, store, "burned", func(l *models.Link) {
			l.MaxClicks = intPtr(1)
			l.ClickCount = 1
		})

		got, err := svc.EditLink(ctx, "mine", LinkPatch{NewSlug: strPtr("dead")}, alice, Caller{})
		require.NoError(t, err)
		assert.Equal(t, "dead", got.Slug)
		assert.Nil(t, got.ExpiresAt)

		got, err = svc.EditLink(ctx, "dead", LinkPatch{NewSlug: strPtr("burned")}, alice, Caller{})
		require.NoError(t, err)
		assert.Equal(t, "burned", got.Slug)
		assert.Equal(t, int64(0), got.ClickCount)
	})

	t.Run("Failed field update leaves the slug in place", func(t *testing.T) {
		store := newFlakyStore(setupStore(t), "update")
		svc := NewLinkService(store, NewSlugAllocator(store, 6), nil, testLogger(), "https://gk.example", time.Second)
		seedLink(t, store, "old", nil)

		_, err := svc.EditLink(ctx, "old", LinkPatch{TargetURL: strPtr("https://example.org"), NewSlug: strPtr("new")}, alice, Caller{})
		assert.ErrorIs(t, err, ErrStoreUnavailable)

		_, err = store.Get(ctx, "old")
		assert.NoError(t, err)
		_, err = store.Get(ctx, "new")
		assert.ErrorIs(t, err, repository.ErrLinkNotFound)
	})

	t.Run("Padded password is kept verbatim", func(t *testing.T) {
		svc, store, _ := setupLinkService(t)
		seedLink(t, store, "mine", nil)

		got, err := svc.EditLink(ctx, "mine", LinkPatch{Password: strPtr(" s3cret ")}, alice, Caller{})
		require.NoError(t, err)
		assert.Equal(t, models.PasswordGate{Secret: " s3cret "}, got.Security.Policy)
	})

	t.Run("Rename collisions and bad slugs", func(t *testing.T) {
		svc, store, _ := setupLinkService(t)
		seedLink(t, store, "a", nil)
		seedLink(t, store, "b", nil)

		_, err := svc.EditLink(ctx, "a", LinkPatch{NewSlug: strPtr("b")}, alice, Caller{})
		assert.ErrorIs(t, err, ErrAliasTaken)

		_, err = svc.EditLink(ctx, "a", LinkPatch{NewSlug: strPtr("bad slug!")}, alice, Caller{})
		assert.ErrorIs(t, err, ErrValidation)

		_, err = store.Get(ctx, "a")
		assert.NoError(t, err)
	})
}

func TestLinkService_DeleteLink(t *testing.T) {
	ctx := context.Background()
	svc, store, audit := setupLinkService(t)
	seedLink(t, store, "mine", nil)
	seedLink(t, store, "theirs", func(l *models.Link) { l.OwnerID = "bob" })

	assert.ErrorIs(t, svc.DeleteLink(ctx, "mine", bob, Caller{}), ErrForbidden)
	assert.ErrorIs(t, svc.DeleteLink(ctx, "missing", alice, Caller{}), ErrNotFound)

	require.NoError(t, svc.DeleteLink(ctx, "mine", alice, Caller{}))
	require.NoError(t, svc.DeleteLink(ctx, "theirs", root, Caller{}))

	_, err := store.Get(ctx, "mine")
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
	assert.Equal(t, []string{ActionLinkDeleted, ActionAdminDeleteLink}, audit.actions())
}

func TestLinkService_Visitable(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := setupLinkService(t)
	seedLink(t, store, "live", nil)
	seedLink(t, store, "spent", func(l *models.Link) {
		l.MaxClicks = intPtr(1)
		l.ClickCount = 1
	})

	assert.NoError(t, svc.Visitable(ctx, "live"))
	assert.ErrorIs(t, svc.Visitable(ctx, "spent"), ErrGone)
	assert.ErrorIs(t, svc.Visitable(ctx, "missing"), ErrNotFound)

	// Visitable never evicts.
	_, err := store.Get(ctx, "spent")
	assert.NoError(t, err)
}

func TestLinkService_OwnerAndAdminViews(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := setupLinkService(t)
	past := time.Now().UTC().Add(-time.Hour)

	seedLink(t, store, "a1", func(l *models.Link) { l.ClickCount = 3 })
	seedLink(t, store, "a2", func(l *models.Link) { l.ExpiresAt = &past })
	seedLink(t, store, "b1", func(l *models.Link) {
		l.OwnerID = "bob"
		l.ClickCount = 2
	})
	seedLink(t, store, "g1", func(l *models.Link) { l.OwnerID = models.GuestOwner })

	t.Run("Owner dashboard", func(t *testing.T) {
		links, err := svc.ListOwnerLinks(ctx, alice)
		require.NoError(t, err)
		assert.Len(t, links, 2)

		_, err = svc.ListOwnerLinks(ctx, GuestActor())
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("Admin listing", func(t *testing.T) {
		_, err := svc.ListAllLinks(ctx, alice)
		assert.ErrorIs(t, err, ErrForbidden)

		links, err := svc.ListAllLinks(ctx, root)
		require.NoError(t, err)
		assert.Len(t, links, 4)
	})

	t.Run("Stats", func(t *testing.T) {
		stats, err := svc.Stats(ctx, root)
		require.NoError(t, err)
		assert.Equal(t, 4, stats.TotalLinks)
		assert.Equal(t, 3, stats.ActiveLinks)
		assert.Equal(t, 1, stats.DeadLinks)
		assert.Equal(t, 1, stats.GuestLinks)
		assert.Equal(t, 2, stats.UniqueOwners)
		assert.Equal(t, int64(5), stats.TotalClicks)
	})

	t.Run("Details are admin only", func(t *testing.T) {
		_, err := svc.LinkDetails(ctx, "a1", alice)
		assert.ErrorIs(t, err, ErrForbidden)

		details, err := svc.LinkDetails(ctx, "a1", root)
		require.NoError(t, err)
		assert.Equal(t, "a1", details.Link.Slug)

		_, err = svc.LinkDetails(ctx, "zz", root)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Clicks need ownership", func(t *testing.T) {
		_, err := svc.LinkClicks(ctx, "b1", alice, 10)
		assert.ErrorIs(t, err, ErrForbidden)

		clicks, err := svc.LinkClicks(ctx, "b1", root, 10)
		require.NoError(t, err)
		assert.Empty(t, clicks)
	})
}

func TestLinkService_DeleteOwnerLinks(t *testing.T) {
	ctx := context.Background()
	svc, store, audit := setupLinkService(t)
	seedLink(t, store, "b1", func(l *models.Link) { l.OwnerID = "bob" })
	seedLink(t, store, "b2", func(l *models.Link) { l.OwnerID = "bob" })
	seedLink(t, store, "a1", nil)

	_, err := svc.DeleteOwnerLinks(ctx, "bob", alice, Caller{})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.DeleteOwnerLinks(ctx, "root", root, Caller{})
	assert.ErrorIs(t, err, ErrValidation)

	n, err := svc.DeleteOwnerLinks(ctx, "bob", root, Caller{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{ActionAdminDeleteUserLinks}, audit.actions())

	_, err = store.Get(ctx, "a1")
	assert.NoError(t, err)
}

func TestLinkService_StoreUnavailable(t *testing.T) {
	store := newFlakyStore(setupStore(t), "get")
	svc := NewLinkService(store, NewSlugAllocator(store, 6), nil, testLogger(), "https://gk.example", time.Second)

	err := svc.DeleteLink(context.Background(), "any", alice, Caller{})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
