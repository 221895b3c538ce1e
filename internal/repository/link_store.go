package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Ashutosh-1945/GateKeeper/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrLinkNotFound = errors.New("link not found")
	ErrSlugTaken    = errors.New("slug already taken")
)

// LinkStore is the record store behind the link lifecycle. Consistency comes from the
// store's own primitives (conditional create, conditional increment, idempotent delete);
// callers never lock.
type LinkStore interface {
	// Create inserts the link only if no record holds its slug, otherwise ErrSlugTaken.
	Create(ctx context.Context, link *models.Link) error
	Get(ctx context.Context, slug string) (*models.Link, error)
	// IncrementClicks adds one click while the counter is below max_clicks.
	// It reports false when the link is missing or its quota is used up.
	IncrementClicks(ctx context.Context, slug string) (bool, error)
	// Delete removes the link and its clicks. Deleting a missing link is not an error.
	Delete(ctx context.Context, slug string) (bool, error)
	// DeleteExpired removes every link whose expires_at is before now and returns their slugs.
	DeleteExpired(ctx context.Context, now time.Time) ([]string, error)
	// Update persists the owner/admin editable fields. The click counter is left untouched.
	Update(ctx context.Context, link *models.Link) error
	// Rename moves a link to a new slug in one transaction. Clicks stay behind; see MoveClicks.
	Rename(ctx context.Context, oldSlug, newSlug string) (*models.Link, error)
	MoveClicks(ctx context.Context, oldSlug, newSlug string) (int64, error)
	AddClick(ctx context.Context, click *models.Click) error
	ListClicks(ctx context.Context, slug string, limit int) ([]models.Click, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Link, error)
	ListAll(ctx context.Context) ([]models.Link, error)
	DeleteByOwner(ctx context.Context, ownerID string) ([]string, error)
}

type LinkRepository struct {
	db *gorm.DB
}

func NewLinkRepository(db *gorm.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

func (r *LinkRepository) Create(ctx context.Context, link *models.Link) error {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "slug"}}, DoNothing: true}).
		Create(link)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSlugTaken
	}
	return nil
}

func (r *LinkRepository) Get(ctx context.Context, slug string) (*models.Link, error) {
	var link models.Link
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *LinkRepository) IncrementClicks(ctx context.Context, slug string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Link{}).
		Where("slug = ? AND (max_clicks IS NULL OR click_count < max_clicks)", slug).
		UpdateColumn("click_count", gorm.Expr("click_count + ?", 1))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *LinkRepository) Delete(ctx context.Context, slug string) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("slug = ?", slug).Delete(&models.Link{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected > 0
		return tx.Where("link_slug = ?", slug).Delete(&models.Click{}).Error
	})
	return deleted, err
}

func (r *LinkRepository) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	var slugs []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Link{}).
			Where("expires_at IS NOT NULL AND expires_at < ?", now).
			Pluck("slug", &slugs).Error; err != nil {
			return err
		}
		if len(slugs) == 0 {
			return nil
		}
		if err := tx.Where("slug IN ?", slugs).Delete(&models.Link{}).Error; err != nil {
			return err
		}
		return tx.Where("link_slug IN ?", slugs).Delete(&models.Click{}).Error
	})
	if err != nil {
		return nil, err
	}
	return slugs, nil
}

func (r *LinkRepository) Update(ctx context.Context, link *models.Link) error {
	result := r.db.WithContext(ctx).
		Model(&models.Link{}).
		Where("slug = ?", link.Slug).
		Select("target_url", "tags", "security", "expires_at", "max_clicks", "updated_at").
		Updates(link)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}

func (r *LinkRepository) Rename(ctx context.Context, oldSlug, newSlug string) (*models.Link, error) {
	var moved models.Link
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Link
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("slug = ?", oldSlug).
			First(&current).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLinkNotFound
			}
			return err
		}

		moved = current
		moved.Slug = newSlug
		moved.UpdatedAt = time.Now().UTC()

		created := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "slug"}}, DoNothing: true}).Create(&moved)
		if created.Error != nil {
			return created.Error
		}
		if created.RowsAffected == 0 {
			return ErrSlugTaken
		}

		return tx.Where("slug = ?", oldSlug).Delete(&models.Link{}).Error
	})
	if err != nil {
		return nil, err
	}
	return &moved, nil
}

func (r *LinkRepository) MoveClicks(ctx context.Context, oldSlug, newSlug string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Click{}).
		Where("link_slug = ?", oldSlug).
		UpdateColumn("link_slug", newSlug)
	return result.RowsAffected, result.Error
}

func (r *LinkRepository) AddClick(ctx context.Context, click *models.Click) error {
	return r.db.WithContext(ctx).Create(click).Error
}

func (r *LinkRepository) ListClicks(ctx context.Context, slug string, limit int) ([]models.Click, error) {
	var clicks []models.Click
	err := r.db.WithContext(ctx).
		Where("link_slug = ?", slug).
		Order("timestamp desc").
		Limit(limit).
		Find(&clicks).Error
	return clicks, err
}

func (r *LinkRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Link, error) {
	var links []models.Link
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at desc").
		Find(&links).Error
	return links, err
}

func (r *LinkRepository) ListAll(ctx context.Context) ([]models.Link, error) {
	var links []models.Link
	err := r.db.WithContext(ctx).Order("created_at desc").Find(&links).Error
	return links, err
}

func (r *LinkRepository) DeleteByOwner(ctx context.Context, ownerID string) ([]string, error) {
	var slugs []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Link{}).Where("owner_id = ?", ownerID).Pluck("slug", &slugs).Error; err != nil {
			return err
		}
		if len(slugs) == 0 {
			return nil
		}
		if err := tx.Where("slug IN ?", slugs).Delete(&models.Link{}).Error; err != nil {
			return err
		}
		return tx.Where("link_slug IN ?", slugs).Delete(&models.Click{}).Error
	})
	if err != nil {
		return nil, err
	}
	return slugs, nil
}
