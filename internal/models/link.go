package models

import (
	"time"
)

// GuestOwner marks links created without a verified identity.
const GuestOwner = "guest"

type Link struct {
	Slug       string     `gorm:"primaryKey;size:64" json:"slug"`
	TargetURL  string     `gorm:"not null;type:text" json:"targetUrl"`
	OwnerID    string     `gorm:"not null;size:128;index" json:"ownerId"`
	Tags       []string   `gorm:"serializer:json" json:"tags"`
	Security   Security   `gorm:"type:text" json:"security"`
	ExpiresAt  *time.Time `gorm:"index" json:"expiresAt,omitempty"`
	MaxClicks  *int       `json:"maxClicks,omitempty"`
	ClickCount int64      `gorm:"not null;default:0" json:"clickCount"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func (Link) TableName() string {
	return "links"
}

func (l *Link) IsGuest() bool {
	return l.OwnerID == "" || l.OwnerID == GuestOwner
}

// IsDead reports whether the link has expired or used up its click quota.
// Both the access gate and the reaper rely on this predicate.
func (l *Link) IsDead(now time.Time) bool {
	return l.IsExpired(now) || l.IsBurned()
}

func (l *Link) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

func (l *Link) IsBurned() bool {
	return l.MaxClicks != nil && l.ClickCount >= int64(*l.MaxClicks)
}
