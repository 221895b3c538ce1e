package models

import (
	"time"
)

const DirectReferrer = "direct"

// Click is an append-only analytics record for a granted access. It is never consulted by the gate.
type Click struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	LinkSlug    string    `gorm:"not null;size:64;index" json:"linkSlug"`
	Timestamp   time.Time `json:"timestamp"`
	Country     string    `gorm:"size:100;default:'Unknown'" json:"country"`
	City        string    `gorm:"size:100;default:'Unknown'" json:"city"`
	Region      string    `gorm:"size:100;default:'Unknown'" json:"region"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	Referrer    string    `gorm:"size:255;default:'direct'" json:"referrer"`
	UserAgent   string    `gorm:"size:255" json:"userAgent"`
	Browser     string    `gorm:"size:50" json:"browser"`
	OS          string    `gorm:"size:100" json:"os"`
	DeviceType  string    `gorm:"size:50" json:"deviceType"`
	VisitorHash string    `gorm:"size:32" json:"visitorHash"`

	// Raw address, only held in memory until the stats worker hashes it.
	IPAddress string `gorm:"-" json:"-"`
}
