package models

import (
	"time"
)

// AuditLog is one administrative or lifecycle event. PerformedBy holds the subject id or
// "guest"; TargetID holds a slug or a user id.
type AuditLog struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Action      string    `gorm:"size:50;not null;index" json:"action"`
	PerformedBy string    `gorm:"size:128" json:"performedBy"`
	ActorEmail  string    `gorm:"size:255" json:"actorEmail"`
	TargetID    string    `gorm:"size:128" json:"targetId"`
	Details     string    `gorm:"type:text" json:"details"`
	IPAddress   string    `gorm:"size:45" json:"ipAddress"`
	UserAgent   string    `gorm:"size:255" json:"userAgent"`
	Timestamp   time.Time `gorm:"index" json:"timestamp"`
}
