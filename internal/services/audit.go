package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Ashutosh-1945/GateKeeper/internal/models"
	"github.com/Ashutosh-1945/GateKeeper/pkg/utils"

	"gorm.io/gorm"
)

const (
	ActionLinkCreated          = "LINK_CREATED"
	ActionLinkDeleted          = "LINK_DELETED"
	ActionLinkUpdated          = "LINK_UPDATED"
	ActionLinkRenamed          = "LINK_RENAMED"
	ActionLinkSelfDestructed   = "LINK_SELF_DESTRUCTED"
	ActionLinkUnlockFailed     = "LINK_UNLOCK_FAILED"
	ActionAdminDeleteLink      = "ADMIN_DELETE_LINK"
	ActionAdminUpdateLink      = "ADMIN_UPDATE_LINK"
	ActionAdminDeleteUserLinks = "ADMIN_DELETE_USER_LINKS"
	ActionReaperSweep          = "REAPER_SWEEP"
)

// AuditEvent is a fire-and-forget record of something that happened to a link.
type AuditEvent struct {
	Action   string
	Actor    Actor
	TargetID string
	Details  interface{}
	Caller   Caller
}

// AuditSink accepts audit events without reporting back. Callers never wait on it.
type AuditSink interface {
	Record(event AuditEvent)
}

type AuditService struct {
	db      *gorm.DB
	logger  *slog.Logger
	entries chan models.AuditLog
}

func NewAuditService(db *gorm.DB, logger *slog.Logger) *AuditService {
	return &AuditService{
		db:      db,
		logger:  logger,
		entries: make(chan models.AuditLog, 100),
	}
}

func (s *AuditService) Start(ctx context.Context) {
	s.logger.Info("Audit worker starting")
	for {
		select {
		case entry := <-s.entries:
			if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
				s.logger.Error("Failed to write audit log", "action", entry.Action, "error", err)
			}
		case <-ctx.Done():
			s.logger.Info("Audit worker stopping")
			return
		}
	}
}

func (s *AuditService) Record(event AuditEvent) {
	details := ""
	if event.Details != nil {
		if b, err := json.Marshal(event.Details); err == nil {
			details = string(b)
		}
	}

	entry := models.AuditLog{
		ID:          utils.NewID(),
		Action:      event.Action,
		PerformedBy: event.Actor.auditID(),
		ActorEmail:  event.Actor.auditEmail(),
		TargetID:    event.TargetID,
		Details:     details,
		IPAddress:   event.Caller.IPAddress,
		UserAgent:   utils.Truncate(event.Caller.UserAgent, 255),
		Timestamp:   time.Now().UTC(),
	}

	select {
	case s.entries <- entry:
	default:
		s.logger.Warn("Audit channel full, dropping log", "action", event.Action)
	}
}

// Recent returns the newest audit entries first.
func (s *AuditService) Recent(ctx context.Context, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var logs []models.AuditLog
	err := s.db.WithContext(ctx).Order("timestamp desc").Limit(limit).Find(&logs).Error
	return logs, err
}

type discardAudit struct{}

func (discardAudit) Record(AuditEvent) {}
