package handlers

import (
	"log/slog"

	"github.com/Ashutosh-1945/GateKeeper/internal/config"
	"github.com/Ashutosh-1945/GateKeeper/internal/services"
)

type Handler struct {
	cfg          config.Config
	logger       *slog.Logger
	linkService  *services.LinkService
	accessGate   *services.AccessGate
	auditService *services.AuditService
	qrService    *services.QRService
	verifier     services.IdentityVerifier
	adminPolicy  services.AdminPolicy
}

func NewHandler(
	cfg config.Config,
	logger *slog.Logger,
	linkService *services.LinkService,
	accessGate *services.AccessGate,
	auditService *services.AuditService,
	qrService *services.QRService,
	verifier services.IdentityVerifier,
	adminPolicy services.AdminPolicy,
) *Handler {
	return &Handler{
		cfg:          cfg,
		logger:       logger,
		linkService:  linkService,
		accessGate:   accessGate,
		auditService: auditService,
		qrService:    qrService,
		verifier:     verifier,
		adminPolicy:  adminPolicy,
	}
}
