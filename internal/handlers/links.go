package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Ashutosh-1945/GateKeeper/internal/services"

	"github.com/gin-gonic/gin"
)

type createLinkRequest struct {
	OriginalURL   string     `json:"originalUrl" binding:"required"`
	CustomSlug    string     `json:"customSlug"`
	Password      string     `json:"password"`
	AllowedDomain string     `json:"allowedDomain"`
	ExpiresAt     *time.Time `json:"expiresAt"`
	MaxClicks     *int       `json:"maxClicks"`
	Tags          []string   `json:"tags"`
}

type unlockRequest struct {
	Password string `json:"password"`
}

type unlockIdentityRequest struct {
	IDToken string `json:"idToken"`
}

func (h *Handler) CreateLink(c *gin.Context) {
	var req createLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Original URL is required"})
		return
	}

	res, err := h.linkService.CreateLink(c.Request.Context(), services.CreateLinkInput{
		TargetURL:     req.OriginalURL,
		CustomSlug:    req.CustomSlug,
		Owner:         actorFrom(c),
		Password:      req.Password,
		AllowedDomain: req.AllowedDomain,
		ExpiresAt:     req.ExpiresAt,
		MaxClicks:     req.MaxClicks,
		Tags:          req.Tags,
		Caller:        callerFrom(c),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"slug": res.Slug, "shortLink": res.ShortLink})
}

func (h *Handler) CheckAccess(c *gin.Context) {
	res, err := h.accessGate.CheckAccess(c.Request.Context(), c.Param("slug"), callerFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondAccess(c, res)
}

func (h *Handler) UnlockWithPassword(c *gin.Context) {
	var req unlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password is required"})
		return
	}

	res, err := h.accessGate.UnlockWithPassword(c.Request.Context(), c.Param("slug"), req.Password, callerFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondAccess(c, res)
}

// UnlockWithIdentity takes the provider token from the body, or from the
// Authorization header when the client is already signed in.
func (h *Handler) UnlockWithIdentity(c *gin.Context) {
	var req unlockIdentityRequest
	// The body is optional; a signed-in client can rely on the Authorization header.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	token := strings.TrimSpace(req.IDToken)
	if token == "" {
		token = bearerToken(c)
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Identity token is required"})
		return
	}

	res, err := h.accessGate.UnlockWithIdentity(c.Request.Context(), c.Param("slug"), token, callerFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondAccess(c, res)
}

func (h *Handler) respondAccess(c *gin.Context, res *services.AccessResult) {
	switch res.Decision {
	case services.RequiresPassword:
		c.JSON(http.StatusOK, gin.H{"protected": true, "type": "password"})
	case services.RequiresDomainVerification:
		c.JSON(http.StatusOK, gin.H{"protected": true, "type": "domain", "allowedDomain": res.RequiredDomain})
	default:
		c.JSON(http.StatusOK, gin.H{"originalUrl": res.TargetURL})
	}
}
