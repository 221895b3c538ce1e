package handlers

import (
	"net/http"
	"time"

	"github.com/Ashutosh-1945/GateKeeper/internal/services"

	"github.com/gin-gonic/gin"
)

func (h *Handler) SetupRouter(rateLimiter *services.IPRateLimiter) *gin.Engine {
	r := gin.Default()

	r.Use(h.CORSMiddleware())
	r.Use(h.IdentityMiddleware())

	var limited gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if rateLimiter != nil {
		limited = h.RateLimitMiddleware(rateLimiter)
	}

	api := r.Group("/api")
	api.GET("/health", h.Health)

	// Public
	api.POST("/link", limited, h.CreateLink)
	api.GET("/link/:slug", h.CheckAccess)
	api.POST("/link/:slug/unlock", limited, h.UnlockWithPassword)
	api.POST("/link/:slug/unlock-identity", limited, h.UnlockWithIdentity)
	api.GET("/link/:slug/qr", h.LinkQR)

	// Owners
	owner := api.Group("/", h.RequireAuth())
	{
		owner.GET("/dashboard", h.Dashboard)
		owner.PATCH("/link/:slug", h.EditLink)
		owner.DELETE("/link/:slug", h.DeleteLink)
		owner.GET("/link/:slug/clicks", h.LinkClicks)
	}

	admin := api.Group("/admin", h.RequireAuth(), h.RequireAdmin())
	{
		admin.GET("/links", h.AdminListLinks)
		admin.GET("/links/:slug/details", h.AdminLinkDetails)
		admin.PUT("/links/:slug", h.AdminUpdateLink)
		admin.DELETE("/links/:slug", h.AdminDeleteLink)
		admin.DELETE("/users/:uid", h.AdminDeleteOwnerLinks)
		admin.GET("/stats", h.AdminStats)
		admin.GET("/logs", h.AdminLogs)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
	})

	return r
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
