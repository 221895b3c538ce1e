package handlers

import (
	"net/http"
	"strings"

	"github.com/Ashutosh-1945/GateKeeper/internal/services"

	"github.com/gin-gonic/gin"
)

const (
	ctxActor    = "actor"
	ctxIdentity = "identity"
)

// IdentityMiddleware resolves an optional bearer token into an actor. A missing or
// invalid token leaves the request as a guest; RequireAuth decides whether that matters.
func (h *Handler) IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ctxActor, services.GuestActor())

		token := bearerToken(c)
		if token == "" || h.verifier == nil {
			c.Next()
			return
		}

		identity, err := h.verifier.Verify(c.Request.Context(), token)
		if err != nil {
			h.logger.Debug("Ignoring invalid bearer token", "path", c.FullPath(), "error", err)
			c.Next()
			return
		}

		c.Set(ctxIdentity, identity)
		c.Set(ctxActor, services.ActorFor(identity, h.adminPolicy))
		c.Next()
	}
}

func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actorFrom(c).IsGuest() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

func (h *Handler) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !actorFrom(c).Admin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

func (h *Handler) RateLimitMiddleware(limiter *services.IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			return
		}
		c.Next()
	}
}

// CORSMiddleware lets the configured web clients call the API with bearer tokens.
func (h *Handler) CORSMiddleware() gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(h.cfg.CORSOrigins))
	allowAll := false
	for _, o := range h.cfg.CORSOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			allowAll = true
		}
		if o != "" {
			allowed[o] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := allowed[origin]; ok || allowAll {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
				c.Header("Access-Control-Max-Age", "600")
				c.Header("Vary", "Origin")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func actorFrom(c *gin.Context) services.Actor {
	if v, ok := c.Get(ctxActor); ok {
		if actor, ok := v.(services.Actor); ok {
			return actor
		}
	}
	return services.GuestActor()
}

// callerFrom collects what the gate may look at. Prefetch hints arrive under several names.
func callerFrom(c *gin.Context) services.Caller {
	var purpose []string
	for _, name := range []string{"Purpose", "Sec-Purpose", "X-Purpose", "X-Moz"} {
		if v := c.GetHeader(name); v != "" {
			purpose = append(purpose, v)
		}
	}
	return services.Caller{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referrer:  c.Request.Referer(),
		Purpose:   strings.Join(purpose, ";"),
	}
}
