package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (h *Handler) AdminListLinks(c *gin.Context) {
	links, err := h.linkService.ListAllLinks(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.viewLinks(links))
}

func (h *Handler) AdminLinkDetails(c *gin.Context) {
	details, err := h.linkService.LinkDetails(c.Request.Context(), c.Param("slug"), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"link":   h.viewLink(details.Link, true),
		"clicks": details.Clicks,
	})
}

func (h *Handler) AdminUpdateLink(c *gin.Context) {
	h.editLink(c)
}

func (h *Handler) AdminDeleteLink(c *gin.Context) {
	h.DeleteLink(c)
}

// AdminDeleteOwnerLinks removes every link of one account. The account itself lives with the identity provider.
func (h *Handler) AdminDeleteOwnerLinks(c *gin.Context) {
	n, err := h.linkService.DeleteOwnerLinks(c.Request.Context(), c.Param("uid"), actorFrom(c), callerFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "linksDeleted": n})
}

func (h *Handler) AdminStats(c *gin.Context) {
	stats, err := h.linkService.Stats(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) AdminLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	logs, err := h.auditService.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to read audit logs", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable, please retry"})
		return
	}
	c.JSON(http.StatusOK, logs)
}
