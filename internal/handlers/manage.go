package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Ashutosh-1945/GateKeeper/internal/services"

	"github.com/gin-gonic/gin"
)

// optionalInt tells an absent field from an explicit null, which clears the value.
type optionalInt struct {
	Set   bool
	Value *int
}

func (o *optionalInt) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		return nil
	}
	var v int
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

func (o optionalInt) patch() *int {
	if !o.Set {
		return nil
	}
	if o.Value == nil {
		zero := 0
		return &zero
	}
	return o.Value
}

type editLinkRequest struct {
	OriginalURL   *string     `json:"originalUrl"`
	TargetURL     *string     `json:"targetUrl"`
	Tags          *[]string   `json:"tags"`
	NewSlug       *string     `json:"newSlug"`
	Password      *string     `json:"password"`
	AllowedDomain *string     `json:"allowedDomain"`
	TTLMinutes    optionalInt `json:"ttlMinutes"`
	MaxClicks     optionalInt `json:"maxClicks"`
}

func (r editLinkRequest) toPatch() services.LinkPatch {
	target := r.OriginalURL
	if target == nil {
		target = r.TargetURL
	}
	return services.LinkPatch{
		TargetURL:     target,
		Tags:          r.Tags,
		NewSlug:       r.NewSlug,
		Password:      r.Password,
		AllowedDomain: r.AllowedDomain,
		TTLMinutes:    r.TTLMinutes.patch(),
		MaxClicks:     r.MaxClicks.patch(),
	}
}

func (h *Handler) Dashboard(c *gin.Context) {
	links, err := h.linkService.ListOwnerLinks(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.viewLinks(links))
}

func (h *Handler) EditLink(c *gin.Context) {
	h.editLink(c)
}

func (h *Handler) editLink(c *gin.Context) {
	var req editLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	link, err := h.linkService.EditLink(c.Request.Context(), c.Param("slug"), req.toPatch(), actorFrom(c), callerFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "link": h.viewLink(link, false)})
}

func (h *Handler) DeleteLink(c *gin.Context) {
	if err := h.linkService.DeleteLink(c.Request.Context(), c.Param("slug"), actorFrom(c), callerFrom(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Link destroyed"})
}

func (h *Handler) LinkClicks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	clicks, err := h.linkService.LinkClicks(c.Request.Context(), c.Param("slug"), actorFrom(c), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, clicks)
}
