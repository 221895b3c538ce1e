package handlers

import (
	"net/http"
	"strconv"

	"github.com/Ashutosh-1945/GateKeeper/internal/services"

	"github.com/gin-gonic/gin"
)

// LinkQR renders the short link, not the target, so scans still pass through the gate.
func (h *Handler) LinkQR(c *gin.Context) {
	slug := c.Param("slug")
	if err := h.linkService.Visitable(c.Request.Context(), slug); err != nil {
		h.respondError(c, err)
		return
	}

	size, _ := strconv.Atoi(c.DefaultQuery("size", "256"))
	opts := services.QROptions{
		Content: h.linkService.ShortLink(slug),
		Size:    size,
		FgColor: c.Query("fg"),
		BgColor: c.Query("bg"),
	}

	if c.Query("format") == "svg" {
		svg, err := h.qrService.GenerateSVG(opts)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.Data(http.StatusOK, "image/svg+xml", []byte(svg))
		return
	}

	png, err := h.qrService.GeneratePNG(opts)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
