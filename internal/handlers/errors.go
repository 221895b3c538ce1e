package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Ashutosh-1945/GateKeeper/internal/services"

	"github.com/gin-gonic/gin"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{services.ErrValidation, http.StatusBadRequest},
	{services.ErrNotFound, http.StatusNotFound},
	{services.ErrGone, http.StatusGone},
	{services.ErrAliasTaken, http.StatusConflict},
	{services.ErrWrongSecret, http.StatusUnauthorized},
	{services.ErrInvalidIdentity, http.StatusUnauthorized},
	{services.ErrDomainMismatch, http.StatusForbidden},
	{services.ErrForbidden, http.StatusForbidden},
	{services.ErrStoreUnavailable, http.StatusServiceUnavailable},
	{services.ErrSlugSpace, http.StatusServiceUnavailable},
	{context.DeadlineExceeded, http.StatusServiceUnavailable},
}

// respondError is the single place service errors become HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	for _, e := range errorStatus {
		if !errors.Is(err, e.err) {
			continue
		}
		msg := e.err.Error()
		switch e.status {
		case http.StatusServiceUnavailable:
			h.logger.Error("Store unavailable", "path", c.FullPath(), "error", err)
			msg = "Service temporarily unavailable, please retry"
		case http.StatusBadRequest:
			msg = err.Error()
		}

		var mismatch *services.DomainMismatchError
		if errors.As(err, &mismatch) {
			msg = mismatch.Error()
		}

		c.JSON(e.status, gin.H{"error": msg})
		return
	}

	h.logger.Error("Unhandled error", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
}
