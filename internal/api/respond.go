package api

import (
	"errors"
	"net/http"

	"wedding-invites/internal/handler"
	"wedding-invites/internal/invites"
	"wedding-invites/internal/storage"
	"wedding-invites/internal/whatsapp"

	"github.com/gin-gonic/gin"
)

func RespondError(c *gin.Context, msg string, code int) {
	c.JSON(code, gin.H{"error": msg})
}

func RespondSuccess(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, invites.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, invites.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, invites.ErrAlreadyCheckedIn):
		return http.StatusConflict
	case errors.Is(err, handler.ErrNoImage),
		errors.Is(err, handler.ErrNoNumber),
		errors.Is(err, whatsapp.ErrNotOnWhatsApp):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrUnavailable),
		errors.Is(err, whatsapp.ErrNotConnected):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError maps a service error to its status. Internal errors are
// logged and not echoed.
func (s *Server) respondServiceError(c *gin.Context, err error) {
	code := statusFor(err)

	var verr *invites.ValidationError
	if errors.As(err, &verr) {
		c.JSON(code, gin.H{"error": verr.Error(), "fields": verr.Fields})
		return
	}

	if code >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
		RespondError(c, http.StatusText(code), code)
		return
	}
	RespondError(c, err.Error(), code)
}
