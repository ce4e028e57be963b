package api

import (
	"errors"
	"net/http"

	"wedding-invites/internal/guestbook"
	"wedding-invites/internal/session"

	"github.com/gin-gonic/gin"
)

const relayStatusHeader = "X-Relay-Status"

func (s *Server) listMessages(c *gin.Context) {
	messages, res := s.guestbook.FetchAll(c.Request.Context())
	c.Header(relayStatusHeader, string(res.Status))
	RespondSuccess(c, messages)
}

func (s *Server) submitMessage(c *gin.Context) {
	var msg guestbook.Message
	if err := c.ShouldBind(&msg); err != nil {
		RespondError(c, "invalid body", http.StatusBadRequest)
		return
	}

	id := s.sessionID(c)
	sess, err := s.sessions.Load(c.Request.Context(), id)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to load session")
		sess = &guestbook.Session{}
	}

	res := s.guestbook.Submit(c.Request.Context(), sess, msg)
	c.Header(relayStatusHeader, string(res.Status))

	switch res.Status {
	case guestbook.StatusOK:
		if err := s.sessions.Save(c.Request.Context(), id, sess); err != nil {
			s.log.Warn().Err(err).Msg("Failed to save session")
		}
		c.JSON(http.StatusCreated, gin.H{"status": res.Status})
	case guestbook.StatusAlreadySent:
		RespondError(c, "a message was already sent from this browser", http.StatusConflict)
	default:
		switch {
		case errors.Is(res.Cause, guestbook.ErrEmptyMessage):
			RespondError(c, res.Cause.Error(), http.StatusBadRequest)
		case errors.Is(res.Cause, guestbook.ErrNotConfigured):
			RespondError(c, res.Cause.Error(), http.StatusServiceUnavailable)
		default:
			RespondError(c, "guestbook is unavailable", http.StatusBadGateway)
		}
	}
}

// sessionID returns the visitor's session id, issuing a cookie when it is
// missing or malformed.
func (s *Server) sessionID(c *gin.Context) string {
	if id, err := c.Cookie(session.CookieName); err == nil && session.ValidID(id) {
		return id
	}
	id := session.NewID()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(session.CookieName, id, int(s.cfg.SessionTTL.Seconds()), "/", "", s.cfg.SecureCookie, true)
	return id
}
