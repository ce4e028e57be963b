package api

import (
	"errors"
	"net/http"

	"wedding-invites/internal/invites"

	"github.com/gin-gonic/gin"
)

func (s *Server) listInvites(c *gin.Context) {
	list, err := s.invites.List(c.Request.Context())
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	RespondSuccess(c, list)
}

func (s *Server) listEntrants(c *gin.Context) {
	list, err := s.invites.ListCheckedIn(c.Request.Context())
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	RespondSuccess(c, list)
}

func (s *Server) addInvite(c *gin.Context) {
	var in invites.AddInput
	if err := c.ShouldBind(&in); err != nil {
		RespondError(c, "invalid body", http.StatusBadRequest)
		return
	}

	invite, err := s.invites.Add(c.Request.Context(), in)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invite)
}

func (s *Server) updateInvite(c *gin.Context) {
	var in invites.UpdateInput
	if err := c.ShouldBind(&in); err != nil {
		RespondError(c, "invalid body", http.StatusBadRequest)
		return
	}

	invite, err := s.invites.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	RespondSuccess(c, invite)
}

func (s *Server) deleteInvite(c *gin.Context) {
	id := c.Param("id")
	if err := s.invites.Delete(c.Request.Context(), id); err != nil {
		s.respondServiceError(c, err)
		return
	}
	RespondSuccess(c, gin.H{"deleted": id})
}

func (s *Server) scan(c *gin.Context) {
	invite, err := s.invites.FindByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	RespondSuccess(c, invite)
}

func (s *Server) checkIn(c *gin.Context) {
	invite, err := s.invites.CheckIn(c.Request.Context(), c.Param("code"))
	if errors.Is(err, invites.ErrAlreadyCheckedIn) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "invite": invite})
		return
	}
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	RespondSuccess(c, invite)
}

func (s *Server) backfill(c *gin.Context) {
	report, err := s.invites.Backfill(c.Request.Context())
	if err != nil {
		// report the rows done before the failure along with the error
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "report": report})
		return
	}
	RespondSuccess(c, report)
}

func (s *Server) sendInvite(c *gin.Context) {
	if s.delivery == nil {
		RespondError(c, "whatsapp delivery is disabled", http.StatusServiceUnavailable)
		return
	}

	invite, err := s.delivery.SendInvitation(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	RespondSuccess(c, gin.H{"sent": invite.UniqueID})
}
