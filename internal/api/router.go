// Package api exposes the invite and guestbook services over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"wedding-invites/internal/guestbook"
	"wedding-invites/internal/invites"
	"wedding-invites/internal/models"
	"wedding-invites/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type InviteService interface {
	Add(ctx context.Context, in invites.AddInput) (models.Invite, error)
	Update(ctx context.Context, uniqueID string, in invites.UpdateInput) (models.Invite, error)
	Delete(ctx context.Context, uniqueID string) error
	List(ctx context.Context) ([]models.Invite, error)
	ListCheckedIn(ctx context.Context) ([]models.Invite, error)
	FindByCode(ctx context.Context, code string) (models.Invite, error)
	CheckIn(ctx context.Context, code string) (models.Invite, error)
	Backfill(ctx context.Context) (invites.BackfillReport, error)
}

type Guestbook interface {
	Submit(ctx context.Context, sess *guestbook.Session, msg guestbook.Message) guestbook.Result
	FetchAll(ctx context.Context) ([]guestbook.Message, guestbook.Result)
}

type Deliverer interface {
	SendInvitation(ctx context.Context, code string) (models.Invite, error)
}

type Config struct {
	// AssetsDir is served read-only under AssetsRoute.
	AssetsDir   string
	AssetsRoute string

	AdminUser     string
	AdminPassword string

	SessionTTL   time.Duration
	SecureCookie bool
}

type Server struct {
	cfg       Config
	invites   InviteService
	guestbook Guestbook
	sessions  session.Store
	delivery  Deliverer
	log       zerolog.Logger
}

func NewServer(cfg Config, inv InviteService, gb Guestbook, sessions session.Store, logger zerolog.Logger) *Server {
	if cfg.AssetsRoute == "" {
		cfg.AssetsRoute = "/assets/docs"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * 24 * time.Hour
	}
	return &Server{
		cfg:       cfg,
		invites:   inv,
		guestbook: gb,
		sessions:  sessions,
		log:       logger.With().Str("component", "API").Logger(),
	}
}

// SetDelivery enables POST /api/invites/:id/send.
func (s *Server) SetDelivery(d Deliverer) {
	s.delivery = d
}

// Router wires all routes and middlewares.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(s.log))
	r.Use(CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		RespondSuccess(c, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if s.cfg.AssetsDir != "" {
		r.Static(s.cfg.AssetsRoute, s.cfg.AssetsDir)
	}

	api := r.Group("/api")

	// Public guestbook
	api.GET("/messages", s.listMessages)
	api.POST("/messages", s.submitMessage)

	admin := api.Group("/invites")
	if s.cfg.AdminUser != "" && s.cfg.AdminPassword != "" {
		admin.Use(gin.BasicAuth(gin.Accounts{s.cfg.AdminUser: s.cfg.AdminPassword}))
	}
	admin.GET("", s.listInvites)
	admin.GET("/entrants", s.listEntrants)
	admin.POST("", s.addInvite)
	admin.POST("/backfill", s.backfill)
	admin.PUT("/:id", s.updateInvite)
	admin.DELETE("/:id", s.deleteInvite)
	admin.POST("/:id/send", s.sendInvite)
	admin.GET("/scan/:code", s.scan)
	admin.POST("/scan/:code/check-in", s.checkIn)

	r.NoRoute(func(c *gin.Context) {
		RespondError(c, "not found", http.StatusNotFound)
	})

	return r
}
