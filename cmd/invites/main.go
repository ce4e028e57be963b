package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"wedding-invites/internal/api"
	"wedding-invites/internal/config"
	"wedding-invites/internal/guestbook"
	"wedding-invites/internal/handler"
	"wedding-invites/internal/invites"
	"wedding-invites/internal/qr"
	"wedding-invites/internal/render"
	"wedding-invites/internal/session"
	"wedding-invites/internal/storage"
	"wedding-invites/internal/whatsapp"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("Failed to open invite store")
	}

	issuer, err := qr.NewIssuer(qr.Config{
		Size:        cfg.QR.Size,
		Margin:      cfg.QR.Margin,
		Level:       cfg.QR.Level,
		Foreground:  qr.DefaultConfig().Foreground,
		Background:  qr.DefaultConfig().Background,
		Payload:     qr.PayloadMode(cfg.QR.Payload),
		ScanBaseURL: cfg.QR.ScanBaseURL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid QR configuration")
	}

	nameColor, err := render.ParseHexColor(cfg.Assets.NameColor)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid NAME_COLOR")
	}
	renderer, err := render.NewRenderer(render.Config{
		TemplateFile:  cfg.Assets.TemplateFile,
		FontFile:      cfg.Assets.FontFile,
		Dir:           cfg.Assets.Dir,
		PublicBaseURL: cfg.Assets.PublicBaseURL,
		BottomMargin:  cfg.Assets.BottomMargin,
		NameY:         cfg.Assets.NameY,
		FontSize:      cfg.Assets.FontSize,
		NameColor:     nameColor,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize renderer")
	}

	policy, err := invites.ParseImagePolicy(cfg.ImagePolicy)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid IMAGE_POLICY")
	}
	inviteService, err := invites.NewService(store, issuer, renderer, logger,
		invites.WithHeaderRows(cfg.Store.HeaderRows),
		invites.WithImagePolicy(policy),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize invite service")
	}

	sessions, closeSessions := openSessions(ctx, cfg, logger)
	defer closeSessions()

	relay := guestbook.NewRelay(cfg.Relay.GuestbookURL, cfg.Relay.Timeout, logger)

	server := api.NewServer(api.Config{
		AssetsDir:     cfg.Assets.Dir,
		AssetsRoute:   assetsRoute(cfg.Assets.PublicBaseURL),
		AdminUser:     cfg.AdminUser,
		AdminPassword: cfg.AdminPassword,
		SessionTTL:    cfg.Session.TTL,
		SecureCookie:  cfg.Production,
	}, inviteService, relay, sessions, logger)

	var delivery *handler.DeliveryHandler
	if cfg.WhatsAppEnabled {
		wa, err := whatsapp.NewService(ctx, whatsapp.Config{DataDir: cfg.WhatsAppDataDir}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize WhatsApp service")
		}
		logger.Info().Msg("Connecting to WhatsApp...")
		if err := wa.Connect(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to WhatsApp")
		}
		defer wa.Disconnect()

		delivery = handler.NewDeliveryHandler(inviteService, renderer, wa, handler.Config{
			WeddingDate:     cfg.WeddingDate,
			WeddingLocation: cfg.WeddingLocation,
			BrideName:       cfg.BrideName,
			GroomName:       cfg.GroomName,
		}, logger)
		server.SetDelivery(delivery)
	}

	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("HTTP server stopped")
			stop()
		}
	}()

	if cfg.AdminCLI {
		go startCLI(ctx, inviteService, delivery, stop)
	}

	<-ctx.Done()
	logger.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown failed")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Production {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (storage.Store, error) {
	switch cfg.Store.Backend {
	case "file":
		fs, err := storage.NewFileStore(cfg.Store.File)
		if err != nil {
			return nil, err
		}
		logger.Warn().Str("file", cfg.Store.File).Msg("Using local file store")
		return fs, nil
	case "sheets", "":
		ss, err := storage.NewSheetsStore(ctx, storage.SheetsConfig{
			SpreadsheetID:   cfg.Store.SpreadsheetID,
			SheetName:       cfg.Store.SheetName,
			SheetGID:        cfg.Store.SheetGID,
			CredentialsFile: cfg.Store.CredentialsFile,
		}, logger)
		if err != nil {
			return nil, err
		}
		return ss, nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Store.Backend)
	}
}

// openSessions uses Redis when REDIS_URL is set and falls back to memory.
func openSessions(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (session.Store, func()) {
	if cfg.Session.RedisURL == "" {
		return session.NewMemoryStore(cfg.Session.TTL), func() {}
	}

	client, err := session.NewRedisClient(ctx, cfg.Session.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	return session.NewRedisStore(client, cfg.Session.TTL, logger), func() { client.Close() }
}

// assetsRoute is the local path rendered assets are served under.
func assetsRoute(publicBaseURL string) string {
	route := strings.TrimSuffix(publicBaseURL, "/")
	if !strings.HasPrefix(route, "/") {
		return "/assets/docs"
	}
	return route
}
