package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	Production bool   `env:"PRODUCTION" envDefault:"false"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	AdminCLI   bool   `env:"ADMIN_CLI" envDefault:"false"`

	AdminUser     string `env:"ADMIN_USER"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	Store   StoreConfig
	Assets  AssetsConfig
	QR      QRConfig `envPrefix:"QR_"`
	Relay   RelayConfig
	Session SessionConfig

	// ImagePolicy is "always" or "on_change".
	ImagePolicy string `env:"IMAGE_POLICY" envDefault:"always"`

	WhatsAppEnabled bool   `env:"WHATSAPP_ENABLED" envDefault:"false"`
	WhatsAppDataDir string `env:"WHATSAPP_DATA_DIR" envDefault:"data"`
	WeddingDate     string `env:"WEDDING_DATE" envDefault:"Saturday, January 1, 2025"`
	WeddingLocation string `env:"WEDDING_LOCATION" envDefault:"Venue TBD"`
	BrideName       string `env:"BRIDE_NAME" envDefault:"Bride"`
	GroomName       string `env:"GROOM_NAME" envDefault:"Groom"`
}

// StoreConfig selects and configures the invite row store.
type StoreConfig struct {
	// Backend is "sheets" or "file".
	Backend         string `env:"STORE_BACKEND" envDefault:"sheets"`
	File            string `env:"STORE_FILE" envDefault:"data/invites.json"`
	SpreadsheetID   string `env:"SPREADSHEET_ID"`
	SheetName       string `env:"SHEET_NAME" envDefault:"Invites"`
	SheetGID        int64  `env:"SHEET_GID" envDefault:"0"`
	HeaderRows      int    `env:"SHEET_HEADER_ROWS" envDefault:"1"`
	CredentialsFile string `env:"GOOGLE_CREDENTIALS_FILE" envDefault:"config/credentials/google-sheet-credentials.json"`
}

type AssetsConfig struct {
	Dir           string  `env:"ASSETS_DIR" envDefault:"public/assets/docs"`
	TemplateFile  string  `env:"TEMPLATE_FILE" envDefault:"public/assets/docs/modele_invitation.png"`
	FontFile      string  `env:"FONT_FILE"`
	PublicBaseURL string  `env:"PUBLIC_BASE_URL" envDefault:"/assets/docs/"`
	BottomMargin  int     `env:"QR_BOTTOM_MARGIN" envDefault:"470"`
	NameY         int     `env:"NAME_Y" envDefault:"175"`
	NameColor     string  `env:"NAME_COLOR" envDefault:"#425743"`
	FontSize      float64 `env:"FONT_SIZE" envDefault:"34"`
}

type QRConfig struct {
	Size   int    `env:"SIZE" envDefault:"300"`
	Margin int    `env:"MARGIN" envDefault:"10"`
	Level  string `env:"LEVEL" envDefault:"H"`
	// Payload is "id" (raw unique id) or "url" (ScanBaseURL + id).
	Payload     string `env:"PAYLOAD" envDefault:"id"`
	ScanBaseURL string `env:"SCAN_BASE_URL"`
}

type RelayConfig struct {
	GuestbookURL string        `env:"GUESTBOOK_URL"`
	Timeout      time.Duration `env:"RELAY_TIMEOUT" envDefault:"10s"`
}

type SessionConfig struct {
	RedisURL string        `env:"REDIS_URL"`
	TTL      time.Duration `env:"SESSION_TTL" envDefault:"720h"`
}

// LoadConfig loads configuration from an optional .env file and environment variables
func LoadConfig() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse env config: %w", err)
	}
	return cfg, nil
}
