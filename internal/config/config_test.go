package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.Store.Backend != "sheets" || cfg.Store.HeaderRows != 1 {
		t.Fatalf("unexpected store defaults: %+v", cfg.Store)
	}
	if cfg.QR.Size != 300 || cfg.QR.Margin != 10 || cfg.QR.Level != "H" || cfg.QR.Payload != "id" {
		t.Fatalf("unexpected qr defaults: %+v", cfg.QR)
	}
	if cfg.Assets.BottomMargin != 470 || cfg.Assets.NameY != 175 {
		t.Fatalf("unexpected asset defaults: %+v", cfg.Assets)
	}
	if cfg.Relay.Timeout != 10*time.Second {
		t.Fatalf("Relay.Timeout = %v", cfg.Relay.Timeout)
	}
	if cfg.ImagePolicy != "always" {
		t.Fatalf("ImagePolicy = %q", cfg.ImagePolicy)
	}
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	content := "STORE_BACKEND=file\nQR_PAYLOAD=url\nQR_SCAN_BASE_URL=https://example.test/scan/\nRELAY_TIMEOUT=3s\n"
	if err := os.WriteFile(envFile, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("ENV_FILE", envFile)
	t.Setenv("IMAGE_POLICY", "on_change")
	t.Cleanup(func() {
		for _, key := range []string{"STORE_BACKEND", "QR_PAYLOAD", "QR_SCAN_BASE_URL", "RELAY_TIMEOUT"} {
			os.Unsetenv(key)
		}
	})

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Store.Backend != "file" {
		t.Fatalf("Store.Backend = %q", cfg.Store.Backend)
	}
	if cfg.QR.Payload != "url" || cfg.QR.ScanBaseURL != "https://example.test/scan/" {
		t.Fatalf("unexpected qr config: %+v", cfg.QR)
	}
	if cfg.Relay.Timeout != 3*time.Second {
		t.Fatalf("Relay.Timeout = %v", cfg.Relay.Timeout)
	}
	if cfg.ImagePolicy != "on_change" {
		t.Fatalf("ImagePolicy = %q", cfg.ImagePolicy)
	}
}
