package cli

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"bilancio/internal/config"
	applog "bilancio/internal/log"
)

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := SetupLogger(&config.Config{LogLevel: "debug", LogFormat: "json"}, applog.ComponentWorker)
	if logger.Component() != applog.ComponentWorker {
		t.Fatalf("unexpected component %q", logger.Component())
	}
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug level should be enabled on the default logger")
	}

	SetupLogger(&config.Config{LogLevel: "nonsense"}, applog.ComponentApp)
	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("unknown level should fall back to info")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "")
	// godotenv never overrides a variable that exists, even when empty.
	t.Setenv("DATA_BACKEND", "")
	os.Unsetenv("DATA_BACKEND")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("DATA_BACKEND=memory\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DataBackend != "memory" {
		t.Fatalf(".env should be applied, got backend %q", cfg.DataBackend)
	}

	t.Setenv("PORT", "not-a-port")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected validation error")
	}
}
