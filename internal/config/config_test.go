package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"galarender/internal/pkg/errors"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"RENDER_TOOL", "ENCODE_TOOL", "MOCK_FRAME_DELAY", "RENDER_OUTPUT_DIR",
		"STORAGE_PROVIDER", "STORAGE_LOCAL_ROOT", "STORAGE_PREFIX", "GDRIVE_FOLDER_ID",
		"DATABASE_URL", "REDIS_ADDR", "REPORT_CHANNEL", "LOG_LEVEL", "LOG_FORMAT", "LOG_SOURCE",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Tools.Render != "blender" || cfg.Tools.Encode != "ffmpeg" {
		t.Errorf("unexpected tools: %+v", cfg.Tools)
	}
	if cfg.Tools.FrameDelay != 30*time.Millisecond {
		t.Errorf("expected 30ms frame delay, got %v", cfg.Tools.FrameDelay)
	}
	if cfg.Output.Dir != "/render/output" {
		t.Errorf("expected default output dir, got %q", cfg.Output.Dir)
	}
	if cfg.PublishEnabled() {
		t.Error("expected publishing to be disabled by default")
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
[tools]
render = "/opt/blender/blender"
frame_delay = "5ms"

[storage]
provider = "localfs"
local_root = "/srv/renders"

[report]
redis_addr = "localhost:6379"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Tools.Render != "/opt/blender/blender" {
		t.Errorf("expected render tool from file, got %q", cfg.Tools.Render)
	}
	if cfg.Tools.Encode != "ffmpeg" {
		t.Errorf("expected encode default to survive, got %q", cfg.Tools.Encode)
	}
	if cfg.Tools.FrameDelay != 5*time.Millisecond {
		t.Errorf("expected 5ms, got %v", cfg.Tools.FrameDelay)
	}
	if !cfg.PublishEnabled() || cfg.Storage.LocalRoot != "/srv/renders" {
		t.Errorf("unexpected storage: %+v", cfg.Storage)
	}
	if cfg.Report.Channel != DefaultChannel {
		t.Errorf("expected default channel, got %q", cfg.Report.Channel)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("RENDER_TOOL", "blender-4.1")
	t.Setenv("MOCK_FRAME_DELAY", "0s")
	t.Setenv("DATABASE_URL", "postgres://localhost/gala")

	path := writeConfig(t, "[tools]\nrender = \"/opt/blender\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Tools.Render != "blender-4.1" {
		t.Errorf("expected env override, got %q", cfg.Tools.Render)
	}
	if cfg.Tools.FrameDelay != 0 {
		t.Errorf("expected zero delay, got %v", cfg.Tools.FrameDelay)
	}
	if cfg.Report.DatabaseURL != "postgres://localhost/gala" {
		t.Errorf("expected database url from env, got %q", cfg.Report.DatabaseURL)
	}
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
		if !errors.IsValidation(err) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := Load(writeConfig(t, "[tools]\nrenderer = \"blender\"\n"))
		if !errors.IsValidation(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if !strings.Contains(err.Error(), "tools.renderer") {
			t.Errorf("expected unknown key in message, got %v", err)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := Load(writeConfig(t, "[tools\n"))
		if !errors.IsValidation(err) {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}
