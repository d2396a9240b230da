package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/btscanner/internal/discovery"
	"github.com/nerrad567/btscanner/internal/infrastructure/config"
	"github.com/nerrad567/btscanner/internal/infrastructure/database"
	"github.com/nerrad567/btscanner/internal/infrastructure/logging"
	"github.com/nerrad567/btscanner/internal/session"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("BTSCANNER_CONFIG", path)
	return path
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("BTSCANNER_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("err = %v, want loading config error", err)
	}
}

// TestRun_InvalidBackend verifies validation errors stop startup.
func TestRun_InvalidBackend(t *testing.T) {
	writeConfig(t, `
radio:
  backend: carrier-pigeon
logging:
  output: stderr
ui:
  mode: headless
permissions:
  prompt: deny
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil || !strings.Contains(err.Error(), "radio.backend") {
		t.Fatalf("err = %v, want radio.backend validation error", err)
	}
}

// TestRun_HeadlessRadioUnavailable verifies a missing radio ends the session
// without failing the process, and the snapshot is still written.
func TestRun_HeadlessRadioUnavailable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "btscanner.db")
	writeConfig(t, `
session:
  id: test
  persist: true
radio:
  backend: fake
  fake:
    available: false
database:
  path: `+dbPath+`
logging:
  level: error
  output: stderr
ui:
  mode: headless
permissions:
  prompt: grant
`)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("run() waited for the deadline instead of returning on session end")
	}

	db, err := database.Open(database.Config{Path: dbPath})
	if err != nil {
		t.Fatalf("reopening database: %v", err)
	}
	defer db.Close()

	blob, err := session.NewSQLiteStore(db.DB).Load(context.Background(), "test")
	if err != nil {
		t.Fatalf("loading snapshot: %v", err)
	}
	devices, err := discovery.DecodeSnapshot(blob)
	if err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("devices = %d, want 0", len(devices))
	}
}

// TestRun_HeadlessUntilCancelled verifies run shuts down cleanly on signal.
func TestRun_HeadlessUntilCancelled(t *testing.T) {
	writeConfig(t, `
session:
  persist: false
radio:
  backend: fake
  fake:
    available: true
    enabled: true
    devices:
      - address: "AA:BB:CC:DD:EE:01"
        name: Phone
logging:
  level: error
  output: stderr
ui:
  mode: headless
permissions:
  prompt: grant
`)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}
}

// TestGetConfigPath verifies the environment override.
func TestGetConfigPath(t *testing.T) {
	t.Setenv("BTSCANNER_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("BTSCANNER_CONFIG", "/etc/btscanner.yaml")
	if got := getConfigPath(); got != "/etc/btscanner.yaml" {
		t.Errorf("getConfigPath() = %q, want /etc/btscanner.yaml", got)
	}
}

// TestDefaultConfigFile verifies the shipped config loads.
func TestDefaultConfigFile(t *testing.T) {
	cfg, err := config.Load(filepath.Join("..", "..", defaultConfigPath))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Radio.Backend != config.RadioBackendBlueZ {
		t.Errorf("backend = %q, want bluez", cfg.Radio.Backend)
	}
	if len(cfg.Radio.Fake.Devices) != 3 {
		t.Errorf("fake devices = %d, want 3", len(cfg.Radio.Fake.Devices))
	}
}

// TestOpenRadio verifies backend selection.
func TestOpenRadio(t *testing.T) {
	log := testLogger()

	t.Run("fake", func(t *testing.T) {
		cfg := &config.Config{Radio: config.RadioConfig{
			Backend: config.RadioBackendFake,
			Fake: config.FakeRadioConfig{
				Available: true,
				Enabled:   true,
				Devices:   []config.FakeDeviceConfig{{Address: "AA:BB:CC:DD:EE:01"}},
			},
		}}
		r, err := openRadio(context.Background(), cfg, log)
		if err != nil {
			t.Fatalf("openRadio() error = %v", err)
		}
		defer r.Close()
		if !r.Available() || !r.Enabled() {
			t.Errorf("available=%v enabled=%v, want both true", r.Available(), r.Enabled())
		}
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := &config.Config{Radio: config.RadioConfig{Backend: "smoke-signals"}}
		if _, err := openRadio(context.Background(), cfg, log); err == nil {
			t.Error("openRadio() should reject unknown backend")
		}
	})
}

// TestHealthCheck_Disabled verifies nothing is checked when nothing is open.
func TestHealthCheck_Disabled(t *testing.T) {
	if err := healthCheck(context.Background(), nil, nil, nil); err != nil {
		t.Errorf("healthCheck() = %v, want nil", err)
	}
}

// TestHealthCheck_Database verifies an open database is checked.
func TestHealthCheck_Database(t *testing.T) {
	db, err := database.Open(database.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := healthCheck(context.Background(), db, nil, nil); err != nil {
		t.Errorf("healthCheck() = %v, want nil", err)
	}

	db.Close()
	if err := healthCheck(context.Background(), db, nil, nil); err == nil {
		t.Error("healthCheck() should fail on a closed database")
	}
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Output: "stderr"}, "test")
}
