package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nerrad567/btscanner/internal/permission"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
session:
  id: "bench"
radio:
  backend: fake
  fake:
    interval_ms: 50
    devices:
      - address: "00:11:22:33:44:55"
        name: "Headset"
        bonded: true
      - address: "66:77:88:99:AA:BB"
platform:
  api_level: 30
permissions:
  granted: ["location.coarse"]
  prompt: grant
database:
  path: "/tmp/test.db"
logging:
  output: stdout
ui:
  mode: headless
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Session.ID != "bench" {
		t.Errorf("Session.ID = %q, want %q", cfg.Session.ID, "bench")
	}
	if cfg.Radio.Backend != RadioBackendFake {
		t.Errorf("Radio.Backend = %q, want fake", cfg.Radio.Backend)
	}
	if len(cfg.Radio.Fake.Devices) != 2 || !cfg.Radio.Fake.Devices[0].Bonded {
		t.Errorf("Radio.Fake.Devices = %+v", cfg.Radio.Fake.Devices)
	}
	if !cfg.Radio.Fake.Available {
		t.Error("Radio.Fake.Available default lost when section was given")
	}
	if cfg.Platform.APILevel != 30 {
		t.Errorf("Platform.APILevel = %d, want 30", cfg.Platform.APILevel)
	}
	if got := cfg.GrantedCapabilities(); len(got) != 1 || got[0] != permission.LocationCoarse {
		t.Errorf("GrantedCapabilities() = %v", got)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port default = %d, want 1883", cfg.MQTT.Broker.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
session:
  id: ""
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected validation error for empty session.id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing session id",
			mutate:  func(c *Config) { c.Session.ID = "" },
			wantErr: "session.id",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Radio.Backend = "serial" },
			wantErr: "radio.backend",
		},
		{
			name: "fake device without address",
			mutate: func(c *Config) {
				c.Radio.Backend = RadioBackendFake
				c.Radio.Fake.Devices = []FakeDeviceConfig{{Name: "x"}}
			},
			wantErr: "radio.fake.devices[0].address",
		},
		{
			name:    "unknown capability",
			mutate:  func(c *Config) { c.Permissions.Granted = []string{"camera"} },
			wantErr: "permissions.granted",
		},
		{
			name:    "bad prompt mode",
			mutate:  func(c *Config) { c.Permissions.Prompt = "ask" },
			wantErr: "permissions.prompt",
		},
		{
			name:    "persist without database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name: "invalid port when api enabled",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.Port = 70000
			},
			wantErr: "api.port",
		},
		{
			name:   "port ignored when api disabled",
			mutate: func(c *Config) { c.API.Port = 0 },
		},
		{
			name:    "influxdb without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: "influxdb.url",
		},
		{
			name:    "stdout logging in tui mode",
			mutate:  func(c *Config) { c.Logging.Output = "stdout" },
			wantErr: "logging.output",
		},
		{
			name: "tui prompt in headless mode",
			mutate: func(c *Config) {
				c.UI.Mode = UIModeHeadless
				c.Logging.Output = "stderr"
			},
			wantErr: "permissions.prompt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Session.ID = ""
	cfg.MQTT.QoS = 9

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil")
	}
	for _, want := range []string{"session.id", "mqtt.qos"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		Radio: RadioConfig{DiscoveryTimeout: 12},
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetDiscoveryTimeout().Seconds(); got != 12 {
		t.Errorf("GetDiscoveryTimeout() = %v, want 12", got)
	}
	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("BTSCANNER_SESSION_ID", "kiosk")
	t.Setenv("BTSCANNER_RADIO_BACKEND", "le")
	t.Setenv("BTSCANNER_RADIO_ADAPTER", "hci1")
	t.Setenv("BTSCANNER_PLATFORM_API_LEVEL", "29")
	t.Setenv("BTSCANNER_DATABASE_PATH", "/custom/path.db")
	t.Setenv("BTSCANNER_MQTT_HOST", "mqtt.example.com")
	t.Setenv("BTSCANNER_MQTT_USERNAME", "testuser")
	t.Setenv("BTSCANNER_MQTT_PASSWORD", "testpass")
	t.Setenv("BTSCANNER_API_HOST", "192.168.1.1")
	t.Setenv("BTSCANNER_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("BTSCANNER_LOG_LEVEL", "debug")
	t.Setenv("BTSCANNER_UI_MODE", "headless")

	applyEnvOverrides(cfg)

	checks := []struct {
		name string
		got  string
		want string
	}{
		{"Session.ID", cfg.Session.ID, "kiosk"},
		{"Radio.Backend", cfg.Radio.Backend, "le"},
		{"Radio.Adapter", cfg.Radio.Adapter, "hci1"},
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Logging.Level", cfg.Logging.Level, "debug"},
		{"UI.Mode", cfg.UI.Mode, "headless"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}
	if cfg.Platform.APILevel != 29 {
		t.Errorf("Platform.APILevel = %d, want 29", cfg.Platform.APILevel)
	}
}

func TestApplyEnvOverrides_BadAPILevelIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("BTSCANNER_PLATFORM_API_LEVEL", "thirty")
	applyEnvOverrides(cfg)
	if cfg.Platform.APILevel != 31 {
		t.Errorf("Platform.APILevel = %d, want default 31", cfg.Platform.APILevel)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Session.ID == "" {
		t.Error("defaultConfig should have non-empty Session.ID")
	}
	if cfg.Radio.Backend != RadioBackendBlueZ {
		t.Errorf("defaultConfig Radio.Backend = %q, want bluez", cfg.Radio.Backend)
	}
	if cfg.GetDiscoveryTimeout().Seconds() != 12 {
		t.Errorf("defaultConfig discovery timeout = %v, want 12s", cfg.GetDiscoveryTimeout())
	}
	if cfg.Logging.Output != "file" {
		t.Errorf("defaultConfig Logging.Output = %q, want file", cfg.Logging.Output)
	}
}
