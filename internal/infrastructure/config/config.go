package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/btscanner/internal/permission"
)

// Config is the root configuration structure for btscanner.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Session     SessionConfig     `yaml:"session"`
	Radio       RadioConfig       `yaml:"radio"`
	Platform    PlatformConfig    `yaml:"platform"`
	Permissions PermissionsConfig `yaml:"permissions"`
	Database    DatabaseConfig    `yaml:"database"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	API         APIConfig         `yaml:"api"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Logging     LoggingConfig     `yaml:"logging"`
	UI          UIConfig          `yaml:"ui"`
	About       AboutConfig       `yaml:"about"`
}

// SessionConfig identifies the discovery session.
type SessionConfig struct {
	// ID keys the suspend snapshot and the MQTT topics.
	ID string `yaml:"id"`

	// Persist stores the snapshot in SQLite. When false snapshots live in memory.
	Persist bool `yaml:"persist"`
}

// Radio backends.
const (
	RadioBackendBlueZ = "bluez"
	RadioBackendLE    = "le"
	RadioBackendFake  = "fake"
)

// RadioConfig selects and configures the radio backend.
type RadioConfig struct {
	Backend string `yaml:"backend"`

	// Adapter is the BlueZ controller name.
	Adapter string `yaml:"adapter"`

	// AllowEnable lets the session power the adapter on when asked.
	AllowEnable bool `yaml:"allow_enable"`

	// DiscoveryTimeout ends a discovery nobody cancelled (seconds).
	DiscoveryTimeout int `yaml:"discovery_timeout"`

	Fake FakeRadioConfig `yaml:"fake"`
}

// FakeRadioConfig scripts the fake backend.
type FakeRadioConfig struct {
	Available bool               `yaml:"available"`
	Enabled   bool               `yaml:"enabled"`
	Interval  int                `yaml:"interval_ms"`
	Devices   []FakeDeviceConfig `yaml:"devices"`
}

// FakeDeviceConfig is one scripted sighting.
type FakeDeviceConfig struct {
	Address string `yaml:"address"`
	Name    string `yaml:"name"`
	Bonded  bool   `yaml:"bonded"`
}

// PlatformConfig describes the host platform for the permission policy.
type PlatformConfig struct {
	// APILevel selects the row of the permission policy table.
	APILevel int `yaml:"api_level"`
}

// Permission prompt modes.
const (
	PromptTUI   = "tui"
	PromptGrant = "grant"
	PromptDeny  = "deny"
)

// PermissionsConfig controls how capabilities are granted.
type PermissionsConfig struct {
	// Granted capabilities are held from startup without prompting.
	Granted []string `yaml:"granted"`

	// Prompt answers requests for anything else: tui, grant or deny.
	Prompt string `yaml:"prompt"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`

	// PanelDir serves the browser panel from disk instead of the embedded
	// copy. Empty uses the embedded assets.
	PanelDir string `yaml:"panel_dir"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket event stream settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// UI modes.
const (
	UIModeTUI      = "tui"
	UIModeHeadless = "headless"
)

// UIConfig selects the interactive surface.
type UIConfig struct {
	Mode string `yaml:"mode"`
}

// AboutConfig is the text of the About dialog.
type AboutConfig struct {
	Name    string `yaml:"name"`
	Message string `yaml:"message"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: BTSCANNER_SECTION_KEY
// For example: BTSCANNER_RADIO_BACKEND, BTSCANNER_DATABASE_PATH
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			ID:      "default",
			Persist: true,
		},
		Radio: RadioConfig{
			Backend:          RadioBackendBlueZ,
			Adapter:          "hci0",
			DiscoveryTimeout: 12,
			Fake: FakeRadioConfig{
				Available: true,
				Enabled:   true,
				Interval:  400,
			},
		},
		Platform: PlatformConfig{
			APILevel: 31,
		},
		Permissions: PermissionsConfig{
			Prompt: PromptTUI,
		},
		Database: DatabaseConfig{
			Path:        "./data/btscanner.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "btscanner",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "file",
			File: FileLoggingConfig{
				Path:       "./data/btscanner.log",
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
			},
		},
		UI: UIConfig{
			Mode: UIModeTUI,
		},
		About: AboutConfig{
			Name:    "BluetoothScanner",
			Message: "Lists nearby Bluetooth devices. Bonded devices are marked with *.",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: BTSCANNER_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Session
	if v := os.Getenv("BTSCANNER_SESSION_ID"); v != "" {
		cfg.Session.ID = v
	}

	// Radio
	if v := os.Getenv("BTSCANNER_RADIO_BACKEND"); v != "" {
		cfg.Radio.Backend = v
	}
	if v := os.Getenv("BTSCANNER_RADIO_ADAPTER"); v != "" {
		cfg.Radio.Adapter = v
	}

	// Platform
	if v := os.Getenv("BTSCANNER_PLATFORM_API_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Platform.APILevel = n
		}
	}

	// Database
	if v := os.Getenv("BTSCANNER_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("BTSCANNER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BTSCANNER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BTSCANNER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("BTSCANNER_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("BTSCANNER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("BTSCANNER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// UI
	if v := os.Getenv("BTSCANNER_UI_MODE"); v != "" {
		cfg.UI.Mode = v
	}
}

// Validate checks the configuration for errors. All problems are reported
// together.
func (c *Config) Validate() error {
	var errs []string

	if c.Session.ID == "" {
		errs = append(errs, "session.id is required")
	}

	switch c.Radio.Backend {
	case RadioBackendBlueZ, RadioBackendLE:
	case RadioBackendFake:
		for i, d := range c.Radio.Fake.Devices {
			if d.Address == "" {
				errs = append(errs, fmt.Sprintf("radio.fake.devices[%d].address is required", i))
			}
		}
	default:
		errs = append(errs, "radio.backend must be bluez, le, or fake")
	}
	if c.Radio.DiscoveryTimeout < 0 {
		errs = append(errs, "radio.discovery_timeout must not be negative")
	}

	for _, name := range c.Permissions.Granted {
		if _, err := permission.ParseID(name); err != nil {
			errs = append(errs, fmt.Sprintf("permissions.granted: unknown capability %q", name))
		}
	}
	if !slices.Contains([]string{PromptTUI, PromptGrant, PromptDeny}, c.Permissions.Prompt) {
		errs = append(errs, "permissions.prompt must be tui, grant, or deny")
	}

	if c.Session.Persist && c.Database.Path == "" {
		errs = append(errs, "database.path is required when session.persist is set")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	switch c.Logging.Output {
	case "stdout", "stderr":
		if c.UI.Mode == UIModeTUI {
			errs = append(errs, "logging.output must be file in tui mode")
		}
	case "file":
		if c.Logging.File.Path == "" {
			errs = append(errs, "logging.file.path is required when logging.output is file")
		}
	default:
		errs = append(errs, "logging.output must be stdout, stderr, or file")
	}

	switch c.UI.Mode {
	case UIModeTUI:
	case UIModeHeadless:
		if c.Permissions.Prompt == PromptTUI {
			errs = append(errs, "permissions.prompt cannot be tui in headless mode")
		}
	default:
		errs = append(errs, "ui.mode must be tui or headless")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GrantedCapabilities returns permissions.granted as capability ids.
// Unknown names are skipped; Validate reports them.
func (c *Config) GrantedCapabilities() []permission.ID {
	var ids []permission.ID
	for _, name := range c.Permissions.Granted {
		if id, err := permission.ParseID(name); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// GetDiscoveryTimeout returns the radio discovery timeout as a Duration.
func (c *Config) GetDiscoveryTimeout() time.Duration {
	return time.Duration(c.Radio.DiscoveryTimeout) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
