// btscanner - Bluetooth device discovery
//
// This is the main entry point for btscanner. It hosts one discovery
// session, renders it in the terminal and optionally exposes it over
// HTTP/WebSocket, MQTT and InfluxDB.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	_ "github.com/nerrad567/btscanner/migrations"

	"github.com/nerrad567/btscanner/internal/api"
	"github.com/nerrad567/btscanner/internal/discovery"
	"github.com/nerrad567/btscanner/internal/infrastructure/config"
	"github.com/nerrad567/btscanner/internal/infrastructure/database"
	"github.com/nerrad567/btscanner/internal/infrastructure/influxdb"
	"github.com/nerrad567/btscanner/internal/infrastructure/logging"
	"github.com/nerrad567/btscanner/internal/infrastructure/mqtt"
	"github.com/nerrad567/btscanner/internal/panel"
	"github.com/nerrad567/btscanner/internal/permission"
	"github.com/nerrad567/btscanner/internal/radio/bluez"
	"github.com/nerrad567/btscanner/internal/radio/fake"
	"github.com/nerrad567/btscanner/internal/radio/le"
	"github.com/nerrad567/btscanner/internal/session"
	"github.com/nerrad567/btscanner/internal/telemetry"
	"github.com/nerrad567/btscanner/internal/tui"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// shutdownTimeout bounds the pause and snapshot work on exit.
const shutdownTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting btscanner",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	defer log.Close()
	log.Info("configuration loaded", "path", configPath, "ui", cfg.UI.Mode)

	// Snapshot store
	var (
		db    *database.DB
		store session.Store
	)
	if cfg.Session.Persist {
		db, err = openDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		store = session.NewSQLiteStore(db.DB)
		log.Info("snapshot store ready", "path", db.Path())
	} else {
		store = session.NewMemoryStore()
		log.Info("snapshots kept in memory")
	}

	// Radio
	rad, err := openRadio(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rad.Close(); closeErr != nil {
			log.Error("error closing radio", "error", closeErr)
		}
	}()

	// Permissions
	var prompter permission.Prompter
	var tuiPrompter *tui.Prompter
	switch cfg.Permissions.Prompt {
	case config.PromptTUI:
		tuiPrompter = tui.NewPrompter()
		prompter = tuiPrompter
	case config.PromptGrant:
		prompter = permission.AutoPrompter{Grant: true}
	default:
		prompter = permission.AutoPrompter{Grant: false}
	}
	gate, err := permission.NewGate(permission.NewStaticPlatform(cfg.GrantedCapabilities(), prompter))
	if err != nil {
		return fmt.Errorf("creating permission gate: %w", err)
	}
	gate.SetLogger(log.With("component", "permission"))
	caps := permission.DefaultPolicy().Required(cfg.Platform.APILevel)
	log.Info("capabilities required",
		"api_level", cfg.Platform.APILevel,
		"capabilities", permission.Strings(caps),
	)

	// Session
	sess, err := session.New(session.Options{
		ID:           cfg.Session.ID,
		Radio:        rad,
		Gate:         gate,
		Capabilities: caps,
		Store:        store,
		About:        session.About{Name: cfg.About.Name, Message: cfg.About.Message},
		Logger:       log.With("component", "session"),
	})
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	// The session outlives ctx so the shutdown steps below can still reach it.
	sessCtx, stopSession := context.WithCancel(context.Background())
	defer stopSession()
	go sess.Run(sessCtx)

	// Subscribe before Create so no update is missed.
	var (
		model   tui.Model
		updates <-chan session.Update
	)
	if cfg.UI.Mode == config.UIModeTUI {
		model = tui.New(sess, tui.Options{Title: cfg.About.Name, Prompter: tuiPrompter})
		defer model.Close()
	} else {
		var unsubscribe func()
		updates, unsubscribe = sess.Subscribe()
		defer unsubscribe()
	}

	// API server (optional)
	if cfg.API.Enabled {
		srv, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log.With("component", "api"),
			Session: sess,
			Version: version,
			Panel:   panel.Handler(cfg.API.PanelDir),
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	// MQTT and InfluxDB (optional)
	mqttClient, influxClient, err := connectTelemetry(cfg, sess.ID(), log)
	if err != nil {
		return err
	}
	if mqttClient != nil {
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}
	if mqttClient != nil || influxClient != nil {
		if bridgeErr := startBridge(ctx, sess, cfg, mqttClient, influxClient, log); bridgeErr != nil {
			return bridgeErr
		}
	}

	if hcErr := healthCheck(ctx, db, mqttClient, influxClient); hcErr != nil {
		return fmt.Errorf("health check failed: %w", hcErr)
	}

	// Screen lifecycle
	if createErr := sess.Create(ctx); createErr != nil {
		return fmt.Errorf("creating session: %w", createErr)
	}
	// A session that ended in Create has already told the user why.
	if resumeErr := sess.Resume(ctx); resumeErr != nil && !errors.Is(resumeErr, session.ErrEnded) {
		return fmt.Errorf("resuming session: %w", resumeErr)
	}
	log.Info("initialisation complete", "session", sess.ID(), "ui", cfg.UI.Mode)

	if cfg.UI.Mode == config.UIModeTUI {
		err = runTUI(ctx, model)
	} else {
		waitHeadless(ctx, updates, log)
	}

	log.Info("shutting down")
	shutdown(sess, cfg.Session.Persist, log)
	stopSession()

	log.Info("btscanner stopped")
	return err
}

// getConfigPath returns the configuration file path.
// Uses BTSCANNER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BTSCANNER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// radioCloser is a discovery.Radio that owns resources.
type radioCloser interface {
	discovery.Radio
	Close() error
}

// openRadio builds the configured backend. A BlueZ bus that cannot be
// reached degrades to an unavailable radio so the session can say so.
func openRadio(ctx context.Context, cfg *config.Config, log *logging.Logger) (radioCloser, error) {
	radioLog := log.With("component", "radio", "backend", cfg.Radio.Backend)

	switch cfg.Radio.Backend {
	case config.RadioBackendBlueZ:
		r, err := bluez.Open(ctx, bluez.Config{
			Adapter:          cfg.Radio.Adapter,
			AllowEnable:      cfg.Radio.AllowEnable,
			DiscoveryTimeout: cfg.GetDiscoveryTimeout(),
		})
		if err != nil {
			radioLog.Warn("BlueZ unavailable", "error", err)
			return fake.Unavailable(), nil
		}
		r.SetLogger(radioLog)
		radioLog.Info("radio opened", "adapter", cfg.Radio.Adapter, "available", r.Available())
		return r, nil

	case config.RadioBackendLE:
		r := le.Open(le.Config{ScanTimeout: cfg.GetDiscoveryTimeout()})
		r.SetLogger(radioLog)
		radioLog.Info("radio opened", "available", r.Available())
		return r, nil

	case config.RadioBackendFake:
		fc := cfg.Radio.Fake
		devices := make([]discovery.DeviceRecord, 0, len(fc.Devices))
		for _, d := range fc.Devices {
			devices = append(devices, discovery.NewDeviceRecord(d.Address, d.Name, d.Bonded))
		}
		radioLog.Info("radio opened", "devices", len(devices))
		return fake.New(fake.Options{
			Available:   fc.Available,
			Enabled:     fc.Enabled,
			AllowEnable: cfg.Radio.AllowEnable,
			Devices:     devices,
			Interval:    time.Duration(fc.Interval) * time.Millisecond,
			Duration:    cfg.GetDiscoveryTimeout(),
		}), nil
	}
	return nil, fmt.Errorf("unknown radio backend %q", cfg.Radio.Backend)
}

// connectTelemetry connects the enabled sinks. Either result may be nil.
func connectTelemetry(cfg *config.Config, sessionID string, log *logging.Logger) (*mqtt.Client, *influxdb.Client, error) {
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		c, err := mqtt.Connect(cfg.MQTT, mqtt.NewTopics(sessionID))
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
		}
		c.SetLogger(log.With("component", "mqtt"))
		mqttClient = c
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		c, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			if mqttClient != nil {
				_ = mqttClient.Close()
			}
			return nil, nil, fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		c.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		influxClient = c
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	return mqttClient, influxClient, nil
}

// startBridge forwards session updates to the connected sinks.
func startBridge(ctx context.Context, sess *session.Session, cfg *config.Config, mqttClient *mqtt.Client, influxClient *influxdb.Client, log *logging.Logger) error {
	opts := telemetry.Options{
		Session: sess,
		QoS:     byte(cfg.MQTT.QoS),
		Logger:  log.With("component", "telemetry"),
	}
	// Unset sinks stay nil interfaces.
	if mqttClient != nil {
		opts.Publisher = mqttClient
	}
	if influxClient != nil {
		opts.Recorder = influxClient
	}

	bridge, err := telemetry.New(opts)
	if err != nil {
		return fmt.Errorf("creating telemetry bridge: %w", err)
	}
	go func() {
		if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("telemetry bridge stopped", "error", err)
		}
	}()
	log.Info("telemetry bridge started", "mqtt", mqttClient != nil, "influxdb", influxClient != nil)
	return nil
}

// healthCheck verifies the connections that were opened.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection (nil when snapshots are kept in memory)
//   - mqttClient: MQTT client (nil if disabled)
//   - influxClient: InfluxDB client (nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

func runTUI(ctx context.Context, model tui.Model) error {
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running terminal UI: %w", err)
	}
	return nil
}

// waitHeadless blocks until ctx is done or the session ends, logging notices.
func waitHeadless(ctx context.Context, updates <-chan session.Update, log *logging.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			switch {
			case u.Kind == session.UpdateNotice && u.Notice != nil:
				log.Warn("notice", "kind", u.Notice.Kind, "message", u.Notice.Message)
			case u.Kind == session.UpdateDeviceAdded && u.Device != nil:
				log.Info("device found", "address", u.Device.Address, "caption", u.Device.Caption, "bonded", u.Device.Bonded)
			case u.Kind == session.UpdateEnded:
				log.Info("session ended")
				return
			}
		}
	}
}

// shutdown pauses the session and keeps or drops its snapshot.
func shutdown(sess *session.Session, persist bool, log *logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := sess.Pause(ctx); err != nil && !errors.Is(err, session.ErrEnded) {
		log.Warn("pausing session failed", "error", err)
	}
	if persist {
		if err := sess.Suspend(ctx); err != nil {
			log.Error("saving snapshot failed", "error", err)
		}
		return
	}
	if err := sess.Finish(ctx); err != nil {
		log.Warn("finishing session failed", "error", err)
	}
}
