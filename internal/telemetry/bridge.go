package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/btscanner/internal/discovery"
	"github.com/nerrad567/btscanner/internal/infrastructure/mqtt"
	"github.com/nerrad567/btscanner/internal/session"
)

// commandTimeout bounds a remote scan or stop.
const commandTimeout = 5 * time.Second

// Session is the part of session.Session the bridge uses.
type Session interface {
	ID() string
	Subscribe() (<-chan session.Update, func())
	Status(ctx context.Context) (session.Status, error)
	Scan(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Publisher is the MQTT side. *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Recorder is the time-series side. *influxdb.Client satisfies it.
type Recorder interface {
	WriteSighting(session string, rec discovery.DeviceRecord, reveal int, at time.Time)
	WriteScan(session string, started, ended time.Time, devices int)
}

// Logger is the logging interface used by the bridge.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Options configures a Bridge.
type Options struct {
	Session   Session
	Publisher Publisher // optional
	Recorder  Recorder  // optional
	QoS       byte
	Logger    Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Command is the payload accepted on the command topic.
type Command struct {
	Action string `json:"action"`
}

// DeviceMessage is published on a device topic.
type DeviceMessage struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
	Caption string `json:"caption"`
	Bonded  bool   `json:"bonded"`
	Reveal  int    `json:"reveal"`
	SeenAt  string `json:"seen_at"`
}

// Bridge forwards session updates to the publisher and the recorder.
type Bridge struct {
	session   Session
	publisher Publisher
	recorder  Recorder
	topics    mqtt.Topics
	qos       byte
	logger    Logger
	now       func() time.Time

	// Touched only by the Run goroutine.
	scanStarted time.Time
	scanDevices int
}

// New creates a bridge for opts.Session.
func New(opts Options) (*Bridge, error) {
	if opts.Session == nil {
		return nil, ErrMissingSession
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Bridge{
		session:   opts.Session,
		publisher: opts.Publisher,
		recorder:  opts.Recorder,
		topics:    mqtt.NewTopics(opts.Session.ID()),
		qos:       opts.QoS,
		logger:    opts.Logger,
		now:       opts.Now,
	}, nil
}

// Run subscribes to the command topic and forwards updates until ctx is done
// or the session ends. It blocks.
func (b *Bridge) Run(ctx context.Context) error {
	updates, unsubscribe := b.session.Subscribe()
	defer unsubscribe()

	if b.publisher != nil {
		topic := b.topics.Command()
		if err := b.publisher.Subscribe(topic, b.qos, func(_ string, payload []byte) error {
			return b.HandleCommand(ctx, payload)
		}); err != nil {
			return fmt.Errorf("subscribe to commands: %w", err)
		}
		b.logger.Info("subscribed to commands", "topic", topic)
		b.publishState(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			b.handle(ctx, u)
			if u.Kind == session.UpdateEnded {
				return nil
			}
		}
	}
}

func (b *Bridge) handle(ctx context.Context, u session.Update) {
	switch u.Kind {
	case session.UpdateState:
		b.trackScan(u.State)
		b.publishState(ctx)
	case session.UpdateProgress, session.UpdateMenu, session.UpdateEnded:
		b.publishState(ctx)
	case session.UpdateDeviceAdded:
		if u.Record == nil {
			return
		}
		b.scanDevices++
		at := b.now()
		if b.recorder != nil {
			b.recorder.WriteSighting(b.session.ID(), *u.Record, u.Reveal, at)
		}
		b.publishDevice(*u.Record, u.Reveal, at)
		b.publishState(ctx)
	case session.UpdateNotice:
		if u.Notice != nil {
			b.logger.Info("session notice", "kind", u.Notice.Kind, "message", u.Notice.Message)
		}
	}
}

// trackScan records a scan_sessions point when a scan returns to idle.
func (b *Bridge) trackScan(state discovery.State) {
	switch state {
	case discovery.StateScanning:
		b.scanStarted = b.now()
		b.scanDevices = 0
	case discovery.StateIdle:
		if b.scanStarted.IsZero() {
			return
		}
		if b.recorder != nil {
			b.recorder.WriteScan(b.session.ID(), b.scanStarted, b.now(), b.scanDevices)
		}
		b.scanStarted = time.Time{}
	}
}

func (b *Bridge) publishState(ctx context.Context) {
	if b.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	status, err := b.session.Status(ctx)
	if err != nil {
		// The session loop is gone once it ends; the last published state stands.
		return
	}
	b.publishJSON(b.topics.State(), status, true)
}

func (b *Bridge) publishDevice(rec discovery.DeviceRecord, reveal int, at time.Time) {
	if b.publisher == nil {
		return
	}
	msg := DeviceMessage{
		Address: rec.Address,
		Caption: discovery.Caption(rec),
		Bonded:  rec.Bonded,
		Reveal:  reveal,
		SeenAt:  at.UTC().Format(time.RFC3339),
	}
	if rec.Name != nil {
		msg.Name = *rec.Name
	}
	b.publishJSON(b.topics.Device(rec.Address), msg, false)
}

func (b *Bridge) publishJSON(topic string, v any, retained bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.logger.Warn("encoding telemetry payload failed", "topic", topic, "error", err)
		return
	}
	if err := b.publisher.Publish(topic, payload, b.qos, retained); err != nil {
		b.logger.Warn("publishing telemetry failed", "topic", topic, "error", err)
	}
}

// HandleCommand applies a command payload to the session.
func (b *Bridge) HandleCommand(ctx context.Context, payload []byte) error {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var err error
	switch cmd.Action {
	case "scan":
		err = b.session.Scan(ctx)
	case "stop":
		err = b.session.Stop(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Action)
	}
	if err != nil {
		return fmt.Errorf("remote %s: %w", cmd.Action, err)
	}
	b.logger.Info("remote command applied", "action", cmd.Action)
	return nil
}
