package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/btscanner/internal/discovery"
	"github.com/nerrad567/btscanner/internal/infrastructure/config"
	"github.com/nerrad567/btscanner/internal/infrastructure/logging"
	"github.com/nerrad567/btscanner/internal/session"
)

// Stream frame types.
const (
	FrameHello  = "hello"
	FrameUpdate = "update"
	FrameFilter = "filter"
	FramePing   = "ping"
	FramePong   = "pong"
	FrameError  = "error"
)

const (
	// watcherBuffer is the per-connection outbound frame buffer.
	watcherBuffer = 256

	defaultPingInterval = 30 * time.Second
	defaultWriteWait    = 10 * time.Second
)

// Frame is one message on the /api/v1/ws stream.
//
// The server opens with a hello frame carrying the current status and device
// list, then sends one update frame per session update. Seq numbers update
// frames so a client can spot frames dropped for a slow connection.
type Frame struct {
	Type   string               `json:"type"`
	Seq    uint64               `json:"seq,omitempty"`
	At     string               `json:"at"`
	Hello  *Hello               `json:"hello,omitempty"`
	Update *session.Update      `json:"update,omitempty"`
	Kinds  []session.UpdateKind `json:"kinds,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// Hello is the state a new stream connection starts from.
type Hello struct {
	Status  session.Status  `json:"status"`
	Devices []discovery.Row `json:"devices"`
}

// clientFrame is what a client may send: a filter limiting the update kinds
// it receives (empty means all), or a ping.
type clientFrame struct {
	Type  string               `json:"type"`
	Kinds []session.UpdateKind `json:"kinds"`
}

// Hub fans session updates out to stream connections.
type Hub struct {
	logger *logging.Logger

	mu       sync.Mutex
	seq      uint64
	watchers map[*watcher]struct{}
}

// watcher is one stream connection.
type watcher struct {
	conn *websocket.Conn
	out  chan []byte

	mu     sync.Mutex
	kinds  map[session.UpdateKind]bool
	closed bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger:   logger,
		watchers: make(map[*watcher]struct{}),
	}
}

// Run blocks until ctx is cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	watchers := h.watchers
	h.watchers = make(map[*watcher]struct{})
	h.mu.Unlock()

	for w := range watchers {
		w.close()
	}
}

// Publish numbers u and queues it for every watcher whose filter admits it.
func (h *Hub) Publish(u session.Update) {
	h.mu.Lock()
	h.seq++
	seq := h.seq
	watchers := make([]*watcher, 0, len(h.watchers))
	for w := range h.watchers {
		watchers = append(watchers, w)
	}
	h.mu.Unlock()

	data, err := json.Marshal(Frame{Type: FrameUpdate, Seq: seq, At: now(), Update: &u})
	if err != nil {
		h.logger.Error("encoding stream frame failed", "kind", u.Kind, "error", err)
		return
	}
	for _, w := range watchers {
		if w.wants(u.Kind) {
			if !w.queue(data) {
				h.logger.Debug("stream frame dropped", "seq", seq, "kind", u.Kind)
			}
		}
	}
}

// Watchers returns the number of open stream connections.
func (h *Hub) Watchers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers)
}

func (h *Hub) add(w *watcher) {
	h.mu.Lock()
	h.watchers[w] = struct{}{}
	n := len(h.watchers)
	h.mu.Unlock()
	h.logger.Debug("stream connected", "watchers", n)
}

func (h *Hub) remove(w *watcher) {
	h.mu.Lock()
	delete(h.watchers, w)
	n := len(h.watchers)
	h.mu.Unlock()
	w.close()
	h.logger.Debug("stream disconnected", "watchers", n)
}

func newWatcher(conn *websocket.Conn) *watcher {
	return &watcher{conn: conn, out: make(chan []byte, watcherBuffer)}
}

// queue offers data without blocking. It reports false when the frame was
// dropped for a full buffer or a closed watcher.
func (w *watcher) queue(data []byte) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	select {
	case w.out <- data:
		return true
	default:
		return false
	}
}

func (w *watcher) queueFrame(f Frame) {
	if f.At == "" {
		f.At = now()
	}
	if data, err := json.Marshal(f); err == nil {
		w.queue(data)
	}
}

func (w *watcher) wants(kind session.UpdateKind) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.kinds) == 0 || w.kinds[kind]
}

func (w *watcher) setKinds(kinds []session.UpdateKind) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.kinds = make(map[session.UpdateKind]bool, len(kinds))
	for _, k := range kinds {
		w.kinds[k] = true
	}
}

// close is idempotent. The write loop sees the closed channel and sends a
// close frame.
func (w *watcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.out)
}

// handleWebSocket upgrades the connection, sends the hello frame and starts
// the read and write loops.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	hello, err := s.hello(ctx)
	cancel()
	if err != nil {
		writeSessionError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	wt := newWatcher(conn)
	wt.queueFrame(Frame{Type: FrameHello, Hello: &hello})
	s.hub.add(wt)

	go wt.writeLoop(s.wsCfg)
	go wt.readLoop(s.hub, s.wsCfg)
}

func (s *Server) hello(ctx context.Context) (Hello, error) {
	status, err := s.session.Status(ctx)
	if err != nil {
		return Hello{}, err
	}
	rows, err := s.session.Devices(ctx)
	if err != nil {
		return Hello{}, err
	}
	if rows == nil {
		rows = []discovery.Row{}
	}
	return Hello{Status: status, Devices: rows}, nil
}

func (w *watcher) readLoop(h *Hub, cfg config.WebSocketConfig) {
	defer func() {
		h.remove(w)
		w.conn.Close()
	}()

	if cfg.MaxMessageSize > 0 {
		w.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	}
	idle := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	if idle <= 0 {
		idle = 2 * defaultPingInterval
	}
	extend := func() error { return w.conn.SetReadDeadline(time.Now().Add(idle)) }
	//nolint:errcheck // Best-effort deadline on connection setup
	extend()
	w.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		extend()

		var f clientFrame
		if err := json.Unmarshal(data, &f); err != nil {
			w.queueFrame(Frame{Type: FrameError, Error: "invalid JSON frame"})
			continue
		}
		switch f.Type {
		case FrameFilter:
			w.setKinds(f.Kinds)
			w.queueFrame(Frame{Type: FrameFilter, Kinds: f.Kinds})
		case FramePing:
			w.queueFrame(Frame{Type: FramePong})
		default:
			w.queueFrame(Frame{Type: FrameError, Error: "unknown frame type: " + f.Type})
		}
	}
}

func (w *watcher) writeLoop(cfg config.WebSocketConfig) {
	interval := time.Duration(cfg.PingInterval) * time.Second
	if interval <= 0 {
		interval = defaultPingInterval
	}
	wait := time.Duration(cfg.PongTimeout) * time.Second
	if wait <= 0 {
		wait = defaultWriteWait
	}
	ticker := time.NewTicker(interval)
	defer func() {
		ticker.Stop()
		w.conn.Close()
	}()

	for {
		select {
		case data, ok := <-w.out:
			//nolint:errcheck // Best-effort deadline; write error caught below
			w.conn.SetWriteDeadline(time.Now().Add(wait))
			if !ok {
				//nolint:errcheck // Best-effort close frame
				w.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			w.conn.SetWriteDeadline(time.Now().Add(wait))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
