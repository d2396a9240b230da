package permission

import (
	"context"
	"slices"
	"strings"

	"golang.org/x/sync/singleflight"
)

// Logger defines the logging interface used by the Gate.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Result is the outcome of CheckAndRequest.
type Result struct {
	// Missing lists the requested capabilities still not held, in request order.
	Missing []ID

	// Err is set when the platform could not answer at all. Missing then
	// holds everything that was asked for.
	Err error
}

// Granted reports whether every requested capability is held.
func (r Result) Granted() bool {
	return r.Err == nil && len(r.Missing) == 0
}

// Gate inspects and requests capabilities on behalf of a session.
//
// Gate is safe for concurrent use.
type Gate struct {
	platform Platform
	group    singleflight.Group
	logger   Logger
}

// NewGate creates a gate over platform.
func NewGate(platform Platform) (*Gate, error) {
	if platform == nil {
		return nil, ErrNoPlatform
	}
	return &Gate{
		platform: platform,
		logger:   noopLogger{},
	}, nil
}

// SetLogger sets the logger for the gate.
func (g *Gate) SetLogger(logger Logger) {
	g.logger = logger
}

// Missing returns the subset of caps not currently held, in caps order.
func (g *Gate) Missing(caps []ID) []ID {
	var missing []ID
	for _, id := range caps {
		if !g.held(id) {
			missing = append(missing, id)
		}
	}
	return missing
}

// Granted reports whether every capability in caps is held.
func (g *Gate) Granted(caps []ID) bool {
	return len(g.Missing(caps)) == 0
}

// CheckAndRequest resolves once every capability in caps has an answer.
//
// When all of caps are already held the returned channel is ready
// immediately and the platform is not asked. Otherwise a single request for
// only the missing capabilities is issued; callers asking for the same
// missing set while that request is outstanding receive its outcome too.
//
// The channel receives exactly one Result and is then closed.
func (g *Gate) CheckAndRequest(ctx context.Context, caps []ID) <-chan Result {
	out := make(chan Result, 1)

	missing := g.Missing(caps)
	if len(missing) == 0 {
		out <- Result{}
		close(out)
		return out
	}

	go func() {
		defer close(out)
		out <- g.request(ctx, missing)
	}()
	return out
}

func (g *Gate) request(ctx context.Context, missing []ID) Result {
	key := requestKey(missing)
	v, err, shared := g.group.Do(key, func() (any, error) {
		g.logger.Info("requesting permissions", "capabilities", key)
		return g.platform.Request(ctx, missing)
	})
	if err != nil {
		g.logger.Warn("permission request failed", "capabilities", key, "error", err)
		return Result{Missing: missing, Err: err}
	}
	if shared {
		g.logger.Debug("permission request coalesced", "capabilities", key)
	}

	answers, _ := v.(map[ID]bool)
	var still []ID
	for _, id := range missing {
		if !answers[id] {
			still = append(still, id)
		}
	}

	if len(still) > 0 {
		g.logger.Info("permissions denied", "capabilities", requestKey(still))
	}
	return Result{Missing: still}
}

// held asks the platform, so grants withdrawn on the host are seen.
func (g *Gate) held(id ID) bool {
	return g.platform.Check(id)
}

func requestKey(ids []ID) string {
	s := Strings(ids)
	slices.Sort(s)
	return strings.Join(s, ",")
}
