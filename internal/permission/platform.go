package permission

import (
	"context"
	"sync"
)

// Platform is the host capability-grant mechanism.
type Platform interface {
	// Check reports whether id is held right now. It is the only record of
	// grants; a revoked capability must stop being reported.
	Check(id ID) bool

	// Request asks for ids and blocks until every one is answered.
	// The result maps each requested id to whether it was granted, and
	// granted ids are reported by Check from then on.
	Request(ctx context.Context, ids []ID) (map[ID]bool, error)
}

// Prompter puts a grant question in front of whoever operates the host.
type Prompter interface {
	Prompt(ctx context.Context, ids []ID) (map[ID]bool, error)
}

// PromptFunc adapts a function to Prompter.
type PromptFunc func(ctx context.Context, ids []ID) (map[ID]bool, error)

// Prompt implements Prompter.
func (f PromptFunc) Prompt(ctx context.Context, ids []ID) (map[ID]bool, error) {
	return f(ctx, ids)
}

// AutoPrompter answers every prompt the same way without asking anyone.
type AutoPrompter struct {
	Grant bool
}

// Prompt implements Prompter.
func (a AutoPrompter) Prompt(ctx context.Context, ids []ID) (map[ID]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[ID]bool, len(ids))
	for _, id := range ids {
		out[id] = a.Grant
	}
	return out, nil
}

// StaticPlatform holds a set of capabilities granted up front (from
// configuration) and forwards anything else to a Prompter. Grants obtained
// through the prompter are added to the set.
//
// StaticPlatform is safe for concurrent use.
type StaticPlatform struct {
	mu       sync.RWMutex
	granted  map[ID]bool
	prompter Prompter
}

// NewStaticPlatform creates a platform with granted pre-held. A nil prompter
// denies everything not pre-held.
func NewStaticPlatform(granted []ID, prompter Prompter) *StaticPlatform {
	if prompter == nil {
		prompter = AutoPrompter{Grant: false}
	}
	p := &StaticPlatform{
		granted:  make(map[ID]bool, len(granted)),
		prompter: prompter,
	}
	for _, id := range granted {
		p.granted[id] = true
	}
	return p
}

// Check implements Platform.
func (p *StaticPlatform) Check(id ID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.granted[id]
}

// Request implements Platform. Only ids not already held are prompted for.
func (p *StaticPlatform) Request(ctx context.Context, ids []ID) (map[ID]bool, error) {
	out := make(map[ID]bool, len(ids))
	var ask []ID
	for _, id := range ids {
		if p.Check(id) {
			out[id] = true
			continue
		}
		ask = append(ask, id)
	}
	if len(ask) == 0 {
		return out, nil
	}

	answers, err := p.prompter.Prompt(ctx, ask)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ask {
		ok := answers[id]
		out[id] = ok
		if ok {
			p.granted[id] = true
		}
	}
	return out, nil
}

// Revoke drops a grant, as when the operator withdraws it in system settings.
func (p *StaticPlatform) Revoke(id ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.granted, id)
}
