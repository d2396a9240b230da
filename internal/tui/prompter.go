package tui

import (
	"context"

	"github.com/nerrad567/btscanner/internal/permission"
)

// promptRequest is one capability question handed to the model.
type promptRequest struct {
	ids   []permission.ID
	reply chan map[permission.ID]bool
}

// Prompter implements permission.Prompter by asking in the terminal.
// Prompts block until the user answers or ctx is done.
type Prompter struct {
	requests chan promptRequest
}

// NewPrompter creates a prompter. Pass it to the model with WithPrompter.
func NewPrompter() *Prompter {
	return &Prompter{requests: make(chan promptRequest)}
}

// Prompt implements permission.Prompter.
func (p *Prompter) Prompt(ctx context.Context, ids []permission.ID) (map[permission.ID]bool, error) {
	req := promptRequest{
		ids:   append([]permission.ID(nil), ids...),
		reply: make(chan map[permission.ID]bool, 1),
	}
	select {
	case p.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case answers := <-req.reply:
		return answers, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
