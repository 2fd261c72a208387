package notify

import (
	"context"
	"fmt"

	"hrsync/internal/hrsync"
)

// Transport delivers a rendered message.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Gateway implements hrsync.Notifier over a Transport. A Gateway with a nil
// transport is unconfigured and refuses to send.
type Gateway struct {
	renderer  *Renderer
	transport Transport
}

var _ hrsync.Notifier = (*Gateway)(nil)

// NewGateway creates a gateway. transport may be nil.
func NewGateway(renderer *Renderer, transport Transport) *Gateway {
	return &Gateway{renderer: renderer, transport: transport}
}

// IsConfigured reports whether the gateway has a transport to send through.
func (g *Gateway) IsConfigured() bool { return g.transport != nil }

func (g *Gateway) send(ctx context.Context, msg Message, err error) error {
	if err != nil {
		return err
	}
	if g.transport == nil {
		return fmt.Errorf("notifier not configured")
	}
	if err := g.transport.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending %q: %w", msg.Subject, err)
	}
	return nil
}

// SendApprovalRequest asks for approval of the structure changes found by run logID.
func (g *Gateway) SendApprovalRequest(ctx context.Context, logID string, changes map[string]hrsync.StructureChange) error {
	msg, err := g.renderer.Approval(logID, changes)
	return g.send(ctx, msg, err)
}

// SendCompletionSummary reports the per-table results of a finished run.
func (g *Gateway) SendCompletionSummary(ctx context.Context, logID string, results *hrsync.RunResults, diffCounts map[string]hrsync.DiffCounts) error {
	msg, err := g.renderer.Completion(logID, results, diffCounts)
	return g.send(ctx, msg, err)
}

// SendFailure reports a failed or blocked run. logID is empty when no run was started.
func (g *Gateway) SendFailure(ctx context.Context, logID string, cause error, fc hrsync.FailureContext) error {
	msg, err := g.renderer.Failure(logID, cause, fc)
	return g.send(ctx, msg, err)
}
