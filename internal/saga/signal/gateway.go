// Package signal is the rendezvous between a waiting saga and the external
// system that confirms or rejects its pending step. Each saga instance owns
// a single-slot mailbox: a confirmation delivered before any await is
// buffered for the next await, and a second delivery before the first is
// consumed overwrites the buffer.
package signal

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Confirmation is the outcome of one await. Received=false means the wait
// timed out; the orchestrator treats that identically to an explicit
// negative confirmation.
type Confirmation struct {
	Received bool
	Success  bool
	Message  string
}

// TimeoutMessage is reported when an await elapses with no confirmation
const TimeoutMessage = "Signal timeout"

type mailbox struct {
	waiter   chan Confirmation
	buffered *Confirmation
}

// Gateway routes inbound confirmations to pending awaits, keyed by saga id
type Gateway struct {
	logger *slog.Logger

	mu    sync.Mutex
	boxes map[string]*mailbox
}

// NewGateway creates a signal gateway
func NewGateway(logger *slog.Logger) *Gateway {
	return &Gateway{
		logger: logger,
		boxes:  make(map[string]*mailbox),
	}
}

// AwaitConfirmation blocks until a confirmation arrives for sagaID or the
// timeout elapses. Confirmation state is reset at the start of each await:
// a buffered delivery is consumed immediately, otherwise the caller becomes
// the instance's single pending waiter.
func (g *Gateway) AwaitConfirmation(ctx context.Context, sagaID string, timeout time.Duration) Confirmation {
	g.mu.Lock()
	box := g.boxes[sagaID]
	if box == nil {
		box = &mailbox{}
		g.boxes[sagaID] = box
	}

	if box.buffered != nil {
		c := *box.buffered
		box.buffered = nil
		g.mu.Unlock()
		g.logger.Info("Consumed buffered confirmation", "saga_id", sagaID, "success", c.Success)
		return c
	}

	waiter := make(chan Confirmation, 1)
	box.waiter = waiter
	g.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c := <-waiter:
		return c
	case <-timer.C:
		g.detach(sagaID, waiter)
		g.logger.Warn("Confirmation wait timed out", "saga_id", sagaID, "timeout", timeout)
		return Confirmation{Received: false, Success: false, Message: TimeoutMessage}
	case <-ctx.Done():
		g.detach(sagaID, waiter)
		return Confirmation{Received: false, Success: false, Message: TimeoutMessage}
	}
}

// Deliver hands a confirmation to the pending await for sagaID, or buffers
// it when nothing is waiting. Delivery is never an error.
func (g *Gateway) Deliver(sagaID string, success bool, message string) {
	c := Confirmation{Received: true, Success: success, Message: message}

	g.mu.Lock()
	box := g.boxes[sagaID]
	if box == nil {
		box = &mailbox{}
		g.boxes[sagaID] = box
	}

	if box.waiter != nil {
		waiter := box.waiter
		box.waiter = nil
		g.mu.Unlock()
		waiter <- c
		g.logger.Info("Confirmation delivered to waiting saga", "saga_id", sagaID, "success", success)
		return
	}

	box.buffered = &c
	g.mu.Unlock()
	g.logger.Info("Confirmation buffered, no await pending", "saga_id", sagaID, "success", success)
}

// Forget drops the mailbox for a terminal saga
func (g *Gateway) Forget(sagaID string) {
	g.mu.Lock()
	delete(g.boxes, sagaID)
	g.mu.Unlock()
}

// detach removes the waiter after a timeout, draining a racing delivery so
// it is not mistaken for a buffered confirmation of a later await.
func (g *Gateway) detach(sagaID string, waiter chan Confirmation) {
	g.mu.Lock()
	defer g.mu.Unlock()

	box := g.boxes[sagaID]
	if box != nil && box.waiter != nil {
		box.waiter = nil
		return
	}

	// Delivery won the race: the confirmation is already in the channel.
	// Keep it buffered for the next await.
	select {
	case c := <-waiter:
		if box != nil {
			box.buffered = &c
		}
	default:
	}
}
