package application

import (
	"context"
	"sync"

	"github.com/glekoz/ticket-images/internal/models"
)

type CompletionResult int

const (
	// NotYet: fewer images persisted than the ticket declared.
	NotYet CompletionResult = iota
	// Transitioned: this call moved the ticket CREATED -> COMPLETED.
	// Exactly one call per ticket ever gets this result.
	Transitioned
	// AlreadyComplete: some earlier call won the transition.
	AlreadyComplete
)

func (r CompletionResult) String() string {
	switch r {
	case Transitioned:
		return "transitioned"
	case AlreadyComplete:
		return "already complete"
	default:
		return "not yet"
	}
}

type CompletionStore interface {
	TicketState(ctx context.Context, id int64) (models.TicketState, error)
	CompleteTicket(ctx context.Context, id int64) (bool, error)
}

// Coordinator owns the CREATED -> COMPLETED transition. The store's
// CompleteTicket is the authoritative guard (one conditional write,
// count check and status write in the same statement); the per-ticket
// token channel only serializes callers within this process so
// concurrent ingestions of the same ticket don't pile redundant
// conditional writes onto the same row.
type Coordinator struct {
	store CompletionStore

	mu      sync.RWMutex
	tickets map[int64]chan struct{}
}

func NewCoordinator(store CompletionStore) *Coordinator {
	return &Coordinator{store: store, tickets: make(map[int64]chan struct{})}
}

func (c *Coordinator) ticketToken(id int64) chan struct{} {
	c.mu.RLock()
	token, ok := c.tickets[id]
	c.mu.RUnlock()
	if ok {
		return token
	}
	c.mu.Lock()
	token, ok = c.tickets[id]
	if !ok {
		token = make(chan struct{}, 1)
		c.tickets[id] = token
	}
	c.mu.Unlock()
	return token
}

func (c *Coordinator) forget(id int64) {
	c.mu.Lock()
	delete(c.tickets, id)
	c.mu.Unlock()
}

// TryComplete is safe to call concurrently, any number of times, for
// the same ticket. It never touches image rows.
func (c *Coordinator) TryComplete(ctx context.Context, id int64) (CompletionResult, error) {
	loc := "Coordinator.TryComplete"

	token := c.ticketToken(id)
	select {
	case token <- struct{}{}:
	case <-ctx.Done():
		return NotYet, models.NewError(loc, "context", ctx.Err())
	}
	defer func() { <-token }()

	transitioned, err := c.store.CompleteTicket(ctx, id)
	if err != nil {
		return NotYet, models.NewError(loc, "conditional update", err)
	}
	if transitioned {
		c.forget(id)
		return Transitioned, nil
	}

	state, err := c.store.TicketState(ctx, id)
	if err != nil {
		return NotYet, models.NewError(loc, "state read", err)
	}
	if state.Status == models.TicketStatusCompleted {
		c.forget(id)
		return AlreadyComplete, nil
	}
	return NotYet, nil
}
