package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/glekoz/ticket-images/internal/models"
)

func TestTryCompleteBelowThreshold(t *testing.T) {
	store := newFakeStore()
	store.addTicket(1, 3)
	coord := NewCoordinator(store)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		store.AddImage(ctx, models.Image{TicketID: 1, RemoteURL: "bucket/x"})
		res, err := coord.TryComplete(ctx, 1)
		if err != nil {
			t.Fatalf("TryComplete: %v", err)
		}
		if res != NotYet {
			t.Fatalf("after %d of 3 images: got %v, want NotYet", i+1, res)
		}
	}

	status, _, transitions := store.snapshot(1)
	if status != models.TicketStatusCreated || transitions != 0 {
		t.Fatalf("status = %s, transitions = %d; want CREATED, 0", status, transitions)
	}
}

func TestTryCompleteTransitionsOnce(t *testing.T) {
	store := newFakeStore()
	store.addTicket(1, 3)
	coord := NewCoordinator(store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		store.AddImage(ctx, models.Image{TicketID: 1, RemoteURL: "bucket/x"})
	}

	res, err := coord.TryComplete(ctx, 1)
	if err != nil {
		t.Fatalf("TryComplete: %v", err)
	}
	if res != Transitioned {
		t.Fatalf("got %v, want Transitioned", res)
	}

	// Idempotent from here on, no matter how often it is called.
	for i := 0; i < 5; i++ {
		res, err := coord.TryComplete(ctx, 1)
		if err != nil {
			t.Fatalf("TryComplete #%d: %v", i, err)
		}
		if res != AlreadyComplete {
			t.Fatalf("repeat call got %v, want AlreadyComplete", res)
		}
	}

	status, _, transitions := store.snapshot(1)
	if status != models.TicketStatusCompleted || transitions != 1 {
		t.Fatalf("status = %s, transitions = %d; want COMPLETED, 1", status, transitions)
	}
}

func TestTryCompleteConcurrentCallersSingleWinner(t *testing.T) {
	const callers = 32

	store := newFakeStore()
	store.addTicket(1, 4)
	coord := NewCoordinator(store)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		store.AddImage(ctx, models.Image{TicketID: 1, RemoteURL: "bucket/x"})
	}

	results := make(chan CompletionResult, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := coord.TryComplete(ctx, 1)
			if err != nil {
				t.Errorf("TryComplete: %v", err)
				return
			}
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	var won, already int
	for res := range results {
		switch res {
		case Transitioned:
			won++
		case AlreadyComplete:
			already++
		default:
			t.Errorf("unexpected result %v", res)
		}
	}
	if won != 1 {
		t.Fatalf("Transitioned observed %d times, want exactly 1", won)
	}
	if already != callers-1 {
		t.Fatalf("AlreadyComplete observed %d times, want %d", already, callers-1)
	}
	if _, _, transitions := store.snapshot(1); transitions != 1 {
		t.Fatalf("store recorded %d transitions, want 1", transitions)
	}
}

func TestTryCompleteStoreError(t *testing.T) {
	store := newFakeStore()
	store.addTicket(1, 1)
	store.completeErr = errors.New("store unavailable")
	coord := NewCoordinator(store)

	res, err := coord.TryComplete(context.Background(), 1)
	if err == nil {
		t.Fatal("want error when the conditional update fails")
	}
	if res != NotYet {
		t.Fatalf("got %v, want NotYet on error", res)
	}
	// Store errors must stay retryable: the image row may already be
	// persisted and only the completion check needs to run again.
	if !models.Retryable(err) {
		t.Fatal("store error should be retryable")
	}
}

func TestTryCompleteCancelledContext(t *testing.T) {
	store := newFakeStore()
	store.addTicket(1, 1)
	coord := NewCoordinator(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Hold the token so TryComplete has to wait and sees cancellation.
	token := coord.ticketToken(1)
	token <- struct{}{}
	defer func() { <-token }()

	if _, err := coord.TryComplete(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}
