package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/glekoz/ticket-images/internal/models"
)

func newTestApp(store *fakeStore, remote *fakeRemote) *App {
	return NewApp(store, remote, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestIngestCompletesAtDeclaredCount(t *testing.T) {
	store := newFakeStore()
	store.addTicket(7, 3)
	remote := &fakeRemote{}
	app := newTestApp(store, remote)
	ctx := context.Background()

	for i, payload := range [][]byte{[]byte("a"), []byte("b")} {
		if err := app.Ingest(ctx, models.IngestImageMessage{TicketID: 7, Image: payload}); err != nil {
			t.Fatalf("Ingest #%d: %v", i, err)
		}
		status, count, _ := store.snapshot(7)
		if status != models.TicketStatusCreated {
			t.Fatalf("after %d of 3 images status = %s, want CREATED", i+1, status)
		}
		if count != i+1 {
			t.Fatalf("image count = %d, want %d", count, i+1)
		}
	}

	if err := app.Ingest(ctx, models.IngestImageMessage{TicketID: 7, Image: []byte("c")}); err != nil {
		t.Fatalf("final Ingest: %v", err)
	}
	status, count, transitions := store.snapshot(7)
	if status != models.TicketStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", status)
	}
	if count != 3 || transitions != 1 {
		t.Fatalf("count = %d, transitions = %d; want 3, 1", count, transitions)
	}
}

func TestIngestConcurrentAndOverDelivered(t *testing.T) {
	// More jobs than declared, all racing: every row persists, exactly
	// one transition happens.
	const declared = 8
	const jobs = 12

	store := newFakeStore()
	store.addTicket(1, declared)
	remote := &fakeRemote{}
	app := newTestApp(store, remote)

	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.Ingest(context.Background(), models.IngestImageMessage{TicketID: 1, Image: []byte("img")}); err != nil {
				t.Errorf("Ingest: %v", err)
			}
		}()
	}
	wg.Wait()

	status, count, transitions := store.snapshot(1)
	if status != models.TicketStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", status)
	}
	if count != jobs {
		t.Fatalf("image count = %d, want %d (over-quota rows are kept)", count, jobs)
	}
	if transitions != 1 {
		t.Fatalf("transitions = %d, want exactly 1", transitions)
	}
}

func TestIngestEmptyPayload(t *testing.T) {
	store := newFakeStore()
	store.addTicket(1, 1)
	remote := &fakeRemote{}
	app := newTestApp(store, remote)

	err := app.Ingest(context.Background(), models.IngestImageMessage{TicketID: 1})
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}
	if models.Retryable(err) {
		t.Fatal("empty payload must not be retried")
	}
	if remote.uploadCount() != 0 {
		t.Fatal("no upload should happen for an empty payload")
	}
}

func TestIngestUnknownTicket(t *testing.T) {
	store := newFakeStore()
	remote := &fakeRemote{}
	app := newTestApp(store, remote)

	err := app.Ingest(context.Background(), models.IngestImageMessage{TicketID: 99, Image: []byte("img")})
	if !errors.Is(err, models.ErrTicketNotFound) {
		t.Fatalf("got %v, want ErrTicketNotFound", err)
	}
	if models.Retryable(err) {
		t.Fatal("missing ticket must not be retried")
	}
	if remote.uploadCount() != 0 {
		t.Fatal("bytes must not be uploaded for a missing ticket")
	}
}

func TestIngestUploadFailure(t *testing.T) {
	store := newFakeStore()
	store.addTicket(1, 1)
	remote := &fakeRemote{err: errors.New("remote store down")}
	app := newTestApp(store, remote)

	err := app.Ingest(context.Background(), models.IngestImageMessage{TicketID: 1, Image: []byte("img")})
	if !errors.Is(err, models.ErrUploadFailed) {
		t.Fatalf("got %v, want ErrUploadFailed", err)
	}
	if !models.Retryable(err) {
		t.Fatal("upload failure must be retryable")
	}
	status, count, _ := store.snapshot(1)
	if count != 0 {
		t.Fatal("no image row without a confirmed reference")
	}
	if status != models.TicketStatusCreated {
		t.Fatalf("status = %s, want CREATED", status)
	}
}

func TestIngestUploadTimeout(t *testing.T) {
	store := newFakeStore()
	store.addTicket(1, 1)
	remote := &fakeRemote{delay: time.Second}
	app := NewApp(store, remote, 10*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := app.Ingest(context.Background(), models.IngestImageMessage{TicketID: 1, Image: []byte("img")})
	if !errors.Is(err, models.ErrUploadFailed) {
		t.Fatalf("got %v, want ErrUploadFailed on timeout", err)
	}
	if !models.Retryable(err) {
		t.Fatal("upload timeout must be retryable")
	}
	if _, count, _ := store.snapshot(1); count != 0 {
		t.Fatal("no image row after a timed-out upload")
	}
}

func TestIngestCompletionCheckFailureKeepsRow(t *testing.T) {
	store := newFakeStore()
	store.addTicket(1, 1)
	store.completeErr = errors.New("store unavailable")
	remote := &fakeRemote{}
	app := newTestApp(store, remote)

	err := app.Ingest(context.Background(), models.IngestImageMessage{TicketID: 1, Image: []byte("img")})
	if err == nil {
		t.Fatal("want error when completion check fails")
	}
	if !models.Retryable(err) {
		t.Fatal("completion-check failure must be retryable")
	}
	// The image row survives; redelivery or the reconciler finishes
	// the transition without re-reporting data loss.
	if _, count, _ := store.snapshot(1); count != 1 {
		t.Fatalf("image count = %d, want 1", count)
	}
}
