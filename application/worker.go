package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/glekoz/ticket-images/internal/models"
)

// Ingest turns one queued upload into a persisted image row and, when
// the ticket's declared count is reached, a completed ticket. Order is
// fixed: upload first, record second — there is never an image row
// without a confirmed remote reference.
//
// The error decides the job's fate at the queue: ErrTicketNotFound and
// ErrInvalidInput are permanent, everything else is redelivered.
func (a *App) Ingest(ctx context.Context, msg models.IngestImageMessage) error {
	loc := "App.Ingest"
	if len(msg.Image) == 0 {
		return models.NewError(loc, "empty image payload", models.ErrInvalidInput)
	}

	if _, err := a.Repo.TicketState(ctx, msg.TicketID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// The caller already told the user the upload succeeded,
			// so these bytes are gone for good. Worth alerting on.
			a.Log.Error("dropping upload for missing ticket",
				"ticket_id", msg.TicketID, "bytes", len(msg.Image))
			return models.NewError(loc, fmt.Sprintf("ticket %d", msg.TicketID), models.ErrTicketNotFound)
		}
		return models.NewError(loc, "ticket lookup", err)
	}

	upCtx, cancel := context.WithTimeout(ctx, a.UploadTimeout)
	defer cancel()
	ref, err := a.Remote.Upload(upCtx, msg.Image)
	if err != nil {
		return fmt.Errorf("%w: "+err.Error(), models.ErrUploadFailed)
	}

	img := models.Image{TicketID: msg.TicketID, RemoteURL: ref}
	if _, err := a.Repo.AddImage(ctx, img); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Ticket deleted between the lookup and the insert. The
			// object is already in the remote store with no row
			// pointing at it.
			a.Log.Error("ticket vanished after upload, reference orphaned",
				"ticket_id", msg.TicketID, "remote_url", ref)
			return models.NewError(loc, fmt.Sprintf("ticket %d", msg.TicketID), models.ErrTicketNotFound)
		}
		return models.NewError(loc, "persist image", err)
	}

	// Unconditional on every successful ingestion; the coordinator
	// decides whether this one crossed the threshold. A failure here
	// leaves the image row in place, so redelivery (or the
	// reconciliation sweep) finishes the transition.
	if _, err := a.Coordinator.TryComplete(ctx, msg.TicketID); err != nil {
		return models.NewError(loc, "completion check", err)
	}
	return nil
}
