package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/glekoz/ticket-images/internal/models"
)

// fakeStore mimics the repository's transactional guarantees in
// memory: CompleteTicket checks the count and writes the status under
// one lock, the way the real statement does under the row lock.
type fakeStore struct {
	mu      sync.Mutex
	tickets map[int64]*fakeTicket

	stateErr    error
	addImageErr error
	completeErr error
}

type fakeTicket struct {
	status      models.TicketStatus
	numImages   int
	images      []models.Image
	transitions int
}

func newFakeStore() *fakeStore {
	return &fakeStore{tickets: make(map[int64]*fakeTicket)}
}

func (f *fakeStore) addTicket(id int64, numImages int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickets[id] = &fakeTicket{status: models.TicketStatusCreated, numImages: numImages}
}

func (f *fakeStore) TicketState(ctx context.Context, id int64) (models.TicketState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stateErr != nil {
		return models.TicketState{}, f.stateErr
	}
	t, ok := f.tickets[id]
	if !ok {
		return models.TicketState{}, models.ErrNotFound
	}
	return models.TicketState{
		TicketID:   id,
		Status:     t.status,
		ImageCount: len(t.images),
		NumImages:  t.numImages,
	}, nil
}

func (f *fakeStore) AddImage(ctx context.Context, img models.Image) (models.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addImageErr != nil {
		return models.Image{}, f.addImageErr
	}
	t, ok := f.tickets[img.TicketID]
	if !ok {
		return models.Image{}, models.ErrNotFound
	}
	img.ID = int64(len(t.images) + 1)
	img.UploadedAt = time.Now()
	t.images = append(t.images, img)
	return img, nil
}

func (f *fakeStore) CompleteTicket(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeErr != nil {
		return false, f.completeErr
	}
	t, ok := f.tickets[id]
	if !ok {
		return false, nil
	}
	if t.status != models.TicketStatusCreated || len(t.images) < t.numImages {
		return false, nil
	}
	t.status = models.TicketStatusCompleted
	t.transitions++
	return true, nil
}

func (f *fakeStore) StalledTickets(ctx context.Context, limit int) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for id, t := range f.tickets {
		if t.status == models.TicketStatusCreated && len(t.images) >= t.numImages {
			ids = append(ids, id)
			if len(ids) == limit {
				break
			}
		}
	}
	return ids, nil
}

func (f *fakeStore) snapshot(id int64) (models.TicketStatus, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tickets[id]
	return t.status, len(t.images), t.transitions
}

type fakeRemote struct {
	mu      sync.Mutex
	uploads int
	err     error
	delay   time.Duration
}

func (f *fakeRemote) Upload(ctx context.Context, data []byte) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.uploads++
	return fmt.Sprintf("bucket/object-%d", f.uploads), nil
}

func (f *fakeRemote) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads
}
