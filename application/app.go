package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/glekoz/ticket-images/internal/models"
)

type RepositoryAPI interface {
	TicketState(ctx context.Context, id int64) (models.TicketState, error)
	AddImage(ctx context.Context, img models.Image) (models.Image, error)
	CompleteTicket(ctx context.Context, id int64) (bool, error)
	StalledTickets(ctx context.Context, limit int) ([]int64, error)
}

type RemoteAPI interface {
	Upload(ctx context.Context, data []byte) (string, error)
}

type App struct {
	Repo          RepositoryAPI
	Remote        RemoteAPI
	Coordinator   *Coordinator
	UploadTimeout time.Duration
	Log           *slog.Logger
}

func NewApp(repo RepositoryAPI, remote RemoteAPI, uploadTimeout time.Duration, log *slog.Logger) *App {
	if log == nil {
		log = slog.Default()
	}
	return &App{
		Repo:          repo,
		Remote:        remote,
		Coordinator:   NewCoordinator(repo),
		UploadTimeout: uploadTimeout,
		Log:           log,
	}
}
