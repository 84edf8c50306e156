package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/glekoz/ticket-images/internal/models"
)

type UserStore interface {
	CreateUser(ctx context.Context, u models.User) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	CreateToken(ctx context.Context, token string, userID int64) error
	GetTokenUser(ctx context.Context, token string) (int64, error)
}

type TicketStore interface {
	CreateTicket(ctx context.Context, t models.Ticket) (models.Ticket, error)
	GetUserTicket(ctx context.Context, id, userID int64) (models.Ticket, error)
	ListTickets(ctx context.Context, f models.TicketFilter) ([]models.Ticket, int, error)
	ListImages(ctx context.Context, ticketID int64) ([]models.Image, error)
}

type QueueAPI interface {
	Publish(ctx context.Context, msg models.IngestImageMessage) error
}

type TokenCacheAPI interface {
	Get(ctx context.Context, token string) (int64, error)
	Save(ctx context.Context, token string, userID int64) error
}

type Server struct {
	Users   UserStore
	Tickets TicketStore
	Queue   QueueAPI
	Cache   TokenCacheAPI // may be nil; token lookups then always hit the store

	MaxUploadBytes int64
	AllowedExts    map[string]struct{}
	PerPage        int

	validate *validator.Validate
	log      *slog.Logger
}

type Options struct {
	MaxUploadMB       int
	AllowedExtensions []string
	PerPage           int
}

func NewServer(users UserStore, tickets TicketStore, queue QueueAPI, cache TokenCacheAPI, opts Options, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	exts := make(map[string]struct{}, len(opts.AllowedExtensions))
	for _, e := range opts.AllowedExtensions {
		exts[e] = struct{}{}
	}
	return &Server{
		Users:          users,
		Tickets:        tickets,
		Queue:          queue,
		Cache:          cache,
		MaxUploadBytes: int64(opts.MaxUploadMB) << 20,
		AllowedExts:    exts,
		PerPage:        opts.PerPage,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		log:            log,
	}
}

func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	api.POST("/register", s.register)
	api.POST("/login", s.login)

	auth := api.Group("", s.authRequired)
	auth.GET("/tickets", s.listTickets)
	auth.POST("/tickets", s.createTicket)
	auth.GET("/tickets/:id", s.getTicket)
	auth.GET("/tickets/:id/images", s.listImages)
	auth.POST("/tickets/:id/images", s.uploadImage)

	return router
}

func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return srv.ListenAndServe()
}
