package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/glekoz/ticket-images/data/cache"
	"github.com/glekoz/ticket-images/data/db/repository"
	"github.com/glekoz/ticket-images/internal/config"
	transport "github.com/glekoz/ticket-images/presentation/amqp"
	httpserver "github.com/glekoz/ticket-images/presentation/http"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(log)

	if err := run(*configPath, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, log *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	ctx := context.Background()

	repo, err := repository.NewRepository(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer repo.Close()
	if err := repo.Migrate(ctx); err != nil {
		return err
	}

	conn, err := amqp091.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		return err
	}
	defer conn.Close()
	publisher, err := transport.NewPublisher(conn, cfg.RabbitMQ.Queue)
	if err != nil {
		return err
	}

	tokens := cache.NewTokenCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.TokenTTL)
	defer tokens.Close()

	srv := httpserver.NewServer(repo, repo, publisher, tokens, httpserver.Options{
		MaxUploadMB:       cfg.Upload.MaxSizeMB,
		AllowedExtensions: cfg.Upload.AllowedExtensions,
		PerPage:           config.DefaultPageSize,
	}, log)

	log.Info("api server listening", "addr", cfg.HTTP.Addr)
	return srv.Run(cfg.HTTP.Addr)
}
