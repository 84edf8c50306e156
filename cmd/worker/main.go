package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/glekoz/ticket-images/application"
	"github.com/glekoz/ticket-images/data/db/repository"
	"github.com/glekoz/ticket-images/data/remote"
	"github.com/glekoz/ticket-images/internal/config"
	transport "github.com/glekoz/ticket-images/presentation/amqp"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(log)

	if err := run(*configPath, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("worker exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, log *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := repository.NewRepository(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer repo.Close()
	if err := repo.Migrate(ctx); err != nil {
		return err
	}

	store, err := remote.NewStore(ctx, remote.Options{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
	})
	if err != nil {
		return err
	}

	app := application.NewApp(repo, store, cfg.Worker.UploadTimeout, log)

	reconciler := application.NewReconciler(repo, app.Coordinator, cfg.Worker.ReconcileInterval, log)
	go reconciler.Run(ctx)

	conn, err := amqp091.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		return err
	}
	defer conn.Close()

	consumer := transport.NewConsumer(conn, cfg.RabbitMQ.Queue, cfg.Worker.Count, app, log)
	log.Info("worker consuming", "queue", cfg.RabbitMQ.Queue, "workers", cfg.Worker.Count)
	return consumer.Run(ctx)
}
