package amqp

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/glekoz/ticket-images/internal/models"
)

type AppAPI interface {
	Ingest(ctx context.Context, msg models.IngestImageMessage) error
}

// Consumer drains the ingestion queue with a pool of workers. Jobs for
// the same ticket may land on different workers at the same time; the
// application layer is built to survive that.
type Consumer struct {
	conn    *amqp.Connection
	queue   string
	workers int
	app     AppAPI
	log     *slog.Logger
}

func NewConsumer(conn *amqp.Connection, queue string, workers int, app AppAPI, log *slog.Logger) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{conn: conn, queue: queue, workers: workers, app: app, log: log}
}

// Run blocks until ctx is cancelled or the delivery channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if _, err := declareQueue(ch, c.queue); err != nil {
		return err
	}
	if err := ch.Qos(c.workers, 0, false); err != nil {
		return err
	}
	msgs, err := ch.Consume(
		c.queue,
		"",    // consumer tag
		false, // autoAck — we ack only after Ingest settles
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for range c.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-msgs:
					if !ok {
						return
					}
					c.handle(ctx, d)
				}
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var msg models.IngestImageMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		c.log.Error("unreadable ingestion message dropped", "error", err)
		c.settle(d, false, false)
		return
	}

	err := c.app.Ingest(ctx, msg)
	if err == nil {
		c.settle(d, true, false)
		return
	}

	requeue := models.Retryable(err)
	if requeue {
		c.log.Warn("ingestion failed, requeueing",
			"ticket_id", msg.TicketID, "error", err)
	} else {
		c.log.Error("ingestion failed permanently, dropping job",
			"ticket_id", msg.TicketID, "error", err)
	}
	c.settle(d, false, requeue)
}

func (c *Consumer) settle(d amqp.Delivery, ack, requeue bool) {
	var err error
	if ack {
		err = d.Ack(false)
	} else {
		err = d.Nack(false, requeue)
	}
	if err != nil {
		c.log.Error("settle failed", "error", err)
	}
}
