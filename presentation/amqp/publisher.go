package amqp

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/glekoz/ticket-images/internal/models"
)

// Publisher enqueues ingestion jobs. The queue is durable and messages
// are persistent: an accepted upload must survive a broker restart,
// because the client has already been told it succeeded.
type Publisher struct {
	conn  *amqp.Connection
	queue string
}

func NewPublisher(conn *amqp.Connection, queue string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	defer ch.Close()
	if _, err := declareQueue(ch, queue); err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, queue: queue}, nil
}

func (p *Publisher) Publish(ctx context.Context, msg models.IngestImageMessage) error {
	loc := "amqp.Publisher.Publish"
	body, err := json.Marshal(msg)
	if err != nil {
		return models.NewError(loc, "marshal", models.ErrOperationAction)
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return models.NewError(loc, "channel", models.ErrNetworkAction)
	}
	defer ch.Close()

	err = ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return models.NewError(loc, "publish", err)
	}
	return nil
}

func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
}
