package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/canteen-order-service/internal/utils"
)

// Publisher sends lifecycle events to RabbitMQ.  It dials per publish so a
// broker restart never leaves it holding a dead connection; errors are
// logged and returned so callers can ignore them.
type Publisher struct {
	url    string
	logger *zap.Logger
}

func NewPublisher(url string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{url: url, logger: logger}
}

// Publish marshals ev and publishes it persistently to LifecycleQueue.
func (p *Publisher) Publish(ctx context.Context, ev OrderEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.logger.Warn("rabbitmq: dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.logger.Warn("rabbitmq: channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		LifecycleQueue, // name
		true,           // durable
		false,          // autoDelete
		false,          // exclusive
		false,          // noWait
		nil,            // args
	); err != nil {
		p.logger.Warn("rabbitmq: queue declare failed", zap.Error(err))
		return err
	}

	pub, err := newPublishing(ev, time.Now().UTC())
	if err != nil {
		p.logger.Warn("rabbitmq: marshal event failed", zap.Error(err))
		return err
	}

	if err := ch.PublishWithContext(ctx,
		"",             // default exchange
		LifecycleQueue, // routing key = queue name
		false,          // mandatory
		false,          // immediate
		pub,
	); err != nil {
		p.logger.Warn("rabbitmq: publish failed", zap.Error(err), zap.String("type", ev.Type))
		return err
	}
	return nil
}

func newPublishing(ev OrderEvent, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		MessageId:    utils.NewSnowflakeID(),
		Type:         ev.Type,
		Timestamp:    now,
		Body:         body,
	}, nil
}
