package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

var ErrPublisherClosed = errors.New("notify: publisher closed")

// AMQPPublisher sends events as persistent JSON messages to a durable queue
// on the default exchange.
type AMQPPublisher struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
	done bool
}

// NewAMQPPublisher dials the broker and declares the queue.
func NewAMQPPublisher(url, queue string) (*AMQPPublisher, error) {
	p := &AMQPPublisher{url: url, queue: queue}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect must be called with mu held or before the publisher is shared.
func (p *AMQPPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	p.conn = conn
	if err := p.openChannel(); err != nil {
		conn.Close()
		return err
	}
	return nil
}

// openChannel opens a channel on p.conn and declares the queue. mu must be held.
func (p *AMQPPublisher) openChannel() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		p.queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		ch.Close()
		return fmt.Errorf("amqp queue declare: %w", err)
	}
	p.ch = ch
	return nil
}

// ensureChannel redials when the connection is gone and reopens the channel
// when only the channel was closed by the broker. mu must be held.
func (p *AMQPPublisher) ensureChannel(ctx context.Context) error {
	if p.conn == nil || p.conn.IsClosed() {
		log.Ctx(ctx).Warn().Str("queue", p.queue).Msg("AMQP connection lost, reconnecting")
		return p.connect()
	}
	if p.ch == nil || p.ch.IsClosed() {
		log.Ctx(ctx).Warn().Str("queue", p.queue).Msg("AMQP channel closed, reopening")
		return p.openChannel()
	}
	return nil
}

func (p *AMQPPublisher) PublishOverridden(ctx context.Context, event OverriddenEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done {
		return ErrPublisherClosed
	}
	if err := p.ensureChannel(ctx); err != nil {
		return err
	}

	return p.ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Type:         event.Type,
			Body:         body,
		},
	)
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return nil
	}
	p.done = true
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
