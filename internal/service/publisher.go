// Package service holds adapters from the engine to outside systems.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/reservation-engine/internal/queue"
)

// channel is the part of *amqp.Channel the publisher needs.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// dialer opens a channel and returns a func that closes it together
// with its connection.
type dialer func(url string) (channel, func() error, error)

func dialAMQP(url string) (channel, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, conn.Close, nil
}

// Publisher sends booking lifecycle events to a durable topic exchange,
// using the event name as routing key.  The connection is opened lazily
// and dropped after a failed publish so the next call redials.
type Publisher struct {
	url      string
	exchange string
	dial     dialer
	log      *zap.Logger

	mu    sync.Mutex
	ch    channel
	close func() error
}

func NewPublisher(url, exchange string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{url: url, exchange: exchange, dial: dialAMQP, log: log}
}

// Publish encodes ev as JSON and publishes it as a persistent message.
func (p *Publisher) Publish(ctx context.Context, ev queue.BookingEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         ev.Event,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connect(); err != nil {
		return err
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, ev.Event, false, false, msg); err != nil {
		p.log.Warn("rabbitmq: publish failed, dropping connection", zap.String("event", ev.Event), zap.Error(err))
		p.reset()
		return fmt.Errorf("publish %s: %w", ev.Event, err)
	}
	return nil
}

func (p *Publisher) connect() error {
	if p.ch != nil {
		return nil
	}
	ch, closeFn, err := p.dial(p.url)
	if err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = closeFn()
		return fmt.Errorf("declare exchange: %w", err)
	}
	p.ch, p.close = ch, closeFn
	return nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.close != nil {
		_ = p.close()
	}
	p.ch, p.close = nil, nil
}

// Close releases the connection, if any.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}
