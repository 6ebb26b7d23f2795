package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"learncircle/internal/util"
)

var errPublisherClosed = errors.New("amqp publisher closed")

// AMQPPublisher publishes JSON envelopes to a durable topic exchange. A lost
// connection or channel is re-established on the next Publish.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	closed   bool
	dial     func() (*amqp.Connection, *amqp.Channel, error)
}

// NewAMQPPublisher dials url and declares the exchange.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("amqp url required")
	}
	if strings.TrimSpace(exchange) == "" {
		exchange = DefaultExchange
	}
	p := &AMQPPublisher{
		exchange: exchange,
		dial:     func() (*amqp.Connection, *amqp.Channel, error) { return dialExchange(url, exchange) },
	}
	conn, ch, err := p.dial()
	if err != nil {
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return p, nil
}

func dialExchange(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp declare exchange: %w", err)
	}
	return conn, ch, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	msg, err := encode(routingKey, payload)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureChannel(); err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
}

// ensureChannel redials after a broker restart. Callers hold p.mu.
func (p *AMQPPublisher) ensureChannel() error {
	if p.closed {
		return errPublisherClosed
	}
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	if p.conn != nil && !p.conn.IsClosed() {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
	conn, ch, err := p.dial()
	if err != nil {
		return fmt.Errorf("amqp reconnect: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
		p.ch = nil
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
		p.conn = nil
	}
	return errors.Join(errs...)
}

func encode(routingKey string, payload any) (amqp.Publishing, error) {
	now := time.Now().UTC()
	body, err := json.Marshal(Envelope{Type: routingKey, OccurredAt: now, Data: payload})
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    util.NewID(),
		Timestamp:    now,
		Type:         routingKey,
		Body:         body,
	}, nil
}
