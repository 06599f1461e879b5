package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"barber_booking_echo/internal/models"
)

const RoutingBookingConfirmed = "booking.confirmed"

// BookingPublisher announces confirmed bookings to downstream consumers
// such as calendar sync.
type BookingPublisher interface {
	PublishBookingConfirmed(ctx context.Context, booking *models.ConfirmedBooking) error
}

// NopPublisher drops events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishBookingConfirmed(context.Context, *models.ConfirmedBooking) error {
	return nil
}

// BookingEvent is the envelope published on the booking exchange.
type BookingEvent struct {
	Event      string                   `json:"event"`
	Version    int                      `json:"version"`
	OccurredAt time.Time                `json:"occurred_at"`
	Data       *models.ConfirmedBooking `json:"data"`
}

// RabbitPublisher publishes JSON events to a topic exchange.
type RabbitPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewRabbitPublisher(url, exchange string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &RabbitPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *RabbitPublisher) PublishBookingConfirmed(ctx context.Context, booking *models.ConfirmedBooking) error {
	return p.PublishJSON(ctx, RoutingBookingConfirmed, BookingEvent{
		Event:      RoutingBookingConfirmed,
		Version:    1,
		OccurredAt: time.Now().UTC(),
		Data:       booking,
	})
}

func (p *RabbitPublisher) PublishJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         b,
	})
}

func (p *RabbitPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
