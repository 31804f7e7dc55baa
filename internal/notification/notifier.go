package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// PaymentConfirmedEvent is published for the notification collaborator that
// renders and sends the confirmation email.
type PaymentConfirmedEvent struct {
	EventID    string    `json:"event_id"`
	UserID     string    `json:"user_id"`
	OrderID    string    `json:"order_id"`
	Amount     float64   `json:"amount"`
	OccurredAt time.Time `json:"occurred_at"`
}

const routingKeyPaymentConfirmed = "payment.confirmed"

type RabbitNotifier struct {
	conn     *amqp091.Connection
	exchange string
}

func NewRabbitNotifier(url, exchange string) (*RabbitNotifier, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &RabbitNotifier{conn: conn, exchange: exchange}, nil
}

func (n *RabbitNotifier) PaymentConfirmed(ctx context.Context, userID, orderID uuid.UUID, amount float64) error {
	evt := PaymentConfirmedEvent{
		EventID:    uuid.New().String(),
		UserID:     userID.String(),
		OrderID:    orderID.String(),
		Amount:     amount,
		OccurredAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal confirmation event: %w", err)
	}

	ch, err := n.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	return ch.PublishWithContext(ctx, n.exchange, routingKeyPaymentConfirmed, false, false, amqp091.Publishing{
		ContentType: "application/json",
		Body:        payload,
	})
}

func (n *RabbitNotifier) Close() error {
	return n.conn.Close()
}

// NopNotifier is used when no broker is configured.
type NopNotifier struct{}

func (NopNotifier) PaymentConfirmed(ctx context.Context, userID, orderID uuid.UUID, amount float64) error {
	log.Debug().Stringer("order_id", orderID).Msg("notification: broker not configured, confirmation skipped")
	return nil
}
