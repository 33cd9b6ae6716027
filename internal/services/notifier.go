package services

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"

	"alfredoptarigan/swiss-cv-analyser/internal/models"
)

// StatusNotifier announces analysis state changes to interested clients.
type StatusNotifier interface {
	Publish(update models.StatusUpdate) error
	Close() error
}

type noopNotifier struct{}

func NewNoopNotifier() StatusNotifier {
	return noopNotifier{}
}

func (noopNotifier) Publish(models.StatusUpdate) error { return nil }
func (noopNotifier) Close() error                      { return nil }

type amqpNotifier struct {
	conn     *amqp.Connection
	exchange string
	mu       sync.Mutex
	ch       *amqp.Channel
}

// NewAMQPNotifier publishes updates to a topic exchange with routing key
// "analysis.<id>".
func NewAMQPNotifier(url, exchange string) (StatusNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("error connecting to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &amqpNotifier{conn: conn, exchange: exchange, ch: ch}, nil
}

func (n *amqpNotifier) Publish(update models.StatusUpdate) error {
	body, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal status update: %w", err)
	}

	// amqp channels are not safe for concurrent publishing
	n.mu.Lock()
	defer n.mu.Unlock()

	err = n.ch.Publish(
		n.exchange,
		fmt.Sprintf("analysis.%s", update.ID),
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish status update: %w", err)
	}

	log.Debug().Str("analysis_id", update.ID).Str("status", update.Status).Msg("📣 Status update published")
	return nil
}

func (n *amqpNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.ch.Close(); err != nil {
		log.Warn().Err(err).Msg("⚠️ Failed to close RabbitMQ channel")
	}
	return n.conn.Close()
}
