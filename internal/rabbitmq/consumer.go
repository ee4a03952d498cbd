package rabbitmq

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

// AccountCleaner is the cascade cleanup entry point driven by account events.
type AccountCleaner interface {
	DeleteAccountData(ctx context.Context, accountID int64) (repositories.CleanupResult, error)
}

// accountDeletedEvent is the payload the account service publishes when an
// account is removed.
type accountDeletedEvent struct {
	AccountID int64 `json:"account_id"`
}

// AccountEventConsumer consumes account-deletion events and runs the cascade
// cleanup for each. A failed cleanup is logged and the delivery is dropped
// without requeue: retrying a partially understood failure risks double
// deletion, so it is left to operator intervention.
type AccountEventConsumer struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	queue   string
	cleaner AccountCleaner
	timeout time.Duration
	logger  zerolog.Logger
}

// NewAccountEventConsumer connects to RabbitMQ and binds the cleanup queue to
// the account events exchange.
func NewAccountEventConsumer(amqpURL, exchange, queue, routingKey string, cleaner AccountCleaner, timeout time.Duration, logger zerolog.Logger) (*AccountEventConsumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	if err := ch.QueueBind(queue, routingKey, exchange, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &AccountEventConsumer{
		conn:    conn,
		ch:      ch,
		queue:   queue,
		cleaner: cleaner,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Start consumes deliveries until the context is cancelled or the channel
// closes.
func (c *AccountEventConsumer) Start(ctx context.Context) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					return
				}
				c.handleDelivery(ctx, delivery)
			}
		}
	}()

	c.logger.Info().Str("queue", c.queue).Msg("account event consumer started")
	return nil
}

func (c *AccountEventConsumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	var event accountDeletedEvent
	if err := json.Unmarshal(delivery.Body, &event); err != nil || event.AccountID <= 0 {
		c.logger.Error().Err(err).Str("body", string(delivery.Body)).Msg("malformed account event dropped")
		_ = delivery.Nack(false, false)
		return
	}

	cleanupCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.cleaner.DeleteAccountData(cleanupCtx, event.AccountID)
	if err != nil {
		observability.IncAccountCleanup("failed")
		c.logger.Error().
			Err(err).
			Int64("account_id", event.AccountID).
			Msg("account cleanup failed, manual intervention required")
		_ = delivery.Nack(false, false)
		return
	}

	observability.IncAccountCleanup("ok")
	c.logger.Info().
		Int64("account_id", event.AccountID).
		Int64("messages", result.Messages).
		Int64("notifications", result.Notifications).
		Int64("histories", result.Histories).
		Msg("account data cleaned up")
	_ = delivery.Ack(false)
}

// Close tears down the channel and connection.
func (c *AccountEventConsumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
