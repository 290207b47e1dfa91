package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, key string, msg Envelope) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, Envelope) error { return nil }
func (Nop) Close() error                                    { return nil }

// Config describes the AMQP broker connection.
type Config struct {
	URL           string
	Exchange      string
	RetryAttempts int
	Delay         time.Duration
}

const maxDialDelay = time.Minute

type amqpPublisher struct {
	conn     *amqp.Connection
	exchange string
	logger   zerolog.Logger
}

// NewAMQP dials the broker, declares a durable topic exchange and returns a
// publisher bound to it.
func NewAMQP(ctx context.Context, cfg Config, logger zerolog.Logger) (Publisher, error) {
	if cfg.Exchange == "" {
		return nil, errors.New("amqp exchange is required")
	}

	log := logger.With().Str("component", "amqp_publisher").Logger()
	conn, err := dial(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}

	return &amqpPublisher{conn: conn, exchange: cfg.Exchange, logger: log}, nil
}

func (p *amqpPublisher) Publish(ctx context.Context, key string, msg Envelope) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	msgID := msg.Meta.ID
	if msgID == "" {
		msgID = uuid.NewString()
	}
	correlationID := msg.Meta.CorrelationID
	if correlationID == "" {
		correlationID = msgID
	}

	err = ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     msgID,
		CorrelationId: correlationID,
		Type:          msg.Meta.Type,
		Timestamp:     time.Now(),
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}

	p.logger.Info().Str("key", key).Str("exchange", p.exchange).Str("message_id", msgID).Msg("event published")
	return nil
}

func (p *amqpPublisher) Close() error {
	return p.conn.Close()
}

func dial(ctx context.Context, cfg Config, logger zerolog.Logger) (*amqp.Connection, error) {
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		conn, err := amqp.Dial(cfg.URL)
		if err == nil {
			if i > 1 {
				logger.Info().Int("attempt", i).Msg("amqp connected")
			}
			return conn, nil
		}
		lastErr = err
		if i == attempts {
			break
		}

		sleep := backoff(cfg.Delay, i)
		logger.Warn().Err(err).Int("attempt", i).Dur("sleep", sleep).Msg("amqp dial failed")

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("amqp dial cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("failed to connect to amqp after %d attempts: %w", attempts, lastErr)
}

// backoff doubles delay per attempt, capped at a minute.
func backoff(delay time.Duration, attempt int) time.Duration {
	if delay <= 0 {
		delay = time.Second
	}
	sleep := delay
	for i := 1; i < attempt; i++ {
		sleep *= 2
		if sleep >= maxDialDelay {
			return maxDialDelay
		}
	}
	return sleep
}
