// Package rabbitmq publishes bridge audit records to a RabbitMQ exchange.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNotConnected is returned when publishing on a closed client
var ErrNotConnected = errors.New("not connected to RabbitMQ")

// Config holds RabbitMQ connection configuration
type Config struct {
	Host              string
	Port              int
	User              string
	Password          string
	VHost             string
	ExchangeName      string
	ExchangeType      string
	QueueName         string
	RoutingKey        string
	RetryAttempts     int
	RetryInterval     time.Duration
	Heartbeat         time.Duration
	PublishRetries    int
	PublishRetryDelay time.Duration
}

// DSN builds the AMQP connection URL
func (c *Config) DSN() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.VHost,
	}
	return u.String()
}

// Client is a publishing RabbitMQ client
type Client struct {
	config  *Config
	logger  *slog.Logger
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewClient connects to RabbitMQ, retrying up to RetryAttempts times, and
// declares the audit exchange and queue.
func NewClient(ctx context.Context, config *Config, logger *slog.Logger) (*Client, error) {
	client := &Client{
		config: config,
		logger: logger,
	}

	if err := client.connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ client: %w", err)
	}

	return client, nil
}

func (c *Client) connect(ctx context.Context) error {
	amqpConfig := amqp.Config{
		Heartbeat: c.config.Heartbeat,
		Locale:    "en_US",
	}

	attempts := max(c.config.RetryAttempts, 1)

	var (
		conn *amqp.Connection
		err  error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		c.logger.Info("Connecting to RabbitMQ",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
		)

		conn, err = amqp.DialConfig(c.config.DSN(), amqpConfig)
		if err == nil {
			break
		}

		c.logger.Error("Failed to connect to RabbitMQ",
			slog.String("error", err.Error()),
			slog.Int("attempt", attempt),
		)

		if attempt < attempts {
			if waitErr := sleepContext(ctx, c.config.RetryInterval); waitErr != nil {
				return waitErr
			}
		}
	}
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create channel: %w", err)
	}

	if err := setup(channel, c.config); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to setup exchange and queue: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = channel
	c.mu.Unlock()

	c.logger.Info("RabbitMQ client initialized",
		slog.String("exchange", c.config.ExchangeName),
		slog.String("queue", c.config.QueueName),
	)

	return nil
}

// setup declares the exchange and, when configured, a durable queue bound to it
func setup(channel *amqp.Channel, config *Config) error {
	err := channel.ExchangeDeclare(
		config.ExchangeName, // name
		config.ExchangeType, // type
		true,                // durable
		false,               // auto-deleted
		false,               // internal
		false,               // no-wait
		nil,                 // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if config.QueueName == "" {
		return nil
	}

	if _, err := channel.QueueDeclare(config.QueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := channel.QueueBind(config.QueueName, config.RoutingKey, config.ExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	return nil
}

// Publish sends a persistent message to the configured exchange, retrying
// with exponential backoff until PublishRetries is exhausted or ctx is done.
func (c *Client) Publish(ctx context.Context, body []byte, contentType string) error {
	retries := max(c.config.PublishRetries, 0)

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		lastErr = c.publishOnce(ctx, body, contentType)
		if lastErr == nil {
			c.logger.Debug("Message published to RabbitMQ",
				slog.Int("body_size", len(body)),
				slog.Int("attempt", attempt+1),
			)
			return nil
		}
		if errors.Is(lastErr, ErrNotConnected) {
			return lastErr
		}

		if attempt < retries {
			delay := Backoff(c.config.PublishRetryDelay, attempt)
			c.logger.Warn("Failed to publish message to RabbitMQ, retrying",
				slog.Int("attempt", attempt+1),
				slog.Duration("retry_after", delay),
				slog.String("error", lastErr.Error()),
			)
			if err := sleepContext(ctx, delay); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("failed to publish message after %d attempts: %w", retries+1, lastErr)
}

func (c *Client) publishOnce(ctx context.Context, body []byte, contentType string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel == nil || c.channel.IsClosed() {
		return ErrNotConnected
	}

	return c.channel.PublishWithContext(
		ctx,
		c.config.ExchangeName, // exchange
		c.config.RoutingKey,   // routing key
		false,                 // mandatory
		false,                 // immediate
		amqp.Publishing{
			ContentType:  contentType,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
}

// IsConnected reports whether the connection is open
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn != nil && !c.conn.IsClosed()
}

// Close closes the channel and connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.Warn("Failed to close RabbitMQ channel",
				slog.String("error", err.Error()),
			)
		}
		c.channel = nil
	}

	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		if err != nil {
			return fmt.Errorf("failed to close RabbitMQ connection: %w", err)
		}
	}

	c.logger.Info("RabbitMQ connection closed")
	return nil
}

// Backoff returns the delay before retry number attempt (0-based)
func Backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if attempt > 16 {
		attempt = 16
	}
	return base << uint(attempt)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
