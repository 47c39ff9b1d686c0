package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/eventsphere/internal/config"
)

// Publisher sends one message to a queue through the default exchange.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg amqp.Publishing) error
}

// QueueDeclarer is the part of *amqp.Channel used to declare topology.
type QueueDeclarer interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
}

// DeclareTopology declares the durable work queue and the retry queue.
// Messages published to the retry queue carry a per-message expiration;
// when it elapses the broker dead-letters them back into the work queue.
func DeclareTopology(ch QueueDeclarer, cfg config.QueueConfig) error {
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", cfg.Queue, err)
	}
	args := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.Queue,
	}
	if _, err := ch.QueueDeclare(cfg.RetryQueue, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare %s: %w", cfg.RetryQueue, err)
	}
	return nil
}

// Broker owns the publishing connection.  It dials lazily on the first
// publish and re-dials after any failure, so a broker outage at startup
// or mid-flight only fails the publishes made while it lasts.
type Broker struct {
	cfg  config.QueueConfig
	log  *zap.Logger
	dial func(url string) (*amqp.Connection, error)

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewBroker returns a broker for cfg.URL.  No connection is made yet.
func NewBroker(cfg config.QueueConfig, log *zap.Logger) *Broker {
	return &Broker{cfg: cfg, log: log, dial: dialer(cfg)}
}

// dialer connects with cfg.DialTimeout instead of amqp.Dial's 30s default,
// so publishers queued behind the broker lock fail fast during an outage.
func dialer(cfg config.QueueConfig) func(url string) (*amqp.Connection, error) {
	return func(url string) (*amqp.Connection, error) {
		return amqp.DialConfig(url, amqp.Config{
			Heartbeat: 10 * time.Second,
			Locale:    "en_US",
			Dial:      amqp.DefaultDial(cfg.DialTimeout),
		})
	}
}

// Publish sends msg to queue.  Messages are made persistent.
func (b *Broker) Publish(ctx context.Context, queue string, msg amqp.Publishing) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	ch, err := b.channelLocked()
	if err != nil {
		return err
	}
	msg.DeliveryMode = amqp.Persistent
	if err := ch.PublishWithContext(ctx, "", queue, false, false, msg); err != nil {
		b.log.Warn("rabbitmq: publish failed", zap.String("queue", queue), zap.Error(err))
		b.resetLocked()
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	return nil
}

func (b *Broker) channelLocked() (*amqp.Channel, error) {
	if b.ch != nil && !b.ch.IsClosed() {
		return b.ch, nil
	}
	b.resetLocked()

	conn, err := b.dial(b.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel open: %w", err)
	}
	if err := DeclareTopology(ch, b.cfg); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	b.conn, b.ch = conn, ch
	return ch, nil
}

func (b *Broker) resetLocked() {
	if b.ch != nil {
		_ = b.ch.Close()
		b.ch = nil
	}
	if b.conn != nil {
		_ = b.conn.Close()
		b.conn = nil
	}
}

// Close releases the publishing connection.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
	return nil
}

// encode wraps job in an AMQP message.  A positive delay becomes the
// per-message expiration used by the retry queue.
func encode(job *Job, delay time.Duration) (amqp.Publishing, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Type:         job.Name,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if delay > 0 {
		msg.Expiration = strconv.FormatInt(delay.Milliseconds(), 10)
	}
	return msg, nil
}
