package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/eventsphere/internal/config"
	"github.com/iliyamo/eventsphere/internal/monitoring"
)

// Handler processes one job.  A returned error (or a panic) counts as a
// failed attempt.
type Handler func(ctx context.Context, job *Job) error

const maxDialBackoff = 30 * time.Second

// Worker consumes the notification queue.
type Worker struct {
	cfg      config.QueueConfig
	pub      Publisher
	log      *zap.Logger
	metrics  *monitoring.Metrics
	handlers map[string]Handler
	dial     func(url string) (*amqp.Connection, error)
}

// NewWorker returns a worker that reschedules failed jobs through pub.
func NewWorker(cfg config.QueueConfig, pub Publisher, log *zap.Logger, metrics *monitoring.Metrics) *Worker {
	return &Worker{
		cfg:      cfg,
		pub:      pub,
		log:      log,
		metrics:  metrics,
		handlers: map[string]Handler{},
		dial:     dialer(cfg),
	}
}

// Handle registers h for jobs named name.  It must be called before Run.
func (w *Worker) Handle(name string, h Handler) {
	w.handlers[name] = h
}

// Run connects to the broker and consumes until ctx is cancelled.  Lost
// connections are re-dialled with a doubling delay capped at 30s.
func (w *Worker) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := w.dial(w.cfg.URL)
		if err != nil {
			w.log.Warn("notification-worker: failed to dial broker",
				zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return nil
			}
			if backoff < maxDialBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = w.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		w.log.Warn("notification-worker: consume loop ended; reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (w *Worker) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(w.cfg.Prefetch, 0, false); err != nil {
		w.log.Warn("notification-worker: set QoS failed", zap.Error(err))
	}
	if err := DeclareTopology(ch, w.cfg); err != nil {
		return err
	}
	msgs, err := ch.Consume(w.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	w.log.Info("notification-worker: consuming", zap.String("queue", w.cfg.Queue))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			w.process(ctx, d)
		}
	}
}

// process runs one delivery to completion and settles it.  A failed job
// is acknowledged only after its retry has been published, so a broker
// failure in between redelivers the original message instead of losing it.
func (w *Worker) process(ctx context.Context, d amqp.Delivery) {
	var job Job
	if err := json.Unmarshal(d.Body, &job); err != nil || job.Name == "" {
		w.log.Error("notification-worker: undecodable message, rejecting",
			zap.String("message_id", d.MessageId), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	h, ok := w.handlers[job.Name]
	if !ok {
		w.log.Warn("notification-worker: no handler for job, discarding",
			zap.String("job_id", job.ID), zap.String("job", job.Name))
		_ = d.Ack(false)
		return
	}

	err := w.run(context.WithoutCancel(ctx), h, &job)
	if err == nil {
		w.metrics.TrackJob(job.Name, "completed")
		w.log.Info("job completed", zap.String("job_id", job.ID), zap.String("job", job.Name))
		_ = d.Ack(false)
		return
	}

	job.AttemptsMade++
	if job.AttemptsMade >= job.maxAttempts() {
		w.metrics.TrackJob(job.Name, "dropped")
		w.log.Error("job failed permanently, dropping",
			zap.String("job_id", job.ID),
			zap.String("job", job.Name),
			zap.Int("attempts", job.AttemptsMade),
			zap.Error(err))
		_ = d.Ack(false)
		return
	}

	delay := job.Opts.Backoff.Wait(job.AttemptsMade)
	msg, encErr := encode(&job, delay)
	if encErr == nil {
		encErr = w.pub.Publish(context.WithoutCancel(ctx), w.cfg.RetryQueue, msg)
	}
	if encErr != nil {
		w.log.Error("notification-worker: scheduling retry failed, requeueing",
			zap.String("job_id", job.ID), zap.Error(encErr))
		_ = d.Nack(false, true)
		return
	}

	w.metrics.TrackJob(job.Name, "retried")
	w.log.Warn("job failed, retry scheduled",
		zap.String("job_id", job.ID),
		zap.String("job", job.Name),
		zap.Int("attempt", job.AttemptsMade),
		zap.Duration("delay", delay),
		zap.Error(err))
	_ = d.Ack(false)
}

func (w *Worker) run(ctx context.Context, h Handler, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, job)
}

// sleep waits for d or until ctx is done; it reports whether the full
// delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
