package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/eventsphere/internal/config"
	"github.com/iliyamo/eventsphere/internal/model"
	"github.com/iliyamo/eventsphere/internal/monitoring"
)

// Queue is the producer side of the notification queue.
type Queue struct {
	pub     Publisher
	cfg     config.QueueConfig
	log     *zap.Logger
	metrics *monitoring.Metrics
	now     func() time.Time
}

// NewQueue returns a producer publishing through pub.  metrics may be nil.
func NewQueue(pub Publisher, cfg config.QueueConfig, log *zap.Logger, metrics *monitoring.Metrics) *Queue {
	return &Queue{pub: pub, cfg: cfg, log: log, metrics: metrics, now: time.Now}
}

// DefaultOptions is the configured retry policy: MaxAttempts attempts
// with exponential backoff starting at BackoffBase.
func (q *Queue) DefaultOptions() JobOptions {
	return JobOptions{
		Attempts: q.cfg.MaxAttempts,
		Backoff: Backoff{
			Type:  BackoffExponential,
			Delay: q.cfg.BackoffBase.Milliseconds(),
		},
	}
}

// Enqueue durably queues a job named name carrying data.  The returned job
// is the handle of the queued message.
func (q *Queue) Enqueue(ctx context.Context, name string, data any, opts JobOptions) (*Job, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", name, err)
	}
	job := &Job{
		ID:        uuid.NewString(),
		Name:      name,
		Data:      raw,
		Opts:      opts,
		Timestamp: q.now().UTC(),
	}
	msg, err := encode(job, 0)
	if err != nil {
		return nil, err
	}
	if err := q.pub.Publish(ctx, q.cfg.Queue, msg); err != nil {
		return nil, err
	}
	q.metrics.TrackJob(name, "enqueued")
	q.log.Debug("job enqueued", zap.String("job_id", job.ID), zap.String("job", name))
	return job, nil
}

// TicketPurchased queues the purchase confirmation for data.
func (q *Queue) TicketPurchased(ctx context.Context, data model.TicketPurchasedData) (*Job, error) {
	return q.Enqueue(ctx, JobTicketPurchased, data, q.DefaultOptions())
}
