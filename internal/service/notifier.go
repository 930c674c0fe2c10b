package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atcms-project/atcms-api/pkg/config"
	"github.com/atcms-project/atcms-api/pkg/jobs"
	"github.com/atcms-project/atcms-api/pkg/mailer"
)

// Notifier delivers outbound email asynchronously through the background job
// queue, so a slow or failing mail backend never blocks request handling.
type Notifier struct {
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotifier wires a mailer behind a retrying worker queue.
func NewNotifier(m mailer.Mailer, cfg config.MailerConfig, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}

	handler := func(ctx context.Context, job jobs.Job) error {
		msg, ok := job.Payload.(mailer.Message)
		if !ok {
			logger.Error("unexpected email job payload", zap.String("job_id", job.ID))
			return nil
		}
		return m.Send(msg)
	}

	queue := jobs.NewQueue("email", handler, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return &Notifier{queue: queue, logger: logger}
}

// WithMetrics attaches delivery instrumentation.
func (n *Notifier) WithMetrics(m *MetricsService) *Notifier {
	n.metrics = m
	return n
}

// Start launches the delivery workers.
func (n *Notifier) Start(ctx context.Context) {
	n.queue.Start(ctx)
}

// Stop drains the workers.
func (n *Notifier) Stop() {
	n.queue.Stop()
}

// QueueEmail enqueues a message for delivery. Failures are logged, never
// surfaced to the caller: email is best-effort.
func (n *Notifier) QueueEmail(msg mailer.Message) {
	job := jobs.Job{ID: uuid.NewString(), Type: "email", Payload: msg}
	if err := n.queue.Enqueue(job); err != nil {
		n.logger.Warn("failed to enqueue email",
			zap.String("to", msg.ToEmail),
			zap.String("subject", msg.Subject),
			zap.Error(err))
		return
	}
	n.metrics.CountEmailQueued()
}
