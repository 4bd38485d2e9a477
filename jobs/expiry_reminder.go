package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
)

// ExpiryReminderJob notifies owners of documents whose validity deadline
// falls inside the reminder window. It only reads document state; the
// expired status itself is computed lazily by the engine on every read.
type ExpiryReminderJob struct {
	pool    *pgxpool.Pool
	client  *Client
	logger  *slog.Logger
	window  time.Duration
	metrics *jobmetrics.Metrics
}

// NewExpiryReminderJob constructs the job.
func NewExpiryReminderJob(pool *pgxpool.Pool, client *Client, logger *slog.Logger, window time.Duration, metrics *jobmetrics.Metrics) *ExpiryReminderJob {
	if window <= 0 {
		window = 72 * time.Hour
	}
	return &ExpiryReminderJob{pool: pool, client: client, logger: logger, window: window, metrics: metrics}
}

type reminderRow struct {
	refNumber  string
	kind       string
	ownerEmail string
	validUntil time.Time
}

// Handle processes TaskTypeExpiryReminders tasks.
func (j *ExpiryReminderJob) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := j.metrics.Track("expiry_reminders")
	return tracker.End(j.run(ctx))
}

func (j *ExpiryReminderJob) run(ctx context.Context) error {
	now := time.Now()
	rows, err := j.pool.Query(ctx, `
		SELECT d.ref_number, d.kind, u.email, d.valid_until
		FROM sales_documents d
		JOIN users u ON u.id = d.created_by
		WHERE d.status IN ('SENT','ACCEPTED')
		  AND d.valid_until IS NOT NULL
		  AND d.valid_until > $1
		  AND d.valid_until <= $2`, now, now.Add(j.window))
	if err != nil {
		return fmt.Errorf("expiry reminders: query: %w", err)
	}
	defer rows.Close()

	var reminders []reminderRow
	for rows.Next() {
		var r reminderRow
		if err := rows.Scan(&r.refNumber, &r.kind, &r.ownerEmail, &r.validUntil); err != nil {
			return fmt.Errorf("expiry reminders: scan: %w", err)
		}
		reminders = append(reminders, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, r := range reminders {
		payload := SendEmailPayload{
			To:      r.ownerEmail,
			Subject: fmt.Sprintf("%s %s expires on %s", r.kind, r.refNumber, r.validUntil.Format("2006-01-02")),
			Body:    fmt.Sprintf("Document %s is awaiting a customer response and expires on %s.", r.refNumber, r.validUntil.Format("2006-01-02")),
		}
		if _, err := j.client.EnqueueSendEmail(ctx, payload); err != nil {
			j.logger.Warn("enqueue reminder", slog.String("ref", r.refNumber), slog.Any("error", err))
		}
	}

	j.metrics.AddReminders(len(reminders))
	j.logger.Info("expiry reminder scan complete", slog.Int("documents", len(reminders)))
	return nil
}
