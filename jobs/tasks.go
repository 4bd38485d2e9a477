package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeExpiryReminders scans for documents nearing their validity
	// deadline and enqueues reminder emails. It never mutates a document:
	// expiry itself is derived at read time.
	TaskTypeExpiryReminders = "sales:expiry_reminders"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewExpiryRemindersTask constructs the periodic reminder scan task.
func NewExpiryRemindersTask() *asynq.Task {
	return asynq.NewTask(TaskTypeExpiryReminders, nil)
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// TODO: replace the log delivery with the SMTP relay once it is provisioned.
	slog.Default().Info("send email", slog.String("to", payload.To), slog.String("subject", payload.Subject))
	return nil
}
