package notification

import (
	"context"
	"time"

	"github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/logging"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	domnotification "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/notification"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/platform/notifychannel"
)

// EmailDispatcherConfig controls the email_outbox poll cadence and claim
// batch size, mirroring outbox.DispatcherConfig's shape for the same
// claim/process/mark-result loop applied to a different table.
type EmailDispatcherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

// DefaultEmailDispatcherConfig polls every 2 seconds, claims up to 25 rows
// per tick, and gives up after 5 attempts.
func DefaultEmailDispatcherConfig() EmailDispatcherConfig {
	return EmailDispatcherConfig{PollInterval: 2 * time.Second, BatchSize: 25, MaxAttempts: 5}
}

// EmailDispatcher drains the email_outbox state machine
// (pending→sending→sent|failed|suppressed) spec.md §4.I describes, the
// channel-driver half of the per-user notification fan-out the Service
// only inserts rows for.
type EmailDispatcher struct {
	runner storage.TxRunner
	store  storage.NotificationStore
	sender notifychannel.EmailSender
	cfg    EmailDispatcherConfig
	log    *logging.Logger
}

// NewEmailDispatcher constructs an EmailDispatcher sending mail through
// sender.
func NewEmailDispatcher(runner storage.TxRunner, store storage.NotificationStore, sender notifychannel.EmailSender, cfg EmailDispatcherConfig, log *logging.Logger) *EmailDispatcher {
	return &EmailDispatcher{runner: runner, store: store, sender: sender, cfg: cfg, log: log}
}

// Run polls email_outbox until ctx is cancelled.
func (d *EmailDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.poll(ctx)
		}
	}
}

func (d *EmailDispatcher) poll(ctx context.Context) {
	rows, err := d.store.ClaimPendingEmails(ctx, d.runner.Queryer(), d.cfg.BatchSize)
	if err != nil {
		d.log.WithError(err).Error("email_dispatcher: claim pending failed")
		return
	}
	for _, row := range rows {
		d.send(ctx, row)
	}
}

func (d *EmailDispatcher) send(ctx context.Context, row domnotification.EmailOutboxRow) {
	providerID, err := d.sender.Send(ctx, row.ToAddress, emailSubject(row), emailBody(row))
	if err == nil {
		if markErr := d.store.MarkEmailResult(ctx, d.runner.Queryer(), row.ID, domnotification.EmailSent, providerID, time.Time{}); markErr != nil {
			d.log.WithError(markErr).Error("email_dispatcher: mark sent failed")
		}
		return
	}

	maxAttempts := d.cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if row.Attempts+1 >= maxAttempts {
		d.log.WithFields(map[string]interface{}{"email_outbox_id": row.ID, "attempts": row.Attempts + 1}).WithError(err).Error("email_dispatcher: row exhausted retries")
		if markErr := d.store.MarkEmailResult(ctx, d.runner.Queryer(), row.ID, domnotification.EmailFailed, "", time.Time{}); markErr != nil {
			d.log.WithError(markErr).Error("email_dispatcher: mark failed failed")
		}
		return
	}
	backoff := time.Duration(row.Attempts+1) * 30 * time.Second
	if markErr := d.store.MarkEmailResult(ctx, d.runner.Queryer(), row.ID, domnotification.EmailFailed, "", time.Now().UTC().Add(backoff)); markErr != nil {
		d.log.WithError(markErr).Error("email_dispatcher: mark retry failed")
	}
}

func emailSubject(row domnotification.EmailOutboxRow) string {
	return "Notification"
}

func emailBody(row domnotification.EmailOutboxRow) string {
	return "You have a new notification. Notification ID: " + row.NotificationID
}
