package outbox

import (
	"context"
	"time"

	"github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/logging"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/metrics"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	domoutbox "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/outbox"
)

// DispatcherConfig controls the poll cadence and claim batch size (§5).
type DispatcherConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// DefaultDispatcherConfig polls every second and claims up to 50 rows per
// tick, mirroring the teacher's SchedulerInterval = time.Second cadence in
// services/automation.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{PollInterval: time.Second, BatchSize: 50}
}

// Dispatcher polls for pending outbox rows, claims them under
// FOR UPDATE SKIP LOCKED (via storage.OutboxStore.ClaimPending), and
// publishes them onto the Router's queues. Once a queue worker reports a
// result, the Dispatcher marks the row processed or failed.
type Dispatcher struct {
	runner storage.TxRunner
	store  storage.OutboxStore
	router *Router
	cfg    DispatcherConfig
	log    *logging.Logger

	maxAttempts map[domoutbox.Queue]int
}

// NewDispatcher builds a Dispatcher over runner/store, publishing claimed
// rows to router and logging with log.
func NewDispatcher(runner storage.TxRunner, store storage.OutboxStore, router *Router, cfg DispatcherConfig, queueConfigs map[domoutbox.Queue]QueueConfig, log *logging.Logger) *Dispatcher {
	maxAttempts := make(map[domoutbox.Queue]int, len(queueConfigs))
	for q, c := range queueConfigs {
		maxAttempts[q] = c.MaxAttempts
	}
	return &Dispatcher{runner: runner, store: store, router: router, cfg: cfg, log: log, maxAttempts: maxAttempts}
}

// Run starts the poll loop and the router's worker pools; blocks until ctx
// is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	go d.router.Run(ctx, d.handleResult)

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

func (d *Dispatcher) poll(ctx context.Context) {
	rows, err := d.store.ClaimPending(ctx, d.runner.Queryer(), d.cfg.BatchSize)
	if err != nil {
		d.log.WithError(err).Error("outbox: claim pending failed")
		return
	}
	if len(rows) == 0 {
		return
	}
	byQueue := make(map[domoutbox.Queue]int)
	for _, row := range rows {
		byQueue[row.Queue]++
		d.router.Publish(ctx, row)
	}
	for q, n := range byQueue {
		metrics.RecordOutboxClaim(string(q), n)
	}
}

func (d *Dispatcher) handleResult(row domoutbox.Row, err error, handled bool, duration time.Duration) {
	ctx := context.Background()
	if !handled {
		d.log.WithFields(map[string]interface{}{
			"outbox_id":  row.ID,
			"event_type": row.EventType,
		}).Warn("outbox: no handler registered for event type")
		return
	}
	metrics.RecordOutboxDispatch(string(row.EventType), duration, err)
	if err == nil {
		if markErr := d.store.MarkProcessed(ctx, d.runner.Queryer(), row.ID); markErr != nil {
			d.log.WithError(markErr).Error("outbox: mark processed failed")
		}
		return
	}

	// The worker's retry policy already ran the handler to exhaustion, so
	// any error reaching here is terminal: mark the row permanently failed
	// and surface it for operator triage rather than re-queuing it (§5, §7).
	max := d.maxAttempts[row.Queue]
	if max <= 0 {
		max = 3
	}
	d.log.WithFields(map[string]interface{}{
		"outbox_id":  row.ID,
		"event_type": row.EventType,
		"attempts":   max,
	}).WithError(err).Error("outbox: row exhausted retries, marking failed")
	if markErr := d.store.MarkFailed(ctx, d.runner.Queryer(), row.ID, max); markErr != nil {
		d.log.WithError(markErr).Error("outbox: mark failed update failed")
	}
}
