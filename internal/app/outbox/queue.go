package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/fallback"
	domoutbox "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/outbox"
)

// Handler processes one claimed outbox row. A returned error makes the
// queue's retry policy run the handler again; once its attempts are
// exhausted the row is marked failed.
type Handler func(ctx context.Context, row domoutbox.Row) error

// QueueConfig is the per-queue worker pool size and retry policy (§4.B:
// "each queue has its own worker pool size and retry policy").
type QueueConfig struct {
	Workers     int
	MaxAttempts int
	Retry       RetryPolicy
}

// DefaultQueueConfigs returns the five named queues from spec.md §4.B with
// sane worker counts: payment and trust queues get more concurrency since
// they gate user-visible money/reputation state, exports and maintenance
// are best-effort and get one worker each.
func DefaultQueueConfigs() map[domoutbox.Queue]QueueConfig {
	retryFor := func(maxAttempts int) RetryPolicy {
		cfg := fallback.DefaultConfig()
		cfg.MaxAttempts = maxAttempts
		return NewRetryPolicy(cfg)
	}
	return map[domoutbox.Queue]QueueConfig{
		domoutbox.QueueCriticalPayments: {Workers: 4, MaxAttempts: 8, Retry: retryFor(8)},
		domoutbox.QueueCriticalTrust:    {Workers: 4, MaxAttempts: 8, Retry: retryFor(8)},
		domoutbox.QueueUserNotif:        {Workers: 2, MaxAttempts: 5, Retry: retryFor(5)},
		domoutbox.QueueExports:          {Workers: 1, MaxAttempts: 3, Retry: retryFor(3)},
		domoutbox.QueueMaintenance:      {Workers: 1, MaxAttempts: 3, Retry: retryFor(3)},
	}
}

// Router keys a bounded, in-process channel per queue and runs Workers
// goroutines per queue draining it through the registered Handler for that
// row's EventType.
type Router struct {
	mu       sync.RWMutex
	configs  map[domoutbox.Queue]QueueConfig
	channels map[domoutbox.Queue]chan domoutbox.Row
	handlers map[domoutbox.EventType]Handler
}

// NewRouter builds a Router with the given per-queue configs.
func NewRouter(configs map[domoutbox.Queue]QueueConfig) *Router {
	r := &Router{
		configs:  configs,
		channels: make(map[domoutbox.Queue]chan domoutbox.Row),
		handlers: make(map[domoutbox.EventType]Handler),
	}
	for q := range configs {
		r.channels[q] = make(chan domoutbox.Row, 256)
	}
	return r
}

// RegisterHandler binds a Handler to an EventType. Rows of an unregistered
// type are logged and left in the ENQUEUED status they were claimed into;
// they are neither marked processed nor failed, and are not claimed again.
func (r *Router) RegisterHandler(eventType domoutbox.EventType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[eventType] = h
}

func (r *Router) handlerFor(eventType domoutbox.EventType) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[eventType]
	return h, ok
}

// Publish enqueues row onto its queue's channel. Blocks if the channel is
// full, applying backpressure back to the poller.
func (r *Router) Publish(ctx context.Context, row domoutbox.Row) {
	ch, ok := r.channels[row.Queue]
	if !ok {
		return
	}
	select {
	case ch <- row:
	case <-ctx.Done():
	}
}

// Run starts each queue's worker pool; blocks until ctx is cancelled.
func (r *Router) Run(ctx context.Context, onResult func(row domoutbox.Row, err error, handled bool, duration time.Duration)) {
	var wg sync.WaitGroup
	for queue, cfg := range r.configs {
		ch := r.channels[queue]
		workers := cfg.Workers
		if workers <= 0 {
			workers = 1
		}
		retry := cfg.Retry
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(ch chan domoutbox.Row) {
				defer wg.Done()
				for {
					select {
					case <-ctx.Done():
						return
					case row, ok := <-ch:
						if !ok {
							return
						}
						handler, found := r.handlerFor(row.EventType)
						if !found {
							onResult(row, nil, false, 0)
							continue
						}
						// The queue's retry policy runs the handler to
						// exhaustion here, inside the worker, rather than
						// re-claiming the row on a later poll tick: outbox
						// rows have only two terminal states the dispatcher
						// writes back (processed, failed), never a
						// "retry later" intermediate one.
						start := time.Now()
						err := retry.Do(ctx, func(ctx context.Context) error {
							return handler(ctx, row)
						})
						onResult(row, err, true, time.Since(start))
					}
				}
			}(ch)
		}
	}
	<-ctx.Done()
	wg.Wait()
}
