// Package memory is the in-process implementation of every storage
// interface, used by unit tests and as the zero-value default when no
// Postgres DSN is configured (mirrors the teacher's
// internal/app/storage/memory.Store pattern referenced from
// Stores.applyDefaults).
package memory

import (
	"context"
	"database/sql"
	"sync"

	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/correction"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/dispute"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/escrow"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/ledger"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/notification"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/outbox"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/proof"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/stripeevent"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/supply"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/task"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/user"
)

// Store is a mutex-guarded, in-memory implementation of every repository
// interface in package storage. Nothing here survives process restart;
// it exists for tests and local development only.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	users    map[string]user.User
	badges   map[string]user.Badge // key: userID+"|"+code+"|"+sourceEventID

	tasks map[string]task.Task

	escrows       map[string]escrow.Escrow
	escrowsByTask map[string]string

	proofs       map[string]proof.Proof
	proofsByTask map[string]string
	photos       map[string][]proof.Photo

	disputes map[string]dispute.Dispute

	outboxRows map[string]outbox.Row
	outboxKeys map[string]string // idempotency_key -> row id

	stripeEvents map[string]stripeevent.Event

	xpByEscrow  map[string]ledger.XPEntry
	trustByKey  map[string]ledger.TrustEntry
	revenue     []ledger.RevenueEntry

	expertise   map[string]supply.UserExpertise
	capacity    map[string]supply.Capacity // key: expertise|zone
	waitlist    map[string]supply.WaitlistEntry
	changeLog   []supply.ChangeLogEntry

	budgetCounters map[string]int
	corrections    map[string]correction.Correction

	notifications []notification.Notification
	emailOutbox   []notification.EmailOutboxRow
	adminUserIDs  []string

	seq int
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		users:          make(map[string]user.User),
		badges:         make(map[string]user.Badge),
		tasks:          make(map[string]task.Task),
		escrows:        make(map[string]escrow.Escrow),
		escrowsByTask:  make(map[string]string),
		proofs:         make(map[string]proof.Proof),
		proofsByTask:   make(map[string]string),
		photos:         make(map[string][]proof.Photo),
		disputes:       make(map[string]dispute.Dispute),
		outboxRows:     make(map[string]outbox.Row),
		outboxKeys:     make(map[string]string),
		stripeEvents:   make(map[string]stripeevent.Event),
		xpByEscrow:     make(map[string]ledger.XPEntry),
		trustByKey:     make(map[string]ledger.TrustEntry),
		expertise:      make(map[string]supply.UserExpertise),
		capacity:       make(map[string]supply.Capacity),
		waitlist:       make(map[string]supply.WaitlistEntry),
		budgetCounters: make(map[string]int),
		corrections:    make(map[string]correction.Correction),
	}
}

// nextID returns a short, deterministic, process-local id. Real ids are
// assigned by callers via google/uuid; this is only used for rows the
// memory store itself must originate (e.g. change-log entries).
func (s *Store) nextID(prefix string) string {
	s.seq++
	return prefix + "-" + itoa(s.seq)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// memQueryer is a no-op storage.Queryer: the in-memory store does not use
// SQL, but it must still satisfy the TxRunner surface so service code is
// written once against the storage.Queryer abstraction.
type memQueryer struct{}

func (memQueryer) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (memQueryer) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, nil
}
func (memQueryer) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

// Queryer returns the (unused) query primitive, satisfying storage.TxRunner.
func (s *Store) Queryer() storage.Queryer { return memQueryer{} }

// WithTx runs fn holding the store's transaction mutex for the duration of
// the callback, so transactions run one at a time, which gives the
// in-memory store the same single-writer semantics a row-locked Postgres
// transaction would provide for these aggregate sizes. The per-call mutex
// the aggregate methods take is a separate lock, so fn may call them.
// fn receiving an error aborts the whole scope: the
// memory store only applies mutations written directly into its maps by
// aggregate methods below, so "rollback" is simply "don't call them."
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, q storage.Queryer) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(ctx, memQueryer{})
}

var _ storage.TxRunner = (*Store)(nil)
