// Package storage defines the repository interfaces every component
// depends on, plus the transactional-scope primitive from spec.md §4.A:
// "exposes a query primitive and a transactional scope that accepts a
// callback receiving the same primitive bound to a connection holding the
// transaction." Grounded on the teacher's
// internal/app/storage/interfaces.go repository-per-aggregate split.
package storage

import (
	"context"
	"database/sql"
	"time"

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

// Queryer is the minimal surface shared by *sql.DB and *sql.Tx. Every store
// method takes one so it can run either standalone or inside a caller's
// transaction.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// TxRunner opens the single transactional scope every multi-row domain
// write runs inside (spec.md §4.A).
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, q Queryer) error) error
	Queryer() Queryer
}

// UserStore persists identities and badges.
type UserStore interface {
	CreateUser(ctx context.Context, q Queryer, u user.User) (user.User, error)
	GetUser(ctx context.Context, q Queryer, id string) (user.User, error)
	UpdateUser(ctx context.Context, q Queryer, u user.User) (user.User, error)
	AwardBadge(ctx context.Context, q Queryer, b user.Badge) (user.Badge, bool, error)
}

// TaskStore persists tasks.
type TaskStore interface {
	CreateTask(ctx context.Context, q Queryer, t task.Task) (task.Task, error)
	GetTask(ctx context.Context, q Queryer, id string) (task.Task, error)
	GetTaskForUpdate(ctx context.Context, q Queryer, id string) (task.Task, error)
	UpdateTask(ctx context.Context, q Queryer, t task.Task) (task.Task, error)
}

// EscrowStore persists escrows.
type EscrowStore interface {
	CreateEscrow(ctx context.Context, q Queryer, e escrow.Escrow) (escrow.Escrow, error)
	GetEscrow(ctx context.Context, q Queryer, id string) (escrow.Escrow, error)
	GetEscrowByTask(ctx context.Context, q Queryer, taskID string) (escrow.Escrow, error)
	GetEscrowForUpdate(ctx context.Context, q Queryer, id string) (escrow.Escrow, error)
	UpdateEscrow(ctx context.Context, q Queryer, e escrow.Escrow, expectedVersion int) (escrow.Escrow, error)
}

// ProofStore persists proofs and their photos.
type ProofStore interface {
	CreateProof(ctx context.Context, q Queryer, p proof.Proof) (proof.Proof, error)
	GetProof(ctx context.Context, q Queryer, id string) (proof.Proof, error)
	GetProofByTask(ctx context.Context, q Queryer, taskID string) (proof.Proof, error)
	UpdateProof(ctx context.Context, q Queryer, p proof.Proof) (proof.Proof, error)
	AddPhoto(ctx context.Context, q Queryer, ph proof.Photo) (proof.Photo, error)
	ListPhotos(ctx context.Context, q Queryer, proofID string) ([]proof.Photo, error)
}

// DisputeStore persists disputes.
type DisputeStore interface {
	CreateDispute(ctx context.Context, q Queryer, d dispute.Dispute) (dispute.Dispute, error)
	GetDispute(ctx context.Context, q Queryer, id string) (dispute.Dispute, error)
	GetDisputeForUpdate(ctx context.Context, q Queryer, id string) (dispute.Dispute, error)
	UpdateDispute(ctx context.Context, q Queryer, d dispute.Dispute, expectedVersion int) (dispute.Dispute, error)
}

// OutboxStore persists durable outbox rows.
type OutboxStore interface {
	Insert(ctx context.Context, q Queryer, row outbox.Row) (outbox.Row, error)
	ClaimPending(ctx context.Context, q Queryer, limit int) ([]outbox.Row, error)
	MarkEnqueued(ctx context.Context, q Queryer, id string) error
	MarkProcessed(ctx context.Context, q Queryer, id string) error
	MarkFailed(ctx context.Context, q Queryer, id string, attempts int) error
}

// StripeEventStore enforces at-most-once webhook ingest.
type StripeEventStore interface {
	// InsertIfAbsent returns stored=false when the external id already
	// exists (duplicate replay), per spec.md §4.F step 2.
	InsertIfAbsent(ctx context.Context, q Queryer, ev stripeevent.Event) (stored bool, err error)
	Get(ctx context.Context, q Queryer, externalID string) (stripeevent.Event, error)
}

// LedgerStore persists the three append-only ledgers.
type LedgerStore interface {
	AppendXP(ctx context.Context, q Queryer, e ledger.XPEntry) (ledger.XPEntry, error)
	HasXPForEscrow(ctx context.Context, q Queryer, escrowID string) (bool, error)
	AppendTrust(ctx context.Context, q Queryer, e ledger.TrustEntry) (ledger.TrustEntry, bool, error)
	AppendRevenue(ctx context.Context, q Queryer, e ledger.RevenueEntry) (ledger.RevenueEntry, error)
	// HasRevenueForExternalEvent backs effect-worker idempotency on
	// (provider_event_id, effect_kind): a retried webhook effect checks
	// this before appending a second revenue row for the same event.
	HasRevenueForExternalEvent(ctx context.Context, q Queryer, externalEventID string, eventType ledger.RevenueEventType) (bool, error)
}

// SupplyStore persists expertise slots, capacity rows and the waitlist.
type SupplyStore interface {
	GetActiveExpertiseCount(ctx context.Context, q Queryer, userID string) (int, error)
	GetActiveExpertise(ctx context.Context, q Queryer, userID, expertiseCode string) (supply.UserExpertise, bool, error)
	GetLatestInactiveExpertise(ctx context.Context, q Queryer, userID, expertiseCode string) (supply.UserExpertise, bool, error)
	HasFutureLock(ctx context.Context, q Queryer, userID string, now time.Time) (bool, error)
	DeleteExpertise(ctx context.Context, q Queryer, id string) error
	InsertExpertise(ctx context.Context, q Queryer, ue supply.UserExpertise) (supply.UserExpertise, error)
	GetCapacityForUpdate(ctx context.Context, q Queryer, expertiseCode, zoneID string) (supply.Capacity, error)
	UpdateCapacity(ctx context.Context, q Queryer, c supply.Capacity, expectedVersion int) (supply.Capacity, error)
	InsertWaitlist(ctx context.Context, q Queryer, w supply.WaitlistEntry) (supply.WaitlistEntry, error)
	ListWaitlistFIFO(ctx context.Context, q Queryer, expertiseCode, zoneID string) ([]supply.WaitlistEntry, error)
	UpdateWaitlist(ctx context.Context, q Queryer, w supply.WaitlistEntry) (supply.WaitlistEntry, error)
	ListAllExpertise(ctx context.Context, q Queryer) ([]supply.UserExpertise, error)
	ListAllCapacity(ctx context.Context, q Queryer) ([]supply.Capacity, error)
	AppendChangeLog(ctx context.Context, q Queryer, entry supply.ChangeLogEntry)
}

// CorrectionStore persists corrections and per-scope budget counters.
type CorrectionStore interface {
	GetBudgetCounter(ctx context.Context, q Queryer, scope, scopeID string, windowStart time.Time) (int, error)
	ConsumeBudget(ctx context.Context, q Queryer, scope, scopeID string, windowStart time.Time) (int, error)
	InsertCorrection(ctx context.Context, q Queryer, c correction.Correction) (correction.Correction, error)
	GetCorrection(ctx context.Context, q Queryer, id string) (correction.Correction, error)
	UpdateCorrection(ctx context.Context, q Queryer, c correction.Correction) (correction.Correction, error)
	ListExpired(ctx context.Context, q Queryer, now time.Time) ([]correction.Correction, error)
	ListForAnalysis(ctx context.Context, q Queryer, before time.Time) ([]correction.Correction, error)
}

// NotificationStore persists notifications and the email outbox.
type NotificationStore interface {
	InsertNotification(ctx context.Context, q Queryer, n notification.Notification) (notification.Notification, error)
	InsertEmailOutbox(ctx context.Context, q Queryer, e notification.EmailOutboxRow) (notification.EmailOutboxRow, error)
	ListAdminUserIDs(ctx context.Context, q Queryer) ([]string, error)
	// ClaimPendingEmails marks up to limit pending (or due-for-retry) rows
	// as sending and returns them, so the email dispatcher's poll loop
	// never hands the same row to two ticks at once.
	ClaimPendingEmails(ctx context.Context, q Queryer, limit int) ([]notification.EmailOutboxRow, error)
	MarkEmailResult(ctx context.Context, q Queryer, id string, state notification.EmailState, providerID string, nextRetryAt time.Time) error
}

// Stores aggregates every repository dependency a component needs. No
// defaulting step fills nil fields: a field left nil stays nil.
type Stores struct {
	Users         UserStore
	Tasks         TaskStore
	Escrows       EscrowStore
	Proofs        ProofStore
	Disputes      DisputeStore
	Outbox        OutboxStore
	StripeEvents  StripeEventStore
	Ledgers       LedgerStore
	Supply        SupplyStore
	Corrections   CorrectionStore
	Notifications NotificationStore
}
