// Package postgres implements every storage.Store interface against
// PostgreSQL via database/sql and lib/pq, grounded on the teacher's
// internal/app/storage/postgres.Store (same receiver-per-file split, same
// toNullString/toNullTime helpers, same existing-row-then-update shape).
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	"github.com/lib/pq"
)

// Store implements every storage interface backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Queryer returns the store's query primitive, satisfying storage.TxRunner.
func (s *Store) Queryer() storage.Queryer { return s.db }

// WithTx opens the transactional scope spec.md §4.A requires: fn receives
// the same Queryer primitive, bound to a *sql.Tx, and a non-nil return
// rolls the whole scope back.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, q storage.Queryer) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

var (
	_ storage.TxRunner         = (*Store)(nil)
	_ storage.UserStore        = (*Store)(nil)
	_ storage.TaskStore        = (*Store)(nil)
	_ storage.EscrowStore      = (*Store)(nil)
	_ storage.ProofStore       = (*Store)(nil)
	_ storage.DisputeStore     = (*Store)(nil)
	_ storage.OutboxStore      = (*Store)(nil)
	_ storage.StripeEventStore = (*Store)(nil)
	_ storage.LedgerStore      = (*Store)(nil)
	_ storage.SupplyStore      = (*Store)(nil)
	_ storage.CorrectionStore  = (*Store)(nil)
	_ storage.NotificationStore = (*Store)(nil)
)

type rowScanner interface {
	Scan(dest ...any) error
}

func toNullString(value string) sql.NullString {
	if strings.TrimSpace(value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func toNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func fromNullTime(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

func now() time.Time { return time.Now().UTC() }

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505), used where the schema itself is the source
// of truth for an invariant (I5, I9, badge/trust idempotency keys).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
