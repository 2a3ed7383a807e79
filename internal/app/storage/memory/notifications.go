package memory

import (
	"context"
	"time"

	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/notification"
)

func (s *Store) InsertNotification(ctx context.Context, q storage.Queryer, n notification.Notification) (notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		n.ID = s.nextID("notification")
	}
	s.notifications = append(s.notifications, n)
	return n, nil
}

func (s *Store) InsertEmailOutbox(ctx context.Context, q storage.Queryer, e notification.EmailOutboxRow) (notification.EmailOutboxRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = s.nextID("email")
	}
	s.emailOutbox = append(s.emailOutbox, e)
	return e, nil
}

// ListAdminUserIDs returns the configured admin cohort. The memory store
// has no admin-role table; tests and local runs seed it via SetAdminUserIDs.
func (s *Store) ListAdminUserIDs(ctx context.Context, q storage.Queryer) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.adminUserIDs))
	copy(out, s.adminUserIDs)
	return out, nil
}

// SetAdminUserIDs seeds the admin cohort used by ListAdminUserIDs.
func (s *Store) SetAdminUserIDs(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adminUserIDs = append([]string(nil), ids...)
}

// ClaimPendingEmails claims up to limit rows in EmailPending state, or
// EmailFailed rows whose NextRetryAt has elapsed, flipping them to
// EmailSending before returning so a concurrent poll never double-sends.
func (s *Store) ClaimPendingEmails(ctx context.Context, q storage.Queryer, limit int) ([]notification.EmailOutboxRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := timeNow()
	var claimed []notification.EmailOutboxRow
	for i := range s.emailOutbox {
		if len(claimed) >= limit {
			break
		}
		row := s.emailOutbox[i]
		due := row.State == notification.EmailPending ||
			(row.State == notification.EmailFailed && !row.NextRetryAt.IsZero() && !row.NextRetryAt.After(now))
		if !due {
			continue
		}
		row.State = notification.EmailSending
		row.UpdatedAt = now
		s.emailOutbox[i] = row
		claimed = append(claimed, row)
	}
	return claimed, nil
}

// MarkEmailResult records the outcome of a send attempt.
func (s *Store) MarkEmailResult(ctx context.Context, q storage.Queryer, id string, state notification.EmailState, providerID string, nextRetryAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.emailOutbox {
		if s.emailOutbox[i].ID != id {
			continue
		}
		s.emailOutbox[i].State = state
		s.emailOutbox[i].ProviderID = providerID
		s.emailOutbox[i].NextRetryAt = nextRetryAt
		s.emailOutbox[i].UpdatedAt = timeNow()
		s.emailOutbox[i].Attempts++
		return nil
	}
	return nil
}

func timeNow() time.Time { return time.Now().UTC() }

var _ storage.NotificationStore = (*Store)(nil)
