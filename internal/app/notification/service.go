// Package notification implements per-user notifications and the
// admin-broadcast fan-out of spec.md §4.I. Grounded on
// internal/app/services/gasbank/service.go's store-backed Service shape;
// the admin-id cache is internal/platform/cache wrapping go-redis/v8 (the
// teacher's go.mod carries it unused).
package notification

import (
	"context"
	"time"

	"github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/logging"
	core "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/core/service"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	domnotification "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/notification"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/platform/cache"
)

// AdminCacheKey is the cache key the admin-id cohort is stored under.
const AdminCacheKey = "notification:admin_user_ids"

// AdminCacheTTL is §4.I's fixed 5-minute admin-id cache window.
const AdminCacheTTL = 5 * time.Minute

// Service implements per-user notification dispatch and admin-broadcast.
type Service struct {
	runner        storage.TxRunner
	notifications storage.NotificationStore
	cache         cache.Cache
	log           *logging.Logger
}

// New constructs a notification Service.
func New(runner storage.TxRunner, notifications storage.NotificationStore, c cache.Cache, log *logging.Logger) *Service {
	return &Service{runner: runner, notifications: notifications, cache: c, log: log}
}

// Descriptor advertises the service's placement and capabilities.
func (s *Service) Descriptor() core.Descriptor {
	return core.Descriptor{
		Name:         "notification",
		Domain:       "marketplace",
		Layer:        core.LayerEngine,
		Capabilities: []string{"notify", "broadcast"},
	}
}

// Notify inserts a per-user notification and, if its category routes to
// the email channel, a pending email_outbox row. taskID is empty for
// admin-cohort notifications, which bypasses the "must be a participant"
// check by construction (there is no task to be a participant of).
func (s *Service) Notify(ctx context.Context, userID, taskID string, category domnotification.Category, priority domnotification.Priority, title, body string) (domnotification.Notification, error) {
	var result domnotification.Notification
	err := s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		n := domnotification.Notification{
			UserID:   userID,
			TaskID:   taskID,
			Category: category,
			Priority: priority,
			Title:    title,
			Body:     body,
			Channels: domnotification.ChannelsFor(category),
		}
		inserted, err := s.notifications.InsertNotification(ctx, q, n)
		if err != nil {
			return err
		}
		result = inserted

		for _, ch := range inserted.Channels {
			if ch != domnotification.ChannelEmail {
				continue
			}
			_, err := s.notifications.InsertEmailOutbox(ctx, q, domnotification.EmailOutboxRow{
				NotificationID: inserted.ID,
				ToAddress:      userID, // resolved to an address by the email channel driver
				State:          domnotification.EmailPending,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domnotification.Notification{}, err
	}
	return result, nil
}

// Broadcast fans a security_alert notification out to every admin-cohort
// user, using the 5-minute admin-id cache. The Postgres store's cohort is
// every ACTIVE user with the is_admin flag set; there is no per-role
// filter, so admin, founder and moderator roles are not distinguished.
// Individual delivery failures are logged; one user's failure never
// short-circuits the rest of the cohort.
func (s *Service) Broadcast(ctx context.Context, title, body string) error {
	adminIDs, err := s.adminUserIDs(ctx)
	if err != nil {
		return err
	}
	for _, userID := range adminIDs {
		if _, err := s.Notify(ctx, userID, "", domnotification.CategorySecurityAlert, domnotification.PriorityCritical, title, body); err != nil {
			s.log.WithFields(map[string]interface{}{"user_id": userID, "error": err.Error()}).Error("admin-broadcast notify failed")
		}
	}
	return nil
}

// adminUserIDs returns the cached admin cohort, refreshing it from storage
// on a cache miss.
func (s *Service) adminUserIDs(ctx context.Context) ([]string, error) {
	if cached, ok, err := s.cache.Get(ctx, AdminCacheKey); err == nil && ok {
		return splitIDs(cached), nil
	}

	var ids []string
	err := s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		var err error
		ids, err = s.notifications.ListAdminUserIDs(ctx, q)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, AdminCacheKey, joinIDs(ids), AdminCacheTTL); err != nil {
		s.log.WithFields(map[string]interface{}{"error": err.Error()}).Warn("admin-id cache write failed, proceeding uncached")
	}
	return ids, nil
}

// InvalidateAdminCache drops the cached admin cohort; called by the hook
// on any role-change write.
func (s *Service) InvalidateAdminCache(ctx context.Context) error {
	return s.cache.Delete(ctx, AdminCacheKey)
}

func joinIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += id
	}
	return out
}

func splitIDs(joined string) []string {
	if joined == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(joined); i++ {
		if i == len(joined) || joined[i] == ',' {
			out = append(out, joined[start:i])
			start = i + 1
		}
	}
	return out
}
