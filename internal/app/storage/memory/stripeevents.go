package memory

import (
	"context"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/stripeevent"
)

// InsertIfAbsent is the at-most-once ingest primitive backing the webhook
// handler (§4.F step 2): a second delivery of the same external id is a
// no-op, stored=false, not an error.
func (s *Store) InsertIfAbsent(ctx context.Context, q storage.Queryer, ev stripeevent.Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stripeEvents[ev.ExternalID]; ok {
		return false, nil
	}
	s.stripeEvents[ev.ExternalID] = ev
	return true, nil
}

func (s *Store) Get(ctx context.Context, q storage.Queryer, externalID string) (stripeevent.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.stripeEvents[externalID]
	if !ok {
		return stripeevent.Event{}, apperrors.NotFound("stripe_event", externalID)
	}
	return ev, nil
}

var _ storage.StripeEventStore = (*Store)(nil)
