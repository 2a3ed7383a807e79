package memory

import (
	"context"
	"sort"
	"time"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/supply"
)

func capacityKey(expertiseCode, zoneID string) string { return expertiseCode + "|" + zoneID }

func (s *Store) GetActiveExpertiseCount(ctx context.Context, q storage.Queryer, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ue := range s.expertise {
		if ue.UserID == userID && ue.Active {
			n++
		}
	}
	return n, nil
}

func (s *Store) GetActiveExpertise(ctx context.Context, q storage.Queryer, userID, expertiseCode string) (supply.UserExpertise, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ue := range s.expertise {
		if ue.UserID == userID && ue.ExpertiseCode == expertiseCode && ue.Active {
			return ue, true, nil
		}
	}
	return supply.UserExpertise{}, false, nil
}

func (s *Store) GetLatestInactiveExpertise(ctx context.Context, q storage.Queryer, userID, expertiseCode string) (supply.UserExpertise, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest supply.UserExpertise
	found := false
	for _, ue := range s.expertise {
		if ue.UserID == userID && ue.ExpertiseCode == expertiseCode && !ue.Active {
			if !found || ue.RemovedAt.After(latest.RemovedAt) {
				latest = ue
				found = true
			}
		}
	}
	return latest, found, nil
}

func (s *Store) HasFutureLock(ctx context.Context, q storage.Queryer, userID string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ue := range s.expertise {
		if ue.UserID == userID && ue.Active && ue.LockedUntil.After(now) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) DeleteExpertise(ctx context.Context, q storage.Queryer, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.expertise, id)
	return nil
}

func (s *Store) InsertExpertise(ctx context.Context, q storage.Queryer, ue supply.UserExpertise) (supply.UserExpertise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ue.ID == "" {
		ue.ID = s.nextID("expertise")
	}
	s.expertise[ue.ID] = ue
	return ue, nil
}

func (s *Store) GetCapacityForUpdate(ctx context.Context, q storage.Queryer, expertiseCode, zoneID string) (supply.Capacity, error) {
	c, ok := s.capacity[capacityKey(expertiseCode, zoneID)]
	if !ok {
		return supply.Capacity{}, apperrors.NotFound("capacity", capacityKey(expertiseCode, zoneID))
	}
	return c, nil
}

func (s *Store) UpdateCapacity(ctx context.Context, q storage.Queryer, c supply.Capacity, expectedVersion int) (supply.Capacity, error) {
	key := capacityKey(c.ExpertiseCode, c.ZoneID)
	existing, ok := s.capacity[key]
	if !ok {
		c.Version = 1
		s.capacity[key] = c
		return c, nil
	}
	if existing.Version != expectedVersion {
		return supply.Capacity{}, apperrors.VersionConflict("capacity", expectedVersion, existing.Version)
	}
	c.Version = existing.Version + 1
	s.capacity[key] = c
	return c, nil
}

func (s *Store) InsertWaitlist(ctx context.Context, q storage.Queryer, w supply.WaitlistEntry) (supply.WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID == "" {
		w.ID = s.nextID("waitlist")
	}
	s.waitlist[w.ID] = w
	return w, nil
}

func (s *Store) ListWaitlistFIFO(ctx context.Context, q storage.Queryer, expertiseCode, zoneID string) ([]supply.WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []supply.WaitlistEntry
	for _, w := range s.waitlist {
		if w.ExpertiseCode == expertiseCode && w.ZoneID == zoneID && !w.Cancelled {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *Store) UpdateWaitlist(ctx context.Context, q storage.Queryer, w supply.WaitlistEntry) (supply.WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.waitlist[w.ID]; !ok {
		return supply.WaitlistEntry{}, apperrors.NotFound("waitlist_entry", w.ID)
	}
	s.waitlist[w.ID] = w
	return w, nil
}

func (s *Store) ListAllExpertise(ctx context.Context, q storage.Queryer) ([]supply.UserExpertise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]supply.UserExpertise, 0, len(s.expertise))
	for _, ue := range s.expertise {
		out = append(out, ue)
	}
	return out, nil
}

func (s *Store) ListAllCapacity(ctx context.Context, q storage.Queryer) ([]supply.Capacity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]supply.Capacity, 0, len(s.capacity))
	for _, c := range s.capacity {
		out = append(out, c)
	}
	return out, nil
}

// AppendChangeLog is best-effort (§4.G): it never returns an error because
// the gate decision it records must not be rolled back by an audit-row
// failure.
func (s *Store) AppendChangeLog(ctx context.Context, q storage.Queryer, entry supply.ChangeLogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = s.nextID("changelog")
	}
	s.changeLog = append(s.changeLog, entry)
}

var _ storage.SupplyStore = (*Store)(nil)
