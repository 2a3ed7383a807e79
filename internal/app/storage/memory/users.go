package memory

import (
	"context"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/user"
)

func (s *Store) CreateUser(ctx context.Context, q storage.Queryer, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return user.User{}, apperrors.AlreadyExists("user", u.ID)
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, q storage.Queryer, id string) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return user.User{}, apperrors.NotFound("user", id)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, q storage.Queryer, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return user.User{}, apperrors.NotFound("user", u.ID)
	}
	s.users[u.ID] = u
	return u, nil
}

// AwardBadge inserts a badge unless the same (user, code, source event) was
// already recorded, making badge awards idempotent on outbox replay (I7).
func (s *Store) AwardBadge(ctx context.Context, q storage.Queryer, b user.Badge) (user.Badge, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := b.UserID + "|" + b.Code + "|" + b.SourceEventID
	if existing, ok := s.badges[key]; ok {
		return existing, false, nil
	}
	if b.ID == "" {
		b.ID = s.nextID("badge")
	}
	s.badges[key] = b
	return b, true, nil
}

var _ storage.UserStore = (*Store)(nil)
