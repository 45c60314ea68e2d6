package session

import (
	"context"
	"time"

	"github.com/Domenick1991/coursebot/internal/domain"
	"github.com/Domenick1991/coursebot/internal/repository"
	"github.com/sirupsen/logrus"
)

type Cache interface {
	GetSession(ctx context.Context, userID int64) (*domain.Session, error)
	SetSession(ctx context.Context, s *domain.Session) error
	DeleteSession(ctx context.Context, userID int64) error
}

// Service keeps conversation state in Postgres with a sliding TTL. Redis, when
// configured, is a read-through cache in front of it.
type Service struct {
	store repository.SessionRepository
	cache Cache
	ttl   time.Duration
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewService(store repository.SessionRepository, cache Cache, ttl time.Duration, log logrus.FieldLogger) *Service {
	return &Service{store: store, cache: cache, ttl: ttl, log: log, now: time.Now}
}

// Get never returns nil: a user without a live session gets an empty one.
func (s *Service) Get(ctx context.Context, userID int64) (*domain.Session, error) {
	now := s.now()
	if s.cache != nil {
		cached, err := s.cache.GetSession(ctx, userID)
		if err != nil {
			s.log.WithError(err).Warn("session cache read failed")
		} else if cached != nil && !cached.Expired(now) {
			return cached, nil
		}
	}

	stored, err := s.store.Get(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return &domain.Session{UserID: userID}, nil
	}
	s.cacheSet(ctx, stored)
	return stored, nil
}

// Save extends the expiry. An empty session is deleted instead of stored.
func (s *Service) Save(ctx context.Context, sess *domain.Session) error {
	if sess.Empty() {
		return s.Reset(ctx, sess.UserID)
	}
	sess.ExpiresAt = s.now().Add(s.ttl)
	if err := s.store.Save(ctx, sess); err != nil {
		return err
	}
	s.cacheSet(ctx, sess)
	return nil
}

func (s *Service) Update(ctx context.Context, userID int64, fn func(*domain.Session)) (*domain.Session, error) {
	sess, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	fn(sess)
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) Reset(ctx context.Context, userID int64) error {
	if s.cache != nil {
		if err := s.cache.DeleteSession(ctx, userID); err != nil {
			s.log.WithError(err).Warn("session cache delete failed")
		}
	}
	return s.store.Delete(ctx, userID)
}

func (s *Service) Sweep(ctx context.Context) (int64, error) {
	return s.store.DeleteExpired(ctx, s.now())
}

func (s *Service) cacheSet(ctx context.Context, sess *domain.Session) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetSession(ctx, sess); err != nil {
		s.log.WithError(err).Warn("session cache write failed")
	}
}
