package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Domenick1991/coursebot/internal/domain"
	"github.com/Domenick1991/coursebot/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, userID int64, now time.Time) (*domain.Session, error) {
	args := m.Called(ctx, userID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockStore) Save(ctx context.Context, s *domain.Session) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockStore) Delete(ctx context.Context, userID int64) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetSession(ctx context.Context, userID int64) (*domain.Session, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockCache) SetSession(ctx context.Context, s *domain.Session) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockCache) DeleteSession(ctx context.Context, userID int64) error {
	return m.Called(ctx, userID).Error(0)
}

var now = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func newService(store *MockStore, cache *MockCache) *Service {
	s := &Service{store: store, ttl: 24 * time.Hour, log: logger.Discard(), now: func() time.Time { return now }}
	if cache != nil {
		s.cache = cache
	}
	return s
}

func TestService_Get_EmptyWhenMissing(t *testing.T) {
	store := &MockStore{}
	ctx := context.Background()
	store.On("Get", ctx, int64(42), now).Return(nil, nil).Once()

	sess, err := newService(store, nil).Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), sess.UserID)
	assert.True(t, sess.Empty())
}

func TestService_Get_CacheHit(t *testing.T) {
	store := &MockStore{}
	cache := &MockCache{}
	ctx := context.Background()
	cached := &domain.Session{UserID: 42, PendingCourseID: 1, ExpiresAt: now.Add(time.Hour)}
	cache.On("GetSession", ctx, int64(42)).Return(cached, nil).Once()

	sess, err := newService(store, cache).Get(ctx, 42)
	require.NoError(t, err)
	assert.Same(t, cached, sess)
	store.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Get_CacheFailureFallsBack(t *testing.T) {
	store := &MockStore{}
	cache := &MockCache{}
	ctx := context.Background()
	stored := &domain.Session{UserID: 42, AwaitingEmail: true, ExpiresAt: now.Add(time.Hour)}

	cache.On("GetSession", ctx, int64(42)).Return(nil, errors.New("redis down")).Once()
	store.On("Get", ctx, int64(42), now).Return(stored, nil).Once()
	cache.On("SetSession", ctx, stored).Return(errors.New("redis down")).Once()

	sess, err := newService(store, cache).Get(ctx, 42)
	require.NoError(t, err)
	assert.True(t, sess.AwaitingEmail)
}

func TestService_Save_ExtendsExpiry(t *testing.T) {
	store := &MockStore{}
	ctx := context.Background()
	sess := &domain.Session{UserID: 42, PendingCourseID: 3}
	store.On("Save", ctx, sess).Return(nil).Once()

	require.NoError(t, newService(store, nil).Save(ctx, sess))
	assert.Equal(t, now.Add(24*time.Hour), sess.ExpiresAt)
}

func TestService_Save_EmptyDeletes(t *testing.T) {
	store := &MockStore{}
	cache := &MockCache{}
	ctx := context.Background()
	cache.On("DeleteSession", ctx, int64(42)).Return(nil).Once()
	store.On("Delete", ctx, int64(42)).Return(nil).Once()

	require.NoError(t, newService(store, cache).Save(ctx, &domain.Session{UserID: 42}))
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	cache.AssertExpectations(t)
}

func TestService_Update(t *testing.T) {
	store := &MockStore{}
	ctx := context.Background()
	store.On("Get", ctx, int64(42), now).Return(nil, nil).Once()
	store.On("Save", ctx, mock.MatchedBy(func(s *domain.Session) bool { return s.PendingLessonType == "cursor_lesson" })).Return(nil).Once()

	sess, err := newService(store, nil).Update(ctx, 42, func(s *domain.Session) {
		s.AwaitingEmail = true
		s.PendingLessonType = "cursor_lesson"
	})
	require.NoError(t, err)
	assert.True(t, sess.AwaitingEmail)
	store.AssertExpectations(t)
}
