package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Domenick1991/coursebot/internal/domain"
	"github.com/Domenick1991/coursebot/internal/logger"
	"github.com/Domenick1991/coursebot/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) CreatePending(ctx context.Context, b *domain.Booking, r *domain.Redemption) (bool, error) {
	args := m.Called(ctx, b, r)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) LatestByStatus(ctx context.Context, userID int64, statuses ...domain.BookingStatus) (*domain.Booking, error) {
	args := m.Called(ctx, userID, statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) UpdateStatus(ctx context.Context, id, userID int64, from, to domain.BookingStatus) (*domain.Booking, error) {
	args := m.Called(ctx, id, userID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) List(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) CountByStatus(ctx context.Context) ([]domain.StatusCount, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.StatusCount), args.Error(1)
}

type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) Insert(ctx context.Context, event domain.Event) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockEventRepository) Summary(ctx context.Context, now time.Time) (*domain.StatsSummary, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StatsSummary), args.Error(1)
}

type MockMaintenanceRepository struct {
	mock.Mock
}

func (m *MockMaintenanceRepository) UserIDsByUsername(ctx context.Context, username string) ([]int64, error) {
	args := m.Called(ctx, username)
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockMaintenanceRepository) PurgeUsers(ctx context.Context, ids []int64) (*repository.PurgeResult, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PurgeResult), args.Error(1)
}

type MockStatsCache struct {
	mock.Mock
}

func (m *MockStatsCache) GetStats(ctx context.Context) (*domain.StatsSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StatsSummary), args.Error(1)
}

func (m *MockStatsCache) SetStats(ctx context.Context, s *domain.StatsSummary) error {
	return m.Called(ctx, s).Error(0)
}

type MockMessenger struct {
	mock.Mock
}

func (m *MockMessenger) SendText(ctx context.Context, chatID int64, text string) error {
	return m.Called(ctx, chatID, text).Error(0)
}

type courseNames map[int64]string

func (c courseNames) CourseName(id int64) string {
	if name, ok := c[id]; ok {
		return name
	}
	return "Неизвестный курс"
}

var now = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func newService(bookings *MockBookingRepository, events *MockEventRepository, maint *MockMaintenanceRepository, opts ...Option) *Service {
	s := NewService(bookings, events, maint, courseNames{1: "Vibe Coding"}, logger.Discard(), opts...)
	s.now = func() time.Time { return now }
	return s
}

func statusPtr(s domain.BookingStatus) *domain.BookingStatus { return &s }

func TestService_Summary_UsesCache(t *testing.T) {
	ctx := context.Background()
	events := &MockEventRepository{}
	cache := &MockStatsCache{}
	summary := &domain.StatsSummary{UsersToday: 3, RegistrationsByLesson: map[string]int{"cursor_lesson": 2}}

	cache.On("GetStats", ctx).Return(nil, nil).Once()
	events.On("Summary", ctx, now).Return(summary, nil).Once()
	cache.On("SetStats", ctx, summary).Return(nil).Once()
	cache.On("GetStats", ctx).Return(summary, nil).Once()

	s := newService(&MockBookingRepository{}, events, &MockMaintenanceRepository{}, WithStatsCache(cache))
	first, err := s.Summary(ctx)
	require.NoError(t, err)
	second, err := s.Summary(ctx)
	require.NoError(t, err)

	assert.Equal(t, summary, first)
	assert.Equal(t, summary, second)
	events.AssertNumberOfCalls(t, "Summary", 1)
	cache.AssertExpectations(t)
}

func TestService_Summary_CacheErrorFallsBack(t *testing.T) {
	ctx := context.Background()
	events := &MockEventRepository{}
	cache := &MockStatsCache{}
	summary := &domain.StatsSummary{BookingsToday: 1}

	cache.On("GetStats", ctx).Return(nil, errors.New("connection refused"))
	cache.On("SetStats", ctx, summary).Return(errors.New("connection refused"))
	events.On("Summary", ctx, now).Return(summary, nil)

	got, err := newService(&MockBookingRepository{}, events, &MockMaintenanceRepository{}, WithStatsCache(cache)).Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, got.BookingsToday)
}

func TestService_Unconfirmed_Flags(t *testing.T) {
	ctx := context.Background()
	bookings := &MockBookingRepository{}
	bookings.On("List", ctx, domain.BookingFilter{}).Return([]domain.Booking{
		{ID: 1, CourseID: 1, Status: domain.BookingStatusPending, CreatedAt: now.Add(-50 * time.Hour)},
		{ID: 2, CourseID: 1, Status: domain.BookingStatusPending, CreatedAt: now.Add(-30 * time.Hour)},
		{ID: 3, CourseID: 1, Status: domain.BookingStatusProofUploaded, CreatedAt: now.Add(-25 * time.Hour)},
		{ID: 4, CourseID: 1, Status: domain.BookingStatusProofUploaded, CreatedAt: now.Add(-3 * time.Hour)},
		{ID: 5, CourseID: 1, Status: domain.BookingStatusApproved, CreatedAt: now.Add(-90 * time.Hour)},
		{ID: 6, CourseID: 2, Status: domain.BookingStatusCancelled, CreatedAt: now.Add(-90 * time.Hour)},
	}, nil)

	got, err := newService(bookings, &MockEventRepository{}, &MockMaintenanceRepository{}).Unconfirmed(ctx)
	require.NoError(t, err)
	require.Len(t, got, 5)

	overdue := map[int64]bool{}
	for _, p := range got {
		overdue[p.Booking.ID] = p.Overdue
	}
	assert.Equal(t, map[int64]bool{1: true, 2: false, 3: true, 4: false, 6: false}, overdue)
	assert.Equal(t, 2, got[0].Days)
	assert.Equal(t, 2, got[0].Hours)
	assert.Equal(t, "Неизвестный курс", got[4].CourseName)
}

func TestService_Confirmed(t *testing.T) {
	ctx := context.Background()
	bookings := &MockBookingRepository{}
	bookings.On("List", ctx, domain.BookingFilter{Status: statusPtr(domain.BookingStatusApproved)}).
		Return([]domain.Booking{{ID: 5, CourseID: 1, Status: domain.BookingStatusApproved, CreatedAt: now}}, nil)

	got, err := newService(bookings, &MockEventRepository{}, &MockMaintenanceRepository{}).Confirmed(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Vibe Coding", got[0].CourseName)
}

func TestService_BookingSummary(t *testing.T) {
	ctx := context.Background()
	bookings := &MockBookingRepository{}
	bookings.On("CountByStatus", ctx).Return([]domain.StatusCount{
		{CourseID: 1, Status: domain.BookingStatusApproved, Count: 4},
		{CourseID: 1, Status: domain.BookingStatusPending, Count: 2},
		{CourseID: 2, Status: domain.BookingStatusPending, Count: 1},
	}, nil)

	got, err := newService(bookings, &MockEventRepository{}, &MockMaintenanceRepository{}).BookingSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Total)
	assert.Equal(t, 3, got.ByStatus[domain.BookingStatusPending])
	assert.Equal(t, 6, got.ByCourse["Vibe Coding"])
}

func TestService_PendingUserIDs(t *testing.T) {
	ctx := context.Background()
	bookings := &MockBookingRepository{}
	bookings.On("List", ctx, domain.BookingFilter{Status: statusPtr(domain.BookingStatusPending)}).
		Return([]domain.Booking{{UserID: 9}, {UserID: 3}, {UserID: 9}}, nil)

	ids, err := newService(bookings, &MockEventRepository{}, &MockMaintenanceRepository{}).PendingUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 9}, ids)
}

func TestService_DeleteTestUser(t *testing.T) {
	ctx := context.Background()
	maint := &MockMaintenanceRepository{}
	maint.On("UserIDsByUsername", ctx, "tester").Return([]int64{77}, nil)
	maint.On("PurgeUsers", ctx, []int64{77}).Return(&repository.PurgeResult{UserIDs: []int64{77}, Bookings: 2}, nil)

	res, err := newService(&MockBookingRepository{}, &MockEventRepository{}, maint).DeleteTestUser(ctx, "@tester")
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Bookings)
	maint.AssertExpectations(t)
}

func TestService_DeleteTestUser_Unknown(t *testing.T) {
	ctx := context.Background()
	maint := &MockMaintenanceRepository{}
	maint.On("UserIDsByUsername", ctx, "ghost").Return([]int64{}, nil)

	_, err := newService(&MockBookingRepository{}, &MockEventRepository{}, maint).DeleteTestUser(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	maint.AssertNotCalled(t, "PurgeUsers", mock.Anything, mock.Anything)

	_, err = newService(&MockBookingRepository{}, &MockEventRepository{}, maint).DeleteTestUser(ctx, " @ ")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestService_Broadcast_DryRunSendsNothing(t *testing.T) {
	ctx := context.Background()
	bookings := &MockBookingRepository{}
	bookings.On("List", ctx, domain.BookingFilter{Status: statusPtr(domain.BookingStatusApproved)}).
		Return([]domain.Booking{{UserID: 1, FirstName: "Anna", CourseID: 1}, {UserID: 2, CourseID: 1}}, nil)
	messenger := &MockMessenger{}

	res, err := newService(bookings, &MockEventRepository{}, &MockMaintenanceRepository{}, WithMessenger(messenger)).
		Broadcast(ctx, "Привет, {first_name}! Курс {course_name}", false)
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, "Привет, Anna! Курс Vibe Coding", res.Messages[0].Text)
	assert.Equal(t, "Привет, Участник! Курс Vibe Coding", res.Messages[1].Text)
	messenger.AssertNotCalled(t, "SendText", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Broadcast_Send(t *testing.T) {
	ctx := context.Background()
	bookings := &MockBookingRepository{}
	bookings.On("List", ctx, domain.BookingFilter{Status: statusPtr(domain.BookingStatusApproved)}).
		Return([]domain.Booking{{UserID: 1, FirstName: "Anna", CourseID: 1}, {UserID: 2, FirstName: "Ivan", CourseID: 1}}, nil)
	messenger := &MockMessenger{}
	messenger.On("SendText", ctx, int64(1), "Hi Anna").Return(nil)
	messenger.On("SendText", ctx, int64(2), "Hi Ivan").Return(errors.New("Forbidden: bot was blocked by the user"))

	res, err := newService(bookings, &MockEventRepository{}, &MockMaintenanceRepository{},
		WithMessenger(messenger), WithBroadcastPause(0)).Broadcast(ctx, "Hi {first_name}", true)
	require.NoError(t, err)
	assert.False(t, res.DryRun)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Failed)
	assert.NotEmpty(t, res.Messages[1].Error)
}

func TestService_Broadcast_Rejected(t *testing.T) {
	s := newService(&MockBookingRepository{}, &MockEventRepository{}, &MockMaintenanceRepository{})
	_, err := s.Broadcast(context.Background(), "  ", false)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = s.Broadcast(context.Background(), "hello", true)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
