package lessons

import (
	"context"
	"testing"
	"time"

	"github.com/Domenick1991/coursebot/internal/domain"
	"github.com/Domenick1991/coursebot/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRegistrationRepository struct {
	mock.Mock
}

func (m *MockRegistrationRepository) Upsert(ctx context.Context, reg *domain.Registration) (bool, error) {
	args := m.Called(ctx, reg)
	return args.Bool(0), args.Error(1)
}

func (m *MockRegistrationRepository) Get(ctx context.Context, userID int64, lessonType string) (*domain.Registration, error) {
	args := m.Called(ctx, userID, lessonType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Registration), args.Error(1)
}

func (m *MockRegistrationRepository) PendingNotification(ctx context.Context, lessonType string) ([]domain.Registration, error) {
	args := m.Called(ctx, lessonType)
	return args.Get(0).([]domain.Registration), args.Error(1)
}

func (m *MockRegistrationRepository) MarkNotified(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockRegistrationRepository) List(ctx context.Context, lessonType string) ([]domain.Registration, error) {
	args := m.Called(ctx, lessonType)
	return args.Get(0).([]domain.Registration), args.Error(1)
}

func (m *MockRegistrationRepository) CountByLesson(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[string]int), args.Error(1)
}

type lessonCatalog map[string]domain.Lesson

func (c lessonCatalog) Lesson(lessonType string) (domain.Lesson, error) {
	l, ok := c[lessonType]
	if !ok {
		return domain.Lesson{}, domain.ErrNotFound
	}
	return l, nil
}

func (c lessonCatalog) LessonByID(id int64) (domain.Lesson, error) {
	for _, l := range c {
		if l.ID == id {
			return l, nil
		}
	}
	return domain.Lesson{}, domain.ErrNotFound
}

var start = time.Date(2026, 10, 25, 19, 0, 0, 0, time.FixedZone("MSK", 3*3600))

var catalog = lessonCatalog{
	"cursor_lesson": {ID: 1, LessonType: "cursor_lesson", StartsAt: start, IsActive: true},
	"python_lesson": {ID: 2, LessonType: "python_lesson", IsActive: true},
	"old_lesson":    {ID: 3, LessonType: "old_lesson", IsActive: false},
}

func newService(repo *MockRegistrationRepository, now time.Time) *Service {
	s := NewService(repo, catalog, nil, 2*time.Hour, logger.Discard())
	s.now = func() time.Time { return now }
	return s
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("anna.k+course@mail.example.com"))
	assert.False(t, ValidEmail("anna@mail"))
	assert.False(t, ValidEmail("not an email"))
	assert.False(t, ValidEmail(""))
}

func TestService_Register_DistinctLessonTypes(t *testing.T) {
	repo := &MockRegistrationRepository{}
	s := newService(repo, start.Add(-24*time.Hour))
	ctx := context.Background()
	who := domain.Identity{UserID: 42, FirstName: "Anna"}

	repo.On("Upsert", ctx, mock.MatchedBy(func(r *domain.Registration) bool { return r.LessonType == "cursor_lesson" })).
		Run(func(args mock.Arguments) { args.Get(1).(*domain.Registration).ID = 1 }).Return(true, nil).Once()
	repo.On("Upsert", ctx, mock.MatchedBy(func(r *domain.Registration) bool { return r.LessonType == "python_lesson" })).
		Run(func(args mock.Arguments) { args.Get(1).(*domain.Registration).ID = 2 }).Return(true, nil).Once()
	repo.On("Upsert", ctx, mock.MatchedBy(func(r *domain.Registration) bool {
		return r.LessonType == "cursor_lesson" && r.Email == "new@mail.com"
	})).Run(func(args mock.Arguments) { args.Get(1).(*domain.Registration).ID = 1 }).Return(false, nil).Once()

	first, err := s.Register(ctx, who, "cursor_lesson", "anna@mail.com")
	require.NoError(t, err)
	assert.True(t, first.Created)
	require.NotNil(t, first.Registration.LessonDate)
	assert.Equal(t, 25, first.Registration.LessonDate.Day())

	second, err := s.Register(ctx, who, "python_lesson", "anna@mail.com")
	require.NoError(t, err)
	assert.True(t, second.Created)
	assert.Nil(t, second.Registration.LessonDate)

	third, err := s.Register(ctx, who, "cursor_lesson", " new@mail.com ")
	require.NoError(t, err)
	assert.False(t, third.Created)
	assert.Equal(t, first.Registration.ID, third.Registration.ID)

	repo.AssertExpectations(t)
}

func TestService_Register_Rejected(t *testing.T) {
	tests := []struct {
		name       string
		now        time.Time
		lessonType string
		email      string
		wantErr    error
	}{
		{"bad email", start.Add(-time.Hour), "cursor_lesson", "nope", domain.ErrInvalidEmail},
		{"unknown lesson", start.Add(-time.Hour), "missing", "a@b.co", domain.ErrNotFound},
		{"inactive lesson", start.Add(-time.Hour), "old_lesson", "a@b.co", domain.ErrLessonUnavailable},
		{"finished", start.Add(2*time.Hour + time.Minute), "cursor_lesson", "a@b.co", domain.ErrLessonFinished},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockRegistrationRepository{}
			_, err := newService(repo, tt.now).Register(context.Background(), domain.Identity{UserID: 1}, tt.lessonType, tt.email)
			assert.ErrorIs(t, err, tt.wantErr)
			repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
		})
	}
}

func TestService_Open(t *testing.T) {
	s := newService(&MockRegistrationRepository{}, start.Add(90*time.Minute))
	l, err := s.Open(1)
	require.NoError(t, err)
	assert.Equal(t, "cursor_lesson", l.LessonType)

	s = newService(&MockRegistrationRepository{}, start.Add(3*time.Hour))
	_, err = s.Open(1)
	assert.ErrorIs(t, err, domain.ErrLessonFinished)
}

func TestService_Existing(t *testing.T) {
	repo := &MockRegistrationRepository{}
	ctx := context.Background()
	repo.On("Get", ctx, int64(42), "cursor_lesson").Return(nil, domain.ErrNotFound).Once()

	reg, err := newService(repo, start).Existing(ctx, 42, "cursor_lesson")
	require.NoError(t, err)
	assert.Nil(t, reg)
}
