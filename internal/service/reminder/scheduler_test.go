package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/coursebot/config"
	"github.com/Domenick1991/coursebot/internal/domain"
	"github.com/Domenick1991/coursebot/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memRegistrations keeps the latch semantics of the Postgres repository.
type memRegistrations struct {
	mu   sync.Mutex
	rows []domain.Registration
}

func (m *memRegistrations) Upsert(ctx context.Context, reg *domain.Registration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg.ID = int64(len(m.rows) + 1)
	m.rows = append(m.rows, *reg)
	return true, nil
}

func (m *memRegistrations) Get(ctx context.Context, userID int64, lessonType string) (*domain.Registration, error) {
	return nil, domain.ErrNotFound
}

func (m *memRegistrations) PendingNotification(ctx context.Context, lessonType string) ([]domain.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Registration
	for _, r := range m.rows {
		if r.LessonType == lessonType && !r.NotificationSent {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRegistrations) MarkNotified(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id && !m.rows[i].NotificationSent {
			m.rows[i].NotificationSent = true
			return true, nil
		}
	}
	return false, nil
}

func (m *memRegistrations) List(ctx context.Context, lessonType string) ([]domain.Registration, error) {
	return nil, nil
}

func (m *memRegistrations) CountByLesson(ctx context.Context) (map[string]int, error) {
	return nil, nil
}

func (m *memRegistrations) notified(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id {
			return r.NotificationSent
		}
	}
	return false
}

type recordingSender struct {
	mu       sync.Mutex
	sent     map[int64]int
	failFor  map[int64]bool
	sentLink string
}

func newSender() *recordingSender {
	return &recordingSender{sent: map[int64]int{}, failFor: map[int64]bool{}}
}

func (s *recordingSender) SendReminder(ctx context.Context, reg domain.Registration, lesson domain.Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[reg.UserID] {
		return errors.New("Forbidden: bot was blocked by the user")
	}
	s.sent[reg.UserID]++
	s.sentLink = lesson.MeetLink
	return nil
}

type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) AcquireReminderLock(ctx context.Context, lessonType string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, lessonType, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockLocker) ReleaseReminderLock(ctx context.Context, lessonType string) error {
	args := m.Called(ctx, lessonType)
	return args.Error(0)
}

type fixedLessons []domain.Lesson

func (f fixedLessons) ActiveLessons() []domain.Lesson {
	var out []domain.Lesson
	for _, l := range f {
		if l.IsActive {
			out = append(out, l)
		}
	}
	return out
}

func (f fixedLessons) Lesson(lessonType string) (domain.Lesson, error) {
	for _, l := range f {
		if l.LessonType == lessonType {
			return l, nil
		}
	}
	return domain.Lesson{}, domain.ErrNotFound
}

var (
	lessonStart = time.Date(2026, 10, 25, 16, 0, 0, 0, time.UTC)
	cursor      = domain.Lesson{ID: 1, LessonType: "cursor_lesson", StartsAt: lessonStart, MeetLink: "https://meet.example.com/abc", IsActive: true}
	reminderCfg = config.ReminderConfig{LeadMinutes: 15, WindowMinutes: 1, PollIntervalSeconds: 60}
)

func seed(regs *memRegistrations, userIDs ...int64) {
	for _, id := range userIDs {
		_, _ = regs.Upsert(context.Background(), &domain.Registration{UserID: id, LessonType: "cursor_lesson", Email: "a@b.co"})
	}
}

func newScheduler(regs *memRegistrations, sender Sender, opts ...Option) *Scheduler {
	return NewScheduler(regs, fixedLessons{cursor}, sender, reminderCfg, logger.Discard(), opts...)
}

func TestScheduler_Due(t *testing.T) {
	s := newScheduler(&memRegistrations{}, newSender())
	tests := []struct {
		name   string
		before time.Duration
		want   bool
	}{
		{"16 minutes before", 16 * time.Minute, true},
		{"15 minutes before", 15 * time.Minute, true},
		{"14 minutes before", 14 * time.Minute, true},
		{"17 minutes before", 17 * time.Minute, false},
		{"10 minutes before", 10 * time.Minute, false},
		{"after start", -time.Minute, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Due(cursor, lessonStart.Add(-tt.before)))
		})
	}

	unscheduled := cursor
	unscheduled.StartsAt = time.Time{}
	assert.False(t, s.Due(unscheduled, lessonStart.Add(-15*time.Minute)))
}

func TestScheduler_Tick_SendsOnceAcrossPasses(t *testing.T) {
	regs := &memRegistrations{}
	seed(regs, 1, 2, 3)
	sender := newSender()
	s := newScheduler(regs, sender)

	// three polls inside the window
	for _, before := range []time.Duration{16 * time.Minute, 15 * time.Minute, 14 * time.Minute} {
		at := lessonStart.Add(-before)
		s.now = func() time.Time { return at }
		s.Tick(context.Background())
	}

	assert.Equal(t, map[int64]int{1: 1, 2: 1, 3: 1}, sender.sent)
	assert.Equal(t, cursor.MeetLink, sender.sentLink)
}

func TestScheduler_Tick_OutsideWindow(t *testing.T) {
	regs := &memRegistrations{}
	seed(regs, 1)
	sender := newSender()
	s := newScheduler(regs, sender)
	s.now = func() time.Time { return lessonStart.Add(-time.Hour) }

	s.Tick(context.Background())

	assert.Empty(t, sender.sent)
	assert.False(t, regs.notified(1))
}

func TestScheduler_FailedSendIsRetried(t *testing.T) {
	regs := &memRegistrations{}
	seed(regs, 1, 2)
	sender := newSender()
	sender.failFor[2] = true
	s := newScheduler(regs, sender)

	res, err := s.SendNow(context.Background(), "cursor_lesson")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pending)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Failed)
	assert.True(t, regs.notified(1))
	assert.False(t, regs.notified(2))

	sender.failFor[2] = false
	res, err = s.SendNow(context.Background(), "cursor_lesson")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pending)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, map[int64]int{1: 1, 2: 1}, sender.sent)
}

func TestScheduler_ConcurrentPassesSendAtMostOnce(t *testing.T) {
	regs := &memRegistrations{}
	seed(regs, 1, 2, 3, 4, 5)
	sender := newSender()
	s := newScheduler(regs, sender)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.SendNow(context.Background(), "cursor_lesson")
		}()
	}
	wg.Wait()

	for id := int64(1); id <= 5; id++ {
		assert.Equal(t, 1, sender.sent[id], "user %d", id)
	}
}

func TestScheduler_SkipsWhenLockHeld(t *testing.T) {
	regs := &memRegistrations{}
	seed(regs, 1)
	sender := newSender()
	locker := &MockLocker{}
	locker.On("AcquireReminderLock", mock.Anything, "cursor_lesson", 3*time.Minute).Return(false, nil).Once()
	s := newScheduler(regs, sender, WithLocker(locker))

	res, err := s.SendNow(context.Background(), "cursor_lesson")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, sender.sent)
	locker.AssertExpectations(t)
}

func TestScheduler_ReleasesLock(t *testing.T) {
	regs := &memRegistrations{}
	seed(regs, 1)
	locker := &MockLocker{}
	locker.On("AcquireReminderLock", mock.Anything, "cursor_lesson", mock.Anything).Return(true, nil).Once()
	locker.On("ReleaseReminderLock", mock.Anything, "cursor_lesson").Return(nil).Once()
	s := newScheduler(regs, newSender(), WithLocker(locker))

	res, err := s.SendNow(context.Background(), "cursor_lesson")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	locker.AssertExpectations(t)
}

func TestScheduler_SendNow_Errors(t *testing.T) {
	s := newScheduler(&memRegistrations{}, newSender())
	_, err := s.SendNow(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	noLink := cursor
	noLink.MeetLink = ""
	s = NewScheduler(&memRegistrations{}, fixedLessons{noLink}, newSender(), reminderCfg, logger.Discard())
	_, err = s.SendNow(context.Background(), "cursor_lesson")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestScheduler_Run_StopsOnCancel(t *testing.T) {
	s := newScheduler(&memRegistrations{}, newSender())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.Run(ctx))
}
