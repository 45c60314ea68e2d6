// Package reminder sends the free lesson link shortly before the lesson starts.
//
// The scheduler polls: every tick it checks each active lesson and runs a send
// pass when the lesson is inside the lead window. Delivery is at most once per
// registration because a pass only picks rows whose notification_sent latch is
// still false and sets the latch right after each successful send.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Domenick1991/coursebot/config"
	"github.com/Domenick1991/coursebot/internal/domain"
	"github.com/Domenick1991/coursebot/internal/repository"
	"github.com/sirupsen/logrus"
)

type Lessons interface {
	ActiveLessons() []domain.Lesson
	Lesson(lessonType string) (domain.Lesson, error)
}

type Sender interface {
	SendReminder(ctx context.Context, reg domain.Registration, lesson domain.Lesson) error
}

// Locker guards a pass across processes. Optional.
type Locker interface {
	AcquireReminderLock(ctx context.Context, lessonType string, ttl time.Duration) (bool, error)
	ReleaseReminderLock(ctx context.Context, lessonType string) error
}

type EventRecorder interface {
	Record(ctx context.Context, who domain.Identity, eventType domain.EventType, details map[string]interface{})
}

type PassResult struct {
	LessonType string
	Pending    int
	Sent       int
	Failed     int
	// Skipped is set when another process holds the pass lock.
	Skipped bool
}

type Scheduler struct {
	regs     repository.RegistrationRepository
	lessons  Lessons
	sender   Sender
	locker   Locker
	events   EventRecorder
	lead     time.Duration
	window   time.Duration
	interval time.Duration
	log      logrus.FieldLogger
	now      func() time.Time

	mu sync.Mutex
}

type Option func(*Scheduler)

func WithLocker(l Locker) Option {
	return func(s *Scheduler) {
		s.locker = l
	}
}

func WithEvents(r EventRecorder) Option {
	return func(s *Scheduler) {
		s.events = r
	}
}

func NewScheduler(
	regs repository.RegistrationRepository,
	lessons Lessons,
	sender Sender,
	cfg config.ReminderConfig,
	log logrus.FieldLogger,
	opts ...Option,
) *Scheduler {
	s := &Scheduler{
		regs:     regs,
		lessons:  lessons,
		sender:   sender,
		lead:     cfg.Lead(),
		window:   cfg.Window(),
		interval: cfg.PollInterval(),
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Due reports whether the lesson starts within lead±window of now.
func (s *Scheduler) Due(lesson domain.Lesson, now time.Time) bool {
	if !lesson.IsActive || !lesson.Scheduled() {
		return false
	}
	remaining := lesson.StartsAt.Sub(now)
	return remaining >= s.lead-s.window && remaining <= s.lead+s.window
}

// Run polls until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.WithFields(logrus.Fields{"lead": s.lead, "window": s.window, "interval": s.interval}).Info("reminder scheduler started")
	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("reminder scheduler stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()
	for _, lesson := range s.lessons.ActiveLessons() {
		if !s.Due(lesson, now) {
			continue
		}
		res, err := s.pass(ctx, lesson)
		if err != nil {
			s.log.WithError(err).WithField("lesson_type", lesson.LessonType).Error("reminder pass failed")
			continue
		}
		if res.Pending > 0 {
			s.log.WithFields(logrus.Fields{
				"lesson_type": res.LessonType,
				"sent":        res.Sent,
				"failed":      res.Failed,
			}).Info("reminder pass finished")
		}
	}
}

// SendNow runs a pass regardless of the window. Already notified registrants
// are still skipped.
func (s *Scheduler) SendNow(ctx context.Context, lessonType string) (*PassResult, error) {
	lesson, err := s.lessons.Lesson(lessonType)
	if err != nil {
		return nil, err
	}
	return s.pass(ctx, lesson)
}

func (s *Scheduler) pass(ctx context.Context, lesson domain.Lesson) (*PassResult, error) {
	if lesson.MeetLink == "" {
		return nil, fmt.Errorf("%w: lesson %s has no meet link", domain.ErrValidation, lesson.LessonType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res := &PassResult{LessonType: lesson.LessonType}
	if s.locker != nil {
		ok, err := s.locker.AcquireReminderLock(ctx, lesson.LessonType, 2*s.window+s.interval)
		switch {
		case err != nil:
			s.log.WithError(err).Warn("reminder lock unavailable, running unguarded")
		case !ok:
			res.Skipped = true
			return res, nil
		default:
			defer func() {
				if err := s.locker.ReleaseReminderLock(context.Background(), lesson.LessonType); err != nil {
					s.log.WithError(err).Warn("release reminder lock")
				}
			}()
		}
	}

	pending, err := s.regs.PendingNotification(ctx, lesson.LessonType)
	if err != nil {
		return nil, fmt.Errorf("load pending registrations: %w", err)
	}
	res.Pending = len(pending)

	for _, reg := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		entry := s.log.WithFields(logrus.Fields{"registration_id": reg.ID, "user_id": reg.UserID, "lesson_type": reg.LessonType})
		if err := s.sender.SendReminder(ctx, reg, lesson); err != nil {
			// latch stays false, the next pass retries
			entry.WithError(err).Warn("reminder not delivered")
			res.Failed++
			continue
		}
		marked, err := s.regs.MarkNotified(ctx, reg.ID)
		if err != nil {
			entry.WithError(err).Error("reminder sent but latch not stored")
		} else if !marked {
			entry.Warn("registration was already marked notified")
		}
		res.Sent++
		if s.events != nil {
			s.events.Record(ctx, domain.Identity{UserID: reg.UserID, Username: reg.Username, FirstName: reg.FirstName},
				domain.EventFreeLessonReminderSent, map[string]interface{}{
					"registration_id": reg.ID,
					"lesson_type":     reg.LessonType,
				})
		}
	}
	return res, nil
}
