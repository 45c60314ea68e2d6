package lessons

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Domenick1991/coursebot/internal/domain"
	"github.com/Domenick1991/coursebot/internal/repository"
	"github.com/sirupsen/logrus"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

type Catalog interface {
	Lesson(lessonType string) (domain.Lesson, error)
	LessonByID(id int64) (domain.Lesson, error)
}

type EventRecorder interface {
	Record(ctx context.Context, who domain.Identity, eventType domain.EventType, details map[string]interface{})
}

type LessonUseCase interface {
	Open(lessonID int64) (domain.Lesson, error)
	Existing(ctx context.Context, userID int64, lessonType string) (*domain.Registration, error)
	Register(ctx context.Context, who domain.Identity, lessonType, email string) (*RegisterResult, error)
	List(ctx context.Context, lessonType string) ([]domain.Registration, error)
}

type RegisterResult struct {
	Registration *domain.Registration
	Lesson       domain.Lesson
	Created      bool
}

type Service struct {
	regs    repository.RegistrationRepository
	catalog Catalog
	events  EventRecorder
	grace   time.Duration
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewService(regs repository.RegistrationRepository, catalog Catalog, events EventRecorder, grace time.Duration, log logrus.FieldLogger) *Service {
	return &Service{regs: regs, catalog: catalog, events: events, grace: grace, log: log, now: time.Now}
}

// Open returns the lesson if it still accepts registrations: it must be active
// and must not have started more than the grace period ago.
func (s *Service) Open(lessonID int64) (domain.Lesson, error) {
	lesson, err := s.catalog.LessonByID(lessonID)
	if err != nil {
		return domain.Lesson{}, err
	}
	return lesson, s.checkOpen(lesson)
}

func (s *Service) checkOpen(lesson domain.Lesson) error {
	if !lesson.IsActive {
		return domain.ErrLessonUnavailable
	}
	if lesson.Scheduled() && s.now().After(lesson.StartsAt.Add(s.grace)) {
		return domain.ErrLessonFinished
	}
	return nil
}

// Existing returns nil, nil when the user has not registered for the lesson.
func (s *Service) Existing(ctx context.Context, userID int64, lessonType string) (*domain.Registration, error) {
	reg, err := s.regs.Get(ctx, userID, lessonType)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return reg, err
}

func (s *Service) Register(ctx context.Context, who domain.Identity, lessonType, email string) (*RegisterResult, error) {
	email = strings.TrimSpace(email)
	if !ValidEmail(email) {
		return nil, domain.ErrInvalidEmail
	}
	lesson, err := s.catalog.Lesson(lessonType)
	if err != nil {
		return nil, err
	}
	if err := s.checkOpen(lesson); err != nil {
		return nil, err
	}

	reg := &domain.Registration{
		UserID:     who.UserID,
		Username:   who.Username,
		FirstName:  who.FirstName,
		Email:      email,
		LessonType: lessonType,
	}
	if lesson.Scheduled() {
		y, m, d := lesson.StartsAt.Date()
		date := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		reg.LessonDate = &date
	}
	created, err := s.regs.Upsert(ctx, reg)
	if err != nil {
		return nil, fmt.Errorf("register for %s: %w", lessonType, err)
	}

	s.log.WithFields(logrus.Fields{
		"user_id":     who.UserID,
		"lesson_type": lessonType,
		"created":     created,
	}).Info("free lesson registration stored")
	if s.events != nil {
		s.events.Record(ctx, who, domain.EventFreeLessonRegistered, map[string]interface{}{
			"registration_id": reg.ID,
			"lesson_type":     lessonType,
			"email":           email,
		})
	}
	return &RegisterResult{Registration: reg, Lesson: lesson, Created: created}, nil
}

func (s *Service) List(ctx context.Context, lessonType string) ([]domain.Registration, error) {
	return s.regs.List(ctx, lessonType)
}

var _ LessonUseCase = (*Service)(nil)
