// Package reporting backs the admin commands, the operator CLI and the admin
// dashboard: stats, participant lists, test data cleanup and broadcasts.
package reporting

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Domenick1991/coursebot/internal/domain"
	"github.com/Domenick1991/coursebot/internal/repository"
	"github.com/sirupsen/logrus"
)

const (
	defaultBroadcastPause = 500 * time.Millisecond
	defaultFirstName      = "Участник"
)

type Courses interface {
	CourseName(id int64) string
}

type StatsCache interface {
	GetStats(ctx context.Context) (*domain.StatsSummary, error)
	SetStats(ctx context.Context, s *domain.StatsSummary) error
}

// Messenger delivers a broadcast text to one chat.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Participant is a booking row prepared for a report.
type Participant struct {
	Booking    domain.Booking `json:"booking"`
	CourseName string         `json:"course_name"`
	Days       int            `json:"days"`
	Hours      int            `json:"hours"`
	// Overdue marks a PENDING booking older than a day, or a proof that has
	// waited for review for at least a day.
	Overdue bool `json:"overdue"`
}

type BookingSummary struct {
	Total    int                          `json:"total"`
	ByStatus map[domain.BookingStatus]int `json:"by_status"`
	ByCourse map[string]int               `json:"by_course"`
}

type BroadcastMessage struct {
	UserID int64  `json:"user_id"`
	Text   string `json:"text"`
	Error  string `json:"error,omitempty"`
}

type BroadcastResult struct {
	DryRun   bool               `json:"dry_run"`
	Sent     int                `json:"sent"`
	Failed   int                `json:"failed"`
	Messages []BroadcastMessage `json:"messages"`
}

type ReportingUseCase interface {
	Summary(ctx context.Context) (*domain.StatsSummary, error)
	Confirmed(ctx context.Context) ([]Participant, error)
	Unconfirmed(ctx context.Context) ([]Participant, error)
	BookingSummary(ctx context.Context) (*BookingSummary, error)
	PendingUserIDs(ctx context.Context) ([]int64, error)
	TestBookings(ctx context.Context, username string) ([]domain.Booking, error)
	DeleteTestUser(ctx context.Context, username string) (*repository.PurgeResult, error)
	Broadcast(ctx context.Context, template string, send bool) (*BroadcastResult, error)
}

type Service struct {
	bookings    repository.BookingRepository
	events      repository.EventRepository
	maintenance repository.MaintenanceRepository
	courses     Courses
	cache       StatsCache
	messenger   Messenger
	pause       time.Duration
	log         logrus.FieldLogger
	now         func() time.Time
}

type Option func(*Service)

func WithStatsCache(c StatsCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

func WithMessenger(m Messenger) Option {
	return func(s *Service) {
		s.messenger = m
	}
}

func WithBroadcastPause(d time.Duration) Option {
	return func(s *Service) {
		s.pause = d
	}
}

func NewService(
	bookings repository.BookingRepository,
	events repository.EventRepository,
	maintenance repository.MaintenanceRepository,
	courses Courses,
	log logrus.FieldLogger,
	opts ...Option,
) *Service {
	s := &Service{
		bookings:    bookings,
		events:      events,
		maintenance: maintenance,
		courses:     courses,
		pause:       defaultBroadcastPause,
		log:         log,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summary is served from the stats cache when one is configured.
func (s *Service) Summary(ctx context.Context) (*domain.StatsSummary, error) {
	if s.cache != nil {
		cached, err := s.cache.GetStats(ctx)
		if err != nil {
			s.log.WithError(err).Warn("stats cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	summary, err := s.events.Summary(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("stats summary: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.SetStats(ctx, summary); err != nil {
			s.log.WithError(err).Warn("stats cache write failed")
		}
	}
	return summary, nil
}

func (s *Service) Confirmed(ctx context.Context) ([]Participant, error) {
	approved := domain.BookingStatusApproved
	bookings, err := s.bookings.List(ctx, domain.BookingFilter{Status: &approved})
	if err != nil {
		return nil, err
	}
	return s.participants(bookings), nil
}

// Unconfirmed lists every booking that is not APPROVED, cancelled ones included.
func (s *Service) Unconfirmed(ctx context.Context) ([]Participant, error) {
	bookings, err := s.bookings.List(ctx, domain.BookingFilter{})
	if err != nil {
		return nil, err
	}
	open := bookings[:0]
	for _, b := range bookings {
		if b.Status != domain.BookingStatusApproved {
			open = append(open, b)
		}
	}
	return s.participants(open), nil
}

func (s *Service) participants(bookings []domain.Booking) []Participant {
	now := s.now()
	out := make([]Participant, 0, len(bookings))
	for _, b := range bookings {
		age := b.Age(now)
		days := int(age / (24 * time.Hour))
		p := Participant{
			Booking:    b,
			CourseName: s.courses.CourseName(b.CourseID),
			Days:       days,
			Hours:      int((age % (24 * time.Hour)) / time.Hour),
		}
		switch b.Status {
		case domain.BookingStatusPending:
			p.Overdue = days > 1
		case domain.BookingStatusProofUploaded:
			p.Overdue = days > 0
		}
		out = append(out, p)
	}
	return out
}

func (s *Service) BookingSummary(ctx context.Context) (*BookingSummary, error) {
	counts, err := s.bookings.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	summary := &BookingSummary{
		ByStatus: make(map[domain.BookingStatus]int),
		ByCourse: make(map[string]int),
	}
	for _, c := range counts {
		summary.Total += c.Count
		summary.ByStatus[c.Status] += c.Count
		summary.ByCourse[s.courses.CourseName(c.CourseID)] += c.Count
	}
	return summary, nil
}

// PendingUserIDs returns distinct users that still have a PENDING booking.
func (s *Service) PendingUserIDs(ctx context.Context) ([]int64, error) {
	pending := domain.BookingStatusPending
	bookings, err := s.bookings.List(ctx, domain.BookingFilter{Status: &pending})
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{}, len(bookings))
	ids := make([]int64, 0, len(bookings))
	for _, b := range bookings {
		if _, ok := seen[b.UserID]; ok {
			continue
		}
		seen[b.UserID] = struct{}{}
		ids = append(ids, b.UserID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Service) TestBookings(ctx context.Context, username string) ([]domain.Booking, error) {
	username = normalizeUsername(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", domain.ErrValidation)
	}
	return s.bookings.List(ctx, domain.BookingFilter{Username: username})
}

// DeleteTestUser removes every row that belongs to the user ids known under
// the username.
func (s *Service) DeleteTestUser(ctx context.Context, username string) (*repository.PurgeResult, error) {
	username = normalizeUsername(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", domain.ErrValidation)
	}
	ids, err := s.maintenance.UserIDsByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("user @%s: %w", username, domain.ErrNotFound)
	}
	res, err := s.maintenance.PurgeUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"username": username,
		"bookings": res.Bookings,
		"events":   res.Events,
	}).Warn("test user purged")
	return res, nil
}

// Broadcast renders template for every approved booking. Nothing is sent
// unless send is true. {first_name} and {course_name} are substituted.
func (s *Service) Broadcast(ctx context.Context, template string, send bool) (*BroadcastResult, error) {
	if strings.TrimSpace(template) == "" {
		return nil, fmt.Errorf("%w: message is empty", domain.ErrValidation)
	}
	if send && s.messenger == nil {
		return nil, fmt.Errorf("%w: no messenger configured", domain.ErrValidation)
	}
	approved := domain.BookingStatusApproved
	bookings, err := s.bookings.List(ctx, domain.BookingFilter{Status: &approved})
	if err != nil {
		return nil, err
	}

	res := &BroadcastResult{DryRun: !send}
	for i, b := range bookings {
		msg := BroadcastMessage{UserID: b.UserID, Text: RenderBroadcast(template, b.FirstName, s.courses.CourseName(b.CourseID))}
		if !send {
			res.Messages = append(res.Messages, msg)
			continue
		}
		if i > 0 && s.pause > 0 {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(s.pause):
			}
		}
		if err := s.messenger.SendText(ctx, b.UserID, msg.Text); err != nil {
			s.log.WithError(err).WithField("user_id", b.UserID).Warn("broadcast message not delivered")
			msg.Error = err.Error()
			res.Failed++
		} else {
			res.Sent++
		}
		res.Messages = append(res.Messages, msg)
	}
	return res, nil
}

func RenderBroadcast(template, firstName, courseName string) string {
	if firstName == "" {
		firstName = defaultFirstName
	}
	return strings.NewReplacer("{first_name}", firstName, "{course_name}", courseName).Replace(template)
}

func normalizeUsername(username string) string {
	return strings.TrimPrefix(strings.TrimSpace(username), "@")
}

var _ ReportingUseCase = (*Service)(nil)
