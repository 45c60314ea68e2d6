package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/coursebot/internal/domain"
	"github.com/Domenick1991/coursebot/internal/repository"
	"github.com/sirupsen/logrus"
)

type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*CreateBookingResult, error)
	RecordPaymentProof(ctx context.Context, userID int64) (*domain.Booking, error)
	Cancel(ctx context.Context, bookingID, userID int64) (*domain.Booking, error)
	Approve(ctx context.Context, bookingID, userID int64) (*domain.Booking, error)
	LatestForMessage(ctx context.Context, userID int64) (*domain.Booking, error)
	Get(ctx context.Context, bookingID int64) (*domain.Booking, error)
	List(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error)
}

type Courses interface {
	Course(id int64) (domain.Course, error)
}

// Notifier delivers the course confirmation to an approved student.
type Notifier interface {
	NotifyApproved(ctx context.Context, booking *domain.Booking, course domain.Course) error
}

type EventRecorder interface {
	Record(ctx context.Context, who domain.Identity, eventType domain.EventType, details map[string]interface{})
}

type BookingService struct {
	bookings repository.BookingRepository
	courses  Courses
	notifier Notifier
	events   EventRecorder
	log      logrus.FieldLogger
}

type CreateBookingInput struct {
	Identity domain.Identity
	CourseID int64
	Referral *domain.Redemption
}

type CreateBookingResult struct {
	Booking *domain.Booking
	// Created is false when an open booking for the same course already existed.
	Created bool
}

type BookingServiceOption func(*BookingService)

func WithNotifier(n Notifier) BookingServiceOption {
	return func(s *BookingService) {
		s.notifier = n
	}
}

func WithEvents(r EventRecorder) BookingServiceOption {
	return func(s *BookingService) {
		s.events = r
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	courses Courses,
	log logrus.FieldLogger,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings: bookings,
		courses:  courses,
		log:      log,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*CreateBookingResult, error) {
	if input.Identity.UserID == 0 {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	course, err := s.courses.Course(input.CourseID)
	if err != nil {
		return nil, err
	}
	if !course.Active() {
		return nil, domain.ErrCourseUnavailable
	}
	if r := input.Referral; r != nil && (r.DiscountPercent <= 0 || r.DiscountPercent > 100) {
		return nil, fmt.Errorf("%w: discount %d%%", domain.ErrValidation, r.DiscountPercent)
	}

	booking := &domain.Booking{
		UserID:    input.Identity.UserID,
		Username:  input.Identity.Username,
		FirstName: input.Identity.FirstName,
		CourseID:  course.ID,
	}
	created, err := s.bookings.CreatePending(ctx, booking, input.Referral)
	if err != nil {
		return nil, err
	}

	entry := s.log.WithFields(logrus.Fields{"user_id": booking.UserID, "booking_id": booking.ID, "course_id": booking.CourseID})
	if !created {
		entry.Info("reusing open booking")
		return &CreateBookingResult{Booking: booking}, nil
	}

	entry.WithField("discount", booking.DiscountPercent).Info("booking created")
	details := map[string]interface{}{"booking_id": booking.ID, "course_id": booking.CourseID}
	if booking.ReferralCode != "" {
		details["referral_code"] = booking.ReferralCode
		details["discount_percent"] = booking.DiscountPercent
	}
	s.record(ctx, booking.Identity(), domain.EventBookingCreated, details)
	return &CreateBookingResult{Booking: booking, Created: true}, nil
}

// RecordPaymentProof attaches a proof to the user's most recent PENDING booking.
func (s *BookingService) RecordPaymentProof(ctx context.Context, userID int64) (*domain.Booking, error) {
	current, err := s.bookings.LatestByStatus(ctx, userID, domain.BookingStatusPending)
	if err != nil {
		return nil, err
	}
	updated, err := s.apply(ctx, current, userID, domain.EventProofUploaded)
	if err != nil {
		return nil, err
	}
	s.record(ctx, updated.Identity(), domain.EventPaymentProofUploaded, map[string]interface{}{"booking_id": updated.ID})
	return updated, nil
}

func (s *BookingService) Cancel(ctx context.Context, bookingID, userID int64) (*domain.Booking, error) {
	current, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if current.UserID != userID {
		return nil, fmt.Errorf("booking %d: %w", bookingID, domain.ErrNotFound)
	}
	updated, err := s.apply(ctx, current, userID, domain.EventCancel)
	if err != nil {
		return nil, err
	}
	s.record(ctx, updated.Identity(), domain.EventBookingCancelled, map[string]interface{}{"booking_id": updated.ID})
	return updated, nil
}

// Approve is called on behalf of an admin; the caller checks the admin identity.
// The confirmation goes out only when this call performed the transition.
func (s *BookingService) Approve(ctx context.Context, bookingID, userID int64) (*domain.Booking, error) {
	current, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if current.UserID != userID {
		return nil, fmt.Errorf("booking %d: %w", bookingID, domain.ErrNotFound)
	}
	updated, err := s.apply(ctx, current, userID, domain.EventApprove)
	if err != nil {
		return nil, err
	}
	s.record(ctx, updated.Identity(), domain.EventPaymentApproved, map[string]interface{}{"booking_id": updated.ID})

	if s.notifier == nil {
		return updated, nil
	}
	course, err := s.courses.Course(updated.CourseID)
	if err != nil {
		return updated, fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	if err := s.notifier.NotifyApproved(ctx, updated, course); err != nil {
		s.log.WithError(err).WithField("booking_id", updated.ID).Error("failed to deliver approval")
		return updated, fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	return updated, nil
}

// LatestForMessage finds the booking a free-form student message belongs to:
// the newest booking that is open or approved.
func (s *BookingService) LatestForMessage(ctx context.Context, userID int64) (*domain.Booking, error) {
	return s.bookings.LatestByStatus(ctx, userID,
		domain.BookingStatusPending, domain.BookingStatusProofUploaded, domain.BookingStatusApproved)
}

func (s *BookingService) Get(ctx context.Context, bookingID int64) (*domain.Booking, error) {
	return s.bookings.GetByID(ctx, bookingID)
}

func (s *BookingService) List(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error) {
	return s.bookings.List(ctx, filter)
}

// apply validates the transition in memory and then persists it as a
// conditional update against the status that was read.
func (s *BookingService) apply(ctx context.Context, current *domain.Booking, userID int64, event domain.BookingEvent) (*domain.Booking, error) {
	next, err := domain.Transition(current.Status, event)
	if err != nil {
		return nil, err
	}
	updated, err := s.bookings.UpdateStatus(ctx, current.ID, userID, current.Status, next)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.log.WithFields(logrus.Fields{"booking_id": current.ID, "event": event.String()}).Info("booking already handled")
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"booking_id": updated.ID,
		"user_id":    updated.UserID,
		"from":       current.Status.String(),
		"to":         updated.Status.String(),
	}).Info("booking status changed")
	s.record(ctx, updated.Identity(), domain.EventBookingStatusChanged, map[string]interface{}{
		"booking_id": updated.ID,
		"from":       int(current.Status),
		"to":         int(updated.Status),
	})
	return updated, nil
}

func (s *BookingService) record(ctx context.Context, who domain.Identity, eventType domain.EventType, details map[string]interface{}) {
	if s.events == nil {
		return
	}
	s.events.Record(ctx, who, eventType, details)
}

var _ BookingUseCase = (*BookingService)(nil)
