package telegram

import (
	"context"
	"errors"

	"github.com/Domenick1991/coursebot/internal/domain"
	"github.com/Domenick1991/coursebot/internal/pricing"
	"github.com/Domenick1991/coursebot/internal/service/booking"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

func (r *Router) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if _, err := r.bot.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		r.log.WithError(err).Debug("answer callback")
	}
	who := identity(q.From)

	cb, err := DecodeCallback(q.Data)
	if err != nil {
		r.log.WithFields(logrus.Fields{"user_id": who.UserID, "data": q.Data}).Warn("unhandled callback")
		r.record(ctx, who, domain.EventUnknownCallback, map[string]interface{}{"callback_data": q.Data})
		return nil
	}

	switch cb.Kind {
	case CallbackSelectCourse:
		return r.handleSelectCourse(ctx, q, who, cb.CourseID)
	case CallbackConfirmCourse:
		return r.handleConfirmCourse(ctx, q, who, cb.CourseID)
	case CallbackCancelReservation:
		return r.handleCancel(ctx, q, who, cb.BookingID)
	case CallbackAdminApprove:
		return r.handleApprove(ctx, q, who, cb)
	case CallbackFreeLessonInfo:
		return r.handleLessonInfo(ctx, q, who, cb.LessonID)
	case CallbackFreeLessonRegister:
		return r.handleLessonRegister(ctx, q, who, cb.LessonID)
	}
	return nil
}

func (r *Router) handleSelectCourse(ctx context.Context, q *tgbotapi.CallbackQuery, who domain.Identity, courseID int64) error {
	course, err := r.catalog.Course(courseID)
	if err != nil || !course.Active() {
		return r.edit(q.Message, textCourseUnavailable, nil)
	}

	sess, err := r.sessions.Update(ctx, who.UserID, func(s *domain.Session) {
		s.PendingCourseID = course.ID
	})
	if err != nil {
		return err
	}
	r.record(ctx, who, domain.EventViewProgram, map[string]interface{}{"course_id": course.ID})
	return r.edit(q.Message, courseDetailsText(course, who.FirstName, sess.PendingReferral), bookKeyboard(course.ID))
}

func (r *Router) handleConfirmCourse(ctx context.Context, q *tgbotapi.CallbackQuery, who domain.Identity, courseID int64) error {
	sess, err := r.sessions.Get(ctx, who.UserID)
	if err != nil {
		return err
	}
	if sess.PendingCourseID != courseID {
		return r.edit(q.Message, textSessionExpired, nil)
	}

	res, err := r.bookings.CreateBooking(ctx, booking.CreateBookingInput{
		Identity: who,
		CourseID: courseID,
		Referral: sess.PendingReferral,
	})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrCourseUnavailable), errors.Is(err, domain.ErrNotFound):
		return r.edit(q.Message, textCourseUnavailable, nil)
	case errors.Is(err, domain.ErrCouponExpired), errors.Is(err, domain.ErrCouponAlreadyUsed):
		return r.dropReferral(ctx, q, who, courseID, err)
	default:
		r.log.WithError(err).WithField("user_id", who.UserID).Error("create booking")
		return r.edit(q.Message, textBookingFailed, nil)
	}

	b := res.Booking
	if _, err := r.sessions.Update(ctx, who.UserID, func(s *domain.Session) {
		s.PendingCourseID = 0
		if res.Created {
			s.PendingReferral = nil
		}
	}); err != nil {
		r.log.WithError(err).Warn("clear pending course")
	}

	course, err := r.catalog.Course(b.CourseID)
	if err != nil {
		return err
	}
	quote := r.prices.Quote(pricing.Discounted(course.Price(), b.DiscountPercent))
	return r.edit(q.Message, paymentDetailsText(course, b, quote, r.payment), cancelKeyboard(b.ID))
}

// dropReferral handles a coupon that ran out between /start and confirmation:
// no booking exists yet, so the user gets the offer again at full price.
func (r *Router) dropReferral(ctx context.Context, q *tgbotapi.CallbackQuery, who domain.Identity, courseID int64, cause error) error {
	if _, err := r.sessions.Update(ctx, who.UserID, func(s *domain.Session) {
		s.PendingReferral = nil
	}); err != nil {
		return err
	}
	course, err := r.catalog.Course(courseID)
	if err != nil {
		return r.edit(q.Message, textCourseUnavailable, nil)
	}
	notice := textReferralExpired
	if errors.Is(cause, domain.ErrCouponAlreadyUsed) {
		notice = textReferralAlreadyUsed
	}
	return r.edit(q.Message, notice+"\n\n"+courseDetailsText(course, who.FirstName, nil), bookKeyboard(course.ID))
}

func (r *Router) handleCancel(ctx context.Context, q *tgbotapi.CallbackQuery, who domain.Identity, bookingID int64) error {
	_, err := r.bookings.Cancel(ctx, bookingID, who.UserID)
	switch {
	case err == nil:
		r.log.WithFields(logrus.Fields{"user_id": who.UserID, "booking_id": bookingID}).Info("booking cancelled by user")
		return r.edit(q.Message, textBookingCancelled, nil)
	case domain.IsAlreadyHandled(err):
		return r.edit(q.Message, textCancellationFailed, nil)
	default:
		return err
	}
}

func (r *Router) handleApprove(ctx context.Context, q *tgbotapi.CallbackQuery, admin domain.Identity, cb Callback) error {
	var chatID int64
	if q.Message != nil && q.Message.Chat != nil {
		chatID = q.Message.Chat.ID
	}
	entry := r.log.WithFields(logrus.Fields{"admin_id": admin.UserID, "booking_id": cb.BookingID})
	if !r.isAdmin(admin.UserID, chatID) {
		entry.Warn("approve attempt by non-admin")
		return nil
	}

	b, err := r.bookings.Approve(ctx, cb.BookingID, cb.UserID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrDeliveryFailed):
		entry.WithError(err).Warn("approved, confirmation not delivered")
	case domain.IsAlreadyHandled(err):
		entry.WithError(err).Info("approve ignored")
		return r.reply(chatID, approvalFailedText(cb.BookingID), nil)
	default:
		return err
	}
	entry.Info("payment approved")

	r.markApproved(q.Message)
	if errors.Is(err, domain.ErrDeliveryFailed) {
		return r.reply(chatID, deliveryFailedText(b.ID, b.UserID), nil)
	}
	return nil
}

// markApproved drops the approve button and appends the approval badge to the
// admin message, keeping its original text or caption. Telegram returns the
// text without markup, so the entities are sent back unchanged; the badge is
// appended after them and does not shift their offsets.
func (r *Router) markApproved(m *tgbotapi.Message) {
	if m == nil || m.Chat == nil {
		return
	}
	badge := approvedBadgeText(r.now())

	var c tgbotapi.Chattable
	if m.Text == "" && m.Caption != "" {
		edit := tgbotapi.NewEditMessageCaption(m.Chat.ID, m.MessageID, m.Caption+"\n\n"+badge)
		edit.CaptionEntities = m.CaptionEntities
		c = edit
	} else {
		edit := tgbotapi.NewEditMessageText(m.Chat.ID, m.MessageID, m.Text+"\n\n"+badge)
		edit.Entities = m.Entities
		c = edit
	}
	if _, err := r.bot.Send(c); err != nil {
		r.log.WithError(err).Warn("admin message not updated")
	}
}

func (r *Router) handleLessonInfo(ctx context.Context, q *tgbotapi.CallbackQuery, who domain.Identity, lessonID int64) error {
	lesson, err := r.catalog.LessonByID(lessonID)
	if err != nil {
		return r.edit(q.Message, textLessonNotFound, nil)
	}
	r.record(ctx, who, domain.EventFreeLessonInfoViewed, map[string]interface{}{
		"lesson_type": lesson.LessonType,
		"lesson_id":   lesson.ID,
	})

	existing, err := r.lessons.Existing(ctx, who.UserID, lesson.LessonType)
	if err != nil {
		return err
	}
	if existing != nil {
		return r.edit(q.Message, alreadyRegisteredText(lesson), nil)
	}
	return r.edit(q.Message, lessonInfoText(lesson), registerKeyboard(lesson.ID))
}

func (r *Router) handleLessonRegister(ctx context.Context, q *tgbotapi.CallbackQuery, who domain.Identity, lessonID int64) error {
	lesson, err := r.lessons.Open(lessonID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrLessonFinished):
		return r.edit(q.Message, textLessonFinished, nil)
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrLessonUnavailable):
		return r.edit(q.Message, textLessonNotFound, nil)
	default:
		return err
	}

	existing, err := r.lessons.Existing(ctx, who.UserID, lesson.LessonType)
	if err != nil {
		return err
	}
	if existing != nil {
		return r.edit(q.Message, alreadyRegisteredText(lesson), nil)
	}

	if _, err := r.sessions.Update(ctx, who.UserID, func(s *domain.Session) {
		s.AwaitingEmail = true
		s.PendingLessonType = lesson.LessonType
	}); err != nil {
		return err
	}
	r.record(ctx, who, domain.EventFreeLessonRegistrationStarted, map[string]interface{}{
		"lesson_type": lesson.LessonType,
		"lesson_id":   lesson.ID,
	})
	return r.edit(q.Message, textEmailRequest, nil)
}
