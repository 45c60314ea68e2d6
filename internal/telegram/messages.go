package telegram

import (
	"context"
	"errors"

	"github.com/Domenick1991/coursebot/internal/domain"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

func (r *Router) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil || msg.Chat == nil {
		return nil
	}
	if msg.IsCommand() {
		return r.handleCommand(ctx, msg)
	}
	// the admin chat talks among itself
	if r.cfg.TargetChatID != 0 && msg.Chat.ID == r.cfg.TargetChatID {
		return nil
	}

	who := identity(msg.From)
	sess, err := r.sessions.Get(ctx, who.UserID)
	if err != nil {
		return err
	}
	// a payment proof wins over a pending email prompt
	if len(msg.Photo) > 0 {
		return r.handlePhoto(ctx, msg, who)
	}
	if sess.AwaitingEmail {
		return r.handleEmail(ctx, msg, who, sess)
	}
	return r.handleFollowUp(ctx, msg, who, false)
}

func (r *Router) handleEmail(ctx context.Context, msg *tgbotapi.Message, who domain.Identity, sess *domain.Session) error {
	if msg.Text == "" {
		return r.reply(msg.Chat.ID, textEmailNotText, nil)
	}
	if sess.PendingLessonType == "" {
		if err := r.clearEmailState(ctx, who.UserID); err != nil {
			return err
		}
		return r.reply(msg.Chat.ID, textSessionExpired, nil)
	}

	res, err := r.lessons.Register(ctx, who, sess.PendingLessonType, msg.Text)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidEmail):
		return r.reply(msg.Chat.ID, textEmailInvalid, nil)
	case errors.Is(err, domain.ErrLessonFinished):
		if err := r.clearEmailState(ctx, who.UserID); err != nil {
			return err
		}
		return r.reply(msg.Chat.ID, textLessonFinished, nil)
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrLessonUnavailable):
		if err := r.clearEmailState(ctx, who.UserID); err != nil {
			return err
		}
		return r.reply(msg.Chat.ID, textLessonNotFound, nil)
	default:
		r.log.WithError(err).WithField("user_id", who.UserID).Error("free lesson registration")
		return r.reply(msg.Chat.ID, textRegistrationFailed, nil)
	}

	if err := r.clearEmailState(ctx, who.UserID); err != nil {
		return err
	}
	return r.reply(msg.Chat.ID, registrationSuccessText(res.Lesson, res.Registration.Email), nil)
}

func (r *Router) clearEmailState(ctx context.Context, userID int64) error {
	_, err := r.sessions.Update(ctx, userID, func(s *domain.Session) {
		s.AwaitingEmail = false
		s.PendingLessonType = ""
	})
	return err
}

// handlePhoto treats a photo as the payment proof of the newest PENDING
// booking. Without one it falls back to the follow-up handling.
func (r *Router) handlePhoto(ctx context.Context, msg *tgbotapi.Message, who domain.Identity) error {
	b, err := r.bookings.RecordPaymentProof(ctx, who.UserID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		return r.handleFollowUp(ctx, msg, who, true)
	case errors.Is(err, domain.ErrConflict):
		return r.reply(msg.Chat.ID, textStatusUpdateFailed, nil)
	default:
		return err
	}

	course := r.courseOrUnknown(b.CourseID)
	if err := r.reply(msg.Chat.ID, proofReceivedText(who.FirstName, b, course.Name), nil); err != nil {
		return err
	}
	return r.forwardToAdmins(msg, adminCaptionText(noticePhotoProof, who, b, course, ""), approveKeyboard(who.UserID, b.ID))
}

// handleFollowUp deals with any other message from a user who has a booking:
// it is an alternative payment proof while the booking is open and a student
// response once it is approved.
func (r *Router) handleFollowUp(ctx context.Context, msg *tgbotapi.Message, who domain.Identity, photo bool) error {
	b, err := r.bookings.LatestForMessage(ctx, who.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		if photo {
			r.log.WithField("user_id", who.UserID).Warn("photo without an active booking")
			return r.reply(msg.Chat.ID, textNoActiveBooking, nil)
		}
		return nil
	}
	if err != nil {
		return err
	}

	details := map[string]interface{}{
		"booking_id":     b.ID,
		"booking_status": int(b.Status),
		"message_type":   messageType(msg),
	}
	if msg.Text != "" {
		details["message_text"] = msg.Text
	}
	course := r.courseOrUnknown(b.CourseID)
	entry := r.log.WithFields(logrus.Fields{"user_id": who.UserID, "booking_id": b.ID, "status": b.Status.String()})

	switch b.Status {
	case domain.BookingStatusApproved:
		r.record(ctx, who, domain.EventStudentResponse, details)
		entry.Info("student response received")
		if err := r.reply(msg.Chat.ID, textStudentResponseAck, nil); err != nil {
			return err
		}
		return r.forwardToAdmins(msg, adminCaptionText(noticeStudentResponse, who, b, course, "✅ Оплачено"), nil)

	case domain.BookingStatusPending:
		r.record(ctx, who, domain.EventAlternativeProof, details)
		updated, err := r.bookings.RecordPaymentProof(ctx, who.UserID)
		if err != nil {
			if domain.IsAlreadyHandled(err) {
				return r.reply(msg.Chat.ID, textStatusUpdateFailed, nil)
			}
			return err
		}
		entry.Info("alternative payment proof received")
		if err := r.reply(msg.Chat.ID, altProofReceivedText(updated, course.Name), nil); err != nil {
			return err
		}
		return r.forwardToAdmins(msg, adminCaptionText(noticeAlternativeProof, who, updated, course, "📝 Новая заявка"), approveKeyboard(who.UserID, updated.ID))

	default:
		r.record(ctx, who, domain.EventAlternativeProof, details)
		entry.Info("additional payment proof received")
		return r.forwardToAdmins(msg, adminCaptionText(noticeAlternativeProof, who, b, course, "⏳ Ожидает проверки"), approveKeyboard(who.UserID, b.ID))
	}
}

// forwardToAdmins forwards the user's message to the admin chat and replies
// to the forward with the caption and optional keyboard.
func (r *Router) forwardToAdmins(msg *tgbotapi.Message, caption string, markup *tgbotapi.InlineKeyboardMarkup) error {
	if r.cfg.TargetChatID == 0 {
		r.log.Error("target chat id is not set, cannot forward to admins")
		return nil
	}
	fwd, err := r.bot.Send(tgbotapi.NewForward(r.cfg.TargetChatID, msg.Chat.ID, msg.MessageID))
	if err != nil {
		return err
	}

	note := tgbotapi.NewMessage(r.cfg.TargetChatID, caption)
	note.ParseMode = tgbotapi.ModeHTML
	note.ReplyToMessageID = fwd.MessageID
	if markup != nil {
		note.ReplyMarkup = *markup
	}
	_, err = r.bot.Send(note)
	return err
}

func (r *Router) courseOrUnknown(id int64) domain.Course {
	course, err := r.catalog.Course(id)
	if err != nil {
		return domain.Course{ID: id, Name: unknownCourse}
	}
	return course
}

func messageType(msg *tgbotapi.Message) string {
	switch {
	case len(msg.Photo) > 0:
		return "photo"
	case msg.Document != nil:
		return "document"
	case msg.Video != nil:
		return "video"
	case msg.Voice != nil:
		return "voice"
	case msg.Sticker != nil:
		return "sticker"
	default:
		return "text"
	}
}
