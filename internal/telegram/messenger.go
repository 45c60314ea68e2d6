package telegram

import (
	"context"
	"fmt"

	"github.com/Domenick1991/coursebot/internal/domain"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// BotAPI is the part of *tgbotapi.BotAPI the bot uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Messenger sends the messages that do not answer an update: approval
// confirmations, lesson reminders and broadcasts.
type Messenger struct {
	bot BotAPI
	log logrus.FieldLogger
}

func NewMessenger(bot BotAPI, log logrus.FieldLogger) *Messenger {
	return &Messenger{bot: bot, log: log}
}

// SendText sends an operator supplied text as is, without markup.
func (m *Messenger) SendText(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := m.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (m *Messenger) SendReminder(ctx context.Context, reg domain.Registration, lesson domain.Lesson) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(reg.UserID, reminderText(lesson))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := m.bot.Send(msg); err != nil {
		return fmt.Errorf("send reminder to %d: %w", reg.UserID, err)
	}
	return nil
}

// NotifyApproved sends the course confirmation, as a photo caption when the
// course has an approval photo.
func (m *Messenger) NotifyApproved(ctx context.Context, booking *domain.Booking, course domain.Course) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text := confirmationText(booking.FirstName, course.Confirmation)

	var c tgbotapi.Chattable
	if fileID := course.Confirmation.ApprovalPhotoFileID; fileID != "" {
		photo := tgbotapi.NewPhoto(booking.UserID, tgbotapi.FileID(fileID))
		photo.Caption = text
		c = photo
	} else {
		c = tgbotapi.NewMessage(booking.UserID, text)
	}
	if _, err := m.bot.Send(c); err != nil {
		return fmt.Errorf("send confirmation for booking %d: %w", booking.ID, err)
	}
	m.log.WithFields(logrus.Fields{"booking_id": booking.ID, "user_id": booking.UserID}).Info("approval confirmation sent")
	return nil
}
