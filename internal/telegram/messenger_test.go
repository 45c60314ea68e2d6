package telegram

import (
	"context"
	"testing"

	"github.com/Domenick1991/coursebot/internal/domain"
	"github.com/Domenick1991/coursebot/internal/logger"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessenger_NotifyApproved(t *testing.T) {
	b := &domain.Booking{ID: 11, UserID: 7, FirstName: "Анна"}
	confirmation := domain.CourseConfirmation{StreamTitle: "поток #1", SupportContact: "@support"}

	t.Run("text", func(t *testing.T) {
		bot := &fakeBot{}
		m := NewMessenger(bot, logger.Discard())

		require.NoError(t, m.NotifyApproved(context.Background(), b, domain.Course{Confirmation: confirmation}))

		sent := bot.Sent()
		require.Len(t, sent, 1)
		msg := sent[0].(tgbotapi.MessageConfig)
		assert.Equal(t, int64(7), msg.ChatID)
		assert.Empty(t, msg.ParseMode)
		assert.Contains(t, msg.Text, "Привет, Анна!")
	})

	t.Run("photo", func(t *testing.T) {
		bot := &fakeBot{}
		m := NewMessenger(bot, logger.Discard())
		withPhoto := confirmation
		withPhoto.ApprovalPhotoFileID = "file-1"

		require.NoError(t, m.NotifyApproved(context.Background(), b, domain.Course{Confirmation: withPhoto}))

		sent := bot.Sent()
		require.Len(t, sent, 1)
		photo, ok := sent[0].(tgbotapi.PhotoConfig)
		require.True(t, ok)
		assert.Equal(t, tgbotapi.FileID("file-1"), photo.File)
		assert.Contains(t, photo.Caption, "поток #1")
	})

	t.Run("send failure", func(t *testing.T) {
		bot := &fakeBot{failSend: true}
		m := NewMessenger(bot, logger.Discard())

		err := m.NotifyApproved(context.Background(), b, domain.Course{Confirmation: confirmation})
		assert.ErrorContains(t, err, "booking 11")
	})
}

func TestMessenger_SendReminder(t *testing.T) {
	bot := &fakeBot{}
	m := NewMessenger(bot, logger.Discard())

	err := m.SendReminder(context.Background(),
		domain.Registration{UserID: 7, LessonType: "cursor_lesson"},
		domain.Lesson{DateText: "25 октября", MeetLink: "https://meet.example/x"})
	require.NoError(t, err)

	msg := bot.Sent()[0].(tgbotapi.MessageConfig)
	assert.Equal(t, int64(7), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.Contains(t, msg.Text, "https://meet.example/x")
}

func TestMessenger_SendTextHonoursContext(t *testing.T) {
	bot := &fakeBot{}
	m := NewMessenger(bot, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, m.SendText(ctx, 7, "hi"), context.Canceled)
	assert.Empty(t, bot.Sent())

	require.NoError(t, m.SendText(context.Background(), 7, "<b>as is</b>"))
	msg := bot.Sent()[0].(tgbotapi.MessageConfig)
	assert.Equal(t, "<b>as is</b>", msg.Text)
	assert.Empty(t, msg.ParseMode)
}
