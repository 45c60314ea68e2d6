package telegram

import (
	"fmt"

	"github.com/Domenick1991/coursebot/internal/domain"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func button(text string, cb Callback) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(text, mustEncode(cb))
}

func single(text string, cb Callback) *tgbotapi.InlineKeyboardMarkup {
	markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(button(text, cb)))
	return &markup
}

// startKeyboard lists free lessons first, then courses. Nil when empty.
func startKeyboard(lessons []domain.Lesson, courses []domain.Course) *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, l := range lessons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button(l.ButtonText, Callback{Kind: CallbackFreeLessonInfo, LessonID: l.ID})))
	}
	for _, c := range courses {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button(c.ButtonText, Callback{Kind: CallbackSelectCourse, CourseID: c.ID})))
	}
	if len(rows) == 0 {
		return nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

func bookKeyboard(courseID int64) *tgbotapi.InlineKeyboardMarkup {
	return single(buttonBook, Callback{Kind: CallbackConfirmCourse, CourseID: courseID})
}

func cancelKeyboard(bookingID int64) *tgbotapi.InlineKeyboardMarkup {
	return single(buttonCancel, Callback{Kind: CallbackCancelReservation, BookingID: bookingID})
}

func approveKeyboard(userID, bookingID int64) *tgbotapi.InlineKeyboardMarkup {
	return single(fmt.Sprintf(buttonApproveFmt, bookingID), Callback{Kind: CallbackAdminApprove, UserID: userID, BookingID: bookingID})
}

func registerKeyboard(lessonID int64) *tgbotapi.InlineKeyboardMarkup {
	return single(buttonRegister, Callback{Kind: CallbackFreeLessonRegister, LessonID: lessonID})
}
