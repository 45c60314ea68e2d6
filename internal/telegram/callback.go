package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Domenick1991/coursebot/internal/domain"
)

// Telegram rejects callback_data longer than this many bytes.
const maxCallbackData = 64

type CallbackKind uint8

const (
	CallbackSelectCourse CallbackKind = iota + 1
	CallbackConfirmCourse
	CallbackCancelReservation
	CallbackAdminApprove
	CallbackFreeLessonInfo
	CallbackFreeLessonRegister
)

var callbackTags = map[CallbackKind]string{
	CallbackSelectCourse:       "sc",
	CallbackConfirmCourse:      "cc",
	CallbackCancelReservation:  "cr",
	CallbackAdminApprove:       "ap",
	CallbackFreeLessonInfo:     "fl",
	CallbackFreeLessonRegister: "fr",
}

var callbackKinds = func() map[string]CallbackKind {
	m := make(map[string]CallbackKind, len(callbackTags))
	for k, tag := range callbackTags {
		m[tag] = k
	}
	return m
}()

func (k CallbackKind) String() string {
	switch k {
	case CallbackSelectCourse:
		return "select_course"
	case CallbackConfirmCourse:
		return "confirm_course"
	case CallbackCancelReservation:
		return "cancel_reservation"
	case CallbackAdminApprove:
		return "admin_approve"
	case CallbackFreeLessonInfo:
		return "free_lesson_info"
	case CallbackFreeLessonRegister:
		return "free_lesson_register"
	default:
		return "unknown"
	}
}

// Callback is the payload behind an inline button. Only the ids relevant to
// Kind are encoded.
type Callback struct {
	Kind      CallbackKind
	CourseID  int64
	BookingID int64
	UserID    int64
	LessonID  int64
}

func (c Callback) ids() []int64 {
	switch c.Kind {
	case CallbackSelectCourse, CallbackConfirmCourse:
		return []int64{c.CourseID}
	case CallbackCancelReservation:
		return []int64{c.BookingID}
	case CallbackAdminApprove:
		return []int64{c.UserID, c.BookingID}
	case CallbackFreeLessonInfo, CallbackFreeLessonRegister:
		return []int64{c.LessonID}
	}
	return nil
}

// Encode renders the payload as "tag:id[:id]".
func (c Callback) Encode() (string, error) {
	tag, ok := callbackTags[c.Kind]
	if !ok {
		return "", fmt.Errorf("%w: unknown kind %d", domain.ErrMalformedCallback, c.Kind)
	}
	parts := []string{tag}
	for _, id := range c.ids() {
		if id <= 0 {
			return "", fmt.Errorf("%w: %s needs positive ids", domain.ErrMalformedCallback, c.Kind)
		}
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	data := strings.Join(parts, ":")
	if len(data) > maxCallbackData {
		return "", fmt.Errorf("%w: payload is %d bytes", domain.ErrMalformedCallback, len(data))
	}
	return data, nil
}

func DecodeCallback(data string) (Callback, error) {
	if data == "" || len(data) > maxCallbackData {
		return Callback{}, fmt.Errorf("%w: %q", domain.ErrMalformedCallback, data)
	}
	parts := strings.Split(data, ":")
	kind, ok := callbackKinds[parts[0]]
	if !ok {
		return Callback{}, fmt.Errorf("%w: unknown tag %q", domain.ErrMalformedCallback, parts[0])
	}

	ids := make([]int64, 0, len(parts)-1)
	for _, p := range parts[1:] {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id <= 0 {
			return Callback{}, fmt.Errorf("%w: bad id %q in %q", domain.ErrMalformedCallback, p, data)
		}
		ids = append(ids, id)
	}

	cb := Callback{Kind: kind}
	if want := len(cb.ids()); len(ids) != want {
		return Callback{}, fmt.Errorf("%w: %s wants %d ids, got %d", domain.ErrMalformedCallback, kind, want, len(ids))
	}
	switch kind {
	case CallbackSelectCourse, CallbackConfirmCourse:
		cb.CourseID = ids[0]
	case CallbackCancelReservation:
		cb.BookingID = ids[0]
	case CallbackAdminApprove:
		cb.UserID, cb.BookingID = ids[0], ids[1]
	case CallbackFreeLessonInfo, CallbackFreeLessonRegister:
		cb.LessonID = ids[0]
	}
	return cb, nil
}

// mustEncode is for payloads built from ids we already hold.
func mustEncode(c Callback) string {
	data, err := c.Encode()
	if err != nil {
		panic(err)
	}
	return data
}
