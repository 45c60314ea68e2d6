package domain

import "time"

// Session holds the in-progress conversation of one user.
type Session struct {
	UserID            int64       `json:"user_id"`
	PendingCourseID   int64       `json:"pending_course_id,omitempty"`
	PendingReferral   *Redemption `json:"pending_referral,omitempty"`
	AwaitingEmail     bool        `json:"awaiting_email,omitempty"`
	PendingLessonType string      `json:"pending_lesson_type,omitempty"`
	ExpiresAt         time.Time   `json:"expires_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

func (s *Session) Empty() bool {
	return s.PendingCourseID == 0 && s.PendingReferral == nil && !s.AwaitingEmail && s.PendingLessonType == ""
}
