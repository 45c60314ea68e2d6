package domain

import "time"

type Registration struct {
	ID               int64      `json:"id"`
	UserID           int64      `json:"user_id"`
	Username         string     `json:"username"`
	FirstName        string     `json:"first_name"`
	Email            string     `json:"email"`
	LessonType       string     `json:"lesson_type"`
	LessonDate       *time.Time `json:"lesson_date,omitempty"`
	RegisteredAt     time.Time  `json:"registered_at"`
	NotificationSent bool       `json:"notification_sent"`
}
