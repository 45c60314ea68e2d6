package domain

import (
	"strconv"
	"time"
)

// Identity is a snapshot of the chat user taken when a record is created.
type Identity struct {
	UserID    int64
	Username  string
	FirstName string
}

// Display picks @username, then first name, then the numeric id.
func (i Identity) Display() string {
	if i.Username != "" {
		return "@" + i.Username
	}
	if i.FirstName != "" {
		return i.FirstName
	}
	return "ID: " + strconv.FormatInt(i.UserID, 10)
}

type Booking struct {
	ID              int64         `json:"id"`
	UserID          int64         `json:"user_id"`
	Username        string        `json:"username,omitempty"`
	FirstName       string        `json:"first_name,omitempty"`
	CourseID        int64         `json:"course_id"`
	Status          BookingStatus `json:"status"`
	ReferralCode    string        `json:"referral_code,omitempty"`
	DiscountPercent int           `json:"discount_percent,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (b *Booking) Identity() Identity {
	return Identity{UserID: b.UserID, Username: b.Username, FirstName: b.FirstName}
}

// Age is how long the booking has been waiting since creation.
func (b *Booking) Age(now time.Time) time.Duration {
	return now.Sub(b.CreatedAt)
}

// BookingFilter narrows admin listings; zero values mean "any".
type BookingFilter struct {
	Status   *BookingStatus
	CourseID int64
	Username string
	Limit    int
}
