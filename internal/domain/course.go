package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Course struct {
	ID            int64              `yaml:"id" json:"id"`
	Name          string             `yaml:"name" json:"name"`
	ButtonText    string             `yaml:"button_text" json:"button_text"`
	Description   string             `yaml:"description" json:"description"`
	PriceUSD      int64              `yaml:"price_usd" json:"price_usd"`
	PriceUSDCents int64              `yaml:"price_usd_cents" json:"price_usd_cents"`
	IsActive      *bool              `yaml:"is_active" json:"is_active"`
	StartDateText string             `yaml:"start_date_text" json:"start_date_text"`
	Confirmation  CourseConfirmation `yaml:"confirmation" json:"confirmation"`
}

// CourseConfirmation is what a student receives once payment is approved.
type CourseConfirmation struct {
	StreamTitle           string `yaml:"stream_title" json:"stream_title"`
	DatesText             string `yaml:"dates_text" json:"dates_text"`
	FirstLiveCalendarLink string `yaml:"first_live_calendar_link" json:"first_live_calendar_link"`
	GroupInviteLink       string `yaml:"group_invite_link" json:"group_invite_link"`
	SupportContact        string `yaml:"support_contact" json:"support_contact"`
	ApprovalPhotoFileID   string `yaml:"approval_photo_file_id" json:"approval_photo_file_id"`
}

func (c Course) Active() bool {
	return c.IsActive == nil || *c.IsActive
}

func (c Course) Price() decimal.Decimal {
	return decimal.New(c.PriceUSDCents, -2)
}

// Lesson is a free lesson offering, keyed by LessonType in the catalog.
type Lesson struct {
	ID          int64     `yaml:"id" json:"id"`
	LessonType  string    `yaml:"-" json:"lesson_type"`
	Title       string    `yaml:"title" json:"title"`
	ButtonText  string    `yaml:"button_text" json:"button_text"`
	Description string    `yaml:"description" json:"description"`
	DateText    string    `yaml:"date_text" json:"date_text"`
	StartsAt    time.Time `yaml:"datetime" json:"starts_at"`
	MeetLink    string    `yaml:"meet_link" json:"meet_link"`
	IsActive    bool      `yaml:"is_active" json:"is_active"`
}

func (l Lesson) Scheduled() bool {
	return !l.StartsAt.IsZero()
}
