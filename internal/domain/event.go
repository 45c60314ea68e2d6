package domain

import "time"

type EventType string

const (
	EventStartCommand                  EventType = "start_command"
	EventSessionReset                  EventType = "session_reset"
	EventReferralCodeUsed              EventType = "referral_code_used"
	EventViewProgram                   EventType = "view_program"
	EventBookingCreated                EventType = "booking_created"
	EventBookingStatusChanged          EventType = "booking_status_changed"
	EventPaymentProofUploaded          EventType = "payment_proof_uploaded"
	EventAlternativeProof              EventType = "alternative_payment_proof"
	EventStudentResponse               EventType = "student_response"
	EventPaymentApproved               EventType = "payment_approved"
	EventBookingCancelled              EventType = "booking_cancelled"
	EventFreeLessonInfoViewed          EventType = "free_lesson_info_viewed"
	EventFreeLessonRegistrationStarted EventType = "free_lesson_registration_started"
	EventFreeLessonRegistered          EventType = "free_lesson_registered"
	EventFreeLessonReminderSent        EventType = "free_lesson_reminder_sent"
	EventReferralCreated               EventType = "referral_created"
	EventStatsRequested                EventType = "stats_requested"
	EventUnknownCallback               EventType = "unknown_callback"
)

// Event is one row of the append-only analytics log. ID is generated by the
// producer so the sink can drop redeliveries.
type Event struct {
	ID        string                 `json:"event_id"`
	UserID    int64                  `json:"user_id"`
	Username  string                 `json:"username,omitempty"`
	FirstName string                 `json:"first_name,omitempty"`
	Type      EventType              `json:"event_type"`
	Details   map[string]interface{} `json:"details,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
