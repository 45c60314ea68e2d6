package domain

import "fmt"

// BookingStatus values are persisted as integers.
type BookingStatus int

const (
	BookingStatusCancelled     BookingStatus = -1
	BookingStatusPending       BookingStatus = 0
	BookingStatusProofUploaded BookingStatus = 1
	BookingStatusApproved      BookingStatus = 2
)

func (s BookingStatus) String() string {
	switch s {
	case BookingStatusCancelled:
		return "CANCELLED"
	case BookingStatusPending:
		return "PENDING"
	case BookingStatusProofUploaded:
		return "PROOF_UPLOADED"
	case BookingStatusApproved:
		return "APPROVED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusCancelled, BookingStatusPending, BookingStatusProofUploaded, BookingStatusApproved:
		return true
	}
	return false
}

// Open reports whether the booking still awaits payment resolution.
func (s BookingStatus) Open() bool {
	return s == BookingStatusPending || s == BookingStatusProofUploaded
}

func (s BookingStatus) Terminal() bool {
	return s == BookingStatusApproved || s == BookingStatusCancelled
}

func ParseBookingStatus(v string) (BookingStatus, error) {
	for _, s := range []BookingStatus{BookingStatusCancelled, BookingStatusPending, BookingStatusProofUploaded, BookingStatusApproved} {
		if s.String() == v || fmt.Sprint(int(s)) == v {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown booking status %q", ErrValidation, v)
}

type BookingEvent int

const (
	EventProofUploaded BookingEvent = iota + 1
	EventApprove
	EventCancel
)

func (e BookingEvent) String() string {
	switch e {
	case EventProofUploaded:
		return "proof_uploaded"
	case EventApprove:
		return "approve"
	case EventCancel:
		return "cancel"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Transition is the whole booking lifecycle:
//
//	PENDING --proof_uploaded--> PROOF_UPLOADED --approve--> APPROVED
//	PENDING --cancel--> CANCELLED
//
// Every other pair is rejected with ErrTransitionRejected.
func Transition(current BookingStatus, event BookingEvent) (BookingStatus, error) {
	switch {
	case current == BookingStatusPending && event == EventProofUploaded:
		return BookingStatusProofUploaded, nil
	case current == BookingStatusPending && event == EventCancel:
		return BookingStatusCancelled, nil
	case current == BookingStatusProofUploaded && event == EventApprove:
		return BookingStatusApproved, nil
	}
	return current, fmt.Errorf("%w: %s on %s", ErrTransitionRejected, event, current)
}

// SourceStatus returns the only status from which event is legal.
func SourceStatus(event BookingEvent) (BookingStatus, bool) {
	switch event {
	case EventProofUploaded, EventCancel:
		return BookingStatusPending, true
	case EventApprove:
		return BookingStatusProofUploaded, true
	}
	return 0, false
}
