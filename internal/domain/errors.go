package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("state changed concurrently")
	ErrValidation         = errors.New("validation failed")
	ErrTransitionRejected = errors.New("transition rejected")

	ErrCouponNotFound    = errors.New("coupon not found")
	ErrCouponExpired     = errors.New("coupon exhausted")
	ErrCouponAlreadyUsed = errors.New("coupon already used by this user")

	ErrMalformedCallback = errors.New("malformed callback payload")
	ErrCourseUnavailable = errors.New("course is not available")
	ErrLessonUnavailable = errors.New("lesson is not available")
	ErrLessonFinished    = errors.New("lesson already finished")
	ErrInvalidEmail      = errors.New("invalid email")

	// ErrDeliveryFailed means the state change is stored but the chat message was not sent.
	ErrDeliveryFailed = errors.New("message delivery failed")
)

// IsAlreadyHandled groups the outcomes a user sees as "already processed".
func IsAlreadyHandled(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrTransitionRejected)
}
