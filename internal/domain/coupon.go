package domain

import "time"

type Coupon struct {
	ID                 int64     `json:"id"`
	Code               string    `json:"code"`
	Name               string    `json:"name,omitempty"`
	DiscountPercent    int       `json:"discount_percent"`
	MaxActivations     int       `json:"max_activations"`
	CurrentActivations int       `json:"current_activations"`
	CreatedBy          int64     `json:"created_by"`
	IsActive           bool      `json:"is_active"`
	CreatedAt          time.Time `json:"created_at"`
}

func (c *Coupon) Exhausted() bool {
	return c.CurrentActivations >= c.MaxActivations
}

func (c *Coupon) Usable() bool {
	return c.IsActive && !c.Exhausted()
}

func (c *Coupon) Remaining() int {
	if c.Exhausted() {
		return 0
	}
	return c.MaxActivations - c.CurrentActivations
}

// Redemption is what a booking needs to apply a validated coupon.
type Redemption struct {
	CouponID        int64  `json:"coupon_id"`
	Code            string `json:"code"`
	DiscountPercent int    `json:"discount_percent"`
}

type ReferralUsage struct {
	CouponID  int64
	UserID    int64
	BookingID int64
	UsedAt    time.Time
}
