package repositories

import "fmt"

// CouponUsageCode enumerates the cap checks that can fail when an order consumes a coupon.
type CouponUsageCode string

const (
	// CouponUsageExhausted indicates the coupon reached its global usage limit.
	CouponUsageExhausted CouponUsageCode = "coupon_usage_exhausted"
	// CouponUsagePerUserExhausted indicates the customer reached the per-user limit.
	CouponUsagePerUserExhausted CouponUsageCode = "coupon_usage_per_user_exhausted"
	// CouponUsageInactive indicates the coupon was deactivated or removed before the order committed.
	CouponUsageInactive CouponUsageCode = "coupon_usage_inactive"
)

// CouponUsageError reports a coupon cap violation detected while committing an order.
type CouponUsageError struct {
	CouponID string
	Code     CouponUsageCode
	Message  string
}

// Error implements the error interface.
func (e *CouponUsageError) Error() string {
	if e == nil {
		return ""
	}
	if e.CouponID != "" {
		return fmt.Sprintf("coupon %s: %s", e.CouponID, e.Message)
	}
	return e.Message
}

// NewCouponUsageError constructs a typed coupon usage error.
func NewCouponUsageError(couponID string, code CouponUsageCode, message string) *CouponUsageError {
	if message == "" {
		message = string(code)
	}
	return &CouponUsageError{CouponID: couponID, Code: code, Message: message}
}
