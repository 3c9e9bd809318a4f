package services

var (
	// ErrCouponInactive indicates the coupon has been switched off.
	ErrCouponInactive = newKindError(ErrBadRequest, "coupon is not active")
	// ErrCouponNotStarted indicates the coupon window has not opened yet.
	ErrCouponNotStarted = newKindError(ErrBadRequest, "coupon is not valid yet")
	// ErrCouponExpired indicates the coupon window has closed.
	ErrCouponExpired = newKindError(ErrBadRequest, "coupon has expired")
	// ErrCouponUsageLimit indicates the global usage cap was reached.
	ErrCouponUsageLimit = newKindError(ErrBadRequest, "coupon usage limit reached")
	// ErrCouponUserNotAllowed indicates the caller is not on the coupon allow-list.
	ErrCouponUserNotAllowed = newKindError(ErrBadRequest, "coupon is not available for this user")
	// ErrCouponPerUserLimit indicates the caller already used the coupon the allowed number of times.
	ErrCouponPerUserLimit = newKindError(ErrBadRequest, "coupon usage limit reached for this user")
	// ErrCouponVendorNotAllowed indicates the coupon does not apply to the cart's vendor.
	ErrCouponVendorNotAllowed = newKindError(ErrBadRequest, "coupon is not valid for this vendor")
	// ErrCouponMinOrder indicates the subtotal is below the coupon minimum.
	ErrCouponMinOrder = newKindError(ErrBadRequest, "order subtotal is below the coupon minimum")
	// ErrCouponStateUnchanged indicates an activate/deactivate request matched the current state.
	ErrCouponStateUnchanged = newKindError(ErrConflict, "coupon already has the requested state")
)
