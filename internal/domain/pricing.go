package domain

// PricingOutcome tags a pricing result as clean or carrying a non-fatal warning.
type PricingOutcome string

const (
	// PricingOutcomeOK means every requested input was applied.
	PricingOutcomeOK PricingOutcome = "ok"
	// PricingOutcomeWarning means the cart was priced but the coupon was dropped.
	PricingOutcomeWarning PricingOutcome = "ok_with_warning"
)

// PricedLine is the per-line breakdown of a priced cart.
type PricedLine struct {
	ItemID      string
	Name        string
	OptionID    string
	OptionLabel string
	Quantity    int
	BasePrice   int64
	UnitPrice   int64
	LineTotal   int64
	Discounted  bool
}

// PricingResult captures the aggregated monetary results of pricing a cart.
type PricingResult struct {
	Outcome     PricingOutcome
	Warning     string
	VendorID    string
	Lines       []PricedLine
	Subtotal    int64
	Discount    int64
	DeliveryFee int64
	Total       int64
	Coupon      *Coupon
	CouponCode  *string
}

// HasWarning reports whether the coupon was dropped from the result.
func (r PricingResult) HasWarning() bool {
	return r.Outcome == PricingOutcomeWarning
}
