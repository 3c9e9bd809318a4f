package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	domain "github.com/foodhub/api/internal/domain"
	"github.com/foodhub/api/internal/repositories"
)

// PricingCalculatorDeps bundles collaborators required to construct the pricing calculator.
type PricingCalculatorDeps struct {
	Items         repositories.ItemRepository
	DeliveryAreas repositories.DeliveryAreaRepository
	Coupons       CouponService
	Clock         func() time.Time
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type pricingCalculator struct {
	items   repositories.ItemRepository
	areas   repositories.DeliveryAreaRepository
	coupons CouponService
	clock   func() time.Time
	logger  func(context.Context, string, map[string]any)
}

// NewPricingCalculator wires dependencies into a PricingCalculator implementation.
func NewPricingCalculator(deps PricingCalculatorDeps) (PricingCalculator, error) {
	if deps.Items == nil {
		return nil, errors.New("pricing calculator: item repository is required")
	}
	if deps.DeliveryAreas == nil {
		return nil, errors.New("pricing calculator: delivery area repository is required")
	}
	if deps.Coupons == nil {
		return nil, errors.New("pricing calculator: coupon service is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &pricingCalculator{
		items:   deps.Items,
		areas:   deps.DeliveryAreas,
		coupons: deps.Coupons,
		clock:   func() time.Time { return clock().UTC() },
		logger:  logger,
	}, nil
}

func (p *pricingCalculator) Compute(ctx context.Context, cmd PricingCommand) (PricingResult, error) {
	if len(cmd.Lines) == 0 {
		return PricingResult{}, fmt.Errorf("%w: cart must contain at least one item", ErrInvalidInput)
	}
	ids := make([]string, 0, len(cmd.Lines))
	for i, line := range cmd.Lines {
		if strings.TrimSpace(line.ItemID) == "" {
			return PricingResult{}, fmt.Errorf("%w: line %d: item id is required", ErrInvalidInput, i)
		}
		if line.Quantity < 1 {
			return PricingResult{}, fmt.Errorf("%w: line %d: quantity must be at least 1", ErrInvalidInput, i)
		}
		ids = append(ids, strings.TrimSpace(line.ItemID))
	}

	items, err := p.items.FindByIDs(ctx, compactIDs(ids))
	if err != nil {
		return PricingResult{}, mapRepositoryError(err, ErrItemNotFound)
	}

	now := p.clock()
	result := PricingResult{Outcome: domain.PricingOutcomeOK, Lines: make([]domain.PricedLine, 0, len(cmd.Lines))}
	for _, line := range cmd.Lines {
		item, ok := items[strings.TrimSpace(line.ItemID)]
		if !ok {
			return PricingResult{}, fmt.Errorf("%w: %s", ErrItemNotFound, line.ItemID)
		}
		if !item.Active || !item.Available {
			return PricingResult{}, fmt.Errorf("%w: item %s is not available", ErrInvalidInput, item.ID)
		}
		if result.VendorID == "" {
			result.VendorID = item.VendorID
		} else if item.VendorID != result.VendorID {
			return PricingResult{}, ErrMixedVendorCart
		}

		priced, err := priceLine(item, line, now)
		if err != nil {
			return PricingResult{}, err
		}
		if result.Subtotal > math.MaxInt64-priced.LineTotal {
			return PricingResult{}, fmt.Errorf("%w: cart total is too large", ErrInvalidInput)
		}
		result.Subtotal += priced.LineTotal
		result.Lines = append(result.Lines, priced)
	}

	if !cmd.Pickup {
		fee, err := p.deliveryFee(ctx, cmd.DeliveryAreaID)
		if err != nil {
			return PricingResult{}, err
		}
		result.DeliveryFee = fee
	}

	if cmd.CouponCode != nil && strings.TrimSpace(*cmd.CouponCode) != "" {
		if err := p.applyCoupon(ctx, &result, *cmd.CouponCode, cmd.UserID); err != nil {
			return PricingResult{}, err
		}
	}

	result.Total = result.Subtotal - result.Discount + result.DeliveryFee
	return result, nil
}

func (p *pricingCalculator) deliveryFee(ctx context.Context, areaID *string) (int64, error) {
	if areaID == nil || strings.TrimSpace(*areaID) == "" {
		return 0, fmt.Errorf("%w: a delivery area is required for delivery orders", ErrInvalidInput)
	}
	area, err := RequireFound(ctx, strings.TrimSpace(*areaID), ErrDeliveryAreaMissing, p.areas.FindByID)
	if err != nil {
		return 0, err
	}
	if !area.Active {
		return 0, fmt.Errorf("%w: delivery area %s is not served", ErrInvalidInput, area.Name)
	}
	return area.Fee, nil
}

// applyCoupon folds a coupon into the result. Coupon problems become a warning on the result;
// only infrastructure failures are returned.
func (p *pricingCalculator) applyCoupon(ctx context.Context, result *PricingResult, code string, userID string) error {
	validation, err := p.coupons.Validate(ctx, code, userID, result.VendorID)
	if err != nil {
		return err
	}
	warn := func(reason error) {
		result.Outcome = domain.PricingOutcomeWarning
		result.Warning = reason.Error()
		result.Discount = 0
		p.logger(ctx, "pricing.coupon.dropped", map[string]any{"code": code, "reason": reason.Error()})
	}
	if !validation.Valid {
		warn(validation.Reason)
		return nil
	}
	applied := p.coupons.Apply(result.Subtotal, *validation.Coupon)
	if applied.Reason != nil {
		warn(applied.Reason)
		return nil
	}
	coupon := *validation.Coupon
	result.Coupon = &coupon
	result.CouponCode = &coupon.Code
	result.Discount = applied.Discount
	return nil
}

func priceLine(item Item, line CartLine, now time.Time) (domain.PricedLine, error) {
	optionID := strings.TrimSpace(line.OptionID)
	priced := domain.PricedLine{ItemID: item.ID, Name: item.Name, Quantity: line.Quantity, BasePrice: item.BasePrice}
	switch {
	case len(item.Options) > 0:
		if optionID == "" {
			return domain.PricedLine{}, fmt.Errorf("%w: item %s requires an option", ErrInvalidInput, item.ID)
		}
		opt, ok := item.Option(optionID)
		if !ok {
			return domain.PricedLine{}, fmt.Errorf("%w: item %s has no option %s", ErrInvalidInput, item.ID, optionID)
		}
		priced.OptionID = opt.ID
		priced.OptionLabel = opt.Label
		priced.BasePrice = opt.Price
	case optionID != "":
		return domain.PricedLine{}, fmt.Errorf("%w: item %s has no options", ErrInvalidInput, item.ID)
	}

	priced.UnitPrice = DiscountedPrice(priced.BasePrice, item.Discount, now)
	priced.Discounted = priced.UnitPrice != priced.BasePrice
	qty := int64(line.Quantity)
	if priced.UnitPrice > 0 && qty > math.MaxInt64/priced.UnitPrice {
		return domain.PricedLine{}, fmt.Errorf("%w: line total is too large", ErrInvalidInput)
	}
	priced.LineTotal = priced.UnitPrice * qty
	return priced, nil
}

// DiscountedPrice applies the item discount when it is active at now. Percentage discounts
// round half up to the minor unit; the result is never negative.
func DiscountedPrice(base int64, discount *domain.ItemDiscount, now time.Time) int64 {
	if base < 0 {
		base = 0
	}
	if !discount.ActiveAt(now) {
		return base
	}
	switch discount.Type {
	case domain.DiscountTypePercentage:
		pct := discount.Value
		if pct <= 0 {
			return base
		}
		if pct >= 100 {
			return 0
		}
		return roundDiv(base*(100-pct), 100)
	case domain.DiscountTypeFixed:
		if discount.Value >= base {
			return 0
		}
		if discount.Value <= 0 {
			return base
		}
		return base - discount.Value
	}
	return base
}

// percentOf returns pct percent of amount rounded half up.
func percentOf(amount int64, pct int64) int64 {
	if amount <= 0 || pct <= 0 {
		return 0
	}
	if pct >= 100 {
		return amount
	}
	return roundDiv(amount*pct, 100)
}

func roundDiv(n, d int64) int64 {
	return (n + d/2) / d
}

func formatMinor(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}
