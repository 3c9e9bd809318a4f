package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/foodhub/api/internal/domain"
	"github.com/foodhub/api/internal/platform/pagination"
	"github.com/foodhub/api/internal/platform/textutil"
	"github.com/foodhub/api/internal/repositories"
)

const couponIDPrefix = "cpn_"

// CouponServiceDeps bundles collaborators required to construct the coupon service.
type CouponServiceDeps struct {
	Coupons     repositories.CouponRepository
	Orders      repositories.OrderRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type couponService struct {
	coupons repositories.CouponRepository
	orders  repositories.OrderRepository
	clock   func() time.Time
	newID   func() string
	logger  func(context.Context, string, map[string]any)
}

// NewCouponService wires dependencies into a CouponService implementation.
func NewCouponService(deps CouponServiceDeps) (CouponService, error) {
	if deps.Coupons == nil {
		return nil, errors.New("coupon service: coupon repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("coupon service: order repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &couponService{
		coupons: deps.Coupons,
		orders:  deps.Orders,
		clock:   func() time.Time { return clock().UTC() },
		newID:   idGen,
		logger:  logger,
	}, nil
}

// Validate runs the coupon checks in order and stops at the first failure.
func (s *couponService) Validate(ctx context.Context, code string, userID string, vendorID string) (CouponValidation, error) {
	canonical := textutil.CanonicalCode(code)
	if canonical == "" {
		return CouponValidation{Reason: ErrCouponNotFound}, nil
	}
	coupon, err := s.coupons.FindByCode(ctx, canonical)
	if err != nil {
		if isNotFound(err) {
			return CouponValidation{Reason: ErrCouponNotFound}, nil
		}
		return CouponValidation{}, mapRepositoryError(err, ErrCouponNotFound)
	}

	now := s.clock()
	reject := func(reason error) (CouponValidation, error) {
		s.logger(ctx, "coupon.validation.rejected", map[string]any{
			"couponId": coupon.ID,
			"userId":   userID,
			"vendorId": vendorID,
			"reason":   reason.Error(),
		})
		return CouponValidation{Coupon: &coupon, Reason: reason}, nil
	}

	switch {
	case !coupon.Active:
		return reject(ErrCouponInactive)
	case coupon.StartsAt != nil && now.Before(*coupon.StartsAt):
		return reject(ErrCouponNotStarted)
	case coupon.EndsAt != nil && now.After(*coupon.EndsAt):
		return reject(ErrCouponExpired)
	case coupon.UsageLimit > 0 && coupon.UsedCount >= coupon.UsageLimit:
		return reject(ErrCouponUsageLimit)
	case len(coupon.AllowedUserIDs) > 0 && !slices.Contains(coupon.AllowedUserIDs, userID):
		return reject(ErrCouponUserNotAllowed)
	}

	if coupon.PerUserLimit > 0 {
		used, err := s.orders.CountByCouponAndCustomer(ctx, coupon.ID, userID)
		if err != nil {
			return CouponValidation{}, mapRepositoryError(err, nil)
		}
		if used >= coupon.PerUserLimit {
			return reject(ErrCouponPerUserLimit)
		}
	}

	if len(coupon.AllowedVendorIDs) > 0 && !slices.Contains(coupon.AllowedVendorIDs, vendorID) {
		return reject(ErrCouponVendorNotAllowed)
	}
	return CouponValidation{Valid: true, Coupon: &coupon}, nil
}

// Apply computes the clamped discount of a valid coupon. The discount never exceeds
// MaxDiscountValue (when set) nor the subtotal.
func (s *couponService) Apply(subtotal int64, coupon Coupon) CouponApplication {
	return applyCoupon(subtotal, coupon)
}

func applyCoupon(subtotal int64, coupon Coupon) CouponApplication {
	if subtotal < 0 {
		subtotal = 0
	}
	if coupon.MinOrderValue != nil && subtotal < *coupon.MinOrderValue {
		return CouponApplication{
			Total:  subtotal,
			Reason: fmt.Errorf("%w (%s)", ErrCouponMinOrder, formatMinor(*coupon.MinOrderValue)),
		}
	}

	var discount int64
	switch coupon.Type {
	case domain.DiscountTypePercentage:
		discount = percentOf(subtotal, coupon.Value)
	case domain.DiscountTypeFixed:
		discount = coupon.Value
	}
	if discount < 0 {
		discount = 0
	}
	if coupon.MaxDiscountValue != nil && *coupon.MaxDiscountValue >= 0 && discount > *coupon.MaxDiscountValue {
		discount = *coupon.MaxDiscountValue
	}
	if discount > subtotal {
		discount = subtotal
	}
	return CouponApplication{Discount: discount, Total: subtotal - discount}
}

func (s *couponService) CreateCoupon(ctx context.Context, cmd CreateCouponCommand) (Coupon, error) {
	code := textutil.CanonicalCode(cmd.Code)
	if code == "" {
		return Coupon{}, fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	if err := validateDiscount(cmd.Type, cmd.Value); err != nil {
		return Coupon{}, err
	}
	if cmd.StartsAt != nil && cmd.EndsAt != nil && cmd.EndsAt.Before(*cmd.StartsAt) {
		return Coupon{}, fmt.Errorf("%w: coupon window ends before it starts", ErrInvalidInput)
	}
	if cmd.PerUserLimit < 0 || cmd.UsageLimit < 0 {
		return Coupon{}, fmt.Errorf("%w: usage limits must not be negative", ErrInvalidInput)
	}
	for _, bound := range []*int64{cmd.MinOrderValue, cmd.MaxDiscountValue} {
		if bound != nil && *bound < 0 {
			return Coupon{}, fmt.Errorf("%w: coupon bounds must not be negative", ErrInvalidInput)
		}
	}

	if _, err := s.coupons.FindByCode(ctx, code); err == nil {
		return Coupon{}, fmt.Errorf("%w: coupon code %s", ErrDuplicate, code)
	} else if !isNotFound(err) {
		return Coupon{}, mapRepositoryError(err, nil)
	}

	now := s.clock()
	coupon := Coupon{
		ID:               couponIDPrefix + s.newID(),
		Code:             code,
		Type:             cmd.Type,
		Value:            cmd.Value,
		MinOrderValue:    cmd.MinOrderValue,
		MaxDiscountValue: cmd.MaxDiscountValue,
		StartsAt:         utcPtr(cmd.StartsAt),
		EndsAt:           utcPtr(cmd.EndsAt),
		Active:           true,
		PerUserLimit:     cmd.PerUserLimit,
		UsageLimit:       cmd.UsageLimit,
		AllowedUserIDs:   compactIDs(cmd.AllowedUserIDs),
		AllowedVendorIDs: compactIDs(cmd.AllowedVendorIDs),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.coupons.Insert(ctx, coupon); err != nil {
		return Coupon{}, mapRepositoryError(err, nil)
	}
	s.logger(ctx, "coupon.created", map[string]any{"couponId": coupon.ID, "code": coupon.Code})
	return coupon, nil
}

func (s *couponService) GetCoupon(ctx context.Context, couponID string) (Coupon, error) {
	return RequireFound(ctx, couponID, ErrCouponNotFound, s.coupons.FindByID)
}

func (s *couponService) ListCoupons(ctx context.Context, pager Pagination) (domain.CursorPage[Coupon], error) {
	page, err := s.coupons.List(ctx, pagination.Normalize(pager, pagination.Options{}))
	if err != nil {
		return domain.CursorPage[Coupon]{}, mapRepositoryError(err, nil)
	}
	return page, nil
}

func (s *couponService) SetCouponActive(ctx context.Context, couponID string, active bool) (Coupon, error) {
	coupon, err := RequireFound(ctx, couponID, ErrCouponNotFound, s.coupons.FindByID)
	if err != nil {
		return Coupon{}, err
	}
	if coupon.Active == active {
		return Coupon{}, ErrCouponStateUnchanged
	}
	coupon.Active = active
	coupon.UpdatedAt = s.clock()
	if err := s.coupons.Update(ctx, coupon); err != nil {
		return Coupon{}, mapRepositoryError(err, ErrCouponNotFound)
	}
	s.logger(ctx, "coupon.state.changed", map[string]any{"couponId": coupon.ID, "active": active})
	return coupon, nil
}

func validateDiscount(kind domain.DiscountType, value int64) error {
	switch kind {
	case domain.DiscountTypePercentage:
		if value <= 0 || value > 100 {
			return fmt.Errorf("%w: percentage must be between 1 and 100", ErrInvalidInput)
		}
	case domain.DiscountTypeFixed:
		if value <= 0 {
			return fmt.Errorf("%w: fixed discount must be positive", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unsupported discount type %q", ErrInvalidInput, kind)
	}
	return nil
}

func compactIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
