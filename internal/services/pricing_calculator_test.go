package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/foodhub/api/internal/domain"
)

func pricingFixture(t *testing.T, coupons ...domain.Coupon) (PricingCalculator, *memItems) {
	t.Helper()
	items := newMemItems(
		domain.Item{ID: "itm_a", VendorID: "v1", Name: "Burger", BasePrice: 1000, Active: true, Available: true},
		domain.Item{ID: "itm_b", VendorID: "v1", Name: "Fries", BasePrice: 500, Active: true, Available: true},
		domain.Item{ID: "itm_c", VendorID: "v2", Name: "Sushi", BasePrice: 1200, Active: true, Available: true},
		domain.Item{ID: "itm_d", VendorID: "v1", Name: "Pizza", Active: true, Available: true, Options: []domain.ItemOption{
			{ID: "small", Label: "Small", Price: 800},
			{ID: "large", Label: "Large", Price: 1400},
		}},
		domain.Item{ID: "itm_off", VendorID: "v1", Name: "Soup", BasePrice: 300, Active: true},
	)
	areas := newMemAreas(
		domain.DeliveryArea{ID: "area_1", Name: "Downtown", Fee: 1500, Active: true},
		domain.DeliveryArea{ID: "area_closed", Name: "Harbor", Fee: 900},
	)
	couponSvc, err := NewCouponService(CouponServiceDeps{Coupons: newMemCoupons(coupons...), Orders: newMemOrders(), Clock: fixedClock})
	if err != nil {
		t.Fatalf("NewCouponService: %v", err)
	}
	calc, err := NewPricingCalculator(PricingCalculatorDeps{Items: items, DeliveryAreas: areas, Coupons: couponSvc, Clock: fixedClock})
	if err != nil {
		t.Fatalf("NewPricingCalculator: %v", err)
	}
	return calc, items
}

func basicCart() []CartLine {
	return []CartLine{{ItemID: "itm_a", Quantity: 2}, {ItemID: "itm_b", Quantity: 1}}
}

func TestPricingCalculatorWithoutCoupon(t *testing.T) {
	calc, _ := pricingFixture(t)

	result, err := calc.Compute(context.Background(), PricingCommand{Lines: basicCart(), UserID: "u1", DeliveryAreaID: ptr("area_1")})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if result.Subtotal != 2500 || result.Discount != 0 || result.DeliveryFee != 1500 || result.Total != 4000 {
		t.Fatalf("unexpected totals %+v", result)
	}
	if result.Outcome != domain.PricingOutcomeOK || result.VendorID != "v1" {
		t.Fatalf("unexpected outcome %s vendor %s", result.Outcome, result.VendorID)
	}
	if len(result.Lines) != 2 || result.Lines[0].LineTotal != 2000 {
		t.Fatalf("unexpected lines %+v", result.Lines)
	}
}

func TestPricingCalculatorClampsCouponToMaxDiscount(t *testing.T) {
	calc, _ := pricingFixture(t, domain.Coupon{
		ID: "cpn_1", Code: "SAVE20", Type: domain.DiscountTypePercentage, Value: 20,
		MaxDiscountValue: ptr(int64(400)), Active: true,
	})

	result, err := calc.Compute(context.Background(), PricingCommand{
		Lines:          basicCart(),
		UserID:         "u1",
		DeliveryAreaID: ptr("area_1"),
		CouponCode:     ptr(" save20 "),
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if result.Discount != 400 || result.Total != 3600 {
		t.Fatalf("expected discount 400 total 3600, got %+v", result)
	}
	if result.Coupon == nil || result.Coupon.ID != "cpn_1" || result.CouponCode == nil || *result.CouponCode != "SAVE20" {
		t.Fatalf("expected coupon recorded, got %+v", result.Coupon)
	}
}

func TestPricingCalculatorCouponFailureIsWarning(t *testing.T) {
	calc, _ := pricingFixture(t,
		domain.Coupon{ID: "cpn_big", Code: "BIG", Type: domain.DiscountTypeFixed, Value: 500, MinOrderValue: ptr(int64(10000)), Active: true},
		domain.Coupon{ID: "cpn_old", Code: "OLD", Type: domain.DiscountTypeFixed, Value: 500, EndsAt: ptr(testNow.Add(-time.Hour)), Active: true},
	)

	cases := map[string]error{
		"BIG":     ErrCouponMinOrder,
		"OLD":     ErrCouponExpired,
		"MISSING": ErrCouponNotFound,
	}
	for code, reason := range cases {
		t.Run(code, func(t *testing.T) {
			result, err := calc.Compute(context.Background(), PricingCommand{Lines: basicCart(), Pickup: true, CouponCode: ptr(code)})
			if err != nil {
				t.Fatalf("coupon failure must not fail pricing: %v", err)
			}
			if !result.HasWarning() || result.Warning == "" {
				t.Fatalf("expected warning outcome, got %+v", result)
			}
			if result.Discount != 0 || result.Total != 2500 {
				t.Fatalf("expected undiscounted pickup total, got %+v", result)
			}
			if result.Coupon != nil {
				t.Fatalf("dropped coupon must not be recorded")
			}
			if !strings.Contains(result.Warning, reason.Error()) {
				t.Fatalf("expected warning %q to mention %q", result.Warning, reason)
			}
		})
	}
}

func TestPricingCalculatorPickupSkipsDeliveryFee(t *testing.T) {
	calc, _ := pricingFixture(t)

	result, err := calc.Compute(context.Background(), PricingCommand{Lines: basicCart(), Pickup: true, DeliveryAreaID: ptr("area_1")})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if result.DeliveryFee != 0 || result.Total != 2500 {
		t.Fatalf("expected no delivery fee for pickup, got %+v", result)
	}
}

func TestPricingCalculatorUsesOptionPrice(t *testing.T) {
	calc, _ := pricingFixture(t)

	result, err := calc.Compute(context.Background(), PricingCommand{
		Lines:  []CartLine{{ItemID: "itm_d", OptionID: "large", Quantity: 3}},
		Pickup: true,
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	line := result.Lines[0]
	if line.UnitPrice != 1400 || line.LineTotal != 4200 || line.OptionLabel != "Large" {
		t.Fatalf("unexpected option line %+v", line)
	}
}

func TestPricingCalculatorAppliesActiveItemDiscount(t *testing.T) {
	calc, items := pricingFixture(t)
	burger := items.items["itm_a"]
	burger.Discount = &domain.ItemDiscount{Type: domain.DiscountTypePercentage, Value: 15, Active: true, EndsAt: ptr(testNow.Add(time.Hour))}
	items.items["itm_a"] = burger

	result, err := calc.Compute(context.Background(), PricingCommand{Lines: []CartLine{{ItemID: "itm_a", Quantity: 1}}, Pickup: true})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if result.Lines[0].UnitPrice != 850 || !result.Lines[0].Discounted {
		t.Fatalf("expected discounted unit price 850, got %+v", result.Lines[0])
	}
}

func TestPricingCalculatorRejectsInvalidCarts(t *testing.T) {
	calc, _ := pricingFixture(t)

	tests := []struct {
		name string
		cmd  PricingCommand
		want error
	}{
		{"empty", PricingCommand{Pickup: true}, ErrBadRequest},
		{"zero quantity", PricingCommand{Lines: []CartLine{{ItemID: "itm_a"}}, Pickup: true}, ErrBadRequest},
		{"unknown item", PricingCommand{Lines: []CartLine{{ItemID: "itm_x", Quantity: 1}}, Pickup: true}, ErrItemNotFound},
		{"unavailable item", PricingCommand{Lines: []CartLine{{ItemID: "itm_off", Quantity: 1}}, Pickup: true}, ErrBadRequest},
		{"mixed vendors", PricingCommand{Lines: []CartLine{{ItemID: "itm_a", Quantity: 1}, {ItemID: "itm_c", Quantity: 1}}, Pickup: true}, ErrMixedVendorCart},
		{"missing option", PricingCommand{Lines: []CartLine{{ItemID: "itm_d", Quantity: 1}}, Pickup: true}, ErrBadRequest},
		{"unknown option", PricingCommand{Lines: []CartLine{{ItemID: "itm_d", OptionID: "xl", Quantity: 1}}, Pickup: true}, ErrBadRequest},
		{"option on plain item", PricingCommand{Lines: []CartLine{{ItemID: "itm_a", OptionID: "small", Quantity: 1}}, Pickup: true}, ErrBadRequest},
		{"delivery without area", PricingCommand{Lines: basicCart()}, ErrBadRequest},
		{"unknown area", PricingCommand{Lines: basicCart(), DeliveryAreaID: ptr("area_x")}, ErrDeliveryAreaMissing},
		{"inactive area", PricingCommand{Lines: basicCart(), DeliveryAreaID: ptr("area_closed")}, ErrBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := calc.Compute(context.Background(), tc.cmd)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestDiscountedPrice(t *testing.T) {
	start := testNow.Add(-time.Hour)
	end := testNow.Add(time.Hour)
	tests := []struct {
		name     string
		base     int64
		discount *domain.ItemDiscount
		want     int64
	}{
		{"no discount", 1000, nil, 1000},
		{"inactive flag", 1000, &domain.ItemDiscount{Type: domain.DiscountTypeFixed, Value: 100}, 1000},
		{"percentage", 1000, &domain.ItemDiscount{Type: domain.DiscountTypePercentage, Value: 10, Active: true}, 900},
		{"percentage rounds half up", 333, &domain.ItemDiscount{Type: domain.DiscountTypePercentage, Value: 50, Active: true}, 167},
		{"percentage over 100", 1000, &domain.ItemDiscount{Type: domain.DiscountTypePercentage, Value: 150, Active: true}, 0},
		{"fixed", 1000, &domain.ItemDiscount{Type: domain.DiscountTypeFixed, Value: 250, Active: true}, 750},
		{"fixed larger than price", 200, &domain.ItemDiscount{Type: domain.DiscountTypeFixed, Value: 250, Active: true}, 0},
		{"inside window", 1000, &domain.ItemDiscount{Type: domain.DiscountTypeFixed, Value: 100, Active: true, StartsAt: &start, EndsAt: &end}, 900},
		{"window not started", 1000, &domain.ItemDiscount{Type: domain.DiscountTypeFixed, Value: 100, Active: true, StartsAt: &end}, 1000},
		{"window ended", 1000, &domain.ItemDiscount{Type: domain.DiscountTypeFixed, Value: 100, Active: true, EndsAt: &start}, 1000},
		{"window bound inclusive", 1000, &domain.ItemDiscount{Type: domain.DiscountTypeFixed, Value: 100, Active: true, EndsAt: ptr(testNow)}, 900},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DiscountedPrice(tc.base, tc.discount, testNow)
			if got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
			if got < 0 || got > tc.base {
				t.Fatalf("discounted price %d outside [0, %d]", got, tc.base)
			}
		})
	}
}
