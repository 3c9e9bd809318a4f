package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	domain "github.com/foodhub/api/internal/domain"
	"github.com/foodhub/api/internal/services"
)

type stubCouponService struct {
	validate func(context.Context, string, string, string) (services.CouponValidation, error)
	create   func(context.Context, services.CreateCouponCommand) (services.Coupon, error)
}

func (s *stubCouponService) Validate(ctx context.Context, code, userID, vendorID string) (services.CouponValidation, error) {
	return s.validate(ctx, code, userID, vendorID)
}

func (s *stubCouponService) Apply(subtotal int64, coupon services.Coupon) services.CouponApplication {
	discount := coupon.Value
	if discount > subtotal {
		discount = subtotal
	}
	return services.CouponApplication{Discount: discount, Total: subtotal - discount}
}

func (s *stubCouponService) CreateCoupon(ctx context.Context, cmd services.CreateCouponCommand) (services.Coupon, error) {
	return s.create(ctx, cmd)
}

func (s *stubCouponService) GetCoupon(context.Context, string) (services.Coupon, error) {
	return services.Coupon{}, services.ErrCouponNotFound
}

func (s *stubCouponService) ListCoupons(context.Context, services.Pagination) (domain.CursorPage[services.Coupon], error) {
	return domain.CursorPage[services.Coupon]{}, nil
}

func (s *stubCouponService) SetCouponActive(_ context.Context, id string, active bool) (services.Coupon, error) {
	return services.Coupon{ID: id, Active: active}, nil
}

func adminRouter(coupons services.CouponService, dispatcher services.NotificationDispatcher) http.Handler {
	admin := NewAdminHandlers(coupons, nil, dispatcher)
	catalog := NewCatalogHandlers(nil, nil, coupons)
	return NewRouter(
		WithAuthenticator(testAuthenticator()),
		WithAdminRoutes(admin.Routes),
		WithCustomerRoutes(catalog.CustomerRoutes),
		WithPublicRoutes(catalog.PublicRoutes),
	)
}

func TestCreateCoupon(t *testing.T) {
	var got services.CreateCouponCommand
	coupons := &stubCouponService{create: func(_ context.Context, cmd services.CreateCouponCommand) (services.Coupon, error) {
		got = cmd
		return services.Coupon{ID: "cpn_1", Code: "SAVE20", Type: cmd.Type, Value: cmd.Value, Active: true}, nil
	}}
	router := adminRouter(coupons, nil)

	rr, _ := serve(t, router, http.MethodPost, "/api/v1/admin/coupons", "customer", map[string]any{"code": "save20"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected customers to be rejected, got %d", rr.Code)
	}

	rr, _ = serve(t, router, http.MethodPost, "/api/v1/admin/coupons", "admin", map[string]any{"code": "save20", "type": "bogus"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d", rr.Code)
	}

	rr, env := serve(t, router, http.MethodPost, "/api/v1/admin/coupons", "admin", map[string]any{
		"code": "save20", "type": "Percentage", "value": 20, "maxDiscountValue": 400,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rr.Code, rr.Body.String())
	}
	if got.Type != domain.DiscountTypePercentage || got.MaxDiscountValue == nil || *got.MaxDiscountValue != 400 {
		t.Fatalf("unexpected command %+v", got)
	}
	var payload couponPayload
	decodeData(t, env, &payload)
	if payload.ID != "cpn_1" || !payload.Active {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestCouponActivation(t *testing.T) {
	router := adminRouter(&stubCouponService{}, nil)
	rr, env := serve(t, router, http.MethodPost, "/api/v1/admin/coupons/cpn_1/deactivate", "admin", nil)
	if rr.Code != http.StatusOK || env.Message != "coupon deactivated" {
		t.Fatalf("unexpected response %d %+v", rr.Code, env)
	}
	rr, _ = serve(t, router, http.MethodGet, "/api/v1/admin/coupons/cpn_x", "admin", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestBroadcast(t *testing.T) {
	dispatcher := &stubDispatcher{}
	router := adminRouter(nil, dispatcher)

	rr, _ := serve(t, router, http.MethodPost, "/api/v1/admin/notifications/broadcast", "admin", map[string]any{
		"audience": "Delivery", "title": "Rain", "body": "Drive safely",
	})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
	if len(dispatcher.broadcasts) != 1 || dispatcher.broadcasts[0].Audience != services.AudienceDelivery {
		t.Fatalf("unexpected broadcasts %+v", dispatcher.broadcasts)
	}

	dispatcher.err = services.ErrQueueFull
	rr, _ = serve(t, router, http.MethodPost, "/api/v1/admin/notifications/broadcast", "admin", map[string]any{"title": "a", "body": "b"})
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the queue is full, got %d", rr.Code)
	}
}

func TestValidateCoupon(t *testing.T) {
	coupons := &stubCouponService{validate: func(_ context.Context, code, userID, vendorID string) (services.CouponValidation, error) {
		if userID != "u1" || vendorID != "v1" {
			return services.CouponValidation{}, errors.New("unexpected caller")
		}
		if code == "OLD" {
			return services.CouponValidation{Reason: services.ErrCouponExpired}, nil
		}
		return services.CouponValidation{Valid: true, Coupon: &services.Coupon{ID: "cpn_1", Code: code, Type: domain.DiscountTypeFixed, Value: 500}}, nil
	}}
	router := adminRouter(coupons, nil)

	rr, env := serve(t, router, http.MethodPost, "/api/v1/coupons/validate", "customer", map[string]any{"code": "FIVE", "vendorId": "v1", "subtotal": 2000})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload couponCheckPayload
	decodeData(t, env, &payload)
	if !payload.Valid || payload.Discount != 500 || payload.Total != 1500 {
		t.Fatalf("unexpected payload %+v", payload)
	}

	_, env = serve(t, router, http.MethodPost, "/api/v1/coupons/validate", "customer", map[string]any{"code": "OLD", "vendorId": "v1"})
	payload = couponCheckPayload{}
	decodeData(t, env, &payload)
	if payload.Valid || payload.Reason != services.ErrCouponExpired.Error() {
		t.Fatalf("expected expired reason, got %+v", payload)
	}
}

func TestPublicDeliveryAreasWithoutService(t *testing.T) {
	rr, _ := serve(t, adminRouter(nil, nil), http.MethodGet, "/api/v1/delivery-areas", "", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a delivery area service, got %d", rr.Code)
	}
}
