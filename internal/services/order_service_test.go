package services

import (
	"context"
	"errors"
	"slices"
	"testing"

	domain "github.com/foodhub/api/internal/domain"
	"github.com/foodhub/api/internal/repositories"
)

var (
	customer = Caller{ID: "u1", Type: domain.UserTypeCustomer}
	stranger = Caller{ID: "u2", Type: domain.UserTypeCustomer}
	owner    = Caller{ID: "owner1", Type: domain.UserTypeVendor}
	rival    = Caller{ID: "owner2", Type: domain.UserTypeVendor}
	driver   = Caller{ID: "d1", Type: domain.UserTypeDelivery}
	driver2  = Caller{ID: "d2", Type: domain.UserTypeDelivery}
	admin    = Caller{ID: "root", Type: domain.UserTypeAdmin}
)

type orderFixture struct {
	svc     OrderService
	orders  *memOrders
	notify  *recordingDispatcher
	coupons *memCoupons
	items   *memItems
}

func newOrderFixture(t *testing.T, orders ...domain.Order) orderFixture {
	t.Helper()
	items := newMemItems(
		domain.Item{ID: "itm_a", VendorID: "v1", Name: "Burger", BasePrice: 1000, Active: true, Available: true},
		domain.Item{ID: "itm_b", VendorID: "v1", Name: "Fries", BasePrice: 500, Active: true, Available: true},
	)
	areas := newMemAreas(domain.DeliveryArea{ID: "area_1", Name: "Downtown", Fee: 1500, Active: true})
	coupons := newMemCoupons(domain.Coupon{ID: "cpn_1", Code: "SAVE20", Type: domain.DiscountTypePercentage, Value: 20, MaxDiscountValue: ptr(int64(400)), Active: true})
	orderRepo := newMemOrders(orders...)
	orderRepo.coupons = coupons
	vendors := newMemVendors(
		domain.Vendor{ID: "v1", OwnerID: "owner1", Name: "Grill"},
		domain.Vendor{ID: "v2", OwnerID: "owner2", Name: "Sushi"},
	)
	users := newMemUsers(domain.User{ID: "u1", Type: domain.UserTypeCustomer}, domain.User{ID: "owner1", Type: domain.UserTypeVendor})
	addresses := newMemAddresses(
		domain.Address{ID: "adr_1", UserID: "u1", Line: "1 Main St", DeliveryAreaID: "area_1", IsDefault: true},
		domain.Address{ID: "adr_2", UserID: "u2", Line: "2 Side St", DeliveryAreaID: "area_1", IsDefault: true},
	)

	couponSvc, err := NewCouponService(CouponServiceDeps{Coupons: coupons, Orders: orderRepo, Clock: fixedClock})
	if err != nil {
		t.Fatalf("NewCouponService: %v", err)
	}
	pricing, err := NewPricingCalculator(PricingCalculatorDeps{Items: items, DeliveryAreas: areas, Coupons: couponSvc, Clock: fixedClock})
	if err != nil {
		t.Fatalf("NewPricingCalculator: %v", err)
	}
	notify := &recordingDispatcher{}
	svc, err := NewOrderService(OrderServiceDeps{
		Orders:        orderRepo,
		Items:         items,
		Vendors:       vendors,
		Users:         users,
		Addresses:     addresses,
		Pricing:       pricing,
		Notifications: notify,
		Clock:         fixedClock,
		IDGenerator:   sequentialIDs(),
	})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}
	return orderFixture{svc: svc, orders: orderRepo, notify: notify, coupons: coupons, items: items}
}

func existingOrder(id string, status domain.OrderStatus) domain.Order {
	return domain.Order{ID: id, Number: 7, CustomerID: "u1", VendorID: "v1", Status: status, Total: 4000,
		Lines: []domain.OrderLine{{ItemID: "itm_a", Quantity: 1, UnitPrice: 1000, LineTotal: 1000}}}
}

func TestOrderServiceCreate(t *testing.T) {
	fx := newOrderFixture(t)

	details, err := fx.svc.Create(context.Background(), CreateOrderCommand{
		Caller:     customer,
		Lines:      []CartLine{{ItemID: "itm_a", Quantity: 2}, {ItemID: "itm_b", Quantity: 1}},
		AddressID:  ptr("adr_1"),
		CouponCode: ptr("save20"),
		Notes:      "<b>ring</b> the bell",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	order := details.Order
	if order.ID != "ord_A01" || order.Number != 1 || order.Status != domain.OrderStatusPending {
		t.Fatalf("unexpected order identity %+v", order)
	}
	if order.Subtotal != 2500 || order.Discount != 400 || order.DeliveryFee != 1500 || order.Total != 3600 {
		t.Fatalf("unexpected order totals %+v", order)
	}
	if order.CouponID == nil || *order.CouponID != "cpn_1" {
		t.Fatalf("expected coupon snapshot, got %v", order.CouponID)
	}
	if order.PaymentMethod != domain.PaymentMethodCash || order.Notes != "ring the bell" {
		t.Fatalf("unexpected payment/notes %s %q", order.PaymentMethod, order.Notes)
	}
	if details.Vendor == nil || details.Customer == nil || details.Address == nil || len(details.Items) != 2 {
		t.Fatalf("expected populated details, got %+v", details)
	}
	if len(fx.notify.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(fx.notify.sent))
	}
	n := fx.notify.sent[0]
	if n.Event != EventOrderCreated || !slices.Equal(n.Rooms, []string{"vendor:v1"}) || !slices.Equal(n.PushUserIDs, []string{"owner1"}) {
		t.Fatalf("unexpected new order notification %+v", n)
	}
}

func TestOrderServiceCreateCountsCouponUsageOnce(t *testing.T) {
	fx := newOrderFixture(t)
	fx.coupons.coupons["cpn_1"] = func(c domain.Coupon) domain.Coupon {
		c.UsageLimit = 1
		return c
	}(fx.coupons.coupons["cpn_1"])

	cmd := CreateOrderCommand{
		Caller:     customer,
		Lines:      []CartLine{{ItemID: "itm_a", Quantity: 2}, {ItemID: "itm_b", Quantity: 1}},
		AddressID:  ptr("adr_1"),
		CouponCode: ptr("SAVE20"),
	}
	if _, err := fx.svc.Create(context.Background(), cmd); err != nil {
		t.Fatalf("Create: %v", err)
	}
	coupon, err := fx.coupons.FindByID(context.Background(), "cpn_1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if coupon.UsedCount != 1 {
		t.Fatalf("expected coupon used once, got %d", coupon.UsedCount)
	}

	if _, err := fx.svc.Create(context.Background(), cmd); err == nil {
		t.Fatal("expected exhausted coupon to reject the second order")
	}
	coupon, _ = fx.coupons.FindByID(context.Background(), "cpn_1")
	if coupon.UsedCount != 1 {
		t.Fatalf("rejected order must not consume the coupon, got %d", coupon.UsedCount)
	}

	if _, err := fx.svc.Create(context.Background(), CreateOrderCommand{
		Caller:    customer,
		Lines:     []CartLine{{ItemID: "itm_b", Quantity: 1}},
		AddressID: ptr("adr_1"),
	}); err != nil {
		t.Fatalf("Create without coupon: %v", err)
	}
	coupon, _ = fx.coupons.FindByID(context.Background(), "cpn_1")
	if coupon.UsedCount != 1 {
		t.Fatalf("order without coupon changed usage to %d", coupon.UsedCount)
	}
}

func TestOrderKeepsPriceSnapshotAfterItemChange(t *testing.T) {
	fx := newOrderFixture(t)
	created, err := fx.svc.Create(context.Background(), CreateOrderCommand{
		Caller:    customer,
		Lines:     []CartLine{{ItemID: "itm_a", Quantity: 2}},
		AddressID: ptr("adr_1"),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	fx.items.mu.Lock()
	burger := fx.items.items["itm_a"]
	burger.BasePrice = 9999
	fx.items.items["itm_a"] = burger
	fx.items.mu.Unlock()

	got, err := fx.svc.Get(context.Background(), customer, created.Order.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Order.Total != created.Order.Total || got.Order.Subtotal != 2000 {
		t.Fatalf("expected snapshot totals %d/2000, got %d/%d", created.Order.Total, got.Order.Total, got.Order.Subtotal)
	}
	if len(got.Order.Lines) != 1 || got.Order.Lines[0].UnitPrice != 1000 || got.Order.Lines[0].LineTotal != 2000 {
		t.Fatalf("expected snapshot line prices, got %+v", got.Order.Lines)
	}
}

func TestOrderServiceCreateRejectsCouponWarning(t *testing.T) {
	fx := newOrderFixture(t)
	_, err := fx.svc.Create(context.Background(), CreateOrderCommand{
		Caller:     customer,
		Lines:      []CartLine{{ItemID: "itm_a", Quantity: 1}},
		Pickup:     true,
		CouponCode: ptr("unknown"),
	})
	if !errors.Is(err, ErrCouponRejected) {
		t.Fatalf("expected coupon rejection, got %v", err)
	}
	if len(fx.orders.orders) != 0 {
		t.Fatalf("order must not be persisted")
	}
}

func TestOrderServiceCreateMapsCouponUsageRace(t *testing.T) {
	fx := newOrderFixture(t)
	fx.orders.createErr = repositories.NewCouponUsageError("cpn_1", repositories.CouponUsageExhausted, "usage limit reached")

	_, err := fx.svc.Create(context.Background(), CreateOrderCommand{
		Caller:     customer,
		Lines:      []CartLine{{ItemID: "itm_a", Quantity: 1}},
		Pickup:     true,
		CouponCode: ptr("SAVE20"),
	})
	if !errors.Is(err, ErrCouponUsageLimit) {
		t.Fatalf("expected usage limit error, got %v", err)
	}
}

func TestOrderServiceCreateAddressRules(t *testing.T) {
	fx := newOrderFixture(t)
	lines := []CartLine{{ItemID: "itm_a", Quantity: 1}}

	if _, err := fx.svc.Create(context.Background(), CreateOrderCommand{Caller: customer, Lines: lines}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected address required, got %v", err)
	}
	if _, err := fx.svc.Create(context.Background(), CreateOrderCommand{Caller: customer, Lines: lines, AddressID: ptr("adr_2")}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected foreign address to be invisible, got %v", err)
	}
	if _, err := fx.svc.Create(context.Background(), CreateOrderCommand{Caller: customer, Lines: lines, Pickup: true, PaymentMethod: "crypto"}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected invalid payment method, got %v", err)
	}
	details, err := fx.svc.Create(context.Background(), CreateOrderCommand{Caller: customer, Lines: lines, Pickup: true})
	if err != nil {
		t.Fatalf("pickup order without address: %v", err)
	}
	if details.Order.DeliveryFee != 0 || details.Order.AddressID != nil {
		t.Fatalf("pickup order must not carry delivery data: %+v", details.Order)
	}
}

func TestOrderServiceVendorAcceptSendsAcceptedNotification(t *testing.T) {
	fx := newOrderFixture(t, existingOrder("ord_1", domain.OrderStatusPending))

	details, err := fx.svc.Transition(context.Background(), TransitionCommand{
		Caller: owner, OrderID: "ord_1", Action: ActionVendorUpdate, Target: domain.OrderStatusPreparing,
	})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if details.Order.Status != domain.OrderStatusPreparing || details.Order.AcceptedAt == nil {
		t.Fatalf("unexpected order %+v", details.Order)
	}
	events := fx.notify.events()
	if !slices.Equal(events, []string{EventOrderAccepted, EventOrderReady}) {
		t.Fatalf("unexpected events %v", events)
	}
	if slices.Contains(events, EventOrderStatusUpdated) {
		t.Fatalf("generic status event must not be sent on acceptance")
	}
	if !slices.Equal(fx.notify.sent[0].Rooms, []string{"user:u1"}) || !slices.Equal(fx.notify.sent[1].Rooms, []string{DeliveryRoom}) {
		t.Fatalf("unexpected rooms %v / %v", fx.notify.sent[0].Rooms, fx.notify.sent[1].Rooms)
	}
	if len(fx.orders.updates) != 1 || fx.orders.updates[0].Status != domain.OrderStatusPending {
		t.Fatalf("expected conditional update on pending, got %+v", fx.orders.updates)
	}
}

func TestOrderServiceGenericVendorUpdate(t *testing.T) {
	fx := newOrderFixture(t, existingOrder("ord_1", domain.OrderStatusPreparing))

	if _, err := fx.svc.Transition(context.Background(), TransitionCommand{
		Caller: owner, OrderID: "ord_1", Action: ActionVendorUpdate, Target: domain.OrderStatusCompleted,
	}); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if events := fx.notify.events(); !slices.Equal(events, []string{EventOrderStatusUpdated}) {
		t.Fatalf("unexpected events %v", events)
	}
}

func TestOrderServiceDriverOnPickupOrder(t *testing.T) {
	for _, status := range domain.OrderStatuses {
		order := existingOrder("ord_p", status)
		order.Pickup = true
		order.DriverID = ptr("d1")
		fx := newOrderFixture(t, order)

		for _, action := range []Action{ActionDriverAssign, ActionDriverUpdate} {
			_, err := fx.svc.Transition(context.Background(), TransitionCommand{
				Caller: driver, OrderID: "ord_p", Action: action, Target: domain.OrderStatusDelivered,
			})
			if !errors.Is(err, ErrPickupOrder) || !errors.Is(err, ErrBadRequest) {
				t.Fatalf("%s on pickup order in %s: expected bad request, got %v", action, status, err)
			}
		}
	}
}

func TestOrderServiceDriverAssignment(t *testing.T) {
	fx := newOrderFixture(t, existingOrder("ord_1", domain.OrderStatusPreparing))

	details, err := fx.svc.Transition(context.Background(), TransitionCommand{Caller: driver, OrderID: "ord_1", Action: ActionDriverAssign})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !details.Order.AssignedTo("d1") || details.Order.Status != domain.OrderStatusOutForDelivery {
		t.Fatalf("unexpected order %+v", details.Order)
	}
	if events := fx.notify.events(); !slices.Equal(events, []string{EventOrderAssigned, EventOrderStatusUpdated}) {
		t.Fatalf("unexpected events %v", events)
	}
	if !slices.Equal(fx.notify.sent[0].Rooms, []string{"user:d1"}) {
		t.Fatalf("assignment must go to the driver room, got %v", fx.notify.sent[0].Rooms)
	}

	if _, err := fx.svc.Transition(context.Background(), TransitionCommand{Caller: driver2, OrderID: "ord_1", Action: ActionDriverAssign}); !errors.Is(err, ErrAlreadyAssigned) {
		t.Fatalf("expected already assigned, got %v", err)
	}
	if _, err := fx.svc.Transition(context.Background(), TransitionCommand{
		Caller: driver2, OrderID: "ord_1", Action: ActionDriverUpdate, Target: domain.OrderStatusDelivered,
	}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected other driver to be forbidden, got %v", err)
	}

	details, err = fx.svc.Transition(context.Background(), TransitionCommand{
		Caller: driver, OrderID: "ord_1", Action: ActionDriverUpdate, Target: domain.OrderStatusDelivered,
	})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if details.Order.DeliveredAt == nil {
		t.Fatalf("expected delivered timestamp")
	}
	last := fx.notify.sent[len(fx.notify.sent)-1]
	if last.Event != EventOrderDelivered || !slices.Equal(last.PushUserIDs, []string{"u1"}) {
		t.Fatalf("unexpected delivered notification %+v", last)
	}

	if _, err := fx.svc.Transition(context.Background(), TransitionCommand{
		Caller: driver, OrderID: "ord_1", Action: ActionDriverUpdate, Target: domain.OrderStatusOutForDelivery,
	}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected terminal rejection, got %v", err)
	}
}

func TestOrderServiceCancellations(t *testing.T) {
	fx := newOrderFixture(t, existingOrder("ord_1", domain.OrderStatusPending), existingOrder("ord_2", domain.OrderStatusPending))

	if _, err := fx.svc.Transition(context.Background(), TransitionCommand{Caller: stranger, OrderID: "ord_1", Action: ActionCustomerCancel}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected stranger to be forbidden, got %v", err)
	}
	if _, err := fx.svc.Transition(context.Background(), TransitionCommand{Caller: customer, OrderID: "ord_1", Action: ActionCustomerCancel}); err != nil {
		t.Fatalf("customer cancel: %v", err)
	}
	if _, err := fx.svc.Transition(context.Background(), TransitionCommand{Caller: customer, OrderID: "ord_1", Action: ActionCustomerCancel}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected cancelled order to reject cancel, got %v", err)
	}

	if _, err := fx.svc.Transition(context.Background(), TransitionCommand{Caller: rival, OrderID: "ord_2", Action: ActionVendorCancel}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected rival vendor to be forbidden, got %v", err)
	}
	details, err := fx.svc.Transition(context.Background(), TransitionCommand{Caller: owner, OrderID: "ord_2", Action: ActionVendorCancel, Reason: ptr("out of stock")})
	if err != nil {
		t.Fatalf("vendor cancel: %v", err)
	}
	if details.Order.Status != domain.OrderStatusCanceledByVendor || details.Order.RejectionReason == nil || *details.Order.RejectionReason != "out of stock" {
		t.Fatalf("unexpected cancelled order %+v", details.Order)
	}
	for _, n := range fx.notify.sent {
		if n.Event != EventOrderCancelled || !slices.Equal(n.Rooms, []string{"vendor:v1"}) {
			t.Fatalf("unexpected cancellation notification %+v", n)
		}
	}
	if last := fx.notify.sent[len(fx.notify.sent)-1]; !slices.Equal(last.PushUserIDs, []string{"u1"}) {
		t.Fatalf("vendor cancellation must push to the customer, got %v", last.PushUserIDs)
	}
}

func TestOrderServiceTransitionAudience(t *testing.T) {
	fx := newOrderFixture(t, existingOrder("ord_1", domain.OrderStatusPending))

	if _, err := fx.svc.Transition(context.Background(), TransitionCommand{Caller: customer, OrderID: "ord_1", Action: ActionVendorUpdate, Target: domain.OrderStatusPreparing}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("customer must not run vendor actions, got %v", err)
	}
	if _, err := fx.svc.Transition(context.Background(), TransitionCommand{Caller: Caller{}, OrderID: "ord_1", Action: ActionCustomerCancel}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := fx.svc.Transition(context.Background(), TransitionCommand{Caller: customer, OrderID: "ord_x", Action: ActionCustomerCancel}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := fx.svc.Transition(context.Background(), TransitionCommand{Caller: owner, OrderID: "ord_1", Action: ActionVendorUpdate, Target: domain.OrderStatusPending}); !errors.Is(err, ErrStatusUnchanged) {
		t.Fatalf("expected unchanged conflict, got %v", err)
	}
	if _, err := fx.svc.Transition(context.Background(), TransitionCommand{Caller: admin, OrderID: "ord_1", Action: ActionVendorUpdate, Target: domain.OrderStatusPreparing}); err != nil {
		t.Fatalf("admin may run vendor actions: %v", err)
	}
}

func TestOrderServiceReadScopes(t *testing.T) {
	assigned := existingOrder("ord_2", domain.OrderStatusOutForDelivery)
	assigned.DriverID = ptr("d1")
	pickup := existingOrder("ord_3", domain.OrderStatusPreparing)
	pickup.Pickup = true
	fx := newOrderFixture(t, existingOrder("ord_1", domain.OrderStatusPreparing), assigned, pickup)

	if _, err := fx.svc.Get(context.Background(), stranger, "ord_1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected stranger to be forbidden, got %v", err)
	}
	if _, err := fx.svc.Get(context.Background(), rival, "ord_1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected rival vendor to be forbidden, got %v", err)
	}
	if _, err := fx.svc.Get(context.Background(), driver2, "ord_2"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected unassigned driver to be forbidden, got %v", err)
	}
	for _, caller := range []Caller{customer, owner, driver, admin} {
		if _, err := fx.svc.Get(context.Background(), caller, "ord_2"); err != nil {
			t.Fatalf("%s should read ord_2: %v", caller.Type, err)
		}
	}

	available, err := fx.svc.ListAvailable(context.Background(), driver2, Pagination{})
	if err != nil {
		t.Fatalf("ListAvailable: %v", err)
	}
	if len(available.Items) != 1 || available.Items[0].ID != "ord_1" {
		t.Fatalf("expected only the unassigned delivery order, got %+v", available.Items)
	}

	mine, err := fx.svc.List(context.Background(), driver, OrderListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(mine.Items) != 1 || mine.Items[0].ID != "ord_2" {
		t.Fatalf("expected driver scope, got %+v", mine.Items)
	}
	if _, err := fx.svc.List(context.Background(), customer, OrderListFilter{Statuses: []OrderStatus{"lost"}}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected invalid status filter, got %v", err)
	}
}

func TestOrderServiceDroppedNotificationDoesNotFail(t *testing.T) {
	fx := newOrderFixture(t, existingOrder("ord_1", domain.OrderStatusPending))
	fx.notify.reject = true

	if _, err := fx.svc.Transition(context.Background(), TransitionCommand{Caller: owner, OrderID: "ord_1", Action: ActionVendorUpdate, Target: domain.OrderStatusPreparing}); err != nil {
		t.Fatalf("dropped notifications must not fail the transition: %v", err)
	}
	if fx.orders.orders["ord_1"].Status != domain.OrderStatusPreparing {
		t.Fatalf("transition must be persisted")
	}
}

func TestDriverRepeatOutForDeliveryIsNoop(t *testing.T) {
	order := existingOrder("ord_1", domain.OrderStatusOutForDelivery)
	order.DriverID = ptr("d1")
	fx := newOrderFixture(t, order)

	details, err := fx.svc.Transition(context.Background(), TransitionCommand{
		Caller: driver, OrderID: "ord_1", Action: ActionDriverUpdate, Target: domain.OrderStatusOutForDelivery,
	})
	if err != nil {
		t.Fatalf("repeat out_for_delivery: %v", err)
	}
	if details.Order.Status != domain.OrderStatusOutForDelivery {
		t.Fatalf("unexpected status %s", details.Order.Status)
	}
	if len(fx.orders.updates) != 0 || len(fx.notify.sent) != 0 {
		t.Fatalf("expected no write and no event, got %d updates %v", len(fx.orders.updates), fx.notify.events())
	}
}

func TestVendorStatusUpdateToCancelledNotifiesAsCancellation(t *testing.T) {
	for _, target := range []domain.OrderStatus{domain.OrderStatusCancelled, domain.OrderStatusCanceledByVendor} {
		t.Run(string(target), func(t *testing.T) {
			fx := newOrderFixture(t, existingOrder("ord_1", domain.OrderStatusPreparing))
			details, err := fx.svc.Transition(context.Background(), TransitionCommand{
				Caller: owner, OrderID: "ord_1", Action: ActionVendorUpdate, Target: target,
			})
			if err != nil {
				t.Fatalf("vendor update: %v", err)
			}
			if details.Order.CancelledAt == nil {
				t.Fatal("expected cancellation timestamp")
			}
			if events := fx.notify.events(); !slices.Equal(events, []string{EventOrderCancelled}) {
				t.Fatalf("expected a single cancellation event, got %v", events)
			}
			n := fx.notify.sent[0]
			if !slices.Equal(n.Rooms, []string{"vendor:v1"}) || !slices.Equal(n.PushUserIDs, []string{"u1"}) {
				t.Fatalf("unexpected cancellation audience %+v", n)
			}
		})
	}
}
