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

const (
	orderIDPrefix   = "ord_"
	maxNotesLength  = 500
	maxReasonLength = 280
)

var driverVisibleStatuses = []OrderStatus{domain.OrderStatusPreparing, domain.OrderStatusOutForDelivery}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders        repositories.OrderRepository
	Items         repositories.ItemRepository
	Vendors       repositories.VendorRepository
	Users         repositories.UserRepository
	Addresses     repositories.AddressRepository
	Pricing       PricingCalculator
	Notifications NotificationDispatcher
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders    repositories.OrderRepository
	items     repositories.ItemRepository
	vendors   repositories.VendorRepository
	users     repositories.UserRepository
	addresses repositories.AddressRepository
	pricing   PricingCalculator
	notify    NotificationDispatcher
	clock     func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	switch {
	case deps.Orders == nil:
		return nil, errors.New("order service: order repository is required")
	case deps.Items == nil:
		return nil, errors.New("order service: item repository is required")
	case deps.Vendors == nil:
		return nil, errors.New("order service: vendor repository is required")
	case deps.Users == nil:
		return nil, errors.New("order service: user repository is required")
	case deps.Addresses == nil:
		return nil, errors.New("order service: address repository is required")
	case deps.Pricing == nil:
		return nil, errors.New("order service: pricing calculator is required")
	case deps.Notifications == nil:
		return nil, errors.New("order service: notification dispatcher is required")
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

	return &orderService{
		orders:    deps.Orders,
		items:     deps.Items,
		vendors:   deps.Vendors,
		users:     deps.Users,
		addresses: deps.Addresses,
		pricing:   deps.Pricing,
		notify:    deps.Notifications,
		clock:     func() time.Time { return clock().UTC() },
		newID:     idGen,
		logger:    logger,
	}, nil
}

func (s *orderService) Preview(ctx context.Context, cmd CreateOrderCommand) (PricingResult, error) {
	if err := cmd.Caller.validate(); err != nil {
		return PricingResult{}, err
	}
	pricingCmd, _, err := s.pricingCommand(ctx, cmd)
	if err != nil {
		return PricingResult{}, err
	}
	return s.pricing.Compute(ctx, pricingCmd)
}

func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (OrderDetails, error) {
	if err := cmd.Caller.validate(); err != nil {
		return OrderDetails{}, err
	}
	method := cmd.PaymentMethod
	if method == "" {
		method = domain.PaymentMethodCash
	}
	if !method.Valid() {
		return OrderDetails{}, fmt.Errorf("%w: unsupported payment method %q", ErrInvalidInput, cmd.PaymentMethod)
	}

	pricingCmd, addr, err := s.pricingCommand(ctx, cmd)
	if err != nil {
		return OrderDetails{}, err
	}
	priced, err := s.pricing.Compute(ctx, pricingCmd)
	if err != nil {
		return OrderDetails{}, err
	}
	if priced.HasWarning() {
		return OrderDetails{}, fmt.Errorf("%w: %s", ErrCouponRejected, priced.Warning)
	}

	now := s.clock()
	order := Order{
		ID:            orderIDPrefix + s.newID(),
		CustomerID:    cmd.Caller.ID,
		VendorID:      priced.VendorID,
		Lines:         orderLines(priced.Lines),
		Subtotal:      priced.Subtotal,
		Discount:      priced.Discount,
		DeliveryFee:   priced.DeliveryFee,
		Total:         priced.Total,
		CouponCode:    priced.CouponCode,
		Status:        domain.OrderStatusPending,
		PaymentMethod: method,
		Pickup:        cmd.Pickup,
		Notes:         textutil.PlainText(cmd.Notes, maxNotesLength),
		StatusHistory: []domain.OrderStatusChange{{
			To:        domain.OrderStatusPending,
			ActorID:   cmd.Caller.ID,
			ActorType: cmd.Caller.Type,
			At:        now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if priced.Coupon != nil {
		order.CouponID = &priced.Coupon.ID
	}
	if addr != nil {
		order.AddressID = &addr.ID
		order.DeliveryAreaID = &addr.DeliveryAreaID
	}

	created, err := s.orders.Create(ctx, order)
	if err != nil {
		return OrderDetails{}, s.mapCreateError(err)
	}
	s.logger(ctx, "order.created", map[string]any{
		"orderId":  created.ID,
		"number":   created.Number,
		"vendorId": created.VendorID,
		"total":    created.Total,
	})

	details := s.populate(ctx, created)
	n := Notification{
		Event:   EventOrderCreated,
		Rooms:   []string{VendorRoom(created.VendorID)},
		Payload: orderPayload(created, ""),
	}
	if details.Vendor != nil && details.Vendor.OwnerID != "" {
		n.PushUserIDs = []string{details.Vendor.OwnerID}
		n.Push = &PushMessage{
			Title: "New order",
			Body:  fmt.Sprintf("Order #%d is waiting for confirmation", created.Number),
			Data:  map[string]any{"orderId": created.ID, "event": EventOrderCreated},
		}
	}
	s.dispatch(ctx, n)
	return details, nil
}

// pricingCommand resolves the delivery address of a checkout request. The address must belong
// to the caller; its delivery area drives the fee.
func (s *orderService) pricingCommand(ctx context.Context, cmd CreateOrderCommand) (PricingCommand, *Address, error) {
	pc := PricingCommand{Lines: cmd.Lines, UserID: cmd.Caller.ID, CouponCode: cmd.CouponCode, Pickup: cmd.Pickup}
	if cmd.Pickup {
		return pc, nil, nil
	}
	if cmd.AddressID == nil || strings.TrimSpace(*cmd.AddressID) == "" {
		return PricingCommand{}, nil, fmt.Errorf("%w: address is required for delivery orders", ErrInvalidInput)
	}
	addr, err := s.addresses.FindByID(ctx, cmd.Caller.ID, strings.TrimSpace(*cmd.AddressID))
	if err != nil {
		return PricingCommand{}, nil, mapRepositoryError(err, ErrAddressNotFound)
	}
	if err := RequireOwner(cmd.Caller, addr.UserID); err != nil {
		return PricingCommand{}, nil, err
	}
	pc.DeliveryAreaID = &addr.DeliveryAreaID
	return pc, &addr, nil
}

func (s *orderService) mapCreateError(err error) error {
	var usageErr *repositories.CouponUsageError
	if errors.As(err, &usageErr) {
		switch usageErr.Code {
		case repositories.CouponUsageExhausted:
			return ErrCouponUsageLimit
		case repositories.CouponUsagePerUserExhausted:
			return ErrCouponPerUserLimit
		default:
			return ErrCouponInactive
		}
	}
	return mapRepositoryError(err, ErrCouponNotFound)
}

func (s *orderService) Get(ctx context.Context, caller Caller, orderID string) (OrderDetails, error) {
	if err := caller.validate(); err != nil {
		return OrderDetails{}, err
	}
	order, err := RequireFound(ctx, orderID, ErrOrderNotFound, s.orders.FindByID)
	if err != nil {
		return OrderDetails{}, err
	}
	if err := s.authorizeRead(ctx, caller, order); err != nil {
		return OrderDetails{}, err
	}
	return s.populate(ctx, order), nil
}

func (s *orderService) authorizeRead(ctx context.Context, caller Caller, order Order) error {
	switch caller.Type {
	case domain.UserTypeAdmin:
		return nil
	case domain.UserTypeVendor:
		return s.requireVendorOwner(ctx, caller, order)
	case domain.UserTypeDelivery:
		if order.AssignedTo(caller.ID) || driverCanClaim(order) {
			return nil
		}
		return ErrNotOwner
	default:
		return RequireOwner(caller, order.CustomerID)
	}
}

func (s *orderService) List(ctx context.Context, caller Caller, filter OrderListFilter) (domain.CursorPage[Order], error) {
	if err := caller.validate(); err != nil {
		return domain.CursorPage[Order]{}, err
	}
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return domain.CursorPage[Order]{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
		}
	}
	query := repositories.OrderListFilter{
		Statuses:   filter.Statuses,
		Pagination: pagination.Normalize(filter.Pagination, pagination.Options{}),
	}
	switch caller.Type {
	case domain.UserTypeAdmin:
	case domain.UserTypeVendor:
		vendor, err := s.callerVendor(ctx, caller)
		if err != nil {
			return domain.CursorPage[Order]{}, err
		}
		query.VendorID = vendor.ID
	case domain.UserTypeDelivery:
		query.DriverID = caller.ID
	default:
		query.CustomerID = caller.ID
	}
	page, err := s.orders.List(ctx, query)
	if err != nil {
		return domain.CursorPage[Order]{}, mapRepositoryError(err, nil)
	}
	return page, nil
}

func (s *orderService) ListAvailable(ctx context.Context, caller Caller, pager Pagination) (domain.CursorPage[Order], error) {
	if err := caller.validate(); err != nil {
		return domain.CursorPage[Order]{}, err
	}
	page, err := s.orders.List(ctx, repositories.OrderListFilter{
		Statuses:      driverVisibleStatuses,
		Unassigned:    true,
		ExcludePickup: true,
		Pagination:    pagination.Normalize(pager, pagination.Options{}),
	})
	if err != nil {
		return domain.CursorPage[Order]{}, mapRepositoryError(err, nil)
	}
	return page, nil
}

func (s *orderService) Transition(ctx context.Context, cmd TransitionCommand) (OrderDetails, error) {
	caller := cmd.Caller
	if err := caller.validate(); err != nil {
		return OrderDetails{}, err
	}
	if !slices.Contains(Actions, cmd.Action) {
		return OrderDetails{}, fmt.Errorf("%w: unknown action %q", ErrInvalidInput, cmd.Action)
	}
	if !caller.IsAdmin() && caller.Type != cmd.Action.Audience() {
		return OrderDetails{}, ErrNotOwner
	}
	order, err := RequireFound(ctx, cmd.OrderID, ErrOrderNotFound, s.orders.FindByID)
	if err != nil {
		return OrderDetails{}, err
	}

	if cmd.Action.isDriverAction() && order.Pickup {
		return OrderDetails{}, ErrPickupOrder
	}
	if err := s.authorizeAction(ctx, caller, cmd.Action, order); err != nil {
		return OrderDetails{}, err
	}

	target := cmd.Target
	if implied, ok := cmd.Action.ImpliedTarget(); ok {
		target = implied
	}
	if decision := Decide(order.Status, cmd.Action, target, order.Pickup); !decision.Allowed {
		s.logger(ctx, "order.transition.rejected", map[string]any{
			"orderId": order.ID,
			"action":  string(cmd.Action),
			"from":    string(order.Status),
			"to":      string(target),
			"reason":  decision.Err.Error(),
		})
		return OrderDetails{}, decision.Err
	}

	if cmd.Action == ActionDriverUpdate && order.Status == target {
		return s.populate(ctx, order), nil
	}

	expected := repositories.OrderVersion{Status: order.Status, DriverID: order.DriverID}
	previous := order.Status
	now := s.clock()
	s.applyTransition(&order, cmd, target, now)

	if err := s.orders.Update(ctx, order, expected); err != nil {
		return OrderDetails{}, mapRepositoryError(err, ErrOrderNotFound)
	}
	s.logger(ctx, "order.transitioned", map[string]any{
		"orderId": order.ID,
		"action":  string(cmd.Action),
		"from":    string(previous),
		"to":      string(target),
		"actorId": caller.ID,
	})

	details := s.populate(ctx, order)
	for _, n := range transitionNotifications(cmd.Action, previous, order) {
		s.dispatch(ctx, n)
	}
	return details, nil
}

func (s *orderService) authorizeAction(ctx context.Context, caller Caller, action Action, order Order) error {
	switch action {
	case ActionCustomerCancel, ActionCustomerConfirm:
		return RequireOwner(caller, order.CustomerID)
	case ActionVendorUpdate, ActionVendorCancel:
		return s.requireVendorOwner(ctx, caller, order)
	case ActionDriverAssign:
		if order.DriverID != nil && !order.AssignedTo(caller.ID) {
			return ErrAlreadyAssigned
		}
		return nil
	case ActionDriverUpdate:
		if caller.IsAdmin() || order.AssignedTo(caller.ID) {
			return nil
		}
		return ErrNotOwner
	}
	return ErrNotOwner
}

func (s *orderService) applyTransition(order *Order, cmd TransitionCommand, target OrderStatus, now time.Time) {
	change := domain.OrderStatusChange{
		From:      order.Status,
		To:        target,
		ActorID:   cmd.Caller.ID,
		ActorType: cmd.Caller.Type,
		At:        now,
	}
	switch cmd.Action {
	case ActionDriverAssign:
		driverID := cmd.Caller.ID
		order.DriverID = &driverID
	case ActionVendorCancel:
		if cmd.Reason != nil {
			if reason := textutil.PlainText(*cmd.Reason, maxReasonLength); reason != "" {
				order.RejectionReason = &reason
				change.Reason = reason
			}
		}
	}

	order.Status = target
	order.UpdatedAt = now
	order.StatusHistory = append(order.StatusHistory, change)
	switch target {
	case domain.OrderStatusPreparing:
		if order.AcceptedAt == nil {
			order.AcceptedAt = &now
		}
	case domain.OrderStatusDelivered:
		order.DeliveredAt = &now
	case domain.OrderStatusCancelled, domain.OrderStatusCanceledByVendor:
		order.CancelledAt = &now
	}
}

// transitionNotifications maps an accepted transition to its audiences.
func transitionNotifications(action Action, previous OrderStatus, order Order) []Notification {
	payload := orderPayload(order, previous)
	customerRoom := UserRoom(order.CustomerID)
	var out []Notification

	switch {
	case action == ActionDriverAssign:
		out = append(out, Notification{Event: EventOrderAssigned, Rooms: []string{UserRoom(*order.DriverID)}, Payload: payload})
		if previous != order.Status {
			out = append(out, Notification{Event: EventOrderStatusUpdated, Rooms: []string{customerRoom}, Payload: payload})
		}
	case order.Status == domain.OrderStatusCancelled || order.Status == domain.OrderStatusCanceledByVendor:
		n := Notification{Event: EventOrderCancelled, Rooms: []string{VendorRoom(order.VendorID)}, Payload: payload}
		if action != ActionCustomerCancel {
			n.PushUserIDs = []string{order.CustomerID}
			n.Push = &PushMessage{
				Title: "Order cancelled",
				Body:  fmt.Sprintf("Order #%d was cancelled by the vendor", order.Number),
				Data:  map[string]any{"orderId": order.ID, "event": EventOrderCancelled},
			}
		}
		out = append(out, n)
	case action == ActionVendorUpdate && previous == domain.OrderStatusPending && order.Status == domain.OrderStatusPreparing:
		out = append(out, Notification{
			Event:       EventOrderAccepted,
			Rooms:       []string{customerRoom},
			Payload:     payload,
			PushUserIDs: []string{order.CustomerID},
			Push: &PushMessage{
				Title: "Order accepted",
				Body:  fmt.Sprintf("Order #%d is being prepared", order.Number),
				Data:  map[string]any{"orderId": order.ID, "event": EventOrderAccepted},
			},
		})
	case order.Status == domain.OrderStatusDelivered:
		out = append(out, Notification{
			Event:       EventOrderDelivered,
			Rooms:       []string{customerRoom},
			Payload:     payload,
			PushUserIDs: []string{order.CustomerID},
			Push: &PushMessage{
				Title: "Order delivered",
				Body:  fmt.Sprintf("Order #%d has been delivered", order.Number),
				Data:  map[string]any{"orderId": order.ID, "event": EventOrderDelivered},
			},
		})
	case action == ActionCustomerConfirm:
		out = append(out, Notification{Event: EventOrderStatusUpdated, Rooms: []string{customerRoom, VendorRoom(order.VendorID)}, Payload: payload})
	default:
		out = append(out, Notification{Event: EventOrderStatusUpdated, Rooms: []string{customerRoom}, Payload: payload})
	}

	if order.Status == domain.OrderStatusPreparing && previous != domain.OrderStatusPreparing && !order.Pickup {
		out = append(out, Notification{Event: EventOrderReady, Rooms: []string{DeliveryRoom}, Payload: payload})
	}
	return out
}

func orderPayload(order Order, previous OrderStatus) map[string]any {
	payload := map[string]any{
		"orderId":    order.ID,
		"number":     order.Number,
		"status":     string(order.Status),
		"vendorId":   order.VendorID,
		"customerId": order.CustomerID,
		"total":      order.Total,
		"pickup":     order.Pickup,
	}
	if previous != "" {
		payload["previousStatus"] = string(previous)
	}
	if order.DriverID != nil {
		payload["driverId"] = *order.DriverID
	}
	return payload
}

// populate loads the entities referenced by the order. Missing or failing lookups leave the
// corresponding field empty; the order itself is already committed.
func (s *orderService) populate(ctx context.Context, order Order) OrderDetails {
	details := OrderDetails{Order: order}
	logFailure := func(what string, err error) {
		if err != nil && !isNotFound(err) {
			s.logger(ctx, "order.populate.lookup_failed", map[string]any{"orderId": order.ID, "entity": what, "error": err.Error()})
		}
	}

	if user, err := s.users.FindByID(ctx, order.CustomerID); err == nil {
		details.Customer = &user
	} else {
		logFailure("customer", err)
	}
	if vendor, err := s.vendors.FindByID(ctx, order.VendorID); err == nil {
		details.Vendor = &vendor
	} else {
		logFailure("vendor", err)
	}
	if order.AddressID != nil {
		if addr, err := s.addresses.FindByID(ctx, order.CustomerID, *order.AddressID); err == nil {
			details.Address = &addr
		} else {
			logFailure("address", err)
		}
	}
	ids := make([]string, 0, len(order.Lines))
	for _, line := range order.Lines {
		ids = append(ids, line.ItemID)
	}
	if items, err := s.items.FindByIDs(ctx, compactIDs(ids)); err == nil {
		details.Items = items
	} else {
		logFailure("items", err)
	}
	return details
}

func (s *orderService) requireVendorOwner(ctx context.Context, caller Caller, order Order) error {
	if caller.IsAdmin() {
		return nil
	}
	vendor, err := s.callerVendor(ctx, caller)
	if err != nil {
		return err
	}
	if vendor.ID != order.VendorID {
		return ErrNotOwner
	}
	return nil
}

func (s *orderService) callerVendor(ctx context.Context, caller Caller) (domain.Vendor, error) {
	return callerVendor(ctx, s.vendors, caller)
}

func (s *orderService) dispatch(ctx context.Context, n Notification) {
	if !s.notify.Dispatch(ctx, n) {
		s.logger(ctx, "order.notification.dropped", map[string]any{"event": n.Event, "rooms": n.Rooms})
	}
}

func driverCanClaim(order Order) bool {
	return order.DriverID == nil && !order.Pickup && slices.Contains(driverVisibleStatuses, order.Status)
}

func orderLines(lines []domain.PricedLine) []domain.OrderLine {
	out := make([]domain.OrderLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, domain.OrderLine{
			ItemID:      line.ItemID,
			Name:        line.Name,
			OptionID:    line.OptionID,
			OptionLabel: line.OptionLabel,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
		})
	}
	return out
}
