package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/foodhub/api/internal/domain"
	"github.com/foodhub/api/internal/platform/httpx"
	"github.com/foodhub/api/internal/services"
)

type cartLineRequest struct {
	ItemID   string `json:"itemId"`
	OptionID string `json:"optionId"`
	Quantity int    `json:"quantity"`
}

type orderRequest struct {
	Items         []cartLineRequest `json:"items"`
	AddressID     *string           `json:"addressId"`
	CouponCode    *string           `json:"couponCode"`
	PaymentMethod string            `json:"paymentMethod"`
	Pickup        bool              `json:"pickup"`
	Notes         string            `json:"notes"`
}

func (req orderRequest) command(caller services.Caller) services.CreateOrderCommand {
	lines := make([]services.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, services.CartLine{
			ItemID:   strings.TrimSpace(item.ItemID),
			OptionID: strings.TrimSpace(item.OptionID),
			Quantity: item.Quantity,
		})
	}
	return services.CreateOrderCommand{
		Caller:        caller,
		Lines:         lines,
		AddressID:     trimmedOrNil(req.AddressID),
		CouponCode:    trimmedOrNil(req.CouponCode),
		PaymentMethod: domain.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
		Pickup:        req.Pickup,
		Notes:         req.Notes,
	}
}

type statusRequest struct {
	Status string  `json:"status"`
	Reason *string `json:"reason"`
}

type reasonRequest struct {
	Reason *string `json:"reason"`
}

// OrderHandlers exposes order endpoints for every audience.
type OrderHandlers struct {
	orders      services.OrderService
	rateLimit   func(http.Handler) http.Handler
	idempotency func(http.Handler) http.Handler
}

// OrderHandlersOption customises order handlers.
type OrderHandlersOption func(*OrderHandlers)

// WithOrderRateLimit throttles order write routes.
func WithOrderRateLimit(mw func(http.Handler) http.Handler) OrderHandlersOption {
	return func(h *OrderHandlers) {
		if mw != nil {
			h.rateLimit = mw
		}
	}
}

// WithOrderIdempotency guards order creation against replays.
func WithOrderIdempotency(mw func(http.Handler) http.Handler) OrderHandlersOption {
	return func(h *OrderHandlers) {
		if mw != nil {
			h.idempotency = mw
		}
	}
}

// NewOrderHandlers constructs order handlers.
func NewOrderHandlers(orders services.OrderService, opts ...OrderHandlersOption) *OrderHandlers {
	h := &OrderHandlers{
		orders:      orders,
		rateLimit:   passthrough,
		idempotency: passthrough,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// CustomerRoutes registers /orders.
func (h *OrderHandlers) CustomerRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.listOrders)
		r.Post("/preview", h.previewOrder)
		r.With(h.rateLimit, h.idempotency).Post("/", h.createOrder)
		r.Get("/{orderID}", h.getOrder)
		r.With(h.rateLimit).Delete("/{orderID}", h.transition(services.ActionCustomerCancel, false))
		r.With(h.rateLimit).Post("/{orderID}/receive", h.transition(services.ActionCustomerConfirm, false))
	})
}

// VendorRoutes registers /orders relative to the vendor group.
func (h *OrderHandlers) VendorRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.listOrders)
		r.Get("/{orderID}", h.getOrder)
		r.With(h.rateLimit).Patch("/{orderID}/status", h.transition(services.ActionVendorUpdate, true))
		r.With(h.rateLimit).Post("/{orderID}/cancel", h.transition(services.ActionVendorCancel, false))
	})
}

// DeliveryRoutes registers /orders relative to the delivery group.
func (h *OrderHandlers) DeliveryRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/available", h.listAvailable)
		r.Get("/my-orders", h.listOrders)
		r.Get("/{orderID}", h.getOrder)
		r.With(h.rateLimit).Post("/{orderID}/assign", h.transition(services.ActionDriverAssign, false))
		r.With(h.rateLimit).Patch("/{orderID}/status", h.transition(services.ActionDriverUpdate, true))
	})
}

// AdminRoutes registers /orders relative to the admin group.
func (h *OrderHandlers) AdminRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.listOrders)
		r.Get("/{orderID}", h.getOrder)
	})
}

func (h *OrderHandlers) previewOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	var req orderRequest
	if writeDecodeError(ctx, w, decodeJSON(r, &req, false)) {
		return
	}
	result, err := h.orders.Preview(ctx, req.command(caller))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	message := "ok"
	if result.HasWarning() {
		message = result.Warning
	}
	httpx.WriteSuccess(w, http.StatusOK, message, buildPricingPayload(result))
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	var req orderRequest
	if writeDecodeError(ctx, w, decodeJSON(r, &req, false)) {
		return
	}
	details, err := h.orders.Create(ctx, req.command(caller))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+details.Order.ID)
	httpx.WriteSuccess(w, http.StatusCreated, "order placed", buildOrderDetailsPayload(details))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	details, err := h.orders.Get(ctx, caller, pathParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "", buildOrderDetailsPayload(details))
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	pager, err := paginationFromQuery(r)
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	statuses, err := parseStatuses(r.URL.Query()["status"])
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	page, err := h.orders.List(ctx, caller, services.OrderListFilter{Statuses: statuses, Pagination: pager})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "", buildPage(page, buildOrderPayload))
}

func (h *OrderHandlers) listAvailable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	pager, err := paginationFromQuery(r)
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	page, err := h.orders.ListAvailable(ctx, caller, pager)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "", buildPage(page, buildOrderPayload))
}

// transition builds a handler running one state machine action. When withTarget is set the
// body must name the target status.
func (h *OrderHandlers) transition(action services.Action, withTarget bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if h.orders == nil {
			writeUnavailable(ctx, w, "order")
			return
		}
		caller, ok := callerFromRequest(w, r)
		if !ok {
			return
		}
		cmd := services.TransitionCommand{
			Caller:  caller,
			OrderID: pathParam(r, "orderID"),
			Action:  action,
		}
		if withTarget {
			var req statusRequest
			if writeDecodeError(ctx, w, decodeJSON(r, &req, false)) {
				return
			}
			target := domain.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status)))
			if !target.Valid() {
				writeBadRequest(ctx, w, "status must be a valid order status")
				return
			}
			cmd.Target = target
			cmd.Reason = trimmedOrNil(req.Reason)
		} else {
			var req reasonRequest
			if writeDecodeError(ctx, w, decodeJSON(r, &req, true)) {
				return
			}
			cmd.Reason = trimmedOrNil(req.Reason)
		}

		details, err := h.orders.Transition(ctx, cmd)
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		httpx.WriteSuccess(w, http.StatusOK, "order "+string(details.Order.Status), buildOrderDetailsPayload(details))
	}
}

func passthrough(next http.Handler) http.Handler { return next }

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
