package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/foodhub/api/internal/domain"
	"github.com/foodhub/api/internal/platform/httpx"
	"github.com/foodhub/api/internal/services"
)

type createCouponRequest struct {
	Code             string     `json:"code"`
	Type             string     `json:"type"`
	Value            int64      `json:"value"`
	MinOrderValue    *int64     `json:"minOrderValue"`
	MaxDiscountValue *int64     `json:"maxDiscountValue"`
	StartsAt         *time.Time `json:"startsAt"`
	EndsAt           *time.Time `json:"endsAt"`
	PerUserLimit     int64      `json:"perUserLimit"`
	UsageLimit       int64      `json:"usageLimit"`
	AllowedUserIDs   []string   `json:"allowedUserIds"`
	AllowedVendorIDs []string   `json:"allowedVendorIds"`
}

type createAreaRequest struct {
	Name             string `json:"name"`
	Fee              int64  `json:"fee"`
	EstimatedMinutes int    `json:"estimatedMinutes"`
}

type broadcastRequest struct {
	Audience string         `json:"audience"`
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Data     map[string]any `json:"data"`
}

// AdminHandlers exposes coupon, delivery area and broadcast administration.
type AdminHandlers struct {
	coupons    services.CouponService
	areas      services.DeliveryAreaService
	dispatcher services.NotificationDispatcher
}

// NewAdminHandlers constructs admin handlers.
func NewAdminHandlers(coupons services.CouponService, areas services.DeliveryAreaService, dispatcher services.NotificationDispatcher) *AdminHandlers {
	return &AdminHandlers{coupons: coupons, areas: areas, dispatcher: dispatcher}
}

// Routes registers endpoints relative to the admin group.
func (h *AdminHandlers) Routes(r chi.Router) {
	r.Route("/coupons", func(r chi.Router) {
		r.Get("/", h.listCoupons)
		r.Post("/", h.createCoupon)
		r.Get("/{couponID}", h.getCoupon)
		r.Post("/{couponID}/activate", h.setCouponActive(true))
		r.Post("/{couponID}/deactivate", h.setCouponActive(false))
	})
	r.Get("/delivery-areas", h.listAreas)
	r.Post("/delivery-areas", h.createArea)
	r.Post("/notifications/broadcast", h.broadcast)
}

func (h *AdminHandlers) listCoupons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		writeUnavailable(ctx, w, "coupon")
		return
	}
	pager, err := paginationFromQuery(r)
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	page, err := h.coupons.ListCoupons(ctx, pager)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "", buildPage(page, buildCouponPayload))
}

func (h *AdminHandlers) createCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		writeUnavailable(ctx, w, "coupon")
		return
	}
	var req createCouponRequest
	if writeDecodeError(ctx, w, decodeJSON(r, &req, false)) {
		return
	}
	kind := domain.DiscountType(strings.ToLower(strings.TrimSpace(req.Type)))
	if kind != domain.DiscountTypePercentage && kind != domain.DiscountTypeFixed {
		writeBadRequest(ctx, w, fmt.Sprintf("type must be %q or %q", domain.DiscountTypePercentage, domain.DiscountTypeFixed))
		return
	}
	coupon, err := h.coupons.CreateCoupon(ctx, services.CreateCouponCommand{
		Code:             req.Code,
		Type:             kind,
		Value:            req.Value,
		MinOrderValue:    req.MinOrderValue,
		MaxDiscountValue: req.MaxDiscountValue,
		StartsAt:         req.StartsAt,
		EndsAt:           req.EndsAt,
		PerUserLimit:     req.PerUserLimit,
		UsageLimit:       req.UsageLimit,
		AllowedUserIDs:   req.AllowedUserIDs,
		AllowedVendorIDs: req.AllowedVendorIDs,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+coupon.ID)
	httpx.WriteSuccess(w, http.StatusCreated, "coupon created", buildCouponPayload(coupon))
}

func (h *AdminHandlers) getCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		writeUnavailable(ctx, w, "coupon")
		return
	}
	coupon, err := h.coupons.GetCoupon(ctx, pathParam(r, "couponID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "", buildCouponPayload(coupon))
}

func (h *AdminHandlers) setCouponActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if h.coupons == nil {
			writeUnavailable(ctx, w, "coupon")
			return
		}
		coupon, err := h.coupons.SetCouponActive(ctx, pathParam(r, "couponID"), active)
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		message := "coupon deactivated"
		if active {
			message = "coupon activated"
		}
		httpx.WriteSuccess(w, http.StatusOK, message, buildCouponPayload(coupon))
	}
}

func (h *AdminHandlers) listAreas(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.areas == nil {
		writeUnavailable(ctx, w, "delivery area")
		return
	}
	areas, err := h.areas.List(ctx, false)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeAreas(w, areas)
}

func (h *AdminHandlers) createArea(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.areas == nil {
		writeUnavailable(ctx, w, "delivery area")
		return
	}
	var req createAreaRequest
	if writeDecodeError(ctx, w, decodeJSON(r, &req, false)) {
		return
	}
	area, err := h.areas.Create(ctx, services.CreateDeliveryAreaCommand{
		Name:             req.Name,
		Fee:              req.Fee,
		EstimatedMinutes: req.EstimatedMinutes,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusCreated, "delivery area created", buildDeliveryAreaPayload(area))
}

// broadcast queues a push to every user of the audience and answers 202 before delivery.
func (h *AdminHandlers) broadcast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.dispatcher == nil {
		writeUnavailable(ctx, w, "notification")
		return
	}
	var req broadcastRequest
	if writeDecodeError(ctx, w, decodeJSON(r, &req, false)) {
		return
	}
	audience := services.BroadcastAudience(strings.ToLower(strings.TrimSpace(req.Audience)))
	if audience == "" {
		audience = services.AudienceAll
	}
	err := h.dispatcher.Broadcast(ctx, services.BroadcastCommand{
		Audience: audience,
		Message:  services.PushMessage{Title: req.Title, Body: req.Body, Data: req.Data},
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusAccepted, "broadcast queued", map[string]string{"audience": string(audience)})
}
