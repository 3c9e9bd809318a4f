package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/foodhub/api/internal/platform/httpx"
	"github.com/foodhub/api/internal/services"
)

type rateRequest struct {
	Value   int    `json:"value"`
	Comment string `json:"comment"`
}

type couponCheckRequest struct {
	Code     string `json:"code"`
	VendorID string `json:"vendorId"`
	Subtotal int64  `json:"subtotal"`
}

type couponCheckPayload struct {
	Valid    bool           `json:"valid"`
	Reason   string         `json:"reason,omitempty"`
	Discount int64          `json:"discount"`
	Total    int64          `json:"total"`
	Coupon   *couponPayload `json:"coupon,omitempty"`
}

// CatalogHandlers serves delivery areas, vendor ratings and coupon checks to customers.
type CatalogHandlers struct {
	areas   services.DeliveryAreaService
	rates   services.RateService
	coupons services.CouponService
}

// NewCatalogHandlers constructs catalog handlers.
func NewCatalogHandlers(areas services.DeliveryAreaService, rates services.RateService, coupons services.CouponService) *CatalogHandlers {
	return &CatalogHandlers{areas: areas, rates: rates, coupons: coupons}
}

// PublicRoutes registers endpoints that need no authentication.
func (h *CatalogHandlers) PublicRoutes(r chi.Router) {
	r.Get("/delivery-areas", h.listActiveAreas)
}

// CustomerRoutes registers rating and coupon endpoints.
func (h *CatalogHandlers) CustomerRoutes(r chi.Router) {
	r.Put("/vendors/{vendorID}/rate", h.upsertRate)
	r.Delete("/vendors/{vendorID}/rate", h.deleteRate)
	r.Post("/coupons/validate", h.validateCoupon)
}

func (h *CatalogHandlers) listActiveAreas(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.areas == nil {
		writeUnavailable(ctx, w, "delivery area")
		return
	}
	areas, err := h.areas.List(ctx, true)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeAreas(w, areas)
}

func (h *CatalogHandlers) upsertRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.rates == nil {
		writeUnavailable(ctx, w, "rating")
		return
	}
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	var req rateRequest
	if writeDecodeError(ctx, w, decodeJSON(r, &req, false)) {
		return
	}
	rate, err := h.rates.Upsert(ctx, services.UpsertRateCommand{
		Caller:   caller,
		VendorID: pathParam(r, "vendorID"),
		Value:    req.Value,
		Comment:  req.Comment,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "rating saved", buildRatePayload(rate))
}

func (h *CatalogHandlers) deleteRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.rates == nil {
		writeUnavailable(ctx, w, "rating")
		return
	}
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	if err := h.rates.Delete(ctx, caller, pathParam(r, "vendorID")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "rating deleted", nil)
}

// validateCoupon runs the coupon checks for the caller without reserving a use. A rejected
// coupon is a successful response carrying the reason.
func (h *CatalogHandlers) validateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		writeUnavailable(ctx, w, "coupon")
		return
	}
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	var req couponCheckRequest
	if writeDecodeError(ctx, w, decodeJSON(r, &req, false)) {
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeBadRequest(ctx, w, "code is required")
		return
	}
	validation, err := h.coupons.Validate(ctx, req.Code, caller.ID, strings.TrimSpace(req.VendorID))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	payload := couponCheckPayload{Valid: validation.Valid, Total: req.Subtotal}
	if !validation.Valid {
		if validation.Reason != nil {
			payload.Reason = validation.Reason.Error()
		}
		httpx.WriteSuccess(w, http.StatusOK, "coupon cannot be applied", payload)
		return
	}
	coupon := buildCouponPayload(*validation.Coupon)
	payload.Coupon = &coupon
	if req.Subtotal > 0 {
		applied := h.coupons.Apply(req.Subtotal, *validation.Coupon)
		if applied.Reason != nil {
			payload.Valid = false
			payload.Reason = applied.Reason.Error()
			httpx.WriteSuccess(w, http.StatusOK, "coupon cannot be applied", payload)
			return
		}
		payload.Discount = applied.Discount
		payload.Total = applied.Total
	}
	httpx.WriteSuccess(w, http.StatusOK, "coupon is valid", payload)
}

func writeAreas(w http.ResponseWriter, areas []services.DeliveryArea) {
	payload := make([]deliveryAreaPayload, 0, len(areas))
	for _, area := range areas {
		payload = append(payload, buildDeliveryAreaPayload(area))
	}
	httpx.WriteSuccess(w, http.StatusOK, "", payload)
}
