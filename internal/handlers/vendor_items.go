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

type itemDiscountRequest struct {
	Type     string     `json:"type"`
	Value    int64      `json:"value"`
	StartsAt *time.Time `json:"startsAt"`
	EndsAt   *time.Time `json:"endsAt"`
	Active   bool       `json:"active"`
}

type itemRequest struct {
	CategoryID string               `json:"categoryId"`
	Name       string               `json:"name"`
	BasePrice  int64                `json:"basePrice"`
	Options    []itemOptionPayload  `json:"options"`
	Discount   *itemDiscountRequest `json:"discount"`
	Available  *bool                `json:"available"`
}

func (req itemRequest) command(caller services.Caller, itemID string) (services.SaveItemCommand, error) {
	cmd := services.SaveItemCommand{
		Caller:     caller,
		ItemID:     itemID,
		CategoryID: strings.TrimSpace(req.CategoryID),
		Name:       req.Name,
		BasePrice:  req.BasePrice,
		Available:  req.Available == nil || *req.Available,
	}
	for _, opt := range req.Options {
		cmd.Options = append(cmd.Options, domain.ItemOption(opt))
	}
	if d := req.Discount; d != nil {
		kind := domain.DiscountType(strings.ToLower(strings.TrimSpace(d.Type)))
		if kind != domain.DiscountTypePercentage && kind != domain.DiscountTypeFixed {
			return services.SaveItemCommand{}, fmt.Errorf("discount type must be %q or %q", domain.DiscountTypePercentage, domain.DiscountTypeFixed)
		}
		cmd.Discount = &domain.ItemDiscount{
			Type:     kind,
			Value:    d.Value,
			StartsAt: d.StartsAt,
			EndsAt:   d.EndsAt,
			Active:   d.Active,
		}
	}
	return cmd, nil
}

// ItemHandlers lets vendors manage their menu.
type ItemHandlers struct {
	items services.ItemService
}

// NewItemHandlers constructs menu handlers.
func NewItemHandlers(items services.ItemService) *ItemHandlers {
	return &ItemHandlers{items: items}
}

// VendorRoutes registers /items relative to the vendor group.
func (h *ItemHandlers) VendorRoutes(r chi.Router) {
	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.listItems)
		r.Post("/", h.createItem)
		r.Put("/{itemID}", h.updateItem)
		r.Delete("/{itemID}", h.deactivateItem)
	})
}

func (h *ItemHandlers) listItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.items == nil {
		writeUnavailable(ctx, w, "item")
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
	page, err := h.items.List(ctx, caller, pager)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "", buildPage(page, buildItemPayload))
}

func (h *ItemHandlers) createItem(w http.ResponseWriter, r *http.Request) {
	h.saveItem(w, r, "")
}

func (h *ItemHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	h.saveItem(w, r, pathParam(r, "itemID"))
}

func (h *ItemHandlers) saveItem(w http.ResponseWriter, r *http.Request, itemID string) {
	ctx := r.Context()
	if h.items == nil {
		writeUnavailable(ctx, w, "item")
		return
	}
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	var req itemRequest
	if writeDecodeError(ctx, w, decodeJSON(r, &req, false)) {
		return
	}
	cmd, err := req.command(caller, itemID)
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}

	if itemID == "" {
		item, err := h.items.Create(ctx, cmd)
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+item.ID)
		httpx.WriteSuccess(w, http.StatusCreated, "item created", buildItemPayload(item))
		return
	}
	item, err := h.items.Update(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "item updated", buildItemPayload(item))
}

func (h *ItemHandlers) deactivateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.items == nil {
		writeUnavailable(ctx, w, "item")
		return
	}
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	item, err := h.items.Deactivate(ctx, caller, pathParam(r, "itemID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "item deactivated", buildItemPayload(item))
}
