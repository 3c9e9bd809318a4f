package handlers

import (
	"time"

	domain "github.com/foodhub/api/internal/domain"
	"github.com/foodhub/api/internal/services"
)

type pagePayload[T any] struct {
	Items         []T    `json:"items"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

func buildPage[S, T any](page domain.CursorPage[S], build func(S) T) pagePayload[T] {
	items := make([]T, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, build(item))
	}
	return pagePayload[T]{Items: items, NextPageToken: page.NextPageToken}
}

type orderLinePayload struct {
	ItemID      string `json:"itemId"`
	Name        string `json:"name"`
	OptionID    string `json:"optionId,omitempty"`
	OptionLabel string `json:"optionLabel,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unitPrice"`
	LineTotal   int64  `json:"lineTotal"`
}

type statusChangePayload struct {
	From      string `json:"from,omitempty"`
	To        string `json:"to"`
	ActorID   string `json:"actorId,omitempty"`
	ActorType string `json:"actorType,omitempty"`
	Reason    string `json:"reason,omitempty"`
	At        string `json:"at"`
}

type partyPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type orderPayload struct {
	ID              string                `json:"id"`
	Number          int64                 `json:"number"`
	Status          string                `json:"status"`
	CustomerID      string                `json:"customerId"`
	VendorID        string                `json:"vendorId"`
	DriverID        string                `json:"driverId,omitempty"`
	Lines           []orderLinePayload    `json:"lines"`
	Subtotal        int64                 `json:"subtotal"`
	Discount        int64                 `json:"discount"`
	DeliveryFee     int64                 `json:"deliveryFee"`
	Total           int64                 `json:"total"`
	CouponCode      string                `json:"couponCode,omitempty"`
	AddressID       string                `json:"addressId,omitempty"`
	DeliveryAreaID  string                `json:"deliveryAreaId,omitempty"`
	PaymentMethod   string                `json:"paymentMethod"`
	Pickup          bool                  `json:"pickup"`
	Notes           string                `json:"notes,omitempty"`
	RejectionReason string                `json:"rejectionReason,omitempty"`
	History         []statusChangePayload `json:"history,omitempty"`
	CreatedAt       string                `json:"createdAt"`
	UpdatedAt       string                `json:"updatedAt"`
	AcceptedAt      string                `json:"acceptedAt,omitempty"`
	DeliveredAt     string                `json:"deliveredAt,omitempty"`
	CancelledAt     string                `json:"cancelledAt,omitempty"`
	Customer        *partyPayload         `json:"customer,omitempty"`
	Vendor          *partyPayload         `json:"vendor,omitempty"`
	Address         *addressPayload       `json:"address,omitempty"`
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:              order.ID,
		Number:          order.Number,
		Status:          string(order.Status),
		CustomerID:      order.CustomerID,
		VendorID:        order.VendorID,
		DriverID:        valueOrEmpty(order.DriverID),
		Lines:           make([]orderLinePayload, 0, len(order.Lines)),
		Subtotal:        order.Subtotal,
		Discount:        order.Discount,
		DeliveryFee:     order.DeliveryFee,
		Total:           order.Total,
		CouponCode:      valueOrEmpty(order.CouponCode),
		AddressID:       valueOrEmpty(order.AddressID),
		DeliveryAreaID:  valueOrEmpty(order.DeliveryAreaID),
		PaymentMethod:   string(order.PaymentMethod),
		Pickup:          order.Pickup,
		Notes:           order.Notes,
		RejectionReason: valueOrEmpty(order.RejectionReason),
		CreatedAt:       formatTime(order.CreatedAt),
		UpdatedAt:       formatTime(order.UpdatedAt),
		AcceptedAt:      formatOptionalTime(order.AcceptedAt),
		DeliveredAt:     formatOptionalTime(order.DeliveredAt),
		CancelledAt:     formatOptionalTime(order.CancelledAt),
	}
	for _, line := range order.Lines {
		payload.Lines = append(payload.Lines, orderLinePayload{
			ItemID:      line.ItemID,
			Name:        line.Name,
			OptionID:    line.OptionID,
			OptionLabel: line.OptionLabel,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
		})
	}
	for _, change := range order.StatusHistory {
		payload.History = append(payload.History, statusChangePayload{
			From:      string(change.From),
			To:        string(change.To),
			ActorID:   change.ActorID,
			ActorType: string(change.ActorType),
			Reason:    change.Reason,
			At:        formatTime(change.At),
		})
	}
	return payload
}

func buildOrderDetailsPayload(details services.OrderDetails) orderPayload {
	payload := buildOrderPayload(details.Order)
	if details.Customer != nil {
		payload.Customer = &partyPayload{ID: details.Customer.ID, Name: details.Customer.Name, Phone: details.Customer.Phone}
	}
	if details.Vendor != nil {
		payload.Vendor = &partyPayload{ID: details.Vendor.ID, Name: details.Vendor.Name}
	}
	if details.Address != nil {
		addr := buildAddressPayload(*details.Address)
		payload.Address = &addr
	}
	return payload
}

type pricedLinePayload struct {
	ItemID      string `json:"itemId"`
	Name        string `json:"name"`
	OptionID    string `json:"optionId,omitempty"`
	OptionLabel string `json:"optionLabel,omitempty"`
	Quantity    int    `json:"quantity"`
	BasePrice   int64  `json:"basePrice"`
	UnitPrice   int64  `json:"unitPrice"`
	LineTotal   int64  `json:"lineTotal"`
	Discounted  bool   `json:"discounted"`
}

type pricingPayload struct {
	Outcome     string              `json:"outcome"`
	Warning     string              `json:"warning,omitempty"`
	VendorID    string              `json:"vendorId"`
	Lines       []pricedLinePayload `json:"lines"`
	Subtotal    int64               `json:"subtotal"`
	Discount    int64               `json:"discount"`
	DeliveryFee int64               `json:"deliveryFee"`
	Total       int64               `json:"total"`
	CouponCode  string              `json:"couponCode,omitempty"`
}

func buildPricingPayload(result services.PricingResult) pricingPayload {
	payload := pricingPayload{
		Outcome:     string(result.Outcome),
		Warning:     result.Warning,
		VendorID:    result.VendorID,
		Lines:       make([]pricedLinePayload, 0, len(result.Lines)),
		Subtotal:    result.Subtotal,
		Discount:    result.Discount,
		DeliveryFee: result.DeliveryFee,
		Total:       result.Total,
		CouponCode:  valueOrEmpty(result.CouponCode),
	}
	for _, line := range result.Lines {
		payload.Lines = append(payload.Lines, pricedLinePayload(line))
	}
	return payload
}

type geoPointPayload struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type addressPayload struct {
	ID             string          `json:"id"`
	Line           string          `json:"line"`
	Location       geoPointPayload `json:"location"`
	DeliveryAreaID string          `json:"deliveryAreaId"`
	IsDefault      bool            `json:"isDefault"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      string          `json:"createdAt"`
	UpdatedAt      string          `json:"updatedAt"`
}

func buildAddressPayload(addr services.Address) addressPayload {
	return addressPayload{
		ID:             addr.ID,
		Line:           addr.Line,
		Location:       geoPointPayload{Lat: addr.Location.Lat, Lng: addr.Location.Lng},
		DeliveryAreaID: addr.DeliveryAreaID,
		IsDefault:      addr.IsDefault,
		Notes:          addr.Notes,
		CreatedAt:      formatTime(addr.CreatedAt),
		UpdatedAt:      formatTime(addr.UpdatedAt),
	}
}

type itemOptionPayload struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Price int64  `json:"price"`
	Order int    `json:"order"`
}

type itemDiscountPayload struct {
	Type     string `json:"type"`
	Value    int64  `json:"value"`
	StartsAt string `json:"startsAt,omitempty"`
	EndsAt   string `json:"endsAt,omitempty"`
	Active   bool   `json:"active"`
}

type itemPayload struct {
	ID         string               `json:"id"`
	VendorID   string               `json:"vendorId"`
	CategoryID string               `json:"categoryId,omitempty"`
	Name       string               `json:"name"`
	BasePrice  int64                `json:"basePrice"`
	Options    []itemOptionPayload  `json:"options,omitempty"`
	Discount   *itemDiscountPayload `json:"discount,omitempty"`
	Active     bool                 `json:"active"`
	Available  bool                 `json:"available"`
	UpdatedAt  string               `json:"updatedAt"`
}

func buildItemPayload(item services.Item) itemPayload {
	payload := itemPayload{
		ID:         item.ID,
		VendorID:   item.VendorID,
		CategoryID: item.CategoryID,
		Name:       item.Name,
		BasePrice:  item.BasePrice,
		Active:     item.Active,
		Available:  item.Available,
		UpdatedAt:  formatTime(item.UpdatedAt),
	}
	for _, opt := range item.Options {
		payload.Options = append(payload.Options, itemOptionPayload(opt))
	}
	if d := item.Discount; d != nil {
		payload.Discount = &itemDiscountPayload{
			Type:     string(d.Type),
			Value:    d.Value,
			StartsAt: formatOptionalTime(d.StartsAt),
			EndsAt:   formatOptionalTime(d.EndsAt),
			Active:   d.Active,
		}
	}
	return payload
}

type couponPayload struct {
	ID               string   `json:"id"`
	Code             string   `json:"code"`
	Type             string   `json:"type"`
	Value            int64    `json:"value"`
	MinOrderValue    *int64   `json:"minOrderValue,omitempty"`
	MaxDiscountValue *int64   `json:"maxDiscountValue,omitempty"`
	StartsAt         string   `json:"startsAt,omitempty"`
	EndsAt           string   `json:"endsAt,omitempty"`
	Active           bool     `json:"active"`
	PerUserLimit     int64    `json:"perUserLimit"`
	UsageLimit       int64    `json:"usageLimit"`
	UsedCount        int64    `json:"usedCount"`
	AllowedUserIDs   []string `json:"allowedUserIds,omitempty"`
	AllowedVendorIDs []string `json:"allowedVendorIds,omitempty"`
	CreatedAt        string   `json:"createdAt"`
}

func buildCouponPayload(c services.Coupon) couponPayload {
	return couponPayload{
		ID:               c.ID,
		Code:             c.Code,
		Type:             string(c.Type),
		Value:            c.Value,
		MinOrderValue:    c.MinOrderValue,
		MaxDiscountValue: c.MaxDiscountValue,
		StartsAt:         formatOptionalTime(c.StartsAt),
		EndsAt:           formatOptionalTime(c.EndsAt),
		Active:           c.Active,
		PerUserLimit:     c.PerUserLimit,
		UsageLimit:       c.UsageLimit,
		UsedCount:        c.UsedCount,
		AllowedUserIDs:   c.AllowedUserIDs,
		AllowedVendorIDs: c.AllowedVendorIDs,
		CreatedAt:        formatTime(c.CreatedAt),
	}
}

type deliveryAreaPayload struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Fee              int64  `json:"fee"`
	EstimatedMinutes int    `json:"estimatedMinutes"`
	Active           bool   `json:"active"`
}

func buildDeliveryAreaPayload(area services.DeliveryArea) deliveryAreaPayload {
	return deliveryAreaPayload{
		ID:               area.ID,
		Name:             area.Name,
		Fee:              area.Fee,
		EstimatedMinutes: area.EstimatedMinutes,
		Active:           area.Active,
	}
}

type ratePayload struct {
	VendorID  string `json:"vendorId"`
	Value     int    `json:"value"`
	Comment   string `json:"comment,omitempty"`
	UpdatedAt string `json:"updatedAt"`
}

func buildRatePayload(rate services.Rate) ratePayload {
	return ratePayload{
		VendorID:  rate.VendorID,
		Value:     rate.Value,
		Comment:   rate.Comment,
		UpdatedAt: formatTime(rate.UpdatedAt),
	}
}

type userPayload struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
	PhoneVerified bool   `json:"phoneVerified"`
	Type          string `json:"type"`
	DeviceCount   int    `json:"deviceCount"`
}

func buildUserPayload(user services.User) userPayload {
	return userPayload{
		ID:            user.ID,
		Name:          user.Name,
		Email:         user.Email,
		Phone:         user.Phone,
		EmailVerified: user.EmailVerified,
		PhoneVerified: user.PhoneVerified,
		Type:          string(user.Type),
		DeviceCount:   len(user.FCMTokens),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func valueOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
