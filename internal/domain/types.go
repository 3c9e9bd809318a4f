package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// UserType discriminates the four API audiences.
type UserType string

const (
	// UserTypeCustomer is a regular ordering customer.
	UserTypeCustomer UserType = "user"
	// UserTypeVendor owns a vendor storefront.
	UserTypeVendor UserType = "vendor"
	// UserTypeDelivery is a delivery driver.
	UserTypeDelivery UserType = "delivery"
	// UserTypeAdmin operates the platform.
	UserTypeAdmin UserType = "admin"
)

// Valid reports whether the user type is one of the known audiences.
func (t UserType) Valid() bool {
	switch t {
	case UserTypeCustomer, UserTypeVendor, UserTypeDelivery, UserTypeAdmin:
		return true
	}
	return false
}

// MaxFCMTokens bounds the number of device tokens kept per user.
const MaxFCMTokens = 10

// User is an account of any audience type.
type User struct {
	ID            string
	Name          string
	Email         string
	Phone         string
	EmailVerified bool
	PhoneVerified bool
	Type          UserType
	LoggedIn      bool
	FCMTokens     []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// WorkingHours describes the opening window of a vendor for one weekday. Opens and Closes use HH:MM.
type WorkingHours struct {
	Weekday time.Weekday
	Opens   string
	Closes  string
}

// Vendor is a restaurant or shop selling items.
type Vendor struct {
	ID            string
	OwnerID       string
	CategoryID    string
	Name          string
	WorkingHours  []WorkingHours
	Active        bool
	RatingAverage float64
	RatingCount   int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DiscountType selects how a discount value is applied.
type DiscountType string

const (
	// DiscountTypePercentage reduces a price by a percentage (0-100).
	DiscountTypePercentage DiscountType = "percentage"
	// DiscountTypeFixed subtracts a fixed amount in minor units.
	DiscountTypeFixed DiscountType = "fixed"
)

// ItemOption is a selectable variant of an item carrying its own price.
type ItemOption struct {
	ID    string
	Label string
	Price int64
	Order int
}

// ItemDiscount is a time-bounded price reduction on an item.
type ItemDiscount struct {
	Type     DiscountType
	Value    int64
	StartsAt *time.Time
	EndsAt   *time.Time
	Active   bool
}

// ActiveAt reports whether the discount applies at the given instant. Window bounds are inclusive.
func (d *ItemDiscount) ActiveAt(now time.Time) bool {
	if d == nil || !d.Active {
		return false
	}
	if d.StartsAt != nil && now.Before(*d.StartsAt) {
		return false
	}
	if d.EndsAt != nil && now.After(*d.EndsAt) {
		return false
	}
	return true
}

// Item is a menu entry sold by a vendor.
type Item struct {
	ID         string
	VendorID   string
	CategoryID string
	Name       string
	BasePrice  int64
	Options    []ItemOption
	Discount   *ItemDiscount
	Active     bool
	Available  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Option returns the option with the given id.
func (i Item) Option(id string) (ItemOption, bool) {
	for _, opt := range i.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return ItemOption{}, false
}

// DeliveryArea is a named zone with a flat delivery fee.
type DeliveryArea struct {
	ID               string
	Name             string
	Fee              int64
	EstimatedMinutes int
	Active           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// GeoPoint is a latitude/longitude pair.
type GeoPoint struct {
	Lat float64
	Lng float64
}

// Address is a saved delivery location of a user.
type Address struct {
	ID             string
	UserID         string
	Line           string
	Location       GeoPoint
	DeliveryAreaID string
	IsDefault      bool
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Coupon is a redeemable discount code.
type Coupon struct {
	ID               string
	Code             string
	Type             DiscountType
	Value            int64
	MinOrderValue    *int64
	MaxDiscountValue *int64
	StartsAt         *time.Time
	EndsAt           *time.Time
	Active           bool
	PerUserLimit     int64
	UsageLimit       int64
	UsedCount        int64
	AllowedUserIDs   []string
	AllowedVendorIDs []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Rate is a customer's 1-5 rating of a vendor. One rate exists per vendor and user.
type Rate struct {
	ID        string
	VendorID  string
	UserID    string
	Value     int
	Comment   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RatingSummary is the aggregate of all rates of a vendor.
type RatingSummary struct {
	Average float64
	Count   int64
}

// OrderStatus enumerates the lifecycle states of an order.
type OrderStatus string

const (
	OrderStatusPending            OrderStatus = "pending"
	OrderStatusPreparing          OrderStatus = "preparing"
	OrderStatusOutForDelivery     OrderStatus = "out_for_delivery"
	OrderStatusDelivered          OrderStatus = "delivered"
	OrderStatusCompleted          OrderStatus = "completed"
	OrderStatusReceivedByCustomer OrderStatus = "received_by_customer"
	OrderStatusCancelled          OrderStatus = "cancelled"
	OrderStatusCanceledByVendor   OrderStatus = "canceled_by_vendor"
)

// OrderStatuses lists every order status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPreparing,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCompleted,
	OrderStatusReceivedByCustomer,
	OrderStatusCancelled,
	OrderStatusCanceledByVendor,
}

// Valid reports whether the status is a known enum value.
func (s OrderStatus) Valid() bool {
	for _, status := range OrderStatuses {
		if status == s {
			return true
		}
	}
	return false
}

// PaymentMethod records how the customer pays on delivery or pickup.
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodWallet PaymentMethod = "wallet"
)

// Valid reports whether the payment method is supported.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodWallet:
		return true
	}
	return false
}

// OrderLine is a priced snapshot of one cart line.
type OrderLine struct {
	ItemID      string
	Name        string
	OptionID    string
	OptionLabel string
	Quantity    int
	UnitPrice   int64
	LineTotal   int64
}

// OrderStatusChange is one entry of an order's status history.
type OrderStatusChange struct {
	From      OrderStatus
	To        OrderStatus
	ActorID   string
	ActorType UserType
	Reason    string
	At        time.Time
}

// Order is a placed order. Monetary fields are snapshots taken at creation.
type Order struct {
	ID              string
	Number          int64
	CustomerID      string
	VendorID        string
	DriverID        *string
	Lines           []OrderLine
	Subtotal        int64
	Discount        int64
	DeliveryFee     int64
	Total           int64
	CouponID        *string
	CouponCode      *string
	Status          OrderStatus
	AddressID       *string
	DeliveryAreaID  *string
	PaymentMethod   PaymentMethod
	Pickup          bool
	Notes           string
	RejectionReason *string
	StatusHistory   []OrderStatusChange
	CreatedAt       time.Time
	UpdatedAt       time.Time
	AcceptedAt      *time.Time
	DeliveredAt     *time.Time
	CancelledAt     *time.Time
}

// AssignedTo reports whether the order is assigned to the given driver.
func (o Order) AssignedTo(driverID string) bool {
	return o.DriverID != nil && *o.DriverID == driverID
}

// OrderDetails is an order populated with the related entities used in notifications and responses.
type OrderDetails struct {
	Order    Order
	Customer *User
	Vendor   *Vendor
	Address  *Address
	Items    map[string]Item
}
