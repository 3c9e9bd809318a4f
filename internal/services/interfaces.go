package services

import (
	"context"
	"time"

	domain "github.com/foodhub/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination    = domain.Pagination
	Item          = domain.Item
	Order         = domain.Order
	OrderDetails  = domain.OrderDetails
	OrderStatus   = domain.OrderStatus
	Coupon        = domain.Coupon
	Address       = domain.Address
	DeliveryArea  = domain.DeliveryArea
	Rate          = domain.Rate
	User          = domain.User
	PricingResult = domain.PricingResult
	HealthReport  = domain.HealthReport
)

// PricingCalculator prices a cart without persisting anything.
type PricingCalculator interface {
	Compute(ctx context.Context, cmd PricingCommand) (PricingResult, error)
}

// CartLine is one requested cart entry.
type CartLine struct {
	ItemID   string
	OptionID string
	Quantity int
}

// PricingCommand carries the inputs of a pricing computation.
type PricingCommand struct {
	Lines          []CartLine
	UserID         string
	DeliveryAreaID *string
	CouponCode     *string
	Pickup         bool
}

// CouponService validates, applies and administers coupons.
type CouponService interface {
	Validate(ctx context.Context, code string, userID string, vendorID string) (CouponValidation, error)
	Apply(subtotal int64, coupon Coupon) CouponApplication
	CreateCoupon(ctx context.Context, cmd CreateCouponCommand) (Coupon, error)
	GetCoupon(ctx context.Context, couponID string) (Coupon, error)
	ListCoupons(ctx context.Context, pager Pagination) (domain.CursorPage[Coupon], error)
	SetCouponActive(ctx context.Context, couponID string, active bool) (Coupon, error)
}

// CouponValidation is the outcome of the ordered coupon checks. Reason is set when Valid is
// false; infrastructure failures are returned as the error instead.
type CouponValidation struct {
	Valid  bool
	Coupon *Coupon
	Reason error
}

// CouponApplication is the outcome of applying a valid coupon to a subtotal.
type CouponApplication struct {
	Discount int64
	Total    int64
	Reason   error
}

// CreateCouponCommand defines a new coupon.
type CreateCouponCommand struct {
	Code             string
	Type             domain.DiscountType
	Value            int64
	MinOrderValue    *int64
	MaxDiscountValue *int64
	StartsAt         *time.Time
	EndsAt           *time.Time
	PerUserLimit     int64
	UsageLimit       int64
	AllowedUserIDs   []string
	AllowedVendorIDs []string
}

// OrderService owns order creation, reads and the status state machine.
type OrderService interface {
	Preview(ctx context.Context, cmd CreateOrderCommand) (PricingResult, error)
	Create(ctx context.Context, cmd CreateOrderCommand) (OrderDetails, error)
	Get(ctx context.Context, caller Caller, orderID string) (OrderDetails, error)
	List(ctx context.Context, caller Caller, filter OrderListFilter) (domain.CursorPage[Order], error)
	ListAvailable(ctx context.Context, caller Caller, pager Pagination) (domain.CursorPage[Order], error)
	Transition(ctx context.Context, cmd TransitionCommand) (OrderDetails, error)
}

// CreateOrderCommand is a customer checkout request.
type CreateOrderCommand struct {
	Caller        Caller
	Lines         []CartLine
	AddressID     *string
	CouponCode    *string
	PaymentMethod domain.PaymentMethod
	Pickup        bool
	Notes         string
}

// OrderListFilter narrows order listings. The audience scope is derived from the caller.
type OrderListFilter struct {
	Statuses   []OrderStatus
	Pagination Pagination
}

// TransitionCommand requests one state machine action on an order.
type TransitionCommand struct {
	Caller  Caller
	OrderID string
	Action  Action
	// Target is required for VendorUpdate and DriverUpdate; other actions imply it.
	Target OrderStatus
	Reason *string
}

// NotificationDispatcher hands notifications to background workers.
type NotificationDispatcher interface {
	// Dispatch never blocks; it reports false when the notification was dropped.
	Dispatch(ctx context.Context, n Notification) bool
	Broadcast(ctx context.Context, cmd BroadcastCommand) error
	Start(ctx context.Context)
	Close(ctx context.Context) error
}

// RoomPublisher emits an event to a realtime room.
type RoomPublisher interface {
	PublishToRoom(ctx context.Context, msg RoomMessage) error
}

// RoomMessage is the envelope delivered to realtime subscribers.
type RoomMessage struct {
	Room    string         `json:"room"`
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload,omitempty"`
	SentAt  time.Time      `json:"sentAt"`
}

// PushSender delivers one multicast push message to at most MaxPushBatch tokens.
type PushSender interface {
	SendMulticast(ctx context.Context, msg PushMessage, tokens []string) (PushReport, error)
}

// PushMessage is the title/body/data triple sent to devices.
type PushMessage struct {
	Title string
	Body  string
	Data  map[string]any
}

// PushReport summarises a multicast send. InvalidTokens lists tokens the provider reported as
// unregistered or malformed.
type PushReport struct {
	SuccessCount  int
	FailureCount  int
	InvalidTokens []string
}

// BroadcastCommand pushes a message to every user of an audience.
type BroadcastCommand struct {
	Audience BroadcastAudience
	Message  PushMessage
}

// RateService writes vendor ratings and keeps the vendor aggregate current.
type RateService interface {
	Upsert(ctx context.Context, cmd UpsertRateCommand) (Rate, error)
	Delete(ctx context.Context, caller Caller, vendorID string) error
}

// UpsertRateCommand rates a vendor.
type UpsertRateCommand struct {
	Caller   Caller
	VendorID string
	Value    int
	Comment  string
}

// RatingAggregator recomputes a vendor's average and count from its rates.
type RatingAggregator interface {
	Recompute(ctx context.Context, vendorID string) (domain.RatingSummary, error)
}

// AddressService manages a customer's saved addresses.
type AddressService interface {
	Create(ctx context.Context, cmd SaveAddressCommand) (Address, error)
	Update(ctx context.Context, cmd SaveAddressCommand) (Address, error)
	Delete(ctx context.Context, caller Caller, addressID string) error
	List(ctx context.Context, caller Caller) ([]Address, error)
	SetDefault(ctx context.Context, caller Caller, addressID string) (Address, error)
}

// SaveAddressCommand creates or updates an address. AddressID is ignored on create.
type SaveAddressCommand struct {
	Caller         Caller
	AddressID      string
	Line           string
	Location       domain.GeoPoint
	DeliveryAreaID string
	Notes          string
	MakeDefault    bool
}

// ItemService manages a vendor's menu.
type ItemService interface {
	Create(ctx context.Context, cmd SaveItemCommand) (Item, error)
	Update(ctx context.Context, cmd SaveItemCommand) (Item, error)
	Deactivate(ctx context.Context, caller Caller, itemID string) (Item, error)
	List(ctx context.Context, caller Caller, pager Pagination) (domain.CursorPage[Item], error)
}

// SaveItemCommand creates or updates an item. ItemID is ignored on create.
type SaveItemCommand struct {
	Caller     Caller
	ItemID     string
	CategoryID string
	Name       string
	BasePrice  int64
	Options    []domain.ItemOption
	Discount   *domain.ItemDiscount
	Available  bool
}

// DeliveryAreaService manages delivery areas.
type DeliveryAreaService interface {
	Create(ctx context.Context, cmd CreateDeliveryAreaCommand) (DeliveryArea, error)
	List(ctx context.Context, activeOnly bool) ([]DeliveryArea, error)
}

// CreateDeliveryAreaCommand defines a delivery area.
type CreateDeliveryAreaCommand struct {
	Name             string
	Fee              int64
	EstimatedMinutes int
}

// UserService manages profile reads and push token registration.
type UserService interface {
	Get(ctx context.Context, caller Caller) (User, error)
	RegisterFCMToken(ctx context.Context, caller Caller, token string) ([]string, error)
	RemoveFCMToken(ctx context.Context, caller Caller, token string) error
}

// SystemService reports service health.
type SystemService interface {
	HealthReport(ctx context.Context) (HealthReport, error)
}
