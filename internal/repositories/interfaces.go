package repositories

import (
	"context"

	domain "github.com/foodhub/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Items() ItemRepository
	Orders() OrderRepository
	Coupons() CouponRepository
	DeliveryAreas() DeliveryAreaRepository
	Addresses() AddressRepository
	Vendors() VendorRepository
	Rates() RateRepository
	Users() UserRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ItemRepository persists vendor menu items.
type ItemRepository interface {
	Insert(ctx context.Context, item domain.Item) error
	Update(ctx context.Context, item domain.Item) error
	FindByID(ctx context.Context, itemID string) (domain.Item, error)
	// FindByIDs returns the items that exist keyed by ID. Missing IDs are absent from the map.
	FindByIDs(ctx context.Context, itemIDs []string) (map[string]domain.Item, error)
	ListByVendor(ctx context.Context, filter ItemListFilter) (domain.CursorPage[domain.Item], error)
}

// ItemListFilter narrows vendor item listings.
type ItemListFilter struct {
	VendorID   string
	ActiveOnly bool
	Pagination domain.Pagination
}

// OrderRepository persists orders. Create is transactional: it allocates the per-vendor order
// number and, when the order carries a coupon, re-checks the coupon caps and increments its
// usage count in the same transaction as the insert.
type OrderRepository interface {
	Create(ctx context.Context, order domain.Order) (domain.Order, error)
	// Update persists the order only while the stored status and driver still match expected,
	// otherwise it fails with a conflict.
	Update(ctx context.Context, order domain.Order, expected OrderVersion) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	CountByCouponAndCustomer(ctx context.Context, couponID string, customerID string) (int64, error)
}

// OrderVersion is the part of an order a state change was decided on.
type OrderVersion struct {
	Status   domain.OrderStatus
	DriverID *string
}

// OrderListFilter narrows order listings for the different audiences.
type OrderListFilter struct {
	CustomerID    string
	VendorID      string
	DriverID      string
	Statuses      []domain.OrderStatus
	Unassigned    bool
	ExcludePickup bool
	Pagination    domain.Pagination
}

// CouponRepository persists coupons. Codes are stored canonicalised and are unique.
type CouponRepository interface {
	Insert(ctx context.Context, coupon domain.Coupon) error
	Update(ctx context.Context, coupon domain.Coupon) error
	FindByID(ctx context.Context, couponID string) (domain.Coupon, error)
	FindByCode(ctx context.Context, code string) (domain.Coupon, error)
	List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Coupon], error)
}

// DeliveryAreaRepository persists delivery areas. Names are unique.
type DeliveryAreaRepository interface {
	Insert(ctx context.Context, area domain.DeliveryArea) error
	FindByID(ctx context.Context, areaID string) (domain.DeliveryArea, error)
	List(ctx context.Context, activeOnly bool) ([]domain.DeliveryArea, error)
}

// AddressRepository persists user addresses. Save and SetDefault keep at most one default
// address per user within a single transaction.
type AddressRepository interface {
	Save(ctx context.Context, addr domain.Address) (domain.Address, error)
	SetDefault(ctx context.Context, userID string, addressID string) (domain.Address, error)
	Delete(ctx context.Context, userID string, addressID string) error
	FindByID(ctx context.Context, userID string, addressID string) (domain.Address, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Address, error)
}

// VendorRepository reads vendors and stores their rating aggregate.
type VendorRepository interface {
	FindByID(ctx context.Context, vendorID string) (domain.Vendor, error)
	FindByOwner(ctx context.Context, ownerID string) (domain.Vendor, error)
	UpdateRating(ctx context.Context, vendorID string, summary domain.RatingSummary) error
}

// RateRepository persists vendor ratings, one per vendor and user.
type RateRepository interface {
	Upsert(ctx context.Context, rate domain.Rate) (domain.Rate, error)
	Delete(ctx context.Context, vendorID string, userID string) error
	Find(ctx context.Context, vendorID string, userID string) (domain.Rate, error)
	Summarize(ctx context.Context, vendorID string) (domain.RatingSummary, error)
}

// UserRepository reads users and maintains their push tokens.
type UserRepository interface {
	FindByID(ctx context.Context, userID string) (domain.User, error)
	FindByIDs(ctx context.Context, userIDs []string) ([]domain.User, error)
	ListByType(ctx context.Context, filter UserListFilter) (domain.CursorPage[domain.User], error)
	// AddFCMToken appends the token keeping at most max tokens; the oldest are evicted first.
	AddFCMToken(ctx context.Context, userID string, token string, max int) ([]string, error)
	RemoveFCMTokens(ctx context.Context, userID string, tokens []string) error
}

// UserListFilter narrows user listings. An empty Type matches every user.
type UserListFilter struct {
	Type       domain.UserType
	Pagination domain.Pagination
}

// HealthRepository aggregates dependency probes for readiness checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.HealthReport, error)
}
