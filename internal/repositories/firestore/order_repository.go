package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/foodhub/api/internal/domain"
	pfirestore "github.com/foodhub/api/internal/platform/firestore"
	"github.com/foodhub/api/internal/repositories"
)

const (
	ordersCollection   = "orders"
	countersCollection = "counters"
	orderCounterPrefix = "orders:"
)

// OrderRepository persists orders and allocates per-vendor order numbers.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.Collection[domain.Order]
	counters *pfirestore.Collection[counterDocument]
	coupons  *pfirestore.Collection[domain.Coupon]
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewCollection(provider, ordersCollection, decodeOrder),
		counters: pfirestore.NewCollection[counterDocument](provider, countersCollection, nil),
		coupons:  pfirestore.NewCollection(provider, couponsCollection, decodeCoupon),
	}, nil
}

type counterDocument struct {
	CurrentValue int64     `firestore:"currentValue"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

// Create writes the order in one transaction with the vendor counter increment and, when a
// coupon is attached, the coupon cap re-check and usage increment.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	orderRef, err := r.orders.Doc(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	counterRef, err := r.counters.Doc(ctx, orderCounterPrefix+order.VendorID)
	if err != nil {
		return domain.Order{}, err
	}
	var couponRef *firestore.DocumentRef
	if order.CouponID != nil {
		if couponRef, err = r.coupons.Doc(ctx, *order.CouponID); err != nil {
			return domain.Order{}, err
		}
	}
	ordersRef, err := r.orders.Ref(ctx)
	if err != nil {
		return domain.Order{}, err
	}

	var created domain.Order
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		// Firestore requires every read to happen before the first write.
		var counter counterDocument
		snap, err := tx.Get(counterRef)
		switch status.Code(err) {
		case codes.OK:
			if err := snap.DataTo(&counter); err != nil {
				return err
			}
		case codes.NotFound:
		default:
			return err
		}

		if couponRef != nil {
			if err := r.checkCouponCaps(tx, ordersRef, couponRef, order.CustomerID); err != nil {
				return err
			}
		}

		now := order.CreatedAt.UTC()
		counter.CurrentValue++
		counter.UpdatedAt = now
		if err := tx.Set(counterRef, counter); err != nil {
			return err
		}
		if couponRef != nil {
			if err := tx.Update(couponRef, []firestore.Update{
				{Path: "usedCount", Value: firestore.Increment(1)},
				{Path: "updatedAt", Value: now},
			}); err != nil {
				return err
			}
		}

		created = order
		created.Number = counter.CurrentValue
		return tx.Create(orderRef, fromDomainOrder(created))
	})
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.create", err)
	}
	return created, nil
}

func (r *OrderRepository) checkCouponCaps(tx *firestore.Transaction, orders *firestore.CollectionRef, couponRef *firestore.DocumentRef, customerID string) error {
	couponID := couponRef.ID
	snap, err := tx.Get(couponRef)
	if status.Code(err) == codes.NotFound {
		return repositories.NewCouponUsageError(couponID, repositories.CouponUsageInactive, "coupon no longer exists")
	}
	if err != nil {
		return err
	}
	var coupon couponDocument
	if err := snap.DataTo(&coupon); err != nil {
		return err
	}
	if !coupon.Active {
		return repositories.NewCouponUsageError(couponID, repositories.CouponUsageInactive, "coupon was deactivated")
	}
	if coupon.UsageLimit > 0 && coupon.UsedCount >= coupon.UsageLimit {
		return repositories.NewCouponUsageError(couponID, repositories.CouponUsageExhausted, "coupon usage limit reached")
	}
	if coupon.PerUserLimit <= 0 {
		return nil
	}
	used, err := tx.Documents(orders.
		Where("couponId", "==", couponID).
		Where("customerId", "==", customerID).
		Select().
		Limit(int(coupon.PerUserLimit))).GetAll()
	if err != nil {
		return err
	}
	if int64(len(used)) >= coupon.PerUserLimit {
		return repositories.NewCouponUsageError(couponID, repositories.CouponUsagePerUserExhausted, "coupon usage limit reached for this user")
	}
	return nil
}

// Update replaces the order while its stored status and driver still match expected.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order, expected repositories.OrderVersion) error {
	ref, err := r.orders.Doc(ctx, order.ID)
	if err != nil {
		return err
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current, err := r.orders.GetTx(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if current.Status != expected.Status || !sameDriver(current.DriverID, expected.DriverID) {
			return pfirestore.Conflict("orders.update", "order was modified concurrently")
		}
		return tx.Set(ref, fromDomainOrder(order))
	})
}

func sameDriver(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// FindByID loads a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	return r.orders.Get(ctx, orderID)
}

// List pages through orders newest first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	cursor, err := pageCursor(filter.Pagination)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	page, err := r.orders.Paginate(ctx, func(q firestore.Query) firestore.Query {
		if filter.CustomerID != "" {
			q = q.Where("customerId", "==", filter.CustomerID)
		}
		if filter.VendorID != "" {
			q = q.Where("vendorId", "==", filter.VendorID)
		}
		if filter.DriverID != "" {
			q = q.Where("driverId", "==", filter.DriverID)
		}
		if filter.Unassigned {
			q = q.Where("driverId", "==", nil)
		}
		if filter.ExcludePickup {
			q = q.Where("pickup", "==", false)
		}
		if len(filter.Statuses) > 0 {
			statuses := make([]string, 0, len(filter.Statuses))
			for _, s := range filter.Statuses {
				statuses = append(statuses, string(s))
			}
			q = q.Where("status", "in", statuses)
		}
		return q.OrderBy("createdAt", firestore.Desc)
	}, filter.Pagination.PageSize, cursor)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	return toCursorPage(page.Items, page.NextCursor), nil
}

// CountByCouponAndCustomer counts every order of the customer that applied the coupon.
func (r *OrderRepository) CountByCouponAndCustomer(ctx context.Context, couponID string, customerID string) (int64, error) {
	coll, err := r.orders.Ref(ctx)
	if err != nil {
		return 0, err
	}
	query := coll.Where("couponId", "==", couponID).Where("customerId", "==", customerID)
	result, err := query.NewAggregationQuery().
		WithCount("count").
		Get(ctx)
	if err != nil {
		return 0, pfirestore.WrapError("orders.countByCoupon", err)
	}
	return aggregateInt(result, "count")
}

type orderLineDocument struct {
	ItemID      string `firestore:"itemId"`
	Name        string `firestore:"name"`
	OptionID    string `firestore:"optionId,omitempty"`
	OptionLabel string `firestore:"optionLabel,omitempty"`
	Quantity    int    `firestore:"quantity"`
	UnitPrice   int64  `firestore:"unitPrice"`
	LineTotal   int64  `firestore:"lineTotal"`
}

type statusChangeDocument struct {
	From      string    `firestore:"from,omitempty"`
	To        string    `firestore:"to"`
	ActorID   string    `firestore:"actorId"`
	ActorType string    `firestore:"actorType"`
	Reason    string    `firestore:"reason,omitempty"`
	At        time.Time `firestore:"at"`
}

type orderDocument struct {
	Number          int64                  `firestore:"number"`
	CustomerID      string                 `firestore:"customerId"`
	VendorID        string                 `firestore:"vendorId"`
	DriverID        *string                `firestore:"driverId"`
	Lines           []orderLineDocument    `firestore:"lines"`
	Subtotal        int64                  `firestore:"subtotal"`
	Discount        int64                  `firestore:"discount"`
	DeliveryFee     int64                  `firestore:"deliveryFee"`
	Total           int64                  `firestore:"total"`
	CouponID        *string                `firestore:"couponId"`
	CouponCode      *string                `firestore:"couponCode,omitempty"`
	Status          string                 `firestore:"status"`
	AddressID       *string                `firestore:"addressId,omitempty"`
	DeliveryAreaID  *string                `firestore:"deliveryAreaId,omitempty"`
	PaymentMethod   string                 `firestore:"paymentMethod"`
	Pickup          bool                   `firestore:"pickup"`
	Notes           string                 `firestore:"notes,omitempty"`
	RejectionReason *string                `firestore:"rejectionReason,omitempty"`
	StatusHistory   []statusChangeDocument `firestore:"statusHistory"`
	CreatedAt       time.Time              `firestore:"createdAt"`
	UpdatedAt       time.Time              `firestore:"updatedAt"`
	AcceptedAt      *time.Time             `firestore:"acceptedAt,omitempty"`
	DeliveredAt     *time.Time             `firestore:"deliveredAt,omitempty"`
	CancelledAt     *time.Time             `firestore:"cancelledAt,omitempty"`
}

func decodeOrder(snap *firestore.DocumentSnapshot) (domain.Order, error) {
	var doc orderDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Order{}, err
	}
	order := domain.Order{
		ID:              snap.Ref.ID,
		Number:          doc.Number,
		CustomerID:      doc.CustomerID,
		VendorID:        doc.VendorID,
		DriverID:        cloneOptionalString(doc.DriverID),
		Subtotal:        doc.Subtotal,
		Discount:        doc.Discount,
		DeliveryFee:     doc.DeliveryFee,
		Total:           doc.Total,
		CouponID:        cloneOptionalString(doc.CouponID),
		CouponCode:      cloneOptionalString(doc.CouponCode),
		Status:          domain.OrderStatus(doc.Status),
		AddressID:       cloneOptionalString(doc.AddressID),
		DeliveryAreaID:  cloneOptionalString(doc.DeliveryAreaID),
		PaymentMethod:   domain.PaymentMethod(doc.PaymentMethod),
		Pickup:          doc.Pickup,
		Notes:           doc.Notes,
		RejectionReason: cloneOptionalString(doc.RejectionReason),
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
		AcceptedAt:      cloneOptionalTime(doc.AcceptedAt),
		DeliveredAt:     cloneOptionalTime(doc.DeliveredAt),
		CancelledAt:     cloneOptionalTime(doc.CancelledAt),
	}
	for _, line := range doc.Lines {
		order.Lines = append(order.Lines, domain.OrderLine{
			ItemID:      line.ItemID,
			Name:        line.Name,
			OptionID:    line.OptionID,
			OptionLabel: line.OptionLabel,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
		})
	}
	for _, change := range doc.StatusHistory {
		order.StatusHistory = append(order.StatusHistory, domain.OrderStatusChange{
			From:      domain.OrderStatus(change.From),
			To:        domain.OrderStatus(change.To),
			ActorID:   change.ActorID,
			ActorType: domain.UserType(change.ActorType),
			Reason:    change.Reason,
			At:        change.At,
		})
	}
	return order, nil
}

func fromDomainOrder(order domain.Order) orderDocument {
	doc := orderDocument{
		Number:          order.Number,
		CustomerID:      order.CustomerID,
		VendorID:        order.VendorID,
		DriverID:        cloneOptionalString(order.DriverID),
		Subtotal:        order.Subtotal,
		Discount:        order.Discount,
		DeliveryFee:     order.DeliveryFee,
		Total:           order.Total,
		CouponID:        cloneOptionalString(order.CouponID),
		CouponCode:      cloneOptionalString(order.CouponCode),
		Status:          string(order.Status),
		AddressID:       cloneOptionalString(order.AddressID),
		DeliveryAreaID:  cloneOptionalString(order.DeliveryAreaID),
		PaymentMethod:   string(order.PaymentMethod),
		Pickup:          order.Pickup,
		Notes:           order.Notes,
		RejectionReason: cloneOptionalString(order.RejectionReason),
		CreatedAt:       order.CreatedAt.UTC(),
		UpdatedAt:       order.UpdatedAt.UTC(),
		AcceptedAt:      cloneOptionalTime(order.AcceptedAt),
		DeliveredAt:     cloneOptionalTime(order.DeliveredAt),
		CancelledAt:     cloneOptionalTime(order.CancelledAt),
	}
	for _, line := range order.Lines {
		doc.Lines = append(doc.Lines, orderLineDocument{
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
		doc.StatusHistory = append(doc.StatusHistory, statusChangeDocument{
			From:      string(change.From),
			To:        string(change.To),
			ActorID:   change.ActorID,
			ActorType: string(change.ActorType),
			Reason:    change.Reason,
			At:        change.At.UTC(),
		})
	}
	return doc
}
