package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/foodhub/api/internal/domain"
	pfirestore "github.com/foodhub/api/internal/platform/firestore"
	"github.com/foodhub/api/internal/repositories"
)

const couponsCollection = "coupons"

// CouponRepository persists coupons. Codes are stored canonicalised by the service.
type CouponRepository struct {
	provider *pfirestore.Provider
	coupons  *pfirestore.Collection[domain.Coupon]
}

var _ repositories.CouponRepository = (*CouponRepository)(nil)

// NewCouponRepository constructs a Firestore-backed coupon repository.
func NewCouponRepository(provider *pfirestore.Provider) (*CouponRepository, error) {
	if provider == nil {
		return nil, errors.New("coupon repository requires firestore provider")
	}
	return &CouponRepository{
		provider: provider,
		coupons:  pfirestore.NewCollection(provider, couponsCollection, decodeCoupon),
	}, nil
}

// Insert creates the coupon, failing with a conflict when the code is taken.
func (r *CouponRepository) Insert(ctx context.Context, coupon domain.Coupon) error {
	coll, err := r.coupons.Ref(ctx)
	if err != nil {
		return err
	}
	ref := coll.Doc(coupon.ID)
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Documents(coll.Where("code", "==", coupon.Code).Limit(1)).GetAll()
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return pfirestore.Conflict("coupons.insert", "coupon code already exists")
		}
		return tx.Create(ref, fromDomainCoupon(coupon))
	})
}

// Update rewrites the coupon definition. UsedCount is owned by order creation and is kept as
// stored.
func (r *CouponRepository) Update(ctx context.Context, coupon domain.Coupon) error {
	ref, err := r.coupons.Doc(ctx, coupon.ID)
	if err != nil {
		return err
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current, err := r.coupons.GetTx(ctx, tx, coupon.ID)
		if err != nil {
			return err
		}
		coupon.UsedCount = current.UsedCount
		return tx.Set(ref, fromDomainCoupon(coupon))
	})
}

// FindByID loads a coupon by document ID.
func (r *CouponRepository) FindByID(ctx context.Context, couponID string) (domain.Coupon, error) {
	return r.coupons.Get(ctx, couponID)
}

// FindByCode loads a coupon by its canonical code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (domain.Coupon, error) {
	found, err := r.coupons.List(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("code", "==", code).Limit(1)
	})
	if err != nil {
		return domain.Coupon{}, err
	}
	if len(found) == 0 {
		return domain.Coupon{}, pfirestore.NotFound("coupons.findByCode", "coupon")
	}
	return found[0], nil
}

// List pages through coupons newest first.
func (r *CouponRepository) List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Coupon], error) {
	cursor, err := pageCursor(pager)
	if err != nil {
		return domain.CursorPage[domain.Coupon]{}, err
	}
	page, err := r.coupons.Paginate(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("createdAt", firestore.Desc)
	}, pager.PageSize, cursor)
	if err != nil {
		return domain.CursorPage[domain.Coupon]{}, err
	}
	return toCursorPage(page.Items, page.NextCursor), nil
}

type couponDocument struct {
	Code             string     `firestore:"code"`
	Type             string     `firestore:"type"`
	Value            int64      `firestore:"value"`
	MinOrderValue    *int64     `firestore:"minOrderValue,omitempty"`
	MaxDiscountValue *int64     `firestore:"maxDiscountValue,omitempty"`
	StartsAt         *time.Time `firestore:"startsAt,omitempty"`
	EndsAt           *time.Time `firestore:"endsAt,omitempty"`
	Active           bool       `firestore:"active"`
	PerUserLimit     int64      `firestore:"perUserLimit"`
	UsageLimit       int64      `firestore:"usageLimit"`
	UsedCount        int64      `firestore:"usedCount"`
	AllowedUserIDs   []string   `firestore:"allowedUserIds,omitempty"`
	AllowedVendorIDs []string   `firestore:"allowedVendorIds,omitempty"`
	CreatedAt        time.Time  `firestore:"createdAt"`
	UpdatedAt        time.Time  `firestore:"updatedAt"`
}

func decodeCoupon(snap *firestore.DocumentSnapshot) (domain.Coupon, error) {
	var doc couponDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Coupon{}, err
	}
	return domain.Coupon{
		ID:               snap.Ref.ID,
		Code:             doc.Code,
		Type:             domain.DiscountType(doc.Type),
		Value:            doc.Value,
		MinOrderValue:    cloneOptionalInt(doc.MinOrderValue),
		MaxDiscountValue: cloneOptionalInt(doc.MaxDiscountValue),
		StartsAt:         cloneOptionalTime(doc.StartsAt),
		EndsAt:           cloneOptionalTime(doc.EndsAt),
		Active:           doc.Active,
		PerUserLimit:     doc.PerUserLimit,
		UsageLimit:       doc.UsageLimit,
		UsedCount:        doc.UsedCount,
		AllowedUserIDs:   cloneStrings(doc.AllowedUserIDs),
		AllowedVendorIDs: cloneStrings(doc.AllowedVendorIDs),
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}, nil
}

func fromDomainCoupon(c domain.Coupon) couponDocument {
	return couponDocument{
		Code:             c.Code,
		Type:             string(c.Type),
		Value:            c.Value,
		MinOrderValue:    cloneOptionalInt(c.MinOrderValue),
		MaxDiscountValue: cloneOptionalInt(c.MaxDiscountValue),
		StartsAt:         cloneOptionalTime(c.StartsAt),
		EndsAt:           cloneOptionalTime(c.EndsAt),
		Active:           c.Active,
		PerUserLimit:     c.PerUserLimit,
		UsageLimit:       c.UsageLimit,
		UsedCount:        c.UsedCount,
		AllowedUserIDs:   cloneStrings(c.AllowedUserIDs),
		AllowedVendorIDs: cloneStrings(c.AllowedVendorIDs),
		CreatedAt:        c.CreatedAt.UTC(),
		UpdatedAt:        c.UpdatedAt.UTC(),
	}
}
