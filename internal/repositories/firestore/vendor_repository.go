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

const vendorsCollection = "vendors"

// VendorRepository reads vendor storefronts and stores their rating aggregate.
type VendorRepository struct {
	vendors *pfirestore.Collection[domain.Vendor]
}

var _ repositories.VendorRepository = (*VendorRepository)(nil)

// NewVendorRepository constructs a Firestore-backed vendor repository.
func NewVendorRepository(provider *pfirestore.Provider) (*VendorRepository, error) {
	if provider == nil {
		return nil, errors.New("vendor repository requires firestore provider")
	}
	return &VendorRepository{vendors: pfirestore.NewCollection(provider, vendorsCollection, decodeVendor)}, nil
}

// FindByID loads a vendor.
func (r *VendorRepository) FindByID(ctx context.Context, vendorID string) (domain.Vendor, error) {
	return r.vendors.Get(ctx, vendorID)
}

// FindByOwner loads the vendor owned by the given user.
func (r *VendorRepository) FindByOwner(ctx context.Context, ownerID string) (domain.Vendor, error) {
	found, err := r.vendors.List(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("ownerId", "==", ownerID).Limit(1)
	})
	if err != nil {
		return domain.Vendor{}, err
	}
	if len(found) == 0 {
		return domain.Vendor{}, pfirestore.NotFound("vendors.findByOwner", "vendor")
	}
	return found[0], nil
}

// UpdateRating stores the recomputed rating aggregate on the vendor.
func (r *VendorRepository) UpdateRating(ctx context.Context, vendorID string, summary domain.RatingSummary) error {
	ref, err := r.vendors.Doc(ctx, vendorID)
	if err != nil {
		return err
	}
	_, err = ref.Update(ctx, []firestore.Update{
		{Path: "ratingAverage", Value: summary.Average},
		{Path: "ratingCount", Value: summary.Count},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	return pfirestore.WrapError("vendors.updateRating", err)
}

type workingHoursDocument struct {
	Weekday int    `firestore:"weekday"`
	Opens   string `firestore:"opens"`
	Closes  string `firestore:"closes"`
}

type vendorDocument struct {
	OwnerID       string                 `firestore:"ownerId"`
	CategoryID    string                 `firestore:"categoryId,omitempty"`
	Name          string                 `firestore:"name"`
	WorkingHours  []workingHoursDocument `firestore:"workingHours,omitempty"`
	Active        bool                   `firestore:"active"`
	RatingAverage float64                `firestore:"ratingAverage"`
	RatingCount   int64                  `firestore:"ratingCount"`
	CreatedAt     time.Time              `firestore:"createdAt"`
	UpdatedAt     time.Time              `firestore:"updatedAt"`
}

func decodeVendor(snap *firestore.DocumentSnapshot) (domain.Vendor, error) {
	var doc vendorDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Vendor{}, err
	}
	vendor := domain.Vendor{
		ID:            snap.Ref.ID,
		OwnerID:       doc.OwnerID,
		CategoryID:    doc.CategoryID,
		Name:          doc.Name,
		Active:        doc.Active,
		RatingAverage: doc.RatingAverage,
		RatingCount:   doc.RatingCount,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
	for _, wh := range doc.WorkingHours {
		vendor.WorkingHours = append(vendor.WorkingHours, domain.WorkingHours{
			Weekday: time.Weekday(wh.Weekday),
			Opens:   wh.Opens,
			Closes:  wh.Closes,
		})
	}
	return vendor, nil
}
