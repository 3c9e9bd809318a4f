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

const ratesCollection = "rates"

// RateRepository persists vendor ratings under the deterministic ID <vendorID>_<userID>.
type RateRepository struct {
	provider *pfirestore.Provider
	rates    *pfirestore.Collection[domain.Rate]
}

var _ repositories.RateRepository = (*RateRepository)(nil)

// NewRateRepository constructs a Firestore-backed rate repository.
func NewRateRepository(provider *pfirestore.Provider) (*RateRepository, error) {
	if provider == nil {
		return nil, errors.New("rate repository requires firestore provider")
	}
	return &RateRepository{
		provider: provider,
		rates:    pfirestore.NewCollection(provider, ratesCollection, decodeRate),
	}, nil
}

func rateID(vendorID, userID string) string {
	return vendorID + "_" + userID
}

// Upsert writes the rate, keeping the original creation time when it already exists.
func (r *RateRepository) Upsert(ctx context.Context, rate domain.Rate) (domain.Rate, error) {
	rate.ID = rateID(rate.VendorID, rate.UserID)
	ref, err := r.rates.Doc(ctx, rate.ID)
	if err != nil {
		return domain.Rate{}, err
	}
	saved := rate
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		saved = rate
		snap, err := tx.Get(ref)
		switch status.Code(err) {
		case codes.OK:
			existing, err := decodeRate(snap)
			if err != nil {
				return err
			}
			saved.CreatedAt = existing.CreatedAt
		case codes.NotFound:
		default:
			return err
		}
		return tx.Set(ref, fromDomainRate(saved))
	})
	if err != nil {
		return domain.Rate{}, pfirestore.WrapError("rates.upsert", err)
	}
	return saved, nil
}

// Delete removes the caller's rate of the vendor.
func (r *RateRepository) Delete(ctx context.Context, vendorID string, userID string) error {
	ref, err := r.rates.Doc(ctx, rateID(vendorID, userID))
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx, firestore.Exists); err != nil {
		return pfirestore.WrapError("rates.delete", err)
	}
	return nil
}

// Find loads the caller's rate of the vendor.
func (r *RateRepository) Find(ctx context.Context, vendorID string, userID string) (domain.Rate, error) {
	return r.rates.Get(ctx, rateID(vendorID, userID))
}

// Summarize averages and counts a vendor's rates with a server-side aggregation.
func (r *RateRepository) Summarize(ctx context.Context, vendorID string) (domain.RatingSummary, error) {
	coll, err := r.rates.Ref(ctx)
	if err != nil {
		return domain.RatingSummary{}, err
	}
	query := coll.Where("vendorId", "==", vendorID)
	result, err := query.NewAggregationQuery().
		WithCount("count").
		WithAvg("value", "average").
		Get(ctx)
	if err != nil {
		return domain.RatingSummary{}, pfirestore.WrapError("rates.summarize", err)
	}
	count, err := aggregateInt(result, "count")
	if err != nil {
		return domain.RatingSummary{}, err
	}
	if count == 0 {
		return domain.RatingSummary{}, nil
	}
	average, err := aggregateFloat(result, "average")
	if err != nil {
		return domain.RatingSummary{}, err
	}
	return domain.RatingSummary{Average: average, Count: count}, nil
}

type rateDocument struct {
	VendorID  string    `firestore:"vendorId"`
	UserID    string    `firestore:"userId"`
	Value     int       `firestore:"value"`
	Comment   string    `firestore:"comment,omitempty"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func decodeRate(snap *firestore.DocumentSnapshot) (domain.Rate, error) {
	var doc rateDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Rate{}, err
	}
	return domain.Rate{
		ID:        snap.Ref.ID,
		VendorID:  doc.VendorID,
		UserID:    doc.UserID,
		Value:     doc.Value,
		Comment:   doc.Comment,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

func fromDomainRate(rate domain.Rate) rateDocument {
	return rateDocument{
		VendorID:  rate.VendorID,
		UserID:    rate.UserID,
		Value:     rate.Value,
		Comment:   rate.Comment,
		CreatedAt: rate.CreatedAt.UTC(),
		UpdatedAt: rate.UpdatedAt.UTC(),
	}
}
