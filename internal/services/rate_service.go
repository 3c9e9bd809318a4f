package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	domain "github.com/foodhub/api/internal/domain"
	"github.com/foodhub/api/internal/platform/textutil"
	"github.com/foodhub/api/internal/repositories"
)

const maxCommentLength = 1000

// RateServiceDeps bundles collaborators required to construct the rate service.
type RateServiceDeps struct {
	Rates      repositories.RateRepository
	Vendors    repositories.VendorRepository
	Aggregator RatingAggregator
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type rateService struct {
	rates      repositories.RateRepository
	vendors    repositories.VendorRepository
	aggregator RatingAggregator
	clock      func() time.Time
	logger     func(context.Context, string, map[string]any)
}

// NewRateService wires dependencies into a RateService. When no aggregator is supplied the
// repository backed one is used.
func NewRateService(deps RateServiceDeps) (RateService, error) {
	if deps.Rates == nil {
		return nil, errors.New("rate service: rate repository is required")
	}
	if deps.Vendors == nil {
		return nil, errors.New("rate service: vendor repository is required")
	}
	aggregator := deps.Aggregator
	if aggregator == nil {
		aggregator = NewRatingAggregator(deps.Rates, deps.Vendors)
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &rateService{
		rates:      deps.Rates,
		vendors:    deps.Vendors,
		aggregator: aggregator,
		clock:      func() time.Time { return clock().UTC() },
		logger:     logger,
	}, nil
}

// RateID is the deterministic document ID of a user's rating of a vendor.
func RateID(vendorID, userID string) string {
	return vendorID + "_" + userID
}

func (s *rateService) Upsert(ctx context.Context, cmd UpsertRateCommand) (Rate, error) {
	if err := cmd.Caller.validate(); err != nil {
		return Rate{}, err
	}
	if cmd.Value < 1 || cmd.Value > 5 {
		return Rate{}, fmt.Errorf("%w: rate must be between 1 and 5", ErrInvalidInput)
	}
	vendor, err := RequireFound(ctx, cmd.VendorID, ErrVendorNotFound, s.vendors.FindByID)
	if err != nil {
		return Rate{}, err
	}

	now := s.clock()
	rate, err := s.rates.Upsert(ctx, Rate{
		ID:        RateID(vendor.ID, cmd.Caller.ID),
		VendorID:  vendor.ID,
		UserID:    cmd.Caller.ID,
		Value:     cmd.Value,
		Comment:   textutil.PlainText(cmd.Comment, maxCommentLength),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Rate{}, mapRepositoryError(err, ErrVendorNotFound)
	}
	s.recompute(ctx, vendor.ID)
	return rate, nil
}

func (s *rateService) Delete(ctx context.Context, caller Caller, vendorID string) error {
	if err := caller.validate(); err != nil {
		return err
	}
	rate, err := s.rates.Find(ctx, vendorID, caller.ID)
	if err != nil {
		return mapRepositoryError(err, ErrRateNotFound)
	}
	if err := RequireOwner(caller, rate.UserID); err != nil {
		return err
	}
	if err := s.rates.Delete(ctx, rate.VendorID, rate.UserID); err != nil {
		return mapRepositoryError(err, ErrRateNotFound)
	}
	s.recompute(ctx, rate.VendorID)
	return nil
}

// recompute refreshes the vendor aggregate after a committed rate write. A failure leaves the
// previous aggregate in place until the next write.
func (s *rateService) recompute(ctx context.Context, vendorID string) {
	summary, err := s.aggregator.Recompute(ctx, vendorID)
	if err != nil {
		s.logger(ctx, "rate.aggregate.recompute_failed", map[string]any{"vendorId": vendorID, "error": err.Error()})
		return
	}
	s.logger(ctx, "rate.aggregate.recomputed", map[string]any{"vendorId": vendorID, "average": summary.Average, "count": summary.Count})
}

type ratingAggregator struct {
	rates   repositories.RateRepository
	vendors repositories.VendorRepository
}

// NewRatingAggregator returns an aggregator that summarises rates in the store and writes the
// result onto the vendor.
func NewRatingAggregator(rates repositories.RateRepository, vendors repositories.VendorRepository) RatingAggregator {
	return &ratingAggregator{rates: rates, vendors: vendors}
}

func (a *ratingAggregator) Recompute(ctx context.Context, vendorID string) (domain.RatingSummary, error) {
	summary, err := a.rates.Summarize(ctx, vendorID)
	if err != nil {
		return domain.RatingSummary{}, mapRepositoryError(err, ErrVendorNotFound)
	}
	if summary.Count == 0 {
		summary.Average = 0
	}
	summary.Average = math.Round(summary.Average*100) / 100
	if err := a.vendors.UpdateRating(ctx, vendorID, summary); err != nil {
		return domain.RatingSummary{}, mapRepositoryError(err, ErrVendorNotFound)
	}
	return summary, nil
}
