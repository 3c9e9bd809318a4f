package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/foodhub/api/internal/domain"
	pfirestore "github.com/foodhub/api/internal/platform/firestore"
	"github.com/foodhub/api/internal/repositories"
)

const deliveryAreasCollection = "deliveryAreas"

// DeliveryAreaRepository persists delivery areas. Names are unique case-insensitively.
type DeliveryAreaRepository struct {
	provider *pfirestore.Provider
	areas    *pfirestore.Collection[domain.DeliveryArea]
}

var _ repositories.DeliveryAreaRepository = (*DeliveryAreaRepository)(nil)

// NewDeliveryAreaRepository constructs a Firestore-backed delivery area repository.
func NewDeliveryAreaRepository(provider *pfirestore.Provider) (*DeliveryAreaRepository, error) {
	if provider == nil {
		return nil, errors.New("delivery area repository requires firestore provider")
	}
	return &DeliveryAreaRepository{
		provider: provider,
		areas:    pfirestore.NewCollection(provider, deliveryAreasCollection, decodeDeliveryArea),
	}, nil
}

// Insert creates the area, failing with a conflict when the name is taken.
func (r *DeliveryAreaRepository) Insert(ctx context.Context, area domain.DeliveryArea) error {
	coll, err := r.areas.Ref(ctx)
	if err != nil {
		return err
	}
	doc := fromDomainDeliveryArea(area)
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Documents(coll.Where("nameKey", "==", doc.NameKey).Limit(1)).GetAll()
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return pfirestore.Conflict("deliveryAreas.insert", "delivery area name already exists")
		}
		return tx.Create(coll.Doc(area.ID), doc)
	})
}

// FindByID loads one area.
func (r *DeliveryAreaRepository) FindByID(ctx context.Context, areaID string) (domain.DeliveryArea, error) {
	return r.areas.Get(ctx, areaID)
}

// List returns every area ordered by name.
func (r *DeliveryAreaRepository) List(ctx context.Context, activeOnly bool) ([]domain.DeliveryArea, error) {
	return r.areas.List(ctx, func(q firestore.Query) firestore.Query {
		if activeOnly {
			q = q.Where("active", "==", true)
		}
		return q.OrderBy("name", firestore.Asc)
	})
}

type deliveryAreaDocument struct {
	Name             string    `firestore:"name"`
	NameKey          string    `firestore:"nameKey"`
	Fee              int64     `firestore:"fee"`
	EstimatedMinutes int       `firestore:"estimatedMinutes"`
	Active           bool      `firestore:"active"`
	CreatedAt        time.Time `firestore:"createdAt"`
	UpdatedAt        time.Time `firestore:"updatedAt"`
}

func decodeDeliveryArea(snap *firestore.DocumentSnapshot) (domain.DeliveryArea, error) {
	var doc deliveryAreaDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.DeliveryArea{}, err
	}
	return domain.DeliveryArea{
		ID:               snap.Ref.ID,
		Name:             doc.Name,
		Fee:              doc.Fee,
		EstimatedMinutes: doc.EstimatedMinutes,
		Active:           doc.Active,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}, nil
}

func fromDomainDeliveryArea(area domain.DeliveryArea) deliveryAreaDocument {
	return deliveryAreaDocument{
		Name:             area.Name,
		NameKey:          strings.ToLower(strings.TrimSpace(area.Name)),
		Fee:              area.Fee,
		EstimatedMinutes: area.EstimatedMinutes,
		Active:           area.Active,
		CreatedAt:        area.CreatedAt.UTC(),
		UpdatedAt:        area.UpdatedAt.UTC(),
	}
}
