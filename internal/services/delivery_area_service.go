package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/foodhub/api/internal/platform/textutil"
	"github.com/foodhub/api/internal/repositories"
)

const areaIDPrefix = "area_"

// DeliveryAreaServiceDeps bundles collaborators required to construct the delivery area service.
type DeliveryAreaServiceDeps struct {
	DeliveryAreas repositories.DeliveryAreaRepository
	Clock         func() time.Time
	IDGenerator   func() string
}

type deliveryAreaService struct {
	areas repositories.DeliveryAreaRepository
	clock func() time.Time
	newID func() string
}

// NewDeliveryAreaService wires dependencies into a DeliveryAreaService implementation.
func NewDeliveryAreaService(deps DeliveryAreaServiceDeps) (DeliveryAreaService, error) {
	if deps.DeliveryAreas == nil {
		return nil, errors.New("delivery area service: repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	return &deliveryAreaService{
		areas: deps.DeliveryAreas,
		clock: func() time.Time { return clock().UTC() },
		newID: idGen,
	}, nil
}

func (s *deliveryAreaService) Create(ctx context.Context, cmd CreateDeliveryAreaCommand) (DeliveryArea, error) {
	name := textutil.PlainText(cmd.Name, 80)
	if name == "" {
		return DeliveryArea{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if cmd.Fee < 0 || cmd.EstimatedMinutes < 0 {
		return DeliveryArea{}, fmt.Errorf("%w: fee and estimated time must not be negative", ErrInvalidInput)
	}
	now := s.clock()
	area := DeliveryArea{
		ID:               areaIDPrefix + s.newID(),
		Name:             name,
		Fee:              cmd.Fee,
		EstimatedMinutes: cmd.EstimatedMinutes,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.areas.Insert(ctx, area); err != nil {
		err = mapRepositoryError(err, nil)
		if errors.Is(err, ErrConflict) {
			return DeliveryArea{}, fmt.Errorf("%w: delivery area %q", ErrDuplicate, name)
		}
		return DeliveryArea{}, err
	}
	return area, nil
}

func (s *deliveryAreaService) List(ctx context.Context, activeOnly bool) ([]DeliveryArea, error) {
	areas, err := s.areas.List(ctx, activeOnly)
	if err != nil {
		return nil, mapRepositoryError(err, nil)
	}
	return areas, nil
}
