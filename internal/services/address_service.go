package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/foodhub/api/internal/platform/textutil"
	"github.com/foodhub/api/internal/repositories"
)

const (
	addressIDPrefix   = "adr_"
	maxAddressLength  = 300
	maxAddressNoteLen = 300
)

// AddressServiceDeps bundles collaborators required to construct the address service.
type AddressServiceDeps struct {
	Addresses     repositories.AddressRepository
	DeliveryAreas repositories.DeliveryAreaRepository
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type addressService struct {
	addresses repositories.AddressRepository
	areas     repositories.DeliveryAreaRepository
	clock     func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

// NewAddressService wires dependencies into an AddressService implementation.
func NewAddressService(deps AddressServiceDeps) (AddressService, error) {
	if deps.Addresses == nil {
		return nil, errors.New("address service: address repository is required")
	}
	if deps.DeliveryAreas == nil {
		return nil, errors.New("address service: delivery area repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &addressService{
		addresses: deps.Addresses,
		areas:     deps.DeliveryAreas,
		clock:     func() time.Time { return clock().UTC() },
		newID:     idGen,
		logger:    logger,
	}, nil
}

func (s *addressService) Create(ctx context.Context, cmd SaveAddressCommand) (Address, error) {
	if err := cmd.Caller.validate(); err != nil {
		return Address{}, err
	}
	if err := s.validate(ctx, cmd); err != nil {
		return Address{}, err
	}
	existing, err := s.addresses.ListByUser(ctx, cmd.Caller.ID)
	if err != nil {
		return Address{}, mapRepositoryError(err, nil)
	}

	now := s.clock()
	addr := Address{
		ID:             addressIDPrefix + s.newID(),
		UserID:         cmd.Caller.ID,
		Line:           textutil.PlainText(cmd.Line, maxAddressLength),
		Location:       cmd.Location,
		DeliveryAreaID: strings.TrimSpace(cmd.DeliveryAreaID),
		IsDefault:      cmd.MakeDefault || len(existing) == 0,
		Notes:          textutil.PlainText(cmd.Notes, maxAddressNoteLen),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	saved, err := s.addresses.Save(ctx, addr)
	if err != nil {
		return Address{}, mapRepositoryError(err, ErrAddressNotFound)
	}
	s.logger(ctx, "address.created", map[string]any{"addressId": saved.ID, "userId": saved.UserID, "default": saved.IsDefault})
	return saved, nil
}

func (s *addressService) Update(ctx context.Context, cmd SaveAddressCommand) (Address, error) {
	addr, err := s.owned(ctx, cmd.Caller, cmd.AddressID)
	if err != nil {
		return Address{}, err
	}
	if err := s.validate(ctx, cmd); err != nil {
		return Address{}, err
	}
	addr.Line = textutil.PlainText(cmd.Line, maxAddressLength)
	addr.Location = cmd.Location
	addr.DeliveryAreaID = strings.TrimSpace(cmd.DeliveryAreaID)
	addr.Notes = textutil.PlainText(cmd.Notes, maxAddressNoteLen)
	if cmd.MakeDefault {
		addr.IsDefault = true
	}
	addr.UpdatedAt = s.clock()
	saved, err := s.addresses.Save(ctx, addr)
	if err != nil {
		return Address{}, mapRepositoryError(err, ErrAddressNotFound)
	}
	return saved, nil
}

func (s *addressService) Delete(ctx context.Context, caller Caller, addressID string) error {
	addr, err := s.owned(ctx, caller, addressID)
	if err != nil {
		return err
	}
	if err := s.addresses.Delete(ctx, addr.UserID, addr.ID); err != nil {
		return mapRepositoryError(err, ErrAddressNotFound)
	}
	s.logger(ctx, "address.deleted", map[string]any{"addressId": addr.ID, "userId": addr.UserID})
	if addr.IsDefault {
		s.promoteOldest(ctx, addr.UserID)
	}
	return nil
}

// promoteOldest makes the earliest created remaining address the default. The delete has
// already committed, so failures are logged rather than returned.
func (s *addressService) promoteOldest(ctx context.Context, userID string) {
	remaining, err := s.addresses.ListByUser(ctx, userID)
	if err != nil {
		s.logger(ctx, "address.defaultPromotionFailed", map[string]any{"userId": userID, "error": err.Error()})
		return
	}
	if len(remaining) == 0 {
		return
	}
	oldest := remaining[0]
	for _, a := range remaining[1:] {
		if a.CreatedAt.Before(oldest.CreatedAt) || (a.CreatedAt.Equal(oldest.CreatedAt) && a.ID < oldest.ID) {
			oldest = a
		}
	}
	if _, err := s.addresses.SetDefault(ctx, userID, oldest.ID); err != nil {
		s.logger(ctx, "address.defaultPromotionFailed", map[string]any{"userId": userID, "addressId": oldest.ID, "error": err.Error()})
	}
}

func (s *addressService) List(ctx context.Context, caller Caller) ([]Address, error) {
	if err := caller.validate(); err != nil {
		return nil, err
	}
	addrs, err := s.addresses.ListByUser(ctx, caller.ID)
	if err != nil {
		return nil, mapRepositoryError(err, nil)
	}
	return addrs, nil
}

func (s *addressService) SetDefault(ctx context.Context, caller Caller, addressID string) (Address, error) {
	addr, err := s.owned(ctx, caller, addressID)
	if err != nil {
		return Address{}, err
	}
	if addr.IsDefault {
		return addr, nil
	}
	updated, err := s.addresses.SetDefault(ctx, addr.UserID, addr.ID)
	if err != nil {
		return Address{}, mapRepositoryError(err, ErrAddressNotFound)
	}
	return updated, nil
}

func (s *addressService) owned(ctx context.Context, caller Caller, addressID string) (Address, error) {
	if err := caller.validate(); err != nil {
		return Address{}, err
	}
	addr, err := RequireFound(ctx, addressID, ErrAddressNotFound, func(ctx context.Context, id string) (Address, error) {
		return s.addresses.FindByID(ctx, caller.ID, id)
	})
	if err != nil {
		return Address{}, err
	}
	if err := RequireOwner(caller, addr.UserID); err != nil {
		return Address{}, err
	}
	return addr, nil
}

func (s *addressService) validate(ctx context.Context, cmd SaveAddressCommand) error {
	if strings.TrimSpace(cmd.Line) == "" {
		return fmt.Errorf("%w: address line is required", ErrInvalidInput)
	}
	if cmd.Location.Lat < -90 || cmd.Location.Lat > 90 || cmd.Location.Lng < -180 || cmd.Location.Lng > 180 {
		return fmt.Errorf("%w: location is out of range", ErrInvalidInput)
	}
	area, err := RequireFound(ctx, strings.TrimSpace(cmd.DeliveryAreaID), ErrDeliveryAreaMissing, s.areas.FindByID)
	if err != nil {
		return err
	}
	if !area.Active {
		return fmt.Errorf("%w: delivery area %s is not served", ErrInvalidInput, area.Name)
	}
	return nil
}

