package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/foodhub/api/internal/domain"
	"github.com/foodhub/api/internal/platform/pagination"
	"github.com/foodhub/api/internal/platform/textutil"
	"github.com/foodhub/api/internal/repositories"
)

const (
	itemIDPrefix   = "itm_"
	optionIDPrefix = "opt_"
	maxItemName    = 120
)

// ItemServiceDeps bundles collaborators required to construct the item service.
type ItemServiceDeps struct {
	Items       repositories.ItemRepository
	Vendors     repositories.VendorRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type itemService struct {
	items   repositories.ItemRepository
	vendors repositories.VendorRepository
	clock   func() time.Time
	newID   func() string
	logger  func(context.Context, string, map[string]any)
}

// NewItemService wires dependencies into an ItemService implementation.
func NewItemService(deps ItemServiceDeps) (ItemService, error) {
	if deps.Items == nil {
		return nil, errors.New("item service: item repository is required")
	}
	if deps.Vendors == nil {
		return nil, errors.New("item service: vendor repository is required")
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
	return &itemService{
		items:   deps.Items,
		vendors: deps.Vendors,
		clock:   func() time.Time { return clock().UTC() },
		newID:   idGen,
		logger:  logger,
	}, nil
}

func (s *itemService) Create(ctx context.Context, cmd SaveItemCommand) (Item, error) {
	if err := cmd.Caller.validate(); err != nil {
		return Item{}, err
	}
	vendor, err := callerVendor(ctx, s.vendors, cmd.Caller)
	if err != nil {
		return Item{}, err
	}
	now := s.clock()
	item := Item{
		ID:        itemIDPrefix + s.newID(),
		VendorID:  vendor.ID,
		Active:    true,
		CreatedAt: now,
	}
	if err := s.fill(&item, cmd, now); err != nil {
		return Item{}, err
	}
	if err := s.items.Insert(ctx, item); err != nil {
		return Item{}, mapRepositoryError(err, ErrItemNotFound)
	}
	s.logger(ctx, "item.created", map[string]any{"itemId": item.ID, "vendorId": item.VendorID})
	return item, nil
}

func (s *itemService) Update(ctx context.Context, cmd SaveItemCommand) (Item, error) {
	item, err := s.owned(ctx, cmd.Caller, cmd.ItemID)
	if err != nil {
		return Item{}, err
	}
	if err := s.fill(&item, cmd, s.clock()); err != nil {
		return Item{}, err
	}
	if err := s.items.Update(ctx, item); err != nil {
		return Item{}, mapRepositoryError(err, ErrItemNotFound)
	}
	return item, nil
}

// Deactivate hides an item from new carts. Items are never deleted while orders reference them.
func (s *itemService) Deactivate(ctx context.Context, caller Caller, itemID string) (Item, error) {
	item, err := s.owned(ctx, caller, itemID)
	if err != nil {
		return Item{}, err
	}
	if !item.Active {
		return Item{}, fmt.Errorf("%w: item is already inactive", ErrConflict)
	}
	item.Active = false
	item.UpdatedAt = s.clock()
	if err := s.items.Update(ctx, item); err != nil {
		return Item{}, mapRepositoryError(err, ErrItemNotFound)
	}
	s.logger(ctx, "item.deactivated", map[string]any{"itemId": item.ID, "vendorId": item.VendorID})
	return item, nil
}

func (s *itemService) List(ctx context.Context, caller Caller, pager Pagination) (domain.CursorPage[Item], error) {
	if err := caller.validate(); err != nil {
		return domain.CursorPage[Item]{}, err
	}
	vendor, err := callerVendor(ctx, s.vendors, caller)
	if err != nil {
		return domain.CursorPage[Item]{}, err
	}
	page, err := s.items.ListByVendor(ctx, repositories.ItemListFilter{
		VendorID:   vendor.ID,
		Pagination: pagination.Normalize(pager, pagination.Options{}),
	})
	if err != nil {
		return domain.CursorPage[Item]{}, mapRepositoryError(err, nil)
	}
	return page, nil
}

func (s *itemService) owned(ctx context.Context, caller Caller, itemID string) (Item, error) {
	if err := caller.validate(); err != nil {
		return Item{}, err
	}
	item, err := RequireFound(ctx, itemID, ErrItemNotFound, s.items.FindByID)
	if err != nil {
		return Item{}, err
	}
	if caller.IsAdmin() {
		return item, nil
	}
	vendor, err := callerVendor(ctx, s.vendors, caller)
	if err != nil {
		return Item{}, err
	}
	if vendor.ID != item.VendorID {
		return Item{}, ErrNotOwner
	}
	return item, nil
}

func (s *itemService) fill(item *Item, cmd SaveItemCommand, now time.Time) error {
	name := textutil.PlainText(cmd.Name, maxItemName)
	if name == "" {
		return fmt.Errorf("%w: item name is required", ErrInvalidInput)
	}
	if cmd.BasePrice < 0 {
		return fmt.Errorf("%w: base price must not be negative", ErrInvalidInput)
	}
	options := make([]domain.ItemOption, 0, len(cmd.Options))
	for i, opt := range cmd.Options {
		opt.Label = textutil.PlainText(opt.Label, maxItemName)
		if opt.Label == "" {
			return fmt.Errorf("%w: option %d needs a label", ErrInvalidInput, i)
		}
		if opt.Price < 0 {
			return fmt.Errorf("%w: option %s price must not be negative", ErrInvalidInput, opt.Label)
		}
		if opt.ID = strings.TrimSpace(opt.ID); opt.ID == "" {
			opt.ID = optionIDPrefix + s.newID()
		}
		if slices.ContainsFunc(options, func(o domain.ItemOption) bool { return o.ID == opt.ID }) {
			return fmt.Errorf("%w: duplicate option id %s", ErrInvalidInput, opt.ID)
		}
		options = append(options, opt)
	}
	slices.SortStableFunc(options, func(a, b domain.ItemOption) int { return a.Order - b.Order })

	if d := cmd.Discount; d != nil {
		if err := validateDiscount(d.Type, d.Value); err != nil {
			return err
		}
		if d.StartsAt != nil && d.EndsAt != nil && d.EndsAt.Before(*d.StartsAt) {
			return fmt.Errorf("%w: discount window ends before it starts", ErrInvalidInput)
		}
		discount := *d
		discount.StartsAt = utcPtr(d.StartsAt)
		discount.EndsAt = utcPtr(d.EndsAt)
		item.Discount = &discount
	} else {
		item.Discount = nil
	}

	item.Name = name
	item.CategoryID = strings.TrimSpace(cmd.CategoryID)
	item.BasePrice = cmd.BasePrice
	item.Options = options
	item.Available = cmd.Available
	item.UpdatedAt = now
	return nil
}
