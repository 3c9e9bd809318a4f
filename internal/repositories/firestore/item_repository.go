package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/foodhub/api/internal/domain"
	pfirestore "github.com/foodhub/api/internal/platform/firestore"
	"github.com/foodhub/api/internal/repositories"
)

const itemsCollection = "items"

// ItemRepository persists vendor menu items in Firestore.
type ItemRepository struct {
	provider *pfirestore.Provider
	items    *pfirestore.Collection[domain.Item]
}

var _ repositories.ItemRepository = (*ItemRepository)(nil)

// NewItemRepository constructs a Firestore-backed item repository.
func NewItemRepository(provider *pfirestore.Provider) (*ItemRepository, error) {
	if provider == nil {
		return nil, errors.New("item repository requires firestore provider")
	}
	return &ItemRepository{
		provider: provider,
		items:    pfirestore.NewCollection(provider, itemsCollection, decodeItem),
	}, nil
}

// Insert creates the item document; an existing ID is a conflict.
func (r *ItemRepository) Insert(ctx context.Context, item domain.Item) error {
	ref, err := r.items.Doc(ctx, item.ID)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, fromDomainItem(item)); err != nil {
		return pfirestore.WrapError("items.insert", err)
	}
	return nil
}

// Update replaces an existing item document.
func (r *ItemRepository) Update(ctx context.Context, item domain.Item) error {
	ref, err := r.items.Doc(ctx, item.ID)
	if err != nil {
		return err
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			return pfirestore.WrapError("items.update", err)
		}
		return tx.Set(ref, fromDomainItem(item))
	})
}

// FindByID loads a single item.
func (r *ItemRepository) FindByID(ctx context.Context, itemID string) (domain.Item, error) {
	return r.items.Get(ctx, itemID)
}

// FindByIDs batch-loads items; missing documents are left out of the result.
func (r *ItemRepository) FindByIDs(ctx context.Context, itemIDs []string) (map[string]domain.Item, error) {
	result := make(map[string]domain.Item, len(itemIDs))
	if len(itemIDs) == 0 {
		return result, nil
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	refs := make([]*firestore.DocumentRef, 0, len(itemIDs))
	seen := make(map[string]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		ref, err := r.items.Doc(ctx, id)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	snaps, err := client.GetAll(ctx, refs)
	if err != nil {
		return nil, pfirestore.WrapError("items.getAll", err)
	}
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		item, err := decodeItem(snap)
		if err != nil {
			return nil, fmt.Errorf("firestore: decode items/%s: %w", snap.Ref.ID, err)
		}
		result[item.ID] = item
	}
	return result, nil
}

// ListByVendor pages through a vendor's menu ordered by name.
func (r *ItemRepository) ListByVendor(ctx context.Context, filter repositories.ItemListFilter) (domain.CursorPage[domain.Item], error) {
	cursor, err := pageCursor(filter.Pagination)
	if err != nil {
		return domain.CursorPage[domain.Item]{}, err
	}
	page, err := r.items.Paginate(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("vendorId", "==", filter.VendorID)
		if filter.ActiveOnly {
			q = q.Where("active", "==", true)
		}
		return q.OrderBy("name", firestore.Asc).OrderBy(firestore.DocumentID, firestore.Asc)
	}, filter.Pagination.PageSize, cursor)
	if err != nil {
		return domain.CursorPage[domain.Item]{}, err
	}
	return toCursorPage(page.Items, page.NextCursor), nil
}

type itemOptionDocument struct {
	ID    string `firestore:"id"`
	Label string `firestore:"label"`
	Price int64  `firestore:"price"`
	Order int    `firestore:"order"`
}

type itemDiscountDocument struct {
	Type     string     `firestore:"type"`
	Value    int64      `firestore:"value"`
	StartsAt *time.Time `firestore:"startsAt,omitempty"`
	EndsAt   *time.Time `firestore:"endsAt,omitempty"`
	Active   bool       `firestore:"active"`
}

type itemDocument struct {
	VendorID   string                `firestore:"vendorId"`
	CategoryID string                `firestore:"categoryId,omitempty"`
	Name       string                `firestore:"name"`
	BasePrice  int64                 `firestore:"basePrice"`
	Options    []itemOptionDocument  `firestore:"options,omitempty"`
	Discount   *itemDiscountDocument `firestore:"discount,omitempty"`
	Active     bool                  `firestore:"active"`
	Available  bool                  `firestore:"available"`
	CreatedAt  time.Time             `firestore:"createdAt"`
	UpdatedAt  time.Time             `firestore:"updatedAt"`
}

func decodeItem(snap *firestore.DocumentSnapshot) (domain.Item, error) {
	var doc itemDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Item{}, err
	}
	item := domain.Item{
		ID:         snap.Ref.ID,
		VendorID:   doc.VendorID,
		CategoryID: doc.CategoryID,
		Name:       doc.Name,
		BasePrice:  doc.BasePrice,
		Active:     doc.Active,
		Available:  doc.Available,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
	for _, opt := range doc.Options {
		item.Options = append(item.Options, domain.ItemOption{ID: opt.ID, Label: opt.Label, Price: opt.Price, Order: opt.Order})
	}
	if d := doc.Discount; d != nil {
		item.Discount = &domain.ItemDiscount{
			Type:     domain.DiscountType(d.Type),
			Value:    d.Value,
			StartsAt: cloneOptionalTime(d.StartsAt),
			EndsAt:   cloneOptionalTime(d.EndsAt),
			Active:   d.Active,
		}
	}
	return item, nil
}

func fromDomainItem(item domain.Item) itemDocument {
	doc := itemDocument{
		VendorID:   item.VendorID,
		CategoryID: item.CategoryID,
		Name:       item.Name,
		BasePrice:  item.BasePrice,
		Active:     item.Active,
		Available:  item.Available,
		CreatedAt:  item.CreatedAt.UTC(),
		UpdatedAt:  item.UpdatedAt.UTC(),
	}
	for _, opt := range item.Options {
		doc.Options = append(doc.Options, itemOptionDocument{ID: opt.ID, Label: opt.Label, Price: opt.Price, Order: opt.Order})
	}
	if d := item.Discount; d != nil {
		doc.Discount = &itemDiscountDocument{
			Type:     string(d.Type),
			Value:    d.Value,
			StartsAt: cloneOptionalTime(d.StartsAt),
			EndsAt:   cloneOptionalTime(d.EndsAt),
			Active:   d.Active,
		}
	}
	return doc
}
