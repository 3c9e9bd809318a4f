package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/genproto/googleapis/type/latlng"

	domain "github.com/foodhub/api/internal/domain"
	pfirestore "github.com/foodhub/api/internal/platform/firestore"
	"github.com/foodhub/api/internal/repositories"
)

const addressCollectionPattern = "users/%s/addresses"

// AddressRepository persists user addresses in a per-user subcollection.
type AddressRepository struct {
	provider *pfirestore.Provider
}

var _ repositories.AddressRepository = (*AddressRepository)(nil)

// NewAddressRepository constructs a Firestore-backed address repository.
func NewAddressRepository(provider *pfirestore.Provider) (*AddressRepository, error) {
	if provider == nil {
		return nil, errors.New("address repository requires firestore provider")
	}
	return &AddressRepository{provider: provider}, nil
}

// Save creates or replaces the address. When it is the default, every other default of the
// user is cleared in the same transaction.
func (r *AddressRepository) Save(ctx context.Context, addr domain.Address) (domain.Address, error) {
	coll, err := r.collection(ctx, addr.UserID)
	if err != nil {
		return domain.Address{}, err
	}
	id := strings.TrimSpace(addr.ID)
	if id == "" {
		return domain.Address{}, errors.New("address repository: address id is required")
	}
	docRef := coll.Doc(id)

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var others []*firestore.DocumentSnapshot
		if addr.IsDefault {
			snaps, err := r.defaults(tx, coll)
			if err != nil {
				return err
			}
			others = snaps
		}
		if err := tx.Set(docRef, fromDomainAddress(addr)); err != nil {
			return err
		}
		return clearDefaults(tx, others, id, addr.UpdatedAt)
	})
	if err != nil {
		return domain.Address{}, pfirestore.WrapError("addresses.save", err)
	}
	return addr, nil
}

// SetDefault marks one address as the default and clears the others atomically.
func (r *AddressRepository) SetDefault(ctx context.Context, userID string, addressID string) (domain.Address, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return domain.Address{}, err
	}
	id := strings.TrimSpace(addressID)
	if id == "" {
		return domain.Address{}, errors.New("address repository: address id is required")
	}

	var saved domain.Address
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef := coll.Doc(id)
		snap, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		addr, err := decodeAddress(snap)
		if err != nil {
			return err
		}
		others, err := r.defaults(tx, coll)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := tx.Update(docRef, []firestore.Update{
			{Path: "isDefault", Value: true},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return err
		}
		if err := clearDefaults(tx, others, id, now); err != nil {
			return err
		}
		addr.IsDefault = true
		addr.UpdatedAt = now
		saved = addr
		return nil
	})
	if err != nil {
		return domain.Address{}, pfirestore.WrapError("addresses.setDefault", err)
	}
	return saved, nil
}

// Delete removes the address; a missing document is reported as not found.
func (r *AddressRepository) Delete(ctx context.Context, userID string, addressID string) error {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return err
	}
	id := strings.TrimSpace(addressID)
	if id == "" {
		return errors.New("address repository: address id is required")
	}
	if _, err := coll.Doc(id).Delete(ctx, firestore.Exists); err != nil {
		return pfirestore.WrapError("addresses.delete", err)
	}
	return nil
}

// FindByID loads one address of the user.
func (r *AddressRepository) FindByID(ctx context.Context, userID string, addressID string) (domain.Address, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return domain.Address{}, err
	}
	id := strings.TrimSpace(addressID)
	if id == "" {
		return domain.Address{}, errors.New("address repository: address id is required")
	}
	snap, err := coll.Doc(id).Get(ctx)
	if err != nil {
		return domain.Address{}, pfirestore.WrapError("addresses.get", err)
	}
	return decodeAddress(snap)
}

// ListByUser returns every address of the user, oldest first.
func (r *AddressRepository) ListByUser(ctx context.Context, userID string) ([]domain.Address, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return nil, err
	}
	iter := coll.OrderBy("createdAt", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var results []domain.Address
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("addresses.list", err)
		}
		addr, err := decodeAddress(snap)
		if err != nil {
			return nil, err
		}
		results = append(results, addr)
	}
	return results, nil
}

func (r *AddressRepository) collection(ctx context.Context, userID string) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("address repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("address repository: user id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(fmt.Sprintf(addressCollectionPattern, uid)), nil
}

func (r *AddressRepository) defaults(tx *firestore.Transaction, coll *firestore.CollectionRef) ([]*firestore.DocumentSnapshot, error) {
	return tx.Documents(coll.Where("isDefault", "==", true)).GetAll()
}

func clearDefaults(tx *firestore.Transaction, snaps []*firestore.DocumentSnapshot, keepID string, now time.Time) error {
	for _, snap := range snaps {
		if snap.Ref.ID == keepID {
			continue
		}
		if err := tx.Update(snap.Ref, []firestore.Update{
			{Path: "isDefault", Value: false},
			{Path: "updatedAt", Value: now.UTC()},
		}); err != nil {
			return err
		}
	}
	return nil
}

type addressDocument struct {
	UserID         string         `firestore:"userId"`
	Line           string         `firestore:"line"`
	Location       *latlng.LatLng `firestore:"location"`
	DeliveryAreaID string         `firestore:"deliveryAreaId"`
	IsDefault      bool           `firestore:"isDefault"`
	Notes          string         `firestore:"notes,omitempty"`
	CreatedAt      time.Time      `firestore:"createdAt"`
	UpdatedAt      time.Time      `firestore:"updatedAt"`
}

func decodeAddress(snap *firestore.DocumentSnapshot) (domain.Address, error) {
	var doc addressDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Address{}, fmt.Errorf("decode address %s: %w", snap.Ref.ID, err)
	}
	addr := domain.Address{
		ID:             snap.Ref.ID,
		UserID:         doc.UserID,
		Line:           doc.Line,
		DeliveryAreaID: doc.DeliveryAreaID,
		IsDefault:      doc.IsDefault,
		Notes:          doc.Notes,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}
	if doc.Location != nil {
		addr.Location = domain.GeoPoint{Lat: doc.Location.GetLatitude(), Lng: doc.Location.GetLongitude()}
	}
	return addr, nil
}

func fromDomainAddress(addr domain.Address) addressDocument {
	return addressDocument{
		UserID:         addr.UserID,
		Line:           addr.Line,
		Location:       &latlng.LatLng{Latitude: addr.Location.Lat, Longitude: addr.Location.Lng},
		DeliveryAreaID: addr.DeliveryAreaID,
		IsDefault:      addr.IsDefault,
		Notes:          addr.Notes,
		CreatedAt:      addr.CreatedAt.UTC(),
		UpdatedAt:      addr.UpdatedAt.UTC(),
	}
}
