package firestore

import (
	"context"
	"errors"
	"fmt"

	pfirestore "github.com/foodhub/api/internal/platform/firestore"
	"github.com/foodhub/api/internal/repositories"
)

// Registry exposes the Firestore repositories behind repositories.Registry.
type Registry struct {
	provider  *pfirestore.Provider
	items     *ItemRepository
	orders    *OrderRepository
	coupons   *CouponRepository
	areas     *DeliveryAreaRepository
	addresses *AddressRepository
	vendors   *VendorRepository
	rates     *RateRepository
	users     *UserRepository
	health    repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds every repository on the shared provider. health may be nil when no
// readiness probes are configured.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}
	reg := &Registry{provider: provider, health: health}
	var err error
	if reg.items, err = NewItemRepository(provider); err != nil {
		return nil, fmt.Errorf("build item repository: %w", err)
	}
	if reg.orders, err = NewOrderRepository(provider); err != nil {
		return nil, fmt.Errorf("build order repository: %w", err)
	}
	if reg.coupons, err = NewCouponRepository(provider); err != nil {
		return nil, fmt.Errorf("build coupon repository: %w", err)
	}
	if reg.areas, err = NewDeliveryAreaRepository(provider); err != nil {
		return nil, fmt.Errorf("build delivery area repository: %w", err)
	}
	if reg.addresses, err = NewAddressRepository(provider); err != nil {
		return nil, fmt.Errorf("build address repository: %w", err)
	}
	if reg.vendors, err = NewVendorRepository(provider); err != nil {
		return nil, fmt.Errorf("build vendor repository: %w", err)
	}
	if reg.rates, err = NewRateRepository(provider); err != nil {
		return nil, fmt.Errorf("build rate repository: %w", err)
	}
	if reg.users, err = NewUserRepository(provider); err != nil {
		return nil, fmt.Errorf("build user repository: %w", err)
	}
	return reg, nil
}

// Close releases the Firestore client.
func (r *Registry) Close(ctx context.Context) error { return r.provider.Close(ctx) }

func (r *Registry) Items() repositories.ItemRepository                 { return r.items }
func (r *Registry) Orders() repositories.OrderRepository               { return r.orders }
func (r *Registry) Coupons() repositories.CouponRepository             { return r.coupons }
func (r *Registry) DeliveryAreas() repositories.DeliveryAreaRepository { return r.areas }
func (r *Registry) Addresses() repositories.AddressRepository          { return r.addresses }
func (r *Registry) Vendors() repositories.VendorRepository             { return r.vendors }
func (r *Registry) Rates() repositories.RateRepository                 { return r.rates }
func (r *Registry) Users() repositories.UserRepository                 { return r.users }

// Health returns the dependency probe aggregator, or nil when none was configured.
func (r *Registry) Health() repositories.HealthRepository { return r.health }

// PingCheck returns a probe that reads a sentinel document to prove the database is
// reachable. A missing document still counts as reachable.
func PingCheck(provider *pfirestore.Provider) func(context.Context) error {
	return func(ctx context.Context) error {
		client, err := provider.Client(ctx)
		if err != nil {
			return err
		}
		_, err = client.Collection("_health").Doc("ping").Get(ctx)
		if err = pfirestore.WrapError("health.ping", err); err != nil {
			var repoErr *pfirestore.Error
			if errors.As(err, &repoErr) && repoErr.IsNotFound() {
				return nil
			}
			return err
		}
		return nil
	}
}
