package services

import (
	"context"
	"fmt"
	"strings"

	domain "github.com/foodhub/api/internal/domain"
	"github.com/foodhub/api/internal/repositories"
)

// Caller is the authenticated principal a service acts for.
type Caller struct {
	ID   string
	Type domain.UserType
}

// IsAdmin reports whether the caller operates the platform.
func (c Caller) IsAdmin() bool { return c.Type == domain.UserTypeAdmin }

func (c Caller) validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: caller is not authenticated", ErrUnauthorized)
	}
	return nil
}

// RequireFound loads a resource by id and converts a missing document into notFound.
func RequireFound[T any](ctx context.Context, id string, notFound error, load func(context.Context, string) (T, error)) (T, error) {
	var zero T
	if strings.TrimSpace(id) == "" {
		return zero, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	value, err := load(ctx, id)
	if err != nil {
		return zero, mapRepositoryError(err, notFound)
	}
	return value, nil
}

// RequireOwner passes when ownerID is the caller or the caller is an admin.
func RequireOwner(caller Caller, ownerID string) error {
	if caller.IsAdmin() {
		return nil
	}
	if caller.ID == "" || caller.ID != ownerID {
		return ErrNotOwner
	}
	return nil
}

// callerVendor resolves the vendor owned by a vendor-type caller. A caller without a vendor is
// not authorized for vendor operations.
func callerVendor(ctx context.Context, vendors repositories.VendorRepository, caller Caller) (domain.Vendor, error) {
	vendor, err := vendors.FindByOwner(ctx, caller.ID)
	if err != nil {
		if isNotFound(err) {
			return domain.Vendor{}, ErrNotOwner
		}
		return domain.Vendor{}, mapRepositoryError(err, ErrVendorNotFound)
	}
	return vendor, nil
}
