package services

import (
	"errors"
	"fmt"

	"github.com/foodhub/api/internal/repositories"
)

// Error kinds. Every error a service returns to the transport layer unwraps to one of these,
// which is how handlers pick the HTTP status.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("not authorized")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("service unavailable")
)

// kindError is a sentinel that reads as its own message but unwraps to a kind.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

func newKindError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Service sentinels shared across services.
var (
	ErrInvalidInput        = newKindError(ErrBadRequest, "invalid input")
	ErrOrderNotFound       = newKindError(ErrNotFound, "order not found")
	ErrItemNotFound        = newKindError(ErrNotFound, "item not found")
	ErrVendorNotFound      = newKindError(ErrNotFound, "vendor not found")
	ErrCouponNotFound      = newKindError(ErrNotFound, "coupon not found")
	ErrAddressNotFound     = newKindError(ErrNotFound, "address not found")
	ErrDeliveryAreaMissing = newKindError(ErrNotFound, "delivery area not found")
	ErrUserNotFound        = newKindError(ErrNotFound, "user not found")
	ErrRateNotFound        = newKindError(ErrNotFound, "rate not found")
	ErrNotOwner            = newKindError(ErrForbidden, "not authorized")
	ErrMixedVendorCart     = newKindError(ErrBadRequest, "all items must belong to the same vendor")
	ErrInvalidTransition   = newKindError(ErrBadRequest, "invalid status transition")
	ErrStatusUnchanged     = newKindError(ErrConflict, "order already has the requested status")
	ErrPickupOrder         = newKindError(ErrBadRequest, "pickup orders have no delivery")
	ErrAlreadyAssigned     = newKindError(ErrConflict, "order is assigned to another driver")
	ErrCouponRejected      = newKindError(ErrBadRequest, "coupon cannot be applied")
	ErrDuplicate           = newKindError(ErrConflict, "resource already exists")
	ErrQueueFull           = newKindError(ErrUnavailable, "notification queue is full")
)

// mapRepositoryError translates repository categorisation into service kinds. notFound is the
// sentinel used for missing documents in the caller's context.
func mapRepositoryError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			if notFound == nil {
				notFound = ErrNotFound
			}
			return fmt.Errorf("%w: %v", notFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return err
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
