package services

import (
	"fmt"

	domain "github.com/foodhub/api/internal/domain"
)

// Action names a state machine operation together with the audience allowed to invoke it.
type Action string

const (
	ActionCustomerCancel  Action = "customer_cancel"
	ActionCustomerConfirm Action = "customer_confirm"
	ActionVendorUpdate    Action = "vendor_update"
	ActionVendorCancel    Action = "vendor_cancel"
	ActionDriverAssign    Action = "driver_assign"
	ActionDriverUpdate    Action = "driver_update"
)

// Actions lists every state machine action.
var Actions = []Action{
	ActionCustomerCancel,
	ActionCustomerConfirm,
	ActionVendorUpdate,
	ActionVendorCancel,
	ActionDriverAssign,
	ActionDriverUpdate,
}

// Audience returns the user type allowed to run the action. Admins may run any action.
func (a Action) Audience() domain.UserType {
	switch a {
	case ActionCustomerCancel, ActionCustomerConfirm:
		return domain.UserTypeCustomer
	case ActionVendorUpdate, ActionVendorCancel:
		return domain.UserTypeVendor
	default:
		return domain.UserTypeDelivery
	}
}

// ImpliedTarget returns the status the action always moves to, if any.
func (a Action) ImpliedTarget() (domain.OrderStatus, bool) {
	switch a {
	case ActionCustomerCancel:
		return domain.OrderStatusCancelled, true
	case ActionCustomerConfirm:
		return domain.OrderStatusReceivedByCustomer, true
	case ActionVendorCancel:
		return domain.OrderStatusCanceledByVendor, true
	case ActionDriverAssign:
		return domain.OrderStatusOutForDelivery, true
	}
	return "", false
}

func (a Action) isDriverAction() bool {
	return a == ActionDriverAssign || a == ActionDriverUpdate
}

// Decision is the verdict of the transition table.
type Decision struct {
	Allowed bool
	// Err carries the kind and reason of a denial.
	Err error
}

type transitionKey struct {
	from   domain.OrderStatus
	action Action
	to     domain.OrderStatus
}

var terminalStatuses = map[domain.OrderStatus]bool{
	domain.OrderStatusDelivered:          true,
	domain.OrderStatusCompleted:          true,
	domain.OrderStatusReceivedByCustomer: true,
	domain.OrderStatusCancelled:          true,
	domain.OrderStatusCanceledByVendor:   true,
}

// IsTerminal reports whether no generic status update may leave the status.
func IsTerminal(status domain.OrderStatus) bool {
	return terminalStatuses[status]
}

var transitionTable = buildTransitionTable()

func buildTransitionTable() map[transitionKey]struct{} {
	table := make(map[transitionKey]struct{})
	allow := func(from domain.OrderStatus, action Action, to domain.OrderStatus) {
		table[transitionKey{from: from, action: action, to: to}] = struct{}{}
	}

	allow(domain.OrderStatusPending, ActionCustomerCancel, domain.OrderStatusCancelled)
	allow(domain.OrderStatusDelivered, ActionCustomerConfirm, domain.OrderStatusReceivedByCustomer)
	allow(domain.OrderStatusPending, ActionVendorCancel, domain.OrderStatusCanceledByVendor)
	allow(domain.OrderStatusPreparing, ActionDriverAssign, domain.OrderStatusOutForDelivery)
	allow(domain.OrderStatusOutForDelivery, ActionDriverAssign, domain.OrderStatusOutForDelivery)
	// Repeated out_for_delivery updates from the driver app are accepted as no-ops.
	allow(domain.OrderStatusOutForDelivery, ActionDriverUpdate, domain.OrderStatusOutForDelivery)

	for _, from := range domain.OrderStatuses {
		if IsTerminal(from) {
			continue
		}
		for _, to := range domain.OrderStatuses {
			if to != from {
				allow(from, ActionVendorUpdate, to)
			}
		}
		for _, to := range []domain.OrderStatus{domain.OrderStatusOutForDelivery, domain.OrderStatusDelivered} {
			if to != from {
				allow(from, ActionDriverUpdate, to)
			}
		}
	}
	return table
}

// Decide evaluates (current status, action, requested status) against the transition table.
// Pickup orders deny every driver action.
func Decide(from domain.OrderStatus, action Action, to domain.OrderStatus, pickup bool) Decision {
	if pickup && action.isDriverAction() {
		return Decision{Err: ErrPickupOrder}
	}
	if implied, ok := action.ImpliedTarget(); ok && to == "" {
		to = implied
	}
	if !to.Valid() {
		return Decision{Err: fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)}
	}
	if _, ok := transitionTable[transitionKey{from: from, action: action, to: to}]; ok {
		return Decision{Allowed: true}
	}
	switch {
	case IsTerminal(from):
		return Decision{Err: fmt.Errorf("%w: order is %s and can no longer change", ErrInvalidTransition, from)}
	case from == to:
		return Decision{Err: ErrStatusUnchanged}
	default:
		return Decision{Err: fmt.Errorf("%w: %s cannot move an order from %s to %s", ErrInvalidTransition, action, from, to)}
	}
}
