package services

import (
	"errors"
	"slices"
	"testing"

	domain "github.com/foodhub/api/internal/domain"
)

// expectedAllowed restates the lifecycle rules per action independently of the table.
func expectedAllowed(from domain.OrderStatus, action Action, to domain.OrderStatus) bool {
	switch action {
	case ActionCustomerCancel:
		return from == domain.OrderStatusPending && to == domain.OrderStatusCancelled
	case ActionCustomerConfirm:
		return from == domain.OrderStatusDelivered && to == domain.OrderStatusReceivedByCustomer
	case ActionVendorCancel:
		return from == domain.OrderStatusPending && to == domain.OrderStatusCanceledByVendor
	case ActionVendorUpdate:
		return !IsTerminal(from) && from != to
	case ActionDriverAssign:
		return (from == domain.OrderStatusPreparing || from == domain.OrderStatusOutForDelivery) && to == domain.OrderStatusOutForDelivery
	case ActionDriverUpdate:
		return !IsTerminal(from) && (to == domain.OrderStatusOutForDelivery || to == domain.OrderStatusDelivered)
	}
	return false
}

func TestDecideExhaustive(t *testing.T) {
	for _, pickup := range []bool{false, true} {
		for _, from := range domain.OrderStatuses {
			for _, action := range Actions {
				for _, to := range domain.OrderStatuses {
					decision := Decide(from, action, to, pickup)
					if pickup && (action == ActionDriverAssign || action == ActionDriverUpdate) {
						if decision.Allowed || !errors.Is(decision.Err, ErrPickupOrder) {
							t.Fatalf("pickup %s %s->%s: expected pickup rejection, got %+v", action, from, to, decision)
						}
						continue
					}
					want := expectedAllowed(from, action, to)
					if decision.Allowed != want {
						t.Fatalf("pickup=%v %s %s->%s: expected allowed=%v, got %+v", pickup, action, from, to, want, decision)
					}
					if !decision.Allowed && decision.Err == nil {
						t.Fatalf("%s %s->%s: denial without reason", action, from, to)
					}
				}
			}
		}
	}
}

func TestDecideDenialKinds(t *testing.T) {
	tests := []struct {
		name   string
		from   domain.OrderStatus
		action Action
		to     domain.OrderStatus
		want   error
	}{
		{"terminal rejects vendor update", domain.OrderStatusDelivered, ActionVendorUpdate, domain.OrderStatusPreparing, ErrBadRequest},
		{"cancelled rejects driver update", domain.OrderStatusCancelled, ActionDriverUpdate, domain.OrderStatusDelivered, ErrBadRequest},
		{"same status is a conflict", domain.OrderStatusPreparing, ActionVendorUpdate, domain.OrderStatusPreparing, ErrConflict},
		{"customer cannot cancel once preparing", domain.OrderStatusPreparing, ActionCustomerCancel, "", ErrBadRequest},
		{"vendor cancel only from pending", domain.OrderStatusPreparing, ActionVendorCancel, "", ErrBadRequest},
		{"driver cannot move back to preparing", domain.OrderStatusOutForDelivery, ActionDriverUpdate, domain.OrderStatusPreparing, ErrBadRequest},
		{"unknown target", domain.OrderStatusPending, ActionVendorUpdate, "lost", ErrInvalidTransition},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decision := Decide(tc.from, tc.action, tc.to, false)
			if decision.Allowed || !errors.Is(decision.Err, tc.want) {
				t.Fatalf("expected %v, got %+v", tc.want, decision)
			}
		})
	}
}

func TestDecideImpliedTargets(t *testing.T) {
	if d := Decide(domain.OrderStatusPending, ActionCustomerCancel, "", false); !d.Allowed {
		t.Fatalf("customer cancel from pending should be allowed: %v", d.Err)
	}
	if d := Decide(domain.OrderStatusPreparing, ActionDriverAssign, "", false); !d.Allowed {
		t.Fatalf("driver assignment from preparing should be allowed: %v", d.Err)
	}
}

func TestActionAudience(t *testing.T) {
	byAudience := map[domain.UserType][]Action{}
	for _, action := range Actions {
		byAudience[action.Audience()] = append(byAudience[action.Audience()], action)
	}
	if !slices.Equal(byAudience[domain.UserTypeCustomer], []Action{ActionCustomerCancel, ActionCustomerConfirm}) {
		t.Fatalf("unexpected customer actions %v", byAudience[domain.UserTypeCustomer])
	}
	if !slices.Equal(byAudience[domain.UserTypeVendor], []Action{ActionVendorUpdate, ActionVendorCancel}) {
		t.Fatalf("unexpected vendor actions %v", byAudience[domain.UserTypeVendor])
	}
	if !slices.Equal(byAudience[domain.UserTypeDelivery], []Action{ActionDriverAssign, ActionDriverUpdate}) {
		t.Fatalf("unexpected driver actions %v", byAudience[domain.UserTypeDelivery])
	}
}
