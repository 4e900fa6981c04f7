package auth

import (
	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// Operation names an action checked by the access policy.
type Operation string

const (
	OpCreateTicket        Operation = "ticket:create"
	OpListTickets         Operation = "ticket:list"
	OpReadTicket          Operation = "ticket:read"
	OpUpdateStatus        Operation = "ticket:update_status"
	OpAssignTicket        Operation = "ticket:assign"
	OpDeleteTicket        Operation = "ticket:delete"
	OpBackfillTimestamps  Operation = "ticket:backfill"
	OpProvisionTechnician Operation = "user:provision_technician"
	OpListTechnicians     Operation = "user:list_technicians"
)

// Policy authorizes an actor for an operation, optionally against a specific ticket.
// A denial is terminal for the request.
type Policy interface {
	Authorize(actor *domain.User, op Operation, ticket *domain.Ticket) error
	// ListScope returns the creator id listing must be restricted to, or nil for no restriction.
	ListScope(actor *domain.User) *string
}

// RolePolicy is the role/ownership policy of the helpdesk.
type RolePolicy struct{}

// NewRolePolicy returns the default policy.
func NewRolePolicy() RolePolicy {
	return RolePolicy{}
}

func (RolePolicy) Authorize(actor *domain.User, op Operation, ticket *domain.Ticket) error {
	if actor == nil || actor.ID == "" {
		return apperrors.NewUnauthorized("authentication required")
	}
	switch op {
	case OpCreateTicket, OpListTickets:
		return nil
	case OpReadTicket:
		if actor.IsTechnician() {
			return nil
		}
		if ticket != nil && ticket.CreatedBy == actor.ID {
			return nil
		}
		return apperrors.NewForbidden("ticket belongs to another user")
	case OpUpdateStatus, OpAssignTicket, OpDeleteTicket, OpBackfillTimestamps:
		if actor.IsTechnician() {
			return nil
		}
		return apperrors.NewForbidden("technician role required")
	case OpProvisionTechnician:
		if actor.Role == domain.RoleAdmin {
			return nil
		}
		return apperrors.NewForbidden("admin role required")
	case OpListTechnicians:
		if actor.IsTechnician() || actor.Role == domain.RoleAdmin {
			return nil
		}
		return apperrors.NewForbidden("technician or admin role required")
	}
	return apperrors.NewForbidden("operation not permitted")
}

func (RolePolicy) ListScope(actor *domain.User) *string {
	if actor.IsTechnician() {
		return nil
	}
	var id string
	if actor != nil {
		id = actor.ID
	}
	return &id
}
