package events

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated            EventType = "ticket_created"
	EventTicketStatusChanged      EventType = "ticket_status_changed"
	EventTicketAssigned           EventType = "ticket_assigned"
	EventTicketDeleted            EventType = "ticket_deleted"
	EventTicketTimestampsBackfill EventType = "ticket_timestamps_backfilled"
)

// AllEventTypes lists every type the engine publishes.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketStatusChanged,
	EventTicketAssigned,
	EventTicketDeleted,
	EventTicketTimestampsBackfill,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"userId,omitempty"`
	Role   domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID           string      `json:"id"`
	Type         EventType   `json:"type"`
	TicketID     string      `json:"ticketId"`
	TicketNumber int64       `json:"ticketNumber"`
	Actor        Actor       `json:"actor"`
	Timestamp    time.Time   `json:"timestamp"`
	Payload      interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title    string                `json:"title"`
	Priority domain.TicketPriority `json:"priority"`
	Type     domain.TicketType     `json:"type"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus  domain.TicketStatus `json:"oldStatus"`
	NewStatus  domain.TicketStatus `json:"newStatus"`
	Resolution string              `json:"resolution,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	TechnicianID   string              `json:"technicianId"`
	TechnicianName string              `json:"technicianName"`
	OldStatus      domain.TicketStatus `json:"oldStatus"`
}

// TicketTimestampsBackfilledPayload lists the milestones that were filled in.
type TicketTimestampsBackfilledPayload struct {
	AssignedAt   *time.Time `json:"assignedAt,omitempty"`
	InProgressAt *time.Time `json:"inProgressAt,omitempty"`
	ResolvedAt   *time.Time `json:"resolvedAt,omitempty"`
}
