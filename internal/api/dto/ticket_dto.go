package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Type        string `json:"type"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status     string  `json:"status"`
	Resolution *string `json:"resolution"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	AssignedTo string `json:"assignedTo"`
}

// BackfillRequest payload. Every field is optional.
type BackfillRequest struct {
	BatchSize int `json:"batchSize"`
}

// HistoryEntryResponse is one status history record.
type HistoryEntryResponse struct {
	Kind           domain.HistoryKind  `json:"kind"`
	Status         domain.TicketStatus `json:"status,omitempty"`
	TechnicianID   string              `json:"technicianId,omitempty"`
	TechnicianName string              `json:"technicianName,omitempty"`
	ChangedAt      time.Time           `json:"changedAt"`
	ChangedBy      string              `json:"changedBy"`
	ChangedByName  string              `json:"changedByName,omitempty"`
	Note           string              `json:"note,omitempty"`
}

// TicketResponse provides full ticket info.
type TicketResponse struct {
	ID            string                 `json:"id"`
	TicketNumber  int64                  `json:"ticketNumber"`
	Title         string                 `json:"title"`
	Description   string                 `json:"description"`
	Status        domain.TicketStatus    `json:"status"`
	Type          domain.TicketType      `json:"type"`
	Priority      domain.TicketPriority  `json:"priority"`
	CreatedBy     string                 `json:"createdBy"`
	AssignedTo    *string                `json:"assignedTo"`
	Resolution    string                 `json:"resolution,omitempty"`
	StatusHistory []HistoryEntryResponse `json:"statusHistory"`
	AssignedAt    *time.Time             `json:"assignedAt"`
	InProgressAt  *time.Time             `json:"inProgressAt"`
	ResolvedAt    *time.Time             `json:"resolvedAt"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

// PageMeta describes the requested window of a list.
type PageMeta struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Count    int `json:"count"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(ticket *domain.Ticket) TicketResponse {
	history := make([]HistoryEntryResponse, 0, len(ticket.StatusHistory))
	for _, entry := range ticket.StatusHistory {
		kind := entry.Kind
		if kind == "" {
			kind = domain.HistoryKindStatusChange
			if entry.IsAssignment() {
				kind = domain.HistoryKindAssignment
			}
		}
		history = append(history, HistoryEntryResponse{
			Kind:           kind,
			Status:         entry.Status,
			TechnicianID:   entry.TechnicianID,
			TechnicianName: entry.TechnicianName,
			ChangedAt:      entry.ChangedAt,
			ChangedBy:      entry.ChangedBy,
			ChangedByName:  entry.ChangedByName,
			Note:           entry.Note,
		})
	}
	return TicketResponse{
		ID:            ticket.ID,
		TicketNumber:  ticket.TicketNumber,
		Title:         ticket.Title,
		Description:   ticket.Description,
		Status:        ticket.Status,
		Type:          ticket.Type,
		Priority:      ticket.Priority,
		CreatedBy:     ticket.CreatedBy,
		AssignedTo:    ticket.AssignedTo,
		Resolution:    ticket.Resolution,
		StatusHistory: history,
		AssignedAt:    ticket.AssignedAt,
		InProgressAt:  ticket.InProgressAt,
		ResolvedAt:    ticket.ResolvedAt,
		CreatedAt:     ticket.CreatedAt,
		UpdatedAt:     ticket.UpdatedAt,
	}
}
