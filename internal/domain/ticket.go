package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in-progress"
	TicketStatusResolved   TicketStatus = "resolved"
)

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// TicketType categorizes the reported problem.
type TicketType string

const (
	TicketTypeHardware TicketType = "hardware"
	TicketTypeSoftware TicketType = "software"
	TicketTypeNetwork  TicketType = "network"
	TicketTypeOther    TicketType = "other"
)

// TicketNumberSequence names the counter that numbers tickets.
const TicketNumberSequence = "ticketNumber"

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID            string         `json:"id" bson:"_id"`
	TicketNumber  int64          `json:"ticketNumber" bson:"ticketNumber"`
	Title         string         `json:"title" bson:"title"`
	Description   string         `json:"description" bson:"description"`
	Status        TicketStatus   `json:"status" bson:"status"`
	Type          TicketType     `json:"type" bson:"type"`
	Priority      TicketPriority `json:"priority" bson:"priority"`
	CreatedBy     string         `json:"createdBy" bson:"createdBy"`
	AssignedTo    *string        `json:"assignedTo" bson:"assignedTo"`
	Resolution    string         `json:"resolution" bson:"resolution"`
	StatusHistory []HistoryEntry `json:"statusHistory" bson:"statusHistory"`
	AssignedAt    *time.Time     `json:"assignedAt" bson:"assignedAt"`
	InProgressAt  *time.Time     `json:"inProgressAt" bson:"inProgressAt"`
	ResolvedAt    *time.Time     `json:"resolvedAt" bson:"resolvedAt"`
	CreatedAt     time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// ParseTicketStatus accepts only the three canonical statuses.
func ParseTicketStatus(raw string) (TicketStatus, bool) {
	switch s := TicketStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved:
		return s, true
	}
	return "", false
}

// ParseTicketPriority returns medium for an empty value.
func ParseTicketPriority(raw string) (TicketPriority, bool) {
	switch p := TicketPriority(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return TicketPriorityMedium, true
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return p, true
	}
	return "", false
}

// ParseTicketType returns other for an empty value.
func ParseTicketType(raw string) (TicketType, bool) {
	switch t := TicketType(strings.ToLower(strings.TrimSpace(raw))); t {
	case "":
		return TicketTypeOther, true
	case TicketTypeHardware, TicketTypeSoftware, TicketTypeNetwork, TicketTypeOther:
		return t, true
	}
	return "", false
}

// Clone returns a deep copy so callers can mutate without sharing history or pointers.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	out := *t
	out.AssignedTo = cloneString(t.AssignedTo)
	out.AssignedAt = cloneTime(t.AssignedAt)
	out.InProgressAt = cloneTime(t.InProgressAt)
	out.ResolvedAt = cloneTime(t.ResolvedAt)
	out.StatusHistory = append([]HistoryEntry(nil), t.StatusHistory...)
	return &out
}

// ReachedStatus reports whether the ticket is, or at some point was, in the given status.
func (t *Ticket) ReachedStatus(status TicketStatus) bool {
	if t.Status == status {
		return true
	}
	for _, entry := range t.StatusHistory {
		if s, ok := entry.ImpliedStatus(); ok && s == status {
			return true
		}
	}
	return false
}

// NextChangeTime keeps history timestamps non-decreasing.
func (t *Ticket) NextChangeTime(now time.Time) time.Time {
	if n := len(t.StatusHistory); n > 0 && now.Before(t.StatusHistory[n-1].ChangedAt) {
		return t.StatusHistory[n-1].ChangedAt
	}
	return now
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
