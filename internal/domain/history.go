package domain

import (
	"strings"
	"time"
)

// HistoryKind tags the variant of a history entry.
type HistoryKind string

const (
	HistoryKindStatusChange HistoryKind = "status_change"
	HistoryKindAssignment   HistoryKind = "assignment"
)

// legacyAssignedMarker is the pseudo-status older documents used for assignment entries.
const legacyAssignedMarker = "assigned"

// HistoryEntry is one append-only record in a ticket's status history.
//
// It is a tagged variant: status changes carry Status, assignment records carry the
// technician. Switch on Kind (or use IsAssignment) rather than probing optional fields.
type HistoryEntry struct {
	Kind           HistoryKind  `json:"kind" bson:"kind"`
	Status         TicketStatus `json:"status,omitempty" bson:"status,omitempty"`
	TechnicianID   string       `json:"technicianId,omitempty" bson:"technicianId,omitempty"`
	TechnicianName string       `json:"technicianName,omitempty" bson:"technicianName,omitempty"`
	ChangedAt      time.Time    `json:"changedAt" bson:"changedAt"`
	ChangedBy      string       `json:"changedBy" bson:"changedBy"`
	ChangedByName  string       `json:"changedByName,omitempty" bson:"changedByName,omitempty"`
	Note           string       `json:"note,omitempty" bson:"note,omitempty"`
}

// NewStatusEntry records a status change made by actor.
func NewStatusEntry(status TicketStatus, actor *User, at time.Time, note string) HistoryEntry {
	entry := HistoryEntry{
		Kind:      HistoryKindStatusChange,
		Status:    status,
		ChangedAt: at,
		Note:      note,
	}
	if actor != nil {
		entry.ChangedBy = actor.ID
		entry.ChangedByName = actor.Name
	}
	return entry
}

// NewAssignmentEntry records that actor assigned the ticket to technician.
func NewAssignmentEntry(technician *User, actor *User, at time.Time) HistoryEntry {
	entry := HistoryEntry{
		Kind:           HistoryKindAssignment,
		TechnicianID:   technician.ID,
		TechnicianName: technician.Name,
		ChangedAt:      at,
	}
	if actor != nil {
		entry.ChangedBy = actor.ID
		entry.ChangedByName = actor.Name
	}
	return entry
}

// IsAssignment reports whether the entry is an assignment marker, including the
// pseudo-status form written by older versions.
func (e HistoryEntry) IsAssignment() bool {
	switch e.Kind {
	case HistoryKindAssignment:
		return true
	case HistoryKindStatusChange, "":
		return strings.EqualFold(string(e.Status), legacyAssignedMarker)
	}
	return false
}

// mentionsAssignment is the weaker signal: an annotation that reads like an assignment.
func (e HistoryEntry) mentionsAssignment() bool {
	note := strings.ToLower(strings.TrimSpace(e.Note))
	return strings.HasPrefix(note, "assigned to") || strings.HasPrefix(note, "assigned ")
}

// CanonicalStatus returns the status for status-change entries holding one of the
// three canonical values.
func (e HistoryEntry) CanonicalStatus() (TicketStatus, bool) {
	if e.IsAssignment() {
		return "", false
	}
	return ParseTicketStatus(string(e.Status))
}

// ImpliedStatus is the status the ticket held right after the entry; assignment forces
// in-progress.
func (e HistoryEntry) ImpliedStatus() (TicketStatus, bool) {
	if e.IsAssignment() {
		return TicketStatusInProgress, true
	}
	return e.CanonicalStatus()
}

// StatusFromHistory replays history and returns the resulting status.
func StatusFromHistory(entries []HistoryEntry) (TicketStatus, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if status, ok := entries[i].ImpliedStatus(); ok {
			return status, true
		}
	}
	return "", false
}

// HistoryOrdered reports whether changedAt never decreases.
func HistoryOrdered(entries []HistoryEntry) bool {
	for i := 1; i < len(entries); i++ {
		if entries[i].ChangedAt.Before(entries[i-1].ChangedAt) {
			return false
		}
	}
	return true
}
