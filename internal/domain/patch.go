package domain

import "time"

// StatusChange is the single-document update produced by SetStatus.
type StatusChange struct {
	Status     TicketStatus
	Resolution *string
	Entry      HistoryEntry
	At         time.Time
}

// Apply mutates t exactly as a store applies the change atomically. The change time
// is raised to the last history entry's time if a concurrent writer got there first.
func (c StatusChange) Apply(t *Ticket) {
	c.At = t.NextChangeTime(c.At)
	c.Entry.ChangedAt = c.At
	t.Status = c.Status
	switch c.Status {
	case TicketStatusResolved:
		if c.Resolution != nil {
			t.Resolution = *c.Resolution
		}
		if t.ResolvedAt == nil {
			t.ResolvedAt = cloneTime(&c.At)
		}
	case TicketStatusInProgress:
		if t.InProgressAt == nil {
			t.InProgressAt = cloneTime(&c.At)
		}
	}
	t.StatusHistory = append(t.StatusHistory, c.Entry)
	t.UpdatedAt = c.At
}

// SetsResolvedAt reports whether the change may stamp resolvedAt.
func (c StatusChange) SetsResolvedAt() bool { return c.Status == TicketStatusResolved }

// SetsInProgressAt reports whether the change may stamp inProgressAt.
func (c StatusChange) SetsInProgressAt() bool { return c.Status == TicketStatusInProgress }

// Assignment is the single-document update produced by Assign.
type Assignment struct {
	TechnicianID string
	Entry        HistoryEntry
	At           time.Time
}

// Apply mutates t exactly as a store applies the assignment atomically.
func (a Assignment) Apply(t *Ticket) {
	a.At = t.NextChangeTime(a.At)
	a.Entry.ChangedAt = a.At
	t.AssignedTo = cloneString(&a.TechnicianID)
	t.Status = TicketStatusInProgress
	if t.AssignedAt == nil {
		t.AssignedAt = cloneTime(&a.At)
	}
	if t.InProgressAt == nil {
		t.InProgressAt = cloneTime(&a.At)
	}
	t.StatusHistory = append(t.StatusHistory, a.Entry)
	t.UpdatedAt = a.At
}

// Milestones carries backfilled timestamps. Nil fields are left untouched and set
// fields never overwrite an existing value.
type Milestones struct {
	AssignedAt   *time.Time
	InProgressAt *time.Time
	ResolvedAt   *time.Time
}

// IsZero reports whether there is nothing to write.
func (m Milestones) IsZero() bool {
	return m.AssignedAt == nil && m.InProgressAt == nil && m.ResolvedAt == nil
}

// Apply fills unset milestone fields on t.
func (m Milestones) Apply(t *Ticket) {
	if t.AssignedAt == nil && m.AssignedAt != nil {
		t.AssignedAt = cloneTime(m.AssignedAt)
	}
	if t.InProgressAt == nil && m.InProgressAt != nil {
		t.InProgressAt = cloneTime(m.InProgressAt)
	}
	if t.ResolvedAt == nil && m.ResolvedAt != nil {
		t.ResolvedAt = cloneTime(m.ResolvedAt)
	}
}
