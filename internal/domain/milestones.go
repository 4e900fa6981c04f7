package domain

import "time"

// DeriveMissingTimestamps fills unset milestone timestamps from the status history.
//
// It returns a repaired copy of t together with the fields it filled in; t itself is
// not modified. Fields that are already set are never overwritten, so running it on
// its own output is a no-op. The updatedAt/createdAt fallbacks can yield milestones
// out of chronological order; that is accepted rather than corrected.
func DeriveMissingTimestamps(t *Ticket) (*Ticket, Milestones) {
	out := t.Clone()
	var filled Milestones

	if out.AssignedAt == nil && out.AssignedTo != nil {
		at := firstAssignmentTime(out.StatusHistory)
		if at == nil {
			at = fallbackTime(out.UpdatedAt, out.CreatedAt)
		}
		out.AssignedAt = at
		filled.AssignedAt = cloneTime(at)
	}

	if out.InProgressAt == nil && out.ReachedStatus(TicketStatusInProgress) {
		at := firstStatusTime(out.StatusHistory, TicketStatusInProgress)
		if at == nil {
			at = cloneTime(out.AssignedAt)
		}
		if at != nil {
			out.InProgressAt = at
			filled.InProgressAt = cloneTime(at)
		}
	}

	if out.ResolvedAt == nil && out.ReachedStatus(TicketStatusResolved) {
		at := firstStatusTime(out.StatusHistory, TicketStatusResolved)
		if at == nil && !out.UpdatedAt.IsZero() {
			at = cloneTime(&out.UpdatedAt)
		}
		if at != nil {
			out.ResolvedAt = at
			filled.ResolvedAt = cloneTime(at)
		}
	}

	return out, filled
}

func firstAssignmentTime(entries []HistoryEntry) *time.Time {
	for _, entry := range entries {
		if entry.IsAssignment() {
			return cloneTime(&entry.ChangedAt)
		}
	}
	for _, entry := range entries {
		if entry.mentionsAssignment() {
			return cloneTime(&entry.ChangedAt)
		}
	}
	return nil
}

func firstStatusTime(entries []HistoryEntry, status TicketStatus) *time.Time {
	for _, entry := range entries {
		if s, ok := entry.CanonicalStatus(); ok && s == status {
			return cloneTime(&entry.ChangedAt)
		}
	}
	return nil
}

func fallbackTime(candidates ...time.Time) *time.Time {
	for _, c := range candidates {
		if !c.IsZero() {
			return cloneTime(&c)
		}
	}
	return nil
}
