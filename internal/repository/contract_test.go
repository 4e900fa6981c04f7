package repository

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

var base = time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

func minutes(n int) time.Time {
	return base.Add(time.Duration(n) * time.Minute)
}

func sameInstant(t *testing.T, want time.Time, got *time.Time, msg string) {
	t.Helper()
	require.NotNil(t, got, msg)
	assert.True(t, want.Equal(*got), "%s: want %s, got %s", msg, want, *got)
}

func newTicket(number int64, createdBy string, createdAt time.Time) *domain.Ticket {
	return &domain.Ticket{
		ID:            uuid.NewString(),
		TicketNumber:  number,
		Title:         "ticket",
		Status:        domain.TicketStatusOpen,
		Type:          domain.TicketTypeOther,
		Priority:      domain.TicketPriorityMedium,
		CreatedBy:     createdBy,
		StatusHistory: []domain.HistoryEntry{domain.NewStatusEntry(domain.TicketStatusOpen, nil, createdAt, "")},
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}

// testTicketRepository exercises the behavior every TicketRepository driver must share.
func testTicketRepository(t *testing.T, repo TicketRepository) {
	ctx := context.Background()
	first := newTicket(1, "u1", minutes(0))
	second := newTicket(2, "u2", minutes(1))
	third := newTicket(3, "u1", minutes(2))
	for _, ticket := range []*domain.Ticket{first, second, third} {
		require.NoError(t, repo.Create(ctx, ticket))
	}

	t.Run("duplicate number", func(t *testing.T) {
		err := repo.Create(ctx, newTicket(2, "u1", minutes(3)))
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, first.TicketNumber, got.TicketNumber)
		require.Len(t, got.StatusHistory, 1)
		assert.Equal(t, domain.TicketStatusOpen, got.StatusHistory[0].Status)

		_, err = repo.GetByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list", func(t *testing.T) {
		all, err := repo.List(ctx, TicketFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []int64{3, 2, 1}, numbers(all))

		owner := "u1"
		mine, err := repo.List(ctx, TicketFilter{CreatedBy: &owner})
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 1}, numbers(mine))

		page, err := repo.List(ctx, TicketFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, numbers(page))

		from, to := minutes(1), minutes(1)
		window, err := repo.List(ctx, TicketFilter{CreatedFrom: &from, CreatedTo: &to})
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, numbers(window))

		below := int64(3)
		keyset, err := repo.List(ctx, TicketFilter{NumberBelow: &below, Order: OrderNumberDesc, Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, numbers(keyset))

		byNumber, err := repo.List(ctx, TicketFilter{Order: OrderNumberDesc})
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 2, 1}, numbers(byNumber))

		resolved, err := repo.List(ctx, TicketFilter{Statuses: []domain.TicketStatus{domain.TicketStatusResolved}})
		require.NoError(t, err)
		assert.Empty(t, resolved)
	})

	t.Run("assignment", func(t *testing.T) {
		tech := &domain.User{ID: "t2", Name: "Tom", Role: domain.RoleTechnician}
		got, err := repo.ApplyAssignment(ctx, first.ID, domain.Assignment{
			TechnicianID: tech.ID,
			Entry:        domain.NewAssignmentEntry(tech, nil, minutes(10)),
			At:           minutes(10),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusInProgress, got.Status)
		require.NotNil(t, got.AssignedTo)
		assert.Equal(t, "t2", *got.AssignedTo)
		sameInstant(t, minutes(10), got.AssignedAt, "assignedAt")
		sameInstant(t, minutes(10), got.InProgressAt, "inProgressAt")
		require.Len(t, got.StatusHistory, 2)
		assert.True(t, got.StatusHistory[1].IsAssignment())
		assert.Equal(t, "Tom", got.StatusHistory[1].TechnicianName)

		other := &domain.User{ID: "t3", Name: "Tess", Role: domain.RoleTechnician}
		got, err = repo.ApplyAssignment(ctx, first.ID, domain.Assignment{
			TechnicianID: other.ID,
			Entry:        domain.NewAssignmentEntry(other, nil, minutes(12)),
			At:           minutes(12),
		})
		require.NoError(t, err)
		assert.Equal(t, "t3", *got.AssignedTo)
		sameInstant(t, minutes(10), got.AssignedAt, "assignedAt is write-once")

		assignee := "t3"
		assigned, err := repo.List(ctx, TicketFilter{AssignedTo: &assignee})
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, numbers(assigned))
	})

	t.Run("status change", func(t *testing.T) {
		resolution := "Replaced fuser"
		got, err := repo.ApplyStatusChange(ctx, first.ID, domain.StatusChange{
			Status:     domain.TicketStatusResolved,
			Resolution: &resolution,
			Entry:      domain.NewStatusEntry(domain.TicketStatusResolved, nil, minutes(20), resolution),
			At:         minutes(20),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusResolved, got.Status)
		assert.Equal(t, resolution, got.Resolution)
		sameInstant(t, minutes(20), got.ResolvedAt, "resolvedAt")
		sameInstant(t, minutes(10), got.InProgressAt, "inProgressAt untouched")
		assert.True(t, minutes(20).Equal(got.UpdatedAt))

		got, err = repo.ApplyStatusChange(ctx, first.ID, domain.StatusChange{
			Status: domain.TicketStatusResolved,
			Entry:  domain.NewStatusEntry(domain.TicketStatusResolved, nil, minutes(5), ""),
			At:     minutes(5),
		})
		require.NoError(t, err)
		sameInstant(t, minutes(20), got.ResolvedAt, "resolvedAt is write-once")
		assert.Equal(t, resolution, got.Resolution)
		require.Len(t, got.StatusHistory, 5)
		assert.True(t, minutes(20).Equal(got.StatusHistory[4].ChangedAt), "late writer is clamped to the last entry")
		assert.True(t, domain.HistoryOrdered(got.StatusHistory))
	})

	t.Run("fill milestones", func(t *testing.T) {
		got, err := repo.FillMilestones(ctx, first.ID, domain.Milestones{
			AssignedAt: ptrTime(minutes(99)),
			ResolvedAt: ptrTime(minutes(99)),
		})
		require.NoError(t, err)
		sameInstant(t, minutes(10), got.AssignedAt, "assignedAt kept")
		sameInstant(t, minutes(20), got.ResolvedAt, "resolvedAt kept")

		got, err = repo.FillMilestones(ctx, second.ID, domain.Milestones{ResolvedAt: ptrTime(minutes(7))})
		require.NoError(t, err)
		sameInstant(t, minutes(7), got.ResolvedAt, "resolvedAt filled")
		assert.Nil(t, got.AssignedAt)
		assert.True(t, second.UpdatedAt.Equal(got.UpdatedAt), "backfill leaves updatedAt alone")
	})

	t.Run("missing ticket", func(t *testing.T) {
		_, err := repo.ApplyStatusChange(ctx, uuid.NewString(), domain.StatusChange{Status: domain.TicketStatusOpen, At: base})
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = repo.ApplyAssignment(ctx, uuid.NewString(), domain.Assignment{TechnicianID: "t1", At: base})
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = repo.FillMilestones(ctx, uuid.NewString(), domain.Milestones{ResolvedAt: &base})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, third.ID))
		_, err := repo.GetByID(ctx, third.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, third.ID), ErrNotFound)
	})
}

// testSequencer checks that concurrent callers never share a value and leave no gaps.
func testSequencer(t *testing.T, seq Sequencer) {
	ctx := context.Background()
	name := "test-" + uuid.NewString()
	const n = 40

	var wg sync.WaitGroup
	values := make([]int64, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			values[i], errs[i] = seq.NextValue(ctx, name)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	for i, v := range values {
		assert.EqualValues(t, i+1, v)
	}

	other, err := seq.NextValue(ctx, name+"-other")
	require.NoError(t, err)
	assert.EqualValues(t, 1, other, "sequences are independent")
}

func testUserRepository(t *testing.T, repo UserRepository) {
	ctx := context.Background()
	now := base
	users := []*domain.User{
		{ID: uuid.NewString(), Name: "Zed", Email: "zed@example.com", PasswordHash: "x", Role: domain.RoleTechnician, CreatedAt: now, UpdatedAt: now},
		{ID: uuid.NewString(), Name: "Amy", Email: "amy@example.com", PasswordHash: "x", Role: domain.RoleTechnician, CreatedAt: now, UpdatedAt: now},
		{ID: uuid.NewString(), Name: "Bob", Email: "bob@example.com", PasswordHash: "x", Role: domain.RoleUser, CreatedAt: now, UpdatedAt: now},
	}
	for _, u := range users {
		require.NoError(t, repo.Create(ctx, u))
	}

	dup := *users[0]
	dup.ID = uuid.NewString()
	assert.ErrorIs(t, repo.Create(ctx, &dup), ErrDuplicate)

	got, err := repo.GetByEmail(ctx, "amy@example.com")
	require.NoError(t, err)
	assert.Equal(t, users[1].ID, got.ID)
	assert.Equal(t, "x", got.PasswordHash)

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)

	techs, err := repo.ListByRole(ctx, domain.RoleTechnician)
	require.NoError(t, err)
	require.Len(t, techs, 2)
	assert.Equal(t, "Amy", techs[0].Name)
	assert.Equal(t, "Zed", techs[1].Name)
}

func numbers(tickets []domain.Ticket) []int64 {
	out := make([]int64, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, t.TicketNumber)
	}
	return out
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
