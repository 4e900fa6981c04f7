package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

var legacyBase = time.Date(2023, 5, 10, 8, 0, 0, 0, time.UTC)

func seedLegacyTickets(f *fixture) (assigned, resolved, noted *domain.Ticket) {
	assigned = &domain.Ticket{
		ID:           uuid.NewString(),
		TicketNumber: 101,
		Title:        "VPN drops",
		Status:       domain.TicketStatusInProgress,
		Priority:     domain.TicketPriorityMedium,
		Type:         domain.TicketTypeNetwork,
		CreatedBy:    f.requester.ID,
		AssignedTo:   ptr(f.assignee.ID),
		StatusHistory: []domain.HistoryEntry{
			{Status: domain.TicketStatusOpen, ChangedAt: legacyBase},
			{Status: "assigned", ChangedAt: legacyBase.Add(time.Hour), Note: "Assigned to Tom"},
		},
		CreatedAt: legacyBase,
		UpdatedAt: legacyBase.Add(2 * time.Hour),
	}
	resolved = &domain.Ticket{
		ID:            uuid.NewString(),
		TicketNumber:  102,
		Title:         "Old laptop",
		Status:        domain.TicketStatusResolved,
		Priority:      domain.TicketPriorityLow,
		Type:          domain.TicketTypeHardware,
		CreatedBy:     f.requester.ID,
		StatusHistory: []domain.HistoryEntry{{Status: domain.TicketStatusOpen, ChangedAt: legacyBase}},
		CreatedAt:     legacyBase,
		UpdatedAt:     legacyBase.Add(5 * time.Hour),
	}
	noted = &domain.Ticket{
		ID:           uuid.NewString(),
		TicketNumber: 103,
		Title:        "Mail quota",
		Status:       domain.TicketStatusResolved,
		Priority:     domain.TicketPriorityHigh,
		Type:         domain.TicketTypeSoftware,
		CreatedBy:    f.other.ID,
		AssignedTo:   ptr(f.tech.ID),
		StatusHistory: []domain.HistoryEntry{
			{Status: domain.TicketStatusOpen, ChangedAt: legacyBase},
			{Status: domain.TicketStatusInProgress, ChangedAt: legacyBase.Add(30 * time.Minute), Note: "assigned to Tina"},
			{Status: domain.TicketStatusResolved, ChangedAt: legacyBase.Add(3 * time.Hour)},
		},
		CreatedAt: legacyBase,
		UpdatedAt: legacyBase.Add(4 * time.Hour),
	}
	for _, t := range []*domain.Ticket{assigned, resolved, noted} {
		f.tickets.Put(t)
	}
	return assigned, resolved, noted
}

func TestBackfillTimestamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assigned, resolved, noted := seedLegacyTickets(f)
	fresh := f.create(t, f.requester, "already complete")

	report, err := f.svc.BackfillTimestamps(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, BackfillReport{Scanned: 4, Updated: 3, Failed: 0}, report)

	got, err := f.tickets.GetByID(ctx, assigned.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AssignedAt)
	assert.Equal(t, legacyBase.Add(time.Hour), *got.AssignedAt)
	require.NotNil(t, got.InProgressAt)
	assert.Equal(t, *got.AssignedAt, *got.InProgressAt, "falls back to assignedAt")
	assert.Nil(t, got.ResolvedAt)

	got, err = f.tickets.GetByID(ctx, resolved.ID)
	require.NoError(t, err)
	assert.Nil(t, got.AssignedAt)
	assert.Nil(t, got.InProgressAt)
	require.NotNil(t, got.ResolvedAt)
	assert.Equal(t, resolved.UpdatedAt, *got.ResolvedAt, "falls back to updatedAt")
	assert.Equal(t, resolved.UpdatedAt, got.UpdatedAt, "backfill does not touch updatedAt")

	got, err = f.tickets.GetByID(ctx, noted.ID)
	require.NoError(t, err)
	assert.Equal(t, legacyBase.Add(30*time.Minute), *got.AssignedAt)
	assert.Equal(t, legacyBase.Add(30*time.Minute), *got.InProgressAt)
	assert.Equal(t, legacyBase.Add(3*time.Hour), *got.ResolvedAt)

	untouched, err := f.tickets.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, fresh, untouched)

	again, err := f.svc.BackfillTimestamps(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, BackfillReport{Scanned: 4, Updated: 0, Failed: 0}, again)

	backfilled := 0
	for _, typ := range f.dispatcher.types() {
		if typ == events.EventTicketTimestampsBackfill {
			backfilled++
		}
	}
	assert.Equal(t, 3, backfilled)
}

func TestBackfillNeverOverwrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assigned, _, _ := seedLegacyTickets(f)

	manual := legacyBase.Add(10 * time.Minute)
	assigned.AssignedAt = &manual
	f.tickets.Put(assigned)

	got, filled, err := f.svc.RepairTimestamps(ctx, assigned.ID)
	require.NoError(t, err)
	assert.Nil(t, filled.AssignedAt)
	assert.Equal(t, manual, *got.AssignedAt)
	require.NotNil(t, got.InProgressAt)
	assert.Equal(t, manual, *got.InProgressAt)
}

type flakyFillRepo struct {
	*repository.MemoryTicketRepository
	failID string
}

func (r flakyFillRepo) FillMilestones(ctx context.Context, id string, m domain.Milestones) (*domain.Ticket, error) {
	if id == r.failID {
		return nil, errors.New("write conflict")
	}
	return r.MemoryTicketRepository.FillMilestones(ctx, id, m)
}

func TestBackfillContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assigned, resolved, noted := seedLegacyTickets(f)

	svc := f.newService(flakyFillRepo{MemoryTicketRepository: f.tickets, failID: resolved.ID}, f.sequence)
	report, err := svc.BackfillTimestamps(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, BackfillReport{Scanned: 3, Updated: 2, Failed: 1}, report)

	for _, id := range []string{assigned.ID, noted.ID} {
		got, err := f.tickets.GetByID(ctx, id)
		require.NoError(t, err)
		assert.NotNil(t, got.AssignedAt, id)
	}
	got, err := f.tickets.GetByID(ctx, resolved.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ResolvedAt)
}

func TestBackfillRequiresTechnician(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.BackfillTimestampsAs(context.Background(), f.requester, 10)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	report, err := f.svc.BackfillTimestampsAs(context.Background(), f.tech, 10)
	require.NoError(t, err)
	assert.Zero(t, report.Scanned)
}

func TestBackfillStopsOnCancelledContext(t *testing.T) {
	f := newFixture(t)
	seedLegacyTickets(f)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.BackfillTimestamps(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

// churnRepo runs beforeSecondPage once, just before the second page is read.
type churnRepo struct {
	*repository.MemoryTicketRepository
	pages            int
	beforeSecondPage func()
}

func (r *churnRepo) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.pages++
	if r.pages == 2 && r.beforeSecondPage != nil {
		r.beforeSecondPage()
	}
	return r.MemoryTicketRepository.List(ctx, filter)
}

func seedUnstampedResolved(f *fixture, number int64) *domain.Ticket {
	created := legacyBase.Add(time.Duration(number) * time.Hour)
	ticket := &domain.Ticket{
		ID:            uuid.NewString(),
		TicketNumber:  number,
		Title:         "legacy",
		Status:        domain.TicketStatusResolved,
		Priority:      domain.TicketPriorityMedium,
		Type:          domain.TicketTypeOther,
		CreatedBy:     f.requester.ID,
		StatusHistory: []domain.HistoryEntry{{Status: domain.TicketStatusOpen, ChangedAt: created}},
		CreatedAt:     created,
		UpdatedAt:     created.Add(time.Minute),
	}
	f.tickets.Put(ticket)
	return ticket
}

func TestBackfillUnderConcurrentChanges(t *testing.T) {
	ctx := context.Background()

	t.Run("delete of a scanned ticket skips nothing", func(t *testing.T) {
		f := newFixture(t)
		seeded := map[int64]*domain.Ticket{}
		for n := int64(1); n <= 5; n++ {
			seeded[n] = seedUnstampedResolved(f, n)
		}
		repo := &churnRepo{MemoryTicketRepository: f.tickets, beforeSecondPage: func() {
			require.NoError(t, f.tickets.Delete(ctx, seeded[5].ID))
		}}

		report, err := f.newService(repo, f.sequence).BackfillTimestamps(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, BackfillReport{Scanned: 5, Updated: 5, Failed: 0}, report)
		for n := int64(1); n <= 4; n++ {
			got, err := f.tickets.GetByID(ctx, seeded[n].ID)
			require.NoError(t, err)
			assert.NotNil(t, got.ResolvedAt, "ticket %d", n)
		}
	})

	t.Run("tickets created mid-run are not visited", func(t *testing.T) {
		f := newFixture(t)
		for n := int64(1); n <= 5; n++ {
			seedUnstampedResolved(f, n)
		}
		var late *domain.Ticket
		repo := &churnRepo{MemoryTicketRepository: f.tickets, beforeSecondPage: func() {
			late = seedUnstampedResolved(f, 6)
		}}

		report, err := f.newService(repo, f.sequence).BackfillTimestamps(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, BackfillReport{Scanned: 5, Updated: 5, Failed: 0}, report)
		got, err := f.tickets.GetByID(ctx, late.ID)
		require.NoError(t, err)
		assert.Nil(t, got.ResolvedAt)
	})
}
