package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// DefaultBackfillBatchSize is used when a caller passes a non-positive batch size.
const DefaultBackfillBatchSize = 100

// BackfillReport counts the outcome of one backfill run.
type BackfillReport struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// RepairTimestamps derives and stores the missing milestone timestamps of one ticket.
// Present values are never overwritten, so repeating the call is a no-op.
func (s *TicketService) RepairTimestamps(ctx context.Context, ticketID string) (*domain.Ticket, domain.Milestones, error) {
	current, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, domain.Milestones{}, storeError(err, "ticket", ticketID)
	}
	return s.repair(ctx, current)
}

func (s *TicketService) repair(ctx context.Context, current *domain.Ticket) (*domain.Ticket, domain.Milestones, error) {
	_, filled := domain.DeriveMissingTimestamps(current)
	if filled.IsZero() {
		return current, filled, nil
	}
	updated, err := s.tickets.FillMilestones(ctx, current.ID, filled)
	if err != nil {
		return nil, domain.Milestones{}, storeError(err, "ticket", current.ID)
	}
	s.publishEvent(ctx, nil, updated, events.EventTicketTimestampsBackfill, events.TicketTimestampsBackfilledPayload{
		AssignedAt:   filled.AssignedAt,
		InProgressAt: filled.InProgressAt,
		ResolvedAt:   filled.ResolvedAt,
	})
	return updated, filled, nil
}

// BackfillTimestampsAs runs the backfill on behalf of an authenticated caller.
func (s *TicketService) BackfillTimestampsAs(ctx context.Context, actor *domain.User, batchSize int) (BackfillReport, error) {
	if err := s.policy.Authorize(actor, auth.OpBackfillTimestamps, nil); err != nil {
		return BackfillReport{}, err
	}
	return s.BackfillTimestamps(ctx, batchSize)
}

// BackfillTimestamps walks every stored ticket in pages and repairs missing milestone
// timestamps. A ticket that fails is logged and counted; the run continues. Only a
// failure to read a page ends the run early.
//
// Pages are keyed on ticket number, highest first, so deletes during the run never
// shift unscanned tickets and tickets created after the run started are not visited.
func (s *TicketService) BackfillTimestamps(ctx context.Context, batchSize int) (BackfillReport, error) {
	if batchSize <= 0 {
		batchSize = DefaultBackfillBatchSize
	}
	var (
		report   BackfillReport
		lastSeen *int64
	)
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		page, err := s.tickets.List(ctx, repository.TicketFilter{
			NumberBelow: lastSeen,
			Order:       repository.OrderNumberDesc,
			Limit:       batchSize,
		})
		if err != nil {
			s.logger.Error("backfill page read failed", zap.Int64p("below_number", lastSeen), zap.Error(err))
			return report, apperrors.NewStoreUnavailable(err)
		}
		if len(page) > 0 {
			last := page[len(page)-1].TicketNumber
			lastSeen = &last
		}
		for i := range page {
			report.Scanned++
			updated, filled, err := s.repair(ctx, &page[i])
			if err != nil {
				report.Failed++
				s.logger.Warn("timestamp backfill failed",
					zap.String("ticket_id", page[i].ID),
					zap.Int64("ticket_number", page[i].TicketNumber),
					zap.Error(err))
				continue
			}
			if !filled.IsZero() {
				report.Updated++
				s.logger.Debug("timestamps backfilled",
					zap.String("ticket_id", updated.ID),
					zap.Bool("assigned_at", filled.AssignedAt != nil),
					zap.Bool("in_progress_at", filled.InProgressAt != nil),
					zap.Bool("resolved_at", filled.ResolvedAt != nil))
			}
		}
		if len(page) < batchSize {
			break
		}
	}
	s.metrics.RecordTicketOperation("backfill", report.Failed == 0)
	s.logger.Info("timestamp backfill finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("updated", report.Updated),
		zap.Int("failed", report.Failed))
	return report, nil
}
