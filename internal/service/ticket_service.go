package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// TicketService is the ticket lifecycle engine: it authorizes, validates and applies
// every ticket mutation as one atomic store update.
type TicketService struct {
	tickets    repository.TicketRepository
	sequence   repository.Sequencer
	users      repository.UserRepository
	policy     auth.Policy
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Sequencer  repository.Sequencer
	UserRepo   repository.UserRepository
	Policy     auth.Policy
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    string
	Type        string
}

// TicketQuery describes list filters as received from the caller.
type TicketQuery struct {
	AssignedTo string
	UserID     string
	Statuses   []string
	Priorities []string
	Types      []string
	FromDate   *time.Time
	ToDate     *time.Time
	Limit      int
	Offset     int
}

// TicketStats summarizes the tickets visible to a caller.
type TicketStats struct {
	Total      int                           `json:"total"`
	Unassigned int                           `json:"unassigned"`
	ByStatus   map[domain.TicketStatus]int   `json:"byStatus"`
	ByPriority map[domain.TicketPriority]int `json:"byPriority"`
	ByType     map[domain.TicketType]int     `json:"byType"`
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	svc := &TicketService{
		tickets:    deps.TicketRepo,
		sequence:   deps.Sequencer,
		users:      deps.UserRepo,
		policy:     deps.Policy,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Clock,
	}
	if svc.policy == nil {
		svc.policy = auth.NewRolePolicy()
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

// CreateTicket allocates the next ticket number and stores a new open ticket.
//
// If the insert fails after the number was allocated, that number is lost: numbering
// may have gaps but a number is never handed out twice.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.User, input TicketCreateInput) (ticket *domain.Ticket, err error) {
	defer func() { s.metrics.RecordTicketOperation("create", err == nil) }()

	if err := s.policy.Authorize(actor, auth.OpCreateTicket, nil); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	priority, ok := domain.ParseTicketPriority(input.Priority)
	if !ok {
		return nil, apperrors.NewValidationError("priority must be one of low, medium, high", map[string]any{"priority": input.Priority})
	}
	ticketType, ok := domain.ParseTicketType(input.Type)
	if !ok {
		return nil, apperrors.NewValidationError("type must be one of hardware, software, network, other", map[string]any{"type": input.Type})
	}

	number, err := s.sequence.NextValue(ctx, domain.TicketNumberSequence)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable(err)
	}

	now := s.now().UTC()
	ticket = &domain.Ticket{
		ID:            uuid.NewString(),
		TicketNumber:  number,
		Title:         title,
		Description:   strings.TrimSpace(input.Description),
		Status:        domain.TicketStatusOpen,
		Type:          ticketType,
		Priority:      priority,
		CreatedBy:     actor.ID,
		StatusHistory: []domain.HistoryEntry{domain.NewStatusEntry(domain.TicketStatusOpen, actor, now, "")},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		s.logger.Warn("ticket insert failed; number burned",
			zap.Int64("ticket_number", number),
			zap.Error(err))
		return nil, apperrors.NewStoreUnavailable(err)
	}

	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.Int64("ticket_number", ticket.TicketNumber),
		zap.String("created_by", actor.ID))
	s.publishEvent(ctx, actor, ticket, events.EventTicketCreated, events.TicketCreatedPayload{
		Title:    ticket.Title,
		Priority: ticket.Priority,
		Type:     ticket.Type,
	})
	return ticket, nil
}

// ListTickets returns tickets matching query, newest first. Callers without the
// technician role only ever see their own tickets, whatever userId they ask for.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.User, query TicketQuery) ([]domain.Ticket, error) {
	if err := s.policy.Authorize(actor, auth.OpListTickets, nil); err != nil {
		return nil, err
	}
	filter, err := s.buildFilter(actor, query)
	if err != nil {
		return nil, err
	}
	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable(err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

// GetTicket fetches one ticket the actor may read.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	if err := validateID(ticketID); err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, storeError(err, "ticket", ticketID)
	}
	if err := s.policy.Authorize(actor, auth.OpReadTicket, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// UpdateStatus moves a ticket to any canonical status, including its current one;
// every call appends a history entry. Resolving stamps resolvedAt once and keeps it on
// later re-resolves, while the resolution text follows the latest call.
func (s *TicketService) UpdateStatus(ctx context.Context, actor *domain.User, ticketID, rawStatus string, resolution *string) (ticket *domain.Ticket, err error) {
	defer func() { s.metrics.RecordTicketOperation("update_status", err == nil) }()

	if err := s.policy.Authorize(actor, auth.OpUpdateStatus, nil); err != nil {
		return nil, err
	}
	if err := validateID(ticketID); err != nil {
		return nil, err
	}
	status, ok := domain.ParseTicketStatus(rawStatus)
	if !ok {
		return nil, apperrors.NewValidationError("status must be one of open, in-progress, resolved", map[string]any{"status": rawStatus})
	}

	current, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, storeError(err, "ticket", ticketID)
	}

	at := current.NextChangeTime(s.now().UTC())
	change := domain.StatusChange{Status: status, At: at}
	note := ""
	if status == domain.TicketStatusResolved && resolution != nil {
		if text := strings.TrimSpace(*resolution); text != "" {
			change.Resolution = &text
			note = text
		}
	}
	change.Entry = domain.NewStatusEntry(status, actor, at, note)

	ticket, err = s.tickets.ApplyStatusChange(ctx, ticketID, change)
	if err != nil {
		return nil, storeError(err, "ticket", ticketID)
	}

	s.logger.Info("ticket status changed",
		zap.String("ticket_id", ticket.ID),
		zap.Int64("ticket_number", ticket.TicketNumber),
		zap.String("from", string(current.Status)),
		zap.String("to", string(status)))
	s.publishEvent(ctx, actor, ticket, events.EventTicketStatusChanged, events.TicketStatusChangedPayload{
		OldStatus:  current.Status,
		NewStatus:  status,
		Resolution: ticket.Resolution,
	})
	return ticket, nil
}

// AssignTicket assigns a technician and forces the ticket to in-progress. The history
// gets an assignment record naming the technician rather than a status entry.
func (s *TicketService) AssignTicket(ctx context.Context, actor *domain.User, ticketID, technicianID string) (ticket *domain.Ticket, err error) {
	defer func() { s.metrics.RecordTicketOperation("assign", err == nil) }()

	if err := s.policy.Authorize(actor, auth.OpAssignTicket, nil); err != nil {
		return nil, err
	}
	if err := validateID(ticketID); err != nil {
		return nil, err
	}
	technicianID = strings.TrimSpace(technicianID)
	if technicianID == "" {
		return nil, apperrors.NewValidationError("assignedTo is required", map[string]any{"field": "assignedTo"})
	}

	current, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, storeError(err, "ticket", ticketID)
	}
	technician, err := s.users.GetByID(ctx, technicianID)
	if err != nil {
		return nil, storeError(err, "technician", technicianID)
	}
	if !technician.IsTechnician() {
		return nil, apperrors.NewValidationError("assignee must have the technician role", map[string]any{"assignedTo": technicianID})
	}

	at := current.NextChangeTime(s.now().UTC())
	ticket, err = s.tickets.ApplyAssignment(ctx, ticketID, domain.Assignment{
		TechnicianID: technician.ID,
		Entry:        domain.NewAssignmentEntry(technician, actor, at),
		At:           at,
	})
	if err != nil {
		return nil, storeError(err, "ticket", ticketID)
	}

	s.logger.Info("ticket assigned",
		zap.String("ticket_id", ticket.ID),
		zap.Int64("ticket_number", ticket.TicketNumber),
		zap.String("technician_id", technician.ID))
	s.publishEvent(ctx, actor, ticket, events.EventTicketAssigned, events.TicketAssignedPayload{
		TechnicianID:   technician.ID,
		TechnicianName: technician.Name,
		OldStatus:      current.Status,
	})
	return ticket, nil
}

// DeleteTicket removes a ticket permanently.
func (s *TicketService) DeleteTicket(ctx context.Context, actor *domain.User, ticketID string) (err error) {
	defer func() { s.metrics.RecordTicketOperation("delete", err == nil) }()

	if err := s.policy.Authorize(actor, auth.OpDeleteTicket, nil); err != nil {
		return err
	}
	if err := validateID(ticketID); err != nil {
		return err
	}
	current, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return storeError(err, "ticket", ticketID)
	}
	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		return storeError(err, "ticket", ticketID)
	}

	s.logger.Info("ticket deleted",
		zap.String("ticket_id", current.ID),
		zap.Int64("ticket_number", current.TicketNumber),
		zap.String("deleted_by", actor.ID))
	s.publishEvent(ctx, actor, current, events.EventTicketDeleted, nil)
	return nil
}

// Stats counts the tickets the actor can list.
func (s *TicketService) Stats(ctx context.Context, actor *domain.User) (*TicketStats, error) {
	tickets, err := s.ListTickets(ctx, actor, TicketQuery{})
	if err != nil {
		return nil, err
	}
	stats := &TicketStats{
		Total:      len(tickets),
		ByStatus:   map[domain.TicketStatus]int{},
		ByPriority: map[domain.TicketPriority]int{},
		ByType:     map[domain.TicketType]int{},
	}
	for _, t := range tickets {
		stats.ByStatus[t.Status]++
		stats.ByPriority[t.Priority]++
		stats.ByType[t.Type]++
		if t.AssignedTo == nil {
			stats.Unassigned++
		}
	}
	return stats, nil
}

func (s *TicketService) buildFilter(actor *domain.User, query TicketQuery) (repository.TicketFilter, error) {
	filter := repository.TicketFilter{
		CreatedFrom: query.FromDate,
		CreatedTo:   query.ToDate,
		Limit:       query.Limit,
		Offset:      query.Offset,
	}
	if v := strings.TrimSpace(query.UserID); v != "" {
		filter.CreatedBy = &v
	}
	if v := strings.TrimSpace(query.AssignedTo); v != "" {
		filter.AssignedTo = &v
	}
	if scope := s.policy.ListScope(actor); scope != nil {
		filter.CreatedBy = scope
	}
	for _, raw := range query.Statuses {
		status, ok := domain.ParseTicketStatus(raw)
		if !ok {
			return filter, apperrors.NewValidationError("invalid status filter", map[string]any{"status": raw})
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	for _, raw := range query.Priorities {
		priority, ok := domain.ParseTicketPriority(raw)
		if !ok || strings.TrimSpace(raw) == "" {
			return filter, apperrors.NewValidationError("invalid priority filter", map[string]any{"priority": raw})
		}
		filter.Priorities = append(filter.Priorities, priority)
	}
	for _, raw := range query.Types {
		ticketType, ok := domain.ParseTicketType(raw)
		if !ok || strings.TrimSpace(raw) == "" {
			return filter, apperrors.NewValidationError("invalid type filter", map[string]any{"type": raw})
		}
		filter.Types = append(filter.Types, ticketType)
	}
	if filter.CreatedFrom != nil && filter.CreatedTo != nil && filter.CreatedFrom.After(*filter.CreatedTo) {
		return filter, apperrors.NewValidationError("fromDate must not be after toDate", nil)
	}
	return filter, nil
}

func (s *TicketService) publishEvent(ctx context.Context, actor *domain.User, ticket *domain.Ticket, eventType events.EventType, payload any) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:           uuid.NewString(),
		Type:         eventType,
		TicketID:     ticket.ID,
		TicketNumber: ticket.TicketNumber,
		Timestamp:    s.now().UTC(),
		Payload:      payload,
	}
	if actor != nil {
		event.Actor = events.Actor{UserID: actor.ID, Role: actor.Role}
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NewValidationError("invalid ticket id", map[string]any{"id": id})
	}
	return nil
}

func storeError(err error, resource, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return apperrors.NewStoreUnavailable(err)
}
