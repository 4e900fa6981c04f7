package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

const ticketColumns = `id, ticket_number, title, description, status, type, priority, created_by,
               assigned_to, resolution, status_history, assigned_at, in_progress_at, resolved_at,
               created_at, updated_at`

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres-backed repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	history, err := json.Marshal(ticket.StatusHistory)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	const query = `
        INSERT INTO tickets (id, ticket_number, title, description, status, type, priority, created_by,
            assigned_to, resolution, status_history, assigned_at, in_progress_at, resolved_at, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::jsonb,$12,$13,$14,$15,$16)`
	_, err = r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.TicketNumber,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Type,
		ticket.Priority,
		ticket.CreatedBy,
		ticket.AssignedTo,
		ticket.Resolution,
		string(history),
		ticket.AssignedAt,
		ticket.InProgressAt,
		ticket.ResolvedAt,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ticket, err
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, tt := range filter.Types {
			args = append(args, tt)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("type IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.NumberBelow != nil {
		args = append(args, *filter.NumberBelow)
		clauses = append(clauses, fmt.Sprintf("ticket_number < $%d", len(args)))
	}

	order := "created_at DESC, ticket_number DESC"
	if filter.Order == OrderNumberDesc {
		order = "ticket_number DESC"
	}
	query := fmt.Sprintf(`%s WHERE %s ORDER BY %s`, base, strings.Join(clauses, " AND "), order)
	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// clampedAt raises the change time to the newest stored history entry so concurrent
// writers never append out of order. SET expressions all read the pre-update row.
func clampedAt(param string) string {
	return fmt.Sprintf(`GREATEST(%[1]s::timestamptz, COALESCE((status_history->-1->>'changedAt')::timestamptz, %[1]s::timestamptz))`, param)
}

// appendEntry appends the JSON object param with changedAt set to the clamped time.
func appendEntry(entryParam, atParam string) string {
	return fmt.Sprintf(`status_history || jsonb_build_array(jsonb_set(%s::jsonb, '{changedAt}', to_jsonb(%s)))`, entryParam, clampedAt(atParam))
}

func (r *ticketRepository) ApplyStatusChange(ctx context.Context, id string, change domain.StatusChange) (*domain.Ticket, error) {
	entry, err := json.Marshal(change.Entry)
	if err != nil {
		return nil, fmt.Errorf("encode history entry: %w", err)
	}
	setResolution := change.SetsResolvedAt() && change.Resolution != nil
	resolution := ""
	if setResolution {
		resolution = *change.Resolution
	}
	at := clampedAt("$7")
	query := `
        UPDATE tickets SET
            status = $2,
            resolution = CASE WHEN $3::boolean THEN $4::text ELSE resolution END,
            resolved_at = CASE WHEN $5::boolean THEN COALESCE(resolved_at, ` + at + `) ELSE resolved_at END,
            in_progress_at = CASE WHEN $6::boolean THEN COALESCE(in_progress_at, ` + at + `) ELSE in_progress_at END,
            status_history = ` + appendEntry("$8", "$7") + `,
            updated_at = ` + at + `
        WHERE id = $1
        RETURNING ` + ticketColumns
	return r.fetchSingle(ctx, query,
		id,
		change.Status,
		setResolution,
		resolution,
		change.SetsResolvedAt(),
		change.SetsInProgressAt(),
		change.At,
		string(entry),
	)
}

func (r *ticketRepository) ApplyAssignment(ctx context.Context, id string, assignment domain.Assignment) (*domain.Ticket, error) {
	entry, err := json.Marshal(assignment.Entry)
	if err != nil {
		return nil, fmt.Errorf("encode history entry: %w", err)
	}
	at := clampedAt("$4")
	query := `
        UPDATE tickets SET
            assigned_to = $2,
            status = $3,
            assigned_at = COALESCE(assigned_at, ` + at + `),
            in_progress_at = COALESCE(in_progress_at, ` + at + `),
            status_history = ` + appendEntry("$5", "$4") + `,
            updated_at = ` + at + `
        WHERE id = $1
        RETURNING ` + ticketColumns
	return r.fetchSingle(ctx, query,
		id,
		assignment.TechnicianID,
		domain.TicketStatusInProgress,
		assignment.At,
		string(entry),
	)
}

func (r *ticketRepository) FillMilestones(ctx context.Context, id string, milestones domain.Milestones) (*domain.Ticket, error) {
	query := `
        UPDATE tickets SET
            assigned_at = COALESCE(assigned_at, $2::timestamptz),
            in_progress_at = COALESCE(in_progress_at, $3::timestamptz),
            resolved_at = COALESCE(resolved_at, $4::timestamptz)
        WHERE id = $1
        RETURNING ` + ticketColumns
	return r.fetchSingle(ctx, query, id, milestones.AssignedAt, milestones.InProgressAt, milestones.ResolvedAt)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		ticket  domain.Ticket
		history []byte
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.TicketNumber,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Type,
		&ticket.Priority,
		&ticket.CreatedBy,
		&ticket.AssignedTo,
		&ticket.Resolution,
		&history,
		&ticket.AssignedAt,
		&ticket.InProgressAt,
		&ticket.ResolvedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &ticket.StatusHistory); err != nil {
			return nil, fmt.Errorf("decode history for ticket %s: %w", ticket.ID, err)
		}
	}
	return &ticket, nil
}
