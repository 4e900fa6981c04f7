package repository

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

var (
	// ErrNotFound is returned when the addressed document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate key")
)

// TicketFilter captures list predicates. Nil/empty fields do not filter.
type TicketFilter struct {
	CreatedBy   *string
	AssignedTo  *string
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	Types       []domain.TicketType
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	// NumberBelow keeps tickets whose number is strictly lower; used for keyset paging.
	NumberBelow *int64
	Order       TicketOrder
	Limit       int
	Offset      int
}

// TicketOrder selects the List sort.
type TicketOrder int

const (
	// OrderNewestFirst sorts by creation time, newest first.
	OrderNewestFirst TicketOrder = iota
	// OrderNumberDesc sorts by ticket number, highest first.
	OrderNumberDesc
)

// TicketRepository persists ticket documents with their embedded history.
//
// Every mutating method is a single atomic update of one document. Concurrent
// updates of the same ticket are last-write-wins per field; there is no version check.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// List returns matches sorted by filter.Order.
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Delete(ctx context.Context, id string) error
	ApplyStatusChange(ctx context.Context, id string, change domain.StatusChange) (*domain.Ticket, error)
	ApplyAssignment(ctx context.Context, id string, assignment domain.Assignment) (*domain.Ticket, error)
	// FillMilestones sets only those milestone fields that are still unset.
	FillMilestones(ctx context.Context, id string, milestones domain.Milestones) (*domain.Ticket, error)
}

// Sequencer hands out strictly increasing values per sequence name.
//
// NextValue must be a single atomic increment-and-read; the counter is created at 0 on
// first use, so the first value returned is 1.
type Sequencer interface {
	NextValue(ctx context.Context, name string) (int64, error)
}

// UserRepository defines persistence access for accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error)
}
