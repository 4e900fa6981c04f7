package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// stepClock advances by a fixed step on every read.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), step: time.Minute}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

type recordingDispatcher struct {
	events.Dispatcher
	mu     sync.Mutex
	events []events.Event
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{Dispatcher: events.NewInMemoryDispatcher()}
}

func (d *recordingDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.mu.Lock()
	d.events = append(d.events, event)
	d.mu.Unlock()
	return d.Dispatcher.Publish(ctx, event)
}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	tickets    *repository.MemoryTicketRepository
	users      *repository.MemoryUserRepository
	sequence   *repository.MemorySequencer
	dispatcher *recordingDispatcher
	clock      *stepClock
	svc        *TicketService
	accounts   *AccountService

	requester *domain.User
	other     *domain.User
	tech      *domain.User
	assignee  *domain.User
	admin     *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		tickets:    repository.NewMemoryTicketRepository(),
		users:      repository.NewMemoryUserRepository(),
		sequence:   repository.NewMemorySequencer(),
		dispatcher: newRecordingDispatcher(),
		clock:      newStepClock(),
		requester:  &domain.User{ID: "u1", Name: "Uma", Email: "uma@example.com", Role: domain.RoleUser},
		other:      &domain.User{ID: "u2", Name: "Ugo", Email: "ugo@example.com", Role: domain.RoleUser},
		tech:       &domain.User{ID: "t1", Name: "Tina", Email: "tina@example.com", Role: domain.RoleTechnician},
		assignee:   &domain.User{ID: "t2", Name: "Tom", Email: "tom@example.com", Role: domain.RoleTechnician},
		admin:      &domain.User{ID: "a1", Name: "Ada", Email: "ada@example.com", Role: domain.RoleAdmin},
	}
	for _, u := range []*domain.User{f.requester, f.other, f.tech, f.assignee, f.admin} {
		require.NoError(t, f.users.Create(context.Background(), u))
	}
	f.svc = f.newService(f.tickets, f.sequence)
	f.accounts = NewAccountService(config.Config{Auth: config.AuthConfig{JWTSecret: "secret", BcryptCost: 4}}, AccountDependencies{
		UserRepo: f.users,
		Clock:    f.clock.Now,
	})
	return f
}

func (f *fixture) newService(tickets repository.TicketRepository, sequence repository.Sequencer) *TicketService {
	return NewTicketService(TicketDependencies{
		TicketRepo: tickets,
		Sequencer:  sequence,
		UserRepo:   f.users,
		Dispatcher: f.dispatcher,
		Clock:      f.clock.Now,
	})
}

func (f *fixture) create(t *testing.T, actor *domain.User, title string) *domain.Ticket {
	t.Helper()
	ticket, err := f.svc.CreateTicket(context.Background(), actor, TicketCreateInput{Title: title})
	require.NoError(t, err)
	return ticket
}

func ptr[T any](v T) *T {
	return &v
}
