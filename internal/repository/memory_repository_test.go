package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTicketRepository(t *testing.T) {
	testTicketRepository(t, NewMemoryTicketRepository())
}

func TestMemorySequencer(t *testing.T) {
	testSequencer(t, NewMemorySequencer())
}

func TestMemoryUserRepository(t *testing.T) {
	testUserRepository(t, NewMemoryUserRepository())
}

func TestMemoryTicketRepositoryReturnsCopies(t *testing.T) {
	repo := NewMemoryTicketRepository()
	ticket := newTicket(1, "u1", base)
	require.NoError(t, repo.Create(context.Background(), ticket))

	ticket.Title = "changed after insert"
	got, err := repo.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "ticket", got.Title)

	got.StatusHistory[0].Note = "tampered"
	again, err := repo.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, again.StatusHistory[0].Note)
}
