package memory

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/facility-desk/internal/domain"
	"github.com/spec-kit/facility-desk/internal/repository"
)

func TestStore_SeedsFixedAreas(t *testing.T) {
	store := NewStore()
	areas, err := store.Areas().List(context.Background())
	require.NoError(t, err)
	require.Len(t, areas, 3)
	assert.Equal(t, []string{domain.AreaCodeBuilding, domain.AreaCodeElectrical, domain.AreaCodeIT},
		[]string{areas[0].Code, areas[1].Code, areas[2].Code})

	_, err = store.Areas().GetByCode(context.Background(), "PLUMBING")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestTickets_RejectsDuplicateHumanID(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.Tickets().Create(ctx, &domain.Ticket{HumanID: "IT-000001"}))
	err := store.Tickets().Create(ctx, &domain.Ticket{HumanID: "IT-000001"})
	assert.ErrorIs(t, err, repository.ErrDuplicateHumanID)
}

func TestTickets_ApplyTransitionChecksVersion(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	created := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	ticket := &domain.Ticket{HumanID: "IT-000001", Status: domain.TicketStatusOpen, UpdatedAt: created}
	require.NoError(t, store.Tickets().Create(ctx, ticket))

	after := ticket.Clone()
	after.Status = domain.TicketStatusAssigned
	after.UpdatedAt = created.Add(time.Minute)
	history := []domain.TicketHistory{{TicketID: ticket.ID, ChangeType: domain.ChangeTypeStatus}}

	err := store.Tickets().ApplyTransition(ctx, &after, created.Add(-time.Second), history)
	require.ErrorIs(t, err, repository.ErrStaleTicket)

	require.NoError(t, store.Tickets().ApplyTransition(ctx, &after, created, history))
	stored, err := store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusAssigned, stored.Status)

	entries, err := store.History().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ID)

	missing := domain.Ticket{ID: "nope"}
	assert.ErrorIs(t, store.Tickets().ApplyTransition(ctx, &missing, created, nil), pgx.ErrNoRows)
}

func TestTickets_GetByIDReturnsCopy(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	tech := "tech-1"
	ticket := &domain.Ticket{HumanID: "IT-000001", TechnicianID: &tech}
	require.NoError(t, store.Tickets().Create(ctx, ticket))

	loaded, err := store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	*loaded.TechnicianID = "tech-2"

	again, err := store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "tech-1", *again.TechnicianID)
}

func TestTickets_ListWithFilter(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	tech := "tech-1"
	for i, ticket := range []domain.Ticket{
		{HumanID: "IT-000001", AreaID: "it", Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityLow, Title: "Printer jam"},
		{HumanID: "IT-000002", AreaID: "it", Status: domain.TicketStatusAssigned, Priority: domain.TicketPriorityHigh, Title: "VPN down", TechnicianID: &tech},
		{HumanID: "BUILDING-000001", AreaID: "building", Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityHigh, Title: "Door stuck"},
	} {
		ticket.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, store.Tickets().Create(ctx, &ticket))
	}

	all, err := store.Tickets().ListWithFilter(ctx, repository.TicketFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "BUILDING-000001", all[0].HumanID)

	high, err := store.Tickets().ListWithFilter(ctx, repository.TicketFilter{
		Priorities: []domain.TicketPriority{domain.TicketPriorityHigh},
		AreaIDs:    []string{"it"},
	})
	require.NoError(t, err)
	require.Len(t, high, 1)
	assert.Equal(t, "IT-000002", high[0].HumanID)

	assigned, err := store.Tickets().ListWithFilter(ctx, repository.TicketFilter{TechnicianID: &tech})
	require.NoError(t, err)
	assert.Len(t, assigned, 1)

	term := "printer"
	found, err := store.Tickets().ListWithFilter(ctx, repository.TicketFilter{SearchTerm: &term})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "IT-000001", found[0].HumanID)

	page, err := store.Tickets().ListWithFilter(ctx, repository.TicketFilter{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "IT-000002", page[0].HumanID)

	empty, err := store.Tickets().ListWithFilter(ctx, repository.TicketFilter{Offset: 5})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPushSubscriptions_UpsertMovesEndpoint(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	subs := store.PushSubscriptions()

	first := &domain.PushSubscription{UserID: "alice", Endpoint: "https://push.example.com/1", P256dh: "k", Auth: "a"}
	require.NoError(t, subs.Upsert(ctx, first))
	moved := &domain.PushSubscription{UserID: "bob", Endpoint: "https://push.example.com/1", P256dh: "k2", Auth: "a2"}
	require.NoError(t, subs.Upsert(ctx, moved))
	assert.Equal(t, first.ID, moved.ID)

	alice, err := subs.ListByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, alice)

	bob, err := subs.ListByUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, bob, 1)
	assert.Equal(t, "k2", bob[0].P256dh)

	require.NoError(t, subs.DeleteByEndpoint(ctx, "https://push.example.com/1"))
	bob, err = subs.ListByUser(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, bob)
}
