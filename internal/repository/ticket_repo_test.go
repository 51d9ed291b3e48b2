package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/campushelp/helpdesk-api/internal/models"
)

func seedTicket(t *testing.T, db *gorm.DB, ticket models.Ticket) models.Ticket {
	t.Helper()

	if ticket.Status == "" {
		ticket.Status = models.TicketStatusOpen
	}
	if ticket.Urgency == "" {
		ticket.Urgency = models.TicketUrgencyMedium
	}
	if ticket.Title == "" {
		ticket.Title = "Something broke"
	}
	if ticket.Description == "" {
		ticket.Description = "It does not work."
	}
	if ticket.Category == "" {
		ticket.Category = "Network"
	}
	require.NoError(t, db.Create(&ticket).Error)
	return ticket
}

func TestTransitionStatusAppliesOnlyFromExpectedState(t *testing.T) {
	db := testDB(t)
	tickets := NewTicketRepository(db)

	ticket := seedTicket(t, db, models.Ticket{Key: "TKT-2609-001", RequesterID: 1})

	affected, err := tickets.TransitionStatus(context.Background(), ticket.ID,
		[]string{models.TicketStatusOpen},
		map[string]interface{}{"status": models.TicketStatusInProgress})
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	// The ticket already left open, so a second writer loses the race.
	affected, err = tickets.TransitionStatus(context.Background(), ticket.ID,
		[]string{models.TicketStatusOpen},
		map[string]interface{}{"status": models.TicketStatusInProgress})
	require.NoError(t, err)
	require.Zero(t, affected)

	stored, err := tickets.FindByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Equal(t, models.TicketStatusInProgress, stored.Status)
}

func TestTransitionStatusWritesExtraColumns(t *testing.T) {
	db := testDB(t)
	tickets := NewTicketRepository(db)

	ticket := seedTicket(t, db, models.Ticket{Key: "TKT-2609-002", RequesterID: 1, Status: models.TicketStatusInProgress})

	now := time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)
	affected, err := tickets.TransitionStatus(context.Background(), ticket.ID,
		[]string{models.TicketStatusOpen, models.TicketStatusInProgress},
		map[string]interface{}{
			"status":           models.TicketStatusResolved,
			"resolution_notes": "replaced the cable",
			"resolved_at":      now,
		})
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	stored, err := tickets.FindByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Equal(t, models.TicketStatusResolved, stored.Status)
	require.Equal(t, "replaced the cable", stored.ResolutionNotes)
	require.NotNil(t, stored.ResolvedAt)
}

func TestListFiltersByResolverMembership(t *testing.T) {
	db := testDB(t)
	tickets := NewTicketRepository(db)

	mine := seedTicket(t, db, models.Ticket{Key: "TKT-2609-003", RequesterID: 1})
	mine.Resolvers = datatypes.NewJSONSlice([]uint{7, 9})
	require.NoError(t, db.Save(&mine).Error)

	seedTicket(t, db, models.Ticket{Key: "TKT-2609-004", RequesterID: 2})

	resolverID := uint(7)
	got, err := tickets.List(context.Background(), TicketFilter{ResolverID: &resolverID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, mine.ID, got[0].ID)

	stranger := uint(42)
	none, err := tickets.List(context.Background(), TicketFilter{ResolverID: &stranger})
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestListResolverFilterSeesPastFirstPage(t *testing.T) {
	db := testDB(t)
	tickets := NewTicketRepository(db)

	mine := seedTicket(t, db, models.Ticket{Key: "TKT-2609-100", RequesterID: 1})
	mine.Resolvers = datatypes.NewJSONSlice([]uint{7})
	require.NoError(t, db.Save(&mine).Error)

	// A queue must not lose the assigned ticket behind a page of newer
	// unassigned ones.
	for i := 0; i < 55; i++ {
		seedTicket(t, db, models.Ticket{Key: fmt.Sprintf("TKT-2610-%03d", i+1), RequesterID: 2})
	}

	resolverID := uint(7)
	got, err := tickets.List(context.Background(), TicketFilter{ResolverID: &resolverID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, mine.ID, got[0].ID)
}

func TestFindByKey(t *testing.T) {
	db := testDB(t)
	tickets := NewTicketRepository(db)

	seeded := seedTicket(t, db, models.Ticket{Key: "TKT-2609-005", RequesterID: 1})

	found, err := tickets.FindByKey(context.Background(), "TKT-2609-005")
	require.NoError(t, err)
	require.Equal(t, seeded.ID, found.ID)

	_, err = tickets.FindByKey(context.Background(), "TKT-2609-999")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestTicketKeyIsUnique(t *testing.T) {
	db := testDB(t)

	seedTicket(t, db, models.Ticket{Key: "TKT-2609-006", RequesterID: 1})

	dup := models.Ticket{
		Key:         "TKT-2609-006",
		Title:       "Duplicate",
		Description: "Same key again.",
		Category:    "Network",
		Urgency:     models.TicketUrgencyMedium,
		Status:      models.TicketStatusOpen,
		RequesterID: 2,
	}
	err := db.Create(&dup).Error
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}
