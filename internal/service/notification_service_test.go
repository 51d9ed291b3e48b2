package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/campushelp/helpdesk-api/internal/models"
	"github.com/campushelp/helpdesk-api/internal/repository"
)

func newNotifier(t *testing.T) (NotificationService, *gorm.DB) {
	t.Helper()
	db := testDB(t)
	return NewNotificationService(repository.NewNotificationRepository(db), repository.NewUserRepository(db), nil, "", nil, testLogger()), db
}

func TestDispatchHonoursPreferenceFlags(t *testing.T) {
	notifier, db := newNotifier(t)

	listener := seedUser(t, db, models.User{Name: "Dina", Email: "dina@campus.edu", Role: models.RoleStudent})
	muted := seedUser(t, db, models.User{Name: "Omar", Email: "omar@campus.edu", Role: models.RoleStudent})
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", muted.ID).Update("notify_ticket_updates", false).Error)

	delivered, err := notifier.Dispatch(context.Background(), Event{
		Kind:       EventTicketResolved,
		ActorID:    999,
		Recipients: []uint{listener.ID, muted.ID},
		Title:      "Ticket TKT-2609-001 resolved",
		Body:       "All done.",
	})
	require.NoError(t, err)
	require.Equal(t, 1, delivered)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Where("user_id = ?", muted.ID).Count(&count).Error)
	require.Zero(t, count)
}

func TestDispatchChatKindUsesChatFlag(t *testing.T) {
	notifier, db := newNotifier(t)

	muted := seedUser(t, db, models.User{Name: "Dina", Email: "dina@campus.edu", Role: models.RoleStudent})
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", muted.ID).Update("notify_chat_messages", false).Error)

	delivered, err := notifier.Dispatch(context.Background(), Event{
		Kind:       EventChatMessage,
		ActorID:    999,
		Recipients: []uint{muted.ID},
		Title:      "New message",
		Body:       "hello",
	})
	require.NoError(t, err)
	require.Zero(t, delivered)
}

func TestDispatchAnnouncementIgnoresPreferences(t *testing.T) {
	notifier, db := newNotifier(t)

	muted := seedUser(t, db, models.User{Name: "Dina", Email: "dina@campus.edu", Role: models.RoleStudent})
	require.NoError(t, db.Model(&models.User{}).
		Where("id = ?", muted.ID).
		Updates(map[string]interface{}{"notify_ticket_updates": false, "notify_chat_messages": false}).Error)

	delivered, err := notifier.Dispatch(context.Background(), Event{
		Kind:    EventAnnouncement,
		ActorID: 999,
		Title:   "Maintenance window tonight",
		Body:    "The portal goes down at 22:00.",
	})
	require.NoError(t, err)
	require.Equal(t, 1, delivered)
}

func TestDispatchExcludesActorAndInactive(t *testing.T) {
	notifier, db := newNotifier(t)

	actor := seedUser(t, db, models.User{Name: "Rudi", Email: "rudi@campus.edu", Role: models.RoleResolver})
	dormant := seedUser(t, db, models.User{Name: "Ben", Email: "ben@campus.edu", Role: models.RoleStudent, Status: models.UserStatusInactive})
	listener := seedUser(t, db, models.User{Name: "Dina", Email: "dina@campus.edu", Role: models.RoleStudent})

	delivered, err := notifier.Dispatch(context.Background(), Event{
		Kind:       EventTicketResolved,
		ActorID:    actor.ID,
		Recipients: []uint{actor.ID, dormant.ID, listener.ID, listener.ID},
		Title:      "Ticket resolved",
	})
	require.NoError(t, err)
	require.Equal(t, 1, delivered)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestDispatchBroadcastByRole(t *testing.T) {
	notifier, db := newNotifier(t)

	seedUser(t, db, models.User{Name: "Dina", Email: "dina@campus.edu", Role: models.RoleStudent})
	seedUser(t, db, models.User{Name: "Omar", Email: "omar@campus.edu", Role: models.RoleStudent})
	resolver := seedUser(t, db, models.User{Name: "Rudi", Email: "rudi@campus.edu", Role: models.RoleResolver})
	admin := seedUser(t, db, models.User{Name: "Root", Email: "root@campus.edu", Role: models.RoleAdmin})

	delivered, err := notifier.Dispatch(context.Background(), Event{
		Kind:          EventAnnouncement,
		ActorID:       admin.ID,
		BroadcastRole: models.RoleStudent,
		Title:         "Lab closure",
		Body:          "Lab 2 is closed on Friday.",
	})
	require.NoError(t, err)
	require.Equal(t, 2, delivered)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Where("user_id = ?", resolver.ID).Count(&count).Error)
	require.Zero(t, count)
}

func TestDispatchSanitizesMarkup(t *testing.T) {
	notifier, db := newNotifier(t)
	listener := seedUser(t, db, models.User{Name: "Dina", Email: "dina@campus.edu", Role: models.RoleStudent})

	_, err := notifier.Dispatch(context.Background(), Event{
		Kind:       EventAnnouncement,
		ActorID:    999,
		Recipients: []uint{listener.ID},
		Title:      "<b>Heads up</b>",
		Body:       `<script>alert("x")</script>Be careful`,
	})
	require.NoError(t, err)

	var note models.Notification
	require.NoError(t, db.Where("user_id = ?", listener.ID).First(&note).Error)
	require.Equal(t, "Heads up", note.Title)
	require.NotContains(t, note.Body, "<script>")
	require.Contains(t, note.Body, "Be careful")
}

func TestDispatchRejectsEmptyTitle(t *testing.T) {
	notifier, _ := newNotifier(t)

	_, err := notifier.Dispatch(context.Background(), Event{Kind: EventAnnouncement, Title: "   "})
	require.Error(t, err)
	require.True(t, IsValidation(err))
}

func TestSubscribeReceivesLiveDispatch(t *testing.T) {
	notifier, db := newNotifier(t)
	listener := seedUser(t, db, models.User{Name: "Dina", Email: "dina@campus.edu", Role: models.RoleStudent})

	ch, cancel := notifier.Subscribe(listener.ID)
	defer cancel()

	_, err := notifier.Dispatch(context.Background(), Event{
		Kind:       EventTicketResolved,
		ActorID:    999,
		Recipients: []uint{listener.ID},
		Title:      "Ticket resolved",
	})
	require.NoError(t, err)

	select {
	case got := <-ch:
		require.Equal(t, listener.ID, got.UserID)
		require.Equal(t, "Ticket resolved", got.Title)
	case <-time.After(time.Second):
		t.Fatal("no notification pushed to the live subscriber")
	}
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	notifier, db := newNotifier(t)
	listener := seedUser(t, db, models.User{Name: "Dina", Email: "dina@campus.edu", Role: models.RoleStudent})

	for i := 0; i < 3; i++ {
		_, err := notifier.Dispatch(context.Background(), Event{
			Kind:       EventAnnouncement,
			ActorID:    999,
			Recipients: []uint{listener.ID},
			Title:      "ping",
		})
		require.NoError(t, err)
	}

	unread, err := notifier.CountUnread(context.Background(), listener.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), unread)

	list, err := notifier.List(context.Background(), listener.ID, true, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)

	marked, err := notifier.MarkRead(context.Background(), list[0].ID, listener.ID)
	require.NoError(t, err)
	require.True(t, marked.Read)

	unread, err = notifier.CountUnread(context.Background(), listener.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), unread)
}
