package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/campushelp/helpdesk-api/internal/models"
)

func TestArchiveStampsOnlyLiveMessages(t *testing.T) {
	db := testDB(t)
	chats := NewChatRepository(db)
	room := "chat:1:2"

	for i := 0; i < 3; i++ {
		msg := models.ChatMessage{RoomID: room, SenderID: 1, ReceiverID: 2, Content: "hello"}
		require.NoError(t, chats.Save(context.Background(), &msg))
	}
	other := models.ChatMessage{RoomID: "chat:1:3", SenderID: 1, ReceiverID: 3, Content: "elsewhere"}
	require.NoError(t, chats.Save(context.Background(), &other))

	at := time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)
	archived, err := chats.Archive(context.Background(), room, 5, at)
	require.NoError(t, err)
	require.Equal(t, int64(3), archived)

	// Repeat call finds nothing live.
	again, err := chats.Archive(context.Background(), room, 5, at)
	require.NoError(t, err)
	require.Zero(t, again)

	var untouched models.ChatMessage
	require.NoError(t, db.Where("room_id = ?", "chat:1:3").First(&untouched).Error)
	require.Nil(t, untouched.ArchivedAt)
}

func TestListByRoomOrderAndArchiveFilter(t *testing.T) {
	db := testDB(t)
	chats := NewChatRepository(db)
	room := "chat:1:2"

	base := time.Date(2026, time.September, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		msg := models.ChatMessage{
			RoomID:     room,
			SenderID:   1,
			ReceiverID: 2,
			Content:    "hello",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(&msg).Error)
	}

	_, err := chats.Archive(context.Background(), room, 5, base.Add(time.Hour))
	require.NoError(t, err)

	live, err := chats.ListByRoom(context.Background(), room, time.Time{}, 10, false)
	require.NoError(t, err)
	require.Empty(t, live)

	all, err := chats.ListByRoom(context.Background(), room, time.Time{}, 10, true)
	require.NoError(t, err)
	require.Len(t, all, 4)
	// Chronological ascending for clients.
	for i := 1; i < len(all); i++ {
		require.False(t, all[i].CreatedAt.Before(all[i-1].CreatedAt))
	}

	page, err := chats.ListByRoom(context.Background(), room, base.Add(90*time.Second), 10, true)
	require.NoError(t, err)
	require.Len(t, page, 2)
}

func TestLatestByRoomSkipsArchived(t *testing.T) {
	db := testDB(t)
	chats := NewChatRepository(db)
	room := "chat:1:2"

	first := models.ChatMessage{RoomID: room, SenderID: 1, ReceiverID: 2, Content: "first"}
	require.NoError(t, chats.Save(context.Background(), &first))

	_, err := chats.Archive(context.Background(), room, 9, time.Now())
	require.NoError(t, err)

	_, err = chats.LatestByRoom(context.Background(), room)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	second := models.ChatMessage{RoomID: room, SenderID: 2, ReceiverID: 1, Content: "second"}
	require.NoError(t, chats.Save(context.Background(), &second))

	latest, err := chats.LatestByRoom(context.Background(), room)
	require.NoError(t, err)
	require.Equal(t, "second", latest.Content)
}
