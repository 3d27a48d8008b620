package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/skillswap-api/internal/models"
	"github.com/noah-isme/skillswap-api/pkg/apperrors"
)

func TestConversationRepositoryGetOrCreateIsSymmetricAndIdempotent(t *testing.T) {
	repo := NewConversationRepository(setupSkillSwapDB(t))
	ctx := context.Background()

	first, created, err := repo.GetOrCreate(ctx, "ab123", "cd456")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "ab123", first.User1ID)

	again, created, err := repo.GetOrCreate(ctx, "ab123", "cd456")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, again.ID)

	reversed, created, err := repo.GetOrCreate(ctx, "cd456", "ab123")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, reversed.ID)
}

func TestConversationRepositoryConcurrentGetOrCreateYieldsOneRow(t *testing.T) {
	db := setupSkillSwapDB(t)
	repo := NewConversationRepository(db)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]uint, 2)
	errs := make([]error, 2)
	pairs := [][2]string{{"ab123", "cd456"}, {"cd456", "ab123"}}
	for i := range pairs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conv, _, err := repo.GetOrCreate(ctx, pairs[i][0], pairs[i][1])
			ids[i] = conv.ID
			errs[i] = err
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.Equal(t, ids[0], ids[1])

	var count int64
	require.NoError(t, db.Model(&models.Conversation{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestConversationRepositoryAppendMessageCountsUnreadForRecipient(t *testing.T) {
	repo := NewConversationRepository(setupSkillSwapDB(t))
	ctx := context.Background()

	conv, _, err := repo.GetOrCreate(ctx, "ab123", "cd456")
	require.NoError(t, err)

	const n = 5
	for i := 0; i < n; i++ {
		msg := models.Message{ConversationID: conv.ID, SenderID: "ab123", MessageText: fmt.Sprintf("hello %d", i)}
		updated, err := repo.AppendMessage(ctx, &msg)
		require.NoError(t, err)
		require.NotZero(t, msg.ID)
		require.Equal(t, i+1, updated.User2UnreadCount)
		require.Zero(t, updated.User1UnreadCount)
	}

	messages, err := repo.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, n)
	for i := range messages {
		require.Equal(t, fmt.Sprintf("hello %d", i), messages[i].MessageText)
		if i > 0 {
			require.False(t, messages[i].CreatedAt.Before(messages[i-1].CreatedAt))
			require.Greater(t, messages[i].ID, messages[i-1].ID)
		}
	}

	stored, err := repo.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, n, stored.UnreadFor("cd456"))
	require.Equal(t, "hello 4", stored.LastMessage)
	require.Equal(t, "ab123", stored.LastMessageSender)
	require.NotNil(t, stored.LastMessageTime)
}

func TestConversationRepositoryConcurrentSendsDoNotLoseIncrements(t *testing.T) {
	repo := NewConversationRepository(setupSkillSwapDB(t))
	ctx := context.Background()

	conv, _, err := repo.GetOrCreate(ctx, "ab123", "cd456")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := models.Message{ConversationID: conv.ID, SenderID: "cd456", MessageText: fmt.Sprintf("ping %d", i)}
			_, err := repo.AppendMessage(ctx, &msg)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := repo.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, 8, stored.User1UnreadCount)
	require.Zero(t, stored.User2UnreadCount)
}

func TestConversationRepositoryAppendMessageRejectsOutsider(t *testing.T) {
	repo := NewConversationRepository(setupSkillSwapDB(t))
	ctx := context.Background()

	conv, _, err := repo.GetOrCreate(ctx, "ab123", "cd456")
	require.NoError(t, err)

	_, err = repo.AppendMessage(ctx, &models.Message{ConversationID: conv.ID, SenderID: "zz999", MessageText: "hi"})
	require.Equal(t, apperrors.CodePermissionDenied, apperrors.CodeOf(err))

	_, err = repo.AppendMessage(ctx, &models.Message{ConversationID: conv.ID + 100, SenderID: "ab123", MessageText: "hi"})
	require.True(t, apperrors.IsNotFound(err))
}

func TestConversationRepositoryMarkReadIsIdempotent(t *testing.T) {
	repo := NewConversationRepository(setupSkillSwapDB(t))
	ctx := context.Background()

	conv, _, err := repo.GetOrCreate(ctx, "ab123", "cd456")
	require.NoError(t, err)

	for _, sender := range []string{"ab123", "ab123", "cd456"} {
		_, err := repo.AppendMessage(ctx, &models.Message{ConversationID: conv.ID, SenderID: sender, MessageText: "hey"})
		require.NoError(t, err)
	}

	flagged, err := repo.MarkRead(ctx, conv.ID, "cd456")
	require.NoError(t, err)
	require.Equal(t, int64(2), flagged)

	stored, err := repo.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	require.Zero(t, stored.UnreadFor("cd456"))
	require.Equal(t, 1, stored.UnreadFor("ab123"))

	flagged, err = repo.MarkRead(ctx, conv.ID, "cd456")
	require.NoError(t, err)
	require.Zero(t, flagged)

	stored, err = repo.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	require.Zero(t, stored.UnreadFor("cd456"))

	messages, err := repo.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.True(t, messages[0].IsRead)
	require.True(t, messages[1].IsRead)
	require.False(t, messages[2].IsRead, "the reader's own message stays unread for the partner")
}

func TestConversationRepositoryListForUserOrdersByLastMessage(t *testing.T) {
	db := setupSkillSwapDB(t)
	repo := NewConversationRepository(db)
	ctx := context.Background()

	quiet, _, err := repo.GetOrCreate(ctx, "ab123", "quiet1")
	require.NoError(t, err)
	older, _, err := repo.GetOrCreate(ctx, "ab123", "older1")
	require.NoError(t, err)
	newer, _, err := repo.GetOrCreate(ctx, "newer1", "ab123")
	require.NoError(t, err)
	_, _, err = repo.GetOrCreate(ctx, "other1", "other2")
	require.NoError(t, err)

	now := time.Now()
	earlier := now.Add(-time.Hour)
	require.NoError(t, db.Model(&models.Conversation{}).Where("id = ?", older.ID).Update("last_message_time", earlier).Error)
	require.NoError(t, db.Model(&models.Conversation{}).Where("id = ?", newer.ID).Update("last_message_time", now).Error)

	list, err := repo.ListForUser(ctx, "ab123")
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, []uint{newer.ID, older.ID, quiet.ID}, []uint{list[0].ID, list[1].ID, list[2].ID})
}

func TestConversationRepositoryNotFound(t *testing.T) {
	repo := NewConversationRepository(setupSkillSwapDB(t))

	_, err := repo.FindByID(context.Background(), 42)
	require.True(t, apperrors.IsNotFound(err))

	_, err = repo.FindMessage(context.Background(), 1, 1)
	require.True(t, apperrors.IsNotFound(err))

	_, err = repo.MarkRead(context.Background(), 42, "ab123")
	require.True(t, apperrors.IsNotFound(err))
}
