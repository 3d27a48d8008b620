package repository

import (
	"context"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/skillswap-api/internal/models"
	"github.com/noah-isme/skillswap-api/pkg/apperrors"
)

// ConversationRepository implements the conversation store, including the two
// atomic procedures get-or-create and mark-read.
type ConversationRepository interface {
	GetOrCreate(ctx context.Context, userA, userB string) (models.Conversation, bool, error)
	FindByID(ctx context.Context, id uint) (models.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]models.Conversation, error)
	AppendMessage(ctx context.Context, message *models.Message) (models.Conversation, error)
	ListMessages(ctx context.Context, conversationID uint) ([]models.Message, error)
	FindMessage(ctx context.Context, conversationID, messageID uint) (models.Message, error)
	MarkRead(ctx context.Context, conversationID uint, readerID string) (int64, error)
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository constructs a conversation repository backed by GORM.
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// GetOrCreate returns the conversation for the unordered pair, inserting it when
// missing. The unique pair key makes concurrent callers converge on one row.
// The boolean reports whether this call created the row.
func (r *conversationRepository) GetOrCreate(ctx context.Context, userA, userB string) (models.Conversation, bool, error) {
	key := models.PairKey(userA, userB)
	candidate := models.Conversation{User1ID: userA, User2ID: userB, PairKey: key}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "pair_key"}}, DoNothing: true}).
		Create(&candidate)
	if result.Error != nil {
		return models.Conversation{}, false, translate(result.Error, "conversation")
	}

	var stored models.Conversation
	if err := r.db.WithContext(ctx).Where("pair_key = ?", key).First(&stored).Error; err != nil {
		return models.Conversation{}, false, translate(err, "conversation")
	}

	return stored, result.RowsAffected == 1, nil
}

func (r *conversationRepository) FindByID(ctx context.Context, id uint) (models.Conversation, error) {
	var conversation models.Conversation
	if err := r.db.WithContext(ctx).First(&conversation, id).Error; err != nil {
		return models.Conversation{}, translate(err, "conversation")
	}
	return conversation, nil
}

// ListForUser returns the user's conversations, most recent activity first.
// Conversations without messages sort last.
func (r *conversationRepository) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	var conversations []models.Conversation
	if err := r.db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Find(&conversations).Error; err != nil {
		return nil, translate(err, "conversation")
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		a, b := conversations[i].LastMessageTime, conversations[j].LastMessageTime
		switch {
		case a == nil && b == nil:
			return conversations[i].ID > conversations[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Equal(*b):
			return conversations[i].ID > conversations[j].ID
		default:
			return a.After(*b)
		}
	})

	return conversations, nil
}

// AppendMessage inserts the message, refreshes the denormalised summary and
// increments the recipient's unread counter in SQL, all in one transaction.
func (r *conversationRepository) AppendMessage(ctx context.Context, message *models.Message) (models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&conversation, message.ConversationID).Error; err != nil {
			return err
		}
		if !conversation.HasParticipant(message.SenderID) {
			return apperrors.Forbidden("sender is not a participant of this conversation")
		}

		if err := tx.Create(message).Error; err != nil {
			return err
		}

		counter := conversation.UnreadColumn(conversation.OtherParticipant(message.SenderID))
		updates := map[string]interface{}{
			"last_message":        message.MessageText,
			"last_message_time":   message.CreatedAt,
			"last_message_sender": message.SenderID,
			counter:               gorm.Expr(counter+" + ?", 1),
		}
		if err := tx.Model(&models.Conversation{}).Where("id = ?", conversation.ID).Updates(updates).Error; err != nil {
			return err
		}

		return tx.First(&conversation, conversation.ID).Error
	})
	if err != nil {
		return models.Conversation{}, translate(err, "conversation")
	}

	return conversation, nil
}

// ListMessages returns every message oldest first; equal timestamps keep insertion order.
func (r *conversationRepository) ListMessages(ctx context.Context, conversationID uint) ([]models.Message, error) {
	var messages []models.Message
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error; err != nil {
		return nil, translate(err, "message")
	}
	return messages, nil
}

func (r *conversationRepository) FindMessage(ctx context.Context, conversationID, messageID uint) (models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).
		Where("id = ? AND conversation_id = ?", messageID, conversationID).
		First(&message).Error; err != nil {
		return models.Message{}, translate(err, "message")
	}
	return message, nil
}

// MarkRead zeroes the reader's counter and flags messages addressed to the
// reader as read. Calling it again is a no-op. It returns the number of
// messages that changed state.
func (r *conversationRepository) MarkRead(ctx context.Context, conversationID uint, readerID string) (int64, error) {
	var flagged int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conversation models.Conversation
		if err := tx.First(&conversation, conversationID).Error; err != nil {
			return err
		}
		if !conversation.HasParticipant(readerID) {
			return apperrors.Forbidden("reader is not a participant of this conversation")
		}

		if err := tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			UpdateColumn(conversation.UnreadColumn(readerID), 0).Error; err != nil {
			return err
		}

		result := tx.Model(&models.Message{}).
			Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, readerID, false).
			UpdateColumn("is_read", true)
		if result.Error != nil {
			return result.Error
		}
		flagged = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, translate(err, "conversation")
	}
	return flagged, nil
}
