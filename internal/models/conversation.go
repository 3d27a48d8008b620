package models

import "time"

// Conversation is the single thread between an unordered pair of net ids.
type Conversation struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	User1ID           string     `gorm:"size:64;index;not null" json:"user1_id"`
	User2ID           string     `gorm:"size:64;index;not null" json:"user2_id"`
	PairKey           string     `gorm:"size:130;uniqueIndex;not null" json:"-"`
	LastMessage       string     `gorm:"type:text" json:"last_message"`
	LastMessageTime   *time.Time `gorm:"index" json:"last_message_time"`
	LastMessageSender string     `gorm:"size:64" json:"last_message_sender"`
	User1UnreadCount  int        `gorm:"not null;default:0" json:"user1_unread_count"`
	User2UnreadCount  int        `gorm:"not null;default:0" json:"user2_unread_count"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Message is one chat entry. Proposals live inside MessageText.
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"index;not null" json:"conversation_id"`
	SenderID       string    `gorm:"size:64;index;not null" json:"sender_id"`
	MessageText    string    `gorm:"type:text;not null" json:"message_text"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
	IsRead         bool      `gorm:"not null;default:false" json:"is_read"`
}

// PairKey returns the order independent key for two participants.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// HasParticipant reports whether userID is one of the two participants.
func (c Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.User1ID == userID || c.User2ID == userID)
}

// OtherParticipant returns the participant that is not userID.
func (c Conversation) OtherParticipant(userID string) string {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// UnreadFor resolves the unread counter stored in userID's slot.
func (c Conversation) UnreadFor(userID string) int {
	switch userID {
	case c.User1ID:
		return c.User1UnreadCount
	case c.User2ID:
		return c.User2UnreadCount
	default:
		return 0
	}
}

// UnreadColumn names the counter column belonging to userID's slot.
func (c Conversation) UnreadColumn(userID string) string {
	if c.User1ID == userID {
		return "user1_unread_count"
	}
	return "user2_unread_count"
}
