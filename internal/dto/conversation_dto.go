package dto

import (
	"time"

	"github.com/noah-isme/skillswap-api/internal/models"
	"github.com/noah-isme/skillswap-api/internal/proposal"
)

// ConversationCreateRequest opens (or reopens) the thread with another user.
type ConversationCreateRequest struct {
	OtherNetID string `json:"other_net_id" validate:"required,max=64"`
}

// MessageSendRequest is a plain chat message.
type MessageSendRequest struct {
	Text string `json:"text" validate:"required,min=1,max=4000"`
}

// ProposalSendRequest is a completed meeting proposal draft.
type ProposalSendRequest struct {
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	Time     string `json:"time" validate:"required,max=16"`
	Location string `json:"location" validate:"required,max=120"`
	Note     string `json:"note" validate:"omitempty,max=500"`
}

// ConversationSummary is one row of the conversation list.
type ConversationSummary struct {
	ID                uint            `json:"id"`
	OtherNetID        string          `json:"other_net_id"`
	Other             *ProfileSummary `json:"other,omitempty"`
	LastMessage       string          `json:"last_message"`
	LastMessageTime   *time.Time      `json:"last_message_time"`
	LastMessageSender string          `json:"last_message_sender"`
	UnreadCount       int             `json:"unread_count"`
	CreatedAt         time.Time       `json:"created_at"`
}

// ConversationDetail is a conversation with the other participant's full profile.
type ConversationDetail struct {
	ID          uint             `json:"id"`
	OtherNetID  string           `json:"other_net_id"`
	Other       *ProfileResponse `json:"other,omitempty"`
	UnreadCount int              `json:"unread_count"`
	CreatedAt   time.Time        `json:"created_at"`
}

// MessageResponse is one message with its rendering classification.
type MessageResponse struct {
	ID             uint               `json:"id"`
	ConversationID uint               `json:"conversation_id"`
	SenderID       string             `json:"sender_id"`
	Text           string             `json:"text"`
	CreatedAt      time.Time          `json:"created_at"`
	IsRead         bool               `json:"is_read"`
	Kind           proposal.Kind      `json:"kind"`
	Proposal       *proposal.Proposal `json:"proposal,omitempty"`
}

// MarkReadResponse reports how many messages changed to read.
type MarkReadResponse struct {
	ConversationID uint  `json:"conversation_id"`
	Flagged        int64 `json:"flagged"`
}

// NewConversationSummary resolves the caller's positional unread counter.
func NewConversationSummary(conversation models.Conversation, viewerID string, other *models.Profile) ConversationSummary {
	summary := ConversationSummary{
		ID:                conversation.ID,
		OtherNetID:        conversation.OtherParticipant(viewerID),
		LastMessage:       conversation.LastMessage,
		LastMessageTime:   conversation.LastMessageTime,
		LastMessageSender: conversation.LastMessageSender,
		UnreadCount:       conversation.UnreadFor(viewerID),
		CreatedAt:         conversation.CreatedAt,
	}
	if other != nil {
		s := NewProfileSummary(*other)
		summary.Other = &s
	}
	return summary
}

// NewConversationDetail pairs a conversation with the other participant's profile.
func NewConversationDetail(conversation models.Conversation, viewerID string, other *models.Profile) ConversationDetail {
	detail := ConversationDetail{
		ID:          conversation.ID,
		OtherNetID:  conversation.OtherParticipant(viewerID),
		UnreadCount: conversation.UnreadFor(viewerID),
		CreatedAt:   conversation.CreatedAt,
	}
	if other != nil {
		p := NewProfileResponse(*other)
		detail.Other = &p
	}
	return detail
}

// NewMessageResponse converts a message model and classifies its body.
func NewMessageResponse(message models.Message) MessageResponse {
	class := proposal.Classify(message.MessageText)
	return MessageResponse{
		ID:             message.ID,
		ConversationID: message.ConversationID,
		SenderID:       message.SenderID,
		Text:           message.MessageText,
		CreatedAt:      message.CreatedAt,
		IsRead:         message.IsRead,
		Kind:           class.Kind,
		Proposal:       class.Proposal,
	}
}

// NewMessageResponseSlice converts messages into DTOs, preserving order.
func NewMessageResponseSlice(messages []models.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewMessageResponse(message))
	}
	return out
}
