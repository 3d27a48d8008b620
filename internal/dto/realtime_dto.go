package dto

// Inbound websocket frame types.
const (
	FrameMessage  = "message"
	FrameProposal = "proposal"
	FrameAccept   = "accept"
	FrameDecline  = "decline"
	FrameRead     = "read"
)

// Outbound websocket event types.
const (
	EventMessages      = "messages"
	EventConversations = "conversations"
	EventError         = "error"
)

// ChatFrame is a client command sent over the chat websocket.
type ChatFrame struct {
	Type      string               `json:"type"`
	Text      string               `json:"text,omitempty"`
	Proposal  *ProposalSendRequest `json:"proposal,omitempty"`
	MessageID uint                 `json:"message_id,omitempty"`
}

// ChatEvent is pushed to chat websocket clients.
type ChatEvent struct {
	Type     string            `json:"type"`
	Messages []MessageResponse `json:"messages,omitempty"`
	Code     string            `json:"code,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// InboxEvent is pushed to conversation list websocket clients.
type InboxEvent struct {
	Type          string                `json:"type"`
	Conversations []ConversationSummary `json:"conversations"`
	UnreadTotal   int                   `json:"unread_total"`
}
