// Package chatsession keeps an eventually consistent view of one conversation
// for a single viewer. Messages arrive by polling (Refresh), by push (Apply)
// or from the viewer's own sends; all three merge by message id.
package chatsession

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/skillswap-api/internal/dto"
	"github.com/noah-isme/skillswap-api/internal/proposal"
)

// DefaultPollInterval is the message refresh cadence.
const DefaultPollInterval = 3 * time.Second

// Backend is the conversation contract a session drives.
type Backend interface {
	GetConversation(ctx context.Context, conversationID uint, viewerID string) (dto.ConversationDetail, error)
	ListMessages(ctx context.Context, conversationID uint, viewerID string) ([]dto.MessageResponse, error)
	SendMessage(ctx context.Context, conversationID uint, senderID, text string) (dto.MessageResponse, error)
	SendProposal(ctx context.Context, conversationID uint, senderID string, req dto.ProposalSendRequest) (dto.MessageResponse, error)
	RespondToProposal(ctx context.Context, conversationID, messageID uint, responderID string, accept bool) (dto.MessageResponse, error)
	MarkRead(ctx context.Context, conversationID uint, readerID string) (dto.MarkReadResponse, error)
}

// Options configures a Session.
type Options struct {
	ConversationID uint
	ViewerID       string
	PollInterval   time.Duration
	Logger         zerolog.Logger
	// OnMessages receives messages the session had not seen before, in order.
	OnMessages func([]dto.MessageResponse)
}

// Session is the chat view of one viewer in one conversation.
type Session struct {
	backend        Backend
	conversationID uint
	viewerID       string
	interval       time.Duration
	logger         zerolog.Logger
	onMessages     func([]dto.MessageResponse)

	mu       sync.Mutex
	detail   dto.ConversationDetail
	messages []dto.MessageResponse
	known    map[uint]struct{}
}

// New creates a session. Call Open before Run.
func New(backend Backend, opts Options) *Session {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	return &Session{
		backend:        backend,
		conversationID: opts.ConversationID,
		viewerID:       opts.ViewerID,
		interval:       interval,
		logger: opts.Logger.With().
			Str("component", "chat_session").
			Uint("conversation_id", opts.ConversationID).
			Str("net_id", opts.ViewerID).
			Logger(),
		onMessages: opts.OnMessages,
		known:      make(map[uint]struct{}),
	}
}

// Open loads the other participant and the full history, then marks the
// conversation read. A failed mark-read is logged only.
func (s *Session) Open(ctx context.Context) (dto.ConversationDetail, error) {
	detail, err := s.backend.GetConversation(ctx, s.conversationID, s.viewerID)
	if err != nil {
		return dto.ConversationDetail{}, err
	}

	s.mu.Lock()
	s.detail = detail
	s.mu.Unlock()

	if err := s.Refresh(ctx); err != nil {
		return dto.ConversationDetail{}, err
	}

	return detail, nil
}

// Refresh replaces the view with the server's list. Messages appended locally
// that the fetch did not include yet are kept, so nothing is lost or doubled.
func (s *Session) Refresh(ctx context.Context) error {
	fetched, err := s.backend.ListMessages(ctx, s.conversationID, s.viewerID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	fresh := s.replace(fetched)
	s.mu.Unlock()

	s.notify(fresh)
	s.markRead(ctx)
	return nil
}

// Apply merges pushed messages and returns the ones that were new.
func (s *Session) Apply(messages ...dto.MessageResponse) []dto.MessageResponse {
	s.mu.Lock()
	fresh := s.merge(messages)
	s.mu.Unlock()

	s.notify(fresh)
	return fresh
}

// Send posts a plain message and appends it without waiting for a poll.
func (s *Session) Send(ctx context.Context, text string) (dto.MessageResponse, error) {
	message, err := s.backend.SendMessage(ctx, s.conversationID, s.viewerID, text)
	if err != nil {
		return dto.MessageResponse{}, err
	}
	s.Apply(message)
	return message, nil
}

// SendProposal posts a meeting proposal composed from req.
func (s *Session) SendProposal(ctx context.Context, req dto.ProposalSendRequest) (dto.MessageResponse, error) {
	message, err := s.backend.SendProposal(ctx, s.conversationID, s.viewerID, req)
	if err != nil {
		return dto.MessageResponse{}, err
	}
	s.Apply(message)
	return message, nil
}

// Accept answers the proposal in messageID with the acceptance sentinel.
func (s *Session) Accept(ctx context.Context, messageID uint) (dto.MessageResponse, error) {
	return s.respond(ctx, messageID, true)
}

// Decline answers the proposal in messageID with the decline sentinel.
func (s *Session) Decline(ctx context.Context, messageID uint) (dto.MessageResponse, error) {
	return s.respond(ctx, messageID, false)
}

func (s *Session) respond(ctx context.Context, messageID uint, accept bool) (dto.MessageResponse, error) {
	message, err := s.backend.RespondToProposal(ctx, s.conversationID, messageID, s.viewerID, accept)
	if err != nil {
		return dto.MessageResponse{}, err
	}
	s.Apply(message)
	return message, nil
}

// MarkRead marks the conversation read for the viewer, best effort.
func (s *Session) MarkRead(ctx context.Context) {
	s.markRead(ctx)
}

// Messages returns a snapshot of the view, oldest first.
func (s *Session) Messages() []dto.MessageResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dto.MessageResponse(nil), s.messages...)
}

// Detail returns the conversation loaded by Open.
func (s *Session) Detail() dto.ConversationDetail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detail
}

// Run refreshes on every tick until ctx is done. The ticker is stopped on return.
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("message refresh failed")
			}
		}
	}
}

func (s *Session) markRead(ctx context.Context) {
	if _, err := s.backend.MarkRead(ctx, s.conversationID, s.viewerID); err != nil && ctx.Err() == nil {
		s.logger.Warn().Err(err).Msg("mark read failed")
	}
}

func (s *Session) notify(fresh []dto.MessageResponse) {
	if len(fresh) > 0 && s.onMessages != nil {
		s.onMessages(fresh)
	}
}

// replace must be called with mu held.
func (s *Session) replace(fetched []dto.MessageResponse) []dto.MessageResponse {
	fetchedIDs := make(map[uint]struct{}, len(fetched))
	for _, message := range fetched {
		fetchedIDs[message.ID] = struct{}{}
	}

	next := make([]dto.MessageResponse, 0, len(fetched)+1)
	for _, message := range s.messages {
		if _, ok := fetchedIDs[message.ID]; !ok {
			next = append(next, message)
		}
	}

	var fresh []dto.MessageResponse
	for _, message := range fetched {
		if _, dup := s.known[message.ID]; !dup {
			fresh = append(fresh, classify(message))
		}
		next = append(next, classify(message))
	}

	s.messages = dedupe(next)
	s.rebuildKnown()
	return sortMessages(fresh)
}

// merge must be called with mu held.
func (s *Session) merge(messages []dto.MessageResponse) []dto.MessageResponse {
	var fresh []dto.MessageResponse
	for _, message := range messages {
		if _, dup := s.known[message.ID]; dup {
			continue
		}
		message = classify(message)
		s.known[message.ID] = struct{}{}
		s.messages = append(s.messages, message)
		fresh = append(fresh, message)
	}
	if len(fresh) > 0 {
		sortMessages(s.messages)
	}
	return sortMessages(fresh)
}

func (s *Session) rebuildKnown() {
	s.known = make(map[uint]struct{}, len(s.messages))
	for _, message := range s.messages {
		s.known[message.ID] = struct{}{}
	}
}

func classify(message dto.MessageResponse) dto.MessageResponse {
	class := proposal.Classify(message.Text)
	message.Kind = class.Kind
	message.Proposal = class.Proposal
	return message
}

func dedupe(messages []dto.MessageResponse) []dto.MessageResponse {
	seen := make(map[uint]struct{}, len(messages))
	out := messages[:0]
	for _, message := range messages {
		if _, dup := seen[message.ID]; dup {
			continue
		}
		seen[message.ID] = struct{}{}
		out = append(out, message)
	}
	return sortMessages(out)
}

func sortMessages(messages []dto.MessageResponse) []dto.MessageResponse {
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages
}
