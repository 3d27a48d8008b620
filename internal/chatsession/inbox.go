package chatsession

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/skillswap-api/internal/dto"
)

// DefaultInboxInterval is the conversation list refresh cadence.
const DefaultInboxInterval = 5 * time.Second

// InboxBackend lists a viewer's conversations.
type InboxBackend interface {
	ListConversations(ctx context.Context, viewerID string) ([]dto.ConversationSummary, error)
}

// Inbox polls the viewer's conversation list at the slower cadence.
type Inbox struct {
	backend  InboxBackend
	viewerID string
	interval time.Duration
	logger   zerolog.Logger
	onChange func([]dto.ConversationSummary)

	mu            sync.Mutex
	conversations []dto.ConversationSummary
	loaded        bool
}

// NewInbox creates an inbox poller. onChange is called whenever a refresh
// returns a list different from the previous one.
func NewInbox(backend InboxBackend, viewerID string, interval time.Duration, logger zerolog.Logger, onChange func([]dto.ConversationSummary)) *Inbox {
	if interval <= 0 {
		interval = DefaultInboxInterval
	}
	return &Inbox{
		backend:  backend,
		viewerID: viewerID,
		interval: interval,
		logger:   logger.With().Str("component", "chat_inbox").Str("net_id", viewerID).Logger(),
		onChange: onChange,
	}
}

// Refresh reloads the conversation list.
func (i *Inbox) Refresh(ctx context.Context) error {
	conversations, err := i.backend.ListConversations(ctx, i.viewerID)
	if err != nil {
		return err
	}

	i.mu.Lock()
	changed := !i.loaded || !reflect.DeepEqual(i.conversations, conversations)
	i.conversations = conversations
	i.loaded = true
	i.mu.Unlock()

	if changed && i.onChange != nil {
		i.onChange(conversations)
	}
	return nil
}

// Conversations returns the last fetched list.
func (i *Inbox) Conversations() []dto.ConversationSummary {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]dto.ConversationSummary(nil), i.conversations...)
}

// UnreadTotal sums the viewer's unread counters.
func (i *Inbox) UnreadTotal() int {
	i.mu.Lock()
	defer i.mu.Unlock()

	total := 0
	for _, conversation := range i.conversations {
		total += conversation.UnreadCount
	}
	return total
}

// Run refreshes on every tick until ctx is done. The ticker is stopped on return.
func (i *Inbox) Run(ctx context.Context) error {
	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := i.Refresh(ctx); err != nil && ctx.Err() == nil {
				i.logger.Warn().Err(err).Msg("conversation list refresh failed")
			}
		}
	}
}
