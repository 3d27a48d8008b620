package chatsession

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/skillswap-api/internal/dto"
	"github.com/noah-isme/skillswap-api/internal/proposal"
)

type fakeBackend struct {
	mu        sync.Mutex
	messages  []dto.MessageResponse
	nextID    uint
	listCalls int
	markCalls int
	listErr   error
	markErr   error
	// stale, when set, is returned by ListMessages instead of the live list.
	stale []dto.MessageResponse
}

func (f *fakeBackend) GetConversation(_ context.Context, conversationID uint, viewerID string) (dto.ConversationDetail, error) {
	return dto.ConversationDetail{ID: conversationID, OtherNetID: "cd456"}, nil
}

func (f *fakeBackend) ListMessages(context.Context, uint, string) ([]dto.MessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	if f.stale != nil {
		return append([]dto.MessageResponse(nil), f.stale...), nil
	}
	return append([]dto.MessageResponse(nil), f.messages...), nil
}

func (f *fakeBackend) add(senderID, text string) dto.MessageResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	message := dto.MessageResponse{
		ID:             f.nextID,
		ConversationID: 1,
		SenderID:       senderID,
		Text:           text,
		CreatedAt:      time.Date(2025, 3, 1, 12, 0, int(f.nextID), 0, time.UTC),
		Kind:           proposal.KindPlain,
	}
	f.messages = append(f.messages, message)
	return message
}

func (f *fakeBackend) SendMessage(_ context.Context, _ uint, senderID, text string) (dto.MessageResponse, error) {
	return f.add(senderID, text), nil
}

func (f *fakeBackend) SendProposal(_ context.Context, _ uint, senderID string, req dto.ProposalSendRequest) (dto.MessageResponse, error) {
	text, err := proposal.Encode(proposal.Proposal{Date: req.Date, Time: req.Time, Location: req.Location, Note: req.Note}, nil)
	if err != nil {
		return dto.MessageResponse{}, err
	}
	return f.add(senderID, text), nil
}

func (f *fakeBackend) RespondToProposal(_ context.Context, _ uint, messageID uint, responderID string, accept bool) (dto.MessageResponse, error) {
	f.mu.Lock()
	var original *dto.MessageResponse
	for i := range f.messages {
		if f.messages[i].ID == messageID {
			original = &f.messages[i]
		}
	}
	f.mu.Unlock()
	if original == nil {
		return dto.MessageResponse{}, errors.New("not found")
	}
	p, ok := proposal.Decode(original.Text)
	if !ok {
		return dto.MessageResponse{}, errors.New("not a proposal")
	}
	if accept {
		return f.add(responderID, proposal.AcceptanceText(p)), nil
	}
	return f.add(responderID, proposal.DeclineText), nil
}

func (f *fakeBackend) MarkRead(context.Context, uint, string) (dto.MarkReadResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls++
	return dto.MarkReadResponse{}, f.markErr
}

func (f *fakeBackend) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, f.markCalls
}

func newSession(backend Backend, onMessages func([]dto.MessageResponse)) *Session {
	return New(backend, Options{
		ConversationID: 1,
		ViewerID:       "ab123",
		PollInterval:   10 * time.Millisecond,
		Logger:         zerolog.Nop(),
		OnMessages:     onMessages,
	})
}

func ids(messages []dto.MessageResponse) []uint {
	out := make([]uint, 0, len(messages))
	for _, message := range messages {
		out = append(out, message.ID)
	}
	return out
}

func TestSessionOpenLoadsHistoryAndMarksRead(t *testing.T) {
	backend := &fakeBackend{}
	backend.add("cd456", "hi")
	backend.add("cd456", "are you free?")

	session := newSession(backend, nil)
	detail, err := session.Open(context.Background())
	require.NoError(t, err)
	require.Equal(t, "cd456", detail.OtherNetID)
	require.Equal(t, []uint{1, 2}, ids(session.Messages()))

	_, marks := backend.counts()
	require.Equal(t, 1, marks)
}

func TestSessionOpenToleratesMarkReadFailure(t *testing.T) {
	backend := &fakeBackend{markErr: errors.New("store unavailable")}
	backend.add("cd456", "hi")

	session := newSession(backend, nil)
	_, err := session.Open(context.Background())
	require.NoError(t, err)
	require.Len(t, session.Messages(), 1)
}

func TestSessionSendThenPollDoesNotDuplicate(t *testing.T) {
	backend := &fakeBackend{}
	backend.add("cd456", "hello")

	var delivered []uint
	session := newSession(backend, func(messages []dto.MessageResponse) {
		delivered = append(delivered, ids(messages)...)
	})
	_, err := session.Open(context.Background())
	require.NoError(t, err)

	sent, err := session.Send(context.Background(), "hey back")
	require.NoError(t, err)
	require.Equal(t, []uint{1, 2}, ids(session.Messages()))

	require.NoError(t, session.Refresh(context.Background()))
	require.NoError(t, session.Refresh(context.Background()))
	require.Equal(t, []uint{1, 2}, ids(session.Messages()))

	require.Empty(t, session.Apply(sent), "a pushed copy of a known message is ignored")
	require.Equal(t, []uint{1, 2}, ids(session.Messages()))
	require.Equal(t, []uint{1, 2}, delivered)
}

func TestSessionStalePollKeepsOptimisticMessage(t *testing.T) {
	backend := &fakeBackend{}
	first := backend.add("cd456", "hello")

	session := newSession(backend, nil)
	_, err := session.Open(context.Background())
	require.NoError(t, err)

	backend.stale = []dto.MessageResponse{first}
	_, err = session.Send(context.Background(), "sent while a poll was in flight")
	require.NoError(t, err)

	require.NoError(t, session.Refresh(context.Background()))
	require.Equal(t, []uint{1, 2}, ids(session.Messages()))

	backend.stale = nil
	require.NoError(t, session.Refresh(context.Background()))
	require.Equal(t, []uint{1, 2}, ids(session.Messages()))
}

func TestSessionApplyOrdersByCreation(t *testing.T) {
	session := newSession(&fakeBackend{}, nil)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	fresh := session.Apply(
		dto.MessageResponse{ID: 3, Text: "third", CreatedAt: base.Add(2 * time.Second)},
		dto.MessageResponse{ID: 1, Text: "first", CreatedAt: base},
		dto.MessageResponse{ID: 2, Text: "same instant", CreatedAt: base},
	)
	require.Equal(t, []uint{1, 2, 3}, ids(fresh))
	require.Equal(t, []uint{1, 2, 3}, ids(session.Messages()))
}

func TestSessionClassifiesMessages(t *testing.T) {
	backend := &fakeBackend{}
	session := newSession(backend, nil)
	ctx := context.Background()
	_, err := session.Open(ctx)
	require.NoError(t, err)

	sent, err := session.SendProposal(ctx, dto.ProposalSendRequest{Date: "2025-03-10", Time: "2:00 PM", Location: "Bass Library"})
	require.NoError(t, err)
	backend.add("cd456", "sounds fun")

	_, err = session.Decline(ctx, sent.ID)
	require.NoError(t, err)
	_, err = session.Accept(ctx, sent.ID)
	require.NoError(t, err)
	require.NoError(t, session.Refresh(ctx))

	messages := session.Messages()
	require.Len(t, messages, 4)
	require.Equal(t, proposal.KindProposal, messages[0].Kind)
	require.Equal(t, proposal.StatusPending, messages[0].Proposal.Status)
	require.Equal(t, proposal.KindPlain, messages[1].Kind)
	require.Equal(t, proposal.KindDeclined, messages[2].Kind)
	require.Equal(t, proposal.KindAccepted, messages[3].Kind)
}

func TestSessionRefreshErrorLeavesViewIntact(t *testing.T) {
	backend := &fakeBackend{}
	backend.add("cd456", "hello")
	session := newSession(backend, nil)
	_, err := session.Open(context.Background())
	require.NoError(t, err)

	backend.listErr = errors.New("offline")
	require.Error(t, session.Refresh(context.Background()))
	require.Len(t, session.Messages(), 1)
}

func TestSessionRunStopsPollingOnCancel(t *testing.T) {
	backend := &fakeBackend{}
	session := newSession(backend, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	require.Eventually(t, func() bool {
		lists, _ := backend.counts()
		return lists >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("run did not return after cancel")
	}

	lists, marks := backend.counts()
	time.Sleep(50 * time.Millisecond)
	listsAfter, marksAfter := backend.counts()
	require.Equal(t, lists, listsAfter)
	require.Equal(t, marks, marksAfter)
}
