package handler

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/skillswap-api/internal/chatsession"
	"github.com/noah-isme/skillswap-api/internal/dto"
	"github.com/noah-isme/skillswap-api/internal/identity"
	"github.com/noah-isme/skillswap-api/internal/middleware"
	"github.com/noah-isme/skillswap-api/internal/observability"
	"github.com/noah-isme/skillswap-api/internal/service"
	"github.com/noah-isme/skillswap-api/internal/utils"
	"github.com/noah-isme/skillswap-api/pkg/apperrors"
)

// ConversationHandlerOptions tunes the realtime endpoints.
type ConversationHandlerOptions struct {
	MessagePollInterval      time.Duration
	ConversationPollInterval time.Duration
	// SendBudget limits message and proposal creation over HTTP and the chat
	// socket. Nil disables limiting.
	SendBudget *middleware.SendBudget
}

// ConversationHandler serves conversations, messages and the chat websocket.
type ConversationHandler struct {
	service service.ConversationService
	opts    ConversationHandlerOptions
	limit   fiber.Handler
	logger  zerolog.Logger
}

// NewConversationHandler constructs the handler.
func NewConversationHandler(service service.ConversationService, opts ConversationHandlerOptions, logger zerolog.Logger) *ConversationHandler {
	if opts.MessagePollInterval <= 0 {
		opts.MessagePollInterval = chatsession.DefaultPollInterval
	}
	if opts.ConversationPollInterval <= 0 {
		opts.ConversationPollInterval = chatsession.DefaultInboxInterval
	}
	limit := func(c *fiber.Ctx) error { return c.Next() }
	if opts.SendBudget != nil {
		limit = opts.SendBudget.Handler()
	}

	return &ConversationHandler{
		service: service,
		opts:    opts,
		limit:   limit,
		logger:  logger.With().Str("component", "conversation_handler").Logger(),
	}
}

// Register binds conversation routes. The inbox socket is registered ahead of
// the :id routes so it is not captured as a conversation id.
func (h *ConversationHandler) Register(router fiber.Router) {
	router.Get("/inbox/ws", h.upgradeInbox, websocket.New(h.serveInbox))

	router.Post("", h.create)
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Get("/:id/messages", h.messages)
	router.Post("/:id/messages", h.limit, h.send)
	router.Post("/:id/proposals", h.limit, h.propose)
	router.Post("/:id/messages/:messageId/accept", h.limit, h.respond(true))
	router.Post("/:id/messages/:messageId/decline", h.limit, h.respond(false))
	router.Post("/:id/read", h.markRead)
	router.Get("/:id/ws", h.upgradeChat, websocket.New(h.serveChat))
}

func (h *ConversationHandler) create(c *fiber.Ctx) error {
	var payload dto.ConversationCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(payload.OtherNetID) == "" {
		return utils.SendAppError(c, apperrors.Validation("other_net_id is required"))
	}

	detail, err := h.service.GetOrCreate(requestContext(c), netIDFromContext(c), payload.OtherNetID)
	if err != nil {
		return utils.SendAppError(c, err)
	}
	return utils.SendSuccess(c, "conversation ready", detail)
}

func (h *ConversationHandler) list(c *fiber.Ctx) error {
	conversations, err := h.service.ListConversations(requestContext(c), netIDFromContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list conversations")
		return utils.SendAppError(c, err)
	}
	return utils.SendSuccess(c, "conversations retrieved", conversations)
}

func (h *ConversationHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendAppError(c, err)
	}

	detail, err := h.service.GetConversation(requestContext(c), id, netIDFromContext(c))
	if err != nil {
		return utils.SendAppError(c, err)
	}
	return utils.SendSuccess(c, "conversation retrieved", detail)
}

func (h *ConversationHandler) messages(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendAppError(c, err)
	}

	messages, err := h.service.ListMessages(requestContext(c), id, netIDFromContext(c))
	if err != nil {
		return utils.SendAppError(c, err)
	}
	return utils.SendSuccess(c, "messages retrieved", messages)
}

func (h *ConversationHandler) send(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendAppError(c, err)
	}

	var payload dto.MessageSendRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	message, err := h.service.SendMessage(requestContext(c), id, netIDFromContext(c), payload.Text)
	if err != nil {
		return utils.SendAppError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", message)
}

func (h *ConversationHandler) propose(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendAppError(c, err)
	}

	var payload dto.ProposalSendRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	message, err := h.service.SendProposal(requestContext(c), id, netIDFromContext(c), payload)
	if err != nil {
		return utils.SendAppError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "proposal sent", message)
}

func (h *ConversationHandler) respond(accept bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseUintParam(c, "id")
		if err != nil {
			return utils.SendAppError(c, err)
		}
		messageID, err := parseUintParam(c, "messageId")
		if err != nil {
			return utils.SendAppError(c, err)
		}

		message, err := h.service.RespondToProposal(requestContext(c), id, messageID, netIDFromContext(c), accept)
		if err != nil {
			return utils.SendAppError(c, err)
		}

		label := "proposal declined"
		if accept {
			label = "proposal accepted"
		}
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, label, message)
	}
}

func (h *ConversationHandler) markRead(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendAppError(c, err)
	}

	result, err := h.service.MarkRead(requestContext(c), id, netIDFromContext(c))
	if err != nil {
		return utils.SendAppError(c, err)
	}
	return utils.SendSuccess(c, "conversation marked read", result)
}

// upgradeChat checks membership over plain HTTP so outsiders get a JSON error
// instead of a socket that closes immediately.
func (h *ConversationHandler) upgradeChat(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendAppError(c, err)
	}
	viewerID := netIDFromContext(c)
	if _, err := h.service.GetConversation(requestContext(c), id, viewerID); err != nil {
		return utils.SendAppError(c, err)
	}

	h.stashSocketContext(c, viewerID)
	c.Locals("conversation_id", id)
	return c.Next()
}

func (h *ConversationHandler) upgradeInbox(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	h.stashSocketContext(c, netIDFromContext(c))
	return c.Next()
}

func (h *ConversationHandler) stashSocketContext(c *fiber.Ctx, viewerID string) {
	ctx := context.Background()
	if caller, ok := identity.FromContext(c.UserContext()); ok {
		ctx = identity.WithIdentity(ctx, caller)
	}
	c.Locals("request_ctx", requestCorrelation(ctx, c))
	c.Locals("net_id", viewerID)
}

func (h *ConversationHandler) serveChat(conn *websocket.Conn) {
	conversationID, _ := conn.Locals("conversation_id").(uint)
	viewerID, _ := conn.Locals("net_id").(string)
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	logger := h.logger.With().Uint("conversation_id", conversationID).Str("net_id", viewerID).Logger()
	ctx, cancel := context.WithCancel(baseCtx)
	writer := newFrameWriter(conn)

	session := chatsession.New(h.service, chatsession.Options{
		ConversationID: conversationID,
		ViewerID:       viewerID,
		PollInterval:   h.opts.MessagePollInterval,
		Logger:         h.logger,
		OnMessages: func(messages []dto.MessageResponse) {
			writer.write(dto.ChatEvent{Type: dto.EventMessages, Messages: messages})
		},
	})

	if _, err := session.Open(ctx); err != nil {
		cancel()
		writer.write(errorEvent(err))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "unable to load conversation"))
		return
	}

	updates, unsubscribe := h.service.Subscribe(conversationID)
	observability.ChatSessionsActive().Inc()
	logger.Info().Msg("chat websocket connected")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = session.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case message, ok := <-updates:
				if !ok {
					return
				}
				session.Apply(message)
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var frame dto.ChatFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			writer.write(errorEvent(apperrors.Validation("malformed frame")))
			continue
		}
		if createsMessage(frame.Type) && !h.opts.SendBudget.Allow(ctx, viewerID) {
			writer.write(errorEvent(apperrors.RateLimited("too many messages, slow down")))
			continue
		}
		if err := dispatchFrame(ctx, session, frame); err != nil {
			writer.write(errorEvent(err))
		}
	}

	cancel()
	unsubscribe()
	wg.Wait()
	writer.close()
	observability.ChatSessionsActive().Dec()
	logger.Info().Msg("chat websocket disconnected")
}

func createsMessage(frameType string) bool {
	switch frameType {
	case dto.FrameMessage, dto.FrameProposal, dto.FrameAccept, dto.FrameDecline:
		return true
	}
	return false
}

func dispatchFrame(ctx context.Context, session *chatsession.Session, frame dto.ChatFrame) error {
	var err error
	switch frame.Type {
	case dto.FrameMessage:
		_, err = session.Send(ctx, frame.Text)
	case dto.FrameProposal:
		if frame.Proposal == nil {
			return apperrors.Validation("proposal payload required")
		}
		_, err = session.SendProposal(ctx, *frame.Proposal)
	case dto.FrameAccept:
		_, err = session.Accept(ctx, frame.MessageID)
	case dto.FrameDecline:
		_, err = session.Decline(ctx, frame.MessageID)
	case dto.FrameRead:
		session.MarkRead(ctx)
	default:
		err = apperrors.Validation("unknown frame type")
	}
	return err
}

func (h *ConversationHandler) serveInbox(conn *websocket.Conn) {
	viewerID, _ := conn.Locals("net_id").(string)
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	ctx, cancel := context.WithCancel(baseCtx)
	writer := newFrameWriter(conn)

	var inbox *chatsession.Inbox
	inbox = chatsession.NewInbox(h.service, viewerID, h.opts.ConversationPollInterval, h.logger, func(conversations []dto.ConversationSummary) {
		writer.write(dto.InboxEvent{
			Type:          dto.EventConversations,
			Conversations: conversations,
			UnreadTotal:   inbox.UnreadTotal(),
		})
	})

	if err := inbox.Refresh(ctx); err != nil {
		cancel()
		writer.write(errorEvent(err))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "unable to load conversations"))
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = inbox.Run(ctx)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	cancel()
	<-done
	writer.close()
}

// frameWriter serializes writes from the poll, push and read loops.
type frameWriter struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func newFrameWriter(conn *websocket.Conn) *frameWriter {
	return &frameWriter{conn: conn}
}

func (w *frameWriter) write(payload interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if err := w.conn.WriteJSON(payload); err != nil {
		w.closed = true
	}
}

func (w *frameWriter) close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}

func errorEvent(err error) dto.ChatEvent {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || utils.StatusFor(appErr.Code) >= fiber.StatusInternalServerError {
		return dto.ChatEvent{Type: dto.EventError, Code: string(apperrors.CodeInternal), Error: "internal server error"}
	}
	return dto.ChatEvent{Type: dto.EventError, Code: string(appErr.Code), Error: appErr.Message}
}
