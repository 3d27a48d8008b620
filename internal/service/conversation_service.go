package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/skillswap-api/internal/dto"
	"github.com/noah-isme/skillswap-api/internal/middleware"
	"github.com/noah-isme/skillswap-api/internal/models"
	"github.com/noah-isme/skillswap-api/internal/observability"
	"github.com/noah-isme/skillswap-api/internal/proposal"
	"github.com/noah-isme/skillswap-api/internal/repository"
	"github.com/noah-isme/skillswap-api/pkg/apperrors"
)

const (
	maxMessageLength      = 4000
	subscriberBufferSize  = 32
	messageEventType      = "message.created"
	conversationQueueName = "skillswap-conversations"
)

// ConversationService owns conversation lookup and creation, message exchange
// including meeting proposals, and read-state transitions. Every operation
// takes the acting net id explicitly.
type ConversationService interface {
	GetOrCreate(ctx context.Context, viewerID, otherID string) (dto.ConversationDetail, error)
	ListConversations(ctx context.Context, viewerID string) ([]dto.ConversationSummary, error)
	GetConversation(ctx context.Context, conversationID uint, viewerID string) (dto.ConversationDetail, error)
	ListMessages(ctx context.Context, conversationID uint, viewerID string) ([]dto.MessageResponse, error)
	SendMessage(ctx context.Context, conversationID uint, senderID, text string) (dto.MessageResponse, error)
	SendProposal(ctx context.Context, conversationID uint, senderID string, req dto.ProposalSendRequest) (dto.MessageResponse, error)
	RespondToProposal(ctx context.Context, conversationID, messageID uint, responderID string, accept bool) (dto.MessageResponse, error)
	MarkRead(ctx context.Context, conversationID uint, readerID string) (dto.MarkReadResponse, error)
	Subscribe(conversationID uint) (<-chan dto.MessageResponse, func())
	Start(ctx context.Context)
}

type conversationService struct {
	repo        repository.ConversationRepository
	profiles    repository.ProfileRepository
	activities  ActivityRecorder
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	broker      *messageBroker
	nodeID      string
	now         func() time.Time
}

type messageBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.MessageResponse]struct{}
}

type messageEvent struct {
	Type    string              `json:"type"`
	Source  string              `json:"source"`
	Message dto.MessageResponse `json:"message"`
	SentAt  time.Time           `json:"sent_at"`
}

// NewConversationService creates the conversation service. Redis and NATS are
// optional; without them message events stay on this node.
func NewConversationService(repo repository.ConversationRepository, profiles repository.ProfileRepository, activities ActivityRecorder, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, validate *validator.Validate, logger zerolog.Logger) ConversationService {
	streamChannel := ""
	natsSubject := ""
	if channelBase != "" {
		streamChannel = channelBase + ":messages"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".messages"
	}

	return &conversationService{
		repo:        repo,
		profiles:    profiles,
		activities:  activities,
		redis:       redisClient,
		redisStream: streamChannel,
		nats:        natsConn,
		natsSubject: natsSubject,
		validator:   validate,
		logger:      logger.With().Str("component", "conversation_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/skillswap-api/internal/service/conversation"),
		broker: &messageBroker{
			subscribers: make(map[uint]map[chan dto.MessageResponse]struct{}),
		},
		nodeID: uuid.NewString(),
		now:    time.Now,
	}
}

func (s *conversationService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		s.consumeNATS(ctx)
	}
}

func (s *conversationService) GetOrCreate(ctx context.Context, viewerID, otherID string) (dto.ConversationDetail, error) {
	viewerID = normalizeNetID(viewerID)
	otherID = normalizeNetID(otherID)
	if viewerID == "" || otherID == "" {
		return dto.ConversationDetail{}, apperrors.Validation("both participants are required")
	}
	if viewerID == otherID {
		return dto.ConversationDetail{}, apperrors.Validation("cannot start a conversation with yourself")
	}

	ctx, span := s.tracer.Start(ctx, "conversation.get_or_create", trace.WithAttributes(s.spanAttributes(ctx, 0, viewerID)...))
	defer span.End()

	other, err := s.profiles.FindByNetID(ctx, otherID)
	if err != nil {
		return dto.ConversationDetail{}, err
	}

	conversation, created, err := s.repo.GetOrCreate(ctx, viewerID, otherID)
	if err != nil {
		span.RecordError(err)
		s.logger.Error().Err(err).Str("net_id", viewerID).Msg("failed to get or create conversation")
		return dto.ConversationDetail{}, err
	}

	if created {
		observability.ConversationsCreated().Inc()
		s.record(ctx, ActivityEntry{
			ActorID:    viewerID,
			Action:     models.ActivityConversationStarted,
			EntityType: "conversation",
			EntityID:   &conversation.ID,
			Metadata:   map[string]interface{}{"with": otherID},
		})
	}

	return dto.NewConversationDetail(conversation, viewerID, &other), nil
}

func (s *conversationService) ListConversations(ctx context.Context, viewerID string) ([]dto.ConversationSummary, error) {
	viewerID = normalizeNetID(viewerID)

	conversations, err := s.repo.ListForUser(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	otherIDs := make([]string, 0, len(conversations))
	for _, conversation := range conversations {
		otherIDs = append(otherIDs, conversation.OtherParticipant(viewerID))
	}

	profiles, err := s.profiles.FindByNetIDs(ctx, otherIDs)
	if err != nil {
		return nil, err
	}
	byNetID := make(map[string]models.Profile, len(profiles))
	for _, profile := range profiles {
		byNetID[profile.NetID] = profile
	}

	summaries := make([]dto.ConversationSummary, 0, len(conversations))
	for _, conversation := range conversations {
		var other *models.Profile
		if profile, ok := byNetID[conversation.OtherParticipant(viewerID)]; ok {
			other = &profile
		}
		summaries = append(summaries, dto.NewConversationSummary(conversation, viewerID, other))
	}

	return summaries, nil
}

func (s *conversationService) GetConversation(ctx context.Context, conversationID uint, viewerID string) (dto.ConversationDetail, error) {
	viewerID = normalizeNetID(viewerID)
	conversation, err := s.participantConversation(ctx, conversationID, viewerID)
	if err != nil {
		return dto.ConversationDetail{}, err
	}

	var other *models.Profile
	profile, err := s.profiles.FindByNetID(ctx, conversation.OtherParticipant(viewerID))
	switch {
	case err == nil:
		other = &profile
	case apperrors.IsNotFound(err):
	default:
		return dto.ConversationDetail{}, err
	}

	return dto.NewConversationDetail(conversation, viewerID, other), nil
}

func (s *conversationService) ListMessages(ctx context.Context, conversationID uint, viewerID string) ([]dto.MessageResponse, error) {
	if _, err := s.participantConversation(ctx, conversationID, normalizeNetID(viewerID)); err != nil {
		return nil, err
	}

	messages, err := s.repo.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return dto.NewMessageResponseSlice(messages), nil
}

func (s *conversationService) SendMessage(ctx context.Context, conversationID uint, senderID, text string) (dto.MessageResponse, error) {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return dto.MessageResponse{}, apperrors.Validation("message text is required")
	}
	if utf8.RuneCountInString(clean) > maxMessageLength {
		return dto.MessageResponse{}, apperrors.Validation("message text must be at most 4000 characters")
	}

	return s.appendMessage(ctx, conversationID, normalizeNetID(senderID), clean)
}

func (s *conversationService) SendProposal(ctx context.Context, conversationID uint, senderID string, req dto.ProposalSendRequest) (dto.MessageResponse, error) {
	senderID = normalizeNetID(senderID)
	if err := validate(s.validator, req); err != nil {
		return dto.MessageResponse{}, err
	}

	conversation, err := s.participantConversation(ctx, conversationID, senderID)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	spots, err := s.meetingSpots(ctx, conversation.OtherParticipant(senderID))
	if err != nil {
		return dto.MessageResponse{}, err
	}

	draft := proposal.NewDraft(spots, s.now)
	if err := draft.SelectDate(req.Date); err != nil {
		return dto.MessageResponse{}, err
	}
	if err := draft.SelectTime(req.Time); err != nil {
		return dto.MessageResponse{}, err
	}
	if err := draft.SelectLocation(req.Location); err != nil {
		return dto.MessageResponse{}, err
	}
	if err := draft.SetNote(strings.TrimSpace(req.Note)); err != nil {
		return dto.MessageResponse{}, err
	}

	text, err := draft.Encode()
	if err != nil {
		return dto.MessageResponse{}, err
	}

	message, err := s.appendMessage(ctx, conversationID, senderID, text)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	if message.Proposal != nil {
		s.record(ctx, ActivityEntry{
			ActorID:    senderID,
			Action:     models.ActivityProposalSent,
			EntityType: "message",
			EntityID:   &message.ID,
			Metadata:   proposalMetadata(conversationID, *message.Proposal),
		})
	}

	return message, nil
}

func (s *conversationService) RespondToProposal(ctx context.Context, conversationID, messageID uint, responderID string, accept bool) (dto.MessageResponse, error) {
	responderID = normalizeNetID(responderID)
	if _, err := s.participantConversation(ctx, conversationID, responderID); err != nil {
		return dto.MessageResponse{}, err
	}

	original, err := s.repo.FindMessage(ctx, conversationID, messageID)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	p, ok := proposal.Decode(original.MessageText)
	if !ok {
		return dto.MessageResponse{}, apperrors.Validation("message does not contain a meeting proposal")
	}
	if original.SenderID == responderID {
		return dto.MessageResponse{}, apperrors.Validation("cannot respond to your own proposal")
	}

	text := proposal.DeclineText
	action := models.ActivityProposalDeclined
	if accept {
		text = proposal.AcceptanceText(p)
		action = models.ActivityProposalAccepted
	}

	message, err := s.appendMessage(ctx, conversationID, responderID, text)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	metadata := proposalMetadata(conversationID, p)
	metadata["proposal_message_id"] = original.ID
	s.record(ctx, ActivityEntry{
		ActorID:    responderID,
		Action:     action,
		EntityType: "message",
		EntityID:   &message.ID,
		Metadata:   metadata,
	})

	return message, nil
}

func (s *conversationService) MarkRead(ctx context.Context, conversationID uint, readerID string) (dto.MarkReadResponse, error) {
	flagged, err := s.repo.MarkRead(ctx, conversationID, normalizeNetID(readerID))
	if err != nil {
		return dto.MarkReadResponse{}, err
	}
	return dto.MarkReadResponse{ConversationID: conversationID, Flagged: flagged}, nil
}

// Subscribe registers for messages appended to the conversation on any node.
// The returned cleanup closes the channel.
func (s *conversationService) Subscribe(conversationID uint) (<-chan dto.MessageResponse, func()) {
	channel := make(chan dto.MessageResponse, subscriberBufferSize)
	s.broker.subscribe(conversationID, channel)

	var once sync.Once
	cleanup := func() {
		once.Do(func() { s.broker.unsubscribe(conversationID, channel) })
	}
	return channel, cleanup
}

func (s *conversationService) appendMessage(ctx context.Context, conversationID uint, senderID, text string) (dto.MessageResponse, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.append_message", trace.WithAttributes(s.spanAttributes(ctx, conversationID, senderID)...))
	defer span.End()

	message := models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		MessageText:    text,
	}
	if _, err := s.repo.AppendMessage(ctx, &message); err != nil {
		span.RecordError(err)
		if apperrors.IsStorage(err) {
			s.logger.Error().Err(err).Uint("conversation_id", conversationID).Msg("failed to append message")
		}
		return dto.MessageResponse{}, err
	}

	response := dto.NewMessageResponse(message)
	observability.MessagesSent().WithLabelValues(string(response.Kind)).Inc()

	s.broker.broadcast(conversationID, response)
	if err := s.publish(ctx, response); err != nil {
		s.logger.Warn().Err(err).Uint("conversation_id", conversationID).Msg("failed to publish message event")
	}

	return response, nil
}

func (s *conversationService) participantConversation(ctx context.Context, conversationID uint, netID string) (models.Conversation, error) {
	conversation, err := s.repo.FindByID(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, err
	}
	if !conversation.HasParticipant(netID) {
		return models.Conversation{}, apperrors.Forbidden("you are not a participant of this conversation")
	}
	return conversation, nil
}

func (s *conversationService) meetingSpots(ctx context.Context, netID string) ([]string, error) {
	profile, err := s.profiles.FindByNetID(ctx, netID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	spots := make([]string, 0, len(profile.MeetingSpots))
	for _, spot := range profile.MeetingSpots {
		spots = append(spots, spot.LocationName)
	}
	return spots, nil
}

func (s *conversationService) record(ctx context.Context, entry ActivityEntry) {
	if s.activities == nil {
		return
	}
	if _, err := s.activities.Record(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("action", entry.Action).Msg("failed to record activity")
	}
}

func (s *conversationService) spanAttributes(ctx context.Context, conversationID uint, netID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("conversation.actor", netID)}
	if conversationID != 0 {
		attrs = append(attrs, attribute.Int64("conversation.id", int64(conversationID)))
	}
	if correlation := middleware.CorrelationIDFromContext(ctx); correlation != "" {
		attrs = append(attrs, attribute.String("correlation_id", correlation))
	}
	return attrs
}

func proposalMetadata(conversationID uint, p proposal.Proposal) map[string]interface{} {
	return map[string]interface{}{
		"conversation_id": conversationID,
		"date":            p.Date,
		"time":            p.Time,
		"location":        p.Location,
	}
}

func (s *conversationService) publish(ctx context.Context, message dto.MessageResponse) error {
	if (s.redis == nil || s.redisStream == "") && (s.nats == nil || s.natsSubject == "") {
		return nil
	}

	payload, err := json.Marshal(messageEvent{
		Type:    messageEventType,
		Source:  s.nodeID,
		Message: message,
		SentAt:  s.now().UTC(),
	})
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			observability.EventsPublished().WithLabelValues("redis", "error").Inc()
			return err
		}
		observability.EventsPublished().WithLabelValues("redis", "ok").Inc()
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			observability.EventsPublished().WithLabelValues("nats", "error").Inc()
			return err
		}
		observability.EventsPublished().WithLabelValues("nats", "ok").Inc()
	}

	return nil
}

func (s *conversationService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			s.logger.Error().Err(err).Msg("message redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *conversationService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, conversationQueueName+"-"+s.nodeID, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats message subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain message nats subscription")
		}
	}()
}

// handleEvent re-broadcasts events from other nodes to local subscribers.
func (s *conversationService) handleEvent(data []byte) {
	var event messageEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid message event")
		return
	}
	if event.Type != messageEventType || event.Source == s.nodeID {
		return
	}

	s.broker.broadcast(event.Message.ConversationID, event.Message)
}

func (b *messageBroker) subscribe(conversationID uint, ch chan dto.MessageResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[conversationID]; !exists {
		b.subscribers[conversationID] = make(map[chan dto.MessageResponse]struct{})
	}
	b.subscribers[conversationID][ch] = struct{}{}
}

func (b *messageBroker) unsubscribe(conversationID uint, ch chan dto.MessageResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[conversationID]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, conversationID)
		}
	}
}

func (b *messageBroker) broadcast(conversationID uint, message dto.MessageResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[conversationID] {
		select {
		case ch <- message:
		default:
		}
	}
}
