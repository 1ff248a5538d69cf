package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/deskchat/deskchat-server/internal/gateway"
	"github.com/deskchat/deskchat-server/internal/proto"
	"github.com/deskchat/deskchat-server/internal/store"
)

const defaultPublishTimeout = 3 * time.Second

// Service orchestrates the send/list paths: validation, durable append,
// channel derivation and best-effort live publication.
type Service struct {
	store          store.MessageStore
	gw             gateway.Gateway
	log            *zerolog.Logger
	publishTimeout time.Duration
}

// NewService wires the orchestrator with its collaborators.
func NewService(st store.MessageStore, gw gateway.Gateway, logger *zerolog.Logger, publishTimeout time.Duration) *Service {
	if publishTimeout <= 0 {
		publishTimeout = defaultPublishTimeout
	}
	return &Service{
		store:          st,
		gw:             gw,
		log:            logger,
		publishTimeout: publishTimeout,
	}
}

// SendResult carries the stored message and an optional non-fatal delivery
// warning. Warning is set when the message is durable but live push failed.
type SendResult struct {
	Message Message
	Warning string
}

// Send validates the request, appends the message and publishes it to the
// conversation channel. The store write is authoritative: publish failures
// never roll it back and are surfaced only as a warning.
func (s *Service) Send(ctx context.Context, collaboratorID, senderID, text string) (SendResult, error) {
	params, err := ValidateSendParams(collaboratorID, senderID, text)
	if err != nil {
		return SendResult{}, err
	}

	key := NewConversationKey(params.SenderID, params.CollaboratorID)

	rec := &store.Message{
		ConversationLow:  key.Low,
		ConversationHigh: key.High,
		SenderID:         params.SenderID,
		Text:             params.Text,
	}
	if err := s.store.AppendMessage(ctx, rec); err != nil {
		s.log.Error().Err(err).
			Str("conversation", key.String()).
			Str("op", "append").
			Msg("message store append failed")
		return SendResult{}, newError(ErrCodeStoreUnavailable, "message store unavailable")
	}

	msg := Message{
		ID:             rec.ID,
		SenderID:       params.SenderID,
		CollaboratorID: params.CollaboratorID,
		Text:           rec.Text,
		SentAt:         rec.SentAt,
		DeliveryState:  DeliveryStored,
	}

	if err := s.publish(ctx, key.Channel(), msg); err != nil {
		s.log.Warn().Err(err).
			Str("conversation", key.String()).
			Str("channel", key.Channel()).
			Msg("live delivery failed, message remains retrievable via list")
		msg.DeliveryState = DeliveryFailed
		return SendResult{Message: msg, Warning: "live delivery failed; message stored"}, nil
	}

	msg.DeliveryState = DeliveryPublished
	return SendResult{Message: msg}, nil
}

// publish attempts delivery twice at most, each attempt under its own timeout.
// The read path is the durability backstop, so no further retries.
func (s *Service) publish(ctx context.Context, channel string, msg Message) error {
	payload, err := json.Marshal(proto.ChatMessage{
		ID:             msg.ID,
		SenderID:       msg.SenderID,
		CollaboratorID: msg.CollaboratorID,
		Text:           msg.Text,
		SentAt:         msg.SentAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}

	ev := gateway.Event{Channel: channel, Name: gateway.EventMessage, Payload: payload}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		pubCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
		lastErr = s.gw.Publish(pubCtx, ev)
		cancel()
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

// List validates the request and returns the conversation's messages in
// append order.
func (s *Service) List(ctx context.Context, collaboratorID, senderID string) ([]Message, error) {
	params, err := ValidateListParams(collaboratorID, senderID)
	if err != nil {
		return nil, err
	}

	key := NewConversationKey(params.SenderID, params.CollaboratorID)

	recs, err := s.store.ListMessages(ctx, key.Low, key.High)
	if err != nil {
		s.log.Error().Err(err).
			Str("conversation", key.String()).
			Str("op", "list").
			Msg("message store list failed")
		return nil, newError(ErrCodeStoreUnavailable, "message store unavailable")
	}

	messages := make([]Message, 0, len(recs))
	for _, rec := range recs {
		messages = append(messages, Message{
			ID:             rec.ID,
			SenderID:       rec.SenderID,
			CollaboratorID: params.CollaboratorID,
			Text:           rec.Text,
			SentAt:         rec.SentAt,
			DeliveryState:  DeliveryStored,
		})
	}
	return messages, nil
}
