package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/deskchat/deskchat-server/internal/chat"
)

// ChatHandlers provides HTTP handlers for the message endpoints.
type ChatHandlers struct {
	svc *chat.Service
	log *zerolog.Logger
}

// NewChatHandlers creates a new chat handlers instance.
func NewChatHandlers(svc *chat.Service, logger *zerolog.Logger) *ChatHandlers {
	return &ChatHandlers{
		svc: svc,
		log: logger,
	}
}

// idValue carries a participant id sent as either a JSON string or a JSON
// number. Decoding never rejects a present value; the validation layer owns
// the parsing and reports non-numeric ids as such.
type idValue string

func (v *idValue) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = idValue(s)
		return nil
	}
	*v = idValue(bytes.TrimSpace(b))
	return nil
}

// SendMessageRequest represents the send message request body.
type SendMessageRequest struct {
	CollaboratorID idValue `json:"collaboratorId"`
	SenderID       idValue `json:"senderId"`
	Text           string  `json:"text"`
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID             int64  `json:"id"`
	SenderID       int64  `json:"senderId"`
	CollaboratorID int64  `json:"collaboratorId"`
	Text           string `json:"text"`
	SentAt         string `json:"sentAt"`
	DeliveryState  string `json:"deliveryState"`
}

// ListMessagesResponse wraps the list endpoint body.
type ListMessagesResponse struct {
	Messages []MessageResponse `json:"messages"`
}

// SendMessageResponse wraps the send endpoint body. Warning is present only
// when the message is stored but live delivery failed.
type SendMessageResponse struct {
	Message MessageResponse `json:"message"`
	Warning string          `json:"warning,omitempty"`
}

// ListMessages handles the conversation read path.
// GET /chat/messages?collaboratorId=<int>&senderId=<int>
func (h *ChatHandlers) ListMessages(c *gin.Context) {
	messages, err := h.svc.List(c.Request.Context(), c.Query("collaboratorId"), c.Query("senderId"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := ListMessagesResponse{Messages: make([]MessageResponse, 0, len(messages))}
	for _, msg := range messages {
		resp.Messages = append(resp.Messages, messageResponse(msg))
	}
	c.JSON(http.StatusOK, resp)
}

// SendMessage handles the conversation write path.
// POST /chat/messages
func (h *ChatHandlers) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "sending a message requires collaboratorId, senderId and text"})
		return
	}

	res, err := h.svc.Send(c.Request.Context(), string(req.CollaboratorID), string(req.SenderID), req.Text)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SendMessageResponse{
		Message: messageResponse(res.Message),
		Warning: res.Warning,
	})
}

func messageResponse(msg chat.Message) MessageResponse {
	return MessageResponse{
		ID:             msg.ID,
		SenderID:       msg.SenderID,
		CollaboratorID: msg.CollaboratorID,
		Text:           msg.Text,
		SentAt:         msg.SentAt.UTC().Format(time.RFC3339Nano),
		DeliveryState:  string(msg.DeliveryState),
	}
}

// writeError maps domain error codes to HTTP statuses. 4xx bodies echo the
// human-readable reason; 5xx bodies never expose internals.
func (h *ChatHandlers) writeError(c *gin.Context, err error) {
	switch chat.ErrCode(err) {
	case chat.ErrCodeMissingParameters, chat.ErrCodeInvalidParameterType, chat.ErrCodeMalformedChannelName:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case chat.ErrCodePayloadTooLarge:
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: err.Error()})
	case chat.ErrCodeUnauthenticated:
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	case chat.ErrCodeForbiddenChannel:
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden channel"})
	case chat.ErrCodeStoreUnavailable, chat.ErrCodeGatewayUnavailable:
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "service unavailable"})
	default:
		h.log.Error().Err(err).Msg("unhandled chat error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
