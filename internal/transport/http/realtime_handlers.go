package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/deskchat/deskchat-server/internal/chat"
)

// RealtimeHandlers provides the subscription handshake endpoint.
type RealtimeHandlers struct {
	authorizer *chat.Authorizer
	log        *zerolog.Logger
}

// NewRealtimeHandlers creates a new realtime handlers instance.
func NewRealtimeHandlers(authorizer *chat.Authorizer, logger *zerolog.Logger) *RealtimeHandlers {
	return &RealtimeHandlers{
		authorizer: authorizer,
		log:        logger,
	}
}

// AuthRequest represents the subscription handshake body.
type AuthRequest struct {
	SocketID    string `json:"socketId" binding:"required"`
	ChannelName string `json:"channelName" binding:"required"`
}

// AuthorizeResponse carries the signed handshake credential.
type AuthorizeResponse struct {
	Auth string `json:"auth"`
}

// Authorize decides a subscription handshake for the calling identity.
// POST /realtime/auth
func (h *RealtimeHandlers) Authorize(c *gin.Context) {
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid realtime auth request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "socketId and channelName are required"})
		return
	}

	identity := identityFromContext(c)
	handshake := chat.NewHandshake(req.SocketID, req.ChannelName)

	if err := h.authorizer.Decide(handshake, identity); err != nil {
		switch chat.ErrCode(err) {
		case chat.ErrCodeUnauthenticated:
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		case chat.ErrCodeForbiddenChannel:
			h.log.Debug().
				Int64("caller_id", identity.CallerID).
				Str("channel", req.ChannelName).
				Msg("subscription rejected")
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden channel"})
		default:
			h.log.Error().Err(err).Str("channel", req.ChannelName).Msg("handshake decision failed")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, AuthorizeResponse{Auth: handshake.Credential()})
}
