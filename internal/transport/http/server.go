package http

import (
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/deskchat/deskchat-server/internal/auth"
	"github.com/deskchat/deskchat-server/internal/chat"
	"github.com/deskchat/deskchat-server/internal/config"
	"github.com/deskchat/deskchat-server/internal/gateway/hub"
)

// NewServer builds the HTTP server with all routes. subHub may be nil when
// live fanout is handled by an external broker; the subscriber socket
// endpoint is then not registered.
func NewServer(
	chatSvc *chat.Service,
	authorizer *chat.Authorizer,
	authService *auth.Service,
	subHub *hub.Hub,
	cfg *config.Config,
	logger *zerolog.Logger,
) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	apiHandlers := NewAPIHandlers(authService, logger)
	router.POST("/api/register", apiHandlers.Register)
	router.POST("/api/login", apiHandlers.Login)
	router.POST("/api/session/external", apiHandlers.ExternalSession)

	chatHandlers := NewChatHandlers(chatSvc, logger)
	router.GET("/chat/messages", chatHandlers.ListMessages)
	router.POST("/chat/messages", chatHandlers.SendMessage)

	realtimeHandlers := NewRealtimeHandlers(authorizer, logger)
	realtime := router.Group("/realtime")
	realtime.Use(IdentityMiddleware(authService, logger))
	realtime.POST("/auth", realtimeHandlers.Authorize)

	if subHub != nil {
		wsHandler := NewWSHandler(subHub, authorizer, logger)
		router.GET("/realtime/ws", gin.WrapH(wsHandler))
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// healthHandler reports liveness only; no dependency checks.
func healthHandler(c *gin.Context) {
	c.JSON(stdhttp.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
