package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/deskchat/deskchat-server/internal/auth"
	"github.com/deskchat/deskchat-server/internal/chat"
	"github.com/deskchat/deskchat-server/internal/config"
	"github.com/deskchat/deskchat-server/internal/gateway"
	"github.com/deskchat/deskchat-server/internal/gateway/hub"
	"github.com/deskchat/deskchat-server/internal/gateway/kafka"
	"github.com/deskchat/deskchat-server/internal/store"
	"github.com/deskchat/deskchat-server/internal/store/mongo"
	"github.com/deskchat/deskchat-server/internal/store/sqlite"
	transporthttp "github.com/deskchat/deskchat-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *hub.Hub
	log             *zerolog.Logger

	closers []func() error
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	a := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger,
	}

	// Users always live in the local database; the message backend is
	// selectable so message history can live in a remote document store.
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	if err := st.ApplySchema(); err != nil {
		st.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	a.closers = append(a.closers, st.Close)
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	msgStore, err := a.buildMessageStore(cfg, st)
	if err != nil {
		a.cleanup()
		return nil, err
	}

	gw, err := a.buildGateway(cfg, logger)
	if err != nil {
		a.cleanup()
		return nil, err
	}

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      24 * time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	authorizer := chat.NewAuthorizer(chat.AuthorizerConfig{
		Secret:           []byte(cfg.JWTSecret),
		StrictMembership: cfg.StrictMembership,
	})

	chatService := chat.NewService(msgStore, gw, logger, cfg.PublishTimeout)

	a.server = transporthttp.NewServer(chatService, authorizer, authService, a.hub, cfg, logger)
	return a, nil
}

func (a *App) buildMessageStore(cfg *config.Config, st *sqlite.SQLiteStore) (store.MessageStore, error) {
	switch cfg.MessageStore.Driver {
	case "", "sqlite":
		return st, nil
	case "mongo":
		ms, err := mongo.New(cfg.MessageStore.MongoURI, cfg.MessageStore.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("init mongo message store: %w", err)
		}
		a.closers = append(a.closers, ms.Close)
		a.log.Info().Str("database", cfg.MessageStore.MongoDatabase).Msg("mongo message store initialized")
		return ms, nil
	default:
		return nil, fmt.Errorf("unknown message store driver %q", cfg.MessageStore.Driver)
	}
}

func (a *App) buildGateway(cfg *config.Config, logger *zerolog.Logger) (gateway.Gateway, error) {
	switch cfg.Gateway.Kind {
	case "", "hub":
		a.hub = hub.New(logger)
		return a.hub, nil
	case "kafka":
		gw, err := kafka.New(cfg.Gateway.KafkaBrokers, cfg.Gateway.KafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("init kafka gateway: %w", err)
		}
		a.closers = append(a.closers, gw.Close)
		a.log.Info().Strs("brokers", cfg.Gateway.KafkaBrokers).Str("topic", cfg.Gateway.KafkaTopic).Msg("kafka gateway initialized")
		return gw, nil
	default:
		return nil, fmt.Errorf("unknown gateway kind %q", cfg.Gateway.Kind)
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	if a.hub != nil {
		go a.hub.Run(ctx)
	}

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database, broker and other resources.
func (a *App) cleanup() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn().Err(err).Msg("failed to close resource")
		}
	}
	a.closers = nil
}
