package http

import (
	"context"
	"database/sql"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/deskchat/deskchat-server/internal/auth"
	"github.com/deskchat/deskchat-server/internal/chat"
	"github.com/deskchat/deskchat-server/internal/config"
	"github.com/deskchat/deskchat-server/internal/gateway"
	"github.com/deskchat/deskchat-server/internal/gateway/hub"
	"github.com/deskchat/deskchat-server/internal/store"
	"github.com/deskchat/deskchat-server/internal/store/sqlite"
)

const testSecret = "test-secret-change-me"

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", func(db *sql.DB) error {
		_, err := db.Exec(sqlite.Schema)
		return err
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(t *testing.T, st store.Store) *auth.Service {
	t.Helper()

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(testSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}

	return auth.NewService(st, jwtConfig)
}

// testEnv bundles a running test server with its collaborators.
type testEnv struct {
	ts          *httptest.Server
	store       store.Store
	authService *auth.Service
	authorizer  *chat.Authorizer
	hub         *hub.Hub
}

// testEnvOptions tweaks the wiring of a test server.
type testEnvOptions struct {
	gateway          gateway.Gateway // nil means in-process hub
	strictMembership bool
}

func startTestServer(t *testing.T, opts testEnvOptions) *testEnv {
	t.Helper()

	st := createTestStore(t)
	authService := createTestAuthService(t, st)

	disabledLogger := zerolog.New(nil)

	authorizer := chat.NewAuthorizer(chat.AuthorizerConfig{
		Secret:           []byte(testSecret),
		CredentialTTL:    time.Minute,
		StrictMembership: opts.strictMembership,
	})

	var subHub *hub.Hub
	gw := opts.gateway
	if gw == nil {
		subHub = hub.New(&disabledLogger)
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		go subHub.Run(ctx)
		gw = subHub
	}

	chatService := chat.NewService(st, gw, &disabledLogger, 100*time.Millisecond)

	cfg := config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
		JWTSecret:         testSecret,
	}

	server := NewServer(chatService, authorizer, authService, subHub, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{
		ts:          ts,
		store:       st,
		authService: authService,
		authorizer:  authorizer,
		hub:         subHub,
	}
}
