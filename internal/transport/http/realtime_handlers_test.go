package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
)

// registerUser creates a collaborator account and returns its bearer token.
// The first registered user gets id 1, the second id 2, and so on.
func registerUser(t *testing.T, env *testEnv, username string) string {
	t.Helper()

	token, err := env.authService.Register(context.Background(), username, "password123")
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return token
}

func requestAuth(t *testing.T, env *testEnv, token, socketID, channel string) *http.Response {
	t.Helper()

	body, _ := json.Marshal(AuthRequest{SocketID: socketID, ChannelName: channel})
	req, err := http.NewRequest(http.MethodPost, env.ts.URL+"/realtime/auth", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := env.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("auth request failed: %v", err)
	}
	return resp
}

func TestAuthorizeRequiresAuthentication(t *testing.T) {
	env := startTestServer(t, testEnvOptions{strictMembership: true})

	for _, token := range []string{"", "not-a-token"} {
		resp := requestAuth(t, env, token, "sock-1", "private-chat-1-2")
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("token %q: expected 401, got %d", token, resp.StatusCode)
		}

		var body ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Error != "unauthorized" {
			t.Fatalf("expected unauthorized error, got %q", body.Error)
		}
	}
}

func TestAuthorizeMissingFields(t *testing.T) {
	env := startTestServer(t, testEnvOptions{})
	token := registerUser(t, env, "agent")

	tests := []struct {
		name string
		body string
	}{
		{"empty", `{}`},
		{"no channel", `{"socketId":"sock-1"}`},
		{"no socket", `{"channelName":"private-chat-1-2"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPost, env.ts.URL+"/realtime/auth", bytes.NewBufferString(tt.body))
			if err != nil {
				t.Fatalf("build request: %v", err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+token)

			resp, err := env.ts.Client().Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestAuthorizeRejectsForeignChannels(t *testing.T) {
	env := startTestServer(t, testEnvOptions{strictMembership: true})
	token := registerUser(t, env, "agent") // user id 1

	channels := []string{
		"presence-global",
		"private-chat-1-2-3",
		"private-chat-a-b",
		"private-chat-2-1",  // ids out of order
		"private-chat-2-3",  // caller is not a participant
		"private-chat-01-2", // non-canonical id
		"private-chat--1-2", // negative id
	}

	for _, channel := range channels {
		resp := requestAuth(t, env, token, "sock-1", channel)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("channel %q: expected 403, got %d", channel, resp.StatusCode)
		}

		var body ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Error != "forbidden channel" {
			t.Fatalf("channel %q: expected forbidden channel error, got %q", channel, body.Error)
		}
	}
}

func TestAuthorizeIssuesCredential(t *testing.T) {
	env := startTestServer(t, testEnvOptions{strictMembership: true})
	token := registerUser(t, env, "agent") // user id 1

	resp := requestAuth(t, env, token, "sock-42", "private-chat-1-2")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body AuthorizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Auth == "" {
		t.Fatalf("expected a credential")
	}

	// The credential is bound to the socket and channel it was issued for.
	if err := env.authorizer.VerifyCredential(body.Auth, "sock-42", "private-chat-1-2"); err != nil {
		t.Fatalf("credential must verify: %v", err)
	}
	if err := env.authorizer.VerifyCredential(body.Auth, "sock-other", "private-chat-1-2"); err == nil {
		t.Fatalf("credential must not verify for another socket")
	}
	if err := env.authorizer.VerifyCredential(body.Auth, "sock-42", "private-chat-1-3"); err == nil {
		t.Fatalf("credential must not verify for another channel")
	}
}

func TestAuthorizeLooseMembership(t *testing.T) {
	env := startTestServer(t, testEnvOptions{strictMembership: false})
	token := registerUser(t, env, "agent") // user id 1, not part of the channel below

	resp := requestAuth(t, env, token, "sock-1", "private-chat-5-9")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 without membership enforcement, got %d", resp.StatusCode)
	}
}

func TestAuthorizeExternalSender(t *testing.T) {
	env := startTestServer(t, testEnvOptions{strictMembership: true})

	token, _, err := env.authService.CreateExternalSession(context.Background())
	if err != nil {
		t.Fatalf("create external session: %v", err)
	}

	// External senders get a user id from the same sequence; the first
	// account in this environment gets id 1.
	resp := requestAuth(t, env, token, "sock-1", "private-chat-1-7")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for a participating external sender, got %d", resp.StatusCode)
	}
}
