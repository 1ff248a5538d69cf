package chat

import (
	"testing"
	"time"
)

func newTestAuthorizer(strict bool) *Authorizer {
	return NewAuthorizer(AuthorizerConfig{
		Secret:           []byte("test-secret-change-me"),
		CredentialTTL:    time.Minute,
		StrictMembership: strict,
	})
}

func TestAuthorizerRejectsUnauthenticated(t *testing.T) {
	a := newTestAuthorizer(false)
	h := NewHandshake("sock-1", "private-chat-1-2")

	err := a.Decide(h, Identity{Authenticated: false})
	if ErrCode(err) != ErrCodeUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if h.State() != HandshakeRejected {
		t.Fatalf("expected rejected state, got %v", h.State())
	}
	if h.Credential() != "" {
		t.Fatalf("rejected handshake must not carry a credential")
	}
}

func TestAuthorizerRejectsForeignNamespace(t *testing.T) {
	a := newTestAuthorizer(false)

	channels := []string{
		"presence-orders-1",
		"private-notifications-1-2",
		"private-chat-x-y",
		"private-chat-1",
	}

	for _, ch := range channels {
		h := NewHandshake("sock-1", ch)
		err := a.Decide(h, Identity{Authenticated: true, CallerID: 1, Role: RoleCollaborator})
		if ErrCode(err) != ErrCodeForbiddenChannel {
			t.Errorf("channel %q: expected forbidden_channel, got %v", ch, err)
		}
		if h.State() != HandshakeRejected {
			t.Errorf("channel %q: expected rejected state", ch)
		}
	}
}

func TestAuthorizerApprovesAndSignsCredential(t *testing.T) {
	a := newTestAuthorizer(true)
	h := NewHandshake("sock-1", "private-chat-1-2")

	if err := a.Decide(h, Identity{Authenticated: true, CallerID: 2, Role: RoleCollaborator}); err != nil {
		t.Fatalf("expected approval, got %v", err)
	}
	if h.State() != HandshakeApproved {
		t.Fatalf("expected approved state, got %v", h.State())
	}

	cred := h.Credential()
	if cred == "" {
		t.Fatalf("approved handshake must carry a credential")
	}

	if err := a.VerifyCredential(cred, "sock-1", "private-chat-1-2"); err != nil {
		t.Fatalf("credential should verify for its own scope: %v", err)
	}

	// Credential is scoped: wrong socket or channel must fail.
	if err := a.VerifyCredential(cred, "sock-2", "private-chat-1-2"); err == nil {
		t.Fatalf("credential must not verify for another socket")
	}
	if err := a.VerifyCredential(cred, "sock-1", "private-chat-1-3"); err == nil {
		t.Fatalf("credential must not verify for another channel")
	}
}

// Strict membership is the hardened behavior: the caller must be one of the
// two participants encoded in the channel name.
func TestAuthorizerStrictMembership(t *testing.T) {
	a := newTestAuthorizer(true)

	h := NewHandshake("sock-1", "private-chat-1-2")
	err := a.Decide(h, Identity{Authenticated: true, CallerID: 99, Role: RoleCollaborator})
	if ErrCode(err) != ErrCodeForbiddenChannel {
		t.Fatalf("expected forbidden_channel for non-participant, got %v", err)
	}
}

// With strict membership off, the looser legacy behavior applies: any
// authenticated caller may subscribe to a correctly-prefixed channel it knows.
func TestAuthorizerLegacyMembership(t *testing.T) {
	a := newTestAuthorizer(false)

	h := NewHandshake("sock-1", "private-chat-1-2")
	if err := a.Decide(h, Identity{Authenticated: true, CallerID: 99, Role: RoleCollaborator}); err != nil {
		t.Fatalf("legacy mode should approve any participant pair, got %v", err)
	}
	if h.State() != HandshakeApproved {
		t.Fatalf("expected approved state, got %v", h.State())
	}
}

func TestHandshakeDecisionIsTerminal(t *testing.T) {
	a := newTestAuthorizer(false)
	h := NewHandshake("sock-1", "private-chat-1-2")

	if err := a.Decide(h, Identity{Authenticated: false}); ErrCode(err) != ErrCodeUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}

	// A later, fully-authenticated decision must not flip the outcome.
	err := a.Decide(h, Identity{Authenticated: true, CallerID: 1})
	if ErrCode(err) != ErrCodeUnauthenticated {
		t.Fatalf("rejected handshake must stay rejected, got %v", err)
	}
	if h.State() != HandshakeRejected {
		t.Fatalf("expected rejected state, got %v", h.State())
	}
}

func TestAuthorizerExpiredCredential(t *testing.T) {
	a := NewAuthorizer(AuthorizerConfig{
		Secret:        []byte("test-secret-change-me"),
		CredentialTTL: -time.Minute,
	})

	h := NewHandshake("sock-1", "private-chat-1-2")
	if err := a.Decide(h, Identity{Authenticated: true, CallerID: 1}); err != nil {
		t.Fatalf("expected approval, got %v", err)
	}

	if err := a.VerifyCredential(h.Credential(), "sock-1", "private-chat-1-2"); err == nil {
		t.Fatalf("expired credential must not verify")
	}
}
