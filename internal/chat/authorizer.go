package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HandshakeState tracks an authorization attempt for one subscription.
type HandshakeState int

const (
	// HandshakePending means the handshake was received but not yet decided.
	HandshakePending HandshakeState = iota
	// HandshakeApproved is terminal; a credential was issued.
	HandshakeApproved
	// HandshakeRejected is terminal; no credential is ever issued afterwards.
	HandshakeRejected
)

// Handshake is a single subscription attempt moving Pending -> Approved|Rejected.
type Handshake struct {
	SocketID string
	Channel  string

	state      HandshakeState
	reason     string
	credential string
}

// NewHandshake starts a pending handshake for a socket requesting a channel.
func NewHandshake(socketID, channel string) *Handshake {
	return &Handshake{SocketID: socketID, Channel: channel, state: HandshakePending}
}

// State returns the current handshake state.
func (h *Handshake) State() HandshakeState { return h.state }

// Credential returns the signed token issued on approval, or "".
func (h *Handshake) Credential() string { return h.credential }

// Reason returns the rejection error code, or "".
func (h *Handshake) Reason() string { return h.reason }

// AuthorizerConfig tunes the channel authorizer.
type AuthorizerConfig struct {
	// Secret signs handshake credentials.
	Secret []byte
	// CredentialTTL bounds how long an issued credential stays usable.
	CredentialTTL time.Duration
	// StrictMembership additionally requires the caller to be one of the two
	// participants encoded in the channel name. When off, any authenticated
	// caller may subscribe to any correctly-prefixed channel it knows.
	StrictMembership bool
}

// Authorizer decides subscription handshakes and signs channel-scoped credentials.
type Authorizer struct {
	cfg AuthorizerConfig
}

// NewAuthorizer creates a channel authorizer.
func NewAuthorizer(cfg AuthorizerConfig) *Authorizer {
	if cfg.CredentialTTL == 0 {
		cfg.CredentialTTL = 2 * time.Minute
	}
	return &Authorizer{cfg: cfg}
}

// Decide transitions a pending handshake to its terminal state for the given
// caller identity. Deciding an already-decided handshake is a no-op and
// returns the recorded outcome.
func (a *Authorizer) Decide(h *Handshake, id Identity) error {
	if h.state != HandshakePending {
		return h.decidedError()
	}

	if !id.Authenticated {
		return h.reject(ErrCodeUnauthenticated, "unauthorized")
	}

	if !strings.HasPrefix(h.Channel, ChannelPrefix) {
		return h.reject(ErrCodeForbiddenChannel, "forbidden channel")
	}

	key, err := ParseChannel(h.Channel)
	if err != nil {
		return h.reject(ErrCodeForbiddenChannel, "forbidden channel")
	}

	if a.cfg.StrictMembership && !key.Includes(id.CallerID) {
		return h.reject(ErrCodeForbiddenChannel, "forbidden channel")
	}

	cred, err := a.sign(h.SocketID, h.Channel)
	if err != nil {
		return fmt.Errorf("sign credential: %w", err)
	}

	h.state = HandshakeApproved
	h.credential = cred
	return nil
}

func (h *Handshake) reject(code, msg string) error {
	h.state = HandshakeRejected
	h.reason = code
	return newError(code, msg)
}

func (h *Handshake) decidedError() error {
	if h.state == HandshakeApproved {
		return nil
	}
	return newError(h.reason, "handshake already rejected")
}

// credentialClaims scopes a handshake credential to one socket and one channel.
type credentialClaims struct {
	SocketID string `json:"socket_id"`
	Channel  string `json:"channel"`
	jwt.RegisteredClaims
}

func (a *Authorizer) sign(socketID, channel string) (string, error) {
	now := time.Now()
	claims := credentialClaims{
		SocketID: socketID,
		Channel:  channel,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.cfg.CredentialTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.cfg.Secret)
}

// VerifyCredential checks that credential was issued for exactly this socket
// and channel and has not expired.
func (a *Authorizer) VerifyCredential(credential, socketID, channel string) error {
	token, err := jwt.ParseWithClaims(credential, &credentialClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.cfg.Secret, nil
	})
	if err != nil {
		return newError(ErrCodeForbiddenChannel, "invalid channel credential")
	}

	claims, ok := token.Claims.(*credentialClaims)
	if !ok || !token.Valid {
		return newError(ErrCodeForbiddenChannel, "invalid channel credential")
	}
	if claims.SocketID != socketID || claims.Channel != channel {
		return newError(ErrCodeForbiddenChannel, "credential not issued for this subscription")
	}
	return nil
}
