package store

import (
	"context"
	"time"
)

// User represents an account in the system: a support collaborator or an
// external party chatting through the widget.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsExternal   bool
	SessionID    string // for external party session tracking
	CreatedAt    time.Time
}

// Message is a persisted chat message. The store assigns ID and SentAt at
// append time; both are immutable afterwards. ConversationLow/High are the
// ordered participant ids of the thread.
type Message struct {
	ID               int64
	ConversationLow  int64
	ConversationHigh int64
	SenderID         int64
	Text             string
	SentAt           time.Time
}

// UserStore handles account persistence.
type UserStore interface {
	// CreateUser creates a collaborator account with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// CreateExternalUser creates an external-party account bound to a session ID.
	CreateExternalUser(ctx context.Context, sessionID string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetUserBySessionID retrieves an external user by session ID.
	GetUserBySessionID(ctx context.Context, sessionID string) (*User, error)
}

// MessageStore is the append-only message backend. Implementations must
// assign Message.ID and Message.SentAt on append and list in append order.
type MessageStore interface {
	// AppendMessage durably appends a message to its conversation.
	AppendMessage(ctx context.Context, msg *Message) error

	// ListMessages returns all messages of the conversation (low, high) in
	// append order.
	ListMessages(ctx context.Context, low, high int64) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Close closes the underlying connection.
	Close() error
}
