package chat

import "time"

// DeliveryState tracks a message's journey from accepted to live-published.
type DeliveryState string

const (
	// DeliveryPending means the message was accepted but not yet stored.
	DeliveryPending DeliveryState = "pending"
	// DeliveryStored means the message is durable but not yet pushed live.
	DeliveryStored DeliveryState = "stored"
	// DeliveryPublished means subscribers received the live event.
	DeliveryPublished DeliveryState = "published"
	// DeliveryFailed means the store write succeeded but live delivery did not.
	// The message stays retrievable through the list path.
	DeliveryFailed DeliveryState = "failed"
)

// Message is the domain model for a chat message. ID and SentAt are assigned
// by the store at append time and are immutable afterwards.
type Message struct {
	ID             int64
	SenderID       int64
	CollaboratorID int64
	Text           string
	SentAt         time.Time
	DeliveryState  DeliveryState
}

// Key returns the conversation key of the message's thread.
func (m Message) Key() ConversationKey {
	return NewConversationKey(m.SenderID, m.CollaboratorID)
}

// ParticipantRole distinguishes the two kinds of chat participants.
type ParticipantRole string

const (
	RoleCollaborator   ParticipantRole = "collaborator"
	RoleExternalSender ParticipantRole = "external_sender"
)

// Identity is the resolved caller triple the core consumes. How it is derived
// from request credentials belongs to the auth layer.
type Identity struct {
	Authenticated bool
	CallerID      int64
	Role          ParticipantRole
}
