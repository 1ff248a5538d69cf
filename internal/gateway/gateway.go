package gateway

import (
	"context"
	"encoding/json"
)

// EventMessage is the event name carried by chat message publications.
const EventMessage = "message"

// Event is a payload addressed to one channel. The gateway fans it out to
// every subscriber the channel authorizer admitted.
type Event struct {
	Channel string          `json:"channel"`
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"data"`
}

// Gateway is the live delivery transport. Publish is best-effort: the caller
// treats failures as non-fatal because the message store is the source of
// truth for durability.
type Gateway interface {
	Publish(ctx context.Context, ev Event) error
}
