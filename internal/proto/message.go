package proto

import "encoding/json"

// Inbound is the envelope for frames coming from a subscriber socket.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeSubscribe   = "subscribe"
	InboundTypeUnsubscribe = "unsubscribe"

	OutboundTypeConnectionEstablished = "connection_established"
	OutboundTypeSubscribed            = "subscribed"
	OutboundTypeEvent                 = "event"
	OutboundTypeError                 = "error"
)

// SubscribeData asks to receive events for one channel. Auth is the handshake
// credential issued by the realtime auth endpoint for this socket and channel.
type SubscribeData struct {
	Channel string `json:"channel"`
	Auth    string `json:"auth"`
}

// UnsubscribeData stops delivery for one channel.
type UnsubscribeData struct {
	Channel string `json:"channel"`
}

// Outbound is the envelope for frames sent to a subscriber socket.
type Outbound struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Event   string          `json:"event,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// ConnectionEstablished introduces the socket id the client must present to
// the realtime auth endpoint.
type ConnectionEstablished struct {
	SocketID string `json:"socket_id"`
}

// ChatMessage is the wire form of a message event payload.
type ChatMessage struct {
	ID             int64  `json:"id"`
	SenderID       int64  `json:"senderId"`
	CollaboratorID int64  `json:"collaboratorId"`
	Text           string `json:"text"`
	SentAt         string `json:"sentAt"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
