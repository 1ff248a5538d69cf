package chat

import (
	"fmt"
	"strconv"
	"strings"
)

// ChannelPrefix scopes every conversation channel. Subscription requests for
// names outside this namespace are rejected by the authorizer.
const ChannelPrefix = "private-chat-"

// ConversationKey identifies a two-party thread as the unordered pair of the
// external sender id and the collaborator id. Low <= High always holds.
type ConversationKey struct {
	Low  int64
	High int64
}

// NewConversationKey normalizes a participant pair into a key.
// The same two ids produce the same key regardless of argument order.
func NewConversationKey(a, b int64) ConversationKey {
	if a > b {
		a, b = b, a
	}
	return ConversationKey{Low: a, High: b}
}

// Channel derives the pub/sub channel name mirroring this conversation.
func (k ConversationKey) Channel() string {
	return fmt.Sprintf("%s%d-%d", ChannelPrefix, k.Low, k.High)
}

func (k ConversationKey) String() string {
	return fmt.Sprintf("%d:%d", k.Low, k.High)
}

// Includes reports whether id is one of the two participants.
func (k ConversationKey) Includes(id int64) bool {
	return id == k.Low || id == k.High
}

// DeriveChannel maps a participant pair to its channel name. Order-independent.
func DeriveChannel(a, b int64) string {
	return NewConversationKey(a, b).Channel()
}

// ParseChannel recovers the conversation key from a channel name. It is the
// left inverse of DeriveChannel: ParseChannel(DeriveChannel(a, b)) always
// yields (min(a,b), max(a,b)) for positive ids.
func ParseChannel(name string) (ConversationKey, error) {
	rest, ok := strings.CutPrefix(name, ChannelPrefix)
	if !ok {
		return ConversationKey{}, newError(ErrCodeMalformedChannelName, "channel name must start with "+ChannelPrefix)
	}

	parts := strings.Split(rest, "-")
	if len(parts) != 2 {
		return ConversationKey{}, newError(ErrCodeMalformedChannelName, "channel name must contain exactly two participant ids")
	}

	low, err := parseID(parts[0])
	if err != nil {
		return ConversationKey{}, err
	}
	high, err := parseID(parts[1])
	if err != nil {
		return ConversationKey{}, err
	}
	if low > high {
		return ConversationKey{}, newError(ErrCodeMalformedChannelName, "channel participant ids must be ordered low-high")
	}

	return ConversationKey{Low: low, High: high}, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, newError(ErrCodeMalformedChannelName, "channel participant ids must be positive integers")
	}
	// Reject "07"-style segments so the mapping stays a bijection.
	if s != strconv.FormatInt(id, 10) {
		return 0, newError(ErrCodeMalformedChannelName, "channel participant ids must be canonical decimal integers")
	}
	return id, nil
}
