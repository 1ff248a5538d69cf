package chat

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxTextLen caps message text length in code points. Longer texts are
// rejected, never truncated.
const MaxTextLen = 4096

// ListParams is a validated "list messages" request.
type ListParams struct {
	CollaboratorID int64
	SenderID       int64
}

// SendParams is a validated "send message" request.
type SendParams struct {
	CollaboratorID int64
	SenderID       int64
	Text           string
}

// ValidateListParams checks the raw query values of the list operation.
// Both ids must be present and parse as positive integers.
func ValidateListParams(collaboratorID, senderID string) (ListParams, error) {
	if collaboratorID == "" || senderID == "" {
		return ListParams{}, newError(ErrCodeMissingParameters, "listing messages requires both collaboratorId and senderId")
	}

	cid, err := parseParticipantID(collaboratorID)
	if err != nil {
		return ListParams{}, err
	}
	sid, err := parseParticipantID(senderID)
	if err != nil {
		return ListParams{}, err
	}

	return ListParams{CollaboratorID: cid, SenderID: sid}, nil
}

// ValidateSendParams checks the raw body values of the send operation.
// Text is trimmed before the emptiness check; the length cap counts code points.
func ValidateSendParams(collaboratorID, senderID, text string) (SendParams, error) {
	text = strings.TrimSpace(text)
	if collaboratorID == "" || senderID == "" || text == "" {
		return SendParams{}, newError(ErrCodeMissingParameters, "sending a message requires collaboratorId, senderId and text")
	}

	cid, err := parseParticipantID(collaboratorID)
	if err != nil {
		return SendParams{}, err
	}
	sid, err := parseParticipantID(senderID)
	if err != nil {
		return SendParams{}, err
	}

	if utf8.RuneCountInString(text) > MaxTextLen {
		return SendParams{}, newError(ErrCodePayloadTooLarge, "message text exceeds the maximum length")
	}

	return SendParams{CollaboratorID: cid, SenderID: sid, Text: text}, nil
}

func parseParticipantID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, newError(ErrCodeInvalidParameterType, "collaboratorId and senderId must be valid numbers")
	}
	return id, nil
}
