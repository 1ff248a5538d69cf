package chat

// Error codes for domain errors.
const (
	ErrCodeMissingParameters    = "missing_parameters"
	ErrCodeInvalidParameterType = "invalid_parameter_type"
	ErrCodePayloadTooLarge      = "payload_too_large"
	ErrCodeMalformedChannelName = "malformed_channel_name"
	ErrCodeUnauthenticated      = "unauthenticated"
	ErrCodeForbiddenChannel     = "forbidden_channel"
	ErrCodeStoreUnavailable     = "store_unavailable"
	ErrCodeGatewayUnavailable   = "gateway_unavailable"
)

// Error wraps a code and human-readable message.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// ErrCode extracts the domain error code from err, or "" if err is not a chat error.
func ErrCode(err error) string {
	if ce, ok := err.(*Error); ok {
		return ce.Code
	}
	return ""
}
