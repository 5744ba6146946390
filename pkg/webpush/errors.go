package webpush

import "fmt"

// Error codes surfaced to the transport layer. The transport maps each code
// to a wire-level status; the engine itself never retries or escalates.
const (
	CodeInvalidParameter           = "invalid_parameter"
	CodeInvalidBoolean             = "invalid_boolean"
	CodeInvalidVapidKey            = "invalid_vapid_key"
	CodeUnsupportedEncoding        = "unsupported_encoding"
	CodeInvalidTTL                 = "invalid_ttl"
	CodeMissingAuthorization       = "missing_authorization"
	CodeInvalidAuthorizationHeader = "invalid_authorization_header"
	CodeInvalidCryptoKey           = "invalid_crypto_key"
	CodeInvalidToken               = "invalid_token"
	CodeClientNotSubscribed        = "client_not_subscribed"
	CodeSubscriptionNotFound       = "subscription_not_found"
	CodeSubscriptionExpired        = "subscription_expired"
	CodeDecryptionFailed           = "decryption_failed"
)

// Error is a validation or lifecycle failure with a stable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches two Errors by code, so errors.Is(err, &Error{Code: ...}) works
// regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrorCode returns the code carried by err, or "" if err is not a webpush
// Error.
func ErrorCode(err error) string {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
