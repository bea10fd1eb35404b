// Package errors provides structured error handling with machine
// readable codes shared by the transport and REST surfaces.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Authentication errors
	CodeAuthRejected     Code = "AUTH_REJECTED"
	CodeNotAuthenticated Code = "NOT_AUTHENTICATED"
	CodeTokenExpired     Code = "TOKEN_EXPIRED"
	CodeTokenMalformed   Code = "TOKEN_MALFORMED"
	CodeUnknownSubject   Code = "UNKNOWN_SUBJECT"
	CodeSessionClosed    Code = "SESSION_CLOSED"

	// Command errors
	CodeMissingReceiver Code = "MISSING_RECEIVER"
	CodeUnknownCommand  Code = "UNKNOWN_COMMAND"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// Storage errors
	CodeNotFound         Code = "NOT_FOUND"
	CodeAlreadyExists    Code = "ALREADY_EXISTS"
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
)

// WireCode maps a domain code onto the coarse wire taxonomy used by
// the WebSocket error envelope and the REST layer.
func (c Code) WireCode() string {
	switch c {
	case CodeAuthRejected, CodeTokenExpired, CodeTokenMalformed, CodeUnknownSubject:
		return "UNAUTHENTICATED"
	case CodeNotAuthenticated, CodeSessionClosed:
		return "FORBIDDEN"
	case CodeMissingReceiver, CodeUnknownCommand, CodeInvalidArgument:
		return "INVALID_ARGUMENT"
	case CodeNotFound:
		return "NOT_FOUND"
	case CodeAlreadyExists:
		return "ALREADY_EXISTS"
	case CodeStoreUnavailable:
		return "UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}
