package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so it can cross process boundaries and still be
// reported with the right HTTP status.
type Kind int

const (
	// KindUnknown is an unclassified failure (HTTP 500).
	KindUnknown Kind = iota
	// KindConfig is a missing or invalid configuration value.
	KindConfig
	// KindAuth is a missing credential for an outbound call.
	KindAuth
	// KindValidation is a malformed request or tool argument.
	KindValidation
	// KindUpstream is a non-2xx answer or network failure from a downstream service.
	KindUpstream
	// KindTimeout is a downstream call that exceeded its deadline.
	KindTimeout
	// KindRange is an out-of-range index (negative chunk index).
	KindRange
)

var kindNames = map[Kind]string{
	KindUnknown:    "unknown",
	KindConfig:     "config",
	KindAuth:       "auth",
	KindValidation: "validation",
	KindUpstream:   "upstream",
	KindTimeout:    "timeout",
	KindRange:      "range",
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind is the inverse of Kind.String. Unknown names map to KindUnknown.
func ParseKind(s string) Kind {
	for k, name := range kindNames {
		if name == s {
			return k
		}
	}
	return KindUnknown
}

// Error is a classified failure.
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "github.commit".
	Op string
	// StatusCode is the upstream HTTP status for KindUpstream, or an explicit
	// override for other kinds. Zero means "derive from Kind".
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the status code the API should answer with.
func (e *Error) HTTPStatus() int {
	if e.StatusCode >= 400 && e.StatusCode <= 599 {
		return e.StatusCode
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindRange:
		return http.StatusBadRequest
	case KindUpstream:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Config reports a missing or invalid configuration value.
func Config(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindConfig, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Auth reports a missing credential.
func Auth(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindAuth, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Validation reports a malformed input.
func Validation(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Range reports an index outside the valid range.
func Range(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindRange, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Upstream reports a downstream failure. status is the upstream HTTP status,
// or 0 when the service could not be reached. body is kept verbatim (sanitized).
func Upstream(op string, status int, body string, err error) *Error {
	return &Error{
		Kind:       KindUpstream,
		Op:         op,
		StatusCode: status,
		Message:    SanitizeString(body),
		Err:        SanitizeError(err),
	}
}

// Timeout reports a downstream call that ran past its deadline.
func Timeout(op string, err error) *Error {
	return &Error{Kind: KindTimeout, Op: op, Message: "deadline exceeded", Err: SanitizeError(err)}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps any error to an HTTP status. Unclassified errors are 500.
func HTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}
