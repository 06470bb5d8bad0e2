// Package errors defines the framework's error taxonomy. Every error that
// can legally cross a dispatch boundary carries a numeric code so it can
// be serialized onto an error reply packet.
package errors

import "fmt"

// Code is a framework or application error code. Framework codes occupy
// 0-99; application codes start at 1000.
type Code uint16

const (
	CodeSuccess                Code = 0
	CodeRequestTimeout         Code = 1
	CodeServerNotFound         Code = 2
	CodeStageNotFound          Code = 3
	CodeActorNotFound          Code = 4
	CodeAuthenticationFailed   Code = 5
	CodeNotAuthenticated       Code = 6
	CodeAlreadyAuthenticated   Code = 7
	CodeStageAlreadyExists     Code = 8
	CodeStageCreationFailed    Code = 9
	CodeJoinStageFailed        Code = 10
	CodeInvalidMessage         Code = 11
	CodeHandlerNotFound        Code = 12
	CodeInvalidStageType       Code = 13
	CodeSystemError            Code = 14
	CodeUncheckedContentsError Code = 15
	CodeInvalidAccountId       Code = 16
	CodeJoinStageRejected      Code = 17
	CodeInternalError          Code = 99

	// FirstApplicationCode is the lowest code application handlers may use
	// for their own error replies.
	FirstApplicationCode Code = 1000
)

var codeNames = map[Code]string{
	CodeSuccess:                "Success",
	CodeRequestTimeout:         "RequestTimeout",
	CodeServerNotFound:         "ServerNotFound",
	CodeStageNotFound:          "StageNotFound",
	CodeActorNotFound:          "ActorNotFound",
	CodeAuthenticationFailed:   "AuthenticationFailed",
	CodeNotAuthenticated:       "NotAuthenticated",
	CodeAlreadyAuthenticated:   "AlreadyAuthenticated",
	CodeStageAlreadyExists:     "StageAlreadyExists",
	CodeStageCreationFailed:    "StageCreationFailed",
	CodeJoinStageFailed:        "JoinStageFailed",
	CodeInvalidMessage:         "InvalidMessage",
	CodeHandlerNotFound:        "HandlerNotFound",
	CodeInvalidStageType:       "InvalidStageType",
	CodeSystemError:            "SystemError",
	CodeUncheckedContentsError: "UncheckedContentsError",
	CodeInvalidAccountId:       "InvalidAccountId",
	CodeJoinStageRejected:      "JoinStageRejected",
	CodeInternalError:         "InternalError",
}

// String implements Stringer, falling back to "Application(n)" for
// application-defined codes.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Application(%d)", uint16(c))
}

// Error is the concrete error type handed back from request-cache waits,
// mesh sends, and dispatch failures. It is deliberately a plain struct, not
// a wrapped stdlib error chain: callers need the code to build an error
// reply packet, not just a message.
type Error struct {
	Code Code
	Msg  string
	// Cause is the underlying error, if any, kept for logging only.
	Cause error
}

// NewError builds an Error from a code and an optional wrapped cause.
func NewError(code Code, cause error) *Error {
	e := &Error{Code: code}
	if cause != nil {
		e.Cause = cause
		e.Msg = cause.Error()
	} else {
		e.Msg = code.String()
	}
	return e
}

// NewErrorf builds an Error with a formatted message and no cause.
func NewErrorf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.Code, e.Cause)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// As reports whether err carries a framework Error and, if so, returns it.
func As(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	if fe, ok := err.(*Error); ok {
		return fe, true
	}
	return nil, false
}

// CodeOf extracts the framework code from err, defaulting to
// CodeInternalError for errors that never carried one.
func CodeOf(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	if fe, ok := As(err); ok {
		return fe.Code
	}
	return CodeInternalError
}
