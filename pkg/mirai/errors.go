package mirai

import (
	"errors"
	"fmt"
)

// Wire status codes returned in every non-streaming JSON response. Code 0 is
// success; everything else classifies into one of the kinds below.
const (
	CodeSuccess            = 0
	CodeInvalidAuthKey     = 1
	CodeBotNotFound        = 2
	CodeSessionNotExists   = 3
	CodeSessionNotVerified = 4
	CodeTargetNotFound     = 5
	CodePermissionDenied   = 10
	CodeBotMuted           = 20
	CodeMessageTooLong     = 30
	CodeInvalidRequest     = 400
)

// Protocol error kinds. Match with errors.Is; the carrying *APIError keeps
// the numeric code for programmatic branching.
var (
	ErrInvalidAuthKey     = errors.New("invalid auth key")
	ErrBotNotFound        = errors.New("bot not found")
	ErrSessionNotExists   = errors.New("session does not exist")
	ErrSessionNotVerified = errors.New("session not verified")
	ErrTargetNotFound     = errors.New("target not found")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrBotMuted           = errors.New("bot is muted")
	ErrMessageTooLong     = errors.New("message too long")
	ErrInvalidRequest     = errors.New("invalid request")
)

// Local and transport error kinds. These never carry a wire code: they are
// raised before any network activity (IllegalParams, FileNotFound) or signal
// a connection-class failure distinct from a protocol error.
var (
	ErrIllegalParams    = errors.New("illegal params")
	ErrFileNotFound     = errors.New("file not found")
	ErrTimeout          = errors.New("request timed out")
	ErrInvalidRespond   = errors.New("invalid respond")
	ErrConnectFailed    = errors.New("failed to connect to HTTP API")
	ErrFetchFailed      = errors.New("failed to fetch API response")
	ErrUpgradeFailed    = errors.New("failed to upgrade connection to websocket")
	ErrConnectionClosed = errors.New("connection to HTTP API closed")
)

var kindByCode = map[int]error{
	CodeInvalidAuthKey:     ErrInvalidAuthKey,
	CodeBotNotFound:        ErrBotNotFound,
	CodeSessionNotExists:   ErrSessionNotExists,
	CodeSessionNotVerified: ErrSessionNotVerified,
	CodeTargetNotFound:     ErrTargetNotFound,
	CodePermissionDenied:   ErrPermissionDenied,
	CodeBotMuted:           ErrBotMuted,
	CodeMessageTooLong:     ErrMessageTooLong,
	CodeInvalidRequest:     ErrInvalidRequest,
}

// APIError is a non-zero wire status classified into a typed kind. It
// unwraps to the kind sentinel, so callers can branch with errors.Is or read
// Code directly.
type APIError struct {
	Code    int
	Message string
	kind    error
}

func (e *APIError) Error() string {
	if e.kind == nil {
		return fmt.Sprintf("%s: unknown error, server returned code %d", e.Message, e.Code)
	}
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

func (e *APIError) Unwrap() error { return e.kind }

// ClassifyCode maps a wire status code to its typed error, nil for success.
// prefix is prepended to the server message for operation context.
func ClassifyCode(code int, msg, prefix string) error {
	if code == CodeSuccess {
		return nil
	}
	return &APIError{Code: code, Message: prefix + msg, kind: kindByCode[code]}
}
