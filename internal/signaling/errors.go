package signaling

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedMessage is returned by Decode for unusable inbound text.
	ErrMalformedMessage = errors.New("malformed message")
	// ErrNotConnected is returned by Send when there is no open connection.
	ErrNotConnected = errors.New("signaling not connected")
)

// ErrorCode classifies a server-side error definition.
type ErrorCode int

const (
	CodeUnknown ErrorCode = iota
	CodeNoStreamExist
	CodeUnauthorizedAccess
	CodeCustom
)

func (c ErrorCode) String() string {
	switch c {
	case CodeNoStreamExist:
		return "no_stream_exist"
	case CodeUnauthorizedAccess:
		return "unauthorized_access"
	case CodeCustom:
		return "custom"
	default:
		return "unknown"
	}
}

const customPrefix = "custom:"

const genericErrorText = "An error occurred, please try again"

// ServerError is an error reported by the server through an error command.
type ServerError struct {
	Code       ErrorCode
	Definition string
	StreamID   string
	Text       string
}

// ParseServerError maps an error definition to a typed error.
func ParseServerError(definition, streamID string) *ServerError {
	e := &ServerError{Definition: definition, StreamID: streamID}
	switch {
	case definition == "":
		e.Code = CodeUnknown
		e.Text = genericErrorText
	case definition == "no_stream_exist":
		e.Code = CodeNoStreamExist
		e.Text = "No stream exists on server."
	case definition == "unauthorized_access":
		e.Code = CodeUnauthorizedAccess
		e.Text = "Unauthorized access: Check your token"
	case strings.HasPrefix(definition, customPrefix):
		e.Code = CodeCustom
		e.Text = strings.TrimPrefix(definition, customPrefix)
	default:
		e.Code = CodeUnknown
		e.Text = "An error occurred: " + definition
	}
	return e
}

func (e *ServerError) Error() string {
	if e.StreamID != "" {
		return fmt.Sprintf("server error for %s: %s", e.StreamID, e.Text)
	}
	return "server error: " + e.Text
}

// Is matches any *ServerError with the same code.
func (e *ServerError) Is(target error) bool {
	t, ok := target.(*ServerError)
	return ok && t.Code == e.Code
}
