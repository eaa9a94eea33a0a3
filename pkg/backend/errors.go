package backend

import (
	"errors"
	"fmt"
)

// GenericMessage is shown when a failure carries no usable server message.
const GenericMessage = "An unexpected error occurred."

// ErrUnauthorized reports a missing credential or one the server rejected.
// It is never retried.
var ErrUnauthorized = errors.New("unauthorized")

// ValidationError reports malformed caller input or a malformed server
// response shape.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// FetchError is a network failure or a non-success status with no specific
// handling. Message holds the best message the server supplied, if any.
type FetchError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
	default:
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Message returns the text to show a user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	if errors.Is(err, ErrUnauthorized) {
		var ue *unauthorizedError
		if errors.As(err, &ue) && ue.message != "" {
			return ue.message
		}
		return "Unauthorized. Please log in."
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		if fe.Message != "" {
			return fe.Message
		}
		return GenericMessage
	}
	return err.Error()
}

// ServerMessage returns the message the server sent along with a failure.
func ServerMessage(err error) (string, bool) {
	var ue *unauthorizedError
	if errors.As(err, &ue) && ue.message != "" {
		return ue.message, true
	}
	var fe *FetchError
	if errors.As(err, &fe) && fe.Message != "" {
		return fe.Message, true
	}
	return "", false
}

// unauthorizedError carries the server's message for a rejected credential.
type unauthorizedError struct {
	op      string
	message string
}

func (e *unauthorizedError) Error() string {
	if e.message == "" {
		return e.op + ": unauthorized"
	}
	return fmt.Sprintf("%s: unauthorized: %s", e.op, e.message)
}

func (e *unauthorizedError) Is(target error) bool { return target == ErrUnauthorized }
