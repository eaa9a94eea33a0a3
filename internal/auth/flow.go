// Package auth drives the login and registration form.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/user/pixledger/internal/types"
	"github.com/user/pixledger/pkg/backend"
)

// DashboardPath is where a successful login navigates.
const DashboardPath = "/dashboard"

const (
	genericFailure  = "Something went wrong. Please try again."
	registeredState = "Your account has been created successfully."
)

type Mode int

const (
	ModeLogin Mode = iota
	ModeRegister
)

func (m Mode) String() string {
	if m == ModeRegister {
		return "register"
	}
	return "login"
}

type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateSubmitting:
		return "submitting"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "idle"
	}
}

// CredentialSink receives the token after a successful login.
type CredentialSink interface {
	Set(token, username string) error
}

// Outcome is what a successful submission tells the caller to do next.
type Outcome struct {
	// Navigate is set after login.
	Navigate string
	// Notice is set after registration; the user must still log in.
	Notice string
}

// Flow is one login/register form. Field values survive failures and mode
// switches; Email only matters in register mode.
type Flow struct {
	Username string
	Email    string
	Password string

	mode    Mode
	state   State
	message string

	auth    types.Authenticator
	session CredentialSink
}

func NewFlow(auth types.Authenticator, session CredentialSink) *Flow {
	return &Flow{auth: auth, session: session}
}

func (f *Flow) Mode() Mode   { return f.mode }
func (f *Flow) State() State { return f.state }

// Error is the inline message from the last failed attempt, or "".
func (f *Flow) Error() string { return f.message }

// SetMode switches between login and register, dropping any shown error.
func (f *Flow) SetMode(m Mode) {
	f.mode = m
	f.message = ""
}

// Ready reports whether every field required by the current mode is filled.
func (f *Flow) Ready() bool {
	if f.Username == "" || f.Password == "" {
		return false
	}
	return f.mode == ModeLogin || f.Email != ""
}

// Submit sends the form. Field contents are not validated beyond presence;
// the backend owns validation.
func (f *Flow) Submit(ctx context.Context) (Outcome, error) {
	if f.state == StateSubmitting {
		return Outcome{}, errors.New("submission already in progress")
	}
	if !f.Ready() {
		return Outcome{}, &backend.ValidationError{Field: f.mode.String() + " form", Reason: "all fields are required"}
	}

	f.state = StateSubmitting
	f.message = ""

	switch f.mode {
	case ModeRegister:
		if err := f.auth.Register(ctx, f.Username, f.Email, f.Password); err != nil {
			return Outcome{}, f.fail(err)
		}
		slog.Info("registered", "username", f.Username)
		f.state = StateIdle
		return Outcome{Notice: registeredState}, nil

	default:
		token, err := f.auth.Login(ctx, f.Username, f.Password)
		if err != nil {
			return Outcome{}, f.fail(err)
		}
		if err := f.session.Set(token, f.Username); err != nil {
			return Outcome{}, f.fail(err)
		}
		slog.Info("logged in", "username", f.Username)
		f.state = StateAuthenticated
		return Outcome{Navigate: DashboardPath}, nil
	}
}

// fail records the message to show and returns the form to Idle. A failed
// attempt is Idle with a non-empty Error.
func (f *Flow) fail(err error) error {
	f.message = genericFailure
	if msg, ok := backend.ServerMessage(err); ok {
		f.message = msg
	}
	f.state = StateIdle
	slog.Debug("auth submission failed", "mode", f.mode.String(), "error", err)
	return fmt.Errorf("%s: %w", f.mode, err)
}
