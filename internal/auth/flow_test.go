package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/pixledger/internal/session"
	"github.com/user/pixledger/internal/state"
	"github.com/user/pixledger/internal/types"
	"github.com/user/pixledger/pkg/backend"
)

type fakeAuth struct {
	token       string
	loginErr    error
	registerErr error
	logins      int
	registers   int
}

func (f *fakeAuth) Login(_ context.Context, username, password string) (string, error) {
	f.logins++
	return f.token, f.loginErr
}

func (f *fakeAuth) Register(_ context.Context, username, email, password string) error {
	f.registers++
	return f.registerErr
}

func newStore(t *testing.T) *session.Store {
	t.Helper()
	store, err := session.New(state.NewMemoryTokenSlot())
	require.NoError(t, err)
	return store
}

func TestLoginSuccess(t *testing.T) {
	store := newStore(t)
	var notified []string
	store.Subscribe(func(cred types.Credential, ok bool) {
		notified = append(notified, cred.Username)
	})

	fa := &fakeAuth{token: "t1"}
	flow := NewFlow(fa, store)
	flow.Username, flow.Password = "alice", "pw"

	out, err := flow.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DashboardPath, out.Navigate)
	assert.Equal(t, StateAuthenticated, flow.State())

	cred, ok := store.Credential()
	require.True(t, ok)
	assert.Equal(t, "t1", cred.Token)
	assert.Equal(t, "alice", cred.Username)
	assert.Equal(t, []string{"alice"}, notified)
}

func TestRegisterDoesNotStoreCredential(t *testing.T) {
	store := newStore(t)
	fa := &fakeAuth{}
	flow := NewFlow(fa, store)
	flow.SetMode(ModeRegister)
	flow.Username, flow.Email, flow.Password = "alice", "a@example.com", "pw"

	out, err := flow.Submit(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, out.Notice)
	assert.Empty(t, out.Navigate)
	assert.Equal(t, StateIdle, flow.State())

	_, ok := store.Credential()
	assert.False(t, ok)
}

func TestSubmitRequiresFields(t *testing.T) {
	fa := &fakeAuth{}
	flow := NewFlow(fa, newStore(t))
	flow.Username = "alice"

	_, err := flow.Submit(context.Background())
	var ve *backend.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 0, fa.logins)

	flow.SetMode(ModeRegister)
	flow.Password = "pw"
	assert.False(t, flow.Ready(), "register needs an email")
	flow.Email = "a@example.com"
	assert.True(t, flow.Ready())
}

func TestFailureShowsServerMessage(t *testing.T) {
	fa := &fakeAuth{registerErr: &backend.FetchError{Op: "register", Status: 400, Message: "Username already exists"}}
	flow := NewFlow(fa, newStore(t))
	flow.SetMode(ModeRegister)
	flow.Username, flow.Email, flow.Password = "alice", "a@example.com", "pw"

	_, err := flow.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Username already exists", flow.Error())
	assert.Equal(t, StateIdle, flow.State())
	assert.Equal(t, "alice", flow.Username, "fields are preserved")
	assert.Equal(t, "a@example.com", flow.Email)
}

func TestFailureFallsBackToGenericMessage(t *testing.T) {
	fa := &fakeAuth{loginErr: &backend.FetchError{Op: "login", Err: errors.New("connection refused")}}
	flow := NewFlow(fa, newStore(t))
	flow.Username, flow.Password = "alice", "pw"

	_, err := flow.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Something went wrong. Please try again.", flow.Error())
	assert.Equal(t, StateIdle, flow.State())
}

func TestSwitchingModeClearsErrorKeepsFields(t *testing.T) {
	fa := &fakeAuth{loginErr: &backend.FetchError{Op: "login", Status: 500, Message: "down"}}
	flow := NewFlow(fa, newStore(t))
	flow.Username, flow.Password = "alice", "pw"

	_, err := flow.Submit(context.Background())
	require.Error(t, err)
	require.Equal(t, "down", flow.Error())

	flow.SetMode(ModeRegister)
	assert.Empty(t, flow.Error())
	assert.Equal(t, "alice", flow.Username)
	assert.Equal(t, "pw", flow.Password)
	assert.Equal(t, ModeRegister, flow.Mode())
}
