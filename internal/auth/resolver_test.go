// ABOUTME: Tests for the identity resolver cascade
// ABOUTME: Covers strategy precedence, policy branches, error kinds, and registration fallback

package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/ssh-blog/internal/signals"
	"github.com/2389/ssh-blog/internal/store"
)

// fakeSignals returns fixed session signals.
type fakeSignals struct {
	key      string // empty means unavailable
	username string // empty means unavailable
	remote   bool

	keyCalls      int
	usernameCalls int
}

func (f *fakeSignals) ClientKey(context.Context) (string, error) {
	f.keyCalls++
	if f.key == "" {
		return "", fmt.Errorf("client key: %w", signals.ErrUnavailable)
	}
	return f.key, nil
}

func (f *fakeSignals) CurrentUsername(context.Context) (string, error) {
	f.usernameCalls++
	if f.username == "" {
		return "", fmt.Errorf("current username: %w", signals.ErrUnavailable)
	}
	return f.username, nil
}

func (f *fakeSignals) SessionLooksRemote() bool {
	return f.remote
}

// fakeRegistrar records calls and returns a canned result.
type fakeRegistrar struct {
	account *store.Account
	err     error
	calls   int
}

func (f *fakeRegistrar) Register(context.Context) (*store.Account, error) {
	f.calls++
	return f.account, f.err
}

type resolverFixture struct {
	store     *store.MockStore
	signals   *fakeSignals
	registrar *fakeRegistrar
	diag      *bytes.Buffer
}

func newFixture(t *testing.T) *resolverFixture {
	t.Helper()
	return &resolverFixture{
		store:     store.NewMockStore(),
		signals:   &fakeSignals{},
		registrar: &fakeRegistrar{},
		diag:      &bytes.Buffer{},
	}
}

func (f *resolverFixture) resolver(decider Decider, opts Options) *Resolver {
	return NewResolver(Config{
		Accounts:    f.store,
		Signals:     f.signals,
		Decider:     decider,
		Registrar:   f.registrar,
		Options:     opts,
		Diagnostics: f.diag,
	})
}

func (f *resolverFixture) addAccount(t *testing.T, username, key string) *store.Account {
	t.Helper()
	a := &store.Account{Username: username, PublicKey: key}
	require.NoError(t, f.store.CreateAccount(context.Background(), a))
	return a
}

func TestAuthenticate_ByKeyShortCircuits(t *testing.T) {
	f := newFixture(t)
	key := generateTestKey(t, "alice@host")
	alice := f.addAccount(t, "alice", key)
	f.signals.key = key
	f.signals.username = "someone-else"

	got, err := f.resolver(AutoDeny, DefaultOptions()).Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)
	assert.Equal(t, 0, f.signals.usernameCalls, "username strategy must not run after a key hit")
}

func TestAuthenticate_UsernameVerifiedByKey(t *testing.T) {
	f := newFixture(t)
	key := generateTestKey(t, "")
	f.addAccount(t, "alice", key+" alice@laptop")
	// Same key, different comment: exact lookup misses, matcher accepts.
	f.signals.key = key + " alice@desktop"
	f.signals.username = "alice"

	got, err := f.resolver(AutoDeny, Options{}).Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Empty(t, f.diag.String())
}

func TestAuthenticate_SessionPresenceWithoutKey(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "alice", generateTestKey(t, "alice@host"))
	f.signals.username = "alice"
	f.signals.remote = true

	got, err := f.resolver(AutoDeny, Options{TrustRemoteSession: true}).Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
}

func TestAuthenticate_SessionPresenceDisabled(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "alice", generateTestKey(t, "alice@host"))
	f.signals.username = "alice"
	f.signals.remote = true

	_, err := f.resolver(AutoDeny, Options{}).Authenticate(context.Background())
	assert.ErrorIs(t, err, ErrAuthenticationExhausted)
}

func TestAuthenticate_MismatchedKeyNotRemoteIsExhausted(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "alice", generateTestKey(t, "alice@host"))
	f.signals.key = generateTestKey(t, "mallory@host")
	f.signals.username = "alice"

	_, err := f.resolver(AutoDeny, DefaultOptions()).Authenticate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthenticationExhausted)
	assert.ErrorIs(t, err, ErrKeyMismatch)
	assert.Contains(t, f.diag.String(), "user 'alice' not found or SSH key verification failed")
}

func TestAuthenticate_MismatchedKeyOnRemoteSession(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "alice", generateTestKey(t, "alice@host"))
	f.signals.key = generateTestKey(t, "other@host")
	f.signals.username = "alice"
	f.signals.remote = true

	got, err := f.resolver(AutoDeny, DefaultOptions()).Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
}

func TestAuthenticate_UsernameOnlyFallbackWithoutKeySignals(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "alice", "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIalice alice@host")
	f.signals.username = "alice"

	r := f.resolver(AutoDeny, DefaultOptions())

	// The automated pass declines: no key and not remote.
	_, err := r.AuthenticateSession(context.Background())
	var sessionErr *SessionError
	require.ErrorAs(t, err, &sessionErr)
	assert.Equal(t, "alice", sessionErr.Username)
	assert.ErrorIs(t, err, signals.ErrUnavailable)

	// The outer cascade's key-agnostic re-check succeeds.
	got, err := r.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Contains(t, f.diag.String(), "SSH authentication failed")
	assert.Equal(t, 0, f.registrar.calls)
}

func TestAuthenticate_UsernameOnlyFallbackDisabled(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "alice", generateTestKey(t, "alice@host"))
	f.signals.username = "alice"

	_, err := f.resolver(AutoDeny, Options{TrustRemoteSession: true}).Authenticate(context.Background())
	assert.ErrorIs(t, err, ErrAuthenticationExhausted)
}

func TestAuthenticate_RegistrationOffered(t *testing.T) {
	f := newFixture(t)
	f.signals.username = "newbie"
	f.registrar.account = &store.Account{ID: 7, Username: "newbie"}

	got, err := f.resolver(AutoAllow, DefaultOptions()).Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, 1, f.registrar.calls)
}

func TestAuthenticate_RegistrationDeclined(t *testing.T) {
	f := newFixture(t)
	f.signals.username = "newbie"

	_, err := f.resolver(AutoDeny, DefaultOptions()).Authenticate(context.Background())
	assert.ErrorIs(t, err, ErrAuthenticationExhausted)
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.Equal(t, 0, f.registrar.calls)
}

func TestAuthenticate_RegistrationValidationFailure(t *testing.T) {
	f := newFixture(t)
	f.signals.username = "newbie"
	validationErr := errors.New("username must be at least 3 characters long")
	f.registrar.err = validationErr

	_, err := f.resolver(AutoAllow, DefaultOptions()).Authenticate(context.Background())
	assert.ErrorIs(t, err, ErrAuthenticationExhausted)
	assert.ErrorIs(t, err, validationErr)
}

func TestAuthenticate_RegistrationStorageFailureSurfaced(t *testing.T) {
	f := newFixture(t)
	f.signals.username = "newbie"
	f.registrar.err = &StorageError{Op: "create_account", Err: errors.New("disk full")}

	_, err := f.resolver(AutoAllow, DefaultOptions()).Authenticate(context.Background())
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.NotErrorIs(t, err, ErrAuthenticationExhausted)
}

func TestAuthenticate_StorageErrorIsFatal(t *testing.T) {
	f := newFixture(t)
	f.signals.key = generateTestKey(t, "")
	f.signals.username = "alice"
	f.store.Err = errors.New("database is locked")

	_, err := f.resolver(AutoAllow, DefaultOptions()).Authenticate(context.Background())
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "lookup_by_key", storageErr.Op)
	assert.Equal(t, 0, f.registrar.calls, "registration must not be offered after a storage failure")
	assert.Equal(t, 0, f.signals.usernameCalls)
}

func TestAuthenticate_UsernameUnavailable(t *testing.T) {
	f := newFixture(t)

	_, err := f.resolver(AutoDeny, DefaultOptions()).Authenticate(context.Background())
	assert.ErrorIs(t, err, ErrAuthenticationExhausted)
	assert.Contains(t, f.diag.String(), "could not determine current user")
}

func TestAuthenticate_PromptDecider(t *testing.T) {
	tests := []struct {
		answer   string
		register bool
	}{
		{"y", true},
		{"Y", true},
		{" yes \n", true},
		{"n", false},
		{"", false},
		{"maybe", false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.answer), func(t *testing.T) {
			f := newFixture(t)
			f.signals.username = "newbie"
			f.registrar.account = &store.Account{ID: 1, Username: "newbie"}

			_, err := f.resolver(PromptDecider{Asker: cannedAsker(tt.answer)}, DefaultOptions()).Authenticate(context.Background())
			if tt.register {
				assert.NoError(t, err)
				assert.Equal(t, 1, f.registrar.calls)
			} else {
				assert.ErrorIs(t, err, ErrAuthenticationExhausted)
				assert.Equal(t, 0, f.registrar.calls)
			}
		})
	}
}

func TestAuthenticate_DeciderError(t *testing.T) {
	f := newFixture(t)
	f.signals.username = "newbie"
	readErr := errors.New("stdin closed")

	_, err := f.resolver(PromptDecider{Asker: failingAsker{readErr}}, DefaultOptions()).Authenticate(context.Background())
	assert.ErrorIs(t, err, ErrAuthenticationExhausted)
	assert.ErrorIs(t, err, readErr)
}

func TestAuthenticate_FreshSignalsEachCall(t *testing.T) {
	f := newFixture(t)
	keyA := generateTestKey(t, "a")
	keyB := generateTestKey(t, "b")
	f.addAccount(t, "alice", keyA)
	f.addAccount(t, "bob", keyB)
	r := f.resolver(AutoDeny, Options{})

	f.signals.key = keyA
	first, err := r.Authenticate(context.Background())
	require.NoError(t, err)

	f.signals.key = keyB
	second, err := r.Authenticate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "alice", first.Username)
	assert.Equal(t, "bob", second.Username)
}

type cannedAsker string

func (c cannedAsker) Ask(context.Context, string) (string, error) {
	return string(c), nil
}

type failingAsker struct{ err error }

func (f failingAsker) Ask(context.Context, string) (string, error) {
	return "", f.err
}
