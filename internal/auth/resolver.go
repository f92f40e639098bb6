// ABOUTME: Identity resolver mapping ambient SSH session signals to one account
// ABOUTME: Runs ordered strategies, then the username-only fallback and the registration offer

package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/2389/ssh-blog/internal/store"
)

// Signals supplies the per-attempt session signals. Implementations must
// read fresh values on every call.
type Signals interface {
	ClientKey(ctx context.Context) (string, error)
	CurrentUsername(ctx context.Context) (string, error)
	SessionLooksRemote() bool
}

// Registrar creates a new account interactively.
type Registrar interface {
	Register(ctx context.Context) (*store.Account, error)
}

// Options selects which relaxed policies the resolver applies.
type Options struct {
	// TrustRemoteSession accepts a username match whose key could not be
	// verified when the session carries remote-connection indicators.
	TrustRemoteSession bool

	// UsernameFallback re-checks the username without any key check after
	// the automated pass fails. It never applies after a positive key mismatch.
	UsernameFallback bool
}

// DefaultOptions enables both relaxed policies.
func DefaultOptions() Options {
	return Options{
		TrustRemoteSession: true,
		UsernameFallback:   true,
	}
}

// Config holds the collaborators of a Resolver.
type Config struct {
	Accounts  store.AccountStore
	Signals   Signals
	Decider   Decider   // nil means AutoDeny
	Registrar Registrar // nil disables registration
	Options   Options

	// Diagnostics receives advisory, human-readable messages. Nil discards them.
	Diagnostics io.Writer
	Logger      *slog.Logger
}

// Resolver authenticates one session per Authenticate call.
// It keeps no state between calls.
type Resolver struct {
	accounts  store.AccountStore
	signals   Signals
	decider   Decider
	registrar Registrar
	opts      Options
	diag      io.Writer
	logger    *slog.Logger
}

// NewResolver creates a resolver from cfg.
func NewResolver(cfg Config) *Resolver {
	r := &Resolver{
		accounts:  cfg.Accounts,
		signals:   cfg.Signals,
		decider:   cfg.Decider,
		registrar: cfg.Registrar,
		opts:      cfg.Options,
		diag:      cfg.Diagnostics,
		logger:    cfg.Logger,
	}
	if r.decider == nil {
		r.decider = AutoDeny
	}
	if r.diag == nil {
		r.diag = io.Discard
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("component", "auth")
	return r
}

type outcomeKind int

const (
	declined outcomeKind = iota
	resolved
	fatal
)

// outcome is the tagged result of one strategy.
type outcome struct {
	kind    outcomeKind
	account *store.Account
	err     error // decline reason or fatal error
}

func resolvedWith(a *store.Account) outcome { return outcome{kind: resolved, account: a} }
func declinedWith(reason error) outcome    { return outcome{kind: declined, err: reason} }
func fatalWith(err error) outcome          { return outcome{kind: fatal, err: err} }

// attempt carries what one pass has learned so far.
type attempt struct {
	logger    *slog.Logger
	username  string
	candidate *store.Account // username match whose key was not verified
	mismatch  bool           // a key was presented and rejected
	reason    error
}

type strategy struct {
	name string
	run  func(ctx context.Context, a *attempt) outcome
}

func (r *Resolver) strategies() []strategy {
	return []strategy{
		{name: "by-key", run: r.byKey},
		{name: "by-username-verified", run: r.byVerifiedUsername},
		{name: "session-presence", run: r.sessionPresence},
	}
}

// Authenticate resolves the connecting user. It runs the automated pass,
// then the username-only fallback, then offers registration. The error is
// ErrAuthenticationExhausted (joined with the cause) or a *StorageError.
func (r *Resolver) Authenticate(ctx context.Context) (*store.Account, error) {
	a := &attempt{logger: r.logger.With("attempt_id", uuid.NewString())}

	account, err := r.authenticateSession(ctx, a)
	if err == nil {
		return account, nil
	}
	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return nil, err
	}

	fmt.Fprintf(r.diag, "SSH authentication failed: %v\n", err)
	a.logger.Info("session authentication failed", "username", a.username, "reason", err)

	account, fbErr := r.usernameFallback(ctx, a)
	if fbErr != nil {
		return nil, fbErr
	}
	if account != nil {
		return account, nil
	}

	return r.offerRegistration(ctx, a, err)
}

// AuthenticateSession runs only the automated pass. It returns a
// *SessionError when every strategy declines.
func (r *Resolver) AuthenticateSession(ctx context.Context) (*store.Account, error) {
	a := &attempt{logger: r.logger.With("attempt_id", uuid.NewString())}
	return r.authenticateSession(ctx, a)
}

func (r *Resolver) authenticateSession(ctx context.Context, a *attempt) (*store.Account, error) {
	for _, s := range r.strategies() {
		o := s.run(ctx, a)
		switch o.kind {
		case resolved:
			a.logger.Info("authenticated", "strategy", s.name, "username", o.account.Username)
			return o.account, nil
		case fatal:
			a.logger.Error("strategy failed", "strategy", s.name, "error", o.err)
			return nil, o.err
		default:
			if o.err != nil {
				a.reason = o.err
			}
			a.logger.Debug("strategy declined", "strategy", s.name, "reason", o.err)
		}
	}
	return nil, &SessionError{Username: a.username, Reason: a.reason}
}

// byKey looks the presented key up by its exact stored value.
func (r *Resolver) byKey(ctx context.Context, a *attempt) outcome {
	key, err := r.signals.ClientKey(ctx)
	if err != nil {
		return declinedWith(err)
	}

	account, err := r.accounts.GetAccountByKey(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		a.logger.Debug("no account for presented key", "fingerprint", Fingerprint(key))
		return declinedWith(ErrAccountNotFound)
	}
	if err != nil {
		return fatalWith(&StorageError{Op: "lookup_by_key", Err: err})
	}
	return resolvedWith(account)
}

// byVerifiedUsername finds the account for the current username and
// verifies the presented key against it.
func (r *Resolver) byVerifiedUsername(ctx context.Context, a *attempt) outcome {
	username, err := r.signals.CurrentUsername(ctx)
	if err != nil {
		return declinedWith(err)
	}
	a.username = username

	account, err := r.accounts.GetAccountByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return declinedWith(ErrAccountNotFound)
	}
	if err != nil {
		return fatalWith(&StorageError{Op: "lookup_by_username", Err: err})
	}
	a.candidate = account

	key, err := r.signals.ClientKey(ctx)
	if err != nil {
		return declinedWith(err)
	}
	if !KeysMatch(account.PublicKey, key) {
		a.mismatch = true
		a.logger.Info("key mismatch", "username", username, "fingerprint", Fingerprint(key))
		return declinedWith(ErrKeyMismatch)
	}
	return resolvedWith(account)
}

// sessionPresence is the trust-the-session policy: a username match whose
// key could not be verified is accepted when the session looks remote.
func (r *Resolver) sessionPresence(_ context.Context, a *attempt) outcome {
	if a.candidate == nil || !r.opts.TrustRemoteSession {
		return declinedWith(nil)
	}
	if !r.signals.SessionLooksRemote() {
		return declinedWith(nil)
	}

	a.logger.Warn("accepting unverified username on remote session",
		"policy", "session_presence",
		"username", a.candidate.Username,
		"key_mismatch", a.mismatch,
	)
	return resolvedWith(a.candidate)
}

// usernameFallback is the secondary, key-agnostic username lookup.
// It returns (nil, nil) when it does not apply or finds nothing.
func (r *Resolver) usernameFallback(ctx context.Context, a *attempt) (*store.Account, error) {
	if !r.opts.UsernameFallback {
		return nil, nil
	}
	if a.mismatch {
		a.logger.Info("username fallback skipped after key mismatch", "username", a.username)
		return nil, nil
	}

	username, err := r.signals.CurrentUsername(ctx)
	if err != nil {
		return nil, nil
	}

	account, err := r.accounts.GetAccountByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "lookup_by_username", Err: err}
	}

	a.logger.Warn("accepting username without key check",
		"policy", "username_only",
		"username", username,
	)
	return account, nil
}

// Register runs the registrar directly, without an authentication attempt.
func (r *Resolver) Register(ctx context.Context) (*store.Account, error) {
	if r.registrar == nil {
		return nil, errors.New("registration is not available")
	}
	return r.registrar.Register(ctx)
}

// offerRegistration is the final, interactive stage of the cascade.
func (r *Resolver) offerRegistration(ctx context.Context, a *attempt, cause error) (*store.Account, error) {
	ok, err := r.decider.Decide(ctx, "No existing user found. Would you like to register?")
	if err != nil {
		return nil, errors.Join(ErrAuthenticationExhausted, cause, err)
	}
	if !ok || r.registrar == nil {
		a.logger.Info("registration declined")
		return nil, errors.Join(ErrAuthenticationExhausted, cause)
	}

	account, err := r.registrar.Register(ctx)
	if err != nil {
		var storageErr *StorageError
		if errors.As(err, &storageErr) {
			return nil, err
		}
		a.logger.Info("registration failed", "error", err)
		return nil, errors.Join(ErrAuthenticationExhausted, err)
	}

	a.logger.Info("registered new account", "username", account.Username, "id", account.ID)
	return account, nil
}
