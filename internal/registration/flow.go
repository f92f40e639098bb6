// ABOUTME: Account registration, interactive and direct
// ABOUTME: Validates username, key and bio, then persists through the account store

package registration

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/ssh"

	"github.com/2389/ssh-blog/internal/auth"
	"github.com/2389/ssh-blog/internal/store"
)

// Input is the data needed to create an account.
type Input struct {
	Username  string `label:"username" validate:"required,min=3,max=64"`
	PublicKey string `label:"public key" validate:"required,startswith=ssh-"`
	Bio       string `label:"bio" validate:"max=1024"`
}

// Suggester proposes a default public key for the key prompt.
// An empty result means there is nothing to suggest.
type Suggester func(ctx context.Context) string

// Option configures a Flow.
type Option func(*Flow)

// WithSuggester sets the default key suggestion used by Register.
func WithSuggester(s Suggester) Option {
	return func(f *Flow) {
		f.suggest = s
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Flow) {
		f.logger = logger
	}
}

// Flow registers new accounts.
type Flow struct {
	accounts store.AccountStore
	asker    auth.Asker
	suggest  Suggester
	validate *validator.Validate
	logger   *slog.Logger
}

// NewFlow creates a registration flow. asker may be nil when only Create
// and DevAccount are used.
func NewFlow(accounts store.AccountStore, asker auth.Asker, opts ...Option) *Flow {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if label := fld.Tag.Get("label"); label != "" {
			return label
		}
		return strings.ToLower(fld.Name)
	})

	f := &Flow{
		accounts: accounts,
		asker:    asker,
		validate: v,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With("component", "registration")
	return f
}

// Register prompts for a username, a public key and an optional bio, then
// creates the account. The username is validated before the key is asked for.
func (f *Flow) Register(ctx context.Context) (*store.Account, error) {
	if f.asker == nil {
		return nil, errors.New("registration: no input available")
	}

	var in Input
	var err error

	in.Username, err = f.asker.Ask(ctx, "Enter your desired username:")
	if err != nil {
		return nil, fmt.Errorf("reading username: %w", err)
	}
	if err := f.validateField(in, "Username"); err != nil {
		return nil, err
	}

	in.PublicKey, err = f.askKey(ctx)
	if err != nil {
		return nil, err
	}
	if err := f.validateField(in, "PublicKey"); err != nil {
		return nil, err
	}

	in.Bio, err = f.asker.Ask(ctx, "Enter your bio (optional, press Enter to skip):")
	if err != nil {
		return nil, fmt.Errorf("reading bio: %w", err)
	}

	return f.Create(ctx, in)
}

func (f *Flow) askKey(ctx context.Context) (string, error) {
	var suggestion string
	if f.suggest != nil {
		suggestion = f.suggest(ctx)
	}

	question := "Enter your SSH public key:"
	if suggestion != "" {
		question = fmt.Sprintf("Enter your SSH public key (press Enter to use %s from authorized_keys):", describeKey(suggestion))
	}

	key, err := f.asker.Ask(ctx, question)
	if err != nil {
		return "", fmt.Errorf("reading public key: %w", err)
	}
	if key == "" {
		key = suggestion
	}
	return key, nil
}

// Create validates in and stores the account. An empty bio is stored as unset.
func (f *Flow) Create(ctx context.Context, in Input) (*store.Account, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.PublicKey = strings.TrimSpace(in.PublicKey)
	in.Bio = strings.TrimSpace(in.Bio)

	if err := f.validate.Struct(in); err != nil {
		return nil, fromValidator(err)
	}

	account := &store.Account{
		Username:  in.Username,
		PublicKey: in.PublicKey,
	}
	if in.Bio != "" {
		bio := in.Bio
		account.Bio = &bio
	}

	if err := f.accounts.CreateAccount(ctx, account); err != nil {
		switch {
		case errors.Is(err, store.ErrUsernameExists):
			return nil, &ValidationError{Field: "username", Rule: "unique", Err: err}
		case errors.Is(err, store.ErrKeyExists):
			return nil, &ValidationError{Field: "public key", Rule: "unique", Err: err}
		default:
			return nil, &auth.StorageError{Op: "create_account", Err: err}
		}
	}

	f.logger.Info("account created",
		"username", account.Username,
		"id", account.ID,
		"fingerprint", auth.Fingerprint(account.PublicKey),
	)
	return account, nil
}

// DevAccount returns the account named username, creating it with a freshly
// generated ed25519 key when it does not exist. The bool reports creation.
func (f *Flow) DevAccount(ctx context.Context, username string) (*store.Account, bool, error) {
	account, err := f.accounts.GetAccountByUsername(ctx, username)
	if err == nil {
		return account, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, &auth.StorageError{Op: "lookup_by_username", Err: err}
	}

	key, err := GenerateKey(username + "@dev")
	if err != nil {
		return nil, false, err
	}
	account, err = f.Create(ctx, Input{Username: username, PublicKey: key, Bio: "Development account"})
	if err != nil {
		return nil, false, err
	}
	return account, true, nil
}

// GenerateKey returns a new ed25519 public key in authorized_keys form.
func GenerateKey(comment string) (string, error) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("encoding key: %w", err)
	}
	key := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub)))
	if comment != "" {
		key += " " + comment
	}
	return key, nil
}

func (f *Flow) validateField(in Input, field string) error {
	in.Username = strings.TrimSpace(in.Username)
	in.PublicKey = strings.TrimSpace(in.PublicKey)
	if err := f.validate.StructPartial(in, field); err != nil {
		return fromValidator(err)
	}
	return nil
}

// describeKey shortens a key for display.
func describeKey(key string) string {
	if fp := auth.Fingerprint(key); fp != "" {
		return strings.Fields(key)[0] + " " + fp
	}
	return "the key"
}
