// ABOUTME: Wiring of configuration, storage, session signals and prompts
// ABOUTME: Shared by every ssh-blog command

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/2389/ssh-blog/internal/auth"
	"github.com/2389/ssh-blog/internal/config"
	"github.com/2389/ssh-blog/internal/prompt"
	"github.com/2389/ssh-blog/internal/registration"
	"github.com/2389/ssh-blog/internal/signals"
	"github.com/2389/ssh-blog/internal/store"
)

// globalFlags are the persistent flags shared by all commands.
type globalFlags struct {
	configPath string
	dbPath     string
	logLevel   string
}

// app holds everything a command needs. Fields are populated lazily so
// commands that never touch the database do not open it.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	prompter *prompt.Prompter
	gatherer *signals.Gatherer
	stderr   io.Writer

	// interactive reports whether stdin is a terminal
	interactive bool

	store store.Store
}

func newApp(flags globalFlags, stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	path := flags.configPath
	if path == "" {
		path = config.Path()
	}

	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if flags.dbPath != "" {
		cfg.Database.Path = flags.dbPath
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}

	logger := setupLogger(cfg.Logging, stderr)
	logger.Debug("configuration loaded", "path", path, "database", cfg.Database.Path, "driver", cfg.Database.Driver)

	return &app{
		cfg:         cfg,
		logger:      logger,
		prompter:    prompt.New(stdin, stdout),
		gatherer:    signals.NewGatherer(signals.OSHost{}, signals.WithCommandTimeout(cfg.Auth.CommandTimeout), signals.WithLogger(logger)),
		stderr:      stderr,
		interactive: prompt.StdinIsTerminal(),
	}, nil
}

func (a *app) openStore() (store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := store.Open(a.cfg.Database.Driver, a.cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.store = s
	return s, nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing database", "error", err)
		}
	}
}

// registrationFlow builds the flow that suggests the current user's
// authorized_keys entry as the default key.
func (a *app) registrationFlow(accounts store.AccountStore) *registration.Flow {
	suggest := func(ctx context.Context) string {
		username, err := a.gatherer.CurrentUsername(ctx)
		if err != nil {
			return ""
		}
		key, err := a.gatherer.AuthorizedKey(username)
		if err != nil {
			return ""
		}
		return key
	}
	return registration.NewFlow(accounts, a.prompter,
		registration.WithSuggester(suggest),
		registration.WithLogger(a.logger),
	)
}

func (a *app) resolver(accounts store.AccountStore) *auth.Resolver {
	return auth.NewResolver(auth.Config{
		Accounts:  accounts,
		Signals:   a.gatherer,
		Decider:   registrationDecider(a.cfg.Auth.Registration, a.prompter, a.interactive),
		Registrar: a.registrationFlow(accounts),
		Options: auth.Options{
			TrustRemoteSession: a.cfg.Auth.TrustRemoteSession,
			UsernameFallback:   a.cfg.Auth.UsernameFallback,
		},
		Diagnostics: a.stderr,
		Logger:      a.logger,
	})
}

// registrationDecider maps the configured policy to a Decider.
func registrationDecider(policy string, asker auth.Asker, interactive bool) auth.Decider {
	switch policy {
	case config.RegistrationAllow:
		return auth.AutoAllow
	case config.RegistrationDeny:
		return auth.AutoDeny
	case config.RegistrationPrompt:
		return auth.PromptDecider{Asker: asker}
	default:
		if interactive {
			return auth.PromptDecider{Asker: asker}
		}
		return auth.AutoDeny
	}
}
