// ABOUTME: Cobra command tree for ssh-blog
// ABOUTME: Default session plus register, register-user, init-db, dev and export

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/ssh-blog/internal/auth"
	"github.com/2389/ssh-blog/internal/blog"
	"github.com/2389/ssh-blog/internal/registration"
	"github.com/2389/ssh-blog/internal/store"
)

// errDevModeDisabled is returned by the dev command unless auth.dev_mode is set.
var errDevModeDisabled = errors.New("development login is disabled (set auth.dev_mode or SSHBLOG_AUTH_DEV_MODE=true)")

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var flags globalFlags

	// run builds the app for one command invocation and releases it afterwards.
	run := func(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, stdin, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()
			return fn(cmd.Context(), a, args)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "ssh-blog",
		Short: "Terminal blogging platform for SSH sessions",
		Long: `ssh-blog is a terminal blogging platform meant to run as the forced command
of an SSH login. It works out which account is connecting from the session
(presented key, agent keys, login name) and then opens the blog menu.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run(runSession),
	}
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Config file path (env: SSHBLOG_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&flags.dbPath, "db", "", "Database path, overrides database.path")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "register",
		Short: "Register a new account interactively",
		Args:  cobra.NoArgs,
		RunE:  run(runRegister),
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "register-user <username> <ssh_key> [bio]",
		Short: "Create an account directly (admin)",
		Args:  cobra.RangeArgs(2, 3),
		RunE:  run(runRegisterUser),
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "init-db",
		Short: "Create the database and schema",
		Args:  cobra.NoArgs,
		RunE:  run(runInitDB),
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "dev [username]",
		Short: "Development login, creates the account when missing",
		Args:  cobra.MaximumNArgs(1),
		RunE:  run(runDev),
	})

	var exportOut string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export all posts as an HTML page",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *app, _ []string) error {
			return runExport(ctx, a, exportOut, stdout)
		}),
	}
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "-", "Output file, - for stdout")
	rootCmd.AddCommand(exportCmd)

	return rootCmd
}

func printBanner(w io.Writer) {
	cyan := color.New(color.FgCyan)
	cyan.Fprint(w, banner)
	fmt.Fprintln(w)
}

func runSession(ctx context.Context, a *app, _ []string) error {
	out := a.prompter.Writer()
	printBanner(out)
	fmt.Fprintln(out, "Welcome to SSH Blog Platform!")
	fmt.Fprintln(out, "Your terminal-based blogging experience starts here.")
	fmt.Fprintln(out)

	s, err := a.openStore()
	if err != nil {
		return err
	}

	account, err := a.resolver(s).Authenticate(ctx)
	if err != nil {
		var storageErr *auth.StorageError
		if !errors.As(err, &storageErr) {
			color.New(color.FgYellow).Fprintln(a.stderr, "If this is your first time, run 'ssh-blog register' or contact the admin to register your account.")
		}
		return fmt.Errorf("authentication failed: %w", err)
	}

	return runMenu(ctx, a, s, account)
}

func runMenu(ctx context.Context, a *app, s store.Store, account *store.Account) error {
	session := blog.NewSession(s, account, a.prompter, a.logger)
	session.Greet()
	return session.Run(ctx)
}

func runRegister(ctx context.Context, a *app, _ []string) error {
	out := a.prompter.Writer()
	color.New(color.FgCyan, color.Bold).Fprintln(out, "SSH Blog Registration")
	fmt.Fprintln(out, "Setting up your account...")
	fmt.Fprintln(out)

	s, err := a.openStore()
	if err != nil {
		return err
	}

	account, err := a.resolver(s).Register(ctx)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	green := color.New(color.FgGreen)
	fmt.Fprintln(out)
	green.Fprintln(out, "Registration successful!")
	fmt.Fprintf(out, "Username: %s\n", account.Username)
	if account.Bio != nil {
		fmt.Fprintf(out, "Bio: %s\n", *account.Bio)
	}
	fmt.Fprintf(out, "Key fingerprint: %s\n", auth.Fingerprint(account.PublicKey))
	fmt.Fprintf(out, "\nYou can now connect using: ssh %s@<server>\n", account.Username)
	return nil
}

func runRegisterUser(ctx context.Context, a *app, args []string) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}

	in := registration.Input{Username: args[0], PublicKey: args[1]}
	if len(args) == 3 {
		in.Bio = args[2]
	}

	account, err := a.registrationFlow(s).Create(ctx, in)
	if err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}

	color.New(color.FgGreen).Fprintf(a.prompter.Writer(), "User %s registered successfully (id %d)\n", account.Username, account.ID)
	return nil
}

func runInitDB(_ context.Context, a *app, _ []string) error {
	if _, err := a.openStore(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	color.New(color.FgGreen).Fprintf(a.prompter.Writer(), "Database initialized successfully at %s\n", a.cfg.Database.Path)
	return nil
}

func runDev(ctx context.Context, a *app, args []string) error {
	if !a.cfg.Auth.DevMode {
		return errDevModeDisabled
	}

	username := ""
	if len(args) == 1 {
		username = args[0]
	} else {
		u, err := a.gatherer.CurrentUsername(ctx)
		if err != nil {
			return fmt.Errorf("dev login: %w", err)
		}
		username = u
	}

	s, err := a.openStore()
	if err != nil {
		return err
	}

	account, created, err := a.registrationFlow(s).DevAccount(ctx, username)
	if err != nil {
		return fmt.Errorf("dev login: %w", err)
	}

	yellow := color.New(color.FgYellow)
	out := a.prompter.Writer()
	yellow.Fprintln(out, "DEV MODE: session authentication bypassed")
	if created {
		yellow.Fprintf(out, "Created development account %s with a generated key\n", account.Username)
	}
	a.logger.Warn("development login", "username", account.Username, "created", created)

	return runMenu(ctx, a, s, account)
}

func runExport(ctx context.Context, a *app, outPath string, stdout io.Writer) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}

	w := stdout
	if outPath != "" && outPath != "-" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", outPath, err)
		}
		defer f.Close()
		w = f
	}

	n, err := blog.ExportHTML(ctx, s, w)
	if err != nil {
		return fmt.Errorf("exporting posts: %w", err)
	}
	if w != stdout {
		color.New(color.FgGreen).Fprintf(stdout, "Exported %d post(s) to %s\n", n, outPath)
	}
	a.logger.Info("posts exported", "count", n, "out", outPath)
	return nil
}
