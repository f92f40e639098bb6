// ABOUTME: Entry point for ssh-blog, a terminal blogging platform served over SSH
// ABOUTME: Authenticates the connecting user from session signals and runs the blog menu

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
)

// Version is set at build time.
var version = "dev"

const banner = `
         _        _     _
 ___ ___| |__    | |__ | | ___   __ _
/ __/ __| '_ \   | '_ \| |/ _ \ / _' |
\__ \__ \ | | |  | |_) | | (_) | (_| |
|___/___/_| |_|  |_.__/|_|\___/ \__, |
                                 |___/
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(os.Stdin, os.Stdout, os.Stderr)
	cmd.SetArgs(legacyArgs(os.Args[1:]))

	if err := cmd.ExecuteContext(ctx); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// legacyArgs maps the historical --register, --register-user and --init-db
// flags onto their subcommands.
func legacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}
	switch args[0] {
	case "--register":
		return append([]string{"register"}, args[1:]...)
	case "--register-user":
		return append([]string{"register-user"}, args[1:]...)
	case "--init-db":
		return append([]string{"init-db"}, args[1:]...)
	}
	return args
}
