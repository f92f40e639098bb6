// ABOUTME: Key signal gatherer collecting the presented key and current username
// ABOUTME: Tries sources in fixed precedence; unavailable sources fall through, never fail

package signals

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// Environment variables and commands consulted by the gatherer.
const (
	EnvOriginalCommand = "SSH_ORIGINAL_COMMAND"
	EnvClientKeyFile   = "SSH_CLIENT_KEY_FILE"
	EnvSSHClient       = "SSH_CLIENT"
	EnvSSHConnection   = "SSH_CONNECTION"

	AgentCommand  = "ssh-add"
	WhoamiCommand = "whoami"

	// KeyPrefix marks text that looks like an OpenSSH public key.
	KeyPrefix = "ssh-"

	// DefaultCommandTimeout bounds each external command.
	DefaultCommandTimeout = 5 * time.Second
)

// UsernameEnvVars are checked in order for the current username.
var UsernameEnvVars = []string{"USER", "SSH_USER", "LOGNAME", "USERNAME"}

// ErrUnavailable is returned when no source produced a value.
var ErrUnavailable = errors.New("signal unavailable")

// Gatherer reads session signals from a Host. Nothing is cached: each call
// reflects the host's state at the time of the call.
type Gatherer struct {
	host    Host
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Gatherer.
type Option func(*Gatherer)

// WithCommandTimeout bounds how long each external command may run.
func WithCommandTimeout(d time.Duration) Option {
	return func(g *Gatherer) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithLogger sets the gatherer's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gatherer) {
		g.logger = logger
	}
}

// NewGatherer creates a gatherer reading from host.
func NewGatherer(host Host, opts ...Option) *Gatherer {
	g := &Gatherer{
		host:    host,
		timeout: DefaultCommandTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "signals")
	return g
}

// ClientKey returns the public key the connecting client presents.
// Sources, in order: key text embedded in SSH_ORIGINAL_COMMAND, the first
// key listed by the local agent, and the file named by SSH_CLIENT_KEY_FILE.
func (g *Gatherer) ClientKey(ctx context.Context) (string, error) {
	if key, ok := g.keyFromOriginalCommand(); ok {
		g.logger.Debug("client key found", "source", "original_command")
		return key, nil
	}

	if key, ok := g.keyFromAgent(ctx); ok {
		g.logger.Debug("client key found", "source", "agent")
		return key, nil
	}

	if key, ok := g.keyFromFile(); ok {
		g.logger.Debug("client key found", "source", "key_file")
		return key, nil
	}

	return "", fmt.Errorf("client key: %w", ErrUnavailable)
}

// keyFromOriginalCommand extracts the first substring of the original
// command that parses as an authorized_keys style public key.
func (g *Gatherer) keyFromOriginalCommand() (string, bool) {
	cmd, ok := g.host.LookupEnv(EnvOriginalCommand)
	if !ok {
		return "", false
	}

	rest := cmd
	for {
		idx := strings.Index(rest, KeyPrefix)
		if idx < 0 {
			return "", false
		}
		candidate := rest[idx:]
		if nl := strings.IndexAny(candidate, "\r\n"); nl >= 0 {
			candidate = candidate[:nl]
		}
		candidate = strings.TrimSpace(candidate)
		if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(candidate)); err == nil {
			return candidate, true
		}
		rest = rest[idx+len(KeyPrefix):]
	}
}

// keyFromAgent asks the local agent for its public keys and takes the first
// line that looks like one.
func (g *Gatherer) keyFromAgent(ctx context.Context) (string, bool) {
	out, err := g.run(ctx, AgentCommand, "-L")
	if err != nil {
		g.logger.Debug("agent query failed", "error", err)
		return "", false
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, KeyPrefix) {
			return strings.TrimSpace(line), true
		}
	}
	return "", false
}

// keyFromFile reads the key file whose path the SSH layer placed in the environment.
func (g *Gatherer) keyFromFile() (string, bool) {
	path, ok := g.host.LookupEnv(EnvClientKeyFile)
	if !ok || path == "" {
		return "", false
	}

	data, err := g.host.ReadFile(path)
	if err != nil {
		g.logger.Debug("reading client key file failed", "path", path, "error", err)
		return "", false
	}

	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", false
	}
	return key, true
}

// CurrentUsername returns the username the session believes is connecting:
// the first non-empty variable of UsernameEnvVars, then the output of whoami.
func (g *Gatherer) CurrentUsername(ctx context.Context) (string, error) {
	for _, name := range UsernameEnvVars {
		if v, ok := g.host.LookupEnv(name); ok && v != "" {
			return v, nil
		}
	}

	out, err := g.run(ctx, WhoamiCommand)
	if err != nil {
		g.logger.Debug("whoami failed", "error", err)
		return "", fmt.Errorf("current username: %w", ErrUnavailable)
	}
	if name := strings.TrimSpace(string(out)); name != "" {
		return name, nil
	}
	return "", fmt.Errorf("current username: %w", ErrUnavailable)
}

// SessionLooksRemote reports whether either remote-connection indicator is
// set, regardless of its value.
func (g *Gatherer) SessionLooksRemote() bool {
	if _, ok := g.host.LookupEnv(EnvSSHClient); ok {
		return true
	}
	_, ok := g.host.LookupEnv(EnvSSHConnection)
	return ok
}

// AuthorizedKeyPaths lists the conventional per-user authorized_keys locations.
func AuthorizedKeyPaths(username string) []string {
	return []string{
		fmt.Sprintf("/home/%s/.ssh/authorized_keys", username),
		fmt.Sprintf("/Users/%s/.ssh/authorized_keys", username),
		fmt.Sprintf("C:\\Users\\%s\\.ssh\\authorized_keys", username),
	}
}

// AuthorizedKey returns the first key line of the user's authorized_keys file.
func (g *Gatherer) AuthorizedKey(username string) (string, error) {
	if username == "" {
		return "", fmt.Errorf("authorized key: %w", ErrUnavailable)
	}

	for _, path := range AuthorizedKeyPaths(username) {
		data, err := g.host.ReadFile(path)
		if err != nil {
			continue
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, KeyPrefix) {
				return line, nil
			}
		}
	}
	return "", fmt.Errorf("authorized key: %w", ErrUnavailable)
}

func (g *Gatherer) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.host.Output(ctx, name, args...)
}
