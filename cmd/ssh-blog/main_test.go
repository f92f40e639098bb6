package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/ssh-blog/internal/auth"
	"github.com/2389/ssh-blog/internal/config"
	"github.com/2389/ssh-blog/internal/registration"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

type cliResult struct {
	stdout string
	stderr string
	err    error
}

// execute runs the command tree against a temporary database.
func execute(t *testing.T, dbPath, stdin string, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &stdout, &stderr)
	base := []string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "--db", dbPath}
	cmd.SetArgs(append(base, legacyArgs(args)...))
	err := cmd.ExecuteContext(context.Background())
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func isolateSession(t *testing.T) {
	t.Helper()
	for _, k := range []string{"SSH_ORIGINAL_COMMAND", "SSH_CLIENT_KEY_FILE", "SSH_CLIENT", "SSH_CONNECTION"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Setenv("SSH_AUTH_SOCK", filepath.Join(t.TempDir(), "no-agent.sock"))
	t.Setenv("SSHBLOG_AUTH_REGISTRATION", "deny")
}

func TestLegacyArgs(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{nil, nil},
		{[]string{"--register"}, []string{"register"}},
		{[]string{"--register-user", "bob", "ssh-ed25519 AAAA"}, []string{"register-user", "bob", "ssh-ed25519 AAAA"}},
		{[]string{"--init-db"}, []string{"init-db"}},
		{[]string{"export", "--out", "x.html"}, []string{"export", "--out", "x.html"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, legacyArgs(tt.in))
	}
}

func TestRegistrationDecider(t *testing.T) {
	assert.Equal(t, auth.AutoAllow, registrationDecider(config.RegistrationAllow, nil, false))
	assert.Equal(t, auth.AutoDeny, registrationDecider(config.RegistrationDeny, nil, true))
	assert.IsType(t, auth.PromptDecider{}, registrationDecider(config.RegistrationPrompt, nil, false))
	assert.IsType(t, auth.PromptDecider{}, registrationDecider(config.RegistrationAuto, nil, true))
	assert.Equal(t, auth.AutoDeny, registrationDecider(config.RegistrationAuto, nil, false))
}

func TestSetupLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "info", Format: "text"}, &buf)

	logger.With("component", "auth").WithGroup("req").Info("authenticated", "username", "alice")
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "INF authenticated")
	assert.Contains(t, out, "component=auth")
	assert.Contains(t, out, "req.username=alice")
	assert.NotContains(t, out, "hidden")
}

func TestSetupLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("dropped")
	logger.Warn("kept", "policy", "username_only")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), `"policy":"username_only"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelWarn, parseLevel(""))
}

func TestInitDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "blog.db")

	res := execute(t, dbPath, "", "--init-db")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Database initialized successfully")
	assert.FileExists(t, dbPath)
}

func TestRegisterUserThenSession(t *testing.T) {
	isolateSession(t)
	dbPath := filepath.Join(t.TempDir(), "blog.db")
	key, err := registration.GenerateKey("alice@host")
	require.NoError(t, err)

	res := execute(t, dbPath, "", "register-user", "alice", key, "Hello there")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "User alice registered successfully")

	t.Setenv("SSH_ORIGINAL_COMMAND", key)
	t.Setenv("USER", "alice")
	res = execute(t, dbPath, "1\nFirst\nbody text\n.\n4\n5\n")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Welcome back, alice!")
	assert.Contains(t, res.stdout, "Bio: Hello there")
	assert.Contains(t, res.stdout, "Post 'First' created successfully!")
	assert.Contains(t, res.stdout, "Total posts: 1")

	out := filepath.Join(t.TempDir(), "posts.html")
	res = execute(t, dbPath, "", "export", "--out", out)
	require.NoError(t, res.err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<h2>First</h2>")
}

func TestRegisterUser_Invalid(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "blog.db")

	res := execute(t, dbPath, "", "register-user", "ab", "ssh-ed25519 AAAA")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "username must be at least 3 characters long")

	res = execute(t, dbPath, "", "register-user", "only-one-arg")
	assert.Error(t, res.err)
}

func TestRegister_Interactive(t *testing.T) {
	isolateSession(t)
	t.Setenv("USER", "nobody-with-keys")
	dbPath := filepath.Join(t.TempDir(), "blog.db")
	key, err := registration.GenerateKey("carol@host")
	require.NoError(t, err)

	res := execute(t, dbPath, "carol\n"+key+"\n\n", "register")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Registration successful!")
	assert.Contains(t, res.stdout, "Username: carol")
	assert.Contains(t, res.stdout, "SHA256:")
}

func TestSession_UnknownUserDenied(t *testing.T) {
	isolateSession(t)
	t.Setenv("USER", "stranger")
	dbPath := filepath.Join(t.TempDir(), "blog.db")

	res := execute(t, dbPath, "")
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, auth.ErrAuthenticationExhausted)
	assert.Contains(t, res.stderr, "SSH authentication failed")
	assert.Contains(t, res.stderr, "ssh-blog register")
}

func TestDev_Disabled(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "blog.db")

	res := execute(t, dbPath, "", "dev", "tester")
	assert.ErrorIs(t, res.err, errDevModeDisabled)
}

func TestDev_CreatesAccount(t *testing.T) {
	t.Setenv("SSHBLOG_AUTH_DEV_MODE", "true")
	dbPath := filepath.Join(t.TempDir(), "blog.db")

	res := execute(t, dbPath, "5\n", "dev", "tester")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "DEV MODE")
	assert.Contains(t, res.stdout, "Created development account tester")
	assert.Contains(t, res.stdout, "Goodbye!")

	res = execute(t, dbPath, "5\n", "dev", "tester")
	require.NoError(t, res.err)
	assert.NotContains(t, res.stdout, "Created development account")
}
