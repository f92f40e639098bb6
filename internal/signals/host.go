// ABOUTME: Host capability supplying environment, file and process access to the gatherer
// ABOUTME: OSHost is the production implementation backed by os and os/exec

package signals

import (
	"context"
	"os"
	"os/exec"
)

// Host is the explicit host interface the gatherer reads session signals from.
// Tests substitute a fake to run without a real SSH session or agent.
type Host interface {
	// LookupEnv reports the value of an environment variable and whether it is set.
	LookupEnv(key string) (string, bool)
	// ReadFile returns the contents of the named file.
	ReadFile(name string) ([]byte, error)
	// Output runs an external command and returns its standard output.
	// The command must be killed when ctx is done.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// OSHost reads signals from the current process environment.
type OSHost struct{}

// Ensure OSHost implements Host.
var _ Host = OSHost{}

// LookupEnv wraps os.LookupEnv.
func (OSHost) LookupEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}

// ReadFile wraps os.ReadFile.
func (OSHost) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// Output runs name with args and returns stdout.
func (OSHost) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}
