// ABOUTME: Error kinds produced while resolving a session identity
// ABOUTME: Intermediate kinds drive cascade fallthrough; only terminal kinds reach callers

package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyMismatch means the presented key does not match the stored key.
	ErrKeyMismatch = errors.New("presented key does not match stored key")

	// ErrAccountNotFound means no account matched the username or key.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAuthenticationExhausted is the terminal failure of Authenticate:
	// every automated and interactive avenue failed.
	ErrAuthenticationExhausted = errors.New("authentication failed. Please register first or contact admin")
)

// StorageError reports that the account store could not complete an
// operation. It is always surfaced, never swallowed by the cascade.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// SessionError is the failure of the automated pass. It names the username
// that was attempted.
type SessionError struct {
	Username string
	Reason   error
}

func (e *SessionError) Error() string {
	if e.Username == "" {
		return fmt.Sprintf("could not determine current user: %v", e.Reason)
	}
	return fmt.Sprintf("user '%s' not found or SSH key verification failed. Please register first", e.Username)
}

func (e *SessionError) Unwrap() error {
	return e.Reason
}
