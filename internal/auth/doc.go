// Package auth resolves the connecting SSH user to a single account.
//
// # Strategy Cascade
//
// Authenticate tries, in order:
//
//  1. by-key: the presented client key is looked up by its exact stored value.
//  2. by-username-verified: the current username is looked up and the
//     presented key is compared with KeysMatch.
//  3. session-presence: a username match whose key could not be verified is
//     accepted when SSH_CLIENT or SSH_CONNECTION is set
//     (Options.TrustRemoteSession).
//
// When all three decline, the automated pass fails with a *SessionError and
// the outer cascade runs:
//
//  4. username-only: the username is looked up again with no key check
//     (Options.UsernameFallback). A positive key mismatch in the automated
//     pass disables this step.
//  5. registration: the Decider is asked whether to register; on yes the
//     Registrar creates the account.
//
// # Error Kinds
//
//   - signals.ErrUnavailable, ErrKeyMismatch, ErrAccountNotFound: recovered
//     inside the cascade, logged, never returned on their own
//   - *StorageError: the store failed; returned immediately
//   - ErrAuthenticationExhausted: the terminal failure, joined with its cause
//
// # Key Matching
//
// KeysMatch compares key type and body tokens and ignores comments:
//
//	KeysMatch("ssh-ed25519 AAAA alice@laptop", "ssh-ed25519 AAAA alice@desktop") // true
//
// # Decision Policies
//
// PromptDecider asks the user; AutoAllow and AutoDeny answer without a terminal.
package auth
