// Package store provides persistent storage for ssh-blog using SQLite.
//
// # Architecture
//
// The store package is split into two interfaces:
//
//   - AccountStore: point lookups by username or public key, and creation
//   - PostStore: post creation, per-account and global listing
//
// SQLiteStore implements both in a single struct. MockStore is an in-memory
// equivalent for unit tests.
//
// # Data Models
//
//   - Account: a registered identity with a unique username and public key
//   - Post: a blog entry owned by an account
//
// Accounts are created once and never updated or deleted here.
//
// # Concurrency
//
// SQLiteStore serializes every operation behind one mutex and keeps a single
// pooled connection. Operations are short; no lock is held across prompts.
//
// # Drivers
//
// Open accepts "sqlite" (modernc.org/sqlite, pure Go, the default) or
// "sqlite3" (github.com/mattn/go-sqlite3, requires cgo).
//
// Database file locations:
//
//   - Production: /var/lib/ssh-blog/blog.db
//   - Testing: a file under t.TempDir() or ":memory:"
//
// # Error Handling
//
//   - ErrNotFound: requested entity does not exist
//   - ErrUsernameExists: username already taken
//   - ErrKeyExists: public key already registered
//
// Any other error is a storage failure and must be surfaced by callers.
package store
