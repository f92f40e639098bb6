// ABOUTME: Store interfaces and data types for ssh-blog persistence
// ABOUTME: Defines Account and Post records plus the AccountStore and PostStore contracts

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrUsernameExists is returned when trying to create an account with a taken username.
var ErrUsernameExists = errors.New("username already exists")

// ErrKeyExists is returned when trying to create an account with a public key
// that is already registered to another account.
var ErrKeyExists = errors.New("public key already registered")

// Account is a registered identity. ID is zero until the store assigns one.
type Account struct {
	ID        int64
	Username  string
	PublicKey string  // raw key material as presented at registration
	Bio       *string // nil means "not set"
	CreatedAt time.Time
}

// Post is a blog entry written by an account.
type Post struct {
	ID             int64
	AccountID      int64
	Title          string
	Content        string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	AuthorUsername string // filled by listing queries that join users
}

// AccountStore defines point lookups and creation of accounts.
// Lookups return ErrNotFound on a miss; any other error is a storage failure.
type AccountStore interface {
	GetAccountByUsername(ctx context.Context, username string) (*Account, error)
	// GetAccountByKey matches the stored raw key value exactly.
	GetAccountByKey(ctx context.Context, key string) (*Account, error)
	// CreateAccount assigns account.ID on success and never partially applies.
	CreateAccount(ctx context.Context, account *Account) error
}

// PostStore defines post persistence and listing.
type PostStore interface {
	CreatePost(ctx context.Context, post *Post) error
	ListPostsByAccount(ctx context.Context, accountID int64) ([]*Post, error)
	ListPosts(ctx context.Context) ([]*Post, error)
	CountPostsByAccount(ctx context.Context, accountID int64) (int, error)
}

// Store combines every persistence interface.
type Store interface {
	AccountStore
	PostStore

	// Close releases any resources held by the store
	Close() error
}
