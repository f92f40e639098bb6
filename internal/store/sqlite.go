// ABOUTME: SQLite implementation of the Store interface using database/sql
// ABOUTME: Provides account and post persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverModernc = "sqlite"  // modernc.org/sqlite, pure Go
	DriverCGO     = "sqlite3" // github.com/mattn/go-sqlite3, requires cgo
)

// SQLiteStore implements the Store interface using SQLite.
// Every operation runs under mu, so writes from concurrent sessions are
// serialized against reads and other writes.
type SQLiteStore struct {
	mu     sync.Mutex
	db     *sql.DB
	logger *slog.Logger
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store at the given path using the
// pure Go driver.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	return Open(DriverModernc, path)
}

// Open creates a SQLite store at path with the named driver.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func Open(driver, path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if driver != DriverModernc && driver != DriverCGO {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection: the in-memory database stays shared and the mutex
	// is the only access discipline.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "driver", driver, "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			username   TEXT UNIQUE NOT NULL,
			public_key TEXT UNIQUE NOT NULL,
			bio        TEXT,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS posts (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    INTEGER NOT NULL,
			title      TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id)
		);

		CREATE INDEX IF NOT EXISTS idx_posts_user_created
			ON posts(user_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// CreateAccount inserts a new account and assigns its ID.
// Returns ErrUsernameExists or ErrKeyExists on uniqueness violations.
func (s *SQLiteStore) CreateAccount(ctx context.Context, account *Account) error {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, public_key, bio, created_at)
		VALUES (?, ?, ?, ?)
	`,
		account.Username,
		account.PublicKey,
		nullableString(account.Bio),
		account.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return constraintError(err)
		}
		return fmt.Errorf("inserting account: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading account id: %w", err)
	}
	account.ID = id

	s.logger.Debug("created account", "id", id, "username", account.Username)
	return nil
}

// GetAccountByUsername retrieves an account by username.
// Returns ErrNotFound if the account doesn't exist.
func (s *SQLiteStore) GetAccountByUsername(ctx context.Context, username string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.scanAccount(s.db.QueryRowContext(ctx, `
		SELECT id, username, public_key, bio, created_at
		FROM users
		WHERE username = ?
	`, username))
}

// GetAccountByKey retrieves an account by its exact stored public key.
// Returns ErrNotFound if no account holds the key.
func (s *SQLiteStore) GetAccountByKey(ctx context.Context, key string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.scanAccount(s.db.QueryRowContext(ctx, `
		SELECT id, username, public_key, bio, created_at
		FROM users
		WHERE public_key = ?
	`, key))
}

func (s *SQLiteStore) scanAccount(row *sql.Row) (*Account, error) {
	var a Account
	var bio sql.NullString
	var createdAtStr string

	err := row.Scan(&a.ID, &a.Username, &a.PublicKey, &bio, &createdAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying account: %w", err)
	}

	if bio.Valid {
		a.Bio = &bio.String
	}
	a.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &a, nil
}

// CreatePost inserts a new post and assigns its ID.
func (s *SQLiteStore) CreatePost(ctx context.Context, post *Post) error {
	now := time.Now()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	if post.UpdatedAt.IsZero() {
		post.UpdatedAt = post.CreatedAt
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (user_id, title, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		post.AccountID,
		post.Title,
		post.Content,
		post.CreatedAt.UTC().Format(time.RFC3339),
		post.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting post: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading post id: %w", err)
	}
	post.ID = id

	s.logger.Debug("created post", "id", id, "account_id", post.AccountID)
	return nil
}

// ListPostsByAccount returns an account's posts, newest first.
func (s *SQLiteStore) ListPostsByAccount(ctx context.Context, accountID int64) ([]*Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.user_id, p.title, p.content, p.created_at, p.updated_at, u.username
		FROM posts p
		JOIN users u ON p.user_id = u.id
		WHERE p.user_id = ?
		ORDER BY p.created_at DESC, p.id DESC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("querying posts: %w", err)
	}
	return scanPosts(rows)
}

// ListPosts returns every post with its author, newest first.
func (s *SQLiteStore) ListPosts(ctx context.Context) ([]*Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.user_id, p.title, p.content, p.created_at, p.updated_at, u.username
		FROM posts p
		JOIN users u ON p.user_id = u.id
		ORDER BY p.created_at DESC, p.id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying posts: %w", err)
	}
	return scanPosts(rows)
}

// CountPostsByAccount returns how many posts an account has written.
func (s *SQLiteStore) CountPostsByAccount(ctx context.Context, accountID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE user_id = ?`, accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting posts: %w", err)
	}
	return count, nil
}

func scanPosts(rows *sql.Rows) ([]*Post, error) {
	defer func() { _ = rows.Close() }()

	var posts []*Post
	for rows.Next() {
		var p Post
		var createdAtStr, updatedAtStr string
		if err := rows.Scan(&p.ID, &p.AccountID, &p.Title, &p.Content, &createdAtStr, &updatedAtStr, &p.AuthorUsername); err != nil {
			return nil, fmt.Errorf("scanning post: %w", err)
		}

		var err error
		if p.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if p.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		posts = append(posts, &p)
	}
	return posts, rows.Err()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// constraintError maps a UNIQUE violation on users to the sentinel naming the column.
func constraintError(err error) error {
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "users.username"):
		return ErrUsernameExists
	case strings.Contains(errStr, "users.public_key"):
		return ErrKeyExists
	default:
		return fmt.Errorf("constraint violation: %w", err)
	}
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
