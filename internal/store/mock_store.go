// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu         sync.RWMutex
	accounts   map[int64]*Account // keyed by account ID
	byUsername map[string]int64   // username -> account ID
	byKey      map[string]int64   // raw public key -> account ID
	posts      []*Post
	nextID     int64
	nextPostID int64

	// Err, when set, is returned by every operation to simulate an
	// unavailable backing store.
	Err error
}

// Ensure MockStore implements Store.
var _ Store = (*MockStore)(nil)

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		accounts:   make(map[int64]*Account),
		byUsername: make(map[string]int64),
		byKey:      make(map[string]int64),
	}
}

// CreateAccount stores a new account.
func (m *MockStore) CreateAccount(ctx context.Context, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.byUsername[account.Username]; ok {
		return ErrUsernameExists
	}
	if _, ok := m.byKey[account.PublicKey]; ok {
		return ErrKeyExists
	}

	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}
	m.nextID++
	account.ID = m.nextID

	// Make a copy to avoid external modification
	a := *account
	m.accounts[a.ID] = &a
	m.byUsername[a.Username] = a.ID
	m.byKey[a.PublicKey] = a.ID

	return nil
}

// GetAccountByUsername retrieves an account by username.
func (m *MockStore) GetAccountByUsername(ctx context.Context, username string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	id, ok := m.byUsername[username]
	if !ok {
		return nil, ErrNotFound
	}
	result := *m.accounts[id]
	return &result, nil
}

// GetAccountByKey retrieves an account by exact public key.
func (m *MockStore) GetAccountByKey(ctx context.Context, key string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	id, ok := m.byKey[key]
	if !ok {
		return nil, ErrNotFound
	}
	result := *m.accounts[id]
	return &result, nil
}

// AccountCount returns how many accounts are stored.
func (m *MockStore) AccountCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.accounts)
}

// CreatePost stores a new post.
func (m *MockStore) CreatePost(ctx context.Context, post *Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.accounts[post.AccountID]; !ok {
		return ErrNotFound
	}

	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	if post.UpdatedAt.IsZero() {
		post.UpdatedAt = post.CreatedAt
	}
	m.nextPostID++
	post.ID = m.nextPostID

	p := *post
	m.posts = append(m.posts, &p)
	return nil
}

// ListPostsByAccount returns an account's posts, newest first.
func (m *MockStore) ListPostsByAccount(ctx context.Context, accountID int64) ([]*Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	return m.listLocked(func(p *Post) bool { return p.AccountID == accountID }), nil
}

// ListPosts returns every post, newest first.
func (m *MockStore) ListPosts(ctx context.Context) ([]*Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	return m.listLocked(func(*Post) bool { return true }), nil
}

// CountPostsByAccount returns how many posts an account has written.
func (m *MockStore) CountPostsByAccount(ctx context.Context, accountID int64) (int, error) {
	posts, err := m.ListPostsByAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return len(posts), nil
}

func (m *MockStore) listLocked(keep func(*Post) bool) []*Post {
	var result []*Post
	for _, p := range m.posts {
		if !keep(p) {
			continue
		}
		cp := *p
		if a, ok := m.accounts[p.AccountID]; ok {
			cp.AuthorUsername = a.Username
		}
		result = append(result, &cp)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// Close is a no-op for MockStore.
func (m *MockStore) Close() error {
	return nil
}
