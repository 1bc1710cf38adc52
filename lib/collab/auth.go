package collab

import (
	"context"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Store is the storage SessionAuth keeps its session in.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// User is an authenticated identity.
type User struct {
	ID    string   `msgpack:"id" json:"id"`
	Name  string   `msgpack:"name" json:"name"`
	Roles []string `msgpack:"roles,omitempty" json:"roles,omitempty"`
}

// HasRole reports whether u carries role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// CheckFunc verifies credentials and returns the matching user.
type CheckFunc func(ctx context.Context, username, password string) (*User, error)

// SessionKey is the storage key of the current session.
const SessionKey = "session.user"

// SessionAuth stores the current user in a Store after Check accepts the
// credentials.
type SessionAuth struct {
	Store Store
	Check CheckFunc
	Key   string
}

// NewSessionAuth returns an authenticator over store.
func NewSessionAuth(store Store, check CheckFunc) *SessionAuth {
	return &SessionAuth{Store: store, Check: check, Key: SessionKey}
}

func (a *SessionAuth) key() string {
	if a.Key == "" {
		return SessionKey
	}
	return a.Key
}

// Login checks the credentials and records the session. Rejected
// credentials return an error wrapping ErrUnauthorized.
func (a *SessionAuth) Login(ctx context.Context, username, password string) (*User, error) {
	if a.Check == nil {
		return nil, fmt.Errorf("%w: no credential check configured", ErrUnauthorized)
	}
	u, err := a.Check(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if u == nil {
		return nil, ErrUnauthorized
	}
	data, err := msgpack.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("collab: encode session: %w", err)
	}
	if err := a.Store.Put(ctx, a.key(), data); err != nil {
		return nil, fmt.Errorf("collab: save session: %w", err)
	}
	return u, nil
}

// Logout forgets the session.
func (a *SessionAuth) Logout(ctx context.Context) error {
	return a.Store.Delete(ctx, a.key())
}

// CurrentUser returns the logged-in user, or nil without an error when
// nobody is logged in.
func (a *SessionAuth) CurrentUser(ctx context.Context) (*User, error) {
	data, err := a.Store.Get(ctx, a.key())
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var u User
	if err := msgpack.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("collab: decode session: %w", err)
	}
	return &u, nil
}
