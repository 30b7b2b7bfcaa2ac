// Package user holds the accounts allowed into the web UI.
// There is no per-user data: every authenticated user sees the same notes.
package user

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	. "github.com/roelfdiedericks/minutes/internal/logging"
)

// User is one HTTP account.
type User struct {
	Name         string
	PasswordHash string // Argon2id
}

// VerifyPassword checks password against the stored hash.
func (u *User) VerifyPassword(password string) bool {
	if u == nil || u.PasswordHash == "" {
		return false
	}
	return VerifyPassword(password, u.PasswordHash)
}

// username: lowercase alphanumeric + underscore, 1-32 chars, starts with letter
var usernameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]{0,31}$`)

// ValidateUsername checks if a username is valid
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("invalid username %q: must be 1-32 chars, lowercase alphanumeric + underscore, start with letter", username)
	}
	return nil
}

// Registry is the set of accounts, replaceable at runtime on config reload.
type Registry struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewRegistry builds a registry from username -> hash pairs.
// Invalid entries are skipped with a warning.
func NewRegistry(hashes map[string]string) *Registry {
	r := &Registry{}
	r.Replace(hashes)
	return r
}

// Replace swaps in a new set of accounts.
func (r *Registry) Replace(hashes map[string]string) {
	users := make(map[string]*User, len(hashes))
	for name, hash := range hashes {
		if err := ValidateUsername(name); err != nil {
			L_warn("user: skipping account", "error", err)
			continue
		}
		if err := ValidateHash(hash); err != nil {
			L_warn("user: skipping account with bad hash", "username", name, "error", err)
			continue
		}
		users[name] = &User{Name: name, PasswordHash: hash}
	}

	r.mu.Lock()
	r.users = users
	r.mu.Unlock()

	L_debug("user: registry loaded", "users", len(users))
}

// Get returns the named user, or nil.
func (r *Registry) Get(name string) *User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.users[name]
}

// Authenticate returns the user when name and password match.
func (r *Registry) Authenticate(name, password string) (*User, bool) {
	u := r.Get(name)
	if u == nil || !u.VerifyPassword(password) {
		return nil, false
	}
	return u, true
}

// Len returns the number of accounts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// AuthRequired reports whether any account exists. With no accounts the
// web UI is open, which suits the single-user local setup.
func (r *Registry) AuthRequired() bool {
	return r.Len() > 0
}

// Names returns the sorted usernames.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.users))
	for name := range r.users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
