// Package session holds the signed-in identity of the terminal client and
// persists it between runs.
package session

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/geocoder89/carshare/internal/domain/user"
)

const (
	UserKey  = "carShareUser"
	TokenKey = "authToken"

	LoginRoute = "/login"
)

var publicRoutes = map[string]bool{
	"/":         true,
	"/listings": true,
	"/signup":   true,
	"/login":    true,
}

// Patch carries optional identity fields for UpdateUser; nil means unchanged.
type Patch struct {
	Name  *string
	Email *string
}

type Session struct {
	mu    sync.RWMutex
	store Store
	user  *user.Owner
	token string
}

// New restores the persisted identity. A snapshot that does not decode is
// erased and the session starts signed out.
func New(store Store) (*Session, error) {
	s := &Session{store: store}

	raw, ok, err := store.Get(UserKey)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return s, nil
	}

	var u user.Owner
	if err := json.Unmarshal([]byte(raw), &u); err != nil || u.ID == "" {
		if err := store.Delete(UserKey); err != nil {
			return nil, fmt.Errorf("discard session: %w", err)
		}
		return s, nil
	}

	token, _, err := store.Get(TokenKey)
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}

	s.user = &u
	s.token = token
	return s, nil
}

// User returns a copy of the current identity.
func (s *Session) User() (user.Owner, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return user.Owner{}, false
	}
	return *s.user, true
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

func (s *Session) Login(identity user.Owner, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persistUser(identity); err != nil {
		return err
	}

	if token == "" {
		if err := s.store.Delete(TokenKey); err != nil {
			return fmt.Errorf("erase token: %w", err)
		}
	} else if err := s.store.Set(TokenKey, token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}

	u := identity
	s.user = &u
	s.token = token
	return nil
}

func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = nil
	s.token = ""

	if err := s.store.Delete(UserKey, TokenKey); err != nil {
		return fmt.Errorf("erase session: %w", err)
	}
	return nil
}

// UpdateUser merges patch into the current identity. It does nothing while
// signed out.
func (s *Session) UpdateUser(p Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return nil
	}

	next := *s.user
	if p.Name != nil {
		next.Name = *p.Name
	}
	if p.Email != nil {
		next.Email = *p.Email
	}

	if err := s.persistUser(next); err != nil {
		return err
	}
	s.user = &next
	return nil
}

// Authorize gates a client route. It returns the route to show instead and
// false when the route needs a signed-in user.
func (s *Session) Authorize(route string) (string, bool) {
	if publicRoutes[route] || s.IsAuthenticated() {
		return route, true
	}
	return LoginRoute, false
}

func (s *Session) persistUser(u user.Owner) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.store.Set(UserKey, string(raw)); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}
