package memory

import (
	"sync"

	"github.com/geocoder89/carshare/internal/domain/car"
	"github.com/geocoder89/carshare/internal/domain/profile"
	"github.com/geocoder89/carshare/internal/domain/user"
)

// Store backs the in-memory repositories. One store is shared so that
// joins (car owner, profile owner) see the same users.
type Store struct {
	mu       sync.RWMutex
	users    map[string]user.User
	byEmail  map[string]string
	cars     []car.Car
	profiles map[string]profile.Profile // keyed by user id
}

func NewStore() *Store {
	return &Store{
		users:    make(map[string]user.User),
		byEmail:  make(map[string]string),
		profiles: make(map[string]profile.Profile),
	}
}

// callers must hold s.mu.
func (s *Store) ownerOf(userID string) *user.Owner {
	u, ok := s.users[userID]
	if !ok {
		return nil
	}
	o := u.Owner()
	return &o
}

func (s *Store) Users() *UsersRepo {
	return &UsersRepo{s: s}
}

func (s *Store) Cars() *CarsRepo {
	return &CarsRepo{s: s}
}

func (s *Store) Profiles() *ProfilesRepo {
	return &ProfilesRepo{s: s}
}
