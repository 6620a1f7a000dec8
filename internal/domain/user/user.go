package user

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Owner is the minimal identity joined onto cars and profiles for display.
type Owner struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u User) Owner() Owner {
	return Owner{ID: u.ID, Name: u.Name, Email: u.Email}
}

type SignUpRequest struct {
	Name            string `json:"name" binding:"required,max=120"`
	Email           string `json:"email" binding:"required,email,max=254"`
	Password        string `json:"password" binding:"required,min=6,max=72"`
	ConfirmPassword string `json:"confirmPassword" binding:"required,eqfield=Password"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// NormalizeEmail is applied before every lookup and insert so uniqueness
// holds regardless of the casing a user types.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
