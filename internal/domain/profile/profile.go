package profile

import (
	"errors"
	"time"

	"github.com/geocoder89/carshare/internal/domain/user"
)

var ErrNotFound = errors.New("profile not found")

type Profile struct {
	ID            string      `json:"id"`
	UserID        string      `json:"userId"`
	FirstName     string      `json:"firstName"`
	LastName      string      `json:"lastName"`
	PhoneNumber   string      `json:"phoneNumber"`
	LicenseNumber string      `json:"licenseNumber"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
	User          *user.Owner `json:"user,omitempty"`
}

type UpsertProfileRequest struct {
	FirstName     string `json:"firstName" binding:"required,max=80"`
	LastName      string `json:"lastName" binding:"required,max=80"`
	PhoneNumber   string `json:"phoneNumber" binding:"required,max=32"`
	LicenseNumber string `json:"licenseNumber" binding:"required,max=64"`
}
