package car

import (
	"math"
	"strings"
	"time"

	"github.com/geocoder89/carshare/internal/domain/user"
	"github.com/google/uuid"
)

const MinYear = 1900

// MaxPricePerDay is the largest value price_per_day NUMERIC(10,2) holds.
const MaxPricePerDay = 99999999.99

type Car struct {
	ID           string      `json:"id"`
	UserID       string      `json:"userId"`
	Make         string      `json:"make"`
	Model        string      `json:"model"`
	Year         int         `json:"year"`
	Location     string      `json:"location"`
	PricePerDay  float64     `json:"pricePerDay"`
	Availability bool        `json:"availability"`
	ImageURL     *string     `json:"imageUrl"`
	Description  *string     `json:"description"`
	CreatedAt    time.Time   `json:"createdAt"`
	User         *user.Owner `json:"user,omitempty"`
}

// Availability is a pointer so that an explicit false is distinguishable
// from a missing field.
type CreateCarRequest struct {
	Make         string  `json:"make" binding:"required,max=60"`
	Model        string  `json:"model" binding:"required,max=60"`
	Year         int     `json:"year" binding:"required,caryear"`
	Location     string  `json:"location" binding:"required,max=160"`
	PricePerDay  float64 `json:"pricePerDay" binding:"required,gt=0,lte=99999999.99,cents"`
	Availability *bool   `json:"availability" binding:"required"`
	ImageURL     string  `json:"imageUrl" binding:"omitempty,url,max=2048"`
	Description  string  `json:"description" binding:"omitempty,max=2000"`
}

// SearchFilter fields are optional; nil means "no constraint".
type SearchFilter struct {
	Location *string
	MaxPrice *float64
}

func (f SearchFilter) IsEmpty() bool {
	return f.Location == nil && f.MaxPrice == nil
}

// MaxYear is the newest model year accepted at the given instant.
func MaxYear(now time.Time) int {
	return now.Year() + 1
}

func ValidYear(year int, now time.Time) bool {
	return year >= MinYear && year <= MaxYear(now)
}

func ValidPrice(price float64) bool {
	return price > 0 && price <= MaxPricePerDay && HasCents(price)
}

// HasCents reports whether price has at most two decimal places.
func HasCents(price float64) bool {
	cents := price * 100
	return math.Abs(cents-math.Round(cents)) < 1e-4
}

// RoundCents rounds price to the nearest cent.
func RoundCents(price float64) float64 {
	return math.Round(price*100) / 100
}

func NewFromCreateRequest(ownerID string, req CreateCarRequest) Car {
	available := req.Availability != nil && *req.Availability

	return Car{
		ID:           uuid.NewString(),
		UserID:       ownerID,
		Make:         strings.TrimSpace(req.Make),
		Model:        strings.TrimSpace(req.Model),
		Year:         req.Year,
		Location:     strings.TrimSpace(req.Location),
		PricePerDay:  RoundCents(req.PricePerDay),
		Availability: available,
		ImageURL:     optional(req.ImageURL),
		Description:  optional(req.Description),
		CreatedAt:    time.Now().UTC(),
	}
}

// MatchesFilter applies the search semantics in process: available only,
// case-insensitive location substring, price ceiling inclusive.
func (c Car) MatchesFilter(f SearchFilter) bool {
	if !c.Availability {
		return false
	}
	if f.Location != nil && !strings.Contains(strings.ToLower(c.Location), strings.ToLower(*f.Location)) {
		return false
	}
	if f.MaxPrice != nil && c.PricePerDay > *f.MaxPrice {
		return false
	}
	return true
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
