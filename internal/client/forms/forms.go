// Package forms validates terminal input before it is sent to the API, so
// people see field-level messages without a round trip.
package forms

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/carshare/internal/domain/car"
	"github.com/geocoder89/carshare/internal/domain/profile"
	"github.com/geocoder89/carshare/internal/domain/user"
	"github.com/go-playground/validator/v10"
)

// Errors maps a form field (its json name) to a human message.
type Errors map[string]string

func (e Errors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return strings.Join(parts, "; ")
}

type Login struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type Signup struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// AddListing keeps numbers as typed text; Validate reports unparsable input
// against the field instead of failing the whole form.
type AddListing struct {
	Make        string `json:"make" validate:"required"`
	Model       string `json:"model" validate:"required"`
	Year        string `json:"year" validate:"required,caryear"`
	Location    string `json:"location" validate:"required"`
	PricePerDay string `json:"pricePerDay" validate:"required,price,maxprice,cents"`
	Available   bool   `json:"availability"`
	ImageURL    string `json:"imageUrl" validate:"omitempty,url"`
	Description string `json:"description"`
}

type Profile struct {
	FirstName     string `json:"firstName" validate:"required"`
	LastName      string `json:"lastName" validate:"required"`
	PhoneNumber   string `json:"phoneNumber" validate:"required"`
	LicenseNumber string `json:"licenseNumber" validate:"required"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate

	// now is swapped in tests.
	now = time.Now
)

func engine() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		v.RegisterTagNameFunc(func(sf reflect.StructField) string {
			name := strings.SplitN(sf.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return sf.Name
			}
			return name
		})

		_ = v.RegisterValidation("caryear", func(fl validator.FieldLevel) bool {
			year, err := strconv.Atoi(strings.TrimSpace(fl.Field().String()))
			return err == nil && car.ValidYear(year, now())
		})
		_ = v.RegisterValidation("price", func(fl validator.FieldLevel) bool {
			price, err := strconv.ParseFloat(strings.TrimSpace(fl.Field().String()), 64)
			return err == nil && price > 0
		})
		// maxprice and cents run after price has accepted the number
		_ = v.RegisterValidation("maxprice", func(fl validator.FieldLevel) bool {
			price, err := strconv.ParseFloat(strings.TrimSpace(fl.Field().String()), 64)
			return err != nil || price <= car.MaxPricePerDay
		})
		_ = v.RegisterValidation("cents", func(fl validator.FieldLevel) bool {
			price, err := strconv.ParseFloat(strings.TrimSpace(fl.Field().String()), 64)
			return err != nil || car.HasCents(price)
		})

		validate = v
	})
	return validate
}

// Validate checks any form in this package. It returns nil or Errors.
func Validate(form any) error {
	err := engine().Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(Errors, len(verrs))
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		out[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Enter a valid email address"
	case "min":
		return fmt.Sprintf("Must be at least %s characters", fe.Param())
	case "eqfield":
		return "Passwords do not match"
	case "caryear":
		return fmt.Sprintf("Year must be between %d and %d", car.MinYear, car.MaxYear(now()))
	case "price":
		return "Price must be a number greater than 0"
	case "maxprice":
		return fmt.Sprintf("Price must be at most %.2f", car.MaxPricePerDay)
	case "cents":
		return "Price can have at most 2 decimal places"
	case "url":
		return "Enter a valid URL"
	default:
		return "Invalid value"
	}
}

func (f Login) Request() user.LoginRequest {
	return user.LoginRequest{Email: strings.TrimSpace(f.Email), Password: f.Password}
}

func (f Signup) Request() user.SignUpRequest {
	return user.SignUpRequest{
		Name:            strings.TrimSpace(f.Name),
		Email:           strings.TrimSpace(f.Email),
		Password:        f.Password,
		ConfirmPassword: f.ConfirmPassword,
	}
}

// Request converts a validated AddListing; call Validate first.
func (f AddListing) Request() (car.CreateCarRequest, error) {
	year, err := strconv.Atoi(strings.TrimSpace(f.Year))
	if err != nil {
		return car.CreateCarRequest{}, Errors{"year": "Year must be a whole number"}
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(f.PricePerDay), 64)
	if err != nil || !car.ValidPrice(price) {
		return car.CreateCarRequest{}, Errors{"pricePerDay": "Price must be a number greater than 0"}
	}

	available := f.Available
	return car.CreateCarRequest{
		Make:         strings.TrimSpace(f.Make),
		Model:        strings.TrimSpace(f.Model),
		Year:         year,
		Location:     strings.TrimSpace(f.Location),
		PricePerDay:  price,
		Availability: &available,
		ImageURL:     strings.TrimSpace(f.ImageURL),
		Description:  strings.TrimSpace(f.Description),
	}, nil
}

func (f Profile) Request() profile.UpsertProfileRequest {
	return profile.UpsertProfileRequest{
		FirstName:     strings.TrimSpace(f.FirstName),
		LastName:      strings.TrimSpace(f.LastName),
		PhoneNumber:   strings.TrimSpace(f.PhoneNumber),
		LicenseNumber: strings.TrimSpace(f.LicenseNumber),
	}
}
