package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/carshare/internal/domain/car"
	"github.com/geocoder89/carshare/internal/domain/user"
	"github.com/geocoder89/carshare/internal/security"
)

const (
	DemoOwnerEmail    = "demo.owner@carshare.local"
	DemoOwnerPassword = "demo-pass"
)

type SeedUsers interface {
	Create(ctx context.Context, name, email, passwordHash string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

type SeedCars interface {
	Create(ctx context.Context, ownerID string, req car.CreateCarRequest) (car.Car, error)
}

// SeedDemo creates a demo owner with a few listings. It does nothing when
// the owner already exists, so it is safe to run on every start.
func SeedDemo(ctx context.Context, users SeedUsers, cars SeedCars) error {
	_, err := users.GetByEmail(ctx, DemoOwnerEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return err
	}

	hash, err := security.HashPassword(DemoOwnerPassword)
	if err != nil {
		return err
	}

	owner, err := users.Create(ctx, "Demo Owner", DemoOwnerEmail, hash)
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil
		}
		return err
	}

	available, parked := true, false
	listings := []car.CreateCarRequest{
		{Make: "Toyota", Model: "Corolla", Year: 2020, Location: "Austin, TX", PricePerDay: 45, Availability: &available, Description: "Clean and reliable."},
		{Make: "Honda", Model: "Civic", Year: 2019, Location: "San Antonio, TX", PricePerDay: 39.5, Availability: &available},
		{Make: "Tesla", Model: "Model 3", Year: 2022, Location: "Austin, TX", PricePerDay: 95, Availability: &available},
		{Make: "Ford", Model: "F-150", Year: 2018, Location: "Dallas, TX", PricePerDay: 70, Availability: &parked},
	}

	for _, req := range listings {
		if _, err := cars.Create(ctx, owner.ID, req); err != nil {
			return fmt.Errorf("seed car %s %s: %w", req.Make, req.Model, err)
		}
	}

	return nil
}
