package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/carshare/internal/domain/profile"
	"github.com/geocoder89/carshare/internal/domain/user"
	"github.com/geocoder89/carshare/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProfilesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewProfilesRepo(pool *pgxpool.Pool, prom *observability.Prom) *ProfilesRepo {
	return &ProfilesRepo{pool: pool, prom: prom}
}

func (r *ProfilesRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *ProfilesRepo) GetByUserID(ctx context.Context, userID string) (profile.Profile, error) {
	var p profile.Profile
	var owner user.Owner

	err := r.observe("profiles.get_by_user", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT p.id, p.user_id, p.first_name, p.last_name, p.phone_number, p.license_number,
				p.created_at, p.updated_at, u.id, u.name, u.email
			FROM profiles p
			JOIN users u ON u.id = p.user_id
			WHERE p.user_id = $1`,
			userID,
		).Scan(
			&p.ID, &p.UserID, &p.FirstName, &p.LastName, &p.PhoneNumber, &p.LicenseNumber,
			&p.CreatedAt, &p.UpdatedAt, &owner.ID, &owner.Name, &owner.Email,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return profile.Profile{}, profile.ErrNotFound
		}
		return profile.Profile{}, err
	}

	p.User = &owner
	return p, nil
}

// Upsert inserts or updates the caller's profile in one statement keyed by the
// unique user_id, so concurrent writers cannot create two rows. xmax is zero
// only for a freshly inserted tuple.
func (r *ProfilesRepo) Upsert(ctx context.Context, userID string, req profile.UpsertProfileRequest) (profile.Profile, bool, error) {
	var p profile.Profile
	var created bool

	now := time.Now().UTC()

	err := r.observe("profiles.upsert", func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO profiles (id, user_id, first_name, last_name, phone_number, license_number, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
			ON CONFLICT (user_id) DO UPDATE
				SET first_name = EXCLUDED.first_name,
					last_name = EXCLUDED.last_name,
					phone_number = EXCLUDED.phone_number,
					license_number = EXCLUDED.license_number,
					updated_at = EXCLUDED.updated_at
			RETURNING id, user_id, first_name, last_name, phone_number, license_number, created_at, updated_at, (xmax = 0) AS inserted`,
			uuid.NewString(), userID, req.FirstName, req.LastName, req.PhoneNumber, req.LicenseNumber, now,
		).Scan(
			&p.ID, &p.UserID, &p.FirstName, &p.LastName, &p.PhoneNumber, &p.LicenseNumber,
			&p.CreatedAt, &p.UpdatedAt, &created,
		)
	})

	if err != nil {
		return profile.Profile{}, false, err
	}

	return p, created, nil
}
