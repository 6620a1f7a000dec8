package memory

import (
	"context"
	"time"

	"github.com/geocoder89/carshare/internal/domain/profile"
	"github.com/google/uuid"
)

type ProfilesRepo struct {
	s *Store
}

func (r *ProfilesRepo) GetByUserID(ctx context.Context, userID string) (profile.Profile, error) {
	if err := ctx.Err(); err != nil {
		return profile.Profile{}, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.profiles[userID]
	if !ok {
		return profile.Profile{}, profile.ErrNotFound
	}

	p.User = r.s.ownerOf(userID)
	return p, nil
}

func (r *ProfilesRepo) Upsert(ctx context.Context, userID string, req profile.UpsertProfileRequest) (profile.Profile, bool, error) {
	if err := ctx.Err(); err != nil {
		return profile.Profile{}, false, err
	}

	now := time.Now().UTC()

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, exists := r.s.profiles[userID]
	if !exists {
		p = profile.Profile{
			ID:        uuid.NewString(),
			UserID:    userID,
			CreatedAt: now,
		}
	}

	p.FirstName = req.FirstName
	p.LastName = req.LastName
	p.PhoneNumber = req.PhoneNumber
	p.LicenseNumber = req.LicenseNumber
	p.UpdatedAt = now

	r.s.profiles[userID] = p

	return p, !exists, nil
}
