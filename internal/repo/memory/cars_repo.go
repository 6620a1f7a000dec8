package memory

import (
	"context"
	"sort"

	"github.com/geocoder89/carshare/internal/domain/car"
)

type CarsRepo struct {
	s *Store
}

func (r *CarsRepo) Create(ctx context.Context, ownerID string, req car.CreateCarRequest) (car.Car, error) {
	if err := ctx.Err(); err != nil {
		return car.Car{}, err
	}

	c := car.NewFromCreateRequest(ownerID, req)

	r.s.mu.Lock()
	r.s.cars = append(r.s.cars, c)
	r.s.mu.Unlock()

	return c, nil
}

func (r *CarsRepo) ListAvailable(ctx context.Context) ([]car.Car, error) {
	return r.Search(ctx, car.SearchFilter{})
}

func (r *CarsRepo) Search(ctx context.Context, filter car.SearchFilter) ([]car.Car, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.collect(func(c car.Car) bool { return c.MatchesFilter(filter) }, true), nil
}

func (r *CarsRepo) ListByOwner(ctx context.Context, ownerID string) ([]car.Car, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.collect(func(c car.Car) bool { return c.UserID == ownerID }, false), nil
}

// collect orders like the postgres queries: created_at desc, then id desc.
// Callers must hold the read lock.
func (r *CarsRepo) collect(keep func(car.Car) bool, withOwner bool) []car.Car {
	out := make([]car.Car, 0)

	for i := len(r.s.cars) - 1; i >= 0; i-- {
		c := r.s.cars[i]
		if !keep(c) {
			continue
		}
		if withOwner {
			c.User = r.s.ownerOf(c.UserID)
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	return out
}
