package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/geocoder89/carshare/internal/domain/car"
	"github.com/geocoder89/carshare/internal/domain/user"
	"github.com/geocoder89/carshare/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CarsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewCarsRepo(pool *pgxpool.Pool, prom *observability.Prom) *CarsRepo {
	return &CarsRepo{pool: pool, prom: prom}
}

func (r *CarsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const carColumns = `c.id, c.user_id, c.make, c.model, c.year, c.location, c.price_per_day,
		c.availability, c.image_url, c.description, c.created_at`

func (r *CarsRepo) Create(ctx context.Context, ownerID string, req car.CreateCarRequest) (car.Car, error) {
	c := car.NewFromCreateRequest(ownerID, req)

	err := r.observe("cars.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO cars (id, user_id, make, model, year, location, price_per_day, availability, image_url, description, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			c.ID, c.UserID, c.Make, c.Model, c.Year, c.Location, c.PricePerDay, c.Availability, c.ImageURL, c.Description, c.CreatedAt,
		)
		return err
	})

	if err != nil {
		return car.Car{}, err
	}

	return c, nil
}

// ListAvailable is Search without filters.
func (r *CarsRepo) ListAvailable(ctx context.Context) ([]car.Car, error) {
	return r.Search(ctx, car.SearchFilter{})
}

func (r *CarsRepo) Search(ctx context.Context, filter car.SearchFilter) ([]car.Car, error) {
	conds := []string{"c.availability = TRUE"}
	var args []interface{}

	argsPosition := 1

	if filter.Location != nil {
		conds = append(conds, fmt.Sprintf(`c.location ILIKE $%d ESCAPE '\'`, argsPosition))
		args = append(args, "%"+escapeLike(*filter.Location)+"%")
		argsPosition++
	}

	if filter.MaxPrice != nil {
		conds = append(conds, fmt.Sprintf("c.price_per_day <= $%d", argsPosition))
		args = append(args, *filter.MaxPrice)
		argsPosition++
	}

	query := `SELECT ` + carColumns + `, u.id, u.name, u.email
		FROM cars c
		JOIN users u ON u.id = c.user_id
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY c.created_at DESC, c.id DESC`

	op := "cars.list_available"
	if !filter.IsEmpty() {
		op = "cars.search"
	}

	var out []car.Car

	err := r.observe(op, func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out, err = scanCars(rows, true)
		return err
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CarsRepo) ListByOwner(ctx context.Context, ownerID string) ([]car.Car, error) {
	var out []car.Car

	err := r.observe("cars.list_by_owner", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+carColumns+`
			FROM cars c
			WHERE c.user_id = $1
			ORDER BY c.created_at DESC, c.id DESC`,
			ownerID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		out, err = scanCars(rows, false)
		return err
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

func scanCars(rows pgx.Rows, withOwner bool) ([]car.Car, error) {
	output := make([]car.Car, 0)

	for rows.Next() {
		var c car.Car
		dest := []any{
			&c.ID, &c.UserID, &c.Make, &c.Model, &c.Year, &c.Location, &c.PricePerDay,
			&c.Availability, &c.ImageURL, &c.Description, &c.CreatedAt,
		}

		var owner user.Owner
		if withOwner {
			dest = append(dest, &owner.ID, &owner.Name, &owner.Email)
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		if withOwner {
			c.User = &owner
		}
		output = append(output, c)
	}

	return output, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
