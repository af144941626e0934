// README: Driver store backed by PostgreSQL; counters use in-place increments.
package driver

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tripnow/internal/types"
)

type Store interface {
	Get(ctx context.Context, id types.ID) (*Driver, error)
	ListEligible(ctx context.Context) ([]Driver, error)
	UpdateLocation(ctx context.Context, id types.ID, p types.Point, at time.Time) error
	// RecordCompletion adds one ride, fare and distance to the counters
	// without reading them first.
	RecordCompletion(ctx context.Context, id types.ID, fare types.Money, distanceKm float64) error
}

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const driverColumns = `
	id, name, photo, status, vehicle_type, vehicle_color, vehicle_plate, vehicle_capacity,
	location_lat, location_lng, location_at, total_rides, total_earnings, total_distance_km, currency, created_at`

func (s *PostgresStore) Get(ctx context.Context, id types.ID) (*Driver, error) {
	row := s.db.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, string(id))
	d, err := scanDriver(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

func (s *PostgresStore) ListEligible(ctx context.Context) ([]Driver, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+driverColumns+`
		FROM drivers
		WHERE status = 'active'
		  AND location_lat IS NOT NULL
		  AND location_lng IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateLocation(ctx context.Context, id types.ID, p types.Point, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers
		SET location_lat = $1, location_lng = $2, location_at = $3
		WHERE id = $4`,
		p.Lat, p.Lng, at, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RecordCompletion(ctx context.Context, id types.ID, fare types.Money, distanceKm float64) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers
		SET total_rides = total_rides + 1,
		    total_earnings = total_earnings + $1,
		    total_distance_km = total_distance_km + $2
		WHERE id = $3`,
		fare.Amount, distanceKm, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDriver(row pgx.Row) (*Driver, error) {
	var d Driver
	var lat, lng sql.NullFloat64
	var locAt sql.NullTime
	var photo sql.NullString
	err := row.Scan(
		&d.ID, &d.Name, &photo, &d.Status,
		&d.Vehicle.Type, &d.Vehicle.Color, &d.Vehicle.Plate, &d.Vehicle.Capacity,
		&lat, &lng, &locAt,
		&d.TotalRides, &d.TotalEarnings.Amount, &d.TotalDistanceKm, &d.TotalEarnings.Currency,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Photo = photo.String
	if lat.Valid && lng.Valid {
		d.Location = &types.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	if locAt.Valid {
		t := locAt.Time
		d.LocationAt = &t
	}
	return &d, nil
}
