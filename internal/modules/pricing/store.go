// README: Pricing store backed by PostgreSQL.
package pricing

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) ListRates(ctx context.Context) ([]Rate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT vehicle_class, base_fare, per_km, per_minute, currency
		FROM fare_rates
		WHERE active`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rate
	for rows.Next() {
		var r Rate
		if err := rows.Scan(&r.VehicleClass, &r.BaseFare, &r.PerKm, &r.PerMinute, &r.Currency); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
