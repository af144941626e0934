// README: Ride store contract and its PostgreSQL implementation.
package ride

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
	Create(ctx context.Context, r *Ride) error
	// Get omits the passcode unless withPasscode is set.
	Get(ctx context.Context, id types.ID, withPasscode bool) (*Ride, error)
	// Transition reports false when the ride no longer satisfies t's
	// conditions; nothing is written in that case.
	Transition(ctx context.Context, id types.ID, t Transition) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
	ListByRider(ctx context.Context, riderID types.ID, limit int) ([]Ride, error)
	ListByDriver(ctx context.Context, driverID types.ID, limit int) ([]Ride, error)
}

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, r *Ride) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO rides (
			id, rider_id, driver_id, status, pickup, dropoff, vehicle_class,
			fare_amount, currency, passcode, payment_method, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12
		)`,
		string(r.ID),
		string(r.RiderID),
		toStringPtr(r.DriverID),
		string(r.Status),
		r.Pickup,
		r.Dropoff,
		r.VehicleClass,
		r.Fare.Amount,
		r.Fare.Currency,
		r.Passcode,
		string(r.PaymentMethod),
		r.CreatedAt,
	)
	return err
}

const rideColumns = `
	id, rider_id, driver_id, status, pickup, dropoff, vehicle_class,
	fare_amount, currency, payment_method, distance_km, duration_min,
	created_at, accepted_at, started_at, completed_at, cancelled_at, cancel_reason`

func (s *PostgresStore) Get(ctx context.Context, id types.ID, withPasscode bool) (*Ride, error) {
	passcodeCol := "''"
	if withPasscode {
		passcodeCol = "passcode"
	}
	row := s.db.QueryRow(ctx, `SELECT `+rideColumns+`, `+passcodeCol+` FROM rides WHERE id = $1`, string(id))

	r, err := scanRide(row, true)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *PostgresStore) Transition(ctx context.Context, id types.ID, t Transition) (bool, error) {
	from := make([]string, len(t.From))
	for i, st := range t.From {
		from[i] = string(st)
	}
	var fare *int64
	if t.Fare != nil {
		fare = &t.Fare.Amount
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE rides
		SET status = $1::text,
		    driver_id = COALESCE($2::text, driver_id),
		    fare_amount = COALESCE($3::bigint, fare_amount),
		    distance_km = COALESCE($4::double precision, distance_km),
		    duration_min = COALESCE($5::integer, duration_min),
		    cancel_reason = COALESCE($6::text, cancel_reason),
		    accepted_at = CASE WHEN $1::text = 'accepted' THEN $7 ELSE accepted_at END,
		    started_at = CASE WHEN $1::text = 'in-progress' THEN $7 ELSE started_at END,
		    completed_at = CASE WHEN $1::text = 'completed' THEN $7 ELSE completed_at END,
		    cancelled_at = CASE WHEN $1::text = 'cancelled' THEN $7 ELSE cancelled_at END
		WHERE id = $8
		  AND status = ANY($9::text[])
		  AND ($10::text IS NULL OR driver_id = $10::text)`,
		string(t.To),
		toStringPtr(t.DriverID),
		fare,
		t.DistanceKm,
		t.DurationMin,
		t.CancelReason,
		t.At,
		string(id),
		from,
		toStringPtr(t.RequireDriver),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ride_state_events (
			ride_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.RideID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		toStringPtr(e.ActorID),
		e.CreatedAt,
	)
	return err
}

func (s *PostgresStore) ListByRider(ctx context.Context, riderID types.ID, limit int) ([]Ride, error) {
	return s.list(ctx, `rider_id = $1`, string(riderID), limit)
}

func (s *PostgresStore) ListByDriver(ctx context.Context, driverID types.ID, limit int) ([]Ride, error) {
	return s.list(ctx, `driver_id = $1`, string(driverID), limit)
}

func (s *PostgresStore) list(ctx context.Context, where, arg string, limit int) ([]Ride, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+rideColumns+`
		FROM rides
		WHERE `+where+`
		ORDER BY created_at DESC
		LIMIT $2`, arg, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Ride
	for rows.Next() {
		r, err := scanRide(rows, false)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanRide(row pgx.Row, withPasscodeCol bool) (*Ride, error) {
	var r Ride
	var driverID, cancelReason sql.NullString
	var distance sql.NullFloat64
	var duration sql.NullInt32
	var acceptedAt, startedAt, completedAt, cancelledAt sql.NullTime

	dest := []any{
		&r.ID, &r.RiderID, &driverID, &r.Status, &r.Pickup, &r.Dropoff, &r.VehicleClass,
		&r.Fare.Amount, &r.Fare.Currency, &r.PaymentMethod, &distance, &duration,
		&r.CreatedAt, &acceptedAt, &startedAt, &completedAt, &cancelledAt, &cancelReason,
	}
	if withPasscodeCol {
		dest = append(dest, &r.Passcode)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if driverID.Valid {
		d := types.ID(driverID.String)
		r.DriverID = &d
	}
	if distance.Valid {
		r.DistanceKm = &distance.Float64
	}
	if duration.Valid {
		v := int(duration.Int32)
		r.DurationMin = &v
	}
	if cancelReason.Valid {
		r.CancelReason = &cancelReason.String
	}
	r.AcceptedAt = toTimePtr(acceptedAt)
	r.StartedAt = toTimePtr(startedAt)
	r.CompletedAt = toTimePtr(completedAt)
	r.CancelledAt = toTimePtr(cancelledAt)
	if r.Fare.Currency == "" {
		r.Fare.Currency = types.DefaultCurrency
	}
	return &r, nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
