// README: Rider lookups backed by PostgreSQL, with an in-memory variant.
package rider

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tripnow/internal/types"
)

type Store interface {
	Get(ctx context.Context, id types.ID) (*Rider, error)
}

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, id types.ID) (*Rider, error) {
	var r Rider
	var email, photo sql.NullString
	var rating sql.NullFloat64
	err := s.db.QueryRow(ctx, `
		SELECT id, name, email, photo, rating
		FROM riders
		WHERE id = $1`, string(id),
	).Scan(&r.ID, &r.Name, &email, &photo, &rating)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Email = email.String
	r.Photo = photo.String
	r.Rating = rating.Float64
	return &r, nil
}

type MemoryStore struct {
	mu     sync.RWMutex
	riders map[types.ID]Rider
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{riders: make(map[types.ID]Rider)}
}

func (s *MemoryStore) Put(r Rider) {
	s.mu.Lock()
	s.riders[r.ID] = r
	s.mu.Unlock()
}

func (s *MemoryStore) Get(_ context.Context, id types.ID) (*Rider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.riders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}
