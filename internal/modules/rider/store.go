// README: Rider registry backed by PostgreSQL.
package rider

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fluentops/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// List returns riders sorted by name, optionally restricted to one status.
func (s *Store) List(ctx context.Context, status *Status) ([]Rider, error) {
	var filter *string
	if status != nil {
		v := string(*status)
		filter = &v
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, name, phone, status, updated_at
		FROM riders
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY name ASC, id ASC`, filter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rider
	for rows.Next() {
		r, err := scanRider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Rider, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, phone, status, updated_at
		FROM riders
		WHERE id = $1`, string(id))
	r, err := scanRider(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// Patch applies a partial update. It returns ErrNotFound for an unknown rider and
// ErrConflict when the IfStatus guard does not hold.
func (s *Store) Patch(ctx context.Context, id types.ID, p Patch) error {
	var next, guard *string
	if p.Status != nil {
		v := string(*p.Status)
		next = &v
	}
	if p.IfStatus != nil {
		v := string(*p.IfStatus)
		guard = &v
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE riders
		SET status = COALESCE($2, status),
			updated_at = NOW()
		WHERE id = $1
		  AND ($3::text IS NULL OR status = $3)`,
		string(id), next, guard,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM riders WHERE id = $1)`, string(id)).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func scanRider(row pgx.Row) (*Rider, error) {
	var r Rider
	var status string
	if err := row.Scan(&r.ID, &r.Name, &r.Phone, &status, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = Status(status)
	return &r, nil
}
