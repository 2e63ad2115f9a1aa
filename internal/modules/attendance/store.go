// README: Attendance store backed by PostgreSQL (employees, riders' PINs, clock entries).
package attendance

import (
	"context"
	"errors"
	"time"

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

// FindByPIN looks in staff first, then riders. ErrUnknownPIN when neither matches.
func (s *Store) FindByPIN(ctx context.Context, pin string) (*Person, error) {
	var p Person
	err := s.db.QueryRow(ctx, `
		SELECT id, TRIM(name || ' ' || last_name), role
		FROM employees
		WHERE TRIM(pin_code) = $1
		ORDER BY created_at ASC
		LIMIT 1`, pin).Scan(&p.ID, &p.Name, &p.Role)
	if err == nil {
		p.Type = PersonStaff
		return &p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	err = s.db.QueryRow(ctx, `
		SELECT id, name
		FROM riders
		WHERE TRIM(pin_code) = $1
		ORDER BY created_at ASC
		LIMIT 1`, pin).Scan(&p.ID, &p.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUnknownPIN
	}
	if err != nil {
		return nil, err
	}
	p.Type = PersonRider
	p.Role = RiderRole
	return &p, nil
}

// LastEntry returns the newest entry for a person, or nil when there is none.
func (s *Store) LastEntry(ctx context.Context, personID types.ID, personType PersonType) (*Entry, error) {
	var e Entry
	var ptype, kind string
	err := s.db.QueryRow(ctx, `
		SELECT id, person_id, person_type, kind, recorded_at
		FROM attendance_entries
		WHERE person_id = $1 AND person_type = $2
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1`, string(personID), string(personType)).Scan(&e.ID, &e.PersonID, &ptype, &kind, &e.RecordedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.PersonType, e.Kind = PersonType(ptype), Kind(kind)
	return &e, nil
}

// Record inserts the entry; the database assigns recorded_at.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	return s.db.QueryRow(ctx, `
		INSERT INTO attendance_entries (id, person_id, person_type, kind)
		VALUES ($1, $2, $3, $4)
		RETURNING recorded_at`,
		string(e.ID), string(e.PersonID), string(e.PersonType), string(e.Kind),
	).Scan(&e.RecordedAt)
}

// List returns entries recorded at or after since, newest first, with the
// person's name and role. limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, since time.Time, limit int) ([]Entry, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := s.db.Query(ctx, `
		SELECT a.id, a.person_id, a.person_type, a.kind, a.recorded_at,
			COALESCE(TRIM(e.name || ' ' || e.last_name), r.name, ''),
			COALESCE(e.role, CASE WHEN r.id IS NOT NULL THEN $3 END, '')
		FROM attendance_entries a
		LEFT JOIN employees e ON a.person_type = 'staff' AND e.id = a.person_id
		LEFT JOIN riders r ON a.person_type = 'rider' AND r.id = a.person_id
		WHERE a.recorded_at >= $1
		ORDER BY a.recorded_at DESC, a.id DESC
		LIMIT $2`, since, lim, RiderRole)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ptype, kind string
		if err := rows.Scan(&e.ID, &e.PersonID, &ptype, &kind, &e.RecordedAt, &e.PersonName, &e.PersonRole); err != nil {
			return nil, err
		}
		e.PersonType, e.Kind = PersonType(ptype), Kind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}
