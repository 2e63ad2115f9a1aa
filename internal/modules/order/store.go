// README: Order store backed by PostgreSQL.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fluentops/internal/types"
)

const orderColumns = `id, customer_name, customer_phone, delivery_address, status, items, rider_id, created_at, updated_at`

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, o *Order) error {
	items, err := json.Marshal(itemsOrEmpty(o.Items))
	if err != nil {
		return err
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO orders (id, customer_name, customer_phone, delivery_address, status, items, rider_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		string(o.ID),
		o.CustomerName,
		o.CustomerPhone,
		o.DeliveryAddress,
		string(o.Status),
		items,
		toStringPtr(o.RiderID),
	)
	return row.Scan(&o.CreatedAt, &o.UpdatedAt)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, string(id))
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// List returns every order, newest first.
func (s *Store) List(ctx context.Context) ([]Order, error) {
	rows, err := s.db.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// Latest returns the most recently created order, or nil when there is none.
func (s *Store) Latest(ctx context.Context) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id DESC LIMIT 1`)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

// Patch applies a partial update. It returns ErrNotFound when the order does not
// exist and ErrConflict when the IfStatus guard does not hold.
func (s *Store) Patch(ctx context.Context, id types.ID, p Patch) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = COALESCE($2, status),
			rider_id = COALESCE($3, rider_id),
			updated_at = NOW()
		WHERE id = $1
		  AND ($4::text IS NULL OR status = $4)`,
		string(id),
		toStatusPtr(p.Status),
		toStringPtr(p.RiderID),
		toStatusPtr(p.IfStatus),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, string(id)).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var status string
	var items []byte
	var riderID *string
	err := row.Scan(
		&o.ID, &o.CustomerName, &o.CustomerPhone, &o.DeliveryAddress,
		&status, &items, &riderID, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)
	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return nil, fmt.Errorf("order %s items: %w", o.ID, err)
		}
	}
	if riderID != nil && *riderID != "" {
		r := types.ID(*riderID)
		o.RiderID = &r
	}
	return &o, nil
}

func itemsOrEmpty(items []Item) []Item {
	if items == nil {
		return []Item{}
	}
	return items
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toStatusPtr(v *Status) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
