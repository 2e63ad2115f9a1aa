// README: Rider service for listing and explicit operator status changes.
package rider

import (
	"context"
	"errors"

	"fluentops/internal/types"
)

var (
	ErrNotFound   = errors.New("rider not found")
	ErrConflict   = errors.New("rider state conflict")
	ErrBadRequest = errors.New("bad request")
)

// Repository is the subset of Store the service needs.
type Repository interface {
	List(ctx context.Context, status *Status) ([]Rider, error)
	Get(ctx context.Context, id types.ID) (*Rider, error)
	Patch(ctx context.Context, id types.ID, p Patch) error
}

type Service struct {
	store Repository
}

func NewService(store Repository) *Service {
	return &Service{store: store}
}

type SetStatusCommand struct {
	RiderID types.ID
	Status  Status
}

func (s *Service) List(ctx context.Context, status *Status) ([]Rider, error) {
	if status != nil && !status.Valid() {
		return nil, ErrBadRequest
	}
	return s.store.List(ctx, status)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Rider, error) {
	return s.store.Get(ctx, id)
}

// SetStatus is the operator override. Busy is reserved for the assignment flow.
func (s *Service) SetStatus(ctx context.Context, cmd SetStatusCommand) error {
	if cmd.RiderID == "" || !cmd.Status.Valid() || cmd.Status == StatusBusy {
		return ErrBadRequest
	}
	next := cmd.Status
	return s.store.Patch(ctx, cmd.RiderID, Patch{Status: &next})
}
