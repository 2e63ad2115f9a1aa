// README: Order service implements kitchen intake and read access.
package order

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"fluentops/internal/types"
)

// Repository is the subset of Store the service needs.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id types.ID) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	Patch(ctx context.Context, id types.ID, p Patch) error
}

type Service struct {
	store Repository
}

func NewService(store Repository) *Service {
	return &Service{store: store}
}

var (
	ErrInvalidState = errors.New("invalid state transition")
	ErrNotFound     = errors.New("order not found")
	ErrConflict     = errors.New("order state conflict")
	ErrBadRequest   = errors.New("bad request")
)

type CreateCommand struct {
	CustomerName    string
	CustomerPhone   string
	DeliveryAddress string
	Items           []Item
}

type MarkReadyCommand struct {
	OrderID types.ID
}

// Create registers a new order in the kitchen.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Order, error) {
	cmd.CustomerName = strings.TrimSpace(cmd.CustomerName)
	cmd.DeliveryAddress = strings.TrimSpace(cmd.DeliveryAddress)
	if cmd.CustomerName == "" || cmd.DeliveryAddress == "" || len(cmd.Items) == 0 {
		return nil, ErrBadRequest
	}
	o := &Order{
		ID:              types.ID(uuid.NewString()),
		CustomerName:    cmd.CustomerName,
		CustomerPhone:   strings.TrimSpace(cmd.CustomerPhone),
		DeliveryAddress: cmd.DeliveryAddress,
		Status:          StatusKitchen,
		Items:           cmd.Items,
	}
	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// MarkReady moves an order from the kitchen to the pickup counter.
func (s *Service) MarkReady(ctx context.Context, cmd MarkReadyCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if !CanTransition(o.Status, StatusReadyForPickup) {
		return ErrInvalidState
	}
	next := StatusReadyForPickup
	return s.store.Patch(ctx, o.ID, Patch{Status: &next, IfStatus: &o.Status})
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Order, error) {
	return s.store.List(ctx)
}
