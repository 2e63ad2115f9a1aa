// README: Attendance service: kiosk identification, clock entries with rider side effects, reports.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"fluentops/internal/logger"
	"fluentops/internal/modules/rider"
	"fluentops/internal/types"
)

// RiderRole is the role shown for riders at the kiosk and in reports.
const RiderRole = "rider"

var (
	ErrUnknownPIN    = errors.New("unknown pin")
	ErrBadRequest    = errors.New("bad request")
	ErrInvalidAction = errors.New("action not allowed in the current state")
)

type Repository interface {
	FindByPIN(ctx context.Context, pin string) (*Person, error)
	LastEntry(ctx context.Context, personID types.ID, personType PersonType) (*Entry, error)
	Record(ctx context.Context, e *Entry) error
	List(ctx context.Context, since time.Time, limit int) ([]Entry, error)
}

// RiderStatus is the slice of the rider registry the clock touches.
type RiderStatus interface {
	Patch(ctx context.Context, id types.ID, p rider.Patch) error
}

type Options struct {
	Shift       Shift
	RecentLimit int
	Logger      *slog.Logger
}

type Service struct {
	store  Repository
	riders RiderStatus
	shift  Shift
	limit  int
	log    *slog.Logger
	now    func() time.Time
}

func NewService(store Repository, riders RiderStatus, opts Options) *Service {
	if opts.Shift.Location == nil {
		opts.Shift.Location = time.UTC
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = 50
	}
	return &Service{
		store:  store,
		riders: riders,
		shift:  opts.Shift,
		limit:  opts.RecentLimit,
		log:    logger.OrDefault(opts.Logger).With(slog.String("component", "attendance")),
		now:    time.Now,
	}
}

type Identity struct {
	Person  Person `json:"person"`
	State   State  `json:"state"`
	Allowed []Kind `json:"allowed"`
}

func (s *Service) Identify(ctx context.Context, pin string) (*Identity, error) {
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return nil, ErrBadRequest
	}
	p, err := s.store.FindByPIN(ctx, pin)
	if err != nil {
		return nil, err
	}
	last, err := s.store.LastEntry(ctx, p.ID, p.Type)
	if err != nil {
		return nil, err
	}
	state := StateAfter(last)
	return &Identity{Person: *p, State: state, Allowed: AllowedKinds[state]}, nil
}

type RecordCommand struct {
	PersonID   types.ID
	PersonType PersonType
	Kind       Kind
}

// Record stores a clock entry. For riders, clocking in makes them available
// and clocking out takes them offline; that update is best effort.
func (s *Service) Record(ctx context.Context, cmd RecordCommand) (*Entry, error) {
	if cmd.PersonID == "" || !cmd.PersonType.Valid() || !cmd.Kind.Valid() {
		return nil, ErrBadRequest
	}
	last, err := s.store.LastEntry(ctx, cmd.PersonID, cmd.PersonType)
	if err != nil {
		return nil, err
	}
	if state := StateAfter(last); !CanRecord(state, cmd.Kind) {
		return nil, fmt.Errorf("%w: %s while %s", ErrInvalidAction, cmd.Kind, state)
	}

	e := &Entry{
		ID:         types.ID(uuid.NewString()),
		PersonID:   cmd.PersonID,
		PersonType: cmd.PersonType,
		Kind:       cmd.Kind,
	}
	if err := s.store.Record(ctx, e); err != nil {
		return nil, err
	}

	if cmd.PersonType == PersonRider && s.riders != nil {
		var next rider.Status
		switch cmd.Kind {
		case KindClockIn:
			next = rider.StatusAvailable
		case KindClockOut:
			next = rider.StatusOffline
		}
		if next != "" {
			if err := s.riders.Patch(ctx, cmd.PersonID, rider.Patch{Status: &next}); err != nil {
				s.log.Warn("rider status not updated after clock entry",
					slog.String("rider_id", string(cmd.PersonID)),
					slog.String("kind", string(cmd.Kind)),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	return e, nil
}

// Recent returns the latest entries across everyone.
func (s *Service) Recent(ctx context.Context) ([]Entry, error) {
	return s.store.List(ctx, time.Time{}, s.limit)
}

func (s *Service) Report(ctx context.Context, r Range) ([]Row, error) {
	since := r.Since(s.now(), s.shift.Location)
	entries, err := s.store.List(ctx, since, 0)
	if err != nil {
		return nil, err
	}
	return BuildReport(entries, s.shift), nil
}
