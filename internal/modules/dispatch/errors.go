// README: Error taxonomy shared by the coordinators and the operator message mapping.
package dispatch

import (
	"errors"
	"fmt"

	"fluentops/internal/modules/order"
	"fluentops/internal/modules/rider"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrTransport          = errors.New("store unavailable")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrBadRequest         = errors.New("bad request")
	// ErrRolledBack means the order write failed after the rider was reserved and
	// the reservation was undone (best effort).
	ErrRolledBack = errors.New("assignment rolled back")

	ErrRiderUnavailable = fmt.Errorf("%w: rider unavailable", ErrPreconditionFailed)
)

var taxonomy = []error{ErrNotFound, ErrPreconditionFailed, ErrTransport, ErrInvalidTransition, ErrBadRequest}

// Classify maps store and service errors onto the taxonomy. Anything
// unrecognised, timeouts included, is a transport failure.
func Classify(err error) error {
	for _, target := range taxonomy {
		if errors.Is(err, target) {
			return target
		}
	}
	switch {
	case errors.Is(err, order.ErrInvalidState):
		return ErrInvalidTransition
	case errors.Is(err, order.ErrBadRequest), errors.Is(err, rider.ErrBadRequest):
		return ErrBadRequest
	case errors.Is(err, order.ErrNotFound), errors.Is(err, rider.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, order.ErrConflict), errors.Is(err, rider.ErrConflict):
		return ErrPreconditionFailed
	default:
		return ErrTransport
	}
}

func wrap(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, Classify(err), err)
}

// OperatorMessage turns a coordinator error into something an operator can act on.
func OperatorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBadRequest):
		return "Select an order and a rider first."
	case errors.Is(err, ErrRolledBack):
		return "The order could not be updated and the rider was released. Try the assignment again."
	case errors.Is(err, ErrRiderUnavailable):
		return "That rider is no longer available. Pick another rider."
	case errors.Is(err, ErrInvalidTransition):
		return "This order can no longer be changed that way. Refresh the board."
	case errors.Is(err, ErrNotFound):
		return "The order or rider no longer exists. Refresh the board."
	case errors.Is(err, ErrPreconditionFailed):
		return "The order changed in the meantime. Refresh the board and try again."
	case errors.Is(err, ErrTransport):
		return "Could not reach the order store. Check the connection and try again."
	default:
		return "Unexpected error: " + err.Error()
	}
}
