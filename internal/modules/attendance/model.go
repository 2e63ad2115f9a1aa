// README: Attendance entities: people identified at the kiosk and their clock entries.
package attendance

import (
	"time"

	"fluentops/internal/types"
)

type PersonType string

const (
	PersonStaff PersonType = "staff"
	PersonRider PersonType = "rider"
)

func (t PersonType) Valid() bool { return t == PersonStaff || t == PersonRider }

type Kind string

const (
	KindClockIn    Kind = "clock_in"
	KindClockOut   Kind = "clock_out"
	KindBreakStart Kind = "break_start"
	KindBreakEnd   Kind = "break_end"
)

func (k Kind) Valid() bool {
	switch k {
	case KindClockIn, KindClockOut, KindBreakStart, KindBreakEnd:
		return true
	}
	return false
}

// State is where a person stands in their shift.
type State string

const (
	StateOff     State = "off"
	StateWorking State = "working"
	StateOnBreak State = "on_break"
)

// AllowedKinds lists the entries a person in each state may record.
var AllowedKinds = map[State][]Kind{
	StateOff:     {KindClockIn},
	StateWorking: {KindBreakStart, KindClockOut},
	StateOnBreak: {KindBreakEnd, KindClockOut},
}

func CanRecord(s State, k Kind) bool {
	for _, allowed := range AllowedKinds[s] {
		if allowed == k {
			return true
		}
	}
	return false
}

// StateAfter derives the current state from the latest entry (nil means none).
func StateAfter(last *Entry) State {
	if last == nil {
		return StateOff
	}
	switch last.Kind {
	case KindClockIn, KindBreakEnd:
		return StateWorking
	case KindBreakStart:
		return StateOnBreak
	default:
		return StateOff
	}
}

type Person struct {
	ID   types.ID   `json:"id"`
	Name string     `json:"name"`
	Role string     `json:"role"`
	Type PersonType `json:"type"`
}

type Entry struct {
	ID         types.ID   `json:"id"`
	PersonID   types.ID   `json:"person_id"`
	PersonType PersonType `json:"person_type"`
	PersonName string     `json:"person_name,omitempty"`
	PersonRole string     `json:"person_role,omitempty"`
	Kind       Kind       `json:"kind"`
	RecordedAt time.Time  `json:"recorded_at"`
}
