// README: Rider (courier) entity and availability states.
package rider

import (
	"time"

	"fluentops/internal/types"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusBusy      Status = "busy"
	StatusOffline   Status = "offline"
)

func (s Status) Valid() bool {
	return s == StatusAvailable || s == StatusBusy || s == StatusOffline
}

type Rider struct {
	ID        types.ID  `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Patch is a partial update; IfStatus makes it a compare-and-set on the current status.
type Patch struct {
	Status   *Status
	IfStatus *Status
}

// StatusPatch builds a guarded status change from -> to.
func StatusPatch(from, to Status) Patch {
	return Patch{Status: &to, IfStatus: &from}
}
