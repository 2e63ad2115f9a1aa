// README: Shared identifier type used across modules.
package types

// ID is an opaque durable identifier assigned by the store.
type ID string

func (id ID) String() string { return string(id) }

// Ptr returns a pointer to a copy of id.
func (id ID) Ptr() *ID { return &id }
