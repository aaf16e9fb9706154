// Package dispatch carries lifecycle events from the shim to a
// consumer. Delivery is best effort by design: the shim attempts each
// event exactly once and discards the outcome, so no dispatcher
// implementation may block indefinitely or surface errors that matter.
package dispatch

import (
	"os"
	"time"

	"github.com/filetrack/removetrace/identity"
)

// Event type constants
const (
	EventRemove = 1
)

// Event is one lifecycle notification from the shim.
type Event struct {
	Type      uint32 `json:"type"`
	Timestamp int64  `json:"timestamp"` // nanoseconds since epoch
	PID       uint32 `json:"pid"`
	Dev       uint64 `json:"dev"`
	Ino       uint64 `json:"ino"`
	Path      string `json:"path"`
}

// Remove builds a removal event for an object that was just unlinked.
// Path is carried as observed at the call site, for diagnostics only;
// the identifier is the authoritative payload.
func Remove(id identity.ID, path string) Event {
	return Event{
		Type:      EventRemove,
		Timestamp: time.Now().UnixNano(),
		PID:       uint32(os.Getpid()),
		Dev:       id.Dev,
		Ino:       id.Ino,
		Path:      path,
	}
}

// ID reassembles the identifier carried by the event.
func (e Event) ID() identity.ID {
	return identity.ID{Dev: e.Dev, Ino: e.Ino}
}

// Dispatcher accepts events for delivery to a consumer.
type Dispatcher interface {
	Dispatch(Event) error
}

// Discard drops every event. Used until a real dispatcher is wired in.
var Discard Dispatcher = discard{}

type discard struct{}

func (discard) Dispatch(Event) error { return nil }
