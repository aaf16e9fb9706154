package dispatch

import "fmt"

// ChanDispatcher queues events on an in-process buffered channel for a
// consumer living in the same binary. When the buffer is full the
// event is dropped rather than blocking the interposed call.
type ChanDispatcher struct {
	events chan Event
}

func NewChanDispatcher(buffer int) *ChanDispatcher {
	return &ChanDispatcher{
		events: make(chan Event, buffer),
	}
}

func (d *ChanDispatcher) Dispatch(evt Event) error {
	select {
	case d.events <- evt:
		return nil
	default:
		return fmt.Errorf("event buffer full, dropping event for %s", evt.Path)
	}
}

// Events returns the consumer side of the channel.
func (d *ChanDispatcher) Events() <-chan Event {
	return d.events
}
