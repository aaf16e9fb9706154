package dispatch

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
)

// Receiver is the collector side of the socket transport. It owns the
// unixgram socket and decodes incoming datagrams onto a buffered
// channel for processing.
type Receiver struct {
	conn   *net.UnixConn
	events chan Event
}

// NewReceiver binds the collector socket, replacing any stale socket
// file left behind by a previous run.
func NewReceiver(socketPath string, buffer int) (*Receiver, error) {
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove stale socket %s: %v", socketPath, err)
	}

	addr := &net.UnixAddr{Name: socketPath, Net: "unixgram"}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %v", socketPath, err)
	}

	return &Receiver{
		conn:   conn,
		events: make(chan Event, buffer),
	}, nil
}

// Events returns the channel of decoded events. The channel is closed
// when the receiver shuts down.
func (r *Receiver) Events() <-chan Event {
	return r.events
}

// Run reads datagrams until the socket is closed. Malformed datagrams
// are logged and skipped; one bad sender must not stop the collector.
func (r *Receiver) Run() {
	buf := make([]byte, 64*1024)
	for {
		n, err := r.conn.Read(buf)
		if err != nil {
			if strings.Contains(err.Error(), "closed") {
				close(r.events)
				return
			}
			log.Printf("Error reading event socket: %v", err)
			continue
		}

		var event Event
		if err := json.Unmarshal(buf[:n], &event); err != nil {
			log.Printf("Error parsing event: %v", err)
			continue
		}

		r.events <- event
	}
}

// Close shuts the socket down, which in turn ends Run and closes the
// event channel.
func (r *Receiver) Close() error {
	return r.conn.Close()
}
