package dispatch

import (
	"encoding/json"
	"fmt"
	"net"
)

// SocketDispatcher sends events as JSON datagrams over a unixgram
// socket to a collector running on the same host. One write per event,
// no retry; if the collector is not listening the write fails and the
// event is lost, which is acceptable for this channel.
type SocketDispatcher struct {
	conn *net.UnixConn
}

// NewSocketDispatcher connects to the collector socket. The connection
// is made once; a collector restart requires a new dispatcher.
func NewSocketDispatcher(socketPath string) (*SocketDispatcher, error) {
	addr := &net.UnixAddr{Name: socketPath, Net: "unixgram"}
	conn, err := net.DialUnix("unixgram", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to collector socket %s: %v", socketPath, err)
	}
	return &SocketDispatcher{conn: conn}, nil
}

func (d *SocketDispatcher) Dispatch(evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	_, err = d.conn.Write(data)
	return err
}

// Close releases the socket.
func (d *SocketDispatcher) Close() error {
	return d.conn.Close()
}
