package signaling

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Peer is one end of an established signaling session. Send is safe for
// concurrent use; Recv must be driven from a single goroutine.
type Peer struct {
	conn *websocket.Conn

	writeMu sync.Mutex
}

func newPeer(conn *websocket.Conn) *Peer {
	return &Peer{conn: conn}
}

// Send writes one signaling message.
func (p *Peer) Send(msg Message) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.conn.WriteJSON(msg)
}

// Recv blocks until the next signaling message arrives.
func (p *Peer) Recv() (Message, error) {
	var msg Message
	err := p.conn.ReadJSON(&msg)
	return msg, err
}

// Close tears the session down.
func (p *Peer) Close() error {
	return p.conn.Close()
}
