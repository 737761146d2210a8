package signaling

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
)

// Dial joins a signaling session at the given ws:// URL.
func Dial(ctx context.Context, url string) (*Peer, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to join signaling session: %w", err)
	}
	return newPeer(conn), nil
}
