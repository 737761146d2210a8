package signaling

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the host-side WebSocket endpoint. It accepts exactly one
// guest, authenticated by a per-session token carried in the URL.
type Server struct {
	token    string
	listener net.Listener
	connCh   chan *websocket.Conn
}

// NewServer creates a signaling server with a fresh session token.
func NewServer() *Server {
	return &Server{
		token:  uuid.NewString(),
		connCh: make(chan *websocket.Conn, 1),
	}
}

// Start begins listening on addr (":0" picks a free port) and returns
// the bound port.
func (s *Server) Start(addr string) (int, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("failed to start signaling server: %w", err)
	}
	s.listener = listener
	port := listener.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)

	go func() {
		_ = http.Serve(listener, mux)
	}()

	return port, nil
}

// URL renders the join URL a guest dials, for the given reachable host.
func (s *Server) URL(host string, port int) string {
	return fmt.Sprintf("ws://%s:%d/ws?session=%s", host, port, s.token)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("session") != s.token {
		http.Error(w, "unknown session", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	// Only the first guest is accepted.
	select {
	case s.connCh <- conn:
	default:
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session already joined"))
		_ = conn.Close()
	}
}

// WaitForGuest blocks until a guest joins or ctx is cancelled.
func (s *Server) WaitForGuest(ctx context.Context) (*Peer, error) {
	select {
	case conn := <-s.connCh:
		return newPeer(conn), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close shuts down the listener, preventing new sessions.
func (s *Server) Close() {
	if s.listener != nil {
		_ = s.listener.Close()
	}
}
