package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Socket is one open websocket.
type Socket interface {
	// ReadMessage blocks until the next frame arrives or the socket fails.
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

// Dialer opens sockets.
type Dialer interface {
	Dial(ctx context.Context, url string) (Socket, error)
}

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

// NewWebsocketDialer returns a dialer with the given handshake timeout.
func NewWebsocketDialer(handshakeTimeout time.Duration) *WebsocketDialer {
	d := *websocket.DefaultDialer
	d.HandshakeTimeout = handshakeTimeout
	return &WebsocketDialer{Dialer: &d}
}

func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Socket, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	ws, resp, err := dialer.DialContext(ctx, url, d.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &wsSocket{conn: ws}, nil
}

// wsSocket serializes writes; gorilla allows one concurrent writer.
type wsSocket struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (s *wsSocket) ReadMessage() ([]byte, error) {
	_, data, err := s.conn.ReadMessage()
	return data, err
}

func (s *wsSocket) WriteJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *wsSocket) Close() error {
	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	s.writeMu.Unlock()
	return s.conn.Close()
}
