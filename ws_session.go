package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Rooms are joined via tokens, not cookies; cross-origin pages are fine.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsTransport adapts a websocket connection to the session transport.
// Each binary websocket message carries exactly one JSON envelope, so the
// 4-byte length prefix of the TCP framing is redundant and omitted.
type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	for {
		kind, payload, err := t.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.BinaryMessage || kind == websocket.TextMessage {
			return payload, nil
		}
	}
}

func (t *wsTransport) WriteMessage(payload []byte) error {
	return t.conn.WriteMessage(websocket.BinaryMessage, payload)
}

func (t *wsTransport) SetReadDeadline(d time.Time) error { return t.conn.SetReadDeadline(d) }
func (t *wsTransport) Close() error                      { return t.conn.Close() }
func (t *wsTransport) RemoteAddr() string                { return t.conn.RemoteAddr().String() }

// WSHandler upgrades HTTP requests and runs the same session loop the TCP
// listener uses.
func WSHandler(deps SessionDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			if deps.Logger != nil {
				deps.Logger.Printf("ws upgrade %s: %v", r.RemoteAddr, err)
			}
			return
		}
		serveTransport(r.Context(), &wsTransport{conn: conn}, deps)
	}
}
